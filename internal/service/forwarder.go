// Package service implements upstream forwarding and response reshaping.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"ele-proxy-go/internal/client"
	"ele-proxy-go/internal/config"
	"ele-proxy-go/internal/model"
	"ele-proxy-go/internal/urlfmt"
)

// ErrMethodNotAllowed is returned for methods other than GET, POST, PUT and DELETE.
var ErrMethodNotAllowed = errors.New("method not allowed")

// allowedUpstreamHosts restricts which hosts the proxy will forward to.
var allowedUpstreamHosts = map[string]bool{
	"h5.ele.me": true,
}

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
}

// Forwarder issues exactly one upstream call per request and collapses every
// failure into an error carrying a human-readable message.
type Forwarder struct {
	client  *client.ElemeClient
	logger  *slog.Logger
	baseURL string
}

// NewForwarder creates a Forwarder.
func NewForwarder(c *client.ElemeClient, cfg *config.Config, logger *slog.Logger) (*Forwarder, error) {
	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base_url: %w", err)
	}

	if !allowedUpstreamHosts[u.Hostname()] {
		return nil, fmt.Errorf("upstream host %q is not in the allowlist", u.Hostname())
	}

	return newForwarder(c, u, logger), nil
}

// NewForwarderForTest creates a Forwarder without host allowlist validation.
// This is intended only for tests that use httptest servers on localhost.
func NewForwarderForTest(c *client.ElemeClient, cfg *config.Config, logger *slog.Logger) (*Forwarder, error) {
	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base_url: %w", err)
	}
	return newForwarder(c, u, logger), nil
}

func newForwarder(c *client.ElemeClient, u *url.URL, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		client:  c,
		logger:  logger.With("component", "forwarder"),
		baseURL: strings.TrimRight(u.String(), "/"),
	}
}

// Forward sends req upstream. A 2xx answer is returned as is; any other
// status yields a *model.UpstreamError whose message is the upstream's
// "message" field when present.
func (f *Forwarder) Forward(ctx context.Context, req *model.UpstreamRequest) (*model.UpstreamResponse, error) {
	if !allowedMethods[req.Method] {
		return nil, fmt.Errorf("%w: %q", ErrMethodNotAllowed, req.Method)
	}

	var body []byte
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode upstream body: %w", err)
		}
		body = b
	}

	upstreamURL := f.buildUpstreamURL(req.Path, req.Query)

	f.logger.Debug("forwarding request",
		"method", req.Method,
		"path", req.Path,
	)

	resp, err := f.client.Send(ctx, req.Method, upstreamURL, req.Cookie, body)
	if err != nil {
		return nil, fmt.Errorf("forward to upstream: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &model.UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    upstreamMessage(resp),
		}
	}
	return resp, nil
}

func (f *Forwarder) buildUpstreamURL(path string, query *urlfmt.Params) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return urlfmt.WithQuery(f.baseURL+path, query.EncodeRepeated())
}

// upstreamMessage extracts the upstream's own error message, falling back to
// a generic description of the status.
func upstreamMessage(resp *model.UpstreamResponse) string {
	var payload struct {
		Message any `json:"message"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err == nil {
		switch m := payload.Message.(type) {
		case string:
			if m != "" {
				return m
			}
		case nil:
		default:
			return fmt.Sprint(m)
		}
	}
	return fmt.Sprintf("Request failed with status code %d", resp.StatusCode)
}

// ErrorMessage renders err as the errmsg of a failure envelope.
func ErrorMessage(err error) string {
	var ue *model.UpstreamError
	if errors.As(err, &ue) {
		return ue.Message
	}
	return err.Error()
}
