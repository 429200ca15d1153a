// Package client provides the upstream HTTP client for the Ele.me REST API.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"ele-proxy-go/internal/config"
	"ele-proxy-go/internal/metrics"
	"ele-proxy-go/internal/model"
)

// maxResponseBytes caps how much of an upstream body is buffered.
const maxResponseBytes = 16 << 20

// ElemeClient sends requests to the upstream API.
type ElemeClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewElemeClient creates an ElemeClient with connection pooling and timeouts.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewElemeClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *ElemeClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &ElemeClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
		},
		logger:  logger.With("component", "eleme_client"),
		metrics: m,
	}
}

// Do executes an HTTP request against the upstream and buffers the response
// body. Any status code is returned as a response; only transport failures
// produce an error.
func (c *ElemeClient) Do(req *http.Request) (*model.UpstreamResponse, error) {
	c.logger.Debug("upstream request",
		"method", req.Method,
		"path", req.URL.Path,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	method := metrics.NormalizeMethod(req.Method)

	if err != nil {
		c.observe(method, start, 0)
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.observe(method, start, resp.StatusCode)
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}

	return &model.UpstreamResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// Send builds a request carrying only the session cookie (and a JSON content
// type when body is non-nil) and executes it. The context controls the
// lifetime of the upstream call.
func (c *ElemeClient) Send(ctx context.Context, method, url, cookie string, body []byte) (*model.UpstreamResponse, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header = http.Header{"Cookie": {cookie}}
	if body != nil {
		req.Header.Set("Content-Type", "application/json;charset=utf-8")
	}

	return c.Do(req)
}

func (c *ElemeClient) observe(method string, start time.Time, status int) {
	if c.metrics == nil {
		return
	}
	c.metrics.UpstreamDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if status != 0 {
		c.metrics.UpstreamResponses.WithLabelValues(method, strconv.Itoa(status)).Inc()
	}
}
