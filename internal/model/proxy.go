// Package model defines shared types for the proxy.
package model

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ele-proxy-go/internal/urlfmt"
)

// Envelope codes.
const (
	CodeOK    = 0
	CodeError = 1
)

// UpstreamRequest describes a single outbound call. Path is relative to the
// upstream base URL and may already carry a hand-built query string; Query is
// appended to it, never merged into Body.
type UpstreamRequest struct {
	Method string
	Path   string
	Cookie string
	Body   map[string]any
	Query  *urlfmt.Params
}

// UpstreamResponse is a fully read 2xx upstream response.
type UpstreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the body into a generic JSON value.
func (r *UpstreamResponse) Decode() (any, error) {
	var v any
	if err := json.Unmarshal(r.Body, &v); err != nil {
		return nil, fmt.Errorf("decode upstream body: %w", err)
	}
	return v, nil
}

// Result returns the body for pass-through routes: the raw JSON when the body
// is valid JSON, otherwise the body as a string.
func (r *UpstreamResponse) Result() any {
	if len(r.Body) == 0 {
		return ""
	}
	if json.Valid(r.Body) {
		return json.RawMessage(r.Body)
	}
	return string(r.Body)
}

// UpstreamError is returned when the upstream answers with a non-2xx status.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return e.Message
}

// Envelope is the response shape every route writes.
type Envelope struct {
	Result any    `json:"result,omitempty"`
	Errmsg string `json:"errmsg,omitempty"`
	Code   int    `json:"code"`
}

// OK wraps a successful result.
func OK(result any) Envelope {
	return Envelope{Result: result, Code: CodeOK}
}

// Fail wraps an error message.
func Fail(errmsg string) Envelope {
	return Envelope{Errmsg: errmsg, Code: CodeError}
}

// MarshalJSON keeps result present on success even when it is a zero value
// such as false or an empty list, and absent on failure.
func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Code != CodeOK {
		return json.Marshal(struct {
			Errmsg string `json:"errmsg"`
			Code   int    `json:"code"`
		}{e.Errmsg, e.Code})
	}
	result := e.Result
	if result == nil {
		result = json.RawMessage("null")
	}
	return json.Marshal(struct {
		Result any `json:"result"`
		Code   int `json:"code"`
	}{result, e.Code})
}
