package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"ele-proxy-go/internal/client"
	"ele-proxy-go/internal/config"
	"ele-proxy-go/internal/model"
	"ele-proxy-go/internal/urlfmt"
)

func newTestForwarder(t *testing.T, baseURL string) *Forwarder {
	t.Helper()
	cfg := &config.Config{
		Upstream: config.UpstreamConfig{
			BaseURL:         baseURL,
			TimeoutSeconds:  10,
			IdleConnections: 10,
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f, err := NewForwarderForTest(client.NewElemeClient(cfg, logger, nil), cfg, logger)
	if err != nil {
		t.Fatalf("NewForwarderForTest: %v", err)
	}
	return f
}

func TestBuildUpstreamURL(t *testing.T) {
	f := &Forwarder{baseURL: "https://h5.ele.me/restapi"}

	mustParams := func(raw string) *urlfmt.Params {
		p, err := urlfmt.ParseParams(raw)
		if err != nil {
			t.Fatalf("ParseParams(%q): %v", raw, err)
		}
		return p
	}

	tests := []struct {
		name  string
		path  string
		query *urlfmt.Params
		want  string
	}{
		{
			name: "path only",
			path: "/eus/v1/users/42",
			want: "https://h5.ele.me/restapi/eus/v1/users/42",
		},
		{
			name: "missing leading slash",
			path: "bgs/poi/search_poi_nearby",
			want: "https://h5.ele.me/restapi/bgs/poi/search_poi_nearby",
		},
		{
			name:  "separate params",
			path:  "/promotion/v3/users/42/hongbaos",
			query: mustParams("offset=0&limit=20"),
			want:  "https://h5.ele.me/restapi/promotion/v3/users/42/hongbaos?offset=0&limit=20",
		},
		{
			name:  "params appended to hand-built query",
			path:  "/shopping/v2/menu?restaurant_id=1",
			query: mustParams("terminal=h5"),
			want:  "https://h5.ele.me/restapi/shopping/v2/menu?restaurant_id=1&terminal=h5",
		},
		{
			name:  "multi-valued params use bracket arrays",
			path:  "/x",
			query: mustParams("ids=1&ids=2"),
			want:  "https://h5.ele.me/restapi/x?ids[]=1&ids[]=2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.buildUpstreamURL(tt.path, tt.query); got != tt.want {
				t.Errorf("buildUpstreamURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestForward_HappyPath(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/restapi/eus/v1/users/42" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/restapi/eus/v1/users/42")
		}
		if got := r.Header.Get("Cookie"); got != "USERID=42" {
			t.Errorf("Cookie = %q, want %q", got, "USERID=42")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"user_id":42}`))
	}))
	defer upstream.Close()

	f := newTestForwarder(t, upstream.URL+"/restapi")

	resp, err := f.Forward(context.Background(), &model.UpstreamRequest{
		Method: http.MethodGet,
		Path:   "/eus/v1/users/42",
		Cookie: "USERID=42",
	})
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if string(resp.Body) != `{"user_id":42}` {
		t.Errorf("body = %q, want %q", string(resp.Body), `{"user_id":42}`)
	}
}

func TestForward_BodyAndQueryStaySeparate(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %q, want PUT", r.Method)
		}
		if r.URL.RawQuery != "flag=1" {
			t.Errorf("query = %q, want %q", r.URL.RawQuery, "flag=1")
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"name":"home"}` {
			t.Errorf("body = %q, want %q", string(body), `{"name":"home"}`)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer upstream.Close()

	f := newTestForwarder(t, upstream.URL)
	q := urlfmt.NewParams()
	q.Add("flag", "1")

	if _, err := f.Forward(context.Background(), &model.UpstreamRequest{
		Method: http.MethodPut,
		Path:   "/member/v1/users/42/addresses/7",
		Body:   map[string]any{"name": "home"},
		Query:  q,
	}); err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
}

func TestForward_NoBodyForGET(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if len(body) != 0 {
			t.Errorf("GET carried body %q", string(body))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	f := newTestForwarder(t, upstream.URL)
	if _, err := f.Forward(context.Background(), &model.UpstreamRequest{Method: http.MethodGet, Path: "/x"}); err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
}

func TestForward_UpstreamErrorMessage(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"message field", http.StatusBadRequest, `{"name":"VALIDATION_FAILED","message":"验证码错误"}`, "验证码错误"},
		{"no message field", http.StatusNotFound, `{"name":"NOT_FOUND"}`, "Request failed with status code 404"},
		{"empty message", http.StatusForbidden, `{"message":""}`, "Request failed with status code 403"},
		{"non-JSON body", http.StatusBadGateway, `<html>bad gateway</html>`, "Request failed with status code 502"},
		{"numeric message", http.StatusConflict, `{"message":409}`, "409"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer upstream.Close()

			f := newTestForwarder(t, upstream.URL)
			_, err := f.Forward(context.Background(), &model.UpstreamRequest{Method: http.MethodGet, Path: "/x"})
			if err == nil {
				t.Fatal("Forward() expected error, got nil")
			}

			var ue *model.UpstreamError
			if !errors.As(err, &ue) {
				t.Fatalf("Forward() error = %T, want *model.UpstreamError", err)
			}
			if ue.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", ue.StatusCode, tt.status)
			}
			if got := ErrorMessage(err); got != tt.wantMsg {
				t.Errorf("ErrorMessage() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestForward_TransportError(t *testing.T) {
	f := newTestForwarder(t, "http://127.0.0.1:1")

	_, err := f.Forward(context.Background(), &model.UpstreamRequest{Method: http.MethodGet, Path: "/x"})
	if err == nil {
		t.Fatal("Forward() expected error for unreachable host, got nil")
	}
	if ErrorMessage(err) == "" {
		t.Error("ErrorMessage() returned empty string for transport error")
	}
}

func TestForward_MethodNotAllowed(t *testing.T) {
	f := newTestForwarder(t, "http://127.0.0.1:1")

	_, err := f.Forward(context.Background(), &model.UpstreamRequest{Method: http.MethodPatch, Path: "/x"})
	if !errors.Is(err, ErrMethodNotAllowed) {
		t.Errorf("Forward() error = %v, want ErrMethodNotAllowed", err)
	}
}

func TestNewForwarder_AllowlistRejectsUnknownHost(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		Upstream: config.UpstreamConfig{BaseURL: "https://evil.com/restapi"},
	}
	_, err := NewForwarder(nil, cfg, logger)
	if err == nil {
		t.Fatal("NewForwarder() expected error for disallowed host, got nil")
	}
}

func TestNewForwarder_AllowlistAcceptsEleme(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		Upstream: config.UpstreamConfig{BaseURL: config.DefaultUpstreamURL},
	}
	f, err := NewForwarder(nil, cfg, logger)
	if err != nil {
		t.Fatalf("NewForwarder() error = %v", err)
	}
	if f.baseURL != "https://h5.ele.me/restapi" {
		t.Errorf("baseURL = %q, want %q", f.baseURL, "https://h5.ele.me/restapi")
	}
}
