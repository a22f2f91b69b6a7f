package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/fxamacker/cbor/v2"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/janisto/content-api/internal/config"
	"github.com/janisto/content-api/internal/http/health"
)

const greeting = `{"message":"Hello, World!"}`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse()
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return cfg
}

func testServer(t *testing.T) http.Handler {
	t.Helper()
	return testServerWith(t, testConfig(t))
}

func testServerWith(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	handler, err := newHandler(cfg, prometheus.NewRegistry(), "test")
	if err != nil {
		t.Fatalf("newHandler: %v", err)
	}
	return handler
}

func serve(srv http.Handler, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	srv.ServeHTTP(resp, req)
	return resp
}

func TestGreetingEndpoints(t *testing.T) {
	srv := testServer(t)

	tests := []struct {
		name   string
		method string
		target string
	}{
		{"root", http.MethodGet, "/"},
		{"root again", http.MethodGet, "/"},
		{"content", http.MethodPost, "/content?interests=music"},
		{"content empty interests", http.MethodPost, "/content?interests="},
		{"content unicode interests", http.MethodPost, "/content?interests=%E9%9F%B3%E6%A5%BD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := serve(srv, tt.method, tt.target, nil)

			if resp.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.Code)
			}
			if ct := resp.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("expected application/json, got %q", ct)
			}
			if body := strings.TrimSpace(resp.Body.String()); body != greeting {
				t.Fatalf("expected %s, got %s", greeting, body)
			}
		})
	}
}

func TestContentWithoutInterestsIsUnprocessable(t *testing.T) {
	srv := testServer(t)
	resp := serve(srv, http.MethodPost, "/content", nil)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("expected application/problem+json, got %q", ct)
	}
}

func TestHealth(t *testing.T) {
	srv := testServer(t)
	resp := serve(srv, http.MethodGet, "/health", map[string]string{"Accept": "application/json"})

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", resp.Code)
	}

	var h health.Response
	if err := json.Unmarshal(resp.Body.Bytes(), &h); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if h.Status != "healthy" || h.Version != "test" {
		t.Fatalf("unexpected health payload: %+v", h)
	}
}

func TestNotFoundReturnsProblemDetails(t *testing.T) {
	srv := testServer(t)
	resp := serve(srv, http.MethodGet, "/missing", nil)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("expected application/problem+json content type, got %q", ct)
	}

	var problem huma.ErrorModel
	if err := json.Unmarshal(resp.Body.Bytes(), &problem); err != nil {
		t.Fatalf("failed to unmarshal 404 response: %v", err)
	}
	if problem.Status != http.StatusNotFound || problem.Detail != "resource not found" {
		t.Fatalf("unexpected problem: %+v", problem)
	}
}

func TestMethodNotAllowedReturnsProblemDetails(t *testing.T) {
	srv := testServer(t)
	resp := serve(srv, http.MethodGet, "/content", nil)

	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", resp.Code)
	}
	if allow := resp.Header().Get("Allow"); allow != http.MethodPost {
		t.Fatalf("expected Allow: POST, got %q", allow)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("expected application/problem+json content type, got %q", ct)
	}
}

func TestAcceptNegotiation(t *testing.T) {
	srv := testServer(t)

	tests := []struct {
		name   string
		accept string
		want   string
	}{
		{"unknown type falls back to JSON", "text/plain", "application/json"},
		{"wildcard all", "*/*", "application/json"},
		{"application wildcard", "application/*", "application/json"},
		{"no accept header", "", "application/json"},
		{"cbor", "application/cbor", "application/cbor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.accept != "" {
				headers["Accept"] = tt.accept
			}
			resp := serve(srv, http.MethodGet, "/", headers)

			if resp.Code != http.StatusOK {
				t.Fatalf("expected 200 OK, got %d", resp.Code)
			}
			if ct := resp.Header().Get("Content-Type"); ct != tt.want {
				t.Fatalf("expected %s, got %q", tt.want, ct)
			}

			var payload map[string]string
			if tt.want == "application/cbor" {
				if err := cbor.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
					t.Fatalf("cbor unmarshal: %v", err)
				}
			} else if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
				t.Fatalf("json unmarshal: %v", err)
			}
			if payload["message"] != "Hello, World!" {
				t.Fatalf("unexpected payload %v", payload)
			}
		})
	}
}

func TestMiddlewareStackHeaders(t *testing.T) {
	srv := testServer(t)
	resp := serve(srv, http.MethodPost, "/content?interests=go", map[string]string{
		"Origin":                       "https://example.com",
		chimiddleware.RequestIDHeader: "stack-req-1",
	})

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if got := resp.Header().Get(chimiddleware.RequestIDHeader); got != "stack-req-1" {
		t.Fatalf("expected request ID echoed, got %q", got)
	}
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard CORS origin, got %q", got)
	}
	if got := resp.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected security headers, got X-Content-Type-Options %q", got)
	}
	vary := strings.Join(resp.Header().Values("Vary"), ",")
	if !strings.Contains(vary, "Accept") || !strings.Contains(vary, "Origin") {
		t.Fatalf("expected Vary to include Accept and Origin, got %q", vary)
	}
}

func TestCORSOriginsFromConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.CORSOrigins = []string{"https://app.example.com"}
	srv := testServerWith(t, cfg)

	allowed := serve(srv, http.MethodGet, "/", map[string]string{"Origin": "https://app.example.com"})
	if got := allowed.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("expected configured origin, got %q", got)
	}
	denied := serve(srv, http.MethodGet, "/", map[string]string{"Origin": "https://other.example.com"})
	if got := denied.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no CORS origin, got %q", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t)
	serve(srv, http.MethodGet, "/", nil)
	serve(srv, http.MethodPost, "/content", nil)

	resp := serve(srv, http.MethodGet, "/metrics", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	body := resp.Body.String()
	for _, want := range []string{
		`http_requests_total{method="GET",route="/",status="200"} 1`,
		`http_requests_total{method="POST",route="/content",status="422"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics output:\n%s", want, body)
		}
	}
	if strings.Contains(body, `route="/metrics"`) {
		t.Fatal("metrics scrapes must not be counted")
	}
	if resp.Header().Get("X-Frame-Options") != "" {
		t.Fatal("expected security headers to be skipped on the metrics path")
	}
}

func TestMetricsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = false
	srv := testServerWith(t, cfg)

	if resp := serve(srv, http.MethodGet, "/metrics", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when metrics are disabled, got %d", resp.Code)
	}
}

func TestOpenAPIDocument(t *testing.T) {
	srv := testServer(t)

	docs := serve(srv, http.MethodGet, "/api-docs", nil)
	if docs.Code != http.StatusOK {
		t.Fatalf("expected docs page 200, got %d", docs.Code)
	}

	resp := serve(srv, http.MethodGet, "/openapi.json", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var doc struct {
		Paths map[string]map[string]struct {
			OperationID string `json:"operationId"`
			Parameters  []struct {
				Name     string `json:"name"`
				In       string `json:"in"`
				Required bool   `json:"required"`
			} `json:"parameters"`
			Responses map[string]struct {
				Content map[string]json.RawMessage `json:"content"`
			} `json:"responses"`
		} `json:"paths"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &doc); err != nil {
		t.Fatalf("unmarshal openapi: %v", err)
	}

	if got := doc.Paths["/"]["get"].OperationID; got != "read-root" {
		t.Fatalf("expected read-root, got %q", got)
	}
	post := doc.Paths["/content"]["post"]
	if post.OperationID != "get-content" {
		t.Fatalf("expected get-content, got %q", post.OperationID)
	}
	if len(post.Parameters) != 1 || post.Parameters[0].Name != "interests" || !post.Parameters[0].Required {
		t.Fatalf("expected required interests parameter, got %+v", post.Parameters)
	}
	if _, ok := post.Responses["200"].Content["application/cbor"]; !ok {
		t.Fatalf("expected application/cbor response content, got %v", post.Responses["200"].Content)
	}
}

func TestNewServerUsesConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Port = 9090
	cfg.Server.ReadTimeout = 3 * time.Second
	cfg.Server.WriteTimeout = 7 * time.Second

	srv := newServer(cfg, http.NotFoundHandler())

	if srv.Addr != ":9090" {
		t.Errorf("expected addr :9090, got %q", srv.Addr)
	}
	if srv.ReadTimeout != 3*time.Second {
		t.Errorf("expected ReadTimeout 3s, got %v", srv.ReadTimeout)
	}
	if srv.ReadHeaderTimeout != cfg.Server.ReadHeaderTimeout {
		t.Errorf("expected ReadHeaderTimeout %v, got %v", cfg.Server.ReadHeaderTimeout, srv.ReadHeaderTimeout)
	}
	if srv.WriteTimeout != 7*time.Second {
		t.Errorf("expected WriteTimeout 7s, got %v", srv.WriteTimeout)
	}
	if srv.IdleTimeout != cfg.Server.IdleTimeout {
		t.Errorf("expected IdleTimeout %v, got %v", cfg.Server.IdleTimeout, srv.IdleTimeout)
	}
	if srv.MaxHeaderBytes != 64<<10 {
		t.Errorf("expected MaxHeaderBytes 64KB, got %d", srv.MaxHeaderBytes)
	}
}

func TestServerShutdown(t *testing.T) {
	srv := newServer(testConfig(t), testServer(t))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	listenErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}

	select {
	case err := <-listenErr:
		t.Fatalf("unexpected listen error after shutdown: %v", err)
	default:
	}
}

func TestVersionVariable(t *testing.T) {
	if Version != "dev" {
		t.Errorf("expected default Version 'dev', got %q", Version)
	}
}
