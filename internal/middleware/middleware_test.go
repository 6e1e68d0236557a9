package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ashureev/promptrunner/internal/metrics"
)

func TestCORSWildcard(t *testing.T) {
	h := CORS(DefaultCORS)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/execute", nil))

	if w.Code != http.StatusTeapot {
		t.Fatalf("expected request to reach handler, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard origin, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got != "POST, OPTIONS" {
		t.Errorf("unexpected methods %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type" {
		t.Errorf("unexpected headers %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	called := false
	h := CORS(DefaultCORS)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/execute", nil))

	if called {
		t.Fatal("preflight must not reach the handler")
	}
	if w.Code != http.StatusOK || w.Body.Len() != 0 {
		t.Fatalf("expected empty 200, got %d %q", w.Code, w.Body.String())
	}
}

func TestCORSExplicitOrigin(t *testing.T) {
	h := CORS(CORSConfig{AllowedOrigins: []string{"https://app.example"}})(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected origin for disallowed caller: %q", got)
	}

	req.Header.Set("Origin", "https://app.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Errorf("expected echoed origin, got %q", got)
	}
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	collector := metrics.NewCollector("test")

	r := chi.NewRouter()
	r.Use(Metrics(collector))
	r.Get("/api/executions/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/executions/"+id, nil))
	}

	expected := `
# HELP test_http_requests_total Total number of HTTP requests
# TYPE test_http_requests_total counter
test_http_requests_total{method="GET",route="/api/executions/{id}",status="404"} 2
`
	if err := testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected), "test_http_requests_total"); err != nil {
		t.Fatal(err)
	}
}
