package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"superstore-dashboard/internal/config"
	"superstore-dashboard/internal/metrics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestChain_Order(t *testing.T) {
	var calls []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls = append(calls, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(mark("outer"), mark("inner"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls = append(calls, "handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got := strings.Join(calls, ","); got != "outer,inner,handler" {
		t.Errorf("Expected outer,inner,handler, got %s", got)
	}
}

func TestRecovery(t *testing.T) {
	h := Chain(RequestID(), Recovery(testLogger()))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/home", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "INTERNAL_ERROR") {
		t.Errorf("Expected INTERNAL_ERROR body, got %s", w.Body.String())
	}
}

func TestRateLimit_PerClient(t *testing.T) {
	limiter := NewRateLimiter(config.SecurityConfig{
		EnableRateLimit: true,
		RateLimitRPS:    1,
		RateLimitBurst:  1,
	})
	h := RateLimit(limiter, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	request := func(addr string) int {
		r := httptest.NewRequest(http.MethodGet, "/health", nil)
		r.RemoteAddr = addr
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	if code := request("10.0.0.1:1000"); code != http.StatusOK {
		t.Errorf("Expected first request to pass, got %d", code)
	}
	if code := request("10.0.0.1:1001"); code != http.StatusTooManyRequests {
		t.Errorf("Expected second request from the same client to be limited, got %d", code)
	}
	if code := request("10.0.0.2:1000"); code != http.StatusOK {
		t.Errorf("Expected another client to pass, got %d", code)
	}
}

func TestMetrics_RouteLabel(t *testing.T) {
	recorder := metrics.New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/{view}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := Metrics(recorder)(mux)

	for _, path := range []string{"/api/home", "/api/sales", "/nowhere"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	// Both /api paths share one series; the miss is labelled unmatched.
	count, err := testutil.GatherAndCount(recorder.Registry(), "superstore_http_requests_total")
	if err != nil {
		t.Fatalf("GatherAndCount() error = %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 request series, got %d", count)
	}
}

func TestRateLimiter_ClientIP(t *testing.T) {
	limiter := NewRateLimiter(config.SecurityConfig{TrustedProxies: []string{"127.0.0.1"}})

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"direct peer", "10.0.0.7:5000", nil, "10.0.0.7"},
		{"spoofed header from untrusted peer", "10.0.0.7:5000", map[string]string{"X-Forwarded-For": "1.2.3.4"}, "10.0.0.7"},
		{"trusted proxy forwards first hop", "127.0.0.1:5000", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.1.1.1"}, "1.2.3.4"},
		{"trusted proxy with X-Real-IP", "127.0.0.1:5000", map[string]string{"X-Real-IP": "5.6.7.8"}, "5.6.7.8"},
		{"trusted proxy without headers", "127.0.0.1:5000", nil, "127.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/home", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := limiter.ClientIP(r); got != tt.want {
				t.Errorf("Expected client %s, got %s", tt.want, got)
			}
		})
	}
}

func TestRateLimiter_SweepsIdleClients(t *testing.T) {
	limiter := NewRateLimiter(config.SecurityConfig{EnableRateLimit: true, RateLimitRPS: 10, RateLimitBurst: 5})
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	limiter.lastSweep = now

	limiter.Allow("10.0.0.1")
	limiter.Allow("10.0.0.2")
	if got := limiter.Clients(); got != 2 {
		t.Fatalf("Expected 2 clients, got %d", got)
	}

	now = now.Add(limiterIdleTTL + time.Second)
	limiter.Allow("10.0.0.3")
	if got := limiter.Clients(); got != 1 {
		t.Errorf("Expected idle clients to be swept, got %d", got)
	}
}

func TestCORS(t *testing.T) {
	h := CORS(config.SecurityConfig{AllowedOrigins: []string{"http://localhost:8080"}})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantAllow  string
	}{
		{"allowed origin", http.MethodGet, "http://localhost:8080", http.StatusOK, "http://localhost:8080"},
		{"other origin", http.MethodGet, "http://evil.test", http.StatusOK, ""},
		{"preflight", http.MethodOptions, "http://localhost:8080", http.StatusNoContent, "http://localhost:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, "/api/home", nil)
			r.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Expected Access-Control-Allow-Origin %q, got %q", tt.wantAllow, got)
			}
		})
	}
}

func TestRecovery_AbortHandler(t *testing.T) {
	h := Recovery(testLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("Expected ErrAbortHandler to propagate, got %v", rec)
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sse/home", nil))
}
