package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractClientIP(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"direct", "203.0.113.7:5555", "", "", "203.0.113.7"},
		{"untrusted peer ignores forwarded", "203.0.113.7:5555", "198.51.100.1", "", "203.0.113.7"},
		{"trusted proxy uses first hop", "10.0.0.2:80", "198.51.100.1, 10.0.0.3", "", "198.51.100.1"},
		{"trusted proxy falls back to real ip", "127.0.0.1:80", "garbage", "198.51.100.9", "198.51.100.9"},
		{"unparsable remote addr", "not-an-ip", "", "", "not-an-ip"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := d.ExtractClientIP(r); got != tt.want {
				t.Fatalf("ExtractClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInspect(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name   string
		method string
		target string
		agent  string
		want   string
	}{
		{"normal api call", http.MethodGet, "/api/expenses?from=2025-01-01", "expensa-app/1.0", ""},
		{"description mentioning env", http.MethodGet, "/api/expenses?q=environment", "", ""},
		{"path traversal", http.MethodGet, "/api/../../etc/passwd", "", "path ../"},
		{"dotenv probe", http.MethodGet, "/.env", "", "path /.env"},
		{"php probe", http.MethodGet, "/wp-login.php", "", "path .php"},
		{"script in query", http.MethodGet, "/api/expenses?next=javascript:alert(1)", "", "query javascript:"},
		{"encoded sql in query", http.MethodGet, "/api/expenses?category_id=1%20UNION%20SELECT%201", "", "query union select"},
		{"scanner agent", http.MethodGet, "/", "sqlmap/1.7", "scanner sqlmap"},
		{"trace method", "TRACE", "/", "", "diagnostic method"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, nil)
			r.Header.Set("User-Agent", tt.agent)
			if got := d.Inspect(r); got != tt.want {
				t.Fatalf("Inspect = %q, want %q", got, tt.want)
			}
		})
	}
	if d.GetMetrics().SuspiciousRequests != 7 {
		t.Fatalf("suspicious count = %d", d.GetMetrics().SuspiciousRequests)
	}
}

func TestDetectorMiddleware_BlocksDiagnosticMethods(t *testing.T) {
	d := NewDetector()
	called := false
	h := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("TRACE", "/api/expenses", nil))
	if rr.Code != http.StatusMethodNotAllowed || called {
		t.Fatalf("TRACE: status=%d called=%v", rr.Code, called)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/.git/config", nil))
	if !called {
		t.Fatal("suspicious GET should still reach the handler")
	}
	if d.GetMetrics().BlockedRequests != 1 {
		t.Fatalf("blocked = %d", d.GetMetrics().BlockedRequests)
	}
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/categories", nil))
	for name, want := range map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"Cache-Control":           "no-store",
	} {
		if got := rr.Header().Get(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be sent over plain HTTP")
	}

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	req.TLS = &tls.ConnectionState{}
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("HSTS = %q", got)
	}
}

func TestCORS(t *testing.T) {
	called := false
	h := CORS("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/api/splitwise/groups", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" || called {
		t.Fatalf("preflight: status=%d body=%q called=%v", rr.Code, rr.Body.String(), called)
	}
	want := map[string]string{
		"Access-Control-Allow-Origin":   "*",
		"Access-Control-Allow-Headers":  "Authorization, Content-Type, apikey, X-Client-Info, x-supabase-auth",
		"Access-Control-Allow-Methods":  "GET, POST, PUT, DELETE, OPTIONS",
		"Access-Control-Expose-Headers": "Content-Range, X-Content-Range",
	}
	for name, v := range want {
		if got := rr.Header().Get(name); got != v {
			t.Errorf("%s = %q, want %q", name, got, v)
		}
	}

	rr = httptest.NewRecorder()
	CORS("https://app.example")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusTeapot {
		t.Fatalf("non-preflight status = %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "https://app.example" || rr.Header().Get("Vary") != "Origin" {
		t.Fatalf("headers = %v", rr.Header())
	}
}
