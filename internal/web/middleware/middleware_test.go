package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/seconvert/internal/config"
)

func TestTrustedRealIP(t *testing.T) {
	mw := TrustedRealIP([]string{"10.0.0.0/8", "192.0.2.7", "not-an-ip"})

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"trusted cidr, real ip", "10.1.2.3:5000", map[string]string{"X-Real-IP": "203.0.113.9"}, "203.0.113.9"},
		{"trusted cidr, forwarded for", "10.1.2.3:5000", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.1.2.3"}, "203.0.113.9"},
		{"trusted single address", "192.0.2.7:80", map[string]string{"X-Real-IP": "198.51.100.1"}, "198.51.100.1"},
		{"untrusted peer", "198.51.100.2:80", map[string]string{"X-Real-IP": "203.0.113.9"}, "198.51.100.2:80"},
		{"trusted, garbage header", "10.1.2.3:5000", map[string]string{"X-Real-IP": "nope"}, "10.1.2.3:5000"},
		{"trusted, no header", "10.1.2.3:5000", nil, "10.1.2.3:5000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractIP(t *testing.T) {
	tests := []struct {
		addr string
		want net.IP
	}{
		{"192.0.2.1:8080", net.ParseIP("192.0.2.1")},
		{"[2001:db8::1]:443", net.ParseIP("2001:db8::1")},
		{"192.0.2.1", net.ParseIP("192.0.2.1")},
		{"garbage", nil},
	}
	for _, tt := range tests {
		if got := ExtractIP(tt.addr); !got.Equal(tt.want) {
			t.Errorf("ExtractIP(%q) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}

func TestAPIKeyAuth(t *testing.T) {
	cfg := &config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"alpha", "beta"}}
	h := APIKeyAuth(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name     string
		header   string
		value    string
		want     int
		wantCode string
	}{
		{"missing", "", "", http.StatusUnauthorized, "AUTH001"},
		{"wrong key", "X-API-Key", "gamma", http.StatusForbidden, "AUTH002"},
		{"header key", "X-API-Key", "beta", http.StatusNoContent, ""},
		{"bearer token", "Authorization", "Bearer alpha", http.StatusNoContent, ""},
		{"other scheme", "Authorization", "Basic alpha", http.StatusUnauthorized, "AUTH001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/schemas", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.wantCode == "" {
				return
			}
			var body map[string]string
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body["code"] != tt.wantCode {
				t.Errorf("code = %q, want %q", body["code"], tt.wantCode)
			}
		})
	}
}

func TestAPIKeyAuth_Disabled(t *testing.T) {
	h := APIKeyAuth(&config.SecurityConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })

	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(ConversionIDHeader, "conv-1")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream"))
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/convert/a/b", nil))

	line := buf.String()
	for _, want := range []string{"level=ERROR", "status=502", "bytes=8", "conversion_id=conv-1", "path=/api/convert/a/b"} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %q does not contain %q", line, want)
		}
	}
}

func TestLogger_ImplicitOK(t *testing.T) {
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })

	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	line := buf.String()
	for _, want := range []string{"level=INFO", "status=200", "bytes=0"} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %q does not contain %q", line, want)
		}
	}
	if strings.Contains(line, "conversion_id") {
		t.Errorf("log line %q has a conversion_id", line)
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := range 2 {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d denied", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Error("third request allowed")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("other client denied")
	}

	now = now.Add(time.Minute + time.Second)
	if !rl.Allow("10.0.0.1") {
		t.Error("request after window denied")
	}
	if len(rl.clients) != 1 {
		t.Errorf("clients = %d after sweep, want 1", len(rl.clients))
	}
}

func TestRateLimiter_Handler(t *testing.T) {
	h := NewRateLimiter(1, time.Minute).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 2)
	for i := range codes {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		codes[i] = w.Code
		if i == 1 {
			if got := w.Header().Get("Retry-After"); got != "60" {
				t.Errorf("Retry-After = %q, want 60", got)
			}
			if !strings.Contains(w.Body.String(), "RATE001") {
				t.Errorf("body = %s, want RATE001", w.Body.String())
			}
		}
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 429]", codes)
	}
}
