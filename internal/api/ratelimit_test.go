package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIPLimiterAllow(t *testing.T) {
	l := newIPLimiter(0, 2)

	if !l.allow("10.0.0.1") || !l.allow("10.0.0.1") {
		t.Fatal("first two requests should pass the burst")
	}
	if l.allow("10.0.0.1") {
		t.Error("third request should be rejected with zero refill")
	}
	if !l.allow("10.0.0.2") {
		t.Error("a different IP has its own bucket")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "192.0.2.10:43210",
			want:       "192.0.2.10",
		},
		{
			name:       "x-real-ip ignored without trust",
			remoteAddr: "192.0.2.10:43210",
			headers:    map[string]string{"X-Real-IP": "203.0.113.5"},
			want:       "192.0.2.10",
		},
		{
			name:       "x-real-ip honored with trust",
			remoteAddr: "192.0.2.10:43210",
			headers:    map[string]string{"X-Real-IP": "203.0.113.5"},
			trustProxy: true,
			want:       "203.0.113.5",
		},
		{
			name:       "x-forwarded-for first entry",
			remoteAddr: "192.0.2.10:43210",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.6, 70.41.3.18"},
			trustProxy: true,
			want:       "203.0.113.6",
		},
		{
			name:       "non-ip header value falls through",
			remoteAddr: "192.0.2.10:43210",
			headers:    map[string]string{"X-Real-IP": "not-an-ip"},
			trustProxy: true,
			want:       "192.0.2.10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}

			if got := clientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
