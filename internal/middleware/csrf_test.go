package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/donorlink/internal/logger"
)

func TestCSRFMiddleware(t *testing.T) {
	const allowed = "http://localhost:4200"

	tests := []struct {
		name        string
		method      string
		origin      string
		fetchSite   string
		contentType string
		body        string
		want        int
	}{
		{"GETは検証しない", http.MethodGet, "http://evil.example.com", "cross-site", "", "", http.StatusOK},
		{"許可オリジンのJSON", http.MethodPost, allowed, "same-site", "application/json", `{}`, http.StatusOK},
		{"自ホストのオリジン", http.MethodPost, "http://bridge.local:8090", "", "application/json", `{}`, http.StatusOK},
		{"オリジンなしのCLI呼び出し", http.MethodDelete, "", "", "", "", http.StatusOK},
		{"他オリジン", http.MethodPost, "http://evil.example.com", "", "application/json", `{}`, http.StatusForbidden},
		{"cross-site", http.MethodPost, "", "cross-site", "application/json", `{}`, http.StatusForbidden},
		{"フォーム送信", http.MethodPost, "", "", "application/x-www-form-urlencoded", "a=b", http.StatusForbidden},
		{"charset付きJSON", http.MethodPut, allowed, "", "application/json; charset=utf-8", `{}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewCSRFMiddleware(allowed, logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "http://bridge.local:8090/api/donations", strings.NewReader(tt.body))
			if tt.body == "" {
				req.ContentLength = 0
			}
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.fetchSite != "" {
				req.Header.Set("Sec-Fetch-Site", tt.fetchSite)
			}
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
