package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouter_CORS(t *testing.T) {
	tests := []struct {
		name            string
		origins         []string
		origin          string
		wantAllowOrigin string
		wantCredentials string
	}{
		{"default localhost origin", nil, "http://localhost:5173", "http://localhost:5173", "true"},
		{"default rejects other origins", nil, "http://evil.test", "", ""},
		{"configured origin", []string{"http://app.test"}, "http://app.test", "http://app.test", "true"},
		{"wildcard drops credentials", []string{"*"}, "http://any.test", "*", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServerWith(t, RouterOptions{CORSOrigins: tt.origins}, false)

			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			req.Header.Set("Origin", tt.origin)
			rr := httptest.NewRecorder()
			ts.router.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, tt.wantAllowOrigin, rr.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCredentials, rr.Header().Get("Access-Control-Allow-Credentials"))
		})
	}
}
