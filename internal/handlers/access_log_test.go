package handlers

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lorry-backend/internal/websocket"
)

func TestAccessLogRedactsQueryToken(t *testing.T) {
	var logs bytes.Buffer
	handler := NewRouter(RouterDeps{
		Hub:       websocket.NewHub(),
		JWTSecret: testSecret,
		AccessLog: log.New(&logs, "", 0),
	})

	tests := []struct {
		name    string
		path    string
		wantURI string
	}{
		{"websocket handshake", "/ws?token=eyJSECRETJWT", "/ws?token=REDACTED"},
		{"other query params kept", "/health?token=eyJSECRETJWT&v=2", "/health?token=REDACTED&v=2"},
		{"no token", "/health?v=2", "/health?v=2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs.Reset()
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			line := logs.String()
			if strings.Contains(line, "eyJSECRETJWT") {
				t.Fatalf("access log leaked the token: %q", line)
			}
			if !strings.Contains(line, tt.wantURI) {
				t.Errorf("access log = %q, want it to contain %q", line, tt.wantURI)
			}
		})
	}
}

func TestAccessLogLeavesTokenForHandler(t *testing.T) {
	handler := NewRouter(RouterDeps{
		Hub:       websocket.NewHub(),
		JWTSecret: testSecret,
		AccessLog: log.New(&bytes.Buffer{}, "", 0),
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?token=eyJSECRETJWT", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	// a missing token would answer "Authorization header missing"
	if got := errorMessage(t, rec); got != "Invalid or expired token" {
		t.Errorf("message = %q, want the handler to have parsed the original token", got)
	}
}
