package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jorcase/exadocs/internal/api/handlers"
	"github.com/jorcase/exadocs/internal/config"
)

func testRouter() http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{CORSAllowedOrigins: []string{"https://exadocs.unsl.test"}}
	h := handlers.NewAPIHandler(handlers.NewHealthHandler(nil, nil, nil), handlers.Services{}, logger)
	return NewRouter(cfg, logger, h, nil)
}

func TestRouter_PublicEndpoints(t *testing.T) {
	router := testRouter()

	tests := []struct {
		path string
		want int
	}{
		{"/health/live", http.StatusOK},
		{"/health/ready", http.StatusServiceUnavailable},
		{"/metrics", http.StatusOK},
		{"/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rr.Code != tt.want {
				t.Errorf("код = %d, ожидается %d", rr.Code, tt.want)
			}
		})
	}
}

func TestRouter_APIWithoutTokenIsUnauthorized(t *testing.T) {
	rr := httptest.NewRecorder()
	testRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/files", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("код = %d, ожидается 401", rr.Code)
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/files", nil)
	req.Header.Set("Origin", "https://exadocs.unsl.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	testRouter().ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://exadocs.unsl.test" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
