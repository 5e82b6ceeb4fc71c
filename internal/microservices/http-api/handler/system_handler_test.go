package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"mooshihub/internal/microservices/http-api/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex(t *testing.T) {
	handler := NewSystemHandler(new(MockClientHub), nil)
	router := setupRouter()
	router.GET("/", handler.Index)

	req, _ := http.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Hello World", w.Body.String())
}

func TestHealth(t *testing.T) {
	hub := new(MockClientHub)
	hub.On("Count").Return(2)

	healthy := map[string]HealthCheck{
		"database": func(ctx context.Context) error { return nil },
	}
	degraded := map[string]HealthCheck{
		"database": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
	}

	for name, tc := range map[string]struct {
		checks     map[string]HealthCheck
		wantStatus int
		wantState  string
	}{
		"healthy":  {healthy, http.StatusOK, "ok"},
		"degraded": {degraded, http.StatusServiceUnavailable, "degraded"},
	} {
		t.Run(name, func(t *testing.T) {
			handler := NewSystemHandler(hub, tc.checks)
			router := setupRouter()
			router.GET("/health", handler.Health)

			req, _ := http.NewRequest("GET", "/health", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, tc.wantStatus, w.Code)
			var resp dto.HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.wantState, resp.Status)
			assert.Equal(t, 2, resp.Clients)
			assert.Equal(t, "ok", resp.Checks["database"])
		})
	}
}

func TestRoutesListing(t *testing.T) {
	handler := NewSystemHandler(new(MockClientHub), nil)
	router := setupRouter()
	router.GET("/", handler.Index)
	router.GET("/ws/:client_id", handler.Index)
	router.GET("/health", handler.Index)
	router.POST("/v1/invalidate", handler.Index)
	router.GET("/routes", handler.Routes(router))

	req, _ := http.NewRequest("GET", "/routes", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "• GET /health\n• GET /routes\n• POST /v1/invalidate", w.Body.String())
}
