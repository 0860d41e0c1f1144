package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler(t *testing.T) {
	handler := NewHandler("v1.0.0", time.Second)
	handler.RegisterChecker("storage", NewSimpleChecker("storage", func(context.Context) error {
		return nil
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var response Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, StatusHealthy, response.Status)
	assert.Equal(t, "v1.0.0", response.Version)
	assert.Len(t, response.Checks, 1)
}

func TestHealthHandlerUnhealthy(t *testing.T) {
	handler := NewHandler("v1.0.0", time.Second)
	handler.RegisterChecker("storage", NewSimpleChecker("storage", func(context.Context) error {
		return errors.New("server selection timeout")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var response Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "server selection timeout", response.Checks["storage"].Message)
}

func TestChecksAreBoundedByTimeout(t *testing.T) {
	handler := NewHandler("", 10*time.Millisecond)
	handler.RegisterChecker("slow", NewSimpleChecker("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	w := httptest.NewRecorder()
	handler.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not ready", w.Body.String())
}

func TestLivenessAndReadiness(t *testing.T) {
	w := httptest.NewRecorder()
	LivenessHandler(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	handler := NewHandler("", time.Second)
	w = httptest.NewRecorder()
	handler.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", w.Body.String())
}
