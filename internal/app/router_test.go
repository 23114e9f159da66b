package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insiderwatch/insiderwatch/internal/alerts"
	"github.com/insiderwatch/insiderwatch/internal/observability"
	"github.com/insiderwatch/insiderwatch/internal/risk"
	_ "github.com/insiderwatch/insiderwatch/testing"
)

type emptyAlerts struct{}

func (emptyAlerts) ListAlerts(_ context.Context, _ risk.AlertFilter) ([]risk.Alert, error) {
	return nil, nil
}

func newTestRouter(t *testing.T, cfg *Config) http.Handler {
	t.Helper()
	return NewRouter(RouterParams{
		Config:        cfg,
		AlertsHandler: alerts.NewHandler(nil, alerts.NewService(emptyAlerts{})),
		Metrics:       observability.NewMetrics(),
	})
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t, &Config{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"SECaaS Insider Threat Detection","version":"1.0.0"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestRouterMountsDomainRoutesAndMetrics(t *testing.T) {
	router := newTestRouter(t, &Config{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/getAlerts", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `insiderwatch_http_requests_total{code="200",route="/getAlerts"} 1`))
}

func TestRouterSkipsMissingHandlers(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t, &Config{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/logActivity", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimitPerIP(t *testing.T) {
	router := newTestRouter(t, &Config{RateLimitPerMinute: 2})
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "198.51.100.1:5000"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
