package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getJSON(t *testing.T, h http.Handler, path string, v any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
	return rec.Code
}

func TestHealthChecker_NilContext(t *testing.T) {
	h := NewHealthChecker(nil)

	var resp HealthResponse
	assert.Equal(t, http.StatusOK, getJSON(t, h.LivenessHandler(), "/healthz", &resp))
	assert.Equal(t, healthStatusOK, resp.Status)

	assert.Equal(t, http.StatusOK, getJSON(t, h.ReadinessHandler(), "/readyz", &resp))
	assert.Equal(t, healthStatusNoAccounts, resp.Checks["accounts"])

	h.SetReady(false)
	assert.False(t, h.IsReady())
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, h.ReadinessHandler(), "/readyz", &resp))
	assert.Equal(t, healthStatusNotReady, resp.Checks["ready"])
}

func TestHealthChecker_Readiness(t *testing.T) {
	sc := newTestServerContext(t, testConfig(t))
	h := NewHealthChecker(sc)

	var resp HealthResponse
	assert.Equal(t, http.StatusOK, getJSON(t, h.ReadinessHandler(), "/readyz", &resp))
	assert.Equal(t, healthStatusNoAccounts, resp.Checks["accounts"])

	addAccount(t, sc, testAccount)
	assert.Equal(t, http.StatusOK, getJSON(t, h.ReadinessHandler(), "/readyz", &resp))
	assert.Equal(t, "1", resp.Checks["accounts"])

	var detailed DetailedHealthResponse
	assert.Equal(t, http.StatusOK, getJSON(t, h.DetailedHealthHandler(), "/healthz/detailed", &detailed))
	assert.Equal(t, 1, detailed.Accounts)
	assert.Equal(t, "none", detailed.Mirror)

	require.NoError(t, sc.Shutdown())
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, h.ReadinessHandler(), "/readyz", &resp))
	assert.Equal(t, healthStatusShuttingDown, resp.Checks["shutdown"])
}

func TestHealthChecker_UnreadableStore(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.Accounts.File, []byte("{not json"), 0o600))
	h := NewHealthChecker(newTestServerContext(t, cfg))

	var resp HealthResponse
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, h.ReadinessHandler(), "/readyz", &resp))
	assert.Equal(t, healthStatusUnreadable, resp.Checks["accounts"])

	var detailed DetailedHealthResponse
	getJSON(t, h.DetailedHealthHandler(), "/healthz/detailed", &detailed)
	assert.Equal(t, -1, detailed.Accounts)
}
