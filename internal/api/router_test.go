package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/expensely/internal/app"
	iauth "github.com/charlesng35/expensely/internal/auth"
	"github.com/charlesng35/expensely/internal/database/testutil"
	"github.com/charlesng35/expensely/internal/monitoring"
)

func newTestRouter(t *testing.T, mutate func(*app.Config, *Dependencies)) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "router-test-secret-with-32-bytes!!", Issuer: "test", AccessTokenTTL: 15 * time.Minute})
	require.NoError(t, err)
	verifier, err := iauth.NewVerifier(jwtSvc)
	require.NoError(t, err)

	cfg := &app.Config{
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
	}
	deps := Dependencies{}
	if mutate != nil {
		mutate(cfg, &deps)
	}

	router, err := NewRouter(db, verifier, cfg, deps)
	require.NoError(t, err)
	return router
}

func serve(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_PublicAndProtectedRoutes(t *testing.T) {
	router := newTestRouter(t, nil)

	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health").Code)
	require.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/api/auth/me").Code)
	require.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/api/expenses").Code)
	require.Equal(t, http.StatusUnauthorized, serve(router, http.MethodPost, "/api/companies").Code)
	require.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/api/nowhere").Code)

	metrics := serve(router, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, metrics.Code)
	require.Contains(t, metrics.Body.String(), `expensely_api_latency_seconds_count{method="GET",path="/health",status="200"}`)
}

func TestRouter_ReadinessReflectsChecks(t *testing.T) {
	manager := monitoring.NewHealthManager()
	manager.RegisterReadiness(monitoring.NewCheck("cache", func(context.Context) monitoring.ProbeResult {
		return monitoring.ResultFromError("cache", errors.New("connection refused"), time.Millisecond)
	}))

	router := newTestRouter(t, func(_ *app.Config, deps *Dependencies) { deps.Health = manager })

	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health").Code)

	ready := serve(router, http.MethodGet, "/health/ready")
	require.Equal(t, http.StatusServiceUnavailable, ready.Code)
	require.True(t, strings.Contains(ready.Body.String(), "connection refused"), ready.Body.String())
}

func TestRouter_DisabledSurfaces(t *testing.T) {
	router := newTestRouter(t, func(cfg *app.Config, _ *Dependencies) {
		cfg.Monitoring = app.MonitoringConfig{}
	})

	require.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/health").Code)
	require.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/metrics").Code)
}

func TestNewRouter_RequiresDependencies(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "router-test-secret-with-32-bytes!!", Issuer: "test", AccessTokenTTL: time.Minute})
	require.NoError(t, err)
	verifier, err := iauth.NewVerifier(jwtSvc)
	require.NoError(t, err)

	_, err = NewRouter(nil, verifier, &app.Config{}, Dependencies{})
	require.Error(t, err)
	_, err = NewRouter(db, nil, &app.Config{}, Dependencies{})
	require.Error(t, err)
	_, err = NewRouter(db, verifier, nil, Dependencies{})
	require.Error(t, err)
}
