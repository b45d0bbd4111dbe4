package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/expensely/internal/api"
	"github.com/charlesng35/expensely/internal/app"
	iauth "github.com/charlesng35/expensely/internal/auth"
	sharedtestutil "github.com/charlesng35/expensely/internal/database/testutil"
	"github.com/charlesng35/expensely/internal/middleware"
	"github.com/charlesng35/expensely/internal/services"
	"github.com/charlesng35/expensely/pkg/response"
)

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Router   *gin.Engine
	Verifier *iauth.Verifier
	Config   *app.Config
}

// Option adjusts the router dependencies before the Env is built.
type Option func(*app.Config, *api.Dependencies)

// WithExtractor enables receipt extraction backed by extractor.
func WithExtractor(extractor services.Extractor) Option {
	return func(_ *app.Config, deps *api.Dependencies) { deps.Extractor = extractor }
}

// WithRateLimit limits authenticated routes to requests per minute.
func WithRateLimit(requests int) Option {
	return func(cfg *app.Config, _ *api.Dependencies) { cfg.RateLimit.Requests = requests }
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...Option) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	cfg := &app.Config{
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: "test-suite-super-secret-key-32-bytes!!",
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
		},
		Invitations: app.InvitationConfig{TTL: 24 * time.Hour},
		RateLimit:   app.RateLimitConfig{Window: time.Minute},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
	}
	deps := api.Dependencies{RateStore: middleware.NewMemoryRateStore()}
	for _, opt := range opts {
		opt(cfg, &deps)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)
	verifier, err := iauth.NewVerifier(jwtSvc)
	require.NoError(t, err)

	router, err := api.NewRouter(db, verifier, cfg, deps)
	require.NoError(t, err)

	return &Env{
		T:        t,
		DB:       db,
		Router:   router,
		Verifier: verifier,
		Config:   cfg,
	}
}

// ProfilePayload captures the profile fields returned from auth and profile endpoints.
type ProfilePayload struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	CompanyID   *string  `json:"company_id"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// AuthResult bundles the JSON response from register and login.
type AuthResult struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresIn   int            `json:"expires_in"`
	User        ProfilePayload `json:"user"`
}

// Register creates an account with a unique email derived from name and returns its token.
func (e *Env) Register(name string) AuthResult {
	e.T.Helper()

	payload := map[string]string{
		"email":        name + "-" + uuid.NewString()[:8] + "@example.com",
		"password":     "Sup3rSecret!",
		"display_name": name,
	}
	w := e.Request(http.MethodPost, "/api/auth/register", payload, "")
	require.Equal(e.T, http.StatusCreated, w.Code, w.Body.String())

	var result AuthResult
	DecodeInto(e.T, DecodeResponse(e.T, w).Data, &result)
	require.NotEmpty(e.T, result.AccessToken)
	return result
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(e.T, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.Do(req, token)
}

// Upload posts a multipart form with a single file field.
func (e *Env) Upload(path, field, filename string, content []byte, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(e.T, err)
	_, err = part.Write(content)
	require.NoError(e.T, err)
	require.NoError(e.T, writer.Close())

	req, err := http.NewRequest(http.MethodPost, path, &buf)
	require.NoError(e.T, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return e.Do(req, token)
}

// Do serves req with an optional bearer token.
func (e *Env) Do(req *http.Request, token string) *httptest.ResponseRecorder {
	e.T.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
