package security

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/expensely/internal/app"
	testutil "github.com/charlesng35/expensely/internal/database/testutil"
	"github.com/charlesng35/expensely/internal/models"
)

func findCheck(t *testing.T, result Result, id string) Check {
	t.Helper()
	for _, check := range result.Checks {
		if check.ID == id {
			return check
		}
	}
	t.Fatalf("check %q not found", id)
	return Check{}
}

func healthyConfig() *app.Config {
	return &app.Config{
		Auth: app.AuthConfig{JWT: app.JWTSettings{
			Secret: "0123456789abcdef0123456789abcdef0123456789abcdef",
			Issuer: "test-suite",
			TTL:    time.Hour,
		}},
		Extraction: app.ExtractionConfig{
			Endpoint: "https://api.example.com/v1/chat/completions",
			APIKey:   "sk-test",
		},
		RateLimit: app.RateLimitConfig{Requests: 120, Auth: 10, Window: time.Minute},
	}
}

func TestAuditServiceRun(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	companyID := "8f4e4a0c-3a57-4bd1-a1a8-0f0c1f1f6b11"
	owner := &models.User{Email: "owner@example.com", Password: "hashed", CompanyID: &companyID, Role: models.RoleOwner}
	require.NoError(t, db.Create(owner).Error)
	company := &models.Company{BaseModel: models.BaseModel{ID: companyID}, Name: "Acme", OwnerID: owner.ID}
	require.NoError(t, db.Create(company).Error)

	svc := NewAuditService(db, healthyConfig())
	fixed := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return fixed })

	result := svc.Run(context.Background())
	require.Equal(t, fixed, result.CheckedAt)
	require.Len(t, result.Checks, 5)
	require.Equal(t, 5, result.Summary[string(StatusPass)], result.Checks)
	require.False(t, result.Failed())
}

func TestAuditServiceDetectsOrphanedCompany(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	demoted := &models.User{Email: "former@example.com", Password: "hashed"}
	require.NoError(t, db.Create(demoted).Error)
	require.NoError(t, db.Create(&models.Company{Name: "Orphan", OwnerID: demoted.ID}).Error)

	result := NewAuditService(db, healthyConfig()).Run(context.Background())

	check := findCheck(t, result, "company_ownership")
	require.Equal(t, StatusFail, check.Status)
	require.True(t, result.Failed())
}

func TestAuditServiceConfigWarnings(t *testing.T) {
	cfg := &app.Config{
		Auth: app.AuthConfig{JWT: app.JWTSettings{Secret: "short", TTL: 72 * time.Hour}},
		Extraction: app.ExtractionConfig{
			Endpoint: "http://models.internal:8080/v1/chat/completions",
		},
	}

	result := NewAuditService(nil, cfg).Run(context.Background())

	require.Equal(t, StatusWarn, findCheck(t, result, "company_ownership").Status)
	require.Equal(t, StatusFail, findCheck(t, result, "jwt_secret_strength").Status)
	require.Equal(t, StatusWarn, findCheck(t, result, "access_token_ttl").Status)
	require.Equal(t, StatusWarn, findCheck(t, result, "extraction_transport").Status)
	require.Equal(t, StatusWarn, findCheck(t, result, "rate_limits").Status)
}

func TestAuditServiceAllowsLocalModel(t *testing.T) {
	cfg := healthyConfig()
	cfg.Extraction = app.ExtractionConfig{Endpoint: "http://127.0.0.1:11434/v1/chat/completions"}

	result := NewAuditService(nil, cfg).Run(context.Background())
	require.Equal(t, StatusPass, findCheck(t, result, "extraction_transport").Status)
}
