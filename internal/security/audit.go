package security

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/expensely/internal/app"
	"github.com/charlesng35/expensely/internal/models"
)

// CheckStatus captures the outcome of a security audit check.
type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusWarn CheckStatus = "warn"
	StatusFail CheckStatus = "fail"
)

// Check contains the result of a single audit verification.
type Check struct {
	ID          string      `json:"id"`
	Status      CheckStatus `json:"status"`
	Message     string      `json:"message"`
	Remediation string      `json:"remediation,omitempty"`
	Details     any         `json:"details,omitempty"`
}

// Result aggregates all checks with a simple status summary.
type Result struct {
	CheckedAt time.Time      `json:"checked_at"`
	Checks    []Check        `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// Failed reports whether any check failed.
func (r Result) Failed() bool {
	return r.Summary[string(StatusFail)] > 0
}

const maxRecommendedTokenTTL = 24 * time.Hour

// AuditService evaluates the security posture of the configuration and the
// ownership invariants of stored companies. It runs once at start-up.
type AuditService struct {
	db  *gorm.DB
	cfg *app.Config
	now func() time.Time
}

// NewAuditService constructs the audit service. Missing inputs degrade the
// affected checks to warnings.
func NewAuditService(db *gorm.DB, cfg *app.Config) *AuditService {
	return &AuditService{
		db:  db,
		cfg: cfg,
		now: time.Now,
	}
}

// WithClock overrides the clock used in results (primarily for testing).
func (s *AuditService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Run executes all audit checks and returns their outcome.
func (s *AuditService) Run(ctx context.Context) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	checks := []Check{
		s.checkCompanyOwnership(ctx),
		s.checkJWTSecret(),
		s.checkTokenTTL(),
		s.checkExtractionTransport(),
		s.checkRateLimits(),
	}

	summary := map[string]int{
		string(StatusPass): 0,
		string(StatusWarn): 0,
		string(StatusFail): 0,
	}
	for _, check := range checks {
		summary[string(check.Status)]++
	}

	return Result{
		CheckedAt: s.now().UTC(),
		Checks:    checks,
		Summary:   summary,
	}
}

func configMissing(id string) Check {
	return Check{
		ID:          id,
		Status:      StatusWarn,
		Message:     "Configuration not loaded; check skipped.",
		Remediation: "Load configuration before running the security audit.",
	}
}

// checkCompanyOwnership verifies that every company owner is a member of that
// company holding the owner role.
func (s *AuditService) checkCompanyOwnership(ctx context.Context) Check {
	const id = "company_ownership"
	if s.db == nil {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Database unavailable; unable to verify company ownership.",
			Remediation: "Ensure database connectivity before running the audit.",
		}
	}

	var orphaned []string
	err := s.db.WithContext(ctx).
		Model(&models.Company{}).
		Joins("LEFT JOIN users ON users.id = companies.owner_id").
		Where("users.id IS NULL OR users.company_id IS NULL OR users.company_id <> companies.id OR users.role <> ?", models.RoleOwner).
		Pluck("companies.id", &orphaned).Error
	if err != nil {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Could not verify company ownership: %v", err),
			Remediation: "Retry after resolving database errors.",
		}
	}

	if len(orphaned) > 0 {
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     fmt.Sprintf("%d companies have an owner who is not an owner member.", len(orphaned)),
			Remediation: "Reassign ownership of the listed companies to a current member.",
			Details:     map[string]any{"companies": orphaned},
		}
	}

	return Check{
		ID:      id,
		Status:  StatusPass,
		Message: "Every company has a valid owner.",
	}
}

func (s *AuditService) checkJWTSecret() Check {
	const id = "jwt_secret_strength"
	if s.cfg == nil {
		return configMissing(id)
	}

	length := len(strings.TrimSpace(s.cfg.Auth.JWT.Secret))
	switch {
	case length == 0:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     "Missing JWT signing secret.",
			Remediation: "Provide a cryptographically secure signing secret (>= 32 bytes).",
		}
	case length < 32:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     fmt.Sprintf("JWT signing secret is too short (%d bytes).", length),
			Remediation: "Use a randomly generated secret of at least 32 bytes.",
		}
	case length < 48:
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("JWT signing secret is %d bytes. Consider increasing to 48+ bytes.", length),
			Remediation: "Increase the length of EXPENSELY_AUTH_JWT_SECRET to at least 48 bytes.",
			Details:     map[string]any{"length": length},
		}
	default:
		return Check{
			ID:      id,
			Status:  StatusPass,
			Message: fmt.Sprintf("JWT signing secret length is %d bytes.", length),
			Details: map[string]any{"length": length},
		}
	}
}

func (s *AuditService) checkTokenTTL() Check {
	const id = "access_token_ttl"
	if s.cfg == nil {
		return configMissing(id)
	}

	ttl := s.cfg.Auth.JWT.TTL
	if ttl <= 0 {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Access token TTL is not configured; using default duration.",
			Remediation: "Set EXPENSELY_AUTH_JWT_ACCESS_TOKEN_TTL to control session lifetime.",
		}
	}
	if ttl > maxRecommendedTokenTTL {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Access token TTL (%s) exceeds recommended maximum (%s).", ttl, maxRecommendedTokenTTL),
			Remediation: "Tokens cannot be revoked; keep their lifetime at a day or less.",
			Details:     map[string]any{"ttl": ttl.String()},
		}
	}
	return Check{
		ID:      id,
		Status:  StatusPass,
		Message: fmt.Sprintf("Access token TTL is %s.", ttl),
		Details: map[string]any{"ttl": ttl.String()},
	}
}

// checkExtractionTransport flags receipt images leaving the host in clear text.
func (s *AuditService) checkExtractionTransport() Check {
	const id = "extraction_transport"
	if s.cfg == nil {
		return configMissing(id)
	}

	cfg := s.cfg.Extraction
	if !cfg.Enabled() {
		return Check{ID: id, Status: StatusPass, Message: "Receipt extraction is disabled."}
	}

	endpoint, err := url.Parse(strings.TrimSpace(cfg.Endpoint))
	if err != nil || endpoint.Host == "" {
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     "Extraction endpoint is not a valid URL.",
			Remediation: "Set EXPENSELY_EXTRACTION_ENDPOINT to the full chat completions URL.",
		}
	}
	if endpoint.Scheme != "https" && !isLoopback(endpoint.Hostname()) {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Receipts are sent to %s over %s.", endpoint.Host, endpoint.Scheme),
			Remediation: "Use an https endpoint for remote extraction models.",
			Details:     map[string]any{"host": endpoint.Host},
		}
	}
	if strings.TrimSpace(cfg.APIKey) == "" && !isLoopback(endpoint.Hostname()) {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Extraction endpoint is remote but no API key is configured.",
			Remediation: "Set EXPENSELY_EXTRACTION_API_KEY.",
		}
	}
	return Check{
		ID:      id,
		Status:  StatusPass,
		Message: fmt.Sprintf("Receipts are sent to %s.", endpoint.Host),
	}
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *AuditService) checkRateLimits() Check {
	const id = "rate_limits"
	if s.cfg == nil {
		return configMissing(id)
	}

	rl := s.cfg.RateLimit
	var disabled []string
	if rl.Window <= 0 || rl.Auth <= 0 {
		disabled = append(disabled, "auth")
	}
	if rl.Window <= 0 || rl.Requests <= 0 {
		disabled = append(disabled, "api")
	}
	if len(disabled) > 0 {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Rate limiting is disabled for: %s.", strings.Join(disabled, ", ")),
			Remediation: "Configure rate_limit.requests, rate_limit.auth_requests and rate_limit.window.",
			Details:     map[string]any{"disabled": disabled},
		}
	}
	return Check{
		ID:      id,
		Status:  StatusPass,
		Message: fmt.Sprintf("Rate limits: %d login attempts and %d API requests per %s.", rl.Auth, rl.Requests, rl.Window),
	}
}
