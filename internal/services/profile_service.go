package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/expensely/internal/auth"
	"github.com/charlesng35/expensely/internal/models"
	"github.com/charlesng35/expensely/internal/permissions"
	"github.com/charlesng35/expensely/pkg/crypto"
	"github.com/charlesng35/expensely/pkg/metrics"

	apperrors "github.com/charlesng35/expensely/pkg/errors"
)

// ErrProfileNotFound is returned when a verified identity has no stored profile.
var ErrProfileNotFound = apperrors.ErrNotFound.WithMessage("profile not found")

// RegisterInput captures the fields needed to create an account.
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
}

// ProfileService resolves verified identities to stored profiles.
type ProfileService struct {
	db    *gorm.DB
	audit *AuditService
	now   func() time.Time
}

// NewProfileService constructs a ProfileService.
func NewProfileService(db *gorm.DB, audit *AuditService) (*ProfileService, error) {
	if db == nil {
		return nil, errors.New("profile service: db is required")
	}
	return &ProfileService{db: db, audit: audit, now: time.Now}, nil
}

// Register creates a personal profile with a bcrypt password hash.
func (s *ProfileService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	email := normaliseEmail(input.Email)
	if email == "" || !validEmail(email) {
		return nil, apperrors.NewBadRequest("a valid email is required")
	}
	name := strings.TrimSpace(input.DisplayName)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	hashed, err := crypto.HashPassword(input.Password)
	if errors.Is(err, crypto.ErrPasswordTooShort) {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("password must be at least %d characters", crypto.MinPasswordLength))
	}
	if err != nil {
		return nil, fmt.Errorf("profile service: hash password: %w", err)
	}

	user := &models.User{
		Email:       email,
		DisplayName: name,
		Password:    hashed,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			metrics.AuthAttempts.WithLabelValues("register", "conflict").Inc()
			return nil, apperrors.NewConflict("an account with this email already exists")
		}
		return nil, fmt.Errorf("profile service: create user: %w", err)
	}

	metrics.AuthAttempts.WithLabelValues("register", "success").Inc()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   user.ID,
		Action:   "auth.register",
		Resource: user.ID,
		Result:   auditResultSuccess,
	})
	return user, nil
}

// Authenticate checks credentials and stamps the login time.
func (s *ProfileService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "email = ?", normaliseEmail(email)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.AuthAttempts.WithLabelValues("login", "failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("profile service: load user: %w", err)
	}
	if !crypto.VerifyPassword(user.Password, password) {
		metrics.AuthAttempts.WithLabelValues("login", "failure").Inc()
		recordAudit(s.audit, ctx, AuditEntry{
			UserID:   user.ID,
			Action:   "auth.login",
			Resource: user.ID,
			Result:   "failure",
		})
		return nil, apperrors.ErrInvalidCredentials
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login_at", now).Error; err != nil {
		return nil, fmt.Errorf("profile service: stamp login: %w", err)
	}
	user.LastLoginAt = &now

	metrics.AuthAttempts.WithLabelValues("login", "success").Inc()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:    user.ID,
		CompanyID: user.CompanyIDValue(),
		Action:    "auth.login",
		Resource:  user.ID,
		Result:    auditResultSuccess,
	})
	return &user, nil
}

// Lookup reads the profile of a verified identity. It is never cached across requests.
func (s *ProfileService) Lookup(ctx context.Context, identity auth.Identity) (*models.User, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(identity.ID) == "" {
		return nil, apperrors.ErrUnauthorized
	}

	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "id = ?", identity.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profile service: lookup: %w", err)
	}
	return &user, nil
}

// Actor resolves the authorization subject for identity.
func (s *ProfileService) Actor(ctx context.Context, identity auth.Identity) (permissions.Actor, error) {
	user, err := s.Lookup(ctx, identity)
	if err != nil {
		return permissions.Actor{}, err
	}
	return permissions.ActorFromUser(user), nil
}

// UpdateDisplayName changes the caller's display name.
func (s *ProfileService) UpdateDisplayName(ctx context.Context, identity auth.Identity, name string) (*models.User, error) {
	ctx = ensureContext(ctx)

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewBadRequest("display name is required")
	}
	if len(name) > 128 {
		return nil, apperrors.NewBadRequest("display name must be at most 128 characters")
	}

	user, err := s.Lookup(ctx, identity)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("display_name", name).Error; err != nil {
		return nil, fmt.Errorf("profile service: update display name: %w", err)
	}
	user.DisplayName = name
	return user, nil
}
