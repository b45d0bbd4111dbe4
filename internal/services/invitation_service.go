package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/expensely/internal/models"
	"github.com/charlesng35/expensely/internal/permissions"
	"github.com/charlesng35/expensely/internal/workflow"
	"github.com/charlesng35/expensely/pkg/metrics"

	apperrors "github.com/charlesng35/expensely/pkg/errors"
)

const defaultInvitationTTL = 7 * 24 * time.Hour

// ErrInvitationNotFound indicates no invitation matches the id.
var ErrInvitationNotFound = apperrors.ErrNotFound.WithMessage("invitation not found")

// InvitationOption customises InvitationService behaviour.
type InvitationOption func(*InvitationService)

// WithInvitationTTL overrides how long an invitation stays pending. Zero disables expiry.
func WithInvitationTTL(d time.Duration) InvitationOption {
	return func(s *InvitationService) {
		if d >= 0 {
			s.ttl = d
		}
	}
}

// WithInvitationClock injects a custom clock primarily for testing.
func WithInvitationClock(clock func() time.Time) InvitationOption {
	return func(s *InvitationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// InvitationService manages the invitation lifecycle.
type InvitationService struct {
	db    *gorm.DB
	audit *AuditService
	ttl   time.Duration
	now   func() time.Time
}

// NewInvitationService constructs an InvitationService.
func NewInvitationService(db *gorm.DB, audit *AuditService, opts ...InvitationOption) (*InvitationService, error) {
	if db == nil {
		return nil, errors.New("invitation service: db is required")
	}

	service := &InvitationService{
		db:    db,
		audit: audit,
		ttl:   defaultInvitationTTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Create invites email into companyID with role.
func (s *InvitationService) Create(ctx context.Context, actor permissions.Actor, companyID, email string, role models.Role) (*models.Invitation, error) {
	ctx = ensureContext(ctx)

	email = normaliseEmail(email)
	if email == "" || !validEmail(email) {
		return nil, apperrors.NewBadRequest("a valid email is required")
	}
	if !role.Valid() {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown role %q", role))
	}

	var company models.Company
	err := s.db.WithContext(ctx).Take(&company, "id = ?", companyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCompanyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("invitation service: load company: %w", err)
	}
	if err := permissions.CanInvite(actor, companyID, role); err != nil {
		return nil, err
	}

	now := s.now()
	invitation := &models.Invitation{
		CompanyID:   companyID,
		CompanyName: company.Name,
		Email:       email,
		InvitedBy:   actor.UserID,
		Role:        role,
		Status:      models.InvitationStatusPending,
	}
	if s.ttl > 0 {
		expires := now.Add(s.ttl)
		invitation.ExpiresAt = &expires
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var members int64
		if err := tx.Model(&models.User{}).
			Where("email = ? AND company_id = ?", email, companyID).
			Count(&members).Error; err != nil {
			return err
		}
		if members > 0 {
			return apperrors.NewConflict("this user is already a member of the company")
		}

		var pending []models.Invitation
		if err := tx.Where("company_id = ? AND email = ? AND status = ?", companyID, email, models.InvitationStatusPending).
			Find(&pending).Error; err != nil {
			return err
		}
		for i := range pending {
			if !pending[i].Lapsed(now) {
				return apperrors.NewConflict("an invitation is already pending for this email")
			}
		}
		return tx.Create(invitation).Error
	})
	if err != nil {
		return nil, wrapTxError("invitation service", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:    actor.UserID,
		CompanyID: companyID,
		Action:    "invitation.create",
		Resource:  invitation.ID,
		Result:    auditResultSuccess,
		Metadata:  map[string]any{"email": email, "role": role},
	})
	return invitation, nil
}

// ListForCompany returns the company's invitations, newest first.
func (s *InvitationService) ListForCompany(ctx context.Context, actor permissions.Actor, companyID string, status models.InvitationStatus) ([]models.Invitation, error) {
	ctx = ensureContext(ctx)

	if err := permissions.CanManageInvitations(actor, companyID); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Where("company_id = ?", companyID)
	if status != "" {
		if !status.Valid() {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown invitation status %q", status))
		}
		query = query.Where("status = ?", status)
	}

	var invitations []models.Invitation
	if err := query.Order("created_at DESC").Find(&invitations).Error; err != nil {
		return nil, fmt.Errorf("invitation service: list company invitations: %w", err)
	}
	return invitations, nil
}

// ListMine returns pending, unexpired invitations addressed to the actor's email.
func (s *InvitationService) ListMine(ctx context.Context, actor permissions.Actor) ([]models.Invitation, error) {
	ctx = ensureContext(ctx)

	var invitations []models.Invitation
	if err := s.db.WithContext(ctx).
		Where("email = ? AND status = ?", normaliseEmail(actor.Email), models.InvitationStatusPending).
		Where("expires_at IS NULL OR expires_at > ?", s.now()).
		Order("created_at DESC").
		Find(&invitations).Error; err != nil {
		return nil, fmt.Errorf("invitation service: list invitations: %w", err)
	}
	return invitations, nil
}

// loadForInvitee fetches the invitation and checks it is addressed to the actor.
// A lapsed invitation is marked expired and reported as such.
func (s *InvitationService) loadForInvitee(ctx context.Context, actor permissions.Actor, id string) (*models.Invitation, error) {
	var invitation models.Invitation
	err := s.db.WithContext(ctx).Take(&invitation, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("invitation service: load invitation: %w", err)
	}

	if !strings.EqualFold(invitation.Email, strings.TrimSpace(actor.Email)) {
		return nil, apperrors.NewForbidden("this invitation was sent to a different email address")
	}

	if invitation.Lapsed(s.now()) {
		if _, err := s.transition(ctx, s.db, &invitation, models.InvitationStatusExpired, nil); err != nil {
			return nil, err
		}
		return nil, workflow.InvitationTransition(models.InvitationStatusExpired, models.InvitationStatusAccepted)
	}
	return &invitation, nil
}

// transition moves a pending invitation to status. It fails with the current
// status when another request got there first.
func (s *InvitationService) transition(ctx context.Context, tx *gorm.DB, invitation *models.Invitation, status models.InvitationStatus, extra map[string]any) (*models.Invitation, error) {
	if err := workflow.InvitationTransition(invitation.Status, status); err != nil {
		return nil, err
	}

	updates := map[string]any{"status": status}
	for k, v := range extra {
		updates[k] = v
	}
	res := tx.WithContext(ctx).Model(&models.Invitation{}).
		Where("id = ? AND status = ?", invitation.ID, models.InvitationStatusPending).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("invitation service: update status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var current models.Invitation
		if err := tx.WithContext(ctx).Select("status").Take(&current, "id = ?", invitation.ID).Error; err != nil {
			return nil, fmt.Errorf("invitation service: reload invitation: %w", err)
		}
		return nil, workflow.InvitationTransition(current.Status, status)
	}

	metrics.InvitationTransitions.WithLabelValues(string(status)).Inc()
	invitation.Status = status
	return invitation, nil
}

// Accept joins the actor to the inviting company. Membership, profile and
// invitation status change in one transaction.
func (s *InvitationService) Accept(ctx context.Context, actor permissions.Actor, id string) (*models.Invitation, error) {
	ctx = ensureContext(ctx)

	invitation, err := s.loadForInvitee(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Take(&user, "id = ?", actor.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProfileNotFound
			}
			return err
		}
		if user.InCompany() {
			if user.CompanyIDValue() == invitation.CompanyID {
				return apperrors.NewConflict("you are already a member of this company")
			}
			return apperrors.NewConflict("you already belong to a company; leave it before accepting another invitation")
		}

		var company models.Company
		if err := tx.Take(&company, "id = ?", invitation.CompanyID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCompanyNotFound
			}
			return err
		}

		if _, err := s.transition(ctx, tx, invitation, models.InvitationStatusAccepted, map[string]any{
			"accepted_by": actor.UserID,
			"accepted_at": now,
		}); err != nil {
			return err
		}
		if err := tx.Create(&models.CompanyMember{CompanyID: company.ID, UserID: user.ID}).Error; err != nil {
			return fmt.Errorf("add member: %w", err)
		}
		res := tx.Model(&models.User{}).
			Where("id = ? AND company_id IS NULL", user.ID).
			Updates(map[string]any{"company_id": company.ID, "role": invitation.Role})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.NewConflict("you already belong to a company")
		}
		return nil
	})
	if err != nil {
		return nil, wrapTxError("invitation service", err)
	}

	invitation.AcceptedBy = &actor.UserID
	invitation.AcceptedAt = &now
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:    actor.UserID,
		CompanyID: invitation.CompanyID,
		Action:    "invitation.accept",
		Resource:  invitation.ID,
		Result:    auditResultSuccess,
		Metadata:  map[string]any{"role": invitation.Role},
	})
	return invitation, nil
}

// Decline marks the invitation declined.
func (s *InvitationService) Decline(ctx context.Context, actor permissions.Actor, id string) (*models.Invitation, error) {
	ctx = ensureContext(ctx)

	invitation, err := s.loadForInvitee(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.transition(ctx, s.db, invitation, models.InvitationStatusDeclined, nil); err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:    actor.UserID,
		CompanyID: invitation.CompanyID,
		Action:    "invitation.decline",
		Resource:  invitation.ID,
		Result:    auditResultSuccess,
	})
	return invitation, nil
}

// ExpireStale marks every lapsed pending invitation expired.
func (s *InvitationService) ExpireStale(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	res := s.db.WithContext(ctx).Model(&models.Invitation{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", models.InvitationStatusPending, s.now()).
		Update("status", models.InvitationStatusExpired)
	if res.Error != nil {
		return 0, fmt.Errorf("invitation service: expire invitations: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		metrics.InvitationTransitions.WithLabelValues(string(models.InvitationStatusExpired)).Add(float64(res.RowsAffected))
	}
	return res.RowsAffected, nil
}
