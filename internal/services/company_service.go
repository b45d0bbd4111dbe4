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

	apperrors "github.com/charlesng35/expensely/pkg/errors"
)

var (
	// ErrCompanyNotFound indicates the requested company does not exist.
	ErrCompanyNotFound = apperrors.ErrNotFound.WithMessage("company not found")
	// ErrMemberNotFound indicates the user is not a member of the company.
	ErrMemberNotFound = apperrors.ErrNotFound.WithMessage("member not found")
)

const maxCompanyNameLength = 128

// MemberView is a company member with the profile fields shown to other members.
type MemberView struct {
	UserID      string      `json:"user_id"`
	Email       string      `json:"email"`
	DisplayName string      `json:"display_name"`
	Role        models.Role `json:"role"`
	JoinedAt    time.Time   `json:"joined_at"`
}

// CompanyService manages companies and their membership.
type CompanyService struct {
	db    *gorm.DB
	audit *AuditService
}

// NewCompanyService constructs a CompanyService.
func NewCompanyService(db *gorm.DB, audit *AuditService) (*CompanyService, error) {
	if db == nil {
		return nil, errors.New("company service: db is required")
	}
	return &CompanyService{db: db, audit: audit}, nil
}

func validateCompanyName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperrors.NewBadRequest("company name is required")
	}
	if len(name) > maxCompanyNameLength {
		return "", apperrors.NewBadRequest(fmt.Sprintf("company name must be at most %d characters", maxCompanyNameLength))
	}
	return name, nil
}

// Create makes the actor the owner and sole member of a new company.
func (s *CompanyService) Create(ctx context.Context, actor permissions.Actor, name string) (*models.Company, error) {
	ctx = ensureContext(ctx)

	if err := permissions.CanCreateCompany(actor); err != nil {
		return nil, err
	}
	name, err := validateCompanyName(name)
	if err != nil {
		return nil, err
	}

	company := &models.Company{Name: name, OwnerID: actor.UserID}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The profile may have joined a company since the actor was resolved.
		res := tx.Model(&models.User{}).
			Where("id = ? AND company_id IS NULL", actor.UserID).
			Updates(map[string]any{"role": models.RoleOwner})
		if res.Error != nil {
			return fmt.Errorf("claim profile: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.NewConflict("you already belong to a company")
		}

		if err := tx.Create(company).Error; err != nil {
			return fmt.Errorf("create company: %w", err)
		}
		if err := tx.Create(&models.CompanyMember{CompanyID: company.ID, UserID: actor.UserID}).Error; err != nil {
			return fmt.Errorf("add owner: %w", err)
		}
		return tx.Model(&models.User{}).Where("id = ?", actor.UserID).
			Update("company_id", company.ID).Error
	})
	if err != nil {
		return nil, wrapTxError("company service", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:    actor.UserID,
		CompanyID: company.ID,
		Action:    "company.create",
		Resource:  company.ID,
		Result:    auditResultSuccess,
		Metadata:  map[string]any{"name": name},
	})
	return s.load(ctx, s.db, company.ID)
}

// Get returns the company with its members when the actor belongs to it.
func (s *CompanyService) Get(ctx context.Context, actor permissions.Actor, id string) (*models.Company, error) {
	ctx = ensureContext(ctx)

	if err := permissions.CanViewCompany(actor, id); err != nil {
		return nil, err
	}
	return s.load(ctx, s.db, id)
}

func (s *CompanyService) load(ctx context.Context, db *gorm.DB, id string) (*models.Company, error) {
	var company models.Company
	err := db.WithContext(ctx).
		Preload("Members", func(q *gorm.DB) *gorm.DB { return q.Order("joined_at ASC") }).
		Preload("Members.User").
		Take(&company, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCompanyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("company service: load company: %w", err)
	}
	return &company, nil
}

func (s *CompanyService) loadRef(ctx context.Context, db *gorm.DB, id string) (*models.Company, error) {
	var company models.Company
	err := db.WithContext(ctx).Take(&company, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCompanyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("company service: load company: %w", err)
	}
	return &company, nil
}

// Rename changes the company name. Owner only.
func (s *CompanyService) Rename(ctx context.Context, actor permissions.Actor, id, name string) (*models.Company, error) {
	ctx = ensureContext(ctx)

	company, err := s.loadRef(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if err := permissions.CanRenameCompany(actor, permissions.CompanyRefOf(company)); err != nil {
		return nil, err
	}
	name, err = validateCompanyName(name)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(company).Update("name", name).Error; err != nil {
			return err
		}
		// Pending invitations show the company name to the invitee.
		return tx.Model(&models.Invitation{}).
			Where("company_id = ? AND status = ?", id, models.InvitationStatusPending).
			Update("company_name", name).Error
	})
	if err != nil {
		return nil, fmt.Errorf("company service: rename company: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:    actor.UserID,
		CompanyID: id,
		Action:    "company.rename",
		Resource:  id,
		Result:    auditResultSuccess,
		Metadata:  map[string]any{"from": company.Name, "to": name},
	})
	return s.load(ctx, s.db, id)
}

// Delete removes the company with its expenses and invitations, and returns
// every member to personal mode.
func (s *CompanyService) Delete(ctx context.Context, actor permissions.Actor, id string) error {
	ctx = ensureContext(ctx)

	company, err := s.loadRef(ctx, s.db, id)
	if err != nil {
		return err
	}
	if err := permissions.CanDeleteCompany(actor, permissions.CompanyRefOf(company)); err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		expenseIDs := tx.Model(&models.Expense{}).Select("id").Where("company_id = ?", id)
		if err := tx.Where("expense_id IN (?)", expenseIDs).Delete(&models.ExpenseItem{}).Error; err != nil {
			return fmt.Errorf("delete expense items: %w", err)
		}
		if err := tx.Where("company_id = ?", id).Delete(&models.Expense{}).Error; err != nil {
			return fmt.Errorf("delete expenses: %w", err)
		}
		if err := tx.Where("company_id = ?", id).Delete(&models.Invitation{}).Error; err != nil {
			return fmt.Errorf("delete invitations: %w", err)
		}
		if err := tx.Where("company_id = ?", id).Delete(&models.CompanyMember{}).Error; err != nil {
			return fmt.Errorf("delete members: %w", err)
		}
		if err := tx.Model(&models.User{}).Where("company_id = ?", id).
			Updates(map[string]any{"company_id": nil, "role": ""}).Error; err != nil {
			return fmt.Errorf("reset profiles: %w", err)
		}
		return tx.Delete(&models.Company{}, "id = ?", id).Error
	})
	if err != nil {
		return fmt.Errorf("company service: delete company: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   actor.UserID,
		Action:   "company.delete",
		Resource: id,
		Result:   auditResultSuccess,
		Metadata: map[string]any{"name": company.Name},
	})
	return nil
}

// ListMembers returns the members with their current roles.
func (s *CompanyService) ListMembers(ctx context.Context, actor permissions.Actor, id string) ([]MemberView, error) {
	company, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	members := make([]MemberView, 0, len(company.Members))
	for _, m := range company.Members {
		view := MemberView{UserID: m.UserID, JoinedAt: m.JoinedAt}
		if m.User != nil {
			view.Email = m.User.Email
			view.DisplayName = m.User.DisplayName
			view.Role = m.User.Role
		}
		members = append(members, view)
	}
	return members, nil
}

func (s *CompanyService) loadMember(ctx context.Context, db *gorm.DB, companyID, userID string) (*models.User, error) {
	var user models.User
	err := db.WithContext(ctx).
		Joins("JOIN company_members ON company_members.user_id = users.id").
		Where("company_members.company_id = ? AND users.id = ?", companyID, userID).
		Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("company service: load member: %w", err)
	}
	return &user, nil
}

// RemoveMember takes userID out of the company. The owner can never be removed.
func (s *CompanyService) RemoveMember(ctx context.Context, actor permissions.Actor, companyID, userID string) error {
	ctx = ensureContext(ctx)

	company, err := s.loadRef(ctx, s.db, companyID)
	if err != nil {
		return err
	}
	target, err := s.loadMember(ctx, s.db, companyID, userID)
	if err != nil {
		return err
	}
	ref := permissions.MemberRef{UserID: target.ID, Role: target.Role}
	if err := permissions.CanRemoveMember(actor, permissions.CompanyRefOf(company), ref); err != nil {
		recordAudit(s.audit, ctx, AuditEntry{
			UserID:    actor.UserID,
			CompanyID: companyID,
			Action:    "member.remove",
			Resource:  userID,
			Result:    auditResultDenied,
		})
		return err
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.loadMember(ctx, tx, companyID, userID)
		if err != nil {
			return err
		}
		if current.Role != target.Role {
			return errMembershipChanged()
		}
		return detachMember(tx, companyID, userID, target.Role)
	}); err != nil {
		return wrapTxError("company service: remove member", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:    actor.UserID,
		CompanyID: companyID,
		Action:    "member.remove",
		Resource:  userID,
		Result:    auditResultSuccess,
		Metadata:  map[string]any{"role": target.Role},
	})
	return nil
}

// Leave takes the actor out of the company. The owner must transfer ownership first.
func (s *CompanyService) Leave(ctx context.Context, actor permissions.Actor, companyID string) error {
	ctx = ensureContext(ctx)

	company, err := s.loadRef(ctx, s.db, companyID)
	if err != nil {
		return err
	}
	if err := permissions.CanLeave(actor, permissions.CompanyRefOf(company)); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return detachMember(tx, companyID, actor.UserID, "")
	}); err != nil {
		return wrapTxError("company service: leave company", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:    actor.UserID,
		CompanyID: companyID,
		Action:    "company.leave",
		Resource:  companyID,
		Result:    auditResultSuccess,
	})
	return nil
}

func errMembershipChanged() error {
	return apperrors.NewConflict("company membership changed concurrently")
}

// detachMember removes userID from the company provided they are not the
// current owner and, when role is set, still hold it. A failed check is a conflict.
func detachMember(tx *gorm.DB, companyID, userID string, role models.Role) error {
	res := tx.Where("company_id = ? AND user_id = ?", companyID, userID).
		Where("user_id <> (SELECT owner_id FROM companies WHERE id = ?)", companyID).
		Delete(&models.CompanyMember{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errMembershipChanged()
	}
	query := tx.Model(&models.User{}).Where("id = ? AND company_id = ?", userID, companyID)
	if role != "" {
		query = query.Where("role = ?", role)
	}
	res = query.Updates(map[string]any{"company_id": nil, "role": ""})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errMembershipChanged()
	}
	return nil
}

// ChangeRole sets the role of a member. Giving the owner role transfers
// ownership and demotes the previous owner to admin in the same transaction.
func (s *CompanyService) ChangeRole(ctx context.Context, actor permissions.Actor, companyID, userID string, role models.Role) (*MemberView, error) {
	ctx = ensureContext(ctx)

	if !role.Valid() {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown role %q", role))
	}
	company, err := s.loadRef(ctx, s.db, companyID)
	if err != nil {
		return nil, err
	}
	target, err := s.loadMember(ctx, s.db, companyID, userID)
	if err != nil {
		return nil, err
	}
	ref := permissions.MemberRef{UserID: target.ID, Role: target.Role}
	if err := permissions.CanChangeRole(actor, permissions.CompanyRefOf(company), ref, role); err != nil {
		return nil, err
	}

	member := models.CompanyMember{CompanyID: companyID, UserID: target.ID}
	plan, err := workflow.PlanRoleChange(company.OwnerID, member, target.Role, role)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.loadRef(ctx, tx, companyID)
		if err != nil {
			return err
		}
		if current.OwnerID != company.OwnerID {
			return apperrors.NewConflict("company ownership changed concurrently")
		}
		latest, err := s.loadMember(ctx, tx, companyID, userID)
		if err != nil {
			return err
		}
		if latest.Role != target.Role {
			return errMembershipChanged()
		}

		if plan.TransferOwnership {
			res := tx.Model(&models.Company{}).
				Where("id = ? AND owner_id = ?", companyID, plan.PreviousOwnerID).
				Update("owner_id", plan.TargetID)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return apperrors.NewConflict("company ownership changed concurrently")
			}
			res = tx.Model(&models.User{}).
				Where("id = ? AND company_id = ? AND role = ?", plan.PreviousOwnerID, companyID, models.RoleOwner).
				Update("role", plan.PreviousOwnerRole)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return apperrors.NewConflict("company ownership changed concurrently")
			}
		}

		// The target must still be a member holding the role that was authorised.
		res := tx.Model(&models.User{}).
			Where("id = ? AND company_id = ? AND role = ?", plan.TargetID, companyID, target.Role).
			Where("EXISTS (SELECT 1 FROM company_members WHERE company_members.company_id = ? AND company_members.user_id = ?)", companyID, plan.TargetID).
			Update("role", plan.TargetRole)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errMembershipChanged()
		}
		return nil
	})
	if err != nil {
		return nil, wrapTxError("company service", err)
	}

	action := "member.role"
	if plan.TransferOwnership {
		action = "company.transfer"
	}
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:    actor.UserID,
		CompanyID: companyID,
		Action:    action,
		Resource:  userID,
		Result:    auditResultSuccess,
		Metadata:  map[string]any{"from": target.Role, "to": role},
	})

	updated, err := s.loadMember(ctx, s.db, companyID, userID)
	if err != nil {
		return nil, err
	}
	return &MemberView{UserID: updated.ID, Email: updated.Email, DisplayName: updated.DisplayName, Role: updated.Role}, nil
}
