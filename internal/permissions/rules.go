package permissions

import (
	"github.com/charlesng35/expensely/internal/models"
	"github.com/charlesng35/expensely/pkg/metrics"

	apperrors "github.com/charlesng35/expensely/pkg/errors"
)

// ExpenseRef carries the fields of an expense that authorization depends on.
type ExpenseRef struct {
	OwnerID   string
	CompanyID string
	Status    models.ExpenseStatus
}

// ExpenseRefOf extracts an ExpenseRef from a stored expense.
func ExpenseRefOf(e *models.Expense) ExpenseRef {
	if e == nil {
		return ExpenseRef{}
	}
	return ExpenseRef{OwnerID: e.UserID, CompanyID: e.CompanyIDValue(), Status: e.Status}
}

// CompanyRef carries the fields of a company that authorization depends on.
type CompanyRef struct {
	ID      string
	OwnerID string
}

// CompanyRefOf extracts a CompanyRef from a stored company.
func CompanyRefOf(c *models.Company) CompanyRef {
	if c == nil {
		return CompanyRef{}
	}
	return CompanyRef{ID: c.ID, OwnerID: c.OwnerID}
}

// MemberRef identifies the member an operation targets.
type MemberRef struct {
	UserID string
	Role   models.Role
}

func decide(permission string, reason string) error {
	if reason == "" {
		metrics.AuthorizationDecisions.WithLabelValues(permission, "allow").Inc()
		return nil
	}
	metrics.AuthorizationDecisions.WithLabelValues(permission, "deny").Inc()
	return apperrors.NewForbidden(reason)
}

func membershipReason(a Actor, companyID string) string {
	if !a.MemberOf(companyID) {
		return "you are not a member of this company"
	}
	return ""
}

// CanCreateExpense checks that the actor may submit an expense.
func CanCreateExpense(a Actor) error {
	if !a.Can(ExpenseCreate) {
		return decide(ExpenseCreate, "you are not allowed to create expenses")
	}
	return decide(ExpenseCreate, "")
}

// CanReadExpense allows the creator, and company members whose role reads company expenses.
func CanReadExpense(a Actor, e ExpenseRef) error {
	if e.CompanyID == "" {
		if e.OwnerID != a.UserID {
			return decide(ExpenseReadOwn, "you can only view your own expenses")
		}
		return decide(ExpenseReadOwn, "")
	}
	if !a.MemberOf(e.CompanyID) {
		return decide(ExpenseReadCompany, "expense belongs to another company")
	}
	if a.Can(ExpenseReadCompany) {
		return decide(ExpenseReadCompany, "")
	}
	if e.OwnerID == a.UserID && a.Can(ExpenseReadOwn) {
		return decide(ExpenseReadOwn, "")
	}
	return decide(ExpenseReadOwn, "you can only view your own expenses")
}

// CanReadCompanyExpenses reports whether listings may include other members' expenses.
func CanReadCompanyExpenses(a Actor) bool {
	return a.InCompany() && a.Can(ExpenseReadCompany)
}

// CanUpdateExpense allows the creator to edit a personal expense, or a company expense still pending.
func CanUpdateExpense(a Actor, e ExpenseRef) error {
	if e.OwnerID != a.UserID {
		return decide(ExpenseUpdateOwn, "only the creator can edit an expense")
	}
	if e.CompanyID != "" {
		if !a.MemberOf(e.CompanyID) {
			return decide(ExpenseUpdateOwn, "expense belongs to another company")
		}
		if e.Status != models.ExpenseStatusPending {
			return decide(ExpenseUpdateOwn, "expense has already been "+string(e.Status)+" and can no longer be edited")
		}
	}
	if !a.Can(ExpenseUpdateOwn) {
		return decide(ExpenseUpdateOwn, "you are not allowed to edit expenses")
	}
	return decide(ExpenseUpdateOwn, "")
}

// CanDeleteExpense allows owners and admins to delete any company expense and
// other roles, except auditors, to delete their own.
func CanDeleteExpense(a Actor, e ExpenseRef) error {
	if e.CompanyID == "" {
		if e.OwnerID != a.UserID {
			return decide(ExpenseDeleteOwn, "you can only delete your own expenses")
		}
		return decide(ExpenseDeleteOwn, "")
	}
	if !a.MemberOf(e.CompanyID) {
		return decide(ExpenseDeleteCompany, "expense belongs to another company")
	}
	if a.Can(ExpenseDeleteCompany) {
		return decide(ExpenseDeleteCompany, "")
	}
	if a.Role == models.RoleAuditor {
		return decide(ExpenseDeleteOwn, "auditors cannot delete expenses")
	}
	if e.OwnerID != a.UserID || !a.Can(ExpenseDeleteOwn) {
		return decide(ExpenseDeleteOwn, "you can only delete your own expenses")
	}
	return decide(ExpenseDeleteOwn, "")
}

// CanReviewExpense allows owners and admins to approve or reject company expenses.
func CanReviewExpense(a Actor, e ExpenseRef) error {
	if e.CompanyID == "" {
		return decide(ExpenseReview, "personal expenses are not subject to review")
	}
	if reason := membershipReason(a, e.CompanyID); reason != "" {
		return decide(ExpenseReview, "expense belongs to another company")
	}
	if !a.Can(ExpenseReview) {
		return decide(ExpenseReview, "only owners and admins can approve or reject expenses")
	}
	return decide(ExpenseReview, "")
}

// CanCreateCompany allows users without a company to create one.
func CanCreateCompany(a Actor) error {
	if a.InCompany() {
		return decide(CompanyCreate, "you already belong to a company")
	}
	return decide(CompanyCreate, "")
}

// CanViewCompany allows any member to view the company and its members.
func CanViewCompany(a Actor, companyID string) error {
	if reason := membershipReason(a, companyID); reason != "" {
		return decide(CompanyView, reason)
	}
	return decide(CompanyView, "")
}

func ownerOnly(a Actor, c CompanyRef, permission, reason string) error {
	if r := membershipReason(a, c.ID); r != "" {
		return decide(permission, r)
	}
	if a.UserID != c.OwnerID || !a.Can(permission) {
		return decide(permission, reason)
	}
	return decide(permission, "")
}

// CanRenameCompany is owner only.
func CanRenameCompany(a Actor, c CompanyRef) error {
	return ownerOnly(a, c, CompanyRename, "only the company owner can rename the company")
}

// CanDeleteCompany is owner only.
func CanDeleteCompany(a Actor, c CompanyRef) error {
	return ownerOnly(a, c, CompanyDelete, "only the company owner can delete the company")
}

// CanLeave allows any member except the owner to leave.
func CanLeave(a Actor, c CompanyRef) error {
	if reason := membershipReason(a, c.ID); reason != "" {
		return decide(CompanyLeave, reason)
	}
	if a.UserID == c.OwnerID || !a.Can(CompanyLeave) {
		return decide(CompanyLeave, "the owner cannot leave the company; transfer ownership first")
	}
	return decide(CompanyLeave, "")
}

// CanManageInvitations allows owners and admins to list the company's invitations.
func CanManageInvitations(a Actor, companyID string) error {
	if reason := membershipReason(a, companyID); reason != "" {
		return decide(InvitationManage, reason)
	}
	if !a.Can(InvitationManage) {
		return decide(InvitationManage, "only owners and admins can manage invitations")
	}
	return decide(InvitationManage, "")
}

// CanInvite checks that the actor may invite someone into companyID with role.
func CanInvite(a Actor, companyID string, role models.Role) error {
	if reason := membershipReason(a, companyID); reason != "" {
		return decide(MemberInvite, reason)
	}
	if !a.Can(MemberInvite) {
		return decide(MemberInvite, "only owners and admins can invite members")
	}
	switch role {
	case models.RoleOwner:
		return decide(MemberInviteElevated, "ownership cannot be granted by invitation")
	case models.RoleAdmin:
		if !a.Can(MemberInviteElevated) {
			return decide(MemberInviteElevated, "only the owner can invite admins")
		}
		return decide(MemberInviteElevated, "")
	}
	return decide(MemberInvite, "")
}

// CanRemoveMember checks removal of target from c. The owner can never be removed.
func CanRemoveMember(a Actor, c CompanyRef, target MemberRef) error {
	if reason := membershipReason(a, c.ID); reason != "" {
		return decide(MemberRemove, reason)
	}
	if !a.Can(MemberRemove) {
		return decide(MemberRemove, "only owners and admins can remove members")
	}
	if target.UserID == c.OwnerID || target.Role == models.RoleOwner {
		return decide(MemberRemove, "the company owner cannot be removed")
	}
	if target.UserID == a.UserID {
		return decide(MemberRemove, "use leave to exit the company")
	}
	if target.Role == models.RoleAdmin && !a.Can(MemberRemoveElevated) {
		return decide(MemberRemoveElevated, "admins cannot remove other admins")
	}
	return decide(MemberRemove, "")
}

// CanChangeRole checks that the actor may give target the role next.
func CanChangeRole(a Actor, c CompanyRef, target MemberRef, next models.Role) error {
	if reason := membershipReason(a, c.ID); reason != "" {
		return decide(MemberRole, reason)
	}
	if !a.Can(MemberRole) {
		return decide(MemberRole, "only owners and admins can change roles")
	}
	if next == models.RoleOwner {
		if a.UserID != c.OwnerID || !a.Can(CompanyTransfer) {
			return decide(CompanyTransfer, "only the owner can transfer ownership")
		}
		return decide(CompanyTransfer, "")
	}
	if target.Role.Elevated() && !a.Can(MemberRoleElevated) {
		return decide(MemberRoleElevated, "admins cannot change the role of an owner or admin")
	}
	if next == models.RoleAdmin && !a.Can(MemberRoleElevated) {
		return decide(MemberRoleElevated, "admins cannot grant the admin role")
	}
	return decide(MemberRole, "")
}
