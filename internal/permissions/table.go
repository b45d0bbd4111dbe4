package permissions

import (
	"sort"

	"github.com/charlesng35/expensely/internal/models"
)

// personalGrants apply to users without a company.
var personalGrants = []string{
	ExpenseCreate,
	ExpenseReadOwn,
	ExpenseUpdateOwn,
	ExpenseDeleteOwn,
	CompanyCreate,
}

// roleGrants is the decision table for company members.
var roleGrants = map[models.Role][]string{
	models.RoleOwner: {
		ExpenseCreate, ExpenseReadOwn, ExpenseUpdateOwn, ExpenseDeleteOwn,
		ExpenseReadCompany, ExpenseDeleteCompany, ExpenseReview,
		CompanyView, CompanyRename, CompanyDelete, CompanyTransfer,
		InvitationManage, MemberInvite, MemberInviteElevated,
		MemberRemove, MemberRemoveElevated, MemberRole, MemberRoleElevated,
	},
	models.RoleAdmin: {
		ExpenseCreate, ExpenseReadOwn, ExpenseUpdateOwn, ExpenseDeleteOwn,
		ExpenseReadCompany, ExpenseDeleteCompany, ExpenseReview,
		CompanyView, CompanyLeave,
		InvitationManage, MemberInvite, MemberRemove, MemberRole,
	},
	models.RoleAuditor: {
		ExpenseCreate, ExpenseReadOwn, ExpenseUpdateOwn,
		ExpenseReadCompany,
		CompanyView, CompanyLeave,
	},
	models.RoleUser: {
		ExpenseCreate, ExpenseReadOwn, ExpenseUpdateOwn, ExpenseDeleteOwn,
		CompanyView, CompanyLeave,
	},
}

var grantIndex = buildGrantIndex()

func buildGrantIndex() map[models.Role]map[string]bool {
	index := make(map[models.Role]map[string]bool, len(roleGrants)+1)
	index[""] = toSet(personalGrants)
	for role, perms := range roleGrants {
		index[role] = toSet(perms)
	}
	return index
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// Granted reports whether role holds permission. The empty role is personal mode.
func Granted(role models.Role, permission string) bool {
	return grantIndex[role][permission]
}

// GrantsFor lists the permissions held by role, sorted.
func GrantsFor(role models.Role) []string {
	set := grantIndex[role]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
