package permissions

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCatalogRegistered(t *testing.T) {
	ids := []string{
		ExpenseCreate, ExpenseReadOwn, ExpenseReadCompany, ExpenseUpdateOwn,
		ExpenseDeleteOwn, ExpenseDeleteCompany, ExpenseReview,
		CompanyCreate, CompanyView, CompanyRename, CompanyDelete, CompanyLeave, CompanyTransfer,
		MemberInvite, MemberInviteElevated, MemberRemove, MemberRemoveElevated,
		MemberRole, MemberRoleElevated, InvitationManage,
	}
	for _, id := range ids {
		perm, ok := Get(id)
		require.True(t, ok, id)
		require.NotEmpty(t, perm.Module, id)
	}
	require.Len(t, All(), len(ids))
	require.NoError(t, ValidateDependencies())
}

func TestRegisterRejectsInvalidDefinitions(t *testing.T) {
	require.ErrorIs(t, Register(nil), errNilPermission)
	require.ErrorIs(t, Register(&Permission{ID: "  "}), errEmptyID)
	require.ErrorIs(t, Register(&Permission{ID: "x.self", DependsOn: []string{"x.self"}}), errSelfDependency)
	require.ErrorIs(t, Register(&Permission{ID: ExpenseCreate}), errDuplicateID)
}

func TestGetReturnsCopy(t *testing.T) {
	perm, ok := Get(ExpenseReview)
	require.True(t, ok)
	perm.DependsOn[0] = "mutated"

	again, _ := Get(ExpenseReview)
	require.Equal(t, []string{ExpenseReadCompany}, again.DependsOn)
}

// Every role must hold the dependencies of each permission it is granted.
func TestDecisionTableSatisfiesDependencies(t *testing.T) {
	for role, set := range grantIndex {
		for id := range set {
			_, ok := Get(id)
			require.True(t, ok, "role %q grants unknown permission %s", role, id)
			require.Empty(t, MissingDependencies(id, set), "role %q permission %s", role, id)
		}
	}
}
