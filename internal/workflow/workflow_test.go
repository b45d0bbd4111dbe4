package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/expensely/internal/models"
	apperrors "github.com/charlesng35/expensely/pkg/errors"
)

func TestInitialExpenseStatus(t *testing.T) {
	require.Equal(t, models.ExpenseStatusApproved, InitialExpenseStatus(""))
	require.Equal(t, models.ExpenseStatusPending, InitialExpenseStatus("company-1"))
}

func TestExpenseTransition(t *testing.T) {
	require.NoError(t, ExpenseTransition(models.ExpenseStatusPending, models.ExpenseStatusApproved))
	require.NoError(t, ExpenseTransition(models.ExpenseStatusPending, models.ExpenseStatusRejected))

	err := ExpenseTransition(models.ExpenseStatusApproved, models.ExpenseStatusApproved)
	require.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	require.Equal(t, "expense already approved", err.Error())

	err = ExpenseTransition(models.ExpenseStatusRejected, models.ExpenseStatusApproved)
	require.Equal(t, "expense already rejected", err.Error())

	err = ExpenseTransition(models.ExpenseStatusPending, models.ExpenseStatusPending)
	require.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestInvitationTransition(t *testing.T) {
	for _, to := range []models.InvitationStatus{
		models.InvitationStatusAccepted,
		models.InvitationStatusDeclined,
		models.InvitationStatusExpired,
	} {
		require.NoError(t, InvitationTransition(models.InvitationStatusPending, to))
	}

	err := InvitationTransition(models.InvitationStatusAccepted, models.InvitationStatusDeclined)
	require.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	require.Equal(t, "invitation already accepted", err.Error())

	require.ErrorIs(t, InvitationTransition(models.InvitationStatusPending, models.InvitationStatusPending), apperrors.ErrBadRequest)
}

func TestPlanRoleChange(t *testing.T) {
	target := models.CompanyMember{CompanyID: "c", UserID: "u"}

	plan, err := PlanRoleChange("owner", target, models.RoleUser, models.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, RoleChangePlan{TargetID: "u", TargetRole: models.RoleAdmin}, plan)

	plan, err = PlanRoleChange("owner", target, models.RoleAdmin, models.RoleOwner)
	require.NoError(t, err)
	require.True(t, plan.TransferOwnership)
	require.Equal(t, "owner", plan.PreviousOwnerID)
	require.Equal(t, models.RoleAdmin, plan.PreviousOwnerRole)

	_, err = PlanRoleChange("owner", target, models.RoleUser, models.RoleUser)
	require.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	_, err = PlanRoleChange("owner", models.CompanyMember{UserID: "owner"}, models.RoleOwner, models.RoleAdmin)
	require.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	_, err = PlanRoleChange("owner", target, models.RoleUser, models.Role("boss"))
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "BAD_REQUEST", appErr.Code)
}
