package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/expensely/internal/models"
	apperrors "github.com/charlesng35/expensely/pkg/errors"
)

func TestPersonalExpenseIsApproved(t *testing.T) {
	env := newTestServices(t)
	ctx := context.Background()
	alice := env.register(t, "alice@example.com")

	expense, err := env.expenses.Create(ctx, alice, coffeeInput())
	require.NoError(t, err)
	require.Equal(t, models.ExpenseStatusApproved, expense.Status)
	require.Nil(t, expense.CompanyID)
	require.True(t, decimal.RequireFromString("4.50").Equal(expense.TotalAmount))
	require.Equal(t, models.ExpenseSourceManual, expense.Source)

	got, err := env.expenses.Get(ctx, alice, expense.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	require.Equal(t, "Coffee", got.Items[0].Name)
	require.True(t, decimal.RequireFromString("4.5").Equal(got.TotalAmount))

	bob := env.register(t, "bob@example.com")
	_, err = env.expenses.Get(ctx, bob, expense.ID)
	require.True(t, apperrors.IsForbidden(err))

	_, err = env.expenses.Approve(ctx, alice, expense.ID)
	require.True(t, apperrors.IsForbidden(err))
}

func TestExpenseTotalsAndQuantities(t *testing.T) {
	env := newTestServices(t)
	ctx := context.Background()
	alice := env.register(t, "alice@example.com")

	input := coffeeInput()
	input.Items = []ExpenseItemInput{
		{Name: "Bagel", Quantity: 0, NetPrice: decimal.RequireFromString("0.10")},
		{Name: "Juice", Quantity: -2, NetPrice: decimal.RequireFromString("0.20")},
		{Name: "Tea", Quantity: 3, NetPrice: decimal.RequireFromString("7.05")},
	}
	expense, err := env.expenses.Create(ctx, alice, input)
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("7.35").Equal(expense.TotalAmount), expense.TotalAmount.String())

	got, err := env.expenses.Get(ctx, alice, expense.ID)
	require.NoError(t, err)
	require.Equal(t, []int{1, 1, 3}, []int{got.Items[0].Quantity, got.Items[1].Quantity, got.Items[2].Quantity})

	bad := coffeeInput()
	bad.Items = nil
	_, err = env.expenses.Create(ctx, alice, bad)
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	bad = coffeeInput()
	bad.Category = "grocery"
	_, err = env.expenses.Create(ctx, alice, bad)
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	bad = coffeeInput()
	bad.Items[0].NetPrice = decimal.RequireFromString("-1")
	_, err = env.expenses.Create(ctx, alice, bad)
	require.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestCompanyExpenseReview(t *testing.T) {
	env := newTestServices(t)
	ctx := context.Background()
	_, owner, members := env.companyWith(t, models.RoleAdmin, models.RoleAuditor, models.RoleUser)
	admin, auditor, user := members[0], members[1], members[2]

	expense, err := env.expenses.Create(ctx, user, coffeeInput())
	require.NoError(t, err)
	require.Equal(t, models.ExpenseStatusPending, expense.Status)
	require.Equal(t, user.CompanyID, expense.CompanyIDValue())

	_, err = env.expenses.Approve(ctx, auditor, expense.ID)
	require.True(t, apperrors.IsForbidden(err))
	_, err = env.expenses.Approve(ctx, user, expense.ID)
	require.True(t, apperrors.IsForbidden(err))

	approved, err := env.expenses.Approve(ctx, admin, expense.ID)
	require.NoError(t, err)
	require.Equal(t, models.ExpenseStatusApproved, approved.Status)
	require.NotNil(t, approved.ReviewedBy)
	require.Equal(t, admin.UserID, *approved.ReviewedBy)

	_, err = env.expenses.Approve(ctx, owner, expense.ID)
	require.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	require.Equal(t, "expense already approved", err.Error())

	_, err = env.expenses.Reject(ctx, owner, expense.ID)
	require.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	second, err := env.expenses.Create(ctx, user, coffeeInput())
	require.NoError(t, err)
	rejected, err := env.expenses.Reject(ctx, owner, second.ID)
	require.NoError(t, err)
	require.Equal(t, models.ExpenseStatusRejected, rejected.Status)
}

func TestCompanyExpenseVisibility(t *testing.T) {
	env := newTestServices(t)
	ctx := context.Background()
	_, owner, members := env.companyWith(t, models.RoleAuditor, models.RoleUser, models.RoleUser)
	auditor, user, other := members[0], members[1], members[2]

	mine, err := env.expenses.Create(ctx, user, coffeeInput())
	require.NoError(t, err)
	_, err = env.expenses.Create(ctx, other, coffeeInput())
	require.NoError(t, err)

	// A personal expense created before joining stays visible to its creator only.
	outsider := env.register(t, "solo@example.com")
	_, err = env.expenses.Create(ctx, outsider, coffeeInput())
	require.NoError(t, err)

	list, total, err := env.expenses.List(ctx, auditor, ExpenseListOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, list, 2)

	list, total, err = env.expenses.List(ctx, user, ExpenseListOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, mine.ID, list[0].ID)

	_, err = env.expenses.Get(ctx, other, mine.ID)
	require.True(t, apperrors.IsForbidden(err))
	_, err = env.expenses.Get(ctx, owner, mine.ID)
	require.NoError(t, err)

	_, total, err = env.expenses.List(ctx, owner, ExpenseListOptions{Status: models.ExpenseStatusApproved})
	require.NoError(t, err)
	require.Zero(t, total)

	_, total, err = env.expenses.List(ctx, owner, ExpenseListOptions{Scope: ExpenseScopePersonal})
	require.NoError(t, err)
	require.Zero(t, total)

	_, _, err = env.expenses.List(ctx, owner, ExpenseListOptions{Scope: "everything"})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestExpenseListOrderingAndPaging(t *testing.T) {
	env := newTestServices(t)
	ctx := context.Background()
	alice := env.register(t, "alice@example.com")

	for _, day := range []int{3, 1, 2} {
		input := coffeeInput()
		input.ExpenseDate = time.Date(2026, 4, day, 0, 0, 0, 0, time.UTC)
		_, err := env.expenses.Create(ctx, alice, input)
		require.NoError(t, err)
	}

	list, total, err := env.expenses.List(ctx, alice, ExpenseListOptions{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, list, 2)
	require.Equal(t, 3, time.Time(list[0].ExpenseDate).Day())
	require.Equal(t, 2, time.Time(list[1].ExpenseDate).Day())

	list, _, err = env.expenses.List(ctx, alice, ExpenseListOptions{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 1, time.Time(list[0].ExpenseDate).Day())
}

func TestExpenseUpdateRules(t *testing.T) {
	env := newTestServices(t)
	ctx := context.Background()
	_, owner, members := env.companyWith(t, models.RoleUser)
	user := members[0]

	expense, err := env.expenses.Create(ctx, user, coffeeInput())
	require.NoError(t, err)

	input := coffeeInput()
	input.VendorName = "Bakery"
	input.Items = []ExpenseItemInput{
		{Name: "Croissant", Quantity: 2, NetPrice: decimal.RequireFromString("3.20")},
		{Name: "Latte", NetPrice: decimal.RequireFromString("3.80")},
	}
	updated, err := env.expenses.Update(ctx, user, expense.ID, input)
	require.NoError(t, err)
	require.Equal(t, "Bakery", updated.VendorName)
	require.Len(t, updated.Items, 2)
	require.Equal(t, 1, updated.Items[1].Quantity)
	require.True(t, decimal.RequireFromString("7.00").Equal(updated.TotalAmount))
	require.Equal(t, models.ExpenseStatusPending, updated.Status)

	_, err = env.expenses.Update(ctx, owner, expense.ID, input)
	require.True(t, apperrors.IsForbidden(err))

	_, err = env.expenses.Approve(ctx, owner, expense.ID)
	require.NoError(t, err)
	_, err = env.expenses.Update(ctx, user, expense.ID, input)
	require.True(t, apperrors.IsForbidden(err))
}

func TestExpenseDeleteRules(t *testing.T) {
	env := newTestServices(t)
	ctx := context.Background()
	_, owner, members := env.companyWith(t, models.RoleAuditor, models.RoleUser, models.RoleUser)
	auditor, user, other := members[0], members[1], members[2]

	expense, err := env.expenses.Create(ctx, user, coffeeInput())
	require.NoError(t, err)

	require.True(t, apperrors.IsForbidden(env.expenses.Delete(ctx, auditor, expense.ID)))
	require.True(t, apperrors.IsForbidden(env.expenses.Delete(ctx, other, expense.ID)))
	require.NoError(t, env.expenses.Delete(ctx, user, expense.ID))
	require.ErrorIs(t, env.expenses.Delete(ctx, user, expense.ID), apperrors.ErrNotFound)

	second, err := env.expenses.Create(ctx, other, coffeeInput())
	require.NoError(t, err)
	require.NoError(t, env.expenses.Delete(ctx, owner, second.ID))

	var items int64
	require.NoError(t, env.db.Model(&models.ExpenseItem{}).Where("expense_id = ?", second.ID).Count(&items).Error)
	require.Zero(t, items)
}

func TestExpenseSummary(t *testing.T) {
	env := newTestServices(t)
	ctx := context.Background()
	alice := env.register(t, "alice@example.com")

	_, err := env.expenses.Create(ctx, alice, coffeeInput())
	require.NoError(t, err)
	travel := coffeeInput()
	travel.Category = models.CategoryTravel
	travel.Items = []ExpenseItemInput{{Name: "Train", NetPrice: decimal.RequireFromString("12.30")}}
	_, err = env.expenses.Create(ctx, alice, travel)
	require.NoError(t, err)

	summary, err := env.expenses.Summary(ctx, alice, ExpenseListOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 2, summary.Count)
	require.True(t, decimal.RequireFromString("16.80").Equal(summary.Total), summary.Total.String())
	require.EqualValues(t, 1, summary.ByCategory[models.CategoryTravel].Count)
	require.True(t, decimal.RequireFromString("12.30").Equal(summary.ByCategory[models.CategoryTravel].Total))
	require.EqualValues(t, 2, summary.ByStatus[models.ExpenseStatusApproved].Count)
}
