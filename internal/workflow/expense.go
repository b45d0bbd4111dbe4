// Package workflow holds the status transition rules for expenses, invitations
// and company roles. The rules are pure; services apply them inside a transaction.
package workflow

import (
	"fmt"

	"github.com/charlesng35/expensely/internal/models"

	apperrors "github.com/charlesng35/expensely/pkg/errors"
)

// InitialExpenseStatus returns the status a new expense is stored with.
// Personal expenses skip review.
func InitialExpenseStatus(companyID string) models.ExpenseStatus {
	if companyID == "" {
		return models.ExpenseStatusApproved
	}
	return models.ExpenseStatusPending
}

// ExpenseTransition validates a review decision.
func ExpenseTransition(from, to models.ExpenseStatus) error {
	if !to.Terminal() {
		return apperrors.NewBadRequest(fmt.Sprintf("unsupported expense status %q", to))
	}
	if from != models.ExpenseStatusPending {
		return invalidTransition("expense already %s", from)
	}
	return nil
}

func invalidTransition(format string, args ...any) error {
	return apperrors.ErrInvalidTransition.WithMessage(fmt.Sprintf(format, args...))
}
