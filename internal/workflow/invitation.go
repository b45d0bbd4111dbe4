package workflow

import (
	"fmt"

	"github.com/charlesng35/expensely/internal/models"

	apperrors "github.com/charlesng35/expensely/pkg/errors"
)

// InvitationTransition validates moving an invitation out of pending.
func InvitationTransition(from, to models.InvitationStatus) error {
	switch to {
	case models.InvitationStatusAccepted, models.InvitationStatusDeclined, models.InvitationStatusExpired:
	default:
		return apperrors.NewBadRequest(fmt.Sprintf("unsupported invitation status %q", to))
	}
	if from != models.InvitationStatusPending {
		return invalidTransition("invitation already %s", from)
	}
	return nil
}
