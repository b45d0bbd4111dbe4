package workflow

import (
	"fmt"

	"github.com/charlesng35/expensely/internal/models"

	apperrors "github.com/charlesng35/expensely/pkg/errors"
)

// RoleChangePlan is the set of writes a role change requires.
type RoleChangePlan struct {
	TargetID   string
	TargetRole models.Role

	// TransferOwnership is set when the target becomes the owner. The previous
	// owner is then demoted to PreviousOwnerRole.
	TransferOwnership bool
	PreviousOwnerID   string
	PreviousOwnerRole models.Role
}

// PlanRoleChange validates giving target the role next in a company owned by ownerID.
func PlanRoleChange(ownerID string, target models.CompanyMember, current, next models.Role) (RoleChangePlan, error) {
	if !next.Valid() {
		return RoleChangePlan{}, apperrors.NewBadRequest(fmt.Sprintf("unknown role %q", next))
	}
	if target.UserID == ownerID {
		if next == models.RoleOwner {
			return RoleChangePlan{}, invalidTransition("member is already the owner")
		}
		return RoleChangePlan{}, invalidTransition("the owner's role can only change through an ownership transfer")
	}
	if current == next {
		return RoleChangePlan{}, invalidTransition("member already has role %s", next)
	}

	plan := RoleChangePlan{TargetID: target.UserID, TargetRole: next}
	if next == models.RoleOwner {
		plan.TransferOwnership = true
		plan.PreviousOwnerID = ownerID
		plan.PreviousOwnerRole = models.RoleAdmin
	}
	return plan, nil
}
