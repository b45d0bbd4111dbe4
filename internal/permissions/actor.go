package permissions

import "github.com/charlesng35/expensely/internal/models"

// Actor is the caller an authorization decision is made for.
type Actor struct {
	UserID    string
	Email     string
	CompanyID string
	Role      models.Role
}

// ActorFromUser builds an Actor from a stored profile.
func ActorFromUser(u *models.User) Actor {
	if u == nil {
		return Actor{}
	}
	actor := Actor{UserID: u.ID, Email: u.Email}
	if u.InCompany() {
		actor.CompanyID = *u.CompanyID
		actor.Role = u.Role
	}
	return actor
}

// InCompany reports whether the actor belongs to a company.
func (a Actor) InCompany() bool {
	return a.CompanyID != ""
}

// MemberOf reports whether the actor belongs to companyID.
func (a Actor) MemberOf(companyID string) bool {
	return a.CompanyID != "" && a.CompanyID == companyID
}

// effectiveRole ignores a stray role on a personal profile.
func (a Actor) effectiveRole() models.Role {
	if !a.InCompany() {
		return ""
	}
	return a.Role
}

// Can reports whether the actor's role grants permission.
func (a Actor) Can(permission string) bool {
	return Granted(a.effectiveRole(), permission)
}

// Permissions lists what the actor's role grants.
func (a Actor) Permissions() []string {
	return GrantsFor(a.effectiveRole())
}
