package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/expensely/internal/auth"
	"github.com/charlesng35/expensely/internal/database/testutil"
	"github.com/charlesng35/expensely/internal/models"
	"github.com/charlesng35/expensely/internal/permissions"
)

type testServices struct {
	db          *gorm.DB
	audit       *AuditService
	profiles    *ProfileService
	companies   *CompanyService
	invitations *InvitationService
	expenses    *ExpenseService
	now         time.Time
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	env := &testServices{db: db, now: time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return env.now }

	var err error
	env.audit, err = NewAuditService(db)
	require.NoError(t, err)
	env.profiles, err = NewProfileService(db, env.audit)
	require.NoError(t, err)
	env.companies, err = NewCompanyService(db, env.audit)
	require.NoError(t, err)
	env.invitations, err = NewInvitationService(db, env.audit, WithInvitationClock(clock), WithInvitationTTL(72*time.Hour))
	require.NoError(t, err)
	env.expenses, err = NewExpenseService(db, env.audit)
	require.NoError(t, err)
	env.expenses.now = clock
	return env
}

func (e *testServices) register(t *testing.T, email string) permissions.Actor {
	t.Helper()
	user, err := e.profiles.Register(context.Background(), RegisterInput{Email: email, Password: "correct-horse"})
	require.NoError(t, err)
	return e.actor(t, user.ID)
}

// actor reloads the profile so role and company reflect the latest writes.
func (e *testServices) actor(t *testing.T, userID string) permissions.Actor {
	t.Helper()
	actor, err := e.profiles.Actor(context.Background(), auth.Identity{ID: userID})
	require.NoError(t, err)
	return actor
}

// companyWith creates a company owned by a new user and joins one member per role.
func (e *testServices) companyWith(t *testing.T, roles ...models.Role) (*models.Company, permissions.Actor, []permissions.Actor) {
	t.Helper()
	ctx := context.Background()

	owner := e.register(t, "owner@example.com")
	company, err := e.companies.Create(ctx, owner, "Acme")
	require.NoError(t, err)
	owner = e.actor(t, owner.UserID)

	members := make([]permissions.Actor, 0, len(roles))
	for i, role := range roles {
		email := string(role) + string(rune('a'+i)) + "@example.com"
		member := e.register(t, email)
		inv, err := e.invitations.Create(ctx, owner, company.ID, email, role)
		require.NoError(t, err)
		_, err = e.invitations.Accept(ctx, member, inv.ID)
		require.NoError(t, err)
		members = append(members, e.actor(t, member.UserID))
	}
	return company, owner, members
}

func coffeeInput() ExpenseInput {
	return ExpenseInput{
		VendorName:    "Cafe",
		Items:         []ExpenseItemInput{{Name: "Coffee", Quantity: 1, NetPrice: decimal.RequireFromString("4.50")}},
		Category:      models.CategoryFood,
		PaymentMethod: models.PaymentMethodCard,
		ExpenseDate:   time.Date(2026, 4, 9, 0, 0, 0, 0, time.UTC),
	}
}
