package api

import (
	"gorm.io/gorm"

	"github.com/charlesng35/expensely/internal/app"
	"github.com/charlesng35/expensely/internal/services"
)

type serviceSet struct {
	profiles    *services.ProfileService
	companies   *services.CompanyService
	invitations *services.InvitationService
	expenses    *services.ExpenseService
	extraction  *services.ExtractionService
}

func newServiceSet(db *gorm.DB, cfg *app.Config, extractor services.Extractor) (*serviceSet, error) {
	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}

	set := &serviceSet{}
	if set.profiles, err = services.NewProfileService(db, audit); err != nil {
		return nil, err
	}
	if set.companies, err = services.NewCompanyService(db, audit); err != nil {
		return nil, err
	}
	if set.invitations, err = services.NewInvitationService(db, audit, services.WithInvitationTTL(cfg.Invitations.TTL)); err != nil {
		return nil, err
	}
	if set.expenses, err = services.NewExpenseService(db, audit); err != nil {
		return nil, err
	}
	if extractor != nil {
		if set.extraction, err = services.NewExtractionService(extractor, audit); err != nil {
			return nil, err
		}
	}
	return set, nil
}
