package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/charlesng35/expensely/internal/app"
	iauth "github.com/charlesng35/expensely/internal/auth"
	"github.com/charlesng35/expensely/internal/handlers"
	"github.com/charlesng35/expensely/internal/middleware"
	"github.com/charlesng35/expensely/internal/monitoring"
	"github.com/charlesng35/expensely/internal/services"
)

// Dependencies carries the optional collaborators of the router.
type Dependencies struct {
	// RateStore backs request rate limiting. Nil uses a process-local store.
	RateStore middleware.RateStore
	// Health runs the readiness probes. Nil serves an empty report.
	Health *monitoring.HealthManager
	// Extractor enables POST /api/expenses/extract when set.
	Extractor services.Extractor
}

// NewRouter builds the Gin engine, wires middleware and registers the API routes.
func NewRouter(db *gorm.DB, verifier *iauth.Verifier, cfg *app.Config, deps Dependencies) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if verifier == nil {
		return nil, fmt.Errorf("token verifier must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	svc, err := newServiceSet(db, cfg, deps.Extractor)
	if err != nil {
		return nil, err
	}

	rateStore := deps.RateStore
	if rateStore == nil {
		rateStore = middleware.NewMemoryRateStore()
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestContext())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())

	registerHealthRoutes(r, cfg, deps.Health)

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	authHandler, err := handlers.NewAuthHandler(svc.profiles, verifier)
	if err != nil {
		return nil, err
	}
	public := r.Group("/api")
	public.Use(middleware.RateLimit(rateStore, cfg.RateLimit.Auth, cfg.RateLimit.Window))
	registerAuthRoutes(public, authHandler)

	api := r.Group("/api")
	api.Use(middleware.Auth(verifier))
	api.Use(middleware.RateLimit(rateStore, cfg.RateLimit.Requests, cfg.RateLimit.Window))

	api.GET("/auth/me", authHandler.Me)

	profileHandler, err := handlers.NewProfileHandler(svc.profiles)
	if err != nil {
		return nil, err
	}
	registerProfileRoutes(api, profileHandler)

	companyHandler, err := handlers.NewCompanyHandler(svc.profiles, svc.companies)
	if err != nil {
		return nil, err
	}
	invitationHandler, err := handlers.NewInvitationHandler(svc.profiles, svc.invitations)
	if err != nil {
		return nil, err
	}
	registerCompanyRoutes(api, companyHandler, invitationHandler)

	expenseHandler, err := handlers.NewExpenseHandler(svc.profiles, svc.expenses, svc.extraction)
	if err != nil {
		return nil, err
	}
	registerExpenseRoutes(api, expenseHandler)

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
