package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/expensely/internal/api"
	"github.com/charlesng35/expensely/internal/app"
	"github.com/charlesng35/expensely/internal/app/maintenance"
	iauth "github.com/charlesng35/expensely/internal/auth"
	"github.com/charlesng35/expensely/internal/cache"
	"github.com/charlesng35/expensely/internal/database"
	"github.com/charlesng35/expensely/internal/extraction"
	"github.com/charlesng35/expensely/internal/middleware"
	"github.com/charlesng35/expensely/internal/monitoring"
	"github.com/charlesng35/expensely/internal/monitoring/checks"
	"github.com/charlesng35/expensely/internal/security"
	"github.com/charlesng35/expensely/internal/services"
	"github.com/charlesng35/expensely/pkg/logger"
)

const maintenanceStaleAfter = 26 * time.Hour

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Redis     *cache.RedisStore
	Store     cache.Store
	Limiter   *extraction.Limiter
	Tracker   *monitoring.JobTracker
	Cleaner   *maintenance.Cleaner
	RateStore middleware.RateStore
	Router    *gin.Engine
}

// bootstrapRuntime initialises the database, cache, extraction pipeline and HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{Tracker: monitoring.NewJobTracker()}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	runSecurityAudit(ctx, stack.DB, cfg, log)

	dbStore := cache.NewDatabaseStore(stack.DB)
	stack.Store = dbStore
	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed cache", zap.Error(err))
			stack.Redis = nil
		} else {
			stack.Store = stack.Redis
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}
	stack.RateStore = middleware.NewStoreRateStore(stack.Store)

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}
	verifier, err := iauth.NewVerifier(jwtSvc)
	if err != nil {
		return nil, fmt.Errorf("initialise token verifier: %w", err)
	}

	var extractor services.Extractor
	if cfg.Extraction.Enabled() {
		model, err := extraction.NewOpenAIModel(cfg.Extraction.ModelConfig())
		if err != nil {
			return nil, fmt.Errorf("initialise extraction model: %w", err)
		}
		stack.Limiter = extraction.NewLimiter(cfg.Extraction.PerMinute, cfg.Extraction.Burst)
		if extractor, err = extraction.NewExtractor(model, extraction.WithLimiter(stack.Limiter)); err != nil {
			return nil, fmt.Errorf("initialise extractor: %w", err)
		}
		log.Info("receipt extraction enabled", zap.String("model", cfg.Extraction.Model))
	} else {
		log.Info("receipt extraction disabled; set extraction.endpoint to enable it")
	}

	if cfg.Maintenance.Enabled {
		if stack.Cleaner, err = newCleaner(stack, cfg, dbStore); err != nil {
			return nil, err
		}
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	stack.Router, err = api.NewRouter(stack.DB, verifier, cfg, api.Dependencies{
		RateStore: stack.RateStore,
		Health:    newHealthManager(stack, cfg),
		Extractor: extractor,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// runSecurityAudit logs every check that did not pass. Findings never block start-up.
func runSecurityAudit(ctx context.Context, db *gorm.DB, cfg *app.Config, log *zap.Logger) security.Result {
	result := security.NewAuditService(db, cfg).Run(ctx)
	for _, check := range result.Checks {
		fields := []zap.Field{zap.String("check", check.ID), zap.String("remediation", check.Remediation)}
		switch check.Status {
		case security.StatusFail:
			log.Error(check.Message, fields...)
		case security.StatusWarn:
			log.Warn(check.Message, fields...)
		}
	}
	return result
}

func newCleaner(stack *runtimeStack, cfg *app.Config, dbStore *cache.DatabaseStore) (*maintenance.Cleaner, error) {
	auditSvc, err := services.NewAuditService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise audit service: %w", err)
	}
	invitationSvc, err := services.NewInvitationService(stack.DB, auditSvc, services.WithInvitationTTL(cfg.Invitations.TTL))
	if err != nil {
		return nil, fmt.Errorf("initialise invitation service: %w", err)
	}

	m := cfg.Maintenance
	opts := []maintenance.Option{
		maintenance.WithAuditRetentionDays(m.AuditRetentionDays),
		maintenance.WithSchedules(m.InvitationSchedule, m.AuditSchedule, m.CacheSchedule, m.LimiterPruneSchedule),
		maintenance.WithTracker(stack.Tracker),
	}
	if stack.Redis == nil {
		opts = append(opts, maintenance.WithCachePurger(dbStore))
	}
	if stack.Limiter != nil {
		opts = append(opts, maintenance.WithLimiter(stack.Limiter))
	}
	return maintenance.NewCleaner(invitationSvc, auditSvc, opts...), nil
}

func newHealthManager(stack *runtimeStack, cfg *app.Config) *monitoring.HealthManager {
	timeout := cfg.Monitoring.Health.Timeout
	manager := monitoring.NewHealthManager()
	manager.RegisterLiveness(monitoring.NewCheck("process", func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	manager.RegisterReadiness(checks.Database(stack.DB, timeout))

	var pinger checks.Pinger
	if stack.Redis != nil {
		pinger = stack.Redis
	}
	manager.RegisterReadiness(checks.Redis(pinger, cfg.Cache.Redis.Enabled, timeout))

	if stack.Cleaner != nil {
		manager.RegisterReadiness(checks.Maintenance(stack.Tracker, maintenanceStaleAfter))
	}
	return manager
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		<-s.Cleaner.Stop().Done()
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		if err := database.Close(s.DB); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseOpenConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}
