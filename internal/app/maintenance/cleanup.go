package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/expensely/internal/cache"
	"github.com/charlesng35/expensely/internal/monitoring"
	"github.com/charlesng35/expensely/pkg/logger"
)

const (
	defaultAuditRetentionDays = 90
	defaultInvitationSpec     = "@hourly"
	defaultAuditSpec          = "@daily"
	defaultCacheSpec          = "*/15 * * * *"
	defaultLimiterSpec        = "*/10 * * * *"
)

// InvitationExpirer marks lapsed invitations expired.
type InvitationExpirer interface {
	ExpireStale(ctx context.Context) (int64, error)
}

// AuditPruner removes audit logs past retention.
type AuditPruner interface {
	CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error)
}

// LimiterPruner drops idle per-user extraction limiters.
type LimiterPruner interface {
	Prune() int
}

type job struct {
	name     string
	schedule string
	run      func(ctx context.Context) (int64, error)
}

// Cleaner coordinates background maintenance: invitation expiry, audit
// retention, cache purging and limiter pruning. Jobs whose dependency is nil
// are not scheduled.
type Cleaner struct {
	invitations InvitationExpirer
	audit       AuditPruner
	cache       cache.Purger
	limiter     LimiterPruner
	tracker     *monitoring.JobTracker
	cron        *cron.Cron
	log         *zap.Logger
	retention   int

	invitationSchedule string
	auditSchedule      string
	cacheSchedule      string
	limiterSchedule    string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained before cleanup.
func WithAuditRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

func WithCachePurger(p cache.Purger) Option {
	return func(cleaner *Cleaner) { cleaner.cache = p }
}

func WithLimiter(l LimiterPruner) Option {
	return func(cleaner *Cleaner) { cleaner.limiter = l }
}

// WithTracker records every run for the maintenance health probe.
func WithTracker(t *monitoring.JobTracker) Option {
	return func(cleaner *Cleaner) { cleaner.tracker = t }
}

// WithSchedules overrides the cron expressions. Empty values keep the defaults.
func WithSchedules(invitations, audit, cache, limiter string) Option {
	return func(cleaner *Cleaner) {
		if invitations != "" {
			cleaner.invitationSchedule = invitations
		}
		if audit != "" {
			cleaner.auditSchedule = audit
		}
		if cache != "" {
			cleaner.cacheSchedule = cache
		}
		if limiter != "" {
			cleaner.limiterSchedule = limiter
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults.
func NewCleaner(invitations InvitationExpirer, audit AuditPruner, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		invitations:        invitations,
		audit:              audit,
		retention:          defaultAuditRetentionDays,
		invitationSchedule: defaultInvitationSpec,
		auditSchedule:      defaultAuditSpec,
		cacheSchedule:      defaultCacheSpec,
		limiterSchedule:    defaultLimiterSpec,
		log:                logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return cleaner
}

func (c *Cleaner) jobs() []job {
	var jobs []job
	if c.invitations != nil {
		jobs = append(jobs, job{name: "invitation_expiry", schedule: c.invitationSchedule, run: c.invitations.ExpireStale})
	}
	if c.audit != nil && c.retention > 0 {
		jobs = append(jobs, job{name: "audit_retention", schedule: c.auditSchedule, run: func(ctx context.Context) (int64, error) {
			return c.audit.CleanupOlderThan(ctx, c.retention)
		}})
	}
	if c.cache != nil {
		jobs = append(jobs, job{name: "cache_purge", schedule: c.cacheSchedule, run: c.cache.PurgeExpired})
	}
	if c.limiter != nil {
		jobs = append(jobs, job{name: "limiter_prune", schedule: c.limiterSchedule, run: func(context.Context) (int64, error) {
			return int64(c.limiter.Prune()), nil
		}})
	}
	return jobs
}

// Start registers cleanup jobs with the cron scheduler and launches it if at least one job is enabled.
func (c *Cleaner) Start() error {
	jobs := c.jobs()
	if len(jobs) == 0 {
		return nil
	}

	for _, j := range jobs {
		j := j
		if _, err := c.cron.AddFunc(j.schedule, func() {
			_ = c.execute(context.Background(), j)
		}); err != nil {
			return fmt.Errorf("maintenance: schedule %s: %w", j.name, err)
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every configured job sequentially and returns all failures combined.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	for _, j := range c.jobs() {
		errs = multierr.Append(errs, c.execute(ctx, j))
	}
	return errs
}

func (c *Cleaner) execute(ctx context.Context, j job) error {
	started := time.Now()
	affected, err := j.run(ctx)
	c.tracker.Record(j.name, err, time.Since(started))

	if err != nil {
		c.log.Warn("maintenance job failed", zap.String("job", j.name), zap.Error(err))
		return fmt.Errorf("%s: %w", j.name, err)
	}
	if affected > 0 {
		c.log.Info("maintenance job completed", zap.String("job", j.name), zap.Int64("affected", affected))
	}
	return nil
}
