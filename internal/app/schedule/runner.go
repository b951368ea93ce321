package schedule

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/aditya93941/project-management/internal/services"
	"github.com/aditya93941/project-management/pkg/logger"
)

// Default cron specifications (with a seconds field) for the five sweeps.
const (
	defaultGrantExpirySpec  = "0 0 * * * *" // hourly
	defaultGrantWarningSpec = "0 0 9 * * *" // daily, morning
	defaultScheduledSpec    = "0 * * * * *" // every minute
	defaultEndOfDaySpec     = "0 59 23 * * *"
	defaultFinalizeSpec     = "1 0 0 * * *" // one second past midnight
)

// Specs overrides the cron specification for each sweep; empty fields keep
// the defaults. Cadences are configuration, not contract: every sweep is
// idempotent and tolerates at-least-once delivery.
type Specs struct {
	GrantExpiry          string
	GrantWarning         string
	ScheduledSubmissions string
	EndOfDay             string
	Finalize             string
}

// Option customises the Runner.
type Option func(*Runner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(r *Runner) {
		if c != nil {
			r.cron = c
		}
	}
}

// WithSpecs overrides individual sweep schedules.
func WithSpecs(specs Specs) Option {
	return func(r *Runner) {
		if specs.GrantExpiry != "" {
			r.grantExpirySpec = specs.GrantExpiry
		}
		if specs.GrantWarning != "" {
			r.grantWarningSpec = specs.GrantWarning
		}
		if specs.ScheduledSubmissions != "" {
			r.scheduledSpec = specs.ScheduledSubmissions
		}
		if specs.EndOfDay != "" {
			r.endOfDaySpec = specs.EndOfDay
		}
		if specs.Finalize != "" {
			r.finalizeSpec = specs.Finalize
		}
	}
}

// Runner drives the periodic sweeps for grants and reports. A single active
// runner is assumed; duplicate instances can at worst duplicate
// notifications, which the per-action dedupe in the services bounds.
type Runner struct {
	access  *services.AccessService
	reports *services.ReportService
	cron    *cron.Cron
	log     *zap.Logger

	grantExpirySpec  string
	grantWarningSpec string
	scheduledSpec    string
	endOfDaySpec     string
	finalizeSpec     string
}

// NewRunner constructs a Runner with default cadences.
func NewRunner(access *services.AccessService, reports *services.ReportService, opts ...Option) *Runner {
	runner := &Runner{
		access:           access,
		reports:          reports,
		log:              logger.WithModule("schedule"),
		grantExpirySpec:  defaultGrantExpirySpec,
		grantWarningSpec: defaultGrantWarningSpec,
		scheduledSpec:    defaultScheduledSpec,
		endOfDaySpec:     defaultEndOfDaySpec,
		finalizeSpec:     defaultFinalizeSpec,
	}

	for _, opt := range opts {
		opt(runner)
	}

	if runner.cron == nil {
		runner.cron = cron.New(cron.WithSeconds(), cron.WithLogger(cron.DiscardLogger))
	}

	return runner
}

// Start registers the sweep jobs with the cron scheduler and launches it.
func (r *Runner) Start() error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context) (int, error)
	}{
		{"expire_grants", r.grantExpirySpec, r.access.ExpireGrants},
		{"warn_expiring", r.grantWarningSpec, r.access.WarnExpiringGrants},
		{"scheduled_submissions", r.scheduledSpec, r.reports.SweepScheduled},
		{"end_of_day", r.endOfDaySpec, r.reports.ForceEndOfDay},
		{"finalize", r.finalizeSpec, r.reports.FinalizeYesterday},
	}

	for _, job := range jobs {
		name, run := job.name, job.run
		if _, err := r.cron.AddFunc(job.spec, func() {
			start := time.Now()
			count, err := run(context.Background())
			if err != nil {
				r.log.Warn("sweep failed", zap.String("job", name), zap.Error(err))
				return
			}
			if count > 0 {
				r.log.Info("sweep completed",
					zap.String("job", name),
					zap.Int("rows", count),
					zap.Duration("duration", time.Since(start)))
			}
		}); err != nil {
			return err
		}
	}

	r.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (r *Runner) Stop() context.Context {
	if r.cron == nil {
		return context.Background()
	}
	return r.cron.Stop()
}

// RunOnce executes every sweep sequentially. Primarily used in tests and
// during graceful shutdown.
func (r *Runner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if _, err := r.access.ExpireGrants(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := r.access.WarnExpiringGrants(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := r.reports.SweepScheduled(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := r.reports.ForceEndOfDay(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := r.reports.FinalizeYesterday(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}

	return errs
}
