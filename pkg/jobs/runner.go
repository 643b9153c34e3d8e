package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a periodic unit of work driven by the Runner. Run receives the tick
// time so job logic stays deterministic under test.
type Job interface {
	Name() string
	Run(ctx context.Context, now time.Time) error
}

// Runner drives registered jobs on cron schedules. Jobs run sequentially
// within a tick and a slow job delays, never overlaps, its own next run.
type Runner struct {
	cron    *cron.Cron
	log     *slog.Logger
	metrics *Metrics
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunnerLogger overrides the default slog logger.
func WithRunnerLogger(log *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// WithRunnerMetrics enables prometheus counters for job runs.
func WithRunnerMetrics(m *Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// NewRunner creates a job runner. Schedules use standard five-field cron
// expressions in UTC.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	r.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	return r
}

// Register schedules a job. Fails on an invalid cron expression.
func (r *Runner) Register(spec string, job Job) error {
	_, err := r.cron.AddFunc(spec, func() {
		r.runOnce(job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", job.Name(), err)
	}
	r.log.Info("scheduled job",
		slog.String("job", job.Name()),
		slog.String("spec", spec))
	return nil
}

// Start runs the scheduler until the context is cancelled.
func (r *Runner) Start(ctx context.Context) error {
	r.cron.Start()
	<-ctx.Done()
	<-r.cron.Stop().Done()
	r.log.Info("job runner stopped")
	return ctx.Err()
}

func (r *Runner) runOnce(job Job) {
	ctx := context.Background()
	started := time.Now().UTC()

	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.runFinished(job.Name(), ErrJobPanicked)
			r.log.Error("job panicked",
				slog.String("job", job.Name()),
				slog.Any("panic", rec))
		}
	}()

	err := job.Run(ctx, started)
	r.metrics.runFinished(job.Name(), err)
	if err != nil {
		r.log.Error("job run failed",
			slog.String("job", job.Name()),
			slog.Duration("took", time.Since(started)),
			slog.String("error", err.Error()))
		return
	}
	r.log.Debug("job run finished",
		slog.String("job", job.Name()),
		slog.Duration("took", time.Since(started)))
}
