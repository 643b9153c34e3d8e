package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/subkit/pkg/payment"
	"github.com/dmitrymomot/subkit/pkg/provider"
)

// DefaultReconcileWithin bounds the reconciliation scan: pending payments
// older than this are abandoned to manual review instead of being re-checked
// forever.
const DefaultReconcileWithin = 24 * time.Hour

// Reconcile re-checks recent pending payments against their providers and
// settles the ones the upstream already considers terminal. It covers the
// gap where a charge was created but the completion webhook never arrived.
type Reconcile struct {
	payments payment.Store
	registry *provider.Registry
	within   time.Duration
	log      *slog.Logger
	metrics  *Metrics
}

// ReconcileOption configures a Reconcile job.
type ReconcileOption func(*Reconcile)

// WithReconcileWindow bounds the scan to payments created within d of the run.
func WithReconcileWindow(d time.Duration) ReconcileOption {
	return func(j *Reconcile) {
		if d > 0 {
			j.within = d
		}
	}
}

// WithReconcileLogger overrides the default slog logger.
func WithReconcileLogger(log *slog.Logger) ReconcileOption {
	return func(j *Reconcile) {
		if log != nil {
			j.log = log
		}
	}
}

// WithReconcileMetrics enables prometheus counters for the job.
func WithReconcileMetrics(m *Metrics) ReconcileOption {
	return func(j *Reconcile) { j.metrics = m }
}

// NewReconcile creates the reconciliation job.
// Panics on nil dependencies to fail fast during initialization.
func NewReconcile(payments payment.Store, registry *provider.Registry, opts ...ReconcileOption) *Reconcile {
	if payments == nil {
		panic("jobs: payment Store is required")
	}
	if registry == nil {
		panic("jobs: provider Registry is required")
	}
	j := &Reconcile{
		payments: payments,
		registry: registry,
		within:   DefaultReconcileWithin,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Name identifies the job in logs and metrics.
func (j *Reconcile) Name() string { return "reconcile_payments" }

// Run checks pending payments created within the scan window, batched per
// provider. A provider transport failure fails the run: reconciliation never
// guesses an outcome, it retries on the next tick.
func (j *Reconcile) Run(ctx context.Context, now time.Time) error {
	pending, err := j.payments.ListPendingCreatedAfter(ctx, now.Add(-j.within))
	if err != nil {
		return fmt.Errorf("failed to list pending payments: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	byProvider := make(map[string][]payment.Payment)
	for _, p := range pending {
		byProvider[p.ProviderCodename] = append(byProvider[p.ProviderCodename], p)
	}

	for codename, batch := range byProvider {
		prov, err := j.registry.Get(codename)
		if err != nil {
			// Payment rows can outlive a provider's registration.
			j.log.WarnContext(ctx, "skipping payments of unregistered provider",
				slog.String("provider", codename),
				slog.Int("count", len(batch)))
			continue
		}
		if err := prov.CheckPayments(ctx, batch); err != nil {
			return fmt.Errorf("reconciliation against %s failed: %w", codename, err)
		}
		j.log.DebugContext(ctx, "reconciled pending payments",
			slog.String("provider", codename),
			slog.Int("count", len(batch)))
	}
	return nil
}
