package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/subkit/pkg/payment"
	"github.com/dmitrymomot/subkit/pkg/provider"
	"github.com/dmitrymomot/subkit/pkg/subscription"
)

// ChargeRecurring attempts offline charges for subscriptions approaching
// their next charge date. Each run selects subscriptions expiring within the
// schedule's horizon and, per subscription, makes at most one attempt per
// window: the pending payment row is created before the provider is called,
// so a failed or in-flight attempt still occupies its window and the next
// try waits for the next one.
type ChargeRecurring struct {
	tx          payment.Transactor
	subs        subscription.Store
	catalog     *subscription.Catalog
	registry    *provider.Registry
	transitions *payment.Service
	notifier    Notifier
	schedule    ChargeSchedule
	log         *slog.Logger
	metrics     *Metrics
}

// ChargeOption configures a ChargeRecurring job.
type ChargeOption func(*ChargeRecurring)

// WithChargeSchedule replaces the default attempt schedule.
func WithChargeSchedule(s ChargeSchedule) ChargeOption {
	return func(j *ChargeRecurring) { j.schedule = s }
}

// WithChargeNotifier sets the notifier for charge outcomes.
func WithChargeNotifier(n Notifier) ChargeOption {
	return func(j *ChargeRecurring) {
		if n != nil {
			j.notifier = n
		}
	}
}

// WithChargeLogger overrides the default slog logger.
func WithChargeLogger(log *slog.Logger) ChargeOption {
	return func(j *ChargeRecurring) {
		if log != nil {
			j.log = log
		}
	}
}

// WithChargeMetrics enables prometheus counters for the job.
func WithChargeMetrics(m *Metrics) ChargeOption {
	return func(j *ChargeRecurring) { j.metrics = m }
}

// NewChargeRecurring creates the recurring charge job.
// Panics on nil dependencies or an invalid schedule to fail fast during
// initialization.
func NewChargeRecurring(
	tx payment.Transactor,
	subs subscription.Store,
	catalog *subscription.Catalog,
	registry *provider.Registry,
	transitions *payment.Service,
	opts ...ChargeOption,
) *ChargeRecurring {
	if tx == nil {
		panic("jobs: Transactor is required")
	}
	if subs == nil {
		panic("jobs: subscription Store is required")
	}
	if catalog == nil {
		panic("jobs: Catalog is required")
	}
	if registry == nil {
		panic("jobs: provider Registry is required")
	}
	if transitions == nil {
		panic("jobs: payment Service is required")
	}

	j := &ChargeRecurring{
		tx:          tx,
		subs:        subs,
		catalog:     catalog,
		registry:    registry,
		transitions: transitions,
		notifier:    NopNotifier{},
		schedule:    DefaultChargeSchedule(),
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(j)
	}

	normalized, err := j.schedule.Normalize()
	if err != nil {
		panic(fmt.Sprintf("jobs: %v", err))
	}
	j.schedule = normalized
	return j
}

// Name identifies the job in logs and metrics.
func (j *ChargeRecurring) Name() string { return "charge_recurring" }

// Run performs one scheduler tick at the given time. Per-subscription
// failures are logged and never abort the rest of the batch.
func (j *ChargeRecurring) Run(ctx context.Context, now time.Time) error {
	expiring, err := j.subs.ListExpiring(ctx, j.schedule.Horizon(), now)
	if err != nil {
		return fmt.Errorf("failed to list expiring subscriptions: %w", err)
	}

	var failed int
	for _, sub := range expiring {
		if err := j.chargeSubscription(ctx, sub, now); err != nil {
			failed++
			j.log.ErrorContext(ctx, "charge attempt failed",
				slog.String("subscription_id", sub.ID.String()),
				slog.String("error", err.Error()))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d charge attempts failed", failed, len(expiring))
	}
	return nil
}

func (j *ChargeRecurring) chargeSubscription(ctx context.Context, sub subscription.Subscription, now time.Time) error {
	plan, err := j.catalog.Get(sub.PlanCodename)
	if err != nil {
		return fmt.Errorf("subscription %s references unknown plan %q: %w", sub.ID, sub.PlanCodename, err)
	}

	// Pure pre-validation: one-time and disabled plans never renew. The
	// actual prolongation is persisted by the payment completion, not here.
	if _, err := sub.Prolong(plan); err != nil {
		if errors.Is(err, subscription.ErrProlongationImpossible) {
			j.log.DebugContext(ctx, "subscription not renewable, skipping",
				slog.String("subscription_id", sub.ID.String()),
				slog.String("plan", plan.Codename))
			return nil
		}
		return err
	}

	// Attempt windows lead up to the next charge occurrence, which doubles
	// as the deadline closing the last window.
	window, ok := j.schedule.WindowFor(sub.NextChargeDate(plan, now), now)
	if !ok {
		return nil
	}

	pay, prov, err := j.openAttempt(ctx, sub, plan, window, now)
	switch {
	case errors.Is(err, errAttemptExists):
		return nil
	case errors.Is(err, errNoPriorPayment):
		j.log.DebugContext(ctx, "no completed payment to template charge, skipping",
			slog.String("subscription_id", sub.ID.String()))
		return nil
	case err != nil:
		return err
	}

	settled, err := prov.ChargeOffline(ctx, pay)
	if err != nil {
		if errors.Is(err, provider.ErrPaymentFailed) {
			return j.recordFailure(ctx, pay, sub, now, err)
		}
		// Transport-level failure: the pending row stays as is and
		// reconciliation or the next window picks it up.
		j.metrics.chargeAttempt("error")
		return err
	}

	if err := j.persistAttempt(ctx, pay, now); err != nil {
		return err
	}

	if !settled {
		// The upstream accepted the charge but the money has not moved
		// yet. The payment stays pending with its provider ID recorded;
		// the provider's webhook or reconciliation completes it.
		j.metrics.chargeAttempt("pending")
		j.log.InfoContext(ctx, "offline charge awaiting settlement",
			slog.String("subscription_id", sub.ID.String()),
			slog.String("payment_id", pay.ID.String()),
			slog.String("provider_payment_id", pay.ProviderPaymentID))
		return nil
	}

	if err := j.transitions.Complete(ctx, pay.ProviderCodename, pay.ProviderPaymentID, now); err != nil {
		return err
	}
	j.metrics.chargeAttempt("completed")

	prolonged, err := j.subs.Get(ctx, sub.ID)
	if err != nil {
		return err
	}
	if err := j.notifier.PaymentSucceeded(ctx, *pay, *prolonged); err != nil {
		j.log.WarnContext(ctx, "failed to send renewal notification",
			slog.String("payment_id", pay.ID.String()),
			slog.String("error", err.Error()))
	}

	j.log.InfoContext(ctx, "subscription charged",
		slog.String("subscription_id", sub.ID.String()),
		slog.String("payment_id", pay.ID.String()),
		slog.Time("new_end", prolonged.End))
	return nil
}

// openAttempt creates the pending payment for the current window, or reports
// that the window is already taken. The window check and the insert share a
// transaction so two concurrent ticks cannot both claim the same window.
func (j *ChargeRecurring) openAttempt(ctx context.Context, sub subscription.Subscription, plan subscription.Plan, window Window, now time.Time) (*payment.Payment, provider.Provider, error) {
	var (
		pay  *payment.Payment
		prov provider.Provider
	)
	err := j.tx.WithinTx(ctx, func(ctx context.Context, payments payment.Store, subs subscription.Store) error {
		// The window check is read-then-insert, so concurrent ticks must
		// serialize on the subscription row before reading it.
		if _, err := subs.Get(ctx, sub.ID); err != nil {
			return err
		}

		attempts, err := payments.ListBySubscriptionBetween(ctx, sub.ID, window.From, window.To)
		if err != nil {
			return err
		}
		if len(attempts) > 0 {
			return errAttemptExists
		}

		template, err := payments.LastCompletedForSubscription(ctx, sub.ID)
		if err != nil {
			if errors.Is(err, payment.ErrPaymentNotFound) {
				return errNoPriorPayment
			}
			return err
		}

		prov, err = j.registry.Get(template.ProviderCodename)
		if err != nil {
			return err
		}
		amount, err := prov.GetAmount(ctx, sub.UserID, plan, template.Quantity)
		if err != nil {
			return err
		}

		pay = payment.New(sub.UserID, plan.Codename, prov.Codename(), amount, template.Quantity, now)
		pay.LinkSubscription(sub.ID)
		return payments.Create(ctx, pay)
	})
	if err != nil {
		return nil, nil, err
	}
	return pay, prov, nil
}

func (j *ChargeRecurring) recordFailure(ctx context.Context, pay *payment.Payment, sub subscription.Subscription, now time.Time, cause error) error {
	err := j.tx.WithinTx(ctx, func(ctx context.Context, payments payment.Store, _ subscription.Store) error {
		pay.Status = payment.StatusError
		pay.UpdatedAt = now
		return payments.Update(ctx, pay)
	})
	if err != nil {
		return err
	}
	j.metrics.chargeAttempt("failed")

	if err := j.notifier.PaymentFailed(ctx, *pay, sub); err != nil {
		j.log.WarnContext(ctx, "failed to send charge failure notification",
			slog.String("payment_id", pay.ID.String()),
			slog.String("error", err.Error()))
	}

	j.log.InfoContext(ctx, "offline charge declined, will retry next window",
		slog.String("subscription_id", sub.ID.String()),
		slog.String("payment_id", pay.ID.String()),
		slog.String("error", cause.Error()))
	return nil
}

// persistAttempt saves the provider payment ID the charge came back with.
// The status transition, if any, goes through the payment service afterwards.
func (j *ChargeRecurring) persistAttempt(ctx context.Context, pay *payment.Payment, now time.Time) error {
	return j.tx.WithinTx(ctx, func(ctx context.Context, payments payment.Store, _ subscription.Store) error {
		pay.UpdatedAt = now
		return payments.Update(ctx, pay)
	})
}
