package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/subkit/pkg/statemachine"
	"github.com/dmitrymomot/subkit/pkg/subscription"
)

var (
	eventComplete = statemachine.StringEvent("complete")
	eventCancel   = statemachine.StringEvent("cancel")
	eventFail     = statemachine.StringEvent("fail")
)

// Service drives the authoritative payment status transition. Webhook
// delivery and reconciliation polling both funnel into it; re-delivery of
// an outcome for a payment already in a terminal status is a silent no-op,
// so at-least-once providers cannot create a second subscription or move an
// end date twice.
type Service struct {
	tx      Transactor
	catalog *subscription.Catalog
	log     *slog.Logger
}

// Option configures a Service instance.
type Option func(*Service)

// WithLogger overrides the default slog logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// NewService creates the payment transition service.
// Panics on nil dependencies to fail fast during initialization.
func NewService(tx Transactor, catalog *subscription.Catalog, opts ...Option) *Service {
	if tx == nil {
		panic("payment: Transactor is required")
	}
	if catalog == nil {
		panic("payment: Catalog is required")
	}
	s := &Service{tx: tx, catalog: catalog, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Complete transitions the payment identified by the provider's idempotency
// key to completed and, on the first such transition only, creates or
// extends the linked subscription atomically with the status write.
func (s *Service) Complete(ctx context.Context, providerCodename, providerPaymentID string, at time.Time) error {
	return s.transition(ctx, providerCodename, providerPaymentID, eventComplete, StatusCompleted, at)
}

// Cancel records a provider-side cancellation of a pending payment.
func (s *Service) Cancel(ctx context.Context, providerCodename, providerPaymentID string, at time.Time) error {
	return s.transition(ctx, providerCodename, providerPaymentID, eventCancel, StatusCancelled, at)
}

// Fail records a provider-side failure of a pending payment.
func (s *Service) Fail(ctx context.Context, providerCodename, providerPaymentID string, at time.Time) error {
	return s.transition(ctx, providerCodename, providerPaymentID, eventFail, StatusError, at)
}

func (s *Service) transition(ctx context.Context, providerCodename, providerPaymentID string, event statemachine.StringEvent, target Status, at time.Time) error {
	if providerPaymentID == "" {
		return ErrMissingProviderID
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context, payments Store, subs subscription.Store) error {
		p, err := payments.GetByProviderPaymentID(ctx, providerCodename, providerPaymentID)
		if err != nil {
			return err
		}

		machine, err := s.machineFor(p, subs, at)
		if err != nil {
			return err
		}

		if err := machine.Fire(ctx, event, p); err != nil {
			if statemachine.IsNoTransitionAvailableError(err) {
				// Duplicate delivery: the terminal status is already
				// recorded and the side effects already happened.
				s.log.DebugContext(ctx, "payment already in terminal status, skipping",
					slog.String("payment_id", p.ID.String()),
					slog.String("status", string(p.Status)),
					slog.String("event", event.Name()))
				return nil
			}
			return err
		}

		p.Status = target
		p.UpdatedAt = at
		return payments.Update(ctx, p)
	})
}

// machineFor builds the transition machine seeded at the payment's current
// status. The completion action performs the one-time subscription side
// effect inside the surrounding transaction; its failure aborts the
// transition entirely.
func (s *Service) machineFor(p *Payment, subs subscription.Store, at time.Time) (statemachine.StateMachine, error) {
	return statemachine.New(p.Status,
		statemachine.WithTransition(StatusPending, StatusCompleted, eventComplete,
			statemachine.WithAction(func(ctx context.Context, _, _ statemachine.State, _ statemachine.Event, data any) error {
				return s.activateSubscription(ctx, data.(*Payment), subs, at)
			})),
		statemachine.WithTransition(StatusPending, StatusCancelled, eventCancel),
		statemachine.WithTransition(StatusPending, StatusError, eventFail),
	)
}

// activateSubscription creates the subscription on a first purchase or
// advances the end date of the linked one on a renewal.
func (s *Service) activateSubscription(ctx context.Context, p *Payment, subs subscription.Store, at time.Time) error {
	plan, err := s.catalog.Get(p.PlanCodename)
	if err != nil {
		return fmt.Errorf("payment %s references unknown plan %q: %w", p.ID, p.PlanCodename, err)
	}

	if p.SubscriptionID == nil {
		sub := subscription.New(p.UserID, plan, at)
		if err := subs.Create(ctx, &sub); err != nil {
			return fmt.Errorf("failed to create subscription: %w", err)
		}
		p.LinkSubscription(sub.ID)
		s.log.InfoContext(ctx, "subscription activated",
			slog.String("subscription_id", sub.ID.String()),
			slog.String("plan", plan.Codename),
			slog.String("user_id", p.UserID.String()))
		return nil
	}

	sub, err := subs.Get(ctx, *p.SubscriptionID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrSubscriptionMissing, *p.SubscriptionID)
	}
	prolonged, err := sub.Prolong(plan)
	if err != nil {
		return err
	}
	prolonged.UpdatedAt = at
	if err := subs.Update(ctx, &prolonged); err != nil {
		return fmt.Errorf("failed to prolong subscription: %w", err)
	}
	s.log.InfoContext(ctx, "subscription prolonged",
		slog.String("subscription_id", sub.ID.String()),
		slog.Time("end", prolonged.End))
	return nil
}
