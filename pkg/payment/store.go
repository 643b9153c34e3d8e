package payment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/subkit/pkg/subscription"
)

// Store defines payment persistence. Read-then-write sequences (the
// idempotent status transition, the scheduler's attempt-window check) must
// run through a Transactor; inside a transaction the Get* methods take a
// row lock so concurrent transitions on the same payment serialize instead
// of both observing the pending status.
type Store interface {
	// Create persists a new payment. Fails with ErrDuplicatePayment when a
	// payment with the same (provider codename, provider payment ID) exists.
	Create(ctx context.Context, p *Payment) error

	// Update saves changed fields of an existing payment.
	Update(ctx context.Context, p *Payment) error

	// Get retrieves a payment by internal ID.
	Get(ctx context.Context, id uuid.UUID) (*Payment, error)

	// GetByProviderPaymentID retrieves a payment by its idempotency key.
	GetByProviderPaymentID(ctx context.Context, providerCodename, providerPaymentID string) (*Payment, error)

	// ListPendingCreatedAfter returns pending payments created at or after
	// the cutoff, the reconciliation job's bounded scan.
	ListPendingCreatedAfter(ctx context.Context, cutoff time.Time) ([]Payment, error)

	// ListBySubscriptionBetween returns payments for a subscription created
	// in [from, to), any status. Backs the attempt-window dedup.
	ListBySubscriptionBetween(ctx context.Context, subID uuid.UUID, from, to time.Time) ([]Payment, error)

	// LastCompletedForSubscription returns the most recent completed payment
	// of a subscription, the template for offline re-charges.
	LastCompletedForSubscription(ctx context.Context, subID uuid.UUID) (*Payment, error)
}

// Transactor runs a function with transaction-scoped stores. A status
// transition touches a payment row and a subscription row together, so both
// stores must share one transaction. Implementations must serialize
// concurrent transactions touching the same rows; the postgres store does
// it with SELECT ... FOR UPDATE, the memory one with a single mutex.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, payments Store, subs subscription.Store) error) error
}
