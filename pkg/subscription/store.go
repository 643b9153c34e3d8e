package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store defines subscription persistence. Implementations must back
// ListExpiring with a range query on end timestamps and keep Update
// in-place so prolongation advances the existing row.
type Store interface {
	// Create persists a new subscription (first payment or manual grant).
	Create(ctx context.Context, sub *Subscription) error

	// Update saves changed fields of an existing subscription.
	// Returns ErrSubscriptionNotFound if the row is gone.
	Update(ctx context.Context, sub *Subscription) error

	// Get retrieves a subscription by ID.
	Get(ctx context.Context, id uuid.UUID) (*Subscription, error)

	// ListActive returns the user's subscriptions with end >= now.
	ListActive(ctx context.Context, userID uuid.UUID, now time.Time) ([]Subscription, error)

	// ListExpiring returns active subscriptions with end <= now + within.
	ListExpiring(ctx context.Context, within time.Duration, now time.Time) ([]Subscription, error)
}

// UsageStore defines persistence for usage records.
type UsageStore interface {
	// Record appends a usage record. Records are never mutated afterwards.
	Record(ctx context.Context, u *Usage) error

	// ListBetween returns the user's usage of a resource with
	// from <= timestamp <= to, in chronological order.
	ListBetween(ctx context.Context, userID uuid.UUID, res Resource, from, to time.Time) ([]Usage, error)
}
