package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Usage is an append-only record of actual consumption of a resource,
// written by the metering caller. The ledger only reads it; recording usage
// is never gated by the remaining balance.
type Usage struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Resource  Resource
	Amount    int64
	Timestamp time.Time
}

// NewUsage records amount units consumed at now. Amount must be at least 1.
func NewUsage(userID uuid.UUID, res Resource, amount int64, now time.Time) (Usage, error) {
	if amount < 1 {
		return Usage{}, ErrInvalidUsage
	}
	return Usage{
		ID:        uuid.New(),
		UserID:    userID,
		Resource:  res,
		Amount:    amount,
		Timestamp: now,
	}, nil
}
