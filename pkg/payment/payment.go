package payment

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/subkit/pkg/subscription"
)

// Status is the lifecycle state of a payment. Every payment starts pending;
// exactly one terminal status is ever recorded, regardless of how many times
// the provider reports the outcome.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusError     Status = "error"
)

// Name implements statemachine.State so Status can seed transition checks.
func (s Status) Name() string { return string(s) }

// IsTerminal reports whether the status can never change again.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusError
}

// Payment records one charge attempt against a provider. ProviderPaymentID
// is the provider-assigned idempotency key: webhooks and reconciliation
// polls identify the payment by it. SubscriptionID stays nil until the
// payment completes and activates a subscription.
type Payment struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	PlanCodename      string
	ProviderCodename  string
	ProviderPaymentID string
	Status            Status
	Amount            subscription.Money
	Quantity          int
	SubscriptionID    *uuid.UUID
	Metadata          map[string]string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// New creates a pending payment for a checkout or offline charge attempt.
func New(userID uuid.UUID, planCodename, providerCodename string, amount subscription.Money, quantity int, now time.Time) *Payment {
	if quantity < 1 {
		quantity = 1
	}
	return &Payment{
		ID:               uuid.New(),
		UserID:           userID,
		PlanCodename:     planCodename,
		ProviderCodename: providerCodename,
		Status:           StatusPending,
		Amount:           amount,
		Quantity:         quantity,
		Metadata:         make(map[string]string),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// LinkSubscription attaches the subscription the payment paid for.
func (p *Payment) LinkSubscription(id uuid.UUID) {
	p.SubscriptionID = &id
}
