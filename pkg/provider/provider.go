package provider

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/subkit/pkg/payment"
	"github.com/dmitrymomot/subkit/pkg/subscription"
)

// Provider is the payment provider capability consumed by the charge
// scheduler, the reconciliation job and the webhook endpoint. Implementations
// wrap one upstream (Paddle, a test dummy, ...) and are registered once at
// startup under their codename; nothing resolves providers dynamically at
// call time.
type Provider interface {
	// Codename identifies the provider; payments store it so reconciliation
	// never checks a payment against the wrong upstream.
	Codename() string

	// GetAmount returns the price of quantity units of the plan for the user.
	GetAmount(ctx context.Context, userID uuid.UUID, plan subscription.Plan, quantity int) (subscription.Money, error)

	// ChargeOffline charges the saved payment method for the pending payment
	// and fills in its ProviderPaymentID. The settled return reports whether
	// the money moved synchronously; when false the payment must stay
	// pending until the provider's webhook or CheckPayments reports the
	// outcome. A declined charge returns an error wrapping ErrPaymentFailed;
	// the caller retries in the next attempt window, never within the same
	// run.
	ChargeOffline(ctx context.Context, p *payment.Payment) (settled bool, err error)

	// CheckPayments re-asks the upstream about still-pending payments and
	// drives the payment state machine for any it finds settled. Transport
	// failures propagate: reconciliation must not guess.
	CheckPayments(ctx context.Context, pending []payment.Payment) error

	// ParseWebhook validates and parses an inbound notification. Malformed
	// or unverifiable payloads fail closed with ErrMalformedWebhook.
	ParseWebhook(r *http.Request) (*WebhookResult, error)
}

// WebhookResult is a normalized provider notification: which payment, and
// which status the provider now reports for it.
type WebhookResult struct {
	ProviderPaymentID string
	Status            payment.Status
}
