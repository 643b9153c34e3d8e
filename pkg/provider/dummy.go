package provider

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/subkit/pkg/payment"
	"github.com/dmitrymomot/subkit/pkg/subscription"
)

// DummyProvider is an in-memory provider for development and tests. Charges
// succeed instantly unless told to decline, and settlement outcomes for
// reconciliation are scripted per payment ID.
type DummyProvider struct {
	mu          sync.Mutex
	transitions *payment.Service
	seq         int
	decline     bool
	deferSettle bool
	settled     map[string]payment.Status
	charged     []uuid.UUID
}

// NewDummyProvider creates a dummy provider wired to the given transition
// service. Panics on nil to fail fast during initialization.
func NewDummyProvider(transitions *payment.Service) *DummyProvider {
	if transitions == nil {
		panic("provider: payment transition service is required")
	}
	return &DummyProvider{
		transitions: transitions,
		settled:     make(map[string]payment.Status),
	}
}

// Codename identifies this provider in payment rows and webhook routes.
func (d *DummyProvider) Codename() string { return "dummy" }

// Decline makes subsequent ChargeOffline calls fail with ErrPaymentFailed.
func (d *DummyProvider) Decline(decline bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.decline = decline
}

// DeferSettlement makes subsequent charges settle asynchronously: the charge
// is accepted and a provider payment ID assigned, but completion waits for a
// webhook or CheckPayments, the way most real upstreams behave.
func (d *DummyProvider) DeferSettlement(deferred bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deferSettle = deferred
}

// SettlePayment scripts the status CheckPayments reports for the given
// provider payment ID.
func (d *DummyProvider) SettlePayment(providerPaymentID string, status payment.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settled[providerPaymentID] = status
}

// Charged returns the IDs of payments ChargeOffline accepted, in order.
func (d *DummyProvider) Charged() []uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]uuid.UUID, len(d.charged))
	copy(out, d.charged)
	return out
}

// GetAmount prices quantity units at the plan's catalog price.
func (d *DummyProvider) GetAmount(_ context.Context, _ uuid.UUID, plan subscription.Plan, quantity int) (subscription.Money, error) {
	if quantity < 1 {
		return subscription.Money{}, subscription.ErrInvalidUsage
	}
	return subscription.Money{
		Amount:   plan.ChargeAmount.Amount * int64(quantity),
		Currency: plan.ChargeAmount.Currency,
	}, nil
}

// ChargeOffline assigns a sequential provider payment ID, or declines when
// configured to. Charges settle synchronously unless DeferSettlement is on.
func (d *DummyProvider) ChargeOffline(_ context.Context, p *payment.Payment) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.decline {
		return false, fmt.Errorf("%w: declined by dummy provider", ErrPaymentFailed)
	}
	d.seq++
	p.ProviderPaymentID = fmt.Sprintf("dummy_%d", d.seq)
	d.charged = append(d.charged, p.ID)
	return !d.deferSettle, nil
}

// CheckPayments settles each pending payment with its scripted outcome;
// payments without one stay pending.
func (d *DummyProvider) CheckPayments(ctx context.Context, pending []payment.Payment) error {
	now := time.Now().UTC()
	for _, p := range pending {
		d.mu.Lock()
		status, ok := d.settled[p.ProviderPaymentID]
		d.mu.Unlock()
		if !ok {
			continue
		}

		var err error
		switch status {
		case payment.StatusCompleted:
			err = d.transitions.Complete(ctx, d.Codename(), p.ProviderPaymentID, now)
		case payment.StatusCancelled:
			err = d.transitions.Cancel(ctx, d.Codename(), p.ProviderPaymentID, now)
		case payment.StatusError:
			err = d.transitions.Fail(ctx, d.Codename(), p.ProviderPaymentID, now)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ParseWebhook accepts both JSON and form-encoded bodies carrying
// payment_id and status fields.
func (d *DummyProvider) ParseWebhook(r *http.Request) (*WebhookResult, error) {
	fields, err := NormalizePayload(r)
	if err != nil {
		return nil, err
	}

	providerPaymentID := fields["payment_id"]
	if providerPaymentID == "" {
		return nil, fmt.Errorf("%w: missing payment_id", ErrMalformedWebhook)
	}

	status := payment.Status(fields["status"])
	switch status {
	case payment.StatusCompleted, payment.StatusCancelled, payment.StatusError, payment.StatusPending:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrMalformedWebhook, fields["status"])
	}

	return &WebhookResult{ProviderPaymentID: providerPaymentID, Status: status}, nil
}
