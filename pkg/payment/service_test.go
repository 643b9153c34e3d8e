package payment_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subkit/pkg/payment"
	"github.com/dmitrymomot/subkit/pkg/subscription"
)

var testPlan = subscription.Plan{
	Codename:             "pro",
	ChargeAmount:         subscription.Money{Amount: 1999, Currency: "USD"},
	ChargePeriod:         30 * 24 * time.Hour,
	SubscriptionDuration: 30 * 24 * time.Hour,
	Enabled:              true,
}

type env struct {
	svc      *payment.Service
	payments *payment.MemoryStore
	subs     *subscription.MemoryStore
}

func newEnv(t *testing.T) *env {
	t.Helper()

	catalog, err := subscription.NewCatalog(context.Background(), subscription.NewInMemSource(testPlan))
	require.NoError(t, err)

	payments := payment.NewMemoryStore()
	subs := subscription.NewMemoryStore()
	tx := payment.NewMemoryTransactor(payments, subs)

	return &env{
		svc:      payment.NewService(tx, catalog),
		payments: payments,
		subs:     subs,
	}
}

func (e *env) pendingPayment(t *testing.T, providerPaymentID string, at time.Time) *payment.Payment {
	t.Helper()
	p := payment.New(uuid.New(), testPlan.Codename, "dummy", testPlan.ChargeAmount, 1, at)
	p.ProviderPaymentID = providerPaymentID
	require.NoError(t, e.payments.Create(context.Background(), p))
	return p
}

func TestComplete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	t.Run("first completion activates subscription", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		p := e.pendingPayment(t, "txn_1", now)

		require.NoError(t, e.svc.Complete(ctx, "dummy", "txn_1", now))

		stored, err := e.payments.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusCompleted, stored.Status)
		require.NotNil(t, stored.SubscriptionID)

		sub, err := e.subs.Get(ctx, *stored.SubscriptionID)
		require.NoError(t, err)
		assert.Equal(t, now, sub.Begin)
		assert.Equal(t, now.Add(testPlan.SubscriptionDuration), sub.End)
	})

	t.Run("duplicate delivery is a no-op", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		e.pendingPayment(t, "txn_2", now)

		require.NoError(t, e.svc.Complete(ctx, "dummy", "txn_2", now))
		first, err := e.payments.GetByProviderPaymentID(ctx, "dummy", "txn_2")
		require.NoError(t, err)

		// Second delivery of the same webhook an hour later.
		require.NoError(t, e.svc.Complete(ctx, "dummy", "txn_2", now.Add(time.Hour)))

		second, err := e.payments.GetByProviderPaymentID(ctx, "dummy", "txn_2")
		require.NoError(t, err)
		assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
		assert.Equal(t, *first.SubscriptionID, *second.SubscriptionID)

		sub, err := e.subs.Get(ctx, *second.SubscriptionID)
		require.NoError(t, err)
		assert.Equal(t, now, sub.Begin, "begin unchanged by re-delivery")
		assert.Equal(t, now.Add(testPlan.SubscriptionDuration), sub.End, "end unchanged by re-delivery")

		active, err := e.subs.ListActive(ctx, sub.UserID, now)
		require.NoError(t, err)
		assert.Len(t, active, 1, "exactly one subscription after duplicate delivery")
	})

	t.Run("completion of linked payment prolongs subscription", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		userID := uuid.New()
		sub := subscription.New(userID, testPlan, now)
		require.NoError(t, e.subs.Create(ctx, &sub))

		p := payment.New(userID, testPlan.Codename, "dummy", testPlan.ChargeAmount, 1, now.Add(29*24*time.Hour))
		p.ProviderPaymentID = "txn_renewal"
		p.LinkSubscription(sub.ID)
		require.NoError(t, e.payments.Create(ctx, p))

		require.NoError(t, e.svc.Complete(ctx, "dummy", "txn_renewal", now.Add(29*24*time.Hour)))

		prolonged, err := e.subs.Get(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, sub.End.Add(testPlan.ChargePeriod), prolonged.End)
		assert.Equal(t, sub.Begin, prolonged.Begin)
	})

	t.Run("unknown idempotency key fails closed", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		err := e.svc.Complete(ctx, "dummy", "txn_unknown", now)
		assert.ErrorIs(t, err, payment.ErrPaymentNotFound)
	})

	t.Run("empty idempotency key rejected", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		assert.ErrorIs(t, e.svc.Complete(ctx, "dummy", "", now), payment.ErrMissingProviderID)
	})
}

func TestCancelAndFail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	t.Run("cancel records terminal status without subscription", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		p := e.pendingPayment(t, "txn_3", now)

		require.NoError(t, e.svc.Cancel(ctx, "dummy", "txn_3", now))

		stored, err := e.payments.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusCancelled, stored.Status)
		assert.Nil(t, stored.SubscriptionID)
	})

	t.Run("completion after cancellation is a no-op", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		p := e.pendingPayment(t, "txn_4", now)

		require.NoError(t, e.svc.Cancel(ctx, "dummy", "txn_4", now))
		require.NoError(t, e.svc.Complete(ctx, "dummy", "txn_4", now.Add(time.Minute)))

		stored, err := e.payments.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusCancelled, stored.Status)
		assert.Nil(t, stored.SubscriptionID)
	})

	t.Run("fail records error status", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		p := e.pendingPayment(t, "txn_5", now)

		require.NoError(t, e.svc.Fail(ctx, "dummy", "txn_5", now))

		stored, err := e.payments.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusError, stored.Status)
	})
}
