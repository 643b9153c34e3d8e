package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subkit/pkg/jobs"
	"github.com/dmitrymomot/subkit/pkg/payment"
	"github.com/dmitrymomot/subkit/pkg/provider"
	"github.com/dmitrymomot/subkit/pkg/subscription"
)

type reconcileEnv struct {
	payments *payment.MemoryStore
	subs     *subscription.MemoryStore
	dummy    *provider.DummyProvider
	registry *provider.Registry
}

func newReconcileEnv(t *testing.T) *reconcileEnv {
	t.Helper()

	catalog, err := subscription.NewCatalog(context.Background(), subscription.NewInMemSource(monthlyPlan))
	require.NoError(t, err)

	payments := payment.NewMemoryStore()
	subs := subscription.NewMemoryStore()
	svc := payment.NewService(payment.NewMemoryTransactor(payments, subs), catalog)
	dummy := provider.NewDummyProvider(svc)

	return &reconcileEnv{
		payments: payments,
		subs:     subs,
		dummy:    dummy,
		registry: provider.NewRegistry(dummy),
	}
}

func (e *reconcileEnv) pendingPayment(t *testing.T, providerPaymentID string, createdAt time.Time) *payment.Payment {
	t.Helper()
	p := payment.New(uuid.New(), monthlyPlan.Codename, "dummy", monthlyPlan.ChargeAmount, 1, createdAt)
	p.ProviderPaymentID = providerPaymentID
	require.NoError(t, e.payments.Create(context.Background(), p))
	return p
}

func TestReconcile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("settles payment reported terminal upstream", func(t *testing.T) {
		t.Parallel()

		e := newReconcileEnv(t)
		p := e.pendingPayment(t, "txn_lost_webhook", now.Add(-30*time.Minute))
		e.dummy.SettlePayment("txn_lost_webhook", payment.StatusCompleted)

		job := jobs.NewReconcile(e.payments, e.registry)
		require.NoError(t, job.Run(ctx, now))

		got, err := e.payments.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusCompleted, got.Status)
	})

	t.Run("scan window bounds selection", func(t *testing.T) {
		t.Parallel()

		e := newReconcileEnv(t)
		p := e.pendingPayment(t, "txn_old", now.Add(-2*time.Hour))
		e.dummy.SettlePayment("txn_old", payment.StatusCompleted)

		// A two hour old payment is outside a one hour scan window.
		job := jobs.NewReconcile(e.payments, e.registry, jobs.WithReconcileWindow(time.Hour))
		require.NoError(t, job.Run(ctx, now))

		got, err := e.payments.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusPending, got.Status)

		// And inside a three hour one.
		job = jobs.NewReconcile(e.payments, e.registry, jobs.WithReconcileWindow(3*time.Hour))
		require.NoError(t, job.Run(ctx, now))

		got, err = e.payments.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusCompleted, got.Status)
	})

	t.Run("payment still pending upstream stays pending", func(t *testing.T) {
		t.Parallel()

		e := newReconcileEnv(t)
		p := e.pendingPayment(t, "txn_in_flight", now.Add(-10*time.Minute))

		job := jobs.NewReconcile(e.payments, e.registry)
		require.NoError(t, job.Run(ctx, now))

		got, err := e.payments.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusPending, got.Status)
	})

	t.Run("cancelled upstream recorded", func(t *testing.T) {
		t.Parallel()

		e := newReconcileEnv(t)
		p := e.pendingPayment(t, "txn_cancelled", now.Add(-10*time.Minute))
		e.dummy.SettlePayment("txn_cancelled", payment.StatusCancelled)

		job := jobs.NewReconcile(e.payments, e.registry)
		require.NoError(t, job.Run(ctx, now))

		got, err := e.payments.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusCancelled, got.Status)
	})

	t.Run("unregistered provider skipped", func(t *testing.T) {
		t.Parallel()

		e := newReconcileEnv(t)
		p := payment.New(uuid.New(), monthlyPlan.Codename, "legacy", monthlyPlan.ChargeAmount, 1, now.Add(-time.Minute))
		p.ProviderPaymentID = "legacy_1"
		require.NoError(t, e.payments.Create(ctx, p))

		job := jobs.NewReconcile(e.payments, e.registry)
		require.NoError(t, job.Run(ctx, now))

		got, err := e.payments.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusPending, got.Status)
	})
}
