package jobs_test

import (
	"context"
	"sync"
	"sync/atomic"
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

var (
	monthlyPlan = subscription.Plan{
		Codename:             "pro",
		ChargeAmount:         subscription.Money{Amount: 1999, Currency: "USD"},
		ChargePeriod:         30 * 24 * time.Hour,
		SubscriptionDuration: 30 * 24 * time.Hour,
		Enabled:              true,
	}
	lifetimePlan = subscription.Plan{
		Codename:             "lifetime",
		ChargeAmount:         subscription.Money{Amount: 9999, Currency: "USD"},
		SubscriptionDuration: subscription.Infinity,
		Enabled:              true,
	}
	// 45-day initial term renewed monthly: charge dates and the end date
	// drift apart, unlike the aligned monthly plan.
	bonusPlan = subscription.Plan{
		Codename:             "pro-bonus",
		ChargeAmount:         subscription.Money{Amount: 1999, Currency: "USD"},
		ChargePeriod:         30 * 24 * time.Hour,
		SubscriptionDuration: 45 * 24 * time.Hour,
		Enabled:              true,
	}
)

type recordingNotifier struct {
	mu        sync.Mutex
	succeeded []uuid.UUID
	failed    []uuid.UUID
}

func (n *recordingNotifier) PaymentSucceeded(_ context.Context, p payment.Payment, _ subscription.Subscription) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.succeeded = append(n.succeeded, p.ID)
	return nil
}

func (n *recordingNotifier) PaymentFailed(_ context.Context, p payment.Payment, _ subscription.Subscription) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, p.ID)
	return nil
}

type chargeEnv struct {
	job      *jobs.ChargeRecurring
	payments *payment.MemoryStore
	subs     *subscription.MemoryStore
	dummy    *provider.DummyProvider
	notifier *recordingNotifier
}

func newChargeEnv(t *testing.T, schedule jobs.ChargeSchedule) *chargeEnv {
	t.Helper()

	catalog, err := subscription.NewCatalog(context.Background(),
		subscription.NewInMemSource(monthlyPlan, lifetimePlan, bonusPlan))
	require.NoError(t, err)

	payments := payment.NewMemoryStore()
	subs := subscription.NewMemoryStore()
	tx := payment.NewMemoryTransactor(payments, subs)
	svc := payment.NewService(tx, catalog)
	dummy := provider.NewDummyProvider(svc)
	notifier := &recordingNotifier{}

	job := jobs.NewChargeRecurring(tx, subs, catalog, provider.NewRegistry(dummy), svc,
		jobs.WithChargeSchedule(schedule),
		jobs.WithChargeNotifier(notifier))

	return &chargeEnv{job: job, payments: payments, subs: subs, dummy: dummy, notifier: notifier}
}

// activeSubscription seeds a subscription expiring at end with one completed
// payment behind it, the state every renewable subscription is in.
func (e *chargeEnv) activeSubscription(t *testing.T, plan subscription.Plan, end time.Time) subscription.Subscription {
	t.Helper()
	ctx := context.Background()

	begin := end.Add(-plan.SubscriptionDuration)
	sub := subscription.New(uuid.New(), plan, begin)
	require.NoError(t, e.subs.Create(ctx, &sub))

	first := payment.New(sub.UserID, plan.Codename, "dummy", plan.ChargeAmount, 1, begin)
	first.ProviderPaymentID = "dummy_seed_" + sub.ID.String()
	first.Status = payment.StatusCompleted
	first.LinkSubscription(sub.ID)
	require.NoError(t, e.payments.Create(ctx, first))
	return sub
}

func (e *chargeEnv) paymentCount(t *testing.T, subID uuid.UUID) int {
	t.Helper()
	all, err := e.payments.ListBySubscriptionBetween(context.Background(), subID,
		time.Time{}, time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return len(all)
}

func TestChargeRecurring(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	end := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	schedule := jobs.ChargeSchedule{
		-3 * 24 * time.Hour,
		-2 * 24 * time.Hour,
		-24 * time.Hour,
		-12 * time.Hour,
		-3 * time.Hour,
		-time.Hour,
	}

	t.Run("successful charge prolongs subscription", func(t *testing.T) {
		t.Parallel()

		e := newChargeEnv(t, schedule)
		sub := e.activeSubscription(t, monthlyPlan, end)

		require.NoError(t, e.job.Run(ctx, end.Add(-36*time.Hour)))

		prolonged, err := e.subs.Get(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, end.Add(monthlyPlan.ChargePeriod), prolonged.End)
		assert.Len(t, e.dummy.Charged(), 1)
		assert.Len(t, e.notifier.succeeded, 1)
		assert.Equal(t, 2, e.paymentCount(t, sub.ID), "seed payment plus the renewal")
	})

	t.Run("one attempt per window", func(t *testing.T) {
		t.Parallel()

		e := newChargeEnv(t, schedule)
		sub := e.activeSubscription(t, monthlyPlan, end)
		e.dummy.Decline(true)

		// T-36h falls in the [T-2d, T-1d) window: attempt made and declined.
		require.NoError(t, e.job.Run(ctx, end.Add(-36*time.Hour)))
		assert.Equal(t, 2, e.paymentCount(t, sub.ID))
		assert.Len(t, e.notifier.failed, 1)

		// T-35h is still the same window: no new attempt.
		require.NoError(t, e.job.Run(ctx, end.Add(-35*time.Hour)))
		assert.Equal(t, 2, e.paymentCount(t, sub.ID))

		// T-23h opens the [T-1d, T-12h) window: a fresh attempt.
		require.NoError(t, e.job.Run(ctx, end.Add(-23*time.Hour)))
		assert.Equal(t, 3, e.paymentCount(t, sub.ID))
		assert.Len(t, e.notifier.failed, 2)

		// The subscription was never prolonged.
		got, err := e.subs.Get(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, end, got.End)
	})

	t.Run("asynchronous settlement leaves payment pending", func(t *testing.T) {
		t.Parallel()

		e := newChargeEnv(t, schedule)
		sub := e.activeSubscription(t, monthlyPlan, end)
		e.dummy.DeferSettlement(true)

		require.NoError(t, e.job.Run(ctx, end.Add(-36*time.Hour)))

		attempts, err := e.payments.ListBySubscriptionBetween(ctx, sub.ID,
			end.Add(-2*24*time.Hour), end.Add(-24*time.Hour))
		require.NoError(t, err)
		require.Len(t, attempts, 1)
		assert.Equal(t, payment.StatusPending, attempts[0].Status)
		assert.NotEmpty(t, attempts[0].ProviderPaymentID)

		// No money moved yet: the subscription keeps its old end date and
		// nobody is told about a renewal.
		got, err := e.subs.Get(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, end, got.End)
		assert.Empty(t, e.notifier.succeeded)

		// The in-flight attempt still occupies its window.
		require.NoError(t, e.job.Run(ctx, end.Add(-35*time.Hour)))
		assert.Equal(t, 2, e.paymentCount(t, sub.ID))

		// Reconciliation finds the charge collected and prolongs.
		e.dummy.SettlePayment(attempts[0].ProviderPaymentID, payment.StatusCompleted)
		require.NoError(t, e.dummy.CheckPayments(ctx, attempts))

		got, err = e.subs.Get(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, end.Add(monthlyPlan.ChargePeriod), got.End)
	})

	t.Run("windows lead up to the charge date, not the end date", func(t *testing.T) {
		t.Parallel()

		e := newChargeEnv(t, jobs.ChargeSchedule{
			-16 * 24 * time.Hour,
			-24 * time.Hour,
			-time.Hour,
		})
		sub := e.activeSubscription(t, bonusPlan, end)
		chargeAt := end.Add(-15 * 24 * time.Hour) // begin + one charge period

		// Just past the charge date: the next occurrence is a month away,
		// so no attempt even though the end date is inside the horizon.
		require.NoError(t, e.job.Run(ctx, chargeAt.Add(time.Hour)))
		assert.Equal(t, 1, e.paymentCount(t, sub.ID), "only the seed payment")

		// Inside the window right before the charge date an attempt is made.
		require.NoError(t, e.job.Run(ctx, chargeAt.Add(-2*time.Hour)))
		assert.Equal(t, 2, e.paymentCount(t, sub.ID))
		assert.Len(t, e.dummy.Charged(), 1)
	})

	t.Run("declined attempt recorded as error", func(t *testing.T) {
		t.Parallel()

		e := newChargeEnv(t, schedule)
		sub := e.activeSubscription(t, monthlyPlan, end)
		e.dummy.Decline(true)

		require.NoError(t, e.job.Run(ctx, end.Add(-36*time.Hour)))

		attempts, err := e.payments.ListBySubscriptionBetween(ctx, sub.ID,
			end.Add(-2*24*time.Hour), end.Add(-24*time.Hour))
		require.NoError(t, err)
		require.Len(t, attempts, 1)
		assert.Equal(t, payment.StatusError, attempts[0].Status)
		assert.Empty(t, attempts[0].ProviderPaymentID)
	})

	t.Run("no attempt before first window", func(t *testing.T) {
		t.Parallel()

		e := newChargeEnv(t, schedule)
		sub := e.activeSubscription(t, monthlyPlan, end)

		require.NoError(t, e.job.Run(ctx, end.Add(-4*24*time.Hour)))
		assert.Equal(t, 1, e.paymentCount(t, sub.ID), "only the seed payment")
	})

	t.Run("no attempt after expiration", func(t *testing.T) {
		t.Parallel()

		e := newChargeEnv(t, schedule)
		sub := e.activeSubscription(t, monthlyPlan, end)

		require.NoError(t, e.job.Run(ctx, end.Add(time.Hour)))
		assert.Equal(t, 1, e.paymentCount(t, sub.ID))
	})

	t.Run("one-time plan never charged", func(t *testing.T) {
		t.Parallel()

		e := newChargeEnv(t, schedule)

		// Lifetime subscription whose end happens to fall inside the horizon.
		sub := subscription.Subscription{
			ID:           uuid.New(),
			UserID:       uuid.New(),
			PlanCodename: lifetimePlan.Codename,
			Begin:        end.Add(-24 * time.Hour),
			End:          end,
		}
		require.NoError(t, e.subs.Create(ctx, &sub))

		require.NoError(t, e.job.Run(ctx, end.Add(-12*time.Hour)))
		assert.Equal(t, 0, e.paymentCount(t, sub.ID))
		assert.Empty(t, e.dummy.Charged())
	})

	t.Run("subscription without prior payment skipped", func(t *testing.T) {
		t.Parallel()

		e := newChargeEnv(t, schedule)

		// Manual grant: active subscription, no payment history.
		sub := subscription.New(uuid.New(), monthlyPlan, end.Add(-monthlyPlan.SubscriptionDuration))
		require.NoError(t, e.subs.Create(ctx, &sub))

		require.NoError(t, e.job.Run(ctx, end.Add(-36*time.Hour)))
		assert.Equal(t, 0, e.paymentCount(t, sub.ID))
	})

	t.Run("renewed subscription leaves the horizon", func(t *testing.T) {
		t.Parallel()

		e := newChargeEnv(t, schedule)
		sub := e.activeSubscription(t, monthlyPlan, end)

		require.NoError(t, e.job.Run(ctx, end.Add(-36*time.Hour)))
		require.NoError(t, e.job.Run(ctx, end.Add(-23*time.Hour)))

		assert.Len(t, e.dummy.Charged(), 1, "second tick sees the extended end date")
		assert.Equal(t, 2, e.paymentCount(t, sub.ID))
	})
}

// rowLockTransactor hands transactions live store views with no global
// serialization, like two pool connections under read committed. Only the
// subscription Get takes a lock, held until the transaction ends, the way
// SELECT ... FOR UPDATE holds a row lock until commit.
type rowLockTransactor struct {
	payments payment.Store
	subs     subscription.Store
	row      sync.Mutex
}

func (t *rowLockTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, payments payment.Store, subs subscription.Store) error) error {
	view := &rowLockSubs{Store: t.subs, row: &t.row}
	defer view.release()
	return fn(ctx, t.payments, view)
}

type rowLockSubs struct {
	subscription.Store
	row  *sync.Mutex
	held bool
}

func (v *rowLockSubs) Get(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	if !v.held {
		v.row.Lock()
		v.held = true
	}
	return v.Store.Get(ctx, id)
}

func (v *rowLockSubs) release() {
	if v.held {
		v.held = false
		v.row.Unlock()
	}
}

// stallingPaymentStore pauses the first window query after its result is
// read, holding that transaction open while another tick runs against the
// same subscription.
type stallingPaymentStore struct {
	payment.Store
	stalled atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (s *stallingPaymentStore) ListBySubscriptionBetween(ctx context.Context, subID uuid.UUID, from, to time.Time) ([]payment.Payment, error) {
	out, err := s.Store.ListBySubscriptionBetween(ctx, subID, from, to)
	if s.stalled.CompareAndSwap(false, true) {
		close(s.entered)
		<-s.release
	}
	return out, err
}

func TestChargeRecurringConcurrentTicks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	end := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	schedule := jobs.ChargeSchedule{-3 * 24 * time.Hour, -24 * time.Hour, -time.Hour}

	catalog, err := subscription.NewCatalog(ctx, subscription.NewInMemSource(monthlyPlan))
	require.NoError(t, err)

	payments := payment.NewMemoryStore()
	subs := subscription.NewMemoryStore()
	stalling := &stallingPaymentStore{
		Store:   payments,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	tx := &rowLockTransactor{payments: stalling, subs: subs}
	svc := payment.NewService(tx, catalog)
	dummy := provider.NewDummyProvider(svc)
	job := jobs.NewChargeRecurring(tx, subs, catalog, provider.NewRegistry(dummy), svc,
		jobs.WithChargeSchedule(schedule))

	begin := end.Add(-monthlyPlan.SubscriptionDuration)
	sub := subscription.New(uuid.New(), monthlyPlan, begin)
	require.NoError(t, subs.Create(ctx, &sub))
	seed := payment.New(sub.UserID, monthlyPlan.Codename, "dummy", monthlyPlan.ChargeAmount, 1, begin)
	seed.ProviderPaymentID = "dummy_seed"
	seed.Status = payment.StatusCompleted
	seed.LinkSubscription(sub.ID)
	require.NoError(t, payments.Create(ctx, seed))

	now := end.Add(-36 * time.Hour)
	first := make(chan error, 1)
	go func() { first <- job.Run(ctx, now) }()
	// The first tick has read an empty window and still holds its
	// transaction open.
	<-stalling.entered

	second := make(chan error, 1)
	go func() { second <- job.Run(ctx, now) }()
	time.Sleep(50 * time.Millisecond) // let the second tick reach the row lock
	close(stalling.release)

	require.NoError(t, <-first)
	require.NoError(t, <-second)

	attempts, err := payments.ListBySubscriptionBetween(ctx, sub.ID,
		end.Add(-3*24*time.Hour), end)
	require.NoError(t, err)
	assert.Len(t, attempts, 1, "both ticks targeted the same window")
	assert.Len(t, dummy.Charged(), 1)

	got, err := subs.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, end.Add(monthlyPlan.ChargePeriod), got.End, "prolonged exactly once")
}
