package quota

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/subkit/pkg/subscription"
)

// Ledger reconstructs per-resource balances for a user by replaying
// recharge, burn and usage events. Both Events and Remaining are pure
// functions of stored state and the supplied instants: replaying the same
// window yields the same result.
type Ledger struct {
	catalog *subscription.Catalog
	subs    subscription.Store
	usage   subscription.UsageStore
}

// NewLedger creates a ledger over the given catalog and stores.
// Panics on nil dependencies to fail fast during initialization.
func NewLedger(catalog *subscription.Catalog, subs subscription.Store, usage subscription.UsageStore) *Ledger {
	if catalog == nil {
		panic("quota: catalog is required")
	}
	if subs == nil {
		panic("quota: subscription store is required")
	}
	if usage == nil {
		panic("quota: usage store is required")
	}
	return &Ledger{catalog: catalog, subs: subs, usage: usage}
}

// Events returns the user's ledger events with timestamps in [since, now].
// A zero since defaults to the earliest begin among the user's active
// subscriptions. The result is unsorted across resources; Remaining orders
// it before folding.
//
// A burn whose recharge predates since is still emitted when the burn
// instant itself falls inside the window, otherwise a split replay would
// never forfeit the older grant. Resources without any quota definition
// produce no events at all: there is no baseline to reconcile usage against.
func (l *Ledger) Events(ctx context.Context, userID uuid.UUID, since, now time.Time) ([]Event, error) {
	active, err := l.subs.ListActive(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list active subscriptions: %w", err)
	}
	if len(active) == 0 {
		return nil, nil
	}

	if since.IsZero() {
		since = active[0].Begin
		for _, sub := range active[1:] {
			if sub.Begin.Before(since) {
				since = sub.Begin
			}
		}
	}

	var events []Event
	withQuota := make(map[subscription.Resource]struct{})

	for _, sub := range active {
		plan, err := l.catalog.Get(sub.PlanCodename)
		if err != nil {
			return nil, fmt.Errorf("subscription %s references unknown plan %q: %w", sub.ID, sub.PlanCodename, err)
		}

		for _, q := range plan.Quotas {
			withQuota[q.Resource] = struct{}{}

			for i := 0; ; i++ {
				rechargeTime := sub.Begin.Add(time.Duration(i) * q.RechargePeriod)
				if rechargeTime.After(now) {
					break
				}

				if !rechargeTime.Before(since) {
					events = append(events, Event{
						Time:     rechargeTime,
						Resource: q.Resource,
						Kind:     EventRecharge,
						Value:    q.Limit,
					})
				}

				burnTime := rechargeTime.Add(q.BurnsIn)
				if !burnTime.Before(since) && !burnTime.After(now) {
					events = append(events, Event{
						Time:     burnTime,
						Resource: q.Resource,
						Kind:     EventBurn,
						Value:    -q.Limit,
					})
				}
			}
		}
	}

	for res := range withQuota {
		records, err := l.usage.ListBetween(ctx, userID, res, since, now)
		if err != nil {
			return nil, fmt.Errorf("failed to list usage for %s: %w", res, err)
		}
		for _, u := range records {
			events = append(events, Event{
				Time:     u.Timestamp,
				Resource: res,
				Kind:     EventUsage,
				Value:    -u.Amount,
			})
		}
	}

	return events, nil
}

// Remaining folds the user's events into the remaining balance per resource.
// The fold clamps at zero: usage beyond the current balance drains it rather
// than accruing debt, because usage recording and balance checking are
// decoupled. initial seeds the per-resource starting balance, which makes
// split replays composable: remaining over [a, c] equals remaining over
// [b, c] seeded with the result over [a, b], as long as b is not mid-burn.
func (l *Ledger) Remaining(ctx context.Context, userID uuid.UUID, since time.Time, initial map[subscription.Resource]int64, now time.Time) (map[subscription.Resource]int64, error) {
	events, err := l.Events(ctx, userID, since, now)
	if err != nil {
		return nil, err
	}

	byResource := make(map[subscription.Resource][]Event)
	for _, e := range events {
		byResource[e.Resource] = append(byResource[e.Resource], e)
	}

	remaining := make(map[subscription.Resource]int64, len(byResource))
	for res, list := range byResource {
		slices.SortStableFunc(list, func(a, b Event) int {
			if c := a.Time.Compare(b.Time); c != 0 {
				return c
			}
			return cmp.Compare(a.Kind, b.Kind)
		})

		balance := initial[res]
		for _, e := range list {
			balance = max(0, balance+e.Value)
		}
		remaining[res] = balance
	}

	return remaining, nil
}
