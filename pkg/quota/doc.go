// Package quota reconstructs per-resource consumable balances by replaying
// a time-ordered event log derived from subscription quotas and recorded
// usage.
//
// Three event kinds exist: a RECHARGE grants quota.Limit units at
// begin + i*recharge_period, a BURN forfeits the unused remainder of a
// grant burns_in after it was issued, and a USAGE subtracts recorded
// consumption. Events are derived on demand and never stored.
//
// The balance fold clamps at zero, so usage can drain a balance but never
// push it negative, and is split-invariant: feeding the result of one
// window as the initial balance of the next window reproduces the
// single-window result.
//
//	ledger := quota.NewLedger(catalog, subStore, usageStore)
//	remaining, err := ledger.Remaining(ctx, userID, time.Time{}, nil, time.Now().UTC())
package quota
