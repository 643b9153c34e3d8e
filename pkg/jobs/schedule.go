package jobs

import (
	"fmt"
	"slices"
	"time"
)

// ChargeSchedule is a set of negative offsets from a subscription's next
// charge date at which the scheduler may attempt an offline charge. Offsets
// are kept sorted ascending, so the earliest attempt comes first.
type ChargeSchedule []time.Duration

// DefaultChargeSchedule retries a recurring charge six times, starting three
// days before the subscription expires and backing off towards the deadline.
func DefaultChargeSchedule() ChargeSchedule {
	return ChargeSchedule{
		-72 * time.Hour,
		-48 * time.Hour,
		-24 * time.Hour,
		-12 * time.Hour,
		-3 * time.Hour,
		-1 * time.Hour,
	}
}

// Normalize returns a sorted, deduplicated copy of the schedule.
// Fails with ErrInvalidSchedule on an empty schedule or a non-negative offset.
func (s ChargeSchedule) Normalize() (ChargeSchedule, error) {
	if len(s) == 0 {
		return nil, fmt.Errorf("%w: empty schedule", ErrInvalidSchedule)
	}
	out := slices.Clone(s)
	slices.Sort(out)
	out = slices.Compact(out)
	for _, offset := range out {
		if offset >= 0 {
			return nil, fmt.Errorf("%w: offset %s is not negative", ErrInvalidSchedule, offset)
		}
	}
	return out, nil
}

// Horizon is the span before the due date covered by the schedule, the
// look-ahead the scheduler uses to select candidate subscriptions.
func (s ChargeSchedule) Horizon() time.Duration {
	if len(s) == 0 {
		return 0
	}
	return -s[0]
}

// Window is one attempt window: at most one charge attempt may exist with
// From <= created < To.
type Window struct {
	From time.Time
	To   time.Time
}

// WindowFor locates the attempt window containing now for a charge due at
// dueAt. Consecutive attempt times bound each window and the due date itself
// closes the last one, so no attempt can happen once the charge is already
// overdue. The second return is false when now is before the first attempt
// or not before dueAt.
func (s ChargeSchedule) WindowFor(dueAt, now time.Time) (Window, bool) {
	if !now.Before(dueAt) {
		return Window{}, false
	}
	for i := len(s) - 1; i >= 0; i-- {
		from := dueAt.Add(s[i])
		if now.Before(from) {
			continue
		}
		to := dueAt
		if i+1 < len(s) {
			to = dueAt.Add(s[i+1])
		}
		return Window{From: from, To: to}, true
	}
	return Window{}, false
}
