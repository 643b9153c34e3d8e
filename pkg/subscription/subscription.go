package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Subscription ties a user to a plan for the [Begin, End] interval.
// The row is extended in place by prolongation; a renewal never creates a
// second subscription.
type Subscription struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	PlanCodename string
	Begin        time.Time
	End          time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// New creates a subscription starting at now. End defaults to
// begin + plan.SubscriptionDuration.
func New(userID uuid.UUID, plan Plan, now time.Time) Subscription {
	plan = plan.Normalize()
	return Subscription{
		ID:           uuid.New(),
		UserID:       userID,
		PlanCodename: plan.Codename,
		Begin:        now,
		End:          now.Add(plan.SubscriptionDuration),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsActiveAt reports whether the subscription covers the given instant.
func (s Subscription) IsActiveAt(now time.Time) bool {
	return !s.End.Before(now)
}

// NextChargeDate returns the first charge occurrence at or after since.
// Charge occurrences happen at Begin + i*plan.ChargePeriod; for one-time
// plans the only occurrence is Begin itself, so any later instant maps to
// the far-future Infinity date.
func (s Subscription) NextChargeDate(plan Plan, since time.Time) time.Time {
	plan = plan.Normalize()
	if !since.After(s.Begin) {
		return s.Begin
	}
	if !plan.IsRecurring() {
		return s.Begin.Add(Infinity)
	}
	elapsed := since.Sub(s.Begin)
	n := elapsed / plan.ChargePeriod
	next := s.Begin.Add(n * plan.ChargePeriod)
	if next.Before(since) {
		next = next.Add(plan.ChargePeriod)
	}
	return next
}

// Prolong returns a copy of the subscription with End advanced by one
// charge period. The copy is not persisted; callers save it only after the
// corresponding charge succeeds. Returns ErrProlongationImpossible for
// one-time or disabled plans.
func (s Subscription) Prolong(plan Plan) (Subscription, error) {
	plan = plan.Normalize()
	if !plan.IsRecurring() {
		return s, ErrProlongationImpossible
	}
	if !plan.Enabled {
		return s, ErrProlongationImpossible
	}
	s.End = s.End.Add(plan.ChargePeriod)
	return s, nil
}

// Stop terminates the subscription at the given instant.
func (s *Subscription) Stop(now time.Time) {
	s.End = now
	s.UpdatedAt = now
}
