package subscription

import "errors"

var (
	ErrPlanNotFound             = errors.New("subscription plan not found")
	ErrPlanDisabled             = errors.New("subscription plan is disabled")
	ErrInvalidPlanConfiguration = errors.New("invalid subscription plan configuration")

	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrInvalidPeriod        = errors.New("subscription end is before begin")

	// ErrProlongationImpossible means the plan cannot extend the subscription:
	// one-time plans have no next charge date, disabled plans must not be
	// charged again. The scheduler skips such subscriptions without retrying.
	ErrProlongationImpossible = errors.New("subscription prolongation impossible")

	ErrInvalidUsage = errors.New("usage amount must be positive")

	ErrFailedToLoadPlans = errors.New("failed to load subscription plans")
)
