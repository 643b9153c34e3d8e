package payment

import "errors"

var (
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrDuplicatePayment    = errors.New("payment with this provider payment ID already exists")
	ErrMissingProviderID   = errors.New("payment has no provider payment ID")
	ErrSubscriptionMissing = errors.New("payment references a missing subscription")
)
