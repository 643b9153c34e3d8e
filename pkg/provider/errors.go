package provider

import "errors"

var (
	// ErrPaymentFailed marks a recoverable charge failure (declined card,
	// provider timeout). The scheduler skips to the next attempt window;
	// it is never surfaced to read paths.
	ErrPaymentFailed = errors.New("payment failed")

	ErrProviderNotFound  = errors.New("payment provider not found")
	ErrDuplicateProvider = errors.New("payment provider already registered")

	// ErrMalformedWebhook fails closed: the endpoint answers with a client
	// error and performs no state transition rather than guessing an
	// idempotency key.
	ErrMalformedWebhook = errors.New("malformed webhook payload")

	ErrMissingPriceID = errors.New("no provider price ID configured for plan")
)
