// Package payment holds the payment record and the authoritative,
// idempotent status transition that activates subscriptions.
//
// A payment is created pending when a checkout or an offline charge attempt
// starts, and moves to exactly one terminal status (completed, cancelled or
// error). The transition is identified by the provider-assigned idempotency
// key and runs inside a store transaction; on the first completion it
// creates the subscription (or extends the linked one by a charge period)
// in the same transaction. Re-delivered webhooks and reconciliation polls
// that report an already-recorded outcome are silent no-ops, so
// at-least-once delivery never duplicates a subscription or an end-date
// advance.
//
//	svc := payment.NewService(transactor, catalog)
//	err := svc.Complete(ctx, "paddle", "txn_123", time.Now().UTC())
package payment
