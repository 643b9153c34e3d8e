package subscription

import "time"

// Resource is the codename of a consumable resource metered by quotas,
// e.g. "api_calls" or "storage".
type Resource string

// Money represents a monetary amount in the smallest currency unit.
// For example, $10.99 USD would be Amount: 1099, Currency: "USD".
type Money struct {
	Amount   int64  `yaml:"amount"`   // Amount in smallest currency unit (cents for USD)
	Currency string `yaml:"currency"` // ISO 4217 currency code
}

// Infinity stands in for "no period" on plans and quotas. A plan with an
// infinite charge period is a one-time purchase; a subscription with an
// infinite duration never expires on its own. Kept well below the
// time.Duration ceiling so date arithmetic cannot overflow.
const Infinity = 100 * 365 * 24 * time.Hour
