package subscription

import (
	"errors"
	"fmt"
	"time"
)

// Plan describes a purchasable subscription tier. Codename doubles as the
// catalog key and must be unique. A zero ChargePeriod means one-time charge,
// a zero SubscriptionDuration means the subscription never expires; both are
// normalized to Infinity so date arithmetic never special-cases zero.
type Plan struct {
	Codename             string        `yaml:"codename"`
	Name                 string        `yaml:"name"`
	ChargeAmount         Money         `yaml:"charge_amount"`
	ChargePeriod         time.Duration `yaml:"charge_period"`
	SubscriptionDuration time.Duration `yaml:"subscription_duration"`
	Enabled              bool          `yaml:"enabled"`
	Quotas               []Quota       `yaml:"quotas"`
}

// Quota grants Limit units of a resource every RechargePeriod, with each
// grant forfeited BurnsIn after it was issued. Belongs to exactly one
// (plan, resource) pair.
type Quota struct {
	Resource       Resource      `yaml:"resource"`
	Limit          int64         `yaml:"limit"`
	RechargePeriod time.Duration `yaml:"recharge_period"`
	BurnsIn        time.Duration `yaml:"burns_in"`
}

// IsRecurring reports whether the plan charges more than once.
func (p Plan) IsRecurring() bool {
	return p.ChargePeriod > 0 && p.ChargePeriod < Infinity
}

// Normalize resolves blank periods: plan periods default to Infinity,
// quota recharge periods default to the plan's charge period, and burn
// times default to the recharge period (forfeit right before the next
// recharge). Mirrors how the catalog stores plans, so callers always see
// fully resolved values.
func (p Plan) Normalize() Plan {
	if p.ChargePeriod <= 0 {
		p.ChargePeriod = Infinity
	}
	if p.SubscriptionDuration <= 0 {
		p.SubscriptionDuration = Infinity
	}
	quotas := make([]Quota, len(p.Quotas))
	for i, q := range p.Quotas {
		if q.RechargePeriod <= 0 {
			q.RechargePeriod = p.ChargePeriod
		}
		if q.BurnsIn <= 0 {
			q.BurnsIn = q.RechargePeriod
		}
		quotas[i] = q
	}
	p.Quotas = quotas
	return p
}

// Validate checks internal consistency of a normalized plan.
func (p Plan) Validate() error {
	if p.Codename == "" {
		return errors.Join(ErrInvalidPlanConfiguration, errors.New("plan codename is required"))
	}
	if p.ChargeAmount.Amount < 0 {
		return errors.Join(ErrInvalidPlanConfiguration,
			fmt.Errorf("plan %s has negative charge amount: %d", p.Codename, p.ChargeAmount.Amount))
	}
	seen := make(map[Resource]struct{}, len(p.Quotas))
	for _, q := range p.Quotas {
		if q.Resource == "" {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan %s has a quota without a resource", p.Codename))
		}
		if q.Limit < 0 {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan %s quota %s has negative limit: %d", p.Codename, q.Resource, q.Limit))
		}
		if _, dup := seen[q.Resource]; dup {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan %s has duplicate quota for resource %s", p.Codename, q.Resource))
		}
		seen[q.Resource] = struct{}{}
	}
	return nil
}

// QuotaFor returns the plan's quota for a resource, if any.
func (p Plan) QuotaFor(res Resource) (Quota, bool) {
	for _, q := range p.Quotas {
		if q.Resource == res {
			return q, true
		}
	}
	return Quota{}, false
}
