package subscription

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// PlansSource defines how the plan catalog is loaded.
type PlansSource interface {
	Load(ctx context.Context) (map[string]Plan, error)
}

// Catalog holds the loaded, normalized plan configuration. Plans are
// read-only after construction; jobs and services resolve them by codename.
type Catalog struct {
	plans map[string]Plan
}

// NewCatalog loads plans from the source, resolves quota defaults and
// validates the result. Fails fast on misconfiguration so a broken catalog
// prevents startup instead of misbilling later.
func NewCatalog(ctx context.Context, src PlansSource) (*Catalog, error) {
	if src == nil {
		panic("subscription: PlansSource is required")
	}

	loaded, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	plans := make(map[string]Plan, len(loaded))
	for codename, plan := range loaded {
		if plan.Codename != codename {
			return nil, errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan codename mismatch: map key %s != plan.Codename %s", codename, plan.Codename))
		}
		plan = plan.Normalize()
		if err := plan.Validate(); err != nil {
			return nil, err
		}
		plans[codename] = plan
	}

	return &Catalog{plans: plans}, nil
}

// Get resolves a plan by codename. Disabled plans are still returned so
// existing subscriptions remain resolvable; callers gate on Enabled.
func (c *Catalog) Get(codename string) (Plan, error) {
	plan, ok := c.plans[codename]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return plan, nil
}

// All returns a copy of the catalog keyed by codename.
func (c *Catalog) All() map[string]Plan {
	out := make(map[string]Plan, len(c.plans))
	for codename, plan := range c.plans {
		plan.Quotas = slices.Clone(plan.Quotas)
		out[codename] = plan
	}
	return out
}

type inMemSource struct {
	mu    sync.RWMutex
	plans map[string]Plan
}

// NewInMemSource returns an in-memory PlansSource with a deep copy of the
// given plans. Panics if no plans are provided to ensure the catalog always
// has at least one valid plan.
func NewInMemSource(plans ...Plan) PlansSource {
	if len(plans) < 1 {
		panic("subscription: at least one plan is required")
	}
	plansCopy := make(map[string]Plan, len(plans))
	for _, plan := range plans {
		plan.Quotas = slices.Clone(plan.Quotas)
		plansCopy[plan.Codename] = plan
	}
	return &inMemSource{plans: plansCopy}
}

// Load returns a copy of all plans from memory. Deep copying prevents
// callers from modifying the source's internal state.
func (s *inMemSource) Load(ctx context.Context) (map[string]Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plansCopy := make(map[string]Plan, len(s.plans))
	for codename, plan := range s.plans {
		plan.Quotas = slices.Clone(plan.Quotas)
		plansCopy[codename] = plan
	}
	return plansCopy, nil
}
