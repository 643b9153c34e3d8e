package provider

import (
	"fmt"
	"slices"
)

// Registry maps provider codenames to implementations. It is assembled once
// at startup and read-only afterwards, replacing any notion of a mutable
// process-wide "current provider".
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds a registry from the given providers.
// Panics on duplicate codenames to fail fast on misconfiguration.
func NewRegistry(providers ...Provider) *Registry {
	if len(providers) == 0 {
		panic("provider: at least one provider is required")
	}
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		codename := p.Codename()
		if _, dup := m[codename]; dup {
			panic(fmt.Sprintf("provider: %v: %s", ErrDuplicateProvider, codename))
		}
		m[codename] = p
	}
	return &Registry{providers: m}
}

// Get resolves a provider by codename.
func (r *Registry) Get(codename string) (Provider, error) {
	p, ok := r.providers[codename]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, codename)
	}
	return p, nil
}

// Codenames returns the registered codenames in sorted order.
func (r *Registry) Codenames() []string {
	out := make([]string, 0, len(r.providers))
	for codename := range r.providers {
		out = append(out, codename)
	}
	slices.Sort(out)
	return out
}
