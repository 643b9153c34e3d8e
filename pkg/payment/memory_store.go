package payment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/subkit/pkg/subscription"
)

// MemoryStore is an in-memory payment Store for tests and local
// development.
type MemoryStore struct {
	mu       sync.RWMutex
	payments map[uuid.UUID]Payment
}

// NewMemoryStore returns an empty in-memory payment store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{payments: make(map[uuid.UUID]Payment)}
}

func (s *MemoryStore) Create(ctx context.Context, p *Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ProviderPaymentID != "" {
		for _, existing := range s.payments {
			if existing.ProviderCodename == p.ProviderCodename && existing.ProviderPaymentID == p.ProviderPaymentID {
				return ErrDuplicatePayment
			}
		}
	}
	s.payments[p.ID] = clone(p)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, p *Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments[p.ID]; !ok {
		return ErrPaymentNotFound
	}
	s.payments[p.ID] = clone(p)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	out := clone(&p)
	return &out, nil
}

func (s *MemoryStore) GetByProviderPaymentID(ctx context.Context, providerCodename, providerPaymentID string) (*Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.payments {
		if p.ProviderCodename == providerCodename && p.ProviderPaymentID == providerPaymentID {
			out := clone(&p)
			return &out, nil
		}
	}
	return nil, ErrPaymentNotFound
}

func (s *MemoryStore) ListPendingCreatedAfter(ctx context.Context, cutoff time.Time) ([]Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Payment
	for _, p := range s.payments {
		if p.Status == StatusPending && !p.CreatedAt.Before(cutoff) {
			out = append(out, clone(&p))
		}
	}
	sortByCreated(out)
	return out, nil
}

func (s *MemoryStore) ListBySubscriptionBetween(ctx context.Context, subID uuid.UUID, from, to time.Time) ([]Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Payment
	for _, p := range s.payments {
		if p.SubscriptionID == nil || *p.SubscriptionID != subID {
			continue
		}
		if p.CreatedAt.Before(from) || !p.CreatedAt.Before(to) {
			continue
		}
		out = append(out, clone(&p))
	}
	sortByCreated(out)
	return out, nil
}

func (s *MemoryStore) LastCompletedForSubscription(ctx context.Context, subID uuid.UUID) (*Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var last *Payment
	for _, p := range s.payments {
		if p.SubscriptionID == nil || *p.SubscriptionID != subID || p.Status != StatusCompleted {
			continue
		}
		p := clone(&p)
		if last == nil || p.CreatedAt.After(last.CreatedAt) {
			last = &p
		}
	}
	if last == nil {
		return nil, ErrPaymentNotFound
	}
	return last, nil
}

func clone(p *Payment) Payment {
	out := *p
	if p.SubscriptionID != nil {
		id := *p.SubscriptionID
		out.SubscriptionID = &id
	}
	out.Metadata = make(map[string]string, len(p.Metadata))
	for k, v := range p.Metadata {
		out.Metadata[k] = v
	}
	return out
}

func sortByCreated(payments []Payment) {
	sort.Slice(payments, func(i, j int) bool { return payments[i].CreatedAt.Before(payments[j].CreatedAt) })
}

// MemoryTransactor serializes transactions with a single mutex, the memory
// equivalent of the postgres row locks. Good enough for tests where true
// rollback is not needed.
type MemoryTransactor struct {
	mu       sync.Mutex
	payments *MemoryStore
	subs     *subscription.MemoryStore
}

// NewMemoryTransactor wires the two memory stores into a Transactor.
func NewMemoryTransactor(payments *MemoryStore, subs *subscription.MemoryStore) *MemoryTransactor {
	return &MemoryTransactor{payments: payments, subs: subs}
}

func (t *MemoryTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, payments Store, subs subscription.Store) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx, t.payments, t.subs)
}
