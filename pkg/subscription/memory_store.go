package subscription

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store implementation for tests and local
// development. All operations are serialized by a single mutex.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]Subscription
}

// NewMemoryStore returns an empty in-memory subscription store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[uuid.UUID]Subscription)}
}

func (s *MemoryStore) Create(ctx context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub.ID] = *sub
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub.ID]; !ok {
		return ErrSubscriptionNotFound
	}
	s.subs[sub.ID] = *sub
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return &sub, nil
}

func (s *MemoryStore) ListActive(ctx context.Context, userID uuid.UUID, now time.Time) ([]Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Subscription
	for _, sub := range s.subs {
		if sub.UserID == userID && sub.IsActiveAt(now) {
			out = append(out, sub)
		}
	}
	sortByBegin(out)
	return out, nil
}

func (s *MemoryStore) ListExpiring(ctx context.Context, within time.Duration, now time.Time) ([]Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	deadline := now.Add(within)
	var out []Subscription
	for _, sub := range s.subs {
		if sub.IsActiveAt(now) && !sub.End.After(deadline) {
			out = append(out, sub)
		}
	}
	sortByBegin(out)
	return out, nil
}

func sortByBegin(subs []Subscription) {
	sort.Slice(subs, func(i, j int) bool { return subs[i].Begin.Before(subs[j].Begin) })
}

// MemoryUsageStore is an in-memory UsageStore implementation for tests.
type MemoryUsageStore struct {
	mu      sync.RWMutex
	records []Usage
}

// NewMemoryUsageStore returns an empty in-memory usage store.
func NewMemoryUsageStore() *MemoryUsageStore {
	return &MemoryUsageStore{}
}

func (s *MemoryUsageStore) Record(ctx context.Context, u *Usage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *u)
	return nil
}

func (s *MemoryUsageStore) ListBetween(ctx context.Context, userID uuid.UUID, res Resource, from, to time.Time) ([]Usage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Usage
	for _, u := range s.records {
		if u.UserID != userID || u.Resource != res {
			continue
		}
		if u.Timestamp.Before(from) || u.Timestamp.After(to) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}
