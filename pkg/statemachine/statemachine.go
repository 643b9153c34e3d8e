package statemachine

import (
	"context"
	"fmt"
	"sync"
)

// State represents a state in the state machine.
type State interface {
	Name() string
}

// Event represents an event that can trigger a state transition.
type Event interface {
	Name() string
}

// Action executes side effects during a transition. Returning an error
// aborts the transition before the state changes.
type Action func(ctx context.Context, from, to State, event Event, data any) error

// Guard evaluates whether a transition should be allowed.
type Guard func(ctx context.Context, from State, event Event, data any) bool

// StateMachine is a guarded finite state machine seeded at an initial
// state. Instances are cheap; callers typically build one per entity,
// seeded at the entity's persisted state.
type StateMachine interface {
	Current() State
	Fire(ctx context.Context, event Event, data any) error
	CanFire(ctx context.Context, event Event, data any) bool
}

// StringState provides a simple string-based State implementation.
type StringState string

func (s StringState) Name() string { return string(s) }

// StringEvent provides a simple string-based Event implementation.
type StringEvent string

func (e StringEvent) Name() string { return string(e) }

type transition struct {
	from    State
	to      State
	event   Event
	guards  []Guard
	actions []Action
}

type machine struct {
	mu          sync.RWMutex
	current     State
	transitions map[transitionKey][]transition
}

type transitionKey struct {
	from  string
	event string
}

// Option configures a state machine during construction.
type Option func(*machine) error

// TransitionOption configures a single transition.
type TransitionOption func(*transition)

// New creates a state machine seeded at the given initial state.
func New(initial State, opts ...Option) (StateMachine, error) {
	if initial == nil {
		return nil, fmt.Errorf("initial state cannot be nil")
	}
	m := &machine{
		current:     initial,
		transitions: make(map[transitionKey][]transition),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNew creates a state machine and panics on configuration errors,
// the fail-fast counterpart of New for static transition tables.
func MustNew(initial State, opts ...Option) StateMachine {
	m, err := New(initial, opts...)
	if err != nil {
		panic(fmt.Sprintf("statemachine: %v", err))
	}
	return m
}

// WithTransition registers a transition from one state to another on an
// event. Multiple transitions for the same (from, event) pair are allowed;
// the first one whose guards pass wins.
func WithTransition(from, to State, event Event, opts ...TransitionOption) Option {
	return func(m *machine) error {
		if from == nil || to == nil || event == nil {
			return ErrInvalidTransition
		}
		t := transition{from: from, to: to, event: event}
		for _, opt := range opts {
			opt(&t)
		}
		key := transitionKey{from: from.Name(), event: event.Name()}
		m.transitions[key] = append(m.transitions[key], t)
		return nil
	}
}

// WithGuard adds a guard to a transition.
func WithGuard(guard Guard) TransitionOption {
	return func(t *transition) {
		if guard != nil {
			t.guards = append(t.guards, guard)
		}
	}
}

// WithAction adds an action to a transition.
func WithAction(action Action) TransitionOption {
	return func(t *transition) {
		if action != nil {
			t.actions = append(t.actions, action)
		}
	}
}

func (m *machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Fire attempts a transition for the event. Actions run before the state
// changes; any action error aborts the transition and the state stays put.
func (m *machine) Fire(ctx context.Context, event Event, data any) error {
	if event == nil {
		return ErrInvalidEvent
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	candidates := m.transitions[transitionKey{from: m.current.Name(), event: event.Name()}]
	if len(candidates) == 0 {
		return NewErrNoTransitionAvailable(m.current.Name(), event.Name())
	}

	match := m.firstAllowed(ctx, candidates, event, data)
	if match == nil {
		return NewErrTransitionRejected(m.current.Name(), event.Name())
	}

	for _, action := range match.actions {
		if err := action(ctx, m.current, match.to, event, data); err != nil {
			return fmt.Errorf("action failed: %w", err)
		}
	}

	m.current = match.to
	return nil
}

// CanFire reports whether any transition would accept the event.
func (m *machine) CanFire(ctx context.Context, event Event, data any) bool {
	if event == nil {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	candidates := m.transitions[transitionKey{from: m.current.Name(), event: event.Name()}]
	return m.firstAllowed(ctx, candidates, event, data) != nil
}

func (m *machine) firstAllowed(ctx context.Context, candidates []transition, event Event, data any) *transition {
	for i := range candidates {
		allowed := true
		for _, guard := range candidates[i].guards {
			if !guard(ctx, m.current, event, data) {
				allowed = false
				break
			}
		}
		if allowed {
			return &candidates[i]
		}
	}
	return nil
}
