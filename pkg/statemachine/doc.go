// Package statemachine provides a small guarded finite state machine.
//
// A machine is seeded at an initial state and configured with transitions,
// each optionally carrying guards (which may veto the transition) and
// actions (side effects that run before the state changes and abort it on
// error). Firing an event for which the current state has no transition
// returns ErrNoTransitionAvailable, which callers can treat as "already
// done" when driving idempotent entity lifecycles.
//
//	sm := statemachine.MustNew(statemachine.StringState("pending"),
//		statemachine.WithTransition(
//			statemachine.StringState("pending"),
//			statemachine.StringState("completed"),
//			statemachine.StringEvent("complete"),
//		),
//	)
//	err := sm.Fire(ctx, statemachine.StringEvent("complete"), nil)
package statemachine
