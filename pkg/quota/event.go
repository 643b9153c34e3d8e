package quota

import (
	"time"

	"github.com/dmitrymomot/subkit/pkg/subscription"
)

// EventKind orders same-timestamp events deterministically: a burn forfeits
// the old grant before the coinciding recharge issues a new one (the default
// burns_in makes those instants collide on every recharge), and usage is
// applied last. Declaration order is the sort order.
type EventKind uint8

const (
	EventBurn EventKind = iota
	EventRecharge
	EventUsage
)

func (k EventKind) String() string {
	switch k {
	case EventBurn:
		return "burn"
	case EventRecharge:
		return "recharge"
	case EventUsage:
		return "usage"
	default:
		return "unknown"
	}
}

// Event is a derived ledger entry, reconstructed from quota definitions and
// usage records. It has no identity and is never persisted. Value is signed:
// +limit for a recharge, -limit for a burn, -amount for usage.
type Event struct {
	Time     time.Time
	Resource subscription.Resource
	Kind     EventKind
	Value    int64
}
