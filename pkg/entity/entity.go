// Package entity implements the subscription entity graph: channels,
// channel groups, channel/user metadata, subscriptions, subscription sets,
// and the computed subscribable fan-out consumed by the Subscribe Event
// Engine. See spec.md §3 and §4.3.
package entity

import (
	"fmt"

	"github.com/wavelet-io/wavelet-go/internal/refcount"
)

// Kind identifies which entity variant a handle carries. The set of kinds
// is closed per the "deep-inheritance" design note — a tagged variant
// stands in for what the original expresses with a discriminated union.
type Kind int

const (
	KindChannel Kind = iota
	KindChannelGroup
	KindChannelMetadata
	KindUserMetadata
)

func (k Kind) String() string {
	switch k {
	case KindChannel:
		return "channel"
	case KindChannelGroup:
		return "channel_group"
	case KindChannelMetadata:
		return "channel_metadata"
	case KindUserMetadata:
		return "user_metadata"
	default:
		return "unknown"
	}
}

// MaxIDLength bounds an entity id, matching the service's channel-name
// limit (spec.md §3 Entity invariants).
const MaxIDLength = 92

// Entity is one of {Channel, ChannelGroup, ChannelMetadata, UserMetadata}.
// Its id and kind are immutable after construction; Client is a
// non-owning back-reference to the owning client handle, kept as an
// opaque value so this package never imports the root client package
// (avoiding the cyclic-reference design note's import cycle).
type Entity struct {
	kind   Kind
	id     string
	client any
	rc     *refcount.Counter

	// onDestroy runs exactly once, when the last Subscription referencing
	// this entity is freed. Optional; set by tests to observe lifecycle.
	onDestroy func(*Entity)
}

// New constructs an Entity. Returns an error if id is empty or exceeds
// MaxIDLength, per the Entity invariants. The returned entity's refcount
// starts at 0: it becomes referenced only once a Subscription retains it
// via Alloc (spec.md §4.3 "subscription_alloc ... retains the entity").
func New(kind Kind, id string, client any) (*Entity, error) {
	if id == "" {
		return nil, fmt.Errorf("entity: id must not be empty")
	}
	if len(id) > MaxIDLength {
		return nil, fmt.Errorf("entity: id %q exceeds %d characters", id, MaxIDLength)
	}
	e := &Entity{kind: kind, id: id, client: client, rc: refcount.New()}
	e.rc.Decrement() // New() must not itself count as a reference.
	return e, nil
}

// OnDestroy registers a callback invoked exactly once, when this entity's
// last Subscription reference is released. Intended for tests asserting
// the "subscription freed from every owner runs its entity destructor
// exactly once" property (spec.md §8).
func (e *Entity) OnDestroy(fn func(*Entity)) { e.onDestroy = fn }

func (e *Entity) retain() { e.rc.Increment() }

func (e *Entity) release() {
	if e.rc.TryFree() && e.onDestroy != nil {
		e.onDestroy(e)
	}
}

// RefCount reports the number of live Subscriptions referencing e.
func (e *Entity) RefCount() int64 { return e.rc.Count() }

// Kind returns the entity's variant tag.
func (e *Entity) Kind() Kind { return e.kind }

// ID returns the entity's immutable identifier.
func (e *Entity) ID() string { return e.id }

// Client returns the opaque owning-client back-reference passed to New.
func (e *Entity) Client() any { return e.client }

// IsChannelGroup reports whether this entity's wire location is "query"
// rather than "path" — see spec.md §3 Subscribable.
func (e *Entity) IsChannelGroup() bool { return e.kind == KindChannelGroup }
