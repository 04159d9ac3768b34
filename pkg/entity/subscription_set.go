package entity

import (
	"errors"

	"github.com/wavelet-io/wavelet-go/internal/container"
)

// ErrDuplicateEntity is returned by SubscriptionSet.Add when a subscription
// whose entity id is already a member is added again (spec.md §3, §8
// "Adding a subscription whose entity id matches an existing set member
// returns SUB_ALREADY_ADDED").
var ErrDuplicateEntity = errors.New("entity: subscription with this entity id already in set")

// ErrNotFound is returned when removing a subscription not present in the
// set or SEE top-level list.
var ErrNotFound = errors.New("entity: subscription not found")

// SubscriptionSet is an unordered unique set of Subscriptions keyed by
// entity id, plus the set's own delivery Options. See spec.md §3
// Subscription Set.
type SubscriptionSet struct {
	client     any
	options    Options
	members    *container.Set[string, *Subscription]
	subscribed bool
}

func newMemberSet() *container.Set[string, *Subscription] {
	return container.NewSet(container.SetConfig[string, *Subscription]{
		Key: func(s *Subscription) string { return s.EntityID() },
	})
}

// NewSetFromPair builds a SubscriptionSet from exactly two subscriptions,
// per the "register_subscription_set_pair" factory (spec.md §6).
func NewSetFromPair(client any, a, b *Subscription, options Options) (*SubscriptionSet, error) {
	set := &SubscriptionSet{client: client, options: options, members: newMemberSet()}
	if err := set.Add(a); err != nil {
		return nil, err
	}
	if err := set.Add(b); err != nil {
		set.Remove(a.EntityID())
		return nil, err
	}
	return set, nil
}

// NewSetFromEntities builds a SubscriptionSet from an array of entities,
// allocating one Subscription per entity, per the
// "register_subscription_set" factory (spec.md §6).
func NewSetFromEntities(client any, entities []*Entity, options Options) *SubscriptionSet {
	set := &SubscriptionSet{client: client, options: options, members: newMemberSet()}
	for _, e := range entities {
		sub := Alloc(client, e, options)
		_ = set.Add(sub) // entities are freshly allocated: ids are caller-controlled, duplicates possible but non-fatal
	}
	return set
}

// Add inserts sub into the set, keyed by its entity id. Returns
// ErrDuplicateEntity (without changing the set) if a member with the same
// entity id already exists.
func (ss *SubscriptionSet) Add(sub *Subscription) error {
	if ss.members.Add(sub) != container.MatchNone {
		return ErrDuplicateEntity
	}
	return nil
}

// Remove drops the single member whose entity id matches entityID.
func (ss *SubscriptionSet) Remove(entityID string) bool {
	return ss.members.Remove(entityID)
}

// Member returns the subscription keyed by entityID, if present.
func (ss *SubscriptionSet) Member(entityID string) (*Subscription, bool) {
	return ss.members.Element(entityID)
}

// Members returns a snapshot of every subscription in the set.
func (ss *SubscriptionSet) Members() []*Subscription {
	return ss.members.Elements()
}

// Count returns the number of members.
func (ss *SubscriptionSet) Count() int { return ss.members.Count() }

// Options returns the set's delivery options.
func (ss *SubscriptionSet) Options() Options { return ss.options }

// Subscribed reports whether this set is currently active in the SEE's
// subscription loop.
func (ss *SubscriptionSet) Subscribed() bool { return ss.subscribed }

// SetSubscribed updates the set's active flag; called by the SEE facade.
func (ss *SubscriptionSet) SetSubscribed(v bool) { ss.subscribed = v }

// Union adds every member of other into ss. Matches
// container.Set.Union's duplicate-sharing semantics (spec.md §2
// "Dynamic array & hash set").
func (ss *SubscriptionSet) Union(other *SubscriptionSet) {
	ss.members.Union(other.members, nil)
}

// Subtract removes from ss every member present in other, by entity id.
func (ss *SubscriptionSet) Subtract(other *SubscriptionSet) {
	ss.members.Subtract(other.members)
}

// Subscribables returns the union of every member's subscribable list,
// using the set's own options for presence override (spec.md §4.3).
func (ss *SubscriptionSet) Subscribables() []Subscribable {
	seen := make(map[string]struct{})
	var out []Subscribable
	for _, m := range ss.Members() {
		for _, s := range m.SubscribablesWithOptions(ss.options) {
			if _, ok := seen[s.Key()]; ok {
				continue
			}
			seen[s.Key()] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// Free releases every member subscription's entity reference.
func (ss *SubscriptionSet) Free() {
	for _, m := range ss.Members() {
		m.Free()
	}
	ss.members.RemoveAll()
}
