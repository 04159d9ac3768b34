package wavelet

import (
	"github.com/wavelet-io/wavelet-go/pkg/entity"
	"github.com/wavelet-io/wavelet-go/pkg/listener"
)

// Subscription is a handle to one entity.Subscription, registered through
// a Client so its per-entity listener fan-out (spec.md §6
// "subscription.add_listener") can be keyed on the subscribable ids it
// actually contributes.
type Subscription struct {
	inner  *entity.Subscription
	client *Client
}

// Entity returns the subscription's referenced entity.
func (s *Subscription) Entity() *entity.Entity { return s.inner.Entity() }

// Options returns the subscription's delivery options.
func (s *Subscription) Options() entity.Options { return s.inner.Options() }

// AddListener registers cb for typ against every subscribable id this
// subscription contributes — its regular id, plus its presence id when
// ReceivePresenceEvents is set (spec.md §6 subscription.add_listener).
func (s *Subscription) AddListener(typ listener.MessageType, cb listener.MessageCallback) string {
	return s.client.listener.AddObjectListener(typ, subscribableIDs(s.inner.Subscribables()), s, cb)
}

// RemoveListener removes a previously registered per-entity listener
// (spec.md §6 subscription.remove_listener).
func (s *Subscription) RemoveListener(typ listener.MessageType, id string) {
	s.client.listener.RemoveObjectListener(typ, subscribableIDs(s.inner.Subscribables()), s, id)
}

// SubscriptionSet is a handle to one entity.SubscriptionSet, registered
// through a Client. Add/Remove route through the facade's
// change-with-set operation so membership changes are reflected in the
// Subscribe Event Engine's wire request, not just the local set.
type SubscriptionSet struct {
	inner  *entity.SubscriptionSet
	client *Client
}

// Count returns the number of members currently in the set.
func (ss *SubscriptionSet) Count() int { return ss.inner.Count() }

// Add inserts sub into the set and posts the resulting
// subscription-changed event (spec.md §6 set.add).
func (ss *SubscriptionSet) Add(sub *Subscription) error {
	return ss.client.facade.ChangeSubscriptionWithSet(ss.inner, sub.inner, true)
}

// Remove drops sub from the set and posts the resulting
// subscription-changed event (spec.md §6 set.remove).
func (ss *SubscriptionSet) Remove(sub *Subscription) error {
	return ss.client.facade.ChangeSubscriptionWithSet(ss.inner, sub.inner, false)
}

// Union merges every member of other into ss without touching the active
// subscription loop — callers that want the merge reflected on the wire
// should follow with a SubscribeWith call (spec.md §6 set.union).
func (ss *SubscriptionSet) Union(other *SubscriptionSet) { ss.inner.Union(other.inner) }

// Subtract removes from ss every member present in other (spec.md §6
// set.subtract).
func (ss *SubscriptionSet) Subtract(other *SubscriptionSet) { ss.inner.Subtract(other.inner) }

// AddListener registers cb for typ against every subscribable id any
// current member contributes (spec.md §6 "set.add_listener
// (per-member-entity fan-out)").
func (ss *SubscriptionSet) AddListener(typ listener.MessageType, cb listener.MessageCallback) string {
	return ss.client.listener.AddObjectListener(typ, subscribableIDs(ss.inner.Subscribables()), ss, cb)
}

// RemoveListener removes a previously registered per-member-entity
// listener (spec.md §6 set.remove_listener).
func (ss *SubscriptionSet) RemoveListener(typ listener.MessageType, id string) {
	ss.client.listener.RemoveObjectListener(typ, subscribableIDs(ss.inner.Subscribables()), ss, id)
}

func subscribableIDs(subs []entity.Subscribable) []string {
	ids := make([]string, len(subs))
	for i, s := range subs {
		ids[i] = s.ID
	}
	return ids
}
