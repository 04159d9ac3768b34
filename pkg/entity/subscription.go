package entity

// Options control how a Subscription (or SubscriptionSet) contributes to
// the aggregated subscribable set. See spec.md §3 Subscription.
type Options struct {
	ReceivePresenceEvents bool
}

// Subscription references exactly one Entity (retained for the
// subscription's lifetime) plus its delivery Options. See spec.md §3
// Subscription and §4.3 subscription_alloc/subscription_free.
type Subscription struct {
	client  any
	entity  *Entity
	options Options
	freed   bool
}

// Alloc retains entity and returns a new Subscription referencing it,
// per spec.md §4.3 "subscription_alloc(entity, options)".
func Alloc(client any, entity *Entity, options Options) *Subscription {
	entity.retain()
	return &Subscription{client: client, entity: entity, options: options}
}

// Entity returns the subscription's referenced entity.
func (s *Subscription) Entity() *Entity { return s.entity }

// EntityID is a convenience accessor used throughout the entity graph and
// the SEE facade to key subscriptions by their entity's identifier.
func (s *Subscription) EntityID() string { return s.entity.ID() }

// Options returns the subscription's delivery options.
func (s *Subscription) Options() Options { return s.options }

// WithPresence returns a copy of the options with presence overridden —
// used by subscription sets to apply the set's options in place of the
// member subscription's own (spec.md §4.3 "using the set's options for
// presence override").
func (o Options) WithPresence(presence bool) Options {
	o.ReceivePresenceEvents = presence
	return o
}

// Free releases this subscription's reference to its entity. Safe to call
// more than once; only the first call has an effect, matching "destroyed
// when all sets and the SEE have released it" (spec.md §3).
func (s *Subscription) Free() {
	if s.freed {
		return
	}
	s.freed = true
	s.entity.release()
}

// Subscribables returns the subscribable(s) this subscription contributes:
// one regular subscribable, plus a presence subscribable when enabled.
func (s *Subscription) Subscribables() []Subscribable {
	return forEntity(s.entity, s.options.ReceivePresenceEvents)
}

// SubscribablesWithOptions is Subscribables but using overrideOpts instead
// of the subscription's own options — used when a subscription is a member
// of a SubscriptionSet, whose options take precedence (spec.md §4.3).
func (s *Subscription) SubscribablesWithOptions(overrideOpts Options) []Subscribable {
	return forEntity(s.entity, overrideOpts.ReceivePresenceEvents)
}
