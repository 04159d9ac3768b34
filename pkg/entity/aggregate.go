package entity

// AggregateSubscribables computes the pure function of (active
// subscriptions ∪ active subscription sets) described in spec.md §3's
// global invariants: it is recomputed whenever those arrays change, never
// mutated incrementally.
func AggregateSubscribables(subscriptions []*Subscription, sets []*SubscriptionSet) []Subscribable {
	seen := make(map[string]struct{})
	var out []Subscribable
	add := func(s Subscribable) {
		if _, ok := seen[s.Key()]; ok {
			return
		}
		seen[s.Key()] = struct{}{}
		out = append(out, s)
	}
	for _, sub := range subscriptions {
		for _, s := range sub.Subscribables() {
			add(s)
		}
	}
	for _, set := range sets {
		for _, s := range set.Subscribables() {
			add(s)
		}
	}
	return out
}

// SplitByLocation partitions subscribables into channel ids (path) and
// channel-group ids (query), excluding presence subscribables from neither
// — callers that want only non-presence ids should filter first with
// NonPresence. This mirrors how the SEE builds the comma-separated
// channels/groups strings sent on the wire (spec.md §3 Subscribe EE
// Context).
func SplitByLocation(subs []Subscribable) (channels, groups []string) {
	for _, s := range subs {
		switch s.Location {
		case LocationQuery:
			groups = append(groups, s.ID)
		default:
			channels = append(channels, s.ID)
		}
	}
	return channels, groups
}

// NonPresence filters out presence subscribables.
func NonPresence(subs []Subscribable) []Subscribable {
	out := make([]Subscribable, 0, len(subs))
	for _, s := range subs {
		if !s.Presence {
			out = append(out, s)
		}
	}
	return out
}
