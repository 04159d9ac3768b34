package entity

// Location is where a subscribable is sent on the wire: channels go in the
// path, channel groups go in the query string. See spec.md §3 Subscribable.
type Location int

const (
	LocationPath Location = iota
	LocationQuery
)

// PresenceSuffix is appended to a channel/group id to form its presence
// subscribable, per the service convention in spec.md §6.
const PresenceSuffix = "-pnpres"

// Subscribable is the atomic name the wire subscribe loop actually
// subscribes to: either a regular channel/group id, or that id suffixed
// with PresenceSuffix.
type Subscribable struct {
	ID       string
	Location Location
	Presence bool
}

// Key uniquely identifies a Subscribable within an aggregated set.
func (s Subscribable) Key() string { return s.ID }

// forEntity returns the regular subscribable for e, and — when presence is
// requested — its presence counterpart, per spec.md §4.3
// "subscribable_list".
func forEntity(e *Entity, presence bool) []Subscribable {
	loc := LocationPath
	if e.IsChannelGroup() {
		loc = LocationQuery
	}
	subs := []Subscribable{{ID: e.ID(), Location: loc, Presence: false}}
	if presence {
		subs = append(subs, Subscribable{ID: e.ID() + PresenceSuffix, Location: loc, Presence: true})
	}
	return subs
}
