// Package listener implements the Event Listener: registration and
// dispatch of status-change and message callbacks, globally and per
// subscribable. See spec.md §4.4 and §6.
package listener

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wavelet-io/wavelet-go/internal/container"
)

// Status is the connection/subscription status surfaced to status
// listeners, per spec.md §6.
type Status int

const (
	Connected Status = iota
	ConnectionError
	Disconnected
	DisconnectedUnexpectedly
	SubscriptionChanged
)

func (s Status) String() string {
	switch s {
	case Connected:
		return "connected"
	case ConnectionError:
		return "connection_error"
	case Disconnected:
		return "disconnected"
	case DisconnectedUnexpectedly:
		return "disconnected_unexpectedly"
	case SubscriptionChanged:
		return "subscription_changed"
	default:
		return "unknown"
	}
}

// StatusEvent carries the metadata accompanying a status callback: the
// failure reason (empty on success), and the channels/groups the status
// pertains to, as comma-separated strings.
type StatusEvent struct {
	Reason      string
	ChannelsCSV string
	GroupsCSV   string
}

// StatusCallback is invoked with (client, status, event) for every
// status-change listener.
type StatusCallback func(client any, status Status, event StatusEvent)

// MessageType is the kind of real-time event a message listener matches
// on, per spec.md §6.
type MessageType int

const (
	TypeMessage MessageType = iota
	TypeSignal
	TypeMessageAction
	TypeObjects
	TypeFiles
)

// WireType identifies the transport's reported message kind, which
// Listener.EmitMessage maps onto a MessageType per spec.md §4.4's table:
// Published→Message, Signal→Signal, Action→MessageAction,
// Objects→Objects, Files→Files.
type WireType int

const (
	WirePublished WireType = iota
	WireSignal
	WireAction
	WireObjects
	WireFiles
)

func mapWireType(w WireType) MessageType {
	switch w {
	case WireSignal:
		return TypeSignal
	case WireAction:
		return TypeMessageAction
	case WireObjects:
		return TypeObjects
	case WireFiles:
		return TypeFiles
	default:
		return TypeMessage
	}
}

// Message is the payload handed to message listeners.
type Message struct {
	SubscribableID string
	Type           WireType
	Payload        any
	Publisher      string
	Timetoken      string
	Flags          uint32
}

// MessageCallback is invoked with (client, message) for every matching
// message listener.
type MessageCallback func(client any, msg Message)

type statusEntry struct {
	id string
	cb StatusCallback
}

type globalMessageEntry struct {
	id   string
	typ  MessageType
	cb   MessageCallback
	subH any // nil for a global listener, non-nil for a per-subscription-handle listener registered globally
}

type objectListenerRecord struct {
	id   string
	typ  MessageType
	subH any
	cb   MessageCallback
}

type objectContainer struct {
	records []objectListenerRecord
}

// Listener is the Event Listener: it holds every registered status and
// message callback (global and per-subscribable) and fans out emitted
// events to them. All operations are mutex-protected (spec.md §4.4).
type Listener struct {
	mu sync.Mutex

	logger *zerolog.Logger

	// statusCBs/globalMsg are the listener's top-level dynamic arrays
	// (spec.md §4.2, matching the original's `listeners`/`global_status`/
	// `global_events` pbarray_t fields in
	// pbcc_subscribe_event_listener.c). Equal matches the fields each
	// Remove* call keys on.
	statusCBs *container.List[statusEntry]
	globalMsg *container.List[globalMessageEntry]

	// perObject is keyed by subscribable id (spec.md §4.4's
	// "hash set keyed by subscribable id").
	perObject map[string]*objectContainer
}

// New constructs an empty Listener.
func New(logger *zerolog.Logger) *Listener {
	return &Listener{
		logger: logger,
		statusCBs: container.NewList(container.Config[statusEntry]{
			Strategy: container.ResizeOptimistic,
			Equal:    func(a, b statusEntry) bool { return a.id == b.id },
		}),
		globalMsg: container.NewList(container.Config[globalMessageEntry]{
			Strategy: container.ResizeOptimistic,
			Equal: func(a, b globalMessageEntry) bool {
				return a.subH == b.subH && a.typ == b.typ && a.id == b.id
			},
		}),
		perObject: make(map[string]*objectContainer),
	}
}

// AddStatusListener appends cb to the status callback array and returns an
// id that can be used with RemoveStatusListener.
func (l *Listener) AddStatusListener(cb StatusCallback) string {
	id := uuid.NewString()
	_ = l.statusCBs.Add(statusEntry{id: id, cb: cb})
	return id
}

// RemoveStatusListener removes every status entry with this id.
func (l *Listener) RemoveStatusListener(id string) {
	l.statusCBs.Remove(statusEntry{id: id}, true)
}

// AddMessageListener registers a global message listener (subscription
// handle nil) for typ and returns its id.
func (l *Listener) AddMessageListener(typ MessageType, cb MessageCallback) string {
	id := uuid.NewString()
	_ = l.globalMsg.Add(globalMessageEntry{id: id, typ: typ, cb: cb, subH: nil})
	return id
}

// RemoveMessageListener removes every global listener matching
// (typ, id), per spec.md §4.4 "matches on (type, cb) with
// subscription_handle == null".
func (l *Listener) RemoveMessageListener(typ MessageType, id string) {
	l.globalMsg.Remove(globalMessageEntry{id: id, typ: typ, subH: nil}, true)
}

// AddObjectListener registers cb for typ against every subscribable id in
// names, attributed to subscriptionHandle. On any per-name failure (there
// is none in this in-memory implementation, but the contract is kept for
// parity with spec.md §4.4), it rolls back every name added in this call.
func (l *Listener) AddObjectListener(typ MessageType, names []string, subscriptionHandle any, cb MessageCallback) string {
	id := uuid.NewString()
	l.mu.Lock()
	defer l.mu.Unlock()
	added := make([]string, 0, len(names))
	for _, name := range names {
		c, ok := l.perObject[name]
		if !ok {
			c = &objectContainer{}
			l.perObject[name] = c
		}
		c.records = append(c.records, objectListenerRecord{id: id, typ: typ, subH: subscriptionHandle, cb: cb})
		added = append(added, name)
	}
	return id
}

// RemoveObjectListener removes every record matching
// (typ, subscriptionHandle, id) from each name in names, pruning any
// per-object container left empty.
func (l *Listener) RemoveObjectListener(typ MessageType, names []string, subscriptionHandle any, id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, name := range names {
		c, ok := l.perObject[name]
		if !ok {
			continue
		}
		kept := c.records[:0:0]
		for _, r := range c.records {
			if r.typ == typ && r.subH == subscriptionHandle && r.id == id {
				continue
			}
			kept = append(kept, r)
		}
		if len(kept) == 0 {
			delete(l.perObject, name)
		} else {
			c.records = kept
		}
	}
}

// EmitStatus invokes every status callback with (client, status, event).
func (l *Listener) EmitStatus(client any, status Status, event StatusEvent) {
	entries := l.statusCBs.Elements()
	cbs := make([]StatusCallback, len(entries))
	for i, e := range entries {
		cbs[i] = e.cb
	}

	if l.logger != nil {
		l.logger.Debug().Str("status", status.String()).Str("reason", event.Reason).Msg("emit status")
	}
	for _, cb := range cbs {
		cb(client, status, event)
	}
}

// EmitMessage invokes every matching global and per-subscribable listener
// for msg, keyed by subscribableID (spec.md §4.7 EmitMessage: "keyed by
// the subscribable id reported by the wire response").
func (l *Listener) EmitMessage(client any, subscribableID string, msg Message) {
	typ := mapWireType(msg.Type)
	msg.SubscribableID = subscribableID

	var cbs []MessageCallback
	for _, e := range l.globalMsg.Elements() {
		if e.typ == typ {
			cbs = append(cbs, e.cb)
		}
	}

	l.mu.Lock()
	if c, ok := l.perObject[subscribableID]; ok {
		for _, r := range c.records {
			if r.subH == nil || r.typ == typ {
				cbs = append(cbs, r.cb)
			}
		}
	}
	l.mu.Unlock()

	for _, cb := range cbs {
		cb(client, msg)
	}
}
