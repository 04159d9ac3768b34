// Package transport defines the boundary between the Subscribe Event
// Engine and the opaque wire client it drives. See spec.md §1 and §6:
// HTTP transport, TLS, wire encoding, and JSON parsing are deliberately
// out of scope here — the SEE only ever sees this interface.
package transport

import "context"

// TransactionKind identifies what kind of transport call an Invocation's
// completion callback pertains to, per spec.md §4.8's facade dispatch.
type TransactionKind int

const (
	TransactionSubscribe TransactionKind = iota
	TransactionHeartbeat
	TransactionLeave
)

func (k TransactionKind) String() string {
	switch k {
	case TransactionHeartbeat:
		return "heartbeat"
	case TransactionLeave:
		return "leave"
	default:
		return "subscribe"
	}
}

// Result is the boundary result code consumed from the transport
// (spec.md §6 "Result codes consumed at the boundary").
type Result int

const (
	ResultOK Result = iota
	ResultCancelled
	ResultTimeout
	ResultConnectionError
	ResultServerError
)

// MessageType is the wire-reported kind of a parsed real-time event
// (spec.md §6).
type MessageType int

const (
	MessagePublished MessageType = iota
	MessageSignal
	MessageAction
	MessageObjects
	MessageFiles
)

// Cursor positions the next long-poll. Timetoken is an opaque ASCII
// decimal string; "0" (or any string starting with '0') means "initial /
// no catch-up" (spec.md §3).
type Cursor struct {
	Timetoken string
	Region    string
}

// IsInitial reports whether c represents "no catch-up."
func (c Cursor) IsInitial() bool {
	return c.Timetoken == "" || c.Timetoken[0] == '0'
}

// ParsedMessage is one real-time event read off the transport's buffer
// (spec.md §6's per-message struct).
type ParsedMessage struct {
	Channel           string
	SubscriptionGroup string
	Type              MessageType
	Payload           any
	Publisher         string
	Timetoken         string
	Flags             uint32
}

// SubscribableID returns the key emit_message keys listener dispatch on:
// the subscription group when the message arrived via one, else the
// channel (spec.md §4.7 EmitMessage).
func (m ParsedMessage) SubscribableID() string {
	if m.SubscriptionGroup != "" {
		return m.SubscriptionGroup
	}
	return m.Channel
}

// CallbackResult is delivered to the single registered callback on
// transaction completion (spec.md §4.8 "Transport callback dispatch").
type CallbackResult struct {
	Kind     TransactionKind
	Result   Result
	Reason   string
	Cursor   Cursor
	Messages []ParsedMessage
	UserData any
}

// Callback is the transport's single completion entry point, registered
// once via RegisterCallback.
type Callback func(CallbackResult)

// Transport is the callback-based client the SEE drives (spec.md §6). All
// methods start a transaction; outcomes arrive on the registered Callback,
// either later or synchronously from within the Transport method itself
// (as transporttest.Fake does for scripted responses). The facade calls
// Transport methods without holding its own lock or the engine's lock, so
// a synchronous callback does not deadlock.
type Transport interface {
	// SubscribeV2 starts a long-poll with timetoken 0 (handshake) or
	// cursor.Timetoken != "0" (receive), using channels/groups (both
	// comma-separated), filterExpr, and heartbeat (seconds; 0 disables the
	// accompanying presence heartbeat parameter on the wire request).
	SubscribeV2(ctx context.Context, channels, groups string, cursor Cursor, filterExpr string, heartbeat int, userData any) error

	// Heartbeat issues a standalone presence heartbeat, used by Handshake
	// when ctx.send_heartbeat is true and no transaction is in flight
	// (spec.md §4.7).
	Heartbeat(ctx context.Context, channels, groups string, userData any) error

	// Leave issues (or, if queued by the caller, replays) a presence leave
	// for channels/groups.
	Leave(ctx context.Context, channels, groups string, userData any) error

	// Cancel requests cancellation of whatever transaction is currently
	// outstanding. The registered callback still fires, reporting
	// ResultCancelled.
	Cancel()

	// CanStartTransaction reports whether a new transaction (in
	// particular, a Leave) may be issued immediately, or must be queued by
	// the caller (spec.md §6 "can_start_transaction").
	CanStartTransaction() bool

	// RegisterCallback installs the transport's single completion
	// callback. Only one may be registered; a second call replaces the
	// first.
	RegisterCallback(cb Callback)
}
