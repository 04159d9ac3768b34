// Package subscribe implements the Subscribe Event Engine: its state
// graph (spec.md §4.6), effects (§4.7), and facade (§4.8), built on top
// of the generic runtime in pkg/ee.
package subscribe

import "github.com/wavelet-io/wavelet-go/pkg/transport"

// Context is the Subscribe EE's shared data snapshot (spec.md §3
// "Subscribe EE Context"). Values are copied, never mutated in place —
// every event installs a freshly built Context as the engine's new
// CurrentData(), satisfying the "mutating a snapshot in place is
// forbidden" invariant without needing Go-side refcounting: a Context is
// a plain value, and the last event to touch it owns the only live copy
// by construction.
type Context struct {
	// Channels and Groups are the comma-separated, sorted subscribable id
	// lists last sent (or about to be sent) on the wire.
	Channels string
	Groups   string

	Cursor transport.Cursor
	Reason string

	// SendHeartbeat is set when a user-driven subscription change should
	// be preceded by a presence heartbeat before the next long-poll
	// (spec.md §4.6 context propagation rules).
	SendHeartbeat bool

	FilterExpression string
	HeartbeatSeconds int

	// PendingMessages carries the parsed messages of the most recent
	// subscribe result. Only a ReceiveSuccess transition hands them to the
	// EmitMessage effect; messages arriving with a HandshakeSuccess are not
	// delivered. The field is not cleared after emission.
	PendingMessages []transport.ParsedMessage

	Client any
}
