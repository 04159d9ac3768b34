package subscribe

import "github.com/wavelet-io/wavelet-go/pkg/ee"

// State kinds, per spec.md §4.6. None is deliberately absent: the
// generic engine's "no legal transition" path is expressed as
// ee.Transition.Target == nil, not as a distinguished state value.
const (
	StateUnsubscribed ee.StateKind = iota
	StateHandshaking
	StateHandshakeFailed
	StateHandshakeStopped
	StateReceiving
	StateReceiveFailed
	StateReceiveStopped
)

// Event kinds, per spec.md §4.6.
const (
	EventSubscriptionChanged ee.EventKind = iota
	EventSubscriptionRestored
	EventHandshakeSuccess
	EventHandshakeFailure
	EventReceiveSuccess
	EventReceiveFailure
	EventDisconnect
	EventReconnect
	EventUnsubscribeAll
)

// Invocation kinds, per spec.md §4.6.
const (
	InvocationHandshake ee.InvocationKind = iota
	InvocationReceive
	InvocationEmitStatus
	InvocationEmitMessage
	InvocationCancel
)
