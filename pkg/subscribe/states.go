package subscribe

import (
	"github.com/wavelet-io/wavelet-go/pkg/ee"
	"github.com/wavelet-io/wavelet-go/pkg/listener"
)

// buildStates constructs this facade's state graph. States are built
// per-Facade, not as package-level singletons: their transition and
// on-enter/on-exit functions are bound methods closing over f, since
// effects need this facade's transport and listener (spec.md §9's
// "deep-inheritance" design note models this as a tagged variant with
// per-kind transition/effect functions; here the kind dispatch is a Go
// method set instead of a switch over function pointers).
func (f *Facade) buildStates() {
	f.stUnsubscribed = &ee.State[Context]{Kind: StateUnsubscribed}
	f.stHandshaking = &ee.State[Context]{Kind: StateHandshaking}
	f.stHandshakeFailed = &ee.State[Context]{Kind: StateHandshakeFailed}
	f.stHandshakeStopped = &ee.State[Context]{Kind: StateHandshakeStopped}
	f.stReceiving = &ee.State[Context]{Kind: StateReceiving}
	f.stReceiveFailed = &ee.State[Context]{Kind: StateReceiveFailed}
	f.stReceiveStopped = &ee.State[Context]{Kind: StateReceiveStopped}

	f.stUnsubscribed.Transition = f.transitionUnsubscribed

	f.stHandshaking.Transition = f.transitionHandshaking
	f.stHandshaking.OnEnter = []ee.InvocationFactory[Context]{f.invocationHandshake}
	f.stHandshaking.OnExit = []ee.InvocationFactory[Context]{f.invocationCancel}

	f.stHandshakeFailed.Transition = f.transitionHandshakeFailed
	f.stHandshakeStopped.Transition = f.transitionHandshakeStopped

	f.stReceiving.Transition = f.transitionReceiving
	f.stReceiving.OnEnter = []ee.InvocationFactory[Context]{f.invocationReceive}
	f.stReceiving.OnExit = []ee.InvocationFactory[Context]{f.invocationCancel}

	f.stReceiveFailed.Transition = f.transitionReceiveFailed
	f.stReceiveStopped.Transition = f.transitionReceiveStopped
}

// ackTransition builds the "event ignored, no legal transition" result
// (spec.md §4.6 "Target state None").
func ackTransition() (*ee.Transition[Context], error) {
	return &ee.Transition[Context]{Target: nil}, nil
}

func move(target *ee.State[Context], invocations ...*ee.Invocation[Context]) (*ee.Transition[Context], error) {
	return &ee.Transition[Context]{Target: target, Invocations: invocations}, nil
}

func (f *Facade) recordReconnect() {
	if f.metrics != nil {
		f.metrics.IncReconnect()
	}
}

// handshakingOrUnsubscribed implements the table's "Hʅ/U": Handshaking if
// the next context still names at least one channel or group, else
// Unsubscribed.
func (f *Facade) handshakingOrUnsubscribed(next Context) *ee.State[Context] {
	if next.Channels == "" && next.Groups == "" {
		return f.stUnsubscribed
	}
	return f.stHandshaking
}

func (f *Facade) transitionUnsubscribed(_ *ee.Engine[Context], _ *ee.State[Context], evt ee.Event[Context]) (*ee.Transition[Context], error) {
	switch evt.Kind {
	case EventSubscriptionChanged, EventSubscriptionRestored:
		return move(f.stHandshaking)
	default:
		return ackTransition()
	}
}

func (f *Facade) transitionHandshaking(_ *ee.Engine[Context], _ *ee.State[Context], evt ee.Event[Context]) (*ee.Transition[Context], error) {
	switch evt.Kind {
	case EventSubscriptionChanged:
		return move(f.handshakingOrUnsubscribed(evt.Data))
	case EventSubscriptionRestored:
		return move(f.stHandshaking)
	case EventHandshakeSuccess:
		return move(f.stReceiving, f.invocationEmitStatus(listener.Connected, ""))
	case EventHandshakeFailure:
		return move(f.stHandshakeFailed, f.invocationEmitStatus(listener.ConnectionError, evt.Data.Reason))
	case EventDisconnect:
		return move(f.stHandshakeStopped)
	case EventUnsubscribeAll:
		return move(f.stUnsubscribed)
	default:
		return ackTransition()
	}
}

func (f *Facade) transitionHandshakeFailed(_ *ee.Engine[Context], _ *ee.State[Context], evt ee.Event[Context]) (*ee.Transition[Context], error) {
	switch evt.Kind {
	case EventSubscriptionChanged, EventSubscriptionRestored:
		return move(f.handshakingOrUnsubscribed(evt.Data))
	case EventReconnect:
		f.recordReconnect()
		return move(f.stHandshaking)
	case EventUnsubscribeAll:
		return move(f.stUnsubscribed)
	default:
		return ackTransition()
	}
}

func (f *Facade) transitionHandshakeStopped(_ *ee.Engine[Context], _ *ee.State[Context], evt ee.Event[Context]) (*ee.Transition[Context], error) {
	switch evt.Kind {
	case EventSubscriptionChanged, EventSubscriptionRestored:
		// Stays HandshakeStopped but the context (channels/groups) still
		// needs to update, so the target is the same state pointer
		// rather than the nil "ignored" sentinel.
		return move(f.stHandshakeStopped)
	case EventReconnect:
		f.recordReconnect()
		return move(f.stHandshaking)
	case EventUnsubscribeAll:
		return move(f.stUnsubscribed)
	default:
		return ackTransition()
	}
}

func (f *Facade) transitionReceiving(_ *ee.Engine[Context], _ *ee.State[Context], evt ee.Event[Context]) (*ee.Transition[Context], error) {
	switch evt.Kind {
	case EventSubscriptionChanged, EventSubscriptionRestored:
		target := f.handshakingOrUnsubscribed(evt.Data)
		status := listener.SubscriptionChanged
		if target == f.stUnsubscribed {
			status = listener.Disconnected
		}
		return move(target, f.invocationEmitStatus(status, ""))
	case EventReceiveSuccess:
		return move(f.stReceiving, f.invocationEmitMessage())
	case EventReceiveFailure:
		return move(f.stReceiveFailed, f.invocationEmitStatus(listener.DisconnectedUnexpectedly, evt.Data.Reason))
	case EventDisconnect:
		return move(f.stReceiveStopped, f.invocationEmitStatus(listener.Disconnected, ""))
	case EventUnsubscribeAll:
		return move(f.stUnsubscribed, f.invocationEmitStatus(listener.Disconnected, ""))
	default:
		return ackTransition()
	}
}

func (f *Facade) transitionReceiveFailed(_ *ee.Engine[Context], _ *ee.State[Context], evt ee.Event[Context]) (*ee.Transition[Context], error) {
	switch evt.Kind {
	case EventSubscriptionChanged, EventSubscriptionRestored:
		return move(f.stHandshaking)
	case EventReconnect:
		f.recordReconnect()
		return move(f.stHandshaking)
	case EventUnsubscribeAll:
		return move(f.stUnsubscribed)
	default:
		return ackTransition()
	}
}

func (f *Facade) transitionReceiveStopped(_ *ee.Engine[Context], _ *ee.State[Context], evt ee.Event[Context]) (*ee.Transition[Context], error) {
	switch evt.Kind {
	case EventSubscriptionChanged, EventSubscriptionRestored:
		return move(f.stReceiveStopped)
	case EventReconnect:
		f.recordReconnect()
		return move(f.stHandshaking)
	case EventUnsubscribeAll:
		return move(f.stUnsubscribed)
	default:
		return ackTransition()
	}
}
