package subscribe

import (
	"context"

	"github.com/wavelet-io/wavelet-go/pkg/ee"
	"github.com/wavelet-io/wavelet-go/pkg/listener"
	"github.com/wavelet-io/wavelet-go/pkg/transport"
)

// invocationHandshake, invocationReceive, and invocationCancel are
// on-enter/on-exit invocation factories (spec.md §4.6's table); the data
// argument is unused since the bound effect always reads the engine's
// live CurrentData at exec time.
//
// invocationHandshake/invocationReceive each first supersede any
// same-kind invocation still sitting in the queue, so entering
// Handshaking/Receiving never leaves an outdated subscribe call queued
// behind the new one (spec.md §4.5 invocation_cancel_by_type).
func (f *Facade) invocationHandshake(_ Context) *ee.Invocation[Context] {
	f.engine.InvocationCancelByType(InvocationHandshake)
	return ee.NewInvocation[Context](InvocationHandshake, false, f.effectHandshake)
}

func (f *Facade) invocationReceive(_ Context) *ee.Invocation[Context] {
	f.engine.InvocationCancelByType(InvocationReceive)
	return ee.NewInvocation[Context](InvocationReceive, false, f.effectReceive)
}

func (f *Facade) invocationCancel(_ Context) *ee.Invocation[Context] {
	return ee.NewInvocation[Context](InvocationCancel, true, f.effectCancel)
}

// invocationEmitStatus and invocationEmitMessage are event-level
// invocations built directly by a transition (spec.md §4.6), not
// factories: each event determines its own status tag, so they are not
// reusable across states the way on-enter/on-exit invocations are.
func (f *Facade) invocationEmitStatus(status listener.Status, reason string) *ee.Invocation[Context] {
	return ee.NewInvocation[Context](InvocationEmitStatus, false, func(_ *ee.Invocation[Context], data Context, complete ee.CompletionFunc) {
		r := reason
		if r == "" {
			r = data.Reason
		}
		f.listener.EmitStatus(f.client, status, listener.StatusEvent{
			Reason:      r,
			ChannelsCSV: data.Channels,
			GroupsCSV:   data.Groups,
		})
		complete(false)
	})
}

func (f *Facade) invocationEmitMessage() *ee.Invocation[Context] {
	return ee.NewInvocation[Context](InvocationEmitMessage, false, func(_ *ee.Invocation[Context], data Context, complete ee.CompletionFunc) {
		for _, m := range data.PendingMessages {
			f.listener.EmitMessage(f.client, m.SubscribableID(), toListenerMessage(m))
		}
		complete(false)
	})
}

func toListenerMessage(m transport.ParsedMessage) listener.Message {
	var wt listener.WireType
	switch m.Type {
	case transport.MessageSignal:
		wt = listener.WireSignal
	case transport.MessageAction:
		wt = listener.WireAction
	case transport.MessageObjects:
		wt = listener.WireObjects
	case transport.MessageFiles:
		wt = listener.WireFiles
	default:
		wt = listener.WirePublished
	}
	return listener.Message{
		Type:      wt,
		Payload:   m.Payload,
		Publisher: m.Publisher,
		Timetoken: m.Timetoken,
		Flags:     m.Flags,
	}
}

// effectHandshake implements spec.md §4.7 Handshake(ctx): when the
// context asks for an accompanying heartbeat and no transaction is
// already outstanding, it issues the heartbeat first and only starts the
// subscribe once that heartbeat's completion arrives (see
// onTransportCallback's handshakeContinuation branch); otherwise it
// starts the subscribe directly.
func (f *Facade) effectHandshake(inv *ee.Invocation[Context], data Context, complete ee.CompletionFunc) {
	f.mu.Lock()
	f.currentInv = inv
	f.currentComplete = complete
	f.mu.Unlock()

	ctx := context.Background()
	if data.SendHeartbeat && f.transport.CanStartTransaction() {
		f.beginTransaction(transport.TransactionHeartbeat, true)
		if err := f.transport.Heartbeat(ctx, data.Channels, data.Groups, inv); err != nil {
			f.clearTransaction()
			complete(false)
		}
		return
	}
	f.beginSubscribe(ctx, inv, data, complete)
}

// effectReceive implements spec.md §4.7 Receive(ctx): identical shape to
// Handshake but always uses the non-initial cursor already present in
// ctx, and never precedes itself with a heartbeat.
func (f *Facade) effectReceive(inv *ee.Invocation[Context], data Context, complete ee.CompletionFunc) {
	f.mu.Lock()
	f.currentInv = inv
	f.currentComplete = complete
	f.mu.Unlock()
	f.beginSubscribe(context.Background(), inv, data, complete)
}

func (f *Facade) beginSubscribe(ctx context.Context, inv *ee.Invocation[Context], data Context, complete ee.CompletionFunc) {
	f.beginTransaction(transport.TransactionSubscribe, false)
	if err := f.transport.SubscribeV2(ctx, data.Channels, data.Groups, data.Cursor, f.currentFilterExpression(), data.HeartbeatSeconds, inv); err != nil {
		f.clearTransaction()
		complete(false)
	}
}

// effectCancel implements spec.md §4.7 Cancel(ctx): immediate, requests
// transport cancellation, and stores itself as the facade's
// cancel_invocation so the transport callback can mark it completed once
// the cancellation result actually arrives.
func (f *Facade) effectCancel(inv *ee.Invocation[Context], _ Context, complete ee.CompletionFunc) {
	f.mu.Lock()
	f.cancelInv = inv
	f.cancelComplete = complete
	f.mu.Unlock()
	f.transport.Cancel()
}
