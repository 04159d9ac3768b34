// Package transporttest provides an in-memory transport.Transport fake
// for exercising the Subscribe Event Engine without a real network stack,
// grounded on the scripted-response style of
// original_source/core/test/pubnub_test_mocks.c — rendered as a Go
// channel-driven fake rather than a C callback-expectation table.
package transporttest

import (
	"context"
	"sync"

	"github.com/wavelet-io/wavelet-go/pkg/transport"
)

// Call records one transport method invocation, for assertions.
type Call struct {
	Kind     transport.TransactionKind
	Channels string
	Groups   string
	Cursor   transport.Cursor
}

// Fake is a scriptable transport.Transport: tests queue up responses with
// Script*, then drive the fake's calls, and assert on Calls() afterward.
// All fields are mutex-protected so it is safe to drive from a facade
// running on other goroutines.
type Fake struct {
	mu sync.Mutex

	cb      transport.Callback
	calls   []Call
	pending []scriptedResponse

	canStart     bool
	cancelCalled int
}

type scriptedResponse struct {
	result transport.CallbackResult
}

// New constructs a Fake that can start transactions immediately.
func New() *Fake {
	return &Fake{canStart: true}
}

// RegisterCallback implements transport.Transport.
func (f *Fake) RegisterCallback(cb transport.Callback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cb = cb
}

// CanStartTransaction implements transport.Transport.
func (f *Fake) CanStartTransaction() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canStart
}

// SetCanStartTransaction lets a test simulate an in-flight transaction
// blocking an immediate leave.
func (f *Fake) SetCanStartTransaction(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canStart = v
}

// SubscribeV2 implements transport.Transport. It records the call and, if
// a response was scripted via ScriptNext, delivers it synchronously;
// otherwise it is left outstanding until the test calls Deliver.
func (f *Fake) SubscribeV2(_ context.Context, channels, groups string, cursor transport.Cursor, _ string, _ int, userData any) error {
	return f.start(transport.TransactionSubscribe, channels, groups, cursor, userData)
}

// Heartbeat implements transport.Transport.
func (f *Fake) Heartbeat(_ context.Context, channels, groups string, userData any) error {
	return f.start(transport.TransactionHeartbeat, channels, groups, transport.Cursor{}, userData)
}

// Leave implements transport.Transport.
func (f *Fake) Leave(_ context.Context, channels, groups string, userData any) error {
	return f.start(transport.TransactionLeave, channels, groups, transport.Cursor{}, userData)
}

func (f *Fake) start(kind transport.TransactionKind, channels, groups string, cursor transport.Cursor, userData any) error {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Kind: kind, Channels: channels, Groups: groups, Cursor: cursor})
	var resp *scriptedResponse
	if len(f.pending) > 0 {
		r := f.pending[0]
		f.pending = f.pending[1:]
		resp = &r
	}
	cb := f.cb
	f.mu.Unlock()

	if resp != nil && cb != nil {
		result := resp.result
		result.Kind = kind
		result.UserData = userData
		cb(result)
	}
	return nil
}

// Cancel implements transport.Transport.
func (f *Fake) Cancel() {
	f.mu.Lock()
	f.cancelCalled++
	cb := f.cb
	f.mu.Unlock()
	if cb != nil {
		cb(transport.CallbackResult{Result: transport.ResultCancelled})
	}
}

// ScriptNext queues result to be delivered synchronously on the next
// transport call that starts a transaction.
func (f *Fake) ScriptNext(result transport.CallbackResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, scriptedResponse{result: result})
}

// Calls returns a snapshot of every transport call made so far.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CancelCount reports how many times Cancel was invoked.
func (f *Fake) CancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelCalled
}

// Deliver manually invokes the registered callback with result, as if an
// outstanding (unscripted) transaction just completed.
func (f *Fake) Deliver(result transport.CallbackResult) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb != nil {
		cb(result)
	}
}
