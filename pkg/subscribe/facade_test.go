package subscribe_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavelet-io/wavelet-go/pkg/ee"
	"github.com/wavelet-io/wavelet-go/pkg/entity"
	"github.com/wavelet-io/wavelet-go/pkg/listener"
	"github.com/wavelet-io/wavelet-go/pkg/subscribe"
	"github.com/wavelet-io/wavelet-go/pkg/transport"
	"github.com/wavelet-io/wavelet-go/pkg/transport/transporttest"
)

type statusRecorder struct {
	mu   sync.Mutex
	seen []listener.Status
}

func (r *statusRecorder) record(_ any, status listener.Status, _ listener.StatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, status)
}

func (r *statusRecorder) statuses() []listener.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]listener.Status(nil), r.seen...)
}

func newHarness(t *testing.T) (*subscribe.Facade, *transporttest.Fake, *statusRecorder) {
	t.Helper()
	fake := transporttest.New()
	lst := listener.New(nil)
	rec := &statusRecorder{}
	lst.AddStatusListener(rec.record)
	f := subscribe.New("client", fake, lst, nil, nil)
	return f, fake, rec
}

// handshakeCall returns the first recorded subscribe call carrying the
// initial (timetoken "0") cursor.
func handshakeCall(t *testing.T, calls []transporttest.Call) transporttest.Call {
	t.Helper()
	for _, c := range calls {
		if c.Kind == transport.TransactionSubscribe && c.Cursor.IsInitial() {
			return c
		}
	}
	t.Fatal("no handshake call recorded")
	return transporttest.Call{}
}

// Scenario 1: connect happy path.
func TestConnectHappyPath(t *testing.T) {
	f, fake, rec := newHarness(t)

	ch, err := entity.New(entity.KindChannel, "ch1", nil)
	require.NoError(t, err)
	sub := entity.Alloc(nil, ch, entity.Options{})

	// A user-driven subscribe sends a presence heartbeat before the
	// handshake; script one response for each round trip.
	fake.ScriptNext(transport.CallbackResult{Result: transport.ResultOK, Cursor: transport.Cursor{Timetoken: "1700000000000000"}})
	fake.ScriptNext(transport.CallbackResult{Result: transport.ResultOK, Cursor: transport.Cursor{Timetoken: "1700000000000000"}})

	require.NoError(t, f.SubscribeWithSubscription(sub, &transport.Cursor{Timetoken: "0"}))

	assert.Equal(t, ee.StateKind(subscribe.StateReceiving), f.CurrentState())
	assert.Equal(t, []listener.Status{listener.Connected}, rec.statuses())

	hs := handshakeCall(t, fake.Calls())
	assert.Equal(t, "ch1", hs.Channels)
	assert.Equal(t, "0", hs.Cursor.Timetoken)
}

// Scenario 2: presence fan-out.
func TestPresenceFanOut(t *testing.T) {
	f, fake, _ := newHarness(t)

	ch, err := entity.New(entity.KindChannel, "ch1", nil)
	require.NoError(t, err)
	sub := entity.Alloc(nil, ch, entity.Options{ReceivePresenceEvents: true})

	fake.ScriptNext(transport.CallbackResult{Result: transport.ResultOK, Cursor: transport.Cursor{Timetoken: "1700000000000000"}})
	require.NoError(t, f.SubscribeWithSubscription(sub, &transport.Cursor{Timetoken: "0"}))

	hs := handshakeCall(t, fake.Calls())
	assert.Equal(t, "ch1,ch1-pnpres", hs.Channels)
}

// Scenario 3: graceful unsubscribe.
func TestGracefulUnsubscribe(t *testing.T) {
	f, fake, rec := newHarness(t)

	ch, err := entity.New(entity.KindChannel, "ch1", nil)
	require.NoError(t, err)
	sub := entity.Alloc(nil, ch, entity.Options{})

	// One response for the pre-handshake heartbeat, one for the handshake.
	fake.ScriptNext(transport.CallbackResult{Result: transport.ResultOK, Cursor: transport.Cursor{Timetoken: "1700000000000000"}})
	fake.ScriptNext(transport.CallbackResult{Result: transport.ResultOK, Cursor: transport.Cursor{Timetoken: "1700000000000000"}})
	require.NoError(t, f.SubscribeWithSubscription(sub, &transport.Cursor{Timetoken: "0"}))
	require.Equal(t, ee.StateKind(subscribe.StateReceiving), f.CurrentState())

	require.NoError(t, f.UnsubscribeWithSubscription(sub))

	assert.Equal(t, ee.StateKind(subscribe.StateUnsubscribed), f.CurrentState())
	assert.Contains(t, rec.statuses(), listener.Disconnected)

	var sawLeave bool
	for _, c := range fake.Calls() {
		if c.Kind == transport.TransactionLeave && c.Channels == "ch1" {
			sawLeave = true
		}
	}
	assert.True(t, sawLeave, "expected a leave call for ch1")
}

// Scenario 4: failure and reconnect.
func TestFailureAndReconnect(t *testing.T) {
	f, fake, rec := newHarness(t)

	ch, err := entity.New(entity.KindChannel, "ch1", nil)
	require.NoError(t, err)
	sub := entity.Alloc(nil, ch, entity.Options{})

	// One response for the pre-handshake heartbeat, one for the handshake.
	fake.ScriptNext(transport.CallbackResult{Result: transport.ResultOK, Cursor: transport.Cursor{Timetoken: "1700000000000000"}})
	fake.ScriptNext(transport.CallbackResult{Result: transport.ResultOK, Cursor: transport.Cursor{Timetoken: "1700000000000000"}})
	require.NoError(t, f.SubscribeWithSubscription(sub, &transport.Cursor{Timetoken: "0"}))
	require.Equal(t, ee.StateKind(subscribe.StateReceiving), f.CurrentState())

	// The automatically started Receive invocation is still outstanding
	// (no scripted response was queued for it); deliver a timeout for it.
	fake.Deliver(transport.CallbackResult{Result: transport.ResultTimeout, Reason: "PNR_TIMEOUT"})

	assert.Equal(t, ee.StateKind(subscribe.StateReceiveFailed), f.CurrentState())
	assert.Contains(t, rec.statuses(), listener.DisconnectedUnexpectedly)

	fake.ScriptNext(transport.CallbackResult{Result: transport.ResultOK, Cursor: transport.Cursor{Timetoken: "1700000000000000"}})
	require.NoError(t, f.Reconnect(nil))
	assert.Equal(t, ee.StateKind(subscribe.StateReceiving), f.CurrentState())
}

// Scenario 5: set modification during receive.
func TestSetModificationDuringReceive(t *testing.T) {
	f, fake, _ := newHarness(t)

	ch1, err := entity.New(entity.KindChannel, "ch1", nil)
	require.NoError(t, err)
	ch2, err := entity.New(entity.KindChannel, "ch2", nil)
	require.NoError(t, err)
	ch3, err := entity.New(entity.KindChannel, "ch3", nil)
	require.NoError(t, err)

	set := entity.NewSetFromEntities(nil, []*entity.Entity{ch1, ch2}, entity.Options{})

	// One response for the pre-handshake heartbeat, one for the handshake.
	fake.ScriptNext(transport.CallbackResult{Result: transport.ResultOK, Cursor: transport.Cursor{Timetoken: "1700000000000000"}})
	fake.ScriptNext(transport.CallbackResult{Result: transport.ResultOK, Cursor: transport.Cursor{Timetoken: "1700000000000000"}})
	require.NoError(t, f.SubscribeWithSet(set, &transport.Cursor{Timetoken: "0"}))
	require.Equal(t, ee.StateKind(subscribe.StateReceiving), f.CurrentState())

	sub3 := entity.Alloc(nil, ch3, entity.Options{})
	fake.ScriptNext(transport.CallbackResult{Result: transport.ResultOK, Cursor: transport.Cursor{Timetoken: "1700000000000002"}})
	require.NoError(t, f.ChangeSubscriptionWithSet(set, sub3, true))

	calls := fake.Calls()
	last := calls[len(calls)-1]
	assert.Equal(t, "ch1,ch2,ch3", last.Channels)
}

// Scenario 6: cancel supersedes subscribe.
func TestCancelSupersedesSubscribe(t *testing.T) {
	f, fake, rec := newHarness(t)

	ch, err := entity.New(entity.KindChannel, "ch1", nil)
	require.NoError(t, err)
	sub := entity.Alloc(nil, ch, entity.Options{})

	// One response for the pre-handshake heartbeat, one for the handshake.
	fake.ScriptNext(transport.CallbackResult{Result: transport.ResultOK, Cursor: transport.Cursor{Timetoken: "1700000000000000"}})
	fake.ScriptNext(transport.CallbackResult{Result: transport.ResultOK, Cursor: transport.Cursor{Timetoken: "1700000000000000"}})
	require.NoError(t, f.SubscribeWithSubscription(sub, &transport.Cursor{Timetoken: "0"}))
	require.Equal(t, ee.StateKind(subscribe.StateReceiving), f.CurrentState())

	// The auto-started Receive invocation is still outstanding (no
	// response was scripted for it) when unsubscribe_all supersedes it.
	require.NoError(t, f.UnsubscribeAll())

	// Two cancels in all: one from leaving Handshaking on HandshakeSuccess,
	// one from leaving Receiving on UnsubscribeAll.
	assert.Equal(t, 2, fake.CancelCount())
	assert.Equal(t, ee.StateKind(subscribe.StateUnsubscribed), f.CurrentState())
	assert.Contains(t, rec.statuses(), listener.Disconnected)
}
