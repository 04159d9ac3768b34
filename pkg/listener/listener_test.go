package listener_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wavelet-io/wavelet-go/pkg/listener"
)

func TestEmitStatusInvokesEveryListener(t *testing.T) {
	l := listener.New(nil)
	var got []listener.Status
	l.AddStatusListener(func(_ any, status listener.Status, _ listener.StatusEvent) {
		got = append(got, status)
	})
	l.AddStatusListener(func(_ any, status listener.Status, _ listener.StatusEvent) {
		got = append(got, status)
	})

	l.EmitStatus(nil, listener.Connected, listener.StatusEvent{})
	assert.Equal(t, []listener.Status{listener.Connected, listener.Connected}, got)
}

func TestRemoveStatusListener(t *testing.T) {
	l := listener.New(nil)
	var calls int
	id := l.AddStatusListener(func(any, listener.Status, listener.StatusEvent) { calls++ })
	l.RemoveStatusListener(id)
	l.EmitStatus(nil, listener.Connected, listener.StatusEvent{})
	assert.Zero(t, calls)
}

func TestEmitMessageRoutesByWireTypeMapping(t *testing.T) {
	l := listener.New(nil)
	var gotSignal, gotMessage bool
	l.AddMessageListener(listener.TypeSignal, func(any, listener.Message) { gotSignal = true })
	l.AddMessageListener(listener.TypeMessage, func(any, listener.Message) { gotMessage = true })

	l.EmitMessage(nil, "ch1", listener.Message{Type: listener.WireSignal, Payload: "hi"})

	assert.True(t, gotSignal)
	assert.False(t, gotMessage)
}

func TestObjectListenerScopedToSubscribableID(t *testing.T) {
	l := listener.New(nil)
	var ch1Count, ch2Count int
	l.AddObjectListener(listener.TypeMessage, []string{"ch1"}, "sub-handle", func(any, listener.Message) { ch1Count++ })
	l.AddObjectListener(listener.TypeMessage, []string{"ch2"}, "sub-handle", func(any, listener.Message) { ch2Count++ })

	l.EmitMessage(nil, "ch1", listener.Message{Type: listener.WirePublished})

	assert.Equal(t, 1, ch1Count)
	assert.Zero(t, ch2Count)
}

func TestAddObjectListenerFanOutAcrossNamesThenRemove(t *testing.T) {
	l := listener.New(nil)
	var count int
	id := l.AddObjectListener(listener.TypeMessage, []string{"ch1", "ch2"}, "h", func(any, listener.Message) { count++ })

	l.EmitMessage(nil, "ch1", listener.Message{Type: listener.WirePublished})
	l.EmitMessage(nil, "ch2", listener.Message{Type: listener.WirePublished})
	assert.Equal(t, 2, count)

	l.RemoveObjectListener(listener.TypeMessage, []string{"ch1", "ch2"}, "h", id)
	l.EmitMessage(nil, "ch1", listener.Message{Type: listener.WirePublished})
	assert.Equal(t, 2, count, "removed listener should not fire again")
}
