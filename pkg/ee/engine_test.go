package ee_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavelet-io/wavelet-go/pkg/ee"
)

const (
	kindA ee.StateKind = iota
	kindB
)

const (
	evtGo ee.EventKind = iota
)

const (
	invEvent ee.InvocationKind = iota
	invOnExit
	invOnEnter
)

func recordingEffect(order *[]ee.InvocationKind, kind ee.InvocationKind) ee.Effect[int] {
	return func(_ *ee.Invocation[int], _ int, complete ee.CompletionFunc) {
		*order = append(*order, kind)
		complete(false)
	}
}

func TestHandleEventRunsEventInvocationsThenOnExitThenOnEnter(t *testing.T) {
	var order []ee.InvocationKind

	var stateB *ee.State[int]
	stateA := &ee.State[int]{
		Kind: kindA,
		Transition: func(_ *ee.Engine[int], _ *ee.State[int], _ ee.Event[int]) (*ee.Transition[int], error) {
			return &ee.Transition[int]{
				Target: stateB,
				Invocations: []*ee.Invocation[int]{
					ee.NewInvocation(invEvent, false, recordingEffect(&order, invEvent)),
				},
			}, nil
		},
		OnExit: []ee.InvocationFactory[int]{
			func(int) *ee.Invocation[int] {
				return ee.NewInvocation(invOnExit, false, recordingEffect(&order, invOnExit))
			},
		},
	}
	stateB = &ee.State[int]{
		Kind: kindB,
		Transition: func(_ *ee.Engine[int], _ *ee.State[int], _ ee.Event[int]) (*ee.Transition[int], error) {
			return &ee.Transition[int]{Target: nil}, nil
		},
		OnEnter: []ee.InvocationFactory[int]{
			func(int) *ee.Invocation[int] {
				return ee.NewInvocation(invOnEnter, false, recordingEffect(&order, invOnEnter))
			},
		},
	}

	eng := ee.New[int](stateA, 0, nil, nil, "test")
	err := eng.HandleEvent(ee.Event[int]{Kind: evtGo})
	require.NoError(t, err)

	// The head invocation runs immediately on HandleEvent (queue was
	// empty), the rest drain as each completes synchronously.
	assert.Equal(t, []ee.InvocationKind{invEvent, invOnExit, invOnEnter}, order)
	assert.Equal(t, kindB, eng.CurrentState().Kind)
}

func TestHandleEventNilTargetLeavesStateUnchanged(t *testing.T) {
	calls := 0
	state := &ee.State[int]{
		Kind: kindA,
		Transition: func(_ *ee.Engine[int], _ *ee.State[int], _ ee.Event[int]) (*ee.Transition[int], error) {
			calls++
			return &ee.Transition[int]{Target: nil}, nil
		},
	}
	eng := ee.New[int](state, 0, nil, nil, "test")
	require.NoError(t, eng.HandleEvent(ee.Event[int]{Kind: evtGo}))
	assert.Equal(t, 1, calls)
	assert.Equal(t, kindA, eng.CurrentState().Kind)
}

func TestHandleEventPropagatesTransitionError(t *testing.T) {
	state := &ee.State[int]{
		Kind: kindA,
		Transition: func(_ *ee.Engine[int], _ *ee.State[int], _ ee.Event[int]) (*ee.Transition[int], error) {
			return nil, assert.AnError
		},
	}
	eng := ee.New[int](state, 0, nil, nil, "test")
	err := eng.HandleEvent(ee.Event[int]{Kind: evtGo})
	assert.ErrorIs(t, err, ee.ErrNoTransition)
	assert.Equal(t, kindA, eng.CurrentState().Kind)
}

func TestImmediateInvocationRunsAheadOfQueuedSibling(t *testing.T) {
	var order []ee.InvocationKind
	blocked := make(chan ee.CompletionFunc, 1)

	state := &ee.State[int]{
		Kind: kindA,
		Transition: func(_ *ee.Engine[int], _ *ee.State[int], _ ee.Event[int]) (*ee.Transition[int], error) {
			return &ee.Transition[int]{
				Target: &ee.State[int]{Kind: kindB, Transition: ackTransition[int]()},
				Invocations: []*ee.Invocation[int]{
					ee.NewInvocation(invEvent, false, func(_ *ee.Invocation[int], _ int, complete ee.CompletionFunc) {
						blocked <- complete // never completes inline; stays Running
					}),
					ee.NewInvocation(invOnExit, true, recordingEffect(&order, invOnExit)),
				},
			}, nil
		},
	}

	eng := ee.New[int](state, 0, nil, nil, "test")
	require.NoError(t, eng.HandleEvent(ee.Event[int]{Kind: evtGo}))

	// The immediate invocation never joins the queue at all, so it runs
	// before its queued sibling, which comes ahead of it in the ordered
	// list, has started.
	assert.Equal(t, []ee.InvocationKind{invOnExit}, order)
	assert.Equal(t, 1, eng.QueueLen())

	complete := <-blocked
	complete(false)
	assert.Equal(t, 0, eng.QueueLen())
}

func TestInvocationCancelByTypeRemovesOnlyQueuedNotRunning(t *testing.T) {
	blocked := make(chan ee.CompletionFunc, 1)
	state := &ee.State[int]{
		Kind: kindA,
		Transition: func(_ *ee.Engine[int], _ *ee.State[int], _ ee.Event[int]) (*ee.Transition[int], error) {
			return &ee.Transition[int]{
				Target: &ee.State[int]{Kind: kindB, Transition: ackTransition[int]()},
				Invocations: []*ee.Invocation[int]{
					ee.NewInvocation(invEvent, false, func(_ *ee.Invocation[int], _ int, complete ee.CompletionFunc) {
						blocked <- complete
					}),
					ee.NewInvocation(invOnExit, false, func(*ee.Invocation[int], int, ee.CompletionFunc) {}),
				},
			}, nil
		},
	}
	eng := ee.New[int](state, 0, nil, nil, "test")
	require.NoError(t, eng.HandleEvent(ee.Event[int]{Kind: evtGo}))
	require.Equal(t, 2, eng.QueueLen())

	assert.False(t, eng.InvocationCancelByType(invEvent), "running invocation must not be cancellable")
	assert.True(t, eng.InvocationCancelByType(invOnExit))
	assert.Equal(t, 1, eng.QueueLen())

	<-blocked
}

func ackTransition[D any]() ee.TransitionFunc[D] {
	return func(_ *ee.Engine[D], _ *ee.State[D], _ ee.Event[D]) (*ee.Transition[D], error) {
		return &ee.Transition[D]{Target: nil}, nil
	}
}
