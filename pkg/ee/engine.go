// Package ee implements the generic Event Engine runtime: states with
// transition functions, on-enter/on-exit invocation lists, an effect
// invocation queue, immediate vs. queued invocation execution, and
// cancellation by type. See spec.md §4.5.
//
// The engine is parameterized over a single context/data type D rather
// than carrying an opaque pointer the way the source's `ee_data` wrapper
// does: spec.md's own "dynamic typing via void*" design note observes that
// generic uses disappear once the engine is specialized to one state
// machine, so a Go type parameter stands in for the C union of payload
// types.
package ee

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/wavelet-io/wavelet-go/pkg/metrics"
)

// ErrNoTransition is returned by HandleEvent when a state's transition
// function fails to produce a transition — the Go analogue of spec.md
// §4.5 step 1 ("transition == null: out of memory; release and return").
var ErrNoTransition = errors.New("ee: transition function produced no transition")

// StateKind, EventKind, and InvocationKind are closed tag sets: the
// "deep-inheritance" design note models the source's function-pointer
// dispatch as a tagged variant rather than open-ended polymorphism.
type StateKind int
type EventKind int
type InvocationKind int

// Event is a type tag plus the shared immutable context snapshot that
// accompanies it (spec.md §3 Event). Data is the full next-context
// snapshot the caller has already computed for this event (merging the
// engine's prior context with whatever this event changes, per the
// context propagation rules of the state machine in question); the
// engine installs it verbatim as CurrentData() when the transition
// moves state. Constructing Data is the caller's responsibility, not the
// transition function's — this lets the transition function stay a pure
// (state, event-kind) -> (target, invocations) mapping.
type Event[D any] struct {
	Kind EventKind
	Data D
}

// InvocationStatus tracks an Invocation's lifecycle (spec.md §3
// Invocation).
type InvocationStatus int

const (
	StatusCreated InvocationStatus = iota
	StatusRunning
	StatusCompleted
)

// CompletionFunc is how an effect reports the outcome of its work back to
// the engine. paused=true asks the engine to reset the invocation to
// StatusCreated so the effect can re-trigger itself later (e.g. a
// heartbeat-before-subscribe handshake); paused=false marks the
// invocation Completed and drains the queue.
type CompletionFunc func(paused bool)

// Effect is the side-effecting function bound to an invocation kind. It
// must not block past the point of starting asynchronous work: it either
// calls complete synchronously (for immediate, synchronous effects like
// EmitStatus) or stashes complete for an asynchronous callback to invoke
// later.
type Effect[D any] func(inv *Invocation[D], data D, complete CompletionFunc)

// Invocation is a deferred request to run an Effect; it lives in the
// engine's FIFO queue unless Immediate is set (spec.md §3 Invocation). It
// has exactly one owner at a time (the queue, or the caller's stack for
// an immediate invocation), so unlike List/Set/Entity it carries no
// refcount: Go's garbage collector reclaims it once the queue drops its
// slice entry, with no destructor to race against.
type Invocation[D any] struct {
	Kind      InvocationKind
	Immediate bool
	Effect    Effect[D]

	mu     sync.Mutex
	status InvocationStatus
}

// NewInvocation constructs a Created invocation.
func NewInvocation[D any](kind InvocationKind, immediate bool, effect Effect[D]) *Invocation[D] {
	return &Invocation[D]{Kind: kind, Immediate: immediate, Effect: effect}
}

// Status returns the invocation's current lifecycle status.
func (inv *Invocation[D]) Status() InvocationStatus {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.status
}

func (inv *Invocation[D]) setStatus(s InvocationStatus) {
	inv.mu.Lock()
	inv.status = s
	inv.mu.Unlock()
}

func (inv *Invocation[D]) compareAndSetStatus(from, to InvocationStatus) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.status != from {
		return false
	}
	inv.status = to
	return true
}

// InvocationFactory builds an on-enter/on-exit invocation bound to the
// data snapshot that will be current once the transition installs its
// target state.
type InvocationFactory[D any] func(data D) *Invocation[D]

// TransitionFunc computes the next state and invocation list for a given
// event against a snapshot of the current state. Returning an error
// signals the spec's "transition == null" / out-of-memory path; the
// engine never advances state in that case.
type TransitionFunc[D any] func(eng *Engine[D], current *State[D], evt Event[D]) (*Transition[D], error)

// State is a named point in the state graph: its type tag, the transition
// function dispatched for every event while it is current, and the
// invocation factories run on entry/exit (spec.md §3 State).
type State[D any] struct {
	Kind       StateKind
	Transition TransitionFunc[D]
	OnEnter    []InvocationFactory[D]
	OnExit     []InvocationFactory[D]
}

// Transition is the pair (target state, invocations) a state's handler
// produces for an event (spec.md §3 Transition). Target == nil means
// "remain; event handled without state change" (the sentinel None state
// from spec.md §4.6). Invocations == nil means the event adds no
// invocations of its own; the current state's on-exit and the target
// state's on-enter invocations still run.
type Transition[D any] struct {
	Target      *State[D]
	Invocations []*Invocation[D]
}

// Engine holds a current state (as a shared snapshot) and a FIFO
// invocation queue, both under one mutex (spec.md §4.5, §5 "each Event
// Engine instance owns its own mutex").
type Engine[D any] struct {
	mu      sync.Mutex
	current *State[D]
	data    D
	queue   []*Invocation[D]

	logger  *zerolog.Logger
	metrics *metrics.Registry
	name    string // used only for metric labels, e.g. "subscribe"
}

// New constructs an Engine starting in initial, with startData as its
// first context snapshot.
func New[D any](initial *State[D], startData D, logger *zerolog.Logger, reg *metrics.Registry, name string) *Engine[D] {
	return &Engine[D]{current: initial, data: startData, logger: logger, metrics: reg, name: name}
}

// CurrentState returns the engine's current state snapshot. Readers may
// hold it across lock boundaries: State values are immutable once built
// and never mutated in place, so no retain/release bookkeeping is needed
// for memory safety under Go's garbage collector — the refcount primitive
// from spec.md §4.1 is reserved for Subscription/Entity and container
// lifetimes where an explicit "last reference runs the destructor" signal
// still matters (closing transport resources, firing OnDestroy hooks);
// an Invocation has exactly one owner at a time, so it needs none.
func (e *Engine[D]) CurrentState() *State[D] {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// CurrentData returns the context snapshot installed by the most recent
// transition.
func (e *Engine[D]) CurrentData() D {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.data
}

// QueueLen reports the number of invocations currently queued (not
// counting an in-flight immediate invocation, which never enters the
// queue).
func (e *Engine[D]) QueueLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// HandleEvent takes ownership of evt, runs the current state's transition
// function against it, and installs the resulting transition (spec.md
// §4.5 handle_event, steps 1-6).
func (e *Engine[D]) HandleEvent(evt Event[D]) error {
	e.mu.Lock()
	current := e.current
	e.mu.Unlock()

	tr, err := current.Transition(e, current, evt)
	if err != nil {
		if e.logger != nil {
			e.logger.Error().Err(err).Int("state", int(current.Kind)).Int("event", int(evt.Kind)).Msg("transition function failed")
		}
		return ErrNoTransition
	}

	if e.metrics != nil {
		e.metrics.ObserveTransition(e.name, int(current.Kind), int(evt.Kind))
	}

	if tr.Target == nil {
		// Step 2: event acknowledged, no state change.
		if e.logger != nil {
			e.logger.Debug().Int("state", int(current.Kind)).Int("event", int(evt.Kind)).Msg("event ignored, no legal transition")
		}
		return nil
	}

	if tr.Invocations == nil && current.OnExit == nil && tr.Target.OnEnter == nil {
		// Step 3: install target_state as current, nothing to run.
		e.installState(tr.Target, evt.Data)
		return nil
	}

	ordered := orderedInvocations(tr, current, evt.Data)

	// Immediate invocations bypass the queue entirely and run on the
	// caller's stack, in the same (event, on-exit, on-enter) order as
	// their queued siblings; only non-immediate invocations join the
	// FIFO queue (spec.md §5 "immediate invocations bypass the queue").
	var queued []*Invocation[D]
	var immediate []*Invocation[D]
	for _, inv := range ordered {
		if inv.Immediate {
			immediate = append(immediate, inv)
		} else {
			queued = append(queued, inv)
		}
	}

	e.mu.Lock()
	e.current = tr.Target
	e.data = evt.Data
	wasEmpty := len(e.queue) == 0
	e.queue = append(e.queue, queued...)
	queueLenAfterMerge := len(e.queue)
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.SetQueueDepth(e.name, queueLenAfterMerge)
	}

	for _, inv := range immediate {
		e.exec(inv)
	}

	if wasEmpty && len(queued) > 0 {
		e.processNextInvocation()
	}
	return nil
}

// orderedInvocations builds the final execution list for a transition:
// (event-level invocations, then current state's on-exit, then target
// state's on-enter). This ordering is reversed from the naive default on
// purpose — see spec.md §4.5 and §9: on-exit cancels the outstanding
// request and resets shared read buffers that the event-level invocation
// (typically a new subscribe) is about to fill, so it must run first.
func orderedInvocations[D any](tr *Transition[D], current *State[D], data D) []*Invocation[D] {
	var out []*Invocation[D]
	out = append(out, tr.Invocations...)
	for _, f := range current.OnExit {
		out = append(out, f(data))
	}
	for _, f := range tr.Target.OnEnter {
		out = append(out, f(data))
	}
	return out
}

func (e *Engine[D]) installState(target *State[D], data D) {
	e.mu.Lock()
	e.current = target
	e.data = data
	e.mu.Unlock()
}

// ProcessNextInvocation dequeues and executes the head invocation if the
// queue is non-empty. Returns the queue length observed at call time
// (spec.md §4.5 process_next_invocation).
func (e *Engine[D]) ProcessNextInvocation() int {
	return e.processNextInvocation()
}

func (e *Engine[D]) processNextInvocation() int {
	e.mu.Lock()
	n := len(e.queue)
	if n == 0 {
		e.mu.Unlock()
		return 0
	}
	head := e.queue[0]
	e.mu.Unlock()

	e.exec(head)
	return n
}

// exec runs the exec(invocation) contract from spec.md §5 "Invocation
// execution contract": checks Created, marks Running, invokes the effect
// with a completion callback that either resets to Created (paused) or
// marks Completed, removes from the queue, and drains the next one.
func (e *Engine[D]) exec(inv *Invocation[D]) {
	if !inv.compareAndSetStatus(StatusCreated, StatusRunning) {
		return
	}

	data := e.CurrentData()
	inv.Effect(inv, data, func(paused bool) {
		if paused {
			inv.setStatus(StatusCreated)
			return
		}
		e.HandleEffectCompletion(inv)
	})
}

// HandleEffectCompletion marks inv Completed and removes it from the
// queue, if it was Running (spec.md §4.5 handle_effect_completion).
// Callers invoke this from an effect's completion callback, or directly
// when superseding a Running invocation via cancellation.
func (e *Engine[D]) HandleEffectCompletion(inv *Invocation[D]) {
	if !inv.compareAndSetStatus(StatusRunning, StatusCompleted) {
		return
	}

	e.mu.Lock()
	for i, q := range e.queue {
		if q == inv {
			e.queue = append(e.queue[:i], e.queue[i+1:]...)
			break
		}
	}
	n := len(e.queue)
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.SetQueueDepth(e.name, n)
		e.metrics.ObserveInvocation(e.name, int(inv.Kind), "completed")
	}

	e.processNextInvocation()
}

// InvocationCancelByType finds the first non-Running invocation of kind in
// the queue and removes it, without running its effect. At most one
// removal per call (spec.md §4.5 invocation_cancel_by_type).
func (e *Engine[D]) InvocationCancelByType(kind InvocationKind) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, q := range e.queue {
		if q.Kind == kind && q.Status() != StatusRunning {
			e.queue = append(e.queue[:i], e.queue[i+1:]...)
			if e.metrics != nil {
				e.metrics.SetQueueDepth(e.name, len(e.queue))
			}
			return true
		}
	}
	return false
}

// RunImmediate executes inv synchronously on the caller's stack, bypassing
// the queue entirely, per spec.md §5 "immediate invocations bypass the
// queue entirely and run on the caller's stack". Used by effects (like
// Cancel) that need to run ahead of any queued sibling.
func (e *Engine[D]) RunImmediate(ctx context.Context, inv *Invocation[D]) {
	_ = ctx
	e.exec(inv)
}
