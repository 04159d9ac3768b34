// Package container provides the ordered sequence and unordered unique-set
// primitives shared immutable objects are threaded through: a dynamic array
// with resize-strategy bookkeeping and refcounted entry sharing, and a hash
// set with union/subtract operators. Both are mutex-protected, matching the
// "no mutable buffer crosses goroutines without a lock" policy the rest of
// this module follows.
package container

import (
	"errors"
	"sync"

	"github.com/wavelet-io/wavelet-go/internal/refcount"
)

// ErrFixedSize is returned by Add/InsertAt/Merge when the list was
// configured with ResizeNone and the operation would exceed its capacity.
var ErrFixedSize = errors.New("container: fixed-size list is full")

// ResizeStrategy controls how a List raises its tracked capacity ceiling
// when an add would exceed it. No strategy lowers the ceiling: removals
// never shrink it.
type ResizeStrategy int

const (
	// ResizeNone never grows past the configured initial capacity;
	// operations that would exceed it fail with ErrFixedSize.
	ResizeNone ResizeStrategy = iota
	// ResizeConservative raises the ceiling by exactly one slot at a time.
	ResizeConservative
	// ResizeOptimistic doubles the ceiling each time an add would exceed
	// it, without an upper bound.
	ResizeOptimistic
	// ResizeBalanced raises the ceiling by half of the initial capacity
	// (or to the needed size, if that is larger).
	ResizeBalanced
)

// entry is one slot of a List. Entries carry their own refcount so that
// Merge can share them across two lists without duplicating destructor
// work: only the reference that observes the count reach zero runs it.
type entry[T any] struct {
	value T
	rc    *refcount.Counter
}

// Config configures a List's equality semantics, initial capacity, resize
// strategy, and optional per-element destructor.
type Config[T any] struct {
	InitialCapacity int
	Strategy        ResizeStrategy
	// Equal reports whether two elements are the "same" entry for the
	// purposes of Remove/Subtract/Contains. There is no == default, since
	// T may not be comparable at the type-parameter level: with a nil
	// Equal, Remove/Subtract/Contains match nothing.
	Equal func(a, b T) bool
	// Destructor, if set, runs exactly once per entry when its last
	// reference is dropped (by Remove, RemoveAll, Subtract, or Free).
	Destructor func(T)
}

// List is a thread-safe ordered sequence with shared, refcounted entries.
type List[T any] struct {
	mu      sync.Mutex
	cfg     Config[T]
	ceiling int
	entries []*entry[T]
}

// NewList builds a List from cfg. A nil cfg.Equal makes Contains/Remove
// matches fail to find anything but identity is rarely what callers want;
// provide one explicitly.
func NewList[T any](cfg Config[T]) *List[T] {
	if cfg.InitialCapacity <= 0 {
		cfg.InitialCapacity = 8
	}
	return &List[T]{
		cfg:     cfg,
		ceiling: cfg.InitialCapacity,
		entries: make([]*entry[T], 0, cfg.InitialCapacity),
	}
}

// growAllowed reports whether adding one more entry is permitted under the
// configured resize strategy, and updates the tracked ceiling.
func (l *List[T]) growAllowed() bool {
	n := len(l.entries) + 1
	switch l.cfg.Strategy {
	case ResizeNone:
		return n <= l.ceiling
	case ResizeOptimistic:
		if n > l.ceiling {
			l.ceiling *= 2
		}
		return true
	case ResizeConservative:
		if n > l.ceiling {
			l.ceiling = n
		}
		return true
	case ResizeBalanced:
		if n > l.ceiling {
			l.ceiling += l.cfg.InitialCapacity / 2
			if l.ceiling < n {
				l.ceiling = n
			}
		}
		return true
	default:
		return true
	}
}

// Add appends value as a new, singly-referenced entry.
func (l *List[T]) Add(value T) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.growAllowed() {
		return ErrFixedSize
	}
	l.entries = append(l.entries, &entry[T]{value: value, rc: refcount.New()})
	return nil
}

// InsertAt inserts value at index, shifting subsequent entries right.
func (l *List[T]) InsertAt(index int, value T) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index < 0 || index > len(l.entries) {
		return errors.New("container: index out of range")
	}
	if !l.growAllowed() {
		return ErrFixedSize
	}
	e := &entry[T]{value: value, rc: refcount.New()}
	l.entries = append(l.entries, nil)
	copy(l.entries[index+1:], l.entries[index:])
	l.entries[index] = e
	return nil
}

// Merge appends all of other's entries, sharing them via refcount rather
// than copying values: each entry's destructor runs only when its last
// reference (in either list) is released.
func (l *List[T]) Merge(other *List[T]) error {
	other.mu.Lock()
	shared := make([]*entry[T], len(other.entries))
	for i, e := range other.entries {
		e.rc.Increment()
		shared[i] = e
	}
	other.mu.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	before := len(l.entries)
	for _, e := range shared {
		if !l.growAllowed() {
			l.entries = l.entries[:before]
			for _, s := range shared {
				s.rc.Decrement()
			}
			return ErrFixedSize
		}
		l.entries = append(l.entries, e)
	}
	return nil
}

// Remove drops the first (or, if allOccurrences is true, every) entry
// equal to value per the configured Equal function. Reports whether any
// entry's destructor ran (i.e. this removal observed the last reference).
func (l *List[T]) Remove(value T, allOccurrences bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cfg.Equal == nil {
		return false
	}
	freedAny := false
	kept := make([]*entry[T], 0, len(l.entries))
	removedOne := false
	for _, e := range l.entries {
		if (allOccurrences || !removedOne) && l.cfg.Equal(e.value, value) {
			removedOne = true
			if e.rc.TryFree() {
				freedAny = true
				if l.cfg.Destructor != nil {
					l.cfg.Destructor(e.value)
				}
			}
			continue
		}
		kept = append(kept, e)
	}
	l.entries = kept
	return freedAny
}

// RemoveAt removes the entry at index, running its destructor if this was
// the last reference.
func (l *List[T]) RemoveAt(index int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index < 0 || index >= len(l.entries) {
		return errors.New("container: index out of range")
	}
	e := l.entries[index]
	l.entries = append(l.entries[:index], l.entries[index+1:]...)
	if e.rc.TryFree() && l.cfg.Destructor != nil {
		l.cfg.Destructor(e.value)
	}
	return nil
}

// RemoveAll drops every entry, running destructors for entries whose last
// reference this call releases.
func (l *List[T]) RemoveAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.rc.TryFree() && l.cfg.Destructor != nil {
			l.cfg.Destructor(e.value)
		}
	}
	l.entries = l.entries[:0]
}

// Subtract removes from l every entry equal (per Equal) to any entry in
// other, matching the first (or, if allOccurrences, every) occurrence per
// other-entry.
func (l *List[T]) Subtract(other *List[T], allOccurrences bool) {
	others := other.Elements()
	for _, v := range others {
		l.Remove(v, allOccurrences)
	}
}

// ElementAt returns the element at index.
func (l *List[T]) ElementAt(index int) (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var zero T
	if index < 0 || index >= len(l.entries) {
		return zero, false
	}
	return l.entries[index].value, true
}

// First returns the first element, if any.
func (l *List[T]) First() (T, bool) {
	return l.ElementAt(0)
}

// Last returns the last element, if any.
func (l *List[T]) Last() (T, bool) {
	l.mu.Lock()
	n := len(l.entries)
	l.mu.Unlock()
	return l.ElementAt(n - 1)
}

// PopFirst removes and returns the first element.
func (l *List[T]) PopFirst() (T, bool) {
	v, ok := l.First()
	if !ok {
		return v, false
	}
	_ = l.RemoveAt(0)
	return v, true
}

// PopLast removes and returns the last element.
func (l *List[T]) PopLast() (T, bool) {
	l.mu.Lock()
	n := len(l.entries) - 1
	l.mu.Unlock()
	v, ok := l.ElementAt(n)
	if !ok {
		return v, false
	}
	_ = l.RemoveAt(n)
	return v, true
}

// Count returns the number of entries.
func (l *List[T]) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Contains reports whether any entry equals value per the configured Equal
// function.
func (l *List[T]) Contains(value T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cfg.Equal == nil {
		return false
	}
	for _, e := range l.entries {
		if l.cfg.Equal(e.value, value) {
			return true
		}
	}
	return false
}

// Elements returns a snapshot copy of the element values in order.
func (l *List[T]) Elements() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]T, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.value
	}
	return out
}

// Copy returns a shallow copy that shares entries (and their refcounts)
// with l, rather than duplicating values.
func (l *List[T]) Copy() *List[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := &List[T]{
		cfg:     l.cfg,
		ceiling: l.ceiling,
		entries: make([]*entry[T], len(l.entries)),
	}
	for i, e := range l.entries {
		e.rc.Increment()
		out.entries[i] = e
	}
	return out
}

// Free releases every entry (as RemoveAll does) and, if dtor is non-nil,
// uses it in place of the configured destructor for this call only.
func (l *List[T]) Free(dtor func(T)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.rc.TryFree() {
			if dtor != nil {
				dtor(e.value)
			} else if l.cfg.Destructor != nil {
				l.cfg.Destructor(e.value)
			}
		}
	}
	l.entries = nil
}
