package container

import (
	"sync"

	"github.com/wavelet-io/wavelet-go/internal/refcount"
)

// MatchReason describes why Add did or did not insert an element, per
// spec §4.2's {OK, VALUE_EXISTS, EXACT_MATCH_EXISTS} result.
type MatchReason int

const (
	// MatchNone means no entry with this key exists yet: Add will insert.
	MatchNone MatchReason = iota
	// MatchValueExists means the key already exists with a different value.
	MatchValueExists
	// MatchExact means the key exists with an identical value (per the
	// set's Equal function).
	MatchExact
)

type setEntry[V any] struct {
	value V
	rc    *refcount.Counter
}

// SetConfig configures a Set's key derivation, equality, and destructor.
type SetConfig[K comparable, V any] struct {
	// Key derives the unique key for an element. Required.
	Key func(V) K
	// Equal reports whether two elements with the same key are the exact
	// same logical entry (MatchExact) as opposed to merely colliding on
	// key (MatchValueExists). Defaults to "always exact" if nil.
	Equal func(a, b V) bool
	// Destructor runs once per entry when its last reference drops.
	Destructor func(V)
}

// Set is a thread-safe unordered unique-element container keyed by
// SetConfig.Key, with refcounted entries so Union can share elements
// across two sets without double-running destructors.
type Set[K comparable, V any] struct {
	mu      sync.Mutex
	cfg     SetConfig[K, V]
	entries map[K]*setEntry[V]
}

// NewSet builds a Set from cfg.
func NewSet[K comparable, V any](cfg SetConfig[K, V]) *Set[K, V] {
	return &Set[K, V]{
		cfg:     cfg,
		entries: make(map[K]*setEntry[V]),
	}
}

// Add inserts value, keyed by cfg.Key(value). Returns the match reason that
// held true for this key *before* the insert: MatchNone is success;
// MatchValueExists/MatchExact mean the key already existed and Add left the
// set unchanged.
func (s *Set[K, V]) Add(value V) MatchReason {
	key := s.cfg.Key(value)
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[key]; ok {
		if s.cfg.Equal == nil || s.cfg.Equal(existing.value, value) {
			return MatchExact
		}
		return MatchValueExists
	}
	s.entries[key] = &setEntry[V]{value: value, rc: refcount.New()}
	return MatchNone
}

// Remove drops the element keyed by key, running its destructor if this
// call observes the last reference. Reports whether an entry was present.
func (s *Set[K, V]) Remove(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return false
	}
	delete(s.entries, key)
	if e.rc.TryFree() && s.cfg.Destructor != nil {
		s.cfg.Destructor(e.value)
	}
	return true
}

// Union adds every element of other into s, sharing entries via refcount.
// If outDuplicates is non-nil, keys that already existed in s are appended
// to it.
func (s *Set[K, V]) Union(other *Set[K, V], outDuplicates *[]K) {
	other.mu.Lock()
	shared := make(map[K]*setEntry[V], len(other.entries))
	for k, e := range other.entries {
		e.rc.Increment()
		shared[k] = e
	}
	other.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range shared {
		if _, exists := s.entries[k]; exists {
			e.rc.Decrement()
			if outDuplicates != nil {
				*outDuplicates = append(*outDuplicates, k)
			}
			continue
		}
		s.entries[k] = e
	}
}

// Subtract removes from s every key present in other.
func (s *Set[K, V]) Subtract(other *Set[K, V]) {
	for _, k := range other.Keys() {
		s.Remove(k)
	}
}

// Element returns the value stored at key.
func (s *Set[K, V]) Element(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Contains reports whether key is present.
func (s *Set[K, V]) Contains(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok
}

// Match reports the precise reason a key would or wouldn't collide with an
// Add of value, without mutating the set.
func (s *Set[K, V]) Match(value V) MatchReason {
	key := s.cfg.Key(value)
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.entries[key]
	if !ok {
		return MatchNone
	}
	if s.cfg.Equal == nil || s.cfg.Equal(existing.value, value) {
		return MatchExact
	}
	return MatchValueExists
}

// Elements returns a snapshot of every stored value, unordered.
func (s *Set[K, V]) Elements() []V {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]V, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.value)
	}
	return out
}

// Keys returns a snapshot of every stored key, unordered.
func (s *Set[K, V]) Keys() []K {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]K, 0, len(s.entries))
	for k := range s.entries {
		out = append(out, k)
	}
	return out
}

// Count returns the number of stored entries.
func (s *Set[K, V]) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// RemoveAll clears the set, running destructors for every entry whose last
// reference this call releases.
func (s *Set[K, V]) RemoveAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.rc.TryFree() && s.cfg.Destructor != nil {
			s.cfg.Destructor(e.value)
		}
	}
	s.entries = make(map[K]*setEntry[V])
}

// Free releases every entry, using dtor in place of the configured
// destructor for this call if dtor is non-nil.
func (s *Set[K, V]) Free(dtor func(V)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.rc.TryFree() {
			if dtor != nil {
				dtor(e.value)
			} else if s.cfg.Destructor != nil {
				s.cfg.Destructor(e.value)
			}
		}
	}
	s.entries = nil
}
