package kvstore

import (
	"fmt"
	"hash/maphash"

	"fortio.org/safecast"
)

// capacities is the ladder of backing-array sizes. Resizing always moves a
// single step along it.
var capacities = [...]int{
	53, 97, 193, 389, 769, 1543, 3079, 6151, 12289, 24593, 49157, 98317,
	196613, 393241, 786433, 1572869, 3145739, 6291469, 12582917, 25165843,
	50331653, 100663319, 201326611, 402653189, 805306457, 1610612741,
}

const (
	DefaultGrowPercent      = 70
	DefaultShrinkPercent    = 30
	DefaultTombstonePercent = 10
)

// MinCapacity and MaxCapacity bound the backing array.
var (
	MinCapacity = capacities[0]
	MaxCapacity = capacities[len(capacities)-1]
)

// Element is a single slot. A slot that never held a key terminates probing;
// a deleted slot (tombstone) keeps its probe position.
type Element[K comparable, V any] struct {
	Key     K
	Value   V
	exists  bool
	deleted bool
}

func (e *Element[K, V]) Live() bool      { return e.exists && !e.deleted }
func (e *Element[K, V]) Tombstone() bool { return e.exists && e.deleted }

// Options configures a store. Zero fields fall back to the defaults.
type Options[K comparable] struct {
	GrowPercent      int
	ShrinkPercent    int
	TombstonePercent int
	Hash             func(K) uint64
	Equal            func(a, b K) bool
}

// Store is an open-addressing hash table with linear probing. It is not safe
// for concurrent use.
type Store[K comparable, V any] struct {
	opts       Options[K]
	slots      []Element[K, V]
	capIdx     int
	live       int
	tombstones int
	quiet      bool
}

// InvariantError describes a broken internal invariant. It is only ever
// raised through panic.
type InvariantError struct {
	Op     string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("kvstore: %s: %s", e.Op, e.Detail)
}

// New builds a store with default thresholds and a seeded maphash hash.
func New[K comparable, V any]() *Store[K, V] {
	return NewWithOptions[K, V](Options[K]{})
}

func NewWithOptions[K comparable, V any](opts Options[K]) *Store[K, V] {
	if opts.GrowPercent == 0 {
		opts.GrowPercent = DefaultGrowPercent
	}
	if opts.ShrinkPercent == 0 {
		opts.ShrinkPercent = DefaultShrinkPercent
	}
	if opts.TombstonePercent == 0 {
		opts.TombstonePercent = DefaultTombstonePercent
	}
	if err := CheckThresholds(opts.GrowPercent, opts.ShrinkPercent); err != nil {
		panic(&InvariantError{Op: "new", Detail: err.Error()})
	}
	if opts.Hash == nil {
		seed := maphash.MakeSeed()
		opts.Hash = func(k K) uint64 { return maphash.Comparable(seed, k) }
	}
	if opts.Equal == nil {
		opts.Equal = func(a, b K) bool { return a == b }
	}
	return &Store[K, V]{
		opts:  opts,
		slots: make([]Element[K, V], capacities[0]),
	}
}

// CheckThresholds rejects a grow/shrink band narrower than a step of the
// capacity ladder. A load that moves the table one step must land inside the
// band at the new capacity, otherwise resizing oscillates.
func CheckThresholds(grow, shrink int) error {
	if shrink >= grow {
		return fmt.Errorf("shrink threshold %d%% must be below grow threshold %d%%", shrink, grow)
	}
	for k := 0; k+1 < len(capacities); k++ {
		if grow*capacities[k] < shrink*capacities[k+1] {
			return fmt.Errorf("grow threshold %d%% must be more than twice the shrink threshold %d%% (capacity step %d -> %d)", grow, shrink, capacities[k], capacities[k+1])
		}
	}
	return nil
}

func (s *Store[K, V]) check(op string) {
	if s == nil {
		panic(&InvariantError{Op: op, Detail: "nil store"})
	}
	if len(s.slots) == 0 {
		panic(&InvariantError{Op: op, Detail: "store has no backing array"})
	}
}

func (s *Store[K, V]) start(key K) int {
	return safecast.MustConv[int](s.opts.Hash(key) % uint64(len(s.slots)))
}

// Find returns the live slot holding key. The returned pointer stays valid
// until the next resize.
func (s *Store[K, V]) Find(key K) (*Element[K, V], bool) {
	s.check("find")
	capacity := len(s.slots)
	pos := s.start(key)
	for ctr := 0; ctr <= capacity; ctr++ {
		el := &s.slots[pos]
		if !el.exists {
			return nil, false
		}
		if !el.deleted && s.opts.Equal(el.Key, key) {
			return el, true
		}
		pos = (pos + 1) % capacity
	}
	return nil, false
}

func (s *Store[K, V]) Get(key K) (V, bool) {
	el, ok := s.Find(key)
	if !ok {
		var zero V
		return zero, false
	}
	return el.Value, true
}

func (s *Store[K, V]) Contains(key K) bool {
	_, ok := s.Find(key)
	return ok
}

// Add inserts key into the first free or tombstoned slot on its probe path.
// It reports false when the key is already live or no slot could be found.
func (s *Store[K, V]) Add(key K, value V) bool {
	s.check("add")
	capacity := len(s.slots)
	pos := s.start(key)
	reuse := -1
	target := -1
	for ctr := 0; ctr <= capacity; ctr++ {
		el := &s.slots[pos]
		if !el.exists {
			target = pos
			break
		}
		if el.deleted {
			if reuse < 0 {
				reuse = pos
			}
		} else if s.opts.Equal(el.Key, key) {
			return false
		}
		pos = (pos + 1) % capacity
	}
	if reuse >= 0 {
		target = reuse
	}
	if target < 0 {
		return false
	}
	el := &s.slots[target]
	if el.deleted {
		s.tombstones--
	}
	*el = Element[K, V]{Key: key, Value: value, exists: true}
	s.live++
	s.adjust()
	return true
}

// Set stores value under key, replacing a live entry in place.
func (s *Store[K, V]) Set(key K, value V) bool {
	if el, ok := s.Find(key); ok {
		el.Value = value
		return true
	}
	return s.Add(key, value)
}

// Delete tombstones key and returns a copy of what was removed.
func (s *Store[K, V]) Delete(key K) (Element[K, V], bool) {
	s.check("delete")
	el, ok := s.Find(key)
	if !ok {
		return Element[K, V]{}, false
	}
	removed := *el
	removed.deleted = true
	el.deleted = true
	var zero V
	el.Value = zero
	s.live--
	s.tombstones++
	s.adjust()
	return removed, true
}

// Entries returns pointers to every live slot in slot order.
func (s *Store[K, V]) Entries() []*Element[K, V] {
	s.check("entries")
	out := make([]*Element[K, V], 0, s.live)
	for i := range s.slots {
		if s.slots[i].Live() {
			out = append(out, &s.slots[i])
		}
	}
	return out
}

func (s *Store[K, V]) Keys() []K {
	entries := s.Entries()
	out := make([]K, len(entries))
	for i, el := range entries {
		out[i] = el.Key
	}
	return out
}

func (s *Store[K, V]) Values() []V {
	entries := s.Entries()
	out := make([]V, len(entries))
	for i, el := range entries {
		out[i] = el.Value
	}
	return out
}

func (s *Store[K, V]) Len() int        { s.check("len"); return s.live }
func (s *Store[K, V]) Cap() int        { s.check("cap"); return len(s.slots) }
func (s *Store[K, V]) Tombstones() int { s.check("tombstones"); return s.tombstones }

// adjust moves the capacity one step when the load factor leaves its band,
// then purges tombstones if they exceed their share.
func (s *Store[K, V]) adjust() {
	if s.quiet {
		return
	}
	capacity := len(s.slots)
	switch {
	case s.live*100 > capacity*s.opts.GrowPercent && s.capIdx < len(capacities)-1:
		s.rehash(s.capIdx + 1)
	case s.live*100 < capacity*s.opts.ShrinkPercent && s.capIdx > 0:
		s.rehash(s.capIdx - 1)
	}
	if s.tombstones*100 > len(s.slots)*s.opts.TombstonePercent {
		s.rehash(s.capIdx)
	}
}

func (s *Store[K, V]) rehash(idx int) {
	old := s.slots
	s.slots = make([]Element[K, V], capacities[idx])
	s.capIdx = idx
	s.live = 0
	s.tombstones = 0
	s.quiet = true
	defer func() { s.quiet = false }()
	for i := range old {
		if !old[i].Live() {
			continue
		}
		if !s.Add(old[i].Key, old[i].Value) {
			panic(&InvariantError{Op: "rehash", Detail: fmt.Sprintf("no slot for live key at capacity %d", len(s.slots))})
		}
	}
}
