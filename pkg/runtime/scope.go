package runtime

import (
	"fmt"
	"sync"

	"github.com/tarvlad/yapvm-sub000/pkg/kvstore"
)

// Scope is one node of the lexical environment tree. Reads resolve upward
// through parents; writes and deletes only touch the local store.
type Scope struct {
	mu     sync.RWMutex
	parent *Scope
	opts   kvstore.Options[string]
	local  *kvstore.Store[string, ScopeEntry]
	pins   []*ManagedObject
}

// LookupError reports an identifier that no scope up to the root binds.
type LookupError struct {
	Name string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("name '%s' is not defined", e.Name)
}

// NewScope creates a scope under parent, inheriting its store options.
func NewScope(parent *Scope) *Scope {
	opts := kvstore.StringOptions()
	if parent != nil {
		opts = parent.opts
	}
	return NewScopeWithOptions(parent, opts)
}

func NewScopeWithOptions(parent *Scope, opts kvstore.Options[string]) *Scope {
	if opts.Hash == nil {
		opts.Hash = kvstore.StringHash
	}
	return &Scope{
		parent: parent,
		opts:   opts,
		local:  kvstore.NewWithOptions[string, ScopeEntry](opts),
	}
}

// Parent exposes the lexical parent (nil at the root).
func (s *Scope) Parent() *Scope {
	return s.parent
}

// NewChild creates a scope under s and records it here as name. It fails when
// name is already bound locally.
func (s *Scope) NewChild(name string) (*Scope, bool) {
	child := NewScope(s)
	if !s.Add(name, ScopeEntryFor(child)) {
		return nil, false
	}
	return child, true
}

// Add binds name locally. It fails when name is already bound here.
func (s *Scope) Add(name string, entry ScopeEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local.Add(name, entry)
}

// Change rebinds name locally, creating it when missing.
func (s *Scope) Change(name string, entry ScopeEntry) {
	s.mu.Lock()
	s.local.Set(name, entry)
	s.mu.Unlock()
}

func (s *Scope) Del(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.local.Delete(name)
	return ok
}

func (s *Scope) LocalEntry(name string) (ScopeEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.local.Get(name)
}

// NameLookup resolves name in this scope or the nearest ancestor binding it.
// Siblings and children are never consulted.
func (s *Scope) NameLookup(name string) (ScopeEntry, error) {
	for scope := s; scope != nil; scope = scope.parent {
		if entry, ok := scope.LocalEntry(name); ok {
			return entry, nil
		}
	}
	return ScopeEntry{}, &LookupError{Name: name}
}

// Objects returns the object entries bound here plus pinned temporaries.
func (s *Scope) Objects() []*ManagedObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ManagedObject, 0, s.local.Len()+len(s.pins))
	for _, entry := range s.local.Values() {
		if obj, ok := entry.Object(); ok {
			out = append(out, obj)
		}
	}
	return append(out, s.pins...)
}

// Children returns the sub-scopes (call frames and thread scopes) bound here.
func (s *Scope) Children() []*Scope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Scope
	for _, entry := range s.local.Values() {
		if child, ok := entry.Scope(); ok {
			out = append(out, child)
		}
	}
	return out
}

// Functions returns the function entries bound here.
func (s *Scope) Functions() []*FunctionValue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*FunctionValue
	for _, entry := range s.local.Values() {
		if fn, ok := entry.Function(); ok {
			out = append(out, fn)
		}
	}
	return out
}

func (s *Scope) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.local.Keys()
}

func (s *Scope) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.local.Len()
}

// Pin keeps obj reachable from this scope until the pin stack is cut back
// below it. Intermediate expression results live here.
func (s *Scope) Pin(obj *ManagedObject) *ManagedObject {
	s.mu.Lock()
	s.pins = append(s.pins, obj)
	s.mu.Unlock()
	return obj
}

func (s *Scope) PinDepth() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pins)
}

// Unpin truncates the pin stack to depth.
func (s *Scope) Unpin(depth int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if depth < 0 || depth >= len(s.pins) {
		return
	}
	clear(s.pins[depth:])
	s.pins = s.pins[:depth]
}
