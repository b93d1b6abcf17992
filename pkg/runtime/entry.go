package runtime

import (
	"fmt"

	"github.com/tarvlad/yapvm-sub000/pkg/ast"
)

type EntryKind int

const (
	EntryObject EntryKind = iota
	EntryFunction
	EntryScope
	EntryLabel
	EntryThreadScope
)

func (k EntryKind) String() string {
	switch k {
	case EntryObject:
		return "object"
	case EntryFunction:
		return "function"
	case EntryScope:
		return "scope"
	case EntryLabel:
		return "label"
	case EntryThreadScope:
		return "thread_scope"
	default:
		return fmt.Sprintf("unknown_entry_%d", int(k))
	}
}

// ScopeEntry is a tagged reference stored in a scope. The scope never owns
// the payload: objects belong to the collector, functions to the program,
// and sub-scopes to whoever tears them down.
type ScopeEntry struct {
	kind EntryKind
	ref  any
}

func ObjectEntry(obj *ManagedObject) ScopeEntry  { return ScopeEntry{kind: EntryObject, ref: obj} }
func FunctionEntry(fn *FunctionValue) ScopeEntry { return ScopeEntry{kind: EntryFunction, ref: fn} }
func ScopeEntryFor(s *Scope) ScopeEntry          { return ScopeEntry{kind: EntryScope, ref: s} }
func ThreadScopeEntry(s *Scope) ScopeEntry       { return ScopeEntry{kind: EntryThreadScope, ref: s} }
func LabelEntry(loop ast.Statement) ScopeEntry   { return ScopeEntry{kind: EntryLabel, ref: loop} }

func (e ScopeEntry) Kind() EntryKind { return e.kind }

func (e ScopeEntry) Object() (*ManagedObject, bool) {
	if e.kind != EntryObject {
		return nil, false
	}
	obj, ok := e.ref.(*ManagedObject)
	return obj, ok
}

func (e ScopeEntry) Function() (*FunctionValue, bool) {
	if e.kind != EntryFunction {
		return nil, false
	}
	fn, ok := e.ref.(*FunctionValue)
	return fn, ok
}

// Scope returns the sub-scope of a Scope or ThreadScope entry.
func (e ScopeEntry) Scope() (*Scope, bool) {
	if e.kind != EntryScope && e.kind != EntryThreadScope {
		return nil, false
	}
	s, ok := e.ref.(*Scope)
	return s, ok
}

func (e ScopeEntry) Label() (ast.Statement, bool) {
	if e.kind != EntryLabel {
		return nil, false
	}
	stmt, ok := e.ref.(ast.Statement)
	return stmt, ok
}
