package runtime

import (
	"errors"
	"testing"
)

func intObj(v int64) *ManagedObject {
	return NewManagedObject(IntValue{Val: v})
}

func lookupInt(t *testing.T, s *Scope, name string) int64 {
	t.Helper()
	entry, err := s.NameLookup(name)
	if err != nil {
		t.Fatalf("lookup %s failed: %v", name, err)
	}
	obj, ok := entry.Object()
	if !ok {
		t.Fatalf("expected object entry for %s, got %s", name, entry.Kind())
	}
	iv, ok := obj.Value().(IntValue)
	if !ok {
		t.Fatalf("expected int for %s, got %#v", name, obj.Value())
	}
	return iv.Val
}

func TestScopeShadowing(t *testing.T) {
	root := NewScope(nil)
	child := NewScope(root)
	root.Add("x", ObjectEntry(intObj(1)))
	child.Add("x", ObjectEntry(intObj(2)))

	if got := lookupInt(t, child, "x"); got != 2 {
		t.Fatalf("expected child binding 2, got %d", got)
	}
	if !child.Del("x") {
		t.Fatalf("expected local delete to succeed")
	}
	if got := lookupInt(t, child, "x"); got != 1 {
		t.Fatalf("expected parent binding 1 after delete, got %d", got)
	}
	if child.Del("x") {
		t.Fatalf("delete must not reach the parent")
	}
}

func TestScopeAddRefusesDuplicate(t *testing.T) {
	s := NewScope(nil)
	if !s.Add("a", ObjectEntry(intObj(1))) {
		t.Fatalf("expected first add to succeed")
	}
	if s.Add("a", ObjectEntry(intObj(2))) {
		t.Fatalf("expected duplicate add to fail")
	}
	s.Change("a", ObjectEntry(intObj(3)))
	if got := lookupInt(t, s, "a"); got != 3 {
		t.Fatalf("expected change to rebind, got %d", got)
	}
}

func TestScopeLookupMissAtRoot(t *testing.T) {
	root := NewScope(nil)
	sibling := NewScope(root)
	sibling.Add("hidden", ObjectEntry(intObj(1)))
	child := NewScope(root)

	_, err := child.NameLookup("hidden")
	var lookupErr *LookupError
	if !errors.As(err, &lookupErr) || lookupErr.Name != "hidden" {
		t.Fatalf("expected lookup error for sibling binding, got %v", err)
	}
}

func TestScopeObjectsAndChildren(t *testing.T) {
	root := NewScope(nil)
	call := NewScope(root)
	thread := NewScope(root)
	root.Add("a", ObjectEntry(intObj(1)))
	root.Add("f", FunctionEntry(&FunctionValue{Closure: root}))
	root.Add("__yapvm_inner_call_scope_1", ScopeEntryFor(call))
	root.Add("__yapvm_thread_scope_1", ThreadScopeEntry(thread))
	root.Pin(intObj(9))

	if got := len(root.Objects()); got != 2 {
		t.Fatalf("expected bound object plus pin, got %d", got)
	}
	if got := len(root.Children()); got != 2 {
		t.Fatalf("expected call and thread scopes, got %d", got)
	}
	if got := len(root.Functions()); got != 1 {
		t.Fatalf("expected one function entry, got %d", got)
	}
}

func TestScopeNewChild(t *testing.T) {
	root := NewScope(nil)
	root.Add("x", ObjectEntry(intObj(5)))
	child, ok := root.NewChild("__yapvm_class_body_1")
	if !ok {
		t.Fatalf("expected child scope to be recorded")
	}
	if child.Parent() != root {
		t.Fatalf("expected child to hang off root")
	}
	if got := lookupInt(t, child, "x"); got != 5 {
		t.Fatalf("expected child to see parent binding, got %d", got)
	}
	if _, ok := root.NewChild("__yapvm_class_body_1"); ok {
		t.Fatalf("expected duplicate child name to be refused")
	}
	if got := len(root.Children()); got != 1 {
		t.Fatalf("expected one child scope, got %d", got)
	}
}

func TestScopePins(t *testing.T) {
	s := NewScope(nil)
	depth := s.PinDepth()
	s.Pin(intObj(1))
	s.Pin(intObj(2))
	if s.PinDepth() != depth+2 {
		t.Fatalf("expected two pins")
	}
	s.Unpin(depth)
	if len(s.Objects()) != 0 {
		t.Fatalf("expected pins released")
	}
}

func TestEntryAccessorsCheckKind(t *testing.T) {
	entry := ObjectEntry(intObj(1))
	if _, ok := entry.Scope(); ok {
		t.Fatalf("object entry must not read as scope")
	}
	if _, ok := entry.Function(); ok {
		t.Fatalf("object entry must not read as function")
	}
	label := LabelEntry(nil)
	if label.Kind() != EntryLabel {
		t.Fatalf("unexpected kind %s", label.Kind())
	}
}
