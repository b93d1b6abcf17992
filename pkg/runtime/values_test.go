package runtime

import (
	"fmt"
	"sync"
	"testing"
)

func TestReleasedObjectPanics(t *testing.T) {
	obj := NewManagedObject(StringValue{Val: "x"})
	obj.Release()
	defer func() {
		if _, ok := recover().(*FatalError); !ok {
			t.Fatalf("expected fatal error on use after release")
		}
	}()
	_ = obj.Value()
}

func TestListReferences(t *testing.T) {
	a, b := intObj(1), intObj(2)
	list := NewListValue([]*ManagedObject{a})
	list.Append(b)
	refs := list.References()
	if len(refs) != 2 || refs[0] != a || refs[1] != b {
		t.Fatalf("unexpected references %#v", refs)
	}
	if !list.IsCollection() {
		t.Fatalf("list must report as collection")
	}
	last, ok := list.Pop()
	if !ok || last != b || list.Len() != 1 {
		t.Fatalf("pop returned %#v", last)
	}
}

func TestDictKeysCollapseNumericEquality(t *testing.T) {
	d := NewDictValue()
	one := intObj(1)
	if err := d.Set(one, NewManagedObject(StringValue{Val: "int"})); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	got, err := d.Get(NewManagedObject(FloatValue{Val: 1.0}))
	if err != nil || got == nil {
		t.Fatalf("expected 1.0 to find key 1, got %v (%v)", got, err)
	}
	if _, err := d.Get(NewManagedObject(NewListValue(nil))); err == nil {
		t.Fatalf("expected unhashable error")
	}
	if refs := d.References(); len(refs) != 2 {
		t.Fatalf("expected key and value references, got %d", len(refs))
	}
}

func TestObjectReferencesIncludeClass(t *testing.T) {
	class := NewManagedObject(NewClassValue("Point", NewScope(nil)))
	inst := NewObjectValue(class)
	inst.SetField("x", intObj(1))
	inst.SetField("y", intObj(2))
	if inst.TypeName() != "Point" {
		t.Fatalf("unexpected type name %s", inst.TypeName())
	}
	refs := inst.References()
	if len(refs) != 3 || refs[0] != class {
		t.Fatalf("expected class plus two fields, got %#v", refs)
	}
}

func TestClassAttrsSurviveConcurrentRebinding(t *testing.T) {
	class := NewClassValue("Counter", NewScope(nil))
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			// enough distinct names to force several rehashes
			for i := 0; i < 200; i++ {
				class.SetAttr(fmt.Sprintf("a%d_%d", w, i), intObj(int64(i)))
				class.Attr("a0_0")
				class.References()
			}
		}(w)
	}
	wg.Wait()
	if got := len(class.References()); got != 800 {
		t.Fatalf("expected 800 attributes, got %d", got)
	}
	if v, ok := class.Attr("a3_199"); !ok || v.Value().(IntValue).Val != 199 {
		t.Fatalf("lost attribute a3_199")
	}
}
