package gc

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"

	"github.com/tarvlad/yapvm-sub000/pkg/runtime"
	"github.com/tarvlad/yapvm-sub000/pkg/threads"
)

func alloc(t *testing.T, c *Collector, v runtime.Value) *runtime.ManagedObject {
	t.Helper()
	obj, err := c.Allocate(v)
	if err != nil {
		t.Fatalf("allocate failed: %v", err)
	}
	return obj
}

func intValue(v int64) runtime.Value { return runtime.IntValue{Val: v} }

func TestMarkAliasedAndOrphanedLists(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "yapvm.gc")
	defer teardown()

	c := New(threads.NewRegistry(), Config{})
	root := runtime.NewScope(nil)

	a, b := alloc(t, c, intValue(1)), alloc(t, c, intValue(2))
	list1 := alloc(t, c, runtime.NewListValue([]*runtime.ManagedObject{a, b}))
	x, y := alloc(t, c, intValue(3)), alloc(t, c, intValue(4))
	orphan := alloc(t, c, runtime.NewListValue([]*runtime.ManagedObject{x, y}))

	root.Add("list1", runtime.ObjectEntry(list1))
	root.Add("list2", runtime.ObjectEntry(orphan))
	// list2 = list1
	root.Change("list2", runtime.ObjectEntry(list1))

	c.Mark([]*runtime.Scope{root})
	for _, obj := range []*runtime.ManagedObject{list1, a, b} {
		if !obj.Marked() {
			t.Fatalf("expected reachable object to be marked")
		}
	}
	for _, obj := range []*runtime.ManagedObject{orphan, x, y} {
		if obj.Marked() {
			t.Fatalf("expected orphaned object to stay unmarked")
		}
	}

	c.Sweep()
	if c.CurrentLen() != 3 {
		t.Fatalf("expected 3 survivors, got %d", c.CurrentLen())
	}
	if !orphan.Freed() || !x.Freed() || !y.Freed() {
		t.Fatalf("expected orphan and its elements to be released")
	}
	if list1.Marked() {
		t.Fatalf("survivors must be unmarked after sweep")
	}
}

func TestMarkTerminatesOnCycles(t *testing.T) {
	c := New(threads.NewRegistry(), Config{})
	root := runtime.NewScope(nil)

	class := alloc(t, c, runtime.NewClassValue("Node", root))
	inst := runtime.NewObjectValue(class)
	objA := alloc(t, c, inst)
	listB := runtime.NewListValue(nil)
	objB := alloc(t, c, listB)
	inst.SetField("next", objB)
	listB.Append(objA)
	root.Add("a", runtime.ObjectEntry(objA))

	done := make(chan struct{})
	go func() {
		c.Mark([]*runtime.Scope{root})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("mark did not terminate on a cycle")
	}
	if !objA.Marked() || !objB.Marked() {
		t.Fatalf("expected both cycle members marked")
	}
	c.Sweep()
	if objA.Freed() || objB.Freed() || class.Freed() {
		t.Fatalf("rooted cycle must survive sweep")
	}

	root.Del("a")
	c.Mark([]*runtime.Scope{root})
	c.Sweep()
	if !objA.Freed() || !objB.Freed() {
		t.Fatalf("unrooted cycle must be released")
	}
}

func TestSweepCarriesSurvivorsAcrossCycles(t *testing.T) {
	c := New(threads.NewRegistry(), Config{})
	root := runtime.NewScope(nil)
	objs := make([]*runtime.ManagedObject, 10)
	for i := range objs {
		objs[i] = runtime.NewManagedObject(intValue(int64(i)))
	}
	c.Fill(objs...)
	for i := 0; i < 4; i++ {
		root.Add(string(rune('a'+i)), runtime.ObjectEntry(objs[i]))
	}
	if c.CurrentLen() != 10 {
		t.Fatalf("expected filled buffer of 10, got %d", c.CurrentLen())
	}

	for cycle := 0; cycle < 2; cycle++ {
		c.Mark([]*runtime.Scope{root})
		c.Sweep()
		if c.CurrentLen() != 4 {
			t.Fatalf("cycle %d: expected 4 survivors, got %d", cycle, c.CurrentLen())
		}
		if c.NextLen() != 0 {
			t.Fatalf("cycle %d: next buffer must be cleared", cycle)
		}
	}
	if stats := c.Stats(); stats.Freed != 6 || stats.Cycles != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestMarkFollowsClosuresAndParents(t *testing.T) {
	c := New(threads.NewRegistry(), Config{})
	global := runtime.NewScope(nil)
	inner := runtime.NewScope(global)
	captured := alloc(t, c, intValue(7))
	inner.Add("captured", runtime.ObjectEntry(captured))
	fn := alloc(t, c, &runtime.FunctionValue{Closure: inner})
	parentOnly := alloc(t, c, intValue(8))
	global.Add("p", runtime.ObjectEntry(parentOnly))

	worker := runtime.NewScope(global)
	worker.Add("f", runtime.ObjectEntry(fn))

	c.Mark([]*runtime.Scope{worker})
	if !captured.Marked() {
		t.Fatalf("object held by a captured scope must be marked")
	}
	if !parentOnly.Marked() {
		t.Fatalf("object visible through the parent chain must be marked")
	}
}

func TestAllocateSignalsAtCacheLimit(t *testing.T) {
	c := New(threads.NewRegistry(), Config{CacheLimit: 5})
	for i := 0; i < 4; i++ {
		alloc(t, c, intValue(int64(i)))
	}
	select {
	case <-c.Triggered():
		t.Fatalf("triggered below the cache limit")
	default:
	}
	alloc(t, c, intValue(4))
	select {
	case <-c.Triggered():
	default:
		t.Fatalf("expected trigger at the cache limit")
	}
}

func TestMaxHeapRefusesAllocation(t *testing.T) {
	c := New(threads.NewRegistry(), Config{CacheLimit: 5, MaxHeap: 2})
	root := runtime.NewScope(nil)
	for i := 0; i < 3; i++ {
		root.Add(string(rune('a'+i)), runtime.ObjectEntry(alloc(t, c, intValue(int64(i)))))
	}
	c.Mark([]*runtime.Scope{root})
	c.Sweep()
	if _, err := c.Allocate(intValue(9)); err != ErrHeapExhausted {
		t.Fatalf("expected heap exhaustion, got %v", err)
	}
}

func TestCollectStopsRunningWorkers(t *testing.T) {
	reg := threads.NewRegistry()
	c := New(reg, Config{CacheLimit: 1})
	var stop atomic.Bool
	var allocErr atomic.Value

	root := runtime.NewScope(nil)
	keep := alloc(t, c, intValue(42))
	root.Add("keep", runtime.ObjectEntry(keep))

	reg.Spawn(root, nil, func(w *threads.Worker) error {
		for !stop.Load() {
			w.Safepoint().Handle()
			if _, err := c.Allocate(intValue(1)); err != nil {
				allocErr.Store(err)
				return err
			}
		}
		return nil
	})

	for i := 0; i < 10; i++ {
		c.Collect()
		if c.State() != Idle {
			t.Fatalf("expected idle after collect, got %s", c.State())
		}
	}
	stop.Store(true)
	reg.Wait()
	if err := reg.FinishWaiting(nil); err != nil {
		t.Fatalf("worker failed: %v", err)
	}
	if keep.Freed() {
		t.Fatalf("rooted object collected")
	}
	if c.Stats().Cycles != 10 {
		t.Fatalf("expected 10 cycles, got %d", c.Stats().Cycles)
	}
	if v := allocErr.Load(); v != nil {
		t.Fatalf("allocation failed: %v", v)
	}
}
