package gc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/emirpasic/gods/queues/arrayqueue"
	"github.com/emirpasic/gods/sets/hashset"
	"github.com/npillmayer/schuko/tracing"

	"github.com/tarvlad/yapvm-sub000/pkg/runtime"
	"github.com/tarvlad/yapvm-sub000/pkg/threads"
)

func tracer() tracing.Trace {
	return tracing.Select("yapvm.gc")
}

// DefaultCacheLimit is the generation size that triggers a collection.
const DefaultCacheLimit = 500

// ErrHeapExhausted is returned by Allocate while the last sweep left more than
// MaxHeap survivors.
var ErrHeapExhausted = errors.New("gc: heap exhausted")

type State int32

const (
	Idle State = iota
	ParkRequested
	AllParked
	Marking
	Sweeping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ParkRequested:
		return "park_requested"
	case AllParked:
		return "all_parked"
	case Marking:
		return "marking"
	case Sweeping:
		return "sweeping"
	default:
		return fmt.Sprintf("state_%d", int(s))
	}
}

type Config struct {
	// CacheLimit is the minimum generation length that triggers a cycle.
	CacheLimit int
	// MaxHeap bounds live objects after a collection. Zero means unbounded.
	MaxHeap int
}

type Stats struct {
	Cycles    int
	Allocated int
	Freed     int
	Survivors int
}

// Collector is a stop-the-world mark-and-sweep collector. Objects land in the
// current generation buffer on allocation; a sweep carries survivors into
// the next buffer and swaps the two.
type Collector struct {
	mu        sync.Mutex
	current   []*runtime.ManagedObject
	next      []*runtime.ManagedObject
	threshold int
	cfg       Config
	stats     Stats
	state     atomic.Int32

	registry *threads.Registry
	trigger  chan struct{}
}

func New(registry *threads.Registry, cfg Config) *Collector {
	if cfg.CacheLimit <= 0 {
		cfg.CacheLimit = DefaultCacheLimit
	}
	return &Collector{
		cfg:       cfg,
		threshold: cfg.CacheLimit,
		registry:  registry,
		trigger:   make(chan struct{}, 1),
	}
}

func (c *Collector) State() State { return State(c.state.Load()) }

// Allocate wraps v in a managed object owned by the collector. Reaching the
// trigger threshold signals the background loop; the caller carries on to
// its next safepoint.
func (c *Collector) Allocate(v runtime.Value) (*runtime.ManagedObject, error) {
	obj := runtime.NewManagedObject(v)
	c.mu.Lock()
	if c.cfg.MaxHeap > 0 && c.stats.Survivors > c.cfg.MaxHeap {
		c.mu.Unlock()
		return nil, ErrHeapExhausted
	}
	c.current = append(c.current, obj)
	c.stats.Allocated++
	full := len(c.current) >= c.threshold
	c.mu.Unlock()
	if full {
		select {
		case c.trigger <- struct{}{}:
		default:
		}
	}
	return obj, nil
}

// Triggered exposes the signal channel.
func (c *Collector) Triggered() <-chan struct{} { return c.trigger }

// Run collects whenever the allocation threshold is hit, until ctx ends.
func (c *Collector) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.trigger:
			c.Collect()
		}
	}
}

// Collect runs one full cycle against every registered worker.
func (c *Collector) Collect() {
	c.state.Store(int32(ParkRequested))
	c.registry.StopTheWorld(func(roots []*runtime.Scope) {
		c.state.Store(int32(AllParked))
		c.Mark(roots)
		c.Sweep()
	})
	c.state.Store(int32(Idle))
}

// Mark walks every scope reachable from roots and marks every object
// reachable from those scopes. A scope brings in its objects, its child
// scopes, its parent, and the closures of its functions.
func (c *Collector) Mark(roots []*runtime.Scope) {
	c.state.Store(int32(Marking))
	objects := arrayqueue.New()
	scopes := arrayqueue.New()
	visited := hashset.New()

	pushScope := func(s *runtime.Scope) {
		if s == nil || visited.Contains(s) {
			return
		}
		visited.Add(s)
		scopes.Enqueue(s)
	}
	for _, root := range roots {
		pushScope(root)
	}

	for !scopes.Empty() || !objects.Empty() {
		if v, ok := scopes.Dequeue(); ok {
			s := v.(*runtime.Scope)
			for _, obj := range s.Objects() {
				objects.Enqueue(obj)
			}
			for _, child := range s.Children() {
				pushScope(child)
			}
			for _, fn := range s.Functions() {
				pushScope(fn.Closure)
			}
			pushScope(s.Parent())
			continue
		}
		v, _ := objects.Dequeue()
		obj := v.(*runtime.ManagedObject)
		if obj == nil || obj.Marked() {
			continue
		}
		obj.Mark()
		value := obj.Value()
		for _, ref := range value.References() {
			if ref != nil && !ref.Marked() {
				objects.Enqueue(ref)
			}
		}
		if holder, ok := value.(runtime.ScopeHolder); ok {
			pushScope(holder.CapturedScope())
		}
	}
	tracer().P("scopes", visited.Size()).Debugf("mark finished")
}

// Sweep releases unmarked objects in the current generation and carries the
// marked ones over, unmarked, to the next.
func (c *Collector) Sweep() {
	c.state.Store(int32(Sweeping))
	c.mu.Lock()
	defer c.mu.Unlock()
	freed := 0
	for i, obj := range c.current {
		if obj.Marked() {
			obj.Unmark()
			c.next = append(c.next, obj)
		} else {
			obj.Release()
			freed++
		}
		c.current[i] = nil
	}
	c.current, c.next = c.next, c.current[:0]
	c.stats.Cycles++
	c.stats.Freed += freed
	c.stats.Survivors = len(c.current)
	c.threshold = max(c.cfg.CacheLimit, 2*len(c.current))
	tracer().P("cycle", c.stats.Cycles).Debugf("sweep freed %d, %d survive", freed, len(c.current))
}

// Fill appends objects straight into the current generation.
func (c *Collector) Fill(objs ...*runtime.ManagedObject) {
	c.mu.Lock()
	c.current = append(c.current, objs...)
	c.mu.Unlock()
}

// Current returns a copy of the current generation.
func (c *Collector) Current() []*runtime.ManagedObject {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*runtime.ManagedObject, len(c.current))
	copy(out, c.current)
	return out
}

func (c *Collector) CurrentLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.current)
}

func (c *Collector) NextLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.next)
}

func (c *Collector) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
