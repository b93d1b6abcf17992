package threads

import (
	goruntime "runtime"
	"sync"
	"sync/atomic"

	"github.com/emirpasic/gods/queues/arrayqueue"
	"github.com/npillmayer/schuko/tracing"

	"github.com/tarvlad/yapvm-sub000/pkg/runtime"
)

func tracer() tracing.Trace {
	return tracing.Select("yapvm.threads")
}

// Worker is one interpreter thread: a root scope, its safepoint, and the
// goroutine (pinned to an OS thread) executing it.
type Worker struct {
	handle runtime.ThreadHandle
	root   *runtime.Scope
	sp     *Safepoint
	exited chan struct{}
	err    error
}

func (w *Worker) Handle() runtime.ThreadHandle { return w.handle }
func (w *Worker) Root() *runtime.Scope         { return w.root }
func (w *Worker) Safepoint() *Safepoint        { return w.sp }
func (w *Worker) Exited() <-chan struct{}      { return w.exited }

// Err is the error the worker body returned. Valid once Exited is closed.
func (w *Worker) Err() error { return w.err }

// Registry tracks live workers and the queue of finished ones awaiting join.
// The mutex is only ever taken with TryLock by workers so that a worker
// contending with a collection keeps answering its safepoint.
type Registry struct {
	mu        sync.Mutex
	idle      *sync.Cond
	live      []*Worker
	joinQueue *arrayqueue.Queue
	table     map[runtime.ThreadHandle]*Worker
	next      atomic.Uint64
}

func NewRegistry() *Registry {
	r := &Registry{
		joinQueue: arrayqueue.New(),
		table:     make(map[runtime.ThreadHandle]*Worker),
	}
	r.idle = sync.NewCond(&r.mu)
	return r
}

// NewWorker allocates a worker with a fresh handle. It is not registered.
func (r *Registry) NewWorker(root *runtime.Scope) *Worker {
	return &Worker{
		handle: runtime.ThreadHandle(r.next.Add(1)),
		root:   root,
		sp:     NewSafepoint(),
		exited: make(chan struct{}),
	}
}

// TryRegister adds w to the live list if the lock is free.
func (r *Registry) TryRegister(w *Worker) bool {
	if !r.mu.TryLock() {
		return false
	}
	defer r.mu.Unlock()
	r.live = append(r.live, w)
	r.table[w.handle] = w
	tracer().P("worker", w.handle).Debugf("registered")
	return true
}

// Register retries TryRegister, checking in at sp between attempts. sp is the
// caller's safepoint (nil when the caller is not a worker).
func (r *Registry) Register(w *Worker, sp *Safepoint) {
	for !r.TryRegister(w) {
		sp.Handle()
		goruntime.Gosched()
	}
}

// TryUnregister moves w from the live list to the join queue in one step.
func (r *Registry) TryUnregister(w *Worker) bool {
	if !r.mu.TryLock() {
		return false
	}
	defer r.mu.Unlock()
	for i, live := range r.live {
		if live == w {
			r.live = append(r.live[:i], r.live[i+1:]...)
			r.joinQueue.Enqueue(w)
			tracer().P("worker", w.handle).Debugf("unregistered")
			if len(r.live) == 0 {
				r.idle.Broadcast()
			}
			return true
		}
	}
	return true
}

func (r *Registry) Unregister(w *Worker) {
	for !r.TryUnregister(w) {
		w.sp.Handle()
		goruntime.Gosched()
	}
}

func (r *Registry) tryIsRegistered(h runtime.ThreadHandle) (registered, ok bool) {
	if !r.mu.TryLock() {
		return false, false
	}
	defer r.mu.Unlock()
	for _, w := range r.live {
		if w.handle == h {
			return true, true
		}
	}
	return false, true
}

// IsRegistered reports whether h is still live.
func (r *Registry) IsRegistered(h runtime.ThreadHandle, sp *Safepoint) bool {
	for {
		registered, ok := r.tryIsRegistered(h)
		if ok {
			return registered
		}
		sp.Handle()
		goruntime.Gosched()
	}
}

// Lookup returns the worker for h, live or awaiting join.
func (r *Registry) Lookup(h runtime.ThreadHandle, sp *Safepoint) (*Worker, bool) {
	for !r.mu.TryLock() {
		sp.Handle()
		goruntime.Gosched()
	}
	defer r.mu.Unlock()
	w, ok := r.table[h]
	return w, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// FinishWaiting drains the join queue and waits for each worker's goroutine
// to exit. It returns the first worker error encountered.
func (r *Registry) FinishWaiting(sp *Safepoint) error {
	var firstErr error
	for {
		w, ok := r.dequeue(sp)
		if !ok {
			return firstErr
		}
		sp.Wait(w.exited)
		r.forget(w, sp)
		if w.err != nil && firstErr == nil {
			firstErr = w.err
		}
	}
}

func (r *Registry) dequeue(sp *Safepoint) (*Worker, bool) {
	for !r.mu.TryLock() {
		sp.Handle()
		goruntime.Gosched()
	}
	defer r.mu.Unlock()
	v, ok := r.joinQueue.Dequeue()
	if !ok {
		return nil, false
	}
	return v.(*Worker), true
}

func (r *Registry) forget(w *Worker, sp *Safepoint) {
	for !r.mu.TryLock() {
		sp.Handle()
		goruntime.Gosched()
	}
	delete(r.table, w.handle)
	r.mu.Unlock()
}

// Join is the thread-join primitive: it waits for h to exit, takes it off the
// join queue and returns its error. Other finished workers stay queued with
// their errors until they are joined themselves. The caller keeps answering
// its own safepoint throughout.
func (r *Registry) Join(h runtime.ThreadHandle, sp *Safepoint) error {
	w, ok := r.Lookup(h, sp)
	if !ok {
		return nil
	}
	for r.IsRegistered(h, sp) {
		sp.Wait(w.exited)
	}
	r.claim(w, sp)
	return w.err
}

// claim removes w from the join queue and the handle table.
func (r *Registry) claim(w *Worker, sp *Safepoint) {
	for !r.mu.TryLock() {
		sp.Handle()
		goruntime.Gosched()
	}
	defer r.mu.Unlock()
	pending := r.joinQueue.Values()
	r.joinQueue.Clear()
	for _, v := range pending {
		if v.(*Worker) != w {
			r.joinQueue.Enqueue(v)
		}
	}
	delete(r.table, w.handle)
}

// Wait blocks until no worker is live. The caller must not itself be a
// registered worker.
func (r *Registry) Wait() {
	r.mu.Lock()
	for len(r.live) > 0 {
		r.idle.Wait()
	}
	r.mu.Unlock()
}

// parkAll requests every live worker to park and waits until all have.
// Callers hold r.mu.
func (r *Registry) parkAll() {
	for _, w := range r.live {
		w.sp.RequestPark()
	}
	for _, w := range r.live {
		w.sp.WaitParked()
	}
}

func (r *Registry) runAll() {
	for _, w := range r.live {
		w.sp.RequestUnpark()
	}
	for _, w := range r.live {
		w.sp.WaitRunning()
	}
}

func (r *Registry) ParkAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parkAll()
}

func (r *Registry) RunAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runAll()
}

func (r *Registry) IsAllParked() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.live {
		if !w.sp.Parked() {
			return false
		}
	}
	return true
}

// StopTheWorld parks every live worker, hands their root scopes to fn, then
// resumes them. The registry stays locked for the whole window, so no worker
// can register or unregister mid-collection.
func (r *Registry) StopTheWorld(fn func(roots []*runtime.Scope)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parkAll()
	roots := make([]*runtime.Scope, len(r.live))
	for i, w := range r.live {
		roots[i] = w.root
	}
	tracer().P("workers", len(roots)).Debugf("world stopped")
	defer r.runAll()
	fn(roots)
}

// Spawn registers a new worker rooted at root and starts body on its own OS
// thread. spawner is the safepoint of the calling worker, if any.
func (r *Registry) Spawn(root *runtime.Scope, spawner *Safepoint, body func(w *Worker) error) *Worker {
	w := r.NewWorker(root)
	r.Register(w, spawner)
	go r.run(w, body)
	return w
}

// Adopt registers the calling goroutine as a worker. Used for the main
// program, which runs on the caller's goroutine.
func (r *Registry) Adopt(root *runtime.Scope) *Worker {
	w := r.NewWorker(root)
	r.Register(w, nil)
	return w
}

// Finish unregisters an adopted worker and marks it exited.
func (r *Registry) Finish(w *Worker, err error) {
	w.err = err
	r.Unregister(w)
	close(w.exited)
}

func (r *Registry) run(w *Worker, body func(w *Worker) error) {
	goruntime.LockOSThread()
	defer goruntime.UnlockOSThread()
	err := body(w)
	if err != nil {
		tracer().P("worker", w.handle).Errorf("%v", err)
	}
	r.Finish(w, err)
}
