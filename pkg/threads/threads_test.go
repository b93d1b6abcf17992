package threads

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tarvlad/yapvm-sub000/pkg/runtime"
)

func withTimeout(t *testing.T, what string, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out: %s", what)
	}
}

func TestSafepointRoundTrip(t *testing.T) {
	sp := NewSafepoint()
	var stop atomic.Bool
	var executed []int
	var step atomic.Int64
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for i := 0; !stop.Load(); i++ {
			sp.Handle()
			executed = append(executed, i)
			step.Store(int64(i))
		}
	}()

	sp.RequestPark()
	withTimeout(t, "park", sp.WaitParked)
	if !sp.Parked() {
		t.Fatalf("expected worker to report parked")
	}
	frozen := step.Load()
	time.Sleep(20 * time.Millisecond)
	if step.Load() != frozen {
		t.Fatalf("worker made progress while parked: %d -> %d", frozen, step.Load())
	}

	sp.RequestUnpark()
	withTimeout(t, "unpark", sp.WaitRunning)
	for step.Load() == frozen {
		time.Sleep(time.Millisecond)
	}
	stop.Store(true)
	<-finished

	for i, v := range executed {
		if v != i {
			t.Fatalf("statement %d executed out of order (got %d)", i, v)
		}
	}
}

func TestBlockingCountsAsParked(t *testing.T) {
	sp := NewSafepoint()
	release := make(chan struct{})
	inside := make(chan struct{})
	returned := make(chan struct{})
	go func() {
		sp.Blocking(func() {
			close(inside)
			<-release
		})
		close(returned)
	}()
	<-inside

	sp.RequestPark()
	withTimeout(t, "park blocked worker", sp.WaitParked)
	close(release)
	select {
	case <-returned:
		t.Fatalf("worker left Blocking while a park was in progress")
	case <-time.After(20 * time.Millisecond):
	}
	sp.RequestUnpark()
	withTimeout(t, "resume blocked worker", func() { <-returned })
	if sp.Parked() {
		t.Fatalf("worker still parked after resume")
	}
}

func spin(stop *atomic.Bool) func(w *Worker) error {
	return func(w *Worker) error {
		for !stop.Load() {
			w.Safepoint().Handle()
			time.Sleep(time.Microsecond)
		}
		return nil
	}
}

func TestStopTheWorldParksAllWorkers(t *testing.T) {
	r := NewRegistry()
	var stop atomic.Bool
	for i := 0; i < 4; i++ {
		r.Spawn(runtime.NewScope(nil), nil, spin(&stop))
	}
	var seen int
	withTimeout(t, "stop the world", func() {
		r.StopTheWorld(func(roots []*runtime.Scope) {
			seen = len(roots)
			for _, w := range r.live {
				if !w.Safepoint().Parked() {
					t.Errorf("worker %d not parked inside the window", w.Handle())
				}
			}
		})
	})
	if seen != 4 {
		t.Fatalf("expected 4 roots, got %d", seen)
	}
	stop.Store(true)
	withTimeout(t, "drain", func() {
		r.Wait()
		if err := r.FinishWaiting(nil); err != nil {
			t.Errorf("unexpected worker error: %v", err)
		}
	})
	if r.Len() != 0 {
		t.Fatalf("expected no live workers, got %d", r.Len())
	}
}

func TestJoinWhileParkRequested(t *testing.T) {
	r := NewRegistry()
	var stop atomic.Bool
	target := r.Spawn(runtime.NewScope(nil), nil, spin(&stop))
	joined := make(chan error, 1)
	r.Spawn(runtime.NewScope(nil), nil, func(w *Worker) error {
		err := r.Join(target.Handle(), w.Safepoint())
		joined <- err
		return err
	})

	// the joiner is blocked on its peer and must still answer the park
	for i := 0; i < 20; i++ {
		withTimeout(t, "park with blocked joiner", func() {
			r.StopTheWorld(func([]*runtime.Scope) {})
		})
	}

	stop.Store(true)
	select {
	case err := <-joined:
		if err != nil {
			t.Fatalf("join failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("join never returned")
	}
	if r.IsRegistered(target.Handle(), nil) {
		t.Fatalf("joined worker still registered")
	}
	withTimeout(t, "drain", func() {
		r.Wait()
		r.FinishWaiting(nil)
	})
}

func TestRegisterRetriesAcrossCollection(t *testing.T) {
	r := NewRegistry()
	var stop atomic.Bool
	spawned := make(chan *Worker, 1)
	r.Spawn(runtime.NewScope(nil), nil, func(w *Worker) error {
		for !stop.Load() {
			w.Safepoint().Handle()
		}
		spawned <- r.Spawn(runtime.NewScope(nil), w.Safepoint(), func(*Worker) error { return nil })
		return nil
	})
	stop.Store(true)
	for i := 0; i < 50; i++ {
		withTimeout(t, "collection during spawn", func() {
			r.StopTheWorld(func([]*runtime.Scope) {})
		})
	}
	var child *Worker
	select {
	case child = <-spawned:
	case <-time.After(5 * time.Second):
		t.Fatalf("spawn never completed")
	}
	withTimeout(t, "child exit", func() { <-child.Exited() })
	withTimeout(t, "drain", func() {
		r.Wait()
		r.FinishWaiting(nil)
	})
}

func TestAdoptAndFinish(t *testing.T) {
	r := NewRegistry()
	main := r.Adopt(runtime.NewScope(nil))
	if !r.IsRegistered(main.Handle(), nil) {
		t.Fatalf("adopted worker should be registered")
	}
	r.Finish(main, nil)
	if r.IsRegistered(main.Handle(), nil) {
		t.Fatalf("finished worker should be unregistered")
	}
	if _, ok := r.Lookup(main.Handle(), nil); !ok {
		t.Fatalf("finished worker stays in the table until joined")
	}
	if err := r.FinishWaiting(nil); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if _, ok := r.Lookup(main.Handle(), nil); ok {
		t.Fatalf("joined worker should be forgotten")
	}
}

func TestJoinReportsOnlyItsOwnWorkerError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	failing := r.Spawn(runtime.NewScope(nil), nil, func(*Worker) error { return boom })
	healthy := r.Spawn(runtime.NewScope(nil), nil, func(*Worker) error { return nil })
	withTimeout(t, "workers exit", func() {
		<-failing.Exited()
		<-healthy.Exited()
	})

	if err := r.Join(healthy.Handle(), nil); err != nil {
		t.Fatalf("joining the healthy worker reported %v", err)
	}
	if err := r.Join(failing.Handle(), nil); !errors.Is(err, boom) {
		t.Fatalf("expected the failing worker's error, got %v", err)
	}
	if _, ok := r.Lookup(failing.Handle(), nil); ok {
		t.Fatalf("joined worker should be forgotten")
	}
	if err := r.FinishWaiting(nil); err != nil {
		t.Fatalf("nothing should be left to join, got %v", err)
	}
}
