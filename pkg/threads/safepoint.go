package threads

import (
	"sync"
	"sync/atomic"
)

// Safepoint holds the park/unpark handshake for one worker. needPark and
// needUnpark are written by the coordinator, parked by the worker.
type Safepoint struct {
	mu         sync.Mutex
	cond       *sync.Cond
	needPark   atomic.Bool
	needUnpark bool
	parked     bool
	blocking   bool
	poke       chan struct{}
}

func NewSafepoint() *Safepoint {
	sp := &Safepoint{poke: make(chan struct{}, 1)}
	sp.cond = sync.NewCond(&sp.mu)
	return sp
}

// Handle is the worker check-in. It returns immediately unless a park is
// pending, in which case it parks until the coordinator releases it.
func (sp *Safepoint) Handle() {
	if sp == nil || !sp.needPark.Load() {
		return
	}
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if !sp.needPark.Load() {
		return
	}
	sp.needPark.Store(false)
	sp.parked = true
	sp.cond.Broadcast()
	for !sp.needUnpark {
		sp.cond.Wait()
	}
	sp.needUnpark = false
	sp.parked = false
	sp.cond.Broadcast()
}

// Wait blocks until done is closed, answering park requests meanwhile.
func (sp *Safepoint) Wait(done <-chan struct{}) {
	if sp == nil {
		<-done
		return
	}
	for {
		sp.Handle()
		select {
		case <-done:
			return
		case <-sp.poke:
		}
	}
}

// Blocking runs fn with the worker counted as parked, for waits that cannot
// check in (reading a REPL line). On return it honours any park still in
// progress before resuming.
func (sp *Safepoint) Blocking(fn func()) {
	if sp == nil {
		fn()
		return
	}
	sp.mu.Lock()
	sp.blocking = true
	sp.parked = true
	sp.cond.Broadcast()
	sp.mu.Unlock()

	fn()

	sp.mu.Lock()
	defer sp.mu.Unlock()
	if sp.needPark.Load() {
		for !sp.needUnpark {
			sp.cond.Wait()
		}
	}
	sp.needPark.Store(false)
	sp.needUnpark = false
	sp.blocking = false
	sp.parked = false
	sp.cond.Broadcast()
}

// RequestPark asks the worker to park at its next check-in.
func (sp *Safepoint) RequestPark() {
	sp.mu.Lock()
	sp.needUnpark = false
	sp.needPark.Store(true)
	sp.mu.Unlock()
	select {
	case sp.poke <- struct{}{}:
	default:
	}
}

func (sp *Safepoint) WaitParked() {
	sp.mu.Lock()
	for !sp.parked {
		sp.cond.Wait()
	}
	sp.mu.Unlock()
}

func (sp *Safepoint) RequestUnpark() {
	sp.mu.Lock()
	sp.needUnpark = true
	sp.cond.Broadcast()
	sp.mu.Unlock()
}

// WaitRunning returns once the worker has left its parked state. A worker
// inside Blocking counts as released.
func (sp *Safepoint) WaitRunning() {
	sp.mu.Lock()
	for sp.parked && !sp.blocking {
		sp.cond.Wait()
	}
	sp.mu.Unlock()
}

func (sp *Safepoint) Parked() bool {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.parked
}

func (sp *Safepoint) ParkPending() bool {
	return sp.needPark.Load()
}
