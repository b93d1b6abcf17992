package interpreter

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/npillmayer/schuko/tracing"

	"github.com/tarvlad/yapvm-sub000/pkg/ast"
	"github.com/tarvlad/yapvm-sub000/pkg/gc"
	"github.com/tarvlad/yapvm-sub000/pkg/kvstore"
	"github.com/tarvlad/yapvm-sub000/pkg/runtime"
	"github.com/tarvlad/yapvm-sub000/pkg/threads"
)

func tracer() tracing.Trace {
	return tracing.Select("yapvm.interpreter")
}

// MaxCallDepth bounds nested user function calls per worker.
const MaxCallDepth = 1000

// Config collects the knobs a driver passes to New.
type Config struct {
	GC gc.Config
	// DisableGC keeps the collector loop from running. Allocation still goes
	// through the collector so its buffers and stats stay meaningful.
	DisableGC bool
	// Store configures the scope tables.
	Store  kvstore.Options[string]
	Stdout io.Writer
}

// Interpreter owns the global scope, the thread registry and the collector.
// One Interpreter runs one program (or one REPL session) at a time.
type Interpreter struct {
	cfg       Config
	global    *runtime.Scope
	registry  *threads.Registry
	collector *gc.Collector

	outMu sync.Mutex
	out   io.Writer

	methods map[runtime.Kind]map[string]*runtime.NativeFunctionValue

	callSeq   atomic.Uint64
	threadSeq atomic.Uint64
	spawned   sync.Map // runtime.ThreadHandle -> threadRecord

	main      *threads.Worker
	baseDepth int
	stopLoop  context.CancelFunc
	loopDone  chan struct{}
}

type threadRecord struct {
	owner *runtime.Scope
	name  string
}

// New builds an interpreter with its builtins bound in the global scope.
func New(cfg Config) *Interpreter {
	out := cfg.Stdout
	if out == nil {
		out = os.Stdout
	}
	registry := threads.NewRegistry()
	i := &Interpreter{
		cfg:       cfg,
		global:    runtime.NewScopeWithOptions(nil, cfg.Store),
		registry:  registry,
		collector: gc.New(registry, cfg.GC),
		out:       out,
	}
	i.installBuiltins()
	return i
}

func (i *Interpreter) Global() *runtime.Scope      { return i.global }
func (i *Interpreter) Collector() *gc.Collector    { return i.collector }
func (i *Interpreter) Registry() *threads.Registry { return i.registry }
func (i *Interpreter) MainWorker() *threads.Worker { return i.main }
func (i *Interpreter) Started() bool               { return i.main != nil }

// Start adopts the calling goroutine as the main worker, rooted at the global
// scope, and starts the collector loop.
func (i *Interpreter) Start(ctx context.Context) error {
	if i.main != nil {
		return errors.New("interpreter: already started")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	i.stopLoop = cancel
	i.loopDone = make(chan struct{})
	go func() {
		defer close(i.loopDone)
		if i.cfg.DisableGC {
			<-loopCtx.Done()
			return
		}
		i.collector.Run(loopCtx)
	}()
	i.baseDepth = i.global.PinDepth()
	i.main = i.registry.Adopt(i.global)
	tracer().P("worker", i.main.Handle()).Debugf("main worker adopted")
	return nil
}

// Exec runs mod on the main worker and returns the value of its last
// expression statement (None when there is none). The value is only valid
// until the main worker reaches its next safepoint.
func (i *Interpreter) Exec(mod *ast.Module) (runtime.Value, error) {
	if i.main == nil {
		return nil, errors.New("interpreter: not started")
	}
	i.global.Unpin(i.baseDepth)
	f := &frame{worker: i.main, scope: i.global}
	last, err := i.execBlock(f, mod.Body)
	var ret returnSignal
	if errors.As(err, &ret) {
		last, err = ret.value, nil
	}
	if err != nil {
		return nil, controlFlowOutside(err)
	}
	if last == nil {
		return runtime.NoneValue{}, nil
	}
	return last.Value(), nil
}

// Blocking runs fn with the main worker counted as parked, so collections
// triggered by other workers do not wait on it.
func (i *Interpreter) Blocking(fn func()) {
	if i.main == nil {
		fn()
		return
	}
	i.main.Safepoint().Blocking(fn)
}

// Close finishes the main worker, waits for every spawned worker, joins them
// and stops the collector loop. It returns the first worker error.
func (i *Interpreter) Close(mainErr error) error {
	if i.main == nil {
		return mainErr
	}
	i.registry.Finish(i.main, mainErr)
	i.registry.Wait()
	err := i.registry.FinishWaiting(nil)
	i.stopLoop()
	<-i.loopDone
	i.main = nil
	stats := i.collector.Stats()
	tracer().P("cycles", stats.Cycles).Debugf("interpreter closed: %d allocated, %d freed", stats.Allocated, stats.Freed)
	if mainErr != nil {
		return mainErr
	}
	return err
}

// Run executes mod as a whole program: start, exec, wait for all threads.
func (i *Interpreter) Run(ctx context.Context, mod *ast.Module) (runtime.Value, error) {
	if err := i.Start(ctx); err != nil {
		return nil, err
	}
	value, err := i.Exec(mod)
	if err := i.Close(err); err != nil {
		return nil, err
	}
	return value, nil
}

func (i *Interpreter) write(s string) error {
	i.outMu.Lock()
	defer i.outMu.Unlock()
	_, err := io.WriteString(i.out, s)
	return err
}
