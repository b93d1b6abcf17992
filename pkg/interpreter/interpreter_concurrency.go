package interpreter

import (
	"fmt"

	"github.com/tarvlad/yapvm-sub000/pkg/runtime"
	"github.com/tarvlad/yapvm-sub000/pkg/threads"
)

// builtinThread implements __yapvm_thread(f, args): f(args) runs on a new
// worker rooted at a thread scope recorded in the caller's scope.
func (i *Interpreter) builtinThread(ctx *runtime.NativeCallContext, args []*runtime.ManagedObject) (*runtime.ManagedObject, error) {
	f := frameOf(ctx)
	target, arg := args[0], args[1]
	if !callable(target.Value()) {
		return nil, newRuntimeError(kindType, "'%s' object is not callable", target.Value().TypeName())
	}

	name := fmt.Sprintf("__yapvm_thread_scope_%d", i.threadSeq.Add(1))
	scope := runtime.NewScope(f.scope)
	if !f.scope.Add(name, runtime.ThreadScopeEntry(scope)) {
		return nil, newRuntimeError(kindThread, "thread scope %s already bound", name)
	}
	scope.Change("__yapvm_thread_target", runtime.ObjectEntry(target))
	scope.Change("__yapvm_thread_args", runtime.ObjectEntry(arg))

	w := i.registry.Spawn(scope, f.worker.Safepoint(), func(w *threads.Worker) error {
		tf := &frame{worker: w, scope: scope}
		_, err := i.callValue(tf, target, []*runtime.ManagedObject{arg})
		if err != nil {
			return attachPosition(controlFlowOutside(err), nil)
		}
		return nil
	})
	i.spawned.Store(w.Handle(), threadRecord{owner: f.scope, name: name})
	tracer().P("worker", w.Handle()).P("scope", name).Debugf("thread spawned")
	return i.alloc(f, runtime.ThreadValue{Handle: w.Handle()})
}

// builtinThreadJoin implements __yapvm_thread_join(t). The caller keeps
// answering its safepoint while it waits.
func (i *Interpreter) builtinThreadJoin(ctx *runtime.NativeCallContext, args []*runtime.ManagedObject) (*runtime.ManagedObject, error) {
	f := frameOf(ctx)
	t, ok := args[0].Value().(runtime.ThreadValue)
	if !ok {
		return nil, newRuntimeError(kindType, "__yapvm_thread_join() expects a thread, not '%s'", args[0].Value().TypeName())
	}
	err := i.registry.Join(t.Handle, f.worker.Safepoint())
	if rec, ok := i.spawned.LoadAndDelete(t.Handle); ok {
		record := rec.(threadRecord)
		record.owner.Del(record.name)
	}
	tracer().P("worker", t.Handle).Debugf("thread joined")
	if err != nil {
		return nil, newRuntimeError(kindThread, "thread %d: %v", t.Handle, err)
	}
	return nil, nil
}
