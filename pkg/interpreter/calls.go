package interpreter

import (
	"errors"
	"fmt"

	"github.com/tarvlad/yapvm-sub000/pkg/runtime"
)

func (i *Interpreter) callValue(f *frame, callee *runtime.ManagedObject, args []*runtime.ManagedObject) (*runtime.ManagedObject, error) {
	switch fn := callee.Value().(type) {
	case *runtime.FunctionValue:
		return i.callFunction(f, fn, args)
	case *runtime.NativeFunctionValue:
		return i.callNative(f, fn, args)
	case *runtime.BoundMethodValue:
		full := make([]*runtime.ManagedObject, 0, len(args)+1)
		full = append(full, fn.Receiver)
		full = append(full, args...)
		switch method := fn.Method.(type) {
		case *runtime.FunctionValue:
			return i.callFunction(f, method, full)
		case *runtime.NativeFunctionValue:
			return i.callNative(f, method, full)
		}
		return nil, newRuntimeError(kindType, "'%s' bound method is not callable", fn.Method.TypeName())
	case *runtime.ClassValue:
		return i.instantiate(f, callee, fn, args)
	default:
		return nil, newRuntimeError(kindType, "'%s' object is not callable", callee.Value().TypeName())
	}
}

// callFunction runs fn in a fresh call scope whose lexical parent is the
// function's closure. The scope is recorded in the caller's scope for the
// duration of the call so the collector reaches the callee's locals.
func (i *Interpreter) callFunction(f *frame, fn *runtime.FunctionValue, args []*runtime.ManagedObject) (*runtime.ManagedObject, error) {
	def := fn.Def
	if f.depth >= MaxCallDepth {
		return nil, newRuntimeError(kindRecursion, "maximum recursion depth exceeded")
	}
	if len(args) != len(def.Parameters) {
		return nil, newRuntimeError(kindType, "%s() takes %d positional arguments but %d were given", def.Name, len(def.Parameters), len(args))
	}

	name := fmt.Sprintf("__yapvm_inner_call_scope_%d", i.callSeq.Add(1))
	scope := runtime.NewScope(fn.Closure)
	if !f.scope.Add(name, runtime.ScopeEntryFor(scope)) {
		return nil, newRuntimeError(kindNotImplemented, "call scope %s already bound", name)
	}
	for idx, param := range def.Parameters {
		scope.Change(param, runtime.ObjectEntry(args[idx]))
	}

	_, err := i.execBlock(f.enter(scope), def.Body)
	var result *runtime.ManagedObject
	var ret returnSignal
	switch {
	case err == nil:
	case errors.As(err, &ret):
		result, err = ret.value, nil
	default:
		f.scope.Del(name)
		return nil, controlFlowOutside(err)
	}

	// pin the result in the caller before the callee scope goes away
	if result == nil {
		result, err = i.alloc(f, runtime.NoneValue{})
	} else {
		f.scope.Pin(result)
	}
	f.scope.Del(name)
	return result, err
}

func (i *Interpreter) callNative(f *frame, fn *runtime.NativeFunctionValue, args []*runtime.ManagedObject) (*runtime.ManagedObject, error) {
	if fn.Arity >= 0 && len(args) != fn.Arity {
		return nil, newRuntimeError(kindType, "%s() takes exactly %d arguments (%d given)", fn.Name, fn.Arity, len(args))
	}
	result, err := fn.Impl(&runtime.NativeCallContext{Scope: f.scope, State: f}, args)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return i.alloc(f, runtime.NoneValue{})
	}
	return result, nil
}

func (i *Interpreter) instantiate(f *frame, classObj *runtime.ManagedObject, class *runtime.ClassValue, args []*runtime.ManagedObject) (*runtime.ManagedObject, error) {
	inst, err := i.alloc(f, runtime.NewObjectValue(classObj))
	if err != nil {
		return nil, err
	}
	init, ok := class.Methods.Get("__init__")
	if !ok {
		if len(args) > 0 {
			return nil, newRuntimeError(kindType, "%s() takes no arguments", class.Name)
		}
		return inst, nil
	}
	full := make([]*runtime.ManagedObject, 0, len(args)+1)
	full = append(full, inst)
	full = append(full, args...)
	result, err := i.callFunction(f, init, full)
	if err != nil {
		return nil, err
	}
	if _, isNone := result.Value().(runtime.NoneValue); !isNone {
		return nil, newRuntimeError(kindType, "__init__() should return None, not '%s'", result.Value().TypeName())
	}
	return inst, nil
}

func callable(v runtime.Value) bool {
	switch v.(type) {
	case *runtime.FunctionValue, *runtime.NativeFunctionValue, *runtime.BoundMethodValue, *runtime.ClassValue:
		return true
	default:
		return false
	}
}
