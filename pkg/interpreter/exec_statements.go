package interpreter

import (
	"fmt"

	"github.com/tarvlad/yapvm-sub000/pkg/ast"
	"github.com/tarvlad/yapvm-sub000/pkg/runtime"
	"github.com/tarvlad/yapvm-sub000/pkg/threads"
)

// frame is the execution state of one worker inside one scope.
type frame struct {
	worker *threads.Worker
	scope  *runtime.Scope
	depth  int
}

func (f *frame) enter(scope *runtime.Scope) *frame {
	return &frame{worker: f.worker, scope: scope, depth: f.depth + 1}
}

// execBlock runs stmts in order. The result of the last statement stays
// pinned in the frame scope; earlier temporaries are released.
func (i *Interpreter) execBlock(f *frame, stmts []ast.Statement) (*runtime.ManagedObject, error) {
	base := f.scope.PinDepth()
	var last *runtime.ManagedObject
	for _, stmt := range stmts {
		f.scope.Unpin(base)
		result, err := i.execStatement(f, stmt)
		if err != nil {
			return nil, err
		}
		last = result
	}
	return last, nil
}

func (i *Interpreter) execStatement(f *frame, stmt ast.Statement) (*runtime.ManagedObject, error) {
	f.worker.Safepoint().Handle()
	depth := f.scope.PinDepth()
	result, err := i.execNode(f, stmt)
	f.scope.Unpin(depth)
	if err != nil {
		return nil, attachPosition(err, stmt)
	}
	if result != nil {
		f.scope.Pin(result)
	}
	return result, nil
}

func (i *Interpreter) execNode(f *frame, stmt ast.Statement) (*runtime.ManagedObject, error) {
	switch s := stmt.(type) {
	case *ast.Assignment:
		value, err := i.evalExpression(f, s.Value)
		if err != nil {
			return nil, err
		}
		return nil, i.assign(f, s.Target, value)
	case *ast.AugmentedAssignment:
		return nil, i.execAugmented(f, s)
	case *ast.FunctionDefinition:
		f.scope.Change(s.Name, runtime.FunctionEntry(&runtime.FunctionValue{Def: s, Closure: f.scope}))
		return nil, nil
	case *ast.ClassDefinition:
		return nil, i.execClass(f, s)
	case *ast.ReturnStatement:
		var value *runtime.ManagedObject
		if s.Value != nil {
			v, err := i.evalExpression(f, s.Value)
			if err != nil {
				return nil, err
			}
			value = v
		}
		return nil, returnSignal{value: value}
	case *ast.IfStatement:
		cond, err := i.evalExpression(f, s.Condition)
		if err != nil {
			return nil, err
		}
		if truthy(cond.Value()) {
			_, err = i.execBlock(f, s.Body)
		} else if len(s.Else) > 0 {
			_, err = i.execBlock(f, s.Else)
		}
		return nil, err
	case *ast.WhileLoop:
		return nil, i.execWhile(f, s)
	case *ast.ForLoop:
		return nil, i.execFor(f, s)
	case *ast.BreakStatement:
		return nil, breakSignal{}
	case *ast.ContinueStatement:
		return nil, continueSignal{}
	case *ast.PassStatement:
		return nil, nil
	case *ast.ImportStatement:
		tracer().P("module", s.Module).Debugf("import ignored")
		return nil, nil
	case ast.Expression:
		return i.evalExpression(f, s)
	default:
		return nil, newRuntimeError(kindNotImplemented, "statement %T", stmt)
	}
}

// loopControl reports whether err ends the loop and what the loop returns.
func loopControl(err error) (stop bool, out error) {
	switch err.(type) {
	case nil:
		return false, nil
	case breakSignal:
		return true, nil
	case continueSignal:
		return false, nil
	default:
		return true, err
	}
}

func (i *Interpreter) execWhile(f *frame, loop *ast.WhileLoop) error {
	base := f.scope.PinDepth()
	defer f.scope.Unpin(base)
	for {
		f.scope.Unpin(base)
		// the condition is a statement boundary of its own
		f.worker.Safepoint().Handle()
		cond, err := i.evalExpression(f, loop.Condition)
		if err != nil {
			return err
		}
		if !truthy(cond.Value()) {
			return nil
		}
		_, err = i.execBlock(f, loop.Body)
		if stop, err := loopControl(err); stop {
			return err
		}
	}
}

func (i *Interpreter) execFor(f *frame, loop *ast.ForLoop) error {
	base := f.scope.PinDepth()
	defer f.scope.Unpin(base)
	iterable, err := i.evalExpression(f, loop.Iterable)
	if err != nil {
		return err
	}
	next, err := i.iter(f, iterable)
	if err != nil {
		return err
	}
	inner := f.scope.PinDepth()
	for {
		f.scope.Unpin(inner)
		item, ok, err := next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		f.scope.Change(loop.Target.Name, runtime.ObjectEntry(item))
		_, err = i.execBlock(f, loop.Body)
		if stop, err := loopControl(err); stop {
			return err
		}
	}
}

func (i *Interpreter) execAugmented(f *frame, s *ast.AugmentedAssignment) error {
	var (
		current *runtime.ManagedObject
		store   func(*runtime.ManagedObject) error
		err     error
	)
	// the target's subexpressions are evaluated once
	switch t := s.Target.(type) {
	case *ast.Identifier:
		current, err = i.evalExpression(f, t)
		store = func(v *runtime.ManagedObject) error {
			f.scope.Change(t.Name, runtime.ObjectEntry(v))
			return nil
		}
	case *ast.SubscriptExpression:
		var container, index *runtime.ManagedObject
		if container, err = i.evalExpression(f, t.Object); err != nil {
			return err
		}
		if index, err = i.evalExpression(f, t.Index); err != nil {
			return err
		}
		current, err = i.getItem(f, container, index)
		store = func(v *runtime.ManagedObject) error { return i.setItem(container, index, v) }
	case *ast.AttributeExpression:
		var object *runtime.ManagedObject
		if object, err = i.evalExpression(f, t.Object); err != nil {
			return err
		}
		current, err = i.getAttribute(f, object, t.Name)
		store = func(v *runtime.ManagedObject) error { return i.setAttribute(object, t.Name, v) }
	default:
		return newRuntimeError(kindSyntax, "illegal expression for augmented assignment")
	}
	if err != nil {
		return err
	}
	operand, err := i.evalExpression(f, s.Value)
	if err != nil {
		return err
	}
	// += on a list mutates it in place: a list operand extends, anything
	// else is appended
	if list, ok := current.Value().(*runtime.ListValue); ok && s.Operator == "+" {
		if other, ok := operand.Value().(*runtime.ListValue); ok {
			list.Append(other.Snapshot()...)
		} else {
			list.Append(operand)
		}
		return nil
	}
	result, err := i.binaryOp(f, s.Operator, current, operand)
	if err != nil {
		return err
	}
	return store(result)
}

func (i *Interpreter) assign(f *frame, target ast.AssignmentTarget, value *runtime.ManagedObject) error {
	switch t := target.(type) {
	case *ast.Identifier:
		f.scope.Change(t.Name, runtime.ObjectEntry(value))
		return nil
	case *ast.SubscriptExpression:
		container, err := i.evalExpression(f, t.Object)
		if err != nil {
			return err
		}
		index, err := i.evalExpression(f, t.Index)
		if err != nil {
			return err
		}
		return i.setItem(container, index, value)
	case *ast.AttributeExpression:
		object, err := i.evalExpression(f, t.Object)
		if err != nil {
			return err
		}
		return i.setAttribute(object, t.Name, value)
	default:
		return newRuntimeError(kindSyntax, "cannot assign to %T", target)
	}
}

// execClass runs the class body in a child scope of the defining scope.
// Functions bound there become methods closing over the defining scope; the
// remaining object bindings become class attributes.
func (i *Interpreter) execClass(f *frame, def *ast.ClassDefinition) error {
	name := fmt.Sprintf("__yapvm_class_body_%d", i.callSeq.Add(1))
	body, ok := f.scope.NewChild(name)
	if !ok {
		return newRuntimeError(kindNotImplemented, "class body scope %s already bound", name)
	}
	defer f.scope.Del(name)

	if _, err := i.execBlock(f.enter(body), def.Body); err != nil {
		return controlFlowOutside(err)
	}
	class := runtime.NewClassValue(def.Name, f.scope)
	for _, attr := range body.Names() {
		entry, _ := body.LocalEntry(attr)
		if fn, ok := entry.Function(); ok {
			class.Methods.Set(attr, &runtime.FunctionValue{Def: fn.Def, Closure: f.scope})
			continue
		}
		if obj, ok := entry.Object(); ok {
			class.SetAttr(attr, obj)
		}
	}
	obj, err := i.alloc(f, class)
	if err != nil {
		return err
	}
	f.scope.Change(def.Name, runtime.ObjectEntry(obj))
	return nil
}
