package interpreter

import (
	"github.com/tarvlad/yapvm-sub000/pkg/ast"
	"github.com/tarvlad/yapvm-sub000/pkg/runtime"
)

// alloc hands v to the collector and pins the new object in the frame scope,
// so it survives any safepoint before it is bound somewhere.
func (i *Interpreter) alloc(f *frame, v runtime.Value) (*runtime.ManagedObject, error) {
	obj, err := i.collector.Allocate(v)
	if err != nil {
		return nil, convertError(err)
	}
	return f.scope.Pin(obj), nil
}

// evalExpression evaluates expr and pins the result in the frame scope until
// the enclosing statement completes.
func (i *Interpreter) evalExpression(f *frame, expr ast.Expression) (*runtime.ManagedObject, error) {
	obj, err := i.evalNode(f, expr)
	if err != nil {
		return nil, err
	}
	return f.scope.Pin(obj), nil
}

func (i *Interpreter) evalNode(f *frame, expr ast.Expression) (*runtime.ManagedObject, error) {
	switch e := expr.(type) {
	case *ast.Identifier:
		return i.lookup(f, e.Name)
	case *ast.IntegerLiteral:
		return i.alloc(f, runtime.IntValue{Val: e.Value})
	case *ast.FloatLiteral:
		return i.alloc(f, runtime.FloatValue{Val: e.Value})
	case *ast.StringLiteral:
		return i.alloc(f, runtime.StringValue{Val: e.Value})
	case *ast.BooleanLiteral:
		return i.alloc(f, runtime.BoolValue{Val: e.Value})
	case *ast.NoneLiteral:
		return i.alloc(f, runtime.NoneValue{})
	case *ast.ListLiteral:
		elems := make([]*runtime.ManagedObject, 0, len(e.Elements))
		for _, el := range e.Elements {
			obj, err := i.evalExpression(f, el)
			if err != nil {
				return nil, err
			}
			elems = append(elems, obj)
		}
		return i.alloc(f, runtime.NewListValue(elems))
	case *ast.DictLiteral:
		return i.evalDict(f, e)
	case *ast.UnaryExpression:
		operand, err := i.evalExpression(f, e.Operand)
		if err != nil {
			return nil, err
		}
		return i.unaryOp(f, e.Operator, operand)
	case *ast.BinaryExpression:
		left, err := i.evalExpression(f, e.Left)
		if err != nil {
			return nil, err
		}
		right, err := i.evalExpression(f, e.Right)
		if err != nil {
			return nil, err
		}
		return i.binaryOp(f, e.Operator, left, right)
	case *ast.BooleanExpression:
		left, err := i.evalExpression(f, e.Left)
		if err != nil {
			return nil, err
		}
		switch e.Operator {
		case "and":
			if !truthy(left.Value()) {
				return left, nil
			}
		case "or":
			if truthy(left.Value()) {
				return left, nil
			}
		default:
			return nil, newRuntimeError(kindSyntax, "unknown boolean operator %q", e.Operator)
		}
		return i.evalExpression(f, e.Right)
	case *ast.CompareExpression:
		return i.evalCompare(f, e)
	case *ast.CallExpression:
		callee, err := i.evalExpression(f, e.Callee)
		if err != nil {
			return nil, err
		}
		args := make([]*runtime.ManagedObject, 0, len(e.Arguments))
		for _, arg := range e.Arguments {
			obj, err := i.evalExpression(f, arg)
			if err != nil {
				return nil, err
			}
			args = append(args, obj)
		}
		return i.callValue(f, callee, args)
	case *ast.SubscriptExpression:
		container, err := i.evalExpression(f, e.Object)
		if err != nil {
			return nil, err
		}
		index, err := i.evalExpression(f, e.Index)
		if err != nil {
			return nil, err
		}
		return i.getItem(f, container, index)
	case *ast.AttributeExpression:
		object, err := i.evalExpression(f, e.Object)
		if err != nil {
			return nil, err
		}
		return i.getAttribute(f, object, e.Name)
	default:
		return nil, newRuntimeError(kindNotImplemented, "expression %T", expr)
	}
}

func (i *Interpreter) lookup(f *frame, name string) (*runtime.ManagedObject, error) {
	entry, err := f.scope.NameLookup(name)
	if err != nil {
		return nil, err
	}
	switch entry.Kind() {
	case runtime.EntryObject:
		obj, _ := entry.Object()
		return obj, nil
	case runtime.EntryFunction:
		fn, _ := entry.Function()
		return i.alloc(f, fn)
	default:
		return nil, newRuntimeError(kindName, "name '%s' is bound to a %s, not a value", name, entry.Kind())
	}
}

func (i *Interpreter) evalDict(f *frame, lit *ast.DictLiteral) (*runtime.ManagedObject, error) {
	dict := runtime.NewDictValue()
	obj, err := i.alloc(f, dict)
	if err != nil {
		return nil, err
	}
	for _, entry := range lit.Entries {
		key, err := i.evalExpression(f, entry.Key)
		if err != nil {
			return nil, err
		}
		value, err := i.evalExpression(f, entry.Value)
		if err != nil {
			return nil, err
		}
		if err := dict.Set(key, value); err != nil {
			return nil, newRuntimeError(kindType, "%s", err.Error())
		}
	}
	return obj, nil
}

// evalCompare evaluates a comparison chain left to right, stopping at the
// first false link.
func (i *Interpreter) evalCompare(f *frame, cmp *ast.CompareExpression) (*runtime.ManagedObject, error) {
	if len(cmp.Operands) != len(cmp.Operators)+1 {
		return nil, newRuntimeError(kindSyntax, "malformed comparison")
	}
	left, err := i.evalExpression(f, cmp.Operands[0])
	if err != nil {
		return nil, err
	}
	for k, op := range cmp.Operators {
		right, err := i.evalExpression(f, cmp.Operands[k+1])
		if err != nil {
			return nil, err
		}
		ok, err := compare(op, left, right)
		if err != nil {
			return nil, err
		}
		if !ok {
			return i.alloc(f, runtime.BoolValue{Val: false})
		}
		left = right
	}
	return i.alloc(f, runtime.BoolValue{Val: true})
}

func (i *Interpreter) getItem(f *frame, container, index *runtime.ManagedObject) (*runtime.ManagedObject, error) {
	switch c := container.Value().(type) {
	case *runtime.ListValue:
		idx, err := normalizeIndex(index.Value(), c.Len(), "list")
		if err != nil {
			return nil, err
		}
		item, ok := c.At(idx)
		if !ok {
			return nil, newRuntimeError(kindIndex, "list index out of range")
		}
		return item, nil
	case runtime.StringValue:
		runes := []rune(c.Val)
		idx, err := normalizeIndex(index.Value(), len(runes), "string")
		if err != nil {
			return nil, err
		}
		return i.alloc(f, runtime.StringValue{Val: string(runes[idx])})
	case runtime.RangeValue:
		n, err := lenToInt(c.Len())
		if err != nil {
			return nil, err
		}
		idx, err := normalizeIndex(index.Value(), n, "range object")
		if err != nil {
			return nil, err
		}
		return i.alloc(f, runtime.IntValue{Val: c.At(int64(idx))})
	case *runtime.DictValue:
		value, err := c.Get(index)
		if err != nil {
			return nil, newRuntimeError(kindType, "%s", err.Error())
		}
		if value == nil {
			return nil, newRuntimeError(kindKey, "%s", repr(index.Value()))
		}
		return value, nil
	default:
		return nil, newRuntimeError(kindType, "'%s' object is not subscriptable", container.Value().TypeName())
	}
}

func (i *Interpreter) setItem(container, index, value *runtime.ManagedObject) error {
	switch c := container.Value().(type) {
	case *runtime.ListValue:
		idx, err := normalizeIndex(index.Value(), c.Len(), "list assignment")
		if err != nil {
			return err
		}
		if !c.Set(idx, value) {
			return newRuntimeError(kindIndex, "list assignment index out of range")
		}
		return nil
	case *runtime.DictValue:
		if err := c.Set(index, value); err != nil {
			return newRuntimeError(kindType, "%s", err.Error())
		}
		return nil
	default:
		return newRuntimeError(kindType, "'%s' object does not support item assignment", container.Value().TypeName())
	}
}

func (i *Interpreter) getAttribute(f *frame, object *runtime.ManagedObject, name string) (*runtime.ManagedObject, error) {
	switch v := object.Value().(type) {
	case *runtime.ObjectValue:
		if field, ok := v.Field(name); ok {
			return field, nil
		}
		if method, ok := v.Method(name); ok {
			return i.alloc(f, &runtime.BoundMethodValue{Receiver: object, Method: method})
		}
		if cls, ok := v.Class.Value().(*runtime.ClassValue); ok {
			if attr, ok := cls.Attr(name); ok {
				return attr, nil
			}
		}
	case *runtime.ClassValue:
		if attr, ok := v.Attr(name); ok {
			return attr, nil
		}
		if method, ok := v.Methods.Get(name); ok {
			return i.alloc(f, method)
		}
	default:
		if native, ok := i.methods[v.Kind()][name]; ok {
			return i.alloc(f, &runtime.BoundMethodValue{Receiver: object, Method: native})
		}
	}
	return nil, newRuntimeError(kindAttribute, "'%s' object has no attribute '%s'", object.Value().TypeName(), name)
}

func (i *Interpreter) setAttribute(object *runtime.ManagedObject, name string, value *runtime.ManagedObject) error {
	switch v := object.Value().(type) {
	case *runtime.ObjectValue:
		v.SetField(name, value)
		return nil
	case *runtime.ClassValue:
		v.SetAttr(name, value)
		return nil
	default:
		return newRuntimeError(kindAttribute, "'%s' object attribute '%s' is read-only", object.Value().TypeName(), name)
	}
}

// iterator yields successive items of a sequence. ok=false ends it.
type iterator func() (item *runtime.ManagedObject, ok bool, err error)

func (i *Interpreter) iter(f *frame, obj *runtime.ManagedObject) (iterator, error) {
	switch v := obj.Value().(type) {
	case *runtime.ListValue:
		// a list is walked live, so appends during the loop are seen
		idx := 0
		return func() (*runtime.ManagedObject, bool, error) {
			item, ok := v.At(idx)
			idx++
			return item, ok, nil
		}, nil
	case runtime.RangeValue:
		k, n := int64(0), v.Len()
		return func() (*runtime.ManagedObject, bool, error) {
			if k >= n {
				return nil, false, nil
			}
			item, err := i.alloc(f, runtime.IntValue{Val: v.At(k)})
			k++
			return item, err == nil, err
		}, nil
	case runtime.StringValue:
		runes := []rune(v.Val)
		idx := 0
		return func() (*runtime.ManagedObject, bool, error) {
			if idx >= len(runes) {
				return nil, false, nil
			}
			item, err := i.alloc(f, runtime.StringValue{Val: string(runes[idx])})
			idx++
			return item, err == nil, err
		}, nil
	case *runtime.DictValue:
		keys := v.Keys()
		idx := 0
		return func() (*runtime.ManagedObject, bool, error) {
			if idx >= len(keys) {
				return nil, false, nil
			}
			idx++
			return keys[idx-1], true, nil
		}, nil
	default:
		return nil, newRuntimeError(kindType, "'%s' object is not iterable", obj.Value().TypeName())
	}
}

// iterate drains obj into a slice. Every item stays pinned in the frame.
func (i *Interpreter) iterate(f *frame, obj *runtime.ManagedObject) ([]*runtime.ManagedObject, error) {
	next, err := i.iter(f, obj)
	if err != nil {
		return nil, err
	}
	var out []*runtime.ManagedObject
	for {
		item, ok, err := next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, f.scope.Pin(item))
	}
}
