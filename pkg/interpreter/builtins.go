package interpreter

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"fortio.org/safecast"

	"github.com/tarvlad/yapvm-sub000/pkg/runtime"
)

func (i *Interpreter) installBuiltins() {
	builtins := []*runtime.NativeFunctionValue{
		{Name: "print", Arity: -1, Impl: i.builtinPrint},
		{Name: "str", Arity: -1, Impl: i.builtinStr},
		{Name: "repr", Arity: 1, Impl: i.builtinRepr},
		{Name: "int", Arity: -1, Impl: i.builtinInt},
		{Name: "float", Arity: -1, Impl: i.builtinFloat},
		{Name: "bool", Arity: -1, Impl: i.builtinBool},
		{Name: "len", Arity: 1, Impl: i.builtinLen},
		{Name: "abs", Arity: 1, Impl: i.builtinAbs},
		{Name: "range", Arity: -1, Impl: i.builtinRange},
		{Name: "list", Arity: -1, Impl: i.builtinList},
		{Name: "dict", Arity: -1, Impl: i.builtinDict},
		{Name: "min", Arity: -1, Impl: i.builtinMinMax("min", -1)},
		{Name: "max", Arity: -1, Impl: i.builtinMinMax("max", 1)},
		{Name: "sum", Arity: -1, Impl: i.builtinSum},
		{Name: "__yapvm_thread", Arity: 2, Impl: i.builtinThread},
		{Name: "__yapvm_thread_join", Arity: 1, Impl: i.builtinThreadJoin},
	}
	for _, fn := range builtins {
		i.bindGlobal(fn.Name, fn)
	}
	i.bindGlobal("__name__", runtime.StringValue{Val: "__main__"})

	i.methods = map[runtime.Kind]map[string]*runtime.NativeFunctionValue{
		runtime.KindList: {
			"append": {Name: "append", Arity: 2, Impl: listAppend},
			"pop":    {Name: "pop", Arity: -1, Impl: listPop},
			"extend": {Name: "extend", Arity: 2, Impl: i.listExtend},
		},
		runtime.KindDict: {
			"keys":   {Name: "keys", Arity: 1, Impl: i.dictKeys},
			"values": {Name: "values", Arity: 1, Impl: i.dictValues},
			"get":    {Name: "get", Arity: -1, Impl: dictGet},
		},
	}
}

func (i *Interpreter) bindGlobal(name string, v runtime.Value) {
	// the heap is empty here, so allocation cannot hit MaxHeap
	obj, _ := i.collector.Allocate(v)
	i.global.Change(name, runtime.ObjectEntry(obj))
}

func frameOf(ctx *runtime.NativeCallContext) *frame {
	return ctx.State.(*frame)
}

func checkArgs(name string, args []*runtime.ManagedObject, lo, hi int) error {
	if len(args) >= lo && len(args) <= hi {
		return nil
	}
	if lo == hi {
		return newRuntimeError(kindType, "%s() takes exactly %d arguments (%d given)", name, lo, len(args))
	}
	return newRuntimeError(kindType, "%s() takes from %d to %d arguments (%d given)", name, lo, hi, len(args))
}

func (i *Interpreter) builtinPrint(_ *runtime.NativeCallContext, args []*runtime.ManagedObject) (*runtime.ManagedObject, error) {
	parts := make([]string, len(args))
	for k, arg := range args {
		parts[k] = str(arg.Value())
	}
	if err := i.write(strings.Join(parts, " ") + "\n"); err != nil {
		return nil, newRuntimeError(kindIO, "print: %v", err)
	}
	return nil, nil
}

func (i *Interpreter) builtinStr(ctx *runtime.NativeCallContext, args []*runtime.ManagedObject) (*runtime.ManagedObject, error) {
	if err := checkArgs("str", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return i.alloc(frameOf(ctx), runtime.StringValue{})
	}
	if _, ok := args[0].Value().(runtime.StringValue); ok {
		return args[0], nil
	}
	return i.alloc(frameOf(ctx), runtime.StringValue{Val: str(args[0].Value())})
}

func (i *Interpreter) builtinRepr(ctx *runtime.NativeCallContext, args []*runtime.ManagedObject) (*runtime.ManagedObject, error) {
	return i.alloc(frameOf(ctx), runtime.StringValue{Val: repr(args[0].Value())})
}

func (i *Interpreter) builtinInt(ctx *runtime.NativeCallContext, args []*runtime.ManagedObject) (*runtime.ManagedObject, error) {
	if err := checkArgs("int", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return i.alloc(frameOf(ctx), runtime.IntValue{})
	}
	switch v := args[0].Value().(type) {
	case runtime.IntValue:
		return args[0], nil
	case runtime.BoolValue:
		n, _, _, _ := numeric(v)
		return i.alloc(frameOf(ctx), runtime.IntValue{Val: n})
	case runtime.FloatValue:
		if math.IsNaN(v.Val) || math.IsInf(v.Val, 0) {
			return nil, newRuntimeError(kindValue, "cannot convert float %s to integer", formatFloat(v.Val))
		}
		n, err := safecast.Truncate[int64](v.Val)
		if err != nil {
			return nil, newRuntimeError(kindOverflow, "float %s does not fit an int", formatFloat(v.Val))
		}
		return i.alloc(frameOf(ctx), runtime.IntValue{Val: n})
	case runtime.StringValue:
		text := strings.ReplaceAll(strings.TrimSpace(v.Val), "_", "")
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			if errors.Is(err, strconv.ErrRange) {
				return nil, newRuntimeError(kindOverflow, "int literal %s does not fit an int", repr(v))
			}
			return nil, newRuntimeError(kindValue, "invalid literal for int() with base 10: %s", repr(v))
		}
		return i.alloc(frameOf(ctx), runtime.IntValue{Val: n})
	default:
		return nil, newRuntimeError(kindType, "int() argument must be a string or a number, not '%s'", v.TypeName())
	}
}

func (i *Interpreter) builtinFloat(ctx *runtime.NativeCallContext, args []*runtime.ManagedObject) (*runtime.ManagedObject, error) {
	if err := checkArgs("float", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return i.alloc(frameOf(ctx), runtime.FloatValue{})
	}
	switch v := args[0].Value().(type) {
	case runtime.FloatValue:
		return args[0], nil
	case runtime.IntValue, runtime.BoolValue:
		_, f, _, _ := numeric(v)
		return i.alloc(frameOf(ctx), runtime.FloatValue{Val: f})
	case runtime.StringValue:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Val), 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return nil, newRuntimeError(kindValue, "could not convert string to float: %s", repr(v))
		}
		return i.alloc(frameOf(ctx), runtime.FloatValue{Val: f})
	default:
		return nil, newRuntimeError(kindType, "float() argument must be a string or a number, not '%s'", v.TypeName())
	}
}

func (i *Interpreter) builtinBool(ctx *runtime.NativeCallContext, args []*runtime.ManagedObject) (*runtime.ManagedObject, error) {
	if err := checkArgs("bool", args, 0, 1); err != nil {
		return nil, err
	}
	val := len(args) == 1 && truthy(args[0].Value())
	return i.alloc(frameOf(ctx), runtime.BoolValue{Val: val})
}

func (i *Interpreter) builtinLen(ctx *runtime.NativeCallContext, args []*runtime.ManagedObject) (*runtime.ManagedObject, error) {
	var n int64
	switch v := args[0].Value().(type) {
	case runtime.StringValue:
		n = int64(utf8.RuneCountInString(v.Val))
	case *runtime.ListValue:
		n = int64(v.Len())
	case *runtime.DictValue:
		n = int64(v.Len())
	case runtime.RangeValue:
		n = v.Len()
	default:
		return nil, newRuntimeError(kindType, "object of type '%s' has no len()", v.TypeName())
	}
	return i.alloc(frameOf(ctx), runtime.IntValue{Val: n})
}

func (i *Interpreter) builtinAbs(ctx *runtime.NativeCallContext, args []*runtime.ManagedObject) (*runtime.ManagedObject, error) {
	n, f, isFloat, ok := numeric(args[0].Value())
	switch {
	case !ok:
		return nil, newRuntimeError(kindType, "bad operand type for abs(): '%s'", args[0].Value().TypeName())
	case isFloat:
		return i.alloc(frameOf(ctx), runtime.FloatValue{Val: math.Abs(f)})
	case n == math.MinInt64:
		return nil, newRuntimeError(kindOverflow, "abs() of the smallest int overflows")
	case n < 0:
		return i.alloc(frameOf(ctx), runtime.IntValue{Val: -n})
	default:
		return i.alloc(frameOf(ctx), runtime.IntValue{Val: n})
	}
}

func (i *Interpreter) builtinRange(ctx *runtime.NativeCallContext, args []*runtime.ManagedObject) (*runtime.ManagedObject, error) {
	if err := checkArgs("range", args, 1, 3); err != nil {
		return nil, err
	}
	bounds := make([]int64, len(args))
	for k, arg := range args {
		n, _, isFloat, ok := numeric(arg.Value())
		if !ok || isFloat {
			return nil, newRuntimeError(kindType, "'%s' object cannot be interpreted as an integer", arg.Value().TypeName())
		}
		bounds[k] = n
	}
	r := runtime.RangeValue{Step: 1}
	switch len(bounds) {
	case 1:
		r.Stop = bounds[0]
	case 2:
		r.Start, r.Stop = bounds[0], bounds[1]
	default:
		r.Start, r.Stop, r.Step = bounds[0], bounds[1], bounds[2]
	}
	if r.Step == 0 {
		return nil, newRuntimeError(kindValue, "range() arg 3 must not be zero")
	}
	if _, err := lenToInt(r.Len()); err != nil {
		return nil, err
	}
	return i.alloc(frameOf(ctx), r)
}

func (i *Interpreter) builtinList(ctx *runtime.NativeCallContext, args []*runtime.ManagedObject) (*runtime.ManagedObject, error) {
	if err := checkArgs("list", args, 0, 1); err != nil {
		return nil, err
	}
	f := frameOf(ctx)
	if len(args) == 0 {
		return i.alloc(f, runtime.NewListValue(nil))
	}
	items, err := i.iterate(f, args[0])
	if err != nil {
		return nil, err
	}
	return i.alloc(f, runtime.NewListValue(items))
}

func (i *Interpreter) builtinDict(ctx *runtime.NativeCallContext, args []*runtime.ManagedObject) (*runtime.ManagedObject, error) {
	if err := checkArgs("dict", args, 0, 1); err != nil {
		return nil, err
	}
	dict := runtime.NewDictValue()
	if len(args) == 1 {
		src, ok := args[0].Value().(*runtime.DictValue)
		if !ok {
			return nil, newRuntimeError(kindType, "'%s' object is not a mapping", args[0].Value().TypeName())
		}
		for _, key := range src.Keys() {
			value, err := src.Get(key)
			if err != nil || value == nil {
				continue
			}
			if err := dict.Set(key, value); err != nil {
				return nil, newRuntimeError(kindType, "%s", err.Error())
			}
		}
	}
	return i.alloc(frameOf(ctx), dict)
}

// builtinMinMax builds min (want=-1) or max (want=1). A single argument is
// iterated; several are compared directly.
func (i *Interpreter) builtinMinMax(name string, want int) runtime.NativeFunc {
	op := "<"
	if want > 0 {
		op = ">"
	}
	return func(ctx *runtime.NativeCallContext, args []*runtime.ManagedObject) (*runtime.ManagedObject, error) {
		if len(args) == 0 {
			return nil, newRuntimeError(kindType, "%s expected at least 1 argument, got 0", name)
		}
		items := args
		if len(args) == 1 {
			var err error
			if items, err = i.iterate(frameOf(ctx), args[0]); err != nil {
				return nil, err
			}
		}
		if len(items) == 0 {
			return nil, newRuntimeError(kindValue, "%s() arg is an empty sequence", name)
		}
		best := items[0]
		for _, item := range items[1:] {
			c, ok := order(item.Value(), best.Value())
			if !ok {
				return nil, newRuntimeError(kindType, "'%s' not supported between instances of '%s' and '%s'", op, item.Value().TypeName(), best.Value().TypeName())
			}
			if c == want {
				best = item
			}
		}
		return best, nil
	}
}

func (i *Interpreter) builtinSum(ctx *runtime.NativeCallContext, args []*runtime.ManagedObject) (*runtime.ManagedObject, error) {
	if err := checkArgs("sum", args, 1, 2); err != nil {
		return nil, err
	}
	f := frameOf(ctx)
	items, err := i.iterate(f, args[0])
	if err != nil {
		return nil, err
	}
	var total *runtime.ManagedObject
	if len(args) == 2 {
		total = args[1]
	} else if total, err = i.alloc(f, runtime.IntValue{}); err != nil {
		return nil, err
	}
	if _, ok := total.Value().(runtime.StringValue); ok {
		return nil, newRuntimeError(kindType, "sum() can't sum strings")
	}
	for _, item := range items {
		if total, err = i.binaryOp(f, "+", total, item); err != nil {
			return nil, err
		}
	}
	return total, nil
}

func receiverList(name string, args []*runtime.ManagedObject) (*runtime.ListValue, error) {
	list, ok := args[0].Value().(*runtime.ListValue)
	if !ok {
		return nil, newRuntimeError(kindType, "%s() requires a list receiver, not '%s'", name, args[0].Value().TypeName())
	}
	return list, nil
}

func listAppend(_ *runtime.NativeCallContext, args []*runtime.ManagedObject) (*runtime.ManagedObject, error) {
	list, err := receiverList("append", args)
	if err != nil {
		return nil, err
	}
	list.Append(args[1])
	return nil, nil
}

func listPop(_ *runtime.NativeCallContext, args []*runtime.ManagedObject) (*runtime.ManagedObject, error) {
	if err := checkArgs("pop", args, 1, 2); err != nil {
		return nil, err
	}
	list, err := receiverList("pop", args)
	if err != nil {
		return nil, err
	}
	if len(args) == 1 {
		item, ok := list.Pop()
		if !ok {
			return nil, newRuntimeError(kindIndex, "pop from empty list")
		}
		return item, nil
	}
	if list.Len() == 0 {
		return nil, newRuntimeError(kindIndex, "pop from empty list")
	}
	idx, err := normalizeIndex(args[1].Value(), list.Len(), "pop")
	if err != nil {
		return nil, err
	}
	item, ok := list.RemoveAt(idx)
	if !ok {
		return nil, newRuntimeError(kindIndex, "pop index out of range")
	}
	return item, nil
}

func (i *Interpreter) listExtend(ctx *runtime.NativeCallContext, args []*runtime.ManagedObject) (*runtime.ManagedObject, error) {
	list, err := receiverList("extend", args)
	if err != nil {
		return nil, err
	}
	items, err := i.iterate(frameOf(ctx), args[1])
	if err != nil {
		return nil, err
	}
	list.Append(items...)
	return nil, nil
}

func receiverDict(name string, args []*runtime.ManagedObject) (*runtime.DictValue, error) {
	dict, ok := args[0].Value().(*runtime.DictValue)
	if !ok {
		return nil, newRuntimeError(kindType, "%s() requires a dict receiver, not '%s'", name, args[0].Value().TypeName())
	}
	return dict, nil
}

func (i *Interpreter) dictKeys(ctx *runtime.NativeCallContext, args []*runtime.ManagedObject) (*runtime.ManagedObject, error) {
	dict, err := receiverDict("keys", args)
	if err != nil {
		return nil, err
	}
	return i.alloc(frameOf(ctx), runtime.NewListValue(dict.Keys()))
}

func (i *Interpreter) dictValues(ctx *runtime.NativeCallContext, args []*runtime.ManagedObject) (*runtime.ManagedObject, error) {
	dict, err := receiverDict("values", args)
	if err != nil {
		return nil, err
	}
	keys := dict.Keys()
	values := make([]*runtime.ManagedObject, 0, len(keys))
	for _, key := range keys {
		if value, err := dict.Get(key); err == nil && value != nil {
			values = append(values, value)
		}
	}
	return i.alloc(frameOf(ctx), runtime.NewListValue(values))
}

func dictGet(_ *runtime.NativeCallContext, args []*runtime.ManagedObject) (*runtime.ManagedObject, error) {
	if err := checkArgs("get", args, 2, 3); err != nil {
		return nil, err
	}
	dict, err := receiverDict("get", args)
	if err != nil {
		return nil, err
	}
	value, err := dict.Get(args[1])
	if err != nil {
		return nil, newRuntimeError(kindType, "%s", err.Error())
	}
	if value == nil && len(args) == 3 {
		return args[2], nil
	}
	return value, nil
}
