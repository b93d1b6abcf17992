package interpreter

import (
	"math"
	"strconv"
	"strings"

	"fortio.org/safecast"

	"github.com/tarvlad/yapvm-sub000/pkg/runtime"
)

func truthy(v runtime.Value) bool {
	switch val := v.(type) {
	case runtime.NoneValue:
		return false
	case runtime.BoolValue:
		return val.Val
	case runtime.IntValue:
		return val.Val != 0
	case runtime.FloatValue:
		return val.Val != 0
	case runtime.StringValue:
		return val.Val != ""
	case *runtime.ListValue:
		return val.Len() > 0
	case *runtime.DictValue:
		return val.Len() > 0
	case runtime.RangeValue:
		return val.Len() > 0
	default:
		return true
	}
}

// numeric projects bools, ints and floats onto a common shape.
func numeric(v runtime.Value) (i int64, f float64, isFloat bool, ok bool) {
	switch val := v.(type) {
	case runtime.BoolValue:
		if val.Val {
			return 1, 1, false, true
		}
		return 0, 0, false, true
	case runtime.IntValue:
		return val.Val, float64(val.Val), false, true
	case runtime.FloatValue:
		return 0, val.Val, true, true
	default:
		return 0, 0, false, false
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// str renders v the way print and str() do.
func str(v runtime.Value) string {
	if s, ok := v.(runtime.StringValue); ok {
		return s.Val
	}
	return repr(v)
}

func repr(v runtime.Value) string {
	switch val := v.(type) {
	case runtime.NoneValue:
		return "None"
	case runtime.BoolValue:
		if val.Val {
			return "True"
		}
		return "False"
	case runtime.IntValue:
		return strconv.FormatInt(val.Val, 10)
	case runtime.FloatValue:
		return formatFloat(val.Val)
	case runtime.StringValue:
		return quote(val.Val)
	case *runtime.ListValue:
		items := val.Snapshot()
		parts := make([]string, len(items))
		for k, item := range items {
			parts[k] = repr(item.Value())
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *runtime.DictValue:
		keys := val.Keys()
		parts := make([]string, 0, len(keys))
		for _, key := range keys {
			value, _ := val.Get(key)
			if value == nil {
				continue
			}
			parts = append(parts, repr(key.Value())+": "+repr(value.Value()))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case runtime.RangeValue:
		if val.Step == 1 {
			return "range(" + strconv.FormatInt(val.Start, 10) + ", " + strconv.FormatInt(val.Stop, 10) + ")"
		}
		return "range(" + strconv.FormatInt(val.Start, 10) + ", " + strconv.FormatInt(val.Stop, 10) + ", " + strconv.FormatInt(val.Step, 10) + ")"
	case *runtime.FunctionValue:
		return "<function " + val.Def.Name + ">"
	case *runtime.NativeFunctionValue:
		return "<built-in function " + val.Name + ">"
	case *runtime.BoundMethodValue:
		return "<bound method of " + val.Receiver.Value().TypeName() + " object>"
	case *runtime.ClassValue:
		return "<class '" + val.Name + "'>"
	case *runtime.ObjectValue:
		return "<" + val.TypeName() + " object>"
	case runtime.ThreadValue:
		return "<thread " + strconv.FormatUint(uint64(val.Handle), 10) + ">"
	default:
		return "<" + v.TypeName() + ">"
	}
}

func quote(s string) string {
	q := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		q = '"'
	}
	var sb strings.Builder
	sb.WriteByte(q)
	for _, r := range s {
		switch {
		case r == '\\':
			sb.WriteString(`\\`)
		case r == rune(q):
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\t':
			sb.WriteString(`\t`)
		case r == '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte(q)
	return sb.String()
}

func valuesEqual(a, b runtime.Value) bool {
	if ai, af, aFloat, ok := numeric(a); ok {
		bi, bf, bFloat, ok := numeric(b)
		if !ok {
			return false
		}
		if aFloat || bFloat {
			return af == bf
		}
		return ai == bi
	}
	switch av := a.(type) {
	case runtime.NoneValue:
		_, ok := b.(runtime.NoneValue)
		return ok
	case runtime.StringValue:
		bv, ok := b.(runtime.StringValue)
		return ok && av.Val == bv.Val
	case *runtime.ListValue:
		bv, ok := b.(*runtime.ListValue)
		if !ok {
			return false
		}
		if av == bv {
			return true
		}
		left, right := av.Snapshot(), bv.Snapshot()
		if len(left) != len(right) {
			return false
		}
		for k := range left {
			if !valuesEqual(left[k].Value(), right[k].Value()) {
				return false
			}
		}
		return true
	case *runtime.DictValue:
		bv, ok := b.(*runtime.DictValue)
		if !ok {
			return false
		}
		if av == bv {
			return true
		}
		if av.Len() != bv.Len() {
			return false
		}
		for _, key := range av.Keys() {
			left, _ := av.Get(key)
			right, err := bv.Get(key)
			if err != nil || right == nil || left == nil || !valuesEqual(left.Value(), right.Value()) {
				return false
			}
		}
		return true
	case runtime.RangeValue:
		bv, ok := b.(runtime.RangeValue)
		return ok && av == bv
	case runtime.ThreadValue:
		bv, ok := b.(runtime.ThreadValue)
		return ok && av.Handle == bv.Handle
	default:
		return a == b
	}
}

func identical(a, b *runtime.ManagedObject) bool {
	if a == b {
		return true
	}
	switch av := a.Value().(type) {
	case runtime.NoneValue:
		_, ok := b.Value().(runtime.NoneValue)
		return ok
	case runtime.BoolValue:
		bv, ok := b.Value().(runtime.BoolValue)
		return ok && av.Val == bv.Val
	case *runtime.FunctionValue:
		bv, ok := b.Value().(*runtime.FunctionValue)
		return ok && av == bv
	}
	return false
}

// order returns -1, 0 or 1, or ok=false when a and b are not ordered.
func order(a, b runtime.Value) (int, bool) {
	if ai, af, aFloat, ok := numeric(a); ok {
		bi, bf, bFloat, ok := numeric(b)
		if !ok {
			return 0, false
		}
		if aFloat || bFloat {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			default:
				return 0, af == bf
			}
		}
		switch {
		case ai < bi:
			return -1, true
		case ai > bi:
			return 1, true
		default:
			return 0, true
		}
	}
	switch av := a.(type) {
	case runtime.StringValue:
		bv, ok := b.(runtime.StringValue)
		if !ok {
			return 0, false
		}
		return strings.Compare(av.Val, bv.Val), true
	case *runtime.ListValue:
		bv, ok := b.(*runtime.ListValue)
		if !ok {
			return 0, false
		}
		left, right := av.Snapshot(), bv.Snapshot()
		for k := 0; k < len(left) && k < len(right); k++ {
			if valuesEqual(left[k].Value(), right[k].Value()) {
				continue
			}
			return order(left[k].Value(), right[k].Value())
		}
		switch {
		case len(left) < len(right):
			return -1, true
		case len(left) > len(right):
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

func contains(container, item *runtime.ManagedObject) (bool, error) {
	switch c := container.Value().(type) {
	case *runtime.ListValue:
		for _, el := range c.Snapshot() {
			if el == item || valuesEqual(el.Value(), item.Value()) {
				return true, nil
			}
		}
		return false, nil
	case *runtime.DictValue:
		value, err := c.Get(item)
		if err != nil {
			return false, newRuntimeError(kindType, "%s", err.Error())
		}
		return value != nil, nil
	case runtime.StringValue:
		sub, ok := item.Value().(runtime.StringValue)
		if !ok {
			return false, newRuntimeError(kindType, "'in <string>' requires string as left operand, not %s", item.Value().TypeName())
		}
		return strings.Contains(c.Val, sub.Val), nil
	case runtime.RangeValue:
		n, _, isFloat, ok := numeric(item.Value())
		if !ok || isFloat {
			return false, nil
		}
		for k := int64(0); k < c.Len(); k++ {
			if c.At(k) == n {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, newRuntimeError(kindType, "argument of type '%s' is not iterable", container.Value().TypeName())
	}
}

func compare(op string, left, right *runtime.ManagedObject) (bool, error) {
	switch op {
	case "==":
		return valuesEqual(left.Value(), right.Value()), nil
	case "!=":
		return !valuesEqual(left.Value(), right.Value()), nil
	case "is":
		return identical(left, right), nil
	case "is not":
		return !identical(left, right), nil
	case "in":
		return contains(right, left)
	case "not in":
		found, err := contains(right, left)
		return !found, err
	case "<", "<=", ">", ">=":
		c, ok := order(left.Value(), right.Value())
		if !ok {
			if _, _, _, numL := numeric(left.Value()); numL {
				if _, _, _, numR := numeric(right.Value()); numR {
					// NaN compares false against everything
					return false, nil
				}
			}
			return false, newRuntimeError(kindType, "'%s' not supported between instances of '%s' and '%s'", op, left.Value().TypeName(), right.Value().TypeName())
		}
		switch op {
		case "<":
			return c < 0, nil
		case "<=":
			return c <= 0, nil
		case ">":
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	default:
		return false, newRuntimeError(kindSyntax, "unknown comparison operator %q", op)
	}
}

func (i *Interpreter) unaryOp(f *frame, op string, operand *runtime.ManagedObject) (*runtime.ManagedObject, error) {
	v := operand.Value()
	if op == "not" {
		return i.alloc(f, runtime.BoolValue{Val: !truthy(v)})
	}
	n, fl, isFloat, ok := numeric(v)
	if !ok {
		return nil, newRuntimeError(kindType, "bad operand type for unary %s: '%s'", op, v.TypeName())
	}
	switch op {
	case "-":
		if isFloat {
			return i.alloc(f, runtime.FloatValue{Val: -fl})
		}
		if n == math.MinInt64 {
			return nil, newRuntimeError(kindOverflow, "integer negation overflows")
		}
		return i.alloc(f, runtime.IntValue{Val: -n})
	case "+":
		if isFloat {
			return i.alloc(f, runtime.FloatValue{Val: fl})
		}
		return i.alloc(f, runtime.IntValue{Val: n})
	case "~":
		if isFloat {
			return nil, newRuntimeError(kindType, "bad operand type for unary ~: 'float'")
		}
		return i.alloc(f, runtime.IntValue{Val: ^n})
	default:
		return nil, newRuntimeError(kindSyntax, "unknown unary operator %q", op)
	}
}

func (i *Interpreter) binaryOp(f *frame, op string, left, right *runtime.ManagedObject) (*runtime.ManagedObject, error) {
	lv, rv := left.Value(), right.Value()
	if _, _, _, ok := numeric(lv); ok {
		if _, _, _, ok := numeric(rv); ok {
			result, err := arithmetic(op, lv, rv)
			if err != nil {
				return nil, err
			}
			return i.alloc(f, result)
		}
	}
	switch l := lv.(type) {
	case runtime.StringValue:
		switch r := rv.(type) {
		case runtime.StringValue:
			if op == "+" {
				return i.alloc(f, runtime.StringValue{Val: l.Val + r.Val})
			}
		case runtime.IntValue, runtime.BoolValue:
			if op == "*" {
				count, err := repeatCount(r, len(l.Val))
				if err != nil {
					return nil, err
				}
				return i.alloc(f, runtime.StringValue{Val: strings.Repeat(l.Val, count)})
			}
		}
	case *runtime.ListValue:
		switch r := rv.(type) {
		case *runtime.ListValue:
			if op == "+" {
				items := append(l.Snapshot(), r.Snapshot()...)
				return i.alloc(f, runtime.NewListValue(items))
			}
		case runtime.IntValue, runtime.BoolValue:
			if op == "*" {
				items := l.Snapshot()
				count, err := repeatCount(r, len(items))
				if err != nil {
					return nil, err
				}
				out := make([]*runtime.ManagedObject, 0, count*len(items))
				for k := 0; k < count; k++ {
					out = append(out, items...)
				}
				return i.alloc(f, runtime.NewListValue(out))
			}
		}
	case runtime.IntValue, runtime.BoolValue:
		if op == "*" {
			// n * seq is seq * n
			switch rv.(type) {
			case runtime.StringValue, *runtime.ListValue:
				return i.binaryOp(f, op, right, left)
			}
		}
	}
	return nil, newRuntimeError(kindType, "unsupported operand type(s) for %s: '%s' and '%s'", op, lv.TypeName(), rv.TypeName())
}

// maxSequenceLength caps string and list repetition.
const maxSequenceLength = 1 << 31

func repeatCount(v runtime.Value, unit int) (int, error) {
	n, _, _, _ := numeric(v)
	if n <= 0 || unit == 0 {
		return 0, nil
	}
	count, err := safecast.Conv[int](n)
	if err != nil || int64(count)*int64(unit) > maxSequenceLength {
		return 0, newRuntimeError(kindMemory, "repeated sequence is too long")
	}
	return count, nil
}

func arithmetic(op string, lv, rv runtime.Value) (runtime.Value, error) {
	li, lf, lFloat, _ := numeric(lv)
	ri, rf, rFloat, _ := numeric(rv)
	if op == "/" {
		if rf == 0 {
			return nil, newRuntimeError(kindZeroDivision, "division by zero")
		}
		return runtime.FloatValue{Val: lf / rf}, nil
	}
	if lFloat || rFloat {
		return floatArithmetic(op, lf, rf)
	}
	switch op {
	case "+":
		sum := li + ri
		if (li > 0 && ri > 0 && sum < 0) || (li < 0 && ri < 0 && sum >= 0) {
			return nil, newRuntimeError(kindOverflow, "integer addition overflows")
		}
		return runtime.IntValue{Val: sum}, nil
	case "-":
		diff := li - ri
		if (li >= 0 && ri < 0 && diff < 0) || (li < 0 && ri > 0 && diff >= 0) {
			return nil, newRuntimeError(kindOverflow, "integer subtraction overflows")
		}
		return runtime.IntValue{Val: diff}, nil
	case "*":
		product, ok := mulInt(li, ri)
		if !ok {
			return nil, newRuntimeError(kindOverflow, "integer multiplication overflows")
		}
		return runtime.IntValue{Val: product}, nil
	case "//", "%":
		if ri == 0 {
			return nil, newRuntimeError(kindZeroDivision, "integer division or modulo by zero")
		}
		if li == math.MinInt64 && ri == -1 {
			if op == "%" {
				return runtime.IntValue{Val: 0}, nil
			}
			return nil, newRuntimeError(kindOverflow, "integer division overflows")
		}
		q, r := li/ri, li%ri
		if r != 0 && (r < 0) != (ri < 0) {
			q--
			r += ri
		}
		if op == "//" {
			return runtime.IntValue{Val: q}, nil
		}
		return runtime.IntValue{Val: r}, nil
	case "**":
		if ri < 0 {
			return floatArithmetic(op, lf, rf)
		}
		result := int64(1)
		base := li
		for exp := ri; exp > 0; exp >>= 1 {
			var ok bool
			if exp&1 == 1 {
				if result, ok = mulInt(result, base); !ok {
					return nil, newRuntimeError(kindOverflow, "integer power overflows")
				}
			}
			if exp > 1 {
				if base, ok = mulInt(base, base); !ok {
					return nil, newRuntimeError(kindOverflow, "integer power overflows")
				}
			}
		}
		return runtime.IntValue{Val: result}, nil
	default:
		return nil, newRuntimeError(kindType, "unsupported operand type(s) for %s: '%s' and '%s'", op, lv.TypeName(), rv.TypeName())
	}
}

func mulInt(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	product := a * b
	if product/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	return product, true
}

func floatArithmetic(op string, l, r float64) (runtime.Value, error) {
	switch op {
	case "+":
		return runtime.FloatValue{Val: l + r}, nil
	case "-":
		return runtime.FloatValue{Val: l - r}, nil
	case "*":
		return runtime.FloatValue{Val: l * r}, nil
	case "//":
		if r == 0 {
			return nil, newRuntimeError(kindZeroDivision, "float floor division by zero")
		}
		return runtime.FloatValue{Val: math.Floor(l / r)}, nil
	case "%":
		if r == 0 {
			return nil, newRuntimeError(kindZeroDivision, "float modulo")
		}
		m := math.Mod(l, r)
		if m != 0 && (m < 0) != (r < 0) {
			m += r
		}
		return runtime.FloatValue{Val: m}, nil
	case "**":
		if l == 0 && r < 0 {
			return nil, newRuntimeError(kindZeroDivision, "0.0 cannot be raised to a negative power")
		}
		return runtime.FloatValue{Val: math.Pow(l, r)}, nil
	default:
		return nil, newRuntimeError(kindType, "unsupported operand type(s) for %s: 'float' and 'float'", op)
	}
}

// normalizeIndex converts a subscript to a position in [0, n), counting
// negative indices from the end.
func normalizeIndex(v runtime.Value, n int, what string) (int, error) {
	raw, _, isFloat, ok := numeric(v)
	if !ok || isFloat {
		return 0, newRuntimeError(kindType, "%s indices must be integers, not %s", what, v.TypeName())
	}
	idx, err := safecast.Conv[int](raw)
	if err != nil {
		return 0, newRuntimeError(kindIndex, "cannot fit index into an index-sized integer")
	}
	if idx < 0 {
		idx += n
	}
	if idx < 0 || idx >= n {
		return 0, newRuntimeError(kindIndex, "%s index out of range", what)
	}
	return idx, nil
}

func lenToInt(n int64) (int, error) {
	out, err := safecast.Conv[int](n)
	if err != nil {
		return 0, newRuntimeError(kindOverflow, "length %d does not fit an int", n)
	}
	return out, nil
}

// Repr renders v the way the REPL echoes values.
func Repr(v runtime.Value) string {
	return repr(v)
}
