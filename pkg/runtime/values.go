package runtime

import (
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/tarvlad/yapvm-sub000/pkg/ast"
	"github.com/tarvlad/yapvm-sub000/pkg/kvstore"
)

// Kind identifies the runtime value category.
type Kind int

const (
	KindNone Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindDict
	KindObject
	KindClass
	KindFunction
	KindNativeFunction
	KindBoundMethod
	KindThread
	KindRange
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "NoneType"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "str"
	case KindList:
		return "list"
	case KindDict:
		return "dict"
	case KindObject:
		return "object"
	case KindClass:
		return "type"
	case KindFunction:
		return "function"
	case KindNativeFunction:
		return "builtin_function_or_method"
	case KindBoundMethod:
		return "method"
	case KindThread:
		return "thread"
	case KindRange:
		return "range"
	default:
		return fmt.Sprintf("unknown_kind_%d", int(k))
	}
}

// Value is the capability set every heap value exposes. The collector only
// ever looks at IsCollection and References.
type Value interface {
	Kind() Kind
	TypeName() string
	IsCollection() bool
	References() []*ManagedObject
}

// ScopeHolder is implemented by values that keep a lexical scope alive.
type ScopeHolder interface {
	CapturedScope() *Scope
}

type leaf struct{}

func (leaf) IsCollection() bool           { return false }
func (leaf) References() []*ManagedObject { return nil }

type NoneValue struct{ leaf }

func (NoneValue) Kind() Kind       { return KindNone }
func (NoneValue) TypeName() string { return KindNone.String() }

type BoolValue struct {
	leaf
	Val bool
}

func (BoolValue) Kind() Kind       { return KindBool }
func (BoolValue) TypeName() string { return KindBool.String() }

type IntValue struct {
	leaf
	Val int64
}

func (IntValue) Kind() Kind       { return KindInt }
func (IntValue) TypeName() string { return KindInt.String() }

type FloatValue struct {
	leaf
	Val float64
}

func (FloatValue) Kind() Kind       { return KindFloat }
func (FloatValue) TypeName() string { return KindFloat.String() }

type StringValue struct {
	leaf
	Val string
}

func (StringValue) Kind() Kind       { return KindString }
func (StringValue) TypeName() string { return KindString.String() }

// ListValue is shared between workers when passed as an argument, so its
// element slice is guarded.
type ListValue struct {
	mu       sync.Mutex
	elements []*ManagedObject
}

func NewListValue(elements []*ManagedObject) *ListValue {
	return &ListValue{elements: elements}
}

func (*ListValue) Kind() Kind                     { return KindList }
func (*ListValue) TypeName() string               { return KindList.String() }
func (*ListValue) IsCollection() bool             { return true }
func (l *ListValue) References() []*ManagedObject { return l.Snapshot() }

func (l *ListValue) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.elements)
}

func (l *ListValue) At(i int) (*ManagedObject, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.elements) {
		return nil, false
	}
	return l.elements[i], true
}

func (l *ListValue) Set(i int, obj *ManagedObject) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.elements) {
		return false
	}
	l.elements[i] = obj
	return true
}

func (l *ListValue) Append(objs ...*ManagedObject) {
	l.mu.Lock()
	l.elements = append(l.elements, objs...)
	l.mu.Unlock()
}

func (l *ListValue) Pop() (*ManagedObject, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.elements) == 0 {
		return nil, false
	}
	last := l.elements[len(l.elements)-1]
	l.elements[len(l.elements)-1] = nil
	l.elements = l.elements[:len(l.elements)-1]
	return last, true
}

// RemoveAt deletes and returns element i.
func (l *ListValue) RemoveAt(i int) (*ManagedObject, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.elements) {
		return nil, false
	}
	item := l.elements[i]
	l.elements = slices.Delete(l.elements, i, i+1)
	return item, true
}

// Snapshot copies the element slice.
func (l *ListValue) Snapshot() []*ManagedObject {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*ManagedObject, len(l.elements))
	copy(out, l.elements)
	return out
}

// DictKey is the hashable projection of a primitive value. Integral floats
// collapse onto the matching int key.
type DictKey struct {
	kind Kind
	i    int64
	f    float64
	s    string
}

// KeyOf projects v onto a dict key.
func KeyOf(v Value) (DictKey, error) {
	switch val := v.(type) {
	case NoneValue:
		return DictKey{kind: KindNone}, nil
	case BoolValue:
		if val.Val {
			return DictKey{kind: KindInt, i: 1}, nil
		}
		return DictKey{kind: KindInt}, nil
	case IntValue:
		return DictKey{kind: KindInt, i: val.Val}, nil
	case FloatValue:
		if val.Val == math.Trunc(val.Val) && math.Abs(val.Val) < 1<<62 {
			return DictKey{kind: KindInt, i: int64(val.Val)}, nil
		}
		return DictKey{kind: KindFloat, f: val.Val}, nil
	case StringValue:
		return DictKey{kind: KindString, s: val.Val}, nil
	default:
		return DictKey{}, fmt.Errorf("unhashable type: '%s'", v.TypeName())
	}
}

type dictItem struct {
	key   *ManagedObject
	value *ManagedObject
}

// DictValue keeps the key object alive alongside the value so iteration can
// hand the original key back.
type DictValue struct {
	mu    sync.Mutex
	items *kvstore.Store[DictKey, dictItem]
}

func NewDictValue() *DictValue {
	return &DictValue{items: kvstore.New[DictKey, dictItem]()}
}

func (*DictValue) Kind() Kind         { return KindDict }
func (*DictValue) TypeName() string   { return KindDict.String() }
func (*DictValue) IsCollection() bool { return true }

func (d *DictValue) References() []*ManagedObject {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*ManagedObject, 0, 2*d.items.Len())
	for _, item := range d.items.Values() {
		out = append(out, item.key, item.value)
	}
	return out
}

func (d *DictValue) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.items.Len()
}

func (d *DictValue) Get(key *ManagedObject) (*ManagedObject, error) {
	k, err := KeyOf(key.Value())
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	item, ok := d.items.Get(k)
	if !ok {
		return nil, nil
	}
	return item.value, nil
}

func (d *DictValue) Set(key, value *ManagedObject) error {
	k, err := KeyOf(key.Value())
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.items.Find(k); ok {
		el.Value.value = value
		return nil
	}
	d.items.Add(k, dictItem{key: key, value: value})
	return nil
}

// Keys returns the key objects in slot order.
func (d *DictValue) Keys() []*ManagedObject {
	d.mu.Lock()
	defer d.mu.Unlock()
	items := d.items.Values()
	out := make([]*ManagedObject, len(items))
	for i, item := range items {
		out[i] = item.key
	}
	return out
}

// ClassValue is a user class. Methods close over the scope the class was
// defined in and are fixed once the class body has run. Class-level object
// bindings live in attrs, which any worker may rebind.
type ClassValue struct {
	mu      sync.Mutex
	Name    string
	Methods *kvstore.Store[string, *FunctionValue]
	attrs   *kvstore.Store[string, *ManagedObject]
	Closure *Scope
}

func NewClassValue(name string, closure *Scope) *ClassValue {
	return &ClassValue{
		Name:    name,
		Methods: kvstore.NewWithOptions[string, *FunctionValue](kvstore.StringOptions()),
		attrs:   kvstore.NewWithOptions[string, *ManagedObject](kvstore.StringOptions()),
		Closure: closure,
	}
}

func (*ClassValue) Kind() Kind              { return KindClass }
func (c *ClassValue) TypeName() string      { return KindClass.String() }
func (*ClassValue) IsCollection() bool      { return false }
func (c *ClassValue) CapturedScope() *Scope { return c.Closure }

func (c *ClassValue) References() []*ManagedObject {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attrs.Values()
}

func (c *ClassValue) Attr(name string) (*ManagedObject, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attrs.Get(name)
}

func (c *ClassValue) SetAttr(name string, value *ManagedObject) {
	c.mu.Lock()
	c.attrs.Set(name, value)
	c.mu.Unlock()
}

// ObjectValue is an instance of a user class.
type ObjectValue struct {
	mu     sync.Mutex
	Class  *ManagedObject
	fields *kvstore.Store[string, *ManagedObject]
}

func NewObjectValue(class *ManagedObject) *ObjectValue {
	return &ObjectValue{
		Class:  class,
		fields: kvstore.NewWithOptions[string, *ManagedObject](kvstore.StringOptions()),
	}
}

func (*ObjectValue) Kind() Kind { return KindObject }

func (o *ObjectValue) TypeName() string {
	if cls, ok := o.Class.Value().(*ClassValue); ok {
		return cls.Name
	}
	return KindObject.String()
}

func (*ObjectValue) IsCollection() bool { return false }

func (o *ObjectValue) References() []*ManagedObject {
	o.mu.Lock()
	defer o.mu.Unlock()
	refs := make([]*ManagedObject, 0, o.fields.Len()+1)
	refs = append(refs, o.Class)
	return append(refs, o.fields.Values()...)
}

func (o *ObjectValue) Field(name string) (*ManagedObject, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fields.Get(name)
}

func (o *ObjectValue) SetField(name string, value *ManagedObject) {
	o.mu.Lock()
	o.fields.Set(name, value)
	o.mu.Unlock()
}

func (o *ObjectValue) FieldNames() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fields.Keys()
}

// Method resolves name on the instance's class.
func (o *ObjectValue) Method(name string) (*FunctionValue, bool) {
	cls, ok := o.Class.Value().(*ClassValue)
	if !ok {
		return nil, false
	}
	return cls.Methods.Get(name)
}

type FunctionValue struct {
	Def     *ast.FunctionDefinition
	Closure *Scope
}

func (*FunctionValue) Kind() Kind                   { return KindFunction }
func (*FunctionValue) TypeName() string             { return KindFunction.String() }
func (*FunctionValue) IsCollection() bool           { return false }
func (*FunctionValue) References() []*ManagedObject { return nil }
func (f *FunctionValue) CapturedScope() *Scope      { return f.Closure }

// NativeCallContext provides hooks for native functions.
type NativeCallContext struct {
	Scope *Scope
	State any
}

type NativeFunc func(*NativeCallContext, []*ManagedObject) (*ManagedObject, error)

// NativeFunctionValue is a builtin. Arity -1 accepts any argument count.
type NativeFunctionValue struct {
	leaf
	Name  string
	Arity int
	Impl  NativeFunc
}

func (*NativeFunctionValue) Kind() Kind       { return KindNativeFunction }
func (*NativeFunctionValue) TypeName() string { return KindNativeFunction.String() }

// BoundMethodValue pairs a receiver with either a *FunctionValue or a
// *NativeFunctionValue.
type BoundMethodValue struct {
	Receiver *ManagedObject
	Method   Value
}

func (*BoundMethodValue) Kind() Kind         { return KindBoundMethod }
func (*BoundMethodValue) TypeName() string   { return KindBoundMethod.String() }
func (*BoundMethodValue) IsCollection() bool { return false }

func (b *BoundMethodValue) References() []*ManagedObject {
	return []*ManagedObject{b.Receiver}
}

func (b *BoundMethodValue) CapturedScope() *Scope {
	if holder, ok := b.Method.(ScopeHolder); ok {
		return holder.CapturedScope()
	}
	return nil
}

// ThreadHandle is an opaque worker id issued by the thread registry.
type ThreadHandle uint64

type ThreadValue struct {
	leaf
	Handle ThreadHandle
}

func (ThreadValue) Kind() Kind       { return KindThread }
func (ThreadValue) TypeName() string { return KindThread.String() }

// RangeValue is the lazy arithmetic sequence built by range().
type RangeValue struct {
	leaf
	Start int64
	Stop  int64
	Step  int64
}

func (RangeValue) Kind() Kind       { return KindRange }
func (RangeValue) TypeName() string { return KindRange.String() }

func (r RangeValue) Len() int64 {
	switch {
	case r.Step > 0 && r.Start < r.Stop:
		return (r.Stop - r.Start + r.Step - 1) / r.Step
	case r.Step < 0 && r.Start > r.Stop:
		return (r.Start - r.Stop - r.Step - 1) / -r.Step
	default:
		return 0
	}
}

// At returns the k-th element; k must be in [0, Len()).
func (r RangeValue) At(k int64) int64 {
	return r.Start + k*r.Step
}
