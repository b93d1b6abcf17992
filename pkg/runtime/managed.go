package runtime

import "fmt"

// ManagedObject is a heap value plus its reachability mark. Objects are built
// by the collector and released only by its sweep; nothing else frees one.
type ManagedObject struct {
	value  Value
	marked bool
	freed  bool
}

// NewManagedObject wraps v without registering it anywhere. Interpreter code
// allocates through the collector instead.
func NewManagedObject(v Value) *ManagedObject {
	return &ManagedObject{value: v}
}

// FatalError reports use of the heap after the collector released an object.
type FatalError struct {
	Op     string
	Detail string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("runtime: %s: %s", e.Op, e.Detail)
}

func (o *ManagedObject) Value() Value {
	if o == nil {
		panic(&FatalError{Op: "value", Detail: "nil managed object"})
	}
	if o.freed {
		panic(&FatalError{Op: "value", Detail: "use of collected object"})
	}
	return o.value
}

func (o *ManagedObject) Marked() bool { return o.marked }
func (o *ManagedObject) Mark()        { o.marked = true }
func (o *ManagedObject) Unmark()      { o.marked = false }
func (o *ManagedObject) Freed() bool  { return o.freed }

// Release drops the payload. Only the collector's sweep calls it.
func (o *ManagedObject) Release() {
	if o.freed {
		panic(&FatalError{Op: "release", Detail: "object released twice"})
	}
	o.value = nil
	o.freed = true
	o.marked = false
}
