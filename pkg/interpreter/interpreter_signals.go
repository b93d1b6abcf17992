package interpreter

import (
	"errors"

	"github.com/tarvlad/yapvm-sub000/pkg/runtime"
)

type breakSignal struct{}

func (breakSignal) Error() string { return "break" }

type continueSignal struct{}

func (continueSignal) Error() string { return "continue" }

type returnSignal struct {
	value *runtime.ManagedObject
}

func (r returnSignal) Error() string {
	return "return"
}

// controlFlowOutside turns a break or continue that escaped every loop into
// a runtime error.
func controlFlowOutside(err error) error {
	if errors.As(err, new(breakSignal)) {
		return newRuntimeError(kindSyntax, "'break' outside loop")
	}
	if errors.As(err, new(continueSignal)) {
		return newRuntimeError(kindSyntax, "'continue' not properly in loop")
	}
	return err
}
