package interpreter

import (
	"errors"
	"fmt"

	"github.com/tarvlad/yapvm-sub000/pkg/ast"
	"github.com/tarvlad/yapvm-sub000/pkg/gc"
	"github.com/tarvlad/yapvm-sub000/pkg/runtime"
)

type runtimeErrorKind string

const (
	kindName           runtimeErrorKind = "NameError"
	kindType           runtimeErrorKind = "TypeError"
	kindValue          runtimeErrorKind = "ValueError"
	kindIndex          runtimeErrorKind = "IndexError"
	kindKey            runtimeErrorKind = "KeyError"
	kindAttribute      runtimeErrorKind = "AttributeError"
	kindZeroDivision   runtimeErrorKind = "ZeroDivisionError"
	kindOverflow       runtimeErrorKind = "OverflowError"
	kindMemory         runtimeErrorKind = "MemoryError"
	kindRecursion      runtimeErrorKind = "RecursionError"
	kindSyntax         runtimeErrorKind = "SyntaxError"
	kindNotImplemented runtimeErrorKind = "NotImplementedError"
	kindThread         runtimeErrorKind = "ThreadError"
	kindIO             runtimeErrorKind = "OSError"
)

// RuntimeError is a program-level failure. Pos is the start of the innermost
// statement being executed when the error was raised.
type RuntimeError struct {
	Kind    string
	Message string
	Pos     ast.Position
}

func (e *RuntimeError) Error() string {
	if e.Pos.Line == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%d:%d: %s: %s", e.Pos.Line, e.Pos.Column, e.Kind, e.Message)
}

func newRuntimeError(kind runtimeErrorKind, format string, args ...any) *RuntimeError {
	return &RuntimeError{Kind: string(kind), Message: fmt.Sprintf(format, args...)}
}

// attachPosition fills in the statement position on the first runtime error
// crossing a statement boundary, and converts lower-level errors.
func attachPosition(err error, node ast.Node) error {
	if err == nil {
		return nil
	}
	switch err.(type) {
	case breakSignal, continueSignal, returnSignal:
		return err
	}
	var rtErr *RuntimeError
	if !errors.As(err, &rtErr) {
		rtErr = convertError(err)
	}
	if rtErr.Pos.Line == 0 && node != nil {
		rtErr.Pos = node.Span().Start
	}
	return rtErr
}

func convertError(err error) *RuntimeError {
	var lookupErr *runtime.LookupError
	switch {
	case errors.As(err, &lookupErr):
		return newRuntimeError(kindName, "%s", lookupErr.Error())
	case errors.Is(err, gc.ErrHeapExhausted):
		return newRuntimeError(kindMemory, "%s", err.Error())
	default:
		return newRuntimeError(kindType, "%s", err.Error())
	}
}
