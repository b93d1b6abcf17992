package interpreter

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tarvlad/yapvm-sub000/pkg/ast"
	"github.com/tarvlad/yapvm-sub000/pkg/parser"
	"github.com/tarvlad/yapvm-sub000/pkg/runtime"
)

func parseProgram(t *testing.T, src string) *ast.Module {
	t.Helper()
	mod, err := parser.ParseSource([]byte(strings.TrimLeft(src, "\n")))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return mod
}

// runProgram runs src to completion and returns what it printed, its last
// value and the interpreter for post-mortem checks.
func runProgram(t *testing.T, cfg Config, src string) (string, runtime.Value, *Interpreter, error) {
	t.Helper()
	mod := parseProgram(t, src)
	var out bytes.Buffer
	cfg.Stdout = &out
	interp := New(cfg)
	value, err := interp.Run(context.Background(), mod)
	return out.String(), value, interp, err
}

func mustRun(t *testing.T, src string) (string, runtime.Value) {
	t.Helper()
	out, value, _, err := runProgram(t, Config{}, src)
	if err != nil {
		t.Fatalf("program failed: %v\noutput so far:\n%s", err, out)
	}
	return out, value
}

func expectRuntimeError(t *testing.T, err error, kind runtimeErrorKind) *RuntimeError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got success", kind)
	}
	var rtErr *RuntimeError
	if !errors.As(err, &rtErr) {
		t.Fatalf("expected *RuntimeError, got %T: %v", err, err)
	}
	if rtErr.Kind != string(kind) {
		t.Fatalf("expected %s, got %v", kind, rtErr)
	}
	return rtErr
}
