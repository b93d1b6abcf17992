package interpreter

import (
	"context"
	"strings"
	"testing"

	"github.com/tarvlad/yapvm-sub000/pkg/ast"
)

func TestUndefinedNameCarriesStatementPosition(t *testing.T) {
	_, _, _, err := runProgram(t, Config{}, `
x = 1
y = x + undefined_name
`)
	rtErr := expectRuntimeError(t, err, kindName)
	if rtErr.Pos.Line != 2 || rtErr.Pos.Column != 1 {
		t.Fatalf("expected position 2:1, got %d:%d", rtErr.Pos.Line, rtErr.Pos.Column)
	}
	if !strings.Contains(rtErr.Error(), "undefined_name") {
		t.Fatalf("expected the name in the message, got %q", rtErr.Error())
	}
}

func TestErrorPositionIsInnermostStatement(t *testing.T) {
	_, _, _, err := runProgram(t, Config{}, `
def f(a):
    return a // 0

f(1)
`)
	rtErr := expectRuntimeError(t, err, kindZeroDivision)
	if rtErr.Pos.Line != 2 || rtErr.Pos.Column != 5 {
		t.Fatalf("expected position 2:5, got %d:%d", rtErr.Pos.Line, rtErr.Pos.Column)
	}
}

func TestRuntimeErrorKinds(t *testing.T) {
	cases := []struct {
		src  string
		kind runtimeErrorKind
	}{
		{`"a" + 1`, kindType},
		{`[1, 2][5]`, kindIndex},
		{`{"a": 1}["b"]`, kindKey},
		{`None.missing`, kindAttribute},
		{`int("nope")`, kindValue},
		{`9223372036854775807 + 1`, kindOverflow},
		{`range(1, 5, 0)`, kindValue},
		{`[].pop()`, kindIndex},
		{`len(1)`, kindType},
		{`5()`, kindType},
	}
	for _, tc := range cases {
		_, _, _, err := runProgram(t, Config{}, tc.src+"\n")
		expectRuntimeError(t, err, tc.kind)
	}
}

func TestRecursionLimit(t *testing.T) {
	_, _, _, err := runProgram(t, Config{}, `
def down(n):
    return down(n + 1)

down(0)
`)
	expectRuntimeError(t, err, kindRecursion)
}

func TestArityMismatch(t *testing.T) {
	_, _, _, err := runProgram(t, Config{}, `
def pair(a, b):
    return a

pair(1)
`)
	rtErr := expectRuntimeError(t, err, kindType)
	if !strings.Contains(rtErr.Message, "takes 2 positional arguments but 1 were given") {
		t.Fatalf("unexpected message %q", rtErr.Message)
	}
}

func TestBreakOutsideLoop(t *testing.T) {
	interp := New(Config{})
	_, err := interp.Run(context.Background(), ast.Mod(ast.Break()))
	rtErr := expectRuntimeError(t, err, kindSyntax)
	if rtErr.Message != "'break' outside loop" {
		t.Fatalf("unexpected message %q", rtErr.Message)
	}
}

func TestTopLevelReturnEndsModule(t *testing.T) {
	out, _ := mustRun(t, `
print("before")
return
print("after")
`)
	if out != "before\n" {
		t.Fatalf("unexpected output %q", out)
	}
}
