package parser

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/tarvlad/yapvm-sub000/pkg/ast"
)

func checkSpan(t testing.TB, label string, span ast.Span, startLine, startCol, endLine, endCol int) {
	t.Helper()
	if span.Start.Line != startLine || span.Start.Column != startCol {
		t.Fatalf("%s start span mismatch: got (%d,%d), want (%d,%d)", label, span.Start.Line, span.Start.Column, startLine, startCol)
	}
	if span.End.Line != endLine || span.End.Column != endCol {
		t.Fatalf("%s end span mismatch: got (%d,%d), want (%d,%d)", label, span.End.Line, span.End.Column, endLine, endCol)
	}
}

// assertModulesEqual compares through JSON so spans do not take part.
func assertModulesEqual(t testing.TB, expected interface{}, actual interface{}) {
	t.Helper()
	if reflect.DeepEqual(expected, actual) {
		return
	}
	wantJSON, _ := json.Marshal(expected)
	gotJSON, _ := json.Marshal(actual)
	var wantAny interface{}
	var gotAny interface{}
	_ = json.Unmarshal(wantJSON, &wantAny)
	_ = json.Unmarshal(gotJSON, &gotAny)
	if reflect.DeepEqual(wantAny, gotAny) {
		return
	}
	wantPretty, _ := json.MarshalIndent(wantAny, "", "  ")
	gotPretty, _ := json.MarshalIndent(gotAny, "", "  ")
	t.Fatalf("module mismatch\nexpected: %s\n   actual: %s", wantPretty, gotPretty)
}

func mustParse(t *testing.T, source string) *ast.Module {
	t.Helper()
	p, err := NewModuleParser()
	if err != nil {
		t.Fatalf("NewModuleParser error: %v", err)
	}
	defer p.Close()

	mod, err := p.ParseModule([]byte(source))
	if err != nil {
		t.Fatalf("ParseModule error: %v", err)
	}
	return mod
}

func TestParseThreadedSumProgram(t *testing.T) {
	source := `import threading

def work(arr, lo, hi, out):
    s = 0
    i = lo
    while i < hi:
        s += arr[i]
        i += 1
    out.append(s)

arr = [1, 2, 3, 4]
out = []
t = __yapvm_thread(work, arr, 0, 4, out)
__yapvm_thread_join(t)
print(out[0])
`
	mod := mustParse(t, source)

	expected := ast.Mod(
		ast.NewImportStatement("threading"),
		ast.Def("work", []string{"arr", "lo", "hi", "out"},
			ast.Assign(ast.ID("s"), ast.Int(0)),
			ast.Assign(ast.ID("i"), ast.ID("lo")),
			ast.While(ast.Cmp("<", ast.ID("i"), ast.ID("hi")),
				ast.AugAssign("+", ast.ID("s"), ast.Index(ast.ID("arr"), ast.ID("i"))),
				ast.AugAssign("+", ast.ID("i"), ast.Int(1)),
			),
			ast.Call(ast.Attr(ast.ID("out"), "append"), ast.ID("s")),
		),
		ast.Assign(ast.ID("arr"), ast.List(ast.Int(1), ast.Int(2), ast.Int(3), ast.Int(4))),
		ast.Assign(ast.ID("out"), ast.List()),
		ast.Assign(ast.ID("t"), ast.CallName("__yapvm_thread", ast.ID("work"), ast.ID("arr"), ast.Int(0), ast.Int(4), ast.ID("out"))),
		ast.CallName("__yapvm_thread_join", ast.ID("t")),
		ast.CallName("print", ast.Index(ast.ID("out"), ast.Int(0))),
	)
	assertModulesEqual(t, expected, mod)
}

func TestParseElifChainNests(t *testing.T) {
	source := `if x < 0:
    y = -1
elif x == 0:
    y = 0
else:
    y = 1
`
	mod := mustParse(t, source)
	expected := ast.Mod(
		ast.If(ast.Cmp("<", ast.ID("x"), ast.Int(0)),
			ast.Block(ast.Assign(ast.ID("y"), ast.Un("-", ast.Int(1)))),
			ast.If(ast.Cmp("==", ast.ID("x"), ast.Int(0)),
				ast.Block(ast.Assign(ast.ID("y"), ast.Int(0))),
				ast.Assign(ast.ID("y"), ast.Int(1)),
			),
		),
	)
	assertModulesEqual(t, expected, mod)
}

func TestParseChainedComparisonAndBooleans(t *testing.T) {
	mod := mustParse(t, "ok = 0 <= i < n and not (k in d) or k not in d\n")
	expected := ast.Mod(
		ast.Assign(ast.ID("ok"),
			ast.Or(
				ast.And(
					ast.NewCompareExpression([]ast.Expression{ast.Int(0), ast.ID("i"), ast.ID("n")}, []string{"<=", "<"}),
					ast.Un("not", ast.Cmp("in", ast.ID("k"), ast.ID("d"))),
				),
				ast.Cmp("not in", ast.ID("k"), ast.ID("d")),
			),
		),
	)
	assertModulesEqual(t, expected, mod)
}

func TestParseClassAndLiterals(t *testing.T) {
	source := `class Point:
    def __init__(self, x, y):
        self.x = x
        self.y = y

p = Point(1.5, None)
d = {"a": True, 2: 'b\tc'}
s = "x" "y"
n = 0x1F + 1_000
for k in range(3):
    continue
`
	mod := mustParse(t, source)
	expected := ast.Mod(
		ast.Class("Point",
			ast.Def("__init__", []string{"self", "x", "y"},
				ast.Assign(ast.Attr(ast.ID("self"), "x"), ast.ID("x")),
				ast.Assign(ast.Attr(ast.ID("self"), "y"), ast.ID("y")),
			),
		),
		ast.Assign(ast.ID("p"), ast.CallName("Point", ast.Flt(1.5), ast.None())),
		ast.Assign(ast.ID("d"), ast.Dict(
			ast.Entry(ast.Str("a"), ast.Bool(true)),
			ast.Entry(ast.Int(2), ast.Str("b\tc")),
		)),
		ast.Assign(ast.ID("s"), ast.Str("xy")),
		ast.Assign(ast.ID("n"), ast.Bin("+", ast.Int(31), ast.Int(1000))),
		ast.For("k", ast.CallName("range", ast.Int(3)), ast.Continue()),
	)
	assertModulesEqual(t, expected, mod)
}

func TestParseRecordsSpans(t *testing.T) {
	mod := mustParse(t, "x = 1\nwhile x:\n    x = x - 1\n")
	if len(mod.Body) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(mod.Body))
	}
	checkSpan(t, "assignment", mod.Body[0].Span(), 1, 1, 1, 6)
	loop, ok := mod.Body[1].(*ast.WhileLoop)
	if !ok {
		t.Fatalf("expected while loop, got %T", mod.Body[1])
	}
	checkSpan(t, "loop body", loop.Body[0].Span(), 3, 5, 3, 14)
}

func TestUnescape(t *testing.T) {
	cases := map[string]string{
		`plain`:      "plain",
		`a\nb`:       "a\nb",
		`q\'s\"`:     `q's"`,
		`\x41\u00e9`: "A\u00e9",
		`keep\d`:     `keep\d`,
	}
	for in, want := range cases {
		if got := unescape(in); got != want {
			t.Fatalf("unescape(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseSyntaxErrorHasLocation(t *testing.T) {
	p, err := NewModuleParser()
	if err != nil {
		t.Fatalf("NewModuleParser error: %v", err)
	}
	defer p.Close()

	_, err = p.ParseModule([]byte("x = 1\ndef f(:\n    pass\n"))
	if err == nil {
		t.Fatalf("expected syntax error")
	}
	var synErr *SyntaxError
	if !errors.As(err, &synErr) {
		t.Fatalf("expected *SyntaxError, got %T", err)
	}
	if synErr.Pos.Line < 2 {
		t.Fatalf("expected error on line 2 or later, got %+v", synErr.Pos)
	}
}

func TestParseRejectsUnsupportedForms(t *testing.T) {
	cases := map[string]string{
		"lambda":     "f = lambda x: x\n",
		"slice":      "y = xs[1:2]\n",
		"fstring":    "s = f\"{x}\"\n",
		"kwargs":     "f(a=1)\n",
		"tuple":      "a, b = 1, 2\n",
		"while-else": "while x:\n    pass\nelse:\n    pass\n",
	}
	for name, source := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSource([]byte(source))
			if err == nil {
				t.Fatalf("expected %s to be rejected", name)
			}
			if !strings.Contains(err.Error(), "unsupported") {
				t.Fatalf("expected unsupported error, got %v", err)
			}
		})
	}
}

func TestSyntaxErrorsCarryPythonKinds(t *testing.T) {
	_, err := ParseSource([]byte("x = 99999999999999999999\n"))
	var synErr *SyntaxError
	if !errors.As(err, &synErr) {
		t.Fatalf("expected *SyntaxError, got %T (%v)", err, err)
	}
	if synErr.Kind != "SyntaxError" || synErr.Pos != (ast.Position{Line: 1, Column: 5}) {
		t.Fatalf("unexpected error %+v", synErr)
	}
	if got := synErr.Error(); got != "1:5: SyntaxError: integer literal 99999999999999999999 out of range" {
		t.Fatalf("unexpected message %q", got)
	}

	for name, source := range map[string]string{
		"colon":  "if x\n    pass\n",
		"paren":  "print(1\n",
		"open":   "x = 1\ny = (\n",
	} {
		_, err := ParseSource([]byte(source))
		if !errors.As(err, &synErr) {
			t.Fatalf("%s: expected *SyntaxError, got %T (%v)", name, err, err)
		}
		if synErr.Pos.Line == 0 || synErr.Msg == "" {
			t.Fatalf("%s: expected a positioned message, got %+v", name, synErr)
		}
		if synErr.Kind != "SyntaxError" && synErr.Kind != "IndentationError" {
			t.Fatalf("%s: unexpected kind %q", name, synErr.Kind)
		}
	}
}

func TestErrorAtKeepsExistingPositions(t *testing.T) {
	inner := &SyntaxError{Kind: "SyntaxError", Msg: "unsupported slices", Pos: ast.Position{Line: 3, Column: 7}}
	if got := errorAt(nil, inner); got != error(inner) {
		t.Fatalf("expected the positioned error to pass through, got %v", got)
	}
	if got := errorAt(nil, errors.New("parser: malformed comparison")).Error(); got != "SyntaxError: malformed comparison" {
		t.Fatalf("unexpected wrapped message %q", got)
	}
}
