package interpreter

import (
	"context"
	"testing"

	"github.com/tarvlad/yapvm-sub000/pkg/runtime"
)

func TestArithmeticFollowsFloorSemantics(t *testing.T) {
	out, _ := mustRun(t, `
print(7 // 2, -7 // 2, 7 % -3, -7 % 3, 7 / 2, 2 ** 10, "ab" * 3)
print(1.0, 0.5 + 0.25, 1e20, 3 * [0])
`)
	want := "3 -4 -2 2 3.5 1024 ababab\n1.0 0.75 1e+20 [0, 0, 0]\n"
	if out != want {
		t.Fatalf("unexpected output:\n got %q\nwant %q", out, want)
	}
}

func TestRunReturnsLastExpressionValue(t *testing.T) {
	_, value := mustRun(t, `
x = 40
x + 2
`)
	iv, ok := value.(runtime.IntValue)
	if !ok || iv.Val != 42 {
		t.Fatalf("expected 42, got %#v", value)
	}
}

func TestControlFlow(t *testing.T) {
	out, _ := mustRun(t, `
total = 0
for i in range(10):
    if i == 3:
        continue
    elif i > 6:
        break
    total += i
print(total)

n = 0
while True:
    n = n + 1
    if n >= 5:
        break
if n == 4:
    print("four")
elif n == 5:
    print("five")
else:
    pass
`)
	if out != "18\nfive\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestClosuresAndRecursion(t *testing.T) {
	out, _ := mustRun(t, `
def make_adder(n):
    def add(x):
        return x + n
    return add

add5 = make_adder(5)

def fib(n):
    if n < 2:
        return n
    return fib(n - 1) + fib(n - 2)

print(add5(10), fib(15))
`)
	if out != "15 610\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestStatementsAfterValueReturningCallsRun(t *testing.T) {
	out, value := mustRun(t, `
def inc(a):
    return a + 1

x = inc(1)
print("after", x)
x
`)
	if out != "after 2\n" {
		t.Fatalf("unexpected output %q", out)
	}
	if iv, ok := value.(runtime.IntValue); !ok || iv.Val != 2 {
		t.Fatalf("expected 2, got %#v", value)
	}
}

func TestClassesWithInitAndAttributes(t *testing.T) {
	out, _ := mustRun(t, `
class Counter(object):
    step = 2

    def __init__(self, start):
        self.value = start

    def bump(self):
        self.value += Counter.step
        return self.value

c = Counter(3)
c.bump()
print(c.bump(), c.step, c.value)
`)
	if out != "7 2 7\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestListsDictsAndBuiltins(t *testing.T) {
	out, _ := mustRun(t, `
items = [3, 1, 2]
items.append(5)
items += [7]
items += 9
d = {"a": 1}
d["b"] = len(items)
print(items, d["b"], items.pop(), min(items), max(3, 8), sum(range(5)))
print(d.get("c", 0), "a" in d, 4 in items, list(range(3)), len(d.keys()))
`)
	want := "[3, 1, 2, 5, 7] 6 9 1 8 10\n0 True False [0, 1, 2] 2\n"
	if out != want {
		t.Fatalf("unexpected output:\n got %q\nwant %q", out, want)
	}
}

func TestStringsAndConversions(t *testing.T) {
	out, _ := mustRun(t, `
s = "hello"
print(len(s), s[1], s[-1], str(3.0), int("42") + 1, float("2.5"), int(-2.7))
print(repr("it's"), [s], 1 < 2 < 3, 3 < 2 < 4, not None)
`)
	want := "5 e o 3.0 43 2.5 -2\n\"it's\" ['hello'] True False True\n"
	if out != want {
		t.Fatalf("unexpected output:\n got %q\nwant %q", out, want)
	}
}

func TestExecKeepsGlobalsAcrossModules(t *testing.T) {
	interp := New(Config{})
	if err := interp.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := interp.Exec(parseProgram(t, "x = 20\n")); err != nil {
		t.Fatalf("first exec failed: %v", err)
	}
	value, err := interp.Exec(parseProgram(t, "x * 2\n"))
	if err != nil {
		t.Fatalf("second exec failed: %v", err)
	}
	if iv, ok := value.(runtime.IntValue); !ok || iv.Val != 40 {
		t.Fatalf("expected 40, got %#v", value)
	}
	if err := interp.Close(nil); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestDisabledCollectorNeverCycles(t *testing.T) {
	cfg := Config{DisableGC: true}
	cfg.GC.CacheLimit = 8
	_, _, interp, err := runProgram(t, cfg, `
i = 0
while i < 200:
    i = i + 1
`)
	if err != nil {
		t.Fatalf("program failed: %v", err)
	}
	stats := interp.Collector().Stats()
	if stats.Cycles != 0 {
		t.Fatalf("expected no collection, got %d cycles", stats.Cycles)
	}
	if stats.Allocated < 200 {
		t.Fatalf("expected allocations to be counted, got %d", stats.Allocated)
	}
}
