package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tarvlad/yapvm-sub000/pkg/ast"
	"github.com/tarvlad/yapvm-sub000/pkg/driver"
	"github.com/tarvlad/yapvm-sub000/pkg/runtime"
)

func TestParseGlobalFlags(t *testing.T) {
	opts, remaining, err := parseGlobalFlags([]string{
		"--config", "custom.yaml", "--trace=yapvm.gc,yapvm.threads", "--trace-level", "Info", "run", "prog.py",
	})
	if err != nil {
		t.Fatalf("parseGlobalFlags returned error: %v", err)
	}
	if opts.configPath != "custom.yaml" || opts.traceLevel != "Info" {
		t.Fatalf("unexpected options: %#v", opts)
	}
	if len(opts.traceSelectors) != 2 || opts.traceSelectors[1] != "yapvm.threads" {
		t.Fatalf("unexpected selectors: %#v", opts.traceSelectors)
	}
	if strings.Join(remaining, " ") != "run prog.py" {
		t.Fatalf("unexpected remaining args: %#v", remaining)
	}

	if _, _, err := parseGlobalFlags([]string{"--config"}); err == nil {
		t.Fatalf("expected missing value to fail")
	}
	_, remaining, err = parseGlobalFlags([]string{"--", "--config"})
	if err != nil || len(remaining) != 1 || remaining[0] != "--config" {
		t.Fatalf("expected -- to stop flag parsing, got %#v (%v)", remaining, err)
	}
}

func TestLoadConfigAppliesTraceOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yapvm.yaml")
	if err := os.WriteFile(path, []byte("gc:\n  cache_limit: 42\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := loadConfig(cliOptions{configPath: path, traceSelectors: []string{"yapvm.gc"}})
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	if cfg.GC.CacheLimit != 42 {
		t.Fatalf("expected file setting, got %d", cfg.GC.CacheLimit)
	}
	if cfg.Trace.Level != "Debug" || len(cfg.Trace.Selectors) != 1 {
		t.Fatalf("expected --trace to select debug tracing, got %#v", cfg.Trace)
	}
	if _, err := loadConfig(cliOptions{configPath: path, traceLevel: "loud"}); err == nil {
		t.Fatalf("expected invalid trace level to be rejected")
	}
}

func TestRunFilePrintsProgramOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prog.py")
	src := "def twice(x):\n    return x * 2\n\nprint(twice(21))\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write program: %v", err)
	}
	var stdout, stderr bytes.Buffer
	if code := runFile(path, driver.Default(), &stdout, &stderr); code != 0 {
		t.Fatalf("runFile exit code %d, stderr %q", code, stderr.String())
	}
	if stdout.String() != "42\n" {
		t.Fatalf("unexpected output %q", stdout.String())
	}
}

func TestRunFileReportsRuntimeErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.py")
	if err := os.WriteFile(path, []byte("x = 1\nprint(y)\n"), 0o644); err != nil {
		t.Fatalf("write program: %v", err)
	}
	var stdout, stderr bytes.Buffer
	if code := runFile(path, driver.Default(), &stdout, &stderr); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "2:1: NameError") {
		t.Fatalf("expected positioned NameError, got %q", stderr.String())
	}
}

func TestEchoesOnlyTrailingExpressions(t *testing.T) {
	expr := ast.Mod(ast.Bin("+", ast.Int(1), ast.Int(2)))
	if !echoes(expr, runtime.IntValue{Val: 3}) {
		t.Fatalf("expected expression result to be echoed")
	}
	if echoes(expr, runtime.NoneValue{}) {
		t.Fatalf("None must not be echoed")
	}
	if echoes(ast.Mod(ast.Assign(ast.ID("x"), ast.Int(1))), runtime.NoneValue{}) {
		t.Fatalf("assignments must not be echoed")
	}
}
