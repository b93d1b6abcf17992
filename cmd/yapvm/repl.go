package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/tarvlad/yapvm-sub000/pkg/ast"
	"github.com/tarvlad/yapvm-sub000/pkg/driver"
	"github.com/tarvlad/yapvm-sub000/pkg/interpreter"
	"github.com/tarvlad/yapvm-sub000/pkg/parser"
	"github.com/tarvlad/yapvm-sub000/pkg/runtime"
)

const (
	historyFile = ".yapvm_history"
	promptMain  = ">>> "
	promptCont  = "... "
)

func runRepl(cfg *driver.Config) int {
	fmt.Println(cliToolVersion + " (exit() or Ctrl-D to leave)")

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	p, err := parser.NewModuleParser()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer p.Close()

	interp := interpreter.New(cfg.InterpreterConfig(os.Stdout))
	if err := interp.Start(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	for {
		var code string
		var ok bool
		// the main worker counts as parked while it waits for input
		interp.Blocking(func() {
			code, ok = readStatement(ln)
		})
		if !ok {
			fmt.Println()
			break
		}
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		if trimmed == "exit()" || trimmed == "quit()" {
			break
		}
		ln.AppendHistory(strings.ReplaceAll(trimmed, "\n", " "))

		mod, err := p.ParseModule([]byte(code))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		value, err := interp.Exec(mod)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		if echoes(mod, value) {
			fmt.Println(interpreter.Repr(value))
		}
	}

	if err := interp.Close(nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// readStatement reads one line, or a whole block when the line opens one. A
// blank line closes the block.
func readStatement(ln *liner.State) (string, bool) {
	line, err := ln.Prompt(promptMain)
	switch {
	case errors.Is(err, liner.ErrPromptAborted):
		return "", true
	case errors.Is(err, io.EOF):
		return "", false
	case err != nil:
		return "", false
	}
	if !strings.HasSuffix(strings.TrimSpace(line), ":") {
		return line + "\n", true
	}
	lines := []string{line}
	for {
		next, err := ln.Prompt(promptCont)
		if err != nil || strings.TrimSpace(next) == "" {
			break
		}
		lines = append(lines, next)
	}
	return strings.Join(lines, "\n") + "\n", true
}

// echoes reports whether the REPL prints value: only a trailing expression
// statement with a non-None result is echoed.
func echoes(mod *ast.Module, value runtime.Value) bool {
	if len(mod.Body) == 0 {
		return false
	}
	if _, ok := mod.Body[len(mod.Body)-1].(ast.Expression); !ok {
		return false
	}
	_, isNone := value.(runtime.NoneValue)
	return !isNone
}
