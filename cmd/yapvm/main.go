package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tarvlad/yapvm-sub000/pkg/driver"
	"github.com/tarvlad/yapvm-sub000/pkg/interpreter"
	"github.com/tarvlad/yapvm-sub000/pkg/parser"
)

const cliToolVersion = "yapvm 0.0.0-dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 1
	}

	opts, remaining, err := parseGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if len(remaining) == 0 {
		printUsage()
		return 1
	}

	switch remaining[0] {
	case "--help", "-h", "help":
		printUsage()
		return 0
	case "--version", "-V", "version":
		fmt.Fprintln(os.Stdout, cliToolVersion)
		return 0
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	teardown, err := driver.SetupTracing(cfg.Trace)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up tracing: %v\n", err)
		return 1
	}
	defer teardown()

	switch remaining[0] {
	case "run":
		if len(remaining) != 2 {
			fmt.Fprintln(os.Stderr, "yapvm run expects exactly one source file")
			return 1
		}
		return runFile(remaining[1], cfg, os.Stdout, os.Stderr)
	case "repl":
		if len(remaining) > 1 {
			fmt.Fprintln(os.Stderr, "yapvm repl does not take arguments")
			return 1
		}
		return runRepl(cfg)
	case "config":
		if err := cfg.Encode(os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	default:
		if len(remaining) != 1 {
			printUsage()
			return 1
		}
		return runFile(remaining[0], cfg, os.Stdout, os.Stderr)
	}
}

// loadConfig resolves the config file (flag, then ./yapvm.yaml, then
// defaults) and applies flag overrides.
func loadConfig(opts cliOptions) (*driver.Config, error) {
	var cfg *driver.Config
	switch {
	case opts.configPath != "":
		loaded, err := driver.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	default:
		loaded, err := driver.Load(driver.ConfigFileName)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, os.ErrNotExist):
			cfg = driver.Default()
		default:
			return nil, err
		}
	}
	if len(opts.traceSelectors) > 0 {
		cfg.Trace.Selectors = opts.traceSelectors
		if opts.traceLevel == "" {
			cfg.Trace.Level = "Debug"
		}
	}
	if opts.traceLevel != "" {
		cfg.Trace.Level = opts.traceLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runFile(path string, cfg *driver.Config, stdout, stderr io.Writer) int {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "failed to read %s: %v\n", path, err)
		return 1
	}
	mod, err := parser.ParseSource(source)
	if err != nil {
		fmt.Fprintf(stderr, "%s:%v\n", path, err)
		return 1
	}
	interp := interpreter.New(cfg.InterpreterConfig(stdout))
	if _, err := interp.Run(context.Background(), mod); err != nil {
		fmt.Fprintf(stderr, "%s:%v\n", path, err)
		return 1
	}
	return 0
}
