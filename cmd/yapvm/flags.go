package main

import (
	"fmt"
	"strings"

	"github.com/tarvlad/yapvm-sub000/pkg/driver"
)

type cliOptions struct {
	configPath     string
	traceSelectors []string
	traceLevel     string
}

// parseGlobalFlags strips the flags shared by every subcommand. Everything
// after "--" is passed through untouched.
func parseGlobalFlags(args []string) (cliOptions, []string, error) {
	var opts cliOptions
	remaining := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			remaining = append(remaining, args[i+1:]...)
			break
		}
		name, value, hasValue := strings.Cut(arg, "=")
		switch name {
		case "--config", "--trace", "--trace-level":
		default:
			remaining = append(remaining, arg)
			continue
		}
		if !hasValue {
			if i+1 >= len(args) {
				return opts, nil, fmt.Errorf("%s expects a value", name)
			}
			value = args[i+1]
			i++
		}
		value = strings.TrimSpace(value)
		if value == "" {
			return opts, nil, fmt.Errorf("%s expects a value", name)
		}
		switch name {
		case "--config":
			opts.configPath = value
		case "--trace":
			opts.traceSelectors = append(opts.traceSelectors, driver.ParseSelectors(value)...)
		case "--trace-level":
			opts.traceLevel = value
		}
	}
	return opts, remaining, nil
}
