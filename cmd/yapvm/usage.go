package main

import (
	"fmt"
	"os"
)

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  yapvm [--config=yapvm.yaml] [--trace=selector,...] [--trace-level=Error|Info|Debug] run <file.py>")
	fmt.Fprintln(os.Stderr, "  yapvm [flags] <file.py>")
	fmt.Fprintln(os.Stderr, "  yapvm [flags] repl")
	fmt.Fprintln(os.Stderr, "  yapvm [flags] config")
	fmt.Fprintln(os.Stderr, "  yapvm version")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Trace selectors: yapvm.gc, yapvm.threads, yapvm.interpreter")
}
