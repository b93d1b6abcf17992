// Package interpreter executes yapvm programs by walking the AST produced by
// the parser package. Every value it produces is a managed object owned by
// the collector; every statement boundary is a safepoint check-in, and the
// thread builtins run their bodies as registered workers.
package interpreter
