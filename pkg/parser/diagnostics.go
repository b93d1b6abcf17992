package parser

import (
	"errors"
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/tarvlad/yapvm-sub000/pkg/ast"
)

const (
	kindSyntax      = "SyntaxError"
	kindIndentation = "IndentationError"
)

// SyntaxError is a rejected source. Kind follows Python's naming
// (SyntaxError or IndentationError); Pos is 1-based.
type SyntaxError struct {
	Kind string
	Msg  string
	Pos  ast.Position
	End  ast.Position
}

func (e *SyntaxError) Error() string {
	if e.Pos.Line == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%d:%d: %s: %s", e.Pos.Line, e.Pos.Column, e.Kind, e.Msg)
}

func newSyntaxError(node *sitter.Node, kind, format string, args ...any) *SyntaxError {
	span := spanFromNode(node)
	return &SyntaxError{Kind: kind, Msg: fmt.Sprintf(format, args...), Pos: span.Start, End: span.End}
}

// errorAt gives err the position of node unless it already carries one.
func errorAt(node *sitter.Node, err error) error {
	if err == nil {
		return nil
	}
	var synErr *SyntaxError
	if errors.As(err, &synErr) {
		return synErr
	}
	return newSyntaxError(node, kindSyntax, "%s", strings.TrimPrefix(err.Error(), "parser: "))
}

func unsupported(node *sitter.Node, what string) error {
	return newSyntaxError(node, kindSyntax, "unsupported %s", what)
}

// syntaxError reports the first broken spot of a tree that failed to parse.
// Nodes the grammar had to invent (missing tokens) say what was expected;
// ERROR nodes only say where the parse went wrong.
func (ctx *parseContext) syntaxError(root *sitter.Node) *SyntaxError {
	bad := firstBrokenNode(root)
	if bad == nil {
		return newSyntaxError(root, kindSyntax, "invalid syntax")
	}
	if bad.IsMissing() {
		return missingTokenError(bad)
	}
	text := strings.TrimSpace(ctx.text(bad))
	switch {
	case startsIndented(bad, ctx.source):
		return newSyntaxError(bad, kindIndentation, "unexpected indent")
	case strings.HasPrefix(text, `"`) || strings.HasPrefix(text, "'"):
		return newSyntaxError(bad, kindSyntax, "unterminated string literal")
	case text == "":
		return newSyntaxError(bad, kindSyntax, "invalid syntax")
	}
	return newSyntaxError(bad, kindSyntax, "invalid syntax near %s", excerpt(text))
}

func missingTokenError(node *sitter.Node) *SyntaxError {
	switch kind := node.Kind(); kind {
	case "_indent", "indent", "block":
		return newSyntaxError(node, kindIndentation, "expected an indented block")
	case ":":
		return newSyntaxError(node, kindSyntax, "expected ':'")
	case ")", "]", "}":
		return newSyntaxError(node, kindSyntax, "closing '%s' is missing", kind)
	case "identifier":
		return newSyntaxError(node, kindSyntax, "expected a name")
	case "_newline", "newline":
		return newSyntaxError(node, kindSyntax, "expected end of statement")
	default:
		if strings.Trim(kind, "_abcdefghijklmnopqrstuvwxyz") == "" {
			return newSyntaxError(node, kindSyntax, "expected %s", strings.ReplaceAll(strings.Trim(kind, "_"), "_", " "))
		}
		return newSyntaxError(node, kindSyntax, "expected '%s'", kind)
	}
}

// firstBrokenNode walks the tree in document order and returns the first
// missing or ERROR node.
func firstBrokenNode(root *sitter.Node) *sitter.Node {
	cursor := root.Walk()
	defer cursor.Close()
	for {
		node := cursor.Node()
		if node.IsMissing() || node.IsError() {
			return node
		}
		if node.HasError() && cursor.GotoFirstChild() {
			continue
		}
		for !cursor.GotoNextSibling() {
			if !cursor.GotoParent() {
				return nil
			}
		}
	}
}

// startsIndented reports an ERROR node that begins a line with more
// indentation than the line before it.
func startsIndented(node *sitter.Node, source []byte) bool {
	row := int(node.StartPosition().Row)
	if row == 0 || node.StartPosition().Column == 0 {
		return false
	}
	lines := strings.Split(string(source), "\n")
	if row >= len(lines) {
		return false
	}
	line := lines[row]
	if strings.TrimSpace(line[:min(int(node.StartPosition().Column), len(line))]) != "" {
		return false
	}
	prev := lines[row-1]
	return indentation(line) > indentation(prev) && !strings.HasSuffix(strings.TrimSpace(prev), ":")
}

func indentation(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

func excerpt(text string) string {
	first, _, _ := strings.Cut(text, "\n")
	if len(first) > 20 {
		first = first[:20] + "..."
	}
	return fmt.Sprintf("'%s'", first)
}
