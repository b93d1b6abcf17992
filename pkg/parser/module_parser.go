package parser

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/tarvlad/yapvm-sub000/pkg/ast"
)

// ModuleParser wraps a tree-sitter parser configured for Python sources.
// A ModuleParser is not safe for concurrent use.
type ModuleParser struct {
	parser *sitter.Parser
}

// NewModuleParser constructs a parser with the Python language loaded.
func NewModuleParser() (*ModuleParser, error) {
	lang := sitter.NewLanguage(tree_sitter_python.Language())
	if lang == nil {
		return nil, fmt.Errorf("parser: python language not available")
	}

	p := sitter.NewParser()
	if err := p.SetLanguage(lang); err != nil {
		return nil, fmt.Errorf("parser: %w", err)
	}

	return &ModuleParser{parser: p}, nil
}

// Close releases parser resources.
func (p *ModuleParser) Close() {
	if p == nil || p.parser == nil {
		return
	}
	p.parser.Close()
}

// ParseModule parses source into an AST module.
func (p *ModuleParser) ParseModule(source []byte) (*ast.Module, error) {
	if p == nil || p.parser == nil {
		return nil, fmt.Errorf("parser: nil parser")
	}

	tree := p.parser.Parse(source, nil)
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.Kind() != "module" {
		return nil, fmt.Errorf("parser: unexpected root node")
	}
	ctx := newParseContext(source)
	if root.HasError() {
		return nil, ctx.syntaxError(root)
	}

	body, err := ctx.parseStatements(root)
	if err != nil {
		return nil, err
	}
	mod := ast.NewModule(body)
	annotateSpan(mod, root)
	return mod, nil
}

// ParseSource is a convenience wrapper that builds and closes a parser.
func ParseSource(source []byte) (*ast.Module, error) {
	p, err := NewModuleParser()
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return p.ParseModule(source)
}

type parseContext struct {
	source []byte
}

func newParseContext(source []byte) *parseContext {
	return &parseContext{source: source}
}

func (ctx *parseContext) text(node *sitter.Node) string {
	return node.Utf8Text(ctx.source)
}

func isIgnorableNode(node *sitter.Node) bool {
	return node == nil || !node.IsNamed() || node.Kind() == "comment"
}

func spanFromNode(node *sitter.Node) ast.Span {
	if node == nil {
		return ast.Span{}
	}
	start := node.StartPosition()
	end := node.EndPosition()
	return ast.Span{
		Start: ast.Position{Line: int(start.Row) + 1, Column: int(start.Column) + 1},
		End:   ast.Position{Line: int(end.Row) + 1, Column: int(end.Column) + 1},
	}
}

func annotateSpan(node ast.Node, tsNode *sitter.Node) {
	if node == nil || tsNode == nil {
		return
	}
	ast.SetSpan(node, spanFromNode(tsNode))
}
