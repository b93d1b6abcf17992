package parser

import (
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/tarvlad/yapvm-sub000/pkg/ast"
)

func (ctx *parseContext) parseStatements(parent *sitter.Node) ([]ast.Statement, error) {
	var out []ast.Statement
	for i := uint(0); i < parent.NamedChildCount(); i++ {
		child := parent.NamedChild(i)
		if isIgnorableNode(child) {
			continue
		}
		stmt, err := ctx.parseStatement(child)
		if err != nil {
			return nil, err
		}
		if stmt == nil {
			continue
		}
		out = append(out, stmt)
	}
	return out, nil
}

func (ctx *parseContext) parseBlock(node *sitter.Node) ([]ast.Statement, error) {
	if node == nil {
		return nil, nil
	}
	if node.Kind() != "block" {
		stmt, err := ctx.parseStatement(node)
		if err != nil || stmt == nil {
			return nil, err
		}
		return []ast.Statement{stmt}, nil
	}
	return ctx.parseStatements(node)
}

func (ctx *parseContext) parseStatement(node *sitter.Node) (ast.Statement, error) {
	var (
		stmt ast.Statement
		err  error
	)
	switch node.Kind() {
	case "expression_statement":
		return ctx.parseExpressionStatement(node)
	case "function_definition":
		stmt, err = ctx.parseFunctionDefinition(node)
	case "class_definition":
		stmt, err = ctx.parseClassDefinition(node)
	case "return_statement":
		var value ast.Expression
		if inner := firstNamedChild(node); inner != nil {
			value, err = ctx.parseExpression(inner)
		}
		stmt = ast.NewReturnStatement(value)
	case "if_statement":
		stmt, err = ctx.parseIfStatement(node)
	case "while_statement":
		stmt, err = ctx.parseWhileStatement(node)
	case "for_statement":
		stmt, err = ctx.parseForStatement(node)
	case "break_statement":
		stmt = ast.NewBreakStatement()
	case "continue_statement":
		stmt = ast.NewContinueStatement()
	case "pass_statement":
		stmt = ast.NewPassStatement()
	case "import_statement":
		name := node.ChildByFieldName("name")
		stmt = ast.NewImportStatement(ctx.importName(name))
	case "import_from_statement":
		stmt = ast.NewImportStatement(ctx.importName(node.ChildByFieldName("module_name")))
	case "decorated_definition":
		return nil, unsupported(node, "decorators")
	default:
		return nil, unsupported(node, fmt.Sprintf("statement %q", node.Kind()))
	}
	if err != nil {
		return nil, errorAt(node, err)
	}
	annotateSpan(stmt, node)
	return stmt, nil
}

func (ctx *parseContext) importName(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	if node.Kind() == "aliased_import" {
		node = node.ChildByFieldName("name")
	}
	return strings.TrimSpace(ctx.text(node))
}

func (ctx *parseContext) parseExpressionStatement(node *sitter.Node) (ast.Statement, error) {
	if node.NamedChildCount() != 1 {
		return nil, unsupported(node, "tuple expression statement")
	}
	inner := node.NamedChild(0)
	var (
		stmt ast.Statement
		err  error
	)
	switch inner.Kind() {
	case "assignment":
		stmt, err = ctx.parseAssignment(inner)
	case "augmented_assignment":
		stmt, err = ctx.parseAugmentedAssignment(inner)
	default:
		var expr ast.Expression
		expr, err = ctx.parseExpression(inner)
		stmt = expr
	}
	if err != nil {
		return nil, errorAt(inner, err)
	}
	annotateSpan(stmt, node)
	return stmt, nil
}

func (ctx *parseContext) parseAssignment(node *sitter.Node) (ast.Statement, error) {
	right := node.ChildByFieldName("right")
	if right == nil {
		return nil, unsupported(node, "annotation without value")
	}
	if right.Kind() == "assignment" {
		return nil, unsupported(node, "chained assignment")
	}
	target, err := ctx.parseTarget(node.ChildByFieldName("left"))
	if err != nil {
		return nil, err
	}
	value, err := ctx.parseExpression(right)
	if err != nil {
		return nil, err
	}
	return ast.NewAssignment(target, value), nil
}

func (ctx *parseContext) parseAugmentedAssignment(node *sitter.Node) (ast.Statement, error) {
	opNode := node.ChildByFieldName("operator")
	if opNode == nil {
		return nil, unsupported(node, "augmented assignment without operator")
	}
	op := strings.TrimSuffix(ctx.text(opNode), "=")
	target, err := ctx.parseTarget(node.ChildByFieldName("left"))
	if err != nil {
		return nil, err
	}
	value, err := ctx.parseExpression(node.ChildByFieldName("right"))
	if err != nil {
		return nil, err
	}
	return ast.NewAugmentedAssignment(op, target, value), nil
}

func (ctx *parseContext) parseTarget(node *sitter.Node) (ast.AssignmentTarget, error) {
	if node == nil {
		return nil, fmt.Errorf("parser: missing assignment target")
	}
	expr, err := ctx.parseExpression(node)
	if err != nil {
		return nil, err
	}
	target, ok := expr.(ast.AssignmentTarget)
	if !ok {
		return nil, unsupported(node, fmt.Sprintf("assignment target %q", node.Kind()))
	}
	return target, nil
}

func (ctx *parseContext) parseFunctionDefinition(node *sitter.Node) (ast.Statement, error) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil, fmt.Errorf("parser: function without a name")
	}
	var params []string
	if paramsNode := node.ChildByFieldName("parameters"); paramsNode != nil {
		seen := make(map[string]bool)
		for i := uint(0); i < paramsNode.NamedChildCount(); i++ {
			param := paramsNode.NamedChild(i)
			if isIgnorableNode(param) {
				continue
			}
			if param.Kind() != "identifier" {
				return nil, unsupported(param, fmt.Sprintf("parameter %q", param.Kind()))
			}
			name := ctx.text(param)
			if seen[name] {
				return nil, newSyntaxError(param, kindSyntax, "duplicate argument '%s' in function definition", name)
			}
			seen[name] = true
			params = append(params, name)
		}
	}
	body, err := ctx.parseBlock(node.ChildByFieldName("body"))
	if err != nil {
		return nil, err
	}
	return ast.NewFunctionDefinition(ctx.text(nameNode), params, body), nil
}

func (ctx *parseContext) parseClassDefinition(node *sitter.Node) (ast.Statement, error) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil, fmt.Errorf("parser: class without a name")
	}
	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		for i := uint(0); i < supers.NamedChildCount(); i++ {
			base := supers.NamedChild(i)
			if isIgnorableNode(base) {
				continue
			}
			if base.Kind() != "identifier" || ctx.text(base) != "object" {
				return nil, unsupported(base, "base classes")
			}
		}
	}
	body, err := ctx.parseBlock(node.ChildByFieldName("body"))
	if err != nil {
		return nil, err
	}
	return ast.NewClassDefinition(ctx.text(nameNode), body), nil
}

func (ctx *parseContext) parseIfStatement(node *sitter.Node) (ast.Statement, error) {
	cond, err := ctx.parseExpression(node.ChildByFieldName("condition"))
	if err != nil {
		return nil, err
	}
	body, err := ctx.parseBlock(node.ChildByFieldName("consequence"))
	if err != nil {
		return nil, err
	}

	var alternatives []*sitter.Node
	for i := uint(0); i < node.ChildCount(); i++ {
		if node.FieldNameForChild(uint32(i)) == "alternative" {
			alternatives = append(alternatives, node.Child(i))
		}
	}

	// elif chains nest from the innermost clause outward
	var orElse []ast.Statement
	for i := len(alternatives) - 1; i >= 0; i-- {
		alt := alternatives[i]
		switch alt.Kind() {
		case "else_clause":
			orElse, err = ctx.parseBlock(alt.ChildByFieldName("body"))
			if err != nil {
				return nil, err
			}
		case "elif_clause":
			elifCond, err := ctx.parseExpression(alt.ChildByFieldName("condition"))
			if err != nil {
				return nil, err
			}
			elifBody, err := ctx.parseBlock(alt.ChildByFieldName("consequence"))
			if err != nil {
				return nil, err
			}
			nested := ast.NewIfStatement(elifCond, elifBody, orElse)
			annotateSpan(nested, alt)
			orElse = []ast.Statement{nested}
		default:
			return nil, unsupported(alt, fmt.Sprintf("if alternative %q", alt.Kind()))
		}
	}
	return ast.NewIfStatement(cond, body, orElse), nil
}

func (ctx *parseContext) parseWhileStatement(node *sitter.Node) (ast.Statement, error) {
	if node.ChildByFieldName("alternative") != nil {
		return nil, unsupported(node, "while-else")
	}
	cond, err := ctx.parseExpression(node.ChildByFieldName("condition"))
	if err != nil {
		return nil, err
	}
	body, err := ctx.parseBlock(node.ChildByFieldName("body"))
	if err != nil {
		return nil, err
	}
	return ast.NewWhileLoop(cond, body), nil
}

func (ctx *parseContext) parseForStatement(node *sitter.Node) (ast.Statement, error) {
	if node.ChildByFieldName("alternative") != nil {
		return nil, unsupported(node, "for-else")
	}
	left := node.ChildByFieldName("left")
	if left == nil || left.Kind() != "identifier" {
		return nil, unsupported(node, "for target other than a name")
	}
	target := ast.NewIdentifier(ctx.text(left))
	annotateSpan(target, left)
	iterable, err := ctx.parseExpression(node.ChildByFieldName("right"))
	if err != nil {
		return nil, err
	}
	body, err := ctx.parseBlock(node.ChildByFieldName("body"))
	if err != nil {
		return nil, err
	}
	return ast.NewForLoop(target, iterable, body), nil
}

func firstNamedChild(node *sitter.Node) *sitter.Node {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if !isIgnorableNode(child) {
			return child
		}
	}
	return nil
}
