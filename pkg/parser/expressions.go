package parser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/tarvlad/yapvm-sub000/pkg/ast"
)

func (ctx *parseContext) parseExpression(node *sitter.Node) (ast.Expression, error) {
	if node == nil {
		return nil, fmt.Errorf("parser: missing expression")
	}
	var (
		expr ast.Expression
		err  error
	)
	switch node.Kind() {
	case "identifier":
		expr = ast.NewIdentifier(ctx.text(node))
	case "integer":
		expr, err = ctx.parseInteger(node)
	case "float":
		expr, err = ctx.parseFloat(node)
	case "true":
		expr = ast.NewBooleanLiteral(true)
	case "false":
		expr = ast.NewBooleanLiteral(false)
	case "none":
		expr = ast.NewNoneLiteral()
	case "string":
		var s string
		s, err = ctx.parseString(node)
		expr = ast.NewStringLiteral(s)
	case "concatenated_string":
		var sb strings.Builder
		for i := uint(0); i < node.NamedChildCount(); i++ {
			part := node.NamedChild(i)
			if isIgnorableNode(part) {
				continue
			}
			s, perr := ctx.parseString(part)
			if perr != nil {
				return nil, perr
			}
			sb.WriteString(s)
		}
		expr = ast.NewStringLiteral(sb.String())
	case "parenthesized_expression":
		inner := firstNamedChild(node)
		if inner == nil {
			return nil, unsupported(node, "empty parentheses")
		}
		// keep the inner span
		return ctx.parseExpression(inner)
	case "list":
		var elems []ast.Expression
		elems, err = ctx.parseExpressionList(node)
		expr = ast.NewListLiteral(elems)
	case "dictionary":
		expr, err = ctx.parseDictionary(node)
	case "unary_operator":
		var operand ast.Expression
		operand, err = ctx.parseExpression(node.ChildByFieldName("argument"))
		expr = ast.NewUnaryExpression(ctx.text(node.ChildByFieldName("operator")), operand)
	case "not_operator":
		var operand ast.Expression
		operand, err = ctx.parseExpression(node.ChildByFieldName("argument"))
		expr = ast.NewUnaryExpression("not", operand)
	case "binary_operator":
		expr, err = ctx.parseBinary(node, false)
	case "boolean_operator":
		expr, err = ctx.parseBinary(node, true)
	case "comparison_operator":
		expr, err = ctx.parseComparison(node)
	case "call":
		expr, err = ctx.parseCall(node)
	case "subscript":
		expr, err = ctx.parseSubscript(node)
	case "attribute":
		var object ast.Expression
		object, err = ctx.parseExpression(node.ChildByFieldName("object"))
		expr = ast.NewAttributeExpression(object, ctx.text(node.ChildByFieldName("attribute")))
	default:
		return nil, unsupported(node, fmt.Sprintf("expression %q", node.Kind()))
	}
	if err != nil {
		return nil, errorAt(node, err)
	}
	annotateSpan(expr, node)
	return expr, nil
}

func (ctx *parseContext) parseInteger(node *sitter.Node) (ast.Expression, error) {
	raw := ctx.text(node)
	if strings.HasSuffix(raw, "j") || strings.HasSuffix(raw, "J") {
		return nil, unsupported(node, "complex literals")
	}
	digits := strings.ReplaceAll(raw, "_", "")
	base := 10
	if len(digits) > 2 && digits[0] == '0' {
		switch digits[1] {
		case 'x', 'X':
			base, digits = 16, digits[2:]
		case 'o', 'O':
			base, digits = 8, digits[2:]
		case 'b', 'B':
			base, digits = 2, digits[2:]
		}
	}
	value, err := strconv.ParseInt(digits, base, 64)
	if err != nil {
		return nil, fmt.Errorf("parser: integer literal %s out of range", raw)
	}
	return ast.NewIntegerLiteral(value), nil
}

func (ctx *parseContext) parseFloat(node *sitter.Node) (ast.Expression, error) {
	raw := ctx.text(node)
	if strings.HasSuffix(raw, "j") || strings.HasSuffix(raw, "J") {
		return nil, unsupported(node, "complex literals")
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(raw, "_", ""), 64)
	if err != nil {
		return nil, fmt.Errorf("parser: invalid float literal %s", raw)
	}
	return ast.NewFloatLiteral(value), nil
}

func (ctx *parseContext) parseString(node *sitter.Node) (string, error) {
	if node.Kind() != "string" {
		return "", unsupported(node, fmt.Sprintf("string part %q", node.Kind()))
	}
	raw := false
	var sb strings.Builder
	for i := uint(0); i < node.NamedChildCount(); i++ {
		part := node.NamedChild(i)
		switch part.Kind() {
		case "string_start":
			prefix := strings.ToLower(strings.TrimRight(ctx.text(part), `"'`))
			if strings.ContainsAny(prefix, "fb") {
				return "", unsupported(node, "string prefix "+prefix)
			}
			raw = strings.Contains(prefix, "r")
		case "string_content":
			sb.WriteString(ctx.text(part))
		case "string_end":
		case "interpolation":
			return "", unsupported(part, "string interpolation")
		}
	}
	if raw {
		return sb.String(), nil
	}
	return unescape(sb.String()), nil
}

// unescape decodes backslash escapes. Unknown escapes keep the backslash.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	out := make([]byte, 0, len(s))
	for len(s) > 0 {
		if s[0] != '\\' || len(s) == 1 {
			r, size := utf8.DecodeRuneInString(s)
			out = utf8.AppendRune(out, r)
			s = s[size:]
			continue
		}
		switch s[1] {
		case '\n':
			s = s[2:]
			continue
		case '\'', '"':
			out = append(out, s[1])
			s = s[2:]
			continue
		}
		value, _, tail, err := strconv.UnquoteChar(s, 0)
		if err != nil {
			out = append(out, '\\')
			s = s[1:]
			continue
		}
		out = utf8.AppendRune(out, value)
		s = tail
	}
	return string(out)
}

func (ctx *parseContext) parseExpressionList(node *sitter.Node) ([]ast.Expression, error) {
	var out []ast.Expression
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if isIgnorableNode(child) {
			continue
		}
		switch child.Kind() {
		case "list_splat", "dictionary_splat", "keyword_argument", "generator_expression":
			return nil, unsupported(child, strings.ReplaceAll(child.Kind(), "_", " "))
		}
		expr, err := ctx.parseExpression(child)
		if err != nil {
			return nil, err
		}
		out = append(out, expr)
	}
	return out, nil
}

func (ctx *parseContext) parseDictionary(node *sitter.Node) (ast.Expression, error) {
	var entries []*ast.DictEntry
	for i := uint(0); i < node.NamedChildCount(); i++ {
		pair := node.NamedChild(i)
		if isIgnorableNode(pair) {
			continue
		}
		if pair.Kind() != "pair" {
			return nil, unsupported(pair, fmt.Sprintf("dictionary element %q", pair.Kind()))
		}
		key, err := ctx.parseExpression(pair.ChildByFieldName("key"))
		if err != nil {
			return nil, err
		}
		value, err := ctx.parseExpression(pair.ChildByFieldName("value"))
		if err != nil {
			return nil, err
		}
		entry := ast.NewDictEntry(key, value)
		annotateSpan(entry, pair)
		entries = append(entries, entry)
	}
	return ast.NewDictLiteral(entries), nil
}

func (ctx *parseContext) parseBinary(node *sitter.Node, boolean bool) (ast.Expression, error) {
	left, err := ctx.parseExpression(node.ChildByFieldName("left"))
	if err != nil {
		return nil, err
	}
	right, err := ctx.parseExpression(node.ChildByFieldName("right"))
	if err != nil {
		return nil, err
	}
	opNode := node.ChildByFieldName("operator")
	if opNode == nil {
		return nil, fmt.Errorf("parser: operator missing")
	}
	op := ctx.text(opNode)
	if boolean {
		return ast.NewBooleanExpression(op, left, right), nil
	}
	switch op {
	case "@", "<<", ">>", "&", "|", "^":
		return nil, unsupported(opNode, "operator "+op)
	}
	return ast.NewBinaryExpression(op, left, right), nil
}

func (ctx *parseContext) parseComparison(node *sitter.Node) (ast.Expression, error) {
	var (
		operands  []ast.Expression
		operators []string
	)
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if node.FieldNameForChild(uint32(i)) == "operators" {
			// "not in" and "is not" arrive as single aliased tokens
			operators = append(operators, strings.Join(strings.Fields(ctx.text(child)), " "))
			continue
		}
		if isIgnorableNode(child) {
			continue
		}
		operand, err := ctx.parseExpression(child)
		if err != nil {
			return nil, err
		}
		operands = append(operands, operand)
	}
	if len(operands) != len(operators)+1 {
		return nil, fmt.Errorf("parser: malformed comparison")
	}
	return ast.NewCompareExpression(operands, operators), nil
}

func (ctx *parseContext) parseCall(node *sitter.Node) (ast.Expression, error) {
	callee, err := ctx.parseExpression(node.ChildByFieldName("function"))
	if err != nil {
		return nil, err
	}
	argsNode := node.ChildByFieldName("arguments")
	if argsNode == nil {
		return ast.NewCallExpression(callee, nil), nil
	}
	if argsNode.Kind() != "argument_list" {
		return nil, unsupported(argsNode, "generator argument")
	}
	args, err := ctx.parseExpressionList(argsNode)
	if err != nil {
		return nil, err
	}
	return ast.NewCallExpression(callee, args), nil
}

func (ctx *parseContext) parseSubscript(node *sitter.Node) (ast.Expression, error) {
	object, err := ctx.parseExpression(node.ChildByFieldName("value"))
	if err != nil {
		return nil, err
	}
	var indexNodes []*sitter.Node
	for i := uint(0); i < node.ChildCount(); i++ {
		if node.FieldNameForChild(uint32(i)) == "subscript" {
			indexNodes = append(indexNodes, node.Child(i))
		}
	}
	if len(indexNodes) != 1 {
		return nil, unsupported(node, "multi-dimensional subscript")
	}
	if indexNodes[0].Kind() == "slice" {
		return nil, unsupported(indexNodes[0], "slices")
	}
	index, err := ctx.parseExpression(indexNodes[0])
	if err != nil {
		return nil, err
	}
	return ast.NewSubscriptExpression(object, index), nil
}
