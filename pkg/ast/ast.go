package ast

type NodeType string

const (
	NodeIdentifier          NodeType = "Identifier"
	NodeStringLiteral       NodeType = "StringLiteral"
	NodeIntegerLiteral      NodeType = "IntegerLiteral"
	NodeFloatLiteral        NodeType = "FloatLiteral"
	NodeBooleanLiteral      NodeType = "BooleanLiteral"
	NodeNoneLiteral         NodeType = "NoneLiteral"
	NodeListLiteral         NodeType = "ListLiteral"
	NodeDictEntry           NodeType = "DictEntry"
	NodeDictLiteral         NodeType = "DictLiteral"
	NodeUnaryExpression     NodeType = "UnaryExpression"
	NodeBinaryExpression    NodeType = "BinaryExpression"
	NodeBooleanExpression   NodeType = "BooleanExpression"
	NodeCompareExpression   NodeType = "CompareExpression"
	NodeCallExpression      NodeType = "CallExpression"
	NodeSubscriptExpression NodeType = "SubscriptExpression"
	NodeAttributeExpression NodeType = "AttributeExpression"
	NodeAssignment          NodeType = "Assignment"
	NodeAugmentedAssignment NodeType = "AugmentedAssignment"
	NodeFunctionDefinition  NodeType = "FunctionDefinition"
	NodeClassDefinition     NodeType = "ClassDefinition"
	NodeReturnStatement     NodeType = "ReturnStatement"
	NodeIfStatement         NodeType = "IfStatement"
	NodeWhileLoop           NodeType = "WhileLoop"
	NodeForLoop             NodeType = "ForLoop"
	NodeBreakStatement      NodeType = "BreakStatement"
	NodeContinueStatement   NodeType = "ContinueStatement"
	NodePassStatement       NodeType = "PassStatement"
	NodeImportStatement     NodeType = "ImportStatement"
	NodeModule              NodeType = "Module"
)

type Node interface {
	NodeType() NodeType
	Span() Span
	isNode()
}

type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type Span struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

type nodeImpl struct {
	Type NodeType `json:"type"`
	span Span
}

func newNodeImpl(kind NodeType) nodeImpl {
	return nodeImpl{Type: kind}
}

func (n nodeImpl) NodeType() NodeType { return n.Type }
func (n nodeImpl) Span() Span         { return n.span }
func (nodeImpl) isNode()              {}
func (n *nodeImpl) setSpan(span Span) { n.span = span }

// SetSpan annotates the node with the provided span.
func SetSpan(node Node, span Span) {
	if node == nil {
		return
	}
	if setter, ok := node.(interface{ setSpan(Span) }); ok {
		setter.setSpan(span)
	}
}

// Marker interfaces.

type Expression interface {
	Node
	expressionNode()
	statementNode()
}

type expressionMarker struct{}

func (expressionMarker) expressionNode() {}

type Statement interface {
	Node
	statementNode()
}

type statementMarker struct{}

func (statementMarker) statementNode() {}

// AssignmentTarget is anything that may appear on the left of `=`.
type AssignmentTarget interface {
	Node
	assignmentTargetNode()
}

type assignmentTargetMarker struct{}

func (assignmentTargetMarker) assignmentTargetNode() {}

// Identifier

type Identifier struct {
	nodeImpl
	expressionMarker
	statementMarker
	assignmentTargetMarker

	Name string `json:"name"`
}

func NewIdentifier(name string) *Identifier {
	return &Identifier{nodeImpl: newNodeImpl(NodeIdentifier), Name: name}
}

// Literals

type StringLiteral struct {
	nodeImpl
	expressionMarker
	statementMarker

	Value string `json:"value"`
}

func NewStringLiteral(value string) *StringLiteral {
	return &StringLiteral{nodeImpl: newNodeImpl(NodeStringLiteral), Value: value}
}

type IntegerLiteral struct {
	nodeImpl
	expressionMarker
	statementMarker

	Value int64 `json:"value"`
}

func NewIntegerLiteral(value int64) *IntegerLiteral {
	return &IntegerLiteral{nodeImpl: newNodeImpl(NodeIntegerLiteral), Value: value}
}

type FloatLiteral struct {
	nodeImpl
	expressionMarker
	statementMarker

	Value float64 `json:"value"`
}

func NewFloatLiteral(value float64) *FloatLiteral {
	return &FloatLiteral{nodeImpl: newNodeImpl(NodeFloatLiteral), Value: value}
}

type BooleanLiteral struct {
	nodeImpl
	expressionMarker
	statementMarker

	Value bool `json:"value"`
}

func NewBooleanLiteral(value bool) *BooleanLiteral {
	return &BooleanLiteral{nodeImpl: newNodeImpl(NodeBooleanLiteral), Value: value}
}

type NoneLiteral struct {
	nodeImpl
	expressionMarker
	statementMarker
}

func NewNoneLiteral() *NoneLiteral {
	return &NoneLiteral{nodeImpl: newNodeImpl(NodeNoneLiteral)}
}

type ListLiteral struct {
	nodeImpl
	expressionMarker
	statementMarker

	Elements []Expression `json:"elements"`
}

func NewListLiteral(elements []Expression) *ListLiteral {
	return &ListLiteral{nodeImpl: newNodeImpl(NodeListLiteral), Elements: elements}
}

type DictEntry struct {
	nodeImpl

	Key   Expression `json:"key"`
	Value Expression `json:"value"`
}

func NewDictEntry(key, value Expression) *DictEntry {
	return &DictEntry{nodeImpl: newNodeImpl(NodeDictEntry), Key: key, Value: value}
}

type DictLiteral struct {
	nodeImpl
	expressionMarker
	statementMarker

	Entries []*DictEntry `json:"entries"`
}

func NewDictLiteral(entries []*DictEntry) *DictLiteral {
	return &DictLiteral{nodeImpl: newNodeImpl(NodeDictLiteral), Entries: entries}
}

// Operators

type UnaryExpression struct {
	nodeImpl
	expressionMarker
	statementMarker

	Operator string     `json:"operator"`
	Operand  Expression `json:"operand"`
}

func NewUnaryExpression(operator string, operand Expression) *UnaryExpression {
	return &UnaryExpression{nodeImpl: newNodeImpl(NodeUnaryExpression), Operator: operator, Operand: operand}
}

type BinaryExpression struct {
	nodeImpl
	expressionMarker
	statementMarker

	Operator string     `json:"operator"`
	Left     Expression `json:"left"`
	Right    Expression `json:"right"`
}

func NewBinaryExpression(operator string, left, right Expression) *BinaryExpression {
	return &BinaryExpression{nodeImpl: newNodeImpl(NodeBinaryExpression), Operator: operator, Left: left, Right: right}
}

// BooleanExpression is a short-circuiting `and` / `or`.
type BooleanExpression struct {
	nodeImpl
	expressionMarker
	statementMarker

	Operator string     `json:"operator"`
	Left     Expression `json:"left"`
	Right    Expression `json:"right"`
}

func NewBooleanExpression(operator string, left, right Expression) *BooleanExpression {
	return &BooleanExpression{nodeImpl: newNodeImpl(NodeBooleanExpression), Operator: operator, Left: left, Right: right}
}

// CompareExpression holds a comparison chain: Operands has one more element
// than Operators.
type CompareExpression struct {
	nodeImpl
	expressionMarker
	statementMarker

	Operands  []Expression `json:"operands"`
	Operators []string     `json:"operators"`
}

func NewCompareExpression(operands []Expression, operators []string) *CompareExpression {
	return &CompareExpression{nodeImpl: newNodeImpl(NodeCompareExpression), Operands: operands, Operators: operators}
}

type CallExpression struct {
	nodeImpl
	expressionMarker
	statementMarker

	Callee    Expression   `json:"callee"`
	Arguments []Expression `json:"arguments"`
}

func NewCallExpression(callee Expression, args []Expression) *CallExpression {
	return &CallExpression{nodeImpl: newNodeImpl(NodeCallExpression), Callee: callee, Arguments: args}
}

type SubscriptExpression struct {
	nodeImpl
	expressionMarker
	statementMarker
	assignmentTargetMarker

	Object Expression `json:"object"`
	Index  Expression `json:"index"`
}

func NewSubscriptExpression(object, index Expression) *SubscriptExpression {
	return &SubscriptExpression{nodeImpl: newNodeImpl(NodeSubscriptExpression), Object: object, Index: index}
}

type AttributeExpression struct {
	nodeImpl
	expressionMarker
	statementMarker
	assignmentTargetMarker

	Object Expression `json:"object"`
	Name   string     `json:"name"`
}

func NewAttributeExpression(object Expression, name string) *AttributeExpression {
	return &AttributeExpression{nodeImpl: newNodeImpl(NodeAttributeExpression), Object: object, Name: name}
}

// Statements

type Assignment struct {
	nodeImpl
	statementMarker

	Target AssignmentTarget `json:"target"`
	Value  Expression       `json:"value"`
}

func NewAssignment(target AssignmentTarget, value Expression) *Assignment {
	return &Assignment{nodeImpl: newNodeImpl(NodeAssignment), Target: target, Value: value}
}

// AugmentedAssignment stores the binary operator without the trailing `=`.
type AugmentedAssignment struct {
	nodeImpl
	statementMarker

	Operator string           `json:"operator"`
	Target   AssignmentTarget `json:"target"`
	Value    Expression       `json:"value"`
}

func NewAugmentedAssignment(operator string, target AssignmentTarget, value Expression) *AugmentedAssignment {
	return &AugmentedAssignment{nodeImpl: newNodeImpl(NodeAugmentedAssignment), Operator: operator, Target: target, Value: value}
}

type FunctionDefinition struct {
	nodeImpl
	statementMarker

	Name       string      `json:"name"`
	Parameters []string    `json:"parameters"`
	Body       []Statement `json:"body"`
}

func NewFunctionDefinition(name string, params []string, body []Statement) *FunctionDefinition {
	return &FunctionDefinition{nodeImpl: newNodeImpl(NodeFunctionDefinition), Name: name, Parameters: params, Body: body}
}

type ClassDefinition struct {
	nodeImpl
	statementMarker

	Name string      `json:"name"`
	Body []Statement `json:"body"`
}

func NewClassDefinition(name string, body []Statement) *ClassDefinition {
	return &ClassDefinition{nodeImpl: newNodeImpl(NodeClassDefinition), Name: name, Body: body}
}

type ReturnStatement struct {
	nodeImpl
	statementMarker

	Value Expression `json:"value,omitempty"`
}

func NewReturnStatement(value Expression) *ReturnStatement {
	return &ReturnStatement{nodeImpl: newNodeImpl(NodeReturnStatement), Value: value}
}

// IfStatement models `elif` as a nested IfStatement in Else.
type IfStatement struct {
	nodeImpl
	statementMarker

	Condition Expression  `json:"condition"`
	Body      []Statement `json:"body"`
	Else      []Statement `json:"else,omitempty"`
}

func NewIfStatement(cond Expression, body, orElse []Statement) *IfStatement {
	return &IfStatement{nodeImpl: newNodeImpl(NodeIfStatement), Condition: cond, Body: body, Else: orElse}
}

type WhileLoop struct {
	nodeImpl
	statementMarker

	Condition Expression  `json:"condition"`
	Body      []Statement `json:"body"`
}

func NewWhileLoop(cond Expression, body []Statement) *WhileLoop {
	return &WhileLoop{nodeImpl: newNodeImpl(NodeWhileLoop), Condition: cond, Body: body}
}

type ForLoop struct {
	nodeImpl
	statementMarker

	Target   *Identifier `json:"target"`
	Iterable Expression  `json:"iterable"`
	Body     []Statement `json:"body"`
}

func NewForLoop(target *Identifier, iterable Expression, body []Statement) *ForLoop {
	return &ForLoop{nodeImpl: newNodeImpl(NodeForLoop), Target: target, Iterable: iterable, Body: body}
}

type BreakStatement struct {
	nodeImpl
	statementMarker
}

func NewBreakStatement() *BreakStatement {
	return &BreakStatement{nodeImpl: newNodeImpl(NodeBreakStatement)}
}

type ContinueStatement struct {
	nodeImpl
	statementMarker
}

func NewContinueStatement() *ContinueStatement {
	return &ContinueStatement{nodeImpl: newNodeImpl(NodeContinueStatement)}
}

type PassStatement struct {
	nodeImpl
	statementMarker
}

func NewPassStatement() *PassStatement {
	return &PassStatement{nodeImpl: newNodeImpl(NodePassStatement)}
}

// ImportStatement is recorded but never resolved.
type ImportStatement struct {
	nodeImpl
	statementMarker

	Module string `json:"module"`
}

func NewImportStatement(module string) *ImportStatement {
	return &ImportStatement{nodeImpl: newNodeImpl(NodeImportStatement), Module: module}
}

type Module struct {
	nodeImpl

	Body []Statement `json:"body"`
}

func NewModule(body []Statement) *Module {
	return &Module{nodeImpl: newNodeImpl(NodeModule), Body: body}
}
