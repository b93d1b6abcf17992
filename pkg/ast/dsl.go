package ast

// Identifier and literal helpers.

func ID(name string) *Identifier {
	return NewIdentifier(name)
}

func Str(value string) *StringLiteral {
	return NewStringLiteral(value)
}

func Int(value int64) *IntegerLiteral {
	return NewIntegerLiteral(value)
}

func Flt(value float64) *FloatLiteral {
	return NewFloatLiteral(value)
}

func Bool(value bool) *BooleanLiteral {
	return NewBooleanLiteral(value)
}

func None() *NoneLiteral {
	return NewNoneLiteral()
}

func List(elements ...Expression) *ListLiteral {
	return NewListLiteral(elements)
}

func Dict(entries ...*DictEntry) *DictLiteral {
	return NewDictLiteral(entries)
}

func Entry(key, value Expression) *DictEntry {
	return NewDictEntry(key, value)
}

// Expression helpers.

func Bin(operator string, left, right Expression) *BinaryExpression {
	return NewBinaryExpression(operator, left, right)
}

func Un(operator string, operand Expression) *UnaryExpression {
	return NewUnaryExpression(operator, operand)
}

func And(left, right Expression) *BooleanExpression {
	return NewBooleanExpression("and", left, right)
}

func Or(left, right Expression) *BooleanExpression {
	return NewBooleanExpression("or", left, right)
}

// Cmp builds a single comparison.
func Cmp(operator string, left, right Expression) *CompareExpression {
	return NewCompareExpression([]Expression{left, right}, []string{operator})
}

func Call(callee Expression, args ...Expression) *CallExpression {
	return NewCallExpression(callee, args)
}

func CallName(name string, args ...Expression) *CallExpression {
	return NewCallExpression(ID(name), args)
}

func Index(object, index Expression) *SubscriptExpression {
	return NewSubscriptExpression(object, index)
}

func Attr(object Expression, name string) *AttributeExpression {
	return NewAttributeExpression(object, name)
}

// Statement helpers.

func Assign(target AssignmentTarget, value Expression) *Assignment {
	return NewAssignment(target, value)
}

func AugAssign(operator string, target AssignmentTarget, value Expression) *AugmentedAssignment {
	return NewAugmentedAssignment(operator, target, value)
}

func Def(name string, params []string, body ...Statement) *FunctionDefinition {
	return NewFunctionDefinition(name, params, body)
}

func Class(name string, body ...Statement) *ClassDefinition {
	return NewClassDefinition(name, body)
}

func Ret(value Expression) *ReturnStatement {
	return NewReturnStatement(value)
}

func If(cond Expression, body []Statement, orElse ...Statement) *IfStatement {
	return NewIfStatement(cond, body, orElse)
}

func While(cond Expression, body ...Statement) *WhileLoop {
	return NewWhileLoop(cond, body)
}

func For(target string, iterable Expression, body ...Statement) *ForLoop {
	return NewForLoop(ID(target), iterable, body)
}

func Break() *BreakStatement {
	return NewBreakStatement()
}

func Continue() *ContinueStatement {
	return NewContinueStatement()
}

func Pass() *PassStatement {
	return NewPassStatement()
}

func Block(stmts ...Statement) []Statement {
	return stmts
}

func Mod(body ...Statement) *Module {
	return NewModule(body)
}
