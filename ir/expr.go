package ir

// Expr is implemented by all expression nodes.
type Expr interface {
	Statement

	// Type returns the type of the expression.
	Type() Type

	// SetType updates the type of the expression.
	SetType(t Type)
}

// ExprBase is the base struct for all expressions.
type ExprBase struct {
	ElementBase

	typ Type
}

func (eb *ExprBase) Type() Type {
	return eb.typ
}

func (eb *ExprBase) SetType(t Type) {
	eb.typ = t
}

func (eb *ExprBase) isStatement() {}

// -----------------------------------------------------------------------------

// ConstKind is the kind of a constant.
type ConstKind int

// Enumeration of constant kinds.
const (
	ConstNull ConstKind = iota
	ConstBoolean
	ConstInt
	ConstLong
	ConstString
	ConstUnit
)

// Const is a literal constant.  Value holds a bool, int32, int64 or string
// depending on the kind; it is nil for null and for the Unit instance.
type Const struct {
	ExprBase

	Kind  ConstKind
	Value any
}

// GetValue reads a parameter or variable.
type GetValue struct {
	ExprBase

	Sym *Symbol
}

// SetValue assigns a parameter or variable.
type SetValue struct {
	ExprBase

	Sym   *Symbol
	Value Expr
}

// GetField reads a field.  Receiver is nil for static fields.
type GetField struct {
	ExprBase

	Sym      *Symbol
	Receiver Expr
}

// SetField writes a field.  Receiver is nil for static fields.
type SetField struct {
	ExprBase

	Sym      *Symbol
	Receiver Expr
	Value    Expr
}

// Call is a call of a function.  A nil entry in Args is an omitted argument
// whose parameter has a default value.
type Call struct {
	ExprBase

	Sym *Symbol

	DispatchReceiver  Expr
	ExtensionReceiver Expr

	Args     []Expr
	TypeArgs []Type

	// SuperQualifier is set for `super.f()` calls.
	SuperQualifier *Symbol
}

// ConstructorCall creates a new instance of a class.  For inner classes the
// outer instance is passed as DispatchReceiver until the inner class lowering
// turns it into a leading argument.
type ConstructorCall struct {
	ExprBase

	Sym *Symbol

	DispatchReceiver Expr

	Args     []Expr
	TypeArgs []Type
}

// DelegatingConstructorCall calls another constructor of the same class or of
// the superclass from the body of a constructor.
type DelegatingConstructorCall struct {
	ExprBase

	Sym *Symbol

	DispatchReceiver Expr

	Args     []Expr
	TypeArgs []Type
}

// Block is a sequence of statements.  Its value is the value of its last
// statement.  Transparent blocks do not introduce a scope.
type Block struct {
	ExprBase

	Statements    []Statement
	IsTransparent bool
}

// Return returns from the target function.  Value is nil when returning from a
// function returning Unit.
type Return struct {
	ExprBase

	Target *Symbol
	Value  Expr
}

// Try is a try expression.  Finally is nil when absent.
type Try struct {
	ExprBase

	Body    Expr
	Catches []*Catch
	Finally Expr
}

// Catch is a single catch clause.
type Catch struct {
	ElementBase

	Param  *Variable
	Result Expr
}

// Throw throws an exception.
type Throw struct {
	ExprBase

	Value Expr
}

// Loop is a while or do-while loop.
type Loop struct {
	ExprBase

	Label     string
	Condition Expr
	Body      Expr
	IsDoWhile bool
}

// Break exits a loop.
type Break struct {
	ExprBase

	Loop *Loop
}

// Continue jumps to the next iteration of a loop.
type Continue struct {
	ExprBase

	Loop *Loop
}

// When is a chain of conditional branches.  An `else` branch has a constant
// `true` condition.
type When struct {
	ExprBase

	Branches []*Branch
}

// Branch is one branch of a when expression.
type Branch struct {
	ElementBase

	Condition Expr
	Result    Expr
}

// StringConcat concatenates the string representations of its arguments.
type StringConcat struct {
	ExprBase

	Args []Expr
}

// FunctionReference refers to a function as a value.  Bound receivers are
// given in DispatchReceiver/ExtensionReceiver.
type FunctionReference struct {
	ExprBase

	Sym *Symbol

	DispatchReceiver  Expr
	ExtensionReceiver Expr

	TypeArgs []Type
}

// FunctionExpression is a lambda: it owns a local function declaration.
type FunctionExpression struct {
	ExprBase

	Function *Function
}

// PropertyReference refers to a property as a value, eg. the receiver of an
// `isInitialized` check.
type PropertyReference struct {
	ExprBase

	Sym *Symbol

	DispatchReceiver Expr
}

// TypeOperator is the operator of a type operator call.
type TypeOperator int

// Enumeration of type operators.
const (
	OpCast TypeOperator = iota
	OpImplicitCast
	OpSafeCast
	OpInstanceOf
	OpNotInstanceOf
	OpImplicitCoercionToUnit
	OpSamConversion
)

// TypeOperatorCall applies a type operator to its argument.
type TypeOperatorCall struct {
	ExprBase

	Operator    TypeOperator
	Argument    Expr
	TypeOperand Type
}
