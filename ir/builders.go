package ir

// Constructors for expressions.  Synthesized expressions have no source span
// and the `OriginDefined` origin unless the caller sets another one.

// NewGetValue creates a read of a value.
func NewGetValue(v ValueDeclaration) *GetValue {
	return &GetValue{ExprBase: ExprBase{ElementBase: synthesized(OriginDefined), typ: v.ValueType()}, Sym: v.Symbol()}
}

// NewSetValue creates an assignment of a value.
func NewSetValue(v ValueDeclaration, value Expr, unit Type) *SetValue {
	return &SetValue{ExprBase: ExprBase{ElementBase: synthesized(OriginDefined), typ: unit}, Sym: v.Symbol(), Value: value}
}

// NewGetField creates a read of a field.
func NewGetField(f *Field, receiver Expr) *GetField {
	return &GetField{ExprBase: ExprBase{ElementBase: synthesized(OriginDefined), typ: f.Type}, Sym: f.Symbol(), Receiver: receiver}
}

// NewSetField creates a write of a field.
func NewSetField(f *Field, receiver, value Expr, unit Type) *SetField {
	return &SetField{
		ExprBase: ExprBase{ElementBase: synthesized(OriginDefined), typ: unit},
		Sym:      f.Symbol(),
		Receiver: receiver,
		Value:    value,
	}
}

// NewCall creates a call of a function.  The type of the call is the return
// type of the function.
func NewCall(fn *Function, args ...Expr) *Call {
	return &Call{ExprBase: ExprBase{ElementBase: synthesized(OriginDefined), typ: fn.ReturnType}, Sym: fn.Symbol(), Args: args}
}

// NewMemberCall creates a call of a member function on a receiver.
func NewMemberCall(fn *Function, receiver Expr, args ...Expr) *Call {
	call := NewCall(fn, args...)
	call.DispatchReceiver = receiver
	return call
}

// NewConstructorCall creates a constructor call.
func NewConstructorCall(ctor *Function, args ...Expr) *ConstructorCall {
	return &ConstructorCall{
		ExprBase: ExprBase{ElementBase: synthesized(OriginDefined), typ: ctor.ReturnType},
		Sym:      ctor.Symbol(),
		Args:     args,
	}
}

// NewDelegatingConstructorCall creates a delegating constructor call.
func NewDelegatingConstructorCall(ctor *Function, unit Type, args ...Expr) *DelegatingConstructorCall {
	return &DelegatingConstructorCall{
		ExprBase: ExprBase{ElementBase: synthesized(OriginDefined), typ: unit},
		Sym:      ctor.Symbol(),
		Args:     args,
	}
}

// NewBlock creates a block.
func NewBlock(t Type, stmts ...Statement) *Block {
	return &Block{ExprBase: ExprBase{ElementBase: synthesized(OriginDefined), typ: t}, Statements: stmts}
}

// NewComposite creates a transparent block: its statements share the scope of
// the enclosing block.
func NewComposite(t Type, stmts ...Statement) *Block {
	b := NewBlock(t, stmts...)
	b.IsTransparent = true
	return b
}

// NewReturn creates a return from the given function.
func NewReturn(fn *Function, value Expr, nothing Type) *Return {
	return &Return{ExprBase: ExprBase{ElementBase: synthesized(OriginDefined), typ: nothing}, Target: fn.Symbol(), Value: value}
}

// NewTry creates a try expression.
func NewTry(t Type, body Expr, catches []*Catch, finally Expr) *Try {
	return &Try{ExprBase: ExprBase{ElementBase: synthesized(OriginDefined), typ: t}, Body: body, Catches: catches, Finally: finally}
}

// NewCatch creates a catch clause.
func NewCatch(param *Variable, result Expr) *Catch {
	return &Catch{ElementBase: synthesized(OriginDefined), Param: param, Result: result}
}

// NewThrow creates a throw expression.
func NewThrow(value Expr, nothing Type) *Throw {
	return &Throw{ExprBase: ExprBase{ElementBase: synthesized(OriginDefined), typ: nothing}, Value: value}
}

// NewWhen creates a when expression.
func NewWhen(t Type, branches ...*Branch) *When {
	return &When{ExprBase: ExprBase{ElementBase: synthesized(OriginDefined), typ: t}, Branches: branches}
}

// NewBranch creates a branch of a when expression.
func NewBranch(cond, result Expr) *Branch {
	return &Branch{ElementBase: synthesized(OriginDefined), Condition: cond, Result: result}
}

// NewIf creates `if (cond) then else otherwise`.  A nil `otherwise` creates an
// if without an else branch.
func NewIf(t Type, cond, then, otherwise Expr, b *Builtins) *When {
	w := NewWhen(t, NewBranch(cond, then))
	if otherwise != nil {
		w.Branches = append(w.Branches, NewBranch(b.BoolConst(true), otherwise))
	}

	return w
}

// NewLoop creates a while loop.
func NewLoop(cond, body Expr, unit Type) *Loop {
	return &Loop{ExprBase: ExprBase{ElementBase: synthesized(OriginDefined), typ: unit}, Condition: cond, Body: body}
}

// NewTypeOperator creates a type operator call.
func NewTypeOperator(op TypeOperator, arg Expr, operand, resultType Type) *TypeOperatorCall {
	return &TypeOperatorCall{
		ExprBase:    ExprBase{ElementBase: synthesized(OriginDefined), typ: resultType},
		Operator:    op,
		Argument:    arg,
		TypeOperand: operand,
	}
}

// NewStringConcat creates a string concatenation.
func NewStringConcat(stringType Type, args ...Expr) *StringConcat {
	return &StringConcat{ExprBase: ExprBase{ElementBase: synthesized(OriginDefined), typ: stringType}, Args: args}
}

// NewFunctionReference creates a reference to a function.
func NewFunctionReference(fn *Function, t Type) *FunctionReference {
	return &FunctionReference{ExprBase: ExprBase{ElementBase: synthesized(OriginDefined), typ: t}, Sym: fn.Symbol()}
}

// NewFunctionExpression creates a lambda owning the given function.
func NewFunctionExpression(fn *Function, t Type) *FunctionExpression {
	return &FunctionExpression{ExprBase: ExprBase{ElementBase: synthesized(OriginLambda), typ: t}, Function: fn}
}

// NewPropertyReference creates a reference to a property.
func NewPropertyReference(p *Property, receiver Expr, t Type) *PropertyReference {
	return &PropertyReference{
		ExprBase:         ExprBase{ElementBase: synthesized(OriginDefined), typ: t},
		Sym:              p.Symbol(),
		DispatchReceiver: receiver,
	}
}

// NewConst creates a constant of the given kind.
func NewConst(kind ConstKind, value any, t Type) *Const {
	return &Const{ExprBase: ExprBase{ElementBase: synthesized(OriginDefined), typ: t}, Kind: kind, Value: value}
}

// WithOrigin sets the origin of an element and returns it.
func WithOrigin[E Element](e E, origin Origin) E {
	e.SetOrigin(origin)
	return e
}

// IsNullConst returns whether the expression is the `null` constant.
func IsNullConst(e Expr) bool {
	c, ok := e.(*Const)
	return ok && c.Kind == ConstNull
}

// IsTrueConst returns whether the expression is the `true` constant.
func IsTrueConst(e Expr) bool {
	c, ok := e.(*Const)
	return ok && c.Kind == ConstBoolean && c.Value == true
}
