package lower

import (
	"fmt"

	"nativec/ir"
)

// scopedTransformer is a transformer that tracks the stack of declarations
// enclosing the element being transformed.  `visit` handles the elements a
// pass cares about and calls `descend` for the rest.
type scopedTransformer struct {
	stack []ir.Declaration
	visit func(st *scopedTransformer, e ir.Element) ir.Element
}

func newScopedTransformer(root ir.Declaration, visit func(st *scopedTransformer, e ir.Element) ir.Element) *scopedTransformer {
	st := &scopedTransformer{visit: visit}
	if root != nil {
		st.stack = append(st.stack, root)
	}

	return st
}

func (st *scopedTransformer) Transform(e ir.Element) ir.Element {
	switch d := e.(type) {
	case *ir.Function, *ir.Class, *ir.Field:
		st.stack = append(st.stack, d.(ir.Declaration))
		defer func() { st.stack = st.stack[:len(st.stack)-1] }()
	}

	return st.visit(st, e)
}

// descend transforms the children of `e` and returns `e`.
func (st *scopedTransformer) descend(e ir.Element) ir.Element {
	ir.TransformChildren(e, st)
	return e
}

// container returns the innermost enclosing declaration.
func (st *scopedTransformer) container() ir.Declaration {
	if len(st.stack) == 0 {
		return nil
	}

	return st.stack[len(st.stack)-1]
}

// function returns the innermost enclosing function or nil.
func (st *scopedTransformer) function() *ir.Function {
	for i := len(st.stack) - 1; i >= 0; i-- {
		if fn, ok := st.stack[i].(*ir.Function); ok {
			return fn
		}
	}

	return nil
}

// transformExpr runs a transformer on an expression and returns the result
// as an expression.
func transformExpr(t ir.Transformer, e ir.Expr) ir.Expr {
	if e == nil {
		return nil
	}

	return t.Transform(e).(ir.Expr)
}

// -----------------------------------------------------------------------------

// tempCounter names the temporaries of a pass.
type tempCounter int

func (tc *tempCounter) next(prefix string) string {
	*tc++
	return fmt.Sprintf("%s$%d", prefix, int(*tc))
}

// temporary creates a `val` holding `value`, typed like the value.
func (ctx *Context) temporary(name string, value ir.Expr) *ir.Variable {
	v := ctx.Factory.BuildVariable(name, value.Type(), false, value)
	v.SetOrigin(ir.OriginTemporary)
	return v
}

// unit is the type of statements.
func (ctx *Context) unit() ir.Type {
	return ctx.Builtins.UnitType()
}

// nothing is the type of jumps.
func (ctx *Context) nothing() ir.Type {
	return ctx.Builtins.NothingType()
}

// eqeq creates the `==` intrinsic call.
func (ctx *Context) eqeq(a, b ir.Expr) *ir.Call {
	return ir.NewCall(ctx.Builtins.EqEq, a, b)
}

// isNull creates `e == null`.
func (ctx *Context) isNull(e ir.Expr) *ir.Call {
	return ctx.eqeq(e, ctx.Builtins.NullConst(ctx.Builtins.NullableAnyType()))
}

// implicitCast casts an expression to a type without a runtime check.
func (ctx *Context) implicitCast(e ir.Expr, t ir.Type) ir.Expr {
	if ir.TypesEqual(e.Type(), t) {
		return e
	}

	return ir.NewTypeOperator(ir.OpImplicitCast, e, t, t)
}

// thisValue returns the receiver an implicit `this` of `class` resolves to
// inside `fn`: the dispatch receiver of a member or the class receiver for
// constructors and initializers.
func thisValue(fn *ir.Function, class *ir.Class) *ir.ValueParameter {
	if fn != nil && fn.DispatchReceiver != nil && ir.ClassOf(fn.DispatchReceiver.Type) == class {
		return fn.DispatchReceiver
	}

	return class.ThisReceiver
}

// addMember appends `d` to the container.
func addMember(container ir.DeclarationContainer, d ir.Declaration) {
	members := container.Members()
	*members = append(*members, d)
	d.SetParent(container.(ir.DeclarationParent))
}

// addMemberAfter inserts `d` into the container right after `anchor`, or at
// the end if `anchor` is not a member.
func addMemberAfter(container ir.DeclarationContainer, anchor, d ir.Declaration) {
	members := container.Members()
	for i, m := range *members {
		if m == anchor {
			*members = append((*members)[:i+1], append([]ir.Declaration{d}, (*members)[i+1:]...)...)
			d.SetParent(container.(ir.DeclarationParent))
			return
		}
	}

	*members = append(*members, d)
	d.SetParent(container.(ir.DeclarationParent))
}
