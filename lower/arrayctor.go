package lower

import (
	"nativec/ir"
)

// ArrayConstructorLowering expands `Array(size) { i -> init }` into an
// explicit allocation followed by a filling loop:
//
//	val size = <size>
//	val result = arrayOfNulls<T>(size)
//	var index = 0
//	while (index < size) { result.set(index, init(index)); index = index + 1 }
//	result
type ArrayConstructorLowering struct {
	ctx   *Context
	temps tempCounter
}

func (acl *ArrayConstructorLowering) LowerBody(body ir.Expr, container ir.Declaration) ir.Expr {
	var t ir.Transformer
	t = ir.TransformerFunc(func(e ir.Element) ir.Element {
		ir.TransformChildren(e, t)

		if call, ok := e.(*ir.ConstructorCall); ok && call.Sym == acl.ctx.Builtins.ArrayInitConstructor.Symbol() {
			return acl.expand(call)
		}

		return e
	})

	return transformExpr(t, body)
}

func (acl *ArrayConstructorLowering) expand(call *ir.ConstructorCall) ir.Expr {
	b := acl.ctx.Builtins
	f := acl.ctx.Factory

	var elemType ir.Type
	if len(call.TypeArgs) == 1 {
		elemType = call.TypeArgs[0]
	} else {
		elemType = call.Type().Arguments()[0]
	}

	size := acl.ctx.temporary(acl.temps.next("size"), call.Args[0])

	allocate := ir.NewCall(b.ArrayOfNulls, ir.NewGetValue(size))
	allocate.TypeArgs = []ir.Type{elemType}
	allocate.SetType(b.ArrayType(ir.MakeNullable(elemType)))
	result := acl.ctx.temporary(acl.temps.next("result"), allocate)

	index := f.BuildVariable(acl.temps.next("index"), b.IntType(), true, b.IntConst(0))
	index.SetOrigin(ir.OriginTemporary)

	var prelude []ir.Statement
	var element ir.Expr
	if inlined := acl.inlineInitializer(call.Args[1], index); inlined != nil {
		element = inlined
	} else {
		init := acl.ctx.temporary(acl.temps.next("init"), call.Args[1])
		prelude = append(prelude, init)

		invoke := ir.NewMemberCall(b.FunctionInvoke(1), ir.NewGetValue(init), ir.NewGetValue(index))
		invoke.SetType(elemType)
		element = invoke
	}

	loop := ir.NewLoop(ir.NewCall(b.IntLess, ir.NewGetValue(index), ir.NewGetValue(size)), nil, acl.ctx.unit())
	loop.Body = ir.NewBlock(acl.ctx.unit(),
		ir.NewMemberCall(b.ArraySet, ir.NewGetValue(result), ir.NewGetValue(index), element),
		ir.NewSetValue(index, ir.NewCall(b.IntPlus, ir.NewGetValue(index), b.IntConst(1)), acl.ctx.unit()),
	)

	stmts := []ir.Statement{size}
	stmts = append(stmts, prelude...)
	stmts = append(stmts,
		result,
		index,
		loop,
		acl.ctx.implicitCast(ir.NewGetValue(result), call.Type()),
	)

	return ir.WithOrigin(ir.NewComposite(call.Type(), stmts...), ir.OriginArrayCtor)
}

// inlineInitializer returns the element expression of a lambda initializer
// whose body is a single returned expression, with its parameter replaced by
// the loop index.  Any other initializer is invoked through `FunctionN`.
func (acl *ArrayConstructorLowering) inlineInitializer(init ir.Expr, index *ir.Variable) ir.Expr {
	lambda, ok := init.(*ir.FunctionExpression)
	if !ok || len(lambda.Function.Params) != 1 || lambda.Function.Body == nil {
		return nil
	}

	fn := lambda.Function
	stmts := fn.Body.Statements
	if len(stmts) != 1 {
		return nil
	}

	var value ir.Expr
	switch v := stmts[0].(type) {
	case *ir.Return:
		if v.Target != fn.Symbol() {
			return nil
		}

		if v.Value == nil {
			return nil
		}

		value = v.Value
	case ir.Expr:
		value = v
	default:
		return nil
	}

	// the value may not return from the lambda or declare anything itself
	inlinable := true
	ir.Inspect(value, func(e ir.Element) bool {
		switch v := e.(type) {
		case *ir.Return:
			if v.Target == fn.Symbol() {
				inlinable = false
			}
		case ir.Declaration:
			inlinable = false
		}

		return inlinable
	})

	if !inlinable {
		return nil
	}

	param := fn.Params[0].Symbol()
	value = ir.DeepCopy(acl.ctx.Factory, value)

	var t ir.Transformer
	t = ir.TransformerFunc(func(e ir.Element) ir.Element {
		if gv, ok := e.(*ir.GetValue); ok && gv.Sym == param {
			return ir.NewGetValue(index)
		}

		ir.TransformChildren(e, t)
		return e
	})

	return transformExpr(t, value)
}
