package lower

import (
	"nativec/ir"
)

// FinallyBlocksLowering removes `finally` clauses.  The finally block is
// copied before every return, break and continue leaving the protected code
// and after its normal exit.  A catch-all handler runs it on the exceptional
// path and rethrows:
//
//	{
//	  val result = try { try { body } catch (...) { ... } } catch (t: Throwable) { finally; throw t }
//	  finally
//	  result
//	}
type FinallyBlocksLowering struct {
	ctx   *Context
	temps tempCounter
}

func (fbl *FinallyBlocksLowering) LowerBody(body ir.Expr, container ir.Declaration) ir.Expr {
	var t ir.Transformer
	t = ir.TransformerFunc(func(e ir.Element) ir.Element {
		ir.TransformChildren(e, t)

		if try, ok := e.(*ir.Try); ok && try.Finally != nil {
			return fbl.lowerTry(try)
		}

		return e
	})

	return transformExpr(t, body)
}

func (fbl *FinallyBlocksLowering) lowerTry(try *ir.Try) ir.Expr {
	ctx := fbl.ctx
	b := ctx.Builtins
	finally := try.Finally

	copyFinally := func() ir.Expr {
		return ir.WithOrigin(ir.DeepCopy(ctx.Factory, finally), ir.OriginFinallyCopy)
	}

	protected := fbl.guardExits(try.Body, copyFinally)
	if len(try.Catches) > 0 {
		for _, c := range try.Catches {
			c.Result = fbl.guardExits(c.Result, copyFinally)
		}

		protected = ir.NewTry(try.Type(), protected, try.Catches, nil)
	}

	caught := ctx.Factory.BuildVariable(fbl.temps.next("t"), b.ThrowableType(), false, nil)
	caught.SetOrigin(ir.OriginFinallyTemp)
	rethrow := ir.NewBlock(ctx.nothing(), copyFinally(), ir.NewThrow(ir.NewGetValue(caught), ctx.nothing()))

	lowered := ir.NewTry(try.Type(), protected, []*ir.Catch{ir.NewCatch(caught, rethrow)}, nil)
	lowered.SetSpan(try.Span())

	if isUnitOrNothing(b, try.Type()) {
		return ir.NewComposite(try.Type(), lowered, copyFinally())
	}

	result := ctx.temporary(fbl.temps.next("result"), lowered)
	result.SetOrigin(ir.OriginFinallyTemp)
	return ir.NewComposite(try.Type(), result, copyFinally(), ir.NewGetValue(result))
}

func isUnitOrNothing(b *ir.Builtins, t ir.Type) bool {
	c := ir.ClassOf(t)
	return c == b.Unit || c == b.Nothing
}

// guardExits inserts a copy of the finally block before every jump in `e`
// that leaves it.  Jumps inside nested functions and to loops nested in `e`
// stay inside and are not touched.
func (fbl *FinallyBlocksLowering) guardExits(e ir.Expr, copyFinally func() ir.Expr) ir.Expr {
	ctx := fbl.ctx
	inner := make(map[*ir.Loop]struct{})

	var t ir.Transformer
	t = ir.TransformerFunc(func(e ir.Element) ir.Element {
		switch v := e.(type) {
		case *ir.Function:
			return e
		case *ir.Loop:
			inner[v] = struct{}{}
		}

		ir.TransformChildren(e, t)

		switch v := e.(type) {
		case *ir.Return:
			if v.Value == nil {
				return ir.NewComposite(ctx.nothing(), copyFinally(), v)
			}

			// the returned value is computed before the finally block runs
			tmp := ctx.temporary(fbl.temps.next("ret"), v.Value)
			tmp.SetOrigin(ir.OriginFinallyTemp)
			v.Value = ir.NewGetValue(tmp)
			return ir.NewComposite(ctx.nothing(), tmp, copyFinally(), v)
		case *ir.Break:
			if _, ok := inner[v.Loop]; !ok {
				return ir.NewComposite(ctx.nothing(), copyFinally(), v)
			}
		case *ir.Continue:
			if _, ok := inner[v.Loop]; !ok {
				return ir.NewComposite(ctx.nothing(), copyFinally(), v)
			}
		}

		return e
	})

	return transformExpr(t, e)
}
