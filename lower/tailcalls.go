package lower

import "nativec/ir"

// TailSuspendCallsCollector records the tail suspend calls of a file in
// `ctx.TailSuspendCalls`.  The coroutine lowering relies on the set to decide
// which suspend functions need a state machine.
type TailSuspendCallsCollector struct {
	ctx *Context
}

func (tc *TailSuspendCallsCollector) Lower(file *ir.File) {
	CollectTailSuspendCalls(file, tc.ctx.Builtins, tc.ctx.TailSuspendCalls)
}

// CollectTailSuspendCalls adds every suspend call of the file whose result is
// immediately returned by its enclosing suspend function to `tails`.
func CollectTailSuspendCalls(file *ir.File, b *ir.Builtins, tails map[*ir.Call]struct{}) {
	ir.Inspect(file, func(e ir.Element) bool {
		if fn, ok := e.(*ir.Function); ok && fn.IsSuspend && fn.Body != nil {
			collectFunctionTails(fn, b, tails)
		}

		return true
	})
}

func collectFunctionTails(fn *ir.Function, b *ir.Builtins, tails map[*ir.Call]struct{}) {
	ir.Inspect(fn.Body, func(e ir.Element) bool {
		switch v := e.(type) {
		case *ir.Function:
			// nested functions are visited on their own
			return false
		case *ir.Return:
			if v.Target == fn.Symbol() && v.Value != nil {
				markTail(v.Value, tails, nil)
			}
		}

		return true
	})

	// The last statement of a function returning Unit is implicitly returned.
	// A call producing anything but Unit is still coerced to Unit afterwards.
	if ir.ClassOf(fn.ReturnType) == b.Unit && len(fn.Body.Statements) > 0 {
		if last, ok := fn.Body.Statements[len(fn.Body.Statements)-1].(ir.Expr); ok {
			markTail(last, tails, b)
		}
	}
}

// markTail marks the suspend calls whose value becomes the value of `e`.  If
// `unit` is not nil, the value is implicitly discarded and only calls
// returning Unit or Nothing are marked.
func markTail(e ir.Expr, tails map[*ir.Call]struct{}, unit *ir.Builtins) {
	switch v := e.(type) {
	case *ir.Call:
		if !v.Sym.Function().IsSuspend {
			return
		}

		if unit != nil {
			if cls := ir.ClassOf(v.Type()); cls != unit.Unit && cls != unit.Nothing {
				return
			}
		}

		tails[v] = struct{}{}
	case *ir.Block:
		if len(v.Statements) > 0 {
			if last, ok := v.Statements[len(v.Statements)-1].(ir.Expr); ok {
				markTail(last, tails, unit)
			}
		}
	case *ir.When:
		for _, branch := range v.Branches {
			markTail(branch.Result, tails, unit)
		}
	case *ir.TypeOperatorCall:
		if v.Operator == ir.OpImplicitCast {
			markTail(v.Argument, tails, unit)
		}
	}
}
