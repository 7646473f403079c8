package lower

import (
	"nativec/ir"
)

// SharedVariablesLowering boxes the locals that are accessed from a different
// container than the one declaring them: `var` locals and `val` locals
// without an initializer captured by a local function, lambda or local class.
// Lambdas passed to inline functions count as part of the caller unless their
// parameter is crossinline or noinline.
type SharedVariablesLowering struct {
	ctx *Context
}

func (svl *SharedVariablesLowering) LowerBody(body ir.Expr, container ir.Declaration) ir.Expr {
	shared := svl.collectShared(body, container)
	if len(shared) == 0 {
		return body
	}

	boxes := make(map[*ir.Symbol]*ir.Variable, len(shared))
	for _, v := range shared {
		box := svl.ctx.SharedVariables.DeclareSharedVariable(v)
		box.SetOrigin(ir.OriginSharedVariable)
		boxes[v.Symbol()] = box
	}

	manager := svl.ctx.SharedVariables

	var t ir.Transformer
	t = ir.TransformerFunc(func(e ir.Element) ir.Element {
		ir.TransformChildren(e, t)

		switch v := e.(type) {
		case *ir.Variable:
			if box, ok := boxes[v.Symbol()]; ok {
				return manager.DefineSharedValue(v, box)
			}
		case *ir.GetValue:
			if box, ok := boxes[v.Sym]; ok {
				return manager.GetSharedValue(box, v)
			}
		case *ir.SetValue:
			if box, ok := boxes[v.Sym]; ok {
				return manager.SetSharedValue(box, v)
			}
		}

		return e
	})

	return transformExpr(t, body)
}

// collectShared returns the variables of `body` that must be boxed in the
// order they are declared.
func (svl *SharedVariablesLowering) collectShared(body ir.Expr, container ir.Declaration) []*ir.Variable {
	declaredIn := make(map[*ir.Symbol]ir.Declaration)
	catchParams := make(map[*ir.Variable]struct{})

	var order []*ir.Variable
	isShared := make(map[*ir.Variable]bool)

	see := func(s *ir.Symbol, cur ir.Declaration) {
		declaring, ok := declaredIn[s]
		if !ok || declaring == cur {
			return
		}

		isShared[s.Owner().(*ir.Variable)] = true
	}

	var visit func(e ir.Element, cur ir.Declaration)
	visit = func(e ir.Element, cur ir.Declaration) {
		switch v := e.(type) {
		case *ir.Function:
			cur = v
		case *ir.Class:
			cur = v
		case *ir.Catch:
			catchParams[v.Param] = struct{}{}
		case *ir.Variable:
			_, isCatchParam := catchParams[v]
			if !isCatchParam && v.Origin() != ir.OriginSharedVariable && (v.IsVar || v.Initializer == nil) {
				declaredIn[v.Symbol()] = cur
				order = append(order, v)
			}
		case *ir.GetValue:
			see(v.Sym, cur)
		case *ir.SetValue:
			see(v.Sym, cur)
		case *ir.Call:
			if callee := v.Sym.Function(); callee.IsInline {
				visitInlineCall(v, callee, cur, visit)
				return
			}
		}

		for _, c := range ir.Children(e) {
			visit(c, cur)
		}
	}

	visit(body, container)

	var shared []*ir.Variable
	for _, v := range order {
		if isShared[v] {
			shared = append(shared, v)
		}
	}

	return shared
}

// visitInlineCall visits a call of an inline function.  The bodies of lambda
// arguments that will be inlined are visited as part of the caller.
func visitInlineCall(call *ir.Call, callee *ir.Function, cur ir.Declaration, visit func(ir.Element, ir.Declaration)) {
	if call.DispatchReceiver != nil {
		visit(call.DispatchReceiver, cur)
	}

	if call.ExtensionReceiver != nil {
		visit(call.ExtensionReceiver, cur)
	}

	for i, arg := range call.Args {
		if arg == nil {
			continue
		}

		if lambda, ok := arg.(*ir.FunctionExpression); ok && i < len(callee.Params) {
			if vp := callee.Params[i]; !vp.IsCrossinline && !vp.IsNoinline {
				for _, c := range ir.Children(lambda.Function) {
					visit(c, cur)
				}

				continue
			}
		}

		visit(arg, cur)
	}
}

// -----------------------------------------------------------------------------

// RefSharedVariablesManager boxes shared variables into `ObjectRef<T>` and
// accesses them through its `element` field.
type RefSharedVariablesManager struct {
	ctx *Context
}

func (rm *RefSharedVariablesManager) DeclareSharedVariable(original *ir.Variable) *ir.Variable {
	b := rm.ctx.Builtins

	alloc := ir.NewConstructorCall(b.ObjectRefCtor)
	alloc.TypeArgs = []ir.Type{original.Type}
	alloc.SetType(b.ObjectRefType(original.Type))

	box := rm.ctx.Factory.BuildVariable(original.Name, alloc.Type(), false, alloc)
	box.SetSpan(original.Span())
	box.SetOrigin(ir.OriginSharedVariable)
	return box
}

func (rm *RefSharedVariablesManager) DefineSharedValue(original, shared *ir.Variable) ir.Statement {
	if original.Initializer == nil {
		return shared
	}

	init := ir.NewSetField(rm.ctx.Builtins.ObjectRefElement, ir.NewGetValue(shared), original.Initializer, rm.ctx.unit())
	return ir.WithOrigin(ir.NewComposite(rm.ctx.unit(), shared, init), ir.OriginSharedVariable)
}

func (rm *RefSharedVariablesManager) GetSharedValue(shared *ir.Variable, read *ir.GetValue) ir.Expr {
	get := ir.NewGetField(rm.ctx.Builtins.ObjectRefElement, ir.NewGetValue(shared))
	get.SetSpan(read.Span())
	get.SetOrigin(ir.OriginSharedVariable)
	return rm.ctx.implicitCast(get, read.Type())
}

func (rm *RefSharedVariablesManager) SetSharedValue(shared *ir.Variable, write *ir.SetValue) ir.Expr {
	set := ir.NewSetField(rm.ctx.Builtins.ObjectRefElement, ir.NewGetValue(shared), write.Value, write.Type())
	set.SetSpan(write.Span())
	set.SetOrigin(ir.OriginSharedVariable)
	return set
}
