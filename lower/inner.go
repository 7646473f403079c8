package lower

import (
	"nativec/ir"
)

// InnerClassesLowering makes the outer instance of inner classes explicit.
// Every inner class gets a `this$0` field and every one of its constructors a
// leading `$outer` parameter stored into that field.  Accesses to the `this`
// of an outer class from inside an inner class become a chain of `this$0`
// reads, walking outwards one class at a time.  The walk gives up, leaving
// the access untouched, when it reaches a class that is not inner.
type InnerClassesLowering struct {
	ctx *Context
}

func (icl *InnerClassesLowering) Lower(file *ir.File) {
	var inner []*ir.Class
	ir.VisitAll(file, func(e ir.Element) {
		if c, ok := e.(*ir.Class); ok && c.IsInner {
			inner = append(inner, c)
		}
	})

	// the fields of all classes must exist before any chain is built
	for _, c := range inner {
		icl.addOuterThis(c)
	}

	for _, c := range inner {
		icl.lowerOuterThisAccesses(c)
	}
}

func (icl *InnerClassesLowering) addOuterThis(c *ir.Class) {
	m := icl.ctx.Mapping
	if _, ok := m.OuterThisFields[c]; ok {
		return
	}

	outer := ir.ParentClass(c)
	if outer == nil {
		icePhase("InnerClasses", c, "inner class has no outer class")
	}

	f := icl.ctx.Factory
	field := f.BuildField("this$0", outer.DefaultType(), ir.OriginOuterThisField)
	field.IsFinal = true
	c.Declarations = append([]ir.Declaration{field}, c.Declarations...)
	field.SetParent(c)
	m.OuterThisFields[c] = field

	for _, ctor := range c.Constructors() {
		param := f.BuildValueParameter("$outer", outer.DefaultType(), 0)
		param.SetOrigin(ir.OriginOuterThisParameter)
		param.SetParent(ctor)
		ctor.Params = append([]*ir.ValueParameter{param}, ctor.Params...)
		ctor.ReindexParams()
		m.InnerConstructorOuterParams[ctor] = param

		if ctor.Body == nil || delegatesToSibling(ctor, c) {
			continue
		}

		store := ir.NewSetField(field, ir.NewGetValue(c.ThisReceiver), ir.NewGetValue(param), icl.ctx.unit())
		store.SetOrigin(ir.OriginOuterThisField)
		ctor.Body.Statements = append([]ir.Statement{store}, ctor.Body.Statements...)
	}
}

// delegatesToSibling returns whether a constructor delegates to another
// constructor of its own class, which then stores the outer instance.
func delegatesToSibling(ctor *ir.Function, c *ir.Class) bool {
	for _, stmt := range ctor.Body.Statements {
		if dc, ok := stmt.(*ir.DelegatingConstructorCall); ok {
			return dc.Sym.Function().Parent() == c
		}
	}

	return false
}

// lowerOuterThisAccesses rewrites the outer `this` accesses in the members of
// one class.  Nested classes are lowered on their own.
func (icl *InnerClassesLowering) lowerOuterThisAccesses(c *ir.Class) {
	for i, d := range c.Declarations {
		if _, nested := d.(*ir.Class); nested {
			continue
		}

		st := newScopedTransformer(nil, func(st *scopedTransformer, e ir.Element) ir.Element {
			switch v := e.(type) {
			case *ir.Class:
				return e
			case *ir.GetValue:
				return icl.lowerGetValue(st, c, v)
			}

			return st.descend(e)
		})

		c.Declarations[i] = st.Transform(d).(ir.Declaration)
	}
}

// classForImplicitThis returns the class whose instance a value is, if the
// value is a class receiver or the dispatch receiver of a member.
func classForImplicitThis(s *ir.Symbol) *ir.Class {
	vp, ok := s.Owner().(*ir.ValueParameter)
	if !ok {
		return nil
	}

	switch p := vp.Parent().(type) {
	case *ir.Class:
		if p.ThisReceiver == vp {
			return p
		}
	case *ir.Function:
		if p.DispatchReceiver == vp {
			return ir.ClassOf(vp.Type)
		}
	}

	return nil
}

func (icl *InnerClassesLowering) lowerGetValue(st *scopedTransformer, c *ir.Class, gv *ir.GetValue) ir.Expr {
	target := classForImplicitThis(gv.Sym)
	if target == nil || target == c {
		return gv
	}

	m := icl.ctx.Mapping

	// find where the walk starts: the `$outer` parameter inside constructors,
	// the receiver of the enclosing member anywhere else
	var member *ir.Function
	for i := len(st.stack) - 1; i >= 0; i-- {
		if fn, ok := st.stack[i].(*ir.Function); ok && fn.Parent() == c {
			member = fn
			break
		}
	}

	var expr ir.Expr
	var cur *ir.Class
	if outerParam, ok := m.InnerConstructorOuterParams[member]; ok && member != nil {
		expr = ir.NewGetValue(outerParam)
		cur = ir.ParentClass(c)
	} else {
		expr = ir.NewGetValue(thisValue(member, c))
		cur = c
	}

	for cur != target {
		if cur == nil || !cur.IsInner {
			return gv
		}

		field, ok := m.OuterThisFields[cur]
		if !ok {
			icePhase("InnerClasses", cur, "inner class has no outer this field")
		}

		expr = ir.NewGetField(field, expr)
		cur = ir.ParentClass(cur)
	}

	expr.SetSpan(gv.Span())
	return expr
}

// -----------------------------------------------------------------------------

// InnerClassConstructorCallsLowering passes the outer instance of inner class
// constructor calls as the leading argument.  Delegating calls inside an
// inner class forward the constructor's own `$outer`.  References to inner
// constructors become lambdas bound to the outer instance.
type InnerClassConstructorCallsLowering struct {
	ctx   *Context
	temps tempCounter
}

func (iccl *InnerClassConstructorCallsLowering) LowerBody(body ir.Expr, container ir.Declaration) ir.Expr {
	m := iccl.ctx.Mapping

	st := newScopedTransformer(container, func(st *scopedTransformer, e ir.Element) ir.Element {
		st.descend(e)

		switch v := e.(type) {
		case *ir.ConstructorCall:
			if _, ok := m.InnerConstructorOuterParams[v.Sym.Function()]; ok {
				v.Args = append([]ir.Expr{iccl.outerInstance(st, v.DispatchReceiver, v.Sym.Function())}, v.Args...)
				v.DispatchReceiver = nil
			}
		case *ir.DelegatingConstructorCall:
			if _, ok := m.InnerConstructorOuterParams[v.Sym.Function()]; ok {
				v.Args = append([]ir.Expr{iccl.outerInstance(st, v.DispatchReceiver, v.Sym.Function())}, v.Args...)
				v.DispatchReceiver = nil
			}
		case *ir.FunctionReference:
			if _, ok := m.InnerConstructorOuterParams[v.Sym.Function()]; ok {
				return iccl.boundConstructorReference(st, v)
			}
		}

		return e
	})

	return transformExpr(st, body)
}

// outerInstance returns the outer instance argument of a call of an inner
// constructor.
func (iccl *InnerClassConstructorCallsLowering) outerInstance(st *scopedTransformer, receiver ir.Expr, ctor *ir.Function) ir.Expr {
	if receiver != nil {
		return receiver
	}

	// this(...) and super(...) calls from another constructor of an inner
	// class forward its own outer instance
	if fn := st.function(); fn != nil {
		if param, ok := iccl.ctx.Mapping.InnerConstructorOuterParams[fn]; ok {
			return ir.NewGetValue(param)
		}
	}

	icePhase("InnerClassConstructorCalls", ctor, "call of an inner class constructor has no outer instance")
	return nil
}

func (iccl *InnerClassConstructorCallsLowering) boundConstructorReference(st *scopedTransformer, ref *ir.FunctionReference) ir.Expr {
	ctx := iccl.ctx
	ctor := ref.Sym.Function()

	outer := ctx.temporary(iccl.temps.next("outer"), iccl.outerInstance(st, ref.DispatchReceiver, ctor))

	lambda := ctx.Factory.BuildFun("<anonymous>", ctor.ReturnType, ir.OriginLambda)
	lambda.SetSpan(ref.Span())

	args := []ir.Expr{ir.NewGetValue(outer)}
	for _, vp := range ctor.Params[1:] {
		np := ctx.Factory.AddValueParameter(lambda, vp.Name, vp.Type)
		args = append(args, ir.NewGetValue(np))
	}

	call := ir.NewConstructorCall(ctor, args...)
	call.TypeArgs = ref.TypeArgs
	lambda.Body = ir.NewBlock(ctx.unit(), ir.NewReturn(lambda, call, ctx.nothing()))
	ir.PatchDeclarationParents(lambda.Body, lambda)

	return ir.NewComposite(ref.Type(), outer, ir.NewFunctionExpression(lambda, ref.Type()))
}
