package lower

import (
	"fmt"

	"nativec/ir"
	"nativec/report"
)

// DefaultArgumentStubGenerator adds a `$default` stub next to every function
// and constructor with default parameter values.  The stub takes the original
// parameters, one mask word per 32 of them and, for constructors, a trailing
// marker.  Function stubs take a trailing handler only if the context asks
// for it.  For each parameter whose mask
// bit is set, the stub evaluates its default value in the stub's own scope and
// then dispatches to the original.
type DefaultArgumentStubGenerator struct {
	ctx *Context
}

func (dsg *DefaultArgumentStubGenerator) TransformFlat(d ir.Declaration) []ir.Declaration {
	switch v := d.(type) {
	case *ir.Function:
		dsg.transformLocals(v, v)
		if stub := dsg.stubFor(v); stub != nil {
			return []ir.Declaration{v, stub}
		}
	case *ir.Property, *ir.Field:
		dsg.transformLocals(v, v.Parent())
	}

	return nil
}

// transformLocals adds the stubs of local functions next to them.
func (dsg *DefaultArgumentStubGenerator) transformLocals(e ir.Element, parent ir.DeclarationParent) {
	ir.TransformFlatLocal(e, parent, func(d ir.Declaration) []ir.Declaration {
		if fn, ok := d.(*ir.Function); ok {
			if stub := dsg.stubFor(fn); stub != nil {
				return []ir.Declaration{fn, stub}
			}
		}

		return nil
	})
}

// stubFor creates the stub of a function or returns nil if it needs none.
func (dsg *DefaultArgumentStubGenerator) stubFor(fn *ir.Function) *ir.Function {
	if !fn.HasDefaultValues() || fn.Origin() == ir.OriginDefaultArgumentsStub {
		return nil
	}

	if _, ok := dsg.ctx.Mapping.DefaultStubs[fn]; ok {
		return nil
	}

	for _, vp := range fn.Params {
		if vp.DefaultValue != nil && vp.VarargElementType != nil {
			panic(report.Raise(vp.Span(), "default value of vararg parameter `%s` of %s is not supported", vp.Name, ir.Describe(fn)))
		}
	}

	ctx := dsg.ctx
	f := ctx.Factory
	b := ctx.Builtins

	var stub *ir.Function
	if fn.IsConstructor {
		stub = f.BuildConstructor(fn.ConstructedClass(), false, ir.OriginDefaultArgumentsStub)
	} else {
		stub = f.BuildFun(fn.Name+"$default", nil, ir.OriginDefaultArgumentsStub)
	}

	stub.SetSpan(fn.Span())
	stub.IsSuspend = fn.IsSuspend

	// type parameters are copied: the stub is a separate generic function
	subst := make(map[*ir.TypeParameter]ir.Type)
	for _, tp := range fn.TypeParameters {
		subst[tp] = f.AddTypeParameter(stub, tp.Name, tp.SuperTypes...).DefaultType()
	}

	stub.ReturnType = ir.SubstituteTypes(fn.ReturnType, subst)

	// remap the original parameters to the stub's in the default values
	remap := make(map[*ir.Symbol]ir.ValueDeclaration)
	copyParam := func(vp *ir.ValueParameter) *ir.ValueParameter {
		if vp == nil {
			return nil
		}

		np := f.BuildValueParameter(vp.Name, ir.SubstituteTypes(vp.Type, subst), vp.Index)
		np.SetSpan(vp.Span())
		np.VarargElementType = vp.VarargElementType
		np.IsAssignable = true
		np.SetParent(stub)
		remap[vp.Symbol()] = np
		return np
	}

	stub.DispatchReceiver = copyParam(fn.DispatchReceiver)
	stub.ExtensionReceiver = copyParam(fn.ExtensionReceiver)
	for _, vp := range fn.Params {
		stub.AddParam(copyParam(vp))
	}

	n := len(fn.Params)
	masks := make([]*ir.ValueParameter, (n+31)/32)
	for k := range masks {
		masks[k] = f.AddValueParameter(stub, fmt.Sprintf("mask$%d", k), b.IntType())
		masks[k].SetOrigin(ir.OriginMaskForDefaults)
	}

	if fn.IsConstructor {
		marker := f.AddValueParameter(stub, "marker", b.NullableAnyType())
		marker.SetOrigin(ir.OriginMarkerForDefaults)
	} else if ctx.DefaultArgumentHandlers {
		handler := f.AddValueParameter(stub, "handler", b.NullableAnyType())
		handler.SetOrigin(ir.OriginHandlerForDefaults)
	}

	var stmts []ir.Statement
	for i, vp := range fn.Params {
		if vp.DefaultValue == nil {
			continue
		}

		bit := ir.NewCall(b.IntAnd, ir.NewGetValue(masks[i/32]), b.IntConst(maskBit(i)))
		cond := ir.NewCall(b.Not, ctx.eqeq(bit, b.IntConst(0)))

		value := remapValues(ir.DeepCopy(f, vp.DefaultValue), remap)
		assign := ir.NewSetValue(stub.Params[i], value, ctx.unit())

		stmts = append(stmts, ir.WithOrigin(ir.NewIf(ctx.unit(), cond, assign, nil, b), ir.OriginDefaultValueCondition))
	}

	args := make([]ir.Expr, n)
	for i := range fn.Params {
		args[i] = ir.NewGetValue(stub.Params[i])
	}

	typeArgs := make([]ir.Type, len(stub.TypeParameters))
	for i, tp := range stub.TypeParameters {
		typeArgs[i] = tp.DefaultType()
	}

	if fn.IsConstructor {
		dispatch := ir.NewDelegatingConstructorCall(fn, ctx.unit(), args...)
		dispatch.TypeArgs = typeArgs
		stmts = append(stmts, ir.WithOrigin(dispatch, ir.OriginDefaultDispatchCall))
	} else {
		dispatch := ir.NewCall(fn, args...)
		dispatch.TypeArgs = typeArgs
		dispatch.SetType(stub.ReturnType)

		if stub.DispatchReceiver != nil {
			dispatch.DispatchReceiver = ir.NewGetValue(stub.DispatchReceiver)
		}

		if stub.ExtensionReceiver != nil {
			dispatch.ExtensionReceiver = ir.NewGetValue(stub.ExtensionReceiver)
		}

		stmts = append(stmts, ir.NewReturn(stub, ir.WithOrigin(dispatch, ir.OriginDefaultDispatchCall), ctx.nothing()))
	}

	stub.Body = ir.NewBlock(ctx.unit(), stmts...)
	ir.PatchDeclarationParents(stub.Body, stub)

	ctx.Mapping.DefaultStubs[fn] = stub
	ctx.observe(stub)
	return stub
}

// maskBit returns the bit of parameter `i` in its mask word.
func maskBit(i int) int32 {
	return int32(uint32(1) << uint(i%32))
}

// remapValues replaces the reads and writes of values by those of their
// replacements.
func remapValues(e ir.Expr, remap map[*ir.Symbol]ir.ValueDeclaration) ir.Expr {
	var t ir.Transformer
	t = ir.TransformerFunc(func(e ir.Element) ir.Element {
		ir.TransformChildren(e, t)

		switch v := e.(type) {
		case *ir.GetValue:
			if r, ok := remap[v.Sym]; ok {
				return ir.WithOrigin(ir.NewGetValue(r), v.Origin())
			}
		case *ir.SetValue:
			if r, ok := remap[v.Sym]; ok {
				v.Sym = r.Symbol()
			}
		}

		return e
	})

	return transformExpr(t, e)
}

// -----------------------------------------------------------------------------

// DefaultArgumentInjector redirects calls with omitted arguments to the
// `$default` stub of the callee.  Omitted arguments are passed as the zero
// value of their type and flagged in the mask words.
type DefaultArgumentInjector struct {
	ctx *Context
}

func (dai *DefaultArgumentInjector) LowerBody(body ir.Expr, container ir.Declaration) ir.Expr {
	var t ir.Transformer
	t = ir.TransformerFunc(func(e ir.Element) ir.Element {
		ir.TransformChildren(e, t)

		switch v := e.(type) {
		case *ir.Call:
			if hasOmittedArgs(v.Args) {
				stub := dai.stubOf(v.Sym.Function(), container)
				call := ir.NewCall(stub, dai.injectArgs(v.Sym.Function(), v.Args)...)
				call.SetSpan(v.Span())
				call.SetType(v.Type())
				call.DispatchReceiver = v.DispatchReceiver
				call.ExtensionReceiver = v.ExtensionReceiver
				call.TypeArgs = v.TypeArgs
				return call
			}
		case *ir.ConstructorCall:
			if hasOmittedArgs(v.Args) {
				stub := dai.stubOf(v.Sym.Function(), container)
				call := ir.NewConstructorCall(stub, dai.injectArgs(v.Sym.Function(), v.Args)...)
				call.SetSpan(v.Span())
				call.SetType(v.Type())
				call.DispatchReceiver = v.DispatchReceiver
				call.TypeArgs = v.TypeArgs
				return call
			}
		case *ir.DelegatingConstructorCall:
			if hasOmittedArgs(v.Args) {
				stub := dai.stubOf(v.Sym.Function(), container)
				call := ir.NewDelegatingConstructorCall(stub, v.Type(), dai.injectArgs(v.Sym.Function(), v.Args)...)
				call.SetSpan(v.Span())
				call.DispatchReceiver = v.DispatchReceiver
				call.TypeArgs = v.TypeArgs
				return call
			}
		}

		return e
	})

	return transformExpr(t, body)
}

func hasOmittedArgs(args []ir.Expr) bool {
	for _, arg := range args {
		if arg == nil {
			return true
		}
	}

	return false
}

func (dai *DefaultArgumentInjector) stubOf(fn *ir.Function, container ir.Declaration) *ir.Function {
	stub, ok := dai.ctx.Mapping.DefaultStubs[fn]
	if !ok {
		icePhase("DefaultArgumentInjector", container, "call of %s omits arguments but it has no default stub", ir.Describe(fn))
	}

	return stub
}

// injectArgs builds the argument list of a stub call: the explicit arguments
// or placeholders, the mask words and a null marker or handler if the stub
// takes one.
func (dai *DefaultArgumentInjector) injectArgs(fn *ir.Function, args []ir.Expr) []ir.Expr {
	b := dai.ctx.Builtins

	masks := make([]int32, (len(fn.Params)+31)/32)
	result := make([]ir.Expr, 0, len(fn.Params)+len(masks)+1)

	for i, vp := range fn.Params {
		if i < len(args) && args[i] != nil {
			result = append(result, args[i])
			continue
		}

		masks[i/32] |= maskBit(i)
		result = append(result, b.DefaultValueFor(vp.Type))
	}

	for _, m := range masks {
		result = append(result, b.IntConst(m))
	}

	if fn.IsConstructor || dai.ctx.DefaultArgumentHandlers {
		result = append(result, b.NullConst(b.NullableAnyType()))
	}

	return result
}

// -----------------------------------------------------------------------------

// DefaultParameterCleaner removes the default values of functions that got a
// stub: they are now evaluated by the stub.
type DefaultParameterCleaner struct {
	ctx *Context
}

func (dpc *DefaultParameterCleaner) Lower(file *ir.File) {
	var functions []*ir.Function
	ir.VisitAll(file, func(e ir.Element) {
		if fn, ok := e.(*ir.Function); ok {
			if _, hasStub := dpc.ctx.Mapping.DefaultStubs[fn]; hasStub {
				functions = append(functions, fn)
			}
		}
	})

	for _, fn := range functions {
		for _, vp := range fn.Params {
			vp.DefaultValue = nil
		}
	}
}
