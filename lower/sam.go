package lower

import (
	"fmt"

	"nativec/ir"
)

// SingleAbstractMethodLowering replaces SAM conversions of function values by
// instances of adapter classes.  An adapter implements the interface by
// forwarding its single abstract method to the wrapped function.  Adapters are
// shared by all the conversions to the same erased interface within a file.
// Conversions inside inline functions get their own adapters since the bodies
// of inline functions are copied into other files.
type SingleAbstractMethodLowering struct {
	ctx *Context

	file    *ir.File
	inline  map[*ir.Function]map[*ir.Class]*ir.Class
	pending []pendingWrapper
	counter int
}

type pendingWrapper struct {
	wrapper   *ir.Class
	container ir.DeclarationContainer
}

func (sl *SingleAbstractMethodLowering) Lower(file *ir.File) {
	sl.file = file
	sl.inline = make(map[*ir.Function]map[*ir.Class]*ir.Class)
	sl.pending = nil
	sl.counter = 0
	sl.ctx.Mapping.SamWrappers = make(map[*ir.Class]*ir.Class)

	st := newScopedTransformer(nil, func(st *scopedTransformer, e ir.Element) ir.Element {
		st.descend(e)

		if op, ok := e.(*ir.TypeOperatorCall); ok && op.Operator == ir.OpSamConversion {
			return sl.convert(st, op)
		}

		return e
	})

	st.Transform(file)

	// adapters are added once the whole file is transformed
	for _, p := range sl.pending {
		addMember(p.container, p.wrapper)
		ir.PatchDeclarationParents(p.wrapper, p.container)
		sl.ctx.observe(p.wrapper)
	}
}

func (sl *SingleAbstractMethodLowering) convert(st *scopedTransformer, op *ir.TypeOperatorCall) ir.Expr {
	ctx := sl.ctx
	arg := op.Argument

	if ir.IsNullConst(arg) {
		return arg
	}

	iface := ir.Erase(op.TypeOperand, ctx.Builtins.Any)
	wrapper := sl.wrapperFor(st, iface)
	ctor := wrapper.PrimaryConstructor()

	if !arg.Type().IsNullable() {
		call := ir.NewConstructorCall(ctor, arg)
		call.SetSpan(op.Span())
		call.SetType(op.Type())
		return call
	}

	// if (tmp == null) null else Wrapper(tmp)
	tmp := ctx.temporary(fmt.Sprintf("sam$%d", sl.counter), arg)
	sl.counter++

	call := ir.NewConstructorCall(ctor, ctx.implicitCast(ir.NewGetValue(tmp), ir.MakeNotNull(arg.Type())))
	call.SetType(ir.MakeNotNull(op.Type()))

	resultType := ir.MakeNullable(op.Type())
	check := ir.NewIf(resultType, ctx.isNull(ir.NewGetValue(tmp)), ctx.Builtins.NullConst(resultType), call, ctx.Builtins)

	composite := ir.NewComposite(resultType, tmp, check)
	composite.SetSpan(op.Span())
	return composite
}

// wrapperFor returns the adapter of an interface in the current scope,
// creating it on first use.
func (sl *SingleAbstractMethodLowering) wrapperFor(st *scopedTransformer, iface *ir.Class) *ir.Class {
	var inlineFn *ir.Function
	for i := len(st.stack) - 1; i >= 0; i-- {
		if fn, ok := st.stack[i].(*ir.Function); ok && fn.IsInline {
			inlineFn = fn
			break
		}
	}

	cache := sl.ctx.Mapping.SamWrappers
	var container ir.DeclarationContainer = sl.file
	if inlineFn != nil {
		if _, ok := sl.inline[inlineFn]; !ok {
			sl.inline[inlineFn] = make(map[*ir.Class]*ir.Class)
		}

		cache = sl.inline[inlineFn]
		container = ir.TopLevelContainer(inlineFn)
	}

	if w, ok := cache[iface]; ok {
		return w
	}

	w := sl.buildWrapper(iface)
	cache[iface] = w
	sl.pending = append(sl.pending, pendingWrapper{wrapper: w, container: container})
	return w
}

// abstractMethod returns the single abstract method of a SAM interface.
func abstractMethod(iface *ir.Class) *ir.Function {
	var result *ir.Function
	for _, fn := range iface.Functions() {
		if fn.IsAbstract {
			if result != nil {
				icePhase("SingleAbstractMethod", iface, "interface has more than one abstract method")
			}

			result = fn
		}
	}

	if result == nil {
		icePhase("SingleAbstractMethod", iface, "interface has no abstract method")
	}

	return result
}

func (sl *SingleAbstractMethodLowering) buildWrapper(iface *ir.Class) *ir.Class {
	ctx := sl.ctx
	f := ctx.Factory
	b := ctx.Builtins

	if !iface.IsInterface() {
		icePhase("SingleAbstractMethod", iface, "SAM conversion to a class")
	}

	method := abstractMethod(iface)

	// the adapter is shared by all instantiations of the interface: its type
	// parameters are erased
	erased := make(map[*ir.TypeParameter]ir.Type)
	ifaceArgs := make([]ir.Type, len(iface.TypeParameters))
	for i, tp := range iface.TypeParameters {
		erased[tp] = b.NullableAnyType()
		ifaceArgs[i] = b.NullableAnyType()
	}

	paramTypes := make([]ir.Type, len(method.Params))
	for i, vp := range method.Params {
		paramTypes[i] = ir.SubstituteTypes(vp.Type, erased)
	}

	returnType := ir.SubstituteTypes(method.ReturnType, erased)
	functionType := b.FunctionType(paramTypes, returnType)

	w := f.BuildClass(fmt.Sprintf("%s$sam$%d", iface.Name, len(sl.pending)), ir.ClassKindClass, ir.OriginSamWrapper)
	w.SuperTypes = []ir.Type{ir.NewType(iface.Symbol(), ifaceArgs...)}

	field := f.AddField(w, "function", functionType, ir.OriginSamWrapperField)
	field.IsFinal = true

	ctor := f.BuildConstructor(w, true, ir.OriginSamWrapper)
	fnParam := f.AddValueParameter(ctor, "function", functionType)
	ctor.Body = ir.NewBlock(ctx.unit(),
		ir.NewSetField(field, ir.NewGetValue(w.ThisReceiver), ir.NewGetValue(fnParam), ctx.unit()),
	)
	w.AddMember(ctor)

	// override fun method(params) = function.invoke(params)
	forward := f.BuildMemberFun(w, method.Name, returnType, ir.OriginSamWrapperForward)
	forward.Overrides = []*ir.Symbol{method.Symbol()}

	args := make([]ir.Expr, len(method.Params))
	for i, vp := range method.Params {
		args[i] = ir.NewGetValue(f.AddValueParameter(forward, vp.Name, paramTypes[i]))
	}

	invoke := ir.NewMemberCall(b.FunctionInvoke(len(args)), ir.NewGetField(field, ir.NewGetValue(forward.DispatchReceiver)), args...)
	invoke.SetType(returnType)
	forward.Body = ir.NewBlock(ctx.unit(), ir.NewReturn(forward, invoke, ctx.nothing()))
	w.AddMember(forward)

	if iface.IsFun {
		w.AddMember(sl.buildEquals(w, field))
		w.AddMember(sl.buildHashCode(w, field))
	}

	return w
}

// buildEquals creates `equals(other) = other is W && function == other.function`.
func (sl *SingleAbstractMethodLowering) buildEquals(w *ir.Class, field *ir.Field) *ir.Function {
	ctx := sl.ctx
	b := ctx.Builtins

	equals := ctx.Factory.BuildMemberFun(w, "equals", b.BooleanType(), ir.OriginSamWrapper)
	equals.Overrides = []*ir.Symbol{b.AnyEquals.Symbol()}
	other := ctx.Factory.AddValueParameter(equals, "other", b.NullableAnyType())

	isWrapper := ir.NewTypeOperator(ir.OpInstanceOf, ir.NewGetValue(other), w.DefaultType(), b.BooleanType())
	otherFunction := ir.NewGetField(field, ir.NewTypeOperator(ir.OpImplicitCast, ir.NewGetValue(other), w.DefaultType(), w.DefaultType()))
	sameFunction := ctx.eqeq(ir.NewGetField(field, ir.NewGetValue(equals.DispatchReceiver)), otherFunction)

	result := ir.NewIf(b.BooleanType(), isWrapper, sameFunction, b.BoolConst(false), b)
	equals.Body = ir.NewBlock(ctx.unit(), ir.NewReturn(equals, result, ctx.nothing()))
	return equals
}

// buildHashCode creates `hashCode() = function.hashCode()`.
func (sl *SingleAbstractMethodLowering) buildHashCode(w *ir.Class, field *ir.Field) *ir.Function {
	ctx := sl.ctx
	b := ctx.Builtins

	hashCode := ctx.Factory.BuildMemberFun(w, "hashCode", b.IntType(), ir.OriginSamWrapper)
	hashCode.Overrides = []*ir.Symbol{b.AnyHashCode.Symbol()}

	hash := ir.NewMemberCall(b.AnyHashCode, ir.NewGetField(field, ir.NewGetValue(hashCode.DispatchReceiver)))
	hashCode.Body = ir.NewBlock(ctx.unit(), ir.NewReturn(hashCode, hash, ctx.nothing()))
	return hashCode
}
