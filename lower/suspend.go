package lower

import (
	"fmt"

	"nativec/ir"
)

// SuspendFunctionKind classifies a suspend function by the suspend calls in
// its body.
type SuspendFunctionKind int

const (
	// NoSuspendCalls functions are ordinary functions with an extra
	// continuation parameter.
	NoSuspendCalls SuspendFunctionKind = iota

	// Delegating functions only make tail suspend calls: they pass their own
	// continuation through and need no coroutine class.
	Delegating

	// NeedsStateMachine functions make at least one suspend call whose result
	// is used afterwards.
	NeedsStateMachine
)

// CoroutinesLowering makes continuations explicit.  Every suspend function
// gets a trailing `$completion` parameter that its callers pass their own
// continuation to.  Functions suspending in the middle of their body are
// compiled to a coroutine class whose `invokeSuspend` method runs the body.
type CoroutinesLowering struct {
	ctx *Context

	completions map[*ir.Function]*ir.ValueParameter
	counter     int
}

func (cl *CoroutinesLowering) Lower(file *ir.File) {
	cl.completions = make(map[*ir.Function]*ir.ValueParameter)

	var suspendFns []*ir.Function
	ir.Inspect(file, func(e ir.Element) bool {
		if fn, ok := e.(*ir.Function); ok && fn.IsSuspend {
			suspendFns = append(suspendFns, fn)
		}

		return true
	})

	for _, fn := range suspendFns {
		cl.completions[fn] = cl.addCompletionParam(fn)
	}

	cl.passContinuations(file)

	for _, fn := range suspendFns {
		if fn.Body == nil {
			continue
		}

		switch cl.classify(fn) {
		case Delegating:
			cl.simplifyTailSuspendCalls(fn)
		case NeedsStateMachine:
			cl.buildCoroutine(fn)
		}
	}
}

// addCompletionParam appends the continuation parameter of a suspend
// function, or returns the existing one.
func (cl *CoroutinesLowering) addCompletionParam(fn *ir.Function) *ir.ValueParameter {
	for _, vp := range fn.Params {
		if vp.Origin() == ir.OriginContinuationParam {
			return vp
		}
	}

	vp := cl.ctx.Factory.AddValueParameter(fn, "$completion", cl.ctx.Builtins.ContinuationType(fn.ReturnType))
	vp.SetOrigin(ir.OriginContinuationParam)
	return vp
}

// passContinuations appends the caller's continuation to every suspend call
// of the file.
func (cl *CoroutinesLowering) passContinuations(file *ir.File) {
	st := newScopedTransformer(nil, func(st *scopedTransformer, e ir.Element) ir.Element {
		st.descend(e)

		call, ok := e.(*ir.Call)
		if !ok || !call.Sym.Function().IsSuspend {
			return e
		}

		// callees declared in files lowered later do not have their
		// continuation parameter yet
		callee := call.Sym.Function()
		if len(call.Args) > len(callee.Params) || (len(call.Args) == len(callee.Params) && hasCompletionParam(callee)) {
			return e
		}

		caller := st.function()
		completion, ok := cl.completions[caller]
		if !ok {
			icePhase("Coroutines", st.container(), "suspend call of %s outside of a suspend function", ir.Describe(callee))
		}

		call.Args = append(call.Args, ir.NewGetValue(completion))
		if _, ok := cl.ctx.TailSuspendCalls[call]; ok {
			call.SetOrigin(ir.OriginTailSuspendCall)
		}

		return call
	})

	st.Transform(file)
}

func hasCompletionParam(fn *ir.Function) bool {
	return len(fn.Params) > 0 && fn.Params[len(fn.Params)-1].Origin() == ir.OriginContinuationParam
}

// classify counts the suspend calls made directly by the function.
func (cl *CoroutinesLowering) classify(fn *ir.Function) SuspendFunctionKind {
	var calls, tails int
	ir.Inspect(fn.Body, func(e ir.Element) bool {
		switch v := e.(type) {
		case *ir.Function:
			return false
		case *ir.Call:
			if v.Sym.Function().IsSuspend {
				calls++
				if _, ok := cl.ctx.TailSuspendCalls[v]; ok {
					tails++
				}
			}
		}

		return true
	})

	switch {
	case calls == 0:
		return NoSuspendCalls
	case calls == tails:
		return Delegating
	default:
		return NeedsStateMachine
	}
}

// simplifyTailSuspendCalls turns the implicit tail call ending a function
// into an explicit return so that the callee's result is returned directly.
func (cl *CoroutinesLowering) simplifyTailSuspendCalls(fn *ir.Function) {
	stmts := fn.Body.Statements
	if len(stmts) == 0 || ir.ClassOf(fn.ReturnType) != cl.ctx.Builtins.Unit {
		return
	}

	last, ok := stmts[len(stmts)-1].(ir.Expr)
	if !ok {
		return
	}

	if _, isReturn := last.(*ir.Return); isReturn {
		return
	}

	if cls := ir.ClassOf(last.Type()); cls != cl.ctx.Builtins.Unit && cls != cl.ctx.Builtins.Nothing {
		return
	}

	ret := ir.NewReturn(fn, last, cl.ctx.nothing())
	ret.SetSpan(last.Span())
	stmts[len(stmts)-1] = ret
}

// coroutineParams returns the parameters saved in the coroutine's fields.
func coroutineParams(fn *ir.Function) []*ir.ValueParameter {
	var params []*ir.ValueParameter
	if fn.DispatchReceiver != nil {
		params = append(params, fn.DispatchReceiver)
	}

	if fn.ExtensionReceiver != nil {
		params = append(params, fn.ExtensionReceiver)
	}

	for _, vp := range fn.Params {
		if vp.Origin() != ir.OriginContinuationParam {
			params = append(params, vp)
		}
	}

	return params
}

func coroutineFieldName(fn *ir.Function, vp *ir.ValueParameter) string {
	switch vp {
	case fn.DispatchReceiver:
		return "$this"
	case fn.ExtensionReceiver:
		return "$receiver"
	default:
		return vp.Name
	}
}

// buildCoroutine creates the coroutine class of a function and replaces the
// function's body by the creation and start of a coroutine.
func (cl *CoroutinesLowering) buildCoroutine(fn *ir.Function) *ir.Class {
	ctx := cl.ctx
	f := ctx.Factory
	b := ctx.Builtins

	cl.counter++
	coroutine := f.BuildClass(fmt.Sprintf("%s$COROUTINE$%d", fn.Name, cl.counter), ir.ClassKindClass, ir.OriginCoroutineImpl)
	coroutine.SuperTypes = []ir.Type{b.BaseContinuationImpl.DefaultType()}

	subst := make(map[*ir.TypeParameter]ir.Type)
	for _, tp := range fn.TypeParameters {
		subst[tp] = f.AddTypeParameter(coroutine, tp.Name, tp.SuperTypes...).DefaultType()
	}

	coroutine.ThisReceiver.Type = coroutine.DefaultType()

	params := coroutineParams(fn)
	fields := make(map[*ir.ValueParameter]*ir.Field, len(params))

	ctor := f.BuildConstructor(coroutine, true, ir.OriginCoroutineImpl)
	ctorBody := ir.NewBlock(ctx.unit())

	var ctorParams []*ir.ValueParameter
	for _, vp := range params {
		name := coroutineFieldName(fn, vp)
		t := ir.SubstituteTypes(vp.Type, subst)

		fields[vp] = f.AddField(coroutine, name, t, ir.OriginCoroutineField)
		ctorParams = append(ctorParams, f.AddValueParameter(ctor, name, t))
	}

	completion := f.AddValueParameter(ctor, "completion", b.ContinuationType(ir.SubstituteTypes(fn.ReturnType, subst)))
	ctorBody.Statements = append(ctorBody.Statements,
		ir.NewDelegatingConstructorCall(b.BaseContinuationCtor, ctx.unit(), ctx.implicitCast(ir.NewGetValue(completion), b.ContinuationType(b.NullableAnyType()))),
	)

	for i, vp := range params {
		ctorBody.Statements = append(ctorBody.Statements,
			ir.NewSetField(fields[vp], ir.NewGetValue(coroutine.ThisReceiver), ir.NewGetValue(ctorParams[i]), ctx.unit()),
		)
	}

	ctor.Body = ctorBody
	coroutine.AddMember(ctor)

	invokeSuspend := f.BuildMemberFun(coroutine, b.InvokeSuspend.Name, b.NullableAnyType(), ir.OriginCoroutineImpl)
	invokeSuspend.Overrides = []*ir.Symbol{b.InvokeSuspend.Symbol()}
	f.AddValueParameter(invokeSuspend, "result", b.NullableAnyType())
	coroutine.AddMember(invokeSuspend)

	// suspend calls inside the coroutine continue the coroutine itself
	completionParam := cl.completions[fn]
	body := fn.Body
	ir.TransformChildren(body, ir.TransformerFunc(func(e ir.Element) ir.Element {
		return cl.replaceCompletion(e, completionParam, invokeSuspend)
	}))

	ctx.StateMachines.BuildStateMachine(ctx, fn, body, invokeSuspend, fields)

	// return Coroutine(params..., $completion).invokeSuspend(Unit)
	args := make([]ir.Expr, 0, len(params)+1)
	for _, vp := range params {
		args = append(args, ir.NewGetValue(vp))
	}

	args = append(args, ir.NewGetValue(completionParam))

	create := ir.NewConstructorCall(ctor, args...)
	for _, tp := range fn.TypeParameters {
		create.TypeArgs = append(create.TypeArgs, tp.DefaultType())
	}

	create.SetType(ir.SubstituteTypes(coroutine.DefaultType(), invertSubst(subst)))

	start := ir.NewMemberCall(invokeSuspend, create, b.UnitConst())
	start.SetOrigin(ir.OriginCoroutineStartCall)

	fn.Body = ir.NewBlock(ctx.unit(), ir.NewReturn(fn, ctx.implicitCast(start, fn.ReturnType), ctx.nothing()))

	if container, ok := fn.Parent().(ir.DeclarationContainer); ok {
		addMemberAfter(container, fn, coroutine)
	} else {
		addMember(ir.TopLevelContainer(fn), coroutine)
	}

	ir.PatchDeclarationParents(coroutine, coroutine.Parent())
	ctx.Mapping.SuspendCompanions[fn] = coroutine
	ctx.observe(coroutine)
	return coroutine
}

func (cl *CoroutinesLowering) replaceCompletion(e ir.Element, completion *ir.ValueParameter, invokeSuspend *ir.Function) ir.Element {
	if get, ok := e.(*ir.GetValue); ok && get.Sym == completion.Symbol() {
		return cl.ctx.implicitCast(ir.NewGetValue(invokeSuspend.DispatchReceiver), completion.Type)
	}

	ir.TransformChildren(e, ir.TransformerFunc(func(c ir.Element) ir.Element {
		return cl.replaceCompletion(c, completion, invokeSuspend)
	}))

	return e
}

func invertSubst(subst map[*ir.TypeParameter]ir.Type) map[*ir.TypeParameter]ir.Type {
	inverted := make(map[*ir.TypeParameter]ir.Type, len(subst))
	for tp, t := range subst {
		inverted[ir.TypeParameterOf(t)] = tp.DefaultType()
	}

	return inverted
}

// -----------------------------------------------------------------------------

// DirectStateMachineBuilder is the state machine builder used when the back
// end resumes coroutines by running `invokeSuspend` from the start.  The body
// reads its parameters from the coroutine's fields and returns its result
// from `invokeSuspend`.
type DirectStateMachineBuilder struct{}

func (DirectStateMachineBuilder) BuildStateMachine(ctx *Context, original *ir.Function, body *ir.Block, invokeSuspend *ir.Function, fields map[*ir.ValueParameter]*ir.Field) {
	this := invokeSuspend.DispatchReceiver
	bySym := make(map[*ir.Symbol]*ir.Field, len(fields))
	for vp, fd := range fields {
		bySym[vp.Symbol()] = fd
	}

	var rewrite func(e ir.Element) ir.Element
	t := ir.TransformerFunc(func(e ir.Element) ir.Element { return rewrite(e) })

	rewrite = func(e ir.Element) ir.Element {
		ir.TransformChildren(e, t)

		switch v := e.(type) {
		case *ir.GetValue:
			if fd, ok := bySym[v.Sym]; ok {
				return ctx.implicitCast(ir.NewGetField(fd, ir.NewGetValue(this)), v.Type())
			}
		case *ir.SetValue:
			if fd, ok := bySym[v.Sym]; ok {
				return ir.NewSetField(fd, ir.NewGetValue(this), v.Value, ctx.unit())
			}
		case *ir.Return:
			if v.Target == original.Symbol() {
				value := v.Value
				if value == nil {
					value = ctx.Builtins.UnitConst()
				}

				ret := ir.NewReturn(invokeSuspend, value, ctx.nothing())
				ret.SetSpan(v.Span())
				return ret
			}
		}

		return e
	}

	ir.TransformChildren(body, t)
	if len(body.Statements) > 0 {
		if last, ok := body.Statements[len(body.Statements)-1].(ir.Expr); ok && ir.ClassOf(original.ReturnType) == ctx.Builtins.Unit {
			if _, isReturn := last.(*ir.Return); !isReturn {
				body.Statements = append(body.Statements, ir.NewReturn(invokeSuspend, ctx.Builtins.UnitConst(), ctx.nothing()))
			}
		}
	}

	invokeSuspend.Body = body
}
