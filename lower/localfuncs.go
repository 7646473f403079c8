package lower

import (
	"fmt"

	"nativec/closure"
	"nativec/ir"
)

// LocalFunctionsLowering performs closure conversion of local functions.  Each
// local function is moved to the top-level container of its declaration and
// renamed `<outer>$<name>`.  The values it captures become leading parameters
// and every call passes them explicitly.  References to a capturing local
// function become lambdas forwarding to the lifted function.
//
// Captured mutable locals were boxed by SharedVariablesLowering, so lifted
// functions only ever read the captured values.
type LocalFunctionsLowering struct {
	ctx *Context
}

type liftedFunction struct {
	fn       *ir.Function
	captured []*ir.Symbol
	params   map[*ir.Symbol]*ir.ValueParameter
}

func (lfl *LocalFunctionsLowering) Lower(file *ir.File) {
	for _, d := range nonLocalDeclarations(file) {
		lfl.lowerDeclaration(d)
	}
}

// nonLocalDeclarations lists the functions and fields of a file that own
// bodies, outside of any function.
func nonLocalDeclarations(file *ir.File) []ir.Declaration {
	var result []ir.Declaration

	var visit func(d ir.Declaration)
	visit = func(d ir.Declaration) {
		switch v := d.(type) {
		case *ir.Class:
			for _, m := range v.Declarations {
				visit(m)
			}
		case *ir.Property:
			if v.BackingField != nil {
				visit(v.BackingField)
			}

			if v.Getter != nil {
				visit(v.Getter)
			}

			if v.Setter != nil {
				visit(v.Setter)
			}
		case *ir.Function, *ir.Field:
			result = append(result, v)
		}
	}

	for _, d := range file.Declarations {
		visit(d)
	}

	return result
}

// collectLocalFunctions returns the named local functions declared within
// `root` in declaration order, outer functions first.
func collectLocalFunctions(root ir.Element) []*ir.Function {
	var result []*ir.Function
	ir.Inspect(root, func(e ir.Element) bool {
		if blk, ok := e.(*ir.Block); ok {
			for _, stmt := range blk.Statements {
				if fn, ok := stmt.(*ir.Function); ok {
					result = append(result, fn)
				}
			}
		}

		return true
	})

	return result
}

func (lfl *LocalFunctionsLowering) lowerDeclaration(d ir.Declaration) {
	locals := collectLocalFunctions(d)
	if len(locals) == 0 {
		return
	}

	ctx := lfl.ctx
	annotator := closure.NewAnnotator(d, nil)

	lifted := make(map[*ir.Function]*liftedFunction, len(locals))
	for _, fn := range locals {
		lf := &liftedFunction{
			fn:       fn,
			captured: annotator.FunctionClosure(fn).CapturedValues,
			params:   make(map[*ir.Symbol]*ir.ValueParameter),
		}

		var newParams []*ir.ValueParameter
		for _, s := range lf.captured {
			value := s.Value()
			np := ctx.Factory.BuildValueParameter("$"+value.DeclName(), value.ValueType(), len(newParams))
			np.SetOrigin(ir.OriginCapturedArg)
			np.SetParent(fn)
			lf.params[s] = np
			newParams = append(newParams, np)
		}

		fn.Params = append(newParams, fn.Params...)
		fn.ReindexParams()

		lifted[fn] = lf
		ctx.Mapping.LiftedFunctions[fn] = lf.captured
	}

	lfl.rewrite(d, lifted)

	container := ir.TopLevelContainer(d)
	if container == nil {
		icePhase("LocalFunctions", d, "declaration is not in a file")
	}

	used := make(map[string]struct{})
	for _, m := range *container.Members() {
		used[m.DeclName()] = struct{}{}
	}

	for _, fn := range locals {
		fn.Name = liftedName(d, fn, used)
		fn.SetOrigin(ir.OriginLiftedLocal)
		addMember(container, fn)
		ctx.observe(fn)
	}
}

// liftedName returns `<outer>$<name>` where `outer` is the chain of
// declarations enclosing the local function.  A numeric suffix disambiguates
// clashes.
func liftedName(d ir.Declaration, fn *ir.Function, used map[string]struct{}) string {
	name := d.DeclName() + "$" + fn.Name
	if _, clash := used[name]; clash {
		for i := 1; ; i++ {
			candidate := fmt.Sprintf("%s$%d", name, i)
			if _, clash := used[candidate]; !clash {
				name = candidate
				break
			}
		}
	}

	used[name] = struct{}{}
	return name
}

// rewrite remaps captured values inside lifted functions, passes the captured
// values at every call and removes the local functions from their blocks.
func (lfl *LocalFunctionsLowering) rewrite(d ir.Declaration, lifted map[*ir.Function]*liftedFunction) {
	var stack []*liftedFunction

	// capturedArg returns the expression of a captured value as seen from the
	// current position.
	capturedArg := func(s *ir.Symbol) ir.Expr {
		if len(stack) > 0 {
			if np, ok := stack[len(stack)-1].params[s]; ok {
				return ir.NewGetValue(np)
			}
		}

		return ir.NewGetValue(s.Value())
	}

	var t ir.Transformer
	t = ir.TransformerFunc(func(e ir.Element) ir.Element {
		if fn, ok := e.(*ir.Function); ok {
			if lf, ok := lifted[fn]; ok {
				stack = append(stack, lf)
				defer func() { stack = stack[:len(stack)-1] }()
			}
		}

		ir.TransformChildren(e, t)

		switch v := e.(type) {
		case *ir.GetValue:
			if len(stack) > 0 {
				if np, ok := stack[len(stack)-1].params[v.Sym]; ok {
					return ir.WithOrigin(ir.NewGetValue(np), v.Origin())
				}
			}
		case *ir.SetValue:
			if len(stack) > 0 {
				if _, ok := stack[len(stack)-1].params[v.Sym]; ok {
					icePhase("LocalFunctions", stack[len(stack)-1].fn, "captured value %s is assigned", v.Sym)
				}
			}
		case *ir.Call:
			if lf, ok := lifted[v.Sym.Function()]; ok && len(lf.captured) > 0 {
				args := make([]ir.Expr, 0, len(lf.captured)+len(v.Args))
				for _, s := range lf.captured {
					args = append(args, capturedArg(s))
				}

				v.Args = append(args, v.Args...)
			}
		case *ir.FunctionReference:
			if lf, ok := lifted[v.Sym.Function()]; ok && len(lf.captured) > 0 {
				return lfl.boundReference(v, lf, capturedArg)
			}
		case *ir.Block:
			kept := v.Statements[:0]
			for _, stmt := range v.Statements {
				if fn, ok := stmt.(*ir.Function); ok {
					if _, ok := lifted[fn]; ok {
						continue
					}
				}

				kept = append(kept, stmt)
			}

			v.Statements = kept
		}

		return e
	})

	t.Transform(d)
}

// boundReference replaces a reference to a capturing local function by a
// lambda passing the captured values along with its own parameters.
func (lfl *LocalFunctionsLowering) boundReference(ref *ir.FunctionReference, lf *liftedFunction, capturedArg func(*ir.Symbol) ir.Expr) ir.Expr {
	ctx := lfl.ctx
	target := lf.fn

	lambda := ctx.Factory.BuildFun("<anonymous>", target.ReturnType, ir.OriginLambda)
	lambda.SetSpan(ref.Span())

	var args []ir.Expr
	for _, s := range lf.captured {
		args = append(args, capturedArg(s))
	}

	for _, vp := range target.Params[len(lf.captured):] {
		np := ctx.Factory.AddValueParameter(lambda, vp.Name, vp.Type)
		args = append(args, ir.NewGetValue(np))
	}

	call := ir.NewCall(target, args...)
	call.TypeArgs = ref.TypeArgs
	lambda.Body = ir.NewBlock(ctx.unit(), ir.NewReturn(lambda, call, ctx.nothing()))
	ir.PatchDeclarationParents(lambda.Body, lambda)

	return ir.WithOrigin(ir.NewFunctionExpression(lambda, ref.Type()), ir.OriginLambda)
}
