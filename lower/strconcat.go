package lower

import (
	"strings"

	"nativec/ir"
)

// FlattenStringConcatenationLowering turns `String.plus` calls into string
// concatenations and merges nested concatenations into their parent.
type FlattenStringConcatenationLowering struct {
	ctx *Context
}

func (fsl *FlattenStringConcatenationLowering) LowerBody(body ir.Expr, container ir.Declaration) ir.Expr {
	plus := fsl.ctx.Builtins.StringPlus.Symbol()

	var t ir.Transformer
	t = ir.TransformerFunc(func(e ir.Element) ir.Element {
		ir.TransformChildren(e, t)

		switch v := e.(type) {
		case *ir.Call:
			if v.Sym == plus && v.DispatchReceiver != nil && len(v.Args) == 1 {
				concat := ir.NewStringConcat(v.Type(), flattenConcatArgs(v.DispatchReceiver, v.Args[0])...)
				concat.SetSpan(v.Span())
				return concat
			}
		case *ir.StringConcat:
			v.Args = flattenConcatArgs(v.Args...)
		}

		return e
	})

	return transformExpr(t, body)
}

func flattenConcatArgs(args ...ir.Expr) []ir.Expr {
	var result []ir.Expr
	for _, arg := range args {
		if nested, ok := arg.(*ir.StringConcat); ok {
			result = append(result, nested.Args...)
		} else {
			result = append(result, arg)
		}
	}

	return result
}

// -----------------------------------------------------------------------------

// StringConcatenationLowering turns string concatenations into StringBuilder
// chains.  Adjacent constant strings are folded first; a concatenation of a
// single value becomes its `toString()`.
type StringConcatenationLowering struct {
	ctx *Context
}

func (scl *StringConcatenationLowering) LowerBody(body ir.Expr, container ir.Declaration) ir.Expr {
	var t ir.Transformer
	t = ir.TransformerFunc(func(e ir.Element) ir.Element {
		ir.TransformChildren(e, t)

		if concat, ok := e.(*ir.StringConcat); ok {
			lowered := scl.lower(concat)
			lowered.SetSpan(concat.Span())
			return lowered
		}

		return e
	})

	return transformExpr(t, body)
}

func (scl *StringConcatenationLowering) lower(concat *ir.StringConcat) ir.Expr {
	b := scl.ctx.Builtins
	args := foldConstantStrings(concat.Args)

	switch len(args) {
	case 0:
		return b.StringConst("")
	case 1:
		if c, ok := args[0].(*ir.Const); ok && c.Kind == ir.ConstString {
			return c
		}

		if !args[0].Type().IsNullable() {
			return ir.WithOrigin(ir.NewMemberCall(b.AnyToString, args[0]), ir.OriginStringConcat)
		}
	}

	var builder ir.Expr = ir.NewConstructorCall(b.StringBuilderCtor)
	for _, arg := range args {
		builder = ir.NewMemberCall(b.StringBuilderAppend, builder, arg)
	}

	return ir.WithOrigin(ir.NewMemberCall(b.StringBuilderToString, builder), ir.OriginStringConcat)
}

// foldConstantStrings merges runs of constant strings and drops empty ones.
func foldConstantStrings(args []ir.Expr) []ir.Expr {
	var result []ir.Expr
	var run []string

	flush := func(template *ir.Const) {
		if len(run) == 0 {
			return
		}

		if joined := strings.Join(run, ""); joined != "" {
			folded := *template
			folded.Value = joined
			result = append(result, &folded)
		}

		run = nil
	}

	var last *ir.Const
	for _, arg := range args {
		if c, ok := arg.(*ir.Const); ok && c.Kind == ir.ConstString {
			run = append(run, c.Value.(string))
			last = c
			continue
		}

		flush(last)
		result = append(result, arg)
	}

	flush(last)
	return result
}
