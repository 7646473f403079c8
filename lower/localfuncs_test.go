package lower

import (
	"testing"

	"nativec/ir"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// outerWithLocal builds
//
//	fun outer(p: Int): Int {
//	    fun add(x: Int): Int = intPlus(x, p)
//	    return add(1)
//	}
func (fx *fixture) outerWithLocal() (outer, add *ir.Function, p *ir.ValueParameter, call *ir.Call) {
	outer = fx.fun("outer", fx.b.IntType())
	p = fx.f.AddValueParameter(outer, "p", fx.b.IntType())

	add = fx.fun("add", fx.b.IntType())
	x := fx.f.AddValueParameter(add, "x", fx.b.IntType())
	add.Body.Statements = append(add.Body.Statements,
		ir.NewReturn(add, ir.NewCall(fx.b.IntPlus, ir.NewGetValue(x), ir.NewGetValue(p)), fx.b.NothingType()),
	)

	call = ir.NewCall(add, fx.b.IntConst(1))
	outer.Body.Statements = append(outer.Body.Statements, add, ir.NewReturn(outer, call, fx.b.NothingType()))
	fx.file.AddMember(outer)
	return
}

func TestLocalFunctions_CapturedValuesBecomeParameters(t *testing.T) {
	fx := newFixture(t)
	outer, add, p, call := fx.outerWithLocal()
	fx.finish()

	fx.lower("LocalFunctions", &LocalFunctionsLowering{ctx: fx.ctx})

	require.Len(t, fx.file.Declarations, 2)
	assert.Same(t, add, fx.file.Declarations[1])
	assert.Same(t, fx.file, add.Parent())
	assert.Equal(t, "outer$add", add.Name)
	assert.Equal(t, ir.OriginLiftedLocal, add.Origin())
	assert.Equal(t, []*ir.Symbol{p.Symbol()}, fx.ctx.Mapping.LiftedFunctions[add])

	require.Len(t, add.Params, 2)
	captured := add.Params[0]
	assert.Equal(t, "$p", captured.Name)
	assert.Equal(t, ir.OriginCapturedArg, captured.Origin())
	assert.Equal(t, 1, add.Params[1].Index)

	// the lifted body reads its own parameter
	sum := add.Body.Statements[0].(*ir.Return).Value.(*ir.Call)
	assert.Equal(t, captured.Symbol(), sum.Args[1].(*ir.GetValue).Sym)

	// the call passes the captured value first
	require.Len(t, call.Args, 2)
	assert.Equal(t, p.Symbol(), call.Args[0].(*ir.GetValue).Sym)

	// the local declaration is gone from the outer body
	assert.Len(t, outer.Body.Statements, 1)
}

func TestLocalFunctions_LiftedNamesDoNotClash(t *testing.T) {
	fx := newFixture(t)
	fx.outerWithLocal()
	fx.file.AddMember(fx.fun("outer$add", fx.b.UnitType()))
	fx.finish()

	fx.lower("LocalFunctions", &LocalFunctionsLowering{ctx: fx.ctx})

	require.Len(t, fx.file.Declarations, 3)
	assert.Equal(t, "outer$add$1", fx.file.Declarations[2].DeclName())
}

func TestLocalFunctions_ReferenceBecomesLambda(t *testing.T) {
	fx := newFixture(t)
	outer, add, p, _ := fx.outerWithLocal()

	ref := ir.NewFunctionReference(add, fx.b.FunctionType([]ir.Type{fx.b.IntType()}, fx.b.IntType()))
	holder := fx.f.BuildVariable("h", ref.Type(), false, ref)
	outer.Body.Statements = append([]ir.Statement{outer.Body.Statements[0], holder}, outer.Body.Statements[1:]...)
	fx.finish()

	fx.lower("LocalFunctions", &LocalFunctionsLowering{ctx: fx.ctx})

	lambda := holder.Initializer.(*ir.FunctionExpression)
	assert.Equal(t, ir.OriginLambda, lambda.Origin())

	forwarded := callsTo(lambda.Function.Body, add)
	require.Len(t, forwarded, 1)
	require.Len(t, forwarded[0].Args, 2)
	assert.Equal(t, p.Symbol(), forwarded[0].Args[0].(*ir.GetValue).Sym)
	assert.Equal(t, lambda.Function.Params[0].Symbol(), forwarded[0].Args[1].(*ir.GetValue).Sym)
}
