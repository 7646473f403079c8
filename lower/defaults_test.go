package lower

import (
	"testing"

	"nativec/ir"
	"nativec/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (fx *fixture) lowerDefaults() {
	fx.lower("DefaultArgumentStubs", &DefaultArgumentStubGenerator{ctx: fx.ctx})
	fx.lower("DefaultArgumentInjector", &DefaultArgumentInjector{ctx: fx.ctx})
	fx.lower("DefaultParameterCleaner", &DefaultParameterCleaner{ctx: fx.ctx})
}

func TestDefaultArguments_RoundTrip(t *testing.T) {
	fx := newFixture(t)

	// fun f(a: Int = 1, b: Int = a + 1): Int = intPlus(a, b)
	f := fx.fun("f", fx.b.IntType())
	a := fx.f.AddValueParameter(f, "a", fx.b.IntType())
	a.DefaultValue = fx.b.IntConst(1)
	b := fx.f.AddValueParameter(f, "b", fx.b.IntType())
	b.DefaultValue = ir.NewCall(fx.b.IntPlus, ir.NewGetValue(a), fx.b.IntConst(1))
	f.Body.Statements = append(f.Body.Statements,
		ir.NewReturn(f, ir.NewCall(fx.b.IntPlus, ir.NewGetValue(a), ir.NewGetValue(b)), fx.b.NothingType()),
	)

	// fun main() { f() }
	main := fx.fun("main", fx.b.UnitType(), ir.NewCall(f, nil, nil))

	fx.file.AddMember(f)
	fx.file.AddMember(main)
	fx.finish()

	fx.lowerDefaults()

	require.Len(t, fx.file.Declarations, 3)
	stub := fx.file.Declarations[1].(*ir.Function)
	assert.Same(t, stub, fx.ctx.Mapping.DefaultStubs[f])
	assert.Equal(t, "f$default", stub.Name)
	assert.Equal(t, ir.OriginDefaultArgumentsStub, stub.Origin())

	names := make([]string, len(stub.Params))
	for i, vp := range stub.Params {
		names[i] = vp.Name
	}

	assert.Equal(t, []string{"a", "b", "mask$0"}, names)
	assert.Equal(t, ir.OriginMaskForDefaults, stub.Params[2].Origin())

	// both defaults are conditional assignments of the stub's own parameters
	conds := collect[*ir.When](stub.Body)
	require.Len(t, conds, 2)
	for i, cond := range conds {
		assert.Equal(t, ir.OriginDefaultValueCondition, cond.Origin())
		assign := cond.Branches[0].Result.(*ir.SetValue)
		assert.Equal(t, stub.Params[i].Symbol(), assign.Sym)
	}

	// b's default reads the stub's a, not the original's
	bDefault := conds[1].Branches[0].Result.(*ir.SetValue).Value.(*ir.Call)
	assert.Equal(t, stub.Params[0].Symbol(), bDefault.Args[0].(*ir.GetValue).Sym)

	// the stub ends by dispatching to the original
	last := stub.Body.Statements[len(stub.Body.Statements)-1].(*ir.Return)
	dispatch := last.Value.(*ir.Call)
	assert.Equal(t, f.Symbol(), dispatch.Sym)
	assert.Equal(t, ir.OriginDefaultDispatchCall, dispatch.Origin())

	// the call site sets both mask bits
	call := main.Body.Statements[0].(*ir.Call)
	assert.Equal(t, stub.Symbol(), call.Sym)
	require.Len(t, call.Args, 3)
	assert.Equal(t, int32(0), call.Args[0].(*ir.Const).Value)
	assert.Equal(t, int32(0), call.Args[1].(*ir.Const).Value)
	assert.Equal(t, int32(3), call.Args[2].(*ir.Const).Value)

	assert.Nil(t, a.DefaultValue)
	assert.Nil(t, b.DefaultValue)
}

func TestDefaultArguments_ExplicitArgumentClearsMaskBit(t *testing.T) {
	fx := newFixture(t)

	f := fx.fun("f", fx.b.UnitType())
	fx.f.AddValueParameter(f, "a", fx.b.IntType()).DefaultValue = fx.b.IntConst(1)
	fx.f.AddValueParameter(f, "b", fx.b.IntType()).DefaultValue = fx.b.IntConst(2)

	main := fx.fun("main", fx.b.UnitType(), ir.NewCall(f, fx.b.IntConst(7), nil))
	fx.file.AddMember(f)
	fx.file.AddMember(main)
	fx.finish()

	fx.lowerDefaults()

	call := main.Body.Statements[0].(*ir.Call)
	assert.Equal(t, int32(7), call.Args[0].(*ir.Const).Value)
	assert.Equal(t, int32(2), call.Args[2].(*ir.Const).Value)
}

func TestDefaultArguments_HandlerOnRequest(t *testing.T) {
	fx := newFixture(t)
	fx.ctx.DefaultArgumentHandlers = true

	f := fx.fun("f", fx.b.UnitType())
	fx.f.AddValueParameter(f, "a", fx.b.IntType()).DefaultValue = fx.b.IntConst(1)

	main := fx.fun("main", fx.b.UnitType(), ir.NewCall(f, nil))
	fx.file.AddMember(f)
	fx.file.AddMember(main)
	fx.finish()

	fx.lowerDefaults()

	stub := fx.ctx.Mapping.DefaultStubs[f]
	require.NotNil(t, stub)
	require.Len(t, stub.Params, 3)
	assert.Equal(t, "handler", stub.Params[2].Name)
	assert.Equal(t, ir.OriginHandlerForDefaults, stub.Params[2].Origin())

	call := main.Body.Statements[0].(*ir.Call)
	require.Len(t, call.Args, 3)
	assert.Equal(t, int32(1), call.Args[1].(*ir.Const).Value)
	assert.True(t, ir.IsNullConst(call.Args[2]))
}

func TestDefaultArguments_ConstructorStubTakesMarker(t *testing.T) {
	fx := newFixture(t)

	c := fx.f.BuildClass("C", ir.ClassKindClass, ir.OriginDefined)
	ctor := fx.f.BuildConstructor(c, true, ir.OriginDefined)
	fx.f.AddValueParameter(ctor, "x", fx.b.IntType()).DefaultValue = fx.b.IntConst(5)
	ctor.Body = ir.NewBlock(fx.b.UnitType())
	c.AddMember(ctor)
	fx.file.AddMember(c)
	fx.finish()

	fx.lower("DefaultArgumentStubs", &DefaultArgumentStubGenerator{ctx: fx.ctx})

	stub := fx.ctx.Mapping.DefaultStubs[ctor]
	require.NotNil(t, stub)
	assert.True(t, stub.IsConstructor)
	assert.Same(t, c, stub.Parent())
	assert.Equal(t, ir.OriginMarkerForDefaults, stub.Params[len(stub.Params)-1].Origin())

	dispatch := stub.Body.Statements[len(stub.Body.Statements)-1].(*ir.DelegatingConstructorCall)
	assert.Equal(t, ctor.Symbol(), dispatch.Sym)
}

func TestDefaultArguments_ManyParametersUseSeveralMasks(t *testing.T) {
	fx := newFixture(t)

	f := fx.fun("f", fx.b.UnitType())
	for i := 0; i < 33; i++ {
		fx.f.AddValueParameter(f, "p", fx.b.IntType()).DefaultValue = fx.b.IntConst(int32(i))
	}

	args := make([]ir.Expr, 33)
	main := fx.fun("main", fx.b.UnitType(), ir.NewCall(f, args...))
	fx.file.AddMember(f)
	fx.file.AddMember(main)
	fx.finish()

	fx.lowerDefaults()

	call := main.Body.Statements[0].(*ir.Call)
	require.Len(t, call.Args, 33+2)
	assert.Equal(t, int32(-1), call.Args[33].(*ir.Const).Value)
	assert.Equal(t, int32(1), call.Args[34].(*ir.Const).Value)
}

func TestDefaultArguments_VarargDefaultIsCompileError(t *testing.T) {
	fx := newFixture(t)

	f := fx.fun("f", fx.b.UnitType())
	vp := fx.f.AddValueParameter(f, "xs", fx.b.ArrayType(fx.b.IntType()))
	vp.VarargElementType = fx.b.IntType()
	vp.DefaultValue = fx.b.NullConst(fx.b.ArrayType(fx.b.IntType()))
	fx.file.AddMember(f)
	fx.finish()

	p := &Pipeline{Context: fx.ctx}
	err := p.lowerFile(Phase{Name: "DefaultArgumentStubs", Pass: &DefaultArgumentStubGenerator{ctx: fx.ctx}}, fx.file)

	var lce *report.LocalCompileError
	require.ErrorAs(t, err, &lce)
	assert.Equal(t, "a.kt", lce.FilePath)
	assert.Contains(t, lce.Error(), "vararg parameter `xs` of fun demo.f (a.kt)")
}
