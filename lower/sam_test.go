package lower

import (
	"testing"

	"nativec/ir"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// samInterface builds `fun interface Runner { fun run(x: Int) }`.
func (fx *fixture) samInterface() *ir.Class {
	iface := fx.f.BuildClass("Runner", ir.ClassKindInterface, ir.OriginDefined)
	iface.IsFun = true

	run := fx.f.BuildMemberFun(iface, "run", fx.b.UnitType(), ir.OriginDefined)
	run.IsAbstract = true
	fx.f.AddValueParameter(run, "x", fx.b.IntType())
	iface.AddMember(run)

	fx.file.AddMember(iface)
	return iface
}

func samConversion(arg ir.Expr, iface *ir.Class) *ir.TypeOperatorCall {
	return ir.NewTypeOperator(ir.OpSamConversion, arg, iface.DefaultType(), iface.DefaultType())
}

func wrappers(file *ir.File) []*ir.Class {
	var result []*ir.Class
	for _, d := range file.Declarations {
		if c, ok := d.(*ir.Class); ok && c.Origin() == ir.OriginSamWrapper {
			result = append(result, c)
		}
	}

	return result
}

func TestSingleAbstractMethod_OneWrapperPerInterface(t *testing.T) {
	fx := newFixture(t)
	iface := fx.samInterface()

	// fun f(g: (Int) -> Unit) { val a: Runner = g; val b: Runner = g }
	f := fx.fun("f", fx.b.UnitType())
	g := fx.f.AddValueParameter(f, "g", fx.b.FunctionType([]ir.Type{fx.b.IntType()}, fx.b.UnitType()))
	a := fx.f.BuildVariable("a", iface.DefaultType(), false, samConversion(ir.NewGetValue(g), iface))
	b := fx.f.BuildVariable("b", iface.DefaultType(), false, samConversion(ir.NewGetValue(g), iface))
	f.Body.Statements = append(f.Body.Statements, a, b)
	fx.file.AddMember(f)
	fx.finish()

	fx.lower("SingleAbstractMethod", &SingleAbstractMethodLowering{ctx: fx.ctx})

	ws := wrappers(fx.file)
	require.Len(t, ws, 1)
	w := ws[0]
	assert.Same(t, w, fx.ctx.Mapping.SamWrappers[iface])
	assert.Equal(t, iface, ir.ClassOf(w.SuperTypes[0]))

	ctor := w.PrimaryConstructor()
	for _, v := range []*ir.Variable{a, b} {
		call := v.Initializer.(*ir.ConstructorCall)
		assert.Equal(t, ctor.Symbol(), call.Sym)
		assert.Equal(t, g.Symbol(), call.Args[0].(*ir.GetValue).Sym)
	}

	var forward *ir.Function
	names := make(map[string]bool)
	for _, fn := range w.Functions() {
		names[fn.Name] = true
		if fn.Origin() == ir.OriginSamWrapperForward {
			forward = fn
		}
	}

	require.NotNil(t, forward)
	assert.Equal(t, "run", forward.Name)
	assert.Len(t, forward.Params, 1)
	assert.Len(t, callsTo(forward.Body, fx.b.FunctionInvoke(1)), 1)

	// fun interfaces compare by the wrapped function
	assert.True(t, names["equals"])
	assert.True(t, names["hashCode"])
}

func TestSingleAbstractMethod_NullableArgument(t *testing.T) {
	fx := newFixture(t)
	iface := fx.samInterface()

	f := fx.fun("f", fx.b.UnitType())
	g := fx.f.AddValueParameter(f, "g", ir.MakeNullable(fx.b.FunctionType([]ir.Type{fx.b.IntType()}, fx.b.UnitType())))
	conv := samConversion(ir.NewGetValue(g), iface)
	conv.SetType(ir.MakeNullable(iface.DefaultType()))
	v := fx.f.BuildVariable("r", conv.Type(), false, conv)
	n := fx.f.BuildVariable("n", conv.Type(), false, samConversion(fx.b.NullConst(iface.DefaultType()), iface))
	f.Body.Statements = append(f.Body.Statements, v, n)
	fx.file.AddMember(f)
	fx.finish()

	fx.lower("SingleAbstractMethod", &SingleAbstractMethodLowering{ctx: fx.ctx})

	// val tmp = g; if (tmp == null) null else Wrapper(tmp)
	composite := v.Initializer.(*ir.Block)
	require.Len(t, composite.Statements, 2)
	check := composite.Statements[1].(*ir.When)
	assert.True(t, ir.IsNullConst(check.Branches[0].Result))
	assert.IsType(t, &ir.ConstructorCall{}, check.Branches[1].Result)

	// null converts to null
	assert.True(t, ir.IsNullConst(n.Initializer))
}

func TestSingleAbstractMethod_WrappersAreNotSharedAcrossFiles(t *testing.T) {
	fx := newFixture(t)
	iface := fx.samInterface()

	f := fx.fun("f", fx.b.UnitType())
	g := fx.f.AddValueParameter(f, "g", fx.b.FunctionType([]ir.Type{fx.b.IntType()}, fx.b.UnitType()))
	f.Body.Statements = append(f.Body.Statements, samConversion(ir.NewGetValue(g), iface))
	fx.file.AddMember(f)
	fx.finish()

	other := fx.f.BuildFile("b.kt", "demo", "app")
	h := fx.f.BuildFun("h", fx.b.UnitType(), ir.OriginDefined)
	k := fx.f.AddValueParameter(h, "k", fx.b.FunctionType([]ir.Type{fx.b.IntType()}, fx.b.UnitType()))
	h.Body = ir.NewBlock(fx.b.UnitType(), samConversion(ir.NewGetValue(k), iface))
	other.AddMember(h)
	ir.PatchDeclarationParents(other, nil)

	pass := &SingleAbstractMethodLowering{ctx: fx.ctx}
	fx.lower("SingleAbstractMethod", pass)
	p := &Pipeline{Context: fx.ctx}
	require.NoError(t, p.lowerFile(Phase{Name: "SingleAbstractMethod", Pass: pass}, other))

	assert.Len(t, wrappers(fx.file), 1)
	assert.Len(t, wrappers(other), 1)
}

func TestSingleAbstractMethod_InlineFunctionsGetTheirOwnWrapper(t *testing.T) {
	fx := newFixture(t)
	iface := fx.samInterface()
	fnType := fx.b.FunctionType([]ir.Type{fx.b.IntType()}, fx.b.UnitType())

	f := fx.fun("f", fx.b.UnitType())
	g := fx.f.AddValueParameter(f, "g", fnType)
	f.Body.Statements = append(f.Body.Statements, samConversion(ir.NewGetValue(g), iface))

	inl := fx.fun("inl", fx.b.UnitType())
	inl.IsInline = true
	k := fx.f.AddValueParameter(inl, "k", fnType)
	inl.Body.Statements = append(inl.Body.Statements, samConversion(ir.NewGetValue(k), iface))

	fx.file.AddMember(f)
	fx.file.AddMember(inl)
	fx.finish()

	fx.lower("SingleAbstractMethod", &SingleAbstractMethodLowering{ctx: fx.ctx})

	assert.Len(t, wrappers(fx.file), 2)
}
