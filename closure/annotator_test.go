package closure

import (
	"testing"

	"nativec/ir"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	t    *testing.T
	f    *ir.Factory
	b    *ir.Builtins
	file *ir.File
}

func newFixture(t *testing.T) *fixture {
	f := ir.NewFactory()
	return &fixture{t: t, f: f, b: ir.NewBuiltins(f), file: f.BuildFile("a.kt", "demo", "app")}
}

func (fx *fixture) fun(name string, stmts ...ir.Statement) *ir.Function {
	fn := fx.f.BuildFun(name, fx.b.UnitType(), ir.OriginDefined)
	fn.Body = ir.NewBlock(fx.b.UnitType(), stmts...)
	return fn
}

func (fx *fixture) finish() {
	ir.PatchDeclarationParents(fx.file, nil)
	require.NoError(fx.t, ir.Verify(fx.file))
}

func symbols(decls ...ir.ValueDeclaration) []*ir.Symbol {
	result := make([]*ir.Symbol, len(decls))
	for i, d := range decls {
		result[i] = d.Symbol()
	}

	return result
}

func TestAnnotator_MutuallyRecursiveLocalFunctions(t *testing.T) {
	fx := newFixture(t)

	// fun outer() { var x = 0; fun f() { g() }; fun g() { x = 1; f() } }
	x := fx.f.BuildVariable("x", fx.b.IntType(), true, fx.b.IntConst(0))
	f := fx.fun("f")
	g := fx.fun("g",
		ir.NewSetValue(x, fx.b.IntConst(1), fx.b.UnitType()),
		ir.NewCall(f),
	)
	f.Body.Statements = append(f.Body.Statements, ir.NewCall(g))

	outer := fx.fun("outer", x, f, g)
	fx.file.AddMember(outer)
	fx.finish()

	a := NewAnnotator(outer, nil)
	assert.Equal(t, symbols(x), a.FunctionClosure(f).CapturedValues)
	assert.Equal(t, symbols(x), a.FunctionClosure(g).CapturedValues)
	assert.True(t, a.FunctionClosure(outer).IsEmpty())
}

func TestAnnotator_LocalFunctionSeenBeforeDeclaration(t *testing.T) {
	fx := newFixture(t)

	// fun outer(p) { fun f() { g() }; fun g() { p } }, solved from g first.
	p := fx.f.BuildValueParameter("p", fx.b.IntType(), 0)
	g := fx.fun("g", ir.NewGetValue(p))
	f := fx.fun("f", ir.NewCall(g))
	outer := fx.fun("outer", f, g)
	outer.AddParam(p)
	fx.file.AddMember(outer)
	fx.finish()

	a := NewAnnotator(outer, nil)
	assert.Equal(t, symbols(p), a.FunctionClosure(g).CapturedValues)
	assert.Equal(t, symbols(p), a.FunctionClosure(f).CapturedValues)
}

func TestAnnotator_NonLocalCalleeDoesNotContribute(t *testing.T) {
	fx := newFixture(t)

	top := fx.fun("top")
	fx.file.AddMember(top)

	v := fx.f.BuildVariable("v", fx.b.IntType(), false, fx.b.IntConst(1))
	local := fx.fun("local", ir.NewCall(top))
	outer := fx.fun("outer", v, local)
	fx.file.AddMember(outer)
	fx.finish()

	a := NewAnnotator(fx.file, nil)
	assert.True(t, a.FunctionClosure(local).IsEmpty())
}

func TestAnnotator_LambdaCapturesParameter(t *testing.T) {
	fx := newFixture(t)

	a0 := fx.f.BuildValueParameter("a", fx.b.IntType(), 0)
	lambda := fx.f.BuildFun("<anonymous>", fx.b.IntType(), ir.OriginLambda)
	lambda.Body = ir.NewBlock(fx.b.UnitType(), ir.NewGetValue(a0))

	outer := fx.fun("outer", ir.NewFunctionExpression(lambda, fx.b.FunctionType(nil, fx.b.IntType())))
	outer.AddParam(a0)
	fx.file.AddMember(outer)
	fx.finish()

	a := NewAnnotator(outer.Body, outer)
	assert.Equal(t, symbols(a0), a.FunctionClosure(lambda).CapturedValues)
}

func TestAnnotator_LocalClassWithPrimaryConstructor(t *testing.T) {
	fx := newFixture(t)

	// fun outer(y) { class L(p) { val q = p; fun m() = y }; L(1) }
	y := fx.f.BuildValueParameter("y", fx.b.IntType(), 0)

	local := fx.f.BuildClass("L", ir.ClassKindClass, ir.OriginDefined)
	ctor := fx.f.BuildConstructor(local, true, ir.OriginDefined)
	p := fx.f.AddValueParameter(ctor, "p", fx.b.IntType())
	ctor.Body = ir.NewBlock(fx.b.UnitType())
	local.AddMember(ctor)

	q := fx.f.AddField(local, "q", fx.b.IntType(), ir.OriginDefined)
	q.Initializer = ir.NewGetValue(p)

	m := fx.f.BuildMemberFun(local, "m", fx.b.IntType(), ir.OriginDefined)
	m.Body = ir.NewBlock(fx.b.UnitType(), ir.NewGetValue(y))
	local.AddMember(m)

	outer := fx.fun("outer", local, ir.NewConstructorCall(ctor, fx.b.IntConst(1)))
	outer.AddParam(y)
	fx.file.AddMember(outer)
	fx.finish()

	a := NewAnnotator(outer, nil)
	assert.Equal(t, symbols(y), a.ClassClosure(local).CapturedValues)
	assert.Equal(t, symbols(y), a.FunctionClosure(m).CapturedValues)
	assert.True(t, a.FunctionClosure(ctor).IsEmpty())
	assert.True(t, a.FunctionClosure(outer).IsEmpty())
}

func TestAnnotator_InnerClassDeclaresOuterReceiver(t *testing.T) {
	fx := newFixture(t)

	outer := fx.f.BuildClass("Outer", ir.ClassKindClass, ir.OriginDefined)
	inner := fx.f.BuildClass("Inner", ir.ClassKindClass, ir.OriginDefined)
	inner.IsInner = true

	m := fx.f.BuildMemberFun(inner, "m", outer.DefaultType(), ir.OriginDefined)
	m.Body = ir.NewBlock(fx.b.UnitType(), ir.NewGetValue(outer.ThisReceiver))
	inner.AddMember(m)
	outer.AddMember(inner)
	fx.file.AddMember(outer)
	fx.finish()

	a := NewAnnotator(fx.file, nil)
	assert.Equal(t, symbols(outer.ThisReceiver), a.FunctionClosure(m).CapturedValues)
	assert.True(t, a.ClassClosure(inner).IsEmpty())
	assert.True(t, a.ClassClosure(outer).IsEmpty())
}

func TestAnnotator_CapturedTypeParameters(t *testing.T) {
	fx := newFixture(t)

	outer := fx.fun("outer")
	tp := fx.f.AddTypeParameter(outer, "T")

	local := fx.fun("local")
	fx.f.AddValueParameter(local, "x", tp.DefaultType())
	outer.Body.Statements = append(outer.Body.Statements, local)
	fx.file.AddMember(outer)
	fx.finish()

	a := NewAnnotator(outer, nil)
	assert.Equal(t, []*ir.TypeParameter{tp}, a.FunctionClosure(local).CapturedTypeParameters)
	assert.True(t, a.FunctionClosure(outer).IsEmpty())
}

func TestAnnotator_UnknownDeclarationIsInternalError(t *testing.T) {
	fx := newFixture(t)
	fn := fx.fun("f")
	fx.file.AddMember(fn)
	fx.finish()

	a := NewAnnotator(fn.Body, fn)
	assert.Panics(t, func() {
		a.FunctionClosure(fx.fun("g"))
	})
}
