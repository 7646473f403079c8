package ir

import (
	"fmt"
	"testing"

	"nativec/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	f    *Factory
	b    *Builtins
	file *File
}

func newFixture() *fixture {
	f := NewFactory()
	b := NewBuiltins(f)
	file := f.BuildFile("a.kt", "demo", "app")
	return &fixture{f: f, b: b, file: file}
}

// topFun adds `fun name(params...): Int` with an empty body to the file.
func (fx *fixture) topFun(name string, params ...string) *Function {
	fn := fx.f.BuildFun(name, fx.b.IntType(), OriginDefined)
	for _, p := range params {
		fx.f.AddValueParameter(fn, p, fx.b.IntType())
	}

	fn.Body = NewBlock(fx.b.UnitType())
	fx.file.AddMember(fn)
	return fn
}

func TestFactory_BuildsBoundDeclarations(t *testing.T) {
	fx := newFixture()
	c := fx.f.BuildClass("A", ClassKindClass, OriginDefined)

	assert.Same(t, c, c.Symbol().Owner())
	assert.Nil(t, c.Parent())
	require.NotNil(t, c.ThisReceiver)
	assert.Same(t, c, c.ThisReceiver.Parent())
	assert.Equal(t, "A", c.DefaultType().String())

	tp := fx.f.AddTypeParameter(c, "T")
	assert.Equal(t, "A<T>", c.ThisReceiver.Type.String())
	assert.Same(t, c, tp.Parent())
}

func TestSymbol_DoubleBindIsInternalError(t *testing.T) {
	fx := newFixture()
	fn := fx.topFun("f")

	expected := fmt.Sprintf("internal compiler error: function symbol #%d is already bound to fun demo.f (a.kt)", fn.Symbol().ID)
	assert.PanicsWithError(t, expected, func() {
		fn.Symbol().Bind(fn)
	})
}

func TestSymbol_UnboundOwnerIsInternalError(t *testing.T) {
	s := NewFactory().NewSymbol(ValueSymbol)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		_, ok := r.(*report.InternalError)
		assert.True(t, ok)
	}()

	s.Owner()
}

func TestSymbol_RebindRedirectsReferences(t *testing.T) {
	fx := newFixture()
	f := fx.topFun("f")
	g := fx.f.BuildFun("g", fx.b.IntType(), OriginDefined)

	call := NewCall(f)
	f.Symbol().Rebind(g)
	assert.Same(t, g, call.Sym.Function())

	assert.Panics(t, func() {
		f.Symbol().Rebind(fx.f.BuildField("x", fx.b.IntType(), OriginDefined))
	})
}

func TestTransformChildren_ReplacesExpressions(t *testing.T) {
	fx := newFixture()
	fn := fx.topFun("f")
	fn.Body.Statements = append(fn.Body.Statements,
		NewReturn(fn, fx.b.IntConst(1), fx.b.NothingType()),
	)

	var tr Transformer
	tr = TransformerFunc(func(e Element) Element {
		if c, ok := e.(*Const); ok && c.Kind == ConstInt {
			return fx.b.IntConst(c.Value.(int32) + 1)
		}

		TransformChildren(e, tr)
		return e
	})

	tr.Transform(fx.file)

	ret := fn.Body.Statements[0].(*Return)
	assert.Equal(t, int32(2), ret.Value.(*Const).Value)
}

func TestTransformChildren_RejectsIncompatibleReplacement(t *testing.T) {
	fx := newFixture()
	fn := fx.topFun("f", "a")

	assert.Panics(t, func() {
		TransformChildren(fn, TransformerFunc(func(e Element) Element {
			return fx.b.IntConst(0)
		}))
	})
}

func TestTransformFlat_ReplacesAndRemoves(t *testing.T) {
	fx := newFixture()
	f := fx.topFun("f")
	g := fx.topFun("g")

	class := fx.f.BuildClass("C", ClassKindClass, OriginDefined)
	fx.file.AddMember(class)
	m := fx.f.BuildMemberFun(class, "m", fx.b.IntType(), OriginDefined)
	m.Body = NewBlock(fx.b.UnitType())
	class.AddMember(m)

	var stub *Function
	TransformFlat(fx.file, func(d Declaration) []Declaration {
		switch d {
		case f:
			stub = fx.f.BuildFun("f$default", fx.b.IntType(), OriginDefaultArgumentsStub)
			stub.Body = NewBlock(fx.b.UnitType())
			return []Declaration{f, stub}
		case g:
			return []Declaration{}
		case m:
			return []Declaration{}
		}

		return nil
	})

	assert.Equal(t, []Declaration{f, stub, class}, fx.file.Declarations)
	assert.Same(t, fx.file, stub.Parent())
	assert.Empty(t, class.Declarations)
}

func TestPatchDeclarationParents(t *testing.T) {
	fx := newFixture()
	fn := fx.topFun("f")

	local := fx.f.BuildVariable("x", fx.b.IntType(), true, fx.b.IntConst(1))
	lambda := fx.f.BuildFun("<anonymous>", fx.b.IntType(), OriginLambda)
	lambda.Body = NewBlock(fx.b.UnitType())
	fn.Body.Statements = append(fn.Body.Statements, local, NewFunctionExpression(lambda, fx.b.AnyType()))

	require.Error(t, Verify(fx.file))

	PatchDeclarationParents(fx.file, nil)
	assert.Same(t, fn, local.Parent())
	assert.Same(t, fn, lambda.Parent())
	assert.NoError(t, Verify(fx.file))
	assert.True(t, IsLocal(lambda))
	assert.False(t, IsLocal(fn))
}

func TestVerify_MissingBody(t *testing.T) {
	fx := newFixture()
	fn := fx.topFun("f")
	fn.Body = nil

	err := Verify(fx.file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fun demo.f (a.kt) has no body")
}

func TestDeepCopy_RemapsLocalDeclarations(t *testing.T) {
	fx := newFixture()
	fn := fx.topFun("f", "p")

	x := fx.f.BuildVariable("x", fx.b.IntType(), true, NewGetValue(fn.Params[0]))
	loop := NewLoop(fx.b.BoolConst(true), nil, fx.b.UnitType())
	loop.Body = NewBlock(fx.b.UnitType(),
		NewSetValue(x, fx.b.IntConst(3), fx.b.UnitType()),
		&Break{Loop: loop},
	)
	block := NewBlock(fx.b.UnitType(), x, loop, NewGetValue(x))

	cp := DeepCopy(fx.f, block)
	require.Len(t, cp.Statements, 3)

	nx := cp.Statements[0].(*Variable)
	assert.NotSame(t, x, nx)
	assert.NotEqual(t, x.Symbol(), nx.Symbol())

	// The parameter is outside the copied tree: its symbol is shared.
	assert.Same(t, fn.Params[0].Symbol(), nx.Initializer.(*GetValue).Sym)

	nloop := cp.Statements[1].(*Loop)
	body := nloop.Body.(*Block)
	assert.Same(t, nx.Symbol(), body.Statements[0].(*SetValue).Sym)
	assert.Same(t, nloop, body.Statements[1].(*Break).Loop)
	assert.Same(t, nx.Symbol(), cp.Statements[2].(*GetValue).Sym)
}

func TestDescribeAndTopLevelContainer(t *testing.T) {
	fx := newFixture()
	outer := fx.f.BuildClass("Outer", ClassKindClass, OriginDefined)
	inner := fx.f.BuildClass("Inner", ClassKindClass, OriginDefined)
	fx.file.AddMember(outer)
	outer.AddMember(inner)

	assert.Equal(t, "class demo.Outer.Inner (a.kt)", Describe(inner))
	assert.Same(t, outer, TopLevelContainer(inner))
	assert.Same(t, fx.file, TopLevelContainer(outer))
	assert.Same(t, outer, EnclosingClass(inner))
}

func TestDump(t *testing.T) {
	fx := newFixture()
	fn := fx.topFun("f", "a")
	fn.Body.Statements = append(fn.Body.Statements,
		NewReturn(fn, NewGetValue(fn.Params[0]), fx.b.NothingType()),
	)

	expected := "FUN f(a: Int): Int\n" +
		"  VALUE_PARAMETER a: Int\n" +
		"  BLOCK\n" +
		"    RETURN f\n" +
		"      GET_VAR a\n"
	assert.Equal(t, expected, Dump(fn))
}

func TestTypes(t *testing.T) {
	fx := newFixture()

	arr := fx.b.ArrayType(fx.b.StringType())
	assert.Equal(t, "Array<String>", arr.String())
	assert.Equal(t, "Array<String>?", MakeNullable(arr).String())
	assert.True(t, TypesEqual(arr, fx.b.ArrayType(fx.b.StringType())))
	assert.False(t, TypesEqual(arr, MakeNullable(arr)))

	fnType := fx.b.FunctionType([]Type{fx.b.IntType()}, fx.b.StringType())
	assert.Equal(t, 1, fx.b.FunctionArity(fnType))
	assert.Equal(t, -1, fx.b.FunctionArity(arr))
	assert.Equal(t, "invoke", fx.b.FunctionInvoke(1).Name)

	tp := fx.b.Array.TypeParameters[0]
	subst := SubstituteTypes(fx.b.ArrayType(tp.DefaultType()), map[*TypeParameter]Type{tp: fx.b.IntType()})
	assert.Equal(t, "Array<Int>", subst.String())
	assert.Same(t, fx.b.Any, Erase(tp.DefaultType(), fx.b.Any))
}
