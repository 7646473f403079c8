package lower

import (
	"testing"

	"nativec/ir"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (fx *fixture) lowerConcat() {
	fx.lower("FlattenStringConcatenation", &FlattenStringConcatenationLowering{ctx: fx.ctx})
	fx.lower("StringConcatenation", &StringConcatenationLowering{ctx: fx.ctx})
}

func TestStringConcatenation_BuilderChain(t *testing.T) {
	fx := newFixture(t)

	// fun f(n: Int): String = ("a" + "b") + n + "" + "c"
	f := fx.fun("f", fx.b.StringType())
	n := fx.f.AddValueParameter(f, "n", fx.b.IntType())

	plus := func(l, r ir.Expr) ir.Expr {
		return ir.NewMemberCall(fx.b.StringPlus, l, r)
	}

	value := plus(plus(plus(plus(fx.b.StringConst("a"), fx.b.StringConst("b")), ir.NewGetValue(n)), fx.b.StringConst("")), fx.b.StringConst("c"))
	f.Body.Statements = append(f.Body.Statements, ir.NewReturn(f, value, fx.b.NothingType()))
	fx.file.AddMember(f)
	fx.finish()

	fx.lowerConcat()

	assert.Empty(t, collect[*ir.StringConcat](f.Body))
	assert.Empty(t, callsTo(f.Body, fx.b.StringPlus))

	appends := callsTo(f.Body, fx.b.StringBuilderAppend)
	require.Len(t, appends, 3)

	// appends are nested: the outermost is the last one
	assert.Equal(t, "c", appends[0].Args[0].(*ir.Const).Value)
	assert.Equal(t, n.Symbol(), appends[1].Args[0].(*ir.GetValue).Sym)
	assert.Equal(t, "ab", appends[2].Args[0].(*ir.Const).Value)

	toString := f.Body.Statements[0].(*ir.Return).Value.(*ir.Call)
	assert.Equal(t, fx.b.StringBuilderToString.Symbol(), toString.Sym)
	assert.Equal(t, ir.OriginStringConcat, toString.Origin())
}

func TestStringConcatenation_SingleArguments(t *testing.T) {
	fx := newFixture(t)

	f := fx.fun("f", fx.b.UnitType())
	n := fx.f.AddValueParameter(f, "n", fx.b.IntType())
	m := fx.f.AddValueParameter(f, "m", ir.MakeNullable(fx.b.IntType()))

	constOnly := fx.f.BuildVariable("a", fx.b.StringType(), false,
		ir.NewStringConcat(fx.b.StringType(), fx.b.StringConst("x"), fx.b.StringConst("y")))
	empty := fx.f.BuildVariable("b", fx.b.StringType(), false, ir.NewStringConcat(fx.b.StringType()))
	single := fx.f.BuildVariable("c", fx.b.StringType(), false,
		ir.NewStringConcat(fx.b.StringType(), ir.NewGetValue(n), fx.b.StringConst("")))
	nullable := fx.f.BuildVariable("d", fx.b.StringType(), false,
		ir.NewStringConcat(fx.b.StringType(), ir.NewGetValue(m)))

	f.Body.Statements = append(f.Body.Statements, constOnly, empty, single, nullable)
	fx.file.AddMember(f)
	fx.finish()

	fx.lowerConcat()

	assert.Equal(t, "xy", constOnly.Initializer.(*ir.Const).Value)
	assert.Equal(t, "", empty.Initializer.(*ir.Const).Value)

	toString := single.Initializer.(*ir.Call)
	assert.Equal(t, fx.b.AnyToString.Symbol(), toString.Sym)

	// a nullable value goes through the builder, which prints "null"
	assert.Len(t, callsTo(nullable.Initializer, fx.b.StringBuilderAppend), 1)
}
