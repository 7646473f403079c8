package lower

import (
	"testing"

	"nativec/ir"

	"github.com/stretchr/testify/require"
)

type fixture struct {
	t    *testing.T
	f    *ir.Factory
	b    *ir.Builtins
	ctx  *Context
	file *ir.File
}

func newFixture(t *testing.T) *fixture {
	f := ir.NewFactory()
	b := ir.NewBuiltins(f)

	ctx := NewContext(f, b)
	ctx.VerifyAfterPhase = true

	return &fixture{t: t, f: f, b: b, ctx: ctx, file: f.BuildFile("a.kt", "demo", "app")}
}

// fun creates a top-level function returning `ret` with the given body.
func (fx *fixture) fun(name string, ret ir.Type, stmts ...ir.Statement) *ir.Function {
	fn := fx.f.BuildFun(name, ret, ir.OriginDefined)
	fn.Body = ir.NewBlock(fx.b.UnitType(), stmts...)
	return fn
}

func (fx *fixture) finish() {
	ir.PatchDeclarationParents(fx.file, nil)
	require.NoError(fx.t, ir.Verify(fx.file))
}

// lower runs a single pass over the fixture's file and checks the result.
func (fx *fixture) lower(name string, pass interface{}) {
	p := &Pipeline{Context: fx.ctx}
	require.NoError(fx.t, p.lowerFile(Phase{Name: name, Pass: pass}, fx.file))
}

// collect returns all the nodes of type T under `root` in visiting order.
func collect[T ir.Element](root ir.Element) []T {
	var result []T
	ir.VisitAll(root, func(e ir.Element) {
		if v, ok := e.(T); ok {
			result = append(result, v)
		}
	})

	return result
}
