package lower

import (
	"testing"

	"nativec/ir"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (fx *fixture) logFun() *ir.Function {
	log := fx.fun("log", fx.b.UnitType())
	fx.file.AddMember(log)
	return log
}

func tries(root ir.Element) (withFinally, total int) {
	for _, try := range collect[*ir.Try](root) {
		total++
		if try.Finally != nil {
			withFinally++
		}
	}

	return
}

func TestFinallyBlocks_ReturnRunsFinally(t *testing.T) {
	fx := newFixture(t)
	log := fx.logFun()

	// fun f(): Int { try { return 1 } finally { log() } }
	f := fx.fun("f", fx.b.IntType())
	try := ir.NewTry(fx.b.UnitType(),
		ir.NewBlock(fx.b.NothingType(), ir.NewReturn(f, fx.b.IntConst(1), fx.b.NothingType())),
		nil,
		ir.NewBlock(fx.b.UnitType(), ir.NewCall(log)),
	)
	f.Body.Statements = append(f.Body.Statements, try)
	fx.file.AddMember(f)
	fx.finish()

	fx.lower("FinallyBlocks", &FinallyBlocksLowering{ctx: fx.ctx})

	withFinally, total := tries(f.Body)
	assert.Zero(t, withFinally)
	assert.Equal(t, 1, total)

	// before the return, on the exceptional path and after the normal exit
	assert.Len(t, callsTo(f.Body, log), 3)

	composite := f.Body.Statements[0].(*ir.Block)
	lowered := composite.Statements[0].(*ir.Try)
	require.Len(t, lowered.Catches, 1)
	assert.Equal(t, fx.b.Throwable, ir.ClassOf(lowered.Catches[0].Param.Type))
	assert.Len(t, collect[*ir.Throw](lowered.Catches[0].Result), 1)

	// the returned value is evaluated before the finally block
	ret := collect[*ir.Return](lowered.Body)[0]
	tmp := ret.Value.(*ir.GetValue).Sym.Owner().(*ir.Variable)
	assert.Equal(t, ir.OriginFinallyTemp, tmp.Origin())
}

func TestFinallyBlocks_ValueTryKeepsCatches(t *testing.T) {
	fx := newFixture(t)
	log := fx.logFun()

	// val r = try { 1 } catch (e: Throwable) { 2 } finally { log() }
	e := fx.f.BuildVariable("e", fx.b.ThrowableType(), false, nil)
	try := ir.NewTry(fx.b.IntType(),
		fx.b.IntConst(1),
		[]*ir.Catch{ir.NewCatch(e, fx.b.IntConst(2))},
		ir.NewBlock(fx.b.UnitType(), ir.NewCall(log)),
	)
	r := fx.f.BuildVariable("r", fx.b.IntType(), false, try)
	f := fx.fun("f", fx.b.UnitType(), r)
	fx.file.AddMember(f)
	fx.finish()

	fx.lower("FinallyBlocks", &FinallyBlocksLowering{ctx: fx.ctx})

	composite := r.Initializer.(*ir.Block)
	require.Len(t, composite.Statements, 3)
	result := composite.Statements[0].(*ir.Variable)
	assert.Equal(t, ir.OriginFinallyTemp, result.Origin())
	assert.Equal(t, result.Symbol(), composite.Statements[2].(*ir.GetValue).Sym)

	withFinally, total := tries(composite)
	assert.Zero(t, withFinally)
	assert.Equal(t, 2, total)

	outer := result.Initializer.(*ir.Try)
	inner := outer.Body.(*ir.Try)
	require.Len(t, inner.Catches, 1)
	assert.Same(t, e, inner.Catches[0].Param)

	assert.Len(t, callsTo(composite, log), 2)
}

func TestFinallyBlocks_OnlyJumpsLeavingTheTryAreGuarded(t *testing.T) {
	fx := newFixture(t)
	log := fx.logFun()

	// while (true) { try { while (true) { break@inner }; break@outer } finally { log() } }
	outerLoop := ir.NewLoop(fx.b.BoolConst(true), nil, fx.b.UnitType())
	innerLoop := ir.NewLoop(fx.b.BoolConst(true), nil, fx.b.UnitType())
	innerLoop.Body = ir.NewBlock(fx.b.UnitType(), &ir.Break{Loop: innerLoop})

	try := ir.NewTry(fx.b.UnitType(),
		ir.NewBlock(fx.b.UnitType(), innerLoop, &ir.Break{Loop: outerLoop}),
		nil,
		ir.NewBlock(fx.b.UnitType(), ir.NewCall(log)),
	)
	outerLoop.Body = ir.NewBlock(fx.b.UnitType(), try)

	f := fx.fun("f", fx.b.UnitType(), outerLoop)
	fx.file.AddMember(f)
	fx.finish()

	fx.lower("FinallyBlocks", &FinallyBlocksLowering{ctx: fx.ctx})

	// before break@outer, on the exceptional path and after the normal exit
	assert.Len(t, callsTo(f.Body, log), 3)
	assert.Empty(t, callsTo(innerLoop, log))
}
