package lower

import (
	"testing"

	"nativec/ir"
	"nativec/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dropBodies struct{}

func (dropBodies) Lower(file *ir.File) {
	for _, d := range file.Declarations {
		if fn, ok := d.(*ir.Function); ok {
			fn.Body = nil
		}
	}
}

func (fx *fixture) module() *ir.Module {
	mod := &ir.Module{Name: "app"}
	mod.AddFile(fx.file)
	return mod
}

func TestPipeline_ErrorCarriesPhaseAndDeclaration(t *testing.T) {
	fx := newFixture(t)

	// f has a default value but no stub was generated for it
	f := fx.fun("f", fx.b.UnitType())
	fx.f.AddValueParameter(f, "a", fx.b.IntType()).DefaultValue = fx.b.IntConst(1)
	main := fx.fun("main", fx.b.UnitType(), ir.NewCall(f, nil))
	fx.file.AddMember(f)
	fx.file.AddMember(main)
	fx.finish()

	p := &Pipeline{Context: fx.ctx, Phases: []Phase{
		{"DefaultArgumentInjector", &DefaultArgumentInjector{ctx: fx.ctx}},
	}}

	err := p.Lower(fx.module())

	var ie *report.InternalError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "DefaultArgumentInjector", ie.Phase)
	assert.Equal(t, "fun demo.main (a.kt)", ie.Declaration)
	assert.Contains(t, ie.Message, "has no default stub")
}

func TestPipeline_VerifyNamesThePhase(t *testing.T) {
	fx := newFixture(t)
	fx.file.AddMember(fx.fun("f", fx.b.UnitType()))
	fx.finish()

	p := &Pipeline{Context: fx.ctx, Phases: []Phase{{"DropBodies", dropBodies{}}}}
	err := p.Lower(fx.module())

	var ie *report.InternalError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "DropBodies", ie.Phase)
	assert.Contains(t, ie.Message, "has no body")
}

func TestPipeline_UnknownPassShape(t *testing.T) {
	fx := newFixture(t)
	fx.finish()

	p := &Pipeline{Context: fx.ctx, Phases: []Phase{{"Nothing", 42}}}
	err := p.Lower(fx.module())

	var ie *report.InternalError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "Nothing", ie.Phase)
}

func TestPipeline_DefaultPhasesLowerSmallProgram(t *testing.T) {
	fx := newFixture(t)
	log := fx.logFun()

	// suspend fun g(): Int = 1
	g := fx.fun("g", fx.b.IntType())
	g.IsSuspend = true
	g.Body.Statements = append(g.Body.Statements, ir.NewReturn(g, fx.b.IntConst(1), fx.b.NothingType()))

	// suspend fun f(a: Int = 2): String {
	//     var x = a
	//     fun bump() { log() }
	//     val y = g()
	//     try { bump() } finally { log() }
	//     return "x=" + y
	// }
	f := fx.fun("f", fx.b.StringType())
	f.IsSuspend = true
	a := fx.f.AddValueParameter(f, "a", fx.b.IntType())
	a.DefaultValue = fx.b.IntConst(2)

	x := fx.f.BuildVariable("x", fx.b.IntType(), true, ir.NewGetValue(a))
	bump := fx.fun("bump", fx.b.UnitType(), ir.NewCall(log))
	y := fx.f.BuildVariable("y", fx.b.IntType(), false, ir.NewCall(g))
	try := ir.NewTry(fx.b.UnitType(), ir.NewCall(bump), nil, ir.NewBlock(fx.b.UnitType(), ir.NewCall(log)))
	concat := ir.NewMemberCall(fx.b.StringPlus, fx.b.StringConst("x="), ir.NewGetValue(y))
	f.Body.Statements = append(f.Body.Statements, x, bump, y, try, ir.NewReturn(f, concat, fx.b.NothingType()))

	fx.file.AddMember(g)
	fx.file.AddMember(f)
	fx.finish()

	observed := &recordingObserver{}
	fx.ctx.Observer = observed

	require.NoError(t, NewPipeline(fx.ctx).Lower(fx.module()))

	names := make([]string, 0, len(fx.file.Declarations))
	for _, d := range fx.file.Declarations {
		names = append(names, d.DeclName())
	}

	assert.Equal(t, []string{"log", "g", "f", "f$COROUTINE$1", "f$default", "f$bump"}, names)
	assert.NotEmpty(t, observed.decls)
	assert.NoError(t, ir.Verify(fx.file))
}

type recordingObserver struct {
	decls []ir.Declaration
}

func (ro *recordingObserver) ObserveDeclaration(d ir.Declaration) {
	ro.decls = append(ro.decls, d)
}
