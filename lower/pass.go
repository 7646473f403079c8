// Package lower implements the lowering pipeline: the fixed sequence of
// passes that rewrite high-level IR constructs into the primitive subset the
// code generator accepts.
package lower

import (
	"nativec/ir"
	"nativec/report"
)

// FileLoweringPass is a pass that needs to see a whole file at once.
type FileLoweringPass interface {
	Lower(file *ir.File)
}

// BodyLoweringPass is a pass that rewrites one executable body at a time.
// `container` is the declaration owning the body: a function for its body and
// its default values, a field for its initializer.  It returns the new body.
type BodyLoweringPass interface {
	LowerBody(body ir.Expr, container ir.Declaration) ir.Expr
}

// DeclarationTransformer is a pass that changes the set of declarations.  It
// returns nil to keep a declaration unchanged or the list of declarations to
// replace it with.
type DeclarationTransformer interface {
	TransformFlat(d ir.Declaration) []ir.Declaration
}

// Phase is a named pass of the pipeline.  Pass must implement one of
// FileLoweringPass, BodyLoweringPass or DeclarationTransformer.
type Phase struct {
	Name string
	Pass interface{}
}

// Pipeline is a sequence of phases run over every file of a module.
type Pipeline struct {
	Context *Context
	Phases  []Phase
}

// NewPipeline creates the default pipeline.
func NewPipeline(ctx *Context) *Pipeline {
	return &Pipeline{Context: ctx, Phases: DefaultPhases(ctx)}
}

// DefaultPhases returns the phases of the lowering pipeline in the order they
// must run.  Later passes rely on the invariants established by earlier ones:
// the order is not configurable.
func DefaultPhases(ctx *Context) []Phase {
	return []Phase{
		{"ArrayConstructor", &ArrayConstructorLowering{ctx: ctx}},
		{"LateinitNullableFields", &NullableFieldsLowering{ctx: ctx}},
		{"LateinitGetters", &GetterLowering{ctx: ctx}},
		{"LateinitUseSites", &UseSiteLowering{ctx: ctx}},
		{"AnnotationImplementation", &AnnotationImplementationLowering{ctx: ctx}},
		{"DefaultArgumentStubs", &DefaultArgumentStubGenerator{ctx: ctx}},
		{"DefaultArgumentInjector", &DefaultArgumentInjector{ctx: ctx}},
		{"DefaultParameterCleaner", &DefaultParameterCleaner{ctx: ctx}},
		{"SharedVariables", &SharedVariablesLowering{ctx: ctx}},
		{"LocalFunctions", &LocalFunctionsLowering{ctx: ctx}},
		{"FlattenStringConcatenation", &FlattenStringConcatenationLowering{ctx: ctx}},
		{"StringConcatenation", &StringConcatenationLowering{ctx: ctx}},
		{"InnerClasses", &InnerClassesLowering{ctx: ctx}},
		{"InnerClassConstructorCalls", &InnerClassConstructorCallsLowering{ctx: ctx}},
		{"FinallyBlocks", &FinallyBlocksLowering{ctx: ctx}},
		{"SingleAbstractMethod", &SingleAbstractMethodLowering{ctx: ctx}},
		{"TailSuspendCalls", &TailSuspendCallsCollector{ctx: ctx}},
		{"Coroutines", &CoroutinesLowering{ctx: ctx}},
	}
}

// Lower runs every phase over every file of the module.  A phase is finished
// for all files before the next one starts.  The first error stops the
// pipeline.
func (p *Pipeline) Lower(mod *ir.Module) error {
	for _, phase := range p.Phases {
		report.BeginPhase(phase.Name)

		for _, file := range mod.Files {
			if err := p.lowerFile(phase, file); err != nil {
				report.EndPhase(false)
				return err
			}
		}

		report.EndPhase(true)
	}

	return nil
}

// LowerFile runs every phase over a single file.
func (p *Pipeline) LowerFile(file *ir.File) error {
	for _, phase := range p.Phases {
		if err := p.lowerFile(phase, file); err != nil {
			return err
		}
	}

	return nil
}

func (p *Pipeline) lowerFile(phase Phase, file *ir.File) (err error) {
	defer report.Recover(phase.Name, file.Path, &err)

	report.Debugf("lower", "%s: %s", phase.Name, file.Path)
	runPhase(phase, file)

	// every pass may have moved or synthesized declarations
	ir.PatchDeclarationParents(file, nil)

	if p.Context.VerifyAfterPhase {
		if verr := ir.Verify(file); verr != nil {
			ie := verr.(*report.InternalError)
			ie.Phase = phase.Name
			return ie
		}
	}

	return nil
}

func runPhase(phase Phase, file *ir.File) {
	switch v := phase.Pass.(type) {
	case FileLoweringPass:
		v.Lower(file)
	case BodyLoweringPass:
		RunOnBodies(file, v)
	case DeclarationTransformer:
		ir.TransformFlat(file, v.TransformFlat)
	default:
		report.ICE("phase %s has a pass of unknown shape %T", phase.Name, phase.Pass)
	}
}

// RunOnBodies drives a body pass over every function body, field initializer
// and parameter default value of the file.  Local declarations are part of
// the bodies containing them.
func RunOnBodies(file *ir.File, pass BodyLoweringPass) {
	for _, d := range file.Declarations {
		runOnDeclaration(d, pass)
	}
}

func runOnDeclaration(d ir.Declaration, pass BodyLoweringPass) {
	switch v := d.(type) {
	case *ir.Class:
		for _, m := range v.Declarations {
			runOnDeclaration(m, pass)
		}
	case *ir.Function:
		for _, vp := range v.Params {
			if vp.DefaultValue != nil {
				vp.DefaultValue = pass.LowerBody(vp.DefaultValue, v)
			}
		}

		if v.Body != nil {
			v.Body = ir.AsBlock(pass.LowerBody(v.Body, v))
		}
	case *ir.Property:
		if v.BackingField != nil {
			runOnDeclaration(v.BackingField, pass)
		}

		if v.Getter != nil {
			runOnDeclaration(v.Getter, pass)
		}

		if v.Setter != nil {
			runOnDeclaration(v.Setter, pass)
		}
	case *ir.Field:
		if v.Initializer != nil {
			v.Initializer = pass.LowerBody(v.Initializer, v)
		}
	}
}

// -----------------------------------------------------------------------------

// icePhase raises an internal error naming the phase and the declaration being
// processed.
func icePhase(phase string, d ir.Declaration, msg string, args ...interface{}) {
	report.ICEAt(phase, ir.Describe(d), msg, args...)
}
