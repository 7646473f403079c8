package lower

import (
	"nativec/ir"
)

// Context is the state shared by all the phases of one pipeline run.  Nothing
// in this package is global: everything a pass remembers between files or
// between phases lives here.
type Context struct {
	Factory  *ir.Factory
	Builtins *ir.Builtins

	// Mapping holds the cross-phase tables linking original declarations to
	// the declarations synthesized for them.
	Mapping *Mapping

	// TailSuspendCalls is the set of suspend calls whose result is returned
	// immediately.  It is filled by CollectTailSuspendCalls before the
	// coroutine lowering reads it.
	TailSuspendCalls map[*ir.Call]struct{}

	// SharedVariables supplies the box representation used for captured
	// mutable locals.
	SharedVariables SharedVariablesManager

	// StateMachines builds the bodies of coroutine `invokeSuspend` methods.
	StateMachines StateMachineBuilder

	// Observer, if set, is told about every declaration a phase synthesizes
	// or references across libraries.
	Observer DeclarationObserver

	// DefaultArgumentHandlers adds a trailing handler parameter to the
	// `$default` stubs of functions.  Constructor stubs always take a marker.
	DefaultArgumentHandlers bool

	// VerifyAfterPhase runs the IR verifier over every file after every phase.
	VerifyAfterPhase bool
}

// NewContext creates a new lowering context using the default collaborators.
func NewContext(f *ir.Factory, b *ir.Builtins) *Context {
	ctx := &Context{
		Factory:          f,
		Builtins:         b,
		Mapping:          newMapping(),
		TailSuspendCalls: make(map[*ir.Call]struct{}),
	}

	ctx.SharedVariables = &RefSharedVariablesManager{ctx: ctx}
	ctx.StateMachines = DirectStateMachineBuilder{}
	return ctx
}

// observe notifies the observer, if any, of a declaration.
func (ctx *Context) observe(d ir.Declaration) {
	if ctx.Observer != nil {
		ctx.Observer.ObserveDeclaration(d)
	}
}

// Mapping holds the tables connecting declarations across phases.
type Mapping struct {
	// DefaultStubs maps a function with default values to its `$default`
	// stub.
	DefaultStubs map[*ir.Function]*ir.Function

	// LateinitFields maps a lateinit property to its nullable shadow field.
	LateinitFields map[*ir.Property]*ir.Field

	// LateinitVariables maps a lateinit local to its original, non-null type.
	LateinitVariables map[*ir.Variable]ir.Type

	// OuterThisFields maps an inner class to its `this$0` field.
	OuterThisFields map[*ir.Class]*ir.Field

	// InnerConstructorOuterParams maps a constructor of an inner class to its
	// leading outer instance parameter.
	InnerConstructorOuterParams map[*ir.Function]*ir.ValueParameter

	// SuspendCompanions maps a suspend function to its coroutine class.
	SuspendCompanions map[*ir.Function]*ir.Class

	// LiftedFunctions maps a local function to the values it captured, now
	// its leading parameters.
	LiftedFunctions map[*ir.Function][]*ir.Symbol

	// SamWrappers caches SAM adapters by the erased interface they implement.
	// The cache is per file: it is reset when a file is done.
	SamWrappers map[*ir.Class]*ir.Class
}

func newMapping() *Mapping {
	return &Mapping{
		DefaultStubs:                make(map[*ir.Function]*ir.Function),
		LateinitFields:              make(map[*ir.Property]*ir.Field),
		LateinitVariables:           make(map[*ir.Variable]ir.Type),
		OuterThisFields:             make(map[*ir.Class]*ir.Field),
		InnerConstructorOuterParams: make(map[*ir.Function]*ir.ValueParameter),
		SuspendCompanions:           make(map[*ir.Function]*ir.Class),
		LiftedFunctions:             make(map[*ir.Function][]*ir.Symbol),
		SamWrappers:                 make(map[*ir.Class]*ir.Class),
	}
}

// -----------------------------------------------------------------------------

// DeclarationObserver is notified of declarations a lowering or code
// generation step depends on.  The dependency tracker implements it.
type DeclarationObserver interface {
	ObserveDeclaration(d ir.Declaration)
}

// SharedVariablesManager abstracts the box a captured mutable local is stored
// in.  The representation of the box is backend specific.
type SharedVariablesManager interface {
	// DeclareSharedVariable creates the variable holding the box for
	// `original`.  The result has no initializer yet.
	DeclareSharedVariable(original *ir.Variable) *ir.Variable

	// DefineSharedValue returns the statement that declares `shared` and
	// stores the initial value of `original` into it.
	DefineSharedValue(original, shared *ir.Variable) ir.Statement

	// GetSharedValue returns the expression reading the box.
	GetSharedValue(shared *ir.Variable, read *ir.GetValue) ir.Expr

	// SetSharedValue returns the expression writing the box.
	SetSharedValue(shared *ir.Variable, write *ir.SetValue) ir.Expr
}

// StateMachineBuilder fills the body of a coroutine's `invokeSuspend` method.
// `fields` maps every parameter of the original function, receivers included,
// to the coroutine field it was saved into.
type StateMachineBuilder interface {
	BuildStateMachine(ctx *Context, original *ir.Function, body *ir.Block, invokeSuspend *ir.Function, fields map[*ir.ValueParameter]*ir.Field)
}
