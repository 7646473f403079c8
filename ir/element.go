// Package ir defines the tree-shaped intermediate representation rewritten by
// the lowering passes: declarations, expressions and types, together with the
// symbols expressions use to refer to declarations.
//
// The tree is mutated in place.  A declaration has exactly one structural owner
// (its parent) but may be referenced from any number of expressions through its
// symbol.  Replacing a declaration therefore never invalidates references: they
// keep pointing at the symbol, which is explicitly rebound when needed.
package ir

import "nativec/report"

// Origin is a tag recording why a node exists: user code or a specific
// synthesis reason.  Passes use it to recognize the synthetic shapes produced
// by earlier passes.
type Origin string

// Enumeration of the origins used by the compiler.
const (
	OriginDefined Origin = ""

	OriginDefaultArgumentsStub  Origin = "DEFAULT_ARGUMENTS_STUB"
	OriginMaskForDefaults       Origin = "MASK_FOR_DEFAULT_FUNCTION"
	OriginMarkerForDefaults     Origin = "DEFAULT_CONSTRUCTOR_MARKER"
	OriginHandlerForDefaults    Origin = "METHOD_HANDLER_IN_DEFAULT_FUNCTION"
	OriginDefaultValueCondition Origin = "DEFAULT_VALUE_CONDITION"
	OriginDefaultDispatchCall   Origin = "DEFAULT_DISPATCH_CALL"

	OriginOuterThisField     Origin = "FIELD_FOR_OUTER_THIS"
	OriginOuterThisParameter Origin = "OUTER_THIS_PARAMETER"

	OriginLateinitShadow Origin = "LATEINIT_SHADOW"
	OriginLateinitCheck  Origin = "LATEINIT_CHECK"

	OriginSharedVariable Origin = "SHARED_VARIABLE"

	OriginSamWrapper        Origin = "SAM_WRAPPER"
	OriginSamWrapperField   Origin = "SAM_WRAPPER_FIELD"
	OriginSamWrapperForward Origin = "SAM_WRAPPER_FORWARD"

	OriginAnnotationImplementation Origin = "ANNOTATION_IMPLEMENTATION"

	OriginCoroutineImpl      Origin = "COROUTINE_IMPL"
	OriginCoroutineField     Origin = "COROUTINE_FIELD"
	OriginContinuationParam  Origin = "CONTINUATION_PARAMETER"
	OriginTailSuspendCall    Origin = "TAIL_SUSPEND_CALL"
	OriginCoroutineStartCall Origin = "COROUTINE_START"

	OriginLambda       Origin = "LAMBDA"
	OriginLiftedLocal  Origin = "LIFTED_LOCAL_FUNCTION"
	OriginCapturedArg  Origin = "CAPTURED_VALUE_PARAMETER"
	OriginFinallyCopy  Origin = "FINALLY_COPY"
	OriginFinallyTemp  Origin = "FINALLY_TEMPORARY"
	OriginArrayCtor    Origin = "ARRAY_CONSTRUCTOR"
	OriginStringConcat Origin = "STRING_CONCATENATION"
	OriginTemporary    Origin = "IR_TEMPORARY_VARIABLE"
)

// Element is implemented by every node of the IR.
type Element interface {
	// Span returns the source range of the node.
	Span() report.TextSpan

	// SetSpan updates the source range of the node.
	SetSpan(span report.TextSpan)

	// Origin returns why the node exists.
	Origin() Origin

	// SetOrigin updates the origin of the node.
	SetOrigin(origin Origin)
}

// ElementBase is the base struct for all IR nodes.
type ElementBase struct {
	span   report.TextSpan
	origin Origin
}

// NewElementBase creates a new element base.
func NewElementBase(span report.TextSpan, origin Origin) ElementBase {
	return ElementBase{span: span, origin: origin}
}

func (eb *ElementBase) Span() report.TextSpan {
	return eb.span
}

func (eb *ElementBase) SetSpan(span report.TextSpan) {
	eb.span = span
}

func (eb *ElementBase) Origin() Origin {
	return eb.origin
}

func (eb *ElementBase) SetOrigin(origin Origin) {
	eb.origin = origin
}

// synthesized is the element base of nodes created by the compiler.
func synthesized(origin Origin) ElementBase {
	return ElementBase{span: report.NoSpan, origin: origin}
}

// Statement is an element which may appear directly inside a block: any
// expression or a local declaration (variable, function, class).
type Statement interface {
	Element

	isStatement()
}
