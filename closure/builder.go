package closure

import (
	"sort"

	"nativec/ir"
)

// Closure is the set of values and type parameters a function or class uses
// without declaring them itself.  Both lists are sorted by symbol ID and must
// not be modified.
type Closure struct {
	CapturedValues         []*ir.Symbol
	CapturedTypeParameters []*ir.TypeParameter
}

// IsEmpty returns whether the closure captures nothing.
func (c Closure) IsEmpty() bool {
	return len(c.CapturedValues) == 0 && len(c.CapturedTypeParameters) == 0
}

// Captures returns whether the closure captures the given value.
func (c Closure) Captures(vd ir.ValueDeclaration) bool {
	for _, s := range c.CapturedValues {
		if s == vd.Symbol() {
			return true
		}
	}

	return false
}

// -----------------------------------------------------------------------------

// builder accumulates the capture information of a single function or class
// during the traversal.  Once solved it is frozen and its sets are dropped.
type builder struct {
	owner ir.Declaration

	declaredValues map[*ir.Symbol]struct{}
	capturedValues map[*ir.Symbol]struct{}

	declaredTypeParams map[*ir.TypeParameter]struct{}
	capturedTypeParams map[*ir.TypeParameter]struct{}

	// includes lists the builders whose closures flow into this one, in the
	// order they were first included.
	includes    []*builder
	includedSet map[*builder]struct{}

	frozen *Closure
}

func newBuilder(owner ir.Declaration) *builder {
	return &builder{
		owner:              owner,
		declaredValues:     make(map[*ir.Symbol]struct{}),
		capturedValues:     make(map[*ir.Symbol]struct{}),
		declaredTypeParams: make(map[*ir.TypeParameter]struct{}),
		capturedTypeParams: make(map[*ir.TypeParameter]struct{}),
		includedSet:        make(map[*builder]struct{}),
	}
}

func (b *builder) declareValue(vd ir.ValueDeclaration) {
	if vd != nil {
		b.declaredValues[vd.Symbol()] = struct{}{}
	}
}

func (b *builder) declareTypeParameter(tp *ir.TypeParameter) {
	b.declaredTypeParams[tp] = struct{}{}
}

func (b *builder) include(other *builder) {
	if other == b {
		return
	}

	if _, ok := b.includedSet[other]; !ok {
		b.includedSet[other] = struct{}{}
		b.includes = append(b.includes, other)
	}
}

func (b *builder) isExternalValue(s *ir.Symbol) bool {
	_, declared := b.declaredValues[s]
	return !declared
}

func (b *builder) isExternalTypeParameter(tp *ir.TypeParameter) bool {
	_, declared := b.declaredTypeParams[tp]
	return !declared
}

func (b *builder) seeValue(s *ir.Symbol) {
	if b.isExternalValue(s) {
		b.capturedValues[s] = struct{}{}
	}
}

func (b *builder) seeType(t ir.Type) {
	if t == nil {
		return
	}

	for _, tp := range ir.TypeParametersIn(t) {
		if b.isExternalTypeParameter(tp) {
			b.capturedTypeParams[tp] = struct{}{}
		}
	}
}

// absorb merges the captures of an included builder, keeping only what is
// still external to `b`.  It returns whether anything was added.
func (b *builder) absorb(other *builder) bool {
	changed := false

	addValue := func(s *ir.Symbol) {
		if _, ok := b.capturedValues[s]; !ok && b.isExternalValue(s) {
			b.capturedValues[s] = struct{}{}
			changed = true
		}
	}

	addTypeParam := func(tp *ir.TypeParameter) {
		if _, ok := b.capturedTypeParams[tp]; !ok && b.isExternalTypeParameter(tp) {
			b.capturedTypeParams[tp] = struct{}{}
			changed = true
		}
	}

	if other.frozen != nil {
		for _, s := range other.frozen.CapturedValues {
			addValue(s)
		}

		for _, tp := range other.frozen.CapturedTypeParameters {
			addTypeParam(tp)
		}
	} else {
		for s := range other.capturedValues {
			addValue(s)
		}

		for tp := range other.capturedTypeParams {
			addTypeParam(tp)
		}
	}

	return changed
}

func (b *builder) freeze() {
	c := &Closure{
		CapturedValues:         make([]*ir.Symbol, 0, len(b.capturedValues)),
		CapturedTypeParameters: make([]*ir.TypeParameter, 0, len(b.capturedTypeParams)),
	}

	for s := range b.capturedValues {
		c.CapturedValues = append(c.CapturedValues, s)
	}

	for tp := range b.capturedTypeParams {
		c.CapturedTypeParameters = append(c.CapturedTypeParameters, tp)
	}

	sort.Slice(c.CapturedValues, func(i, j int) bool {
		return c.CapturedValues[i].ID < c.CapturedValues[j].ID
	})

	sort.Slice(c.CapturedTypeParameters, func(i, j int) bool {
		return c.CapturedTypeParameters[i].Symbol().ID < c.CapturedTypeParameters[j].Symbol().ID
	})

	b.frozen = c
	b.capturedValues = nil
	b.capturedTypeParams = nil
}
