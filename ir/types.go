package ir

import "strings"

// Type is the type of an expression or declaration.
type Type interface {
	// Classifier returns the class or type parameter symbol of the type.
	Classifier() *Symbol

	// Arguments returns the type arguments.
	Arguments() []Type

	// IsNullable returns whether the type admits `null`.
	IsNullable() bool

	String() string
}

// SimpleType is a classifier applied to type arguments.
type SimpleType struct {
	Sym      *Symbol
	Args     []Type
	Nullable bool
}

func (st *SimpleType) Classifier() *Symbol {
	return st.Sym
}

func (st *SimpleType) Arguments() []Type {
	return st.Args
}

func (st *SimpleType) IsNullable() bool {
	return st.Nullable
}

func (st *SimpleType) String() string {
	sb := strings.Builder{}

	if st.Sym.IsBound() {
		sb.WriteString(st.Sym.Owner().DeclName())
	} else {
		sb.WriteString(st.Sym.String())
	}

	if len(st.Args) > 0 {
		sb.WriteRune('<')
		for i, arg := range st.Args {
			if i > 0 {
				sb.WriteString(", ")
			}

			sb.WriteString(arg.String())
		}
		sb.WriteRune('>')
	}

	if st.Nullable {
		sb.WriteRune('?')
	}

	return sb.String()
}

// NewType creates a new simple type.
func NewType(classifier *Symbol, args ...Type) *SimpleType {
	return &SimpleType{Sym: classifier, Args: args}
}

// -----------------------------------------------------------------------------

// MakeNullable returns the nullable version of a type.
func MakeNullable(t Type) Type {
	if t.IsNullable() {
		return t
	}

	return &SimpleType{Sym: t.Classifier(), Args: t.Arguments(), Nullable: true}
}

// MakeNotNull returns the non-nullable version of a type.
func MakeNotNull(t Type) Type {
	if !t.IsNullable() {
		return t
	}

	return &SimpleType{Sym: t.Classifier(), Args: t.Arguments()}
}

// ClassOf returns the class of a type or nil if the type is a type parameter.
func ClassOf(t Type) *Class {
	if t.Classifier().Kind != ClassSymbol {
		return nil
	}

	return t.Classifier().Class()
}

// TypeParameterOf returns the type parameter of a type or nil if the type is a
// class type.
func TypeParameterOf(t Type) *TypeParameter {
	if t.Classifier().Kind != TypeParameterSymbol {
		return nil
	}

	return t.Classifier().TypeParameter()
}

// Erase returns the erased class of a type: type parameters erase to their
// first upper bound (or `fallback` when they have none).
func Erase(t Type, fallback *Class) *Class {
	for i := 0; i < 64; i++ {
		if c := ClassOf(t); c != nil {
			return c
		}

		tp := TypeParameterOf(t)
		if len(tp.SuperTypes) == 0 {
			return fallback
		}

		t = tp.SuperTypes[0]
	}

	return fallback
}

// TypesEqual returns whether two types are structurally equal.
func TypesEqual(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}

	if a.Classifier() != b.Classifier() || a.IsNullable() != b.IsNullable() {
		return false
	}

	aArgs, bArgs := a.Arguments(), b.Arguments()
	if len(aArgs) != len(bArgs) {
		return false
	}

	for i := range aArgs {
		if !TypesEqual(aArgs[i], bArgs[i]) {
			return false
		}
	}

	return true
}

// TypeParametersIn returns every type parameter mentioned by a type.
func TypeParametersIn(t Type) []*TypeParameter {
	var tps []*TypeParameter

	var visit func(Type)
	visit = func(t Type) {
		if tp := TypeParameterOf(t); tp != nil {
			tps = append(tps, tp)
		}

		for _, arg := range t.Arguments() {
			visit(arg)
		}
	}

	visit(t)
	return tps
}

// SubstituteTypes replaces type parameters in a type according to `subst`.
func SubstituteTypes(t Type, subst map[*TypeParameter]Type) Type {
	if len(subst) == 0 {
		return t
	}

	if tp := TypeParameterOf(t); tp != nil {
		if r, ok := subst[tp]; ok {
			if t.IsNullable() {
				return MakeNullable(r)
			}

			return r
		}

		return t
	}

	if len(t.Arguments()) == 0 {
		return t
	}

	args := make([]Type, len(t.Arguments()))
	for i, arg := range t.Arguments() {
		args[i] = SubstituteTypes(arg, subst)
	}

	return &SimpleType{Sym: t.Classifier(), Args: args, Nullable: t.IsNullable()}
}
