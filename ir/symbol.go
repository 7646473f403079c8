package ir

import (
	"fmt"

	"nativec/report"
)

// SymbolKind is the kind of declaration a symbol refers to.
type SymbolKind int

// Enumeration of symbol kinds.
const (
	ClassSymbol SymbolKind = iota
	FunctionSymbol
	FieldSymbol
	PropertySymbol
	ValueSymbol
	TypeParameterSymbol
)

func (sk SymbolKind) String() string {
	switch sk {
	case ClassSymbol:
		return "class"
	case FunctionSymbol:
		return "function"
	case FieldSymbol:
		return "field"
	case PropertySymbol:
		return "property"
	case ValueSymbol:
		return "value"
	default:
		return "type parameter"
	}
}

// Symbol is a stable handle to a declaration.  Expressions refer to
// declarations only through symbols.  A symbol is bound exactly once to its
// owner; redirecting it afterwards requires an explicit call to Rebind.
type Symbol struct {
	// ID is unique within the factory that created the symbol.  It gives
	// symbols a deterministic order.
	ID int

	// Kind is the kind of declaration this symbol can be bound to.
	Kind SymbolKind

	owner Declaration
}

// IsBound returns whether the symbol has an owner.
func (s *Symbol) IsBound() bool {
	return s.owner != nil
}

// Owner returns the declaration the symbol is bound to.  Resolving an unbound
// symbol is an internal error.
func (s *Symbol) Owner() Declaration {
	if s.owner == nil {
		report.ICE("unbound %s symbol #%d", s.Kind, s.ID)
	}

	return s.owner
}

// Bind binds the symbol to its owner.
func (s *Symbol) Bind(owner Declaration) {
	if s.owner != nil {
		report.ICE("%s symbol #%d is already bound to %s", s.Kind, s.ID, Describe(s.owner))
	}

	s.owner = owner
}

// Rebind redirects the symbol to a different declaration of the same kind.
// Every reference using the symbol will now resolve to the new owner.
func (s *Symbol) Rebind(owner Declaration) {
	if owner.Symbol().Kind != s.Kind {
		report.ICE("cannot rebind %s symbol #%d to a %s", s.Kind, s.ID, owner.Symbol().Kind)
	}

	s.owner = owner
}

func (s *Symbol) String() string {
	if s.owner == nil {
		return fmt.Sprintf("<unbound %s #%d>", s.Kind, s.ID)
	}

	return fmt.Sprintf("%s#%d", s.owner.DeclName(), s.ID)
}

// -----------------------------------------------------------------------------
// Typed views of a symbol's owner.  Asking for the wrong kind is an internal
// error: the caller has a malformed tree.

// Class returns the owner as a class.
func (s *Symbol) Class() *Class {
	c, ok := s.Owner().(*Class)
	if !ok {
		report.ICE("symbol %s is not a class symbol", s)
	}

	return c
}

// Function returns the owner as a function.
func (s *Symbol) Function() *Function {
	f, ok := s.Owner().(*Function)
	if !ok {
		report.ICE("symbol %s is not a function symbol", s)
	}

	return f
}

// Field returns the owner as a field.
func (s *Symbol) Field() *Field {
	f, ok := s.Owner().(*Field)
	if !ok {
		report.ICE("symbol %s is not a field symbol", s)
	}

	return f
}

// Property returns the owner as a property.
func (s *Symbol) Property() *Property {
	p, ok := s.Owner().(*Property)
	if !ok {
		report.ICE("symbol %s is not a property symbol", s)
	}

	return p
}

// Value returns the owner as a value declaration.
func (s *Symbol) Value() ValueDeclaration {
	v, ok := s.Owner().(ValueDeclaration)
	if !ok {
		report.ICE("symbol %s is not a value symbol", s)
	}

	return v
}

// TypeParameter returns the owner as a type parameter.
func (s *Symbol) TypeParameter() *TypeParameter {
	tp, ok := s.Owner().(*TypeParameter)
	if !ok {
		report.ICE("symbol %s is not a type parameter symbol", s)
	}

	return tp
}
