package ir

import "nativec/report"

// DeclarationParent is anything that can be the structural owner of a
// declaration: a file, a class or a function (for local declarations).
type DeclarationParent interface {
	Element

	isDeclarationParent()
}

// DeclarationContainer is a declaration parent holding an ordered list of
// member declarations: a file or a class.
type DeclarationContainer interface {
	DeclarationParent

	// Members returns a pointer to the member list so that transformations can
	// replace it.
	Members() *[]Declaration
}

// Declaration is implemented by all declaration nodes.
type Declaration interface {
	Statement

	// Symbol returns the symbol bound to this declaration.
	Symbol() *Symbol

	// DeclName returns the declared name.
	DeclName() string

	// Parent returns the structural owner of the declaration.
	Parent() DeclarationParent

	// SetParent updates the structural owner of the declaration.
	SetParent(parent DeclarationParent)
}

// DeclBase is the base struct for all declarations.
type DeclBase struct {
	ElementBase

	// Name is the declared name.
	Name string

	sym    *Symbol
	parent DeclarationParent
}

func (db *DeclBase) Symbol() *Symbol {
	return db.sym
}

func (db *DeclBase) DeclName() string {
	return db.Name
}

func (db *DeclBase) Parent() DeclarationParent {
	return db.parent
}

func (db *DeclBase) SetParent(parent DeclarationParent) {
	db.parent = parent
}

func (db *DeclBase) isStatement() {}

// -----------------------------------------------------------------------------

// ClassKind is the kind of class declaration.
type ClassKind int

// Enumeration of class kinds.
const (
	ClassKindClass ClassKind = iota
	ClassKindInterface
	ClassKindObject
	ClassKindAnnotation
)

// Class is a class, interface or object declaration.
type Class struct {
	DeclBase

	Kind ClassKind

	// IsInner indicates a non-static nested class: instances hold a reference
	// to an instance of the enclosing class.
	IsInner bool

	// IsFun indicates a `fun interface`: a SAM interface whose conversions need
	// value semantics.
	IsFun bool

	IsAbstract bool

	TypeParameters []*TypeParameter
	SuperTypes     []Type

	// ThisReceiver is the implicit `this` value of the class.
	ThisReceiver *ValueParameter

	Declarations []Declaration
}

func (c *Class) Members() *[]Declaration {
	return &c.Declarations
}

func (c *Class) isDeclarationParent() {}

// AddMember appends a member declaration and sets its parent.
func (c *Class) AddMember(d Declaration) {
	d.SetParent(c)
	c.Declarations = append(c.Declarations, d)
}

// DefaultType returns the type of `this` inside the class.
func (c *Class) DefaultType() Type {
	args := make([]Type, len(c.TypeParameters))
	for i, tp := range c.TypeParameters {
		args[i] = tp.DefaultType()
	}

	return &SimpleType{Sym: c.Symbol(), Args: args}
}

// Constructors returns the constructors declared in the class.
func (c *Class) Constructors() []*Function {
	var ctors []*Function
	for _, d := range c.Declarations {
		if f, ok := d.(*Function); ok && f.IsConstructor {
			ctors = append(ctors, f)
		}
	}

	return ctors
}

// PrimaryConstructor returns the primary constructor of the class or nil.
func (c *Class) PrimaryConstructor() *Function {
	for _, ctor := range c.Constructors() {
		if ctor.IsPrimary {
			return ctor
		}
	}

	return nil
}

// Functions returns the non-constructor member functions of the class,
// including property accessors.
func (c *Class) Functions() []*Function {
	var funcs []*Function
	for _, d := range c.Declarations {
		switch v := d.(type) {
		case *Function:
			if !v.IsConstructor {
				funcs = append(funcs, v)
			}
		case *Property:
			if v.Getter != nil {
				funcs = append(funcs, v.Getter)
			}

			if v.Setter != nil {
				funcs = append(funcs, v.Setter)
			}
		}
	}

	return funcs
}

// IsInterface returns whether the class is an interface.
func (c *Class) IsInterface() bool {
	return c.Kind == ClassKindInterface
}

// -----------------------------------------------------------------------------

// Function is a function, property accessor or constructor declaration.
type Function struct {
	DeclBase

	IsConstructor bool
	IsPrimary     bool

	IsSuspend  bool
	IsInline   bool
	IsAbstract bool
	IsExternal bool

	TypeParameters []*TypeParameter

	// DispatchReceiver is the `this` parameter of member functions.
	DispatchReceiver *ValueParameter

	// ExtensionReceiver is the receiver parameter of extension functions.
	ExtensionReceiver *ValueParameter

	Params []*ValueParameter

	ReturnType Type

	// Body is nil for abstract and external functions.
	Body *Block

	// Overrides lists the symbols of the functions this function overrides.
	Overrides []*Symbol

	// CorrespondingProperty is set on property accessors.
	CorrespondingProperty *Symbol
}

func (f *Function) isDeclarationParent() {}

// AddParam appends a value parameter, setting its index and parent.
func (f *Function) AddParam(vp *ValueParameter) {
	vp.Index = len(f.Params)
	vp.SetParent(f)
	f.Params = append(f.Params, vp)
}

// ReindexParams recomputes the parameter indices after the parameter list was
// restructured.
func (f *Function) ReindexParams() {
	for i, vp := range f.Params {
		vp.Index = i
	}
}

// ConstructedClass returns the class a constructor constructs.
func (f *Function) ConstructedClass() *Class {
	if !f.IsConstructor {
		report.ICE("%s is not a constructor", Describe(f))
	}

	c, ok := f.Parent().(*Class)
	if !ok {
		report.ICE("constructor %s has no class parent", Describe(f))
	}

	return c
}

// HasDefaultValues returns whether any value parameter has a default value.
func (f *Function) HasDefaultValues() bool {
	for _, vp := range f.Params {
		if vp.DefaultValue != nil {
			return true
		}
	}

	return false
}

// AllParams returns the receivers followed by the value parameters.
func (f *Function) AllParams() []*ValueParameter {
	var params []*ValueParameter
	if f.DispatchReceiver != nil {
		params = append(params, f.DispatchReceiver)
	}

	if f.ExtensionReceiver != nil {
		params = append(params, f.ExtensionReceiver)
	}

	return append(params, f.Params...)
}

// -----------------------------------------------------------------------------

// Property is a property declaration: an optional backing field plus
// accessors.  The field and accessors share the property's parent.
type Property struct {
	DeclBase

	IsVar      bool
	IsLateinit bool

	BackingField *Field
	Getter       *Function
	Setter       *Function
}

// Field is a storage slot of a class or file.
type Field struct {
	DeclBase

	Type        Type
	Initializer Expr

	IsFinal  bool
	IsStatic bool

	// CorrespondingProperty is set on backing fields.
	CorrespondingProperty *Symbol
}

// TypeParameter is a type parameter of a class or function.
type TypeParameter struct {
	DeclBase

	Index      int
	SuperTypes []Type
}

// DefaultType returns the type referring to the type parameter.
func (tp *TypeParameter) DefaultType() Type {
	return &SimpleType{Sym: tp.Symbol()}
}

// -----------------------------------------------------------------------------

// ValueDeclaration is a declaration of a value: a parameter or variable.
type ValueDeclaration interface {
	Declaration

	// ValueType returns the declared type of the value.
	ValueType() Type

	// IsMutable returns whether the value may be assigned after declaration.
	IsMutable() bool
}

// ValueParameter is a value parameter, receiver parameter or class `this`
// receiver.
type ValueParameter struct {
	DeclBase

	Type  Type
	Index int

	// DefaultValue is the default argument expression or nil.
	DefaultValue Expr

	// VarargElementType is set on vararg parameters.
	VarargElementType Type

	IsCrossinline bool
	IsNoinline    bool

	// IsAssignable marks parameters that lowering rewrites by assignment, eg.
	// inside default-argument stubs.
	IsAssignable bool
}

func (vp *ValueParameter) ValueType() Type {
	return vp.Type
}

func (vp *ValueParameter) IsMutable() bool {
	return vp.IsAssignable
}

// Variable is a local variable.
type Variable struct {
	DeclBase

	Type        Type
	IsVar       bool
	IsLateinit  bool
	Initializer Expr
}

func (v *Variable) ValueType() Type {
	return v.Type
}

func (v *Variable) IsMutable() bool {
	return v.IsVar
}

// -----------------------------------------------------------------------------

// File is a single source file: a container of top-level declarations.
type File struct {
	ElementBase

	// Name is the file name and Path its path as given to the compiler.
	Name, Path string

	// FqName is the fully qualified package name of the file.
	FqName string

	// Library is the name of the library the file belongs to.
	Library string

	Declarations []Declaration

	Module *Module
}

func (f *File) Members() *[]Declaration {
	return &f.Declarations
}

func (f *File) isDeclarationParent() {}

// AddMember appends a top-level declaration and sets its parent.
func (f *File) AddMember(d Declaration) {
	d.SetParent(f)
	f.Declarations = append(f.Declarations, d)
}

// Module is a set of files compiled together.
type Module struct {
	Name  string
	Files []*File
}

// AddFile adds a file to the module.
func (m *Module) AddFile(f *File) {
	f.Module = m
	m.Files = append(m.Files, f)
}
