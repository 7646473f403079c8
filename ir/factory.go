package ir

import "nativec/report"

// Factory creates declarations.  Every declaration it builds is fully linked
// (its symbol is bound, receivers and `this` parameters exist) but has no
// parent: the caller must place it into a container and set the parent.
type Factory struct {
	nextID int
}

// NewFactory creates a new factory.  Symbol ids are allocated sequentially so
// independent compilations produce identical ids.
func NewFactory() *Factory {
	return &Factory{}
}

// NewSymbol creates a new unbound symbol.
func (f *Factory) NewSymbol(kind SymbolKind) *Symbol {
	f.nextID++
	return &Symbol{ID: f.nextID, Kind: kind}
}

// newDeclBase creates the declaration base for a synthesized declaration.
func (f *Factory) newDeclBase(name string, kind SymbolKind, origin Origin) DeclBase {
	return DeclBase{
		ElementBase: synthesized(origin),
		Name:        name,
		sym:         f.NewSymbol(kind),
	}
}

// BuildFile creates a new file.
func (f *Factory) BuildFile(name, fqName, library string) *File {
	return &File{
		ElementBase: synthesized(OriginDefined),
		Name:        name,
		Path:        name,
		FqName:      fqName,
		Library:     library,
	}
}

// BuildClass creates a new class along with its `this` receiver.
func (f *Factory) BuildClass(name string, kind ClassKind, origin Origin) *Class {
	c := &Class{DeclBase: f.newDeclBase(name, ClassSymbol, origin), Kind: kind}
	c.sym.Bind(c)

	c.ThisReceiver = f.BuildValueParameter("<this>", c.DefaultType(), -1)
	c.ThisReceiver.SetParent(c)
	return c
}

// BuildFun creates a new function with no parameters and no body.
func (f *Factory) BuildFun(name string, returnType Type, origin Origin) *Function {
	fn := &Function{DeclBase: f.newDeclBase(name, FunctionSymbol, origin), ReturnType: returnType}
	fn.sym.Bind(fn)
	return fn
}

// BuildMemberFun creates a new function with a dispatch receiver of the given
// class.  The function is not added to the class.
func (f *Factory) BuildMemberFun(class *Class, name string, returnType Type, origin Origin) *Function {
	fn := f.BuildFun(name, returnType, origin)
	fn.DispatchReceiver = f.BuildValueParameter("<this>", class.DefaultType(), -1)
	fn.DispatchReceiver.SetParent(fn)
	return fn
}

// BuildConstructor creates a new constructor of the given class.  Its return
// type is the default type of the class.  The constructor is not added to the
// class.
func (f *Factory) BuildConstructor(class *Class, primary bool, origin Origin) *Function {
	ctor := f.BuildFun("<init>", class.DefaultType(), origin)
	ctor.IsConstructor = true
	ctor.IsPrimary = primary
	return ctor
}

// BuildField creates a new field.
func (f *Factory) BuildField(name string, t Type, origin Origin) *Field {
	fd := &Field{DeclBase: f.newDeclBase(name, FieldSymbol, origin), Type: t}
	fd.sym.Bind(fd)
	return fd
}

// BuildProperty creates a new property without field or accessors.
func (f *Factory) BuildProperty(name string, isVar bool, origin Origin) *Property {
	p := &Property{DeclBase: f.newDeclBase(name, PropertySymbol, origin), IsVar: isVar}
	p.sym.Bind(p)
	return p
}

// BuildTypeParameter creates a new type parameter.
func (f *Factory) BuildTypeParameter(name string, index int, superTypes ...Type) *TypeParameter {
	tp := &TypeParameter{
		DeclBase:   f.newDeclBase(name, TypeParameterSymbol, OriginDefined),
		Index:      index,
		SuperTypes: superTypes,
	}

	tp.sym.Bind(tp)
	return tp
}

// BuildValueParameter creates a new value parameter.
func (f *Factory) BuildValueParameter(name string, t Type, index int) *ValueParameter {
	vp := &ValueParameter{DeclBase: f.newDeclBase(name, ValueSymbol, OriginDefined), Type: t, Index: index}
	vp.sym.Bind(vp)
	return vp
}

// BuildVariable creates a new local variable.
func (f *Factory) BuildVariable(name string, t Type, isVar bool, initializer Expr) *Variable {
	v := &Variable{
		DeclBase:    f.newDeclBase(name, ValueSymbol, OriginDefined),
		Type:        t,
		IsVar:       isVar,
		Initializer: initializer,
	}

	v.sym.Bind(v)
	return v
}

// -----------------------------------------------------------------------------
// The following helpers combine construction and placement for the shapes the
// frontend and lowering passes build most often.

// AddValueParameter builds a value parameter and appends it to the function.
func (f *Factory) AddValueParameter(fn *Function, name string, t Type) *ValueParameter {
	vp := f.BuildValueParameter(name, t, len(fn.Params))
	fn.AddParam(vp)
	return vp
}

// AddTypeParameter builds a type parameter and appends it to a function or
// class.
func (f *Factory) AddTypeParameter(owner DeclarationParent, name string, superTypes ...Type) *TypeParameter {
	switch v := owner.(type) {
	case *Function:
		tp := f.BuildTypeParameter(name, len(v.TypeParameters), superTypes...)
		tp.SetParent(v)
		v.TypeParameters = append(v.TypeParameters, tp)
		return tp
	case *Class:
		tp := f.BuildTypeParameter(name, len(v.TypeParameters), superTypes...)
		tp.SetParent(v)
		v.TypeParameters = append(v.TypeParameters, tp)

		// The default type of the class changed: refresh the receiver type.
		v.ThisReceiver.Type = v.DefaultType()
		return tp
	}

	report.ICE("type parameters cannot be added to %T", owner)
	return nil
}

// AddField builds a field and adds it to the class.
func (f *Factory) AddField(class *Class, name string, t Type, origin Origin) *Field {
	fd := f.BuildField(name, t, origin)
	class.AddMember(fd)
	return fd
}

// AddProperty builds a property with a backing field and a default getter
// (and setter for `var` properties) and adds it to the container.  The
// accessors read and write the backing field.
func (f *Factory) AddProperty(container DeclarationContainer, name string, t Type, isVar bool, b *Builtins) *Property {
	p := f.BuildProperty(name, isVar, OriginDefined)

	p.BackingField = f.BuildField(name, t, OriginDefined)
	p.BackingField.CorrespondingProperty = p.Symbol()
	p.BackingField.IsFinal = !isVar

	class, isMember := container.(*Class)
	if !isMember {
		p.BackingField.IsStatic = true
	}

	newAccessor := func(accName string, retType Type) *Function {
		var acc *Function
		if isMember {
			acc = f.BuildMemberFun(class, accName, retType, OriginDefined)
		} else {
			acc = f.BuildFun(accName, retType, OriginDefined)
		}

		acc.CorrespondingProperty = p.Symbol()
		return acc
	}

	receiverOf := func(acc *Function) Expr {
		if acc.DispatchReceiver == nil {
			return nil
		}

		return NewGetValue(acc.DispatchReceiver)
	}

	p.Getter = newAccessor("<get-"+name+">", t)
	p.Getter.Body = NewBlock(b.NothingType(),
		NewReturn(p.Getter, NewGetField(p.BackingField, receiverOf(p.Getter)), b.NothingType()),
	)

	if isVar {
		p.Setter = newAccessor("<set-"+name+">", b.UnitType())
		value := f.AddValueParameter(p.Setter, "<set-?>", t)
		p.Setter.Body = NewBlock(b.UnitType(),
			NewSetField(p.BackingField, receiverOf(p.Setter), NewGetValue(value), b.UnitType()),
		)
	}

	switch v := container.(type) {
	case *Class:
		v.AddMember(p)
	case *File:
		v.AddMember(p)
	}

	PatchDeclarationParents(p, container)
	return p
}
