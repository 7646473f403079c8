package ir

import (
	"fmt"

	"nativec/common"
)

// Builtins holds the builtin classes and intrinsic functions that lowering
// passes synthesize calls to.  They are ordinary declarations living in a
// synthetic file of the runtime library.  One instance exists per compilation.
type Builtins struct {
	// File is the synthetic file holding all builtin declarations.
	File *File

	Any, Unit, Nothing, Boolean, Int, Long, String, Throwable *Class

	AnyEquals, AnyHashCode, AnyToString *Function

	// Array<T>: constructor(size, init), get, set, size and the top-level
	// `arrayOfNulls<T>(size)`.
	Array                                       *Class
	ArrayInitConstructor                        *Function
	ArrayGet, ArraySet, ArraySize, ArrayOfNulls *Function

	StringBuilder                                                 *Class
	StringBuilderCtor, StringBuilderAppend, StringBuilderToString *Function
	StringPlus                                                    *Function

	// ObjectRef<T> is the box used for shared variables.
	ObjectRef        *Class
	ObjectRefCtor    *Function
	ObjectRefElement *Field

	// Continuation<T> and the base class of suspend state machines.
	Continuation         *Class
	BaseContinuationImpl *Class
	BaseContinuationCtor *Function
	InvokeSuspend        *Function

	// Intrinsic operators.
	IntAnd, IntXor, IntPlus, IntLess *Function
	EqEq, Not                *Function
	IdentityHashCode         *Function

	// ThrowUninitialized throws the "lateinit property has not been
	// initialized" failure.
	ThrowUninitialized *Function

	// IsInitialized is the `isInitialized` check on a property reference.
	IsInitialized *Function

	factory   *Factory
	functions map[int]*Class
}

// NewBuiltins creates the builtin declarations using the given factory.
func NewBuiltins(f *Factory) *Builtins {
	b := &Builtins{
		File:      f.BuildFile("builtins.kt", "kotlin", common.RuntimeLibraryName),
		factory:   f,
		functions: make(map[int]*Class),
	}

	newClass := func(name string, kind ClassKind) *Class {
		c := f.BuildClass(name, kind, OriginDefined)
		b.File.AddMember(c)
		return c
	}

	b.Any = newClass("Any", ClassKindClass)
	b.Unit = newClass("Unit", ClassKindObject)
	b.Nothing = newClass("Nothing", ClassKindClass)
	b.Boolean = newClass("Boolean", ClassKindClass)
	b.Int = newClass("Int", ClassKindClass)
	b.Long = newClass("Long", ClassKindClass)
	b.String = newClass("String", ClassKindClass)
	b.Throwable = newClass("Throwable", ClassKindClass)

	// Any members.
	b.AnyEquals = b.member(b.Any, "equals", b.BooleanType(), b.NullableAnyType())
	b.AnyHashCode = b.member(b.Any, "hashCode", b.IntType())
	b.AnyToString = b.member(b.Any, "toString", b.StringType())
	b.StringPlus = b.member(b.String, "plus", b.StringType(), b.NullableAnyType())

	// Array<T>.
	b.Array = newClass("Array", ClassKindClass)
	arrayT := f.AddTypeParameter(b.Array, "T")

	b.ArrayInitConstructor = f.BuildConstructor(b.Array, true, OriginDefined)
	b.ArrayInitConstructor.IsInline = true
	f.AddValueParameter(b.ArrayInitConstructor, "size", b.IntType())
	f.AddValueParameter(b.ArrayInitConstructor, "init", b.FunctionType([]Type{b.IntType()}, arrayT.DefaultType()))
	b.Array.AddMember(b.ArrayInitConstructor)

	b.ArrayGet = b.member(b.Array, "get", arrayT.DefaultType(), b.IntType())
	b.ArraySet = b.member(b.Array, "set", b.UnitType(), b.IntType(), arrayT.DefaultType())
	b.ArraySize = b.member(b.Array, "<get-size>", b.IntType())

	b.ArrayOfNulls = f.BuildFun("arrayOfNulls", nil, OriginDefined)
	nullsT := f.AddTypeParameter(b.ArrayOfNulls, "T")
	b.ArrayOfNulls.ReturnType = NewType(b.Array.Symbol(), MakeNullable(nullsT.DefaultType()))
	f.AddValueParameter(b.ArrayOfNulls, "size", b.IntType())
	b.intrinsic(b.ArrayOfNulls)

	// StringBuilder.
	b.StringBuilder = newClass("StringBuilder", ClassKindClass)
	b.StringBuilderCtor = f.BuildConstructor(b.StringBuilder, true, OriginDefined)
	b.StringBuilder.AddMember(b.StringBuilderCtor)
	b.StringBuilderAppend = b.member(b.StringBuilder, "append", b.StringBuilder.DefaultType(), b.NullableAnyType())
	b.StringBuilderToString = b.member(b.StringBuilder, "toString", b.StringType())

	// ObjectRef<T>.
	b.ObjectRef = newClass("ObjectRef", ClassKindClass)
	refT := f.AddTypeParameter(b.ObjectRef, "T")
	b.ObjectRefCtor = f.BuildConstructor(b.ObjectRef, true, OriginDefined)
	b.ObjectRef.AddMember(b.ObjectRefCtor)
	b.ObjectRefElement = f.AddField(b.ObjectRef, "element", refT.DefaultType(), OriginDefined)

	// Continuations.
	b.Continuation = newClass("Continuation", ClassKindInterface)
	f.AddTypeParameter(b.Continuation, "T")

	b.BaseContinuationImpl = newClass("BaseContinuationImpl", ClassKindClass)
	b.BaseContinuationImpl.IsAbstract = true
	b.BaseContinuationImpl.SuperTypes = []Type{NewType(b.Continuation.Symbol(), b.NullableAnyType())}
	b.BaseContinuationCtor = f.BuildConstructor(b.BaseContinuationImpl, true, OriginDefined)
	f.AddValueParameter(b.BaseContinuationCtor, "completion", b.ContinuationType(b.NullableAnyType()))
	b.BaseContinuationImpl.AddMember(b.BaseContinuationCtor)
	b.InvokeSuspend = b.member(b.BaseContinuationImpl, "invokeSuspend", b.NullableAnyType(), b.NullableAnyType())
	b.InvokeSuspend.IsAbstract = true
	b.InvokeSuspend.Body = nil

	// Intrinsics.
	b.IntAnd = b.topLevel("intAnd", b.IntType(), b.IntType(), b.IntType())
	b.IntXor = b.topLevel("intXor", b.IntType(), b.IntType(), b.IntType())
	b.IntPlus = b.topLevel("intPlus", b.IntType(), b.IntType(), b.IntType())
	b.IntLess = b.topLevel("intLess", b.BooleanType(), b.IntType(), b.IntType())
	b.EqEq = b.topLevel("EQEQ", b.BooleanType(), b.NullableAnyType(), b.NullableAnyType())
	b.Not = b.topLevel("not", b.BooleanType(), b.BooleanType())
	b.IdentityHashCode = b.topLevel("identityHashCode", b.IntType(), b.NullableAnyType())
	b.ThrowUninitialized = b.topLevel("throwUninitializedPropertyAccessException", b.NothingType(), b.StringType())

	b.IsInitialized = f.BuildFun("isInitialized", b.BooleanType(), OriginDefined)
	b.IsInitialized.ExtensionReceiver = f.BuildValueParameter("<this>", b.AnyType(), -1)
	b.intrinsic(b.IsInitialized)

	PatchDeclarationParents(b.File, nil)
	return b
}

// member declares an external member function of a builtin class.
func (b *Builtins) member(c *Class, name string, ret Type, params ...Type) *Function {
	fn := b.factory.BuildMemberFun(c, name, ret, OriginDefined)
	fn.IsExternal = true

	for i, pt := range params {
		b.factory.AddValueParameter(fn, fmt.Sprintf("p%d", i), pt)
	}

	c.AddMember(fn)
	return fn
}

// topLevel declares an external top-level intrinsic.
func (b *Builtins) topLevel(name string, ret Type, params ...Type) *Function {
	fn := b.factory.BuildFun(name, ret, OriginDefined)

	for i, pt := range params {
		b.factory.AddValueParameter(fn, fmt.Sprintf("p%d", i), pt)
	}

	b.intrinsic(fn)
	return fn
}

// intrinsic marks a function external and adds it to the builtins file.
func (b *Builtins) intrinsic(fn *Function) {
	fn.IsExternal = true
	b.File.AddMember(fn)
}

// -----------------------------------------------------------------------------

func (b *Builtins) AnyType() Type         { return b.Any.DefaultType() }
func (b *Builtins) NullableAnyType() Type { return MakeNullable(b.Any.DefaultType()) }
func (b *Builtins) UnitType() Type        { return b.Unit.DefaultType() }
func (b *Builtins) NothingType() Type     { return b.Nothing.DefaultType() }
func (b *Builtins) BooleanType() Type     { return b.Boolean.DefaultType() }
func (b *Builtins) IntType() Type         { return b.Int.DefaultType() }
func (b *Builtins) LongType() Type        { return b.Long.DefaultType() }
func (b *Builtins) StringType() Type      { return b.String.DefaultType() }
func (b *Builtins) ThrowableType() Type   { return b.Throwable.DefaultType() }

// ArrayType returns `Array<elem>`.
func (b *Builtins) ArrayType(elem Type) Type {
	return NewType(b.Array.Symbol(), elem)
}

// ContinuationType returns `Continuation<t>`.
func (b *Builtins) ContinuationType(t Type) Type {
	return NewType(b.Continuation.Symbol(), t)
}

// ObjectRefType returns `ObjectRef<t>`.
func (b *Builtins) ObjectRefType(t Type) Type {
	return NewType(b.ObjectRef.Symbol(), t)
}

// FunctionClass returns the `FunctionN` interface for the given arity.  The
// interfaces are created on demand.
func (b *Builtins) FunctionClass(arity int) *Class {
	if c, ok := b.functions[arity]; ok {
		return c
	}

	f := b.factory
	c := f.BuildClass(fmt.Sprintf("Function%d", arity), ClassKindInterface, OriginDefined)
	b.File.AddMember(c)

	params := make([]Type, arity)
	for i := range params {
		params[i] = f.AddTypeParameter(c, fmt.Sprintf("P%d", i+1)).DefaultType()
	}

	ret := f.AddTypeParameter(c, "R").DefaultType()

	invoke := f.BuildMemberFun(c, "invoke", ret, OriginDefined)
	invoke.IsAbstract = true
	for i, pt := range params {
		f.AddValueParameter(invoke, fmt.Sprintf("p%d", i+1), pt)
	}
	c.AddMember(invoke)

	PatchDeclarationParents(c, b.File)
	b.functions[arity] = c
	return c
}

// FunctionType returns the type `FunctionN<params..., ret>`.
func (b *Builtins) FunctionType(params []Type, ret Type) Type {
	args := append(append([]Type{}, params...), ret)
	return NewType(b.FunctionClass(len(params)).Symbol(), args...)
}

// FunctionArity returns the arity of a function type or -1 if the type is not
// a function type.
func (b *Builtins) FunctionArity(t Type) int {
	c := ClassOf(t)
	if c == nil {
		return -1
	}

	for arity, fc := range b.functions {
		if fc == c {
			return arity
		}
	}

	return -1
}

// FunctionInvoke returns the `invoke` method of the function interface of the
// given arity.
func (b *Builtins) FunctionInvoke(arity int) *Function {
	for _, fn := range b.FunctionClass(arity).Functions() {
		if fn.Name == "invoke" {
			return fn
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// BoolConst creates a boolean constant.
func (b *Builtins) BoolConst(v bool) *Const {
	return NewConst(ConstBoolean, v, b.BooleanType())
}

// IntConst creates an Int constant.
func (b *Builtins) IntConst(v int32) *Const {
	return NewConst(ConstInt, v, b.IntType())
}

// StringConst creates a String constant.
func (b *Builtins) StringConst(v string) *Const {
	return NewConst(ConstString, v, b.StringType())
}

// UnitConst creates the Unit instance.
func (b *Builtins) UnitConst() *Const {
	return NewConst(ConstUnit, nil, b.UnitType())
}

// NullConst creates a `null` constant of the given nullable type.
func (b *Builtins) NullConst(t Type) *Const {
	return NewConst(ConstNull, nil, MakeNullable(t))
}

// DefaultValueFor returns the placeholder passed for an omitted argument of
// the given type: zero for primitives and `null` for everything else.
func (b *Builtins) DefaultValueFor(t Type) *Const {
	if !t.IsNullable() {
		switch ClassOf(t) {
		case b.Int:
			return b.IntConst(0)
		case b.Long:
			return NewConst(ConstLong, int64(0), b.LongType())
		case b.Boolean:
			return b.BoolConst(false)
		}
	}

	return b.NullConst(t)
}

// IsBuiltin returns whether the declaration belongs to the builtins.
func (b *Builtins) IsBuiltin(d Declaration) bool {
	return FileOf(d) == b.File
}
