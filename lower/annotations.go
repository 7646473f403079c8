package lower

import (
	"unicode/utf16"

	"nativec/ir"
)

// AnnotationImplementationLowering replaces instantiations of annotation
// classes by instances of a synthesized implementation class.  The
// implementation stores the arguments in fields, overrides the property
// getters of the annotation and compares by annotation type and values.
// Implementations are shared by all the instantiations of an annotation
// within a file.
type AnnotationImplementationLowering struct {
	ctx *Context

	impls map[*ir.Class]*ir.Class
	order []*ir.Class
}

// annotationValue is one argument of an annotation as seen by its
// implementation.
type annotationValue struct {
	name   string
	field  *ir.Field
	getter *ir.Function
}

func (al *AnnotationImplementationLowering) Lower(file *ir.File) {
	al.impls = make(map[*ir.Class]*ir.Class)
	al.order = nil

	var t ir.Transformer
	t = ir.TransformerFunc(func(e ir.Element) ir.Element {
		ir.TransformChildren(e, t)

		if call, ok := e.(*ir.ConstructorCall); ok {
			return al.lowerCall(call)
		}

		return e
	})

	ir.TransformChildren(file, t)

	for _, impl := range al.order {
		addMember(file, impl)
		ir.PatchDeclarationParents(impl, file)
		al.ctx.observe(impl)
	}
}

func (al *AnnotationImplementationLowering) lowerCall(call *ir.ConstructorCall) ir.Expr {
	ctor := call.Sym.Function()
	annotation := ctor.ConstructedClass()
	if annotation == nil || annotation.Kind != ir.ClassKindAnnotation {
		return call
	}

	if !ctor.IsPrimary {
		icePhase("AnnotationImplementation", annotation, "annotation instantiated through a secondary constructor")
	}

	impl, ok := al.impls[annotation]
	if !ok {
		impl = al.buildImplementation(annotation)
		al.impls[annotation] = impl
		al.order = append(al.order, impl)
	}

	lowered := ir.NewConstructorCall(impl.PrimaryConstructor(), call.Args...)
	lowered.SetSpan(call.Span())
	lowered.SetType(call.Type())
	return lowered
}

func (al *AnnotationImplementationLowering) buildImplementation(annotation *ir.Class) *ir.Class {
	ctx := al.ctx
	f := ctx.Factory

	source := annotation.PrimaryConstructor()
	impl := f.BuildClass(annotation.Name+"$Impl", ir.ClassKindClass, ir.OriginAnnotationImplementation)
	impl.SuperTypes = []ir.Type{annotation.DefaultType()}

	ctor := f.BuildConstructor(impl, true, ir.OriginAnnotationImplementation)
	ctor.Body = ir.NewBlock(ctx.unit())

	values := make([]annotationValue, len(source.Params))
	for i, vp := range source.Params {
		field := f.AddField(impl, vp.Name, vp.Type, ir.OriginAnnotationImplementation)
		field.IsFinal = true

		param := f.AddValueParameter(ctor, vp.Name, vp.Type)
		if vp.DefaultValue != nil {
			param.DefaultValue = ir.DeepCopy(f, vp.DefaultValue)
		}

		ctor.Body.Statements = append(ctor.Body.Statements,
			ir.NewSetField(field, ir.NewGetValue(impl.ThisReceiver), ir.NewGetValue(param), ctx.unit()),
		)

		values[i] = annotationValue{name: vp.Name, field: field, getter: annotationGetter(annotation, vp.Name)}
	}

	impl.AddMember(ctor)

	for _, v := range values {
		if v.getter != nil {
			impl.AddMember(al.buildGetter(impl, v))
		}
	}

	impl.AddMember(al.buildEquals(annotation, impl, values))
	impl.AddMember(al.buildHashCode(impl, values))
	impl.AddMember(al.buildToString(annotation, impl, values))
	return impl
}

// annotationGetter returns the getter of the annotation property `name`.
func annotationGetter(annotation *ir.Class, name string) *ir.Function {
	for _, d := range annotation.Declarations {
		if p, ok := d.(*ir.Property); ok && p.Name == name {
			return p.Getter
		}
	}

	return nil
}

func (al *AnnotationImplementationLowering) buildGetter(impl *ir.Class, v annotationValue) *ir.Function {
	ctx := al.ctx

	getter := ctx.Factory.BuildMemberFun(impl, v.getter.Name, v.field.Type, ir.OriginAnnotationImplementation)
	getter.Overrides = []*ir.Symbol{v.getter.Symbol()}

	value := ir.NewGetField(v.field, ir.NewGetValue(getter.DispatchReceiver))
	getter.Body = ir.NewBlock(ctx.unit(), ir.NewReturn(getter, value, ctx.nothing()))
	return getter
}

// buildEquals creates `equals(other)`: `other` is an instance of the
// annotation with equal values.  Values are read through the annotation's
// getters so that implementations from other files compare equal.
func (al *AnnotationImplementationLowering) buildEquals(annotation, impl *ir.Class, values []annotationValue) *ir.Function {
	ctx := al.ctx
	b := ctx.Builtins

	equals := ctx.Factory.BuildMemberFun(impl, "equals", b.BooleanType(), ir.OriginAnnotationImplementation)
	equals.Overrides = []*ir.Symbol{b.AnyEquals.Symbol()}
	other := ctx.Factory.AddValueParameter(equals, "other", b.NullableAnyType())

	// without getters only the fields of this implementation can be read
	otherType := annotation.DefaultType()
	for _, v := range values {
		if v.getter == nil {
			otherType = impl.DefaultType()
			break
		}
	}

	var result ir.Expr = b.BoolConst(true)
	for i := len(values) - 1; i >= 0; i-- {
		v := values[i]
		otherValue := ctx.implicitCast(ir.NewGetValue(other), otherType)

		var theirs ir.Expr
		if ir.ClassOf(otherType) == impl {
			theirs = ir.NewGetField(v.field, otherValue)
		} else {
			theirs = ir.NewMemberCall(v.getter, otherValue)
		}

		mine := ir.NewGetField(v.field, ir.NewGetValue(equals.DispatchReceiver))
		result = ir.NewIf(b.BooleanType(), ctx.eqeq(mine, theirs), result, b.BoolConst(false), b)
	}

	isAnnotation := ir.NewTypeOperator(ir.OpInstanceOf, ir.NewGetValue(other), otherType, b.BooleanType())
	result = ir.NewIf(b.BooleanType(), isAnnotation, result, b.BoolConst(false), b)

	equals.Body = ir.NewBlock(ctx.unit(), ir.NewReturn(equals, result, ctx.nothing()))
	return equals
}

// buildHashCode creates `hashCode()`, the sum over the values of
// `(127 * name.hashCode()) xor value.hashCode()`.
func (al *AnnotationImplementationLowering) buildHashCode(impl *ir.Class, values []annotationValue) *ir.Function {
	ctx := al.ctx
	b := ctx.Builtins

	hashCode := ctx.Factory.BuildMemberFun(impl, "hashCode", b.IntType(), ir.OriginAnnotationImplementation)
	hashCode.Overrides = []*ir.Symbol{b.AnyHashCode.Symbol()}

	var hash ir.Expr = b.IntConst(0)
	for _, v := range values {
		valueHash := ir.NewMemberCall(b.AnyHashCode, ir.NewGetField(v.field, ir.NewGetValue(hashCode.DispatchReceiver)))
		member := ir.NewCall(b.IntXor, b.IntConst(127*stringHash(v.name)), valueHash)
		hash = ir.NewCall(b.IntPlus, hash, member)
	}

	hashCode.Body = ir.NewBlock(ctx.unit(), ir.NewReturn(hashCode, hash, ctx.nothing()))
	return hashCode
}

// buildToString creates `toString() = "@A(x=..., y=...)"`.
func (al *AnnotationImplementationLowering) buildToString(annotation, impl *ir.Class, values []annotationValue) *ir.Function {
	ctx := al.ctx
	b := ctx.Builtins

	toString := ctx.Factory.BuildMemberFun(impl, "toString", b.StringType(), ir.OriginAnnotationImplementation)
	toString.Overrides = []*ir.Symbol{b.AnyToString.Symbol()}

	args := []ir.Expr{b.StringConst("@" + annotation.Name + "(")}
	for i, v := range values {
		label := v.name + "="
		if i > 0 {
			label = ", " + label
		}

		args = append(args, b.StringConst(label), ir.NewGetField(v.field, ir.NewGetValue(toString.DispatchReceiver)))
	}

	args = append(args, b.StringConst(")"))

	concat := ir.NewStringConcat(b.StringType(), args...)
	toString.Body = ir.NewBlock(ctx.unit(), ir.NewReturn(toString, concat, ctx.nothing()))
	return toString
}

// stringHash is the hash code of a string: `s[0]*31^(n-1) + ... + s[n-1]`
// over its UTF-16 code units.
func stringHash(s string) int32 {
	var h int32
	for _, u := range utf16.Encode([]rune(s)) {
		h = 31*h + int32(u)
	}

	return h
}
