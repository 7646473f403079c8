package lower

import (
	"nativec/ir"
)

// Lateinit storage is lowered in three phases which must run in order:
//
//  1. NullableFieldsLowering gives every lateinit property and local a
//     nullable slot.
//  2. GetterLowering makes the getters and raw reads throw when the slot is
//     still null.
//  3. UseSiteLowering rewrites `::x.isInitialized` to a null check of the
//     slot itself, bypassing the throwing getter.

// NullableFieldsLowering creates (or reuses) the nullable shadow field of
// every lateinit property and makes lateinit locals nullable.
type NullableFieldsLowering struct {
	ctx *Context
}

func (nfl *NullableFieldsLowering) Lower(file *ir.File) {
	m := nfl.ctx.Mapping
	replaced := make(map[*ir.Symbol]*ir.Field)

	ir.VisitAll(file, func(e ir.Element) {
		switch v := e.(type) {
		case *ir.Property:
			if !v.IsLateinit {
				return
			}

			if v.BackingField == nil {
				icePhase("LateinitNullableFields", v, "lateinit property has no backing field")
			}

			if _, ok := m.LateinitFields[v]; ok {
				return
			}

			shadow := nfl.shadowField(v.BackingField)
			if shadow != v.BackingField {
				replaced[v.BackingField.Symbol()] = shadow
				v.BackingField = shadow
			}

			m.LateinitFields[v] = shadow
		case *ir.Variable:
			if !v.IsLateinit {
				return
			}

			if _, ok := m.LateinitVariables[v]; ok {
				return
			}

			m.LateinitVariables[v] = v.Type
			v.Type = ir.MakeNullable(v.Type)
			v.Initializer = nfl.ctx.Builtins.NullConst(v.Type)
		}
	})

	if len(replaced) == 0 {
		return
	}

	// redirect the accessors to the shadow field
	var t ir.Transformer
	t = ir.TransformerFunc(func(e ir.Element) ir.Element {
		ir.TransformChildren(e, t)

		switch v := e.(type) {
		case *ir.GetField:
			if shadow, ok := replaced[v.Sym]; ok {
				return nfl.ctx.implicitCast(ir.NewGetField(shadow, v.Receiver), v.Type())
			}
		case *ir.SetField:
			if shadow, ok := replaced[v.Sym]; ok {
				v.Sym = shadow.Symbol()
			}
		}

		return e
	})

	t.Transform(file)
}

// shadowField returns a nullable field replacing `field`.  A field that is
// already nullable is reused.
func (nfl *NullableFieldsLowering) shadowField(field *ir.Field) *ir.Field {
	if field.Type.IsNullable() {
		return field
	}

	shadow := nfl.ctx.Factory.BuildField(field.Name, ir.MakeNullable(field.Type), ir.OriginLateinitShadow)
	shadow.SetSpan(field.Span())
	shadow.IsStatic = field.IsStatic
	shadow.CorrespondingProperty = field.CorrespondingProperty
	shadow.SetParent(field.Parent())
	return shadow
}

// -----------------------------------------------------------------------------

// GetterLowering rewrites the getters of lateinit properties and every read of
// a lateinit slot to
//
//	val tmp = slot; if (tmp == null) throwUninitializedPropertyAccessException("name") else tmp
type GetterLowering struct {
	ctx   *Context
	temps tempCounter
}

func (gl *GetterLowering) Lower(file *ir.File) {
	m := gl.ctx.Mapping

	shadows := make(map[*ir.Symbol]*ir.Property)
	for p, field := range m.LateinitFields {
		if ir.FileOf(p) == file {
			shadows[field.Symbol()] = p
		}
	}

	var t ir.Transformer
	t = ir.TransformerFunc(func(e ir.Element) ir.Element {
		ir.TransformChildren(e, t)

		switch v := e.(type) {
		case *ir.Property:
			if v.IsLateinit && v.Getter != nil {
				gl.lowerGetter(v)
			}
		case *ir.GetField:
			if p, ok := shadows[v.Sym]; ok && v.Origin() != ir.OriginLateinitCheck {
				return gl.checked(ir.WithOrigin(ir.NewGetField(m.LateinitFields[p], v.Receiver), ir.OriginLateinitCheck), p.Name, ir.MakeNotNull(v.Type()))
			}
		case *ir.GetValue:
			if v.Origin() == ir.OriginLateinitCheck {
				return e
			}

			if owner, ok := v.Sym.Owner().(*ir.Variable); ok {
				if original, ok := m.LateinitVariables[owner]; ok {
					return gl.checked(ir.WithOrigin(ir.NewGetValue(owner), ir.OriginLateinitCheck), owner.Name, original)
				}
			}
		}

		return e
	})

	t.Transform(file)
}

func (gl *GetterLowering) lowerGetter(p *ir.Property) {
	getter := p.Getter
	field := gl.ctx.Mapping.LateinitFields[p]

	var receiver ir.Expr
	if getter.DispatchReceiver != nil {
		receiver = ir.NewGetValue(getter.DispatchReceiver)
	}

	read := ir.WithOrigin(ir.NewGetField(field, receiver), ir.OriginLateinitCheck)
	getter.Body = ir.NewBlock(gl.ctx.unit(),
		ir.NewReturn(getter, gl.checked(read, p.Name, getter.ReturnType), gl.ctx.nothing()),
	)
}

// checked wraps the read of a nullable lateinit slot into the initialization
// check.  The result has the non-null type `t`.
func (gl *GetterLowering) checked(read ir.Expr, name string, t ir.Type) ir.Expr {
	ctx := gl.ctx
	tmp := ctx.temporary(gl.temps.next("lateinit"), read)

	throw := ir.NewCall(ctx.Builtins.ThrowUninitialized, ctx.Builtins.StringConst(name))
	check := ir.NewIf(t,
		ctx.isNull(ir.NewGetValue(tmp)),
		throw,
		ctx.implicitCast(ir.NewGetValue(tmp), t),
		ctx.Builtins,
	)

	return ir.WithOrigin(ir.NewComposite(t, tmp, check), ir.OriginLateinitCheck)
}

// -----------------------------------------------------------------------------

// UseSiteLowering rewrites `::x.isInitialized` to `x$shadow != null`.
type UseSiteLowering struct {
	ctx *Context
}

func (usl *UseSiteLowering) LowerBody(body ir.Expr, container ir.Declaration) ir.Expr {
	ctx := usl.ctx

	var t ir.Transformer
	t = ir.TransformerFunc(func(e ir.Element) ir.Element {
		ir.TransformChildren(e, t)

		call, ok := e.(*ir.Call)
		if !ok || call.Sym != ctx.Builtins.IsInitialized.Symbol() {
			return e
		}

		ref, ok := call.ExtensionReceiver.(*ir.PropertyReference)
		if !ok {
			icePhase("LateinitUseSites", container, "isInitialized on a non-reference receiver %T", call.ExtensionReceiver)
		}

		p := ref.Sym.Property()
		field, ok := ctx.Mapping.LateinitFields[p]
		if !ok {
			icePhase("LateinitUseSites", container, "isInitialized on %s which is not lateinit", ir.Describe(p))
		}

		read := ir.WithOrigin(ir.NewGetField(field, ref.DispatchReceiver), ir.OriginLateinitCheck)
		return ir.WithOrigin(ir.NewCall(ctx.Builtins.Not, ctx.isNull(read)), ir.OriginLateinitCheck)
	})

	return transformExpr(t, body)
}
