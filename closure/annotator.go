// Package closure computes, for every function and class nested inside a
// subtree, the enclosing values and type parameters it captures.  Captures are
// transitive: a function also captures whatever the local functions it calls
// and the local classes it instantiates capture.
package closure

import (
	"nativec/graph"
	"nativec/ir"
	"nativec/report"
)

// Annotator holds the result of the capture traversal of one subtree.  The
// closures are solved on demand and cached.
type Annotator struct {
	builders map[ir.Declaration]*builder
}

// NewAnnotator traverses `root` and records the declarations and uses of every
// function and class within it.  `start` is the declaration whose body `root`
// is, or nil if `root` is itself a file or top-level declaration.
func NewAnnotator(root ir.Element, start ir.Declaration) *Annotator {
	a := &Annotator{builders: make(map[ir.Declaration]*builder)}

	var cur *builder
	if start != nil {
		cur = a.enclosingBuilder(start)
	}

	a.visit(root, cur)
	return a
}

// FunctionClosure returns the closure of a function seen by the annotator.
func (a *Annotator) FunctionClosure(fn *ir.Function) Closure {
	return a.closureOf(fn)
}

// ClassClosure returns the closure of a class seen by the annotator.
func (a *Annotator) ClassClosure(c *ir.Class) Closure {
	return a.closureOf(c)
}

func (a *Annotator) closureOf(d ir.Declaration) Closure {
	b, ok := a.builders[d]
	if !ok {
		report.ICE("no closure was computed for %s", ir.Describe(d))
	}

	a.solve(b)
	return *b.frozen
}

// solve computes the closure of `root` and every builder it transitively
// includes.  Includes may be cyclic so the captured sets are grown until none
// of them changes.
func (a *Annotator) solve(root *builder) {
	if root.frozen != nil {
		return
	}

	batch := graph.ReversePostorder([]*builder{root}, func(b *builder) []*builder {
		var pending []*builder
		for _, inc := range b.includes {
			if inc.frozen == nil {
				pending = append(pending, inc)
			}
		}

		return pending
	})

	for changed := true; changed; {
		changed = false

		for _, b := range batch {
			for _, inc := range b.includes {
				if b.absorb(inc) {
					changed = true
				}
			}
		}
	}

	for _, b := range batch {
		b.freeze()
	}
}

// -----------------------------------------------------------------------------

// builderOf returns the builder of a function or class, creating it on first
// use.  Forward references to local functions rely on this.
func (a *Annotator) builderOf(d ir.Declaration) *builder {
	b, ok := a.builders[d]
	if !ok {
		b = newBuilder(d)
		a.builders[d] = b
	}

	return b
}

// enclosingBuilder returns the builder of the nearest function or class
// containing `d`, `d` included.
func (a *Annotator) enclosingBuilder(d ir.Declaration) *builder {
	for d != nil {
		switch d.(type) {
		case *ir.Function, *ir.Class:
			return a.builderOf(d)
		}

		p, ok := d.Parent().(ir.Declaration)
		if !ok {
			return nil
		}

		d = p
	}

	return nil
}

// includeInParent makes a class member contribute to its class.  Declarations
// nested in a function are only included where they are used.
func (a *Annotator) includeInParent(b *builder) {
	parent, ok := b.owner.Parent().(*ir.Class)
	if ok {
		a.builderOf(parent).include(b)
	}
}

// isLocalFunction returns whether calls to `fn` can capture: only functions
// declared directly inside another function can.
func isLocalFunction(fn *ir.Function) bool {
	_, ok := fn.Parent().(*ir.Function)
	return ok
}

func (a *Annotator) visitChildren(e ir.Element, cur *builder) {
	for _, c := range ir.Children(e) {
		a.visit(c, cur)
	}
}

func (a *Annotator) visit(e ir.Element, cur *builder) {
	switch v := e.(type) {
	case *ir.Class:
		a.visitClass(v)
		return
	case *ir.Function:
		a.visitFunction(v)
		return
	case *ir.FunctionExpression:
		a.visitFunction(v.Function)
		if cur != nil {
			cur.include(a.builderOf(v.Function))
		}

		return
	}

	if cur == nil {
		a.visitChildren(e, nil)
		return
	}

	switch v := e.(type) {
	case *ir.Variable:
		cur.declareValue(v)
		cur.seeType(v.Type)
	case *ir.ValueParameter:
		cur.seeType(v.Type)
	case *ir.GetValue:
		cur.seeValue(v.Sym)
	case *ir.SetValue:
		cur.seeValue(v.Sym)
	case *ir.Call:
		a.seeFunction(cur, v.Sym.Function())
		seeTypes(cur, v.TypeArgs)
	case *ir.FunctionReference:
		a.seeFunction(cur, v.Sym.Function())
		seeTypes(cur, v.TypeArgs)
	case *ir.ConstructorCall:
		a.seeClass(cur, v.Sym.Function().ConstructedClass())
		seeTypes(cur, v.TypeArgs)
	case *ir.DelegatingConstructorCall:
		a.seeClass(cur, v.Sym.Function().ConstructedClass())
		seeTypes(cur, v.TypeArgs)
	case *ir.TypeOperatorCall:
		cur.seeType(v.TypeOperand)
	}

	a.visitChildren(e, cur)
}

func (a *Annotator) visitClass(c *ir.Class) {
	b := a.builderOf(c)
	b.declareValue(c.ThisReceiver)

	for _, tp := range c.TypeParameters {
		b.declareTypeParameter(tp)
	}

	if c.IsInner {
		if outer := ir.ParentClass(c); outer != nil {
			b.declareValue(outer.ThisReceiver)
			a.includeInParent(b)
		}
	}

	if pc := c.PrimaryConstructor(); pc != nil {
		for _, vp := range pc.Params {
			b.declareValue(vp)
		}
	}

	for _, st := range c.SuperTypes {
		b.seeType(st)
	}

	a.visitChildren(c, b)
}

func (a *Annotator) visitFunction(fn *ir.Function) {
	b := a.builderOf(fn)

	for _, tp := range fn.TypeParameters {
		b.declareTypeParameter(tp)
	}

	b.declareValue(fn.DispatchReceiver)
	b.declareValue(fn.ExtensionReceiver)
	for _, vp := range fn.Params {
		b.declareValue(vp)
	}

	b.seeType(fn.ReturnType)

	if fn.IsConstructor {
		class := fn.ConstructedClass()
		b.declareValue(class.ThisReceiver)
		a.builderOf(class).include(b)
	} else {
		a.includeInParent(b)
	}

	a.visitChildren(fn, b)
}

// seeFunction records a call or reference to `fn` from `cur`.  Only local
// functions contribute their captures: anything else has already escaped.
func (a *Annotator) seeFunction(cur *builder, fn *ir.Function) {
	if fn.IsConstructor {
		a.seeClass(cur, fn.ConstructedClass())
	} else if isLocalFunction(fn) {
		cur.include(a.builderOf(fn))
	}
}

func (a *Annotator) seeClass(cur *builder, c *ir.Class) {
	if ir.IsLocal(c) {
		cur.include(a.builderOf(c))
	}
}

func seeTypes(b *builder, types []ir.Type) {
	for _, t := range types {
		b.seeType(t)
	}
}
