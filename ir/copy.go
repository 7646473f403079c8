package ir

import "nativec/report"

// copier deep-copies expression subtrees.  Declarations inside the copied
// subtree get fresh symbols; references to them inside the copy are remapped
// while references to anything outside keep their symbol.
type copier struct {
	f       *Factory
	symbols map[*Symbol]*Symbol
	loops   map[*Loop]*Loop
}

// DeepCopy returns a deep copy of an expression subtree.  The parents of local
// declarations inside the copy point into the copy except for the outermost
// ones, which the caller must patch when placing the copy.
func DeepCopy[E Expr](f *Factory, e E) E {
	c := &copier{f: f, symbols: make(map[*Symbol]*Symbol), loops: make(map[*Loop]*Loop)}
	return c.expr(e).(E)
}

func (c *copier) sym(s *Symbol) *Symbol {
	if s == nil {
		return nil
	}

	if r, ok := c.symbols[s]; ok {
		return r
	}

	return s
}

func (c *copier) exprs(exprs []Expr) []Expr {
	if exprs == nil {
		return nil
	}

	result := make([]Expr, len(exprs))
	for i, e := range exprs {
		result[i] = c.expr(e)
	}

	return result
}

func (c *copier) expr(e Expr) Expr {
	if e == nil {
		return nil
	}

	switch v := e.(type) {
	case *Const:
		cp := *v
		return &cp
	case *GetValue:
		return &GetValue{ExprBase: v.ExprBase, Sym: c.sym(v.Sym)}
	case *SetValue:
		return &SetValue{ExprBase: v.ExprBase, Sym: c.sym(v.Sym), Value: c.expr(v.Value)}
	case *GetField:
		return &GetField{ExprBase: v.ExprBase, Sym: v.Sym, Receiver: c.expr(v.Receiver)}
	case *SetField:
		return &SetField{ExprBase: v.ExprBase, Sym: v.Sym, Receiver: c.expr(v.Receiver), Value: c.expr(v.Value)}
	case *Call:
		return &Call{
			ExprBase:          v.ExprBase,
			Sym:               c.sym(v.Sym),
			DispatchReceiver:  c.expr(v.DispatchReceiver),
			ExtensionReceiver: c.expr(v.ExtensionReceiver),
			Args:              c.exprs(v.Args),
			TypeArgs:          v.TypeArgs,
			SuperQualifier:    v.SuperQualifier,
		}
	case *ConstructorCall:
		return &ConstructorCall{
			ExprBase:         v.ExprBase,
			Sym:              v.Sym,
			DispatchReceiver: c.expr(v.DispatchReceiver),
			Args:             c.exprs(v.Args),
			TypeArgs:         v.TypeArgs,
		}
	case *DelegatingConstructorCall:
		return &DelegatingConstructorCall{
			ExprBase:         v.ExprBase,
			Sym:              v.Sym,
			DispatchReceiver: c.expr(v.DispatchReceiver),
			Args:             c.exprs(v.Args),
			TypeArgs:         v.TypeArgs,
		}
	case *Block:
		stmts := make([]Statement, len(v.Statements))
		for i, stmt := range v.Statements {
			stmts[i] = c.stmt(stmt)
		}

		return &Block{ExprBase: v.ExprBase, Statements: stmts, IsTransparent: v.IsTransparent}
	case *Return:
		return &Return{ExprBase: v.ExprBase, Target: c.sym(v.Target), Value: c.expr(v.Value)}
	case *Try:
		t := &Try{ExprBase: v.ExprBase, Body: c.expr(v.Body)}
		for _, ct := range v.Catches {
			param := c.variable(ct.Param)
			t.Catches = append(t.Catches, &Catch{ElementBase: ct.ElementBase, Param: param, Result: c.expr(ct.Result)})
		}

		t.Finally = c.expr(v.Finally)
		return t
	case *Throw:
		return &Throw{ExprBase: v.ExprBase, Value: c.expr(v.Value)}
	case *Loop:
		l := &Loop{ExprBase: v.ExprBase, Label: v.Label, IsDoWhile: v.IsDoWhile}
		c.loops[v] = l
		l.Condition = c.expr(v.Condition)
		l.Body = c.expr(v.Body)
		return l
	case *Break:
		return &Break{ExprBase: v.ExprBase, Loop: c.loop(v.Loop)}
	case *Continue:
		return &Continue{ExprBase: v.ExprBase, Loop: c.loop(v.Loop)}
	case *When:
		w := &When{ExprBase: v.ExprBase}
		for _, br := range v.Branches {
			w.Branches = append(w.Branches, &Branch{ElementBase: br.ElementBase, Condition: c.expr(br.Condition), Result: c.expr(br.Result)})
		}

		return w
	case *StringConcat:
		return &StringConcat{ExprBase: v.ExprBase, Args: c.exprs(v.Args)}
	case *FunctionReference:
		return &FunctionReference{
			ExprBase:          v.ExprBase,
			Sym:               c.sym(v.Sym),
			DispatchReceiver:  c.expr(v.DispatchReceiver),
			ExtensionReceiver: c.expr(v.ExtensionReceiver),
			TypeArgs:          v.TypeArgs,
		}
	case *FunctionExpression:
		return &FunctionExpression{ExprBase: v.ExprBase, Function: c.function(v.Function)}
	case *PropertyReference:
		return &PropertyReference{ExprBase: v.ExprBase, Sym: v.Sym, DispatchReceiver: c.expr(v.DispatchReceiver)}
	case *TypeOperatorCall:
		return &TypeOperatorCall{ExprBase: v.ExprBase, Operator: v.Operator, Argument: c.expr(v.Argument), TypeOperand: v.TypeOperand}
	}

	report.ICE("cannot copy expression %T", e)
	return nil
}

func (c *copier) loop(l *Loop) *Loop {
	if r, ok := c.loops[l]; ok {
		return r
	}

	return l
}

func (c *copier) stmt(s Statement) Statement {
	switch v := s.(type) {
	case *Variable:
		return c.variable(v)
	case *Function:
		return c.function(v)
	case *Class:
		report.ICE("cannot copy local %s", Describe(v))
	case Expr:
		return c.expr(v)
	}

	report.ICE("cannot copy statement %T", s)
	return nil
}

func (c *copier) variable(v *Variable) *Variable {
	nv := c.f.BuildVariable(v.Name, v.Type, v.IsVar, nil)
	nv.ElementBase = v.ElementBase
	nv.IsLateinit = v.IsLateinit
	nv.SetParent(v.Parent())

	c.symbols[v.Symbol()] = nv.Symbol()
	nv.Initializer = c.expr(v.Initializer)
	return nv
}

func (c *copier) param(vp *ValueParameter) *ValueParameter {
	if vp == nil {
		return nil
	}

	np := c.f.BuildValueParameter(vp.Name, vp.Type, vp.Index)
	np.ElementBase = vp.ElementBase
	np.VarargElementType = vp.VarargElementType
	np.IsCrossinline = vp.IsCrossinline
	np.IsNoinline = vp.IsNoinline
	np.IsAssignable = vp.IsAssignable

	c.symbols[vp.Symbol()] = np.Symbol()
	np.DefaultValue = c.expr(vp.DefaultValue)
	return np
}

func (c *copier) function(fn *Function) *Function {
	nf := c.f.BuildFun(fn.Name, fn.ReturnType, fn.Origin())
	nf.SetSpan(fn.Span())
	nf.SetParent(fn.Parent())
	nf.IsSuspend = fn.IsSuspend
	nf.IsInline = fn.IsInline
	nf.TypeParameters = fn.TypeParameters
	c.symbols[fn.Symbol()] = nf.Symbol()

	nf.DispatchReceiver = c.param(fn.DispatchReceiver)
	nf.ExtensionReceiver = c.param(fn.ExtensionReceiver)
	for _, vp := range fn.Params {
		nf.Params = append(nf.Params, c.param(vp))
	}

	if fn.Body != nil {
		nf.Body = c.expr(fn.Body).(*Block)
	}

	PatchDeclarationParents(nf, nil)
	return nf
}
