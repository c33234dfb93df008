package infer

import (
	"github.com/roach88/pyrs/internal/ir"
)

// backward refines bindings from the way they are used: receivers of
// container methods, operands next to typed partners, arguments of typed
// parameters and values returned under an annotation.
func (e *Engine) backward(fn *ir.Function) {
	ir.WalkBody(fn.Body, func(x ir.Expr) bool {
		switch n := x.(type) {
		case *ir.Call:
			e.backwardCall(n)
		case *ir.Binary:
			e.backwardBinary(n)
		case *ir.Attribute:
			if v, ok := n.X.(*ir.Var); ok && v.Ref == ir.RefLocal && ir.IsUnknown(v.Binding.Type) {
				if cls := e.classWith(n.Name); cls != nil {
					e.refine(v.Binding, ir.Generic{Name: cls.Name})
				}
			}
		case *ir.Index:
			if ir.IsStr(ir.TypeOf(n.Index)) {
				e.refineUnknown(n.X, ir.Map{Key: ir.StrType, Value: ir.Unresolved})
			}
		}
		return true
	})

	want, ok := concrete(fn.ReturnAnnotation)
	if !ok {
		return
	}
	ir.WalkStmts(fn.Body, func(s ir.Stmt) bool {
		if r, isRet := s.(*ir.Return); isRet && r.Value != nil {
			e.refineUnknown(r.Value, want)
		}
		return true
	})
}

func concrete(t ir.Type) (ir.Type, bool) {
	if t == nil || ir.ContainsUnknown(t) {
		return nil, false
	}
	return t, true
}

// refineUnknown refines the slot x names when its type still has holes, or
// when it is a container that differs from t only in integer width. The
// slot is read from the binding or field: expect has already filled the
// holes of the node itself.
func (e *Engine) refineUnknown(x ir.Expr, t ir.Type) {
	have := slotType(x)
	if !ir.ContainsUnknown(have) && !(widthOnly(have, t) && !isScalar(have)) {
		return
	}
	e.refineSlot(x, t)
}

func slotType(x ir.Expr) ir.Type {
	switch v := x.(type) {
	case *ir.Var:
		if v.Ref == ir.RefLocal && v.Binding != nil {
			return ir.OrUnknown(v.Binding.Type)
		}
	case *ir.Attribute:
		if v.Field != nil {
			return ir.OrUnknown(v.Field.Type)
		}
	}
	return ir.TypeOf(x)
}

func isScalar(t ir.Type) bool {
	_, ok := ir.Deref(t).(ir.Prim)
	return ok
}

func (e *Engine) backwardCall(c *ir.Call) {
	if c.Callee != nil {
		for i, a := range c.Args {
			p := ir.ParamAt(c.Callee.Params, i, len(c.Args))
			if p == nil || p.Binding == nil {
				continue
			}
			pt := p.Binding.Type
			if p.Variadic {
				pt = ir.ElemOf(pt)
			}
			if want, ok := concrete(pt); ok {
				e.refineUnknown(a, want)
			}
		}
		return
	}
	recv, name, ok := c.Method()
	if !ok {
		return
	}
	if implied := impliedReceiver(ir.TypeOf(recv), name, c.Args); implied != nil {
		e.refineSlot(recv, implied)
		return
	}
	if !ir.IsUnknown(ir.TypeOf(recv)) {
		return
	}
	if shape, ok := capabilities[name]; ok {
		e.refineSlot(recv, shape)
		return
	}
	if cls := e.classWith(name); cls != nil {
		e.refineSlot(recv, ir.Generic{Name: cls.Name})
	}
}

// impliedReceiver returns the receiver type a growing container method call
// implies from its arguments, or nil.
func impliedReceiver(recv ir.Type, name string, args []ir.Expr) ir.Type {
	at := func(i int) ir.Type {
		if i < len(args) {
			return ir.TypeOf(args[i])
		}
		return ir.Unresolved
	}
	switch ir.Deref(recv).(type) {
	case ir.Seq, ir.Unknown:
		switch name {
		case "append":
			return ir.Seq{Elem: at(0)}
		case "insert":
			return ir.Seq{Elem: at(1)}
		case "extend":
			return ir.Seq{Elem: ir.ElemOf(at(0))}
		}
	}
	switch ir.Deref(recv).(type) {
	case ir.Set, ir.Unknown:
		if name == "add" {
			return ir.Set{Elem: at(0)}
		}
	}
	switch ir.Deref(recv).(type) {
	case ir.Map, ir.Unknown:
		if name == "setdefault" {
			return ir.Map{Key: at(0), Value: at(1)}
		}
	}
	switch ir.Deref(recv).(type) {
	case ir.Map:
		if m, ok := ir.Deref(at(0)).(ir.Map); ok && name == "update" {
			return m
		}
	case ir.Set:
		if name == "update" {
			return ir.Set{Elem: ir.ElemOf(at(0))}
		}
	}
	return nil
}

func (e *Engine) backwardBinary(b *ir.Binary) {
	lt, rt := ir.TypeOf(b.L), ir.TypeOf(b.R)
	switch b.Op {
	case ir.OpAnd, ir.OpOr, ir.OpIs, ir.OpIsNot:
		return
	case ir.OpIn, ir.OpNotIn:
		if elem := containerKey(rt); !ir.IsUnknown(elem) {
			e.refineUnknown(b.L, elem)
		}
		return
	}
	if ir.IsUnknown(lt) && !ir.ContainsUnknown(rt) && !ir.IsAny(rt) {
		e.refineSlot(b.L, operandPartner(b.Op, rt))
	}
	if ir.IsUnknown(rt) && !ir.ContainsUnknown(lt) && !ir.IsAny(lt) {
		e.refineSlot(b.R, operandPartner(b.Op, lt))
	}
}

// operandPartner is the type an untyped operand takes next to one of type
// other. Repetition ("s * n") takes an int count.
func operandPartner(op ir.BinOp, other ir.Type) ir.Type {
	if op == ir.OpMul {
		switch ir.Deref(other).(type) {
		case ir.Str, ir.Seq:
			return ir.IntType
		}
	}
	if op == ir.OpMod && ir.IsStr(other) {
		return ir.Unresolved
	}
	return ir.Deref(other)
}

// containerKey is the type a membership test against t compares.
func containerKey(t ir.Type) ir.Type {
	switch c := ir.Deref(t).(type) {
	case ir.Map:
		return ir.OrUnknown(c.Key)
	case ir.Str:
		return ir.StrType
	}
	return ir.ElemOf(t)
}

// classWith returns the only user class with a field or method named name.
func (e *Engine) classWith(name string) *ir.Class {
	if name == "__init__" {
		return nil
	}
	var found *ir.Class
	for _, cls := range e.module.Classes() {
		if cls.Field(name) == nil && cls.Method(name) == nil {
			continue
		}
		if found != nil {
			return nil
		}
		found = cls
	}
	return found
}
