/*
** Copyright (C) 2025 The MultiDelphi Authors
**
** This file is part of the MultiDelphi language project.
**
**
** GNU Lesser General Public License Usage
** This file may be used under the terms of the GNU Lesser
** General Public License version 2.1 or version 3 as published by the Free
** Software Foundation and appearing in the file LICENSE.LGPLv21 and
** LICENSE.LGPLv3 included in the packaging of this file. Please review the
** following information to ensure the GNU Lesser General Public License
** requirements will be met: https://www.gnu.org/licenses/lgpl.html and
** http://www.gnu.org/licenses/old-licenses/lgpl-2.1.html.
 */

package Delphi

// Annotation is what the passes after parsing know about a node
type Annotation struct {
	Type         TypeNode
	IsConst      bool
	Value        ConstantValue
	EnforceConst bool
	ForcedType   TypeNode
	Decl         Decl
	NonLocal     bool
	Op           BinaryOp
	HasOp        bool
}

// Annotations is indexed by NodeID and also records node substitutions,
// so a pass can replace a placeholder without touching the tree.
type Annotations struct {
	byID  map[NodeID]*Annotation
	subst map[NodeID]Expr
	next  NodeID
}

// NewAnnotations creates a store for a tree whose highest node id is last;
// nodes synthesized later get ids above it.
func NewAnnotations(last NodeID) *Annotations {
	return &Annotations{
		byID:  make(map[NodeID]*Annotation),
		subst: make(map[NodeID]Expr),
		next:  last + 1,
	}
}

func (a *Annotations) NewID() NodeID {
	id := a.next
	a.next++
	return id
}

// Get returns the annotation of n or nil
func (a *Annotations) Get(n Node) *Annotation {
	return a.byID[n.Info().ID]
}

func (a *Annotations) at(n Node) *Annotation {
	id := n.Info().ID
	if id == 0 {
		panic(internalf("annotating a node without id (%T)", n))
	}
	an := a.byID[id]
	if an == nil {
		an = &Annotation{}
		a.byID[id] = an
	}
	return an
}

func (a *Annotations) Len() int {
	return len(a.byID)
}

func (a *Annotations) SetType(n Node, t TypeNode) {
	a.at(n).Type = t
}

func (a *Annotations) TypeOf(n Node) TypeNode {
	if an := a.Get(n); an != nil {
		return an.Type
	}
	return nil
}

// SetConst marks e constant. The value category must match the category
// of the type, an IntegralValue for ordinal types and so on.
func (a *Annotations) SetConst(e Node, t TypeNode, v ConstantValue) {
	if !valueMatchesType(t, v) {
		panic(internalf("constant %v does not fit type %T", v, t))
	}
	an := a.at(e)
	an.Type = t
	an.IsConst = true
	an.Value = v
}

func (a *Annotations) IsConst(n Node) bool {
	an := a.Get(n)
	return an != nil && an.IsConst
}

func (a *Annotations) Value(n Node) (ConstantValue, bool) {
	an := a.Get(n)
	if an == nil || !an.IsConst {
		return nil, false
	}
	return an.Value, true
}

func (a *Annotations) SetEnforceConst(e Expr) {
	a.at(e).EnforceConst = true
}

func (a *Annotations) SetForcedType(e Expr, t TypeNode) {
	a.at(e).ForcedType = t
}

// Bind records the declaration a name refers to
func (a *Annotations) Bind(n Node, d Decl) {
	a.at(n).Decl = d
}

func (a *Annotations) DeclOf(n Node) Decl {
	if an := a.Get(n); an != nil {
		return an.Decl
	}
	return nil
}

func (a *Annotations) MarkNonLocal(n Node) {
	a.at(n).NonLocal = true
}

func (a *Annotations) IsNonLocal(n Node) bool {
	an := a.Get(n)
	return an != nil && an.NonLocal
}

// Refine records the operator actually meant, e.g. a signed comparison
func (a *Annotations) Refine(e *BinaryExpr, op BinaryOp) {
	an := a.at(e)
	an.Op = op
	an.HasOp = true
}

func (a *Annotations) OpOf(e *BinaryExpr) BinaryOp {
	if an := a.Get(e); an != nil && an.HasOp {
		return an.Op
	}
	return e.Op
}

// Substitute makes repl the effective replacement of orig
func (a *Annotations) Substitute(orig, repl Expr) {
	a.subst[orig.Info().ID] = repl
}

// Effective returns e or what it was substituted by
func (a *Annotations) Effective(e Expr) Expr {
	for i := 0; e != nil && i < 8; i++ {
		r, ok := a.subst[e.Info().ID]
		if !ok {
			return e
		}
		e = r
	}
	return e
}

// Equal compares two expressions by resolved type and constant value
// regardless of their spelling.
func (a *Annotations) Equal(x, y Expr) bool {
	ax, ay := a.Get(a.Effective(x)), a.Get(a.Effective(y))
	if ax == nil || ay == nil || !ax.IsConst || !ay.IsConst {
		return false
	}
	return sameType(ax.Type, ay.Type) && ax.Value.Equal(ay.Value)
}

// ValueIntegral is only valid after the caller verified that the type of e
// is of the integral family.
func (a *Annotations) ValueIntegral(e Expr) IntegralValue {
	an := a.Get(a.Effective(e))
	if an == nil || !IsOrdinal(an.Type) {
		panic(internalf("expression at line %d has no integral type", e.Info().Line))
	}
	v, ok := an.Value.(IntegralValue)
	if !ok {
		panic(internalf("expression at line %d has no integral value", e.Info().Line))
	}
	return v
}

type valueCategory uint8

const (
	catNone valueCategory = iota
	catIntegral
	catReal
	catString
)

func categoryOf(t TypeNode) valueCategory {
	switch t := t.(type) {
	case *OrdinalType, *EnumType, *SubrangeType:
		return catIntegral
	case *RealType:
		return catReal
	case *BuiltinStringType, *StringType:
		return catString
	case *BuiltinPointerType:
		// PChar constants are string literals
		if _, ok := t.Target.(*OrdinalType); ok {
			return catString
		}
	}
	return catNone
}

func valueMatchesType(t TypeNode, v ConstantValue) bool {
	switch v.(type) {
	case IntegralValue:
		return categoryOf(t) == catIntegral
	case RealValue:
		return categoryOf(t) == catReal
	case StringValue:
		return categoryOf(t) == catString
	}
	return false
}

// IsOrdinal reports the integral family: integers, chars, booleans,
// enumerations and subranges of them
func IsOrdinal(t TypeNode) bool {
	return categoryOf(t) == catIntegral
}

func sameType(x, y TypeNode) bool {
	if x == nil || y == nil {
		return false
	}
	if x == y {
		return true
	}
	nx, ok1 := x.(*NamedType)
	ny, ok2 := y.(*NamedType)
	return ok1 && ok2 && foldName(nx.Name) == foldName(ny.Name)
}
