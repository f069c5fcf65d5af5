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

// Inspect traverses the tree rooted at n in depth-first order. If f returns
// false the children of that node are skipped. Substitutions recorded in
// annotations are not followed.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	for _, c := range Children(n) {
		Inspect(c, f)
	}
}

type nodeList []Node

func (l *nodeList) add(ns ...Node) {
	for _, n := range ns {
		if n != nil {
			*l = append(*l, n)
		}
	}
}

func addAll[T Node](l *nodeList, ns []T) {
	for _, n := range ns {
		l.add(n)
	}
}

// add helpers for interface typed fields; a nil interface stays out
func (l *nodeList) expr(e Expr) {
	if e != nil {
		*l = append(*l, e)
	}
}

func (l *nodeList) stmt(s Stmt) {
	if s != nil {
		*l = append(*l, s)
	}
}

func (l *nodeList) typ(t TypeNode) {
	if t != nil {
		*l = append(*l, t)
	}
}

// Children returns the direct children of n in source order
func Children(n Node) []Node {
	var l nodeList
	switch n := n.(type) {
	case *Program:
		addAll(&l, n.Uses)
		if n.Block != nil {
			l.add(n.Block)
		}
	case *Library:
		addAll(&l, n.Uses)
		if n.Block != nil {
			l.add(n.Block)
		}
	case *Unit:
		addAll(&l, n.IntfUses)
		addAll(&l, n.Interface)
		addAll(&l, n.ImplUses)
		addAll(&l, n.Implementation)
		addAll(&l, n.Init)
		addAll(&l, n.Final)
	case *Package:
		addAll(&l, n.Contains)
	case *Block:
		addAll(&l, n.Decls)
		l.stmt(n.Body)

	case *TypeDecl:
		l.typ(n.Type)
	case *CompositeDecl:
		addAll(&l, n.Members)
	case *VarDecl:
		l.typ(n.Type)
		l.expr(n.Init)
	case *ConstDecl:
		l.typ(n.Type)
		l.expr(n.Value)
	case *ParamDecl:
		l.typ(n.Type)
		l.expr(n.Default)
	case *CallableDecl:
		addAll(&l, n.Params)
		l.typ(n.Result)
		for _, d := range n.Directives {
			l.expr(d.Arg)
		}
		if n.External != nil {
			l.expr(n.External.Library)
			l.expr(n.External.Name)
			l.expr(n.External.Index)
		}
		if n.Body != nil {
			l.add(n.Body)
		}
	case *PropertyDecl:
		addAll(&l, n.Params)
		l.typ(n.Type)
		l.expr(n.Index)
		l.expr(n.Default)
		l.expr(n.Stored)
	case *ExportDecl:
		l.expr(n.ExportName)
		l.expr(n.Index)
	case *EnumMember:
		l.expr(n.Value)
	case *LabelDecl, *UnitRef:

	case *StringType:
		l.expr(n.Length)
	case *SubrangeType:
		l.expr(n.Low)
		l.expr(n.High)
	case *EnumType:
		addAll(&l, n.Members)
	case *PointerType:
		l.typ(n.Target)
	case *ClassRefType:
		l.typ(n.Target)
	case *ArrayType:
		addAll(&l, n.Index)
		l.typ(n.Elem)
	case *SetType:
		l.typ(n.Elem)
	case *FileType:
		l.typ(n.Elem)
	case *RecordType:
		addAll(&l, n.Members)
		if n.Variant != nil {
			l.add(n.Variant)
		}
	case *VariantPart:
		l.typ(n.TagType)
		addAll(&l, n.Cases)
	case *VariantCase:
		addAll(&l, n.Labels)
		addAll(&l, n.Fields)
	case *ClassType:
		addAll(&l, n.Members)
	case *InterfaceType:
		l.expr(n.GUID)
		addAll(&l, n.Members)
	case *ProcType:
		addAll(&l, n.Params)
		l.typ(n.Result)

	case *CompoundStmt:
		addAll(&l, n.Stmts)
	case *AssignStmt:
		l.expr(n.Target)
		l.expr(n.Value)
	case *CallStmt:
		l.expr(n.Call)
	case *IfStmt:
		l.expr(n.Cond)
		l.stmt(n.Then)
		l.stmt(n.Else)
	case *CaseStmt:
		l.expr(n.Selector)
		addAll(&l, n.Arms)
		addAll(&l, n.Else)
	case *CaseArm:
		addAll(&l, n.Labels)
		l.stmt(n.Body)
	case *ForStmt:
		l.expr(n.From)
		l.expr(n.To)
		l.stmt(n.Body)
	case *ForInStmt:
		l.expr(n.Coll)
		l.stmt(n.Body)
	case *WhileStmt:
		l.expr(n.Cond)
		l.stmt(n.Body)
	case *RepeatStmt:
		addAll(&l, n.Body)
		l.expr(n.Cond)
	case *WithStmt:
		addAll(&l, n.Objects)
		l.stmt(n.Body)
	case *TryExceptStmt:
		addAll(&l, n.Body)
		addAll(&l, n.Handlers)
		addAll(&l, n.Else)
		addAll(&l, n.Default)
	case *ExceptHandler:
		if n.Type != nil {
			l.add(n.Type)
		}
		l.stmt(n.Body)
	case *TryFinallyStmt:
		addAll(&l, n.Body)
		addAll(&l, n.Finally)
	case *RaiseStmt:
		l.expr(n.Exception)
		l.expr(n.At)
	case *LabeledStmt:
		l.stmt(n.Stmt)

	case *ArrayConst:
		addAll(&l, n.Elems)
	case *RecordConst:
		addAll(&l, n.Fields)
	case *FieldInit:
		l.expr(n.Value)
	case *SetConstructor:
		addAll(&l, n.Elems)
	case *RangeExpr:
		l.expr(n.Low)
		l.expr(n.High)
	case *UnaryExpr:
		l.expr(n.Operand)
	case *BinaryExpr:
		l.expr(n.Left)
		l.expr(n.Right)
	case *RoutineCall:
		l.expr(n.Callee)
		addAll(&l, n.Args)
	case *FieldAccess:
		l.expr(n.Object)
	case *ArrayAccess:
		l.expr(n.Array)
		addAll(&l, n.Indexes)
	case *PointerDeref:
		l.expr(n.Pointer)
	case *InheritedCall:
		addAll(&l, n.Args)
	}
	return l
}
