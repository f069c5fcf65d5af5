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

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Binder walks a goal with the registry, resolves names and records what it
// finds in the annotation store. Errors are collected, the walk goes on.
type Binder struct {
	reg  *Registry
	ann  *Annotations
	cfg  *Config
	log  *slog.Logger
	fold *Folder

	// frame index of each routine body being bound, innermost last
	routines []int

	Path      string
	Errors    []*BindError
	Warnings  []*BindError
	Overloads map[string][]*CallableDecl
	// Implicit maps the Result and Self variables to their routine
	Implicit map[Decl]*CallableDecl
}

func NewBinder(reg *Registry, ann *Annotations) *Binder {
	return &Binder{
		reg:       reg,
		ann:       ann,
		cfg:       reg.cfg,
		log:       reg.cfg.Log("binder"),
		fold:      NewFolder(reg, ann),
		Overloads: make(map[string][]*CallableDecl),
		Implicit:  make(map[Decl]*CallableDecl),
	}
}

// Bind binds g and returns the first error, if any
func Bind(g Goal, reg *Registry, ann *Annotations) error {
	b := NewBinder(reg, ann)
	if !b.Bind(g) {
		return b.Errors[0]
	}
	return nil
}

// Bind binds all declarations and statements of g into the global frame
func (b *Binder) Bind(g Goal) bool {
	switch g := g.(type) {
	case *Program:
		b.declareUnits(g.Uses)
		b.visitBlock(g.Block)
	case *Library:
		b.declareUnits(g.Uses)
		b.visitBlock(g.Block)
	case *Unit:
		b.declareUnits(g.IntfUses)
		b.visitDecls(g.Interface)
		b.declareUnits(g.ImplUses)
		b.visitDecls(g.Implementation)
		b.visitStmts(g.Init)
		b.visitStmts(g.Final)
	case *Package:
		b.declareUnits(g.Contains)
	default:
		panic(internalf("binding %T", g))
	}
	b.log.Debug("bound", slog.String("goal", g.GoalName()), slog.Int("errors", len(b.Errors)),
		slog.Int("warnings", len(b.Warnings)))
	return len(b.Errors) == 0
}

func (b *Binder) errorAt(line uint32, err error) {
	b.Errors = append(b.Errors, &BindError{Line: line, Path: b.Path, Err: err})
	b.log.Debug("error", slog.Int("line", int(line)), slog.String("err", err.Error()))
}

func (b *Binder) warnAt(line uint32, err error) {
	b.Warnings = append(b.Warnings, &BindError{Line: line, Path: b.Path, Err: err})
}

func (b *Binder) unresolved(line uint32, name string) {
	err := registryErr(ErrNotFound, name, b.reg.Top())
	if b.cfg.Parser.Strict {
		b.errorAt(line, err)
	} else {
		b.warnAt(line, err)
	}
}

// lookupFailed reports err; an ancestor type which is not declared at all is
// treated like an unresolved name
func (b *Binder) lookupFailed(line uint32, err error) {
	if errors.Is(err, ErrCompositeNotFound) && !b.cfg.Parser.Strict {
		b.warnAt(line, err)
		return
	}
	b.errorAt(line, err)
}

func (b *Binder) info(line uint32) NodeInfo {
	return NodeInfo{ID: b.ann.NewID(), Line: line}
}

// register puts d into the registry. Declarations with a frame of their own
// are registered from inside a temporary frame so they land in the current one.
func (b *Binder) register(line uint32, name string, d Decl) bool {
	if createsContext(d) {
		b.reg.EnterOwnedContext(name, d)
		defer b.reg.LeaveContext()
	}
	if err := b.reg.RegisterDeclaration(name, d); err != nil {
		b.errorAt(line, err)
		return false
	}
	return true
}

func (b *Binder) declareUnits(refs []*UnitRef) {
	for _, u := range refs {
		b.register(u.Line, u.Name, u)
	}
}

///// declarations

func isTypeDecl(d Decl) bool {
	switch d.(type) {
	case *TypeDecl, *CompositeDecl:
		return true
	}
	return false
}

// visitDecls registers each run of type declarations before binding any of
// them, so types of one section can refer to each other
func (b *Binder) visitDecls(decls []Decl) {
	for i := 0; i < len(decls); {
		if !isTypeDecl(decls[i]) {
			b.visitDecl(decls[i])
			i++
			continue
		}
		j := i
		for j < len(decls) && isTypeDecl(decls[j]) {
			j++
		}
		for _, d := range decls[i:j] {
			b.declareType(d)
		}
		for _, d := range decls[i:j] {
			switch d := d.(type) {
			case *TypeDecl:
				b.visitType(d.Type, d.Name)
			case *CompositeDecl:
				b.visitComposite(d)
			}
		}
		i = j
	}
}

func isForward(d Decl) bool {
	td, ok := d.(*TypeDecl)
	if !ok {
		return false
	}
	switch t := td.Type.(type) {
	case *ClassType:
		return t.Forward
	case *InterfaceType:
		return t.Forward
	}
	return false
}

func (b *Binder) declareType(d Decl) {
	name := d.DeclName()
	if c, ok := d.(*CompositeDecl); ok && isForward(b.reg.LookupLocal(name)) {
		if err := b.reg.ReplaceDeclaration(name, c); err != nil {
			b.errorAt(c.Line, err)
		}
		return
	}
	b.register(d.Info().Line, name, d)
}

func (b *Binder) visitDecl(d Decl) {
	switch d := d.(type) {
	case *VarDecl:
		b.visitType(d.Type, "")
		if d.Init != nil {
			b.visitExpr(d.Init)
		}
		if d.Absolute != "" && b.reg.GetDeclaration(d.Absolute) == nil {
			b.unresolved(d.Line, d.Absolute)
		}
		b.register(d.Line, d.Name, d)
	case *ConstDecl:
		b.visitConst(d)
	case *CallableDecl:
		b.visitCallable(d)
	case *LabelDecl:
		b.register(d.Line, d.Name, d)
	case *ExportDecl:
		if _, err := b.reg.FetchCallable(d.Name); err != nil {
			b.errorAt(d.Line, err)
		}
		b.visitExpr(d.ExportName)
		b.visitExpr(d.Index)
	case *TypeDecl, *CompositeDecl:
		b.visitDecls([]Decl{d})
	default:
		panic(internalf("unexpected declaration %T", d))
	}
}

func (b *Binder) visitConst(d *ConstDecl) {
	b.visitType(d.Type, "")
	b.visitExpr(d.Value)
	if !b.register(d.Line, d.Name, d) || d.Kind == ConstTyped {
		return
	}
	v, err := b.fold.Fold(d.Value)
	switch {
	case err != nil:
		b.errorAt(d.Line, fmt.Errorf("constant %s: %w", d.Name, err))
	case v == nil:
		b.warnAt(d.Line, fmt.Errorf("constant %s: %w", d.Name, ErrNotConstant))
	}
}

// visitComposite registers the members of c in a frame of their own and
// checks that the heritage of c can be loaded
func (b *Binder) visitComposite(c *CompositeDecl) {
	b.reg.EnterOwnedContext(c.Name, c)
	var props []*PropertyDecl
	for _, m := range c.Members {
		switch m := m.(type) {
		case *VarDecl:
			b.visitType(m.Type, "")
			b.register(m.Line, m.Name, m)
		case *CallableDecl:
			b.visitCallable(m)
		case *PropertyDecl:
			b.reg.EnterContext(m.Name)
			b.visitParams(m.Params)
			b.reg.LeaveContext()
			b.visitType(m.Type, "")
			b.visitExpr(m.Index)
			b.visitExpr(m.Default)
			b.visitExpr(m.Stored)
			b.register(m.Line, m.Name, m)
			props = append(props, m)
		}
	}
	if rt, ok := c.Type.(*RecordType); ok && rt.Variant != nil {
		b.visitVariant(rt.Variant)
	}
	if it, ok := c.Type.(*InterfaceType); ok {
		b.visitExpr(it.GUID)
	}
	b.reg.LeaveContext()

	for _, p := range props {
		for _, acc := range []string{p.Read, p.Write} {
			if acc == "" {
				continue
			}
			if _, err := b.reg.FetchMember(c.Name, acc); err != nil {
				b.lookupFailed(p.Line, err)
			}
		}
	}
	n, err := b.reg.LoadHeritageContext(c.Name)
	if err != nil {
		b.lookupFailed(c.Line, err)
		return
	}
	for i := 0; i <= n; i++ {
		b.reg.LeaveContext()
	}
}

func (b *Binder) visitVariant(vp *VariantPart) {
	b.visitType(vp.TagType, "")
	if vp.Tag != "" {
		b.register(vp.Line, vp.Tag, &VarDecl{NodeInfo: b.info(vp.Line), Name: vp.Tag, Type: vp.TagType, Kind: VarField})
	}
	for _, vc := range vp.Cases {
		for _, l := range vc.Labels {
			b.visitExpr(l)
		}
		for _, f := range vc.Fields {
			b.visitType(f.Type, "")
			b.register(f.Line, f.Name, f)
		}
	}
}

///// routines

func overloads(prev, d *CallableDecl) bool {
	return prev.HasDirective(TokOVERLOAD) && d.HasDirective(TokOVERLOAD)
}

// completes reports whether d is the body of the heading prev, which is a
// forward declaration or a unit interface prototype
func completes(prev, d *CallableDecl) bool {
	return prev.Body == nil && prev.External == nil && (d.Body != nil || d.External != nil)
}

func (b *Binder) visitCallable(d *CallableDecl) {
	if d.Owner != "" && d.Body != nil {
		b.visitMethod(d)
		return
	}
	prev := b.reg.LookupLocal(d.Name)
	b.reg.EnterOwnedContext(d.Name, d)
	switch prev := prev.(type) {
	case nil:
		b.registerRoutine(d)
	case *CallableDecl:
		switch {
		case completes(prev, d) && !overloads(prev, d):
			if err := b.reg.ReplaceDeclaration(d.Name, d); err != nil {
				b.errorAt(d.Line, err)
			}
		case overloads(prev, d):
			b.addOverload(d)
		default:
			b.registerRoutine(d)
		}
	default:
		b.registerRoutine(d)
	}
	b.visitRoutine(d)
	b.reg.LeaveContext()
}

func (b *Binder) registerRoutine(d *CallableDecl) {
	if err := b.reg.RegisterDeclaration(d.Name, d); err != nil {
		b.errorAt(d.Line, err)
		return
	}
	if d.HasDirective(TokOVERLOAD) {
		b.addOverload(d)
	}
}

// addOverload records d under its qualified name; the registry keeps the
// first declaration of the name
func (b *Binder) addOverload(d *CallableDecl) {
	key := foldName(d.QualifiedName())
	b.Overloads[key] = append(b.Overloads[key], d)
}

// visitMethod binds a method body inside the members of its type
func (b *Binder) visitMethod(d *CallableDecl) {
	mc, err := b.reg.EnterMethodContext(d.Owner, d.Name)
	if err != nil {
		b.lookupFailed(d.Line, err)
		if !errors.Is(err, ErrCompositeNotFound) {
			return
		}
		// the body is still bound, without the members
		b.reg.EnterOwnedContext(d.Name, d)
		b.registerSelf(d)
		b.visitRoutine(d)
		b.reg.LeaveContext()
		return
	}
	if proto, ok := b.reg.Top().Owner.(*CallableDecl); ok {
		b.ann.Bind(d, proto)
	}
	b.registerSelf(d)
	b.visitRoutine(d)
	b.reg.LeaveMethodContext(mc)
}

func (b *Binder) registerSelf(d *CallableDecl) {
	self := &VarDecl{NodeInfo: b.info(d.Line), Name: "Self", Type: &NamedType{NodeInfo: b.info(d.Line), Name: d.Owner}}
	b.register(d.Line, self.Name, self)
	b.Implicit[self] = d
}

// visitRoutine binds the parameters and the body of d in the frame on top
func (b *Binder) visitRoutine(d *CallableDecl) {
	b.visitParams(d.Params)
	b.visitType(d.Result, "")
	if d.Body == nil {
		return
	}
	if d.IsFunction() {
		res := &VarDecl{NodeInfo: b.info(d.Line), Name: ResultName, Type: d.Result, Kind: VarResult}
		b.register(d.Line, ResultName, res)
		b.Implicit[res] = d
	}
	b.routines = append(b.routines, b.reg.Depth()-1)
	b.visitBlock(d.Body)
	b.routines = b.routines[:len(b.routines)-1]
}

func (b *Binder) visitParams(params []*ParamDecl) {
	for _, p := range params {
		b.visitType(p.Type, "")
		b.visitExpr(p.Default)
		b.register(p.Line, p.Name, p)
	}
}

func (b *Binder) visitBlock(blk *Block) {
	if blk == nil {
		return
	}
	b.visitDecls(blk.Decls)
	b.visitStmt(blk.Body)
}

///// types

// visitType resolves the names a type refers to; name is the declared name
// of t, if any
func (b *Binder) visitType(t TypeNode, name string) {
	switch t := t.(type) {
	case nil, *OrdinalType, *RealType, *BuiltinPointerType, *BuiltinStringType, *VariantType:
	case *NamedType:
		b.resolveType(t)
	case *StringType:
		if t.Length != nil {
			b.visitExpr(t.Length)
			b.constant(t.Length)
		}
	case *SubrangeType:
		b.visitExpr(t.Low)
		b.visitExpr(t.High)
		if _, err := b.fold.SubrangeSize(t); err != nil {
			b.errorAt(t.Line, err)
		}
	case *EnumType:
		b.visitEnum(t, name)
	case *PointerType:
		b.visitType(t.Target, "")
	case *ClassRefType:
		b.visitType(t.Target, "")
	case *ArrayType:
		for _, ix := range t.Index {
			b.visitType(ix, "")
		}
		b.visitType(t.Elem, "")
	case *SetType:
		b.visitType(t.Elem, "")
	case *FileType:
		b.visitType(t.Elem, "")
	case *RecordType:
		b.reg.EnterContext("record")
		for _, m := range t.Members {
			if f, ok := m.(*VarDecl); ok {
				b.visitType(f.Type, "")
				b.register(f.Line, f.Name, f)
			}
		}
		if t.Variant != nil {
			b.visitVariant(t.Variant)
		}
		b.reg.LeaveContext()
	case *ProcType:
		b.reg.EnterContext("proc")
		b.visitParams(t.Params)
		b.visitType(t.Result, "")
		b.reg.LeaveContext()
	case *ClassType, *InterfaceType:
		// only forward declarations get here
	default:
		panic(internalf("unexpected type %T", t))
	}
}

func (b *Binder) resolveType(t *NamedType) {
	d := b.reg.GetDeclaration(t.Name)
	if d == nil {
		if i := strings.LastIndexByte(t.Name, '.'); i >= 0 {
			d = b.reg.GetDeclaration(t.Name[i+1:])
		}
	}
	switch d.(type) {
	case *TypeDecl, *CompositeDecl:
		b.ann.Bind(t, d)
	case nil:
		b.unresolved(t.Line, t.Name)
	default:
		b.errorAt(t.Line, registryErr(ErrInvalidIdentifier, t.Name, b.reg.Top()))
	}
}

// visitEnum registers the members in the current frame with their ordinals
func (b *Binder) visitEnum(t *EnumType, name string) {
	if name == "" {
		name = fmt.Sprintf("enum@%d", t.Line)
	}
	var next uint64
	for _, m := range t.Members {
		if m.Value != nil {
			b.visitExpr(m.Value)
			if v, ok := b.constant(m.Value).(IntegralValue); ok {
				next = v.Bits
			}
		}
		if b.register(m.Line, m.Name, m) {
			b.ann.SetConst(m, t, EnumValue(name, next))
		}
		next++
	}
}

// constant folds e and reports an error if it is not constant
func (b *Binder) constant(e Expr) ConstantValue {
	v, err := b.fold.Fold(e)
	switch {
	case err != nil:
		b.errorAt(e.Info().Line, err)
	case v == nil:
		b.errorAt(e.Info().Line, ErrNotConstant)
	}
	return v
}

///// statements

func (b *Binder) visitStmts(stmts []Stmt) {
	for _, s := range stmts {
		b.visitStmt(s)
	}
}

func (b *Binder) visitStmt(s Stmt) {
	switch s := s.(type) {
	case nil, *EmptyStmt, *BreakStmt, *ContinueStmt, *AsmStmt:
	case *CompoundStmt:
		b.visitStmts(s.Stmts)
	case *AssignStmt:
		if _, ok := b.reg.RewriteResultTarget(s.Target, b.ann); !ok {
			b.visitExpr(s.Target)
		}
		b.visitExpr(s.Value)
	case *CallStmt:
		b.visitExpr(s.Call)
	case *IfStmt:
		b.visitExpr(s.Cond)
		b.visitStmt(s.Then)
		b.visitStmt(s.Else)
	case *CaseStmt:
		b.visitCase(s)
	case *ForStmt:
		b.loopVar(s.Line, s.Var)
		b.visitExpr(s.From)
		b.visitExpr(s.To)
		b.visitStmt(s.Body)
	case *ForInStmt:
		b.loopVar(s.Line, s.Var)
		b.visitExpr(s.Coll)
		b.visitStmt(s.Body)
	case *WhileStmt:
		b.visitExpr(s.Cond)
		b.visitStmt(s.Body)
	case *RepeatStmt:
		b.visitStmts(s.Body)
		b.visitExpr(s.Cond)
	case *WithStmt:
		b.visitWith(s)
	case *TryExceptStmt:
		b.visitStmts(s.Body)
		for _, h := range s.Handlers {
			b.visitHandler(h)
		}
		b.visitStmts(s.Else)
		b.visitStmts(s.Default)
	case *TryFinallyStmt:
		b.visitStmts(s.Body)
		b.visitStmts(s.Finally)
	case *RaiseStmt:
		b.visitExpr(s.Exception)
		b.visitExpr(s.At)
	case *GotoStmt:
		b.label(s.Line, s.Label)
	case *LabeledStmt:
		b.label(s.Line, s.Label)
		b.visitStmt(s.Stmt)
	default:
		panic(internalf("unexpected statement %T", s))
	}
}

func (b *Binder) loopVar(line uint32, name string) {
	switch b.reg.GetDeclaration(name).(type) {
	case *VarDecl, *ParamDecl:
	case nil:
		b.unresolved(line, name)
	default:
		b.errorAt(line, registryErr(ErrInvalidIdentifier, name, b.reg.Top()))
	}
}

func (b *Binder) label(line uint32, name string) {
	if _, ok := b.reg.GetDeclaration(name).(*LabelDecl); !ok {
		b.errorAt(line, registryErr(ErrNotFound, name, b.reg.Top()))
	}
}

type caseRange struct {
	lo, hi IntegralValue
	single Expr
}

func (r caseRange) overlaps(o caseRange) bool {
	return r.lo.sameKind(o.lo) && !r.hi.Less(o.lo) && !o.hi.Less(r.lo)
}

// visitCase checks that the labels are constant and do not overlap
func (b *Binder) visitCase(s *CaseStmt) {
	b.visitExpr(s.Selector)
	var seen []caseRange
	for _, arm := range s.Arms {
		for _, l := range arm.Labels {
			var cr caseRange
			if r, ok := l.(*RangeExpr); ok {
				b.visitExpr(r.Low)
				b.visitExpr(r.High)
				lo, hi := b.caseValue(r.Low), b.caseValue(r.High)
				if lo == nil || hi == nil {
					continue
				}
				cr = caseRange{lo: *lo, hi: *hi}
				if !cr.lo.sameKind(cr.hi) || cr.hi.Less(cr.lo) {
					b.errorAt(r.Line, fmt.Errorf("%w: %v..%v", ErrInvalidRange, cr.lo, cr.hi))
					continue
				}
			} else {
				b.visitExpr(l)
				v := b.caseValue(l)
				if v == nil {
					continue
				}
				cr = caseRange{lo: *v, hi: *v, single: l}
			}
			for _, o := range seen {
				dup := cr.overlaps(o)
				if cr.single != nil && o.single != nil {
					dup = b.ann.Equal(cr.single, o.single)
				}
				if dup {
					b.errorAt(l.Info().Line, fmt.Errorf("%w: %v", ErrDuplicateCaseLabel, cr.lo))
					break
				}
			}
			seen = append(seen, cr)
		}
		b.visitStmt(arm.Body)
	}
	b.visitStmts(s.Else)
}

func (b *Binder) caseValue(e Expr) *IntegralValue {
	if b.constant(e) == nil {
		return nil
	}
	if !IsOrdinal(b.ann.TypeOf(b.ann.Effective(e))) {
		b.errorAt(e.Info().Line, fmt.Errorf("%w: case label is not ordinal", ErrNotConstant))
		return nil
	}
	v := b.ann.ValueIntegral(e)
	return &v
}

// visitWith makes the members of each object visible for the body
func (b *Binder) visitWith(s *WithStmt) {
	depth := b.reg.Depth()
	for _, obj := range s.Objects {
		b.visitExpr(obj)
		name := b.compositeOf(obj)
		if name == "" {
			continue
		}
		if _, err := b.reg.LoadHeritageContext(name); err != nil {
			b.lookupFailed(obj.Info().Line, err)
		}
	}
	b.visitStmt(s.Body)
	b.reg.unwindTo(depth)
}

func (b *Binder) visitHandler(h *ExceptHandler) {
	b.resolveType(h.Type)
	if h.Var == "" {
		b.visitStmt(h.Body)
		return
	}
	b.reg.EnterContext("on " + h.Var)
	v := &VarDecl{NodeInfo: b.info(h.Line), Name: h.Var, Type: h.Type}
	b.register(h.Line, h.Var, v)
	b.visitStmt(h.Body)
	b.reg.LeaveContext()
}

///// expressions

func (b *Binder) visitExprs(list []Expr) {
	for _, e := range list {
		b.visitExpr(e)
	}
}

func (b *Binder) visitExpr(e Expr) {
	switch e := e.(type) {
	case nil, *IntLiteral, *RealLiteral, *CharLiteral, *StringLiteral, *BoolLiteral, *NilLiteral, *ResultRef:
	case *UnresolvedName:
		b.resolveName(e, false)
	case *Identifier:
		if b.ann.DeclOf(e) == nil {
			if d := b.reg.GetDeclaration(e.Name); d != nil {
				b.ann.Bind(e, d)
			}
		}
	case *RoutineCall:
		if n, ok := e.Callee.(*UnresolvedName); ok {
			b.resolveName(n, true)
		} else {
			b.visitExpr(e.Callee)
		}
		b.visitExprs(e.Args)
		if c, ok := b.ann.DeclOf(b.ann.Effective(e.Callee)).(*CallableDecl); ok && c.Result != nil {
			b.ann.SetType(e, b.reg.ResolveType(c.Result))
		}
	case *FieldAccess:
		b.visitField(e)
	case *ArrayAccess:
		b.visitExpr(e.Array)
		b.visitExprs(e.Indexes)
	case *PointerDeref:
		b.visitExpr(e.Pointer)
	case *UnaryExpr:
		b.visitExpr(e.Operand)
	case *BinaryExpr:
		b.visitExpr(e.Left)
		b.visitExpr(e.Right)
	case *SetConstructor:
		b.visitExprs(e.Elems)
	case *RangeExpr:
		b.visitExpr(e.Low)
		b.visitExpr(e.High)
	case *ArrayConst:
		b.visitExprs(e.Elems)
	case *RecordConst:
		for _, f := range e.Fields {
			b.visitExpr(f.Value)
		}
	case *InheritedCall:
		b.visitInherited(e)
	default:
		panic(internalf("unexpected expression %T", e))
	}
}

// resolveName substitutes n by an Identifier, or by a call without
// arguments if n denotes a routine and is not itself called
func (b *Binder) resolveName(n *UnresolvedName, callee bool) {
	d, fi := b.reg.Lookup(n.Name)
	if d == nil {
		b.unresolved(n.Line, n.Name)
		return
	}
	id := &Identifier{NodeInfo: b.info(n.Line), Name: n.Name}
	b.ann.Bind(id, d)
	b.ann.Bind(n, d)
	if t := b.declType(d); t != nil {
		b.ann.SetType(id, t)
	}
	if b.nonLocal(d, fi) {
		b.ann.MarkNonLocal(id)
		b.ann.MarkNonLocal(n)
	}
	var repl Expr = id
	if c, ok := d.(*CallableDecl); ok && !callee {
		call := &RoutineCall{NodeInfo: b.info(n.Line), Callee: id}
		if c.Result != nil {
			b.ann.SetType(call, b.reg.ResolveType(c.Result))
		}
		repl = call
	}
	b.ann.Substitute(n, repl)
}

// nonLocal reports a variable or parameter of an enclosing routine
func (b *Binder) nonLocal(d Decl, frame int) bool {
	switch d.(type) {
	case *VarDecl, *ParamDecl:
	default:
		return false
	}
	if len(b.routines) == 0 || frame >= b.routines[len(b.routines)-1] {
		return false
	}
	_, routine := b.reg.Frames()[frame].Owner.(*CallableDecl)
	return routine
}

func (b *Binder) declType(d Decl) TypeNode {
	var t TypeNode
	switch d := d.(type) {
	case *VarDecl:
		t = d.Type
	case *ParamDecl:
		t = d.Type
	case *ConstDecl:
		t = d.Type
	case *PropertyDecl:
		t = d.Type
	}
	if t == nil {
		return nil
	}
	return b.reg.ResolveType(t)
}

// compositeOf returns the name of the class, interface or record type the
// value of e has, or the empty string
func (b *Binder) compositeOf(e Expr) string {
	var t TypeNode
	switch d := b.ann.DeclOf(b.ann.Effective(e)).(type) {
	case *CompositeDecl:
		return d.Name
	case *VarDecl:
		t = d.Type
	case *ParamDecl:
		t = d.Type
	case *ConstDecl:
		t = d.Type
	case *PropertyDecl:
		t = d.Type
	}
	nt, ok := t.(*NamedType)
	if !ok {
		return ""
	}
	c, err := b.reg.FetchComposite(nt.Name)
	if err != nil {
		return ""
	}
	return c.Name
}

func (b *Binder) visitField(e *FieldAccess) {
	b.visitExpr(e.Object)
	if u, ok := b.ann.DeclOf(b.ann.Effective(e.Object)).(*UnitRef); ok {
		if d := b.reg.GetDeclaration(e.Field); d != nil {
			b.ann.Bind(e, d)
		} else {
			b.unresolved(e.Line, u.Name+"."+e.Field)
		}
		return
	}
	name := b.compositeOf(e.Object)
	if name == "" {
		return
	}
	m, err := b.reg.FetchMember(name, e.Field)
	if err != nil {
		b.lookupFailed(e.Line, err)
		return
	}
	b.ann.Bind(e, m)
	if t := b.declType(m); t != nil {
		b.ann.SetType(e, t)
	}
}

// visitInherited binds "inherited Name" to the member of an ancestor of the
// type whose method is being bound
func (b *Binder) visitInherited(e *InheritedCall) {
	b.visitExprs(e.Args)
	var mc *CallableDecl
	for _, f := range b.reg.Frames() {
		if c, ok := f.Owner.(*CallableDecl); ok && c.Owner != "" {
			mc = c
		}
	}
	if mc == nil {
		return
	}
	name := e.Method
	if name == "" {
		name = mc.Name
	}
	c, err := b.reg.FetchComposite(mc.Owner)
	if err != nil {
		return
	}
	for _, h := range b.reg.heritageOf(c) {
		if m, err := b.reg.FetchMember(h, name); err == nil {
			b.ann.Bind(e, m)
			return
		}
	}
	if e.Method != "" {
		b.errorAt(e.Line, registryErr(ErrMemberNotFound, mc.Owner+"."+name, b.reg.Top()))
	}
}
