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
	"testing"
)

func bindSource(t *testing.T, cfg *Config, src string) (Goal, *Binder) {
	t.Helper()
	if cfg == nil {
		cfg = DefaultConfig()
	}
	g, last := parseOK(t, cfg, src)
	b := NewBinder(NewRegistry(cfg), NewAnnotations(last))
	b.Path = "test.pas"
	b.Bind(g)
	return g, b
}

func bindClean(t *testing.T, src string) (Goal, *Binder) {
	t.Helper()
	g, b := bindSource(t, nil, src)
	for _, e := range b.Errors {
		t.Errorf("error: %v", e)
	}
	for _, w := range b.Warnings {
		t.Errorf("warning: %v", w)
	}
	return g, b
}

func hasError(list []*BindError, kind error) bool {
	for _, e := range list {
		if errors.Is(e, kind) {
			return true
		}
	}
	return false
}

func TestBindUnitWithClasses(t *testing.T) {
	g, b := bindClean(t, shapesUnit)
	u := g.(*Unit)
	shape := u.Interface[0].(*CompositeDecl)

	create := u.Implementation[0].(*CallableDecl)
	if b.ann.DeclOf(create) != shape.Members[1] {
		t.Error("method body not bound to its heading")
	}

	// Area := 0 inside TShape.Area
	area := u.Implementation[1].(*CallableDecl)
	as := area.Body.Body.(*CompoundStmt).Stmts[0].(*AssignStmt)
	ref, ok := b.ann.Effective(as.Target).(*ResultRef)
	if !ok || ref.Routine != "Area" {
		t.Fatalf("target is %T", b.ann.Effective(as.Target))
	}
	res, ok := b.ann.DeclOf(ref).(*VarDecl)
	if !ok || res.Kind != VarResult || b.Implicit[res] != area {
		t.Errorf("result variable %+v", res)
	}

	// Twice := X * 2 completes the interface prototype
	twice := u.Implementation[3].(*CallableDecl)
	as = twice.Body.Body.(*CompoundStmt).Stmts[0].(*AssignStmt)
	if _, ok := b.ann.Effective(as.Target).(*ResultRef); !ok {
		t.Error("function name assignment not rewritten")
	}
	x := as.Value.(*BinaryExpr).Left
	if p, ok := b.ann.DeclOf(x).(*ParamDecl); !ok || p != twice.Params[0] {
		t.Error("X not bound to the parameter of the implementation")
	}

	// FName := AName in the constructor
	as = create.Body.Body.(*CompoundStmt).Stmts[0].(*AssignStmt)
	if b.ann.DeclOf(as.Target) != shape.Members[0] {
		t.Error("field not found through the method context")
	}
	if b.reg.Depth() != 2 {
		t.Errorf("registry left at depth %d", b.reg.Depth())
	}
}

func TestBindNamesAndCalls(t *testing.T) {
	g, b := bindClean(t, `program Calls;
var n: Integer;
function Next: Integer;
begin
  Next := n + 1;
end;
begin
  n := Next;
  n := Next();
  Writeln(n);
end.`)
	stmts := bodyOf(t, g)
	bare := b.ann.Effective(stmts[0].(*AssignStmt).Value)
	call, ok := bare.(*RoutineCall)
	if !ok || call.Args != nil {
		t.Fatalf("bare function name became %T", bare)
	}
	if ot, ok := b.ann.TypeOf(call).(*OrdinalType); !ok || ot.Name != "Integer" {
		t.Errorf("call type %#v", b.ann.TypeOf(call))
	}
	explicit := stmts[1].(*AssignStmt).Value.(*RoutineCall)
	if _, ok := b.ann.Effective(explicit.Callee).(*Identifier); !ok {
		t.Error("callee should stay a name")
	}
	target := b.ann.Effective(stmts[0].(*AssignStmt).Target)
	if id, ok := target.(*Identifier); !ok || b.ann.DeclOf(id) == nil {
		t.Errorf("n resolved to %T", target)
	}
}

func TestBindUnresolvedNames(t *testing.T) {
	src := "program P;\nbegin\n  Missing := 1;\nend."
	_, b := bindSource(t, nil, src)
	if len(b.Errors) != 0 || !hasError(b.Warnings, ErrNotFound) || b.Warnings[0].Line != 3 {
		t.Errorf("lenient: errors %v warnings %v", b.Errors, b.Warnings)
	}

	cfg := DefaultConfig()
	cfg.Parser.Strict = true
	g, b := bindSource(t, cfg, src)
	if !hasError(b.Errors, ErrNotFound) {
		t.Errorf("strict: errors %v", b.Errors)
	}
	if err := Bind(g, NewRegistry(cfg), NewAnnotations(1000)); !errors.Is(err, ErrNotFound) {
		t.Errorf("Bind returned %v", err)
	}
}

func TestBindRedeclaration(t *testing.T) {
	_, b := bindSource(t, nil, `program P;
var a: Integer;
var A: Char;
procedure Twice; begin end;
procedure Twice; begin end;
begin end.`)
	if len(b.Errors) != 2 || !hasError(b.Errors, ErrRedeclared) {
		t.Fatalf("errors %v", b.Errors)
	}
	if b.Errors[0].Line != 3 || b.Errors[1].Line != 5 {
		t.Errorf("lines %d %d", b.Errors[0].Line, b.Errors[1].Line)
	}
}

func TestBindForwardAndOverloads(t *testing.T) {
	_, b := bindClean(t, `program P;
procedure Later; forward;
function Pick(a: Integer): Integer; overload;
begin Pick := a; end;
function Pick(a, b: Integer): Integer; overload;
begin Pick := a + b; end;
procedure Later;
begin Pick(1); end;
begin Later; end.`)
	if got := len(b.Overloads["pick"]); got != 2 {
		t.Errorf("%d overloads of Pick", got)
	}
	c, err := b.reg.FetchCallable("Later")
	if err != nil || c.Body == nil {
		t.Error("forward declaration not completed")
	}
}

func TestBindOverloadedResultAssignment(t *testing.T) {
	g, b := bindClean(t, `program P;
var n: Integer;
procedure F(s: string); overload;
begin end;
function F(a: Integer): Integer; overload;
begin
  F := a;
end;
begin end.`)
	fn := g.(*Program).Block.Decls[2].(*CallableDecl)
	as := fn.Body.Body.(*CompoundStmt).Stmts[0].(*AssignStmt)
	ref, ok := b.ann.Effective(as.Target).(*ResultRef)
	if !ok {
		t.Fatalf("target is %T", b.ann.Effective(as.Target))
	}
	if res, ok := b.ann.DeclOf(ref).(*VarDecl); !ok || b.Implicit[res] != fn {
		t.Error("Result of the wrong overload")
	}
}

func TestBindCaseLabels(t *testing.T) {
	_, b := bindSource(t, nil, `program P;
var x: Integer;
begin
  case x of
    1, 2: ;
    3..5: ;
    4: ;
    7, 7: ;
    9..8: ;
  end;
end.`)
	dups := 0
	for _, e := range b.Errors {
		if errors.Is(e, ErrDuplicateCaseLabel) {
			dups++
		}
	}
	if dups != 2 {
		t.Errorf("%d duplicate labels reported: %v", dups, b.Errors)
	}
	if !hasError(b.Errors, ErrInvalidRange) {
		t.Error("9..8 should be an invalid range")
	}
}

func TestBindWithAndHandlers(t *testing.T) {
	g, b := bindClean(t, `program P;
type
  TPoint = record
    X, Y: Integer;
  end;
var pt: TPoint;
begin
  with pt do X := 1;
  try
    pt.Y := 2;
  except
    on E: Exception do Writeln(E.Message);
  end;
end.`)
	stmts := bodyOf(t, g)
	with := stmts[0].(*WithStmt)
	target := with.Body.(*AssignStmt).Target
	if f, ok := b.ann.DeclOf(target).(*VarDecl); !ok || f.Name != "X" {
		t.Errorf("X inside with bound to %v", b.ann.DeclOf(target))
	}
	te := stmts[1].(*TryExceptStmt)
	fa := te.Body[0].(*AssignStmt).Target.(*FieldAccess)
	if f, ok := b.ann.DeclOf(fa).(*VarDecl); !ok || f.Name != "Y" {
		t.Error("pt.Y not bound")
	}
	msg := te.Handlers[0].Body.(*CallStmt).Call.(*RoutineCall).Args[0].(*FieldAccess)
	if p, ok := b.ann.DeclOf(msg).(*PropertyDecl); !ok || p.Name != "Message" {
		t.Error("E.Message not bound to the property of Exception")
	}
	if b.reg.Depth() != 2 {
		t.Errorf("depth %d", b.reg.Depth())
	}
}

func TestBindInheritedAndHeritage(t *testing.T) {
	_, b := bindSource(t, nil, `unit U;
interface
type
  TBase = class
    procedure Run; virtual;
  end;
  TChild = class(TBase)
    procedure Run; override;
  end;
  TOrphan = class(TNowhere)
  end;
  TLoopA = class(TLoopB) end;
  TLoopB = class(TLoopA) end;
implementation
procedure TBase.Run; begin end;
procedure TChild.Run;
begin
  inherited;
  inherited Run;
  inherited Walk;
end;
end.`)
	if !hasError(b.Warnings, ErrCompositeNotFound) {
		t.Errorf("unknown ancestor should warn: %v", b.Warnings)
	}
	if !hasError(b.Errors, ErrCircularHeritage) {
		t.Errorf("cycle not reported: %v", b.Errors)
	}
	if !hasError(b.Errors, ErrMemberNotFound) {
		t.Errorf("inherited Walk not reported: %v", b.Errors)
	}
	if b.reg.Depth() != 2 {
		t.Errorf("depth %d", b.reg.Depth())
	}
}

func TestBindNonLocalMarks(t *testing.T) {
	g, b := bindClean(t, `program P;
var g: Integer;
procedure Outer;
var v: Integer;
  procedure Inner;
  begin
    v := g;
  end;
begin
  v := 1;
end;
begin end.`)
	outer := g.(*Program).Block.Decls[1].(*CallableDecl)
	inner := outer.Body.Decls[1].(*CallableDecl)
	as := inner.Body.Body.(*CompoundStmt).Stmts[0].(*AssignStmt)
	if !b.ann.IsNonLocal(as.Target) {
		t.Error("v inside Inner is non-local")
	}
	if b.ann.IsNonLocal(as.Value) {
		t.Error("globals are not non-local")
	}
	own := outer.Body.Body.(*CompoundStmt).Stmts[0].(*AssignStmt)
	if b.ann.IsNonLocal(own.Target) {
		t.Error("v inside Outer is local")
	}
}
