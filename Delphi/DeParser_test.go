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
	"strings"
	"testing"
)

const shapesUnit = `unit Shapes;

interface

type
  TShape = class
  private
    FName: string;
  public
    constructor Create(const AName: string);
    function Area: Double; virtual;
    property Name: string read FName;
  end;

  TSquare = class(TShape)
  strict private
    FSide: Double;
  public
    function Area: Double; override;
  end;

function Twice(X: Integer): Integer;

implementation

constructor TShape.Create(const AName: string);
begin
  FName := AName;
end;

function TShape.Area: Double;
begin
  Area := 0;
end;

function TSquare.Area: Double;
begin
  Result := FSide * FSide;
end;

function Twice(X: Integer): Integer;
begin
  Twice := X * 2;
end;

end.
`

func parseOK(t *testing.T, cfg *Config, src string) (Goal, NodeID) {
	t.Helper()
	g, last, err := ParseString(cfg, src, "test.pas")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return g, last
}

func parseFails(t *testing.T, cfg *Config, src string) *Rejection {
	t.Helper()
	g, _, err := ParseString(cfg, src, "test.pas")
	if err == nil {
		t.Fatalf("parse should fail")
	}
	if g != nil {
		t.Errorf("a failed parse returns no goal")
	}
	var rej *Rejection
	if !errors.As(err, &rej) {
		t.Fatalf("error %v is not a rejection", err)
	}
	return rej
}

// bodyOf returns the statements of the main block of a program
func bodyOf(t *testing.T, g Goal) []Stmt {
	t.Helper()
	p, ok := g.(*Program)
	if !ok {
		t.Fatalf("goal is %T", g)
	}
	return p.Block.Body.(*CompoundStmt).Stmts
}

func program(body string) string {
	return "program Test;\nvar a, b, c, x: Integer;\nbegin\n" + body + "\nend.\n"
}

func assignedValue(t *testing.T, src string) Expr {
	t.Helper()
	g, _ := parseOK(t, nil, program(src))
	as, ok := bodyOf(t, g)[0].(*AssignStmt)
	if !ok {
		t.Fatalf("not an assignment: %T", bodyOf(t, g)[0])
	}
	return as.Value
}

func TestParseArithmeticPrecedence(t *testing.T) {
	add, ok := assignedValue(t, "x := 1 + 2 * 3").(*BinaryExpr)
	if !ok || add.Op != OpAdd {
		t.Fatalf("top is %#v", add)
	}
	if mul, ok := add.Right.(*BinaryExpr); !ok || mul.Op != OpMul {
		t.Fatalf("right operand is %#v", add.Right)
	}

	sub := assignedValue(t, "x := 10 - 2 - 3").(*BinaryExpr)
	if inner, ok := sub.Left.(*BinaryExpr); !ok || inner.Op != OpSub {
		t.Fatal("subtraction must be left associative")
	}

	mul := assignedValue(t, "x := -2 * 3").(*BinaryExpr)
	if u, ok := mul.Left.(*UnaryExpr); mul.Op != OpMul || !ok || u.Op != OpMinus {
		t.Fatal("unary minus binds tighter than *")
	}
}

func TestParseLogicalLooserThanComparison(t *testing.T) {
	and := assignedValue(t, "x := a = b and c").(*BinaryExpr)
	if and.Op != OpAnd {
		t.Fatalf("top operator %s", and.Op)
	}
	if eq, ok := and.Left.(*BinaryExpr); !ok || eq.Op != OpEq {
		t.Fatal("comparison should group first")
	}
	eq := assignedValue(t, "x := not a = b").(*BinaryExpr)
	if u, ok := eq.Left.(*UnaryExpr); eq.Op != OpEq || !ok || u.Op != OpNot {
		t.Fatal("not applies to the left operand only")
	}
}

func TestParseDanglingElse(t *testing.T) {
	g, _ := parseOK(t, nil, program("if a = 1 then if b = 2 then x := 1 else x := 2"))
	outer := bodyOf(t, g)[0].(*IfStmt)
	if outer.Else != nil {
		t.Fatal("else attached to the outer if")
	}
	if inner := outer.Then.(*IfStmt); inner.Else == nil {
		t.Fatal("inner if lost its else")
	}
}

func TestParseStatements(t *testing.T) {
	src := program(`case x of
  1, 2: a := 1;
  3..5: a := 2
else
  a := 3
end;
for x := 10 downto 1 do b := b + x;
repeat a := a - 1 until a = 0;
while a < 10 do a := a + 1;
try
  Writeln(a)
except
  on E: Exception do raise;
end;
with x do ;
begin end`)
	g, _ := parseOK(t, nil, src)
	stmts := bodyOf(t, g)
	cs := stmts[0].(*CaseStmt)
	if len(cs.Arms) != 2 || len(cs.Arms[0].Labels) != 2 || len(cs.Else) != 1 {
		t.Fatalf("case shape %+v", cs)
	}
	if _, ok := cs.Arms[1].Labels[0].(*RangeExpr); !ok {
		t.Error("3..5 should be a range label")
	}
	if f := stmts[1].(*ForStmt); !f.Down || f.Var != "x" {
		t.Errorf("for statement %+v", f)
	}
	if _, ok := stmts[2].(*RepeatStmt); !ok {
		t.Errorf("got %T", stmts[2])
	}
	te := stmts[4].(*TryExceptStmt)
	if len(te.Handlers) != 1 || te.Handlers[0].Var != "E" || te.Handlers[0].Type.Name != "Exception" {
		t.Errorf("handler %+v", te.Handlers)
	}
	call := te.Body[0].(*CallStmt).Call.(*RoutineCall)
	if n, ok := call.Callee.(*UnresolvedName); !ok || n.Name != "Writeln" || len(call.Args) != 1 {
		t.Errorf("call %+v", call)
	}
}

func TestParseFailsFastWithLine(t *testing.T) {
	rej := parseFails(t, nil, "program P;\nbegin\n  x := ;\nend.\n")
	if rej.Line != 3 {
		t.Errorf("line %d, want 3", rej.Line)
	}
	if rej.Path != "test.pas" {
		t.Errorf("path %q", rej.Path)
	}
	if !strings.Contains(rej.Error(), "unexpected ;") {
		t.Errorf("message %q", rej.Error())
	}

	rej = parseFails(t, nil, "program P;\nbegin\nend")
	if !strings.Contains(rej.Msg, "end of file") {
		t.Errorf("message %q", rej.Msg)
	}

	rej = parseFails(t, nil, "program P;\nbegin\n  x := 'abc\nend.")
	if rej.Line != 3 || rej.Msg != "non-terminated string" {
		t.Errorf("lexical error %+v", rej)
	}
}

func TestParseStopsAfterGoal(t *testing.T) {
	g, _ := parseOK(t, nil, "program P; begin end. this ? is never read")
	if g.GoalName() != "P" {
		t.Errorf("goal %q", g.GoalName())
	}
}

func TestParseDialectGating(t *testing.T) {
	old := DefaultConfig()
	old.Dialect.Version = "15.0.0"
	if err := old.Validate(); err != nil {
		t.Fatal(err)
	}
	forIn := program("for x in a do ;")
	parseOK(t, nil, forIn)
	rej := parseFails(t, old, forIn)
	if !strings.Contains(rej.Msg, "for-in loops not supported by dialect 15.0.0") || rej.Line != 4 {
		t.Errorf("rejection %+v", rej)
	}

	strict := "unit U; interface type T = class strict private F: Integer; end; implementation end."
	parseOK(t, nil, strict)
	parseFails(t, old, strict)

	rec := "unit U; interface type R = record X: Integer; procedure Clear; end; implementation end."
	parseOK(t, nil, rec)
	parseFails(t, old, rec)
}

func TestParseClassMembers(t *testing.T) {
	g, _ := parseOK(t, nil, shapesUnit)
	u := g.(*Unit)
	if len(u.Interface) != 3 || len(u.Implementation) != 4 {
		t.Fatalf("interface %d decls, implementation %d", len(u.Interface), len(u.Implementation))
	}
	shape := u.Interface[0].(*CompositeDecl)
	if shape.Name != "TShape" || shape.Kind != CompClass || len(shape.Members) != 4 {
		t.Fatalf("TShape %+v", shape)
	}
	if f := shape.Members[0].(*VarDecl); f.Visibility != VisPrivate || f.Kind != VarField {
		t.Errorf("FName %+v", f)
	}
	create := shape.Members[1].(*CallableDecl)
	if create.Kind != RoutineConstructor || create.Owner != "TShape" || create.Visibility != VisPublic {
		t.Errorf("Create %+v", create)
	}
	if create.Params[0].Kind != ParamConst {
		t.Errorf("AName kind %s", create.Params[0].Kind)
	}
	if area := shape.Members[2].(*CallableDecl); !area.HasDirective(TokVIRTUAL) || !area.IsFunction() {
		t.Errorf("Area %+v", area)
	}
	if prop := shape.Members[3].(*PropertyDecl); prop.Read != "FName" || prop.Write != "" {
		t.Errorf("property %+v", prop)
	}

	square := u.Interface[1].(*CompositeDecl)
	if len(square.Heritage) != 1 || square.Heritage[0] != "TShape" {
		t.Errorf("heritage %v", square.Heritage)
	}
	if f := square.Members[0].(*VarDecl); f.Visibility != VisStrictPrivate {
		t.Errorf("FSide visibility %s", f.Visibility)
	}

	impl := u.Implementation[0].(*CallableDecl)
	if impl.Owner != "TShape" || impl.Name != "Create" || impl.Body == nil {
		t.Errorf("method implementation %+v", impl)
	}
}

func TestParseNodeIDsAreUnique(t *testing.T) {
	g, last := parseOK(t, nil, shapesUnit)
	// names of one group share their type node
	seen := make(map[NodeID]Node)
	Inspect(g, func(n Node) bool {
		id := n.Info().ID
		if id == 0 || id > last {
			t.Errorf("%T has id %d, last is %d", n, id, last)
		}
		if prev, ok := seen[id]; ok && prev != n {
			t.Errorf("%T reuses id %d of %T", n, id, prev)
		}
		seen[id] = n
		return true
	})
}

func TestParseListsKeepOrder(t *testing.T) {
	g, _ := parseOK(t, nil, "program P;\nvar a, b, c: Integer;\nbegin\n  Writeln(a, b, c);\nend.")
	var names []string
	for _, d := range g.(*Program).Block.Decls {
		names = append(names, d.DeclName())
	}
	if got := strings.Join(names, " "); got != "a b c" {
		t.Errorf("variables %q", got)
	}
	call := bodyOf(t, g)[0].(*CallStmt).Call.(*RoutineCall)
	var args []string
	for _, a := range call.Args {
		args = append(args, a.(*UnresolvedName).Name)
	}
	if got := strings.Join(args, " "); got != "a b c" {
		t.Errorf("arguments %q", got)
	}
}

func TestParseBodilessTypes(t *testing.T) {
	g, _ := parseOK(t, nil, `program P;
type
  TFwd = class;
  TEmpty = class end;
  TChild = class(TEmpty) end;
  EMy = class(Exception) end;
  TShort = class(TEmpty);
  IFwd = interface;
  IEmpty = interface end;
  IGuid = interface(IEmpty) ['{6A1F6D3E-2C41-4C59-9B62-7E3A5D0C1F20}'] end;
  R = record F: class end end;
begin end.`)
	decls := g.(*Program).Block.Decls
	if len(decls) != 9 {
		t.Fatalf("%d declarations", len(decls))
	}
	tests := []struct {
		name     string
		forward  bool
		kind     CompositeKind
		heritage string
	}{
		{"TFwd", true, CompClass, ""},
		{"TEmpty", false, CompClass, ""},
		{"TChild", false, CompClass, "TEmpty"},
		{"EMy", false, CompClass, "Exception"},
		{"TShort", false, CompClass, "TEmpty"},
		{"IFwd", true, CompInterface, ""},
		{"IEmpty", false, CompInterface, ""},
		{"IGuid", false, CompInterface, "IEmpty"},
	}
	for i, tc := range tests {
		d := decls[i]
		if d.DeclName() != tc.name {
			t.Errorf("declaration %d is %s, want %s", i, d.DeclName(), tc.name)
			continue
		}
		if tc.forward {
			if !isForward(d) {
				t.Errorf("%s should be a forward declaration, got %T", tc.name, d)
			}
			continue
		}
		c, ok := d.(*CompositeDecl)
		if !ok || c.Kind != tc.kind || len(c.Members) != 0 {
			t.Errorf("%s: %#v", tc.name, d)
			continue
		}
		if got := strings.Join(c.Heritage, ","); got != tc.heritage {
			t.Errorf("%s heritage %q", tc.name, got)
		}
	}
	if it := decls[7].(*CompositeDecl).Type.(*InterfaceType); it.GUID == nil {
		t.Error("GUID lost")
	}
	rec := decls[8].(*CompositeDecl)
	if ct, ok := rec.Members[0].(*VarDecl).Type.(*ClassType); !ok || ct.Forward {
		t.Errorf("field type %#v", rec.Members[0].(*VarDecl).Type)
	}
}

func TestParseQualifiedSubrange(t *testing.T) {
	g, _ := parseOK(t, nil, "program P;\ntype\n  S = U.Lo..U.Hi;\n  T = Lo..Hi;\n  N = System.Integer;\nbegin end.")
	decls := g.(*Program).Block.Decls
	sr := decls[0].(*TypeDecl).Type.(*SubrangeType)
	for _, e := range []struct {
		bound Expr
		field string
	}{{sr.Low, "Lo"}, {sr.High, "Hi"}} {
		fa, ok := e.bound.(*FieldAccess)
		if !ok || fa.Field != e.field {
			t.Fatalf("bound %#v", e.bound)
		}
		if u, ok := fa.Object.(*UnresolvedName); !ok || u.Name != "U" {
			t.Errorf("qualifier %#v", fa.Object)
		}
	}
	plain := decls[1].(*TypeDecl).Type.(*SubrangeType)
	if lo, ok := plain.Low.(*UnresolvedName); !ok || lo.Name != "Lo" {
		t.Errorf("low bound %#v", plain.Low)
	}
	if nt, ok := decls[2].(*TypeDecl).Type.(*NamedType); !ok || nt.Name != "System.Integer" {
		t.Errorf("qualified type %#v", decls[2].(*TypeDecl).Type)
	}
}
