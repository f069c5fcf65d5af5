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
	"reflect"
	"testing"
)

func field(name string, vis Visibility) *VarDecl {
	return &VarDecl{Name: name, Type: &NamedType{Name: "Integer"}, Kind: VarField, Visibility: vis}
}

func class(name string, heritage []string, members ...Member) *CompositeDecl {
	for _, m := range members {
		if c, ok := m.(*CallableDecl); ok {
			c.Owner = name
		}
	}
	return &CompositeDecl{Name: name, Kind: CompClass, Heritage: heritage, Members: members,
		Type: &ClassType{Heritage: heritage, Members: members}}
}

func iface(name string, heritage ...string) *CompositeDecl {
	return &CompositeDecl{Name: name, Kind: CompInterface, Heritage: heritage, Type: &InterfaceType{Heritage: heritage}}
}

func mustRegister(t *testing.T, r *Registry, ds ...Decl) {
	t.Helper()
	for _, d := range ds {
		if err := r.RegisterDeclaration(d.DeclName(), d); err != nil {
			t.Fatal(err)
		}
	}
}

func frameNames(fs []*Frame) []string {
	res := make([]string, len(fs))
	for i, f := range fs {
		res[i] = f.Name
	}
	return res
}

func TestRegistryStartsWithRuntimeAndGlobal(t *testing.T) {
	r := NewRegistry(nil)
	if got := frameNames(r.Frames()); !reflect.DeepEqual(got, []string{RuntimeFrame, GlobalFrame}) {
		t.Fatalf("frames %v", got)
	}
	d, idx := r.Lookup("INTEGER")
	if d == nil || idx != 0 {
		t.Fatalf("Integer found in frame %d", idx)
	}
	if _, err := FetchType[*OrdinalType](r, "integer"); err != nil {
		t.Error(err)
	}
	if _, err := FetchType[*RealType](r, "Integer"); !errors.Is(err, ErrInvalidIdentifier) {
		t.Errorf("got %v", err)
	}
	if c, err := r.FetchComposite("IUnknown"); err != nil || c.Name != "IInterface" {
		t.Errorf("IUnknown alias: %v %v", c, err)
	}
	if s, ok := r.Builtin("string").(*BuiltinStringType); !ok || s.Name != "UnicodeString" {
		t.Errorf("string is %#v", r.Builtin("string"))
	}
}

func TestRegistryDialectStringType(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dialect.Version = "15.0.0"
	r := NewRegistry(cfg)
	if got := r.DefaultString(); got != "AnsiString" {
		t.Errorf("default string %s", got)
	}
	if s, ok := r.Builtin("string").(*BuiltinStringType); !ok || s.Name != "AnsiString" {
		t.Errorf("string is %#v", r.Builtin("string"))
	}
}

func TestRegistryShadowingAndLeave(t *testing.T) {
	r := NewRegistry(nil)
	outer := &VarDecl{Name: "x"}
	inner := &VarDecl{Name: "X"}
	mustRegister(t, r, outer)
	r.EnterContext("proc")
	mustRegister(t, r, inner)
	if d, idx := r.Lookup("x"); d != inner || idx != 2 {
		t.Fatalf("inner lookup %v %d", d, idx)
	}
	if r.LookupLocal("integer") != nil {
		t.Error("LookupLocal must not search outer frames")
	}
	if name := r.LeaveContext(); name != "proc" {
		t.Errorf("left %q", name)
	}
	if r.GetDeclaration("x") != outer {
		t.Error("outer declaration not visible again")
	}
}

func TestRegistryRedeclaration(t *testing.T) {
	r := NewRegistry(nil)
	first := &VarDecl{Name: "Count"}
	mustRegister(t, r, first)
	err := r.RegisterDeclaration("count", &ConstDecl{Name: "count"})
	if !errors.Is(err, ErrRedeclared) {
		t.Fatalf("got %v", err)
	}
	var re *RegistryError
	if !errors.As(err, &re) || re.Frame != GlobalFrame || re.Name != "count" {
		t.Errorf("error details %+v", re)
	}
	if r.GetDeclaration("COUNT") != first {
		t.Error("failed registration replaced the first declaration")
	}
	if err := r.RegisterDeclaration("", &VarDecl{}); !errors.Is(err, ErrInvalidIdentifier) {
		t.Errorf("empty name: %v", err)
	}
	// shadowing a builtin is fine
	mustRegister(t, r, &VarDecl{Name: "Integer"})
}

func TestRegistryEnterThenRegister(t *testing.T) {
	r := NewRegistry(nil)
	fn := &CallableDecl{Name: "Sum", Kind: RoutineFunction, Result: &NamedType{Name: "Integer"}}
	r.EnterOwnedContext("Sum", fn)
	mustRegister(t, r, fn)
	if r.LookupLocal("Sum") != nil {
		t.Error("routine registered in its own frame")
	}
	if r.Frames()[1].Lookup("sum") != fn {
		t.Error("routine not in the enclosing frame")
	}
	if r.Top().Owner != fn {
		t.Error("frame owner not set")
	}
	r.LeaveContext()

	fwd := &CallableDecl{Name: "Later", Forward: true}
	mustRegister(t, r, fwd)
	impl := &CallableDecl{Name: "Later"}
	if err := r.ReplaceDeclaration("later", impl); err != nil {
		t.Fatal(err)
	}
	if r.GetDeclaration("Later") != impl {
		t.Error("forward declaration not replaced")
	}
	if err := r.ReplaceDeclaration("Nowhere", impl); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v", err)
	}
}

func TestRegistryHeritageOrder(t *testing.T) {
	r := NewRegistry(nil)
	a := class("A", nil, field("FA", VisPublic), field("Hidden", VisStrictPrivate))
	b := class("B", []string{"A"}, field("FB", VisProtected))
	c := class("C", []string{"B"}, field("FC", VisPrivate))
	mustRegister(t, r, a, b, c)

	depth := r.Depth()
	n, err := r.LoadHeritageContext("c")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("%d ancestor frames, want 3", n)
	}
	want := []string{RuntimeFrame, GlobalFrame, "TObject", "A", "B", "C"}
	if got := frameNames(r.Frames()); !reflect.DeepEqual(got, want) {
		t.Fatalf("frames %v", got)
	}
	if d, idx := r.Lookup("FA"); d == nil || idx != 3 {
		t.Errorf("FA in frame %d", idx)
	}
	if r.Frames()[3].Lookup("Hidden") != nil {
		t.Error("strict private member inherited")
	}
	if r.GetDeclaration("Free") == nil {
		t.Error("TObject members missing")
	}
	r.unwindTo(depth)

	if _, err := r.FetchMember("C", "FA"); err != nil {
		t.Error(err)
	}
	if _, err := r.FetchMember("C", "Hidden"); !errors.Is(err, ErrMemberNotFound) {
		t.Errorf("Hidden: %v", err)
	}
	if _, err := r.FetchField("C", "Free"); !errors.Is(err, ErrFieldNotFound) {
		t.Errorf("Free is not a field: %v", err)
	}
	if _, err := r.FetchMember("Nope", "X"); !errors.Is(err, ErrCompositeNotFound) {
		t.Errorf("got %v", err)
	}
}

func TestRegistryHeritageCycle(t *testing.T) {
	r := NewRegistry(nil)
	mustRegister(t, r, class("X", []string{"Y"}), class("Y", []string{"X"}))
	depth := r.Depth()
	if _, err := r.LoadHeritageContext("X"); !errors.Is(err, ErrCircularHeritage) {
		t.Fatalf("got %v", err)
	}
	if r.Depth() != depth {
		t.Errorf("depth %d after failure, want %d", r.Depth(), depth)
	}
	if _, err := r.FetchMember("X", "Missing"); !errors.Is(err, ErrCircularHeritage) {
		t.Errorf("member search: %v", err)
	}
}

func TestRegistryHeritageShadowing(t *testing.T) {
	r := NewRegistry(nil)
	base := class("Base", nil, field("Draw", VisPublic), field("Size", VisPublic), field("Tag", VisPublic),
		field("Only", VisPublic))
	a := class("A", []string{"Base"}, field("Draw", VisPublic), field("Size", VisPublic))
	b := class("B", nil, field("Draw", VisPublic), field("Tag", VisPublic))
	d := class("D", []string{"A", "B"}, field("Draw", VisPublic))
	mustRegister(t, r, base, a, b, d)

	n, err := r.LoadHeritageContext("D")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{RuntimeFrame, GlobalFrame, "TObject", "Base", "A", "B", "D"}
	if got := frameNames(r.Frames()); !reflect.DeepEqual(got, want) {
		t.Fatalf("frames %v", got)
	}
	if n != 4 {
		t.Errorf("%d ancestor frames, want 4", n)
	}

	tests := []struct {
		name  string
		owner *CompositeDecl
		frame int
	}{
		{"Draw", d, 6},
		{"Tag", b, 5},
		{"Size", a, 4},
		{"Only", base, 3},
	}
	for _, tc := range tests {
		got, idx := r.Lookup(tc.name)
		if idx != tc.frame {
			t.Errorf("%s found in frame %d, want %d", tc.name, idx, tc.frame)
		}
		if got != r.Frames()[tc.frame].Lookup(tc.name) || r.Frames()[tc.frame].Owner != tc.owner {
			t.Errorf("%s not taken from %s", tc.name, tc.owner.Name)
		}
	}
}

func TestRegistryDiamondLoadedOnce(t *testing.T) {
	r := NewRegistry(nil)
	mustRegister(t, r,
		iface("IBase"),
		iface("ILeft", "IBase"),
		iface("IRight", "IBase"),
		class("TBoth", []string{"TObject", "ILeft", "IRight"}))
	n, err := r.LoadHeritageContext("TBoth")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{RuntimeFrame, GlobalFrame, "TObject", "IInterface", "IBase", "ILeft", "IRight", "TBoth"}
	if got := frameNames(r.Frames()); !reflect.DeepEqual(got, want) {
		t.Fatalf("frames %v", got)
	}
	if n != 5 {
		t.Errorf("%d ancestor frames", n)
	}
}

func TestRegistryMethodContext(t *testing.T) {
	r := NewRegistry(nil)
	m := &CallableDecl{Name: "Paint", Kind: RoutineProcedure}
	mustRegister(t, r, class("TView", nil, field("FColor", VisPrivate), m))
	depth := r.Depth()
	mc, err := r.EnterMethodContext("TView", "paint")
	if err != nil {
		t.Fatal(err)
	}
	if r.Top().Owner != m || mc.Ancestors != 1 {
		t.Errorf("method frame %+v, ancestors %d", r.Top(), mc.Ancestors)
	}
	if r.GetDeclaration("FColor") == nil {
		t.Error("own private field not visible in method")
	}
	r.LeaveMethodContext(mc)
	if r.Depth() != depth {
		t.Errorf("depth %d, want %d", r.Depth(), depth)
	}
	if _, err := r.EnterMethodContext("TView", "Resize"); !errors.Is(err, ErrMemberNotFound) {
		t.Errorf("got %v", err)
	}
	if r.Depth() != depth {
		t.Error("failed EnterMethodContext left frames behind")
	}
}

func TestRegistryLeaveRuntimePanics(t *testing.T) {
	r := NewRegistry(nil)
	r.LeaveContext()
	defer func() {
		if _, ok := recover().(*InternalError); !ok {
			t.Error("expected an internal error")
		}
	}()
	r.LeaveContext()
}

func TestRegistryRewriteResultTarget(t *testing.T) {
	r := NewRegistry(nil)
	ann := NewAnnotations(100)
	lv := &UnresolvedName{NodeInfo: NodeInfo{ID: 7, Line: 3}, Name: "sum"}

	if _, ok := r.RewriteResultTarget(lv, ann); ok {
		t.Fatal("rewritten at global level")
	}

	fn := &CallableDecl{Name: "Sum", Kind: RoutineFunction, Result: &NamedType{Name: "Integer"}}
	r.EnterOwnedContext("Sum", fn)
	mustRegister(t, r, fn)
	res := &VarDecl{Name: ResultName, Type: fn.Result, Kind: VarResult}
	mustRegister(t, r, res)

	got, ok := r.RewriteResultTarget(lv, ann)
	if !ok {
		t.Fatal("not rewritten")
	}
	ref, isRef := got.(*ResultRef)
	if !isRef || ref.Routine != "Sum" || ref.Line != 3 || ref.ID <= 100 {
		t.Fatalf("result %#v", got)
	}
	if ann.Effective(lv) != ref || ann.DeclOf(ref) != res || ann.TypeOf(ref) != fn.Result {
		t.Error("annotations not recorded")
	}

	other := &UnresolvedName{NodeInfo: NodeInfo{ID: 8}, Name: "Total"}
	if _, ok := r.RewriteResultTarget(other, ann); ok {
		t.Error("other names are not the result")
	}
	withArgs := &RoutineCall{NodeInfo: NodeInfo{ID: 9}, Callee: lv, Args: []Expr{&IntLiteral{Value: 1}}}
	if _, ok := r.RewriteResultTarget(withArgs, ann); ok {
		t.Error("a call with arguments is not the result")
	}
	r.LeaveContext()

	proc := &CallableDecl{Name: "Run", Kind: RoutineProcedure}
	r.EnterOwnedContext("Run", proc)
	mustRegister(t, r, proc)
	run := &UnresolvedName{NodeInfo: NodeInfo{ID: 10}, Name: "Run"}
	if _, ok := r.RewriteResultTarget(run, ann); ok {
		t.Error("procedures have no result")
	}
}

func TestRegistryRewriteResultTargetOverloaded(t *testing.T) {
	r := NewRegistry(nil)
	ann := NewAnnotations(10)
	proc := &CallableDecl{Name: "F", Kind: RoutineProcedure}
	mustRegister(t, r, proc)

	// the second overload is not registered under the name, it owns its frame
	fn := &CallableDecl{Name: "F", Kind: RoutineFunction, Result: &NamedType{Name: "Integer"}}
	r.EnterOwnedContext("F", fn)
	res := &VarDecl{Name: ResultName, Type: fn.Result, Kind: VarResult}
	mustRegister(t, r, res)

	lv := &UnresolvedName{NodeInfo: NodeInfo{ID: 3, Line: 5}, Name: "f"}
	got, ok := r.RewriteResultTarget(lv, ann)
	if !ok {
		t.Fatal("assignment to the overloaded function not rewritten")
	}
	if ann.DeclOf(got) != res || ann.TypeOf(got) != fn.Result {
		t.Error("result bound to the wrong routine")
	}
	r.LeaveContext()

	r.EnterOwnedContext("F", proc)
	if _, ok := r.RewriteResultTarget(lv, ann); ok {
		t.Error("procedure overload rewritten")
	}
}
