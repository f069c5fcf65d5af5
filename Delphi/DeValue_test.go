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

import "testing"

func expectInternal(t *testing.T, what string, f func()) {
	t.Helper()
	defer func() {
		if _, ok := recover().(*InternalError); !ok {
			t.Errorf("%s: expected an internal error", what)
		}
	}()
	f()
}

func TestIntegralRange(t *testing.T) {
	if n := IntValue(-5).Range(IntValue(5)); n != 10 {
		t.Errorf("-5..5 spans %d", n)
	}
	if n := CharValue('a').Range(CharValue('z')); n != 25 {
		t.Errorf("'a'..'z' spans %d", n)
	}
	if n := EnumValue("TColor", 0).Range(EnumValue("tcolor", 2)); n != 2 {
		t.Errorf("enum range %d", n)
	}
	expectInternal(t, "kind mismatch", func() { IntValue(1).Range(CharValue('b')) })
	expectInternal(t, "different enums", func() { EnumValue("A", 0).Range(EnumValue("B", 1)) })
	expectInternal(t, "negative range", func() { IntValue(3).Range(IntValue(1)) })
}

func TestIntegralCompareAndPrint(t *testing.T) {
	if !IntValue(-1).Less(UintValue(1)) {
		t.Error("signed comparison expected when one side is signed")
	}
	if UintValue(^uint64(0)).Less(UintValue(1)) {
		t.Error("unsigned comparison expected")
	}
	if IntValue(65).Equal(CharValue('A')) {
		t.Error("values of different kinds are never equal")
	}
	if !BoolValue(true).Equal(BoolValue(true)) || (StringValue{"a"}).Equal(StringValue{"b"}) {
		t.Error("Equal")
	}
	cases := []struct {
		v    ConstantValue
		want string
	}{
		{IntValue(-42), "-42"},
		{UintValue(42), "42"},
		{CharValue('A'), "#65"},
		{BoolValue(false), "False"},
		{EnumValue("TColor", 1), "TColor(1)"},
		{StringValue{"x"}, `"x"`},
		{RealValue{2.5}, "2.5"},
	}
	for _, c := range cases {
		if got := c.v.String(); got != c.want {
			t.Errorf("got %s, want %s", got, c.want)
		}
	}
}

func TestAnnotationsConstCategories(t *testing.T) {
	ann := NewAnnotations(10)
	lit := &IntLiteral{NodeInfo: NodeInfo{ID: 1}, Value: 3}
	integer := &OrdinalType{Name: "Integer", Kind: OrdInteger, Size: 4, Signed: true}
	ann.SetConst(lit, integer, IntValue(3))
	if v, ok := ann.Value(lit); !ok || !v.Equal(IntValue(3)) {
		t.Fatalf("value %v", v)
	}
	if ann.ValueIntegral(lit).Int64() != 3 {
		t.Error("ValueIntegral")
	}
	expectInternal(t, "string on ordinal", func() { ann.SetConst(lit, integer, StringValue{"3"}) })
	expectInternal(t, "integer on real", func() { ann.SetConst(lit, &RealType{Name: "Double"}, IntValue(3)) })
	expectInternal(t, "node without id", func() { ann.SetType(&IntLiteral{}, integer) })

	str := &StringLiteral{NodeInfo: NodeInfo{ID: 2}, Value: "hi"}
	ann.SetConst(str, &BuiltinStringType{Name: "UnicodeString"}, StringValue{"hi"})
	expectInternal(t, "ValueIntegral of a string", func() { ann.ValueIntegral(str) })
}

func TestAnnotationsSubstitution(t *testing.T) {
	ann := NewAnnotations(10)
	integer := &NamedType{Name: "Integer"}
	a := &UnresolvedName{NodeInfo: NodeInfo{ID: 1}, Name: "Limit"}
	b := &Identifier{NodeInfo: NodeInfo{ID: ann.NewID()}, Name: "Limit"}
	c := &IntLiteral{NodeInfo: NodeInfo{ID: 2}, Value: 7}
	if b.ID != 11 {
		t.Fatalf("new id %d", b.ID)
	}
	ann.Substitute(a, b)
	if ann.Effective(a) != b || ann.Effective(c) != c {
		t.Fatal("Effective")
	}
	ann.SetConst(b, &OrdinalType{Name: "Integer", Kind: OrdInteger, Size: 4, Signed: true}, IntValue(7))
	ann.SetConst(c, &OrdinalType{Name: "Integer", Kind: OrdInteger, Size: 4, Signed: true}, IntValue(7))
	// distinct type nodes are not the same type
	if ann.Equal(a, c) {
		t.Error("different type nodes compared equal")
	}
	ann.SetType(b, integer)
	ann.SetType(c, &NamedType{Name: "INTEGER"})
	if !ann.Equal(a, c) {
		t.Error("same named type and value should be equal")
	}

	cmp := &BinaryExpr{NodeInfo: NodeInfo{ID: 3}, Op: OpLt}
	if ann.OpOf(cmp) != OpLt {
		t.Error("OpOf without refinement")
	}
	ann.Refine(cmp, cmp.Op.Signed())
	if ann.OpOf(cmp) != OpLtSigned {
		t.Error("OpOf after refinement")
	}
}
