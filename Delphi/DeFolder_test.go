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

const constsProgram = `program Consts;
type
  TColor = (Red, Green = 5, Blue);
  TSmall = 1..10;
  TWarm = Red..Green;
const
  A = 1 + 2 * 3;
  B = A * 2;
  S = 'ab' + 'c';
  L = Length(S);
  Big = $FFFFFFFF;
  R = 7 / 2;
  Neg = -A;
  Cmp = -1 < 2;
  Sh = 1 shl 4;
  M = 17 mod 5;
  Z = SizeOf(Integer);
  H = High(Byte);
  Lo = Low(ShortInt);
  O = Ord('A');
  C = Chr(66);
  E = Succ(Green);
  Odd3 = Odd(3);
  Yes = not False;
  Same = 'abc' = S;
begin
end.`

func findDecl(t *testing.T, g Goal, name string) Decl {
	t.Helper()
	for _, d := range g.(*Program).Block.Decls {
		if strings.EqualFold(d.DeclName(), name) {
			return d
		}
	}
	t.Fatalf("%s not declared", name)
	return nil
}

func TestFoldConstants(t *testing.T) {
	g, b := bindClean(t, constsProgram)
	f := NewFolder(b.reg, b.ann)
	cases := []struct {
		name string
		want ConstantValue
	}{
		{"A", IntValue(7)},
		{"B", IntValue(14)},
		{"S", StringValue{Val: "abc"}},
		{"L", IntValue(3)},
		{"Big", IntValue(4294967295)},
		{"R", RealValue{Val: 3.5}},
		{"Neg", IntValue(-7)},
		{"Cmp", BoolValue(true)},
		{"Sh", IntValue(16)},
		{"M", IntValue(2)},
		{"Z", IntValue(4)},
		{"H", UintValue(255)},
		{"Lo", IntValue(-128)},
		{"O", IntValue(65)},
		{"C", CharValue('B')},
		{"E", EnumValue("TColor", 6)},
		{"Odd3", BoolValue(true)},
		{"Yes", BoolValue(true)},
		{"Same", BoolValue(true)},
	}
	for _, c := range cases {
		d := findDecl(t, g, c.name).(*ConstDecl)
		v, err := f.Fold(d.Value)
		if err != nil || v == nil {
			t.Errorf("%s: %v %v", c.name, v, err)
			continue
		}
		if !v.Equal(c.want) {
			t.Errorf("%s = %v, want %v", c.name, v, c.want)
		}
	}

	big := findDecl(t, g, "Big").(*ConstDecl)
	if ot, ok := b.ann.TypeOf(b.ann.Effective(big.Value)).(*OrdinalType); !ok || ot.Name != "Int64" {
		t.Errorf("$FFFFFFFF does not fit into Integer, got %v", b.ann.TypeOf(big.Value))
	}
	cmp := findDecl(t, g, "Cmp").(*ConstDecl).Value
	if b.ann.OpOf(cmp.(*BinaryExpr)) != OpLtSigned {
		t.Error("comparison of signed constants should be refined")
	}
}

func TestFoldEnumsAndSubranges(t *testing.T) {
	g, b := bindClean(t, constsProgram)
	color := findDecl(t, g, "TColor").(*TypeDecl).Type.(*EnumType)
	for i, want := range []uint64{0, 5, 6} {
		v, ok := b.ann.Value(color.Members[i])
		if !ok || !v.Equal(EnumValue("TColor", want)) {
			t.Errorf("%s = %v", color.Members[i].Name, v)
		}
	}
	f := NewFolder(b.reg, b.ann)
	for name, want := range map[string]uint64{"TSmall": 10, "TWarm": 6} {
		sr := findDecl(t, g, name).(*TypeDecl).Type.(*SubrangeType)
		n, err := f.SubrangeSize(sr)
		if err != nil || n != want {
			t.Errorf("%s has %d values (%v), want %d", name, n, err, want)
		}
	}
}

func TestFoldErrors(t *testing.T) {
	_, b := bindSource(t, nil, `program Bad;
var v: Integer;
type
  TBad = 10..1;
  TMixed = 'a'..5;
const
  D = 10 div 0;
  K = v + 1;
  Q = 1.5 / 0;
begin
end.`)
	lines := map[uint32]error{}
	for _, e := range b.Errors {
		lines[e.Line] = e
	}
	for _, line := range []uint32{4, 5} {
		if !errors.Is(lines[line], ErrInvalidRange) {
			t.Errorf("line %d: %v", line, lines[line])
		}
	}
	for _, line := range []uint32{7, 9} {
		if !errors.Is(lines[line], ErrDivisionByZero) {
			t.Errorf("line %d: %v", line, lines[line])
		}
	}
	if len(b.Warnings) != 1 || !errors.Is(b.Warnings[0], ErrNotConstant) || b.Warnings[0].Line != 8 {
		t.Errorf("warnings %v", b.Warnings)
	}
}

func TestFoldNotKeepsWidth(t *testing.T) {
	g, b := bindClean(t, `program P;
const
  Bits = not 0;
  Low8 = not High(Byte);
begin
end.`)
	f := NewFolder(b.reg, b.ann)
	v, _ := f.Fold(findDecl(t, g, "Bits").(*ConstDecl).Value)
	if v == nil || !v.Equal(IntValue(-1)) {
		t.Errorf("not 0 = %v", v)
	}
	v, _ = f.Fold(findDecl(t, g, "Low8").(*ConstDecl).Value)
	if v == nil || !v.Equal(UintValue(0)) {
		t.Errorf("not High(Byte) = %v", v)
	}
}
