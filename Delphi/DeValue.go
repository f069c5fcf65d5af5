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
	"fmt"
	"strconv"
)

// ConstantValue is a compile time known value, independent of the syntax
// that produced it.
type ConstantValue interface {
	constValue()
	Equal(other ConstantValue) bool
	String() string
}

type OrdinalKind uint8

const (
	OrdInteger OrdinalKind = iota
	OrdChar
	OrdBoolean
	OrdEnum
)

var ordinalKindNames = [...]string{"integer", "char", "boolean", "enum"}

func (k OrdinalKind) String() string {
	if int(k) < len(ordinalKindNames) {
		return ordinalKindNames[k]
	}
	return "?"
}

// IntegralValue holds the two's complement bits of an ordinal value.
// Enum is the enumeration type name for OrdEnum values.
type IntegralValue struct {
	Bits   uint64
	Kind   OrdinalKind
	Signed bool
	Enum   string
}

func IntValue(v int64) IntegralValue {
	return IntegralValue{Bits: uint64(v), Kind: OrdInteger, Signed: true}
}

func UintValue(v uint64) IntegralValue {
	return IntegralValue{Bits: v, Kind: OrdInteger}
}

func CharValue(r rune) IntegralValue {
	return IntegralValue{Bits: uint64(r), Kind: OrdChar}
}

func BoolValue(b bool) IntegralValue {
	v := IntegralValue{Kind: OrdBoolean}
	if b {
		v.Bits = 1
	}
	return v
}

func EnumValue(enum string, ordinal uint64) IntegralValue {
	return IntegralValue{Bits: ordinal, Kind: OrdEnum, Enum: enum}
}

func (IntegralValue) constValue() {}

func (v IntegralValue) Int64() int64 {
	return int64(v.Bits)
}

func (v IntegralValue) Bool() bool {
	return v.Bits != 0
}

func (v IntegralValue) sameKind(o IntegralValue) bool {
	return v.Kind == o.Kind && (v.Kind != OrdEnum || foldName(v.Enum) == foldName(o.Enum))
}

// Less compares as signed if either side is signed
func (v IntegralValue) Less(o IntegralValue) bool {
	if v.Signed || o.Signed {
		return int64(v.Bits) < int64(o.Bits)
	}
	return v.Bits < o.Bits
}

func (v IntegralValue) Equal(other ConstantValue) bool {
	o, ok := other.(IntegralValue)
	return ok && v.sameKind(o) && v.Bits == o.Bits
}

// Range returns other - v. Both must denote the same ordinal kind and
// v must not be greater than other.
func (v IntegralValue) Range(other IntegralValue) uint64 {
	if !v.sameKind(other) {
		panic(internalf("range between %s and %s values", v.Kind, other.Kind))
	}
	if other.Less(v) {
		panic(internalf("negative range %s..%s", v, other))
	}
	return other.Bits - v.Bits
}

func (v IntegralValue) String() string {
	switch v.Kind {
	case OrdBoolean:
		if v.Bits != 0 {
			return "True"
		}
		return "False"
	case OrdChar:
		return fmt.Sprintf("#%d", v.Bits)
	case OrdEnum:
		return fmt.Sprintf("%s(%d)", v.Enum, v.Bits)
	}
	if v.Signed {
		return strconv.FormatInt(int64(v.Bits), 10)
	}
	return strconv.FormatUint(v.Bits, 10)
}

type StringValue struct {
	Val string
}

func (StringValue) constValue() {}

func (v StringValue) Equal(other ConstantValue) bool {
	o, ok := other.(StringValue)
	return ok && o.Val == v.Val
}

func (v StringValue) String() string {
	return strconv.Quote(v.Val)
}

type RealValue struct {
	Val float64
}

func (RealValue) constValue() {}

func (v RealValue) Equal(other ConstantValue) bool {
	o, ok := other.(RealValue)
	return ok && o.Val == v.Val
}

func (v RealValue) String() string {
	return strconv.FormatFloat(v.Val, 'g', -1, 64)
}
