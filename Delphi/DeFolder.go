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
	"math"
	"strings"
)

// Folder evaluates constant expressions and records the results in the
// annotation store. Names must be bound before their expressions are folded.
type Folder struct {
	reg    *Registry
	ann    *Annotations
	active map[Decl]bool
}

func NewFolder(reg *Registry, ann *Annotations) *Folder {
	return &Folder{reg: reg, ann: ann, active: make(map[Decl]bool)}
}

// Fold is a shortcut for NewFolder(reg, ann).Fold(e)
func Fold(e Expr, reg *Registry, ann *Annotations) (ConstantValue, error) {
	return NewFolder(reg, ann).Fold(e)
}

// Fold returns the value of e, or nil if e is not constant. Errors are only
// returned for constant expressions which cannot be evaluated.
func (f *Folder) Fold(e Expr) (ConstantValue, error) {
	if e == nil {
		return nil, nil
	}
	e = f.ann.Effective(e)
	if v, ok := f.ann.Value(e); ok {
		return v, nil
	}
	t, v, err := f.eval(e)
	if err != nil || v == nil {
		return nil, err
	}
	f.ann.SetConst(e, t, v)
	return v, nil
}

func (f *Folder) typeOf(e Expr) TypeNode {
	return f.ann.TypeOf(f.ann.Effective(e))
}

func (f *Folder) builtin(name string) TypeNode {
	return f.reg.Builtin(name)
}

func (f *Folder) eval(e Expr) (TypeNode, ConstantValue, error) {
	switch e := e.(type) {
	case *IntLiteral:
		t, v := f.intConst(e.Value)
		return t, v, nil
	case *CharLiteral:
		return f.builtin("Char"), CharValue(e.Value), nil
	case *BoolLiteral:
		return f.builtin("Boolean"), BoolValue(e.Value), nil
	case *StringLiteral:
		return f.builtin("string"), StringValue{Val: e.Value}, nil
	case *RealLiteral:
		return f.builtin("Extended"), RealValue{Val: e.Value}, nil
	case *Identifier, *UnresolvedName:
		return f.named(e)
	case *UnaryExpr:
		return f.unary(e)
	case *BinaryExpr:
		return f.binary(e)
	case *RoutineCall:
		return f.call(e)
	}
	return nil, nil, nil
}

func (f *Folder) intConst(v uint64) (TypeNode, IntegralValue) {
	switch {
	case v <= math.MaxInt32:
		return f.builtin("Integer"), IntValue(int64(v))
	case v <= math.MaxInt64:
		return f.builtin("Int64"), IntValue(int64(v))
	}
	return f.builtin("UInt64"), UintValue(v)
}

// signedResult picks the type of an integer operation result
func (f *Folder) signedResult(l, r TypeNode, x int64) (TypeNode, IntegralValue) {
	if isWide(l) || isWide(r) || x < math.MinInt32 || x > math.MaxInt32 {
		return f.builtin("Int64"), IntValue(x)
	}
	return f.builtin("Integer"), IntValue(x)
}

func (f *Folder) unsignedResult(l, r TypeNode, x uint64) (TypeNode, IntegralValue) {
	if isWide(l) || isWide(r) || x > math.MaxUint32 {
		return f.builtin("UInt64"), UintValue(x)
	}
	return f.builtin("Cardinal"), UintValue(x)
}

func isWide(t TypeNode) bool {
	ot, ok := t.(*OrdinalType)
	return ok && ot.Size == 8
}

func (f *Folder) named(e Expr) (TypeNode, ConstantValue, error) {
	switch d := f.ann.DeclOf(e).(type) {
	case *ConstDecl:
		if d.Kind == ConstTyped || f.active[d] {
			return nil, nil, nil
		}
		f.active[d] = true
		defer delete(f.active, d)
		v, err := f.Fold(d.Value)
		if err != nil || v == nil {
			return nil, nil, err
		}
		return f.typeOf(d.Value), v, nil
	case *EnumMember:
		if v, ok := f.ann.Value(d); ok {
			return f.ann.TypeOf(d), v, nil
		}
	}
	return nil, nil, nil
}

func (f *Folder) unary(e *UnaryExpr) (TypeNode, ConstantValue, error) {
	v, err := f.Fold(e.Operand)
	if err != nil || v == nil {
		return nil, nil, err
	}
	t := f.typeOf(e.Operand)
	switch e.Op {
	case OpPlus:
		return t, v, nil
	case OpMinus:
		switch v := v.(type) {
		case IntegralValue:
			if v.Kind == OrdInteger {
				t, res := f.signedResult(t, nil, -v.Int64())
				return t, res, nil
			}
		case RealValue:
			return t, RealValue{Val: -v.Val}, nil
		}
	case OpNot:
		if iv, ok := v.(IntegralValue); ok {
			switch iv.Kind {
			case OrdBoolean:
				return t, BoolValue(!iv.Bool()), nil
			case OrdInteger:
				iv.Bits = ^iv.Bits
				if ot, ok := t.(*OrdinalType); ok && !iv.Signed && ot.Size < 8 {
					iv.Bits &= 1<<uint(ot.Size*8) - 1
				}
				return t, iv, nil
			}
		}
	}
	return nil, nil, nil
}

func (f *Folder) binary(e *BinaryExpr) (TypeNode, ConstantValue, error) {
	lv, err := f.Fold(e.Left)
	if err != nil || lv == nil {
		return nil, nil, err
	}
	rv, err := f.Fold(e.Right)
	if err != nil || rv == nil {
		return nil, nil, err
	}
	lt, rt := f.typeOf(e.Left), f.typeOf(e.Right)
	switch e.Op.Category() {
	case CatComparison:
		return f.compare(e, lv, rv)
	case CatArithmetic, CatLogical:
		li, lok := lv.(IntegralValue)
		ri, rok := rv.(IntegralValue)
		if lok && rok && e.Op != OpRealDiv {
			return f.integral(e, lt, rt, li, ri)
		}
		if e.Op == OpAdd {
			if ls, ok := stringOf(lv); ok {
				if rs, ok := stringOf(rv); ok {
					return f.builtin("string"), StringValue{Val: ls + rs}, nil
				}
			}
		}
		lr, lok := realOf(lv)
		rr, rok := realOf(rv)
		if !lok || !rok {
			return nil, nil, nil
		}
		ext := f.builtin("Extended")
		switch e.Op {
		case OpAdd:
			return ext, RealValue{Val: lr + rr}, nil
		case OpSub:
			return ext, RealValue{Val: lr - rr}, nil
		case OpMul:
			return ext, RealValue{Val: lr * rr}, nil
		case OpRealDiv:
			if rr == 0 {
				return nil, nil, ErrDivisionByZero
			}
			return ext, RealValue{Val: lr / rr}, nil
		}
	}
	return nil, nil, nil
}

func (f *Folder) integral(e *BinaryExpr, lt, rt TypeNode, l, r IntegralValue) (TypeNode, ConstantValue, error) {
	if l.Kind == OrdBoolean && r.Kind == OrdBoolean {
		switch e.Op {
		case OpAnd:
			return lt, BoolValue(l.Bool() && r.Bool()), nil
		case OpOr:
			return lt, BoolValue(l.Bool() || r.Bool()), nil
		case OpXor:
			return lt, BoolValue(l.Bool() != r.Bool()), nil
		}
		return nil, nil, nil
	}
	if l.Kind == OrdChar && r.Kind == OrdChar && e.Op == OpAdd {
		return f.builtin("string"), StringValue{Val: string(rune(l.Bits)) + string(rune(r.Bits))}, nil
	}
	if l.Kind != OrdInteger || r.Kind != OrdInteger {
		return nil, nil, nil
	}
	if (e.Op == OpDiv || e.Op == OpMod) && r.Bits == 0 {
		return nil, nil, ErrDivisionByZero
	}
	if l.Signed || r.Signed {
		a, b := l.Int64(), r.Int64()
		var x int64
		switch e.Op {
		case OpAdd:
			x = a + b
		case OpSub:
			x = a - b
		case OpMul:
			x = a * b
		case OpDiv:
			x = a / b
		case OpMod:
			x = a % b
		case OpShl:
			x = a << (uint64(b) & 63)
		case OpShr:
			x = int64(uint64(a) >> (uint64(b) & 63))
		case OpAnd:
			x = a & b
		case OpOr:
			x = a | b
		case OpXor:
			x = a ^ b
		default:
			return nil, nil, nil
		}
		t, v := f.signedResult(lt, rt, x)
		return t, v, nil
	}
	a, b := l.Bits, r.Bits
	var x uint64
	switch e.Op {
	case OpAdd:
		x = a + b
	case OpSub:
		x = a - b
	case OpMul:
		x = a * b
	case OpDiv:
		x = a / b
	case OpMod:
		x = a % b
	case OpShl:
		x = a << (b & 63)
	case OpShr:
		x = a >> (b & 63)
	case OpAnd:
		x = a & b
	case OpOr:
		x = a | b
	case OpXor:
		x = a ^ b
	default:
		return nil, nil, nil
	}
	t, v := f.unsignedResult(lt, rt, x)
	return t, v, nil
}

func (f *Folder) compare(e *BinaryExpr, lv, rv ConstantValue) (TypeNode, ConstantValue, error) {
	var c int
	li, lok := lv.(IntegralValue)
	ri, rok := rv.(IntegralValue)
	switch {
	case lok && rok:
		if li.Kind != ri.Kind {
			return nil, nil, nil
		}
		if li.Signed || ri.Signed {
			f.ann.Refine(e, e.Op.Signed())
		}
		switch {
		case li.Less(ri):
			c = -1
		case ri.Less(li):
			c = 1
		}
	default:
		ls, sok1 := stringOf(lv)
		rs, sok2 := stringOf(rv)
		if sok1 && sok2 {
			c = strings.Compare(ls, rs)
			break
		}
		lr, rok1 := realOf(lv)
		rr, rok2 := realOf(rv)
		if !rok1 || !rok2 {
			return nil, nil, nil
		}
		switch {
		case lr < rr:
			c = -1
		case lr > rr:
			c = 1
		}
	}
	var res bool
	switch e.Op {
	case OpEq:
		res = c == 0
	case OpNe:
		res = c != 0
	case OpLt, OpLtSigned:
		res = c < 0
	case OpLe, OpLeSigned:
		res = c <= 0
	case OpGt, OpGtSigned:
		res = c > 0
	case OpGe, OpGeSigned:
		res = c >= 0
	}
	return f.builtin("Boolean"), BoolValue(res), nil
}

func stringOf(v ConstantValue) (string, bool) {
	switch v := v.(type) {
	case StringValue:
		return v.Val, true
	case IntegralValue:
		if v.Kind == OrdChar {
			return string(rune(v.Bits)), true
		}
	}
	return "", false
}

func realOf(v ConstantValue) (float64, bool) {
	switch v := v.(type) {
	case RealValue:
		return v.Val, true
	case IntegralValue:
		if v.Kind == OrdInteger {
			if v.Signed {
				return float64(v.Int64()), true
			}
			return float64(v.Bits), true
		}
	}
	return 0, false
}

// call folds the builtin functions which are evaluated at compile time
func (f *Folder) call(e *RoutineCall) (TypeNode, ConstantValue, error) {
	d, ok := f.ann.DeclOf(f.ann.Effective(e.Callee)).(*CallableDecl)
	if !ok || !d.Builtin || len(e.Args) != 1 {
		return nil, nil, nil
	}
	arg := e.Args[0]
	switch strings.ToLower(d.Name) {
	case "sizeof":
		if size := f.sizeOf(arg); size > 0 {
			t, v := f.intConst(uint64(size))
			return t, v, nil
		}
		return nil, nil, nil
	case "low", "high":
		return f.bound(arg, strings.EqualFold(d.Name, "high"))
	}
	v, err := f.Fold(arg)
	if err != nil || v == nil {
		return nil, nil, err
	}
	t := f.typeOf(arg)
	switch strings.ToLower(d.Name) {
	case "ord":
		if iv, ok := v.(IntegralValue); ok {
			return f.builtin("Integer"), IntValue(iv.Int64()), nil
		}
	case "chr":
		if iv, ok := v.(IntegralValue); ok && iv.Kind == OrdInteger {
			return f.builtin("Char"), CharValue(rune(iv.Bits)), nil
		}
	case "succ", "pred":
		if iv, ok := v.(IntegralValue); ok {
			if strings.EqualFold(d.Name, "succ") {
				iv.Bits++
			} else {
				iv.Bits--
			}
			return t, iv, nil
		}
	case "length":
		if s, ok := stringOf(v); ok {
			t, v := f.intConst(uint64(len([]rune(s))))
			return t, v, nil
		}
	case "abs":
		if iv, ok := v.(IntegralValue); ok && iv.Kind == OrdInteger && iv.Signed && iv.Int64() < 0 {
			return t, IntValue(-iv.Int64()), nil
		}
		return t, v, nil
	case "odd":
		if iv, ok := v.(IntegralValue); ok && iv.Kind == OrdInteger {
			return f.builtin("Boolean"), BoolValue(iv.Bits&1 == 1), nil
		}
	}
	return nil, nil, nil
}

// typeArg returns the type an argument like SizeOf(Integer) names
func (f *Folder) typeArg(arg Expr) TypeNode {
	switch d := f.ann.DeclOf(f.ann.Effective(arg)).(type) {
	case *TypeDecl:
		return f.reg.ResolveType(d.Type)
	case *CompositeDecl:
		return d.Type
	}
	return nil
}

func (f *Folder) sizeOf(arg Expr) int {
	switch t := f.typeArg(arg).(type) {
	case *OrdinalType:
		return t.Size
	case *RealType:
		return t.Size
	case *BuiltinPointerType, *PointerType, *ClassType, *ClassRefType, *InterfaceType, *BuiltinStringType:
		return f.reg.cfg.PointerSize()
	}
	return 0
}

func (f *Folder) bound(arg Expr, high bool) (TypeNode, ConstantValue, error) {
	t, ok := f.typeArg(arg).(*OrdinalType)
	if !ok {
		return nil, nil, nil
	}
	bits := uint(t.Size * 8)
	switch t.Kind {
	case OrdBoolean:
		return t, BoolValue(high), nil
	case OrdChar:
		if high {
			return t, CharValue(rune(1<<bits - 1)), nil
		}
		return t, CharValue(0), nil
	}
	if t.Signed {
		if high {
			return t, IntValue(int64(1)<<(bits-1) - 1), nil
		}
		return t, IntValue(-(int64(1) << (bits - 1))), nil
	}
	if !high {
		return t, UintValue(0), nil
	}
	if bits == 64 {
		return t, UintValue(math.MaxUint64), nil
	}
	return t, UintValue(1<<bits - 1), nil
}

// SubrangeSize returns the number of values of a subrange with constant
// bounds of the same ordinal kind
func (f *Folder) SubrangeSize(t *SubrangeType) (uint64, error) {
	lo, err := f.integralBound(t.Low)
	if err != nil {
		return 0, err
	}
	hi, err := f.integralBound(t.High)
	if err != nil {
		return 0, err
	}
	if !lo.sameKind(hi) || hi.Less(lo) {
		return 0, fmt.Errorf("%w: %v..%v", ErrInvalidRange, lo, hi)
	}
	return lo.Range(hi) + 1, nil
}

func (f *Folder) integralBound(e Expr) (IntegralValue, error) {
	v, err := f.Fold(e)
	if err != nil {
		return IntegralValue{}, err
	}
	if v == nil || !IsOrdinal(f.typeOf(e)) {
		return IntegralValue{}, fmt.Errorf("%w: bound is not an ordinal constant", ErrInvalidRange)
	}
	return f.ann.ValueIntegral(e), nil
}
