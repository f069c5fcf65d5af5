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

import "strconv"

// builtin nodes are numbered from here so they never collide with parsed ones
const builtinIDBase NodeID = 1 << 31

func (r *Registry) info() NodeInfo {
	r.nextID++
	return NodeInfo{ID: r.nextID}
}

func (r *Registry) named(name string) *NamedType {
	return &NamedType{NodeInfo: r.info(), Name: name}
}

func (r *Registry) builtinType(name string, t TypeNode) {
	r.runtime.add(name, &TypeDecl{NodeInfo: r.info(), Name: name, Type: t})
}

func (r *Registry) ordinal(name string, kind OrdinalKind, size int, signed bool) {
	r.builtinType(name, &OrdinalType{NodeInfo: r.info(), Name: name, Kind: kind, Size: size, Signed: signed})
}

func (r *Registry) realType(name string, size int) {
	r.builtinType(name, &RealType{NodeInfo: r.info(), Name: name, Size: size})
}

func (r *Registry) alias(name, target string) {
	r.builtinType(name, r.named(target))
}

func (r *Registry) routine(kind RoutineKind, name, result string) *CallableDecl {
	d := &CallableDecl{NodeInfo: r.info(), Name: name, Kind: kind, Builtin: true}
	if result != "" {
		d.Result = r.named(result)
	}
	return d
}

func (r *Registry) builtinRoutine(kind RoutineKind, name, result string) {
	r.runtime.add(name, r.routine(kind, name, result))
}

func (r *Registry) method(kind RoutineKind, name, result string, dirs ...TokenType) *CallableDecl {
	d := r.routine(kind, name, result)
	d.Visibility = VisPublic
	for _, t := range dirs {
		d.Directives = append(d.Directives, Directive{Tok: t})
	}
	return d
}

func (r *Registry) param(name, typ string, kind ParamKind) *ParamDecl {
	return &ParamDecl{NodeInfo: r.info(), Name: name, Kind: kind, Type: r.named(typ)}
}

func (r *Registry) composite(name string, kind CompositeKind, heritage []string, members ...Member) {
	var t TypeNode
	switch kind {
	case CompClass:
		t = &ClassType{NodeInfo: r.info(), Heritage: heritage, Members: members}
	default:
		t = &InterfaceType{NodeInfo: r.info(), Heritage: heritage, Members: members}
	}
	for _, m := range members {
		if c, ok := m.(*CallableDecl); ok {
			c.Owner = name
		}
	}
	r.runtime.add(name, &CompositeDecl{NodeInfo: r.info(), Name: name, Kind: kind, Heritage: heritage,
		Members: members, Type: t})
}

func (r *Registry) constant(name, typ string, value Expr) {
	r.runtime.add(name, &ConstDecl{NodeInfo: r.info(), Name: name, Type: r.named(typ), Value: value})
}

// DefaultString is the type of the string keyword in the configured dialect
func (r *Registry) DefaultString() string {
	if r.cfg.Supports(FeatureUnicodeString) {
		return "UnicodeString"
	}
	return "AnsiString"
}

// DefaultChar is the type Char stands for
func (r *Registry) DefaultChar() string {
	if r.cfg.Supports(FeatureUnicodeString) {
		return "WideChar"
	}
	return "AnsiChar"
}

// Builtin returns the type a runtime type name denotes, or nil
func (r *Registry) Builtin(name string) TypeNode {
	switch d := r.runtime.Lookup(name).(type) {
	case *TypeDecl:
		for i := 0; i < 8; i++ {
			nt, ok := d.Type.(*NamedType)
			if !ok {
				return d.Type
			}
			next, ok := r.runtime.Lookup(nt.Name).(*TypeDecl)
			if !ok {
				return nil
			}
			d = next
		}
	case *CompositeDecl:
		return d.Type
	}
	return nil
}

func (r *Registry) loadBuiltins() {
	ptr := r.cfg.PointerSize()
	if ptr == 0 {
		ptr = 4
	}

	r.ordinal("ShortInt", OrdInteger, 1, true)
	r.ordinal("SmallInt", OrdInteger, 2, true)
	r.ordinal("Integer", OrdInteger, 4, true)
	r.ordinal("LongInt", OrdInteger, 4, true)
	r.ordinal("Int64", OrdInteger, 8, true)
	r.ordinal("NativeInt", OrdInteger, ptr, true)
	r.ordinal("Byte", OrdInteger, 1, false)
	r.ordinal("Word", OrdInteger, 2, false)
	r.ordinal("Cardinal", OrdInteger, 4, false)
	r.ordinal("LongWord", OrdInteger, 4, false)
	r.ordinal("UInt64", OrdInteger, 8, false)
	r.ordinal("NativeUInt", OrdInteger, ptr, false)

	r.ordinal("AnsiChar", OrdChar, 1, false)
	r.ordinal("WideChar", OrdChar, 2, false)
	r.alias("Char", r.DefaultChar())

	r.ordinal("Boolean", OrdBoolean, 1, false)
	r.ordinal("ByteBool", OrdBoolean, 1, false)
	r.ordinal("WordBool", OrdBoolean, 2, false)
	r.ordinal("LongBool", OrdBoolean, 4, false)

	r.realType("Single", 4)
	r.realType("Double", 8)
	r.realType("Real", 8)
	r.realType("Real48", 6)
	r.realType("Comp", 8)
	r.realType("Currency", 8)
	if ptr == 4 {
		r.realType("Extended", 10)
	} else {
		r.realType("Extended", 8)
	}

	r.builtinType("ShortString", &BuiltinStringType{NodeInfo: r.info(), Name: "ShortString", Short: true})
	r.builtinType("AnsiString", &BuiltinStringType{NodeInfo: r.info(), Name: "AnsiString"})
	r.builtinType("WideString", &BuiltinStringType{NodeInfo: r.info(), Name: "WideString", Wide: true})
	r.builtinType("UnicodeString", &BuiltinStringType{NodeInfo: r.info(), Name: "UnicodeString", Wide: true})
	r.alias("string", r.DefaultString())

	r.builtinType("Pointer", &BuiltinPointerType{NodeInfo: r.info(), Name: "Pointer"})
	r.builtinType("PAnsiChar", &BuiltinPointerType{NodeInfo: r.info(), Name: "PAnsiChar", Target: r.Builtin("AnsiChar")})
	r.builtinType("PWideChar", &BuiltinPointerType{NodeInfo: r.info(), Name: "PWideChar", Target: r.Builtin("WideChar")})
	if r.cfg.Supports(FeatureUnicodeString) {
		r.alias("PChar", "PWideChar")
	} else {
		r.alias("PChar", "PAnsiChar")
	}

	r.builtinType("Variant", &VariantType{NodeInfo: r.info(), Name: "Variant"})
	r.builtinType("OleVariant", &VariantType{NodeInfo: r.info(), Name: "OleVariant"})

	create := r.method(RoutineConstructor, "Create", "")
	r.composite("TObject", CompClass, nil,
		create,
		r.method(RoutineDestructor, "Destroy", "", TokVIRTUAL),
		r.method(RoutineProcedure, "Free", ""),
		classMethod(r.method(RoutineFunction, "ClassName", "ShortString")),
		classMethod(r.method(RoutineFunction, "InheritsFrom", "Boolean")),
		r.method(RoutineProcedure, "AfterConstruction", "", TokVIRTUAL),
		r.method(RoutineProcedure, "BeforeDestruction", "", TokVIRTUAL),
	)
	r.builtinType("TClass", &ClassRefType{NodeInfo: r.info(), Target: r.named("TObject")})

	qi := r.method(RoutineFunction, "QueryInterface", "HRESULT", TokSTDCALL)
	qi.Params = []*ParamDecl{r.param("IID", "TGUID", ParamConst), r.param("Obj", "Pointer", ParamOut)}
	r.composite("IInterface", CompInterface, nil,
		qi,
		r.method(RoutineFunction, "_AddRef", "Integer", TokSTDCALL),
		r.method(RoutineFunction, "_Release", "Integer", TokSTDCALL),
	)
	r.alias("IUnknown", "IInterface")
	r.alias("HRESULT", "LongInt")
	r.builtinType("TGUID", &RecordType{NodeInfo: r.info()})

	refCount := &VarDecl{NodeInfo: r.info(), Name: "FRefCount", Type: r.named("Integer"), Kind: VarField,
		Visibility: VisProtected}
	r.composite("TInterfacedObject", CompClass, []string{"TObject", "IInterface"}, refCount)

	msg := &VarDecl{NodeInfo: r.info(), Name: "FMessage", Type: r.named("string"), Kind: VarField,
		Visibility: VisPrivate}
	excCreate := r.method(RoutineConstructor, "Create", "")
	excCreate.Params = []*ParamDecl{r.param("Msg", "string", ParamConst)}
	message := &PropertyDecl{NodeInfo: r.info(), Name: "Message", Type: r.named("string"), Read: "FMessage",
		Write: "FMessage", Visibility: VisPublic}
	r.composite("Exception", CompClass, []string{"TObject"}, msg, excCreate, message)

	r.constant("True", "Boolean", &BoolLiteral{NodeInfo: r.info(), Value: true})
	r.constant("False", "Boolean", &BoolLiteral{NodeInfo: r.info(), Value: false})
	r.constant("MaxInt", "Integer", &IntLiteral{NodeInfo: r.info(), Value: 1<<31 - 1, Text: "2147483647"})
	r.constant("MaxLongInt", "LongInt", &IntLiteral{NodeInfo: r.info(), Value: 1<<31 - 1, Text: "2147483647"})
	ver := r.cfg.CompilerVersion()
	verText := strconv.FormatFloat(ver, 'f', 1, 64)
	r.constant("CompilerVersion", "Double", &RealLiteral{NodeInfo: r.info(), Value: ver, Text: verText})
	r.constant("RTLVersion", "Double", &RealLiteral{NodeInfo: r.info(), Value: ver, Text: verText})

	for _, n := range []string{"Write", "Writeln", "Read", "Readln", "Inc", "Dec", "Exit", "Halt",
		"New", "Dispose", "GetMem", "FreeMem", "SetLength", "Assert", "Include", "Exclude",
		"FillChar", "Move", "Randomize"} {
		r.builtinRoutine(RoutineProcedure, n, "")
	}
	for _, f := range [][2]string{
		{"Length", "Integer"}, {"High", "Integer"}, {"Low", "Integer"}, {"Ord", "Integer"},
		{"Chr", "Char"}, {"Succ", "Integer"}, {"Pred", "Integer"}, {"SizeOf", "Integer"},
		{"Assigned", "Boolean"}, {"Odd", "Boolean"}, {"Copy", "string"}, {"Pos", "Integer"},
		{"IntToStr", "string"}, {"StrToInt", "Integer"}, {"Format", "string"}, {"Abs", "Integer"},
		{"Sqr", "Integer"}, {"Sqrt", "Extended"}, {"Trunc", "Int64"}, {"Round", "Int64"},
		{"Random", "Integer"}, {"Trim", "string"}, {"UpperCase", "string"}, {"LowerCase", "string"},
	} {
		r.builtinRoutine(RoutineFunction, f[0], f[1])
	}
}

func classMethod(d *CallableDecl) *CallableDecl {
	d.ClassMethod = true
	return d
}
