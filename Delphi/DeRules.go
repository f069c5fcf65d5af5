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
	"sort"
	"strconv"
	"strings"
)

// binaryOps drives both the generated expression productions and the
// construction of BinaryExpr nodes
var binaryOps = map[TokenType]BinaryOp{
	TokPlus:  OpAdd,
	TokMinus: OpSub,
	TokStar:  OpMul,
	TokSlash: OpRealDiv,
	TokDIV:   OpDiv,
	TokMOD:   OpMod,
	TokSHL:   OpShl,
	TokSHR:   OpShr,
	TokAND:   OpAnd,
	TokOR:    OpOr,
	TokXOR:   OpXor,
	TokEq:    OpEq,
	TokNeq:   OpNe,
	TokLt:    OpLt,
	TokLeq:   OpLe,
	TokGt:    OpGt,
	TokGeq:   OpGe,
	TokIN:    OpIn,
	TokIS:    OpIs,
	TokAS:    OpAs,
}

// softKeywords are directive tokens accepted wherever an identifier is
var softKeywords = func() []TokenType {
	var res []TokenType
	for t := TTDirectives + 1; t < TTSpecials; t++ {
		res = append(res, t)
	}
	return res
}()

var routineDirectives = []TokenType{
	TokVIRTUAL, TokOVERRIDE, TokABSTRACT, TokOVERLOAD, TokREINTRODUCE, TokDYNAMIC,
	TokSTDCALL, TokCDECL, TokPASCAL, TokREGISTER, TokSAFECALL, TokASSEMBLER,
	TokVARARGS, TokEXPORT, TokINLINE, TokSTATIC,
}

// values which only live on the parse stack until an enclosing reduction
// turns them into nodes

type varGroup struct {
	names    []Token
	typ      TypeNode
	init     Expr
	absolute string
}

type varInit struct {
	init     Expr
	absolute string
}

type routineName struct {
	owner, name string
}

type routineHead struct {
	kind   RoutineKind
	class  bool
	owner  string
	name   string
	params []*ParamDecl
	result TypeNode
	line   uint32
}

type methodPending struct {
	head *routineHead
	dirs []Directive
	ext  *ExternalSpec
}

type propIface struct {
	params []*ParamDecl
	typ    TypeNode
}

type propSpec struct {
	tok   TokenType
	name  string
	expr  Expr
	names []string
}

type propPending struct {
	name   Token
	iface  *propIface
	specs  []propSpec
	deflt  bool
	line   uint32
}

// memberList accumulates members; visibility sections change vis for the
// members which follow
type memberList struct {
	items []Member
	vis   Visibility
}

type unitEnd struct {
	init, final []Stmt
}

type exceptBody struct {
	handlers []*ExceptHandler
	els      []Stmt
	deflt    []Stmt
}

func rhs(items ...any) []any { return items }

func tokText(v any) string { return string(v.(Token).Val) }

func seed[T any](p *Parser, v []any) any {
	return []T{v[0].(T)}
}

// appendAt appends v[idx] to the list in v[0]
func appendAt[T any](idx int) ReduceFunc {
	return func(p *Parser, v []any) any {
		return append(v[0].([]T), v[idx].(T))
	}
}

func absent(p *Parser, v []any) any { return nil }

func pick(idx int) ReduceFunc {
	return func(p *Parser, v []any) any { return v[idx] }
}

func asExpr(v any) Expr {
	if v == nil {
		return nil
	}
	return v.(Expr)
}

func asType(v any) TypeNode {
	if v == nil {
		return nil
	}
	return v.(TypeNode)
}

func asStmts(v any) []Stmt {
	if v == nil {
		return nil
	}
	return v.([]Stmt)
}

func asUses(v any) []*UnitRef {
	if v == nil {
		return nil
	}
	return v.([]*UnitRef)
}

func asDecls(v any) []Decl {
	if v == nil {
		return nil
	}
	return v.([]Decl)
}

func asParams(v any) []*ParamDecl {
	if v == nil {
		return nil
	}
	return v.([]*ParamDecl)
}

func asStrings(v any) []string {
	if v == nil {
		return nil
	}
	return v.([]string)
}

// DelphiGrammar declares the productions and the precedence table
func DelphiGrammar() *Grammar {
	g := NewGrammar()

	// lowest first
	g.Right(TokTHEN, TokELSE)
	g.Left(TokOR, TokXOR)
	g.Left(TokAND)
	g.Left(TokEq, TokNeq, TokLt, TokLeq, TokGt, TokGeq, TokIN, TokIS)
	g.Left(TokPlus, TokMinus)
	g.Left(TokStar, TokSlash, TokDIV, TokMOD, TokSHL, TokSHR, TokAS)
	g.Right(TokNOT, TokAt)
	g.Left(TokDot, TokLbrack, TokLpar, TokHat)

	g.Start("goal")

	// order matters: on reduce/reduce the earlier production wins, so
	// type names come before expressions
	goalRules(g)
	identRules(g)
	sectionRules(g)
	routineRules(g)
	typeRules(g)
	memberRules(g)
	statementRules(g)
	expressionRules(g)
	return g
}

func goalRules(g *Grammar) {
	for _, n := range []string{"program", "unit", "library", "package"} {
		g.Rule("goal", rhs(n), func(p *Parser, v []any) any {
			return p.accept(v[0].(Goal))
		})
	}

	g.Rule("program", rhs(TokPROGRAM, "ident", "prog_params_opt", TokSemi, "uses_opt", "block", TokDot),
		func(p *Parser, v []any) any {
			return &Program{NodeInfo: p.node(), Name: tokText(v[1]), Params: asStrings(v[2]),
				Uses: asUses(v[4]), Block: v[5].(*Block)}
		})
	g.Rule("prog_params_opt", nil, absent)
	g.Rule("prog_params_opt", rhs(TokLpar, "ident_list", TokRpar), func(p *Parser, v []any) any {
		var res []string
		for _, t := range v[1].([]Token) {
			res = append(res, string(t.Val))
		}
		return res
	})

	g.Rule("unit", rhs(TokUNIT, "qualident", TokSemi, TokINTERFACE, "uses_opt", "intf_decls_opt",
		TokIMPLEMENTATION, "uses_opt", "decls_opt", "unit_end", TokDot),
		func(p *Parser, v []any) any {
			end := v[9].(unitEnd)
			return &Unit{NodeInfo: p.node(), Name: v[1].(string), IntfUses: asUses(v[4]),
				Interface: asDecls(v[5]), ImplUses: asUses(v[7]), Implementation: asDecls(v[8]),
				Init: end.init, Final: end.final}
		})
	g.Rule("unit_end", rhs(TokEND), func(p *Parser, v []any) any { return unitEnd{} })
	g.Rule("unit_end", rhs(TokINITIALIZATION, "stmt_list", TokEND), func(p *Parser, v []any) any {
		return unitEnd{init: v[1].([]Stmt)}
	})
	g.Rule("unit_end", rhs(TokINITIALIZATION, "stmt_list", TokFINALIZATION, "stmt_list", TokEND),
		func(p *Parser, v []any) any {
			return unitEnd{init: v[1].([]Stmt), final: v[3].([]Stmt)}
		})
	g.Rule("unit_end", rhs(TokBEGIN, "stmt_list", TokEND), func(p *Parser, v []any) any {
		return unitEnd{init: v[1].([]Stmt)}
	})

	g.Rule("library", rhs(TokLIBRARY, "ident", TokSemi, "uses_opt", "block", TokDot),
		func(p *Parser, v []any) any {
			return &Library{NodeInfo: p.node(), Name: tokText(v[1]), Uses: asUses(v[3]), Block: v[4].(*Block)}
		})

	g.Rule("package", rhs(TokPACKAGE, "qualident", TokSemi, "requires_opt", "contains_opt", TokEND, TokDot),
		func(p *Parser, v []any) any {
			return &Package{NodeInfo: p.node(), Name: v[1].(string), Requires: asStrings(v[3]),
				Contains: asUses(v[4])}
		})
	g.Rule("requires_opt", nil, absent)
	g.Rule("requires_opt", rhs(TokREQUIRES, "qualident_list", TokSemi), pick(1))
	g.Rule("contains_opt", nil, absent)
	g.Rule("contains_opt", rhs(TokCONTAINS, "uses_list", TokSemi), pick(1))

	g.Rule("uses_opt", nil, absent)
	g.Rule("uses_opt", rhs(TokUSES, "uses_list", TokSemi), pick(1))
	g.Rule("uses_list", rhs("uses_item"), seed[*UnitRef])
	g.Rule("uses_list", rhs("uses_list", TokComma, "uses_item"), appendAt[*UnitRef](2))
	g.Rule("uses_item", rhs("qualident"), func(p *Parser, v []any) any {
		return &UnitRef{NodeInfo: p.node(), Name: v[0].(string)}
	})
	g.Rule("uses_item", rhs("qualident", TokIN, TokString), func(p *Parser, v []any) any {
		return &UnitRef{NodeInfo: p.node(), Name: v[0].(string), Path: tokText(v[2])}
	})
}

func identRules(g *Grammar) {
	g.Rule("ident", rhs(TokIdent), nil)
	for _, t := range softKeywords {
		g.Rule("ident", rhs(t), nil)
	}
	g.Rule("ident_list", rhs("ident"), seed[Token])
	g.Rule("ident_list", rhs("ident_list", TokComma, "ident"), appendAt[Token](2))

	g.Rule("qualident", rhs("ident"), func(p *Parser, v []any) any { return tokText(v[0]) })
	g.Rule("qualident", rhs("qualident", TokDot, "ident"), func(p *Parser, v []any) any {
		return v[0].(string) + "." + tokText(v[2])
	})
	g.Rule("qualident_list", rhs("qualident"), seed[string])
	g.Rule("qualident_list", rhs("qualident_list", TokComma, "qualident"), appendAt[string](2))

	g.Rule("label_id", rhs("ident"), nil)
	g.Rule("label_id", rhs(TokInteger), nil)

	g.Rule("opt_semi", nil, absent)
	g.Rule("opt_semi", rhs(TokSemi), nil)
}

func sectionRules(g *Grammar) {
	g.Rule("block", rhs("decls_opt", "block_body"), func(p *Parser, v []any) any {
		return &Block{NodeInfo: p.node(), Decls: asDecls(v[0]), Body: v[1].(Stmt)}
	})
	g.Rule("block_body", rhs("compound_stmt"), nil)
	g.Rule("block_body", rhs(TokAsm), func(p *Parser, v []any) any {
		return &AsmStmt{NodeInfo: p.node(), Text: tokText(v[0])}
	})

	g.Rule("decls_opt", nil, absent)
	g.Rule("decls_opt", rhs("decl_list"), nil)
	g.Rule("decl_list", rhs("decl_section"), func(p *Parser, v []any) any {
		return append([]Decl(nil), v[0].([]Decl)...)
	})
	g.Rule("decl_list", rhs("decl_list", "decl_section"), func(p *Parser, v []any) any {
		return append(v[0].([]Decl), v[1].([]Decl)...)
	})
	for _, s := range []string{"label_section", "const_section", "type_section", "var_section",
		"threadvar_section", "rs_section", "exports_section"} {
		g.Rule("decl_section", rhs(s), nil)
	}
	g.Rule("decl_section", rhs("routine_decl"), func(p *Parser, v []any) any {
		return []Decl{v[0].(*CallableDecl)}
	})

	g.Rule("intf_decls_opt", nil, absent)
	g.Rule("intf_decls_opt", rhs("intf_decl_list"), nil)
	g.Rule("intf_decl_list", rhs("intf_section"), func(p *Parser, v []any) any {
		return append([]Decl(nil), v[0].([]Decl)...)
	})
	g.Rule("intf_decl_list", rhs("intf_decl_list", "intf_section"), func(p *Parser, v []any) any {
		return append(v[0].([]Decl), v[1].([]Decl)...)
	})
	for _, s := range []string{"const_section", "type_section", "var_section", "threadvar_section", "rs_section"} {
		g.Rule("intf_section", rhs(s), nil)
	}
	g.Rule("intf_section", rhs("routine_proto"), func(p *Parser, v []any) any {
		return []Decl{v[0].(*CallableDecl)}
	})

	g.Rule("label_section", rhs(TokLABEL, "label_list", TokSemi), func(p *Parser, v []any) any {
		var res []Decl
		for _, t := range v[1].([]Token) {
			res = append(res, &LabelDecl{NodeInfo: p.nodeAt(t.LineNr), Name: string(t.Val)})
		}
		return res
	})
	g.Rule("label_list", rhs("label_id"), seed[Token])
	g.Rule("label_list", rhs("label_list", TokComma, "label_id"), appendAt[Token](2))

	g.Rule("const_section", rhs(TokCONST, "const_decls"), pick(1))
	g.Rule("const_decls", rhs("const_decl"), seed[Decl])
	g.Rule("const_decls", rhs("const_decls", "const_decl"), appendAt[Decl](1))
	g.Rule("const_decl", rhs("ident", TokEq, "expr", TokSemi), func(p *Parser, v []any) any {
		return &ConstDecl{NodeInfo: p.node(), Name: tokText(v[0]), Value: v[2].(Expr)}
	})
	g.Rule("const_decl", rhs("ident", TokColon, "type", TokEq, "typed_const", TokSemi),
		func(p *Parser, v []any) any {
			return &ConstDecl{NodeInfo: p.node(), Name: tokText(v[0]), Type: v[2].(TypeNode),
				Value: v[4].(Expr), Kind: ConstTyped}
		})

	g.Rule("rs_section", rhs(TokRESOURCESTRING, "rs_decls"), pick(1))
	g.Rule("rs_decls", rhs("rs_decl"), seed[Decl])
	g.Rule("rs_decls", rhs("rs_decls", "rs_decl"), appendAt[Decl](1))
	g.Rule("rs_decl", rhs("ident", TokEq, "expr", TokSemi), func(p *Parser, v []any) any {
		return &ConstDecl{NodeInfo: p.node(), Name: tokText(v[0]), Value: v[2].(Expr), Kind: ConstResourceString}
	})

	g.Rule("type_section", rhs(TokTYPE, "type_decls"), pick(1))
	g.Rule("type_decls", rhs("type_decl"), seed[Decl])
	g.Rule("type_decls", rhs("type_decls", "type_decl"), appendAt[Decl](1))
	for _, t := range []string{"type", "class_short", "interface_short"} {
		g.Rule("type_decl", rhs("ident", TokEq, t, TokSemi), func(p *Parser, v []any) any {
			return p.typeDecl(v[0].(Token), v[2].(TypeNode))
		})
	}

	g.Rule("var_section", rhs(TokVAR, "var_decls"), func(p *Parser, v []any) any {
		return p.varSection(v[1].([]varGroup), VarPlain)
	})
	g.Rule("threadvar_section", rhs(TokTHREADVAR, "var_decls"), func(p *Parser, v []any) any {
		return p.varSection(v[1].([]varGroup), VarThread)
	})
	g.Rule("var_decls", rhs("var_decl"), seed[varGroup])
	g.Rule("var_decls", rhs("var_decls", "var_decl"), appendAt[varGroup](1))
	g.Rule("var_decl", rhs("ident_list", TokColon, "type", "var_init_opt", TokSemi),
		func(p *Parser, v []any) any {
			vg := varGroup{names: v[0].([]Token), typ: v[2].(TypeNode)}
			if v[3] != nil {
				vi := v[3].(varInit)
				vg.init, vg.absolute = vi.init, vi.absolute
			}
			if vg.init != nil && len(vg.names) > 1 {
				p.reject(p.line, "only one variable can be initialized")
			}
			return vg
		})
	g.Rule("var_init_opt", nil, absent)
	g.Rule("var_init_opt", rhs(TokEq, "typed_const"), func(p *Parser, v []any) any {
		return varInit{init: v[1].(Expr)}
	})
	g.Rule("var_init_opt", rhs(TokABSOLUTE, "qualident"), func(p *Parser, v []any) any {
		return varInit{absolute: v[1].(string)}
	})

	g.Rule("exports_section", rhs(TokEXPORTS, "export_list", TokSemi), pick(1))
	g.Rule("export_list", rhs("export_item"), seed[Decl])
	g.Rule("export_list", rhs("export_list", TokComma, "export_item"), appendAt[Decl](2))
	g.Rule("export_item", rhs("ident"), func(p *Parser, v []any) any {
		return &ExportDecl{NodeInfo: p.node(), Name: tokText(v[0])}
	})
	g.Rule("export_item", rhs("ident", TokNAME, "expr"), func(p *Parser, v []any) any {
		return &ExportDecl{NodeInfo: p.node(), Name: tokText(v[0]), ExportName: v[2].(Expr)}
	})
	g.Rule("export_item", rhs("ident", TokINDEX, "expr"), func(p *Parser, v []any) any {
		return &ExportDecl{NodeInfo: p.node(), Name: tokText(v[0]), Index: v[2].(Expr)}
	})
	g.Rule("export_item", rhs("ident", TokINDEX, "expr", TokNAME, "expr"), func(p *Parser, v []any) any {
		return &ExportDecl{NodeInfo: p.node(), Name: tokText(v[0]), Index: v[2].(Expr), ExportName: v[4].(Expr)}
	})
}

func routineRules(g *Grammar) {
	g.Rule("routine_decl", rhs("routine_head", TokSemi, "directives_opt", "block", TokSemi),
		func(p *Parser, v []any) any {
			d := p.callable(v[0].(*routineHead), v[2], VisDefault)
			d.Body = v[3].(*Block)
			return d
		})
	g.Rule("routine_decl", rhs("routine_head", TokSemi, "directives_opt", TokFORWARD, TokSemi),
		func(p *Parser, v []any) any {
			d := p.callable(v[0].(*routineHead), v[2], VisDefault)
			d.Forward = true
			return d
		})
	g.Rule("routine_decl", rhs("routine_head", TokSemi, "directives_opt", TokEXTERNAL, "external_opt", TokSemi),
		func(p *Parser, v []any) any {
			d := p.callable(v[0].(*routineHead), v[2], VisDefault)
			d.External = p.external(v[4])
			return d
		})

	g.Rule("routine_proto", rhs("routine_head", TokSemi, "directives_opt"), func(p *Parser, v []any) any {
		return p.callable(v[0].(*routineHead), v[2], VisDefault)
	})
	g.Rule("routine_proto", rhs("routine_head", TokSemi, "directives_opt", TokEXTERNAL, "external_opt", TokSemi),
		func(p *Parser, v []any) any {
			d := p.callable(v[0].(*routineHead), v[2], VisDefault)
			d.External = p.external(v[4])
			return d
		})

	g.Rule("routine_head", rhs("routine_kind", "routine_name", "params_opt", "result_opt"),
		func(p *Parser, v []any) any {
			return p.routineHead(false, v[0].(Token), v[1].(routineName), v[2], v[3])
		})
	g.Rule("routine_head", rhs(TokCLASS, "routine_kind", "routine_name", "params_opt", "result_opt"),
		func(p *Parser, v []any) any {
			return p.routineHead(true, v[1].(Token), v[2].(routineName), v[3], v[4])
		})
	for _, t := range []TokenType{TokPROCEDURE, TokFUNCTION, TokCONSTRUCTOR, TokDESTRUCTOR} {
		g.Rule("routine_kind", rhs(t), nil)
	}
	g.Rule("routine_name", rhs("ident"), func(p *Parser, v []any) any {
		return routineName{name: tokText(v[0])}
	})
	g.Rule("routine_name", rhs("ident", TokDot, "ident"), func(p *Parser, v []any) any {
		return routineName{owner: tokText(v[0]), name: tokText(v[2])}
	})
	g.Rule("result_opt", nil, absent)
	g.Rule("result_opt", rhs(TokColon, "named_type"), pick(1))

	g.Rule("params_opt", nil, absent)
	g.Rule("params_opt", rhs(TokLpar, TokRpar), func(p *Parser, v []any) any { return []*ParamDecl{} })
	g.Rule("params_opt", rhs(TokLpar, "param_groups", TokRpar), pick(1))
	g.Rule("param_groups", rhs("param_group"), func(p *Parser, v []any) any {
		return append([]*ParamDecl(nil), v[0].([]*ParamDecl)...)
	})
	g.Rule("param_groups", rhs("param_groups", TokSemi, "param_group"), func(p *Parser, v []any) any {
		return append(v[0].([]*ParamDecl), v[2].([]*ParamDecl)...)
	})
	g.Rule("param_group", rhs("ident_list", TokColon, "param_type", "default_opt"),
		func(p *Parser, v []any) any {
			return p.params(ParamPlain, v[0].([]Token), asType(v[2]), asExpr(v[3]))
		})
	g.Rule("param_group", rhs("param_kind", "ident_list", TokColon, "param_type", "default_opt"),
		func(p *Parser, v []any) any {
			return p.params(paramKindOf(v[0].(Token)), v[1].([]Token), asType(v[3]), asExpr(v[4]))
		})
	g.Rule("param_group", rhs("param_kind", "ident_list"), func(p *Parser, v []any) any {
		return p.params(paramKindOf(v[0].(Token)), v[1].([]Token), nil, nil)
	})
	for _, t := range []TokenType{TokVAR, TokCONST, TokOUT} {
		g.Rule("param_kind", rhs(t), nil)
	}
	g.Rule("param_type", rhs("named_type"), nil)
	g.Rule("param_type", rhs(TokARRAY, TokOF, "named_type"), func(p *Parser, v []any) any {
		return &ArrayType{NodeInfo: p.node(), Elem: v[2].(TypeNode)}
	})
	g.Rule("param_type", rhs(TokARRAY, TokOF, TokCONST), func(p *Parser, v []any) any {
		return &ArrayType{NodeInfo: p.node(), OfConst: true}
	})
	g.Rule("default_opt", nil, absent)
	g.Rule("default_opt", rhs(TokEq, "expr"), pick(1))

	g.Rule("directives_opt", nil, absent)
	g.Rule("directives_opt", rhs("directive_list"), nil)
	g.Rule("directive_list", rhs("directive", TokSemi), seed[Directive])
	g.Rule("directive_list", rhs("directive_list", "directive", TokSemi), appendAt[Directive](1))
	for _, t := range routineDirectives {
		g.Rule("directive", rhs(t), func(p *Parser, v []any) any {
			tok := v[0].(Token)
			if tok.Type == TokINLINE {
				p.require(FeatureInline, tok.LineNr, "inline routines")
			}
			return Directive{Tok: tok.Type}
		})
	}
	g.Rule("directive", rhs(TokMESSAGE, "expr"), func(p *Parser, v []any) any {
		return Directive{Tok: TokMESSAGE, Arg: v[1].(Expr)}
	})

	g.Rule("external_opt", nil, absent)
	g.Rule("external_opt", rhs("expr"), func(p *Parser, v []any) any {
		return &ExternalSpec{Library: v[0].(Expr)}
	})
	g.Rule("external_opt", rhs("expr", TokNAME, "expr"), func(p *Parser, v []any) any {
		return &ExternalSpec{Library: v[0].(Expr), Name: v[2].(Expr)}
	})
	g.Rule("external_opt", rhs("expr", TokINDEX, "expr"), func(p *Parser, v []any) any {
		return &ExternalSpec{Library: v[0].(Expr), Index: v[2].(Expr)}
	})
	g.Rule("external_opt", rhs(TokNAME, "expr"), func(p *Parser, v []any) any {
		return &ExternalSpec{Name: v[1].(Expr)}
	})
}

func typeRules(g *Grammar) {
	for _, n := range []string{"named_type", "string_type", "subrange_type", "enum_type", "pointer_type",
		"classref_type", "array_type", "set_type", "file_type", "record_type", "class_type",
		"interface_type", "proc_type"} {
		g.Rule("type", rhs(n), nil)
	}
	g.Rule("named_type", rhs("qualident"), func(p *Parser, v []any) any {
		return &NamedType{NodeInfo: p.node(), Name: v[0].(string)}
	})
	g.Rule("named_type", rhs(TokSTRING), func(p *Parser, v []any) any {
		return &StringType{NodeInfo: p.node()}
	})
	g.Rule("string_type", rhs(TokSTRING, TokLbrack, "expr", TokRbrack), func(p *Parser, v []any) any {
		return &StringType{NodeInfo: p.node(), Length: v[2].(Expr)}
	})
	g.Rule("subrange_type", rhs("expr", Tok2Dot, "expr"), func(p *Parser, v []any) any {
		return &SubrangeType{NodeInfo: p.node(), Low: v[0].(Expr), High: v[2].(Expr)}
	})
	// a dotted low bound is read as a qualified type name until ".." shows up
	g.Rule("subrange_type", rhs("qualident", TokDot, "ident", Tok2Dot, "expr"), func(p *Parser, v []any) any {
		low := p.dotted(v[0].(string) + "." + tokText(v[2]))
		return &SubrangeType{NodeInfo: p.node(), Low: low, High: v[4].(Expr)}
	})

	g.Rule("enum_type", rhs(TokLpar, "enum_list", TokRpar), func(p *Parser, v []any) any {
		return &EnumType{NodeInfo: p.node(), Members: v[1].([]*EnumMember)}
	})
	g.Rule("enum_list", rhs("enum_item"), seed[*EnumMember])
	g.Rule("enum_list", rhs("enum_list", TokComma, "enum_item"), appendAt[*EnumMember](2))
	g.Rule("enum_item", rhs("ident"), func(p *Parser, v []any) any {
		return &EnumMember{NodeInfo: p.node(), Name: tokText(v[0])}
	})
	g.Rule("enum_item", rhs("ident", TokEq, "expr"), func(p *Parser, v []any) any {
		return &EnumMember{NodeInfo: p.node(), Name: tokText(v[0]), Value: v[2].(Expr)}
	})

	g.Rule("pointer_type", rhs(TokHat, "named_type"), func(p *Parser, v []any) any {
		return &PointerType{NodeInfo: p.node(), Target: v[1].(TypeNode)}
	})
	g.Rule("classref_type", rhs(TokCLASS, TokOF, "named_type"), func(p *Parser, v []any) any {
		return &ClassRefType{NodeInfo: p.node(), Target: v[2].(TypeNode)}
	})

	for _, packed := range []bool{false, true} {
		prefix := []any{}
		if packed {
			prefix = rhs(TokPACKED)
		}
		n := len(prefix)
		packed := packed
		g.Rule("array_type", append(rhs(prefix...), TokARRAY, TokLbrack, "index_list", TokRbrack, TokOF, "type"),
			func(p *Parser, v []any) any {
				return &ArrayType{NodeInfo: p.node(), Packed: packed, Index: v[n+2].([]TypeNode), Elem: v[n+5].(TypeNode)}
			})
		g.Rule("array_type", append(rhs(prefix...), TokARRAY, TokOF, "type"), func(p *Parser, v []any) any {
			return &ArrayType{NodeInfo: p.node(), Packed: packed, Elem: v[n+2].(TypeNode)}
		})
		g.Rule("record_type", append(rhs(prefix...), TokRECORD, "members_opt", "variant_opt", TokEND),
			func(p *Parser, v []any) any {
				members := membersOf(v[n+1])
				for _, m := range members {
					if _, isField := m.(*VarDecl); !isField {
						p.require(FeatureRecordMethods, m.Info().Line, "records with methods or properties")
					}
				}
				var vp *VariantPart
				if v[n+2] != nil {
					vp = v[n+2].(*VariantPart)
				}
				return &RecordType{NodeInfo: p.node(), Packed: packed, Members: members, Variant: vp}
			})
	}
	g.Rule("index_list", rhs("type"), seed[TypeNode])
	g.Rule("index_list", rhs("index_list", TokComma, "type"), appendAt[TypeNode](2))

	g.Rule("set_type", rhs(TokSET, TokOF, "type"), func(p *Parser, v []any) any {
		return &SetType{NodeInfo: p.node(), Elem: v[2].(TypeNode)}
	})
	g.Rule("file_type", rhs(TokFILE), func(p *Parser, v []any) any {
		return &FileType{NodeInfo: p.node()}
	})
	g.Rule("file_type", rhs(TokFILE, TokOF, "type"), func(p *Parser, v []any) any {
		return &FileType{NodeInfo: p.node(), Elem: v[2].(TypeNode)}
	})

	g.Rule("class_type", rhs(TokCLASS, "heritage_opt", "members_opt", TokEND), func(p *Parser, v []any) any {
		return &ClassType{NodeInfo: p.node(), Heritage: asStrings(v[1]), Members: membersOf(v[2])}
	})
	// the bodiless forms only follow "ident =" in a type section, where ";" tells them apart
	g.Rule("class_short", rhs(TokCLASS, "heritage"), func(p *Parser, v []any) any {
		return &ClassType{NodeInfo: p.node(), Heritage: v[1].([]string)}
	})
	g.Rule("class_short", rhs(TokCLASS), func(p *Parser, v []any) any {
		return &ClassType{NodeInfo: p.node(), Forward: true}
	})
	g.Rule("heritage_opt", nil, absent)
	g.Rule("heritage_opt", rhs("heritage"), nil)
	g.Rule("heritage", rhs(TokLpar, "qualident_list", TokRpar), pick(1))

	for _, t := range []TokenType{TokINTERFACE, TokDISPINTERFACE} {
		dispatch := t == TokDISPINTERFACE
		g.Rule("interface_type", rhs(t, "heritage_opt", "guid_opt", "members_opt", TokEND),
			func(p *Parser, v []any) any {
				return &InterfaceType{NodeInfo: p.node(), Heritage: asStrings(v[1]), GUID: asExpr(v[2]),
					Members: membersOf(v[3]), Dispatch: dispatch}
			})
		g.Rule("interface_short", rhs(t), func(p *Parser, v []any) any {
			return &InterfaceType{NodeInfo: p.node(), Dispatch: dispatch, Forward: true}
		})
	}
	g.Rule("guid_opt", nil, absent)
	g.Rule("guid_opt", rhs(TokLbrack, "expr", TokRbrack), pick(1))

	g.Rule("proc_type", rhs(TokPROCEDURE, "params_opt", "of_object_opt"), func(p *Parser, v []any) any {
		return &ProcType{NodeInfo: p.node(), Params: asParams(v[1]), OfObject: v[2] != nil}
	})
	g.Rule("proc_type", rhs(TokFUNCTION, "params_opt", TokColon, "named_type", "of_object_opt"),
		func(p *Parser, v []any) any {
			return &ProcType{NodeInfo: p.node(), Params: asParams(v[1]), Result: v[3].(TypeNode), OfObject: v[4] != nil}
		})
	g.Rule("of_object_opt", nil, absent)
	g.Rule("of_object_opt", rhs(TokOF, TokOBJECT), func(p *Parser, v []any) any { return true })

	g.Rule("variant_opt", nil, absent)
	g.Rule("variant_opt", rhs(TokCASE, "ident", TokColon, "named_type", TokOF, "variant_list", "opt_semi"),
		func(p *Parser, v []any) any {
			return &VariantPart{NodeInfo: p.node(), Tag: tokText(v[1]), TagType: v[3].(TypeNode),
				Cases: v[5].([]*VariantCase)}
		})
	g.Rule("variant_opt", rhs(TokCASE, "named_type", TokOF, "variant_list", "opt_semi"),
		func(p *Parser, v []any) any {
			return &VariantPart{NodeInfo: p.node(), TagType: v[1].(TypeNode), Cases: v[3].([]*VariantCase)}
		})
	g.Rule("variant_list", rhs("variant"), seed[*VariantCase])
	g.Rule("variant_list", rhs("variant_list", TokSemi, "variant"), appendAt[*VariantCase](2))
	g.Rule("variant", rhs("case_label_list", TokColon, TokLpar, "vfields_opt", TokRpar),
		func(p *Parser, v []any) any {
			vc := &VariantCase{NodeInfo: p.node(), Labels: v[0].([]Expr)}
			if v[3] != nil {
				for _, grp := range v[3].([]varGroup) {
					vc.Fields = append(vc.Fields, p.varDecls(grp, VarField, VisDefault)...)
				}
			}
			return vc
		})
	g.Rule("vfields_opt", nil, absent)
	g.Rule("vfields_opt", rhs("vfield_list", "opt_semi"), pick(0))
	g.Rule("vfield_list", rhs("field_decl"), seed[varGroup])
	g.Rule("vfield_list", rhs("vfield_list", TokSemi, "field_decl"), appendAt[varGroup](2))
}

func memberRules(g *Grammar) {
	g.Rule("members_opt", nil, absent)
	g.Rule("members_opt", rhs("member_seq"), nil)
	g.Rule("member_seq", rhs("member_list"), nil)
	g.Rule("member_seq", rhs("member_list", "field_decl"), func(p *Parser, v []any) any {
		return p.addMember(v[0].(memberList), v[1])
	})
	g.Rule("member_seq", rhs("field_decl"), func(p *Parser, v []any) any {
		return p.addMember(memberList{}, v[0])
	})
	g.Rule("member_list", rhs("member"), func(p *Parser, v []any) any {
		return p.addMember(memberList{}, v[0])
	})
	g.Rule("member_list", rhs("member_list", "member"), func(p *Parser, v []any) any {
		return p.addMember(v[0].(memberList), v[1])
	})

	g.Rule("member", rhs("field_decl", TokSemi), pick(0))
	g.Rule("member", rhs("routine_head", TokSemi, "directives_opt"), func(p *Parser, v []any) any {
		mp := &methodPending{head: v[0].(*routineHead)}
		if v[2] != nil {
			mp.dirs = v[2].([]Directive)
		}
		return mp
	})
	g.Rule("member", rhs("property_decl"), nil)
	g.Rule("member", rhs("visibility"), nil)

	g.Rule("field_decl", rhs("ident_list", TokColon, "type"), func(p *Parser, v []any) any {
		return varGroup{names: v[0].([]Token), typ: v[2].(TypeNode)}
	})

	for _, s := range []struct {
		tok TokenType
		vis Visibility
	}{{TokPRIVATE, VisPrivate}, {TokPROTECTED, VisProtected}, {TokPUBLIC, VisPublic}, {TokPUBLISHED, VisPublished}} {
		vis := s.vis
		g.Rule("visibility", rhs(s.tok), func(p *Parser, v []any) any { return vis })
	}
	g.Rule("visibility", rhs(TokSTRICT, TokPRIVATE), func(p *Parser, v []any) any {
		p.require(FeatureStrictVisibility, v[0].(Token).LineNr, "strict visibility")
		return VisStrictPrivate
	})
	g.Rule("visibility", rhs(TokSTRICT, TokPROTECTED), func(p *Parser, v []any) any {
		p.require(FeatureStrictVisibility, v[0].(Token).LineNr, "strict visibility")
		return VisStrictProtected
	})

	g.Rule("property_decl", rhs(TokPROPERTY, "ident", "prop_iface_opt", "prop_specs_opt", TokSemi, "prop_default_opt"),
		func(p *Parser, v []any) any {
			pp := &propPending{name: v[1].(Token), deflt: v[5] != nil, line: v[0].(Token).LineNr}
			if v[2] != nil {
				pp.iface = v[2].(*propIface)
			}
			if v[3] != nil {
				pp.specs = v[3].([]propSpec)
			}
			return pp
		})
	g.Rule("prop_iface_opt", nil, absent)
	g.Rule("prop_iface_opt", rhs(TokColon, "named_type"), func(p *Parser, v []any) any {
		return &propIface{typ: v[1].(TypeNode)}
	})
	g.Rule("prop_iface_opt", rhs(TokLbrack, "param_groups", TokRbrack, TokColon, "named_type"),
		func(p *Parser, v []any) any {
			return &propIface{params: v[1].([]*ParamDecl), typ: v[4].(TypeNode)}
		})
	g.Rule("prop_specs_opt", nil, absent)
	g.Rule("prop_specs_opt", rhs("prop_spec_list"), nil)
	g.Rule("prop_spec_list", rhs("prop_spec"), seed[propSpec])
	g.Rule("prop_spec_list", rhs("prop_spec_list", "prop_spec"), appendAt[propSpec](1))
	for _, t := range []TokenType{TokREAD, TokWRITE} {
		g.Rule("prop_spec", rhs(t, "qualident"), func(p *Parser, v []any) any {
			return propSpec{tok: v[0].(Token).Type, name: v[1].(string)}
		})
	}
	for _, t := range []TokenType{TokINDEX, TokDEFAULT, TokSTORED} {
		g.Rule("prop_spec", rhs(t, "expr"), func(p *Parser, v []any) any {
			return propSpec{tok: v[0].(Token).Type, expr: v[1].(Expr)}
		})
	}
	g.Rule("prop_spec", rhs(TokNODEFAULT), func(p *Parser, v []any) any {
		return propSpec{tok: TokNODEFAULT}
	})
	g.Rule("prop_spec", rhs(TokIMPLEMENTS, "qualident_list"), func(p *Parser, v []any) any {
		return propSpec{tok: TokIMPLEMENTS, names: v[1].([]string)}
	})
	g.Rule("prop_default_opt", nil, absent)
	g.Rule("prop_default_opt", rhs(TokDEFAULT, TokSemi), func(p *Parser, v []any) any { return true })
}

func statementRules(g *Grammar) {
	g.Rule("stmt_list", rhs("stmt"), seed[Stmt])
	g.Rule("stmt_list", rhs("stmt_list", TokSemi, "stmt"), appendAt[Stmt](2))

	g.Rule("stmt", nil, func(p *Parser, v []any) any { return &EmptyStmt{NodeInfo: p.node()} })
	g.Rule("stmt", rhs("ident", TokColon, "stmt"), func(p *Parser, v []any) any {
		return &LabeledStmt{NodeInfo: p.node(), Label: tokText(v[0]), Stmt: v[2].(Stmt)}
	})
	g.Rule("stmt", rhs(TokInteger, TokColon, "stmt"), func(p *Parser, v []any) any {
		return &LabeledStmt{NodeInfo: p.node(), Label: tokText(v[0]), Stmt: v[2].(Stmt)}
	})
	g.Rule("stmt", rhs("designator", TokColonEq, "expr"), func(p *Parser, v []any) any {
		return &AssignStmt{NodeInfo: p.node(), Target: v[0].(Expr), Value: v[2].(Expr)}
	})
	g.Rule("stmt", rhs("designator"), func(p *Parser, v []any) any {
		return &CallStmt{NodeInfo: p.node(), Call: v[0].(Expr)}
	})
	g.Rule("stmt", rhs(TokINHERITED), func(p *Parser, v []any) any {
		return &CallStmt{NodeInfo: p.node(), Call: &InheritedCall{NodeInfo: p.node()}}
	})
	g.Rule("stmt", rhs(TokGOTO, "label_id"), func(p *Parser, v []any) any {
		return &GotoStmt{NodeInfo: p.node(), Label: tokText(v[1])}
	})
	g.Rule("stmt", rhs(TokRAISE), func(p *Parser, v []any) any {
		return &RaiseStmt{NodeInfo: p.node()}
	})
	g.Rule("stmt", rhs(TokRAISE, "expr"), func(p *Parser, v []any) any {
		return &RaiseStmt{NodeInfo: p.node(), Exception: v[1].(Expr)}
	})
	g.Rule("stmt", rhs(TokRAISE, "expr", TokAT, "expr"), func(p *Parser, v []any) any {
		return &RaiseStmt{NodeInfo: p.node(), Exception: v[1].(Expr), At: v[3].(Expr)}
	})
	g.Rule("stmt", rhs(TokBREAK), func(p *Parser, v []any) any { return &BreakStmt{NodeInfo: p.node()} })
	g.Rule("stmt", rhs(TokCONTINUE), func(p *Parser, v []any) any { return &ContinueStmt{NodeInfo: p.node()} })
	g.Rule("stmt", rhs(TokAsm), func(p *Parser, v []any) any {
		return &AsmStmt{NodeInfo: p.node(), Text: tokText(v[0])}
	})
	g.Rule("stmt", rhs("compound_stmt"), nil)

	g.Rule("compound_stmt", rhs(TokBEGIN, "stmt_list", TokEND), func(p *Parser, v []any) any {
		return &CompoundStmt{NodeInfo: p.node(), Stmts: v[1].([]Stmt)}
	})

	g.Rule("stmt", rhs(TokIF, "expr", TokTHEN, "stmt"), func(p *Parser, v []any) any {
		return &IfStmt{NodeInfo: p.node(), Cond: v[1].(Expr), Then: v[3].(Stmt)}
	})
	g.Rule("stmt", rhs(TokIF, "expr", TokTHEN, "stmt", TokELSE, "stmt"), func(p *Parser, v []any) any {
		return &IfStmt{NodeInfo: p.node(), Cond: v[1].(Expr), Then: v[3].(Stmt), Else: v[5].(Stmt)}
	})

	g.Rule("stmt", rhs(TokCASE, "expr", TokOF, "case_arms", "opt_semi", "case_else_opt", TokEND),
		func(p *Parser, v []any) any {
			return &CaseStmt{NodeInfo: p.node(), Selector: v[1].(Expr), Arms: v[3].([]*CaseArm), Else: asStmts(v[5])}
		})
	g.Rule("case_arms", rhs("case_arm"), seed[*CaseArm])
	g.Rule("case_arms", rhs("case_arms", TokSemi, "case_arm"), appendAt[*CaseArm](2))
	g.Rule("case_arm", rhs("case_label_list", TokColon, "stmt"), func(p *Parser, v []any) any {
		return &CaseArm{NodeInfo: p.node(), Labels: v[0].([]Expr), Body: v[2].(Stmt)}
	})
	g.Rule("case_label_list", rhs("case_label"), seed[Expr])
	g.Rule("case_label_list", rhs("case_label_list", TokComma, "case_label"), appendAt[Expr](2))
	g.Rule("case_label", rhs("expr"), nil)
	g.Rule("case_label", rhs("expr", Tok2Dot, "expr"), func(p *Parser, v []any) any {
		return &RangeExpr{NodeInfo: p.node(), Low: v[0].(Expr), High: v[2].(Expr)}
	})
	g.Rule("case_else_opt", nil, absent)
	g.Rule("case_else_opt", rhs(TokELSE, "stmt_list"), pick(1))

	g.Rule("stmt", rhs(TokFOR, "ident", TokColonEq, "expr", TokTO, "expr", TokDO, "stmt"),
		func(p *Parser, v []any) any {
			return &ForStmt{NodeInfo: p.node(), Var: tokText(v[1]), From: v[3].(Expr), To: v[5].(Expr), Body: v[7].(Stmt)}
		})
	g.Rule("stmt", rhs(TokFOR, "ident", TokColonEq, "expr", TokDOWNTO, "expr", TokDO, "stmt"),
		func(p *Parser, v []any) any {
			return &ForStmt{NodeInfo: p.node(), Var: tokText(v[1]), From: v[3].(Expr), To: v[5].(Expr),
				Down: true, Body: v[7].(Stmt)}
		})
	g.Rule("stmt", rhs(TokFOR, "ident", TokIN, "expr", TokDO, "stmt"), func(p *Parser, v []any) any {
		p.require(FeatureForIn, v[0].(Token).LineNr, "for-in loops")
		return &ForInStmt{NodeInfo: p.node(), Var: tokText(v[1]), Coll: v[3].(Expr), Body: v[5].(Stmt)}
	})
	g.Rule("stmt", rhs(TokWHILE, "expr", TokDO, "stmt"), func(p *Parser, v []any) any {
		return &WhileStmt{NodeInfo: p.node(), Cond: v[1].(Expr), Body: v[3].(Stmt)}
	})
	g.Rule("stmt", rhs(TokREPEAT, "stmt_list", TokUNTIL, "expr"), func(p *Parser, v []any) any {
		return &RepeatStmt{NodeInfo: p.node(), Body: v[1].([]Stmt), Cond: v[3].(Expr)}
	})
	g.Rule("stmt", rhs(TokWITH, "expr_list", TokDO, "stmt"), func(p *Parser, v []any) any {
		return &WithStmt{NodeInfo: p.node(), Objects: v[1].([]Expr), Body: v[3].(Stmt)}
	})

	g.Rule("stmt", rhs(TokTRY, "stmt_list", TokFINALLY, "stmt_list", TokEND), func(p *Parser, v []any) any {
		return &TryFinallyStmt{NodeInfo: p.node(), Body: v[1].([]Stmt), Finally: v[3].([]Stmt)}
	})
	g.Rule("stmt", rhs(TokTRY, "stmt_list", TokEXCEPT, "except_body", TokEND), func(p *Parser, v []any) any {
		eb := v[3].(exceptBody)
		return &TryExceptStmt{NodeInfo: p.node(), Body: v[1].([]Stmt), Handlers: eb.handlers, Else: eb.els, Default: eb.deflt}
	})
	g.Rule("except_body", rhs("stmt_list"), func(p *Parser, v []any) any {
		return exceptBody{deflt: v[0].([]Stmt)}
	})
	g.Rule("except_body", rhs("handler_list", "opt_semi", "case_else_opt"), func(p *Parser, v []any) any {
		return exceptBody{handlers: v[0].([]*ExceptHandler), els: asStmts(v[2])}
	})
	g.Rule("handler_list", rhs("handler"), seed[*ExceptHandler])
	g.Rule("handler_list", rhs("handler_list", TokSemi, "handler"), appendAt[*ExceptHandler](2))
	g.Rule("handler", rhs(TokON, "ident", TokColon, "qualident", TokDO, "stmt"), func(p *Parser, v []any) any {
		return &ExceptHandler{NodeInfo: p.node(), Var: tokText(v[1]),
			Type: &NamedType{NodeInfo: p.node(), Name: v[3].(string)}, Body: v[5].(Stmt)}
	})
	g.Rule("handler", rhs(TokON, "qualident", TokDO, "stmt"), func(p *Parser, v []any) any {
		return &ExceptHandler{NodeInfo: p.node(), Type: &NamedType{NodeInfo: p.node(), Name: v[1].(string)},
			Body: v[3].(Stmt)}
	})
}

func expressionRules(g *Grammar) {
	g.Rule("expr_list", rhs("expr"), seed[Expr])
	g.Rule("expr_list", rhs("expr_list", TokComma, "expr"), appendAt[Expr](2))

	binary := func(p *Parser, v []any) any {
		return &BinaryExpr{NodeInfo: p.node(), Op: binaryOps[v[1].(Token).Type], Left: v[0].(Expr), Right: v[2].(Expr)}
	}
	ops := make([]TokenType, 0, len(binaryOps))
	for t := range binaryOps {
		ops = append(ops, t)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	for _, t := range ops {
		g.Rule("expr", rhs("expr", t, "expr"), binary)
	}
	unary := func(op UnaryOp) ReduceFunc {
		return func(p *Parser, v []any) any {
			return &UnaryExpr{NodeInfo: p.node(), Op: op, Operand: v[1].(Expr)}
		}
	}
	g.Rule("expr", rhs(TokNOT, "expr"), unary(OpNot))
	g.Rule("expr", rhs(TokAt, "expr"), unary(OpAddressOf))
	g.RulePrec("expr", TokNOT, rhs(TokMinus, "expr"), unary(OpMinus))
	g.RulePrec("expr", TokNOT, rhs(TokPlus, "expr"), unary(OpPlus))
	g.Rule("expr", rhs("primary"), nil)

	g.Rule("primary", rhs(TokInteger), func(p *Parser, v []any) any {
		return p.intLiteral(v[0].(Token))
	})
	g.Rule("primary", rhs(TokReal), func(p *Parser, v []any) any {
		t := v[0].(Token)
		f, err := strconv.ParseFloat(string(t.Val), 64)
		if err != nil {
			p.reject(t.LineNr, "invalid real literal "+string(t.Val))
		}
		return &RealLiteral{NodeInfo: p.node(), Value: f, Text: string(t.Val)}
	})
	g.Rule("primary", rhs(TokString), func(p *Parser, v []any) any {
		s := tokText(v[0])
		if r := []rune(s); len(r) == 1 {
			return &CharLiteral{NodeInfo: p.node(), Value: r[0]}
		}
		return &StringLiteral{NodeInfo: p.node(), Value: s}
	})
	g.Rule("primary", rhs(TokNIL), func(p *Parser, v []any) any { return &NilLiteral{NodeInfo: p.node()} })
	g.Rule("primary", rhs(TokLbrack, TokRbrack), func(p *Parser, v []any) any {
		return &SetConstructor{NodeInfo: p.node(), Elems: []Expr{}}
	})
	g.Rule("primary", rhs(TokLbrack, "set_elems", TokRbrack), func(p *Parser, v []any) any {
		return &SetConstructor{NodeInfo: p.node(), Elems: v[1].([]Expr)}
	})
	g.Rule("primary", rhs("designator"), nil)
	g.Rule("set_elems", rhs("set_elem"), seed[Expr])
	g.Rule("set_elems", rhs("set_elems", TokComma, "set_elem"), appendAt[Expr](2))
	g.Rule("set_elem", rhs("expr"), nil)
	g.Rule("set_elem", rhs("expr", Tok2Dot, "expr"), func(p *Parser, v []any) any {
		return &RangeExpr{NodeInfo: p.node(), Low: v[0].(Expr), High: v[2].(Expr)}
	})

	g.Rule("designator", rhs("ident"), func(p *Parser, v []any) any {
		return &UnresolvedName{NodeInfo: p.node(), Name: tokText(v[0])}
	})
	g.Rule("designator", rhs("designator", TokDot, "ident"), func(p *Parser, v []any) any {
		return &FieldAccess{NodeInfo: p.node(), Object: v[0].(Expr), Field: tokText(v[2])}
	})
	g.Rule("designator", rhs("designator", TokLbrack, "expr_list", TokRbrack), func(p *Parser, v []any) any {
		return &ArrayAccess{NodeInfo: p.node(), Array: v[0].(Expr), Indexes: v[2].([]Expr)}
	})
	g.Rule("designator", rhs("designator", TokLpar, TokRpar), func(p *Parser, v []any) any {
		return p.call(v[0].(Expr), []Expr{})
	})
	g.Rule("designator", rhs("designator", TokLpar, "expr_list", TokRpar), func(p *Parser, v []any) any {
		return p.call(v[0].(Expr), v[2].([]Expr))
	})
	g.Rule("designator", rhs("designator", TokHat), func(p *Parser, v []any) any {
		return &PointerDeref{NodeInfo: p.node(), Pointer: v[0].(Expr)}
	})
	g.Rule("designator", rhs(TokLpar, "expr", TokRpar), pick(1))
	g.Rule("designator", rhs(TokINHERITED, "ident"), func(p *Parser, v []any) any {
		return &InheritedCall{NodeInfo: p.node(), Method: tokText(v[1])}
	})
	g.Rule("designator", rhs(TokSTRING, TokLpar, "expr", TokRpar), func(p *Parser, v []any) any {
		return &RoutineCall{NodeInfo: p.node(), Callee: &Identifier{NodeInfo: p.node(), Name: "string"},
			Args: []Expr{v[2].(Expr)}}
	})

	g.Rule("typed_const", rhs("expr"), nil)
	g.Rule("typed_const", rhs(TokLpar, "typed_const", TokComma, "typed_const_list", TokRpar),
		func(p *Parser, v []any) any {
			elems := append([]Expr{v[1].(Expr)}, v[3].([]Expr)...)
			return &ArrayConst{NodeInfo: p.node(), Elems: elems}
		})
	g.Rule("typed_const", rhs(TokLpar, "field_inits", "opt_semi", TokRpar), func(p *Parser, v []any) any {
		return &RecordConst{NodeInfo: p.node(), Fields: v[1].([]*FieldInit)}
	})
	g.Rule("typed_const_list", rhs("typed_const"), seed[Expr])
	g.Rule("typed_const_list", rhs("typed_const_list", TokComma, "typed_const"), appendAt[Expr](2))
	g.Rule("field_inits", rhs("field_init"), seed[*FieldInit])
	g.Rule("field_inits", rhs("field_inits", TokSemi, "field_init"), appendAt[*FieldInit](2))
	g.Rule("field_init", rhs("ident", TokColon, "typed_const"), func(p *Parser, v []any) any {
		return &FieldInit{NodeInfo: p.node(), Name: tokText(v[0]), Value: v[2].(Expr)}
	})
}

///// construction helpers used by the reduction actions

func (p *Parser) intLiteral(t Token) *IntLiteral {
	s := string(t.Val)
	var n uint64
	var err error
	if strings.HasPrefix(s, "$") {
		n, err = strconv.ParseUint(s[1:], 16, 64)
	} else {
		n, err = strconv.ParseUint(s, 10, 64)
	}
	if err != nil {
		p.reject(t.LineNr, "integer literal out of range: "+s)
	}
	return &IntLiteral{NodeInfo: p.node(), Value: n, Text: s}
}

// call attaches arguments; "inherited Name(args)" stays an inherited call
func (p *Parser) call(callee Expr, args []Expr) Expr {
	if ic, ok := callee.(*InheritedCall); ok && ic.Args == nil {
		return &InheritedCall{NodeInfo: p.node(), Method: ic.Method, Args: args}
	}
	return &RoutineCall{NodeInfo: p.node(), Callee: callee, Args: args}
}

// dotted turns a qualified name into the field access chain an expression would have parsed
func (p *Parser) dotted(name string) Expr {
	parts := strings.Split(name, ".")
	var e Expr = &UnresolvedName{NodeInfo: p.node(), Name: parts[0]}
	for _, f := range parts[1:] {
		e = &FieldAccess{NodeInfo: p.node(), Object: e, Field: f}
	}
	return e
}

func paramKindOf(t Token) ParamKind {
	switch t.Type {
	case TokVAR:
		return ParamVar
	case TokCONST:
		return ParamConst
	case TokOUT:
		return ParamOut
	}
	return ParamPlain
}

func (p *Parser) params(kind ParamKind, names []Token, typ TypeNode, deflt Expr) []*ParamDecl {
	if deflt != nil && len(names) > 1 {
		p.reject(names[0].LineNr, "default value requires a single parameter")
	}
	res := make([]*ParamDecl, 0, len(names))
	for _, n := range names {
		res = append(res, &ParamDecl{NodeInfo: p.nodeAt(n.LineNr), Name: string(n.Val), Kind: kind, Type: typ, Default: deflt})
	}
	return res
}

func (p *Parser) routineHead(class bool, kind Token, name routineName, params, result any) *routineHead {
	h := &routineHead{class: class, owner: name.owner, name: name.name, params: asParams(params),
		result: asType(result), line: kind.LineNr}
	switch kind.Type {
	case TokPROCEDURE:
		h.kind = RoutineProcedure
	case TokFUNCTION:
		h.kind = RoutineFunction
	case TokCONSTRUCTOR:
		h.kind = RoutineConstructor
	case TokDESTRUCTOR:
		h.kind = RoutineDestructor
	}
	if h.result != nil && h.kind != RoutineFunction {
		p.reject(kind.LineNr, h.kind.String()+" "+h.name+" cannot have a result type")
	}
	return h
}

func (p *Parser) callable(h *routineHead, dirs any, vis Visibility) *CallableDecl {
	d := &CallableDecl{NodeInfo: p.nodeAt(h.line), Name: h.name, Owner: h.owner, Kind: h.kind,
		ClassMethod: h.class, Params: h.params, Result: h.result, Visibility: vis}
	if dirs != nil {
		d.Directives = dirs.([]Directive)
	}
	return d
}

func (p *Parser) external(v any) *ExternalSpec {
	if v == nil {
		return &ExternalSpec{}
	}
	return v.(*ExternalSpec)
}

func (p *Parser) varDecls(g varGroup, kind VarKind, vis Visibility) []*VarDecl {
	res := make([]*VarDecl, 0, len(g.names))
	for _, n := range g.names {
		res = append(res, &VarDecl{NodeInfo: p.nodeAt(n.LineNr), Name: string(n.Val), Type: g.typ,
			Init: g.init, Absolute: g.absolute, Kind: kind, Visibility: vis})
	}
	return res
}

func (p *Parser) varSection(groups []varGroup, kind VarKind) []Decl {
	var res []Decl
	for _, g := range groups {
		for _, d := range p.varDecls(g, kind, VisDefault) {
			res = append(res, d)
		}
	}
	return res
}

// addMember turns a pending member into nodes with the current visibility
func (p *Parser) addMember(l memberList, m any) memberList {
	switch m := m.(type) {
	case Visibility:
		l.vis = m
	case varGroup:
		for _, d := range p.varDecls(m, VarField, l.vis) {
			l.items = append(l.items, d)
		}
	case *methodPending:
		l.items = append(l.items, p.callable(m.head, m.dirs, l.vis))
	case *propPending:
		l.items = append(l.items, p.property(m, l.vis))
	default:
		panic(internalf("unexpected member value %T", m))
	}
	return l
}

func (p *Parser) property(pp *propPending, vis Visibility) *PropertyDecl {
	d := &PropertyDecl{NodeInfo: p.nodeAt(pp.line), Name: string(pp.name.Val), DefaultArray: pp.deflt, Visibility: vis}
	if pp.iface != nil {
		d.Params, d.Type = pp.iface.params, pp.iface.typ
	}
	for _, s := range pp.specs {
		switch s.tok {
		case TokREAD:
			d.Read = s.name
		case TokWRITE:
			d.Write = s.name
		case TokINDEX:
			d.Index = s.expr
		case TokDEFAULT:
			d.Default = s.expr
		case TokSTORED:
			d.Stored = s.expr
		case TokNODEFAULT:
			d.NoDefault = true
		case TokIMPLEMENTS:
			d.Implements = s.names
		}
	}
	return d
}

func membersOf(v any) []Member {
	if v == nil {
		return nil
	}
	return v.(memberList).items
}

// typeDecl makes named classes, interfaces and records composite
// declarations; forward declarations stay plain type declarations.
func (p *Parser) typeDecl(name Token, t TypeNode) Decl {
	n := string(name.Val)
	var c *CompositeDecl
	switch t := t.(type) {
	case *ClassType:
		if !t.Forward {
			c = &CompositeDecl{Kind: CompClass, Heritage: t.Heritage, Members: t.Members}
		}
	case *InterfaceType:
		if !t.Forward {
			c = &CompositeDecl{Kind: CompInterface, Heritage: t.Heritage, Members: t.Members}
			if t.Dispatch {
				c.Kind = CompDispInterface
			}
		}
	case *RecordType:
		c = &CompositeDecl{Kind: CompRecord, Members: t.Members}
	}
	if c == nil {
		return &TypeDecl{NodeInfo: p.nodeAt(name.LineNr), Name: n, Type: t}
	}
	c.NodeInfo = p.nodeAt(name.LineNr)
	c.Name = n
	c.Type = t
	for _, m := range c.Members {
		if cd, ok := m.(*CallableDecl); ok {
			cd.Owner = n
		}
	}
	return c
}
