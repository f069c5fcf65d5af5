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

import "strings"

// NodeID numbers nodes in construction order, starting at 1. Since children
// are built before their parents the goal node has the highest id of a tree.
type NodeID uint32

type NodeInfo struct {
	ID   NodeID
	Line uint32
}

func (n *NodeInfo) Info() *NodeInfo { return n }

// Node is the root of everything the parser builds. Nodes are not changed
// after construction; see Annotations for the data later passes attach.
type Node interface {
	Info() *NodeInfo
}

type Expr interface {
	Node
	exprNode()
}

type Stmt interface {
	Node
	stmtNode()
}

type TypeNode interface {
	Node
	typeNode()
}

// Decl is a named entity which can be registered in a Frame
type Decl interface {
	Node
	DeclName() string
	declNode()
}

// Member is a declaration inside a class, interface or record
type Member interface {
	Decl
	Visible() Visibility
}

// Goal is the root of a compilation unit
type Goal interface {
	Node
	GoalName() string
	goalNode()
}

///// Expressions

type UnaryOp uint8

const (
	OpPlus UnaryOp = iota
	OpMinus
	OpNot
	OpAddressOf
)

var unaryOpNames = [...]string{"+", "-", "not", "@"}

func (op UnaryOp) String() string { return unaryOpNames[op] }

type BinaryOp uint8

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpRealDiv
	OpDiv
	OpMod
	OpShl
	OpShr

	OpAnd
	OpOr
	OpXor

	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpLtSigned
	OpLeSigned
	OpGtSigned
	OpGeSigned

	OpIn

	OpIs
	OpAs
)

type OpCategory uint8

const (
	CatArithmetic OpCategory = iota
	CatLogical
	CatComparison
	CatMembership
	CatTypeRelational
)

var binaryOpNames = [...]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpRealDiv: "/", OpDiv: "div", OpMod: "mod",
	OpShl: "shl", OpShr: "shr", OpAnd: "and", OpOr: "or", OpXor: "xor",
	OpEq: "=", OpNe: "<>", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
	OpLtSigned: "<(s)", OpLeSigned: "<=(s)", OpGtSigned: ">(s)", OpGeSigned: ">=(s)",
	OpIn: "in", OpIs: "is", OpAs: "as",
}

func (op BinaryOp) String() string { return binaryOpNames[op] }

func (op BinaryOp) Category() OpCategory {
	switch {
	case op <= OpShr:
		return CatArithmetic
	case op <= OpXor:
		return CatLogical
	case op <= OpGeSigned:
		return CatComparison
	case op == OpIn:
		return CatMembership
	}
	return CatTypeRelational
}

// Signed maps an ordering comparison to its signed variant
func (op BinaryOp) Signed() BinaryOp {
	switch op {
	case OpLt:
		return OpLtSigned
	case OpLe:
		return OpLeSigned
	case OpGt:
		return OpGtSigned
	case OpGe:
		return OpGeSigned
	}
	return op
}

type IntLiteral struct {
	NodeInfo
	Value uint64
	Text  string
}

type RealLiteral struct {
	NodeInfo
	Value float64
	Text  string
}

type CharLiteral struct {
	NodeInfo
	Value rune
}

type StringLiteral struct {
	NodeInfo
	Value string
}

type BoolLiteral struct {
	NodeInfo
	Value bool
}

type NilLiteral struct {
	NodeInfo
}

type ArrayConst struct {
	NodeInfo
	Elems []Expr
}

type FieldInit struct {
	NodeInfo
	Name  string
	Value Expr
}

type RecordConst struct {
	NodeInfo
	Fields []*FieldInit
}

// SetConstructor elements are expressions or RangeExpr
type SetConstructor struct {
	NodeInfo
	Elems []Expr
}

type RangeExpr struct {
	NodeInfo
	Low, High Expr
}

type UnaryExpr struct {
	NodeInfo
	Op      UnaryOp
	Operand Expr
}

type BinaryExpr struct {
	NodeInfo
	Op          BinaryOp
	Left, Right Expr
}

// Identifier is a name known to denote a value, type or unit
type Identifier struct {
	NodeInfo
	Name string
}

// RoutineCall has nil Args if written without parentheses
type RoutineCall struct {
	NodeInfo
	Callee Expr
	Args   []Expr
}

type FieldAccess struct {
	NodeInfo
	Object Expr
	Field  string
}

type ArrayAccess struct {
	NodeInfo
	Array   Expr
	Indexes []Expr
}

type PointerDeref struct {
	NodeInfo
	Pointer Expr
}

// InheritedCall is "inherited" alone (Method empty) or "inherited Name"
type InheritedCall struct {
	NodeInfo
	Method string
	Args   []Expr
}

// UnresolvedName is a bare name which may be a variable or a call without
// arguments; the binder replaces it by an Identifier or a RoutineCall.
type UnresolvedName struct {
	NodeInfo
	Name string
}

// ResultRef denotes the implicit result variable of Routine
type ResultRef struct {
	NodeInfo
	Routine string
}

func (*IntLiteral) exprNode()     {}
func (*RealLiteral) exprNode()    {}
func (*CharLiteral) exprNode()    {}
func (*StringLiteral) exprNode()  {}
func (*BoolLiteral) exprNode()    {}
func (*NilLiteral) exprNode()     {}
func (*ArrayConst) exprNode()     {}
func (*RecordConst) exprNode()    {}
func (*SetConstructor) exprNode() {}
func (*RangeExpr) exprNode()      {}
func (*UnaryExpr) exprNode()      {}
func (*BinaryExpr) exprNode()     {}
func (*Identifier) exprNode()     {}
func (*RoutineCall) exprNode()    {}
func (*FieldAccess) exprNode()    {}
func (*ArrayAccess) exprNode()    {}
func (*PointerDeref) exprNode()   {}
func (*InheritedCall) exprNode()  {}
func (*UnresolvedName) exprNode() {}
func (*ResultRef) exprNode()      {}

// IsLvalue reports the expression forms which denote an assignable location
func IsLvalue(e Expr) bool {
	switch e.(type) {
	case *Identifier, *UnresolvedName, *FieldAccess, *ArrayAccess, *PointerDeref, *ResultRef:
		return true
	}
	return false
}

///// Statements

type CompoundStmt struct {
	NodeInfo
	Stmts []Stmt
}

type AssignStmt struct {
	NodeInfo
	Target Expr
	Value  Expr
}

type CallStmt struct {
	NodeInfo
	Call Expr
}

type IfStmt struct {
	NodeInfo
	Cond Expr
	Then Stmt
	Else Stmt
}

type CaseArm struct {
	NodeInfo
	Labels []Expr
	Body   Stmt
}

type CaseStmt struct {
	NodeInfo
	Selector Expr
	Arms     []*CaseArm
	Else     []Stmt
}

type ForStmt struct {
	NodeInfo
	Var      string
	From, To Expr
	Down     bool
	Body     Stmt
}

type ForInStmt struct {
	NodeInfo
	Var  string
	Coll Expr
	Body Stmt
}

type WhileStmt struct {
	NodeInfo
	Cond Expr
	Body Stmt
}

type RepeatStmt struct {
	NodeInfo
	Body []Stmt
	Cond Expr
}

type WithStmt struct {
	NodeInfo
	Objects []Expr
	Body    Stmt
}

type ExceptHandler struct {
	NodeInfo
	Var  string
	Type *NamedType
	Body Stmt
}

// TryExceptStmt has either Handlers (with optional Else) or a plain Default part
type TryExceptStmt struct {
	NodeInfo
	Body     []Stmt
	Handlers []*ExceptHandler
	Else     []Stmt
	Default  []Stmt
}

type TryFinallyStmt struct {
	NodeInfo
	Body    []Stmt
	Finally []Stmt
}

type RaiseStmt struct {
	NodeInfo
	Exception Expr
	At        Expr
}

type GotoStmt struct {
	NodeInfo
	Label string
}

type LabeledStmt struct {
	NodeInfo
	Label string
	Stmt  Stmt
}

type AsmStmt struct {
	NodeInfo
	Text string
}

type BreakStmt struct{ NodeInfo }
type ContinueStmt struct{ NodeInfo }
type EmptyStmt struct{ NodeInfo }

func (*CompoundStmt) stmtNode()   {}
func (*AssignStmt) stmtNode()     {}
func (*CallStmt) stmtNode()       {}
func (*IfStmt) stmtNode()         {}
func (*CaseStmt) stmtNode()       {}
func (*ForStmt) stmtNode()        {}
func (*ForInStmt) stmtNode()      {}
func (*WhileStmt) stmtNode()      {}
func (*RepeatStmt) stmtNode()     {}
func (*WithStmt) stmtNode()       {}
func (*TryExceptStmt) stmtNode()  {}
func (*TryFinallyStmt) stmtNode() {}
func (*RaiseStmt) stmtNode()      {}
func (*GotoStmt) stmtNode()       {}
func (*LabeledStmt) stmtNode()    {}
func (*AsmStmt) stmtNode()        {}
func (*BreakStmt) stmtNode()      {}
func (*ContinueStmt) stmtNode()   {}
func (*EmptyStmt) stmtNode()      {}

///// Types

// NamedType refers to a declared type by its possibly qualified name
type NamedType struct {
	NodeInfo
	Name string
}

// StringType with nil Length is the long string type
type StringType struct {
	NodeInfo
	Length Expr
}

type SubrangeType struct {
	NodeInfo
	Low, High Expr
}

type EnumMember struct {
	NodeInfo
	Name  string
	Value Expr
}

type EnumType struct {
	NodeInfo
	Members []*EnumMember
}

type PointerType struct {
	NodeInfo
	Target TypeNode
}

type ClassRefType struct {
	NodeInfo
	Target TypeNode
}

// ArrayType with nil Index is a dynamic or open array
type ArrayType struct {
	NodeInfo
	Packed  bool
	Index   []TypeNode
	Elem    TypeNode
	OfConst bool
}

type SetType struct {
	NodeInfo
	Elem TypeNode
}

type FileType struct {
	NodeInfo
	Elem TypeNode
}

type VariantCase struct {
	NodeInfo
	Labels []Expr
	Fields []*VarDecl
}

type VariantPart struct {
	NodeInfo
	Tag     string
	TagType TypeNode
	Cases   []*VariantCase
}

type RecordType struct {
	NodeInfo
	Packed  bool
	Members []Member
	Variant *VariantPart
}

type ClassType struct {
	NodeInfo
	Heritage []string
	Members  []Member
	Forward  bool
}

type InterfaceType struct {
	NodeInfo
	Heritage []string
	GUID     Expr
	Members  []Member
	Dispatch bool
	Forward  bool
}

type ProcType struct {
	NodeInfo
	Params   []*ParamDecl
	Result   TypeNode
	OfObject bool
}

// OrdinalType is a built-in integral, char or boolean type
type OrdinalType struct {
	NodeInfo
	Name   string
	Kind   OrdinalKind
	Size   int
	Signed bool
}

type RealType struct {
	NodeInfo
	Name string
	Size int
}

type BuiltinPointerType struct {
	NodeInfo
	Name   string
	Target TypeNode
}

type BuiltinStringType struct {
	NodeInfo
	Name  string
	Wide  bool
	Short bool
}

type VariantType struct {
	NodeInfo
	Name string
}

func (*NamedType) typeNode()          {}
func (*StringType) typeNode()         {}
func (*SubrangeType) typeNode()       {}
func (*EnumType) typeNode()           {}
func (*PointerType) typeNode()        {}
func (*ClassRefType) typeNode()       {}
func (*ArrayType) typeNode()          {}
func (*SetType) typeNode()            {}
func (*FileType) typeNode()           {}
func (*RecordType) typeNode()         {}
func (*ClassType) typeNode()          {}
func (*InterfaceType) typeNode()      {}
func (*ProcType) typeNode()           {}
func (*OrdinalType) typeNode()        {}
func (*RealType) typeNode()           {}
func (*BuiltinPointerType) typeNode() {}
func (*BuiltinStringType) typeNode()  {}
func (*VariantType) typeNode()        {}

///// Declarations

type Visibility uint8

const (
	VisDefault Visibility = iota
	VisStrictPrivate
	VisPrivate
	VisStrictProtected
	VisProtected
	VisPublic
	VisPublished
)

var visibilityNames = [...]string{"", "strict private", "private", "strict protected", "protected", "public", "published"}

func (v Visibility) String() string { return visibilityNames[v] }

// Inheritable reports whether a member with this visibility is seen in descendants
func (v Visibility) Inheritable() bool {
	return v != VisStrictPrivate
}

type TypeDecl struct {
	NodeInfo
	Name string
	Type TypeNode
}

type CompositeKind uint8

const (
	CompClass CompositeKind = iota
	CompInterface
	CompDispInterface
	CompRecord
)

// CompositeDecl is a named class, interface or record type
type CompositeDecl struct {
	NodeInfo
	Name     string
	Kind     CompositeKind
	Heritage []string
	Members  []Member
	Type     TypeNode
}

// Member returns the first member with the given name
func (c *CompositeDecl) Member(name string) Member {
	for _, m := range c.Members {
		if strings.EqualFold(m.DeclName(), name) {
			return m
		}
	}
	return nil
}

type VarKind uint8

const (
	VarPlain VarKind = iota
	VarThread
	VarField
	VarResult
)

type VarDecl struct {
	NodeInfo
	Name       string
	Type       TypeNode
	Init       Expr
	Absolute   string
	Kind       VarKind
	Visibility Visibility
	ClassVar   bool
}

type ConstKind uint8

const (
	ConstPlain ConstKind = iota
	ConstTyped
	ConstResourceString
)

type ConstDecl struct {
	NodeInfo
	Name  string
	Type  TypeNode
	Value Expr
	Kind  ConstKind
}

type ParamKind uint8

const (
	ParamPlain ParamKind = iota
	ParamConst
	ParamVar
	ParamOut
)

var paramKindNames = [...]string{"", "const", "var", "out"}

func (k ParamKind) String() string { return paramKindNames[k] }

type ParamDecl struct {
	NodeInfo
	Name    string
	Kind    ParamKind
	Type    TypeNode
	Default Expr
}

type RoutineKind uint8

const (
	RoutineProcedure RoutineKind = iota
	RoutineFunction
	RoutineConstructor
	RoutineDestructor
)

var routineKindNames = [...]string{"procedure", "function", "constructor", "destructor"}

func (k RoutineKind) String() string { return routineKindNames[k] }

type Directive struct {
	Tok TokenType
	Arg Expr
}

type ExternalSpec struct {
	Library Expr
	Name    Expr
	Index   Expr
}

type Block struct {
	NodeInfo
	Decls []Decl
	Body  Stmt
}

// CallableDecl is a routine or method. Owner is the composite type name for
// methods. Body is nil for headings, forward and external declarations.
type CallableDecl struct {
	NodeInfo
	Name        string
	Owner       string
	Kind        RoutineKind
	ClassMethod bool
	Params      []*ParamDecl
	Result      TypeNode
	Directives  []Directive
	Body        *Block
	Forward     bool
	External    *ExternalSpec
	Visibility  Visibility
	Builtin     bool
}

func (d *CallableDecl) IsFunction() bool {
	return d.Kind == RoutineFunction
}

func (d *CallableDecl) HasDirective(t TokenType) bool {
	for _, dir := range d.Directives {
		if dir.Tok == t {
			return true
		}
	}
	return false
}

// QualifiedName is Owner.Name for methods
func (d *CallableDecl) QualifiedName() string {
	if d.Owner != "" {
		return d.Owner + "." + d.Name
	}
	return d.Name
}

type PropertyDecl struct {
	NodeInfo
	Name         string
	Params       []*ParamDecl
	Type         TypeNode
	Read         string
	Write        string
	Index        Expr
	Default      Expr
	Stored       Expr
	NoDefault    bool
	Implements   []string
	DefaultArray bool
	Visibility   Visibility
}

type LabelDecl struct {
	NodeInfo
	Name string
}

// UnitRef is an item of a uses or contains clause
type UnitRef struct {
	NodeInfo
	Name string
	Path string
}

type ExportDecl struct {
	NodeInfo
	Name       string
	ExportName Expr
	Index      Expr
}

func (d *TypeDecl) DeclName() string      { return d.Name }
func (d *CompositeDecl) DeclName() string { return d.Name }
func (d *VarDecl) DeclName() string       { return d.Name }
func (d *ConstDecl) DeclName() string     { return d.Name }
func (d *ParamDecl) DeclName() string     { return d.Name }
func (d *CallableDecl) DeclName() string  { return d.Name }
func (d *PropertyDecl) DeclName() string  { return d.Name }
func (d *LabelDecl) DeclName() string     { return d.Name }
func (d *UnitRef) DeclName() string       { return d.Name }
func (d *ExportDecl) DeclName() string    { return d.Name }
func (d *EnumMember) DeclName() string    { return d.Name }

func (*TypeDecl) declNode()      {}
func (*CompositeDecl) declNode() {}
func (*VarDecl) declNode()       {}
func (*ConstDecl) declNode()     {}
func (*ParamDecl) declNode()     {}
func (*CallableDecl) declNode()  {}
func (*PropertyDecl) declNode()  {}
func (*LabelDecl) declNode()     {}
func (*UnitRef) declNode()       {}
func (*ExportDecl) declNode()    {}
func (*EnumMember) declNode()    {}

func (d *VarDecl) Visible() Visibility      { return d.Visibility }
func (d *CallableDecl) Visible() Visibility { return d.Visibility }
func (d *PropertyDecl) Visible() Visibility { return d.Visibility }

///// Goals

type Program struct {
	NodeInfo
	Name   string
	Params []string
	Uses   []*UnitRef
	Block  *Block
}

type Unit struct {
	NodeInfo
	Name           string
	IntfUses       []*UnitRef
	Interface      []Decl
	ImplUses       []*UnitRef
	Implementation []Decl
	Init           []Stmt
	Final          []Stmt
}

type Library struct {
	NodeInfo
	Name  string
	Uses  []*UnitRef
	Block *Block
}

type Package struct {
	NodeInfo
	Name     string
	Requires []string
	Contains []*UnitRef
}

func (g *Program) GoalName() string { return g.Name }
func (g *Unit) GoalName() string    { return g.Name }
func (g *Library) GoalName() string { return g.Name }
func (g *Package) GoalName() string { return g.Name }

func (*Program) goalNode() {}
func (*Unit) goalNode()    {}
func (*Library) goalNode() {}
func (*Package) goalNode() {}
