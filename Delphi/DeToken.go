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
	"strings"
)

type TokenType int

const (
	TokInvalid TokenType = iota

	// Literals
	TTLiterals
	TokPlus
	TokMinus
	TokStar
	TokSlash
	TokEq
	TokNeq
	TokLt
	TokLeq
	TokGt
	TokGeq
	TokLpar
	TokRpar
	TokLbrack
	TokRbrack
	TokDot
	Tok2Dot
	TokComma
	TokSemi
	TokColon
	TokColonEq
	TokHat
	TokAt

	// Keywords
	TTKeywords
	TokAND
	TokARRAY
	TokAS
	TokBEGIN
	TokBREAK
	TokCASE
	TokCLASS
	TokCONST
	TokCONSTRUCTOR
	TokCONTINUE
	TokDESTRUCTOR
	TokDISPINTERFACE
	TokDIV
	TokDO
	TokDOWNTO
	TokELSE
	TokEND
	TokEXCEPT
	TokEXPORTS
	TokFILE
	TokFINALIZATION
	TokFINALLY
	TokFOR
	TokFUNCTION
	TokGOTO
	TokIF
	TokIMPLEMENTATION
	TokIN
	TokINHERITED
	TokINITIALIZATION
	TokINTERFACE
	TokIS
	TokLABEL
	TokLIBRARY
	TokMOD
	TokNIL
	TokNOT
	TokOBJECT
	TokOF
	TokON
	TokOR
	TokPACKED
	TokPROCEDURE
	TokPROGRAM
	TokPROPERTY
	TokRAISE
	TokRECORD
	TokREPEAT
	TokRESOURCESTRING
	TokSET
	TokSHL
	TokSHR
	TokSTRING
	TokTHEN
	TokTHREADVAR
	TokTO
	TokTRY
	TokTYPE
	TokUNIT
	TokUNTIL
	TokUSES
	TokVAR
	TokWHILE
	TokWITH
	TokXOR

	// Directives, only reserved in context
	TTDirectives
	TokABSOLUTE
	TokABSTRACT
	TokASSEMBLER
	TokAT
	TokCDECL
	TokCONTAINS
	TokDEFAULT
	TokDYNAMIC
	TokEXPORT
	TokEXTERNAL
	TokFORWARD
	TokIMPLEMENTS
	TokINDEX
	TokINLINE
	TokMESSAGE
	TokNAME
	TokNODEFAULT
	TokOUT
	TokOVERLOAD
	TokOVERRIDE
	TokPACKAGE
	TokPASCAL
	TokPRIVATE
	TokPROTECTED
	TokPUBLIC
	TokPUBLISHED
	TokREAD
	TokREGISTER
	TokREINTRODUCE
	TokREQUIRES
	TokSAFECALL
	TokSTATIC
	TokSTDCALL
	TokSTORED
	TokSTRICT
	TokVARARGS
	TokVIRTUAL
	TokWRITE

	// Specials
	TTSpecials
	TokIdent
	TokInteger
	TokReal
	TokString
	TokAsm
	TokComment
	TokEof

	TTMaxToken
	TTMax
)

var punctuation = [...]string{
	TokPlus:    "+",
	TokMinus:   "-",
	TokStar:    "*",
	TokSlash:   "/",
	TokEq:      "=",
	TokNeq:     "<>",
	TokLt:      "<",
	TokLeq:     "<=",
	TokGt:      ">",
	TokGeq:     ">=",
	TokLpar:    "(",
	TokRpar:    ")",
	TokLbrack:  "[",
	TokRbrack:  "]",
	TokDot:     ".",
	Tok2Dot:    "..",
	TokComma:   ",",
	TokSemi:    ";",
	TokColon:   ":",
	TokColonEq: ":=",
	TokHat:     "^",
	TokAt:      "@",
}

var keywordNames = map[TokenType]string{
	TokAND: "AND", TokARRAY: "ARRAY", TokAS: "AS", TokBEGIN: "BEGIN", TokBREAK: "BREAK",
	TokCASE: "CASE", TokCLASS: "CLASS", TokCONST: "CONST", TokCONSTRUCTOR: "CONSTRUCTOR",
	TokCONTINUE: "CONTINUE", TokDESTRUCTOR: "DESTRUCTOR", TokDISPINTERFACE: "DISPINTERFACE",
	TokDIV: "DIV", TokDO: "DO", TokDOWNTO: "DOWNTO", TokELSE: "ELSE", TokEND: "END",
	TokEXCEPT: "EXCEPT", TokEXPORTS: "EXPORTS", TokFILE: "FILE", TokFINALIZATION: "FINALIZATION",
	TokFINALLY: "FINALLY", TokFOR: "FOR", TokFUNCTION: "FUNCTION", TokGOTO: "GOTO", TokIF: "IF",
	TokIMPLEMENTATION: "IMPLEMENTATION", TokIN: "IN", TokINHERITED: "INHERITED",
	TokINITIALIZATION: "INITIALIZATION", TokINTERFACE: "INTERFACE", TokIS: "IS", TokLABEL: "LABEL",
	TokLIBRARY: "LIBRARY", TokMOD: "MOD", TokNIL: "NIL", TokNOT: "NOT", TokOBJECT: "OBJECT",
	TokOF: "OF", TokON: "ON", TokOR: "OR", TokPACKED: "PACKED", TokPROCEDURE: "PROCEDURE",
	TokPROGRAM: "PROGRAM", TokPROPERTY: "PROPERTY", TokRAISE: "RAISE", TokRECORD: "RECORD",
	TokREPEAT: "REPEAT", TokRESOURCESTRING: "RESOURCESTRING", TokSET: "SET", TokSHL: "SHL",
	TokSHR: "SHR", TokSTRING: "STRING", TokTHEN: "THEN", TokTHREADVAR: "THREADVAR", TokTO: "TO",
	TokTRY: "TRY", TokTYPE: "TYPE", TokUNIT: "UNIT", TokUNTIL: "UNTIL", TokUSES: "USES",
	TokVAR: "VAR", TokWHILE: "WHILE", TokWITH: "WITH", TokXOR: "XOR",

	TokABSOLUTE: "ABSOLUTE", TokABSTRACT: "ABSTRACT", TokASSEMBLER: "ASSEMBLER", TokAT: "AT",
	TokCDECL: "CDECL", TokCONTAINS: "CONTAINS", TokDEFAULT: "DEFAULT", TokDYNAMIC: "DYNAMIC",
	TokEXPORT: "EXPORT", TokEXTERNAL: "EXTERNAL", TokFORWARD: "FORWARD",
	TokIMPLEMENTS: "IMPLEMENTS", TokINDEX: "INDEX", TokINLINE: "INLINE", TokMESSAGE: "MESSAGE",
	TokNAME: "NAME", TokNODEFAULT: "NODEFAULT", TokOUT: "OUT", TokOVERLOAD: "OVERLOAD",
	TokOVERRIDE: "OVERRIDE", TokPACKAGE: "PACKAGE", TokPASCAL: "PASCAL", TokPRIVATE: "PRIVATE",
	TokPROTECTED: "PROTECTED", TokPUBLIC: "PUBLIC", TokPUBLISHED: "PUBLISHED", TokREAD: "READ",
	TokREGISTER: "REGISTER", TokREINTRODUCE: "REINTRODUCE", TokREQUIRES: "REQUIRES",
	TokSAFECALL: "SAFECALL", TokSTATIC: "STATIC", TokSTDCALL: "STDCALL", TokSTORED: "STORED",
	TokSTRICT: "STRICT", TokVARARGS: "VARARGS", TokVIRTUAL: "VIRTUAL", TokWRITE: "WRITE",
}

// keywords maps the upper case spelling to the token; the language is case insensitive
var keywords = func() map[string]TokenType {
	m := make(map[string]TokenType, len(keywordNames))
	for t, s := range keywordNames {
		m[s] = t
	}
	return m
}()

// TokenTypeString returns the source spelling of a token type
func TokenTypeString(t TokenType) string {
	if t > TTLiterals && t < TTKeywords {
		return punctuation[t]
	}
	if s, ok := keywordNames[t]; ok {
		return s
	}
	switch t {
	case TokInvalid:
		return "<invalid>"
	case TokIdent:
		return "identifier"
	case TokInteger:
		return "integer"
	case TokReal:
		return "real"
	case TokString:
		return "string"
	case TokAsm:
		return "asm block"
	case TokComment:
		return "comment"
	case TokEof:
		return "<eof>"
	}
	return "<??>"
}

// TokenTypeName returns the Go constant name of a token type
func TokenTypeName(t TokenType) string {
	if s, ok := keywordNames[t]; ok {
		return "Tok" + s
	}
	switch t {
	case TokIdent:
		return "TokIdent"
	case TokInteger:
		return "TokInteger"
	case TokReal:
		return "TokReal"
	case TokString:
		return "TokString"
	case TokAsm:
		return "TokAsm"
	case TokComment:
		return "TokComment"
	case TokEof:
		return "TokEof"
	case TokInvalid:
		return "TokInvalid"
	}
	if t > TTLiterals && t < TTKeywords {
		return fmt.Sprintf("Tok'%s'", punctuation[t])
	}
	return fmt.Sprintf("Tok(%d)", int(t))
}

func TokenTypeIsLiteral(t TokenType) bool {
	return t > TTLiterals && t < TTKeywords
}

func TokenTypeIsKeyword(t TokenType) bool {
	return t > TTKeywords && t < TTDirectives
}

// TokenTypeIsDirective reports tokens which are keywords only in specific positions
// and identifiers everywhere else.
func TokenTypeIsDirective(t TokenType) bool {
	return t > TTDirectives && t < TTSpecials
}

func TokenTypeIsSpecial(t TokenType) bool {
	return t > TTSpecials && t < TTMaxToken
}

// KeywordFromString returns the keyword or directive token for an identifier
// spelling, or TokIdent.
func KeywordFromString(s string) TokenType {
	if t, ok := keywords[strings.ToUpper(s)]; ok {
		return t
	}
	return TokIdent
}

type RowCol struct {
	Row uint32
	Col uint32
}

func (rc RowCol) String() string {
	return fmt.Sprintf("%d:%d", rc.Row, rc.Col)
}

func (rc RowCol) IsValid() bool {
	return rc.Row > 0
}

// Token represents a lexical token
type Token struct {
	Type       TokenType
	Len        uint16
	LineNr     uint32
	ColNr      uint32
	Val        []byte
	SourcePath string
}

func (t Token) IsValid() bool {
	return t.Type != TokInvalid && t.Type != TokEof
}

func (t Token) IsEof() bool {
	return t.Type == TokEof
}

func (t Token) GetName() string {
	return TokenTypeName(t.Type)
}

func (t Token) GetString() string {
	return TokenTypeString(t.Type)
}

// Text returns the literal payload, for identifiers the source spelling
func (t Token) Text() string {
	return string(t.Val)
}

func (t Token) ToRowCol() RowCol {
	return RowCol{Row: t.LineNr, Col: t.ColNr}
}

func (t Token) String() string {
	switch t.Type {
	case TokIdent, TokInteger, TokReal:
		return string(t.Val)
	case TokString:
		return fmt.Sprintf("'%s'", t.Val)
	}
	return TokenTypeString(t.Type)
}
