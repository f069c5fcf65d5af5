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

// Symbol is a grammar symbol. Values below numTerminals are token types,
// the others are nonterminals.
type Symbol int

const numTerminals = int(TTMax)

func (s Symbol) IsTerminal() bool {
	return int(s) < numTerminals
}

func (s Symbol) nonterm() int {
	return int(s) - numTerminals
}

// ReduceFunc builds the semantic value of a production from the values of
// its right hand side: tokens for terminals, reduced values for nonterminals.
type ReduceFunc func(p *Parser, v []any) any

type Production struct {
	ID     int
	Lhs    Symbol
	Rhs    []Symbol
	Prec   int
	Action ReduceFunc
}

type assoc uint8

const (
	assocLeft assoc = iota + 1
	assocRight
	assocNonassoc
)

type precedence struct {
	level int
	assoc assoc
}

// Grammar collects productions and the operator precedence table. Levels
// are declared lowest first, as in yacc.
type Grammar struct {
	prods  []*Production
	names  []string
	byName map[string]Symbol
	prec   map[TokenType]precedence
	level  int
	start  Symbol
}

func NewGrammar() *Grammar {
	g := &Grammar{byName: make(map[string]Symbol), prec: make(map[TokenType]precedence)}
	// production 0 is the augmented start production, completed by Start
	accept := g.nonterm("$accept")
	g.prods = append(g.prods, &Production{ID: 0, Lhs: accept})
	return g
}

func (g *Grammar) nonterm(name string) Symbol {
	if s, ok := g.byName[name]; ok {
		return s
	}
	s := Symbol(numTerminals + len(g.names))
	g.names = append(g.names, name)
	g.byName[name] = s
	return s
}

func (g *Grammar) declare(a assoc, toks []TokenType) {
	g.level++
	for _, t := range toks {
		g.prec[t] = precedence{level: g.level, assoc: a}
	}
}

func (g *Grammar) Left(toks ...TokenType)     { g.declare(assocLeft, toks) }
func (g *Grammar) Right(toks ...TokenType)    { g.declare(assocRight, toks) }
func (g *Grammar) Nonassoc(toks ...TokenType) { g.declare(assocNonassoc, toks) }

func (g *Grammar) Start(name string) {
	g.start = g.nonterm(name)
	g.prods[0].Rhs = []Symbol{g.start}
}

// Rule adds lhs -> rhs. Items of rhs are nonterminal names (string) or
// terminals (TokenType). The production takes the precedence of its last
// terminal which has one.
func (g *Grammar) Rule(lhs string, rhs []any, action ReduceFunc) *Production {
	p := &Production{ID: len(g.prods), Lhs: g.nonterm(lhs), Action: action}
	for _, item := range rhs {
		switch it := item.(type) {
		case string:
			p.Rhs = append(p.Rhs, g.nonterm(it))
		case TokenType:
			p.Rhs = append(p.Rhs, Symbol(it))
			if pr, ok := g.prec[it]; ok {
				p.Prec = pr.level
			}
		default:
			panic(internalf("invalid grammar item %v in rule for %s", item, lhs))
		}
	}
	g.prods = append(g.prods, p)
	return p
}

// RulePrec is Rule with the precedence taken from tok, like %prec
func (g *Grammar) RulePrec(lhs string, tok TokenType, rhs []any, action ReduceFunc) *Production {
	p := g.Rule(lhs, rhs, action)
	p.Prec = g.prec[tok].level
	return p
}

func (g *Grammar) Productions() []*Production {
	return g.prods
}

func (g *Grammar) NumNonterminals() int {
	return len(g.names)
}

func (g *Grammar) SymbolName(s Symbol) string {
	if s.IsTerminal() {
		return TokenTypeString(TokenType(s))
	}
	return g.names[s.nonterm()]
}

func (g *Grammar) ProductionString(p *Production) string {
	var sb strings.Builder
	sb.WriteString(g.SymbolName(p.Lhs))
	sb.WriteString(" ->")
	if len(p.Rhs) == 0 {
		sb.WriteString(" <empty>")
	}
	for _, s := range p.Rhs {
		sb.WriteByte(' ')
		sb.WriteString(g.SymbolName(s))
	}
	return sb.String()
}

// Validate checks that the start symbol is set and that every nonterminal
// has at least one production
func (g *Grammar) Validate() error {
	if len(g.prods[0].Rhs) == 0 {
		return fmt.Errorf("grammar has no start symbol")
	}
	defined := make([]bool, len(g.names))
	for _, p := range g.prods {
		defined[p.Lhs.nonterm()] = true
	}
	for i, ok := range defined {
		if !ok {
			return fmt.Errorf("nonterminal %s has no productions", g.names[i])
		}
	}
	return nil
}
