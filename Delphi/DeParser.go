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
	"log/slog"
	"strings"
	"sync"
)

var (
	delphiOnce   sync.Once
	delphiTables *Tables
	delphiErr    error
)

// DelphiTables builds the automaton of DelphiGrammar once per process
func DelphiTables() (*Tables, error) {
	delphiOnce.Do(func() {
		delphiTables, delphiErr = BuildTables(DelphiGrammar())
	})
	return delphiTables, delphiErr
}

// Parser is a table driven shift-reduce parser. Reduction actions build the
// tree bottom-up; the first error ends the parse.
type Parser struct {
	scanner Scanner
	cfg     *Config
	log     *slog.Logger
	tables  *Tables

	states []int32
	values []any
	la     Token
	hasLa  bool

	line     uint32 // line of the current reduction
	lastLine uint32
	nextID   NodeID
	accepted Goal
}

func NewParser(cfg *Config, s Scanner) *Parser {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Parser{scanner: s, cfg: cfg, log: cfg.Log("parser")}
}

// Parse reads the whole goal. On error the returned goal is nil and the
// error is a *Rejection.
func (p *Parser) Parse() (goal Goal, err error) {
	t, err := DelphiTables()
	if err != nil {
		return nil, err
	}
	p.tables = t
	if n := t.Unresolved(); n > 0 {
		p.log.Debug("grammar conflicts", slog.Int("unresolved", n), slog.Int("total", len(t.Conflicts)))
	}
	defer func() {
		if r := recover(); r != nil {
			rej, ok := r.(*Rejection)
			if !ok {
				panic(r)
			}
			if rej.Path == "" {
				rej.Path = p.scanner.Source()
			}
			p.log.Debug("rejected", slog.String("path", rej.Path), slog.Int("line", int(rej.Line)), slog.String("msg", rej.Msg))
			goal, err = nil, rej
		}
	}()
	return p.run(), nil
}

// LastID is the highest node id handed out so far
func (p *Parser) LastID() NodeID {
	return p.nextID
}

func (p *Parser) run() Goal {
	p.states = append(p.states[:0], 0)
	p.values = p.values[:0]
	p.hasLa = false
	prods := p.tables.grammar.Productions()
	for {
		state := p.states[len(p.states)-1]
		if prod := p.tables.defaultReduce[state]; prod >= 0 {
			p.reduce(prods[prod])
			continue
		}
		tok := p.lookahead()
		act := p.tables.action[state][tok.Type]
		switch act.kind {
		case actShift:
			p.states = append(p.states, act.arg)
			p.values = append(p.values, tok)
			p.lastLine = tok.LineNr
			p.hasLa = false
		case actReduce:
			p.reduce(prods[act.arg])
		case actAccept:
			if p.accepted == nil {
				panic(internalf("accepted without goal"))
			}
			return p.accepted
		default:
			p.syntaxError(int(state), tok)
		}
	}
}

func (p *Parser) lookahead() Token {
	if !p.hasLa {
		p.la = p.scanner.Next()
		p.hasLa = true
		if p.la.Type == TokInvalid {
			p.rejectAt(p.la, string(p.la.Val))
		}
	}
	return p.la
}

func (p *Parser) reduce(prod *Production) {
	n := len(prod.Rhs)
	base := len(p.values) - n
	v := p.values[base:]
	p.line = p.lineOf(v)
	var res any
	switch {
	case prod.Action != nil:
		res = prod.Action(p, v)
	case n == 1:
		res = v[0]
	}
	p.values = append(p.values[:base], res)
	p.states = p.states[:len(p.states)-n]
	from := p.states[len(p.states)-1]
	to := p.tables.gotos[from][prod.Lhs.nonterm()]
	if to < 0 {
		panic(internalf("no goto from state %d on %s", from, p.tables.grammar.SymbolName(prod.Lhs)))
	}
	p.states = append(p.states, to)
}

// lineOf returns the line of the leftmost value which has one
func (p *Parser) lineOf(v []any) uint32 {
	for _, x := range v {
		switch x := x.(type) {
		case Token:
			return x.LineNr
		case Node:
			if x != nil {
				return x.Info().Line
			}
		}
	}
	if p.hasLa {
		return p.la.LineNr
	}
	return p.lastLine
}

func (p *Parser) syntaxError(state int, tok Token) {
	var msg string
	if tok.Type == TokEof {
		msg = "unexpected end of file"
	} else {
		msg = fmt.Sprintf("unexpected %s", tok.String())
	}
	if exp := p.tables.expected(state); len(exp) > 0 && len(exp) <= 6 {
		names := make([]string, len(exp))
		for i, t := range exp {
			names[i] = TokenTypeString(t)
		}
		msg += ", expecting " + strings.Join(names, " ")
	}
	p.rejectAt(tok, msg)
}

func (p *Parser) rejectAt(tok Token, msg string) {
	panic(&Rejection{Line: tok.LineNr, Col: tok.ColNr, Msg: msg, Path: tok.SourcePath})
}

// reject is used by reduction actions
func (p *Parser) reject(line uint32, msg string) {
	panic(&Rejection{Line: line, Msg: msg})
}

// require rejects a construct the configured dialect does not support
func (p *Parser) require(f Feature, line uint32, what string) {
	if !p.cfg.Supports(f) {
		p.reject(line, fmt.Sprintf("%s not supported by dialect %s", what, p.cfg.Dialect.Version))
	}
}

func (p *Parser) node() NodeInfo {
	return p.nodeAt(p.line)
}

func (p *Parser) nodeAt(line uint32) NodeInfo {
	p.nextID++
	return NodeInfo{ID: p.nextID, Line: line}
}

// accept is the action of the goal productions. The scanner is stopped
// right after the terminating token.
func (p *Parser) accept(g Goal) Goal {
	p.accepted = g
	p.scanner.Stop()
	p.log.Debug("accepted", slog.String("goal", g.GoalName()), slog.Int("nodes", int(p.nextID)))
	return g
}

// ParseString parses src as a complete goal
func ParseString(cfg *Config, src, path string) (Goal, NodeID, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	lex := NewLexer()
	lex.SetLogger(cfg.Logger)
	lex.SetString(src, path)
	p := NewParser(cfg, lex)
	g, err := p.Parse()
	return g, p.LastID(), err
}

// ParseFile parses the file at path
func ParseFile(cfg *Config, path string) (Goal, NodeID, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	lex := NewLexer()
	lex.SetLogger(cfg.Logger)
	if err := lex.SetStreamFromFile(path); err != nil {
		return nil, 0, err
	}
	defer lex.Stop()
	p := NewParser(cfg, lex)
	g, err := p.Parse()
	return g, p.LastID(), err
}
