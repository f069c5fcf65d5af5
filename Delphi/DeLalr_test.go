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
	"strconv"
	"strings"
	"testing"
)

type calcGrammar struct {
	g                  *Grammar
	add, sub, mul, num *Production
}

func newCalcGrammar(withPrec bool) *calcGrammar {
	c := &calcGrammar{g: NewGrammar()}
	if withPrec {
		c.g.Left(TokPlus, TokMinus)
		c.g.Left(TokStar)
	}
	c.g.Start("e")
	c.add = c.g.Rule("e", rhs("e", TokPlus, "e"), nil)
	c.sub = c.g.Rule("e", rhs("e", TokMinus, "e"), nil)
	c.mul = c.g.Rule("e", rhs("e", TokStar, "e"), nil)
	c.g.Rule("e", rhs(TokLpar, "e", TokRpar), nil)
	c.num = c.g.Rule("e", rhs(TokInteger), nil)
	return c
}

// eval drives the tables directly and computes the value of src
func (c *calcGrammar) eval(t *testing.T, tables *Tables, src string) int64 {
	t.Helper()
	toks := append(NewLexer().Tokens(src), Token{Type: TokEof})
	states := []int32{0}
	var vals []int64
	prods := c.g.Productions()
	for i := 0; ; {
		tok := toks[i]
		act := tables.action[states[len(states)-1]][tok.Type]
		switch act.kind {
		case actShift:
			states = append(states, act.arg)
			var v int64
			if tok.Type == TokInteger {
				v, _ = strconv.ParseInt(tok.Text(), 10, 64)
			}
			vals = append(vals, v)
			i++
		case actReduce:
			p := prods[act.arg]
			n := len(p.Rhs)
			args := vals[len(vals)-n:]
			var res int64
			switch p {
			case c.add:
				res = args[0] + args[2]
			case c.sub:
				res = args[0] - args[2]
			case c.mul:
				res = args[0] * args[2]
			case c.num:
				res = args[0]
			default:
				res = args[1]
			}
			vals = append(vals[:len(vals)-n], res)
			states = states[:len(states)-n]
			to := tables.gotos[states[len(states)-1]][p.Lhs.nonterm()]
			if to < 0 {
				t.Fatalf("%s: no goto after %s", src, c.g.ProductionString(p))
			}
			states = append(states, to)
		case actAccept:
			return vals[0]
		default:
			t.Fatalf("%s: syntax error at %s", src, tok.String())
		}
	}
}

func TestLalrPrecedenceResolvesConflicts(t *testing.T) {
	c := newCalcGrammar(true)
	tables, err := BuildTables(c.g)
	if err != nil {
		t.Fatal(err)
	}
	if len(tables.Conflicts) == 0 {
		t.Fatal("the ambiguous grammar should report conflicts")
	}
	if n := tables.Unresolved(); n != 0 {
		t.Fatalf("%d conflicts not decided by precedence", n)
	}
	cases := []struct {
		src  string
		want int64
	}{
		{"2+3*4", 14},
		{"2*3+4", 10},
		{"(2+3)*4", 20},
		{"10-2-3", 5},
		{"7", 7},
	}
	for _, tc := range cases {
		if got := c.eval(t, tables, tc.src); got != tc.want {
			t.Errorf("%s = %d, want %d", tc.src, got, tc.want)
		}
	}
}

func TestLalrShiftWinsWithoutPrecedence(t *testing.T) {
	c := newCalcGrammar(false)
	tables, err := BuildTables(c.g)
	if err != nil {
		t.Fatal(err)
	}
	if tables.Unresolved() == 0 {
		t.Fatal("expected unresolved conflicts")
	}
	for _, cf := range tables.Conflicts {
		if cf.Reduce {
			t.Errorf("%s", cf)
		}
	}
	// everything groups to the right
	if got := c.eval(t, tables, "2*3+4"); got != 14 {
		t.Errorf("2*3+4 = %d, want 14", got)
	}
	if got := c.eval(t, tables, "10-2-3"); got != 11 {
		t.Errorf("10-2-3 = %d, want 11", got)
	}
}

func TestLalrReduceReduceEarlierWins(t *testing.T) {
	g := NewGrammar()
	g.Start("s")
	g.Rule("s", rhs("a"), nil)
	g.Rule("s", rhs("b"), nil)
	pa := g.Rule("a", rhs(TokInteger), nil)
	g.Rule("b", rhs(TokInteger), nil)
	tables, err := BuildTables(g)
	if err != nil {
		t.Fatal(err)
	}
	sh := tables.action[0][TokInteger]
	if sh.kind != actShift {
		t.Fatalf("state 0 does not shift an integer")
	}
	red := tables.action[sh.arg][TokEof]
	if red.kind != actReduce || red.arg != int32(pa.ID) {
		t.Fatalf("got %+v, want reduction by %s", red, g.ProductionString(pa))
	}
	found := false
	for _, cf := range tables.Conflicts {
		found = found || cf.ReduceOnly
	}
	if !found {
		t.Error("reduce/reduce conflict not reported")
	}
	if tables.defaultReduce[sh.arg] != int32(pa.ID) {
		t.Error("single reduction state should reduce without lookahead")
	}
}

func TestLalrRejectsUndefinedNonterminal(t *testing.T) {
	g := NewGrammar()
	g.Start("s")
	g.Rule("s", rhs("missing", TokSemi), nil)
	if _, err := BuildTables(g); err == nil {
		t.Fatal("expected an error for a nonterminal without productions")
	}
	if _, err := BuildTables(NewGrammar()); err == nil {
		t.Fatal("expected an error for a grammar without start symbol")
	}
}

func TestDelphiTablesDanglingElse(t *testing.T) {
	tables, err := DelphiTables()
	if err != nil {
		t.Fatal(err)
	}
	if tables.NumStates() == 0 {
		t.Fatal("no states")
	}
	shifted := false
	for _, cf := range tables.Conflicts {
		if cf.Token == TokELSE && cf.ByPrec && !cf.Reduce {
			shifted = true
		}
	}
	if !shifted {
		t.Error("else should be shifted by precedence")
	}
}

func TestDelphiTablesTypeShapesDecided(t *testing.T) {
	tables, err := DelphiTables()
	if err != nil {
		t.Fatal(err)
	}
	for _, cf := range tables.Conflicts {
		if !cf.ReduceOnly {
			continue
		}
		for _, lhs := range []string{"class_type", "class_short", "interface_type", "interface_short", "heritage_opt"} {
			if strings.HasPrefix(cf.Production, lhs+" ->") {
				t.Errorf("%s", cf)
			}
		}
	}
}
