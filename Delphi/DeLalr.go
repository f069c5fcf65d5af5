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
	"sort"
	"strings"
)

type actionKind uint8

const (
	actError actionKind = iota
	actShift
	actReduce
	actAccept
)

// action is one cell of the action table; arg is the target state for
// shifts and the production for reductions
type action struct {
	kind actionKind
	arg  int32
}

// Conflict is a table cell where more than one action applied
type Conflict struct {
	State      int
	Token      TokenType
	Production string
	Reduce     bool // the reduction won
	ByPrec     bool // decided by the precedence table
	ReduceOnly bool // reduce/reduce
}

func (c Conflict) String() string {
	kind := "shift/reduce"
	if c.ReduceOnly {
		kind = "reduce/reduce"
	}
	won := "shift"
	if c.Reduce {
		won = "reduce"
	}
	return fmt.Sprintf("state %d: %s conflict on %s with [%s], chose %s",
		c.State, kind, TokenTypeString(c.Token), c.Production, won)
}

// Tables is the LALR(1) automaton of a grammar
type Tables struct {
	grammar       *Grammar
	action        [][]action
	gotos         [][]int32
	defaultReduce []int32
	Conflicts     []Conflict
}

func (t *Tables) NumStates() int {
	return len(t.action)
}

// Unresolved counts the conflicts the precedence table did not decide
func (t *Tables) Unresolved() int {
	n := 0
	for _, c := range t.Conflicts {
		if !c.ByPrec {
			n++
		}
	}
	return n
}

// expected lists the terminals with a non-error action in a state
func (t *Tables) expected(state int) []TokenType {
	var res []TokenType
	for tok, a := range t.action[state] {
		if a.kind != actError {
			res = append(res, TokenType(tok))
		}
	}
	return res
}

// termSet is a bitset over the terminals plus one extra bit standing for
// the propagation marker
type termSet []uint64

const propagateMark = numTerminals

func newTermSet() termSet {
	return make(termSet, (numTerminals+1+63)/64)
}

func (s termSet) add(t int) bool {
	w, b := t/64, uint(t%64)
	if s[w]&(1<<b) != 0 {
		return false
	}
	s[w] |= 1 << b
	return true
}

func (s termSet) has(t int) bool {
	return s[t/64]&(1<<uint(t%64)) != 0
}

func (s termSet) union(o termSet) bool {
	changed := false
	for i := range s {
		n := s[i] | o[i]
		if n != s[i] {
			s[i] = n
			changed = true
		}
	}
	return changed
}

func (s termSet) each(f func(t int)) {
	for w, bits := range s {
		for bits != 0 {
			b := 0
			for bits&(1<<uint(b)) == 0 {
				b++
			}
			f(w*64 + b)
			bits &^= 1 << uint(b)
		}
	}
}

type item struct {
	prod int32
	dot  int32
}

type lr0State struct {
	kernel  []item
	index   map[item]int
	closure []item
	trans   map[Symbol]int
}

type lalrBuilder struct {
	g        *Grammar
	byLhs    [][]int
	nullable []bool
	first    []termSet
	// FIRST and nullability of every production suffix, by [prod][dot]
	sufFirst    [][]termSet
	sufNullable [][]bool
	states      []*lr0State
	byKernel    map[string]int
}

// BuildTables runs the LALR(1) construction: LR(0) item sets, then
// lookahead determination by spontaneous generation and propagation.
func BuildTables(g *Grammar) (*Tables, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	b := &lalrBuilder{g: g, byKernel: make(map[string]int)}
	b.computeFirst()
	b.buildLR0()
	la := b.lookaheads()
	return b.buildTables(la), nil
}

func (b *lalrBuilder) computeFirst() {
	n := b.g.NumNonterminals()
	b.byLhs = make([][]int, n)
	b.nullable = make([]bool, n)
	b.first = make([]termSet, n)
	for i := range b.first {
		b.first[i] = newTermSet()
	}
	for _, p := range b.g.prods {
		b.byLhs[p.Lhs.nonterm()] = append(b.byLhs[p.Lhs.nonterm()], p.ID)
	}
	for changed := true; changed; {
		changed = false
		for _, p := range b.g.prods {
			lhs := p.Lhs.nonterm()
			all := true
			for _, s := range p.Rhs {
				if s.IsTerminal() {
					if b.first[lhs].add(int(s)) {
						changed = true
					}
					all = false
					break
				}
				if b.first[lhs].union(b.first[s.nonterm()]) {
					changed = true
				}
				if !b.nullable[s.nonterm()] {
					all = false
					break
				}
			}
			if all && !b.nullable[lhs] {
				b.nullable[lhs] = true
				changed = true
			}
		}
	}
	b.sufFirst = make([][]termSet, len(b.g.prods))
	b.sufNullable = make([][]bool, len(b.g.prods))
	for _, p := range b.g.prods {
		n := len(p.Rhs)
		sf := make([]termSet, n+1)
		sn := make([]bool, n+1)
		sf[n] = newTermSet()
		sn[n] = true
		for i := n - 1; i >= 0; i-- {
			sf[i] = newTermSet()
			s := p.Rhs[i]
			if s.IsTerminal() {
				sf[i].add(int(s))
				continue
			}
			sf[i].union(b.first[s.nonterm()])
			if b.nullable[s.nonterm()] {
				sf[i].union(sf[i+1])
				sn[i] = sn[i+1]
			}
		}
		b.sufFirst[p.ID] = sf
		b.sufNullable[p.ID] = sn
	}
}

func (b *lalrBuilder) next(it item) (Symbol, bool) {
	rhs := b.g.prods[it.prod].Rhs
	if int(it.dot) >= len(rhs) {
		return 0, false
	}
	return rhs[it.dot], true
}

func (b *lalrBuilder) closure0(kernel []item) []item {
	items := append([]item(nil), kernel...)
	added := make([]bool, b.g.NumNonterminals())
	for i := 0; i < len(items); i++ {
		s, ok := b.next(items[i])
		if !ok || s.IsTerminal() || added[s.nonterm()] {
			continue
		}
		added[s.nonterm()] = true
		for _, q := range b.byLhs[s.nonterm()] {
			items = append(items, item{prod: int32(q)})
		}
	}
	return items
}

func kernelKey(k []item) string {
	var sb strings.Builder
	for _, it := range k {
		fmt.Fprintf(&sb, "%d.%d,", it.prod, it.dot)
	}
	return sb.String()
}

func (b *lalrBuilder) addState(kernel []item) int {
	sort.Slice(kernel, func(i, j int) bool {
		if kernel[i].prod != kernel[j].prod {
			return kernel[i].prod < kernel[j].prod
		}
		return kernel[i].dot < kernel[j].dot
	})
	key := kernelKey(kernel)
	if s, ok := b.byKernel[key]; ok {
		return s
	}
	st := &lr0State{kernel: kernel, index: make(map[item]int), trans: make(map[Symbol]int)}
	for i, it := range kernel {
		st.index[it] = i
	}
	b.states = append(b.states, st)
	b.byKernel[key] = len(b.states) - 1
	return len(b.states) - 1
}

func (b *lalrBuilder) buildLR0() {
	b.addState([]item{{prod: 0, dot: 0}})
	for i := 0; i < len(b.states); i++ {
		st := b.states[i]
		st.closure = b.closure0(st.kernel)
		var order []Symbol
		kernels := make(map[Symbol][]item)
		for _, it := range st.closure {
			s, ok := b.next(it)
			if !ok {
				continue
			}
			if _, seen := kernels[s]; !seen {
				order = append(order, s)
			}
			kernels[s] = append(kernels[s], item{prod: it.prod, dot: it.dot + 1})
		}
		sort.Slice(order, func(x, y int) bool { return order[x] < order[y] })
		for _, s := range order {
			st.trans[s] = b.addState(kernels[s])
		}
	}
}

// closure1 computes the LR(1) closure of the given items with lookahead sets
func (b *lalrBuilder) closure1(start []item, las []termSet) ([]item, []termSet) {
	items := append([]item(nil), start...)
	sets := make([]termSet, len(las))
	for i, s := range las {
		sets[i] = newTermSet()
		sets[i].union(s)
	}
	index := make(map[item]int, len(items)*4)
	for i, it := range items {
		index[it] = i
	}
	work := make([]int, len(items))
	for i := range work {
		work[i] = i
	}
	queued := make(map[int]bool)
	for len(work) > 0 {
		i := work[len(work)-1]
		work = work[:len(work)-1]
		queued[i] = false
		it := items[i]
		s, ok := b.next(it)
		if !ok || s.IsTerminal() {
			continue
		}
		f := newTermSet()
		f.union(b.sufFirst[it.prod][it.dot+1])
		if b.sufNullable[it.prod][it.dot+1] {
			f.union(sets[i])
		}
		for _, q := range b.byLhs[s.nonterm()] {
			nit := item{prod: int32(q)}
			j, ok := index[nit]
			if !ok {
				j = len(items)
				items = append(items, nit)
				sets = append(sets, newTermSet())
				index[nit] = j
			}
			if sets[j].union(f) || !ok {
				if !queued[j] {
					queued[j] = true
					work = append(work, j)
				}
			}
		}
	}
	return items, sets
}

type laEdge struct {
	fromState, fromItem int
	toState, toItem     int
}

func (b *lalrBuilder) lookaheads() [][]termSet {
	la := make([][]termSet, len(b.states))
	for i, st := range b.states {
		la[i] = make([]termSet, len(st.kernel))
		for k := range st.kernel {
			la[i][k] = newTermSet()
		}
	}
	la[0][0].add(int(TokEof))

	var edges []laEdge
	for i, st := range b.states {
		for k, kit := range st.kernel {
			mark := newTermSet()
			mark.add(propagateMark)
			items, sets := b.closure1([]item{kit}, []termSet{mark})
			for x, it := range items {
				s, ok := b.next(it)
				if !ok {
					continue
				}
				j := st.trans[s]
				target := b.states[j].index[item{prod: it.prod, dot: it.dot + 1}]
				sets[x].each(func(t int) {
					if t == propagateMark {
						edges = append(edges, laEdge{i, k, j, target})
					} else {
						la[j][target].add(t)
					}
				})
			}
		}
	}
	for changed := true; changed; {
		changed = false
		for _, e := range edges {
			if la[e.toState][e.toItem].union(la[e.fromState][e.fromItem]) {
				changed = true
			}
		}
	}
	return la
}

func (b *lalrBuilder) buildTables(la [][]termSet) *Tables {
	g := b.g
	t := &Tables{
		grammar:       g,
		action:        make([][]action, len(b.states)),
		gotos:         make([][]int32, len(b.states)),
		defaultReduce: make([]int32, len(b.states)),
	}
	for i, st := range b.states {
		row := make([]action, numTerminals)
		gotoRow := make([]int32, g.NumNonterminals())
		for n := range gotoRow {
			gotoRow[n] = -1
		}
		for s, j := range st.trans {
			if s.IsTerminal() {
				row[s] = action{kind: actShift, arg: int32(j)}
			} else {
				gotoRow[s.nonterm()] = int32(j)
			}
		}
		items, sets := b.closure1(st.kernel, la[i])
		// reductions in production order so that reduce/reduce picks the earlier one
		type red struct {
			prod int32
			la   termSet
		}
		var reds []red
		for x, it := range items {
			if _, ok := b.next(it); !ok {
				reds = append(reds, red{it.prod, sets[x]})
			}
		}
		sort.Slice(reds, func(x, y int) bool { return reds[x].prod < reds[y].prod })
		for _, r := range reds {
			r.la.each(func(tok int) {
				if tok == propagateMark {
					return
				}
				if r.prod == 0 {
					row[tok] = action{kind: actAccept}
					return
				}
				t.setReduce(row, i, TokenType(tok), r.prod)
			})
		}
		t.action[i] = row
		t.gotos[i] = gotoRow
		t.defaultReduce[i] = defaultReduction(row)
	}
	return t
}

func (t *Tables) setReduce(row []action, state int, tok TokenType, prod int32) {
	g := t.grammar
	cur := row[tok]
	red := action{kind: actReduce, arg: prod}
	switch cur.kind {
	case actError:
		row[tok] = red
	case actReduce:
		// the earlier production already holds the cell
		t.Conflicts = append(t.Conflicts, Conflict{State: state, Token: tok,
			Production: g.ProductionString(g.prods[prod]), Reduce: true, ReduceOnly: true})
	case actShift:
		c := Conflict{State: state, Token: tok, Production: g.ProductionString(g.prods[prod])}
		pp := g.prods[prod].Prec
		tp, ok := g.prec[tok]
		if pp != 0 && ok {
			c.ByPrec = true
			switch {
			case pp > tp.level:
				row[tok] = red
				c.Reduce = true
			case pp == tp.level:
				switch tp.assoc {
				case assocLeft:
					row[tok] = red
					c.Reduce = true
				case assocNonassoc:
					row[tok] = action{}
				}
			}
		}
		t.Conflicts = append(t.Conflicts, c)
	}
}

// defaultReduction returns the production a state reduces by without
// consulting the lookahead, or -1. That is the case if the state has no
// shift and only one reduction.
func defaultReduction(row []action) int32 {
	prod := int32(-1)
	for _, a := range row {
		switch a.kind {
		case actShift, actAccept:
			return -1
		case actReduce:
			if prod >= 0 && prod != a.arg {
				return -1
			}
			prod = a.arg
		}
	}
	return prod
}
