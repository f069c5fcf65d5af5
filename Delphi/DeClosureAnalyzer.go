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
	"io"
	"sort"
	"strings"
)

// ClosureParam is a parameter a nested routine needs to get instead of
// accessing a variable of an enclosing routine.
type ClosureParam struct {
	Name         string
	OriginalName string
	SourceProc   *CallableDecl
	SourceDecl   Decl
	Renamed      bool
}

// NestedRoutineInfo describes a nested routine and what it captures
type NestedRoutineInfo struct {
	Routine       *CallableDecl
	Path          []string
	ClosureParams []ClosureParam
	AccessedVars  []Decl
	OuterRoutines []*CallableDecl
}

// ClosureAnalyzer finds the nested routines of a bound goal which access
// variables or parameters of enclosing routines.
type ClosureAnalyzer struct {
	goal     Goal
	ann      *Annotations
	owner    map[Decl]*CallableDecl
	parent   map[*CallableDecl]*CallableDecl
	results  []NestedRoutineInfo
	stack    []*CallableDecl
	path     []string
	implicit map[Decl]*CallableDecl
}

// NewClosureAnalyzer needs the binder which bound g
func NewClosureAnalyzer(g Goal, b *Binder) *ClosureAnalyzer {
	return &ClosureAnalyzer{
		goal:     g,
		ann:      b.ann,
		owner:    make(map[Decl]*CallableDecl),
		parent:   make(map[*CallableDecl]*CallableDecl),
		implicit: b.Implicit,
	}
}

func (ca *ClosureAnalyzer) Analyze() []NestedRoutineInfo {
	ca.results = ca.results[:0]
	var decls []Decl
	switch g := ca.goal.(type) {
	case *Program:
		decls = g.Block.Decls
	case *Library:
		decls = g.Block.Decls
	case *Unit:
		decls = g.Implementation
	default:
		return ca.results
	}
	ca.path = append(ca.path[:0], ca.goal.GoalName())
	for _, d := range decls {
		if c, ok := d.(*CallableDecl); ok && c.Body != nil {
			ca.analyzeRoutine(c)
		}
	}
	ca.path = ca.path[:0]
	return ca.results
}

func (ca *ClosureAnalyzer) analyzeRoutine(d *CallableDecl) {
	if len(ca.stack) > 0 {
		ca.parent[d] = ca.stack[len(ca.stack)-1]
	}
	ca.stack = append(ca.stack, d)
	ca.path = append(ca.path, d.QualifiedName())

	for _, p := range d.Params {
		ca.owner[p] = d
	}
	for _, l := range d.Body.Decls {
		if v, ok := l.(*VarDecl); ok {
			ca.owner[v] = d
		}
	}
	for v, r := range ca.implicit {
		if r == d {
			ca.owner[v] = d
		}
	}

	if len(ca.stack) > 1 {
		if info := ca.analyzeNested(d); len(info.ClosureParams) > 0 {
			ca.results = append(ca.results, info)
		}
	}

	for _, l := range d.Body.Decls {
		if c, ok := l.(*CallableDecl); ok && c.Body != nil {
			ca.analyzeRoutine(c)
		}
	}

	ca.stack = ca.stack[:len(ca.stack)-1]
	ca.path = ca.path[:len(ca.path)-1]
}

func (ca *ClosureAnalyzer) analyzeNested(d *CallableDecl) NestedRoutineInfo {
	info := NestedRoutineInfo{
		Routine:       d,
		Path:          append([]string(nil), ca.path...),
		OuterRoutines: append([]*CallableDecl(nil), ca.stack[:len(ca.stack)-1]...),
	}
	info.AccessedVars = ca.findNonLocalAccesses(d)

	taken := make(map[string]bool)
	for _, p := range d.Params {
		taken[foldName(p.Name)] = true
	}
	for _, l := range d.Body.Decls {
		taken[foldName(l.DeclName())] = true
	}
	for _, v := range info.AccessedVars {
		p := ca.createClosureParam(v, taken)
		info.ClosureParams = append(info.ClosureParams, p)
		taken[foldName(p.Name)] = true
	}
	return info
}

// findNonLocalAccesses collects the captured declarations, those of outer
// routines first, then by name
func (ca *ClosureAnalyzer) findNonLocalAccesses(d *CallableDecl) []Decl {
	seen := make(map[Decl]bool)
	var out []Decl
	Inspect(d.Body.Body, func(n Node) bool {
		if !ca.needsCapture(n, d) {
			return true
		}
		decl := ca.ann.DeclOf(n)
		if !seen[decl] {
			seen[decl] = true
			out = append(out, decl)
		}
		return true
	})
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := ca.depthOf(ca.owner[out[i]]), ca.depthOf(ca.owner[out[j]])
		if di != dj {
			return di < dj
		}
		return out[i].DeclName() < out[j].DeclName()
	})
	return out
}

// needsCapture reports a name the binder marked non-local, which denotes a
// variable of a routine enclosing cur
func (ca *ClosureAnalyzer) needsCapture(n Node, cur *CallableDecl) bool {
	switch n.(type) {
	case *UnresolvedName, *Identifier:
	default:
		return false
	}
	decl := ca.ann.DeclOf(n)
	switch decl.(type) {
	case *VarDecl, *ParamDecl:
	default:
		return false
	}
	src := ca.owner[decl]
	if src == nil || src == cur || !ca.isAncestor(src, cur) {
		return false
	}
	return ca.ann.IsNonLocal(n)
}

func (ca *ClosureAnalyzer) isAncestor(anc, d *CallableDecl) bool {
	for p := ca.parent[d]; p != nil; p = ca.parent[p] {
		if p == anc {
			return true
		}
	}
	return false
}

func (ca *ClosureAnalyzer) depthOf(d *CallableDecl) int {
	n := 0
	for p := ca.parent[d]; p != nil; p = ca.parent[p] {
		n++
	}
	return n
}

func (ca *ClosureAnalyzer) createClosureParam(v Decl, taken map[string]bool) ClosureParam {
	orig := v.DeclName()
	name := orig
	for i := 1; taken[foldName(name)]; i++ {
		name = fmt.Sprintf("%s_%d", orig, i)
	}
	return ClosureParam{
		Name:         name,
		OriginalName: orig,
		SourceProc:   ca.owner[v],
		SourceDecl:   v,
		Renamed:      name != orig,
	}
}

func (ca *ClosureAnalyzer) PrintResults(w io.Writer) {
	if len(ca.results) == 0 {
		return
	}
	fmt.Fprintf(w, "%s found %d nested routines requiring closure parameters:\n\n", ca.goal.GoalName(), len(ca.results))
	for i, info := range ca.results {
		fmt.Fprintf(w, "%d. Routine: %s\n", i+1, info.Routine.Name)
		fmt.Fprintf(w, "   Path: %s\n", strings.Join(info.Path, "."))
		fmt.Fprintf(w, "   Nesting depth: %d\n", len(info.OuterRoutines))
		fmt.Fprintln(w, "   Additional parameters:")
		for j, p := range info.ClosureParams {
			from := "<global>"
			if p.SourceProc != nil {
				from = p.SourceProc.QualifiedName()
			}
			ren := ""
			if p.Renamed {
				ren = fmt.Sprintf(" (renamed from %s)", p.OriginalName)
			}
			fmt.Fprintf(w, "     %d) %s%s <- %s from %s\n", j+1, p.Name, ren, p.OriginalName, from)
		}
		fmt.Fprintln(w)
	}
}

func (ca *ClosureAnalyzer) Results() []NestedRoutineInfo { return ca.results }
