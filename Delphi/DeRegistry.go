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
	"errors"
	"log/slog"
	"strings"
)

const (
	RuntimeFrame = "runtime"
	GlobalFrame  = "global"
	ResultName   = "Result"
)

// foldName is the key identifiers are compared by
func foldName(name string) string {
	return strings.ToLower(name)
}

// Frame is one level of the scope stack; names keep their declaration order
type Frame struct {
	Name  string
	Owner Decl
	names []string
	decls map[string]Decl
}

func newFrame(name string, owner Decl) *Frame {
	return &Frame{Name: name, Owner: owner, decls: make(map[string]Decl)}
}

func (f *Frame) Lookup(name string) Decl {
	return f.decls[foldName(name)]
}

// Names returns the declared names in registration order
func (f *Frame) Names() []string {
	return f.names
}

func (f *Frame) Len() int {
	return len(f.names)
}

func (f *Frame) add(name string, d Decl) bool {
	key := foldName(name)
	if _, dup := f.decls[key]; dup {
		return false
	}
	f.decls[key] = d
	f.names = append(f.names, name)
	return true
}

func (f *Frame) replace(name string, d Decl) {
	key := foldName(name)
	if _, ok := f.decls[key]; !ok {
		f.names = append(f.names, name)
	}
	f.decls[key] = d
}

// Registry is the scope stack. The bottom frame holds the built-in
// declarations, the one above it the global declarations of the goal.
type Registry struct {
	cfg     *Config
	log     *slog.Logger
	frames  []*Frame
	runtime *Frame
	nextID  NodeID
}

func NewRegistry(cfg *Config) *Registry {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	r := &Registry{cfg: cfg, log: cfg.Log("registry"), nextID: builtinIDBase}
	r.runtime = newFrame(RuntimeFrame, nil)
	r.frames = append(r.frames, r.runtime)
	r.loadBuiltins()
	r.EnterContext(GlobalFrame)
	r.log.Debug("runtime loaded", slog.Int("builtins", r.runtime.Len()))
	return r
}

func (r *Registry) Depth() int {
	return len(r.frames)
}

func (r *Registry) Top() *Frame {
	return r.frames[len(r.frames)-1]
}

// Frames returns the stack, outermost first
func (r *Registry) Frames() []*Frame {
	return r.frames
}

func (r *Registry) EnterContext(name string) *Frame {
	return r.EnterOwnedContext(name, nil)
}

// EnterOwnedContext pushes a frame representing the body of owner
func (r *Registry) EnterOwnedContext(name string, owner Decl) *Frame {
	f := newFrame(name, owner)
	r.frames = append(r.frames, f)
	r.log.Debug("enter", slog.String("frame", name), slog.Int("depth", len(r.frames)))
	return f
}

// LeaveContext pops the top frame and returns its name, so callers can
// verify their nesting. The runtime frame cannot be left.
func (r *Registry) LeaveContext() string {
	if len(r.frames) <= 1 {
		panic(internalf("leaving the runtime frame"))
	}
	f := r.Top()
	r.frames = r.frames[:len(r.frames)-1]
	r.log.Debug("leave", slog.String("frame", f.Name), slog.Int("depth", len(r.frames)))
	return f.Name
}

func (r *Registry) unwindTo(depth int) {
	for len(r.frames) > depth {
		r.LeaveContext()
	}
}

// createsContext reports declarations whose own frame is pushed before they
// are registered
func createsContext(d Decl) bool {
	switch d := d.(type) {
	case *CallableDecl, *CompositeDecl:
		return true
	case *TypeDecl:
		_, ok := d.Type.(*RecordType)
		return ok
	}
	return false
}

// targetFrame is the frame RegisterDeclaration puts d into
func (r *Registry) targetFrame(d Decl) *Frame {
	if createsContext(d) && len(r.frames) > 2 {
		return r.frames[len(r.frames)-2]
	}
	return r.Top()
}

// RegisterDeclaration binds name to d. Routines and composite types go to
// the enclosing frame since their own frame is already on the stack. A
// failed registration changes nothing.
func (r *Registry) RegisterDeclaration(name string, d Decl) error {
	f := r.targetFrame(d)
	if name == "" {
		return registryErr(ErrInvalidIdentifier, name, f)
	}
	if !f.add(name, d) {
		return registryErr(ErrRedeclared, name, f)
	}
	return nil
}

// Lookup returns the declaration of name and the index of the frame it was
// found in, or nil and -1
func (r *Registry) Lookup(name string) (Decl, int) {
	key := foldName(name)
	for i := len(r.frames) - 1; i >= 0; i-- {
		if d, ok := r.frames[i].decls[key]; ok {
			return d, i
		}
	}
	return nil, -1
}

func (r *Registry) GetDeclaration(name string) Decl {
	d, _ := r.Lookup(name)
	return d
}

// LookupLocal only searches the top frame
func (r *Registry) LookupLocal(name string) Decl {
	return r.Top().Lookup(name)
}

// ReplaceDeclaration rebinds name in the frame where it is declared; used to
// complete forward declarations
func (r *Registry) ReplaceDeclaration(name string, d Decl) error {
	_, i := r.Lookup(name)
	if i < 0 {
		return registryErr(ErrNotFound, name, r.Top())
	}
	r.frames[i].replace(name, d)
	return nil
}

///// typed fetches

// FetchType looks up a type declaration whose type is a T
func FetchType[T TypeNode](r *Registry, name string) (T, error) {
	var zero T
	d := r.GetDeclaration(name)
	if d == nil {
		return zero, registryErr(ErrNotFound, name, r.Top())
	}
	var t TypeNode
	switch d := d.(type) {
	case *TypeDecl:
		t = r.ResolveType(d.Type)
	case *CompositeDecl:
		t = d.Type
	default:
		return zero, registryErr(ErrInvalidIdentifier, name, r.Top())
	}
	res, ok := t.(T)
	if !ok {
		return zero, registryErr(ErrInvalidIdentifier, name, r.Top())
	}
	return res, nil
}

// FetchValue looks up a variable, constant or parameter whose type resolves
// to a T
func FetchValue[T TypeNode](r *Registry, name string) (Decl, T, error) {
	var zero T
	d := r.GetDeclaration(name)
	if d == nil {
		return nil, zero, registryErr(ErrNotFound, name, r.Top())
	}
	var t TypeNode
	switch d := d.(type) {
	case *VarDecl:
		t = d.Type
	case *ConstDecl:
		t = d.Type
	case *ParamDecl:
		t = d.Type
	default:
		return nil, zero, registryErr(ErrInvalidIdentifier, name, r.Top())
	}
	res, ok := r.ResolveType(t).(T)
	if !ok {
		return nil, zero, registryErr(ErrInvalidIdentifier, name, r.Top())
	}
	return d, res, nil
}

func fetchDecl[D Decl](r *Registry, name string, miss error) (D, error) {
	var zero D
	d := r.GetDeclaration(name)
	if d == nil {
		return zero, registryErr(miss, name, r.Top())
	}
	res, ok := d.(D)
	if !ok {
		return zero, registryErr(ErrInvalidIdentifier, name, r.Top())
	}
	return res, nil
}

func (r *Registry) FetchVariable(name string) (*VarDecl, error) {
	return fetchDecl[*VarDecl](r, name, ErrNotFound)
}

func (r *Registry) FetchConstant(name string) (*ConstDecl, error) {
	return fetchDecl[*ConstDecl](r, name, ErrNotFound)
}

func (r *Registry) FetchParameter(name string) (*ParamDecl, error) {
	return fetchDecl[*ParamDecl](r, name, ErrNotFound)
}

func (r *Registry) FetchCallable(name string) (*CallableDecl, error) {
	return fetchDecl[*CallableDecl](r, name, ErrNotFound)
}

// FetchComposite also follows aliases such as IUnknown = IInterface
func (r *Registry) FetchComposite(name string) (*CompositeDecl, error) {
	orig := name
	for i := 0; i < 32; i++ {
		switch d := r.GetDeclaration(name).(type) {
		case nil:
			return nil, registryErr(ErrCompositeNotFound, orig, r.Top())
		case *CompositeDecl:
			return d, nil
		case *TypeDecl:
			nt, ok := d.Type.(*NamedType)
			if !ok {
				return nil, registryErr(ErrInvalidIdentifier, orig, r.Top())
			}
			name = nt.Name
		default:
			return nil, registryErr(ErrInvalidIdentifier, orig, r.Top())
		}
	}
	return nil, registryErr(ErrCompositeNotFound, orig, r.Top())
}

// FetchMember finds a member of a composite type or of one of its ancestors
func (r *Registry) FetchMember(composite, name string) (Member, error) {
	c, err := r.FetchComposite(composite)
	if err != nil {
		return nil, err
	}
	m, err := r.findMember(c, name, map[string]bool{})
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, registryErr(ErrMemberNotFound, composite+"."+name, r.Top())
	}
	return m, nil
}

// FetchField is FetchMember restricted to fields
func (r *Registry) FetchField(composite, name string) (*VarDecl, error) {
	m, err := r.FetchMember(composite, name)
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			return nil, registryErr(ErrFieldNotFound, composite+"."+name, r.Top())
		}
		return nil, err
	}
	f, ok := m.(*VarDecl)
	if !ok {
		return nil, registryErr(ErrFieldNotFound, composite+"."+name, r.Top())
	}
	return f, nil
}

func (r *Registry) findMember(c *CompositeDecl, name string, path map[string]bool) (Member, error) {
	if m := c.Member(name); m != nil {
		return m, nil
	}
	path[foldName(c.Name)] = true
	defer delete(path, foldName(c.Name))
	for _, h := range r.heritageOf(c) {
		if path[foldName(h)] {
			return nil, registryErr(ErrCircularHeritage, h, r.Top())
		}
		anc, err := r.FetchComposite(h)
		if err != nil {
			return nil, err
		}
		m, err := r.findMember(anc, name, path)
		if err != nil || m == nil {
			if err != nil {
				return nil, err
			}
			continue
		}
		if m.Visible().Inheritable() {
			return m, nil
		}
	}
	return nil, nil
}

// ResolveType follows type aliases to the type they denote
func (r *Registry) ResolveType(t TypeNode) TypeNode {
	for i := 0; i < 32; i++ {
		nt, ok := t.(*NamedType)
		if !ok {
			return t
		}
		switch d := r.GetDeclaration(nt.Name).(type) {
		case *TypeDecl:
			t = d.Type
		case *CompositeDecl:
			return d.Type
		default:
			return t
		}
	}
	return t
}

///// heritage

// heritageOf applies the implicit roots: classes descend from TObject,
// interfaces from IInterface
func (r *Registry) heritageOf(c *CompositeDecl) []string {
	if len(c.Heritage) > 0 {
		return c.Heritage
	}
	switch c.Kind {
	case CompClass:
		if !strings.EqualFold(c.Name, "TObject") {
			return []string{"TObject"}
		}
	case CompInterface, CompDispInterface:
		if !strings.EqualFold(c.Name, "IInterface") && !strings.EqualFold(c.Name, "IUnknown") {
			return []string{"IInterface"}
		}
	}
	return nil
}

// LoadHeritageContext pushes one frame per ancestor of the composite type,
// root first, each holding the inheritable members of that ancestor, then a
// frame with the type's own members. It returns the number of ancestor
// frames. A type appearing twice through different paths is loaded once;
// a type which is its own ancestor is an error and nothing stays pushed.
func (r *Registry) LoadHeritageContext(name string) (int, error) {
	c, err := r.FetchComposite(name)
	if err != nil {
		return 0, err
	}
	depth := len(r.frames)
	path := map[string]bool{foldName(c.Name): true}
	n, err := r.loadAncestors(c, path, map[string]bool{})
	if err != nil {
		r.unwindTo(depth)
		return 0, err
	}
	r.pushMembers(c, false)
	return n, nil
}

func (r *Registry) loadAncestors(c *CompositeDecl, path, loaded map[string]bool) (int, error) {
	n := 0
	for _, h := range r.heritageOf(c) {
		key := foldName(h)
		if path[key] {
			return n, registryErr(ErrCircularHeritage, h, r.Top())
		}
		if loaded[key] {
			continue
		}
		anc, err := r.FetchComposite(h)
		if err != nil {
			return n, err
		}
		path[key] = true
		m, err := r.loadAncestors(anc, path, loaded)
		n += m
		if err != nil {
			return n, err
		}
		delete(path, key)
		loaded[key] = true
		r.pushMembers(anc, true)
		n++
	}
	return n, nil
}

// pushMembers pushes a frame with the members of c; of overloaded methods
// the first one stands for the name
func (r *Registry) pushMembers(c *CompositeDecl, inherited bool) {
	f := r.EnterOwnedContext(c.Name, c)
	for _, m := range c.Members {
		if inherited && !m.Visible().Inheritable() {
			continue
		}
		f.add(m.DeclName(), m)
	}
}

// MethodContext is what EnterMethodContext pushed
type MethodContext struct {
	Type      string
	Method    string
	Ancestors int
	depth     int
}

// EnterMethodContext makes the members of typeName and its ancestors
// visible and pushes the frame of the method body on top
func (r *Registry) EnterMethodContext(typeName, method string) (MethodContext, error) {
	decl, err := r.FetchMember(typeName, method)
	if err != nil {
		return MethodContext{}, err
	}
	depth := len(r.frames)
	n, err := r.LoadHeritageContext(typeName)
	if err != nil {
		return MethodContext{}, err
	}
	r.EnterOwnedContext(method, decl)
	return MethodContext{Type: typeName, Method: method, Ancestors: n, depth: depth}, nil
}

// LeaveMethodContext pops the method frame, the type frame and the ancestor
// frames. The stack must be exactly as EnterMethodContext left it.
func (r *Registry) LeaveMethodContext(mc MethodContext) {
	if len(r.frames) != mc.depth+mc.Ancestors+2 {
		panic(internalf("leaving method %s.%s at depth %d, expected %d",
			mc.Type, mc.Method, len(r.frames), mc.depth+mc.Ancestors+2))
	}
	if name := r.LeaveContext(); !strings.EqualFold(name, mc.Method) {
		panic(internalf("leaving method %s.%s but top frame is %s", mc.Type, mc.Method, name))
	}
	r.unwindTo(mc.depth)
}

///// function result

// RewriteResultTarget handles assignments to the name of the function being
// compiled. The routine is the owner of the top frame, or else the
// declaration of that name one frame further out; if it is a function of
// the same name as lv the
// result is a reference to its implicit Result, registered as substitute
// for lv in ann.
func (r *Registry) RewriteResultTarget(lv Expr, ann *Annotations) (Expr, bool) {
	if len(r.frames) < 3 {
		return lv, false
	}
	var name string
	switch e := lv.(type) {
	case *UnresolvedName:
		name = e.Name
	case *Identifier:
		name = e.Name
	case *RoutineCall:
		if len(e.Args) != 0 {
			return lv, false
		}
		switch c := e.Callee.(type) {
		case *UnresolvedName:
			name = c.Name
		case *Identifier:
			name = c.Name
		default:
			return lv, false
		}
	default:
		return lv, false
	}
	cur := r.Top()
	if !strings.EqualFold(cur.Name, name) {
		return lv, false
	}
	// the frame owner is the routine itself, the name may belong to an earlier overload
	fn, ok := cur.Owner.(*CallableDecl)
	if !ok || !strings.EqualFold(fn.Name, name) {
		fn, ok = r.frames[len(r.frames)-2].Lookup(cur.Name).(*CallableDecl)
	}
	if !ok || !fn.IsFunction() {
		return lv, false
	}
	ref := &ResultRef{NodeInfo: NodeInfo{ID: ann.NewID(), Line: lv.Info().Line}, Routine: fn.Name}
	if res := cur.Lookup(ResultName); res != nil {
		ann.Bind(ref, res)
	}
	ann.SetType(ref, fn.Result)
	ann.Substitute(lv, ref)
	return ref, true
}
