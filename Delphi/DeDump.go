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
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"
)

// DumpYAML renders the tree rooted at n as YAML. Zero fields are left out.
// With ann the effective replacement and the constant value of a node are
// shown as well.
func DumpYAML(n Node, ann *Annotations) ([]byte, error) {
	d := dumper{ann: ann}
	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{d.value(reflect.ValueOf(n))}}
	return yaml.Marshal(doc)
}

type dumper struct {
	ann *Annotations
}

func scalar(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: s}
}

func (d dumper) value(v reflect.Value) *yaml.Node {
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return scalar("~")
		}
		if n, ok := v.Interface().(Node); ok && v.Kind() == reflect.Pointer {
			return d.node(n, v.Elem())
		}
		return d.value(v.Elem())
	case reflect.Struct:
		return d.fields(&yaml.Node{Kind: yaml.MappingNode}, v)
	case reflect.Slice:
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for i := 0; i < v.Len(); i++ {
			seq.Content = append(seq.Content, d.value(v.Index(i)))
		}
		return seq
	}
	if t, ok := v.Interface().(TokenType); ok {
		return scalar(TokenTypeString(t))
	}
	if s, ok := v.Interface().(fmt.Stringer); ok {
		return scalar(s.String())
	}
	return scalar(fmt.Sprint(v.Interface()))
}

func (d dumper) node(n Node, v reflect.Value) *yaml.Node {
	m := &yaml.Node{Kind: yaml.MappingNode}
	kind := v.Type().Name()
	m.Content = append(m.Content, scalar("kind"), scalar(kind))
	if line := n.Info().Line; line != 0 {
		m.Content = append(m.Content, scalar("line"), scalar(fmt.Sprint(line)))
	}
	if d.ann != nil {
		if e, ok := n.(Expr); ok {
			if eff := d.ann.Effective(e); eff != e {
				m.Content = append(m.Content, scalar("resolved"), d.value(reflect.ValueOf(eff)))
			}
			if val, ok := d.ann.Value(e); ok {
				m.Content = append(m.Content, scalar("const"), scalar(val.String()))
			}
		}
	}
	return d.fields(m, v)
}

func (d dumper) fields(m *yaml.Node, v reflect.Value) *yaml.Node {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Anonymous {
			continue
		}
		fv := v.Field(i)
		if fv.IsZero() {
			continue
		}
		m.Content = append(m.Content, scalar(strings.ToLower(f.Name[:1])+f.Name[1:]), d.value(fv))
	}
	return m
}
