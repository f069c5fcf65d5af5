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
	"fmt"
)

// Registry and binder error kinds. They are matched with errors.Is.
var (
	ErrRedeclared         = errors.New("identifier redeclared")
	ErrNotFound           = errors.New("undeclared identifier")
	ErrCompositeNotFound  = errors.New("composite type not found")
	ErrFieldNotFound      = errors.New("field not found")
	ErrMemberNotFound     = errors.New("method or field not found")
	ErrInvalidIdentifier  = errors.New("invalid identifier")
	ErrCircularHeritage   = errors.New("circular heritage")
	ErrDuplicateCaseLabel = errors.New("duplicate case label")
	ErrInvalidRange       = errors.New("invalid range")
	ErrDivisionByZero     = errors.New("division by zero")
	ErrNotConstant        = errors.New("constant expression expected")
)

// RegistryError is returned by registration and lookup
type RegistryError struct {
	Kind  error
	Name  string
	Frame string
}

func (e *RegistryError) Error() string {
	if e.Frame != "" {
		return fmt.Sprintf("%v: %s (in %s)", e.Kind, e.Name, e.Frame)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Name)
}

func (e *RegistryError) Unwrap() error {
	return e.Kind
}

func registryErr(kind error, name string, frame *Frame) error {
	e := &RegistryError{Kind: kind, Name: name}
	if frame != nil {
		e.Frame = frame.Name
	}
	return e
}

// Rejection is the single parse error; there is no recovery and no tree
type Rejection struct {
	Line uint32
	Col  uint32
	Msg  string
	Path string
}

func (r *Rejection) Error() string {
	if r.Path != "" {
		return fmt.Sprintf("%s:%d:%d: %s", r.Path, r.Line, r.Col, r.Msg)
	}
	return fmt.Sprintf("%d:%d: %s", r.Line, r.Col, r.Msg)
}

// BindError ties a registry or folding error to a source line
type BindError struct {
	Line uint32
	Path string
	Err  error
}

func (e *BindError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("%d: %v", e.Line, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// InternalError signals a violated invariant, i.e. a bug in the caller.
// It is raised with panic and never returned as an ordinary error.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string {
	return "internal error: " + e.Msg
}

func internalf(format string, args ...any) *InternalError {
	return &InternalError{Msg: fmt.Sprintf(format, args...)}
}
