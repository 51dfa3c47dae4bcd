//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of TelcoETL.
//
// TelcoETL is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// TelcoETL is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with TelcoETL. If not, see https://www.gnu.org/licenses/.


package core

import (
	"errors"
	"fmt"
	"strings"
)

// Package core defines the error handling types for the TelcoETL pipeline.
//
// Every failure carries a Kind so callers can branch on the category without
// string matching. Components log the error with context and return it; none of
// them recover locally.

// ErrorKind is the category of a pipeline failure.
type ErrorKind string

const (
	// KindNotFound means the input file or object does not exist.
	KindNotFound ErrorKind = "not_found"
	// KindEmptyData means the input has no header or no data rows.
	KindEmptyData ErrorKind = "empty_data"
	// KindParse means a row is malformed or its width differs from the header.
	KindParse ErrorKind = "parse"
	// KindConnection means the database rejected or could not be reached.
	KindConnection ErrorKind = "connection"
	// KindTypeCoercion means a value could not be cast during staging.
	KindTypeCoercion ErrorKind = "type_coercion"
	// KindSchema means a required column is missing or a column name collides.
	KindSchema ErrorKind = "schema"
	// KindConfig means the configuration is invalid.
	KindConfig ErrorKind = "config"
	// KindUnexpected is the catch-all.
	KindUnexpected ErrorKind = "unexpected"
)

// Error wraps structured error information for pipeline operations.
type Error struct {
	Kind ErrorKind // Failure category
	Op   string    // Operation being performed (e.g., "open", "read_record", "to_float")
	Path string    // Source path, when one is involved
	Line int       // 1-based input line, when known
	Err  error     // Underlying error
}

// Error returns the error string.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Op != "" {
		b.WriteString(" ")
		b.WriteString(e.Op)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " %s", e.Path)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " line %d", e.Line)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error of the given kind.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Wrap attaches a kind to err unless err already carries one, in which case err
// is returned unchanged. A nil err yields nil.
func Wrap(err error, kind ErrorKind, op string) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind carried by err, or KindUnexpected when err has none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
