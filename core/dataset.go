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
	"context"
	"fmt"
	"io"
)

// Dataset is an in-memory table: ordered column names and rows aligned by position.
//
// Cell values are nil (null), string, int64, float64 or bool. A Dataset is owned by
// whichever stage produced it last; transformation steps return a new Dataset rather
// than modifying the one they were given.
type Dataset struct {
	columns []string
	index   map[string]int
	rows    [][]interface{}
}

// NewDataset builds a Dataset, checking that every row is as wide as the header
// and that column names are unique.
func NewDataset(columns []string, rows [][]interface{}) (*Dataset, error) {
	index := make(map[string]int, len(columns))
	for i, name := range columns {
		if _, dup := index[name]; dup {
			return nil, NewError(KindSchema, "new_dataset", fmt.Errorf("duplicate column %q", name))
		}
		index[name] = i
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, NewError(KindSchema, "new_dataset",
				fmt.Errorf("row %d has %d values, expected %d", i, len(row), len(columns)))
		}
	}
	return &Dataset{
		columns: append([]string(nil), columns...),
		index:   index,
		rows:    rows,
	}, nil
}

// MustDataset is like NewDataset but panics on error. Intended for tests and literals.
func MustDataset(columns []string, rows ...[]interface{}) *Dataset {
	ds, err := NewDataset(columns, rows)
	if err != nil {
		panic(err)
	}
	return ds
}

// NumRows returns the number of rows.
func (d *Dataset) NumRows() int { return len(d.rows) }

// NumColumns returns the number of columns.
func (d *Dataset) NumColumns() int { return len(d.columns) }

// Columns returns a copy of the column names in order.
func (d *Dataset) Columns() []string {
	return append([]string(nil), d.columns...)
}

// ColumnIndex returns the position of the named column.
func (d *Dataset) ColumnIndex(name string) (int, bool) {
	i, ok := d.index[name]
	return i, ok
}

// HasColumn reports whether the named column exists.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Value returns the cell at the given row and column position.
func (d *Dataset) Value(row, col int) interface{} {
	return d.rows[row][col]
}

// Row returns a copy of row i.
func (d *Dataset) Row(i int) []interface{} {
	return append([]interface{}(nil), d.rows[i]...)
}

// ColumnValues returns a copy of every value in the named column.
func (d *Dataset) ColumnValues(name string) ([]interface{}, bool) {
	col, ok := d.index[name]
	if !ok {
		return nil, false
	}
	values := make([]interface{}, len(d.rows))
	for i, row := range d.rows {
		values[i] = row[col]
	}
	return values, true
}

// Record returns row i keyed by column name.
func (d *Dataset) Record(i int) Record {
	rec := make(Record, len(d.columns))
	for col, name := range d.columns {
		rec[name] = d.rows[i][col]
	}
	return rec
}

// Clone returns a deep copy of the Dataset. Cell values are immutable scalars,
// so copying the row slices is enough.
func (d *Dataset) Clone() *Dataset {
	rows := make([][]interface{}, len(d.rows))
	for i, row := range d.rows {
		rows[i] = append([]interface{}(nil), row...)
	}
	index := make(map[string]int, len(d.index))
	for k, v := range d.index {
		index[k] = v
	}
	return &Dataset{
		columns: append([]string(nil), d.columns...),
		index:   index,
		rows:    rows,
	}
}

// Head returns a new Dataset holding at most the first n rows.
func (d *Dataset) Head(n int) *Dataset {
	if n < 0 {
		n = 0
	}
	if n > len(d.rows) {
		n = len(d.rows)
	}
	head := d.Clone()
	head.rows = head.rows[:n]
	return head
}

// SetValue replaces a single cell. Only transformation steps working on their
// own clone should call it.
func (d *Dataset) SetValue(row, col int, value interface{}) {
	d.rows[row][col] = value
}

// RenameColumn substitutes one column key for another in place.
// Only transformation steps working on their own clone should call it.
func (d *Dataset) RenameColumn(from, to string) error {
	col, ok := d.index[from]
	if !ok {
		return NewError(KindSchema, "rename", fmt.Errorf("column %q not found", from))
	}
	if from == to {
		return nil
	}
	if _, exists := d.index[to]; exists {
		return NewError(KindSchema, "rename", fmt.Errorf("column %q already exists", to))
	}
	d.columns[col] = to
	delete(d.index, from)
	d.index[to] = col
	return nil
}

// Source returns a DataSource that streams the Dataset's rows as Records.
func (d *Dataset) Source() DataSource {
	return &datasetSource{ds: d}
}

type datasetSource struct {
	ds  *Dataset
	pos int
}

func (s *datasetSource) Read(ctx context.Context) (Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if s.pos >= s.ds.NumRows() {
		return nil, io.EOF
	}
	rec := s.ds.Record(s.pos)
	s.pos++
	return rec, nil
}

func (s *datasetSource) Close() error { return nil }
