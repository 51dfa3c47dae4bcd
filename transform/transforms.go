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


package transform

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aaronlmathis/telcoetl/core"
)

// Package transform provides the dataset-level cleaning steps used by TelcoETL staging.
//
// Every step is a core.DatasetTransformer that clones its input, so the caller's
// Dataset is never modified. Steps compose with Chain.

// BlankPolicy decides what ToFloat does with a blank cell (nil, empty or whitespace-only).
type BlankPolicy int

const (
	// BlankAsZero replaces blanks with 0.0.
	BlankAsZero BlankPolicy = iota
	// BlankAsNull replaces blanks with nil.
	BlankAsNull
	// BlankReject fails with core.KindTypeCoercion on the first blank.
	BlankReject
)

// String returns the configuration name of the policy.
func (p BlankPolicy) String() string {
	switch p {
	case BlankAsZero:
		return "zero"
	case BlankAsNull:
		return "null"
	case BlankReject:
		return "reject"
	}
	return fmt.Sprintf("BlankPolicy(%d)", int(p))
}

// ParseBlankPolicy maps "zero", "null" or "reject" (any case) to a BlankPolicy.
// An empty string selects BlankAsZero.
func ParseBlankPolicy(s string) (BlankPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "zero":
		return BlankAsZero, nil
	case "null":
		return BlankAsNull, nil
	case "reject":
		return BlankReject, nil
	}
	return BlankAsZero, core.NewError(core.KindConfig, "parse_blank_policy", fmt.Errorf("unknown blank policy %q", s))
}

// Rename creates a transformer that renames a single column.
// A missing source column or an existing target column is a schema error.
func Rename(from, to string) core.DatasetTransformer {
	return core.DatasetTransformFunc(func(ctx context.Context, ds *core.Dataset) (*core.Dataset, error) {
		out := ds.Clone()
		if err := out.RenameColumn(from, to); err != nil {
			return nil, core.Wrap(err, core.KindSchema, "rename")
		}
		return out, nil
	})
}

// RequireColumns creates a transformer that fails with a schema error listing
// every named column absent from the dataset.
func RequireColumns(names ...string) core.DatasetTransformer {
	return core.DatasetTransformFunc(func(ctx context.Context, ds *core.Dataset) (*core.Dataset, error) {
		var missing []string
		for _, name := range names {
			if !ds.HasColumn(name) {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			return nil, core.NewError(core.KindSchema, "require_columns",
				fmt.Errorf("missing required columns: %s", strings.Join(missing, ", ")))
		}
		return ds.Clone(), nil
	})
}

// ToFloat creates a transformer that converts every cell of column to float64.
// Integers and numeric strings convert; blanks follow policy; anything else
// fails with core.KindTypeCoercion naming the row and value.
func ToFloat(column string, policy BlankPolicy) core.DatasetTransformer {
	return core.DatasetTransformFunc(func(ctx context.Context, ds *core.Dataset) (*core.Dataset, error) {
		col, ok := ds.ColumnIndex(column)
		if !ok {
			return nil, core.NewError(core.KindSchema, "to_float", fmt.Errorf("column %q not found", column))
		}

		out := ds.Clone()
		for i := 0; i < out.NumRows(); i++ {
			if err := ctx.Err(); err != nil {
				return nil, core.NewError(core.KindUnexpected, "to_float", err)
			}

			value := out.Value(i, col)
			if IsBlank(value) {
				switch policy {
				case BlankAsZero:
					out.SetValue(i, col, 0.0)
				case BlankAsNull:
					out.SetValue(i, col, nil)
				default:
					return nil, core.NewError(core.KindTypeCoercion, "to_float",
						fmt.Errorf("column %q row %d: blank value cannot be converted to float", column, i))
				}
				continue
			}

			f, err := toFloat64(value)
			if err != nil {
				return nil, core.NewError(core.KindTypeCoercion, "to_float",
					fmt.Errorf("column %q row %d: %w", column, i, err))
			}
			out.SetValue(i, col, f)
		}
		return out, nil
	})
}

// TrimSpace creates a transformer that trims whitespace from the string cells
// of the given columns. Missing columns are ignored.
func TrimSpace(columns ...string) core.DatasetTransformer {
	return core.DatasetTransformFunc(func(ctx context.Context, ds *core.Dataset) (*core.Dataset, error) {
		out := ds.Clone()
		for _, name := range columns {
			col, ok := out.ColumnIndex(name)
			if !ok {
				continue
			}
			for i := 0; i < out.NumRows(); i++ {
				if str, ok := out.Value(i, col).(string); ok {
					out.SetValue(i, col, strings.TrimSpace(str))
				}
			}
		}
		return out, nil
	})
}

// Chain composes transformers into a single transformer. They run in order and
// the first error stops the chain.
func Chain(steps ...core.DatasetTransformer) core.DatasetTransformer {
	return core.DatasetTransformFunc(func(ctx context.Context, ds *core.Dataset) (*core.Dataset, error) {
		current := ds
		for _, step := range steps {
			next, err := step.Transform(ctx, current)
			if err != nil {
				return nil, err
			}
			current = next
		}
		if current == ds {
			return ds.Clone(), nil
		}
		return current, nil
	})
}

// IsBlank reports whether v is nil, an empty string or a whitespace-only string.
func IsBlank(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	}
	return false
}

// toFloat64 converts a non-blank value to float64.
func toFloat64(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("cannot convert non-finite %v to float", v)
		}
		return v, nil
	case float32:
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return 0, fmt.Errorf("cannot convert non-finite %v to float", v)
		}
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		// ParseFloat accepts "NaN", "Inf" and "Infinity".
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("cannot convert %q to float", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot convert %v (%T) to float", value, value)
	}
}
