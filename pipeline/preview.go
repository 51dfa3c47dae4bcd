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


package pipeline

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aaronlmathis/telcoetl/core"
)

// WritePreview renders the first n rows of ds as an aligned table with a row
// index column, followed by a shape line. Missing values print as NaN.
func WritePreview(w io.Writer, ds *core.Dataset, n int) error {
	if w == nil || n <= 0 {
		return nil
	}

	head := ds.Head(n)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "\t%s\n", strings.Join(head.Columns(), "\t"))
	for i := 0; i < head.NumRows(); i++ {
		cells := make([]string, head.NumColumns())
		for col := range cells {
			cells[col] = formatPreviewValue(head.Value(i, col))
		}
		fmt.Fprintf(tw, "%d\t%s\n", i, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n[%d rows x %d columns]\n", ds.NumRows(), ds.NumColumns())
	return err
}

func formatPreviewValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NaN"
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "True"
		}
		return "False"
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}
