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


package readers

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aaronlmathis/telcoetl/core"
)

// Package readers provides the extraction side of TelcoETL.
//
// This file implements a streaming CSV reader that requires a header row and
// reports malformed input with core error kinds.

const utf8BOM = "\ufeff"

// CSVReaderStats holds statistics about the CSV reader's performance.
type CSVReaderStats struct {
	RowsRead        int64
	ReadDuration    time.Duration
	LastReadTime    time.Time
	NullValueCounts map[string]int64
}

// CSVReaderOptions configures the CSV reader.
type CSVReaderOptions struct {
	Comma rune
}

// ReaderOptionCSV allows functional customization of CSVReader.
type ReaderOptionCSV func(*CSVReaderOptions)

// WithCSVComma sets the field delimiter.
func WithCSVComma(r rune) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.Comma = r }
}

// CSVReader implements core.DataSource for delimited text with a header row.
// Every data row must have exactly as many fields as the header.
type CSVReader struct {
	reader  *csv.Reader
	headers []string
	closer  io.Closer
	stats   CSVReaderStats
	opts    CSVReaderOptions
}

// NewCSVReader reads the header row from r and returns a reader positioned at
// the first data row. An input without a header fails with core.KindEmptyData.
// If NewCSVReader fails the caller still owns r; otherwise Close releases it.
func NewCSVReader(r io.ReadCloser, options ...ReaderOptionCSV) (*CSVReader, error) {
	opts := CSVReaderOptions{
		Comma: ',',
	}

	for _, opt := range options {
		opt(&opts)
	}

	csvReader := csv.NewReader(r)
	csvReader.Comma = opts.Comma
	// Zero means every record must match the width of the first one (the header).
	csvReader.FieldsPerRecord = 0
	csvReader.ReuseRecord = false

	reader := &CSVReader{
		reader: csvReader,
		closer: r,
		opts:   opts,
		stats:  CSVReaderStats{NullValueCounts: make(map[string]int64)},
	}

	headers, err := csvReader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &core.Error{Kind: core.KindEmptyData, Op: "read_headers", Err: errors.New("no columns to parse from file")}
		}
		return nil, classifyCSVError("read_headers", err)
	}
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], utf8BOM)
	}
	if err := checkHeaders(headers); err != nil {
		return nil, err
	}
	reader.headers = headers

	return reader, nil
}

// checkHeaders rejects blank or duplicate column names.
func checkHeaders(headers []string) error {
	seen := make(map[string]bool, len(headers))
	for i, h := range headers {
		if strings.TrimSpace(h) == "" {
			return &core.Error{Kind: core.KindParse, Op: "read_headers", Line: 1, Err: fmt.Errorf("column %d has an empty name", i+1)}
		}
		if seen[h] {
			return &core.Error{Kind: core.KindParse, Op: "read_headers", Line: 1, Err: fmt.Errorf("duplicate column %q", h)}
		}
		seen[h] = true
	}
	return nil
}

// Headers returns a copy of the header row.
func (c *CSVReader) Headers() []string {
	return append([]string(nil), c.headers...)
}

// ReadRow returns the next data row as raw strings, or io.EOF.
func (c *CSVReader) ReadRow(ctx context.Context) ([]string, error) {
	start := time.Now()

	select {
	case <-ctx.Done():
		return nil, core.NewError(core.KindUnexpected, "read", ctx.Err())
	default:
	}

	row, err := c.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, classifyCSVError("read_record", err)
	}

	c.stats.RowsRead++
	c.stats.LastReadTime = time.Now()
	c.stats.ReadDuration += time.Since(start)

	return row, nil
}

// Read implements the core.DataSource interface. Empty fields become nil;
// all other values are returned as strings.
func (c *CSVReader) Read(ctx context.Context) (core.Record, error) {
	row, err := c.ReadRow(ctx)
	if err != nil {
		return nil, err
	}

	res := make(core.Record, len(c.headers))
	for i, val := range row {
		key := c.headers[i]
		if val == "" {
			c.stats.NullValueCounts[key]++
			res[key] = nil
		} else {
			res[key] = val
		}
	}
	return res, nil
}

// Close implements the core.DataSource interface.
func (c *CSVReader) Close() error {
	if c.closer != nil {
		err := c.closer.Close()
		c.closer = nil
		return err
	}
	return nil
}

// Stats returns CSV reader performance stats.
func (c *CSVReader) Stats() CSVReaderStats {
	return c.stats
}

// classifyCSVError maps encoding/csv failures onto core error kinds.
func classifyCSVError(op string, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &core.Error{Kind: core.KindParse, Op: op, Line: pe.Line, Err: pe.Err}
	}
	return core.NewError(core.KindUnexpected, op, err)
}
