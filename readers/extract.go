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
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/aaronlmathis/telcoetl/core"
)

// This file implements the Extractor: one delimited file in, one typed Dataset out.

// Extractor reads a delimited file from local disk or S3 into a core.Dataset.
type Extractor struct {
	log     *zap.Logger
	s3      ObjectGetter
	csvOpts []ReaderOptionCSV
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithS3Client enables s3:// source paths.
func WithS3Client(client ObjectGetter) ExtractorOption {
	return func(e *Extractor) { e.s3 = client }
}

// WithCSVOptions passes options through to the CSV reader.
func WithCSVOptions(opts ...ReaderOptionCSV) ExtractorOption {
	return func(e *Extractor) { e.csvOpts = append(e.csvOpts, opts...) }
}

// NewExtractor creates an Extractor that logs to log (nil means no logging).
func NewExtractor(log *zap.Logger, opts ...ExtractorOption) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Extractor{log: log}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads path, treating the first line as the header.
//
// It fails with core.KindNotFound when path does not resolve to a readable file,
// core.KindEmptyData when there is no header or no data row, and core.KindParse
// when a row's width differs from the header or quoting is malformed. Other
// failures are core.KindUnexpected.
func (e *Extractor) Extract(ctx context.Context, path string) (*core.Dataset, error) {
	e.log.Info("extracting data", zap.String("source", path))

	body, err := e.open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	reader, err := NewCSVReader(body, e.csvOpts...)
	if err != nil {
		return nil, withPath(err, path)
	}

	headers := reader.Headers()
	var raw [][]string
	for {
		row, err := reader.ReadRow(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, withPath(err, path)
		}
		raw = append(raw, row)
	}

	if len(raw) == 0 {
		return nil, &core.Error{Kind: core.KindEmptyData, Op: "read_records", Path: path, Err: errors.New("file has a header but no data rows")}
	}

	ds, err := core.NewDataset(headers, typeColumns(headers, raw))
	if err != nil {
		return nil, withPath(core.Wrap(err, core.KindUnexpected, "build_dataset"), path)
	}

	e.log.Info("extraction complete",
		zap.String("source", path),
		zap.Int("rows", ds.NumRows()),
		zap.Int("columns", ds.NumColumns()),
	)
	return ds, nil
}

// open resolves path to a readable stream.
func (e *Extractor) open(ctx context.Context, path string) (io.ReadCloser, error) {
	if IsS3URI(path) {
		loc, err := ParseS3URI(path)
		if err != nil {
			return nil, &core.Error{Kind: core.KindNotFound, Op: "parse_uri", Path: path, Err: err}
		}
		if e.s3 == nil {
			return nil, &core.Error{Kind: core.KindConfig, Op: "open", Path: path, Err: errors.New("no s3 client configured")}
		}
		return openS3Object(ctx, e.s3, loc)
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &core.Error{Kind: core.KindNotFound, Op: "stat", Path: path, Err: err}
		}
		return nil, &core.Error{Kind: core.KindUnexpected, Op: "stat", Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &core.Error{Kind: core.KindNotFound, Op: "stat", Path: path, Err: fmt.Errorf("%s is a directory", path)}
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &core.Error{Kind: core.KindNotFound, Op: "open", Path: path, Err: err}
		}
		return nil, &core.Error{Kind: core.KindUnexpected, Op: "open", Path: path, Err: err}
	}
	return f, nil
}

// withPath records the source path on a core.Error that lacks one.
func withPath(err error, path string) error {
	var ce *core.Error
	if errors.As(err, &ce) && ce.Path == "" {
		ce.Path = path
	}
	return err
}

// columnType is the inferred type of a whole column.
type columnType int

const (
	columnNull columnType = iota
	columnInt
	columnFloat
	columnBool
	columnString
)

// typeColumns converts raw cells into typed values column by column. A column
// is int64 when every non-empty cell parses as an integer, float64 when every
// non-empty cell parses as a finite float, bool when every non-empty cell is
// true/false, and string otherwise. Empty cells are nil. Whitespace-only cells
// are not empty and keep a column textual.
func typeColumns(headers []string, raw [][]string) [][]interface{} {
	colTypes := make([]columnType, len(headers))
	for col := range headers {
		colTypes[col] = inferColumnType(raw, col)
	}

	rows := make([][]interface{}, len(raw))
	for i, cells := range raw {
		row := make([]interface{}, len(cells))
		for col, cell := range cells {
			row[col] = convertCell(cell, colTypes[col])
		}
		rows[i] = row
	}
	return rows
}

func inferColumnType(raw [][]string, col int) columnType {
	isInt, isFloat, isBool := true, true, true
	seen := false

	for _, row := range raw {
		cell := row[col]
		if cell == "" {
			continue
		}
		seen = true
		if isInt {
			if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, ok := parseFiniteFloat(cell); !ok {
				isFloat = false
			}
		}
		if isBool {
			if _, ok := parseBool(cell); !ok {
				isBool = false
			}
		}
		if !isInt && !isFloat && !isBool {
			return columnString
		}
	}

	switch {
	case !seen:
		return columnNull
	case isInt:
		return columnInt
	case isFloat:
		return columnFloat
	case isBool:
		return columnBool
	default:
		return columnString
	}
}

func convertCell(cell string, t columnType) interface{} {
	if cell == "" {
		return nil
	}
	switch t {
	case columnInt:
		v, _ := strconv.ParseInt(cell, 10, 64)
		return v
	case columnFloat:
		v, _ := parseFiniteFloat(cell)
		return v
	case columnBool:
		v, _ := parseBool(cell)
		return v
	default:
		return cell
	}
}

func parseFiniteFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}
