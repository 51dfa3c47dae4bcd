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


package writers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aaronlmathis/telcoetl/config"
	"github.com/aaronlmathis/telcoetl/core"
)

// Export formats accepted by NewExportSink.
const (
	FormatParquet = "parquet"
	FormatCSV     = "csv"
	FormatJSONL   = "jsonl"
)

// LoadDataset writes every row of ds to sink and commits it. When a read or
// write fails the sink is aborted, so nothing is published. It returns the
// number of rows handed to the sink.
func LoadDataset(ctx context.Context, sink core.DataSink, ds *core.Dataset) (int64, error) {
	n, err := WriteDataset(ctx, sink, ds)
	if err != nil {
		if aerr := Abort(sink); aerr != nil {
			return n, errors.Join(err, aerr)
		}
		return n, err
	}
	if err := Commit(ctx, sink); err != nil {
		return n, err
	}
	return n, nil
}

// WriteDataset writes every row of ds to sink without flushing or closing it.
func WriteDataset(ctx context.Context, sink core.DataSink, ds *core.Dataset) (n int64, err error) {
	src := ds.Source()
	defer src.Close()

	for {
		record, rerr := src.Read(ctx)
		if errors.Is(rerr, io.EOF) {
			return n, nil
		}
		if rerr != nil {
			return n, core.Wrap(rerr, core.KindUnexpected, "read")
		}
		if werr := sink.Write(ctx, record); werr != nil {
			return n, core.Wrap(werr, core.KindUnexpected, "write")
		}
		n++
	}
}

// Commit publishes what sink received. A sink is aborted instead when ctx is
// already done. Sinks implementing core.ContextFlusher are flushed under ctx
// before Close, and aborted if that flush fails.
func Commit(ctx context.Context, sink core.DataSink) error {
	if err := ctx.Err(); err != nil {
		_ = Abort(sink)
		return core.NewError(core.KindUnexpected, "commit", err)
	}
	if f, ok := sink.(core.ContextFlusher); ok {
		if err := f.FlushContext(ctx); err != nil {
			_ = Abort(sink)
			return err
		}
	}
	return sink.Close()
}

// Abort discards what sink received. A sink that is not a core.Aborter can
// only be closed.
func Abort(sink core.DataSink) error {
	if a, ok := sink.(core.Aborter); ok {
		return a.Abort()
	}
	return sink.Close()
}

// abortCloser aborts c when it supports that and closes it otherwise.
func abortCloser(c io.Closer) error {
	if c == nil {
		return nil
	}
	if a, ok := c.(core.Aborter); ok {
		return a.Abort()
	}
	return c.Close()
}

// ExportOption configures NewExportSink.
type ExportOption func(*exportOptions)

type exportOptions struct {
	s3 Uploader
}

// WithUploader enables s3:// export paths.
func WithUploader(u Uploader) ExportOption {
	return func(o *exportOptions) { o.s3 = u }
}

// NewExportSink opens a sink for cfg.Format at cfg.Path, laid out after the
// columns of ds. Output goes to a temporary file and only appears at cfg.Path
// on Close; Abort removes it. A path of the form s3://bucket/key is uploaded
// under ctx on Close.
func NewExportSink(ctx context.Context, cfg config.ExportConfig, ds *core.Dataset, opts ...ExportOption) (core.DataSink, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, core.NewError(core.KindConfig, "export", errors.New("export path is required"))
	}
	comma, err := exportComma(cfg)
	if err != nil {
		return nil, err
	}

	var o exportOptions
	for _, opt := range opts {
		opt(&o)
	}

	format := strings.ToLower(cfg.Format)
	switch format {
	case FormatParquet, FormatCSV, FormatJSONL:
	default:
		return nil, core.NewError(core.KindConfig, "export", fmt.Errorf("unsupported export format %q", cfg.Format))
	}

	if strings.HasPrefix(strings.ToLower(cfg.Path), "s3://") {
		return newS3ExportSink(ctx, format, cfg, comma, o.s3, ds)
	}

	tmp, err := createStagingFile(cfg.Path)
	if err != nil {
		return nil, err
	}

	var sink core.DataSink
	switch format {
	case FormatParquet:
		tmp.Close()
		sink, err = newParquetExport(tmp.Name(), cfg, ds)
	case FormatCSV:
		sink = NewCSVWriter(tmp, WithHeaders(ds.Columns()), WithComma(comma), WithCSVBatchSize(cfg.BatchSize))
	case FormatJSONL:
		sink = NewJSONWriter(tmp)
	}
	if err != nil {
		os.Remove(tmp.Name())
		return nil, err
	}
	return &stagedFileSink{DataSink: sink, tmp: tmp.Name(), path: cfg.Path}, nil
}

// newParquetExport opens a parquet writer at filename with a schema taken from ds.
func newParquetExport(filename string, cfg config.ExportConfig, ds *core.Dataset) (*ParquetWriter, error) {
	schema, err := SchemaForDataset(ds)
	if err != nil {
		return nil, err
	}
	opts := []WriterOption{WithSchema(schema)}
	if cfg.BatchSize > 0 {
		opts = append(opts, WithBatchSize(int64(cfg.BatchSize)))
	}
	if cfg.RowGroupSize > 0 {
		opts = append(opts, WithRowGroupSize(cfg.RowGroupSize))
	}
	return NewParquetWriter(filename, opts...)
}

func exportComma(cfg config.ExportConfig) (rune, error) {
	if cfg.Delimiter == "" {
		return ',', nil
	}
	r, err := config.Delimiter(cfg.Delimiter)
	if err != nil {
		return 0, core.NewError(core.KindConfig, "export", err)
	}
	return r, nil
}

// stagedFileSink writes through a temporary file next to path and renames it
// into place on Close.
type stagedFileSink struct {
	core.DataSink
	tmp  string
	path string
}

func (s *stagedFileSink) Close() error {
	if err := s.DataSink.Close(); err != nil {
		os.Remove(s.tmp)
		return err
	}
	if err := os.Rename(s.tmp, s.path); err != nil {
		os.Remove(s.tmp)
		return &core.Error{Kind: core.KindUnexpected, Op: "rename", Path: s.path, Err: err}
	}
	return nil
}

// Abort implements core.Aborter. The temporary file is removed and path is
// left untouched.
func (s *stagedFileSink) Abort() error {
	err := Abort(s.DataSink)
	if rerr := os.Remove(s.tmp); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) && err == nil {
		err = &core.Error{Kind: core.KindUnexpected, Op: "remove", Path: s.tmp, Err: rerr}
	}
	return err
}

// createStagingFile creates the parent directories of path and a temporary
// file beside it.
func createStagingFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &core.Error{Kind: core.KindUnexpected, Op: "create_directory", Path: path, Err: err}
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, &core.Error{Kind: core.KindUnexpected, Op: "open_file", Path: path, Err: err}
	}
	// CreateTemp uses 0600; the published file gets the usual mode.
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, &core.Error{Kind: core.KindUnexpected, Op: "chmod", Path: path, Err: err}
	}
	return f, nil
}

func sortedKeys(record core.Record) []string {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
