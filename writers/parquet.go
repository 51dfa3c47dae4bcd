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
	"os"
	"path/filepath"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/compress"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"

	"github.com/aaronlmathis/telcoetl/core"
)

// This file implements a Parquet writer for exporting the staged table.

// ParquetWriter implements core.DataSink for Parquet files.
type ParquetWriter struct {
	file       *os.File
	writer     *pqarrow.FileWriter
	schema     *arrow.Schema
	builder    *array.RecordBuilder
	closed     bool
	errorState bool
	recordBuf  []core.Record
	fieldOrder []string
	stats      WriterStats
	allocator  memory.Allocator
	opts       *ParquetWriterOptions
}

// ParquetWriterOptions configures the Parquet writer.
type ParquetWriterOptions struct {
	BatchSize    int64                // Number of records to buffer before writing
	Schema       *arrow.Schema        // Pre-defined schema (optional)
	Compression  compress.Compression // Compression algorithm
	RowGroupSize int64                // Maximum rows per row group
}

// WriterStats holds statistics about the Parquet writer's performance.
type WriterStats struct {
	RecordsWritten  int64
	BatchesWritten  int64
	FlushDuration   time.Duration
	LastFlushTime   time.Time
	NullValueCounts map[string]int64
}

// WriterOption represents a configuration function for ParquetWriterOptions.
type WriterOption func(*ParquetWriterOptions)

// WithBatchSize sets the number of records to buffer before writing a batch.
func WithBatchSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.BatchSize = size
	}
}

// WithCompression sets the Parquet compression algorithm.
func WithCompression(compression compress.Compression) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.Compression = compression
	}
}

// WithSchema fixes the Arrow schema instead of inferring it from the first record.
// The field order follows the schema.
func WithSchema(schema *arrow.Schema) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.Schema = schema
	}
}

// WithRowGroupSize sets the row group size for the Parquet file.
func WithRowGroupSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.RowGroupSize = size
	}
}

// NewParquetWriter creates filename (and its parent directories) and returns a
// writer for it.
func NewParquetWriter(filename string, options ...WriterOption) (*ParquetWriter, error) {
	opts := &ParquetWriterOptions{
		BatchSize:    1000,
		RowGroupSize: 10000,
		Compression:  compress.Codecs.Snappy,
	}
	for _, option := range options {
		option(opts)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}

	dir := filepath.Dir(filename)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &core.Error{Kind: core.KindUnexpected, Op: "create_directory", Path: dir, Err: err}
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return nil, &core.Error{Kind: core.KindUnexpected, Op: "open_file", Path: filename, Err: err}
	}

	p := &ParquetWriter{
		file:       file,
		recordBuf:  make([]core.Record, 0, opts.BatchSize),
		stats:      WriterStats{NullValueCounts: make(map[string]int64)},
		allocator:  memory.NewGoAllocator(),
		opts:       opts,
	}

	if opts.Schema != nil {
		if err := p.initialize(opts.Schema); err != nil {
			file.Close()
			return nil, err
		}
	}
	return p, nil
}

// Stats returns the current statistics of the Parquet writer.
func (p *ParquetWriter) Stats() WriterStats {
	return p.stats
}

// Write implements the core.DataSink interface. Records are buffered and
// written in batches.
func (p *ParquetWriter) Write(ctx context.Context, record core.Record) error {
	if p.closed {
		return core.NewError(core.KindUnexpected, "write", errors.New("parquet writer is closed"))
	}
	if p.errorState {
		return core.NewError(core.KindUnexpected, "write", errors.New("writer is in error state"))
	}

	if p.schema == nil {
		schema, err := p.schemaFromRecord(record)
		if err == nil {
			err = p.initialize(schema)
		}
		if err != nil {
			p.errorState = true
			return err
		}
	}

	p.recordBuf = append(p.recordBuf, record)
	p.stats.RecordsWritten++

	if int64(len(p.recordBuf)) >= p.opts.BatchSize {
		if err := p.flushBatch(); err != nil {
			p.errorState = true
			return err
		}
	}
	return nil
}

// Flush implements the core.DataSink interface.
func (p *ParquetWriter) Flush() error {
	return p.flushBatch()
}

// Close implements the core.DataSink interface. It writes remaining records and
// the file footer.
func (p *ParquetWriter) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	var flushErr error
	if !p.errorState {
		flushErr = p.flushBatch()
	}

	if p.builder != nil {
		p.builder.Release()
		p.builder = nil
	}

	if p.writer != nil {
		if err := p.writer.Close(); err != nil && flushErr == nil {
			flushErr = core.NewError(core.KindUnexpected, "close_writer", err)
		}
		p.writer = nil
	}

	// The parquet writer closes its sink; a file that never received a schema is closed here.
	if err := p.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) && flushErr == nil {
		flushErr = core.NewError(core.KindUnexpected, "close_file", err)
	}
	return flushErr
}

// Abort implements core.Aborter. Buffered records are dropped, no footer is
// written and the file is removed.
func (p *ParquetWriter) Abort() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.recordBuf = nil

	if p.builder != nil {
		p.builder.Release()
		p.builder = nil
	}
	p.writer = nil

	var err error
	if cerr := p.file.Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) {
		err = core.NewError(core.KindUnexpected, "close_file", cerr)
	}
	if rerr := os.Remove(p.file.Name()); rerr != nil && !errors.Is(rerr, os.ErrNotExist) && err == nil {
		err = &core.Error{Kind: core.KindUnexpected, Op: "remove", Path: p.file.Name(), Err: rerr}
	}
	return err
}

// SchemaForDataset derives an Arrow schema from a dataset. Each column takes its
// type from its first non-null value; all-null columns are strings.
func SchemaForDataset(ds *core.Dataset) (*arrow.Schema, error) {
	fields := make([]arrow.Field, 0, ds.NumColumns())
	for col, name := range ds.Columns() {
		var sample interface{}
		for row := 0; row < ds.NumRows(); row++ {
			if v := ds.Value(row, col); v != nil {
				sample = v
				break
			}
		}
		dataType, err := inferArrowType(sample)
		if err != nil {
			return nil, core.NewError(core.KindSchema, "schema", fmt.Errorf("column %s: %w", name, err))
		}
		fields = append(fields, arrow.Field{Name: name, Type: dataType, Nullable: true})
	}
	return arrow.NewSchema(fields, nil), nil
}

// schemaFromRecord creates an Arrow schema from the first record.
func (p *ParquetWriter) schemaFromRecord(record core.Record) (*arrow.Schema, error) {
	names := p.fieldOrder
	if names == nil {
		names = sortedKeys(record)
	}

	fields := make([]arrow.Field, 0, len(names))
	for _, name := range names {
		dataType, err := inferArrowType(record[name])
		if err != nil {
			return nil, core.NewError(core.KindSchema, "schema", fmt.Errorf("field %s: %w", name, err))
		}
		fields = append(fields, arrow.Field{Name: name, Type: dataType, Nullable: true})
	}
	return arrow.NewSchema(fields, nil), nil
}

// initialize opens the parquet file writer for schema.
func (p *ParquetWriter) initialize(schema *arrow.Schema) error {
	props := parquet.NewWriterProperties(
		parquet.WithCompression(p.opts.Compression),
		parquet.WithMaxRowGroupLength(p.opts.RowGroupSize),
	)

	writer, err := pqarrow.NewFileWriter(schema, p.file, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return core.NewError(core.KindUnexpected, "create_writer", err)
	}

	p.schema = schema
	p.writer = writer
	p.builder = array.NewRecordBuilder(p.allocator, schema)
	p.fieldOrder = make([]string, len(schema.Fields()))
	for i, f := range schema.Fields() {
		p.fieldOrder[i] = f.Name
	}
	return nil
}

// inferArrowType infers the Arrow data type from a Go value.
func inferArrowType(value interface{}) (arrow.DataType, error) {
	switch value.(type) {
	case nil, string:
		return arrow.BinaryTypes.String, nil
	case bool:
		return arrow.FixedWidthTypes.Boolean, nil
	case int, int32, int64:
		return arrow.PrimitiveTypes.Int64, nil
	case float32, float64:
		return arrow.PrimitiveTypes.Float64, nil
	case time.Time:
		return arrow.FixedWidthTypes.Timestamp_us, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", value)
	}
}

// flushBatch writes the current buffer as one Arrow record.
func (p *ParquetWriter) flushBatch() error {
	if len(p.recordBuf) == 0 {
		return nil
	}

	start := time.Now()

	for _, record := range p.recordBuf {
		for i, name := range p.fieldOrder {
			value, ok := record[name]
			if !ok || value == nil {
				p.builder.Field(i).AppendNull()
				p.stats.NullValueCounts[name]++
				continue
			}
			if err := appendValue(p.builder.Field(i), value); err != nil {
				return core.NewError(core.KindTypeCoercion, "append_value", fmt.Errorf("field %s: %w", name, err))
			}
		}
	}

	rec := p.builder.NewRecord()
	defer rec.Release()

	if err := p.writer.Write(rec); err != nil {
		return core.NewError(core.KindUnexpected, "write_batch", err)
	}

	p.stats.BatchesWritten++
	p.stats.FlushDuration += time.Since(start)
	p.stats.LastFlushTime = time.Now()
	p.recordBuf = p.recordBuf[:0]
	return nil
}

// appendValue appends a non-null value to the matching Arrow builder.
func appendValue(builder array.Builder, value interface{}) error {
	switch b := builder.(type) {
	case *array.BooleanBuilder:
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", value)
		}
		b.Append(v)
	case *array.Int64Builder:
		switch v := value.(type) {
		case int64:
			b.Append(v)
		case int:
			b.Append(int64(v))
		case int32:
			b.Append(int64(v))
		default:
			return fmt.Errorf("expected integer, got %T", value)
		}
	case *array.Float64Builder:
		switch v := value.(type) {
		case float64:
			b.Append(v)
		case float32:
			b.Append(float64(v))
		case int64:
			b.Append(float64(v))
		default:
			return fmt.Errorf("expected float, got %T", value)
		}
	case *array.StringBuilder:
		if v, ok := value.(string); ok {
			b.Append(v)
		} else {
			b.Append(fmt.Sprintf("%v", value))
		}
	case *array.TimestampBuilder:
		v, ok := value.(time.Time)
		if !ok {
			return fmt.Errorf("expected time.Time, got %T", value)
		}
		b.Append(arrow.Timestamp(v.UnixMicro()))
	default:
		return fmt.Errorf("unsupported builder %T", builder)
	}
	return nil
}
