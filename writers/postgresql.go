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
	"database/sql"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/aaronlmathis/telcoetl/core"
)

// Package writers provides implementations of core.DataSink for the load side of TelcoETL.
//
// This file implements the warehouse loader. It buffers the whole staged table and
// performs a full reload in one transaction: create the table if needed, truncate
// it if requested, and bulk insert with COPY.

// PostgresLoaderStats holds PostgreSQL load statistics.
type PostgresLoaderStats struct {
	RecordsWritten   int64            // Records loaded by committed transactions
	TransactionCount int64            // Number of transactions committed
	LastWriteTime    time.Time        // Time of last commit
	WriteDuration    time.Duration    // Total time spent in transactions
	NullValueCounts  map[string]int64 // Count of null values per column
}

// PostgresLoaderOptions configures the PostgreSQL loader.
type PostgresLoaderOptions struct {
	TableName     string        // Target table, optionally schema-qualified (schema.table)
	Columns       []string      // Columns to write (order matters)
	CreateTable   bool          // Create table if not exists
	TruncateTable bool          // Truncate table before writing
	QueryTimeout  time.Duration // Timeout for the load transaction
}

// PostgresLoaderOption represents a configuration function for PostgresLoaderOptions.
type PostgresLoaderOption func(*PostgresLoaderOptions)

// WithTableName sets the target table name.
func WithTableName(tableName string) PostgresLoaderOption {
	return func(opts *PostgresLoaderOptions) {
		opts.TableName = tableName
	}
}

// WithColumns sets the columns to write.
func WithColumns(columns []string) PostgresLoaderOption {
	return func(opts *PostgresLoaderOptions) {
		opts.Columns = append([]string(nil), columns...)
	}
}

// WithCreateTable enables or disables table creation.
func WithCreateTable(create bool) PostgresLoaderOption {
	return func(opts *PostgresLoaderOptions) {
		opts.CreateTable = create
	}
}

// WithTruncateTable enables or disables table truncation before writing.
func WithTruncateTable(truncate bool) PostgresLoaderOption {
	return func(opts *PostgresLoaderOptions) {
		opts.TruncateTable = truncate
	}
}

// WithQueryTimeout sets the timeout for the load transaction.
func WithQueryTimeout(timeout time.Duration) PostgresLoaderOption {
	return func(opts *PostgresLoaderOptions) {
		opts.QueryTimeout = timeout
	}
}

// PostgresLoader implements core.DataSink for PostgreSQL. It does not own the
// *sql.DB it writes through; closing the loader leaves the connection open.
type PostgresLoader struct {
	db        *sql.DB
	options   PostgresLoaderOptions
	columns   []string
	recordBuf []core.Record
	stats     PostgresLoaderStats
	closed    bool
	mu        sync.Mutex
}

// NewPostgresLoader creates a loader that writes through db.
func NewPostgresLoader(db *sql.DB, opts ...PostgresLoaderOption) (*PostgresLoader, error) {
	options := PostgresLoaderOptions{
		CreateTable:  true,
		QueryTimeout: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(&options)
	}

	if db == nil {
		return nil, core.NewError(core.KindConfig, "new_loader", fmt.Errorf("database handle is required"))
	}
	if strings.TrimSpace(options.TableName) == "" {
		return nil, core.NewError(core.KindConfig, "new_loader", fmt.Errorf("table name is required"))
	}

	return &PostgresLoader{
		db:      db,
		options: options,
		columns: append([]string(nil), options.Columns...),
		stats:   PostgresLoaderStats{NullValueCounts: make(map[string]int64)},
	}, nil
}

// Stats returns a copy of the current load statistics.
func (w *PostgresLoader) Stats() PostgresLoaderStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	statsCopy := w.stats
	statsCopy.NullValueCounts = make(map[string]int64)
	for k, v := range w.stats.NullValueCounts {
		statsCopy.NullValueCounts[k] = v
	}
	return statsCopy
}

// Write implements the core.DataSink interface. Records are buffered until Flush.
func (w *PostgresLoader) Write(ctx context.Context, record core.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return core.NewError(core.KindUnexpected, "write", fmt.Errorf("loader is closed"))
	}

	// Determine columns from first record if not specified
	if len(w.columns) == 0 {
		for key := range record {
			w.columns = append(w.columns, key)
		}
		sort.Strings(w.columns)
	}

	w.recordBuf = append(w.recordBuf, record)
	return nil
}

// Flush implements the core.DataSink interface. It loads every buffered record
// in a single transaction; on failure nothing is committed.
func (w *PostgresLoader) Flush() error {
	return w.FlushContext(context.Background())
}

// FlushContext implements core.ContextFlusher. The load transaction runs under
// ctx, bounded by the configured query timeout; cancelling ctx rolls it back.
func (w *PostgresLoader) FlushContext(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, w.options.QueryTimeout)
	defer cancel()

	return w.loadUnsafe(ctx)
}

// Close implements the core.DataSink interface. It flushes buffered records.
func (w *PostgresLoader) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

// Abort implements core.Aborter. Buffered records are dropped without opening
// a transaction, so the target table is left as it was.
func (w *PostgresLoader) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.recordBuf = nil
	w.closed = true
	return nil
}

// loadUnsafe runs the load transaction (must hold mutex).
func (w *PostgresLoader) loadUnsafe(ctx context.Context) (err error) {
	if len(w.recordBuf) == 0 {
		return nil
	}

	start := time.Now()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return core.NewError(core.KindConnection, "begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if w.options.CreateTable {
		if _, err = tx.ExecContext(ctx, w.createTableSQL(w.recordBuf)); err != nil {
			return core.NewError(core.KindUnexpected, "create_table", err)
		}
	}

	if w.options.TruncateTable {
		if _, err = tx.ExecContext(ctx, "TRUNCATE TABLE "+quoteTable(w.options.TableName)); err != nil {
			return core.NewError(core.KindUnexpected, "truncate", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, w.copyInSQL())
	if err != nil {
		return core.NewError(core.KindUnexpected, "prepare_copy", err)
	}

	nulls := make(map[string]int64)
	for _, record := range w.recordBuf {
		values := make([]interface{}, len(w.columns))
		for i, col := range w.columns {
			val, ok := record[col]
			if !ok || val == nil {
				nulls[col]++
				continue
			}
			values[i] = convertValue(val)
		}
		if _, err = stmt.ExecContext(ctx, values...); err != nil {
			stmt.Close()
			return core.NewError(core.KindUnexpected, "copy", err)
		}
	}

	// An Exec without arguments flushes the COPY buffer.
	if _, err = stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return core.NewError(core.KindUnexpected, "copy", err)
	}
	if err = stmt.Close(); err != nil {
		return core.NewError(core.KindUnexpected, "copy", err)
	}

	if err = tx.Commit(); err != nil {
		return core.NewError(core.KindUnexpected, "commit", err)
	}

	w.stats.RecordsWritten += int64(len(w.recordBuf))
	w.stats.TransactionCount++
	w.stats.LastWriteTime = time.Now()
	w.stats.WriteDuration += time.Since(start)
	for k, v := range nulls {
		w.stats.NullValueCounts[k] += v
	}
	w.recordBuf = w.recordBuf[:0]

	return nil
}

// createTableSQL builds the CREATE TABLE statement. Each column takes its type
// from the first non-null value in records.
func (w *PostgresLoader) createTableSQL(records []core.Record) string {
	columns := make([]string, len(w.columns))
	for i, col := range w.columns {
		var sample interface{}
		for _, record := range records {
			if v := record[col]; v != nil {
				sample = v
				break
			}
		}
		columns[i] = fmt.Sprintf("%s %s", pq.QuoteIdentifier(col), inferSQLType(sample))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteTable(w.options.TableName), strings.Join(columns, ", "))
}

// copyInSQL builds the COPY statement for the target table.
func (w *PostgresLoader) copyInSQL() string {
	if schema, table, ok := strings.Cut(w.options.TableName, "."); ok {
		return pq.CopyInSchema(schema, table, w.columns...)
	}
	return pq.CopyIn(w.options.TableName, w.columns...)
}

// quoteTable quotes a table name, keeping an optional schema prefix separate.
func quoteTable(name string) string {
	if schema, table, ok := strings.Cut(name, "."); ok {
		return pq.QuoteIdentifier(schema) + "." + pq.QuoteIdentifier(table)
	}
	return pq.QuoteIdentifier(name)
}

// inferSQLType infers PostgreSQL column type from Go value.
func inferSQLType(value interface{}) string {
	if value == nil {
		return "TEXT"
	}

	switch value.(type) {
	case bool:
		return "BOOLEAN"
	case int, int8, int16, int32, int64:
		return "BIGINT"
	case uint, uint8, uint16, uint32, uint64:
		return "BIGINT"
	case float32, float64:
		return "DOUBLE PRECISION"
	case time.Time:
		return "TIMESTAMP"
	case []byte:
		return "BYTEA"
	default:
		return "TEXT"
	}
}

// convertValue converts Go values to PostgreSQL-compatible types.
func convertValue(value interface{}) interface{} {
	if value == nil {
		return nil
	}

	switch v := value.(type) {
	case time.Time, bool, int64, float64, string, []byte:
		return v
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
			return rv.Int()
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return int64(rv.Uint())
		case reflect.Float32:
			return rv.Float()
		default:
			return fmt.Sprintf("%v", v)
		}
	}
}
