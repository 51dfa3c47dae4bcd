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
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aaronlmathis/telcoetl/core"
)

// JSONWriter implements core.DataSink for JSON lines files.
type JSONWriter struct {
	writer  *bufio.Writer
	closer  io.Closer
	written int64
	closed  bool
}

// NewJSONWriter creates a new JSON writer for line-delimited JSON output.
func NewJSONWriter(w io.WriteCloser) *JSONWriter {
	return &JSONWriter{
		writer: bufio.NewWriter(w),
		closer: w,
	}
}

// Write implements the core.DataSink interface.
func (j *JSONWriter) Write(ctx context.Context, record core.Record) error {
	if j.closed {
		return core.NewError(core.KindUnexpected, "write", errors.New("writer is closed"))
	}
	data, err := json.Marshal(record)
	if err != nil {
		return core.NewError(core.KindUnexpected, "marshal", fmt.Errorf("failed to marshal record to JSON: %w", err))
	}

	if _, err := j.writer.Write(append(data, '\n')); err != nil {
		return core.NewError(core.KindUnexpected, "write", err)
	}
	j.written++
	return nil
}

// Written returns the number of records written.
func (j *JSONWriter) Written() int64 {
	return j.written
}

// Flush implements the core.DataSink interface.
func (j *JSONWriter) Flush() error {
	if err := j.writer.Flush(); err != nil {
		return core.NewError(core.KindUnexpected, "flush", err)
	}
	return nil
}

// Close implements the core.DataSink interface. The underlying writer is
// closed on every path.
func (j *JSONWriter) Close() error {
	if j.closed {
		return nil
	}
	j.closed = true

	err := j.Flush()
	if j.closer != nil {
		if cerr := j.closer.Close(); cerr != nil {
			err = errors.Join(err, core.NewError(core.KindUnexpected, "close", cerr))
		}
		j.closer = nil
	}
	return err
}

// Abort implements core.Aborter. Buffered output is discarded.
func (j *JSONWriter) Abort() error {
	if j.closed {
		return nil
	}
	j.closed = true
	j.writer.Reset(io.Discard)

	err := abortCloser(j.closer)
	j.closer = nil
	return err
}
