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
)

// Package core defines the core interfaces for the TelcoETL pipeline.
//
// This file contains the interfaces for data sources, data sinks and dataset
// transformation steps.

// DataSource defines the interface for data extraction.
// Implementations stream records from a source (e.g., a CSV file or a Dataset).
type DataSource interface {
	// Read returns the next record or io.EOF when no more records are available.
	Read(ctx context.Context) (Record, error)
	// Close releases any resources held by the data source.
	Close() error
}

// DataSink defines the interface for data loading.
// Implementations write records to a destination (e.g., PostgreSQL, Parquet, CSV).
type DataSink interface {
	// Write outputs a single record to the sink.
	Write(ctx context.Context, record Record) error
	// Flush ensures all buffered data is written to the sink.
	Flush() error
	// Close publishes whatever was written and releases any resources held by
	// the data sink.
	Close() error
}

// Aborter is implemented by sinks that can discard everything written to them.
// After Abort nothing the sink received is persisted and the sink is closed.
type Aborter interface {
	Abort() error
}

// ContextFlusher is implemented by sinks whose flush blocks on I/O that
// should honour cancellation.
type ContextFlusher interface {
	FlushContext(ctx context.Context) error
}

// DatasetTransformer defines the interface for whole-table transformation steps.
// A transformer must not modify its input; it returns a new Dataset.
type DatasetTransformer interface {
	// Transform applies the step to ds and returns the result.
	Transform(ctx context.Context, ds *Dataset) (*Dataset, error)
}
