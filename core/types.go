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

import "context"

// Package core defines the core types for the TelcoETL pipeline.
//
// This file contains the record type shared by sources and sinks and the
// function adapters for the core interfaces.

// Record represents a single row keyed by column name.
// Records are how a Dataset is handed to sinks one row at a time.
type Record map[string]interface{}

// DatasetTransformFunc is a function adapter for the DatasetTransformer interface.
// Allows ordinary functions to be used as transformation steps.
type DatasetTransformFunc func(ctx context.Context, ds *Dataset) (*Dataset, error)

// Transform implements the DatasetTransformer interface for DatasetTransformFunc.
func (f DatasetTransformFunc) Transform(ctx context.Context, ds *Dataset) (*Dataset, error) {
	return f(ctx, ds)
}
