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


// Package config provides centralized configuration for the TelcoETL pipeline.
// Configuration is read once at process start from environment variables (and an
// optional .env file loaded by the caller), defaulted, validated, and then passed
// explicitly to every component that needs it.
package config

import "time"

// Defaults for the warehouse connection.
const (
	DefaultDBHost     = "localhost"
	DefaultDBPort     = "5433"
	DefaultDBName     = "saas_analytics"
	DefaultDBUser     = "postgres"
	DefaultDBPassword = ""
)

// DefaultSourceFile is the raw telco extract, relative to the project root.
const DefaultSourceFile = "data/raw/WA_Fn-UseC_-Telco-Customer-Churn.csv"

// Config holds all pipeline configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Load     LoadConfig     `mapstructure:"load"`
	Export   ExportConfig   `mapstructure:"export"`
	S3       S3Config       `mapstructure:"s3"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DatabaseConfig holds the warehouse connection settings.
// Field contents are not validated; see database.BuildConnectionString.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`

	// SSLMode is appended as ?sslmode= when set.
	SSLMode string `mapstructure:"sslmode"`

	// ConnectTimeout bounds opening and pinging a connection (default: 5s)
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// PipelineConfig controls which stages run and where input comes from.
type PipelineConfig struct {
	// ProjectRoot anchors the default source and export paths (default: the directory of the running binary)
	ProjectRoot string `mapstructure:"project_root"`

	// SourcePath overrides the default source; may be relative, absolute or s3://bucket/key
	SourcePath string `mapstructure:"source_path"`

	// Delimiter is the source field separator, a single character (default: ",")
	Delimiter string `mapstructure:"delimiter"`

	// PreviewRows is how many rows to print after extraction (default: 5)
	PreviewRows int `mapstructure:"preview_rows"`

	// Stage runs the staging transform after extraction (default: true)
	Stage bool `mapstructure:"stage"`

	// Load writes the staged table to the warehouse (default: false)
	Load bool `mapstructure:"load"`

	// BlankPolicy decides what blank TotalCharges become: zero, null or reject (default: zero)
	BlankPolicy string `mapstructure:"blank_policy"`

	// MetricsFile, when set, receives Prometheus text-format run metrics at the end of each run
	MetricsFile string `mapstructure:"metrics_file"`
}

// LoadConfig holds warehouse load settings.
type LoadConfig struct {
	// Table is the target table (default: stg_telco_customers)
	Table string `mapstructure:"table"`

	// Truncate empties the table before loading (default: true)
	Truncate bool `mapstructure:"truncate"`

	// CreateTable creates the table when it does not exist (default: true)
	CreateTable bool `mapstructure:"create_table"`

	// Timeout bounds the load transaction (default: 5m)
	Timeout time.Duration `mapstructure:"timeout"`
}

// ExportConfig holds settings for the optional file export of the staged table.
type ExportConfig struct {
	// Format is "", "parquet", "csv" or "jsonl"; empty disables the export
	Format string `mapstructure:"format"`

	// Path is the output file (default: <project_root>/data/staging/stg_telco_customers.<format>)
	Path string `mapstructure:"path"`

	// Delimiter separates CSV export fields (default: ",")
	Delimiter string `mapstructure:"delimiter"`

	// BatchSize is how many rows the writer buffers between flushes (default: 1000)
	BatchSize int `mapstructure:"batch_size"`

	// RowGroupSize caps the rows per parquet row group (default: 10000)
	RowGroupSize int64 `mapstructure:"row_group_size"`
}

// S3Config holds settings used when the source path is an s3:// URI.
type S3Config struct {
	Region         string `mapstructure:"region"`
	Profile        string `mapstructure:"profile"`
	Endpoint       string `mapstructure:"endpoint"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`

	// Static credentials for S3-compatible stores; the default AWS chain is used when empty
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `mapstructure:"level"`

	// Format is console or json (default: console)
	Format string `mapstructure:"format"`
}
