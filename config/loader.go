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


package config

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spf13/viper"
)

// binding ties a config key to its environment variable and default.
type binding struct {
	key string
	env string
	def interface{}
}

var bindings = []binding{
	{"database.host", "DB_HOST", DefaultDBHost},
	{"database.port", "DB_PORT", DefaultDBPort},
	{"database.name", "DB_NAME", DefaultDBName},
	{"database.user", "DB_USER", DefaultDBUser},
	{"database.password", "DB_PASSWORD", DefaultDBPassword},
	{"database.sslmode", "DB_SSLMODE", ""},
	{"database.connect_timeout", "DB_CONNECT_TIMEOUT", "5s"},

	{"pipeline.project_root", "ETL_PROJECT_ROOT", ""},
	{"pipeline.source_path", "ETL_SOURCE_PATH", ""},
	{"pipeline.delimiter", "ETL_CSV_DELIMITER", ","},
	{"pipeline.preview_rows", "ETL_PREVIEW_ROWS", 5},
	{"pipeline.stage", "ETL_STAGE", true},
	{"pipeline.load", "ETL_LOAD", false},
	{"pipeline.blank_policy", "ETL_BLANK_POLICY", "zero"},
	{"pipeline.metrics_file", "ETL_METRICS_FILE", ""},

	{"load.table", "ETL_LOAD_TABLE", "stg_telco_customers"},
	{"load.truncate", "ETL_LOAD_TRUNCATE", true},
	{"load.create_table", "ETL_LOAD_CREATE_TABLE", true},
	{"load.timeout", "ETL_LOAD_TIMEOUT", "5m"},

	{"export.format", "ETL_EXPORT_FORMAT", ""},
	{"export.path", "ETL_EXPORT_PATH", ""},
	{"export.delimiter", "ETL_EXPORT_DELIMITER", ","},
	{"export.batch_size", "ETL_EXPORT_BATCH_SIZE", 1000},
	{"export.row_group_size", "ETL_EXPORT_ROW_GROUP_SIZE", 10000},

	{"s3.region", "AWS_REGION", ""},
	{"s3.profile", "AWS_PROFILE", ""},
	{"s3.endpoint", "S3_ENDPOINT", ""},
	{"s3.access_key_id", "S3_ACCESS_KEY_ID", ""},
	{"s3.secret_access_key", "S3_SECRET_ACCESS_KEY", ""},
	{"s3.force_path_style", "S3_FORCE_PATH_STYLE", false},

	{"logging.level", "LOG_LEVEL", "info"},
	{"logging.format", "LOG_FORMAT", "console"},
}

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
func Load() (*Config, error) {
	return LoadFrom(viper.New())
}

// LoadFrom populates a Config using v. Values already set on v (for example with
// v.Set in tests) take precedence over the environment.
func LoadFrom(v *viper.Viper) (*Config, error) {
	for _, b := range bindings {
		v.SetDefault(b.key, b.def)
		if err := v.BindEnv(b.key, b.env); err != nil {
			return nil, fmt.Errorf("config bind %s: %w", b.env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	if c.Pipeline.PreviewRows < 0 {
		errs = append(errs, fmt.Sprintf("ETL_PREVIEW_ROWS (%d) must be non-negative", c.Pipeline.PreviewRows))
	}

	validPolicies := map[string]bool{"zero": true, "null": true, "reject": true}
	if !validPolicies[strings.ToLower(c.Pipeline.BlankPolicy)] {
		errs = append(errs, fmt.Sprintf("ETL_BLANK_POLICY (%q) must be one of: zero, null, reject", c.Pipeline.BlankPolicy))
	}

	if c.Pipeline.Load && !c.Pipeline.Stage {
		errs = append(errs, "ETL_LOAD requires ETL_STAGE; only the staged table is loaded")
	}
	if c.Pipeline.Load && strings.TrimSpace(c.Load.Table) == "" {
		errs = append(errs, "ETL_LOAD_TABLE is required when ETL_LOAD is true")
	}

	validFormats := map[string]bool{"": true, "parquet": true, "csv": true, "jsonl": true}
	if !validFormats[strings.ToLower(c.Export.Format)] {
		errs = append(errs, fmt.Sprintf("ETL_EXPORT_FORMAT (%q) must be one of: parquet, csv, jsonl", c.Export.Format))
	}

	if _, err := Delimiter(c.Pipeline.Delimiter); err != nil {
		errs = append(errs, fmt.Sprintf("ETL_CSV_DELIMITER: %v", err))
	}
	if _, err := Delimiter(c.Export.Delimiter); err != nil {
		errs = append(errs, fmt.Sprintf("ETL_EXPORT_DELIMITER: %v", err))
	}
	if c.Export.BatchSize <= 0 {
		errs = append(errs, fmt.Sprintf("ETL_EXPORT_BATCH_SIZE (%d) must be positive", c.Export.BatchSize))
	}
	if c.Export.RowGroupSize <= 0 {
		errs = append(errs, fmt.Sprintf("ETL_EXPORT_ROW_GROUP_SIZE (%d) must be positive", c.Export.RowGroupSize))
	}
	if c.Load.Timeout <= 0 {
		errs = append(errs, "ETL_LOAD_TIMEOUT must be positive")
	}

	if c.Database.ConnectTimeout <= 0 {
		errs = append(errs, "DB_CONNECT_TIMEOUT must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validLogFormats := map[string]bool{"console": true, "json": true}
	if !validLogFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: console, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Delimiter returns the single field separator in s. It rejects empty and
// multi-character values and characters encoding/csv cannot use as a separator.
func Delimiter(s string) (rune, error) {
	runes := []rune(s)
	if len(runes) != 1 {
		return 0, fmt.Errorf("delimiter %q must be a single character", s)
	}
	r := runes[0]
	if r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, fmt.Errorf("delimiter %q is not allowed", s)
	}
	return r, nil
}

// String returns a safe string representation of the config for logging.
// The database password is masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Database: {Host: %q, Port: %q, Name: %q, User: %q, Password: [MASKED]}, ",
		c.Database.Host, c.Database.Port, c.Database.Name, c.Database.User))
	b.WriteString(fmt.Sprintf("Pipeline: {ProjectRoot: %q, SourcePath: %q, Stage: %v, Load: %v, BlankPolicy: %q}, ",
		c.Pipeline.ProjectRoot, c.Pipeline.SourcePath, c.Pipeline.Stage, c.Pipeline.Load, c.Pipeline.BlankPolicy))
	b.WriteString(fmt.Sprintf("Export: {Format: %q}, ", c.Export.Format))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
