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


// Package database provides the warehouse connection for TelcoETL.
//
// A Handle wraps a database/sql pool capped at a single connection, opened on
// demand with lib/pq and closed by whoever opened it. Check is the health probe:
// it never returns an error, only a HealthResult that carries the reason.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/aaronlmathis/telcoetl/config"
	"github.com/aaronlmathis/telcoetl/core"
)

const driverName = "postgres"

// BuildConnectionString assembles a PostgreSQL URL from cfg, substituting the
// package defaults for empty fields. Values are not escaped or validated, so a
// malformed host or password yields a malformed string rather than an error.
func BuildConnectionString(cfg config.DatabaseConfig) string {
	return buildURL(cfg, passwordOrDefault(cfg.Password))
}

// maskedConnectionString is BuildConnectionString with the password hidden.
func maskedConnectionString(cfg config.DatabaseConfig) string {
	password := passwordOrDefault(cfg.Password)
	if password != "" {
		password = "xxxxx"
	}
	return buildURL(cfg, password)
}

func buildURL(cfg config.DatabaseConfig, password string) string {
	host := orDefault(cfg.Host, config.DefaultDBHost)
	port := orDefault(cfg.Port, config.DefaultDBPort)
	name := orDefault(cfg.Name, config.DefaultDBName)
	user := orDefault(cfg.User, config.DefaultDBUser)

	dsn := fmt.Sprintf("postgresql://%s:%s@%s:%s/%s", user, password, host, port, name)
	if cfg.SSLMode != "" {
		dsn += "?sslmode=" + url.QueryEscape(cfg.SSLMode)
	}
	return dsn
}

func passwordOrDefault(password string) string {
	return orDefault(password, config.DefaultDBPassword)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// Handle wraps a live warehouse connection.
type Handle struct {
	db     *sql.DB
	target string
	log    *zap.Logger
}

// Open creates a Handle and verifies it with a ping. Any failure, including a
// URL the driver rejects, is returned as a core.KindConnection error.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*Handle, error) {
	if log == nil {
		log = zap.NewNop()
	}
	target := maskedConnectionString(cfg)
	log = log.With(zap.String("target", target))

	db, err := sql.Open(driverName, BuildConnectionString(cfg))
	if err != nil {
		log.Error("failed to create database handle", zap.Error(err))
		return nil, core.NewError(core.KindConnection, "open", err)
	}

	// One connection, not pooled.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := withConnectTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		log.Error("failed to connect to database", zap.Error(err))
		return nil, core.NewError(core.KindConnection, "ping", err)
	}

	log.Info("database connection established")
	return &Handle{db: db, target: target, log: log}, nil
}

// DB exposes the underlying *sql.DB for loaders.
func (h *Handle) DB() *sql.DB {
	return h.db
}

// Target returns the connection string with the password masked.
func (h *Handle) Target() string {
	return h.target
}

// Ping runs a round trip against the server.
func (h *Handle) Ping(ctx context.Context) error {
	var one int
	if err := h.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return core.NewError(core.KindConnection, "select_1", err)
	}
	return nil
}

// Close releases the connection. It is safe to call on a nil Handle.
func (h *Handle) Close() error {
	if h == nil || h.db == nil {
		return nil
	}
	err := h.db.Close()
	h.db = nil
	return err
}

// HealthResult is the outcome of Check.
type HealthResult struct {
	OK      bool
	Target  string
	Latency time.Duration
	Err     error
}

// Healthy reports whether the probe succeeded.
func (r HealthResult) Healthy() bool {
	return r.OK
}

// Check opens a connection, runs SELECT 1 and closes it again. It never returns
// an error; the reason for an unhealthy result is in HealthResult.Err.
func Check(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (result HealthResult) {
	if log == nil {
		log = zap.NewNop()
	}
	start := time.Now()
	result.Target = maskedConnectionString(cfg)

	defer func() {
		if r := recover(); r != nil {
			result.OK = false
			result.Err = core.NewError(core.KindUnexpected, "health_check", fmt.Errorf("panic: %v", r))
		}
		result.Latency = time.Since(start)
		if result.OK {
			log.Info("database connection test successful", zap.Duration("latency", result.Latency))
		} else {
			log.Error("database connection test failed", zap.Error(result.Err))
		}
	}()

	handle, err := Open(ctx, cfg, log)
	if err != nil {
		result.Err = err
		return result
	}
	defer handle.Close()

	probeCtx, cancel := withConnectTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := handle.Ping(probeCtx); err != nil {
		result.Err = err
		return result
	}

	result.OK = true
	return result
}

func withConnectTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
