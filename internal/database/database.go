// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

// Package database is the DuckDB implementation of store.Store and
// store.CatalogWriter.
//
// Map and slice fields (event context, preference weights, algorithm
// hyperparameters) are stored as JSON text so the schema needs no DuckDB
// extensions. Timestamps are stored in UTC with microsecond precision.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/shelfwise/internal/config"
	"github.com/tomtom215/shelfwise/internal/logging"
	"github.com/tomtom215/shelfwise/internal/store"
)

// DB wraps a DuckDB connection pool.
type DB struct {
	conn *sql.DB
	cfg  *config.StoreConfig

	maxConflictRetries int
	conflictDelay      time.Duration
}

// New opens (creating if needed) the DuckDB database at cfg.Path and
// applies the schema. ":memory:" yields a private in-memory database.
func New(cfg *config.StoreConfig) (*DB, error) {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "1GB"
	}

	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
	}

	dsn := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, threads, maxMemory)
	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{
		conn:               conn,
		cfg:                cfg,
		maxConflictRetries: 3,
		conflictDelay:      20 * time.Millisecond,
	}
	db.configureConnectionPool()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := db.createTables(ctx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Int("threads", threads).Msg("DuckDB store opened")
	return db, nil
}

func (db *DB) configureConnectionPool() {
	db.conn.SetMaxOpenConns(runtime.NumCPU())
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// Conn exposes the pool for ad-hoc queries in tests and tooling.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// Close checkpoints file-backed databases and closes the pool.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	if db.cfg.Path != ":memory:" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
			logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
		}
		cancel()
	}
	return db.conn.Close()
}

// isTransactionConflict reports DuckDB optimistic concurrency failures,
// which happen when two writers touch the same row.
func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Transaction conflict") ||
		strings.Contains(msg, "Conflict on update")
}

// execWithRetry runs fn, retrying DuckDB write conflicts with a short
// linear backoff.
func (db *DB) execWithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= db.maxConflictRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(db.conflictDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err = fn(ctx); !isTransactionConflict(err) {
			return err
		}
	}
	return err
}

var (
	_ store.Store         = (*DB)(nil)
	_ store.CatalogWriter = (*DB)(nil)
)
