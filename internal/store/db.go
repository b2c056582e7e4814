// Package store is the notification engine's Postgres-backed persistence
// layer: connection pooling, a transaction helper, and repositories for
// every entity in spec §3. Grounded on the teacher's internal/database/db.go
// and services/api/internal/notification/repository.go.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/meetsmatch/notifyengine/internal/telemetry"
)

// DB wraps *sql.DB with the engine's pool tuning and transaction helper.
type DB struct {
	*sql.DB
}

// Connect opens a pooled Postgres connection using dsn, following the
// teacher's connection-pool tuning (25 open / 5 idle / 5m lifetime).
func Connect(ctx context.Context, dsn string) (*DB, error) {
	logger := telemetry.ForComponent(ctx, "store")
	logger.Info("establishing database connection")

	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("database connection established")
	return &DB{sqlDB}, nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

func (db *DB) Health(ctx context.Context) error {
	return db.PingContext(ctx)
}

// WithTransaction runs fn inside a transaction, rolling back on error or
// panic and committing otherwise. Mirrors the teacher's panic-safe helper.
func (db *DB) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	logger := telemetry.ForComponent(ctx, "store")

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			logger.WithField("panic", p).Error("transaction panicked, rolling back")
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	return fn(tx)
}
