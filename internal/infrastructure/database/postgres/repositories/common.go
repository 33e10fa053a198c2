// Package repositories implements the document store over database/sql.
package repositories

import (
	"context"
	"database/sql"
	"time"
)

// queryExecutor abstracts sql.DB and sql.Tx
type queryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// scanner abstracts sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// StoreMetrics observes document store latency per operation.
type StoreMetrics interface {
	ObserveStore(operation string, d time.Duration)
}

type noopStoreMetrics struct{}

func (noopStoreMetrics) ObserveStore(string, time.Duration) {}
