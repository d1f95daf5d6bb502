package dbopen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// busyRetries bounds the retry loop; backoff grows 100/200/300ms.
const busyRetries = 3

// IsBusy reports whether err is an SQLite BUSY condition, matching
// SQLITE_BUSY and the driver's locked-database message variants.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// RunTx runs fn inside a transaction, retrying the whole transaction on
// SQLITE_BUSY. fn must be safe to re-execute.
func RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	for attempt := range busyRetries {
		err := txOnce(ctx, db, fn)
		if err == nil {
			return nil
		}
		if !IsBusy(err) || attempt == busyRetries-1 {
			return err
		}
		if err := backoff(ctx, attempt); err != nil {
			return fmt.Errorf("dbopen: context cancelled during retry: %w", err)
		}
	}
	return fmt.Errorf("dbopen: RunTx: max retries exceeded")
}

func txOnce(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dbopen: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dbopen: commit: %w", err)
	}
	return nil
}

// Exec runs a single statement with the same BUSY retry policy as RunTx.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	for attempt := range busyRetries {
		result, err := db.ExecContext(ctx, query, args...)
		if err == nil {
			return result, nil
		}
		if !IsBusy(err) || attempt == busyRetries-1 {
			return nil, err
		}
		if err := backoff(ctx, attempt); err != nil {
			return nil, fmt.Errorf("dbopen: context cancelled during retry: %w", err)
		}
	}
	return nil, fmt.Errorf("dbopen: Exec: max retries exceeded")
}

func backoff(ctx context.Context, attempt int) error {
	t := time.NewTimer(time.Duration(100*(attempt+1)) * time.Millisecond)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
