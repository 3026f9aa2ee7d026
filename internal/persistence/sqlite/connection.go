package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/class-booking/internal/persistence"
)

const defaultBusyTimeout = 5 * time.Second

// withBusyTimeout appends a busy_timeout pragma unless the DSN already sets one.
func withBusyTimeout(dsn string) string {
	if strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)", dsn, sep, defaultBusyTimeout.Milliseconds())
}

// connFunc runs inside an IMMEDIATE transaction on a pinned connection.
type connFunc func(conn *sql.Conn) error

// withImmediateTx takes the database write lock before fn runs, so reads made
// by fn cannot be invalidated by another writer before COMMIT.
func withImmediateTx(ctx context.Context, db *sql.DB, fn connFunc) (err error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("sqlite: acquire connection: %w", err)
	}
	defer conn.Close()

	if err = withRetry(ctx, func() error {
		_, execErr := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		return execErr
	}); err != nil {
		return fmt.Errorf("sqlite: begin immediate: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_, _ = conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK")
			panic(p)
		}
	}()

	if err = fn(conn); err != nil {
		if _, rbErr := conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK"); rbErr != nil {
			return fmt.Errorf("transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}

	if _, err = conn.ExecContext(ctx, "COMMIT"); err != nil {
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK")
		return fmt.Errorf("sqlite: commit: %w", mapError(err))
	}
	return nil
}

// mapError translates driver errors into persistence sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY constraint failed") {
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	}
	return err
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// withRetry retries fn with exponential backoff while SQLite reports contention.
func withRetry(ctx context.Context, fn func() error) error {
	const maxRetries = 5
	delay := 20 * time.Millisecond

	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
		if err = fn(); err == nil || !isBusy(err) {
			return err
		}
	}
	return fmt.Errorf("operation failed after %d retries: %w", maxRetries, err)
}
