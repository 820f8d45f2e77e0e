package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/desk-booking/internal/persistence"
)

// timeLayout is fixed-width UTC so that stored instants compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", value, err)
	}
	return t, nil
}

// ConnectionPool wraps the database handle with transaction helpers.
type ConnectionPool struct {
	db *sql.DB
}

// NewConnectionPool wraps an opened database.
func NewConnectionPool(db *sql.DB) *ConnectionPool {
	return &ConnectionPool{db: db}
}

// DB returns the underlying database connection.
func (cp *ConnectionPool) DB() *sql.DB {
	return cp.db
}

// Close closes the connection pool.
func (cp *ConnectionPool) Close() error {
	if cp.db != nil {
		return cp.db.Close()
	}
	return nil
}

// TransactionFunc represents a function that executes within a transaction.
type TransactionFunc func(tx *sql.Tx) error

// WithTransaction runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func (cp *ConnectionPool) WithTransaction(ctx context.Context, fn TransactionFunc) (err error) {
	tx, err := cp.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// withSavepoint runs fn under a savepoint. A failure rolls back only the work done
// by fn and is returned so the caller can decide whether to continue.
func withSavepoint(ctx context.Context, tx *sql.Tx, name string, fn TransactionFunc) error {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("%w (rollback to savepoint: %v)", err, rbErr)
		}
		_, _ = tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
		return err
	}
	_, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return err
}

// ErrorMapper maps SQLite errors to persistence layer errors.
type ErrorMapper struct{}

// NewErrorMapper creates a new error mapper.
func NewErrorMapper() *ErrorMapper {
	return &ErrorMapper{}
}

// MapError wraps driver errors with the matching persistence sentinel.
func (em *ErrorMapper) MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}

	msg := err.Error()
	switch {
	case containsAny(msg, "booking overlap"):
		return fmt.Errorf("%w: %v", persistence.ErrOverlap, err)
	case containsAny(msg, "booking is terminal"):
		return fmt.Errorf("%w: %v", persistence.ErrStatusMismatch, err)
	case containsAny(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	case containsAny(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrForeignKeyViolation, err)
	case containsAny(msg, "CHECK constraint failed", "NOT NULL constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	case containsAny(msg, "database is locked", "database table is locked", "SQLITE_BUSY"):
		return fmt.Errorf("%w: %v", persistence.ErrBusy, err)
	}
	return err
}

func containsAny(s string, substrings ...string) bool {
	for _, substr := range substrings {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

// RetryConfig configures retry behavior for busy database operations.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns a retry configuration with sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
	}
}

// RetryHelper retries operations that failed because the database was busy.
type RetryHelper struct {
	config RetryConfig
	mapper *ErrorMapper
}

// NewRetryHelper creates a new retry helper.
func NewRetryHelper(config RetryConfig) *RetryHelper {
	return &RetryHelper{config: config, mapper: NewErrorMapper()}
}

// WithRetry executes fn, retrying with exponential backoff while it reports ErrBusy.
func (rh *RetryHelper) WithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := rh.config.InitialDelay

	for attempt := 0; attempt <= rh.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * rh.config.BackoffFactor)
				if delay > rh.config.MaxDelay {
					delay = rh.config.MaxDelay
				}
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = rh.mapper.MapError(err)
		if !errors.Is(lastErr, persistence.ErrBusy) {
			return lastErr
		}
	}
	return fmt.Errorf("operation failed after %d retries: %w", rh.config.MaxRetries, lastErr)
}
