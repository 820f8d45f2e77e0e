package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SQLiteExecutor applies migrations and tracks them in schema_migrations.
type SQLiteExecutor struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteExecutor creates a new SQLite migration executor.
func NewSQLiteExecutor(db *sql.DB) *SQLiteExecutor {
	return &SQLiteExecutor{db: db, now: time.Now}
}

// InitializeVersionTable creates the schema_migrations table if it doesn't exist.
func (e *SQLiteExecutor) InitializeVersionTable(ctx context.Context) error {
	const createTableSQL = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL,
			checksum TEXT,
			execution_time_ms INTEGER
		)`
	if _, err := e.db.ExecContext(ctx, createTableSQL); err != nil {
		return NewDatabaseError("", createTableSQL, "create schema_migrations table", err)
	}
	return nil
}

// Apply runs every statement of m and records it, all within one transaction.
func (e *SQLiteExecutor) Apply(ctx context.Context, m Migration) (err error) {
	started := e.now()
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return NewDatabaseError(m.Version, "", "begin transaction", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
			}
		}
	}()

	statements := SplitStatements(m.SQL)
	if len(statements) == 0 {
		return NewMigrationError(m.Version, m.FilePath, "parse SQL", fmt.Errorf("%w: no SQL statements", ErrInvalidMigrationFile))
	}
	for i, stmt := range statements {
		if _, execErr := tx.ExecContext(ctx, stmt); execErr != nil {
			return NewDatabaseError(m.Version, stmt, fmt.Sprintf("execute statement %d", i+1), execErr)
		}
	}

	const insertSQL = `INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms) VALUES (?, ?, ?, ?)`
	elapsed := e.now().Sub(started)
	if _, execErr := tx.ExecContext(ctx, insertSQL, m.Version, e.now().UTC().Format(time.RFC3339), m.Checksum, elapsed.Milliseconds()); execErr != nil {
		return NewDatabaseError(m.Version, insertSQL, "record migration", execErr)
	}
	if commitErr := tx.Commit(); commitErr != nil {
		return NewDatabaseError(m.Version, "", "commit transaction", commitErr)
	}
	return nil
}

// AppliedMigrations returns the recorded migrations ordered by version.
func (e *SQLiteExecutor) AppliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	const querySQL = `
		SELECT version, applied_at, COALESCE(execution_time_ms, 0), COALESCE(checksum, '')
		FROM schema_migrations
		ORDER BY CAST(version AS INTEGER) ASC`
	rows, err := e.db.QueryContext(ctx, querySQL)
	if err != nil {
		return nil, NewDatabaseError("", querySQL, "get applied versions", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			am        AppliedMigration
			appliedAt string
			elapsedMs int64
		)
		if err := rows.Scan(&am.Version, &appliedAt, &elapsedMs, &am.Checksum); err != nil {
			return nil, NewDatabaseError("", querySQL, "scan applied migration", err)
		}
		parsed, err := time.Parse(time.RFC3339, appliedAt)
		if err != nil {
			return nil, NewDatabaseError(am.Version, querySQL, "parse applied_at", err)
		}
		am.AppliedAt = parsed
		am.ExecutionTime = time.Duration(elapsedMs) * time.Millisecond
		applied = append(applied, am)
	}
	if err := rows.Err(); err != nil {
		return nil, NewDatabaseError("", querySQL, "iterate applied migrations", err)
	}
	return applied, nil
}

// SplitStatements breaks a script into executable statements. Comment-only lines are
// dropped and CREATE TRIGGER bodies stay intact until their terminating END;.
func SplitStatements(script string) []string {
	var (
		statements []string
		current    []string
		inTrigger  bool
	)
	flush := func() {
		stmt := strings.TrimSpace(strings.Join(current, "\n"))
		stmt = strings.TrimSpace(strings.TrimSuffix(stmt, ";"))
		if stmt != "" {
			statements = append(statements, stmt)
		}
		current = current[:0]
	}

	for _, raw := range strings.Split(script, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		upper := strings.ToUpper(line)
		if len(current) == 0 && strings.HasPrefix(upper, "CREATE TRIGGER") {
			inTrigger = true
		}
		current = append(current, line)

		if inTrigger {
			if upper == "END;" || upper == "END" {
				inTrigger = false
				flush()
			}
			continue
		}
		if strings.HasSuffix(line, ";") {
			flush()
		}
	}
	flush()
	return statements
}
