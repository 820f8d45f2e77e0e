package migration

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteConfig holds SQLite-specific database configuration.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string
	// BusyTimeout sets how long a connection waits for a competing writer.
	BusyTimeout time.Duration
	// EnableForeignKeys enables foreign key constraint checking.
	EnableForeignKeys bool
	// JournalMode sets the SQLite journal mode (WAL, DELETE, MEMORY, ...).
	JournalMode string
	// Synchronous sets the synchronous mode (FULL, NORMAL, OFF).
	Synchronous string
	// ImmediateTransactions makes every BEGIN take the write lock up front so that
	// read-then-write transactions serialize instead of failing on upgrade.
	ImmediateTransactions bool
	MaxOpenConns          int
	MaxIdleConns          int
	ConnMaxLifetime       time.Duration
}

var (
	validJournalModes = map[string]bool{"DELETE": true, "TRUNCATE": true, "PERSIST": true, "MEMORY": true, "WAL": true, "OFF": true}
	validSyncModes    = map[string]bool{"OFF": true, "NORMAL": true, "FULL": true, "EXTRA": true}
)

// Validate checks the configuration for unsupported values.
func (c SQLiteConfig) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("BusyTimeout cannot be negative")
	}
	if c.JournalMode != "" && !validJournalModes[strings.ToUpper(c.JournalMode)] {
		return fmt.Errorf("invalid journal mode: %s", c.JournalMode)
	}
	if c.Synchronous != "" && !validSyncModes[strings.ToUpper(c.Synchronous)] {
		return fmt.Errorf("invalid synchronous mode: %s", c.Synchronous)
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 || c.ConnMaxLifetime < 0 {
		return fmt.Errorf("connection pool settings cannot be negative")
	}
	return nil
}

// DataSourceName renders the modernc.org/sqlite DSN. PRAGMAs are passed as _pragma
// parameters so that every pooled connection receives them, not only the first.
func (c SQLiteConfig) DataSourceName() string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout.Milliseconds()))
	if c.EnableForeignKeys {
		q.Add("_pragma", "foreign_keys(1)")
	}
	if c.JournalMode != "" {
		q.Add("_pragma", fmt.Sprintf("journal_mode(%s)", strings.ToUpper(c.JournalMode)))
	}
	if c.Synchronous != "" {
		q.Add("_pragma", fmt.Sprintf("synchronous(%s)", strings.ToUpper(c.Synchronous)))
	}
	if c.ImmediateTransactions {
		q.Set("_txlock", "immediate")
	}
	return "file:" + c.Path + "?" + q.Encode()
}

// Open validates the configuration, creates the parent directory, and returns a
// configured connection pool.
func Open(config SQLiteConfig) (*sql.DB, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid SQLite configuration: %w", err)
	}
	if dir := filepath.Dir(config.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", config.DataSourceName())
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	return db, nil
}

// DefaultSQLiteConfig returns the production configuration for databasePath.
func DefaultSQLiteConfig(databasePath string) SQLiteConfig {
	return SQLiteConfig{
		Path:                  databasePath,
		BusyTimeout:           30 * time.Second,
		EnableForeignKeys:     true,
		JournalMode:           "WAL",
		Synchronous:           "NORMAL",
		ImmediateTransactions: true,
		MaxOpenConns:          8,
		MaxIdleConns:          4,
		ConnMaxLifetime:       5 * time.Minute,
	}
}

// TempFileTestSQLiteConfig returns a configuration for file-backed tests.
func TempFileTestSQLiteConfig(tempFilePath string) SQLiteConfig {
	return SQLiteConfig{
		Path:                  tempFilePath,
		BusyTimeout:           5 * time.Second,
		EnableForeignKeys:     true,
		JournalMode:           "WAL",
		Synchronous:           "OFF",
		ImmediateTransactions: true,
		MaxOpenConns:          4,
		MaxIdleConns:          2,
		ConnMaxLifetime:       time.Minute,
	}
}
