package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/example/desk-booking/internal/persistence"
	"github.com/example/desk-booking/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var _ persistence.Store = (*Storage)(nil)

// Storage implements persistence.Store on top of SQLite.
type Storage struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
	logger *slog.Logger
}

// Open connects to the database described by config. Call Migrate before use.
func Open(config migration.SQLiteConfig, logger *slog.Logger) (*Storage, error) {
	db, err := migration.Open(config)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{
		pool:   NewConnectionPool(db),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
		logger: logger.With("component", "sqlite"),
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := migration.NewManager(
		migration.NewScanner(),
		migration.NewSQLiteExecutor(s.pool.DB()),
		migrationFiles,
		"migrations",
		s.logger,
	)
	if _, err := manager.Run(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Ping verifies that the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.DB().PingContext(ctx)
}

// Close releases the underlying connections.
func (s *Storage) Close() error {
	return s.pool.Close()
}
