package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/desk-booking/internal/persistence"
)

var _ persistence.Store = (*Storage)(nil)

// Config describes the PostgreSQL connection.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogQueries      bool
}

// DefaultConfig returns pool settings suited to a single service process.
func DefaultConfig(dsn string) Config {
	return Config{
		DSN:             dsn,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	}
}

// Validate reports configuration mistakes before a connection is attempted.
func (c Config) Validate() error {
	if c.DSN == "" {
		return errors.New("postgres DSN is required")
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		return errors.New("connection pool sizes must not be negative")
	}
	return nil
}

// Storage implements persistence.Store on PostgreSQL.
type Storage struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to PostgreSQL and verifies the connection. Call Migrate before use.
func Open(ctx context.Context, config Config, log *slog.Logger) (*Storage, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	gormLogger := logger.Default.LogMode(logger.Silent)
	if config.LogQueries {
		gormLogger = logger.Default.LogMode(logger.Info)
	}
	db, err := gorm.Open(postgres.Open(config.DSN), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Storage{db: db, logger: log.With("component", "postgres")}, nil
}

// Migrate creates the schema. Every statement is idempotent.
func (s *Storage) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, stmt := range schemaStatements {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("schema statement %d: %w", i+1, err)
			}
		}
		return nil
	})
}

// Ping verifies that the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
