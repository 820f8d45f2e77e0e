package migration

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"time"
)

// Executor is the database side of the migration process.
type Executor interface {
	InitializeVersionTable(ctx context.Context) error
	Apply(ctx context.Context, m Migration) error
	AppliedMigrations(ctx context.Context) ([]AppliedMigration, error)
}

// Manager applies pending migrations in version order.
type Manager struct {
	scanner  *Scanner
	executor Executor
	fsys     fs.FS
	dir      string
	logger   *slog.Logger
}

// NewManager wires a Manager for the migration files under dir in fsys.
func NewManager(scanner *Scanner, executor Executor, fsys fs.FS, dir string, logger *slog.Logger) *Manager {
	if scanner == nil {
		scanner = NewScanner()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{scanner: scanner, executor: executor, fsys: fsys, dir: dir, logger: logger.With("component", "migration")}
}

// Run applies every pending migration and returns how many were applied.
func (m *Manager) Run(ctx context.Context) (int, error) {
	started := time.Now()
	status, err := m.Status(ctx)
	if err != nil {
		return 0, err
	}
	m.logger.InfoContext(ctx, "schema version",
		"current_version", status.CurrentVersion,
		"pending", len(status.Pending),
	)

	for i, mig := range status.Pending {
		m.logger.InfoContext(ctx, "applying migration",
			"version", mig.Version,
			"description", mig.Description,
			"position", fmt.Sprintf("%d/%d", i+1, len(status.Pending)),
		)
		if err := m.executor.Apply(ctx, mig); err != nil {
			m.logger.ErrorContext(ctx, "migration failed", "version", mig.Version, "error", err)
			return i, NewMigrationError(mig.Version, mig.FilePath, "execute migration", fmt.Errorf("%w: %v", ErrMigrationFailed, err))
		}
	}
	if len(status.Pending) > 0 {
		m.logger.InfoContext(ctx, "migrations applied",
			"count", len(status.Pending),
			"elapsed", time.Since(started).String(),
		)
	}
	return len(status.Pending), nil
}

// Status reports applied and pending migrations. Applied files whose checksum has
// changed since they ran are reported as an error.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, err
	}
	available, err := m.scanner.Scan(m.fsys, m.dir)
	if err != nil {
		return Status{}, err
	}
	applied, err := m.executor.AppliedMigrations(ctx)
	if err != nil {
		return Status{}, err
	}

	appliedByVersion := make(map[string]AppliedMigration, len(applied))
	status := Status{Applied: applied}
	for _, am := range applied {
		appliedByVersion[am.Version] = am
		status.CurrentVersion = am.Version
	}
	for _, mig := range available {
		am, ok := appliedByVersion[mig.Version]
		if !ok {
			status.Pending = append(status.Pending, mig)
			continue
		}
		if am.Checksum != "" && am.Checksum != mig.Checksum {
			return Status{}, NewMigrationError(mig.Version, mig.FilePath, "verify checksum", ErrChecksumMismatch)
		}
	}
	return status, nil
}
