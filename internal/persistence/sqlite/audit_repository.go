package sqlite

import (
	"context"
	"database/sql"

	"github.com/example/desk-booking/internal/persistence"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// RecordAudit appends an entry to the audit log outside any booking transaction.
func (s *Storage) RecordAudit(ctx context.Context, entry persistence.AuditEntry) error {
	return s.mapper.MapError(insertAudit(ctx, s.pool.DB(), entry))
}

// ListAudit returns the most recent audit entries, newest first.
func (s *Storage) ListAudit(ctx context.Context, limit int) ([]persistence.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.DB().QueryContext(ctx, `
		SELECT log_id, user_id, outcome, component, description, created_at
		FROM logs
		ORDER BY log_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	defer rows.Close()

	var entries []persistence.AuditEntry
	for rows.Next() {
		var (
			entry   persistence.AuditEntry
			created string
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Outcome, &entry.Component, &entry.Description, &created); err != nil {
			return nil, s.mapper.MapError(err)
		}
		if entry.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, s.mapper.MapError(rows.Err())
}

func insertAudit(ctx context.Context, db execer, entry persistence.AuditEntry) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO logs (user_id, outcome, component, description, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		entry.UserID, entry.Outcome, entry.Component, entry.Description, formatTime(entry.CreatedAt))
	return err
}
