package postgres

import (
	"context"

	"github.com/example/desk-booking/internal/persistence"
)

// RecordAudit appends an entry to the audit log outside any booking transaction.
func (s *Storage) RecordAudit(ctx context.Context, entry persistence.AuditEntry) error {
	row := newLogRow(entry)
	return mapError(s.db.WithContext(ctx).Create(&row).Error)
}

// ListAudit returns the most recent audit entries, newest first.
func (s *Storage) ListAudit(ctx context.Context, limit int) ([]persistence.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []logRow
	if err := s.db.WithContext(ctx).Order("log_id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, mapError(err)
	}
	entries := make([]persistence.AuditEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.toDomain())
	}
	return entries, nil
}
