package postgres

import (
	"context"
	"strings"

	"github.com/example/desk-booking/internal/persistence"
)

// CreateUser inserts a new account. User ids are stored lower-cased.
func (s *Storage) CreateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" || user.PasswordHash == "" {
		return persistence.ErrConstraintViolation
	}
	row := userRow{
		UserID:       normalizeUserID(user.ID),
		DisplayName:  user.DisplayName,
		PasswordHash: user.PasswordHash,
		IsAdmin:      user.IsAdmin,
		CreatedAt:    user.CreatedAt.UTC(),
	}
	return mapError(s.db.WithContext(ctx).Create(&row).Error)
}

// GetUser loads an account by id.
func (s *Storage) GetUser(ctx context.Context, id string) (persistence.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).Where("user_id = ?", normalizeUserID(id)).First(&row).Error; err != nil {
		return persistence.User{}, mapError(err)
	}
	return row.toDomain(), nil
}

func normalizeUserID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
