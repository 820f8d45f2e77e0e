package sqlite

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
	_, err := s.pool.DB().ExecContext(ctx, `
		INSERT INTO users (user_id, display_name, password_hash, is_admin, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		normalizeUserID(user.ID),
		user.DisplayName,
		user.PasswordHash,
		user.IsAdmin,
		formatTime(user.CreatedAt),
	)
	return s.mapper.MapError(err)
}

// GetUser loads an account by id.
func (s *Storage) GetUser(ctx context.Context, id string) (persistence.User, error) {
	var (
		user    persistence.User
		created string
	)
	err := s.pool.DB().QueryRowContext(ctx, `
		SELECT user_id, display_name, password_hash, is_admin, created_at
		FROM users
		WHERE user_id = ?`, normalizeUserID(id)).
		Scan(&user.ID, &user.DisplayName, &user.PasswordHash, &user.IsAdmin, &created)
	if err != nil {
		return persistence.User{}, s.mapper.MapError(err)
	}
	if user.CreatedAt, err = parseTime(created); err != nil {
		return persistence.User{}, err
	}
	return user, nil
}

func normalizeUserID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
