package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/example/desk-booking/internal/persistence"
)

// SQLSTATE codes classified by mapError.
const (
	codeNotNullViolation    = "23502"
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
	codeCheckViolation      = "23514"
	codeExclusionViolation  = "23P01"
	codeSerializationFail   = "40001"
	codeDeadlockDetected    = "40P01"
	codeLockNotAvailable    = "55P03"
	codeRaiseException      = "P0001"
)

// mapError wraps gorm and driver errors with the matching persistence sentinel.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return persistence.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeExclusionViolation:
		return fmt.Errorf("%w: %s", persistence.ErrOverlap, pgErr.Message)
	case codeUniqueViolation:
		return fmt.Errorf("%w: %s", persistence.ErrDuplicate, pgErr.Message)
	case codeForeignKeyViolation:
		return fmt.Errorf("%w: %s", persistence.ErrForeignKeyViolation, pgErr.Message)
	case codeCheckViolation, codeNotNullViolation:
		return fmt.Errorf("%w: %s", persistence.ErrConstraintViolation, pgErr.Message)
	case codeSerializationFail, codeDeadlockDetected, codeLockNotAvailable:
		return fmt.Errorf("%w: %s", persistence.ErrBusy, pgErr.Message)
	case codeRaiseException:
		if strings.Contains(pgErr.Message, "booking is terminal") {
			return fmt.Errorf("%w: %s", persistence.ErrStatusMismatch, pgErr.Message)
		}
	}
	return err
}
