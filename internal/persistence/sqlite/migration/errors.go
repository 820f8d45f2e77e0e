package migration

import (
	"errors"
	"fmt"
)

var (
	// ErrMigrationFailed indicates that a migration execution failed.
	ErrMigrationFailed = errors.New("migration execution failed")
	// ErrInvalidMigrationFile indicates that a migration file is malformed.
	ErrInvalidMigrationFile = errors.New("invalid migration file format")
	// ErrDuplicateVersion indicates that two files share a version.
	ErrDuplicateVersion = errors.New("duplicate migration version")
	// ErrChecksumMismatch indicates that an applied migration was edited afterwards.
	ErrChecksumMismatch = errors.New("applied migration checksum mismatch")
)

// MigrationError wraps migration failures with the offending file.
type MigrationError struct {
	Version   string
	FilePath  string
	Operation string
	Err       error
}

func (e *MigrationError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("migration %s (%s): %s: %v", e.Version, e.FilePath, e.Operation, e.Err)
	}
	return fmt.Sprintf("migration error (%s): %s: %v", e.FilePath, e.Operation, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

// NewMigrationError creates a new MigrationError with context.
func NewMigrationError(version, filePath, operation string, err error) *MigrationError {
	return &MigrationError{Version: version, FilePath: filePath, Operation: operation, Err: err}
}

// DatabaseError wraps database failures raised while migrating.
type DatabaseError struct {
	Version   string
	Query     string
	Operation string
	Err       error
}

func (e *DatabaseError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("database error in migration %s during %s: %v", e.Version, e.Operation, e.Err)
	}
	return fmt.Sprintf("database error during %s: %v", e.Operation, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// NewDatabaseError creates a new DatabaseError.
func NewDatabaseError(version, query, operation string, err error) *DatabaseError {
	return &DatabaseError{Version: version, Query: query, Operation: operation, Err: err}
}
