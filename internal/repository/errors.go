package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors raised by the repository layer. Every storage error is
// normalized into one of these before it crosses the repository boundary.
var (
	// ErrNotFound indicates no row matched an operation requiring existence.
	ErrNotFound = errors.New("repository: record not found")
	// ErrConflict indicates a uniqueness or foreign key violation.
	ErrConflict = errors.New("repository: conflict")
	// ErrRepository indicates any other storage failure, including malformed
	// filter attributes.
	ErrRepository = errors.New("repository: storage failure")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// NormalizeError maps a raw driver error onto the repository taxonomy.
// Entity repositories extending the generic engine with hand-written
// statements use it so no raw storage error escapes the layer.
func NormalizeError(err error) error {
	return normalizeError(err)
}

// normalizeError maps a raw driver error onto the repository taxonomy.
// PostgreSQL violations carry SQLSTATE codes; the SQLite driver used in
// tests only exposes constraint failures through the error message.
func normalizeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgForeignKeyViolation:
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return fmt.Errorf("%w: %v", ErrRepository, err)
	}

	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "FOREIGN KEY constraint failed") {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}

	return fmt.Errorf("%w: %v", ErrRepository, err)
}
