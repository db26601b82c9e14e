package store

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write would violate a unique constraint.
	ErrConflict = errors.New("conflict")

	// ErrNoRow is returned when an insert completed without returning a row.
	ErrNoRow = errors.New("insert returned no row")
)

const pqUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	// sqlite reports constraint failures only through the message.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
