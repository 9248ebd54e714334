package postgres

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"

	ierr "github.com/stackbill/stackbill/internal/errors"
)

const pqUniqueViolation = "23505"

// isUniqueViolation reports whether err is a postgres unique constraint
// failure. Repositories translate it to ErrAlreadyExists so services can
// treat duplicate inserts as the idempotency signal they are.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// wrapGetErr maps a single-row query error to the domain error classes.
func wrapGetErr(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ierr.WithError(err).
			WithHintf("%s not found", what).
			Mark(ierr.ErrNotFound)
	}
	return ierr.WithError(err).
		WithHintf("Failed to get %s", what).
		Mark(ierr.ErrDatabase)
}

// wrapExecErr maps a write error, translating unique violations.
func wrapExecErr(err error, what string) error {
	if isUniqueViolation(err) {
		return ierr.WithError(err).
			WithHintf("%s already exists", what).
			Mark(ierr.ErrAlreadyExists)
	}
	return ierr.WithError(err).
		WithHintf("Failed to write %s", what).
		Mark(ierr.ErrDatabase)
}

func wrapListErr(err error, what string) error {
	return ierr.WithError(err).
		WithHintf("Failed to list %s", what).
		Mark(ierr.ErrDatabase)
}
