package store

import (
	"database/sql"
	"errors"
	"fmt"

	"shop-service/internal/apperr"

	"github.com/lib/pq"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
	pqNumericOutOfRange   = "22003"
)

// wrap classifies a driver error. sql.ErrNoRows becomes NotFound with the
// given description; constraint violations and out of range numbers become
// Validation errors.
func wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	what := fmt.Sprintf(format, args...)

	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("%s not found", what)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return apperr.Validation("%s: %s already exists", what, constraintSubject(pqErr))
		case pqForeignKeyViolation:
			return apperr.Validation("%s: referenced row does not exist", what)
		case pqCheckViolation:
			return apperr.Validation("%s: value violates %s", what, pqErr.Constraint)
		case pqNumericOutOfRange:
			return apperr.Validation("%s: numeric value out of range", what)
		}
	}

	return apperr.Persistence(err, what)
}

func constraintSubject(err *pq.Error) string {
	if err.Column != "" {
		return err.Column
	}
	if err.Constraint != "" {
		return err.Constraint
	}
	return "value"
}

// expectAffected turns a zero-row UPDATE or DELETE into NotFound.
func expectAffected(res sql.Result, format string, args ...interface{}) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Persistence(err, fmt.Sprintf(format, args...))
	}
	if n == 0 {
		return apperr.NotFound("%s not found", fmt.Sprintf(format, args...))
	}
	return nil
}
