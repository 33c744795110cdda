package postgres

import (
	"context"
	"errors"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"sitetrack/internal/core/apperror"
)

// PostgreSQL SQLSTATE codes mapped to application errors.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgSerialization       = "40001"
	pgDeadlock            = "40P01"
	pgQueryCanceled       = "57014"
)

// MapError converts a driver error into an AppError. AppErrors pass
// through unchanged; anything unrecognized becomes a persistence error.
func MapError(err error, entity string) error {
	if err == nil {
		return nil
	}
	if apperror.IsAppError(err) {
		return err
	}
	if pgxscan.NotFound(err) {
		return apperror.NewNotFound(entity, "")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return apperror.NewDuplicate(entity, pgErr.ConstraintName, "").WithCause(err)
		case pgForeignKeyViolation:
			return apperror.NewConflict("referenced record is missing or still in use").
				WithDetail("entity", entity).
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		case pgCheckViolation:
			return apperror.NewValidation("value violates a storage constraint").
				WithDetail("entity", entity).
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		case pgSerialization, pgDeadlock:
			return apperror.NewConcurrentModification(entity, "").WithCause(err)
		case pgQueryCanceled:
			return apperror.NewPersistence(err).WithDetail("reason", "statement timeout")
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperror.NewPersistence(err).WithDetail("reason", "timeout")
	}
	return apperror.NewPersistence(err)
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
