package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/koustreak/drivebox/internal/errs"
)

// PostgreSQL SQLSTATE error codes
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgErrConnectionFailure = "08006"
	pgErrUndefinedTable    = "42P01"
	pgErrUndefinedColumn   = "42703"
)

// mapError converts a pgx error into a *errs.Error.
func mapError(err error, op string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, op, "user not found", err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrConnectionFailure:
			return errs.Wrap(errs.ErrKindStorageFailed, op, "database connection failed", err)
		case pgErrUndefinedTable, pgErrUndefinedColumn:
			return errs.Wrap(errs.ErrKindStorageFailed, op, fmt.Sprintf("users table is missing or malformed: %s", pgErr.Message), err)
		}
	}

	return errs.Wrap(errs.ErrKindStorageFailed, op, "account query failed", err)
}
