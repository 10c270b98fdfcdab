package mysql

import (
	"database/sql"
	"errors"
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/koustreak/drivebox/internal/errs"
)

// MySQL error numbers
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errAccessDenied    = 1045
	errUnknownDatabase = 1049
	errBadFieldError   = 1054
	errNoSuchTable     = 1146
)

// mapError converts a MySQL driver error into a *errs.Error.
func mapError(err error, op string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, op, "user not found", err)
	}

	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case errAccessDenied, errUnknownDatabase:
			return errs.Wrap(errs.ErrKindStorageFailed, op, fmt.Sprintf("connection error: %s", mysqlErr.Message), err)
		case errNoSuchTable, errBadFieldError:
			return errs.Wrap(errs.ErrKindStorageFailed, op, fmt.Sprintf("users table is missing or malformed: %s", mysqlErr.Message), err)
		}
	}

	return errs.Wrap(errs.ErrKindStorageFailed, op, "account query failed", err)
}
