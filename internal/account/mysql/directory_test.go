package mysql

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/drivebox/internal/account"
	"github.com/koustreak/drivebox/internal/errs"
)

func setupDirectoryTest(t *testing.T) (*Directory, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db), mock
}

func TestLookupID(t *testing.T) {
	dir, mock := setupDirectoryTest(t)

	mock.ExpectQuery(regexp.QuoteMeta(lookupQuery)).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	id, err := dir.LookupID(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLookupID_NotFound(t *testing.T) {
	dir, mock := setupDirectoryTest(t)

	mock.ExpectQuery(regexp.QuoteMeta(lookupQuery)).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := dir.LookupID(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLookupID_DriverErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"missing table", &gomysql.MySQLError{Number: errNoSuchTable, Message: "Table 'drivebox.users' doesn't exist"}, "users table"},
		{"access denied", &gomysql.MySQLError{Number: errAccessDenied, Message: "Access denied"}, "connection error"},
		{"other", sql.ErrConnDone, "account query failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, mock := setupDirectoryTest(t)
			mock.ExpectQuery(regexp.QuoteMeta(lookupQuery)).WillReturnError(tt.err)

			_, err := dir.LookupID(context.Background(), "alice")
			require.Error(t, err)
			assert.True(t, errs.IsStorageFailed(err))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestPing(t *testing.T) {
	dir, mock := setupDirectoryTest(t)

	mock.ExpectPing()
	assert.NoError(t, dir.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(sql.ErrConnDone)
	assert.True(t, errs.IsStorageFailed(dir.Ping(context.Background())))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigurePool(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	configurePool(db, &account.Config{MaxConns: 4, MaxConnLifetime: time.Minute})
	assert.Equal(t, 4, db.Stats().MaxOpenConnections)
}

func TestNew_InvalidDSN(t *testing.T) {
	_, err := New(context.Background(), &account.Config{DSN: "not a dsn"})
	require.Error(t, err)
	assert.True(t, errs.IsStorageFailed(err))
}
