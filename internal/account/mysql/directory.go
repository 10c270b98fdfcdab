// Package mysql provides a MySQL account.Directory backed by database/sql and
// go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/koustreak/drivebox/internal/account"
	"github.com/koustreak/drivebox/internal/errs"
)

const lookupQuery = `SELECT id FROM users WHERE username = ?`

const (
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 2
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 10 * time.Minute
	defaultConnectTimeout  = 5 * time.Second
)

// Directory implements account.Directory over MySQL.
// It is safe for concurrent use by multiple goroutines.
type Directory struct {
	db *sql.DB
}

var _ account.Directory = (*Directory)(nil)

// New opens a MySQL connection pool using cfg and returns a Directory.
// It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *account.Config) (*Directory, error) {
	mc, err := gomysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindStorageFailed, "connect", "invalid mysql DSN", err)
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	mc.Timeout = timeout

	connector, err := gomysql.NewConnector(mc)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindStorageFailed, "connect", "invalid mysql config", err)
	}

	db := sql.OpenDB(connector)
	configurePool(db, cfg)

	d := NewWithDB(db)

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := d.Ping(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// NewWithDB wraps an already-open *sql.DB.
func NewWithDB(db *sql.DB) *Directory {
	return &Directory{db: db}
}

func configurePool(db *sql.DB, cfg *account.Config) {
	maxOpen := int(cfg.MaxConns)
	if maxOpen == 0 {
		maxOpen = defaultMaxOpenConns
	}
	maxIdle := int(cfg.MinConns)
	if maxIdle == 0 {
		maxIdle = defaultMaxIdleConns
	}
	lifetime := cfg.MaxConnLifetime
	if lifetime == 0 {
		lifetime = defaultConnMaxLifetime
	}
	idle := cfg.MaxConnIdleTime
	if idle == 0 {
		idle = defaultConnMaxIdleTime
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)
	db.SetConnMaxIdleTime(idle)
}

// --- account.Directory implementation ---

func (d *Directory) LookupID(ctx context.Context, username string) (int64, error) {
	var id int64
	if err := d.db.QueryRowContext(ctx, lookupQuery, username).Scan(&id); err != nil {
		return 0, mapError(err, "lookupUser")
	}
	return id, nil
}

func (d *Directory) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return mapError(err, "ping")
	}
	return nil
}

func (d *Directory) Close() error {
	return d.db.Close()
}
