// Package postgres provides a PostgreSQL account.Directory backed by pgxpool.
//
// It expects a users table with at least:
//
//	CREATE TABLE users (id BIGSERIAL PRIMARY KEY, username TEXT UNIQUE NOT NULL);
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koustreak/drivebox/internal/account"
	"github.com/koustreak/drivebox/internal/errs"
)

const lookupQuery = `SELECT id FROM users WHERE username = $1`

// pool is the subset of *pgxpool.Pool the directory uses.
type pool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Directory implements account.Directory over PostgreSQL.
// It is safe for concurrent use by multiple goroutines.
type Directory struct {
	pool pool
}

var _ account.Directory = (*Directory)(nil)

// New connects to PostgreSQL using cfg and returns a Directory.
// It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *account.Config) (*Directory, error) {
	poolCfg, err := buildPoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindStorageFailed, "connect", "failed to create connection pool", err)
	}

	d := &Directory{pool: p}
	if err := d.Ping(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return d, nil
}

// LookupID returns the id of username.
func (d *Directory) LookupID(ctx context.Context, username string) (int64, error) {
	var id int64
	if err := d.pool.QueryRow(ctx, lookupQuery, username).Scan(&id); err != nil {
		return 0, mapError(err, "lookupUser")
	}
	return id, nil
}

// Ping verifies the database is reachable by acquiring and releasing a connection.
func (d *Directory) Ping(ctx context.Context) error {
	if err := d.pool.Ping(ctx); err != nil {
		return mapError(err, "ping")
	}
	return nil
}

// Close drains the connection pool.
func (d *Directory) Close() error {
	d.pool.Close()
	return nil
}
