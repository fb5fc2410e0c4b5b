// Package sql is an Adapter implementation backed by github.com/jmoiron/sqlx,
// supporting Postgres (github.com/lib/pq) and SQLite
// (github.com/mattn/go-sqlite3), grounded on the teacher's storage/sql
// package: a small dialect-translation layer ("flavor" there, "dialect"
// here) sits between one set of queries and two drivers.
package sql

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect is postgres or sqlite3, matching the driver name passed to
// sql.Open/sqlx.Open.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite3  Dialect = "sqlite3"
)

// conn is the subset of *sqlx.DB / *sqlx.Tx that CRUD code needs,
// abstracting connection vs. transaction the way the teacher's
// querier/scanner interfaces abstract conn vs. trans.
type conn interface {
	Rebind(query string) string
	ExecContext(ctx context.Context, query string, args ...interface{}) (execResult, error)
	QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

type execResult interface {
	RowsAffected() (int64, error)
}

// dbConn adapts *sqlx.DB to conn (ExecContext's return type differs by
// one interface method set, so it needs a thin wrapper).
type dbConn struct{ *sqlx.DB }

func (d dbConn) ExecContext(ctx context.Context, query string, args ...interface{}) (execResult, error) {
	return d.DB.ExecContext(ctx, query, args...)
}

type txConn struct{ *sqlx.Tx }

func (t txConn) ExecContext(ctx context.Context, query string, args ...interface{}) (execResult, error) {
	return t.Tx.ExecContext(ctx, query, args...)
}

// Adapter is a storage.Adapter implementation over a single *sqlx.DB.
// Queries are written once against Postgres placeholder syntax and
// rebound per-dialect via conn.Rebind, the way the teacher's flavor
// type translates "$1"-style binds to "?" for SQLite.
type Adapter struct {
	raw     *sqlx.DB
	db      conn
	dialect Dialect
}

// Open opens db with sqlx and wraps it as an Adapter. Callers own
// migration: call Migrate(ctx) once at startup.
func Open(dialect Dialect, dataSourceName string) (*Adapter, error) {
	raw, err := sqlx.Open(string(dialect), dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite3 {
		// matches the teacher's SQLite3.open: sqlite3 serializes writers
		// internally, so a pool only adds lock-contention errors.
		raw.SetMaxOpenConns(1)
	}
	return &Adapter{raw: raw, db: dbConn{raw}, dialect: dialect}, nil
}

// NewFromDB wraps an already-open *sqlx.DB, e.g. one built with a
// connection string the caller assembled itself.
func NewFromDB(db *sqlx.DB, dialect Dialect) *Adapter {
	return &Adapter{raw: db, db: dbConn{db}, dialect: dialect}
}

func (a *Adapter) Close() error { return a.raw.Close() }

func (a *Adapter) rebind(query string) string { return a.db.Rebind(query) }
