// Package dbx holds the database handle abstraction the SQL repositories
// are written against.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql the reservation repositories use.
// *sql.DB, *sql.Tx and *sql.Conn all satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
