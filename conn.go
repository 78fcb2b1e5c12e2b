package simpledb

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// Conn is what a statement runs against: a dedicated *sqlx.Conn outside a
// transaction, or the session's *sqlx.Tx inside one.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
	QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
}

var (
	_ Conn = (*sqlx.Conn)(nil)
	_ Conn = (*sqlx.Tx)(nil)
)
