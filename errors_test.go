package simpledb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), KindTimeout},
		{"canceled", context.Canceled, KindCanceled},
		{"bad conn", driver.ErrBadConn, KindConnection},
		{"conn done", sql.ErrConnDone, KindConnection},
		{"sqlite constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, KindConstraint},
		{"sqlite busy", sqlite3.Error{Code: sqlite3.ErrBusy}, KindTimeout},
		{"sqlite cantopen", sqlite3.Error{Code: sqlite3.ErrCantOpen}, KindConnection},
		{"sqlite other", sqlite3.Error{Code: sqlite3.ErrError}, KindUnknown},
		{"pg unique", &pgconn.PgError{Code: "23505"}, KindConstraint},
		{"pg connection", &pgconn.PgError{Code: "08006"}, KindConnection},
		{"pg query canceled", &pgconn.PgError{Code: "57014"}, KindTimeout},
		{"pg syntax", &pgconn.PgError{Code: "42601"}, KindUnknown},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, KindConstraint},
		{"mysql parent row", &mysql.MySQLError{Number: 1451}, KindConstraint},
		{"mysql child row", &mysql.MySQLError{Number: 1452}, KindConstraint},
		{"mysql lock wait", &mysql.MySQLError{Number: 1205}, KindTimeout},
		{"mysql deadlock", fmt.Errorf("exec: %w", &mysql.MySQLError{Number: 1213}), KindTimeout},
		{"mysql syntax", &mysql.MySQLError{Number: 1064}, KindUnknown},
		{"mysql invalid conn", mysql.ErrInvalidConn, KindConnection},
		{"plain", errors.New("boom"), KindUnknown},
	}
	for _, tc := range cases {
		if got := classify(tc.err); got != tc.want {
			t.Errorf("%s: classify=%v want %v", tc.name, got, tc.want)
		}
	}
}

func TestWrapDriver(t *testing.T) {
	if wrapDriver("x", nil) != nil {
		t.Fatal("nil must stay nil")
	}

	// Errors that already belong to the taxonomy pass through.
	for _, err := range []error{
		ErrEmptySQL,
		fmt.Errorf("%w: detail", ErrPlaceholderMismatch),
		&ConversionError{Value: 1, Target: "string"},
		&DriverError{Op: "select_rows", Kind: KindTimeout, Err: context.DeadlineExceeded},
	} {
		if got := wrapDriver("update", err); got != err {
			t.Errorf("wrapDriver(%v)=%v want unchanged", err, got)
		}
	}

	raw := &pgconn.PgError{Code: "23505", Message: "duplicate key"}
	err := wrapDriver("insert", fmt.Errorf("exec: %w", raw))
	var de *DriverError
	if !errors.As(err, &de) || de.Op != "insert" || de.Kind != KindConstraint {
		t.Fatalf("err=%#v", err)
	}
	var pe *pgconn.PgError
	if !errors.As(err, &pe) || pe != raw {
		t.Fatal("driver error must stay reachable through Unwrap")
	}
}

func TestErrorHierarchy(t *testing.T) {
	for _, err := range []error{ErrEmptySQL, ErrTransactionActive, ErrStatementConsumed} {
		if !errors.Is(err, ErrState) || errors.Is(err, ErrArgument) {
			t.Errorf("%v: wrong parent", err)
		}
	}
	for _, err := range []error{ErrInClauseTemplate, ErrPlaceholderMismatch, ErrNotStruct} {
		if !errors.Is(err, ErrArgument) || errors.Is(err, ErrState) {
			t.Errorf("%v: wrong parent", err)
		}
	}
	ce := &ConversionError{Value: "abc", Target: "int64"}
	if got := ce.Error(); got != "simpledb: cannot convert abc (string) to int64" {
		t.Errorf("Error()=%q", got)
	}
	if errors.Is(ce, ErrState) || errors.Is(ce, ErrArgument) {
		t.Error("conversion errors have their own parent")
	}
}
