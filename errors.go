package simpledb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// ErrState is the parent of every error caused by calling an operation in the
// wrong state (empty statement, nested transaction, reused statement).
var ErrState = errors.New("simpledb: invalid state")

// ErrArgument is the parent of every error caused by a malformed argument.
var ErrArgument = errors.New("simpledb: invalid argument")

// ErrConversion is matched by every *ConversionError.
var ErrConversion = errors.New("simpledb: conversion failed")

var (
	// ErrEmptySQL is returned by terminal methods when nothing was appended.
	ErrEmptySQL = fmt.Errorf("%w: sql is empty, build it with Append first", ErrState)

	// ErrTransactionActive is returned by StartTransaction when the session
	// already owns a transaction.
	ErrTransactionActive = fmt.Errorf("%w: transaction already started", ErrState)

	// ErrStatementConsumed is returned when a terminal method is called on a
	// statement that was already executed.
	ErrStatementConsumed = fmt.Errorf("%w: statement already executed", ErrState)
)

var (
	// ErrInClauseTemplate is recorded by AppendIn when the template does not
	// contain exactly one ? token.
	ErrInClauseTemplate = fmt.Errorf("%w: IN clause template must contain exactly one ?", ErrArgument)

	// ErrPlaceholderMismatch is returned when the number of ? tokens differs
	// from the number of bound parameters.
	ErrPlaceholderMismatch = fmt.Errorf("%w: placeholder count does not match parameter count", ErrArgument)

	// ErrNotStruct is returned by SelectRowsOf/SelectRowOf for non-struct targets.
	ErrNotStruct = fmt.Errorf("%w: target type must be a struct", ErrArgument)
)

// ConversionError reports a value that cannot be stored in the requested type.
type ConversionError struct {
	Value  any
	Target string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("simpledb: cannot convert %v (%T) to %s", e.Value, e.Value, e.Target)
}

func (e *ConversionError) Is(target error) bool { return target == ErrConversion }

// ErrorKind classifies driver failures.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindConnection
	KindConstraint
	KindTimeout
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindConstraint:
		return "constraint"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// DriverError wraps every failure reported by the database driver or by
// database/sql. Op names the simpledb operation that failed.
type DriverError struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("simpledb: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *DriverError) Unwrap() error { return e.Err }

// wrapDriver turns a raw error into a *DriverError. Errors that already belong
// to the simpledb taxonomy are returned unchanged.
func wrapDriver(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *DriverError
	var ce *ConversionError
	if errors.As(err, &de) || errors.As(err, &ce) ||
		errors.Is(err, ErrState) || errors.Is(err, ErrArgument) {
		return err
	}
	return &DriverError{Op: op, Kind: classify(err), Err: err}
}

func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone),
		errors.Is(err, mysql.ErrInvalidConn):
		return KindConnection
	}

	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case 1062, 1451, 1452: // duplicate key, foreign key parent/child
			return KindConstraint
		case 1205, 1213: // lock wait timeout, deadlock
			return KindTimeout
		}
		return KindUnknown
	}

	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrConstraint:
			return KindConstraint
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return KindTimeout
		case sqlite3.ErrCantOpen, sqlite3.ErrNotADB:
			return KindConnection
		}
		return KindUnknown
	}

	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		switch {
		case strings.HasPrefix(pe.Code, "23"):
			return KindConstraint
		case strings.HasPrefix(pe.Code, "08"):
			return KindConnection
		case pe.Code == "57014":
			return KindTimeout
		}
		return KindUnknown
	}

	var ce *pgconn.ConnectError
	if errors.As(err, &ce) {
		return KindConnection
	}
	return KindUnknown
}
