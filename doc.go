/*
Package simpledb is a minimal database access layer over database/sql: a
connection and transaction manager paired with a fluent statement builder that
executes parameterized SQL and maps rows to ordered records or to structs.

# Overview

	db, err := simpledb.Open(ctx, cfg)
	...
	id, err := db.GenSQL().
	    Append("INSERT INTO article").
	    Append("SET title = ?, body = ?, created_at = NOW()", "title", "body").
	    Insert(ctx)

	a, err := simpledb.SelectRowOf[Article](ctx, db.GenSQL().
	    Append("SELECT * FROM article").
	    Append("WHERE id = ?", id))

A Statement collects SQL fragments (joined by single spaces, blank fragments
skipped) and positional parameters. AppendIn expands the single ? of an IN
clause template into one placeholder per value. Exactly one terminal method
(Insert, Update, Delete, SelectRows, SelectRow, SelectLong, SelectString,
SelectBoolean, SelectDatetime, SelectLongs, SelectRowsOf, SelectRowOf) may be
called per statement.

Statements are written with ? placeholders and rebound for the driver (for
example $1, $2 for pgx) right before execution.

# Sessions and transactions

Transaction state belongs to a session, an identity carried by the
context.Context passed to every call. StartTransaction binds a dedicated
connection with auto-commit off to the session and returns the context to use
for the rest of the transaction:

	ctx, err := db.StartTransaction(ctx)
	if err != nil {
	    return err
	}
	defer db.Rollback(ctx) // no-op after Commit
	...
	return db.Commit(ctx)

Inside a transaction every statement reuses the bound connection and leaves it
open. Outside one, each execution opens its own connection and closes it when
done. Sessions never share a transaction.

# Mapping rules

  - Row keeps column labels in result order and case.
  - Temporal values become time.Time in the configured location; []byte becomes string.
  - Struct fields bind by `db:"name"` first, otherwise by the camelCase name
    derived from the snake_case label (created_at → createdAt), case-insensitively.
  - Embedded structs and `db:",inline"` are flattened; `db:"-"` is skipped.
  - Extra columns and missing fields are ignored.
  - Numbers narrow or widen into numeric fields, numbers map to bools as != 0,
    anything maps to strings by its string form, and sql.Scanner fields scan
    the raw value. Everything else fails with a *ConversionError.

# Error handling

  - ErrState: ErrEmptySQL, ErrTransactionActive, ErrStatementConsumed.
  - ErrArgument: ErrInClauseTemplate, ErrPlaceholderMismatch, ErrNotStruct.
  - *ConversionError (matches ErrConversion) for values that do not fit the requested type.
  - *DriverError for every database failure, classified by Kind. Nothing is retried.

Connections are released before any error is returned.
*/
package simpledb
