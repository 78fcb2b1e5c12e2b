package simpledb

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"time"
)

var reReturning = regexp.MustCompile(`(?i)\bRETURNING\b`)

// hasReturning reports whether query carries a RETURNING clause outside
// quoted text and comments.
func hasReturning(query string, d dialect) bool {
	masked, err := maskLiterals(query, d)
	return err == nil && reReturning.MatchString(masked)
}

// withConn is the template every terminal method runs through: validate the
// statement, acquire a connection for the session, run fn on the rebound SQL,
// release the connection unless it belongs to a transaction, and wrap driver
// failures. Release happens before the error is returned.
func (s *Statement) withConn(ctx context.Context, op string, fn func(ctx context.Context, c Conn, query string) error) (err error) {
	query, err := s.prepare()
	if err != nil {
		return err
	}
	db := s.db

	ctx, span := startSpan(ctx, op, attrSystem.String(db.driver), attrStatement.String(query))
	start := time.Now()
	defer func() {
		db.metrics.observe(op, start, err)
		endSpan(span, err)
		db.log.Debug("statement executed", "op", op, "sql", query, "params", s.params,
			"elapsed", time.Since(start), "err", err)
	}()

	c, release, err := db.GetConnection(ctx)
	if err != nil {
		return err
	}
	defer release()

	return wrapDriver(op, fn(ctx, c, query))
}

// Insert executes an INSERT and returns the generated key, or 0 when the
// driver reports none. With a RETURNING clause the first returned column is
// used instead of LastInsertId.
//
// Example:
//
//	id, err := db.GenSQL().
//	    Append("INSERT INTO article").
//	    Append("SET title = ?, body = ?", "title", "body").
//	    Insert(ctx)
func (s *Statement) Insert(ctx context.Context) (id int64, err error) {
	returning := hasReturning(s.sql.String(), s.db.dialect)
	err = s.withConn(ctx, "insert", func(ctx context.Context, c Conn, query string) error {
		if returning {
			err := c.QueryRowxContext(ctx, query, s.params...).Scan(&id)
			if errors.Is(err, sql.ErrNoRows) {
				id = 0
				return nil
			}
			return err
		}
		res, err := c.ExecContext(ctx, query, s.params...)
		if err != nil {
			return err
		}
		// Drivers without generated keys (pgx) report an error here.
		if n, lerr := res.LastInsertId(); lerr == nil {
			id = n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Update executes a mutating statement and returns the affected row count.
func (s *Statement) Update(ctx context.Context) (int64, error) {
	return s.affected(ctx, "update")
}

// Delete executes a mutating statement and returns the affected row count.
func (s *Statement) Delete(ctx context.Context) (int64, error) {
	return s.affected(ctx, "delete")
}

func (s *Statement) affected(ctx context.Context, op string) (n int64, err error) {
	err = s.withConn(ctx, op, func(ctx context.Context, c Conn, query string) error {
		res, err := c.ExecContext(ctx, query, s.params...)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
