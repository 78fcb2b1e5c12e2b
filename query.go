package simpledb

import (
	"context"
	"fmt"
	"reflect"
)

// SelectRows executes the query and returns every row in result order.
// Column labels keep their case; temporal values are moved into the
// configured location and byte slices become strings. No rows yields an
// empty, non-nil slice.
func (s *Statement) SelectRows(ctx context.Context) (out []Row, err error) {
	err = s.withConn(ctx, "select_rows", func(ctx context.Context, c Conn, query string) error {
		out, err = s.db.queryRows(ctx, c, query, s.params, -1)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Row{}
	}
	return out, nil
}

// SelectRowsOf executes the statement and maps every row into a new T.
//
// Columns bind to fields by `db:"name"` tag first, otherwise by the field
// name derived with ToFieldName, compared case-insensitively, so created_at
// fills CreatedAt. Columns without a field and fields without a column are
// ignored. T must be a struct.
//
// Example:
//
//	type Article struct {
//	    ID        int64
//	    Title     string
//	    CreatedAt time.Time
//	    IsBlind   bool
//	}
//
//	articles, err := simpledb.SelectRowsOf[Article](ctx, db.GenSQL().
//	    Append("SELECT * FROM article ORDER BY id"))
func SelectRowsOf[T any](ctx context.Context, s *Statement) ([]T, error) {
	if err := checkStruct[T](); err != nil {
		return nil, err
	}
	rows, err := s.SelectRows(ctx)
	if err != nil {
		return nil, err
	}
	return mapRows[T](s.db.mapper, rows)
}

// SelectLongs returns the first column of every row as an int64, with the
// conversions of SelectLong. SQL NULL and rows without columns yield nil
// entries; non-numeric values fail with a *ConversionError.
func (s *Statement) SelectLongs(ctx context.Context) ([]*int64, error) {
	rows, err := s.SelectRows(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*int64, 0, len(rows))
	for _, r := range rows {
		v, ok := r.First()
		if !ok || v == nil {
			out = append(out, nil)
			continue
		}
		n, ok := longValue(v)
		if !ok {
			return nil, &ConversionError{Value: v, Target: "int64"}
		}
		out = append(out, &n)
	}
	return out, nil
}

// queryRows reads up to limit rows, or all rows when limit < 0.
func (s *SimpleDB) queryRows(ctx context.Context, c Conn, query string, args []any, limit int) (out []Row, err error) {
	rows, err := c.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	// Propagate rows.Close() error if nothing else failed.
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	for (limit < 0 || len(out) < limit) && rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, err
		}
		r := newRow(len(cols))
		for i, col := range cols {
			r.set(col, normalizeValue(vals[i], s.loc))
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func checkStruct[T any]() error {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if rt.Kind() != reflect.Struct {
		return fmt.Errorf("%w: got %s", ErrNotStruct, rt)
	}
	return nil
}
