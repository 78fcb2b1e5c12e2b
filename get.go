package simpledb

import (
	"context"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// SelectRow returns the first row, or an empty Row when there is none.
func (s *Statement) SelectRow(ctx context.Context) (Row, error) {
	rows, err := s.SelectRows(ctx)
	if err != nil || len(rows) == 0 {
		return Row{}, err
	}
	return rows[0], nil
}

// SelectRowOf maps the first row into a new T, or returns nil when the query
// yields no rows. Mapping rules are those of SelectRowsOf.
//
// Example:
//
//	a, err := simpledb.SelectRowOf[Article](ctx, db.GenSQL().
//	    Append("SELECT * FROM article WHERE id = ?", id))
//	if err != nil {
//	    return err
//	}
//	if a == nil {
//	    // not found
//	}
func SelectRowOf[T any](ctx context.Context, s *Statement) (*T, error) {
	items, err := SelectRowsOf[T](ctx, s)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return &items[0], nil
}

// SelectLong returns the first column of the first row as an int64. Any
// numeric value is accepted, including decimal text such as MySQL DECIMAL
// results; fractions are truncated. No row or SQL NULL yields nil.
func (s *Statement) SelectLong(ctx context.Context) (*int64, error) {
	v, err := s.selectValue(ctx, "select_long")
	if err != nil || v == nil {
		return nil, err
	}
	n, ok := longValue(v)
	if !ok {
		return nil, &ConversionError{Value: v, Target: "int64"}
	}
	return &n, nil
}

// longValue narrows a numeric value or its decimal text to int64.
func longValue(v any) (int64, bool) {
	s, ok := v.(string)
	if !ok {
		return toInt64(reflect.ValueOf(v))
	}
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return toInt64(reflect.ValueOf(f))
}

// SelectString returns the first column of the first row. Only string values
// are accepted. No row or SQL NULL yields nil.
func (s *Statement) SelectString(ctx context.Context) (*string, error) {
	v, err := s.selectValue(ctx, "select_string")
	if err != nil || v == nil {
		return nil, err
	}
	str, ok := v.(string)
	if !ok {
		return nil, &ConversionError{Value: v, Target: "string"}
	}
	return &str, nil
}

// SelectBoolean returns the first column of the first row as a bool. Numeric
// values map to value != 0. No row or SQL NULL yields nil.
func (s *Statement) SelectBoolean(ctx context.Context) (*bool, error) {
	v, err := s.selectValue(ctx, "select_boolean")
	if err != nil || v == nil {
		return nil, err
	}
	if b, ok := v.(bool); ok {
		return &b, nil
	}
	f, ok := toFloat64(reflect.ValueOf(v))
	if !ok {
		return nil, &ConversionError{Value: v, Target: "bool"}
	}
	b := f != 0
	return &b, nil
}

// SelectDatetime returns the first column of the first row as a time.Time in
// the configured location. No row or SQL NULL yields nil.
func (s *Statement) SelectDatetime(ctx context.Context) (*time.Time, error) {
	v, err := s.selectValue(ctx, "select_datetime")
	if err != nil || v == nil {
		return nil, err
	}
	t, ok := v.(time.Time)
	if !ok {
		return nil, &ConversionError{Value: v, Target: "time.Time"}
	}
	return &t, nil
}

// selectValue reads the first column of the first row only.
func (s *Statement) selectValue(ctx context.Context, op string) (v any, err error) {
	err = s.withConn(ctx, op, func(ctx context.Context, c Conn, query string) error {
		rows, err := s.db.queryRows(ctx, c, query, s.params, 1)
		if err != nil || len(rows) == 0 {
			return err
		}
		v, _ = rows[0].First()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}
