package simpledb

import (
	"strings"
)

// Statement accumulates SQL text and positional parameters. Build it with
// Append and AppendIn, then call exactly one terminal method (Insert, Update,
// Delete or one of the Select methods).
//
// A Statement is not safe for concurrent use.
type Statement struct {
	db       *SimpleDB
	sql      strings.Builder
	params   []any
	err      error
	consumed bool
}

// Append adds a SQL fragment, separated from prior text by a single space,
// and records params in order. Blank text leaves the SQL unchanged.
//
// Example:
//
//	db.GenSQL().
//	    Append("SELECT id, title FROM article").
//	    Append("WHERE id > ?", 10).
//	    Append("AND is_blind = ?", false)
func (s *Statement) Append(text string, params ...any) *Statement {
	s.appendText(text)
	s.params = append(s.params, params...)
	return s
}

// AppendIn adds an IN clause template whose single ? is replaced by one
// placeholder per param. A single slice argument is expanded element by
// element. A template without exactly one ? records ErrInClauseTemplate,
// reported by Err and by the terminal method.
//
// Example:
//
//	db.GenSQL().
//	    Append("SELECT COUNT(*) FROM article").
//	    AppendIn("WHERE id IN (?)", 1, 2, 3)
//	// SELECT COUNT(*) FROM article WHERE id IN (?, ?, ?)
func (s *Statement) AppendIn(text string, params ...any) *Statement {
	if strings.TrimSpace(text) == "" {
		return s
	}
	expanded, args, err := expandIn(text, params, s.db.dialect)
	if err != nil {
		if s.err == nil {
			s.err = err
		}
		return s
	}
	s.appendText(expanded)
	s.params = append(s.params, args...)
	return s
}

func (s *Statement) appendText(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if s.sql.Len() > 0 {
		s.sql.WriteByte(' ')
	}
	s.sql.WriteString(text)
}

// Err returns the first error recorded while building.
func (s *Statement) Err() error { return s.err }

// SQL returns the accumulated text.
func (s *Statement) SQL() string { return s.sql.String() }

// Params returns a copy of the bound parameters.
func (s *Statement) Params() []any { return append([]any(nil), s.params...) }

// prepare validates the statement before execution and marks it consumed.
// It returns the SQL rebound for the driver. Text the lexer cannot read is
// sent as written and left for the driver to reject.
func (s *Statement) prepare() (string, error) {
	if s.consumed {
		return "", ErrStatementConsumed
	}
	s.consumed = true
	if s.err != nil {
		return "", s.err
	}
	query := s.sql.String()
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptySQL
	}
	pos, lexErr := findPlaceholders(query, s.db.dialect)
	if err := checkPlaceholders(pos, lexErr, len(s.params)); err != nil {
		return "", err
	}
	return rebind(s.db.bindType, query, pos), nil
}
