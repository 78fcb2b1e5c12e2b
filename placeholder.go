package simpledb

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

// dialect selects the lexical rules used to tell placeholders apart from
// literal text.
type dialect struct {
	backslash   bool // '\' escapes the next byte inside quotes (MySQL)
	hashComment bool // # starts a line comment (MySQL)
	dollarQuote bool // $$...$$ and $tag$...$tag$ blocks (PostgreSQL)
}

func dialectFor(driverName string) dialect {
	switch strings.ToLower(driverName) {
	case DriverMySQL:
		return dialect{backslash: true, hashComment: true}
	case DriverSQLite:
		return dialect{}
	default:
		return dialect{dollarQuote: true}
	}
}

// maskLiterals returns query with quoted strings, quoted identifiers and
// comments overwritten by spaces. Byte offsets are preserved, so positions
// found in the mask index the original text.
func maskLiterals(query string, d dialect) (string, error) {
	b := []byte(query)
	i := 0
	for i < len(query) {
		var (
			j    int
			skip bool
			err  error
		)
		switch c := query[i]; {
		case c == '\'' || c == '"':
			j, err = skipQuoted(query, i+1, c, d.backslash)
			skip = true
		case c == '`':
			j, err = skipQuoted(query, i+1, c, false)
			skip = true
		case c == '-' && strings.HasPrefix(query[i:], "--"):
			j, skip = skipLineComment(query, i+2), true
		case c == '#' && d.hashComment:
			j, skip = skipLineComment(query, i+1), true
		case c == '/' && strings.HasPrefix(query[i:], "/*"):
			j, err = skipBlockComment(query, i+2)
			skip = true
		case c == '$' && d.dollarQuote:
			j, skip, err = skipDollarQuoted(query, i)
		}
		if err != nil {
			return "", err
		}
		if !skip {
			i++
			continue
		}
		for k := i; k < j; k++ {
			b[k] = ' '
		}
		i = j
	}
	return string(b), nil
}

// findPlaceholders returns the byte offsets of every positional ? token in
// query.
func findPlaceholders(query string, d dialect) ([]int, error) {
	masked, err := maskLiterals(query, d)
	if err != nil {
		return nil, err
	}
	var out []int
	for i := 0; i < len(masked); i++ {
		if masked[i] == '?' {
			out = append(out, i)
		}
	}
	return out, nil
}

// checkPlaceholders verifies that pos holds exactly n tokens. A query the
// lexer could not read (pos == nil with lexErr set) is left to the driver.
func checkPlaceholders(pos []int, lexErr error, n int) error {
	if lexErr != nil {
		return nil
	}
	if len(pos) != n {
		return fmt.Errorf("%w: %d placeholders, %d params", ErrPlaceholderMismatch, len(pos), n)
	}
	return nil
}

// rebind rewrites the ? tokens at pos into the bindvar style of bindType
// (see sqlx.BindType). Text between tokens is copied unchanged.
func rebind(bindType int, query string, pos []int) string {
	if bindType == sqlx.QUESTION || bindType == sqlx.UNKNOWN || len(pos) == 0 {
		return query
	}
	out := make([]byte, 0, len(query)+4*len(pos))
	last := 0
	for n, p := range pos {
		out = append(out, query[last:p]...)
		switch bindType {
		case sqlx.DOLLAR:
			out = append(out, '$')
		case sqlx.NAMED:
			out = append(out, ":arg"...)
		case sqlx.AT:
			out = append(out, '@', 'p')
		}
		out = strconv.AppendInt(out, int64(n+1), 10)
		last = p + 1
	}
	return string(append(out, query[last:]...))
}

// expandIn replaces the single ? token of an IN clause template with one
// token per parameter. A lone slice argument is flattened element by element.
func expandIn(text string, params []any, d dialect) (string, []any, error) {
	pos, err := findPlaceholders(text, d)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrArgument, err)
	}
	if len(pos) != 1 {
		return "", nil, fmt.Errorf("%w: found %d in %q", ErrInClauseTemplate, len(pos), text)
	}

	args := params
	if len(params) == 1 {
		if v := reflect.ValueOf(params[0]); isSliceOrArray(v) {
			args = make([]any, v.Len())
			for i := range args {
				args[i] = v.Index(i).Interface()
			}
		}
	}

	tokens := make([]string, len(args))
	for i := range tokens {
		tokens[i] = "?"
	}
	at := pos[0]
	return text[:at] + strings.Join(tokens, ", ") + text[at+1:], args, nil
}

var valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()

func isSliceOrArray(v reflect.Value) bool {
	if !v.IsValid() || v.Type().Implements(valuerType) {
		return false
	}
	switch v.Kind() {
	case reflect.Slice:
		return v.Type().Elem().Kind() != reflect.Uint8 // []byte → scalar
	case reflect.Array:
		return true
	default:
		return false
	}
}

// skipQuoted returns the offset just past the closing quote. A doubled quote
// is an escaped quote; with backslash set, '\' escapes the next byte.
func skipQuoted(s string, i int, quote byte, backslash bool) (int, error) {
	for i < len(s) {
		c := s[i]
		i++
		switch {
		case backslash && c == '\\':
			i++
		case c == quote:
			if i < len(s) && s[i] == quote {
				i++
				continue
			}
			return i, nil
		}
	}
	return 0, fmt.Errorf("unterminated %c-quoted text", quote)
}

func skipLineComment(s string, i int) int {
	if j := strings.IndexByte(s[i:], '\n'); j >= 0 {
		return i + j + 1
	}
	return len(s)
}

func skipBlockComment(s string, i int) (int, error) {
	if j := strings.Index(s[i:], "*/"); j >= 0 {
		return i + j + 2, nil
	}
	return 0, fmt.Errorf("unterminated block comment")
}

// skipDollarQuoted handles $$...$$ and $tag$...$tag$ (PostgreSQL).
func skipDollarQuoted(s string, i int) (int, bool, error) {
	j := i + 1
	for j < len(s) && isTagByte(s[j]) {
		j++
	}
	if j >= len(s) || s[j] != '$' {
		return 0, false, nil
	}
	tag := s[i : j+1]
	idx := strings.Index(s[j+1:], tag)
	if idx < 0 {
		return 0, true, fmt.Errorf("unterminated dollar-quoted string")
	}
	return j + 1 + idx + len(tag), true, nil
}

func isTagByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c >= 0x80
}
