package simpledb

import (
	"errors"
	"reflect"
	"testing"

	"github.com/jmoiron/sqlx"
)

var (
	pgDialect     = dialectFor(DriverPgx)
	mysqlDialect  = dialectFor(DriverMySQL)
	sqliteDialect = dialectFor(DriverSQLite)
)

func TestFindPlaceholders(t *testing.T) {
	cases := []struct {
		query string
		d     dialect
		want  int
	}{
		{"SELECT 1", pgDialect, 0},
		{"SELECT * FROM t WHERE a = ? AND b = ?", pgDialect, 2},
		{"SELECT '?' AS q, ? AS p", pgDialect, 1},
		{"SELECT 'it''s ?', ?", pgDialect, 1},
		{`SELECT "col?" FROM t WHERE a = ?`, pgDialect, 1},
		{"SELECT `col?` FROM t WHERE a = ?", pgDialect, 1},
		{"SELECT ? -- trailing ?\n, ?", pgDialect, 2},
		{"SELECT /* ? */ ?", pgDialect, 1},
		{"SELECT $$ ? $$, ?", pgDialect, 1},
		{"SELECT $tag$ ? $tag$, ?", pgDialect, 1},
		{"SELECT ?, 'ünïcode ?', ?", pgDialect, 2},
		{`SELECT 'it\'s ?' AS q, ?`, mysqlDialect, 1},
		{`SELECT "say \"?\"", ?`, mysqlDialect, 1},
		{"SELECT ? # why?\n, ?", mysqlDialect, 2},
		{"SELECT ? # why?", pgDialect, 2},
		{"SELECT $$ ? $$", mysqlDialect, 1},
		{"SELECT $$ ? $$", sqliteDialect, 1},
	}
	for _, tc := range cases {
		pos, err := findPlaceholders(tc.query, tc.d)
		if err != nil {
			t.Fatalf("findPlaceholders(%q): %v", tc.query, err)
		}
		if len(pos) != tc.want {
			t.Errorf("findPlaceholders(%q, %+v)=%v want %d", tc.query, tc.d, pos, tc.want)
		}
		for _, p := range pos {
			if tc.query[p] != '?' {
				t.Errorf("offset %d in %q is %q", p, tc.query, tc.query[p])
			}
		}
	}
}

func TestFindPlaceholders_Unterminated(t *testing.T) {
	for _, q := range []string{"SELECT 'open", `SELECT "open`, "SELECT `open", "SELECT /* open", "SELECT $x$ open"} {
		if _, err := findPlaceholders(q, pgDialect); err == nil {
			t.Errorf("findPlaceholders(%q) succeeded", q)
		}
	}
	// A backslash before the closing quote only escapes it in MySQL.
	if _, err := findPlaceholders(`SELECT 'a\' , ?`, mysqlDialect); err == nil {
		t.Error("escaped quote treated as closing quote")
	}
	if pos, err := findPlaceholders(`SELECT 'a\' , ?`, pgDialect); err != nil || len(pos) != 1 {
		t.Errorf("pos=%v err=%v want one token", pos, err)
	}
}

func TestCheckPlaceholders(t *testing.T) {
	if err := checkPlaceholders([]int{4, 12}, nil, 2); err != nil {
		t.Fatalf("checkPlaceholders: %v", err)
	}
	if err := checkPlaceholders([]int{4}, nil, 2); !errors.Is(err, ErrPlaceholderMismatch) {
		t.Fatalf("err=%v want ErrPlaceholderMismatch", err)
	}
	if err := checkPlaceholders(nil, errors.New("unterminated"), 2); err != nil {
		t.Fatalf("unreadable text must be left to the driver, got %v", err)
	}
}

func TestRebind(t *testing.T) {
	query := "SELECT '?' AS q FROM t WHERE a = ? /* ? */ AND b IN (?, ?)"
	pos, err := findPlaceholders(query, pgDialect)
	if err != nil {
		t.Fatal(err)
	}
	cases := map[int]string{
		sqlx.QUESTION: query,
		sqlx.UNKNOWN:  query,
		sqlx.DOLLAR:   "SELECT '?' AS q FROM t WHERE a = $1 /* ? */ AND b IN ($2, $3)",
		sqlx.NAMED:    "SELECT '?' AS q FROM t WHERE a = :arg1 /* ? */ AND b IN (:arg2, :arg3)",
		sqlx.AT:       "SELECT '?' AS q FROM t WHERE a = @p1 /* ? */ AND b IN (@p2, @p3)",
	}
	for bindType, want := range cases {
		if got := rebind(bindType, query, pos); got != want {
			t.Errorf("rebind(%d)=%q\nwant %q", bindType, got, want)
		}
	}
}

func TestHasReturning(t *testing.T) {
	cases := []struct {
		query string
		want  bool
	}{
		{"INSERT INTO t (a) VALUES (?) RETURNING id", true},
		{"insert into t (a) values (?) returning id", true},
		{"INSERT INTO t (a) VALUES ('returning soon')", false},
		{"INSERT INTO t (a) VALUES (?) -- RETURNING id", false},
		{`INSERT INTO t ("returning") VALUES (?)`, false},
		{"INSERT INTO t (returning_at) VALUES (?)", false},
	}
	for _, tc := range cases {
		if got := hasReturning(tc.query, pgDialect); got != tc.want {
			t.Errorf("hasReturning(%q)=%v want %v", tc.query, got, tc.want)
		}
	}
}

func TestExpandIn(t *testing.T) {
	cases := []struct {
		text   string
		params []any
		want   string
		args   []any
	}{
		{"id IN (?)", []any{1, 2, 3}, "id IN (?, ?, ?)", []any{1, 2, 3}},
		{"id IN (?)", []any{"a"}, "id IN (?)", []any{"a"}},
		{"id IN (?)", []any{[]string{"a", "b"}}, "id IN (?, ?)", []any{"a", "b"}},
		{"id IN (?)", []any{[2]int{4, 5}}, "id IN (?, ?)", []any{4, 5}},
		{"id IN (?)", []any{[]int{}}, "id IN ()", []any{}},
		{"data IN (?)", []any{[]byte("raw")}, "data IN (?)", []any{[]byte("raw")}},
		{"id IN (?) -- ?", []any{1, 2}, "id IN (?, ?) -- ?", []any{1, 2}},
		{"id IN (?) AND note <> '?'", []any{[]int{1, 2}}, "id IN (?, ?) AND note <> '?'", []any{1, 2}},
	}
	for _, tc := range cases {
		got, args, err := expandIn(tc.text, tc.params, pgDialect)
		if err != nil {
			t.Fatalf("expandIn(%q): %v", tc.text, err)
		}
		if got != tc.want || !reflect.DeepEqual(args, tc.args) {
			t.Errorf("expandIn(%q, %v)=(%q, %v) want (%q, %v)", tc.text, tc.params, got, args, tc.want, tc.args)
		}
	}
}
