package simpledb

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
)

// --- In-memory driver --------------------------------------------------------

type queryHandler func(query string, args []driver.NamedValue) (cols []string, rows [][]driver.Value, err error)

type execHandler func(query string, args []driver.NamedValue) (driver.Result, error)

type fakeCall struct {
	conn  int
	query string
	args  []driver.NamedValue
}

// fakeConnector hands out fakeConns and counts what happens to them.
type fakeConnector struct {
	query queryHandler
	exec  execHandler

	commitErr   error
	rollbackErr error

	mu         sync.Mutex
	nextID     int
	opened     int
	closed     int
	begun      int
	committed  int
	rolledBack int
	calls      []fakeCall
}

func (c *fakeConnector) Connect(context.Context) (driver.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.opened++
	return &fakeConn{id: c.nextID, c: c}, nil
}

func (c *fakeConnector) Driver() driver.Driver { return fakeDriver{} }

func (c *fakeConnector) record(conn int, query string, args []driver.NamedValue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, fakeCall{conn: conn, query: query, args: args})
}

func (c *fakeConnector) snapshot() (opened, closed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opened, c.closed
}

func (c *fakeConnector) lastCall(t *testing.T) fakeCall {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.calls) == 0 {
		t.Fatal("no calls recorded")
	}
	return c.calls[len(c.calls)-1]
}

type fakeDriver struct{}

func (fakeDriver) Open(name string) (driver.Conn, error) {
	return nil, errors.New("fakeDriver.Open should not be called; use sql.OpenDB with connector")
}

type fakeConn struct {
	id int
	c  *fakeConnector
}

func (c *fakeConn) Prepare(string) (driver.Stmt, error) { return nil, driver.ErrSkip }

func (c *fakeConn) Close() error {
	c.c.mu.Lock()
	c.c.closed++
	c.c.mu.Unlock()
	return nil
}

func (c *fakeConn) Begin() (driver.Tx, error) {
	c.c.mu.Lock()
	c.c.begun++
	c.c.mu.Unlock()
	return &fakeTx{c: c.c}, nil
}

func (c *fakeConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.c.record(c.id, query, args)
	if c.c.query == nil {
		return nil, errors.New("fake: no query handler")
	}
	cols, data, err := c.c.query(query, args)
	if err != nil {
		return nil, err
	}
	return &fakeRows{cols: cols, data: data}, nil
}

func (c *fakeConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.c.record(c.id, query, args)
	if c.c.exec == nil {
		return fakeResult{}, nil
	}
	return c.c.exec(query, args)
}

type fakeTx struct{ c *fakeConnector }

func (t *fakeTx) Commit() error {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	t.c.committed++
	return t.c.commitErr
}

func (t *fakeTx) Rollback() error {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	t.c.rolledBack++
	return t.c.rollbackErr
}

type fakeRows struct {
	cols []string
	data [][]driver.Value
	i    int
}

func (r *fakeRows) Columns() []string { return append([]string(nil), r.cols...) }
func (r *fakeRows) Close() error      { return nil }
func (r *fakeRows) Next(dest []driver.Value) error {
	if r.i >= len(r.data) {
		return io.EOF
	}
	row := r.data[r.i]
	for i := range dest {
		if i < len(row) {
			dest[i] = row[i]
		} else {
			dest[i] = nil
		}
	}
	r.i++
	return nil
}

type fakeResult struct {
	lastID int64
	rows   int64
	liErr  error
	raErr  error
}

func (r fakeResult) LastInsertId() (int64, error) { return r.lastID, r.liErr }
func (r fakeResult) RowsAffected() (int64, error) { return r.rows, r.raErr }

// --- Helpers -----------------------------------------------------------------

// newFakeDB returns a SimpleDB backed by the in-memory driver. Its dev-mode
// output goes to the returned buffer.
func newFakeDB(t *testing.T, fc *fakeConnector) (*SimpleDB, *bytes.Buffer) {
	t.Helper()
	return newFakeDBAs(t, fc, "fake")
}

// newFakeDBAs is newFakeDB under a real driver name, which selects that
// driver's placeholder style and lexical rules.
func newFakeDBAs(t *testing.T, fc *fakeConnector, driverName string) (*SimpleDB, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	cfg := DefaultConfig()
	cfg.TimeZone = "UTC"
	cfg.Output = out
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := NewFromDB(sqlx.NewDb(sql.OpenDB(fc), driverName), cfg)
	if err != nil {
		t.Fatalf("NewFromDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, out
}

// rowsOf answers every query with the given columns and rows.
func rowsOf(cols []string, rows ...[]driver.Value) queryHandler {
	return func(string, []driver.NamedValue) ([]string, [][]driver.Value, error) {
		return cols, rows, nil
	}
}

func argValues(args []driver.NamedValue) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = a.Value
	}
	return out
}
