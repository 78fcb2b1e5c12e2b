package simpledb

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql" // registers the "mysql" driver
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
)

// SimpleDB owns the database endpoint, hands out connections according to the
// calling session's transaction state and creates statements.
//
// A SimpleDB is safe for concurrent use. Each session (see WithSession) owns at
// most one transaction; sessions never see each other's transaction.
type SimpleDB struct {
	db       *sqlx.DB
	cfg      Config
	driver   string
	dialect  dialect
	bindType int
	loc      *time.Location
	log      *slog.Logger
	out      io.Writer
	devMode  atomic.Bool
	metrics  *metrics
	mapper   *structMapper

	mu  sync.Mutex
	txs map[uuid.UUID]*txState
}

// Open connects to the database described by cfg and verifies the connection.
//
// Example:
//
//	cfg := simpledb.DefaultConfig()
//	cfg.Driver = simpledb.DriverSQLite
//	cfg.Database = "app.db"
//	db, err := simpledb.Open(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
func Open(ctx context.Context, cfg Config) (*SimpleDB, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(cfg.driverName(), dsn)
	if err != nil {
		return nil, wrapDriver("open", err)
	}
	s, err := NewFromDB(db, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, wrapDriver("open", err)
	}
	s.log.Info("database opened", "driver", cfg.driverName(), "host", cfg.Host, "database", cfg.Database)
	return s, nil
}

// NewFromDB wraps an already opened handle. Unless cfg.KeepIdleConns is set,
// idle connections are not retained, so every released connection is closed.
// Placeholder syntax follows the handle's driver name, not cfg.Driver.
func NewFromDB(db *sqlx.DB, cfg Config) (*SimpleDB, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	m, err := newMetrics(cfg.Registerer)
	if err != nil {
		return nil, err
	}
	if !cfg.KeepIdleConns {
		db.SetMaxIdleConns(0)
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	name := db.DriverName()
	s := &SimpleDB{
		db:       db,
		cfg:      cfg,
		driver:   name,
		dialect:  dialectFor(name),
		bindType: sqlx.BindType(name),
		loc:      loc,
		log:      newLogger(cfg),
		out:      out,
		metrics:  m,
		mapper:   getMapper(),
		txs:      make(map[uuid.UUID]*txState),
	}
	s.devMode.Store(cfg.DevMode)
	return s, nil
}

// SetDevMode toggles printing of Run statements and their parameters.
func (s *SimpleDB) SetDevMode(on bool) { s.devMode.Store(on) }

// DevMode reports whether dev mode is on.
func (s *SimpleDB) DevMode() bool { return s.devMode.Load() }

// DB returns the underlying handle.
func (s *SimpleDB) DB() *sqlx.DB { return s.db }

// GenSQL starts a new statement.
func (s *SimpleDB) GenSQL() *Statement {
	return &Statement{db: s}
}

// GetConnection returns the session's transaction when one is bound, with a
// no-op release. Otherwise it opens a dedicated connection; release closes it.
func (s *SimpleDB) GetConnection(ctx context.Context) (Conn, func(), error) {
	if st := s.txFor(ctx); st != nil {
		return st.tx, func() {}, nil
	}
	c, err := s.db.Connx(ctx)
	if err != nil {
		return nil, nil, wrapDriver("connect", err)
	}
	return c, func() {
		if err := c.Close(); err != nil {
			s.log.Warn("release connection", "err", err)
		}
	}, nil
}

// Run executes a statement outside the builder. In dev mode the SQL text and
// every parameter with its 1-based position are printed first.
func (s *SimpleDB) Run(ctx context.Context, query string, params ...any) (err error) {
	if s.DevMode() {
		s.printSQL(query, params)
	}

	ctx, span := startSpan(ctx, "run", attrSystem.String(s.driver), attrStatement.String(query))
	start := time.Now()
	defer func() {
		s.metrics.observe("run", start, err)
		endSpan(span, err)
	}()

	c, release, err := s.GetConnection(ctx)
	if err != nil {
		return err
	}
	defer release()

	// Unreadable text goes to the driver as written.
	pos, _ := findPlaceholders(query, s.dialect)
	if _, err := c.ExecContext(ctx, rebind(s.bindType, query, pos), params...); err != nil {
		return wrapDriver("run", err)
	}
	return nil
}

func (s *SimpleDB) printSQL(query string, params []any) {
	fmt.Fprintf(s.out, "SQL: %s\n", query)
	if len(params) == 0 {
		return
	}
	fmt.Fprintln(s.out, "  params:")
	for i, p := range params {
		fmt.Fprintf(s.out, "    $%d = %v\n", i+1, p)
	}
}

// Close rolls back transactions that were never finished and closes the
// underlying handle.
func (s *SimpleDB) Close() error {
	s.mu.Lock()
	dangling := s.txs
	s.txs = make(map[uuid.UUID]*txState)
	s.mu.Unlock()

	for id, st := range dangling {
		s.log.Warn("rolling back unfinished transaction", "session", id, "age", time.Since(st.started))
		if err := st.tx.Rollback(); err != nil {
			s.log.Warn("rollback on close", "session", id, "err", err)
		}
		_ = st.conn.Close()
		s.metrics.txEvent("rollback")
	}
	return s.db.Close()
}
