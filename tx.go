package simpledb

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type sessionKey struct{}

// txState is the transaction bound to one session: a dedicated connection
// with auto-commit turned off.
type txState struct {
	conn    *sqlx.Conn
	tx      *sqlx.Tx
	started time.Time
}

// WithSession returns a context that carries a session identity. Contexts
// that already carry one are returned unchanged.
func WithSession(ctx context.Context) context.Context {
	if _, ok := SessionID(ctx); ok {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, uuid.New())
}

// SessionID returns the session identity carried by ctx.
func SessionID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(sessionKey{}).(uuid.UUID)
	return id, ok
}

func (s *SimpleDB) txFor(ctx context.Context) *txState {
	id, ok := SessionID(ctx)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txs[id]
}

// InTransaction reports whether the session carried by ctx owns a transaction.
func (s *SimpleDB) InTransaction(ctx context.Context) bool {
	return s.txFor(ctx) != nil
}

// StartTransaction opens a dedicated connection, begins a transaction on it
// and binds it to the session carried by ctx, creating the session if needed.
// Pass the returned context to every statement that belongs to the
// transaction and to Commit or Rollback.
//
// Starting a second transaction in the same session fails with
// ErrTransactionActive.
func (s *SimpleDB) StartTransaction(ctx context.Context) (_ context.Context, err error) {
	ctx = WithSession(ctx)
	id, _ := SessionID(ctx)
	if s.InTransaction(ctx) {
		return ctx, ErrTransactionActive
	}

	spanCtx, span := startSpan(ctx, "start_transaction", attrSession.String(id.String()))
	defer func() { endSpan(span, err) }()

	// The transaction lives until Commit or Rollback, not until ctx is done.
	txCtx := context.WithoutCancel(spanCtx)
	conn, err := s.db.Connx(txCtx)
	if err != nil {
		return ctx, wrapDriver("start transaction", err)
	}
	tx, err := conn.BeginTxx(txCtx, nil)
	if err != nil {
		_ = conn.Close()
		return ctx, wrapDriver("start transaction", err)
	}

	s.mu.Lock()
	if _, dup := s.txs[id]; dup {
		s.mu.Unlock()
		_ = tx.Rollback()
		_ = conn.Close()
		return ctx, ErrTransactionActive
	}
	s.txs[id] = &txState{conn: conn, tx: tx, started: time.Now()}
	s.mu.Unlock()

	s.metrics.txEvent("start")
	s.log.Debug("transaction started", "session", id)
	return ctx, nil
}

// Commit commits the session's transaction. Without a bound transaction it
// does nothing. The connection is closed and unbound even when the commit
// fails; the failure is returned afterwards.
func (s *SimpleDB) Commit(ctx context.Context) error {
	return s.endTransaction(ctx, "commit")
}

// Rollback rolls back the session's transaction. Without a bound transaction
// it does nothing. The connection is closed and unbound even when the
// rollback fails; the failure is returned afterwards.
func (s *SimpleDB) Rollback(ctx context.Context) error {
	return s.endTransaction(ctx, "rollback")
}

func (s *SimpleDB) endTransaction(ctx context.Context, event string) (err error) {
	id, ok := SessionID(ctx)
	if !ok {
		return nil
	}
	s.mu.Lock()
	st := s.txs[id]
	delete(s.txs, id)
	s.mu.Unlock()
	if st == nil {
		return nil
	}

	_, span := startSpan(ctx, event, attrSession.String(id.String()))
	defer func() { endSpan(span, err) }()

	if event == "commit" {
		err = st.tx.Commit()
	} else {
		err = st.tx.Rollback()
	}
	if cerr := st.conn.Close(); cerr != nil {
		s.log.Warn("close transaction connection", "session", id, "err", cerr)
	}
	s.metrics.txEvent(event)
	s.log.Debug("transaction finished", "session", id, "event", event, "elapsed", time.Since(st.started), "err", err)
	return wrapDriver(event, err)
}

// WithTransaction runs fn inside a transaction. The transaction is committed
// when fn returns nil and rolled back when it returns an error or panics.
//
// Example:
//
//	err := db.WithTransaction(ctx, func(ctx context.Context) error {
//	    if _, err := db.GenSQL().Append("UPDATE account SET balance = balance - ?", 10).Update(ctx); err != nil {
//	        return err
//	    }
//	    _, err := db.GenSQL().Append("INSERT INTO ledger (amount) VALUES (?)", 10).Insert(ctx)
//	    return err
//	})
func (s *SimpleDB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	txCtx, err := s.StartTransaction(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = s.Rollback(txCtx)
			panic(p)
		}
		if err != nil {
			if rerr := s.Rollback(txCtx); rerr != nil {
				err = errors.Join(err, rerr)
			}
			return
		}
		err = s.Commit(txCtx)
	}()
	return fn(txCtx)
}
