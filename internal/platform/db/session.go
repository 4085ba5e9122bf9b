package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/uptrace/bun"
)

// Session is the per-request persistence handle. All repository calls made
// while serving one request share the same session, so a single transaction
// spans the whole request and is committed or rolled back at its boundary.
type Session struct {
	db     *bun.DB
	tx     bun.Tx
	active bool
}

// NewSession constructs a session bound to db. No transaction is open until
// Begin is called; until then statements execute in driver autocommit mode.
func NewSession(db *bun.DB) *Session {
	return &Session{db: db}
}

// Begin opens the session transaction.
func (s *Session) Begin(ctx context.Context) error {
	if s.active {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("platform/db: begin: %w", err)
	}
	s.tx = tx
	s.active = true
	return nil
}

// IDB returns the query target: the open transaction when one is active,
// otherwise the underlying database.
func (s *Session) IDB() bun.IDB {
	if s.active {
		return s.tx
	}
	return s.db
}

// InTx reports whether a transaction is currently open.
func (s *Session) InTx() bool {
	return s.active
}

// Commit commits the open transaction. It is a no-op when no transaction is
// active; a later Begin starts a fresh one.
func (s *Session) Commit() error {
	if !s.active {
		return nil
	}
	s.active = false
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("platform/db: commit: %w", err)
	}
	return nil
}

// Rollback discards the open transaction. No-op without one.
func (s *Session) Rollback() error {
	if !s.active {
		return nil
	}
	s.active = false
	if err := s.tx.Rollback(); err != nil {
		return fmt.Errorf("platform/db: rollback: %w", err)
	}
	return nil
}

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

type statusWriter struct {
	http.ResponseWriter
	status        int
	headerWritten bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.headerWritten {
		w.headerWritten = true
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(data []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}

// TransactionMiddleware opens one session transaction per inbound request.
// The transaction is committed after the handler returns unless the response
// status indicates a server error or the handler panicked, in which case all
// writes made during the request are rolled back.
func TransactionMiddleware(bdb *bun.DB, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := NewSession(bdb)
			if err := sess.Begin(r.Context()); err != nil {
				logger.Error("begin request transaction", slog.Any("error", err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			ctx := ContextWithSession(r.Context(), sess)
			wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			defer func() {
				if rec := recover(); rec != nil {
					_ = sess.Rollback()
					panic(rec)
				}
			}()

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			if wrapped.status >= http.StatusInternalServerError {
				if err := sess.Rollback(); err != nil {
					logger.Error("rollback request transaction", slog.Any("error", err))
				}
				return
			}
			if err := sess.Commit(); err != nil {
				logger.Error("commit request transaction", slog.Any("error", err))
			}
		})
	}
}
