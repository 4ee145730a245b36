// Package sqlstore implements the auth store contracts on database/sql.
// Engine differences (placeholders, constraint errors) live behind Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"authgate.dev/internal/auth"
)

// DBTX is the subset of database/sql used by the stores. Both *sql.DB and
// *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Dialect adapts queries and driver errors to one SQL engine.
type Dialect interface {
	Name() string
	// Rebind rewrites $N placeholders for the engine.
	Rebind(query string) string
	// Classify maps a driver error onto the auth error taxonomy. Errors it does
	// not recognise are returned unchanged.
	Classify(err error) error
}

// Store is a database-backed auth.Store.
type Store struct {
	db      *sql.DB
	conn    DBTX
	dialect Dialect
	now     func() time.Time
	inTx    bool
}

var _ auth.Store = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(fn func() time.Time) Option {
	return func(s *Store) {
		if fn != nil {
			s.now = fn
		}
	}
}

// New wraps db using dialect d.
func New(db *sql.DB, d Dialect, opts ...Option) *Store {
	s := &Store{db: db, conn: db, dialect: d, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB exposes the underlying pool for probes and migrations.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the engine adapter.
func (s *Store) Dialect() Dialect { return s.dialect }

// Close releases the pool.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Accounts(context.Context) auth.AccountStore   { return accounts{s} }
func (s *Store) RoleLinks(context.Context) auth.RoleLinkStore { return roleLinks{s} }
func (s *Store) FederatedIdentities(context.Context) auth.FederatedIdentityStore {
	return identities{s}
}

// WithTx commits when fn returns nil and rolls back on error or panic.
// Nested calls join the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx auth.Store) error) (err error) {
	if s.inTx {
		return fn(ctx, s)
	}
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	view := &Store{db: s.db, conn: tx, dialect: s.dialect, now: s.now, inTx: true}
	err = fn(ctx, view)
	return err
}

func (s *Store) q(query string) string { return s.dialect.Rebind(query) }

func (s *Store) timestamp() time.Time { return s.now().UTC() }
