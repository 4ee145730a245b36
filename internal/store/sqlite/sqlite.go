// Package sqlite provides an embedded SQLite backend for the auth stores.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"authgate.dev/internal/auth"
	"authgate.dev/internal/store/sqlstore"
)

// Dialect adapts sqlstore to SQLite.
type Dialect struct{}

func (Dialect) Name() string { return "sqlite" }

func (Dialect) Rebind(query string) string { return sqlstore.RebindQuestion(query) }

// Classify resolves constraint failures. SQLite reports the violated columns
// ("UNIQUE constraint failed: users.username") instead of a constraint name.
func (Dialect) Classify(err error) error {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	switch sqliteErr.Code() {
	case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
		return sqlstore.ConstraintError(constraintFromMessage(sqliteErr.Error()))
	case sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY:
		return auth.ErrNotFound
	case sqlite3lib.SQLITE_CONSTRAINT:
		msg := strings.ToLower(sqliteErr.Error())
		switch {
		case strings.Contains(msg, "unique constraint failed"):
			return sqlstore.ConstraintError(constraintFromMessage(msg))
		case strings.Contains(msg, "foreign key constraint failed"):
			return auth.ErrNotFound
		}
		return err
	default:
		return err
	}
}

func constraintFromMessage(msg string) string {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "users.username"):
		return sqlstore.ConstraintUsername
	case strings.Contains(msg, "users.email"):
		return sqlstore.ConstraintEmail
	case strings.Contains(msg, "oauth2_users.provider"):
		return sqlstore.ConstraintIdentity
	case strings.Contains(msg, "user_roles."):
		return sqlstore.ConstraintRoleLink
	default:
		return ""
	}
}

// Open opens the database at dsn with foreign keys enforced.
func Open(dsn string, opts ...sqlstore.Option) (*sqlstore.Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("sqlite dsn is required")
	}
	db, err := sql.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite has a single writer, and a :memory: database lives on one connection.
	db.SetMaxOpenConns(1)
	return sqlstore.New(db, Dialect{}, opts...), nil
}

func withPragmas(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}
