package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"authgate.dev/internal/auth"
)

type accounts struct{ s *Store }

const accountColumns = `id, username, password, email, created_at, updated_at`

func (a accounts) FindByUsername(ctx context.Context, username string) (*auth.Account, error) {
	return a.findOne(ctx, `select `+accountColumns+` from users where username = $1`, username)
}

func (a accounts) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	return a.findOne(ctx, `select `+accountColumns+` from users where email = $1`, email)
}

func (a accounts) FindByID(ctx context.Context, id int64) (*auth.Account, error) {
	return a.findOne(ctx, `select `+accountColumns+` from users where id = $1`, id)
}

func (a accounts) findOne(ctx context.Context, query string, arg any) (*auth.Account, error) {
	var (
		acc       auth.Account
		email     sql.NullString
		createdAt dbTime
		updatedAt dbTime
	)
	err := a.s.conn.QueryRowContext(ctx, a.s.q(query), arg).
		Scan(&acc.ID, &acc.Username, &acc.PasswordHash, &email, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select account: %w", err)
	}
	acc.Email = email.String
	acc.CreatedAt = createdAt.Time
	acc.UpdatedAt = updatedAt.Time
	return &acc, nil
}

func (a accounts) Insert(ctx context.Context, acc *auth.Account) error {
	now := a.s.timestamp()
	var id int64
	err := a.s.conn.QueryRowContext(ctx, a.s.q(`
		insert into users (username, password, email, created_at, updated_at)
		values ($1, $2, $3, $4, $5)
		returning id
	`), acc.Username, acc.PasswordHash, nullIfEmpty(acc.Email), now, now).Scan(&id)
	if err != nil {
		return a.s.classify("insert account", err)
	}
	acc.ID = id
	acc.CreatedAt = now
	acc.UpdatedAt = now
	return nil
}

func (a accounts) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := a.s.conn.ExecContext(ctx, a.s.q(`
		update users set password = $1, updated_at = $2 where id = $3
	`), passwordHash, a.s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// classify passes recognised constraint failures through untouched so callers
// can match them with errors.Is.
func (s *Store) classify(op string, err error) error {
	mapped := s.dialect.Classify(err)
	if mapped != err {
		return mapped
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullIfEmpty(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
