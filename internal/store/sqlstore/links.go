package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"authgate.dev/internal/auth"
)

type roleLinks struct{ s *Store }

func (r roleLinks) Insert(ctx context.Context, link auth.RoleLink) error {
	_, err := r.s.conn.ExecContext(ctx, r.s.q(`
		insert into user_roles (user_id, role_id, created_at)
		values ($1, $2, $3)
	`), link.AccountID, link.RoleID, r.s.timestamp())
	if err != nil {
		return r.s.classify("insert role link", err)
	}
	return nil
}

func (r roleLinks) ListByAccount(ctx context.Context, accountID int64) ([]auth.RoleLink, error) {
	rows, err := r.s.conn.QueryContext(ctx, r.s.q(`
		select user_id, role_id, created_at
		from user_roles
		where user_id = $1
		order by role_id
	`), accountID)
	if err != nil {
		return nil, fmt.Errorf("list role links: %w", err)
	}
	defer rows.Close()

	var out []auth.RoleLink
	for rows.Next() {
		var (
			link      auth.RoleLink
			createdAt dbTime
		)
		if err := rows.Scan(&link.AccountID, &link.RoleID, &createdAt); err != nil {
			return nil, err
		}
		link.CreatedAt = createdAt.Time
		out = append(out, link)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type identities struct{ s *Store }

func (i identities) Insert(ctx context.Context, identity auth.FederatedIdentity) error {
	_, err := i.s.conn.ExecContext(ctx, i.s.q(`
		insert into oauth2_users (user_id, provider, provider_user_id, created_at)
		values ($1, $2, $3, $4)
	`), identity.AccountID, identity.Provider, identity.ProviderSubject, i.s.timestamp())
	if err != nil {
		return i.s.classify("insert federated identity", err)
	}
	return nil
}

func (i identities) FindByProviderSubject(ctx context.Context, provider, subject string) (*auth.FederatedIdentity, error) {
	var (
		identity  auth.FederatedIdentity
		createdAt dbTime
	)
	err := i.s.conn.QueryRowContext(ctx, i.s.q(`
		select user_id, provider, provider_user_id, created_at
		from oauth2_users
		where provider = $1 and provider_user_id = $2
	`), provider, subject).Scan(&identity.AccountID, &identity.Provider, &identity.ProviderSubject, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select federated identity: %w", err)
	}
	identity.CreatedAt = createdAt.Time
	return &identity, nil
}
