package auth

import "context"

// Store describes persistence operations required by the auth subsystem.
type Store interface {
	Accounts(ctx context.Context) AccountStore
	RoleLinks(ctx context.Context) RoleLinkStore
	FederatedIdentities(ctx context.Context) FederatedIdentityStore

	// WithTx runs fn against a transactional view of the store. The view is
	// committed when fn returns nil and rolled back otherwise.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// AccountStore manages accounts. Finders return ErrNotFound when nothing matches.
// Insert assigns ID and timestamps and returns ErrUsernameTaken, ErrEmailTaken or
// ErrConflict when a uniqueness constraint rejects the row.
type AccountStore interface {
	FindByUsername(ctx context.Context, username string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id int64) (*Account, error)
	Insert(ctx context.Context, a *Account) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

// RoleLinkStore appends role links.
type RoleLinkStore interface {
	Insert(ctx context.Context, link RoleLink) error
	ListByAccount(ctx context.Context, accountID int64) ([]RoleLink, error)
}

// FederatedIdentityStore links external identities to accounts.
type FederatedIdentityStore interface {
	Insert(ctx context.Context, identity FederatedIdentity) error
	FindByProviderSubject(ctx context.Context, provider, subject string) (*FederatedIdentity, error)
}
