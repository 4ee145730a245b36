package sqlite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"authgate.dev/internal/auth"
	"authgate.dev/internal/migrate"
	"authgate.dev/internal/store/sqlstore"
)

func openMigrated(t *testing.T) *sqlstore.Store {
	t.Helper()
	st, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	mgr, err := migrate.NewManager(st.DB(), "sqlite")
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, mgr.Up(ctx))
	require.NoError(t, mgr.Seed(ctx))
	return st
}

func newService(t *testing.T, st auth.Store, opts ...auth.ServiceOption) *auth.Service {
	t.Helper()
	hasher, err := auth.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	tokens, err := auth.NewTokenService("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	opts = append(opts, auth.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	svc, err := auth.NewService(st, hasher, tokens, opts...)
	require.NoError(t, err)
	return svc
}

func TestSignupAndSigninAgainstSQLite(t *testing.T) {
	st := openMigrated(t)
	svc := newService(t, st)
	ctx := context.Background()

	acc, err := svc.Signup(ctx, auth.SignupRequest{Username: "alice", Password: "pw-alice", Email: "alice@example.com"})
	require.NoError(t, err)
	require.Positive(t, acc.ID)

	principal, err := svc.Principal(ctx, acc.ID)
	require.NoError(t, err)
	require.Equal(t, []int64{auth.DefaultRoleID}, principal.RoleIDs)
	require.False(t, principal.Account.CreatedAt.IsZero())

	tok, err := svc.Signin(ctx, "alice", "pw-alice")
	require.NoError(t, err)
	require.NotEmpty(t, tok.Token)

	_, err = svc.Signup(ctx, auth.SignupRequest{Username: "alice2", Password: "pw", Email: "alice@example.com"})
	require.ErrorIs(t, err, auth.ErrEmailTaken)
}

func TestConstraintViolationsAreClassified(t *testing.T) {
	st := openMigrated(t)
	ctx := context.Background()
	accounts := st.Accounts(ctx)

	first := &auth.Account{Username: "bob", PasswordHash: "h", Email: "bob@example.com"}
	require.NoError(t, accounts.Insert(ctx, first))

	err := accounts.Insert(ctx, &auth.Account{Username: "bob", PasswordHash: "h", Email: "other@example.com"})
	require.ErrorIs(t, err, auth.ErrUsernameTaken)

	err = accounts.Insert(ctx, &auth.Account{Username: "bobby", PasswordHash: "h", Email: "bob@example.com"})
	require.ErrorIs(t, err, auth.ErrEmailTaken)

	identities := st.FederatedIdentities(ctx)
	require.NoError(t, identities.Insert(ctx, auth.FederatedIdentity{AccountID: first.ID, Provider: "kakao", ProviderSubject: "k-1"}))
	err = identities.Insert(ctx, auth.FederatedIdentity{AccountID: first.ID, Provider: "kakao", ProviderSubject: "k-1"})
	require.ErrorIs(t, err, auth.ErrIdentityAlreadyLinked)

	err = st.RoleLinks(ctx).Insert(ctx, auth.RoleLink{AccountID: first.ID, RoleID: 99})
	require.ErrorIs(t, err, auth.ErrNotFound)
}

func TestSignupWithMissingRoleRollsBack(t *testing.T) {
	st := openMigrated(t)
	svc := newService(t, st, auth.WithDefaultRole(42))
	ctx := context.Background()

	_, err := svc.Signup(ctx, auth.SignupRequest{Username: "carol", Password: "pw", Email: "carol@example.com"})
	require.ErrorIs(t, err, auth.ErrSignupIncomplete)

	_, err = st.Accounts(ctx).FindByUsername(ctx, "carol")
	require.True(t, errors.Is(err, auth.ErrNotFound), "account row must be rolled back, got %v", err)
}

func TestFederatedSignupAgainstSQLite(t *testing.T) {
	st := openMigrated(t)
	svc := newService(t, st)
	ctx := context.Background()

	acc, err := svc.FederatedSignup(ctx, auth.FederatedSignupRequest{
		Provider: "kakao", ProviderSubject: "k-7", Username: "kuser", Email: "kuser@example.com",
	})
	require.NoError(t, err)

	identity, err := st.FederatedIdentities(ctx).FindByProviderSubject(ctx, "kakao", "k-7")
	require.NoError(t, err)
	require.Equal(t, acc.ID, identity.AccountID)

	_, err = svc.FederatedSignup(ctx, auth.FederatedSignupRequest{
		Provider: "kakao", ProviderSubject: "k-7", Username: "kuser2", Email: "kuser2@example.com",
	})
	require.ErrorIs(t, err, auth.ErrIdentityAlreadyLinked)

	_, err = st.Accounts(ctx).FindByUsername(ctx, "kuser2")
	require.ErrorIs(t, err, auth.ErrNotFound)
}

func TestWithPragmas(t *testing.T) {
	require.Equal(t, "auth.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", withPragmas("auth.db"))
	require.Equal(t, "file:auth.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", withPragmas("file:auth.db?mode=rwc"))
	require.Equal(t, "x.db?_pragma=foreign_keys(0)", withPragmas("x.db?_pragma=foreign_keys(0)"))
}
