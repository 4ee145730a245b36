package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"authgate.dev/internal/obs"
)

const tracerName = "authgate.dev/internal/auth"

// PasswordHasher is the credential primitive used by Service.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) (bool, error)
	Unusable() string
}

// TokenIssuer mints tokens for a subject using its configured lifetime.
type TokenIssuer interface {
	IssueFor(subject string) (string, time.Time, error)
}

// IssuedToken is the only artifact of a successful signin.
type IssuedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service coordinates signup, signin and federated signup over the stores.
type Service struct {
	store         Store
	hasher        PasswordHasher
	tokens        TokenIssuer
	defaultRoleID int64
	logger        *slog.Logger
	tracer        trace.Tracer

	decoyOnce sync.Once
	decoyHash string
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithDefaultRole overrides the role linked to every new account.
func WithDefaultRole(roleID int64) ServiceOption {
	return func(s *Service) error {
		if roleID <= 0 {
			return fmt.Errorf("%w: default role id must be positive", ErrInvalidInput)
		}
		s.defaultRoleID = roleID
		return nil
	}
}

// WithLogger overrides the logger used for persistence faults.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) error {
		if l != nil {
			s.logger = l
		}
		return nil
	}
}

// NewService constructs Service.
func NewService(store Store, hasher PasswordHasher, tokens TokenIssuer, opts ...ServiceOption) (*Service, error) {
	if store == nil || hasher == nil || tokens == nil {
		return nil, errors.New("auth: store, hasher and token issuer are required")
	}
	svc := &Service{
		store:         store,
		hasher:        hasher,
		tokens:        tokens,
		defaultRoleID: DefaultRoleID,
		logger:        obs.Logger(),
		tracer:        otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// DefaultRole returns the role id linked on signup.
func (s *Service) DefaultRole() int64 { return s.defaultRoleID }

// Signup creates an account and its default role link in one transaction.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (acc Account, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.Signup")
	defer func() { endSpan(span, err) }()

	username := strings.TrimSpace(req.Username)
	email := normalizeEmail(req.Email)
	if username == "" || req.Password == "" || email == "" {
		return Account{}, fmt.Errorf("%w: username, password and email are required", ErrInvalidInput)
	}

	if err := s.ensureUsernameFree(ctx, username); err != nil {
		return Account{}, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			return Account{}, err
		}
		return Account{}, s.fault(ctx, "hash password", err)
	}

	account := Account{Username: username, PasswordHash: hash, Email: email}
	err = s.store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		if err := s.insertAccount(ctx, tx, &account); err != nil {
			return err
		}
		return s.linkDefaultRole(ctx, tx, account.ID)
	})
	if err != nil {
		return Account{}, s.translateWriteError(ctx, "signup", err)
	}
	span.SetAttributes(attribute.Int64("auth.account_id", account.ID))
	return account.public(), nil
}

// Signin verifies credentials and issues a token whose subject is the account id.
// An unknown username and a wrong password both yield ErrInvalidCredentials.
func (s *Service) Signin(ctx context.Context, username, password string) (tok IssuedToken, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.Signin")
	defer func() { endSpan(span, err) }()

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return IssuedToken{}, ErrInvalidCredentials
	}

	account, err := s.store.Accounts(ctx).FindByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		s.burnVerify(password)
		return IssuedToken{}, ErrInvalidCredentials
	}
	if err != nil {
		return IssuedToken{}, s.fault(ctx, "lookup account", err)
	}

	ok, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		return IssuedToken{}, s.fault(ctx, "verify password", err)
	}
	if !ok {
		return IssuedToken{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.IssueFor(FormatSubject(account.ID))
	if err != nil {
		return IssuedToken{}, s.fault(ctx, "issue token", err)
	}
	span.SetAttributes(attribute.Int64("auth.account_id", account.ID))
	return IssuedToken{Token: token, ExpiresAt: expiresAt}, nil
}

// FederatedSignup registers an account for an external identity and links it.
// It does not authenticate the caller: no token is issued.
func (s *Service) FederatedSignup(ctx context.Context, req FederatedSignupRequest) (acc Account, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.FederatedSignup",
		trace.WithAttributes(attribute.String("auth.provider", req.Provider)))
	defer func() { endSpan(span, err) }()

	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	subject := strings.TrimSpace(req.ProviderSubject)
	username := strings.TrimSpace(req.Username)
	email := normalizeEmail(req.Email)
	if provider == "" || subject == "" || username == "" || email == "" {
		return Account{}, fmt.Errorf("%w: provider, provider subject, username and email are required", ErrInvalidInput)
	}

	_, err = s.store.Accounts(ctx).FindByEmail(ctx, email)
	switch {
	case err == nil:
		return Account{}, ErrEmailTaken
	case !errors.Is(err, ErrNotFound):
		return Account{}, s.fault(ctx, "lookup account by email", err)
	}
	if err := s.ensureUsernameFree(ctx, username); err != nil {
		return Account{}, err
	}
	_, err = s.store.FederatedIdentities(ctx).FindByProviderSubject(ctx, provider, subject)
	switch {
	case err == nil:
		return Account{}, ErrIdentityAlreadyLinked
	case !errors.Is(err, ErrNotFound):
		return Account{}, s.fault(ctx, "lookup federated identity", err)
	}

	account := Account{Username: username, PasswordHash: s.hasher.Unusable(), Email: email}
	err = s.store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		if err := s.insertAccount(ctx, tx, &account); err != nil {
			return err
		}
		if err := s.linkDefaultRole(ctx, tx, account.ID); err != nil {
			return err
		}
		err := tx.FederatedIdentities(ctx).Insert(ctx, FederatedIdentity{
			AccountID:       account.ID,
			Provider:        provider,
			ProviderSubject: subject,
		})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrIdentityAlreadyLinked), errors.Is(err, ErrConflict):
			return ErrIdentityAlreadyLinked
		default:
			return fmt.Errorf("%w: link %s identity: %v", ErrSignupIncomplete, provider, err)
		}
	})
	if err != nil {
		return Account{}, s.translateWriteError(ctx, "federated signup", err)
	}
	span.SetAttributes(attribute.Int64("auth.account_id", account.ID))
	return account.public(), nil
}

// AccountByUsername looks up a single account.
func (s *Service) AccountByUsername(ctx context.Context, username string) (Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return Account{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	account, err := s.store.Accounts(ctx).FindByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, s.fault(ctx, "lookup account", err)
	}
	return account.public(), nil
}

// Principal loads the account behind accountID with the roles it holds.
func (s *Service) Principal(ctx context.Context, accountID int64) (Principal, error) {
	account, err := s.store.Accounts(ctx).FindByID(ctx, accountID)
	if errors.Is(err, ErrNotFound) {
		return Principal{}, ErrNotFound
	}
	if err != nil {
		return Principal{}, s.fault(ctx, "lookup account", err)
	}
	links, err := s.store.RoleLinks(ctx).ListByAccount(ctx, accountID)
	if err != nil {
		return Principal{}, s.fault(ctx, "list role links", err)
	}
	return Principal{Account: account.public(), RoleIDs: RoleIDs(links)}, nil
}

// ChangePassword replaces the password of accountID after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, accountID int64, current, next string) (err error) {
	ctx, span := s.tracer.Start(ctx, "auth.ChangePassword")
	defer func() { endSpan(span, err) }()

	if next == "" {
		return fmt.Errorf("%w: new password is required", ErrInvalidInput)
	}
	account, err := s.store.Accounts(ctx).FindByID(ctx, accountID)
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return s.fault(ctx, "lookup account", err)
	}
	ok, err := s.hasher.Verify(current, account.PasswordHash)
	if err != nil {
		return s.fault(ctx, "verify password", err)
	}
	if !ok {
		return ErrInvalidCredentials
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			return err
		}
		return s.fault(ctx, "hash password", err)
	}
	if err := s.store.Accounts(ctx).UpdatePassword(ctx, accountID, hash); err != nil {
		return s.fault(ctx, "update password", err)
	}
	return nil
}

func (s *Service) ensureUsernameFree(ctx context.Context, username string) error {
	_, err := s.store.Accounts(ctx).FindByUsername(ctx, username)
	switch {
	case err == nil:
		return ErrUsernameTaken
	case errors.Is(err, ErrNotFound):
		return nil
	default:
		return s.fault(ctx, "lookup account", err)
	}
}

// insertAccount maps a bare uniqueness violation to ErrUsernameTaken: the
// pre-check already passed, so a concurrent signup won the race.
func (s *Service) insertAccount(ctx context.Context, tx Store, account *Account) error {
	err := tx.Accounts(ctx).Insert(ctx, account)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrValidationConflict):
		return err
	case errors.Is(err, ErrConflict):
		return ErrUsernameTaken
	default:
		return fmt.Errorf("insert account: %w", err)
	}
}

func (s *Service) linkDefaultRole(ctx context.Context, tx Store, accountID int64) error {
	err := tx.RoleLinks(ctx).Insert(ctx, RoleLink{AccountID: accountID, RoleID: s.defaultRoleID})
	if err != nil {
		return fmt.Errorf("%w: link default role: %v", ErrSignupIncomplete, err)
	}
	return nil
}

func (s *Service) translateWriteError(ctx context.Context, op string, err error) error {
	if errors.Is(err, ErrValidationConflict) {
		return err
	}
	if errors.Is(err, ErrSignupIncomplete) {
		s.logger.ErrorContext(ctx, "signup rolled back", "op", op, "error", err)
		return err
	}
	return s.fault(ctx, op, err)
}

// fault logs a persistence or crypto failure and wraps it for the caller.
func (s *Service) fault(ctx context.Context, op string, err error) error {
	s.logger.ErrorContext(ctx, "auth operation failed", "op", op, "error", err)
	return fmt.Errorf("%s: %w", op, err)
}

// burnVerify spends one hash comparison so unknown usernames cost the same as
// wrong passwords.
func (s *Service) burnVerify(password string) {
	s.decoyOnce.Do(func() {
		hash, err := s.hasher.Hash("decoy-password")
		if err == nil {
			s.decoyHash = hash
		}
	})
	if s.decoyHash != "" {
		_, _ = s.hasher.Verify(password, s.decoyHash)
	}
}

func (a Account) public() Account {
	a.PasswordHash = ""
	return a
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
