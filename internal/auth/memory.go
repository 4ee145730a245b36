package auth

import (
	"context"
	"sort"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore implements Store in process memory. Transactions are serialized
// and applied to a copy of the state that replaces the original on commit.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
	now   func() time.Time
}

type memState struct {
	nextID     int64
	accounts   map[int64]Account
	byUsername map[string]int64
	byEmail    map[string]int64
	links      []RoleLink
	identities map[identityKey]FederatedIdentity
}

type identityKey struct {
	provider string
	subject  string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			accounts:   make(map[int64]Account),
			byUsername: make(map[string]int64),
			byEmail:    make(map[string]int64),
			identities: make(map[identityKey]FederatedIdentity),
		},
		now: time.Now,
	}
}

func (s *MemoryStore) Accounts(context.Context) AccountStore   { return memAccounts{s} }
func (s *MemoryStore) RoleLinks(context.Context) RoleLinkStore { return memRoleLinks{s} }
func (s *MemoryStore) FederatedIdentities(context.Context) FederatedIdentityStore {
	return memIdentities{s}
}

// WithTx runs fn on a snapshot. fn must use tx, not s, or it deadlocks.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &MemoryStore{state: s.state.clone(), now: s.now}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// Counts reports the number of stored accounts, role links and federated identities.
func (s *MemoryStore) Counts() (accounts, roleLinks, identities int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.accounts), len(s.state.links), len(s.state.identities)
}

func (st *memState) clone() *memState {
	out := &memState{
		nextID:     st.nextID,
		accounts:   make(map[int64]Account, len(st.accounts)),
		byUsername: make(map[string]int64, len(st.byUsername)),
		byEmail:    make(map[string]int64, len(st.byEmail)),
		links:      append([]RoleLink(nil), st.links...),
		identities: make(map[identityKey]FederatedIdentity, len(st.identities)),
	}
	for k, v := range st.accounts {
		out.accounts[k] = v
	}
	for k, v := range st.byUsername {
		out.byUsername[k] = v
	}
	for k, v := range st.byEmail {
		out.byEmail[k] = v
	}
	for k, v := range st.identities {
		out.identities[k] = v
	}
	return out
}

// Accounts -----------------------------------------------------------------
type memAccounts struct{ s *MemoryStore }

func (m memAccounts) find(id int64, ok bool) (*Account, error) {
	if !ok {
		return nil, ErrNotFound
	}
	a, found := m.s.state.accounts[id]
	if !found {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m memAccounts) FindByUsername(_ context.Context, username string) (*Account, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	id, ok := m.s.state.byUsername[username]
	return m.find(id, ok)
}

func (m memAccounts) FindByEmail(_ context.Context, email string) (*Account, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	id, ok := m.s.state.byEmail[email]
	return m.find(id, ok)
}

func (m memAccounts) FindByID(_ context.Context, id int64) (*Account, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.find(id, true)
}

func (m memAccounts) Insert(_ context.Context, a *Account) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	st := m.s.state
	if _, ok := st.byUsername[a.Username]; ok {
		return ErrUsernameTaken
	}
	if a.Email != "" {
		if _, ok := st.byEmail[a.Email]; ok {
			return ErrEmailTaken
		}
	}
	st.nextID++
	now := m.s.now().UTC()
	a.ID = st.nextID
	a.CreatedAt = now
	a.UpdatedAt = now
	st.accounts[a.ID] = *a
	st.byUsername[a.Username] = a.ID
	if a.Email != "" {
		st.byEmail[a.Email] = a.ID
	}
	return nil
}

func (m memAccounts) UpdatePassword(_ context.Context, id int64, passwordHash string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	a, ok := m.s.state.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.PasswordHash = passwordHash
	a.UpdatedAt = m.s.now().UTC()
	m.s.state.accounts[id] = a
	return nil
}

// Role links ---------------------------------------------------------------
type memRoleLinks struct{ s *MemoryStore }

func (m memRoleLinks) Insert(_ context.Context, link RoleLink) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	st := m.s.state
	if _, ok := st.accounts[link.AccountID]; !ok {
		return ErrNotFound
	}
	for _, l := range st.links {
		if l.AccountID == link.AccountID && l.RoleID == link.RoleID {
			return ErrConflict
		}
	}
	link.CreatedAt = m.s.now().UTC()
	st.links = append(st.links, link)
	return nil
}

func (m memRoleLinks) ListByAccount(_ context.Context, accountID int64) ([]RoleLink, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []RoleLink
	for _, l := range m.s.state.links {
		if l.AccountID == accountID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoleID < out[j].RoleID })
	return out, nil
}

// Federated identities -----------------------------------------------------
type memIdentities struct{ s *MemoryStore }

func (m memIdentities) Insert(_ context.Context, identity FederatedIdentity) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	st := m.s.state
	if _, ok := st.accounts[identity.AccountID]; !ok {
		return ErrNotFound
	}
	key := identityKey{provider: identity.Provider, subject: identity.ProviderSubject}
	if _, ok := st.identities[key]; ok {
		return ErrIdentityAlreadyLinked
	}
	identity.CreatedAt = m.s.now().UTC()
	st.identities[key] = identity
	return nil
}

func (m memIdentities) FindByProviderSubject(_ context.Context, provider, subject string) (*FederatedIdentity, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	identity, ok := m.s.state.identities[identityKey{provider: provider, subject: subject}]
	if !ok {
		return nil, ErrNotFound
	}
	return &identity, nil
}
