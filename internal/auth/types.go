package auth

import "time"

// Account is a local identity record. PasswordHash never leaves the process.
type Account struct {
	ID           int64     `json:"user_id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Email        string    `json:"email"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RoleLink records that an account holds a role. Links are only ever inserted.
type RoleLink struct {
	AccountID int64     `json:"user_id"`
	RoleID    int64     `json:"role_id"`
	CreatedAt time.Time `json:"created_at"`
}

// FederatedIdentity binds an external provider subject to exactly one account.
type FederatedIdentity struct {
	AccountID       int64     `json:"user_id"`
	Provider        string    `json:"provider"`
	ProviderSubject string    `json:"provider_user_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// SignupRequest carries the inputs of a local signup.
type SignupRequest struct {
	Username string
	Password string
	Email    string
}

// FederatedSignupRequest carries the post-handshake inputs of a federated signup.
type FederatedSignupRequest struct {
	Provider        string
	ProviderSubject string
	Username        string
	Email           string
}

// Principal is the authenticated caller with the roles it currently holds.
type Principal struct {
	Account Account `json:"account"`
	RoleIDs []int64 `json:"role_ids"`
}
