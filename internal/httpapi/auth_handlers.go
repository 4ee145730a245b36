package httpapi

import (
	"net/http"

	"authgate.dev/internal/audit"
	"authgate.dev/internal/auth"
	"authgate.dev/internal/obs"
)

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		obs.ObserveAuth("signup", "invalid_input")
		respondFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	account, err := a.auth.Signup(r.Context(), auth.SignupRequest{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
	})
	obs.ObserveAuth("signup", outcome(err))
	if err != nil {
		respondAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(auth.ContextWithSubject(r.Context(), account.ID), "auth.signup", map[string]any{
		"username": account.Username,
		"role_id":  a.auth.DefaultRole(),
	})
	respondSuccess(w, http.StatusOK, "signup completed", account)
}

func (a *API) handleSignin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req signinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		obs.ObserveAuth("signin", "invalid_input")
		respondFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	tok, err := a.auth.Signin(r.Context(), req.Username, req.Password)
	obs.ObserveAuth("signin", outcome(err))
	if err != nil {
		_ = audit.LogEvent(r.Context(), "auth.signin.failed", map[string]any{
			"username": req.Username,
			"reason":   outcome(err),
		})
		respondAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.signin", map[string]any{
		"username":   req.Username,
		"expires_at": tok.ExpiresAt,
	})
	respondSuccess(w, http.StatusOK, "signin completed", tok.Token)
}

// handleFederatedSignup registers the account behind a completed provider
// handshake. The caller still has to sign in afterwards.
func (a *API) handleFederatedSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req federatedSignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		obs.ObserveAuth("oauth2_signup", "invalid_input")
		respondFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	account, err := a.auth.FederatedSignup(r.Context(), auth.FederatedSignupRequest{
		Provider:        req.Provider,
		ProviderSubject: req.ProviderUserID,
		Username:        req.Username,
		Email:           req.Email,
	})
	obs.ObserveAuth("oauth2_signup", outcome(err))
	if err != nil {
		respondAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.oauth2.signup", map[string]any{
		"account_id": account.ID,
		"username":   account.Username,
		"provider":   req.Provider,
	})
	respondSuccess(w, http.StatusOK, "oauth2 signup completed", nil)
}
