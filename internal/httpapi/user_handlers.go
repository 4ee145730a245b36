package httpapi

import (
	"errors"
	"net/http"

	"authgate.dev/internal/audit"
	"authgate.dev/internal/auth"
)

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	accountID, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		respondAuthError(w, r, auth.ErrUnauthenticated)
		return
	}
	principal, err := a.auth.Principal(r.Context(), accountID)
	if err != nil {
		respondAuthError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "ok", principal)
}

func (a *API) handleUserByUsername(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	account, err := a.auth.AccountByUsername(r.Context(), r.PathValue("username"))
	if err != nil {
		respondAuthError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "ok", account)
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	accountID, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		respondAuthError(w, r, auth.ErrUnauthenticated)
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	err := a.auth.ChangePassword(r.Context(), accountID, req.CurrentPassword, req.NewPassword)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondFailure(w, http.StatusForbidden, "current password is incorrect")
		return
	case err != nil:
		respondAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.password.changed", nil)
	respondSuccess(w, http.StatusOK, "password changed", nil)
}
