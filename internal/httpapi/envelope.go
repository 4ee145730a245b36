package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"authgate.dev/internal/auth"
	"authgate.dev/internal/obs"
)

const (
	statusSuccess = "success"
	statusFailed  = "failed"

	msgInternal       = "internal error"
	msgUnauthorized   = "authentication required"
	msgBadCredentials = "invalid username or password"
)

// envelope is the body of every auth and account response.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func respondSuccess(w http.ResponseWriter, code int, message string, data any) {
	writeJSON(w, code, envelope{Status: statusSuccess, Message: message, Data: data})
}

func respondFailure(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, envelope{Status: statusFailed, Message: message})
}

// respondAuthError translates service errors into failure envelopes. Anything
// unrecognised is logged and reported as an internal error.
func respondAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrUsernameTaken):
		respondFailure(w, http.StatusConflict, "username already in use")
	case errors.Is(err, auth.ErrEmailTaken):
		respondFailure(w, http.StatusConflict, "email already in use")
	case errors.Is(err, auth.ErrIdentityAlreadyLinked):
		respondFailure(w, http.StatusConflict, "external identity already linked")
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondFailure(w, http.StatusUnauthorized, msgBadCredentials)
	case errors.Is(err, auth.ErrUnauthenticated):
		w.Header().Set("WWW-Authenticate", `Bearer realm="`+serviceName+`"`)
		respondFailure(w, http.StatusUnauthorized, msgUnauthorized)
	case errors.Is(err, auth.ErrNotFound):
		respondFailure(w, http.StatusNotFound, "account not found")
	case errors.Is(err, auth.ErrInvalidInput):
		respondFailure(w, http.StatusBadRequest, "invalid input")
	default:
		obs.LogRequest(r.Context(), "request_failed",
			slog.String("request_id", RequestIDFromContext(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		respondFailure(w, http.StatusInternalServerError, msgInternal)
	}
}

// outcome labels an orchestrator error for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, auth.ErrValidationConflict):
		return "conflict"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, auth.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, auth.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		case errors.Is(err, io.EOF):
			return errors.New("request body is required")
		default:
			return fmt.Errorf("invalid JSON: %v", err)
		}
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	respondFailure(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
