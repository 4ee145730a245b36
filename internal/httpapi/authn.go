package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"authgate.dev/internal/auth"
	"authgate.dev/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// publicPaths may be reached without a resolved identity. Federated signup is
// not listed: nothing verifies the provider assertion, so an anonymous caller
// could claim any (provider, provider_user_id).
var publicPaths = []string{
	"/auth/signup",
	"/auth/signin",
	"/metrics",
	"/healthz",
	"/readyz",
}

// authenticate resolves the caller from a bearer token. It never rejects:
// a missing or bad token leaves the request anonymous and requireIdentity
// decides what anonymous callers may reach.
func (a *API) authenticate(next http.Handler) http.Handler {
	if a == nil || a.tokens == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(authHeader)
		if strings.TrimSpace(header) == "" {
			obs.ObserveToken("anonymous")
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(header)
		if err != nil {
			a.rejectToken(r, "malformed", err)
			next.ServeHTTP(w, r)
			return
		}

		subject, err := a.tokens.Verify(token)
		if err != nil {
			a.rejectToken(r, tokenResult(err), err)
			next.ServeHTTP(w, r)
			return
		}
		accountID, err := auth.ParseSubject(subject)
		if err != nil {
			a.rejectToken(r, tokenResult(err), err)
			next.ServeHTTP(w, r)
			return
		}

		obs.ObserveToken("ok")
		next.ServeHTTP(w, r.WithContext(auth.ContextWithSubject(r.Context(), accountID)))
	})
}

func (a *API) rejectToken(r *http.Request, result string, err error) {
	obs.ObserveToken(result)
	obs.Logger().LogAttrs(r.Context(), slog.LevelDebug, "token_rejected",
		slog.String("request_id", RequestIDFromContext(r.Context())),
		slog.String("result", result),
		slog.String("error", err.Error()),
	)
}

// requireIdentity is the endpoint policy: public paths pass, everything else
// needs the identity resolved by authenticate.
func (a *API) requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if _, ok := auth.SubjectFromContext(r.Context()); !ok {
			respondAuthError(w, r, auth.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func tokenResult(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "expired"
	case errors.Is(err, auth.ErrTokenMalformed):
		return "malformed"
	case auth.IsTokenError(err):
		return "invalid"
	default:
		return "error"
	}
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	path = strings.TrimRight(path, "/")
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
