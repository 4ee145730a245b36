package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"authgate.dev/internal/auth"
	"authgate.dev/internal/obs"
)

const serviceName = "authgate"

// ReadyProbe checks that the backing database answers.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// TokenVerifier resolves a bearer token to its subject.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// API is the HTTP layer.
type API struct {
	mux            *http.ServeMux
	readyProbe     ReadyProbe
	version        string
	auth           *auth.Service
	tokens         TokenVerifier
	maxBodyBytes   int64
	allowedOrigins []string
}

// Option configures API.
type Option func(*API)

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxBodyBytes = n
		}
	}
}

// WithAllowedOrigins sets the CORS origin allow-list. Local origins are
// allowed when the list is empty.
func WithAllowedOrigins(origins []string) Option {
	return func(a *API) {
		a.allowedOrigins = append([]string(nil), origins...)
	}
}

func New(rp ReadyProbe, version string, svc *auth.Service, tokens TokenVerifier, opts ...Option) *API {
	a := &API{
		mux:          http.NewServeMux(),
		readyProbe:   rp,
		version:      version,
		auth:         svc,
		tokens:       tokens,
		maxBodyBytes: 1 << 20,
	}
	for _, opt := range opts {
		opt(a)
	}

	// health/ready
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// auth
	a.mux.HandleFunc("/auth/signup", a.handleSignup)
	a.mux.HandleFunc("/auth/signin", a.handleSignin)
	a.mux.HandleFunc("/auth/oauth2/signup", a.handleFederatedSignup)

	// accounts
	a.mux.HandleFunc("/users/me", a.handleMe)
	a.mux.HandleFunc("/users/me/password", a.handleChangePassword)
	a.mux.HandleFunc("/users/{username}", a.handleUserByUsername)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		respondFailure(w, http.StatusNotFound, "not found")
	})

	return a
}

// Handler returns the fully wrapped http.Handler.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.requireIdentity(h)
	h = a.authenticate(h)
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = CORS(h, a.allowedOrigins)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.readyProbe.Check(ctx); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}
