package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"authgate.dev/internal/auth"
)

type seenIdentity struct {
	called    bool
	accountID int64
	ok        bool
}

func (s *seenIdentity) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.called = true
		s.accountID, s.ok = auth.SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func newFilterAPI(t *testing.T, opts ...auth.TokenOption) (*API, *auth.TokenService) {
	t.Helper()
	tokens, err := auth.NewTokenService(testSecret, opts...)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return &API{tokens: tokens}, tokens
}

func TestAuthenticateResolvesSubject(t *testing.T) {
	api, tokens := newFilterAPI(t)
	token, _, err := tokens.IssueFor(auth.FormatSubject(42))
	if err != nil {
		t.Fatalf("IssueFor: %v", err)
	}

	var seen seenIdentity
	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "bearer "+token)
	rr := httptest.NewRecorder()
	api.authenticate(seen.handler()).ServeHTTP(rr, req)

	if !seen.called || !seen.ok || seen.accountID != 42 {
		t.Fatalf("expected subject 42, got %+v", seen)
	}
}

func TestAuthenticateNeverRejects(t *testing.T) {
	now := time.Now()
	api, tokens := newFilterAPI(t, auth.WithTokenClock(func() time.Time { return now }))
	expired, err := tokens.Issue("42", now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	nonNumeric, err := tokens.Issue("alice", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	for name, header := range map[string]string{
		"missing":     "",
		"scheme":      "Token abc",
		"empty":       "Bearer ",
		"malformed":   "Bearer abc",
		"expired":     "Bearer " + expired,
		"bad subject": "Bearer " + nonNumeric,
	} {
		t.Run(name, func(t *testing.T) {
			var seen seenIdentity
			req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rr := httptest.NewRecorder()
			api.authenticate(seen.handler()).ServeHTTP(rr, req)

			if !seen.called {
				t.Fatal("filter must pass the request on")
			}
			if seen.ok {
				t.Fatalf("expected anonymous request, got subject %d", seen.accountID)
			}
			if rr.Code != http.StatusOK {
				t.Fatalf("unexpected status %d", rr.Code)
			}
		})
	}
}

func TestRequireIdentityPolicy(t *testing.T) {
	api := &API{}

	cases := []struct {
		name   string
		method string
		path   string
		id     int64
		want   int
	}{
		{"signup public", http.MethodPost, "/auth/signup", 0, http.StatusOK},
		{"signin public", http.MethodPost, "/auth/signin", 0, http.StatusOK},
		{"oauth2 signup anonymous", http.MethodPost, "/auth/oauth2/signup", 0, http.StatusUnauthorized},
		{"oauth2 signup with identity", http.MethodPost, "/auth/oauth2/signup", 7, http.StatusOK},
		{"preflight", http.MethodOptions, "/users/me", 0, http.StatusOK},
		{"protected anonymous", http.MethodGet, "/users/me", 0, http.StatusUnauthorized},
		{"unknown path anonymous", http.MethodGet, "/admin", 0, http.StatusUnauthorized},
		{"protected with identity", http.MethodGet, "/users/me", 7, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seen seenIdentity
			req := httptest.NewRequest(tc.method, tc.path, nil)
			req = req.WithContext(auth.ContextWithSubject(req.Context(), tc.id))
			rr := httptest.NewRecorder()
			api.requireIdentity(seen.handler()).ServeHTTP(rr, req)

			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rr.Code)
			}
			if tc.want == http.StatusUnauthorized {
				if seen.called {
					t.Fatal("handler must not run for rejected requests")
				}
				if rr.Header().Get("WWW-Authenticate") == "" {
					t.Fatal("expected WWW-Authenticate header")
				}
			}
		})
	}
}

func TestExtractBearerToken(t *testing.T) {
	if tok, err := extractBearerToken("Bearer abc.def.ghi"); err != nil || tok != "abc.def.ghi" {
		t.Fatalf("unexpected result %q %v", tok, err)
	}
	for _, header := range []string{"", "Bearer", "Basic abc", "Bearer    "} {
		if _, err := extractBearerToken(header); err == nil {
			t.Fatalf("expected error for %q", header)
		}
	}
}
