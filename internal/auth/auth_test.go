package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestTokens(t *testing.T, opts ...TokenOption) *TokenService {
	t.Helper()
	svc, err := NewTokenService(testSecret, opts...)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return svc
}

func TestTokenIssueAndVerify(t *testing.T) {
	svc := newTestTokens(t, WithTokenIssuer("test-issuer"), WithTokenTTL(30*time.Minute))

	token, expiresAt, err := svc.IssueFor("42")
	if err != nil {
		t.Fatalf("IssueFor: %v", err)
	}
	if time.Until(expiresAt) <= 0 || time.Until(expiresAt) > 30*time.Minute {
		t.Fatalf("unexpected expiry %v", expiresAt)
	}
	if strings.Count(token, ".") != 2 {
		t.Fatalf("expected compact three-part token, got %q", token)
	}

	subject, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if subject != "42" {
		t.Fatalf("unexpected subject: %s", subject)
	}
}

func TestTokenVerifyRejectsTamperedPayload(t *testing.T) {
	svc := newTestTokens(t)
	token, _, err := svc.IssueFor("42")
	if err != nil {
		t.Fatalf("IssueFor: %v", err)
	}

	parts := strings.Split(token, ".")
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	var claims map[string]any
	if err := json.Unmarshal(payload, &claims); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	claims["sub"] = "1"
	forged, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	parts[1] = base64.RawURLEncoding.EncodeToString(forged)

	if _, err := svc.Verify(strings.Join(parts, ".")); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestTokenVerifyFlippedPayloadByteIsSignatureMismatch(t *testing.T) {
	svc := newTestTokens(t)
	token, _, err := svc.IssueFor("42")
	if err != nil {
		t.Fatalf("IssueFor: %v", err)
	}

	start := strings.Index(token, ".") + 1
	end := strings.LastIndex(token, ".")
	for i := start; i < end; i++ {
		raw := []byte(token)
		raw[i] ^= 1
		_, err := svc.Verify(string(raw))
		if !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("byte %d: expected ErrTokenInvalid, got %v", i-start, err)
		}
	}
}

func TestTokenVerifyRejectsExpired(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestTokens(t, WithTokenClock(func() time.Time { return now }))

	token, err := svc.Issue("42", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := svc.Verify(token); err != nil {
		t.Fatalf("Verify before expiry: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := svc.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenVerifyClassifiesFailures(t *testing.T) {
	svc := newTestTokens(t)

	other, err := NewTokenService("fedcba9876543210fedcba9876543210")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	foreign, _, err := other.IssueFor("42")
	if err != nil {
		t.Fatalf("IssueFor: %v", err)
	}

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    DefaultIssuer,
		Subject:   "42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	wrongIssuer := newTestTokens(t, WithTokenIssuer("someone-else"))
	strange, _, err := wrongIssuer.IssueFor("42")
	if err != nil {
		t.Fatalf("IssueFor: %v", err)
	}

	cases := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrTokenMalformed},
		{"garbage", "not-a-token", ErrTokenMalformed},
		{"foreign secret", foreign, ErrTokenInvalid},
		{"alg none", unsigned, ErrTokenInvalid},
		{"wrong issuer", strange, ErrTokenInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Verify(tc.token)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !IsTokenError(err) {
				t.Fatalf("expected token error, got %v", err)
			}
		})
	}
}

func TestNewTokenServiceValidatesSecret(t *testing.T) {
	if _, err := NewTokenService(""); err == nil {
		t.Fatal("expected error for missing secret")
	}
	if _, err := NewTokenService("short"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for short secret, got %v", err)
	}
	if _, err := NewTokenService(testSecret, WithTokenTTL(0)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero ttl, got %v", err)
	}
}

func TestSubjectRoundTrip(t *testing.T) {
	id, err := ParseSubject(FormatSubject(77))
	if err != nil || id != 77 {
		t.Fatalf("unexpected round trip: %d %v", id, err)
	}
	for _, bad := range []string{"", "abc", "0", "-3"} {
		if _, err := ParseSubject(bad); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("expected ErrTokenInvalid for %q, got %v", bad, err)
		}
	}
}
