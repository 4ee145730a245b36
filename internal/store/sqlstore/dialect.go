package sqlstore

import (
	"fmt"
	"strings"
	"time"

	"authgate.dev/internal/auth"
)

// Constraint names shared by every migration set. Dialects resolve driver
// errors to one of these before calling ConstraintError.
const (
	ConstraintUsername = "users_username_key"
	ConstraintEmail    = "users_email_key"
	ConstraintRoleLink = "user_roles_pkey"
	ConstraintIdentity = "oauth2_users_provider_subject_key"
)

// ConstraintError maps a violated unique constraint onto the auth taxonomy.
// Unknown constraints become the bare ErrConflict.
func ConstraintError(constraint string) error {
	switch constraint {
	case ConstraintUsername:
		return auth.ErrUsernameTaken
	case ConstraintEmail:
		return auth.ErrEmailTaken
	case ConstraintIdentity:
		return auth.ErrIdentityAlreadyLinked
	default:
		return auth.ErrConflict
	}
}

// RebindQuestion rewrites $1..$N into positional ? markers. Placeholders must
// appear once each and in ascending order.
func RebindQuestion(query string) string {
	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c == '$' && i+1 < len(query) && isDigit(query[i+1]) {
			b.WriteByte('?')
			for i+1 < len(query) && isDigit(query[i+1]) {
				i++
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// dbTime scans timestamps stored natively or as text.
type dbTime struct{ time.Time }

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v.UTC()
		return nil
	case int64:
		t.Time = time.UnixMilli(v).UTC()
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (t *dbTime) parse(s string) error {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, " m="); idx >= 0 {
		s = s[:idx]
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("parse timestamp %q", s)
}
