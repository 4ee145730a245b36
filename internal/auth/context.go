package auth

import "context"

type subjectContextKey struct{}

// ContextWithSubject attaches the resolved account id to the context.
func ContextWithSubject(ctx context.Context, accountID int64) context.Context {
	if accountID <= 0 {
		return ctx
	}
	return context.WithValue(ctx, subjectContextKey{}, accountID)
}

// SubjectFromContext returns the account id resolved by the authentication filter.
func SubjectFromContext(ctx context.Context) (int64, bool) {
	if ctx == nil {
		return 0, false
	}
	v, ok := ctx.Value(subjectContextKey{}).(int64)
	if !ok || v <= 0 {
		return 0, false
	}
	return v, true
}
