// Package session carries the acting user's identity explicitly through
// service calls instead of reading it from ambient state.
package session

import (
	"context"

	"github.com/starford/contactflow/internal/apperr"
)

// Session identifies who is performing an operation.
type Session struct {
	UserID string
}

// Valid reports whether the session names a user.
func (s Session) Valid() bool { return s.UserID != "" }

// Require returns apperr.ErrNoSession when the session is anonymous.
func (s Session) Require() error {
	if !s.Valid() {
		return apperr.ErrNoSession
	}
	return nil
}

type ctxKey struct{}

// WithContext stores s in ctx. Only the HTTP middleware should call this;
// services take the Session as an explicit argument.
func WithContext(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored by WithContext.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok && s.Valid()
}
