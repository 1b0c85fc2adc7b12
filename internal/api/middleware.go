// Package api implements the contactflow REST API using chi.
package api

import (
	"net/http"
	"strings"

	"github.com/starford/contactflow/internal/session"
)

// UserHeader names the acting user when authentication is disabled.
const UserHeader = "X-User-ID"

// AuthSettings controls how a request is mapped to a session.
//
// With Enabled set, the request must carry "Authorization: Bearer <token>"
// and the token must appear in Tokens, which maps it to a user id. Otherwise
// the user comes from the X-User-ID header, falling back to DefaultUser.
type AuthSettings struct {
	Enabled     bool
	Tokens      map[string]string
	DefaultUser string
}

// SessionMiddleware resolves the acting user and stores the session in the
// request context. Requests without a resolvable user get 401.
func SessionMiddleware(auth AuthSettings) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := resolveUser(auth, r)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			ctx := session.WithContext(r.Context(), session.Session{UserID: userID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveUser(auth AuthSettings, r *http.Request) (string, bool) {
	if auth.Enabled {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			return "", false
		}
		userID, ok := auth.Tokens[strings.TrimPrefix(header, "Bearer ")]
		return userID, ok && userID != ""
	}
	if u := strings.TrimSpace(r.Header.Get(UserHeader)); u != "" {
		return u, true
	}
	return auth.DefaultUser, auth.DefaultUser != ""
}

// sessionFrom returns the session placed by SessionMiddleware. Handlers pass
// it explicitly to every service call.
func sessionFrom(r *http.Request) session.Session {
	s, _ := session.FromContext(r.Context())
	return s
}
