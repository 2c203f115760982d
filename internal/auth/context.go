// Package auth carries the signed-in user through a request. Middleware,
// handlers and the API client all import it, so it depends on nothing but
// the domain.
package auth

import (
	"context"
	"net/http"

	"github.com/DukeRupert/taqa/internal/domain"
)

type userKey struct{}

// GetUser returns the user stored by the session middleware, or nil.
func GetUser(ctx context.Context) *domain.User {
	user, _ := ctx.Value(userKey{}).(*domain.User)
	return user
}

// GetUserFromRequest is GetUser for the request's context.
func GetUserFromRequest(r *http.Request) *domain.User {
	return GetUser(r.Context())
}

// SetUser returns a copy of ctx carrying user.
func SetUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// Token returns the backend access token of the user in ctx. It is empty for
// anonymous calls and for users whose session holds no token.
func Token(ctx context.Context) string {
	if user := GetUser(ctx); user != nil {
		return user.Token
	}
	return ""
}
