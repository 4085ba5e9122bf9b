// Package auth provides the authentication gate middleware and the HTTP
// handlers for the account flow: sign-up, sign-in and sign-out.
package auth

import (
	"context"

	"github.com/bartosz121/minerva/internal/accesstoken"
	"github.com/bartosz121/minerva/internal/users"
)

// Identity carries the resolved user and token of an authenticated request.
type Identity struct {
	User        *users.User
	AccessToken *accesstoken.AccessToken
}

type identityContextKey struct{}

// ContextWithIdentity stores the identity in context.
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext extracts the identity from context, nil for anonymous
// requests.
func IdentityFromContext(ctx context.Context) *Identity {
	identity, _ := ctx.Value(identityContextKey{}).(*Identity)
	return identity
}
