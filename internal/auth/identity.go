package auth

import "context"

// Identity is the verified caller behind a bearer token.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type identityKey struct{}

// WithIdentity stores the verified identity on ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity resolved for the current request.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.ID != ""
}
