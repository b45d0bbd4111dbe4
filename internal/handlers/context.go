package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/expensely/internal/auth"
	"github.com/charlesng35/expensely/internal/middleware"
	"github.com/charlesng35/expensely/internal/permissions"
	"github.com/charlesng35/expensely/internal/services"
	"github.com/charlesng35/expensely/pkg/errors"
	"github.com/charlesng35/expensely/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// identityFrom returns the identity resolved by the Auth middleware.
func identityFrom(c *gin.Context) (iauth.Identity, bool) {
	if v, ok := c.Get(middleware.CtxIdentityKey); ok {
		if id, ok := v.(iauth.Identity); ok && id.ID != "" {
			return id, true
		}
	}
	return iauth.IdentityFromContext(requestContext(c))
}

// resolveActor loads the caller's profile and turns it into an authorization subject.
// The profile is read fresh on every request so role and company changes apply immediately.
// On failure an error response has already been written.
func resolveActor(c *gin.Context, profiles *services.ProfileService) (permissions.Actor, bool) {
	identity, ok := identityFrom(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return permissions.Actor{}, false
	}
	actor, err := profiles.Actor(requestContext(c), identity)
	if err != nil {
		response.Error(c, err)
		return permissions.Actor{}, false
	}
	return actor, true
}
