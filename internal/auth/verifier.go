package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/charlesng35/expensely/pkg/errors"
	"github.com/charlesng35/expensely/pkg/metrics"
)

// TokenVerifier turns an opaque bearer credential into an Identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// Verifier validates access tokens issued by JWTService.
type Verifier struct {
	jwt *JWTService
}

// NewVerifier wraps the JWT service.
func NewVerifier(jwtSvc *JWTService) (*Verifier, error) {
	if jwtSvc == nil {
		return nil, errors.New("verifier: jwt service is required")
	}
	return &Verifier{jwt: jwtSvc}, nil
}

// Verify returns the caller identity, or one of ErrTokenMissing, ErrTokenExpired
// and ErrTokenInvalid.
func (v *Verifier) Verify(ctx context.Context, token string) (Identity, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return Identity{}, err
		}
	}

	token = strings.TrimSpace(token)
	if token == "" {
		metrics.AuthAttempts.WithLabelValues("verify", "missing").Inc()
		return Identity{}, apperrors.ErrTokenMissing
	}

	claims, err := v.jwt.ValidateAccessToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			metrics.AuthAttempts.WithLabelValues("verify", "expired").Inc()
			return Identity{}, apperrors.ErrTokenExpired.WithInternal(err)
		}
		metrics.AuthAttempts.WithLabelValues("verify", "invalid").Inc()
		return Identity{}, apperrors.ErrTokenInvalid.WithInternal(err)
	}

	return Identity{ID: claims.UserID, Email: claims.Email}, nil
}

// Issue creates a token for a stored profile.
func (v *Verifier) Issue(id Identity) (string, error) {
	return v.jwt.GenerateAccessToken(AccessTokenInput{UserID: id.ID, Email: id.Email})
}

// TTL is the lifetime of issued tokens.
func (v *Verifier) TTL() time.Duration { return v.jwt.TTL() }
