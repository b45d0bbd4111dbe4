package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/expensely/internal/auth"
	apperrors "github.com/charlesng35/expensely/pkg/errors"
)

func TestProfileRegisterAndAuthenticate(t *testing.T) {
	env := newTestServices(t)
	ctx := context.Background()

	user, err := env.profiles.Register(ctx, RegisterInput{Email: "  Alice@Example.com ", Password: "correct-horse"})
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", user.Email)
	require.Equal(t, "alice", user.DisplayName)
	require.False(t, user.InCompany())

	_, err = env.profiles.Register(ctx, RegisterInput{Email: "alice@example.com", Password: "another-one"})
	require.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = env.profiles.Register(ctx, RegisterInput{Email: "bob@example.com", Password: "short"})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = env.profiles.Register(ctx, RegisterInput{Email: "not-an-email", Password: "correct-horse"})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	authed, err := env.profiles.Authenticate(ctx, "ALICE@example.com", "correct-horse")
	require.NoError(t, err)
	require.Equal(t, user.ID, authed.ID)
	require.NotNil(t, authed.LastLoginAt)

	_, err = env.profiles.Authenticate(ctx, "alice@example.com", "wrong-password")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	_, err = env.profiles.Authenticate(ctx, "nobody@example.com", "correct-horse")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestProfileLookup(t *testing.T) {
	env := newTestServices(t)
	ctx := context.Background()

	actor := env.register(t, "carol@example.com")
	require.Equal(t, "carol@example.com", actor.Email)
	require.False(t, actor.InCompany())

	_, err := env.profiles.Lookup(ctx, auth.Identity{ID: "00000000-0000-0000-0000-000000000000"})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	require.Equal(t, "profile not found", err.Error())

	_, err = env.profiles.Lookup(ctx, auth.Identity{})
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)

	updated, err := env.profiles.UpdateDisplayName(ctx, auth.Identity{ID: actor.UserID}, "  Carol C ")
	require.NoError(t, err)
	require.Equal(t, "Carol C", updated.DisplayName)

	_, err = env.profiles.UpdateDisplayName(ctx, auth.Identity{ID: actor.UserID}, "  ")
	require.ErrorIs(t, err, apperrors.ErrBadRequest)
}
