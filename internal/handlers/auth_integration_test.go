package handlers_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/expensely/internal/handlers/testutil"
)

func TestAuthHandler_RegisterLoginMe(t *testing.T) {
	env := testutil.NewEnv(t)

	registered := env.Register("alice")
	require.Equal(t, "Bearer", registered.TokenType)
	require.Equal(t, 3600, registered.ExpiresIn)
	require.Nil(t, registered.User.CompanyID)
	require.Contains(t, registered.User.Permissions, "expense.create")

	login := env.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    strings.ToUpper(registered.User.Email),
		"password": "Sup3rSecret!",
	}, "")
	require.Equal(t, http.StatusOK, login.Code, login.Body.String())
	var loginResult testutil.AuthResult
	testutil.DecodeInto(t, testutil.DecodeResponse(t, login).Data, &loginResult)
	require.Equal(t, registered.User.ID, loginResult.User.ID)

	me := env.Request(http.MethodGet, "/api/auth/me", nil, loginResult.AccessToken)
	require.Equal(t, http.StatusOK, me.Code, me.Body.String())
	var mePayload struct {
		Identity struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"identity"`
		Profile testutil.ProfilePayload `json:"profile"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, me).Data, &mePayload)
	require.Equal(t, registered.User.ID, mePayload.Identity.ID)
	require.Equal(t, "alice", mePayload.Profile.DisplayName)
}

func TestAuthHandler_Failures(t *testing.T) {
	env := testutil.NewEnv(t)
	registered := env.Register("bob")

	duplicate := env.Request(http.MethodPost, "/api/auth/register", map[string]string{
		"email":    registered.User.Email,
		"password": "Sup3rSecret!",
	}, "")
	require.Equal(t, http.StatusConflict, duplicate.Code)

	invalid := env.Request(http.MethodPost, "/api/auth/register", map[string]string{
		"email":    "not-an-email",
		"password": "Sup3rSecret!",
	}, "")
	require.Equal(t, http.StatusBadRequest, invalid.Code)
	payload := testutil.DecodeResponse(t, invalid)
	require.Equal(t, "BAD_REQUEST", payload.Error.Code)
	require.Contains(t, payload.Error.Message, "email must be a valid email address")

	wrong := env.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    registered.User.Email,
		"password": "wrong-password",
	}, "")
	require.Equal(t, http.StatusUnauthorized, wrong.Code)
	require.Equal(t, "INVALID_CREDENTIALS", testutil.DecodeResponse(t, wrong).Error.Code)

	missing := env.Request(http.MethodGet, "/api/auth/me", nil, "")
	require.Equal(t, http.StatusUnauthorized, missing.Code)
	require.Equal(t, "auth.token_missing", testutil.DecodeResponse(t, missing).Error.Code)

	garbage := env.Request(http.MethodGet, "/api/profile", nil, "garbage")
	require.Equal(t, http.StatusUnauthorized, garbage.Code)
	require.Equal(t, "auth.token_invalid", testutil.DecodeResponse(t, garbage).Error.Code)
}

func TestProfileHandler_GetAndUpdate(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.Register("carol")

	updated := env.Request(http.MethodPatch, "/api/profile", map[string]string{"display_name": "  Carol C  "}, user.AccessToken)
	require.Equal(t, http.StatusOK, updated.Code, updated.Body.String())

	get := env.Request(http.MethodGet, "/api/profile", nil, user.AccessToken)
	require.Equal(t, http.StatusOK, get.Code)
	var profile testutil.ProfilePayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, get).Data, &profile)
	require.Equal(t, "Carol C", profile.DisplayName)

	blank := env.Request(http.MethodPatch, "/api/profile", map[string]string{"display_name": "   "}, user.AccessToken)
	require.Equal(t, http.StatusBadRequest, blank.Code)
}
