package handlers_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/expensely/internal/handlers/testutil"
)

type companyPayload struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"owner_id"`
}

type invitationPayload struct {
	ID          string `json:"id"`
	CompanyID   string `json:"company_id"`
	CompanyName string `json:"company_name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	Status      string `json:"status"`
}

type memberPayload struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

func createCompany(t *testing.T, env *testutil.Env, token, name string) companyPayload {
	t.Helper()
	w := env.Request(http.MethodPost, "/api/companies", map[string]string{"name": name}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var company companyPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &company)
	return company
}

// join invites member into company with role and accepts on their behalf.
func join(t *testing.T, env *testutil.Env, ownerToken string, company companyPayload, member testutil.AuthResult, role string) {
	t.Helper()
	w := env.Request(http.MethodPost, "/api/companies/"+company.ID+"/invitations", map[string]string{
		"email": member.User.Email,
		"role":  role,
	}, ownerToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var invitation invitationPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &invitation)

	accept := env.Request(http.MethodPost, "/api/invitations/"+invitation.ID+"/accept", nil, member.AccessToken)
	require.Equal(t, http.StatusOK, accept.Code, accept.Body.String())
}

func profileOf(t *testing.T, env *testutil.Env, token string) testutil.ProfilePayload {
	t.Helper()
	w := env.Request(http.MethodGet, "/api/profile", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var profile testutil.ProfilePayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &profile)
	return profile
}

func TestCompanyHandler_InvitationFlow(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.Register("owner")
	member := env.Register("member")

	company := createCompany(t, env, owner.AccessToken, "Acme Corp")
	require.Equal(t, owner.User.ID, company.OwnerID)
	require.Equal(t, "owner", profileOf(t, env, owner.AccessToken).Role)

	again := env.Request(http.MethodPost, "/api/companies", map[string]string{"name": "Second"}, owner.AccessToken)
	require.Equal(t, http.StatusForbidden, again.Code)

	invite := env.Request(http.MethodPost, "/api/companies/"+company.ID+"/invitations", map[string]string{
		"email": strings.ToUpper(member.User.Email),
	}, owner.AccessToken)
	require.Equal(t, http.StatusCreated, invite.Code, invite.Body.String())
	var invitation invitationPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, invite).Data, &invitation)
	require.Equal(t, "user", invitation.Role)
	require.Equal(t, "pending", invitation.Status)
	require.Equal(t, member.User.Email, invitation.Email)

	duplicate := env.Request(http.MethodPost, "/api/companies/"+company.ID+"/invitations", map[string]string{
		"email": member.User.Email,
	}, owner.AccessToken)
	require.Equal(t, http.StatusConflict, duplicate.Code)

	mine := env.Request(http.MethodGet, "/api/invitations", nil, member.AccessToken)
	require.Equal(t, http.StatusOK, mine.Code)
	var pending []invitationPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, mine).Data, &pending)
	require.Len(t, pending, 1)
	require.Equal(t, "Acme Corp", pending[0].CompanyName)

	outsider := env.Register("outsider")
	stolen := env.Request(http.MethodPost, "/api/invitations/"+invitation.ID+"/accept", nil, outsider.AccessToken)
	require.Equal(t, http.StatusForbidden, stolen.Code)

	accept := env.Request(http.MethodPost, "/api/invitations/"+invitation.ID+"/accept", nil, member.AccessToken)
	require.Equal(t, http.StatusOK, accept.Code, accept.Body.String())
	var accepted invitationPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, accept).Data, &accepted)
	require.Equal(t, "accepted", accepted.Status)

	profile := profileOf(t, env, member.AccessToken)
	require.NotNil(t, profile.CompanyID)
	require.Equal(t, company.ID, *profile.CompanyID)
	require.Equal(t, "user", profile.Role)

	members := env.Request(http.MethodGet, "/api/companies/"+company.ID+"/members", nil, member.AccessToken)
	require.Equal(t, http.StatusOK, members.Code)
	var listed []memberPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, members).Data, &listed)
	require.Len(t, listed, 2)

	forbidden := env.Request(http.MethodGet, "/api/companies/"+company.ID+"/members", nil, outsider.AccessToken)
	require.Equal(t, http.StatusForbidden, forbidden.Code)

	listInvites := env.Request(http.MethodGet, "/api/companies/"+company.ID+"/invitations?status=accepted", nil, owner.AccessToken)
	require.Equal(t, http.StatusOK, listInvites.Code)
	var history []invitationPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, listInvites).Data, &history)
	require.Len(t, history, 1)

	badStatus := env.Request(http.MethodGet, "/api/companies/"+company.ID+"/invitations?status=bogus", nil, owner.AccessToken)
	require.Equal(t, http.StatusBadRequest, badStatus.Code)
}

func TestCompanyHandler_DeclineInvitation(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.Register("owner")
	invitee := env.Register("invitee")
	company := createCompany(t, env, owner.AccessToken, "Decliners")

	invite := env.Request(http.MethodPost, "/api/companies/"+company.ID+"/invitations", map[string]string{
		"email": invitee.User.Email,
	}, owner.AccessToken)
	require.Equal(t, http.StatusCreated, invite.Code)
	var invitation invitationPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, invite).Data, &invitation)

	decline := env.Request(http.MethodPost, "/api/invitations/"+invitation.ID+"/decline", nil, invitee.AccessToken)
	require.Equal(t, http.StatusOK, decline.Code, decline.Body.String())

	acceptLater := env.Request(http.MethodPost, "/api/invitations/"+invitation.ID+"/accept", nil, invitee.AccessToken)
	require.Equal(t, http.StatusConflict, acceptLater.Code)
	require.Equal(t, "INVALID_TRANSITION", testutil.DecodeResponse(t, acceptLater).Error.Code)

	require.Nil(t, profileOf(t, env, invitee.AccessToken).CompanyID)
}

func TestCompanyHandler_RoleRules(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.Register("owner")
	admin := env.Register("admin")
	user := env.Register("user")
	company := createCompany(t, env, owner.AccessToken, "Roles Inc")

	join(t, env, owner.AccessToken, company, admin, "user")
	join(t, env, owner.AccessToken, company, user, "user")

	byUser := env.Request(http.MethodPost, "/api/companies/"+company.ID+"/invitations", map[string]string{
		"email": "someone@example.com",
	}, user.AccessToken)
	require.Equal(t, http.StatusForbidden, byUser.Code)

	promote := env.Request(http.MethodPatch, "/api/companies/"+company.ID+"/members/"+admin.User.ID+"/role",
		map[string]string{"role": " Admin "}, owner.AccessToken)
	require.Equal(t, http.StatusOK, promote.Code, promote.Body.String())
	var promoted memberPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, promote).Data, &promoted)
	require.Equal(t, "admin", promoted.Role)

	badRole := env.Request(http.MethodPatch, "/api/companies/"+company.ID+"/members/"+user.User.ID+"/role",
		map[string]string{"role": "emperor"}, owner.AccessToken)
	require.Equal(t, http.StatusBadRequest, badRole.Code)

	ownerInvitesAuditor := env.Request(http.MethodPost, "/api/companies/"+company.ID+"/invitations", map[string]string{
		"email": "auditor@example.com",
		"role":  "AUDITOR",
	}, owner.AccessToken)
	require.Equal(t, http.StatusCreated, ownerInvitesAuditor.Code, ownerInvitesAuditor.Body.String())
	var auditorInvite invitationPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, ownerInvitesAuditor).Data, &auditorInvite)
	require.Equal(t, "auditor", auditorInvite.Role)

	adminInvitesAdmin := env.Request(http.MethodPost, "/api/companies/"+company.ID+"/invitations", map[string]string{
		"email": "new-admin@example.com",
		"role":  "admin",
	}, admin.AccessToken)
	require.Equal(t, http.StatusForbidden, adminInvitesAdmin.Code)
	require.Equal(t, "only the owner can invite admins", testutil.DecodeResponse(t, adminInvitesAdmin).Error.Message)

	adminInvitesUser := env.Request(http.MethodPost, "/api/companies/"+company.ID+"/invitations", map[string]string{
		"email": "new-user@example.com",
	}, admin.AccessToken)
	require.Equal(t, http.StatusCreated, adminInvitesUser.Code, adminInvitesUser.Body.String())

	rename := env.Request(http.MethodPatch, "/api/companies/"+company.ID, map[string]string{"name": "Renamed"}, admin.AccessToken)
	require.Equal(t, http.StatusForbidden, rename.Code)

	removeOwner := env.Request(http.MethodDelete, "/api/companies/"+company.ID+"/members/"+owner.User.ID, nil, admin.AccessToken)
	require.Equal(t, http.StatusForbidden, removeOwner.Code)

	remove := env.Request(http.MethodDelete, "/api/companies/"+company.ID+"/members/"+user.User.ID, nil, admin.AccessToken)
	require.Equal(t, http.StatusOK, remove.Code, remove.Body.String())
	removed := profileOf(t, env, user.AccessToken)
	require.Nil(t, removed.CompanyID)
	require.Empty(t, removed.Role)

	ownerLeaves := env.Request(http.MethodPost, "/api/companies/"+company.ID+"/leave", nil, owner.AccessToken)
	require.Equal(t, http.StatusForbidden, ownerLeaves.Code)

	adminLeaves := env.Request(http.MethodPost, "/api/companies/"+company.ID+"/leave", nil, admin.AccessToken)
	require.Equal(t, http.StatusOK, adminLeaves.Code, adminLeaves.Body.String())
}

func TestCompanyHandler_RenameAndDelete(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.Register("owner")
	member := env.Register("member")
	company := createCompany(t, env, owner.AccessToken, "Old Name")
	join(t, env, owner.AccessToken, company, member, "auditor")

	rename := env.Request(http.MethodPatch, "/api/companies/"+company.ID, map[string]string{"name": "New Name"}, owner.AccessToken)
	require.Equal(t, http.StatusOK, rename.Code, rename.Body.String())

	get := env.Request(http.MethodGet, "/api/companies/"+company.ID, nil, member.AccessToken)
	require.Equal(t, http.StatusOK, get.Code)
	var fetched companyPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, get).Data, &fetched)
	require.Equal(t, "New Name", fetched.Name)

	memberDeletes := env.Request(http.MethodDelete, "/api/companies/"+company.ID, nil, member.AccessToken)
	require.Equal(t, http.StatusForbidden, memberDeletes.Code)

	del := env.Request(http.MethodDelete, "/api/companies/"+company.ID, nil, owner.AccessToken)
	require.Equal(t, http.StatusOK, del.Code, del.Body.String())

	require.Nil(t, profileOf(t, env, owner.AccessToken).CompanyID)
	require.Nil(t, profileOf(t, env, member.AccessToken).CompanyID)

	gone := env.Request(http.MethodGet, "/api/companies/"+company.ID, nil, owner.AccessToken)
	require.Contains(t, []int{http.StatusForbidden, http.StatusNotFound}, gone.Code)
}
