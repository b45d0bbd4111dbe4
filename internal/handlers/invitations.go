package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/expensely/internal/models"
	"github.com/charlesng35/expensely/internal/services"
	"github.com/charlesng35/expensely/pkg/response"
)

// InvitationHandler exposes company invitations to inviters and invitees.
type InvitationHandler struct {
	profiles    *services.ProfileService
	invitations *services.InvitationService
}

func NewInvitationHandler(profiles *services.ProfileService, invitations *services.InvitationService) (*InvitationHandler, error) {
	if profiles == nil || invitations == nil {
		return nil, fmt.Errorf("invitation handler: profile and invitation services are required")
	}
	return &InvitationHandler{profiles: profiles, invitations: invitations}, nil
}

type createInvitationRequest struct {
	Email string `json:"email" validate:"required,email,max=320"`
	Role  string `json:"role" validate:"omitempty,member_role"`
}

// POST /api/companies/:id/invitations
func (h *InvitationHandler) Create(c *gin.Context) {
	actor, ok := resolveActor(c, h.profiles)
	if !ok {
		return
	}
	var req createInvitationRequest
	if !bindAndValidate(c, &req) {
		return
	}
	role, ok := bindRole(c, req.Role, models.RoleUser)
	if !ok {
		return
	}

	invitation, err := h.invitations.Create(requestContext(c), actor, c.Param("id"), req.Email, role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, invitation)
}

// GET /api/companies/:id/invitations
func (h *InvitationHandler) ListForCompany(c *gin.Context) {
	actor, ok := resolveActor(c, h.profiles)
	if !ok {
		return
	}
	status := models.InvitationStatus(strings.ToLower(strings.TrimSpace(c.Query("status"))))

	invitations, err := h.invitations.ListForCompany(requestContext(c), actor, c.Param("id"), status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, invitations)
}

// GET /api/invitations
func (h *InvitationHandler) ListMine(c *gin.Context) {
	actor, ok := resolveActor(c, h.profiles)
	if !ok {
		return
	}
	invitations, err := h.invitations.ListMine(requestContext(c), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, invitations)
}

// POST /api/invitations/:id/accept
func (h *InvitationHandler) Accept(c *gin.Context) {
	actor, ok := resolveActor(c, h.profiles)
	if !ok {
		return
	}
	invitation, err := h.invitations.Accept(requestContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, invitation)
}

// POST /api/invitations/:id/decline
func (h *InvitationHandler) Decline(c *gin.Context) {
	actor, ok := resolveActor(c, h.profiles)
	if !ok {
		return
	}
	invitation, err := h.invitations.Decline(requestContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, invitation)
}
