package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/expensely/internal/services"
	"github.com/charlesng35/expensely/pkg/errors"
	"github.com/charlesng35/expensely/pkg/response"
)

type ProfileHandler struct {
	profiles *services.ProfileService
}

func NewProfileHandler(profiles *services.ProfileService) (*ProfileHandler, error) {
	if profiles == nil {
		return nil, fmt.Errorf("profile handler: profile service is required")
	}
	return &ProfileHandler{profiles: profiles}, nil
}

type updateProfileRequest struct {
	DisplayName string `json:"display_name" validate:"notblank,max=128"`
}

// GET /api/profile
func (h *ProfileHandler) Get(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}
	user, err := h.profiles.Lookup(requestContext(c), identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, toProfilePayload(user))
}

// PATCH /api/profile
func (h *ProfileHandler) Update(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}
	var req updateProfileRequest
	if !bindAndValidate(c, &req) {
		return
	}
	user, err := h.profiles.UpdateDisplayName(requestContext(c), identity, req.DisplayName)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, toProfilePayload(user))
}
