package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/expensely/internal/auth"
	"github.com/charlesng35/expensely/internal/models"
	"github.com/charlesng35/expensely/internal/permissions"
	"github.com/charlesng35/expensely/internal/services"
	"github.com/charlesng35/expensely/pkg/errors"
	"github.com/charlesng35/expensely/pkg/response"
)

// AuthHandler issues session tokens and reports the verified caller.
type AuthHandler struct {
	profiles *services.ProfileService
	verifier *iauth.Verifier
}

func NewAuthHandler(profiles *services.ProfileService, verifier *iauth.Verifier) (*AuthHandler, error) {
	if profiles == nil || verifier == nil {
		return nil, fmt.Errorf("auth handler: profile service and verifier are required")
	}
	return &AuthHandler{profiles: profiles, verifier: verifier}, nil
}

type registerRequest struct {
	Email       string `json:"email" validate:"required,email,max=320"`
	Password    string `json:"password" validate:"required,max=128"`
	DisplayName string `json:"display_name" validate:"omitempty,max=128"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresIn   int            `json:"expires_in"`
	User        profilePayload `json:"user"`
}

type profilePayload struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	DisplayName string      `json:"display_name"`
	CompanyID   *string     `json:"company_id"`
	Role        models.Role `json:"role,omitempty"`
	Permissions []string    `json:"permissions"`
}

func toProfilePayload(user *models.User) profilePayload {
	actor := permissions.ActorFromUser(user)
	return profilePayload{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		CompanyID:   user.CompanyID,
		Role:        user.Role,
		Permissions: actor.Permissions(),
	}
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.profiles.Register(requestContext(c), services.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	h.issue(c, http.StatusCreated, user)
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.profiles.Authenticate(requestContext(c), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.issue(c, http.StatusOK, user)
}

func (h *AuthHandler) issue(c *gin.Context, status int, user *models.User) {
	token, err := h.verifier.Issue(iauth.Identity{ID: user.ID, Email: user.Email})
	if err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}

	response.Success(c, status, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.verifier.TTL().Seconds()),
		User:        toProfilePayload(user),
	})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
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

	response.Success(c, http.StatusOK, gin.H{
		"identity": identity,
		"profile":  toProfilePayload(user),
	})
}
