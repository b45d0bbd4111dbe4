package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/expensely/internal/services"
	"github.com/charlesng35/expensely/pkg/response"
)

// CompanyHandler exposes company workspace and membership management.
type CompanyHandler struct {
	profiles  *services.ProfileService
	companies *services.CompanyService
}

func NewCompanyHandler(profiles *services.ProfileService, companies *services.CompanyService) (*CompanyHandler, error) {
	if profiles == nil || companies == nil {
		return nil, fmt.Errorf("company handler: profile and company services are required")
	}
	return &CompanyHandler{profiles: profiles, companies: companies}, nil
}

type companyNameRequest struct {
	Name string `json:"name" validate:"notblank,max=128"`
}

type changeRoleRequest struct {
	Role string `json:"role" validate:"required,member_role"`
}

// POST /api/companies
func (h *CompanyHandler) Create(c *gin.Context) {
	actor, ok := resolveActor(c, h.profiles)
	if !ok {
		return
	}
	var req companyNameRequest
	if !bindAndValidate(c, &req) {
		return
	}

	company, err := h.companies.Create(requestContext(c), actor, req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, company)
}

// GET /api/companies/:id
func (h *CompanyHandler) Get(c *gin.Context) {
	actor, ok := resolveActor(c, h.profiles)
	if !ok {
		return
	}
	company, err := h.companies.Get(requestContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, company)
}

// PATCH /api/companies/:id
func (h *CompanyHandler) Rename(c *gin.Context) {
	actor, ok := resolveActor(c, h.profiles)
	if !ok {
		return
	}
	var req companyNameRequest
	if !bindAndValidate(c, &req) {
		return
	}

	company, err := h.companies.Rename(requestContext(c), actor, c.Param("id"), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, company)
}

// DELETE /api/companies/:id
func (h *CompanyHandler) Delete(c *gin.Context) {
	actor, ok := resolveActor(c, h.profiles)
	if !ok {
		return
	}
	if err := h.companies.Delete(requestContext(c), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// GET /api/companies/:id/members
func (h *CompanyHandler) ListMembers(c *gin.Context) {
	actor, ok := resolveActor(c, h.profiles)
	if !ok {
		return
	}
	members, err := h.companies.ListMembers(requestContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, members)
}

// DELETE /api/companies/:id/members/:userID
func (h *CompanyHandler) RemoveMember(c *gin.Context) {
	actor, ok := resolveActor(c, h.profiles)
	if !ok {
		return
	}
	if err := h.companies.RemoveMember(requestContext(c), actor, c.Param("id"), c.Param("userID")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": true})
}

// PATCH /api/companies/:id/members/:userID/role
func (h *CompanyHandler) ChangeRole(c *gin.Context) {
	actor, ok := resolveActor(c, h.profiles)
	if !ok {
		return
	}
	var req changeRoleRequest
	if !bindAndValidate(c, &req) {
		return
	}

	role, ok := bindRole(c, req.Role, "")
	if !ok {
		return
	}

	member, err := h.companies.ChangeRole(requestContext(c), actor, c.Param("id"), c.Param("userID"), role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, member)
}

// POST /api/companies/:id/leave
func (h *CompanyHandler) Leave(c *gin.Context) {
	actor, ok := resolveActor(c, h.profiles)
	if !ok {
		return
	}
	if err := h.companies.Leave(requestContext(c), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"left": true})
}
