package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/expensely/internal/handlers"
)

func registerProfileRoutes(api *gin.RouterGroup, h *handlers.ProfileHandler) {
	api.GET("/profile", h.Get)
	api.PATCH("/profile", h.Update)
}
