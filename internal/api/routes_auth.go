package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/expensely/internal/handlers"
)

func registerAuthRoutes(public *gin.RouterGroup, h *handlers.AuthHandler) {
	auth := public.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
	}
}
