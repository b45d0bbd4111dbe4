package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/expensely/internal/handlers"
)

func registerExpenseRoutes(api *gin.RouterGroup, h *handlers.ExpenseHandler) {
	expenses := api.Group("/expenses")
	{
		expenses.POST("", h.Create)
		expenses.GET("", h.List)
		expenses.GET("/summary", h.Summary)
		expenses.POST("/extract", h.Extract)

		expenses.GET("/:id", h.Get)
		expenses.PATCH("/:id", h.Update)
		expenses.DELETE("/:id", h.Delete)
		expenses.POST("/:id/approve", h.Approve)
		expenses.POST("/:id/reject", h.Reject)
	}
}
