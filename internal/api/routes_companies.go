package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/expensely/internal/handlers"
)

func registerCompanyRoutes(api *gin.RouterGroup, companies *handlers.CompanyHandler, invitations *handlers.InvitationHandler) {
	group := api.Group("/companies")
	{
		group.POST("", companies.Create)
		group.GET("/:id", companies.Get)
		group.PATCH("/:id", companies.Rename)
		group.DELETE("/:id", companies.Delete)
		group.POST("/:id/leave", companies.Leave)

		group.GET("/:id/members", companies.ListMembers)
		group.DELETE("/:id/members/:userID", companies.RemoveMember)
		group.PATCH("/:id/members/:userID/role", companies.ChangeRole)

		group.POST("/:id/invitations", invitations.Create)
		group.GET("/:id/invitations", invitations.ListForCompany)
	}

	mine := api.Group("/invitations")
	{
		mine.GET("", invitations.ListMine)
		mine.POST("/:id/accept", invitations.Accept)
		mine.POST("/:id/decline", invitations.Decline)
	}
}
