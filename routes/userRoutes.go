package routes

import (
	"civicfix-be/controllers"
	"civicfix-be/middlewares"

	"github.com/gin-gonic/gin"
)

// UserRoutes sets up the user administration routes
func UserRoutes(r *gin.Engine) {
	user := r.Group("/api/user")
	{
		user.GET("/staff", middlewares.AuthMiddleware(), controllers.ListStaff)
		user.PATCH("/:id/role", middlewares.AuthMiddleware(), controllers.UpdateUserRole)
	}
}
