package routes

import (
	"civicfix-be/controllers"
	"civicfix-be/middlewares"

	"github.com/gin-gonic/gin"
)

// IssueRoutes sets up the issue and lifecycle routes
func IssueRoutes(r *gin.Engine) {
	issue := r.Group("/api/issue")
	{
		issue.POST("/create", middlewares.AuthMiddleware(), middlewares.IssueRateLimiter(5), controllers.CreateIssue)
		issue.GET("", middlewares.AuthMiddleware(), controllers.GetAllIssues)
		issue.GET("/mine", middlewares.AuthMiddleware(), controllers.GetMyIssues)
		issue.GET("/assigned", middlewares.AuthMiddleware(), controllers.GetAssignedIssues)
		issue.GET("/resolved/latest", controllers.LatestResolved)
		issue.GET("/map/recent", controllers.RecentIssues)
		issue.GET("/analytics", controllers.GetIssueAnalytics)
		issue.GET("/:id", middlewares.AuthMiddleware(), controllers.GetIssue)
		issue.DELETE("/:id", middlewares.AuthMiddleware(), controllers.DeleteIssue)

		issue.PATCH("/:id/assign", middlewares.AuthMiddleware(), controllers.AssignStaff)
		issue.PATCH("/:id/status", middlewares.AuthMiddleware(), controllers.UpdateStatus)
		issue.PATCH("/:id/reject", middlewares.AuthMiddleware(), controllers.RejectIssue)
		issue.PATCH("/:id/boost", middlewares.AuthMiddleware(), controllers.BoostIssue)
		issue.POST("/:id/upvote", middlewares.AuthMiddleware(), controllers.UpvoteIssue)
	}

	payment := r.Group("/api/payment")
	{
		payment.POST("/confirm", middlewares.AuthMiddleware(), controllers.ConfirmBoostPayment)
	}
}
