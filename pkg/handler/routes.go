package handler

import "github.com/gin-gonic/gin"

// Register mounts the explorer API under api (normally /api).
func (h *ExplorerHandler) Register(api *gin.RouterGroup) {
	// /api/sessions
	sessions := api.Group("/sessions")
	{
		sessions.GET("", h.ListSessions)
		sessions.POST("", h.CreateSession)
		sessions.DELETE("/:id", h.CloseSession)
		sessions.GET("/:id/state", h.GetState)
		sessions.POST("/:id/actions", h.Dispatch)
		sessions.GET("/:id/listing", h.Listing)

		sessions.GET("/:id/uploads", h.ListUploads)
		sessions.POST("/:id/uploads", h.Upload)

		sessions.POST("/:id/deletions", h.PlanDeletion)
		sessions.GET("/:id/deletions/:planId", h.GetPlan)
		sessions.POST("/:id/deletions/:planId/execute", h.ExecutePlan)
		sessions.DELETE("/:id/deletions/:planId", h.DiscardPlan)
		sessions.POST("/:id/files/delete", h.DeleteFiles)

		sessions.POST("/:id/folders", h.CreateFolder)
		sessions.POST("/:id/move", h.Move)
	}

	// /api/uploads
	api.GET("/uploads/history", h.UploadHistory)
}
