package api

import (
	"net/http"

	"journal-backend/internal/middleware"
	"journal-backend/internal/storage"
	"journal-backend/internal/workflow"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, server *Server) {
	cfg := server.config
	authLimiter := middleware.NewRateLimiter(cfg.HTTP.AuthRateLimit, cfg.HTTP.AuthRateBurst)

	router.Use(middleware.Recovery(server.logger))
	router.Use(middleware.RequestLogger(server.logger))
	router.Use(server.metrics.Instrument())
	router.Use(middleware.CORSSpecific(cfg.GetCORSOrigins()))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{"status": "ok", "service": "journal-backend"}
		if err := server.store.Ping(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = "unreachable"
		}
		c.JSON(status, body)
	})
	router.GET("/metrics", gin.WrapH(server.metrics.Handler()))

	if local, ok := server.files.(*storage.LocalStorage); ok {
		router.Static("/uploads", local.Dir())
	}

	api := router.Group("/api")
	{
		// Auth routes (no authentication required)
		auth := api.Group("/auth")
		auth.Use(authLimiter.Middleware())
		{
			auth.POST("/register", server.Register)
			auth.POST("/login", server.Login)
		}

		// Public journal content
		api.GET("/published", server.GetPublished)
		api.GET("/published/:id", server.GetPublishedArticle)
		api.POST("/published/:id/views", server.RecordView)
		api.POST("/published/:id/downloads", server.RecordDownload)
		api.GET("/volumes", server.GetVolumes)
		api.GET("/volumes/:id", server.GetVolume)

		// Protected routes (authentication required)
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(server.jwtManager, server.store))
		{
			protected.GET("/profile", server.GetProfile)
			protected.PUT("/profile", server.UpdateProfile)
			protected.PUT("/auth/password", server.ChangePassword)
			protected.POST("/auth/switch-role", server.SwitchRole)

			protected.GET("/users", middleware.EditorOrAdmin(), server.GetUsers)

			manuscripts := protected.Group("/manuscripts")
			{
				manuscripts.POST("", middleware.AuthorOnly(), server.CreateManuscript)
				manuscripts.GET("", server.GetManuscripts)
				manuscripts.GET("/:id", server.GetManuscript)
				manuscripts.GET("/:id/timeline", server.GetTimeline)
				manuscripts.GET("/:id/reviews", server.GetManuscriptReviews)

				// Workflow actions. Role and state checks happen in the
				// transition table; the handlers add ownership checks.
				manuscripts.POST("/:id/reviewers", server.AssignReviewer)
				manuscripts.POST("/:id/decision", server.MakeDecision)
				manuscripts.POST("/:id/revision", server.SubmitRevision)
				manuscripts.POST("/:id/copy-editor", server.AssignCopyEditor)
				manuscripts.POST("/:id/copy-edit/start", server.StartCopyEdit)
				manuscripts.POST("/:id/copy-edit/submit", server.SubmitCopyEdit)
				manuscripts.POST("/:id/author-approve-copy-edit", server.AuthorApproveCopyEdit)
				manuscripts.POST("/:id/copy-edit/confirm", server.ConfirmCopyEdit)
				manuscripts.POST("/:id/ready-for-publication", server.MarkReadyForPublication)
				manuscripts.POST("/:id/publish", server.Publish)
				manuscripts.POST("/:id/direct-publish", server.DirectPublish)
				manuscripts.GET("/:id/payment", server.GetManuscriptPayment)
				manuscripts.POST("/:id/payment", server.SubmitPayment)
				manuscripts.POST("/:id/payment/waive", server.WaivePayment)
			}

			reviews := protected.Group("/reviews")
			{
				reviews.GET("", server.GetReviews)
				reviews.POST("/:id/respond", middleware.RequireRoles(workflow.RoleReviewer), server.RespondToReview)
				reviews.PUT("/:id", middleware.RequireRoles(workflow.RoleReviewer), server.SubmitReview)
			}

			payments := protected.Group("/payments")
			payments.Use(middleware.EditorOrAdmin())
			{
				payments.GET("", server.GetPayments)
				payments.POST("/:id/accept", server.AcceptPayment)
				payments.POST("/:id/reject", server.RejectPayment)
			}

			volumes := protected.Group("/volumes")
			volumes.Use(middleware.EditorOrAdmin())
			{
				volumes.POST("", server.CreateVolume)
				volumes.POST("/:id/issues", server.CreateIssue)
			}

			notifications := protected.Group("/notifications")
			{
				notifications.GET("", server.GetNotifications)
				notifications.PUT("/read-all", server.MarkAllNotificationsRead)
				notifications.PUT("/:id/read", server.MarkNotificationRead)
			}

			protected.POST("/uploads", server.UploadFile)

			// Admin only routes
			admin := protected.Group("/admin")
			admin.Use(middleware.AdminOnly())
			{
				admin.GET("/users", server.GetUsers)
				admin.PATCH("/users/:id/roles", server.UpdateUserRoles)
				admin.DELETE("/users/:id", server.DeleteUser)
			}
		}
	}
}
