package router

import (
	"log/slog"

	"github.com/cuongbtq/coursehub/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// Options tune the router middleware
type Options struct {
	Logger         *slog.Logger
	AllowedOrigins []string
	MaxUploadBytes int64
}

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(h *handler.Handler, opts Options) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(opts.Logger))
	r.Use(CORSMiddleware(opts.AllowedOrigins))
	r.Use(BodyLimitMiddleware(opts.MaxUploadBytes))

	r.GET("/health", h.Health)

	// File routes the backend and the browser share
	files := r.Group("/api")
	{
		files.POST("/upload", h.Upload)
		files.GET("/download", h.Download)
	}

	v1 := r.Group("/api/v1")
	{
		v1.POST("/mappings/preview", h.PreviewMapping)
		v1.POST("/bulk-inference", h.BulkInference)

		courses := v1.Group("/courses")
		{
			courses.GET("/actions", h.ListActions)
			courses.POST("/:action", h.ManageCourses)
		}

		sessions := v1.Group("/sessions")
		{
			sessions.GET("", h.ListSessions)
			sessions.GET("/:session_id", h.GetSession)
			sessions.DELETE("/:session_id", h.CancelSession)
			sessions.GET("/:session_id/download", h.DownloadSession)
		}

		v1.POST("/search", h.Search)
	}

	return r
}
