package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/calmwave/calmwave/internal/api/handlers"
	"github.com/calmwave/calmwave/internal/api/middleware"
)

type Deps struct {
	Ingest  *handlers.IngestHandler
	Audio   *handlers.AudioHandler
	User    *handlers.UserHandler
	Noise   *handlers.NoiseHandler
	Support *handlers.SupportHandler
	WS      *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.POST("/auth/register", d.User.Register)
	r.POST("/auth/login", d.User.Login)

	// Protected routes (JWT); every session operation requires a caller
	// identity, downloads and listings included.
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth())

	auth.POST("/upload", d.Ingest.Upload)

	auth.GET("/sessions", d.Audio.List)
	auth.GET("/sessions/:session_id", d.Audio.Get)
	auth.GET("/sessions/:session_id/audio", d.Audio.Download)
	auth.DELETE("/sessions/:session_id", d.Audio.Delete)

	auth.GET("/profile/me", d.User.Me)
	auth.PUT("/profile/me", d.User.Update)
	auth.DELETE("/profile/me", d.User.Delete)

	auth.POST("/presets", d.Noise.Create)
	auth.GET("/presets", d.Noise.List)
	auth.GET("/presets/:preset_id", d.Noise.Get)
	auth.PUT("/presets/:preset_id", d.Noise.Update)
	auth.DELETE("/presets/:preset_id", d.Noise.Delete)

	auth.POST("/support/tickets", d.Support.Open)
	auth.GET("/support/tickets", d.Support.List)
	auth.GET("/support/tickets/:ticket_id", d.Support.Get)
	auth.POST("/support/tickets/:ticket_id/close", d.Support.Close)

	// WebSocket
	auth.GET("/ws/sessions/:session_id", d.WS.SessionWS)

	// Admin
	admin := auth.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	admin.GET("/support/tickets", d.Support.ListAll)
}
