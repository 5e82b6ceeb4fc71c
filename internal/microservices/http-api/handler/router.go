package handler

import (
	"log/slog"
	"net/http"

	"mooshihub/internal/microservices/http-api/middleware"
	"mooshihub/internal/microservices/http-api/repository"
	"mooshihub/internal/microservices/http-api/service"
	"mooshihub/internal/microservices/websocket"

	"github.com/gin-gonic/gin"
)

// RouterConfig collects everything NewRouter wires into the engine. OAuth and
// Messages may be nil; their routes then report the feature as unavailable.
type RouterConfig struct {
	Hub         *websocket.Hub
	Keys        service.KeyService
	Tokens      service.AdminTokenService
	OAuth       service.OAuthService
	CDN         service.CDNService
	Messages    repository.MessageLogRepository
	Checks      map[string]HealthCheck
	APIVersion  string
	CORSOrigins []string
	Logger      *slog.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	system := NewSystemHandler(cfg.Hub, cfg.Checks)
	r.GET("/", system.Index)
	r.GET("/health", system.Health)
	r.GET("/routes", system.Routes(r))

	r.GET("/ws/:client_id", websocket.WSHandler(cfg.Hub, cfg.Keys))

	admin := middleware.AdminMiddleware(cfg.Keys, cfg.Tokens)
	keys := NewKeyHandler(cfg.Keys, cfg.Tokens)
	hub := NewHubHandler(cfg.Hub, cfg.Messages)

	v1 := r.Group("/" + cfg.APIVersion)
	{
		v1.GET("/admin/token", keys.AdminToken)
		v1.GET("/new_key", admin, keys.NewKey)
		v1.POST("/invalidate", admin, keys.Invalidate)

		if cfg.OAuth != nil {
			spotify := NewSpotifyHandler(cfg.OAuth)
			v1.GET("/spotify", spotify.Authorize)
			v1.GET("/spotify/authorized", spotify.Authorized)
		} else {
			v1.GET("/spotify", spotifyDisabled)
			v1.GET("/spotify/authorized", spotifyDisabled)
		}

		clients := v1.Group("/clients", admin)
		{
			clients.GET("", hub.ListClients)
			clients.POST("/:client_id/send", hub.Send)
			clients.POST("/:client_id/request", hub.Request)
			clients.DELETE("/:client_id", hub.Disconnect)
		}
		v1.POST("/broadcast", admin, hub.Broadcast)
		v1.GET("/messages", admin, hub.RecentMessages)
	}

	if cfg.CDN != nil {
		files := NewCDNHandler(cfg.CDN)
		cdn := r.Group("/cdn", middleware.APIKeyMiddleware(cfg.Keys))
		{
			cdn.POST("/upload", files.Upload)
			cdn.GET("/files", files.List)
			cdn.DELETE("/files/:name", files.Delete)
		}
		r.Static("/cdn/static", cfg.CDN.Root())
	}

	return r
}

func spotifyDisabled(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "spotify integration is not configured"})
}
