package http

import (
	"context"

	"github.com/dkeye/Chat/internal/adapters/signal"
	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/config"
	"github.com/dkeye/Chat/internal/core"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const sessionName = "ChatSessions"

// Handlers holds the dependencies of the REST endpoints.
type Handlers struct {
	cfg     *config.Config
	orch    *app.Orchestrator
	backend core.Backend
}

func SetupRouter(ctx context.Context, cfg *config.Config, orch *app.Orchestrator, backend core.Backend) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions(sessionName, store))

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	h := &Handlers{cfg: cfg, orch: orch, backend: backend}
	ctrl := signal.NewSignalWSController(orch, backend.Auth, signal.Options{
		ReadLimit:     cfg.ReadLimit,
		PingPeriod:    cfg.PingPeriod,
		SendBuffer:    cfg.SendBuffer,
		AllowAnonAuth: cfg.Chat.AllowAnonAuth,
		AdminPassword: cfg.Admin.Password,
		RateLimit:     cfg.Chat.RateLimit,
		RateInterval:  cfg.Chat.RateInterval,
	})

	api := r.Group("/api")

	api.POST("/join", h.Join)
	api.POST("/login", h.Login)
	api.POST("/logout", h.Logout)

	api.GET("/rooms", h.ListRooms)
	api.POST("/rooms", h.CreateRoom)
	api.GET("/rooms/:name", h.GetRoom)

	api.POST("/upload", h.Upload)
	api.GET("/files/:id", h.Download)

	admin := api.Group("/admin", h.RequireAdmin())
	admin.GET("/users", h.AdminUsers)
	admin.GET("/state", h.AdminState)
	admin.GET("/deleted", h.ListDeleted)
	admin.GET("/deleted/:name", h.GetDeleted)
	admin.GET("/deleted/:name/export", h.ExportDeleted)

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("remote", c.ClientIP()).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	return r
}
