package http

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"tokenchat/internal/bootstrap"
	"tokenchat/internal/transport/http/handler"
	"tokenchat/internal/transport/http/middleware"
)

type Handlers struct {
	Tokens        *handler.TokenHandler
	Chat          *handler.ChatHandler
	Conversations *handler.ConversationHandler
	Support       *handler.SupportHandler
	Health        *handler.HealthHandler
}

type RouterOptions struct {
	Logger    *slog.Logger
	JWTSecret string
	// StaticDir holds the browser front-end; skipped when it does not exist.
	StaticDir string
}

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)

	handlers := Handlers{
		Tokens:        handler.NewTokenHandler(app.Services.Ledger),
		Chat:          handler.NewChatHandler(app.Services.Chat),
		Conversations: handler.NewConversationHandler(app.Services.Conversations),
		Support:       handler.NewSupportHandler(app.Services.Support),
		Health: handler.NewHealthHandler(handler.HealthDeps{
			AppName:   app.Config.App.Name,
			Env:       app.Config.App.Env,
			StartedAt: app.StartedAt,
			DB:        app.DB,
			Redis:     app.Redis,
			MQConn:    app.MQConn,
		}),
	}
	return newEngine(handlers, RouterOptions{
		Logger:    app.Logger,
		JWTSecret: app.Config.Auth.JWTSecret,
		StaticDir: app.Config.App.StaticDir,
	})
}

func newEngine(h Handlers, opts RouterOptions) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	router := gin.New()
	router.Use(middleware.RequestLogger(opts.Logger), gin.Recovery(), middleware.CORS())

	router.GET("/healthz", h.Health.Check)
	mountStatic(router, opts.StaticDir)

	api := router.Group("/")
	api.Use(middleware.AuthJWT(opts.JWTSecret))

	api.GET("/tokens/:user_id", h.Tokens.Balance)
	api.POST("/tokens/reset/:user_id", h.Tokens.Reset)

	api.POST("/chat", h.Chat.Send)
	api.POST("/chat/response", h.Chat.RecordResponse)
	api.POST("/chat/converse", h.Chat.Converse)
	api.POST("/proxy/chat", h.Chat.Proxy)

	// GET /conversations/:id lists by user id; the nested routes take a
	// conversation id in the same position.
	api.GET("/conversations/:id", h.Conversations.List)
	api.POST("/conversations/new", h.Conversations.Create)
	api.GET("/conversations/:id/messages", h.Conversations.Messages)
	api.PUT("/conversations/:id/title", h.Conversations.Rename)
	api.PUT("/conversations/:id/pin", h.Conversations.TogglePin)
	api.DELETE("/conversations/:id", h.Conversations.Delete)
	api.POST("/messages", h.Conversations.AppendMessage)

	api.GET("/support/bots", h.Support.ListBots)
	api.POST("/support/select/:bot_id", h.Support.SelectBot)

	return router
}

func mountStatic(router *gin.Engine, dir string) {
	if dir == "" {
		return
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return
	}
	router.Static("/static", dir)
	index := filepath.Join(dir, "index.html")
	if _, err := os.Stat(index); err == nil {
		router.StaticFile("/", index)
	}
}
