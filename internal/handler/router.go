package handler

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"vita-chat/internal/config"
	"vita-chat/internal/responder"
	"vita-chat/internal/storage"
)

// Deps are the collaborators the stub router wires into its handlers.
type Deps struct {
	Storage    storage.Storage
	Responder  responder.Responder
	SendVerify VerificationSender
}

// Router bundles the engine with the handlers it serves.
type Router struct {
	*gin.Engine
	Auth *AuthHandler
}

func NewRouter(cfg *config.Config, deps Deps) *Router {
	auth := NewAuthHandler(deps.Storage, cfg.Server.AutoVerify, deps.SendVerify)
	chat := NewChatHandler(deps.Storage, deps.Responder, cfg.Server.HeartbeatInterval)
	users := NewUserHandler(deps.Storage)
	entries := NewMedicalEntryHandler(deps.Storage)

	router := gin.New()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	if len(cfg.CORS.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     cfg.CORS.AllowedMethods,
			AllowHeaders:     cfg.CORS.AllowedHeaders,
			ExposeHeaders:    cfg.CORS.ExposedHeaders,
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
		}))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})
	router.GET("/uploads/:name", users.Avatar)

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/signin", auth.SignIn)
		authGroup.POST("/signup", auth.SignUp)
		authGroup.GET("/verify", auth.Verify)
	}

	conversation := router.Group("/conversation", auth.RequireAuth())
	{
		conversation.GET("", chat.ListConversations)
		conversation.POST("", chat.CreateConversation)
		conversation.POST("/chat", chat.Chat)
		conversation.GET("/:id", chat.GetConversation)
		conversation.PATCH("/:id", chat.RenameConversation)
		conversation.DELETE("/:id", chat.DeleteConversation)
	}

	user := router.Group("/user", auth.RequireAuth())
	{
		user.GET("/me", users.GetMe)
		user.PATCH("/me", users.UpdateMe)
		user.PUT("/profile", users.UpdateProfile)
	}

	medical := router.Group("/medicalentry", auth.RequireAuth())
	{
		medical.GET("", entries.List)
		medical.GET("/:id", entries.Get)

		admin := medical.Group("", auth.RequireAdmin())
		admin.POST("", entries.Create)
		admin.POST("/scrape", entries.Scrape)
		admin.PUT("/:id", entries.Update)
		admin.DELETE("/:id", entries.Delete)
	}

	return &Router{Engine: router, Auth: auth}
}
