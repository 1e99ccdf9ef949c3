package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"campusmarket/internal/infra/config"
	"campusmarket/internal/infra/obs"
)

type FeedHTTP interface {
	Catalog(c *gin.Context)
	More(c *gin.Context)
}

type ListingHTTP interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	UploadPhoto(c *gin.Context)
}

type SavedHTTP interface {
	Get(c *gin.Context)
	Toggle(c *gin.Context)
	List(c *gin.Context)
}

type ChatHTTP interface {
	ListConversations(c *gin.Context)
	OpenConversation(c *gin.Context)
	GetConversation(c *gin.Context)
	SendMessage(c *gin.Context)
	UnreadBadge(c *gin.Context)
}

type AdminHTTP interface {
	Submit(c *gin.Context)
	Approve(c *gin.Context)
	Reject(c *gin.Context)
	Counts(c *gin.Context)
	Audit(c *gin.Context)
}

type Handlers struct {
	Feed           FeedHTTP
	Listing        ListingHTTP
	Saved          SavedHTTP
	Chat           ChatHTTP
	Admin          AdminHTTP
	AuthMiddleware gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Feed != nil {
		api.GET("/feed", h.Feed.Catalog)
		api.POST("/feed/more", h.Feed.More)
	}
	if h.Listing != nil {
		api.POST("/listings", h.Listing.Create)
		api.GET("/listings/:id", h.Listing.Get)
		api.POST("/listings/:id/photos", h.Listing.UploadPhoto)
	}
	if h.Saved != nil {
		api.GET("/saved", h.Saved.List)
		api.GET("/listings/:id/saved", h.Saved.Get)
		api.POST("/listings/:id/saved", h.Saved.Toggle)
	}
	if h.Chat != nil {
		api.GET("/conversations", h.Chat.ListConversations)
		api.POST("/conversations", h.Chat.OpenConversation)
		api.GET("/conversations/:id", h.Chat.GetConversation)
		api.POST("/conversations/:id/messages", h.Chat.SendMessage)
		api.GET("/unread", h.Chat.UnreadBadge)
	}
	if h.Admin != nil {
		adminGroup := api.Group("/moderation")
		adminGroup.POST("/:kind/:id/submit", h.Admin.Submit)
		adminGroup.POST("/:kind/:id/approve", h.Admin.Approve)
		adminGroup.POST("/:kind/:id/reject", h.Admin.Reject)
		adminGroup.GET("/:kind/counts", h.Admin.Counts)
		adminGroup.GET("/:kind/:id/audit", h.Admin.Audit)
	}

	return &http.Server{Addr: cfg.HTTPAddr, Handler: router}
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
