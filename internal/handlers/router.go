package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"provably-fair-backend/internal/middleware"
)

type RouterConfig struct {
	Fairness       *FairnessHandler
	WebSocket      *WebSocketHandler
	Tokens         middleware.TokenValidator
	Limiter        middleware.RateLimiter
	RoundRateLimit int
	Middleware     []gin.HandlerFunc
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cfg.Middleware...)

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	h := cfg.Fairness
	operator := []gin.HandlerFunc{middleware.AuthMiddleware(cfg.Tokens), middleware.RequireOperator()}

	api := router.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/fairness/public-key", h.PublicKey)
		api.POST("/verify", h.Verify)

		seeds := api.Group("/seeds")
		{
			seeds.POST("", append(operator, h.CreateSeed)...)
			seeds.GET("/:id/commitment", h.GetCommitment)
			seeds.POST("/:id/reveal", append(operator, h.RevealSeed)...)
		}

		rounds := api.Group("/rounds")
		rounds.Use(middleware.OptionalAuth(cfg.Tokens))
		{
			rounds.POST("",
				middleware.RateLimitMiddleware(cfg.Limiter, cfg.RoundRateLimit, time.Minute),
				h.PlayRound)
			rounds.GET("/:id", h.GetRound)
		}

		audit := api.Group("/audit")
		audit.Use(operator...)
		{
			audit.GET("", h.ExportAudit)
			if cfg.WebSocket != nil {
				audit.GET("/ws", cfg.WebSocket.HandleWebSocket)
			}
		}
	}

	return router
}
