package api

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, apiAccessKey string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	// CORS middleware for API endpoints
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, apiAccessKey)

	return r
}

// setupRoutes configures all the application routes
func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string) {
	r.GET("/health", handler.GetHealth)
	r.GET("/stats", handler.GetStats)

	if apiAccessKey != "" {
		api := r.Group("/api")
		api.Use(authMiddleware(apiAccessKey))
		{
			api.GET("/channels", handler.ListChannels)
			api.POST("/channels", handler.CreateChannel)
			api.GET("/channels/:id", handler.GetChannel)
			api.PATCH("/channels/:id", handler.UpdateChannel)
			api.DELETE("/channels/:id", handler.DeleteChannel)

			api.GET("/channels/:id/sources", handler.ListSources)
			api.POST("/channels/:id/sources", handler.CreateSource)
			api.DELETE("/sources/:id", handler.DeleteSource)

			api.POST("/channels/:id/fetch", handler.FetchChannel)
			api.GET("/channels/:id/queue", handler.GetQueue)
			api.DELETE("/channels/:id/queue", handler.ClearQueue)

			api.GET("/posts/:id", handler.GetPost)
			api.PATCH("/posts/:id", handler.UpdatePost)
			api.DELETE("/posts/:id", handler.DeletePost)
			api.POST("/posts/:id/publish", handler.PublishPost)
			api.POST("/posts/:id/approve", handler.ApprovePost)
			api.POST("/posts/:id/reject", handler.RejectPost)
		}
		log.Printf("Operator endpoints enabled with authentication")
	} else {
		log.Printf("Operator endpoints disabled (API_ACCESS_KEY not set)")
	}

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}

// authMiddleware creates authentication middleware for operator endpoints
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
