package api

import (
	"time"

	"github.com/gin-gonic/gin"

	logx "github.com/chative-dialogue/server/pkg/logger"
)

// NewRouter wires the routes. Gin's own logger is replaced by structured
// request logs.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", h.Health)

	v1 := r.Group("/v1")
	{
		conversations := v1.Group("/conversations/:id")
		conversations.POST("/turns", h.HandleTurn)
		conversations.GET("", h.GetConversation)
		conversations.DELETE("", h.EndConversation)

		v1.POST("/tools/refresh", h.RefreshTools)
	}
	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logx.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("HTTP request")
	}
}
