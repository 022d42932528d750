package server

import (
	"errors"
	"net/http"

	"copilot-gateway/internal/core"

	"github.com/gin-gonic/gin"
)

func (s *Server) setupRoutes() {
	gin.SetMode(s.ginMode)
	s.router = gin.New()

	s.router.Use(gin.CustomRecoveryWithWriter(nil, s.recoverPanic))
	s.router.Use(s.requestLogger())
	s.router.Use(s.corsMiddleware())
	s.router.Use(s.maxBodySizeMiddleware())
	s.router.Use(s.clientRateLimitMiddleware())

	// Public routes (no auth)
	s.router.GET("/", s.root)
	s.router.GET("/health", s.healthCheck)

	api := s.router.Group("/")
	api.Use(s.authenticateClient)
	{
		api.POST("/chat/completions", s.chatCompletions)
		api.POST("/v1/chat/completions", s.chatCompletions)
		api.POST("/v1/messages", s.anthropicMessages)
		api.POST("/v1/messages/count_tokens", s.countTokens)

		api.GET("/models", s.listModels)
		api.GET("/v1/models", s.listModels)

		api.POST("/embeddings", s.embeddings)
		api.POST("/v1/embeddings", s.embeddings)

		api.GET("/usage", s.getUsage)
		api.GET("/token", s.getToken)
		api.GET("/api/stats", s.getStatsData)
	}
}

// recoverPanic answers handler panics with a 500. http.ErrAbortHandler is
// re-raised so net/http drops the connection of a broken stream.
func (s *Server) recoverPanic(c *gin.Context, recovered any) {
	if err, ok := recovered.(error); ok && errors.Is(err, http.ErrAbortHandler) {
		panic(http.ErrAbortHandler)
	}
	s.logger.Error("Panic in handler %s: %v", c.Request.URL.Path, recovered)
	if c.Writer.Written() {
		c.Abort()
		return
	}
	if formatForPath(c.Request.URL.Path) == core.APIFormatAnthropic {
		respondWithAnthropicError(c, http.StatusInternalServerError, core.AnthropicErrorAPI, "internal server error")
	} else {
		respondWithOpenAIError(c, http.StatusInternalServerError, core.OpenAIErrorAPI, "internal server error")
	}
	c.Abort()
}
