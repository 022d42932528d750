package server

import (
	"context"
	"net/http"
	"time"

	"copilot-gateway/internal/core"

	"github.com/gin-gonic/gin"
)

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Server running"})
}

func (s *Server) healthCheck(c *gin.Context) {
	creds := s.store.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"has_session":    creds.HasSession(time.Now()),
		"models_loaded":  s.catalog.Raw() != nil,
		"last_admission": s.lastAdmission(),
	})
}

func (s *Server) lastAdmission() any {
	type lastAdmitter interface{ LastAdmitted() time.Time }
	if g, ok := s.gate.(lastAdmitter); ok {
		if t := g.LastAdmitted(); !t.IsZero() {
			return t.Format(time.RFC3339)
		}
	}
	return nil
}

func (s *Server) getUsage(c *gin.Context) {
	if s.github == nil {
		respondWithOpenAIError(c, http.StatusServiceUnavailable, core.OpenAIErrorAPI, "usage lookup not configured")
		return
	}
	token := s.store.IdentityToken()
	if token == "" {
		respondWithOpenAIError(c, http.StatusServiceUnavailable, core.OpenAIErrorAPI, "GitHub token not available")
		return
	}

	body, cached, err := s.usage.Fetch(c.Request.Context(), func(ctx context.Context) ([]byte, error) {
		return s.github.Usage(ctx, token)
	})
	if err != nil {
		s.respondWithError(c, core.APIFormatOpenAI, err)
		return
	}
	if cached {
		c.Header("X-Cache", "HIT")
	}
	c.Data(http.StatusOK, core.ContentTypeJSON, body)
}

func (s *Server) getToken(c *gin.Context) {
	creds := s.store.Snapshot()
	resp := gin.H{
		"has_github_token":  creds.IdentityToken != "",
		"has_copilot_token": creds.SessionToken != "",
	}
	if !creds.SessionExpiry.IsZero() {
		resp["session_expires_at"] = creds.SessionExpiry.Format(time.RFC3339)
	}
	if s.refresher != nil {
		resp["refresher"] = s.refresher.Status()
	}
	if s.config.ShowToken {
		resp["github_token"] = creds.IdentityToken
		resp["copilot_token"] = creds.SessionToken
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getStatsData(c *gin.Context) {
	c.JSON(http.StatusOK, s.metricsService.Snapshot())
}
