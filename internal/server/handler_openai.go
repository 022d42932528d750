package server

import (
	"errors"
	"net/http"
	"time"

	"copilot-gateway/internal/convert"
	"copilot-gateway/internal/core"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

func rawBody(body []byte) ([]byte, error) {
	return body, nil
}

func (s *Server) chatCompletions(c *gin.Context) {
	startTime := time.Now()

	body, err := c.GetRawData()
	if err != nil {
		s.rejectBody(c, core.APIFormatOpenAI, err)
		return
	}

	s.serveChat(c, startTime, chatCall{
		format: core.APIFormatOpenAI,
		model:  gjson.GetBytes(body, "model").String(),
		translate: func() (*convert.Request, error) {
			return convert.FromOpenAI(body, s.catalog)
		},
		encode:   passThrough,
		complete: rawBody,
	})
}

func (s *Server) embeddings(c *gin.Context) {
	startTime := time.Now()

	var request core.EmbeddingRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		s.rejectBody(c, core.APIFormatOpenAI, err)
		return
	}
	if request.Model == "" || len(request.Input) == 0 {
		s.recordChat(c, startTime, false, request.Model)
		respondWithOpenAIError(c, http.StatusBadRequest, core.OpenAIErrorInvalidRequest, "model and input are required")
		return
	}

	ctx := c.Request.Context()
	if err := s.gate.Admit(ctx, admissionSummary(c, request.Model)); err != nil {
		s.recordChat(c, startTime, false, request.Model)
		s.respondWithError(c, core.APIFormatOpenAI, err)
		return
	}

	resp, err := s.invoker.Embeddings(ctx, &request)
	if err != nil {
		s.recordChat(c, startTime, false, request.Model)
		s.respondWithError(c, core.APIFormatOpenAI, err)
		return
	}

	s.recordChat(c, startTime, true, request.Model)
	c.Data(http.StatusOK, core.ContentTypeJSON, resp)
}

func (s *Server) listModels(c *gin.Context) {
	raw := s.catalog.Raw()
	if raw == nil {
		respondWithOpenAIError(c, http.StatusServiceUnavailable, core.OpenAIErrorAPI, "model list not loaded yet")
		return
	}
	c.Data(http.StatusOK, core.ContentTypeJSON, raw)
}

// rejectBody answers a request whose body could not be read or decoded.
func (s *Server) rejectBody(c *gin.Context, format string, err error) {
	status := http.StatusBadRequest
	message := "invalid request body"
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		status = http.StatusRequestEntityTooLarge
		message = "request body too large"
	}
	s.metricsService.RecordSince(time.Now(), false, "", c.FullPath())

	if format == core.APIFormatAnthropic {
		respondWithAnthropicError(c, status, core.AnthropicErrorInvalidRequest, message)
		return
	}
	respondWithOpenAIError(c, status, core.OpenAIErrorInvalidRequest, message)
}
