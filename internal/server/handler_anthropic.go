package server

import (
	"net/http"
	"time"

	"copilot-gateway/internal/convert"
	"copilot-gateway/internal/core"
	"copilot-gateway/internal/util"

	"github.com/gin-gonic/gin"
)

func (s *Server) anthropicMessages(c *gin.Context) {
	startTime := time.Now()

	var request core.AnthropicMessagesRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		s.rejectBody(c, core.APIFormatAnthropic, err)
		return
	}

	s.serveChat(c, startTime, chatCall{
		format: core.APIFormatAnthropic,
		model:  request.Model,
		translate: func() (*convert.Request, error) {
			return convert.FromAnthropic(&request, s.catalog)
		},
		encode: anthropicChunkEncoder(request.Model),
		complete: func(body []byte) ([]byte, error) {
			msg, err := convert.ToAnthropicResponse(body, request.Model)
			if err != nil {
				return nil, err
			}
			return util.MarshalJSON(msg)
		},
	})
}

func (s *Server) countTokens(c *gin.Context) {
	var request core.AnthropicMessagesRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		s.rejectBody(c, core.APIFormatAnthropic, err)
		return
	}
	c.JSON(http.StatusOK, core.AnthropicCountTokensResponse{
		InputTokens: convert.CountAnthropicTokens(&request),
	})
}
