package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"copilot-gateway/internal/core"

	"github.com/gin-gonic/gin"
)

// setStreamingHeaders sets streaming response HTTP headers
func setStreamingHeaders(c *gin.Context) {
	c.Header(core.HeaderContentType, core.ContentTypeEventStream)
	c.Header(core.HeaderCacheControl, core.CacheControlNoCache)
	c.Header(core.HeaderConnection, core.ConnectionKeepAlive)
}

// writeSSEData writes SSE format data
func writeSSEData(w io.Writer, data []byte) (int, error) {
	return fmt.Fprintf(w, "%s%s\n\n", core.StreamChunkPrefix, data)
}

// writeSSEDone writes SSE end marker
func writeSSEDone(w io.Writer) (int, error) {
	return fmt.Fprintf(w, "%s%s\n\n", core.StreamChunkPrefix, core.StreamChunkDoneMessage)
}

// respondWithOpenAIError returns OpenAI format error response
func respondWithOpenAIError(c *gin.Context, code int, errorType, message string) {
	c.JSON(code, gin.H{
		"error": gin.H{
			"message": message,
			"type":    errorType,
		},
	})
}

// respondWithAnthropicError returns Anthropic format error response
func respondWithAnthropicError(c *gin.Context, statusCode int, errorType, message string) {
	c.JSON(statusCode, gin.H{
		"type": core.AnthropicTypeError,
		"error": gin.H{
			"type":    errorType,
			"message": message,
		},
	})
}

// formatForPath picks the error shape of the front end serving path.
func formatForPath(path string) string {
	if strings.HasPrefix(path, "/v1/messages") {
		return core.APIFormatAnthropic
	}
	return core.APIFormatOpenAI
}

// failure is an error resolved to a consumer-facing status.
type failure struct {
	status  int
	errType string
	message string
}

// classify maps an error from translation, admission or the upstream call to
// a status and error type. UpstreamError is handled by respondWithError.
func classify(err error) failure {
	var (
		rateLimited *core.RateLimitedError
		unsupported *core.UnsupportedCapabilityError
		unknown     *core.UnknownModelError
		invalid     *core.InvalidRequestError
		netErr      net.Error
	)

	switch {
	case errors.As(err, &rateLimited):
		return failure{http.StatusTooManyRequests, core.OpenAIErrorRateLimit, err.Error()}
	case errors.Is(err, core.ErrApprovalDenied):
		return failure{http.StatusForbidden, core.OpenAIErrorPermission, err.Error()}
	case errors.As(err, &unsupported), errors.As(err, &invalid):
		return failure{http.StatusBadRequest, core.OpenAIErrorInvalidRequest, err.Error()}
	case errors.As(err, &unknown):
		return failure{http.StatusNotFound, core.OpenAIErrorNotFound, err.Error()}
	case errors.Is(err, core.ErrNoSessionToken):
		return failure{http.StatusServiceUnavailable, core.OpenAIErrorAPI, err.Error()}
	case errors.Is(err, context.Canceled):
		return failure{499, core.OpenAIErrorAPI, "request cancelled"}
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr):
		return failure{http.StatusBadGateway, core.OpenAIErrorAPI, "upstream unreachable: " + err.Error()}
	default:
		return failure{http.StatusInternalServerError, core.OpenAIErrorAPI, "internal server error"}
	}
}

// respondWithError writes err in the shape of the given front end. Upstream
// failures keep their status and body verbatim.
func (s *Server) respondWithError(c *gin.Context, format string, err error) {
	var upstream *core.UpstreamError
	if errors.As(err, &upstream) {
		contentType := core.ContentTypeJSON
		if upstream.Header != nil && upstream.Header.Get(core.HeaderContentType) != "" {
			contentType = upstream.Header.Get(core.HeaderContentType)
		}
		s.logger.Warn("Upstream error on %s: %v", c.Request.URL.Path, err)
		c.Data(upstream.Status, contentType, upstream.Body)
		return
	}

	f := classify(err)
	if f.status >= http.StatusInternalServerError {
		s.logger.Error("Request to %s failed: %v", c.Request.URL.Path, err)
	} else {
		s.logger.Debug("Request to %s rejected: %v", c.Request.URL.Path, err)
	}

	var rateLimited *core.RateLimitedError
	if errors.As(err, &rateLimited) {
		c.Header(core.HeaderRetryAfter, strconv.Itoa(rateLimited.WaitSeconds()))
	}

	if format == core.APIFormatAnthropic {
		respondWithAnthropicError(c, f.status, anthropicErrorType(f.errType), f.message)
		return
	}
	respondWithOpenAIError(c, f.status, f.errType, f.message)
}

func anthropicErrorType(openAIType string) string {
	switch openAIType {
	case core.OpenAIErrorInvalidRequest:
		return core.AnthropicErrorInvalidRequest
	case core.OpenAIErrorRateLimit:
		return core.AnthropicErrorRateLimit
	case core.OpenAIErrorPermission:
		return core.AnthropicErrorPermission
	case core.OpenAIErrorAuthentication:
		return core.AnthropicErrorAuthentication
	case core.OpenAIErrorNotFound:
		return core.AnthropicErrorModelNotFound
	default:
		return core.AnthropicErrorAPI
	}
}

// admissionSummary is the one-line description shown to the operator.
func admissionSummary(c *gin.Context, model string) string {
	return fmt.Sprintf("%s %s model=%s from %s", c.Request.Method, c.Request.URL.Path, model, c.ClientIP())
}
