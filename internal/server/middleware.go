package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"copilot-gateway/internal/core"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func (s *Server) maxBodySizeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, core.MaxRequestBodySize)
		c.Next()
	}
}

// requestLogger logs one line per request through the application logger.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("%s %s -> %d (%s) from %s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), c.ClientIP())
	}
}

// clientLimiter keeps a token bucket per client IP.
type clientLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(ctx context.Context, perMinute int) *clientLimiter {
	cl := &clientLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    perMinute,
		idle:     5 * time.Minute,
		now:      time.Now,
	}
	go cl.cleanupLoop(ctx)
	return cl
}

func (cl *clientLimiter) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(cl.idle)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cl.evictIdle()
		case <-ctx.Done():
			return
		}
	}
}

func (cl *clientLimiter) evictIdle() {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cutoff := cl.now().Add(-cl.idle)
	for ip, v := range cl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(cl.visitors, ip)
		}
	}
}

func (cl *clientLimiter) allow(ip string) bool {
	cl.mu.Lock()
	now := cl.now()
	v, ok := cl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(cl.limit, cl.burst)}
		cl.visitors[ip] = v
	}
	v.lastSeen = now
	cl.mu.Unlock()
	return v.limiter.AllowN(now, 1)
}

func (s *Server) clientRateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.clientLimiter == nil || s.clientLimiter.allow(c.ClientIP()) {
			c.Next()
			return
		}
		respondWithOpenAIError(c, http.StatusTooManyRequests, core.OpenAIErrorRateLimit, "client rate limit exceeded")
		c.Abort()
	}
}

func (s *Server) isValidClientKey(providedKey string) bool {
	providedBytes := []byte(providedKey)
	for validKey := range s.validClientKeys {
		validBytes := []byte(validKey)
		if len(providedBytes) == len(validBytes) && subtle.ConstantTimeCompare(providedBytes, validBytes) == 1 {
			return true
		}
	}
	return false
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	allowOrigin := os.Getenv("CORS_ALLOW_ORIGIN")
	if allowOrigin == "" {
		allowOrigin = "*"
	}

	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", allowOrigin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, x-api-key, anthropic-version")
		c.Header("Access-Control-Max-Age", core.CORSMaxAge)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// authenticateClient checks the client key when keys are configured.
// With no keys the gateway is open.
func (s *Server) authenticateClient(c *gin.Context) {
	if len(s.validClientKeys) == 0 {
		return
	}

	apiKey := c.GetHeader(core.HeaderXAPIKey)
	if apiKey != "" {
		if s.isValidClientKey(apiKey) {
			return
		}
		s.rejectClient(c, http.StatusForbidden, "Invalid client API key (x-api-key)")
		return
	}

	authHeader := c.GetHeader(core.HeaderAuthorization)
	if authHeader != "" {
		token := strings.TrimPrefix(authHeader, core.AuthBearerPrefix)
		if s.isValidClientKey(token) {
			return
		}
		s.rejectClient(c, http.StatusForbidden, "Invalid client API key (Bearer token)")
		return
	}

	s.rejectClient(c, http.StatusUnauthorized, "API key required in Authorization header (Bearer) or x-api-key header")
}

func (s *Server) rejectClient(c *gin.Context, status int, message string) {
	errType := core.OpenAIErrorAuthentication
	if status == http.StatusForbidden {
		errType = core.OpenAIErrorPermission
	}
	if formatForPath(c.Request.URL.Path) == core.APIFormatAnthropic {
		respondWithAnthropicError(c, status, anthropicErrorType(errType), message)
	} else {
		respondWithOpenAIError(c, status, errType, message)
	}
	c.Abort()
}
