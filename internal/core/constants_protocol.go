package core

// Default config constants
const (
	DefaultPort    = "4141"
	DefaultGinMode = "release"
	CORSMaxAge     = "86400"
)

// Content type and header constants
const (
	ContentTypeEventStream = "text/event-stream"
	ContentTypeJSON        = "application/json"
	CacheControlNoCache    = "no-cache"
	ConnectionKeepAlive    = "keep-alive"
	HeaderContentType      = "Content-Type"
	HeaderAuthorization    = "Authorization"
	HeaderAccept           = "Accept"
	HeaderCacheControl     = "Cache-Control"
	HeaderConnection       = "Connection"
	HeaderRetryAfter       = "Retry-After"
	HeaderXAPIKey          = "x-api-key"
	AuthBearerPrefix       = "Bearer "
	AuthTokenPrefix        = "token "
)

// SSE stream constants
const (
	StreamChunkDoneMessage = "[DONE]"
	StreamChunkPrefix      = "data: "
)

// Role constants
const (
	RoleAssistant = "assistant"
	RoleUser      = "user"
	RoleSystem    = "system"
	RoleTool      = "tool"
	RoleHuman     = "human"
)

// API format identifier constants
const (
	APIFormatOpenAI    = "openai"
	APIFormatAnthropic = "anthropic"
)
