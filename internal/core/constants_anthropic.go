package core

// Anthropic response type constants
const (
	AnthropicTypeMessage = "message"
	AnthropicTypeError   = "error"
)

// Anthropic stop reason constants
const (
	StopReasonEndTurn   = "end_turn"
	StopReasonMaxTokens = "max_tokens"
)

// Anthropic content block type constants
const (
	ContentBlockTypeText       = "text"
	ContentBlockTypeImage      = "image"
	ContentBlockTypeToolUse    = "tool_use"
	ContentBlockTypeToolResult = "tool_result"
)

// Anthropic image source type constants
const (
	ImageSourceTypeBase64 = "base64"
	ImageSourceTypeURL    = "url"
)

// Anthropic error type constants
const (
	AnthropicErrorInvalidRequest = "invalid_request_error"
	AnthropicErrorAuthentication = "authentication_error"
	AnthropicErrorPermission     = "permission_error"
	AnthropicErrorRateLimit      = "rate_limit_error"
	AnthropicErrorAPI            = "api_error"
	AnthropicErrorModelNotFound  = "not_found_error"
)
