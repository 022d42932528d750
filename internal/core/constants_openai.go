package core

// MessageIDPrefix prefixes generated Anthropic message ids.
const MessageIDPrefix = "msg_"

// OpenAI finish reason constants
const (
	FinishReasonStop      = "stop"
	FinishReasonToolCalls = "tool_calls"
	FinishReasonLength    = "length"
)

// OpenAI content part type constants
const (
	ContentPartTypeText     = "text"
	ContentPartTypeImageURL = "image_url"
)

// OpenAI error type constants
const (
	OpenAIErrorInvalidRequest = "invalid_request_error"
	OpenAIErrorRateLimit      = "rate_limit_error"
	OpenAIErrorPermission     = "permission_error"
	OpenAIErrorAuthentication = "authentication_error"
	OpenAIErrorNotFound       = "not_found_error"
	OpenAIErrorAPI            = "api_error"
)
