package core

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// ChatCompletionsPayload is the upstream-native chat request built from an
// Anthropic-shaped consumer request.
type ChatCompletionsPayload struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	Stop        []string  `json:"stop,omitempty"`
	Stream      bool      `json:"stream"`
}

// ResponseMessage is the assistant message of a completion choice.
type ResponseMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

// ChatCompletionChoice represents a single choice in a chat completion response.
type ChatCompletionChoice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason *string         `json:"finish_reason"`
}

// OpenAIUsage represents token usage statistics in OpenAI format.
type OpenAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionResponse is the non-streaming chat completion response.
type ChatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []ChatCompletionChoice `json:"choices"`
	Usage   *OpenAIUsage           `json:"usage,omitempty"`
}

// ChunkDelta is the incremental message carried by a stream chunk.
type ChunkDelta struct {
	Role    string  `json:"role,omitempty"`
	Content *string `json:"content,omitempty"`
}

// ChunkChoice represents a single choice in a streaming chunk.
type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

// ChatCompletionChunk is one server-sent event of a streaming completion.
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
	Usage   *OpenAIUsage  `json:"usage,omitempty"`
}

// EmbeddingInput accepts a single string or an array of strings.
type EmbeddingInput []string

// UnmarshalJSON custom JSON parsing, supports string and array formats.
func (in *EmbeddingInput) UnmarshalJSON(data []byte) error {
	var single string
	if err := sonic.Unmarshal(data, &single); err == nil {
		*in = EmbeddingInput{single}
		return nil
	}
	var many []string
	if err := sonic.Unmarshal(data, &many); err == nil {
		*in = many
		return nil
	}
	return fmt.Errorf("input must be a string or an array of strings")
}

// EmbeddingRequest is the embeddings request accepted from consumers and sent upstream.
type EmbeddingRequest struct {
	Input EmbeddingInput `json:"input"`
	Model string         `json:"model"`
}
