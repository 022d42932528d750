package core

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// AnthropicImageSource is the source of an Anthropic image block.
type AnthropicImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// AnthropicContentBlock represents a content block in an Anthropic message.
type AnthropicContentBlock struct {
	Type      string                `json:"type"`
	Text      string                `json:"text"`
	Source    *AnthropicImageSource `json:"source,omitempty"`
	ID        string                `json:"id,omitempty"`
	Name      string                `json:"name,omitempty"`
	ToolUseID string                `json:"tool_use_id,omitempty"`
}

// AnthropicContent is message content given either as a string or as blocks.
type AnthropicContent struct {
	Text   *string
	Blocks []AnthropicContentBlock
}

// UnmarshalJSON custom JSON parsing, supports string and block array formats.
func (c *AnthropicContent) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*c = AnthropicContent{}
		return nil
	}
	var str string
	if err := sonic.Unmarshal(trimmed, &str); err == nil {
		*c = AnthropicContent{Text: &str}
		return nil
	}
	var blocks []AnthropicContentBlock
	if err := sonic.Unmarshal(trimmed, &blocks); err == nil {
		*c = AnthropicContent{Blocks: blocks}
		return nil
	}
	return fmt.Errorf("invalid content format")
}

// MarshalJSON encodes the content in the form it was received.
func (c AnthropicContent) MarshalJSON() ([]byte, error) {
	if c.Text != nil {
		return sonic.Marshal(*c.Text)
	}
	if c.Blocks == nil {
		return []byte("[]"), nil
	}
	return sonic.Marshal(c.Blocks)
}

// AnthropicMessage represents a message in the Anthropic Messages API format.
type AnthropicMessage struct {
	Role    string           `json:"role"`
	Content AnthropicContent `json:"content"`
}

// FlexibleString supports string or array form of system field.
type FlexibleString string

// UnmarshalJSON custom JSON parsing, supports string and array formats.
func (fs *FlexibleString) UnmarshalJSON(data []byte) error {
	var str string
	if err := sonic.Unmarshal(data, &str); err == nil {
		*fs = FlexibleString(str)
		return nil
	}

	var arr []map[string]any
	if err := sonic.Unmarshal(data, &arr); err == nil {
		parts := make([]string, 0, len(arr))
		for _, item := range arr {
			if text, ok := item["text"].(string); ok {
				parts = append(parts, text)
			}
		}
		*fs = FlexibleString(strings.Join(parts, ""))
		return nil
	}

	return fmt.Errorf("invalid system field format")
}

// AnthropicMessagesRequest is the Anthropic Messages API request payload.
type AnthropicMessagesRequest struct {
	Model         string             `json:"model"`
	MaxTokens     *int               `json:"max_tokens,omitempty"`
	Messages      []AnthropicMessage `json:"messages"`
	System        FlexibleString     `json:"system,omitempty"`
	Temperature   *float64           `json:"temperature,omitempty"`
	TopP          *float64           `json:"top_p,omitempty"`
	TopK          *int               `json:"top_k,omitempty"`
	Stream        bool               `json:"stream,omitempty"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
	Metadata      map[string]any     `json:"metadata,omitempty"`
}

// AnthropicUsage holds token usage information for Anthropic API responses.
type AnthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// AnthropicMessagesResponse is the Anthropic-shaped message. Stream chunks use
// the same shape with a null stop_reason until the upstream reports one.
type AnthropicMessagesResponse struct {
	ID           string                  `json:"id"`
	Type         string                  `json:"type"`
	Role         string                  `json:"role"`
	Content      []AnthropicContentBlock `json:"content"`
	Model        string                  `json:"model"`
	StopReason   *string                 `json:"stop_reason"`
	StopSequence *string                 `json:"stop_sequence"`
	Usage        *AnthropicUsage         `json:"usage,omitempty"`
}

// AnthropicCountTokensResponse is the count_tokens response.
type AnthropicCountTokensResponse struct {
	InputTokens int `json:"input_tokens"`
}
