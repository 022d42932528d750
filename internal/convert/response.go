package convert

import (
	"fmt"

	"copilot-gateway/internal/core"
	"copilot-gateway/internal/util"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// MapStopReason maps an upstream finish reason onto an Anthropic stop_reason:
// "stop" ends the turn, anything else is reported as hitting max_tokens.
func MapStopReason(finishReason string) string {
	if finishReason == core.FinishReasonStop {
		return core.StopReasonEndTurn
	}
	return core.StopReasonMaxTokens
}

// ToAnthropicResponse reshapes a non-streaming chat completion into an
// Anthropic message using its first choice.
func ToAnthropicResponse(body []byte, requestModel string) (*core.AnthropicMessagesResponse, error) {
	var resp core.ChatCompletionResponse
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion has no choices")
	}

	choice := resp.Choices[0]
	text := ""
	if choice.Message.Content != nil {
		text = *choice.Message.Content
	}
	finish := ""
	if choice.FinishReason != nil {
		finish = *choice.FinishReason
	}
	stopReason := MapStopReason(finish)

	usage := &core.AnthropicUsage{}
	if resp.Usage != nil {
		usage.InputTokens = resp.Usage.PromptTokens
		usage.OutputTokens = resp.Usage.CompletionTokens
	}

	return &core.AnthropicMessagesResponse{
		ID:         messageID(resp.ID),
		Type:       core.AnthropicTypeMessage,
		Role:       core.RoleAssistant,
		Content:    []core.AnthropicContentBlock{{Type: core.ContentBlockTypeText, Text: text}},
		Model:      firstNonEmpty(resp.Model, requestModel),
		StopReason: &stopReason,
		Usage:      usage,
	}, nil
}

// ChunkToAnthropic reshapes a single streaming chunk. Use a ChunkTranslator
// when the chunks belong to one stream.
func ChunkToAnthropic(chunk []byte, requestModel string) (*core.AnthropicMessagesResponse, error) {
	return NewChunkTranslator(requestModel).Translate(chunk)
}

// ChunkTranslator reshapes the chunks of one stream. Chunks without an
// upstream id all carry the same generated message id.
type ChunkTranslator struct {
	requestModel string
	fallbackID   string
}

// NewChunkTranslator creates a translator for one stream.
func NewChunkTranslator(requestModel string) *ChunkTranslator {
	return &ChunkTranslator{
		requestModel: requestModel,
		fallbackID:   messageID(""),
	}
}

// Translate reshapes one chunk as a miniature Anthropic message. stop_reason
// stays null until the chunk carries a finish reason.
func (t *ChunkTranslator) Translate(chunk []byte) (*core.AnthropicMessagesResponse, error) {
	if !gjson.ValidBytes(chunk) {
		return nil, fmt.Errorf("chunk is not valid JSON")
	}
	parsed := gjson.ParseBytes(chunk)

	out := &core.AnthropicMessagesResponse{
		ID:      firstNonEmpty(parsed.Get("id").String(), t.fallbackID),
		Type:    core.AnthropicTypeMessage,
		Role:    core.RoleAssistant,
		Content: []core.AnthropicContentBlock{},
		Model:   firstNonEmpty(parsed.Get("model").String(), t.requestModel),
	}

	if choice := parsed.Get("choices.0"); choice.Exists() {
		out.Content = append(out.Content, core.AnthropicContentBlock{
			Type: core.ContentBlockTypeText,
			Text: choice.Get("delta.content").String(),
		})
		if fr := choice.Get("finish_reason"); fr.Type == gjson.String && fr.Str != "" {
			stopReason := MapStopReason(fr.Str)
			out.StopReason = &stopReason
		}
	}

	if usage := parsed.Get("usage"); usage.IsObject() {
		out.Usage = &core.AnthropicUsage{
			InputTokens:  int(usage.Get("prompt_tokens").Int()),
			OutputTokens: int(usage.Get("completion_tokens").Int()),
		}
	}
	return out, nil
}

// CountAnthropicTokens estimates the prompt size of an Anthropic request.
// Roles and text are counted; images are not.
func CountAnthropicTokens(req *core.AnthropicMessagesRequest) int {
	total := 0
	if req.System != "" {
		total += util.EstimateTokenCount(string(req.System))
	}
	for _, msg := range req.Messages {
		total += util.EstimateTokenCount(msg.Role)
		if msg.Content.Text != nil {
			total += util.EstimateTokenCount(*msg.Content.Text)
			continue
		}
		for _, block := range msg.Content.Blocks {
			if block.Type == core.ContentBlockTypeText && block.Text != "" {
				total += util.EstimateTokenCount(block.Text)
			}
		}
	}
	return total
}

func messageID(upstreamID string) string {
	if upstreamID != "" {
		return upstreamID
	}
	return core.MessageIDPrefix + uuid.NewString()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
