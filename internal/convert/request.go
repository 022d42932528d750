package convert

import (
	"errors"
	"fmt"

	"copilot-gateway/internal/core"
	"copilot-gateway/internal/util"
	"copilot-gateway/internal/validate"

	"github.com/bytedance/sonic"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// CapabilityVision names the capability required by requests carrying images.
const CapabilityVision = "vision"

// CapabilityLookup resolves a model id to its capability descriptor.
type CapabilityLookup interface {
	Lookup(model string) (core.CapabilityDescriptor, bool)
}

// Request is an upstream chat call derived from a consumer request.
type Request struct {
	Model  string
	Body   []byte
	Stream bool
	// Vision is set when any message carries an image part.
	Vision bool
	// Agent is set when the conversation already holds an assistant or tool turn.
	Agent bool
}

var imageValidator = validate.NewImageValidator()

// AnthropicToMessages normalizes an Anthropic request into chat messages.
// The system field, when present, becomes the leading system message.
func AnthropicToMessages(req *core.AnthropicMessagesRequest) ([]core.Message, error) {
	messages := make([]core.Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, core.Message{Role: core.RoleSystem, Content: core.TextContent(req.System)})
	}

	for i, msg := range req.Messages {
		content, err := anthropicContent(msg.Content)
		if err != nil {
			return nil, fmt.Errorf("messages[%d]: %w", i, err)
		}
		messages = append(messages, core.Message{Role: normalizeRole(msg.Role), Content: content})
	}
	return messages, nil
}

func normalizeRole(role string) string {
	if role == core.RoleHuman {
		return core.RoleUser
	}
	return role
}

func anthropicContent(c core.AnthropicContent) (core.Content, error) {
	if c.Text != nil {
		return core.TextContent(*c.Text), nil
	}

	parts := make(core.PartsContent, 0, len(c.Blocks))
	for _, block := range c.Blocks {
		switch block.Type {
		case core.ContentBlockTypeText:
			parts = append(parts, core.TextPart{Text: block.Text})
		case core.ContentBlockTypeImage:
			url, err := imageValidator.ValidateSource(block.Source)
			if err != nil {
				return nil, &core.InvalidRequestError{Reason: err.Error()}
			}
			parts = append(parts, core.ImagePart{URL: url})
		case core.ContentBlockTypeToolUse, core.ContentBlockTypeToolResult:
			return nil, &core.UnsupportedCapabilityError{Capability: block.Type + " content blocks"}
		default:
			return nil, &core.InvalidRequestError{Reason: fmt.Sprintf("unsupported content block type %q", block.Type)}
		}
	}
	return parts, nil
}

// HasVision reports whether any message carries an image part.
func HasVision(messages []core.Message) bool {
	for _, msg := range messages {
		if core.HasImage(msg.Content) {
			return true
		}
	}
	return false
}

// IsAgentCall reports whether the conversation already contains an
// assistant or tool turn.
func IsAgentCall(messages []core.Message) bool {
	for _, msg := range messages {
		if msg.Role == core.RoleAssistant || msg.Role == core.RoleTool {
			return true
		}
	}
	return false
}

// ResolveMaxTokens returns the output-token ceiling to send upstream.
// An explicit ceiling always wins; otherwise the descriptor's limit is used
// when known, and nil lets the upstream apply its own default. Vision requests
// need a descriptor: a model without vision support is rejected, and a model
// with no descriptor at all is rejected only when no ceiling was given.
func ResolveMaxTokens(model string, explicit *int, vision bool, lookup CapabilityLookup) (*int, error) {
	var (
		desc  core.CapabilityDescriptor
		found bool
	)
	if lookup != nil {
		desc, found = lookup.Lookup(model)
	}

	if vision {
		switch {
		case found && !desc.SupportsVision:
			return nil, &core.UnsupportedCapabilityError{Model: model, Capability: CapabilityVision}
		case !found && explicit == nil:
			return nil, &core.UnknownModelError{Model: model}
		}
	}

	if explicit != nil {
		return explicit, nil
	}
	if found && desc.MaxOutputTokens > 0 {
		ceiling := desc.MaxOutputTokens
		return &ceiling, nil
	}
	return nil, nil
}

// FromAnthropic builds the upstream chat payload for an Anthropic request.
func FromAnthropic(req *core.AnthropicMessagesRequest, lookup CapabilityLookup) (*Request, error) {
	if req.Model == "" {
		return nil, &core.InvalidRequestError{Reason: "model is required"}
	}
	if len(req.Messages) == 0 {
		return nil, &core.InvalidRequestError{Reason: "messages must not be empty"}
	}

	messages, err := AnthropicToMessages(req)
	if err != nil {
		return nil, withModel(err, req.Model)
	}

	vision := HasVision(messages)
	maxTokens, err := ResolveMaxTokens(req.Model, req.MaxTokens, vision, lookup)
	if err != nil {
		return nil, err
	}

	payload := core.ChatCompletionsPayload{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.StopSequences,
		Stream:      req.Stream,
	}
	body, err := util.MarshalJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("encode chat payload: %w", err)
	}

	return &Request{
		Model:  req.Model,
		Body:   body,
		Stream: req.Stream,
		Vision: vision,
		Agent:  IsAgentCall(messages),
	}, nil
}

// FromOpenAI prepares an OpenAI-shaped request body for the upstream. The body
// is forwarded as received; only max_tokens is filled in when absent.
func FromOpenAI(body []byte, lookup CapabilityLookup) (*Request, error) {
	if !gjson.ValidBytes(body) {
		return nil, &core.InvalidRequestError{Reason: "body is not valid JSON"}
	}

	model := gjson.GetBytes(body, "model").String()
	if model == "" {
		return nil, &core.InvalidRequestError{Reason: "model is required"}
	}

	rawMessages := gjson.GetBytes(body, "messages")
	if !rawMessages.IsArray() || len(rawMessages.Array()) == 0 {
		return nil, &core.InvalidRequestError{Reason: "messages must be a non-empty array"}
	}

	var messages []core.Message
	if err := sonic.UnmarshalString(rawMessages.Raw, &messages); err != nil {
		return nil, &core.InvalidRequestError{Reason: err.Error()}
	}
	if err := validateImageParts(messages); err != nil {
		return nil, err
	}

	var explicit *int
	if mt := gjson.GetBytes(body, "max_tokens"); mt.Type == gjson.Number {
		v := int(mt.Int())
		explicit = &v
	}

	vision := HasVision(messages)
	maxTokens, err := ResolveMaxTokens(model, explicit, vision, lookup)
	if err != nil {
		return nil, err
	}

	out := body
	if explicit == nil && maxTokens != nil {
		out, err = sjson.SetBytes(body, "max_tokens", *maxTokens)
		if err != nil {
			return nil, fmt.Errorf("set max_tokens: %w", err)
		}
	}

	return &Request{
		Model:  model,
		Body:   out,
		Stream: gjson.GetBytes(body, "stream").Bool(),
		Vision: vision,
		Agent:  IsAgentCall(messages),
	}, nil
}

func validateImageParts(messages []core.Message) error {
	for i, msg := range messages {
		parts, ok := msg.Content.(core.PartsContent)
		if !ok {
			continue
		}
		for _, part := range parts {
			img, ok := part.(core.ImagePart)
			if !ok {
				continue
			}
			if err := imageValidator.ValidateURL(img.URL); err != nil {
				return &core.InvalidRequestError{Reason: fmt.Sprintf("messages[%d]: %v", i, err)}
			}
		}
	}
	return nil
}

func withModel(err error, model string) error {
	var uc *core.UnsupportedCapabilityError
	if errors.As(err, &uc) && uc.Model == "" {
		uc.Model = model
	}
	return err
}
