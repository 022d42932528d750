package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// Message is the protocol-neutral chat message sent to the Copilot backend.
// Both consumer protocols are normalized into this form before translation.
type Message struct {
	Role       string
	Content    Content
	Name       string
	ToolCalls  json.RawMessage
	ToolCallID string
}

// Content is either TextContent or PartsContent. A nil Content encodes as null.
type Content interface {
	isContent()
}

// TextContent is plain string content.
type TextContent string

// PartsContent is an ordered sequence of typed parts.
type PartsContent []ContentPart

func (TextContent) isContent()  {}
func (PartsContent) isContent() {}

// ContentPart is one of TextPart, ImagePart or RawPart.
type ContentPart interface {
	isContentPart()
}

// TextPart is a text segment of multi-part content.
type TextPart struct {
	Text string
}

// ImagePart references an image by URL (including data: URLs).
type ImagePart struct {
	URL    string
	Detail string
}

// RawPart keeps a part type the gateway does not interpret, forwarded as is.
type RawPart json.RawMessage

func (TextPart) isContentPart()  {}
func (ImagePart) isContentPart() {}
func (RawPart) isContentPart()   {}

type textPartWire struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type imageURLWire struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type imagePartWire struct {
	Type     string       `json:"type"`
	ImageURL imageURLWire `json:"image_url"`
}

// MarshalJSON encodes the part in OpenAI content-part form.
func (p TextPart) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(textPartWire{Type: ContentPartTypeText, Text: p.Text})
}

// MarshalJSON encodes the part in OpenAI content-part form.
func (p ImagePart) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(imagePartWire{
		Type:     ContentPartTypeImageURL,
		ImageURL: imageURLWire{URL: p.URL, Detail: p.Detail},
	})
}

// MarshalJSON returns the stored bytes unchanged.
func (p RawPart) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return p, nil
}

type messageWire struct {
	Role       string          `json:"role"`
	Content    any             `json:"content"`
	Name       string          `json:"name,omitempty"`
	ToolCalls  json.RawMessage `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
}

type messageWireIn struct {
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content"`
	Name       string          `json:"name"`
	ToolCalls  json.RawMessage `json:"tool_calls"`
	ToolCallID string          `json:"tool_call_id"`
}

// MarshalJSON encodes the message in the upstream chat format.
func (m Message) MarshalJSON() ([]byte, error) {
	w := messageWire{
		Role:       m.Role,
		Name:       m.Name,
		ToolCalls:  m.ToolCalls,
		ToolCallID: m.ToolCallID,
	}
	switch c := m.Content.(type) {
	case nil:
	case TextContent:
		w.Content = string(c)
	case PartsContent:
		parts := make([]ContentPart, len(c))
		copy(parts, c)
		w.Content = parts
	default:
		return nil, fmt.Errorf("unsupported content type %T", c)
	}
	return sonic.Marshal(w)
}

// UnmarshalJSON decodes an OpenAI-style chat message.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w messageWireIn
	if err := sonic.Unmarshal(data, &w); err != nil {
		return err
	}
	content, err := decodeContent(w.Content)
	if err != nil {
		return fmt.Errorf("message content: %w", err)
	}
	*m = Message{
		Role:       w.Role,
		Content:    content,
		Name:       w.Name,
		ToolCalls:  w.ToolCalls,
		ToolCallID: w.ToolCallID,
	}
	return nil
}

type partProbe struct {
	Type     string        `json:"type"`
	Text     string        `json:"text"`
	ImageURL *imageURLWire `json:"image_url"`
}

func decodeContent(raw json.RawMessage) (Content, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := sonic.Unmarshal(trimmed, &s); err != nil {
			return nil, err
		}
		return TextContent(s), nil
	case '[':
		var items []json.RawMessage
		if err := sonic.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		parts := make(PartsContent, 0, len(items))
		for _, item := range items {
			var probe partProbe
			if err := sonic.Unmarshal(item, &probe); err != nil {
				return nil, err
			}
			switch {
			case probe.Type == ContentPartTypeText:
				parts = append(parts, TextPart{Text: probe.Text})
			case probe.Type == ContentPartTypeImageURL && probe.ImageURL != nil:
				parts = append(parts, ImagePart{URL: probe.ImageURL.URL, Detail: probe.ImageURL.Detail})
			default:
				parts = append(parts, RawPart(append([]byte(nil), item...)))
			}
		}
		return parts, nil
	default:
		return nil, fmt.Errorf("content must be a string, an array or null")
	}
}

// HasImage reports whether the content carries at least one image part.
func HasImage(c Content) bool {
	parts, ok := c.(PartsContent)
	if !ok {
		return false
	}
	for _, p := range parts {
		if _, ok := p.(ImagePart); ok {
			return true
		}
	}
	return false
}

// PlainText concatenates the text carried by the content, ignoring non-text parts.
func PlainText(c Content) string {
	switch v := c.(type) {
	case TextContent:
		return string(v)
	case PartsContent:
		var sb strings.Builder
		for _, p := range v {
			if tp, ok := p.(TextPart); ok {
				sb.WriteString(tp.Text)
			}
		}
		return sb.String()
	default:
		return ""
	}
}
