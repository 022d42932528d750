package convert

import (
	"strings"
	"testing"

	"copilot-gateway/internal/core"

	"github.com/bytedance/sonic"
)

func TestMapStopReason(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"stop", core.StopReasonEndTurn},
		{"length", core.StopReasonMaxTokens},
		{"tool_calls", core.StopReasonMaxTokens},
		{"content_filter", core.StopReasonMaxTokens},
		{"", core.StopReasonMaxTokens},
		{"STOP", core.StopReasonMaxTokens},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := MapStopReason(tt.in); got != tt.want {
				t.Errorf("MapStopReason(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestToAnthropicResponse(t *testing.T) {
	body := []byte(`{
		"id": "chatcmpl-abc",
		"object": "chat.completion",
		"created": 1700000000,
		"model": "gpt-4o-2024",
		"choices": [
			{"index": 0, "message": {"role": "assistant", "content": "Hello!"}, "finish_reason": "stop"},
			{"index": 1, "message": {"role": "assistant", "content": "ignored"}, "finish_reason": "length"}
		],
		"usage": {"prompt_tokens": 11, "completion_tokens": 3, "total_tokens": 14}
	}`)

	got, err := ToAnthropicResponse(body, "gpt-4o")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.ID != "chatcmpl-abc" || got.Type != core.AnthropicTypeMessage || got.Role != core.RoleAssistant {
		t.Errorf("unexpected envelope: %+v", got)
	}
	if got.Model != "gpt-4o-2024" {
		t.Errorf("expected upstream model, got %q", got.Model)
	}
	if len(got.Content) != 1 || got.Content[0].Type != core.ContentBlockTypeText || got.Content[0].Text != "Hello!" {
		t.Errorf("unexpected content: %+v", got.Content)
	}
	if got.StopReason == nil || *got.StopReason != core.StopReasonEndTurn {
		t.Errorf("expected end_turn, got %v", got.StopReason)
	}
	if got.Usage == nil || got.Usage.InputTokens != 11 || got.Usage.OutputTokens != 3 {
		t.Errorf("unexpected usage: %+v", got.Usage)
	}

	encoded, err := sonic.Marshal(got)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{`"stop_sequence":null`, `"input_tokens":11`, `"output_tokens":3`, `"stop_reason":"end_turn"`} {
		if !strings.Contains(string(encoded), want) {
			t.Errorf("expected %s in %s", want, encoded)
		}
	}
}

func TestToAnthropicResponse_Defaults(t *testing.T) {
	body := []byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":null},"finish_reason":"length"}]}`)

	got, err := ToAnthropicResponse(body, "gpt-4o")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(got.ID, core.MessageIDPrefix) {
		t.Errorf("expected generated id, got %q", got.ID)
	}
	if got.Model != "gpt-4o" {
		t.Errorf("expected request model fallback, got %q", got.Model)
	}
	if got.Content[0].Text != "" {
		t.Errorf("expected empty text, got %q", got.Content[0].Text)
	}
	if *got.StopReason != core.StopReasonMaxTokens {
		t.Errorf("expected max_tokens, got %q", *got.StopReason)
	}
	if got.Usage == nil || got.Usage.InputTokens != 0 || got.Usage.OutputTokens != 0 {
		t.Errorf("expected zero usage, got %+v", got.Usage)
	}
}

func TestToAnthropicResponse_Errors(t *testing.T) {
	for name, body := range map[string]string{
		"not json":   `<html>`,
		"no choices": `{"id":"x","choices":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := ToAnthropicResponse([]byte(body), "m"); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestChunkToAnthropic(t *testing.T) {
	tests := []struct {
		name       string
		chunk      string
		wantText   string
		wantStop   string
		wantBlocks int
		wantUsage  *core.AnthropicUsage
	}{
		{
			name:       "delta without finish reason",
			chunk:      `{"id":"c1","model":"gpt-4o","choices":[{"index":0,"delta":{"content":"Hel"},"finish_reason":null}]}`,
			wantText:   "Hel",
			wantBlocks: 1,
		},
		{
			name:       "role-only delta",
			chunk:      `{"id":"c1","model":"gpt-4o","choices":[{"index":0,"delta":{"role":"assistant"}}]}`,
			wantBlocks: 1,
		},
		{
			name:       "final chunk",
			chunk:      `{"id":"c1","model":"gpt-4o","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
			wantStop:   core.StopReasonEndTurn,
			wantBlocks: 1,
		},
		{
			name:       "length chunk",
			chunk:      `{"id":"c1","model":"gpt-4o","choices":[{"index":0,"delta":{"content":"."},"finish_reason":"length"}]}`,
			wantText:   ".",
			wantStop:   core.StopReasonMaxTokens,
			wantBlocks: 1,
		},
		{
			name:      "usage-only chunk",
			chunk:     `{"id":"c1","model":"gpt-4o","choices":[],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`,
			wantUsage: &core.AnthropicUsage{InputTokens: 5, OutputTokens: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ChunkToAnthropic([]byte(tt.chunk), "fallback")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.ID != "c1" || got.Model != "gpt-4o" || got.Type != core.AnthropicTypeMessage {
				t.Errorf("unexpected envelope: %+v", got)
			}
			if len(got.Content) != tt.wantBlocks {
				t.Fatalf("expected %d blocks, got %d", tt.wantBlocks, len(got.Content))
			}
			if tt.wantBlocks > 0 && got.Content[0].Text != tt.wantText {
				t.Errorf("expected text %q, got %q", tt.wantText, got.Content[0].Text)
			}
			switch {
			case tt.wantStop == "" && got.StopReason != nil:
				t.Errorf("expected null stop_reason, got %q", *got.StopReason)
			case tt.wantStop != "" && (got.StopReason == nil || *got.StopReason != tt.wantStop):
				t.Errorf("expected stop_reason %q, got %v", tt.wantStop, got.StopReason)
			}
			if tt.wantUsage == nil && got.Usage != nil {
				t.Errorf("unexpected usage %+v", got.Usage)
			}
			if tt.wantUsage != nil && (got.Usage == nil || *got.Usage != *tt.wantUsage) {
				t.Errorf("expected usage %+v, got %+v", tt.wantUsage, got.Usage)
			}
		})
	}
}

func TestChunkToAnthropic_WireShape(t *testing.T) {
	got, err := ChunkToAnthropic([]byte(`{"choices":[{"delta":{"content":"x"}}]}`), "gpt-4o")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	encoded, err := sonic.Marshal(got)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(encoded)
	for _, want := range []string{`"stop_reason":null`, `"model":"gpt-4o"`, `"content":[{"type":"text","text":"x"}]`} {
		if !strings.Contains(s, want) {
			t.Errorf("expected %s in %s", want, s)
		}
	}
	if strings.Contains(s, `"usage"`) {
		t.Errorf("usage should be omitted: %s", s)
	}
	if !strings.HasPrefix(got.ID, core.MessageIDPrefix) {
		t.Errorf("expected generated id, got %q", got.ID)
	}
}

func TestChunkTranslator_StableFallbackID(t *testing.T) {
	tr := NewChunkTranslator("gpt-4o")
	chunks := []string{
		`{"choices":[{"delta":{"content":"Hel"}}]}`,
		`{"choices":[{"delta":{"content":"lo"}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
	}

	var ids []string
	for _, chunk := range chunks {
		got, err := tr.Translate([]byte(chunk))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ids = append(ids, got.ID)
	}
	if !strings.HasPrefix(ids[0], core.MessageIDPrefix) {
		t.Errorf("expected generated id, got %q", ids[0])
	}
	for i, id := range ids[1:] {
		if id != ids[0] {
			t.Errorf("chunk %d: id %q differs from %q", i+1, id, ids[0])
		}
	}

	other := NewChunkTranslator("gpt-4o")
	got, err := other.Translate([]byte(chunks[0]))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID == ids[0] {
		t.Error("separate streams should get separate ids")
	}

	withID, err := tr.Translate([]byte(`{"id":"chatcmpl-9","choices":[]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if withID.ID != "chatcmpl-9" {
		t.Errorf("upstream id should win, got %q", withID.ID)
	}
}

func TestChunkToAnthropic_InvalidJSON(t *testing.T) {
	if _, err := ChunkToAnthropic([]byte(`{"choices":`), "m"); err == nil {
		t.Error("expected error")
	}
}

func TestCountAnthropicTokens(t *testing.T) {
	short := &core.AnthropicMessagesRequest{
		Messages: []core.AnthropicMessage{{Role: core.RoleUser, Content: textContent("hi")}},
	}
	if got := CountAnthropicTokens(short); got != 2 {
		t.Errorf("expected 2 tokens, got %d", got)
	}

	long := strings.Repeat("word ", 200)
	req := &core.AnthropicMessagesRequest{
		System: core.FlexibleString(long),
		Messages: []core.AnthropicMessage{{
			Role: core.RoleUser,
			Content: core.AnthropicContent{Blocks: []core.AnthropicContentBlock{
				{Type: core.ContentBlockTypeText, Text: long},
				pngBlock(),
			}},
		}},
	}
	if got := CountAnthropicTokens(req); got != 300+300+1 {
		t.Errorf("expected 601 tokens, got %d", got)
	}
}
