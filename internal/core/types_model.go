package core

// ModelLimits holds the token limits advertised for a model.
type ModelLimits struct {
	MaxContextWindowTokens int            `json:"max_context_window_tokens,omitempty"`
	MaxOutputTokens        int            `json:"max_output_tokens,omitempty"`
	MaxPromptTokens        int            `json:"max_prompt_tokens,omitempty"`
	Vision                 map[string]any `json:"vision,omitempty"`
}

// ModelSupports lists the feature flags advertised for a model.
type ModelSupports struct {
	ToolCalls         bool `json:"tool_calls,omitempty"`
	ParallelToolCalls bool `json:"parallel_tool_calls,omitempty"`
	Streaming         bool `json:"streaming,omitempty"`
	Vision            bool `json:"vision,omitempty"`
}

// ModelCapabilities is the capabilities object of an upstream model entry.
type ModelCapabilities struct {
	Family    string        `json:"family,omitempty"`
	Type      string        `json:"type,omitempty"`
	Tokenizer string        `json:"tokenizer,omitempty"`
	Vision    bool          `json:"vision,omitempty"`
	Limits    ModelLimits   `json:"limits"`
	Supports  ModelSupports `json:"supports"`
}

// Model is one entry of the upstream model listing.
type Model struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name,omitempty"`
	Object             string            `json:"object,omitempty"`
	Vendor             string            `json:"vendor,omitempty"`
	Version            string            `json:"version,omitempty"`
	Preview            bool              `json:"preview,omitempty"`
	ModelPickerEnabled bool              `json:"model_picker_enabled,omitempty"`
	Capabilities       ModelCapabilities `json:"capabilities"`
	SupportedEndpoints []string          `json:"supported_endpoints,omitempty"`
}

// ModelList is the upstream model listing response.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// CapabilityDescriptor is the per-model view the request translator consults.
// MaxOutputTokens is zero when the upstream does not advertise a limit.
type CapabilityDescriptor struct {
	ID                 string
	SupportsVision     bool
	MaxOutputTokens    int
	SupportedEndpoints []string
}

// Descriptor derives the capability descriptor of the model.
func (m Model) Descriptor() CapabilityDescriptor {
	caps := m.Capabilities
	return CapabilityDescriptor{
		ID:                 m.ID,
		SupportsVision:     caps.Vision || caps.Supports.Vision || len(caps.Limits.Vision) > 0,
		MaxOutputTokens:    caps.Limits.MaxOutputTokens,
		SupportedEndpoints: m.SupportedEndpoints,
	}
}
