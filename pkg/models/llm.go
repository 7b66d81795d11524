package models

import "time"

// LLMProvider identifies which backend serves a request. Only "openai" is
// wired in the core; the type stays open so a caller can plug in another
// provider without touching the call-layer contract.
type LLMProvider string

const (
	LLMProviderOpenAI LLMProvider = "openai"
)

// LLMRequest is the provider-agnostic shape the call layer builds from an
// agent's prompt, model config, and schema.
type LLMRequest struct {
	Provider         LLMProvider            `json:"provider"`
	Model            string                 `json:"model"`
	Instruction      string                 `json:"instruction,omitempty"` // system message
	Prompt           string                 `json:"prompt"`                // user message
	MaxTokens        int                    `json:"max_tokens,omitempty"`
	Temperature      float64                `json:"temperature,omitempty"`
	TopP             float64                `json:"top_p,omitempty"`
	ResponseFormat   *LLMResponseFormat     `json:"response_format,omitempty"`
	ProviderConfig   map[string]interface{} `json:"provider_config,omitempty"` // api_key, base_url, org_id
}

// LLMResponseFormat requests structured JSON output.
type LLMResponseFormat struct {
	Type       string         `json:"type"` // "json_object" or "json_schema"
	JSONSchema *LLMJSONSchema `json:"json_schema,omitempty"`
}

// LLMJSONSchema describes the expected output shape.
type LLMJSONSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Schema      map[string]interface{} `json:"schema"`
	Strict      bool                   `json:"strict,omitempty"`
}

// LLMResponse is what a provider returns after a call succeeds.
type LLMResponse struct {
	Content      string    `json:"content"`
	Model        string    `json:"model"`
	Usage        LLMUsage  `json:"usage"`
	FinishReason string    `json:"finish_reason"`
	CreatedAt    time.Time `json:"created_at"`
}

// LLMUsage reports token accounting for a single call.
type LLMUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// LLMError represents an error surfaced by an LLM provider's API.
type LLMError struct {
	Provider LLMProvider `json:"provider"`
	Code     string      `json:"code"`
	Message  string      `json:"message"`
	Type     string      `json:"type,omitempty"`
}

func (e *LLMError) Error() string {
	return "llm error (" + string(e.Provider) + "): " + e.Message
}
