package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/smilemakc/floorplan/pkg/models"
)

// FallbackTable maps a model id to the ordered list of models to retry with
// when the primary model fails. It is static configuration, read-only at
// runtime.
type FallbackTable map[string][]string

// DefaultFallbackTable is the normative per-model fallback chain: a preview
// tier falls back to a stable heavy model, then a stable fast model.
var DefaultFallbackTable = FallbackTable{
	"gpt-4.1-preview": {"gpt-4o", "gpt-4o-mini"},
	"gpt-4o":          {"gpt-4o-mini"},
	"gpt-4o-mini":     {"gpt-4.1-mini"},
}

// CallLayer is the single structured-generation primitive every agent is
// built on. It owns JSON sanitization and the fallback chain; it has no
// other state and is safe for concurrent use.
type CallLayer struct {
	provider Provider
	fallback FallbackTable
	timeout  time.Duration
}

// NewCallLayer builds a call layer over provider. perCallTimeout bounds a
// single LLM call's wall-clock time (0 disables the bound).
func NewCallLayer(provider Provider, fallback FallbackTable, perCallTimeout time.Duration) *CallLayer {
	if fallback == nil {
		fallback = DefaultFallbackTable
	}
	return &CallLayer{provider: provider, fallback: fallback, timeout: perCallTimeout}
}

// StructuredResult is what GenerateStructured returns on success.
type StructuredResult struct {
	Data       map[string]interface{}
	RawContent string
	ModelUsed  string
	TokenCount int
}

// GenerateStructured sends prompt+instruction to modelConfig.Model, forcing
// JSON-object output, and decodes the result into a map. On a provider
// failure it walks the fallback chain for modelConfig.Model in order,
// trying each candidate with the same prompt/instruction/schema/temperature.
// The first success wins; if every candidate fails the original error from
// the primary model is returned.
func (c *CallLayer) GenerateStructured(ctx context.Context, instruction, prompt string, modelConfig models.ModelRouteConfig, schema *models.LLMJSONSchema) (*StructuredResult, error) {
	candidates := append([]string{modelConfig.Model}, c.fallback[modelConfig.Model]...)

	var firstErr error
	for i, model := range candidates {
		result, err := c.tryOnce(ctx, instruction, prompt, model, modelConfig, schema)
		if err == nil {
			return result, nil
		}
		if i == 0 {
			firstErr = err
		}
	}
	return nil, firstErr
}

func (c *CallLayer) tryOnce(ctx context.Context, instruction, prompt, model string, modelConfig models.ModelRouteConfig, schema *models.LLMJSONSchema) (*StructuredResult, error) {
	callCtx := ctx
	var cancel context.CancelFunc
	if c.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := &models.LLMRequest{
		Provider:    models.LLMProviderOpenAI,
		Model:       model,
		Instruction: instruction,
		Prompt:      prompt,
		MaxTokens:   modelConfig.MaxTokens,
		Temperature: modelConfig.Temperature,
		ResponseFormat: &models.LLMResponseFormat{
			Type:       "json_object",
			JSONSchema: schema,
		},
	}

	resp, err := c.provider.Execute(callCtx, req)
	if err != nil {
		return nil, err
	}

	data, err := ParseJSONLenient(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("model %s returned unparseable output: %w", model, err)
	}

	return &StructuredResult{
		Data:       data,
		RawContent: resp.Content,
		ModelUsed:  model,
		TokenCount: resp.Usage.TotalTokens,
	}, nil
}

var (
	codeFenceRe   = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
)

// ParseJSONLenient attempts a strict JSON parse first; on failure it strips
// markdown code fences and trailing commas before one retry.
func ParseJSONLenient(raw string) (map[string]interface{}, error) {
	trimmed := strings.TrimSpace(raw)

	var out map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &out); err == nil {
		return out, nil
	}

	sanitized := trimmed
	if m := codeFenceRe.FindStringSubmatch(sanitized); m != nil {
		sanitized = m[1]
	}
	sanitized = trailingComma.ReplaceAllString(sanitized, "$1")

	if err := json.Unmarshal([]byte(sanitized), &out); err != nil {
		return nil, err
	}
	return out, nil
}
