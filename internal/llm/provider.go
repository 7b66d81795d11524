// Package llm is the structured-JSON call layer: a provider-agnostic request
// primitive, JSON sanitization, and a static per-model fallback chain.
package llm

import (
	"context"
	"errors"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/smilemakc/floorplan/pkg/models"
)

// Provider executes a single LLM request against a concrete backend. The
// call layer built on top of it is side-effect-free except for logs and is
// safe to call concurrently, since a Provider implementation must not hold
// mutable per-call state.
type Provider interface {
	Execute(ctx context.Context, req *models.LLMRequest) (*models.LLMResponse, error)
}

// OpenAIProvider backs Provider with the official OpenAI SDK.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider constructs a provider from an API key, optional base URL
// override, and optional organization ID.
func NewOpenAIProvider(apiKey, baseURL, orgID string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if orgID != "" {
		cfg.OrgID = orgID
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg)}
}

// Execute sends req as a chat completion request with JSON-object output
// forced, and converts the response into the provider-agnostic shape.
func (p *OpenAIProvider) Execute(ctx context.Context, req *models.LLMRequest) (*models.LLMResponse, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.Instruction != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.Instruction,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	ccReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	}
	if req.TopP > 0 {
		ccReq.TopP = float32(req.TopP)
	}
	if req.ResponseFormat != nil {
		ccReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, ccReq)
	if err != nil {
		return nil, translateOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &models.LLMError{Provider: models.LLMProviderOpenAI, Message: "no choices returned"}
	}

	return &models.LLMResponse{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		FinishReason: string(resp.Choices[0].FinishReason),
		CreatedAt:    timeFromUnix(resp.Created),
		Usage: models.LLMUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func translateOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if apiErr.Code != nil {
			if s, ok := apiErr.Code.(string); ok {
				code = s
			}
		}
		return &models.LLMError{
			Provider: models.LLMProviderOpenAI,
			Code:     code,
			Message:  apiErr.Message,
			Type:     apiErr.Type,
		}
	}
	return err
}

func timeFromUnix(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
