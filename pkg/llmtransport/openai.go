package llmtransport

import (
	"context"
	"errors"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the go-openai backed transport.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIClient backs Client with an OpenAI-compatible chat completion API,
// using JSON-schema constrained structured output for C5's batch calls.
// Grounded on the teacher's pkg/agent LLMClient interface shape, with the
// gRPC transport (missing its generated proto package, see DESIGN.md)
// replaced by go-openai.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIClient builds a client against cfg. An empty BaseURL uses the
// default OpenAI API endpoint; a non-empty one targets an OpenAI-compatible
// gateway.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	oaCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(oaCfg),
		model:   cfg.Model,
		timeout: timeout,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	chatReq := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	}
	if req.JSONSchema != nil {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.JSONSchema.Name,
				Schema: req.JSONSchema.Schema,
				Strict: req.JSONSchema.Strict,
			},
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			slog.Warn("llmtransport: completion call timed out")
		}
		return CompletionResponse{}, ErrUnavailable(err)
	}
	if len(resp.Choices) == 0 {
		return CompletionResponse{}, ErrUnavailable(errors.New("llmtransport: empty choices"))
	}

	return CompletionResponse{
		Text:             resp.Choices[0].Message.Content,
		ModelID:          resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (c *OpenAIClient) IsReady(ctx context.Context) bool {
	// A lightweight readiness probe: list models rather than issuing a
	// billable completion call.
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := c.client.ListModels(ctx)
	return err == nil
}
