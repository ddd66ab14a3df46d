// Package llmtransport implements the LLM transport interface consumed by
// the Inference Orchestrator (C5): a request/response abstraction over a
// chat-completion model with JSON-schema constrained output.
package llmtransport

import "context"

// CompletionRequest is a single LLM call. JSONSchema, when non-nil,
// constrains the response to the given schema (spec.md §6).
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
	JSONSchema   *JSONSchema
}

// JSONSchema names and describes a JSON schema the response must conform
// to, per the OpenAI-compatible "response_format: json_schema" contract.
type JSONSchema struct {
	Name   string
	Schema map[string]any
	Strict bool
}

// CompletionResponse is the transport-level result of a completion call.
type CompletionResponse struct {
	Text    string
	ModelID string
	// PromptTokens/CompletionTokens are reported by providers that expose
	// usage accounting; zero when unknown.
	PromptTokens     int
	CompletionTokens int
}

// Client is the narrow interface C5 consumes (spec.md §6 "LLM transport
// interface"). Implementations must be safe for concurrent use, since
// independent batches within a level may be dispatched concurrently
// (spec.md §5).
type Client interface {
	// Complete issues a single completion call.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// IsReady reports whether the transport can currently serve requests.
	// A false result triggers the llm_unavailable fallback path in C5.
	IsReady(ctx context.Context) bool
}
