package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeLLMProviders(t *testing.T) {
	builtin := map[string]LLMProviderConfig{
		"google-default": {Type: LLMProviderTypeGoogle, Model: "gemini-2.5-pro", MaxContextTokens: 950000},
		"openai-default": {Type: LLMProviderTypeOpenAI, Model: "gpt-5", MaxContextTokens: 250000},
	}
	user := map[string]LLMProviderConfig{
		"google-default": {Type: LLMProviderTypeGoogle, Model: "gemini-2.5-flash", MaxContextTokens: 500000},
		"custom-provider": {Type: LLMProviderTypeAnthropic, Model: "claude-opus-4", MaxContextTokens: 180000},
	}

	merged := mergeLLMProviders(builtin, user)

	assert.Len(t, merged, 3)
	assert.Equal(t, "gemini-2.5-flash", merged["google-default"].Model, "user config overrides builtin")
	assert.Equal(t, "gpt-5", merged["openai-default"].Model, "unmodified builtin survives")
	assert.Equal(t, "claude-opus-4", merged["custom-provider"].Model, "user-only provider is added")
}
