package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetBuiltinConfig(t *testing.T) {
	builtin := GetBuiltinConfig()
	require.NotNil(t, builtin)

	assert.NotEmpty(t, builtin.LLMProviders)
	assert.Contains(t, builtin.LLMProviders, "google-default")
	assert.Contains(t, builtin.LLMProviders, "openai-default")

	assert.NotEmpty(t, builtin.MaskingPatterns)
	assert.Contains(t, builtin.MaskingPatterns, "api_key")
	assert.Contains(t, builtin.MaskingPatterns, "github_token")

	// Singleton: repeated calls return the same data.
	again := GetBuiltinConfig()
	assert.Equal(t, builtin, again)
}

func TestBuiltinMaskingPatternsCompile(t *testing.T) {
	builtin := GetBuiltinConfig()
	for name, pattern := range builtin.MaskingPatterns {
		assert.NotEmpty(t, pattern.Pattern, "pattern %s has empty regex", name)
		assert.NotEmpty(t, pattern.Replacement, "pattern %s has empty replacement", name)
	}
}
