package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-labs/justify/pkg/config"
)

func TestCompileBuiltinPatterns(t *testing.T) {
	svc := NewService(&config.MaskingConfig{})

	builtin := config.GetBuiltinConfig()
	assert.Equal(t, len(builtin.MaskingPatterns), len(svc.patterns),
		"every built-in pattern should compile (no custom patterns configured)")

	for name, cp := range svc.patterns {
		assert.NotNil(t, cp.Regex, "pattern %s should have a compiled regex", name)
		assert.NotEmpty(t, cp.Replacement, "pattern %s should have a replacement", name)
	}
}

func TestCompileCustomPatterns(t *testing.T) {
	cfg := &config.MaskingConfig{
		Enabled: true,
		CustomPatterns: []config.MaskingPattern{
			{Pattern: `CUSTOM_SECRET_[A-Za-z0-9]+`, Replacement: "[MASKED_CUSTOM]", Description: "project-specific secret"},
		},
	}
	svc := NewService(cfg)

	builtinCount := len(config.GetBuiltinConfig().MaskingPatterns)
	assert.Equal(t, builtinCount+1, len(svc.patterns))

	cp, exists := svc.patterns["custom:0"]
	require.True(t, exists, "custom pattern should be registered under its index-based key")
	assert.Equal(t, "[MASKED_CUSTOM]", cp.Replacement)
	assert.Contains(t, svc.customPatternNames, "custom:0")
}

func TestCompileCustomPatterns_InvalidRegexIsSkipped(t *testing.T) {
	cfg := &config.MaskingConfig{
		Enabled: true,
		CustomPatterns: []config.MaskingPattern{
			{Pattern: `[invalid`, Replacement: "[MASKED]"},
			{Pattern: `valid_pattern`, Replacement: "[MASKED_VALID]"},
		},
	}
	svc := NewService(cfg)

	_, invalidExists := svc.patterns["custom:0"]
	assert.False(t, invalidExists, "invalid regex should be skipped")

	_, validExists := svc.patterns["custom:1"]
	assert.True(t, validExists, "valid pattern after an invalid one should still compile")
}

func TestResolvePatterns_OnlyNamedPatternsAndCustom(t *testing.T) {
	svc := NewService(&config.MaskingConfig{
		Enabled: true,
		CustomPatterns: []config.MaskingPattern{
			{Pattern: `MY_SECRET_[A-Z]+`, Replacement: "[MASKED_MY_SECRET]"},
		},
	})

	cfg := &config.MaskingConfig{
		Enabled:  true,
		Patterns: []string{"api_key", "token"},
	}
	resolved := svc.resolvePatterns(cfg)

	names := make([]string, len(resolved))
	for i, p := range resolved {
		names[i] = p.Name
	}
	assert.Contains(t, names, "api_key")
	assert.Contains(t, names, "token")
	assert.Contains(t, names, "custom:0", "every compiled custom pattern is always appended")
	assert.Len(t, resolved, 3)
}

func TestResolvePatterns_UnknownNameIsIgnored(t *testing.T) {
	svc := NewService(&config.MaskingConfig{})

	cfg := &config.MaskingConfig{Enabled: true, Patterns: []string{"nonexistent_pattern"}}
	resolved := svc.resolvePatterns(cfg)

	assert.Empty(t, resolved)
}

func TestResolvePatterns_Deduplication(t *testing.T) {
	svc := NewService(&config.MaskingConfig{})

	cfg := &config.MaskingConfig{
		Enabled:  true,
		Patterns: []string{"api_key", "api_key", "password"},
	}
	resolved := svc.resolvePatterns(cfg)

	apiKeyCount := 0
	for _, p := range resolved {
		if p.Name == "api_key" {
			apiKeyCount++
		}
	}
	assert.Equal(t, 1, apiKeyCount, "api_key should appear only once")
	assert.Len(t, resolved, 2)
}

func TestResolvePatterns_EmptyPatternListResolvesOnlyCustom(t *testing.T) {
	svc := NewService(&config.MaskingConfig{
		Enabled: true,
		CustomPatterns: []config.MaskingPattern{
			{Pattern: `FOO`, Replacement: "[MASKED_FOO]"},
		},
	})

	resolved := svc.resolvePatterns(&config.MaskingConfig{Enabled: true})

	require.Len(t, resolved, 1)
	assert.Equal(t, "custom:0", resolved[0].Name)
}
