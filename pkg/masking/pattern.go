package masking

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/codegraph-labs/justify/pkg/config"
)

// CompiledPattern holds a pre-compiled regex pattern with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
	Description string
}

// compileBuiltinPatterns compiles all built-in regex patterns from config.
// Invalid patterns are logged and skipped.
func (s *Service) compileBuiltinPatterns() {
	for name, pattern := range config.GetBuiltinConfig().MaskingPatterns {
		compiled, err := regexp.Compile(pattern.Pattern)
		if err != nil {
			slog.Error("Failed to compile built-in masking pattern, skipping",
				"pattern", name, "error", err)
			continue
		}
		s.patterns[name] = &CompiledPattern{
			Name:        name,
			Regex:       compiled,
			Replacement: pattern.Replacement,
			Description: pattern.Description,
		}
	}
}

// compileCustomPatterns compiles the project's custom patterns. Custom
// patterns are keyed "custom:{index}" to avoid colliding with builtin names.
func (s *Service) compileCustomPatterns(cfg *config.MaskingConfig) {
	if cfg == nil {
		return
	}
	for i, pattern := range cfg.CustomPatterns {
		name := fmt.Sprintf("custom:%d", i)
		compiled, err := regexp.Compile(pattern.Pattern)
		if err != nil {
			slog.Error("Failed to compile custom masking pattern, skipping",
				"pattern", name, "error", err)
			continue
		}
		s.patterns[name] = &CompiledPattern{
			Name:        name,
			Regex:       compiled,
			Replacement: pattern.Replacement,
			Description: pattern.Description,
		}
		s.customPatternNames = append(s.customPatternNames, name)
	}
}

// resolvePatterns expands the configured pattern list into a deduplicated
// set of compiled regex patterns, always appending every compiled custom
// pattern (there's no per-caller scoping left — one project, one config).
func (s *Service) resolvePatterns(cfg *config.MaskingConfig) []*CompiledPattern {
	seen := make(map[string]bool)
	var resolved []*CompiledPattern

	for _, name := range cfg.Patterns {
		if seen[name] {
			continue
		}
		seen[name] = true
		if cp, ok := s.patterns[name]; ok {
			resolved = append(resolved, cp)
		}
	}

	for _, name := range s.customPatternNames {
		if seen[name] {
			continue
		}
		seen[name] = true
		if cp, ok := s.patterns[name]; ok {
			resolved = append(resolved, cp)
		}
	}

	return resolved
}
