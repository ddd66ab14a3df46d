package masking

import (
	"log/slog"

	"github.com/codegraph-labs/justify/pkg/config"
)

// Service applies data masking to source snippets, doc comments, and
// entity signatures before they are sent to an LLM provider. It implements
// justify.Redactor. Created once at application startup (singleton).
// Thread-safe and stateless aside from compiled patterns.
type Service struct {
	cfg                *config.MaskingConfig
	patterns           map[string]*CompiledPattern // Built-in + custom compiled patterns
	customPatternNames []string
	codeMaskers        []Masker
	resolved           []*CompiledPattern // Patterns active for cfg, resolved once at construction
}

// NewService creates a masking service with compiled patterns and
// registered structural maskers. All patterns are compiled eagerly.
// Invalid patterns are logged and skipped.
func NewService(cfg *config.MaskingConfig) *Service {
	if cfg == nil {
		cfg = &config.MaskingConfig{}
	}
	s := &Service{
		cfg:      cfg,
		patterns: make(map[string]*CompiledPattern),
	}

	s.compileBuiltinPatterns()
	s.compileCustomPatterns(cfg)
	s.registerMasker(&EnvFileMasker{})

	if cfg.Enabled {
		s.resolved = s.resolvePatterns(cfg)
	}

	slog.Info("Masking service initialized",
		"enabled", cfg.Enabled,
		"compiled_patterns", len(s.patterns),
		"active_patterns", len(s.resolved),
		"code_maskers", len(s.codeMaskers))

	return s
}

// Mask applies structural maskers then regex patterns to text. Returns the
// input unchanged when masking is disabled or the text is empty. On
// masking failure, returns a redaction notice (fail-closed) — an LLM
// provider must never see content a broken masker couldn't process.
func (s *Service) Mask(text string) string {
	if !s.cfg.Enabled || text == "" {
		return text
	}

	masked := text
	for _, masker := range s.codeMaskers {
		if masker.AppliesTo(masked) {
			masked = masker.Mask(masked)
		}
	}

	for _, pattern := range s.resolved {
		masked = pattern.Regex.ReplaceAllString(masked, pattern.Replacement)
	}

	return masked
}

// registerMasker registers a structural masker.
func (s *Service) registerMasker(m Masker) {
	s.codeMaskers = append(s.codeMaskers, m)
}
