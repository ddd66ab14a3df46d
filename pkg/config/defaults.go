package config

// Defaults contains system-wide default configurations for a justification
// run (spec.md §6 JustifyOptions), used when a run's options don't specify
// their own values.
type Defaults struct {
	// LLMProvider names the entry in LLMProviderRegistry used when a run
	// doesn't pin ModelID to a specific provider.
	LLMProvider string `yaml:"llm_provider,omitempty"`

	// MinConfidence is the confidence floor below which an inferred
	// justification is held back pending clarification (spec.md §4).
	MinConfidence float64 `yaml:"min_confidence,omitempty" validate:"omitempty,min=0,max=1"`

	// BatchSize is the default number of entities C4's Token Batcher packs
	// per inference call before dynamic batching kicks in.
	BatchSize int `yaml:"batch_size,omitempty" validate:"omitempty,min=1"`

	// PropagateContext enables C6's hierarchical confidence propagation.
	PropagateContext bool `yaml:"propagate_context,omitempty"`

	// FilterIgnoredPaths enables C3's triviality filter for vendored/
	// generated paths in addition to its structural heuristics.
	FilterIgnoredPaths bool `yaml:"filter_ignored_paths,omitempty"`

	// Masking is applied to source snippets and doc comments before they
	// reach an LLM provider.
	Masking *MaskingConfig `yaml:"masking,omitempty"`
}
