package api

import "github.com/codegraph-labs/justify/pkg/justify"

// CreateRunRequest is the HTTP request body for POST /runs.
type CreateRunRequest struct {
	ProjectRoot        string                  `json:"project_root" binding:"required"`
	Force              bool                    `json:"force"`
	MinConfidence      float64                 `json:"min_confidence"`
	SkipLLM            bool                    `json:"skip_llm"`
	PropagateContext   bool                    `json:"propagate_context"`
	BatchSize          int                     `json:"batch_size"`
	UseDynamicBatching bool                    `json:"use_dynamic_batching"`
	FilterIgnoredPaths bool                    `json:"filter_ignored_paths"`
	ModelID            string                  `json:"model_id,omitempty"`
	ProjectContext     *justify.ProjectContext `json:"project_context,omitempty"`
}

// toOptions converts the request into justify.Options, falling back to
// defaults's MinConfidence/BatchSize when the caller left them at zero
// (there is no valid zero value for either, so zero unambiguously means
// "unset"); every other field is taken as given (spec.md §6 JustifyOptions).
func (r CreateRunRequest) toOptions(defaults *justify.Options) justify.Options {
	opts := justify.Options{
		Force:              r.Force,
		MinConfidence:      r.MinConfidence,
		SkipLLM:            r.SkipLLM,
		PropagateContext:   r.PropagateContext,
		BatchSize:          r.BatchSize,
		UseDynamicBatching: r.UseDynamicBatching,
		FilterIgnoredPaths: r.FilterIgnoredPaths,
		ModelID:            r.ModelID,
		ProjectContext:     r.ProjectContext,
	}
	if opts.MinConfidence == 0 {
		opts.MinConfidence = defaults.MinConfidence
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = defaults.BatchSize
	}
	return opts
}

// AnswerClarificationRequest is the HTTP request body for
// POST /clarifications/:id/answer. Keys are clarification question ids,
// values are the human-provided answers (justify.ApplyClarificationAnswers).
type AnswerClarificationRequest struct {
	Answers map[string]string `json:"answers" binding:"required"`
}
