package justify

// ProjectContext carries project-level metadata into batch prompts and the
// code-analysis fallback.
type ProjectContext struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Domain      string   `json:"domain"`
	Features    []string `json:"features"`
}

// ProgressPhase names a phase boundary at which progress events fire.
type ProgressPhase string

const (
	PhaseBuildingContext ProgressPhase = "building_context"
	PhaseInferring       ProgressPhase = "inferring"
	PhasePropagating     ProgressPhase = "propagating"
	PhaseStoring         ProgressPhase = "storing"
)

// ProgressEvent is purely informational (spec.md §6): it must never affect
// control flow.
type ProgressEvent struct {
	Phase         ProgressPhase
	Current       int
	Total         int
	CurrentEntity string
	Message       string
}

// ProgressFunc receives progress events during a run.
type ProgressFunc func(ProgressEvent)

// Options configures a justification run (spec.md §6 JustifyOptions).
type Options struct {
	Force              bool            `json:"force"`
	MinConfidence      float64         `json:"min_confidence"`
	SkipLLM            bool            `json:"skip_llm"`
	PropagateContext   bool            `json:"propagate_context"`
	BatchSize          int             `json:"batch_size"`
	UseDynamicBatching bool            `json:"use_dynamic_batching"`
	FilterIgnoredPaths bool            `json:"filter_ignored_paths"`
	ModelID            string          `json:"model_id,omitempty"`
	OnProgress         ProgressFunc    `json:"-"`
	ProjectContext     *ProjectContext `json:"project_context,omitempty"`
}

// DefaultOptions returns the spec's documented defaults.
func DefaultOptions() Options {
	return Options{
		Force:              false,
		MinConfidence:      0.3,
		SkipLLM:            false,
		PropagateContext:   true,
		BatchSize:          10,
		UseDynamicBatching: false,
		FilterIgnoredPaths: false,
	}
}

func (o Options) emit(ev ProgressEvent) {
	if o.OnProgress != nil {
		o.OnProgress(ev)
	}
}
