package justify

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes pipeline run counters on the service's /metrics surface
// (SPEC_FULL.md §1 DOMAIN STACK: batches packed, LLM calls issued/retried/
// fallen-back, entities justified/failed/skipped).
type Metrics struct {
	BatchesPacked     prometheus.Counter
	LLMCallsTotal     prometheus.Counter
	LLMCallsFailed    prometheus.Counter
	LLMParseErrors    prometheus.Counter
	TrivialWritten    prometheus.Counter
	EntitiesJustified prometheus.Counter
	EntitiesFailed    prometheus.Counter
}

// NewMetrics registers the pipeline's counters against reg. Pass
// prometheus.NewRegistry() in tests to avoid collisions with the default
// global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BatchesPacked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "justify", Name: "batches_packed_total", Help: "Total batches packed by the token batcher.",
		}),
		LLMCallsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "justify", Name: "llm_calls_total", Help: "Total LLM batch calls issued.",
		}),
		LLMCallsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "justify", Name: "llm_calls_failed_total", Help: "Total LLM batch calls that errored.",
		}),
		LLMParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "justify", Name: "llm_parse_errors_total", Help: "Total LLM responses that failed to parse.",
		}),
		TrivialWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "justify", Name: "trivial_justifications_total", Help: "Total justifications written via the triviality filter.",
		}),
		EntitiesJustified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "justify", Name: "entities_justified_total", Help: "Total entities successfully justified.",
		}),
		EntitiesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "justify", Name: "entities_failed_total", Help: "Total entities that failed justification.",
		}),
	}
	reg.MustRegister(m.BatchesPacked, m.LLMCallsTotal, m.LLMCallsFailed, m.LLMParseErrors, m.TrivialWritten, m.EntitiesJustified, m.EntitiesFailed)
	return m
}
