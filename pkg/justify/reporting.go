package justify

import (
	"context"
	"sort"
	"strings"

	"github.com/codegraph-labs/justify/pkg/graph"
)

// StatsOptions scopes GetStats to a processing run and/or a file-path
// prefix (SPEC_FULL.md §4 "get_stats(options)").
type StatsOptions struct {
	RunID      string
	PathPrefix string
}

// Stats aggregates justification counts by confidence level, provenance,
// and clarification status.
type Stats struct {
	Total                int
	ByConfidenceLevel     map[graph.ConfidenceLevel]int
	ByInferredFrom        map[graph.InferredFrom]int
	ClarificationPending  int
}

// GetStats aggregates counts by confidence_level, inferred_from, and
// clarification_pending, optionally scoped to a run id or file-path prefix
// (SPEC_FULL.md §4 "get_stats(options)").
func (p *Pipeline) GetStats(ctx context.Context, opts StatsOptions) (Stats, error) {
	stats := Stats{
		ByConfidenceLevel: map[graph.ConfidenceLevel]int{},
		ByInferredFrom:    map[graph.InferredFrom]int{},
	}

	justifications, err := p.allJustifications(ctx)
	if err != nil {
		return Stats{}, err
	}

	for _, j := range justifications {
		if opts.RunID != "" && j.RunID != opts.RunID {
			continue
		}
		if opts.PathPrefix != "" && !strings.HasPrefix(j.FilePath, opts.PathPrefix) {
			continue
		}
		stats.Total++
		stats.ByConfidenceLevel[j.ConfidenceLevel]++
		stats.ByInferredFrom[j.InferredFrom]++
		if j.ClarificationPending {
			stats.ClarificationPending++
		}
	}
	return stats, nil
}

// FileCoverage is the per-file summary returned by GetCoverageByFile.
type FileCoverage struct {
	FilePath         string
	TotalEntities    int
	JustifiedEntities int
	AverageConfidence float64
}

// GetCoverageByFile returns per-file {total_entities, justified_entities,
// average_confidence} for every file under path_prefix, derived by joining
// a list_entities_by_kind-style enumeration against get_by_file
// (SPEC_FULL.md §4 "get_coverage_by_file(path_prefix)").
func (p *Pipeline) GetCoverageByFile(ctx context.Context, pathPrefix string) ([]FileCoverage, error) {
	entities, err := p.loadAllEntities(ctx)
	if err != nil {
		return nil, err
	}

	byFile := map[string][]graph.Entity{}
	var order []string
	for _, e := range entities {
		if pathPrefix != "" && !strings.HasPrefix(e.FilePath, pathPrefix) {
			continue
		}
		if _, seen := byFile[e.FilePath]; !seen {
			order = append(order, e.FilePath)
		}
		byFile[e.FilePath] = append(byFile[e.FilePath], e)
	}
	sort.Strings(order)

	var out []FileCoverage
	for _, path := range order {
		es := byFile[path]
		ids := make([]string, len(es))
		for i, e := range es {
			ids[i] = e.ID
		}
		justs, err := p.Adapter.GetJustifications(ctx, ids)
		if err != nil {
			return nil, err
		}
		var sumConfidence float64
		for _, j := range justs {
			sumConfidence += j.ConfidenceScore
		}
		avg := 0.0
		if len(justs) > 0 {
			avg = sumConfidence / float64(len(justs))
		}
		out = append(out, FileCoverage{
			FilePath:          path,
			TotalEntities:     len(es),
			JustifiedEntities: len(justs),
			AverageConfidence: avg,
		})
	}
	return out, nil
}

// GetFeatureJustifications returns every justification whose FeatureContext
// equals feature, newest-first (SPEC_FULL.md §4 "get_feature_justifications(feature)").
func (p *Pipeline) GetFeatureJustifications(ctx context.Context, feature string) ([]graph.Justification, error) {
	all, err := p.allJustifications(ctx)
	if err != nil {
		return nil, err
	}

	var matched []graph.Justification
	for _, j := range all {
		if j.FeatureContext == feature {
			matched = append(matched, j)
		}
	}
	sort.Slice(matched, func(i, k int) bool {
		return matched[i].UpdatedAt.After(matched[k].UpdatedAt)
	})
	return matched, nil
}

// allJustifications loads every justification reachable through the
// adapter by enumerating entities of every kind and batch-loading their
// justifications. There is no dedicated "list all justifications" adapter
// operation (spec.md §4.1), so reporting ops derive it this way.
func (p *Pipeline) allJustifications(ctx context.Context) ([]graph.Justification, error) {
	entities, err := p.loadAllEntities(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}
	justs, err := p.Adapter.GetJustifications(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]graph.Justification, 0, len(justs))
	for _, j := range justs {
		out = append(out, j)
	}
	return out, nil
}
