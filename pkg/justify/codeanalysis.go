package justify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/codegraph-labs/justify/pkg/graph"
)

// codeAnalysisConfidence is the confidence band used for the
// code-analysis fallback (spec.md §8 scenario 6: "confidence_score in
// [0.3, 0.7]").
const codeAnalysisConfidenceDefault = 0.5

// pathFeatureHints maps a path segment to a coarse feature label.
var pathFeatureHints = []struct {
	segment string
	feature string
	tag     string
}{
	{"auth", "Authentication", "auth"},
	{"api", "API", "api"},
	{"ui", "UI", "ui"},
	{"components", "UI", "ui"},
	{"db", "Persistence", "database"},
	{"database", "Persistence", "database"},
	{"models", "Data Modeling", "model"},
	{"services", "Business Logic", "service"},
	{"utils", "Utilities", "utility"},
	{"test", "Testing", "test"},
	{"config", "Configuration", "config"},
}

var handlerSuffixRegex = regexp.MustCompile(`Handler$`)
var serviceSuffixRegex = regexp.MustCompile(`Service$`)
var controllerSuffixRegex = regexp.MustCompile(`Controller$`)

// codeAnalysisFallback derives a low-confidence justification from the
// entity's path segments and naming patterns, used when the LLM is
// unavailable or the retry budget is exhausted (spec.md §4.5/§7).
func codeAnalysisFallback(e graph.Entity) graph.Justification {
	feature := "General"
	var tags []string
	lowerPath := strings.ToLower(e.FilePath)
	for _, hint := range pathFeatureHints {
		if strings.Contains(lowerPath, hint.segment) {
			feature = hint.feature
			tags = append(tags, hint.tag)
			break
		}
	}

	summary := fmt.Sprintf("%s %s in %s.", capitalize(string(e.Kind)), e.Name, e.FilePath)
	switch {
	case handlerSuffixRegex.MatchString(e.Name):
		summary = fmt.Sprintf("Handles %s-related operations.", strings.TrimSuffix(e.Name, "Handler"))
	case serviceSuffixRegex.MatchString(e.Name):
		summary = fmt.Sprintf("Provides %s business logic.", strings.TrimSuffix(e.Name, "Service"))
	case controllerSuffixRegex.MatchString(e.Name):
		summary = fmt.Sprintf("Coordinates %s-related requests.", strings.TrimSuffix(e.Name, "Controller"))
	}

	j := graph.Justification{
		JustificationID: graph.NewJustificationID(e.ID),
		EntityID:        e.ID,
		EntityKind:      e.Kind,
		Name:            e.Name,
		FilePath:        e.FilePath,
		PurposeSummary:  summary,
		BusinessValue:   "Inferred from naming and location; review recommended.",
		FeatureContext:  feature,
		Tags:            tags,
		InferredFrom:    graph.InferredFromFileName,
		EvidenceSources: []string{e.FilePath},
		Reasoning:       "code_analysis_fallback",
		ConfidenceScore: codeAnalysisConfidenceDefault,
	}
	j.Normalize()
	return j
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
