package justify

import (
	"fmt"
	"strings"

	"github.com/codegraph-labs/justify/pkg/graph"
)

// systemPrompt is the fixed instruction prefix for every batch call
// (spec.md §4.5). Kept as a constant rather than templated, matching the
// teacher's BuildStageContext's HTML-comment-delimited section idiom
// adapted to a plain numbered-entity prompt.
const systemPrompt = `You are a senior software engineer producing business justifications for code entities.
For each entity in the batch, return a JSON array with one object per entity, in the same order they are given.
Each object must have: purposeSummary, businessValue, featureContext, detailedDescription, tags, confidenceScore, reasoning, needsClarification, clarificationQuestions.
Keep purposeSummary concise. confidenceScore is a float between 0 and 1. Set needsClarification=true only when the entity's intent is genuinely ambiguous from the given context.`

// buildBatchPrompt assembles the user-turn prompt for a batch: one
// <entity> section per item, each carrying its context.
func buildBatchPrompt(entities []graph.Entity, contexts map[string]JustificationContext, project *ProjectContext) string {
	var b strings.Builder
	if project != nil {
		fmt.Fprintf(&b, "<!-- project: %s (%s) — %s -->\n", project.Name, project.Domain, project.Description)
	}
	for i, e := range entities {
		fmt.Fprintf(&b, "<entity index=%d id=%q kind=%q name=%q file=%q>\n", i, e.ID, e.Kind, e.Name, e.FilePath)
		if e.Signature != "" {
			fmt.Fprintf(&b, "signature: %s\n", e.Signature)
		}
		if e.DocComment != "" {
			fmt.Fprintf(&b, "doc: %s\n", firstLineOf(e.DocComment))
		}
		if e.Snippet != "" {
			fmt.Fprintf(&b, "code:\n%s\n", firstNLinesOf(e.Snippet, 10))
		}
		if jc, ok := contexts[e.ID]; ok {
			writeContextSection(&b, jc)
		}
		b.WriteString("</entity>\n")
	}
	return b.String()
}

func writeContextSection(b *strings.Builder, jc JustificationContext) {
	if jc.ParentContext != nil {
		fmt.Fprintf(b, "parent: %s (%s)\n", jc.ParentContext.Name, jc.ParentContext.FeatureContext)
	}
	for _, dep := range jc.Dependencies {
		fmt.Fprintf(b, "depends_on: %s — %s\n", dep.Name, dep.Summary)
	}
	if len(jc.Siblings) > 0 {
		names := make([]string, 0, len(jc.Siblings))
		for _, s := range jc.Siblings {
			names = append(names, s.Name)
		}
		fmt.Fprintf(b, "siblings: %s\n", strings.Join(names, ", "))
	}
}

func firstLineOf(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

func firstNLinesOf(s string, n int) string {
	count := 0
	for i, r := range s {
		if r == '\n' {
			count++
			if count == n {
				return s[:i]
			}
		}
	}
	return s
}

// responseJSONSchema is the JSON schema constraining C5's batch responses
// (spec.md §4.5: required keys purposeSummary, businessValue,
// confidenceScore).
var responseJSONSchema = map[string]any{
	"type": "array",
	"items": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"purposeSummary":         map[string]any{"type": "string"},
			"businessValue":          map[string]any{"type": "string"},
			"featureContext":         map[string]any{"type": "string"},
			"detailedDescription":    map[string]any{"type": "string"},
			"tags":                   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"confidenceScore":        map[string]any{"type": "number"},
			"reasoning":              map[string]any{"type": "string"},
			"needsClarification":     map[string]any{"type": "boolean"},
			"clarificationQuestions": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"purposeSummary", "businessValue", "confidenceScore"},
	},
}
