// Package triviality implements the Triviality Filter (C3): a static rule
// table that decides whether a default, rule-based justification is
// defensible in place of an LLM call. Per spec.md §9's design note, rules
// are encoded as a plain slice rather than dynamic dispatch.
package triviality

import (
	"regexp"
	"strings"

	"github.com/codegraph-labs/justify/pkg/graph"
)

// sensitiveNameRegex implements the "never trivial" short-circuit: any
// function/method whose name matches is always non-trivial regardless of
// length.
var sensitiveNameRegex = regexp.MustCompile(`(?i)auth|security|validate|verify|credential|password|secret|token|permission|role|check|guard|encrypt|decrypt`)

var (
	getterRegex    = regexp.MustCompile(`^(get|is|has)[A-Z]`)
	setterRegex    = regexp.MustCompile(`^set[A-Z]`)
	underscoreRegex = regexp.MustCompile(`^_.*`)

	dataSuffixRegex   = regexp.MustCompile(`(Data|DTO|Model|Entity|Record|State)$`)
	errorSuffixRegex  = regexp.MustCompile(`(Error|Exception)$`)
	configSuffixRegex = regexp.MustCompile(`(Props|Options|Config|Settings|Params|Args|Input|Output|Response|Request)$`)

	testFileRegex   = regexp.MustCompile(`\.(test|spec)\.`)
	indexFileRegex  = regexp.MustCompile(`(^|/)index\.`)
	typeFileRegex   = regexp.MustCompile(`\.d\.ts$|types\.ts$|interface\.ts$`)
	configFileRegex = regexp.MustCompile(`(^|/)(config|constants|env)\.`)
)

var standardAccessorNames = map[string]bool{
	"toString": true, "valueOf": true, "toJSON": true, "clone": true,
	"copy": true, "equals": true, "hashCode": true, "compareTo": true,
}

// Result is the outcome of evaluating an entity against the rule table.
type Result struct {
	IsTrivial bool
	Reason    string
	Default   *graph.Justification
}

// Rule is a single first-match-wins entry in the static rule table (spec.md
// §9: "a list of Rule{matches, reason, defaults}").
type Rule struct {
	Name    string
	Matches func(e graph.Entity) bool
	Reason  string
	Build   func(e graph.Entity) graph.Justification
}

// Evaluate runs the strict-mode rule table against an entity, in order,
// first match wins. The sensitive-name short-circuit is checked before any
// function/method rule.
func Evaluate(e graph.Entity) Result {
	if (e.Kind == graph.KindFunction || e.Kind == graph.KindMethod) && sensitiveNameRegex.MatchString(e.Name) {
		return Result{IsTrivial: false, Reason: "sensitive_name"}
	}

	for _, rule := range rulesFor(e.Kind) {
		if rule.Matches(e) {
			j := rule.Build(e)
			return Result{IsTrivial: true, Reason: rule.Reason, Default: &j}
		}
	}

	return Result{IsTrivial: false, Reason: "no_rule_matched"}
}

func rulesFor(kind graph.EntityKind) []Rule {
	switch kind {
	case graph.KindFunction, graph.KindMethod:
		return functionRules
	case graph.KindClass:
		return classRules
	case graph.KindInterface:
		return interfaceRules
	case graph.KindFile:
		return fileRules
	default:
		return nil
	}
}

func base(e graph.Entity, reason, summary, value, feature string, tags []string, confidence float64) graph.Justification {
	j := graph.Justification{
		JustificationID: graph.NewJustificationID(e.ID),
		EntityID:       e.ID,
		EntityKind:     e.Kind,
		Name:           e.Name,
		FilePath:       e.FilePath,
		PurposeSummary: summary,
		BusinessValue:  value,
		FeatureContext: feature,
		Tags:           tags,
		InferredFrom:   graph.InferredFromFileName,
		Reasoning:      "rule:" + reason,
		ConfidenceScore: confidence,
	}
	j.Normalize()
	return j
}

var functionRules = []Rule{
	{
		Name:   "simple_getter",
		Reason: "simple_getter",
		Matches: func(e graph.Entity) bool {
			return getterRegex.MatchString(e.Name) && e.LineCount() <= 3
		},
		Build: func(e graph.Entity) graph.Justification {
			return base(e, "simple_getter", "Returns a stored value.", "Provides read access to internal state.",
				"General", []string{"accessor", "getter"}, 0.9)
		},
	},
	{
		Name:   "simple_setter",
		Reason: "simple_setter",
		Matches: func(e graph.Entity) bool {
			return setterRegex.MatchString(e.Name) && e.LineCount() <= 3
		},
		Build: func(e graph.Entity) graph.Justification {
			return base(e, "simple_setter", "Assigns a stored value.", "Provides write access to internal state.",
				"General", []string{"accessor", "setter"}, 0.9)
		},
	},
	{
		Name:   "standard_accessor",
		Reason: "standard_accessor",
		Matches: func(e graph.Entity) bool {
			return standardAccessorNames[e.Name]
		},
		Build: func(e graph.Entity) graph.Justification {
			return base(e, "standard_accessor", "Implements a language-standard object protocol method.",
				"Supports interoperability with standard tooling (serialization, comparison, logging).",
				"General", []string{"standard-method"}, 0.85)
		},
	},
	{
		Name:   "simple_constructor",
		Reason: "simple_constructor",
		Matches: func(e graph.Entity) bool {
			return e.Name == "constructor" && e.LineCount() <= 5
		},
		Build: func(e graph.Entity) graph.Justification {
			return base(e, "simple_constructor", "Initializes a new instance.", "Establishes initial object state.",
				"General", []string{"constructor"}, 0.85)
		},
	},
	{
		Name:   "very_short_function",
		Reason: "very_short_function",
		Matches: func(e graph.Entity) bool {
			return e.LineCount() <= 1
		},
		Build: func(e graph.Entity) graph.Justification {
			return base(e, "very_short_function", "Single-expression helper.", "Minimal utility with negligible business logic.",
				"General", []string{"trivial"}, 0.75)
		},
	},
	{
		Name:   "trivial_utility",
		Reason: "trivial_utility",
		Matches: func(e graph.Entity) bool {
			return e.Name == "noop" || e.Name == "identity" || underscoreRegex.MatchString(e.Name)
		},
		Build: func(e graph.Entity) graph.Justification {
			return base(e, "trivial_utility", "Placeholder or pass-through utility.", "No independent business value.",
				"General", []string{"utility"}, 0.7)
		},
	},
}

var classRules = []Rule{
	{
		Name:   "minimal_class",
		Reason: "minimal_class",
		Matches: func(e graph.Entity) bool {
			return e.LineCount() <= 3
		},
		Build: func(e graph.Entity) graph.Justification {
			return base(e, "minimal_class", "Minimal class definition with little or no behavior.", "Provides a lightweight structural grouping.",
				"General", []string{"minimal"}, 0.75)
		},
	},
	{
		Name:   "error_class",
		Reason: "error_class",
		Matches: func(e graph.Entity) bool {
			return errorSuffixRegex.MatchString(e.Name)
		},
		Build: func(e graph.Entity) graph.Justification {
			return base(e, "error_class", "Represents an error/exception condition.", "Enables structured error handling and diagnostics.",
				"Error Handling", []string{"error"}, 0.9)
		},
	},
	{
		Name:   "data_class",
		Reason: "data_class",
		Matches: func(e graph.Entity) bool {
			return dataSuffixRegex.MatchString(e.Name) && e.LineCount() <= 10
		},
		Build: func(e graph.Entity) graph.Justification {
			return base(e, "data_class", "Plain data container.", "Carries structured data between layers without independent logic.",
				"Data Modeling", []string{"data", "model"}, 0.85)
		},
	},
}

var interfaceRules = []Rule{
	{
		Name:   "minimal_interface",
		Reason: "minimal_interface",
		Matches: func(e graph.Entity) bool {
			return e.LineCount() <= 3
		},
		Build: func(e graph.Entity) graph.Justification {
			return base(e, "minimal_interface", "Minimal interface definition.", "Declares a small structural contract.",
				"General", []string{"minimal", "contract"}, 0.75)
		},
	},
	{
		Name:   "config_interface",
		Reason: "config_interface",
		Matches: func(e graph.Entity) bool {
			return configSuffixRegex.MatchString(e.Name)
		},
		Build: func(e graph.Entity) graph.Justification {
			return base(e, "config_interface", "Describes the shape of configuration or request/response data.",
				"Defines a stable contract consumed by callers.", "Configuration", []string{"config", "contract"}, 0.9)
		},
	},
}

var fileRules = []Rule{
	{
		Name:   "test_file",
		Reason: "test_file",
		Matches: func(e graph.Entity) bool {
			return testFileRegex.MatchString(e.FilePath)
		},
		Build: func(e graph.Entity) graph.Justification {
			return base(e, "test_file", "Test suite file.", "Verifies correctness of associated production code.",
				"Testing", []string{"test"}, 0.9)
		},
	},
	{
		Name:   "index_file",
		Reason: "index_file",
		Matches: func(e graph.Entity) bool {
			return indexFileRegex.MatchString(strings.ToLower(e.FilePath))
		},
		Build: func(e graph.Entity) graph.Justification {
			return base(e, "index_file", "Barrel/re-export file.", "Simplifies module import paths for consumers.",
				"General", []string{"index"}, 0.85)
		},
	},
	{
		Name:   "type_file",
		Reason: "type_file",
		Matches: func(e graph.Entity) bool {
			return typeFileRegex.MatchString(e.FilePath)
		},
		Build: func(e graph.Entity) graph.Justification {
			return base(e, "type_file", "Type declaration file.", "Defines shared type contracts with no runtime behavior.",
				"Configuration", []string{"types"}, 0.85)
		},
	},
	{
		Name:   "config_file",
		Reason: "config_file",
		Matches: func(e graph.Entity) bool {
			return configFileRegex.MatchString(strings.ToLower(e.FilePath))
		},
		Build: func(e graph.Entity) graph.Justification {
			return base(e, "config_file", "Configuration or constants file.", "Centralizes environment-specific or fixed settings.",
				"Configuration", []string{"config"}, 0.9)
		},
	},
}
