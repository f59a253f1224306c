// Package router decides how much deliberation a query deserves.
// It scores queries on independent complexity heuristics and maps the
// score to a dispatch tier, optionally refined by a learned
// linear-weight model trained from feedback.
package router

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Per-factor score bounds. The factors sum and clamp to [0,1].
const (
	maxLengthScore    = 0.25
	simplePenalty     = -0.2
	maxTechnicalScore = 0.3
	maxMultiPartScore = 0.25
	maxAmbiguityScore = 0.2
)

// Factor names reported in the analysis breakdown.
const (
	FactorLength     = "length"
	FactorSimplicity = "simplicity"
	FactorTechnical  = "technical"
	FactorMultiPart  = "multi_part"
	FactorAmbiguity  = "ambiguity"
)

// technicalTerms are words whose presence indicates a query needs
// deeper deliberation.
var technicalTerms = toSet(
	// Programming.
	"algorithm", "architecture", "async", "asynchronous", "api", "backend",
	"cache", "class", "compiler", "complexity", "concurrent", "database",
	"debug", "deploy", "distributed", "docker", "encryption", "frontend",
	"function", "git", "hash", "implement", "inheritance", "interface",
	"kubernetes", "lambda", "latency", "microservice", "middleware",
	"multithread", "network", "optimization", "parallel", "pipeline",
	"polymorphism", "protocol", "queue", "recursion", "refactor", "regex",
	"rest", "scalability", "schema", "security", "server", "socket",
	"synchronous", "thread", "typescript", "virtualization", "webpack",
	// Science and math.
	"theorem", "proof", "equation", "integral", "derivative", "matrix",
	"vector", "statistical", "hypothesis", "correlation", "regression",
	"probability", "quantum", "relativity", "entropy", "thermodynamic",
	// Philosophy and ethics.
	"epistemology", "ontology", "metaphysics", "utilitarian", "deontological",
	"consequentialism", "categorical", "existential", "phenomenology",
	// General complexity indicators.
	"tradeoff", "trade-off", "compare", "contrast", "analyze", "evaluate",
	"implications", "consequences", "nuanced", "multifaceted", "comprehensive",
)

// simpleIndicators are openings that mark a lookup-style question.
var simpleIndicators = []string{
	"what is", "what's", "who is", "who's", "when is", "when was",
	"where is", "where's", "how many", "how much", "how old",
	"define", "definition of", "meaning of",
}

// multiPartPatterns detect sub-questions or list structure.
var multiPartPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(first|second|third|finally|also|additionally|moreover|furthermore)\b`),
	regexp.MustCompile(`\b(and|or)\s+\w+\s+(should|would|could|can|will)\b`),
	regexp.MustCompile(`\d+\.\s+`),
	regexp.MustCompile(`[•\-\*]\s+`),
	regexp.MustCompile(`\?\s+\w`),
}

// ambiguityIndicators mark subjective questions that benefit from
// multiple perspectives.
var ambiguityIndicators = []string{
	"best way", "should i", "which is better", "what do you think",
	"opinion on", "advice", "recommend", "suggestion", "depends on",
	"it varies", "context", "situation", "case by case",
}

var wordPattern = regexp.MustCompile(`\w+`)

// Analysis is the result of complexity analysis on a query. It is
// derived once and never mutated afterwards.
type Analysis struct {
	// Score is the clamped sum of all factors, in [0,1].
	Score float64 `json:"score"`

	// Factors is the per-heuristic score breakdown.
	Factors map[string]float64 `json:"factors"`

	// Reasoning is a human-readable summary of what contributed.
	Reasoning string `json:"reasoning"`
}

// Analyze scores a query on five independent heuristics: length,
// simple-question patterns (negative), technical-term density,
// multi-part structure, and ambiguity language. The result is a pure
// function of the query text.
func Analyze(query string) Analysis {
	lower := strings.ToLower(query)
	words := wordPattern.FindAllString(lower, -1)
	wordCount := len(words)

	factors := make(map[string]float64, 5)
	var reasons []string

	// Length: longer queries tend to be more complex.
	lengthScore, lengthReason := lengthFactor(wordCount)
	factors[FactorLength] = lengthScore
	reasons = append(reasons, lengthReason)

	// Simple-question patterns reduce the score.
	factors[FactorSimplicity] = 0
	for _, indicator := range simpleIndicators {
		if strings.Contains(lower, indicator) {
			factors[FactorSimplicity] = simplePenalty
			reasons = append(reasons, fmt.Sprintf("simple question pattern %q", indicator))
			break
		}
	}

	// Technical-term density.
	techCount := 0
	for _, w := range words {
		if _, ok := technicalTerms[w]; ok {
			techCount++
		}
	}
	techRatio := float64(techCount) / float64(max(wordCount, 1))
	factors[FactorTechnical] = min(techRatio*3, maxTechnicalScore)
	if techCount > 0 {
		reasons = append(reasons, fmt.Sprintf("%d technical term(s)", techCount))
	}

	// Multi-part structure.
	multiCount := 0
	for _, p := range multiPartPatterns {
		multiCount += len(p.FindAllString(lower, -1))
	}
	if marks := strings.Count(query, "?"); marks > 1 {
		multiCount += marks - 1
		reasons = append(reasons, fmt.Sprintf("%d questions", marks))
	}
	factors[FactorMultiPart] = min(float64(multiCount)*0.1, maxMultiPartScore)
	if multiCount > 0 {
		reasons = append(reasons, fmt.Sprintf("multi-part query (%d parts)", multiCount))
	}

	// Ambiguity and subjectivity.
	ambiguityCount := 0
	for _, indicator := range ambiguityIndicators {
		if strings.Contains(lower, indicator) {
			ambiguityCount++
		}
	}
	factors[FactorAmbiguity] = min(float64(ambiguityCount)*0.1, maxAmbiguityScore)
	if ambiguityCount > 0 {
		reasons = append(reasons, fmt.Sprintf("%d ambiguity indicator(s)", ambiguityCount))
	}

	total := 0.0
	for _, v := range factors {
		total += v
	}
	total = clamp01(total)

	return Analysis{
		Score:     total,
		Factors:   factors,
		Reasoning: fmt.Sprintf("score %.2f: %s", total, strings.Join(reasons, "; ")),
	}
}

func lengthFactor(wordCount int) (float64, string) {
	switch {
	case wordCount <= 5:
		return 0.0, "very short query"
	case wordCount <= 15:
		return 0.1, "short query"
	case wordCount <= 30:
		return 0.15, "medium-length query"
	case wordCount <= 50:
		return 0.2, "long query"
	default:
		return maxLengthScore, "very long query"
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// sortedFactorNames returns factor names in stable order, used when
// formatting breakdowns.
func sortedFactorNames(factors map[string]float64) []string {
	names := make([]string, 0, len(factors))
	for name := range factors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
