package router

import (
	"regexp"
	"strings"
)

// FeatureCount is the dimensionality of the routing feature vector.
const FeatureCount = 16

var technicalKeywords = toSet(
	"code", "programming", "algorithm", "database", "api", "function",
	"class", "variable", "bug", "error", "debug", "compile", "runtime",
	"python", "javascript", "java", "typescript", "react", "node",
	"sql", "docker", "kubernetes", "aws", "cloud", "server", "deploy",
)

var reasoningKeywords = toSet(
	"analyze", "compare", "evaluate", "explain", "why", "how", "because",
	"reason", "logic", "argument", "evidence", "conclusion", "therefore",
	"consider", "weigh", "trade-off", "pros", "cons", "implications",
)

var creativeKeywords = toSet(
	"write", "create", "design", "imagine", "story", "poem", "creative",
	"innovate", "brainstorm", "ideate", "novel", "unique", "original",
)

var simpleOpeners = []*regexp.Regexp{
	regexp.MustCompile(`^what is\s`),
	regexp.MustCompile(`^who is\s`),
	regexp.MustCompile(`^when (was|did|is)\s`),
	regexp.MustCompile(`^where is\s`),
	regexp.MustCompile(`^define\s`),
	regexp.MustCompile(`^how (do|does) (you|one)\s`),
}

var (
	sentenceSplit     = regexp.MustCompile(`[.!?]+`)
	bulletLine        = regexp.MustCompile(`(?m)^\s*[-*•]\s`)
	inlineCode        = regexp.MustCompile("`[^`]+`")
	conditionalWords  = regexp.MustCompile(`\b(if|when|unless|provided|assuming)\b`)
	comparisonWords   = regexp.MustCompile(`\b(vs|versus|compare|better|worse|difference)\b`)
	nestedClause      = regexp.MustCompile(`,\s*\w+\s+\w+`)
	conjunctionWords  = regexp.MustCompile(`\b(and|but|or|however|therefore|because)\b`)
)

// Features is the structural fingerprint of a query, used as input to
// the learned routing model.
type Features struct {
	CharCount     int     `json:"char_count"`
	WordCount     int     `json:"word_count"`
	SentenceCount int     `json:"sentence_count"`
	AvgWordLength float64 `json:"avg_word_length"`

	QuestionCount        int  `json:"question_count"`
	HasMultipleQuestions bool `json:"has_multiple_questions"`
	HasBulletPoints      bool `json:"has_bullet_points"`
	HasCodeBlock         bool `json:"has_code_block"`

	TechnicalKeywords int `json:"technical_keyword_count"`
	ReasoningKeywords int `json:"reasoning_keyword_count"`
	CreativeKeywords  int `json:"creative_keyword_count"`

	MatchesSimplePattern bool `json:"matches_simple_pattern"`
	HasConditional       bool `json:"has_conditional"`
	HasComparison        bool `json:"has_comparison"`

	NestedClauseCount int `json:"nested_clause_count"`
	ConjunctionCount  int `json:"conjunction_count"`
}

// ExtractFeatures computes the feature fingerprint for a query.
func ExtractFeatures(query string) Features {
	lower := strings.ToLower(query)
	words := strings.Fields(query)

	sentences := 0
	for _, s := range sentenceSplit.Split(query, -1) {
		if strings.TrimSpace(s) != "" {
			sentences++
		}
	}

	totalLen := 0
	for _, w := range words {
		totalLen += len(w)
	}
	avgLen := float64(totalLen) / float64(max(len(words), 1))

	questions := strings.Count(query, "?")

	simple := false
	for _, p := range simpleOpeners {
		if p.MatchString(lower) {
			simple = true
			break
		}
	}

	return Features{
		CharCount:            len(query),
		WordCount:            len(words),
		SentenceCount:        sentences,
		AvgWordLength:        avgLen,
		QuestionCount:        questions,
		HasMultipleQuestions: questions > 1,
		HasBulletPoints:      bulletLine.MatchString(query),
		HasCodeBlock:         strings.Contains(query, "```") || inlineCode.MatchString(query),
		TechnicalKeywords:    countKeywords(lower, technicalKeywords),
		ReasoningKeywords:    countKeywords(lower, reasoningKeywords),
		CreativeKeywords:     countKeywords(lower, creativeKeywords),
		MatchesSimplePattern: simple,
		HasConditional:       conditionalWords.MatchString(lower),
		HasComparison:        comparisonWords.MatchString(lower),
		NestedClauseCount:    len(nestedClause.FindAllString(query, -1)),
		ConjunctionCount:     len(conjunctionWords.FindAllString(lower, -1)),
	}
}

// Vector converts the features into the normalized numeric form the
// model consumes. Counts are scaled so typical queries land near the
// unit range.
func (f Features) Vector() []float64 {
	return []float64{
		float64(f.CharCount) / 500,
		float64(f.WordCount) / 100,
		float64(f.SentenceCount) / 10,
		f.AvgWordLength / 10,
		float64(f.QuestionCount),
		boolVal(f.HasMultipleQuestions),
		boolVal(f.HasBulletPoints),
		boolVal(f.HasCodeBlock),
		float64(f.TechnicalKeywords) / 5,
		float64(f.ReasoningKeywords) / 5,
		float64(f.CreativeKeywords) / 5,
		boolVal(f.MatchesSimplePattern),
		boolVal(f.HasConditional),
		boolVal(f.HasComparison),
		float64(f.NestedClauseCount) / 5,
		float64(f.ConjunctionCount) / 5,
	}
}

func countKeywords(lower string, set map[string]struct{}) int {
	n := 0
	for kw := range set {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

func boolVal(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
