package router

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyze_SimpleFactualQueryScoresLow(t *testing.T) {
	analysis := Analyze("What is the capital of France?")

	assert.Less(t, analysis.Score, DefaultLowThreshold)
	assert.Equal(t, simplePenalty, analysis.Factors[FactorSimplicity])
}

func TestAnalyze_TechnicalMultiPartQueryScoresHigh(t *testing.T) {
	query := "Compare the scalability tradeoffs of a microservice architecture " +
		"versus a monolith. First, analyze database consistency implications. " +
		"Second, evaluate deployment and cache invalidation concerns. " +
		"Which approach should I recommend for a distributed team, and why? " +
		"What are the security consequences of each choice?"

	analysis := Analyze(query)

	assert.GreaterOrEqual(t, analysis.Score, DefaultHighThreshold)
	assert.Positive(t, analysis.Factors[FactorTechnical])
	assert.Positive(t, analysis.Factors[FactorMultiPart])
}

func TestAnalyze_ScoreClampedToUnitRange(t *testing.T) {
	long := strings.Repeat("analyze the distributed database architecture tradeoff implications ", 30)
	analysis := Analyze(long + "? what should i do? which is better?")

	assert.LessOrEqual(t, analysis.Score, 1.0)
	assert.GreaterOrEqual(t, analysis.Score, 0.0)
}

func TestAnalyze_FactorsStayWithinBounds(t *testing.T) {
	query := "analyze evaluate compare contrast algorithm database encryption " +
		"kubernetes microservice scalability tradeoff implications"
	analysis := Analyze(query)

	assert.LessOrEqual(t, analysis.Factors[FactorTechnical], maxTechnicalScore)
	assert.LessOrEqual(t, analysis.Factors[FactorLength], maxLengthScore)
	assert.LessOrEqual(t, analysis.Factors[FactorMultiPart], maxMultiPartScore)
	assert.LessOrEqual(t, analysis.Factors[FactorAmbiguity], maxAmbiguityScore)
}

func TestAnalyze_Deterministic(t *testing.T) {
	query := "Should I use Postgres or MySQL for a read-heavy workload?"

	first := Analyze(query)
	second := Analyze(query)

	assert.Equal(t, first, second)
}

func TestAnalyze_AmbiguityIndicatorsRaiseScore(t *testing.T) {
	plain := Analyze("Summarize the history of the Roman empire in detail for me")
	subjective := Analyze("What do you think is the best way to learn, depends on context?")

	assert.Positive(t, subjective.Factors[FactorAmbiguity])
	assert.Zero(t, plain.Factors[FactorAmbiguity])
}
