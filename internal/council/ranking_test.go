package council

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ahrav/go-conclave/internal/domain"
)

func record(evaluator string, labels ...string) domain.RankingRecord {
	return domain.RankingRecord{
		Evaluator: evaluator,
		Parsed:    domain.ParseResult{Labels: labels, Confidence: 1.0},
	}
}

func TestAggregate_MeanRankSortedBestFirst(t *testing.T) {
	labels := threeLabels(t)
	rankings := []domain.RankingRecord{
		record("openai/gpt-4o", "Response B", "Response A", "Response C"),
		record("anthropic/claude-3-5-sonnet-20241022", "Response B", "Response C", "Response A"),
		record("google/gemini-2.0-flash-exp", "Response A", "Response B", "Response C"),
	}

	aggregate := Aggregate(rankings, labels)

	assert.Len(t, aggregate, 3)
	assert.Equal(t, "anthropic/claude-3-5-sonnet-20241022", aggregate[0].Model)
	assert.InDelta(t, 4.0/3.0, aggregate[0].MeanRank, 1e-9)
	assert.Equal(t, 3, aggregate[0].Evaluations)
}

func TestAggregate_TiesBreakOnModelName(t *testing.T) {
	labels := threeLabels(t)
	rankings := []domain.RankingRecord{
		record("openai/gpt-4o", "Response A", "Response B"),
		record("anthropic/claude-3-5-sonnet-20241022", "Response B", "Response A"),
	}

	aggregate := Aggregate(rankings, labels)

	// Both models average 1.5; name order decides.
	assert.Equal(t, "anthropic/claude-3-5-sonnet-20241022", aggregate[0].Model)
	assert.Equal(t, "openai/gpt-4o", aggregate[1].Model)
}

func TestAggregate_EmptyParsesContributeNothing(t *testing.T) {
	labels := threeLabels(t)
	rankings := []domain.RankingRecord{
		{Evaluator: "openai/gpt-4o"},
		record("google/gemini-2.0-flash-exp", "Response C"),
	}

	aggregate := Aggregate(rankings, labels)

	assert.Len(t, aggregate, 1)
	assert.Equal(t, "google/gemini-2.0-flash-exp", aggregate[0].Model)
	assert.Equal(t, 1, aggregate[0].Evaluations)
}

func TestCheckConsensus_ReachedWhenEnoughAgree(t *testing.T) {
	labels := threeLabels(t)
	rankings := []domain.RankingRecord{
		record("openai/gpt-4o", "Response B", "Response A"),
		record("anthropic/claude-3-5-sonnet-20241022", "Response B", "Response C"),
		record("google/gemini-2.0-flash-exp", "Response B", "Response A"),
	}

	ok, top := CheckConsensus(rankings, labels, 0.8)

	assert.True(t, ok)
	assert.Equal(t, "anthropic/claude-3-5-sonnet-20241022", top)
}

func TestCheckConsensus_NotReachedWhenSplit(t *testing.T) {
	labels := threeLabels(t)
	rankings := []domain.RankingRecord{
		record("openai/gpt-4o", "Response B"),
		record("anthropic/claude-3-5-sonnet-20241022", "Response A"),
		record("google/gemini-2.0-flash-exp", "Response C"),
	}

	ok, top := CheckConsensus(rankings, labels, 0.8)

	assert.False(t, ok)
	assert.Empty(t, top)
}

func TestCheckConsensus_EmptyParsesExcludedFromDenominator(t *testing.T) {
	labels := threeLabels(t)
	rankings := []domain.RankingRecord{
		record("openai/gpt-4o", "Response A"),
		{Evaluator: "anthropic/claude-3-5-sonnet-20241022"},
		{Evaluator: "google/gemini-2.0-flash-exp"},
	}

	// One parseable record naming A first is 100% of valid rankings.
	ok, top := CheckConsensus(rankings, labels, 0.8)

	assert.True(t, ok)
	assert.Equal(t, "openai/gpt-4o", top)
}

func TestCheckConsensus_NoValidRankings(t *testing.T) {
	labels := threeLabels(t)

	ok, top := CheckConsensus([]domain.RankingRecord{{Evaluator: "openai/gpt-4o"}}, labels, 0.8)

	assert.False(t, ok)
	assert.Empty(t, top)
}
