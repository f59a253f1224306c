package council

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-conclave/internal/domain"
	"github.com/ahrav/go-conclave/internal/testutils"
)

const critiqueOfA = "Response A: This answer overlooks the main constraint entirely and makes several unsupported claims about performance."

func TestExtractCritiques_SegmentsByLabelMentions(t *testing.T) {
	labels := threeLabels(t)
	verdict := critiqueOfA + `
Response B: Short.
Response C: This one is reasonably complete but buries the conclusion under too much preamble to be useful.

FINAL RANKING:
1. Response C
2. Response B
3. Response A`

	rankings := []domain.RankingRecord{{
		Evaluator: "anthropic/claude-3-5-sonnet-20241022",
		Verdict:   verdict,
	}}

	critiques := extractCritiques("openai/gpt-4o", rankings, labels, 50)

	require.Len(t, critiques, 1)
	assert.Equal(t, "anthropic/claude-3-5-sonnet-20241022", critiques[0].From)
	assert.Contains(t, critiques[0].Content, "overlooks the main constraint")
	// The segment stops at the next label mention.
	assert.NotContains(t, critiques[0].Content, "Short")
}

func TestExtractCritiques_SkipsSelfEvaluation(t *testing.T) {
	labels := threeLabels(t)
	rankings := []domain.RankingRecord{{
		Evaluator: "openai/gpt-4o",
		Verdict:   critiqueOfA,
	}}

	critiques := extractCritiques("openai/gpt-4o", rankings, labels, 50)

	assert.Empty(t, critiques)
}

func TestExtractCritiques_FiltersShortFragments(t *testing.T) {
	labels := threeLabels(t)
	rankings := []domain.RankingRecord{{
		Evaluator: "google/gemini-2.0-flash-exp",
		Verdict:   "Response A: Fine.\nResponse B: Also fine.",
	}}

	critiques := extractCritiques("openai/gpt-4o", rankings, labels, 50)

	assert.Empty(t, critiques)
}

func TestExtractCritiques_UnknownModelYieldsNothing(t *testing.T) {
	labels := threeLabels(t)
	rankings := []domain.RankingRecord{{
		Evaluator: "google/gemini-2.0-flash-exp",
		Verdict:   critiqueOfA,
	}}

	assert.Empty(t, extractCritiques("mystery/model", rankings, labels, 50))
}

func TestRunDebate_StopsOnConsensus(t *testing.T) {
	labels := threeLabels(t)
	gateway := testutils.NewMockGateway()
	rankings := []domain.RankingRecord{
		record("openai/gpt-4o", "Response B"),
		record("anthropic/claude-3-5-sonnet-20241022", "Response B"),
		record("google/gemini-2.0-flash-exp", "Response B"),
	}

	cfg := DebateConfig{Enabled: true, MaxRounds: 3, ConsensusThreshold: 0.8, MinCritiqueLength: 50}
	rebuttals, rounds := runDebate(context.Background(), gateway, cfg, "q", nil, rankings, labels)

	assert.Empty(t, rebuttals)
	require.Len(t, rounds, 1)
	assert.Equal(t, domain.DebateConsensus, rounds[0].Status)
	assert.Equal(t, "anthropic/claude-3-5-sonnet-20241022", rounds[0].TopModel)
	assert.Zero(t, gateway.TotalCalls(), "consensus must short-circuit before any rebuttal call")
}

func TestRunDebate_ExhaustsWhenNoCritiques(t *testing.T) {
	labels := threeLabels(t)
	gateway := testutils.NewMockGateway()
	// Split first places, verdicts too short to produce critiques.
	rankings := []domain.RankingRecord{
		record("openai/gpt-4o", "Response A"),
		record("anthropic/claude-3-5-sonnet-20241022", "Response B"),
		record("google/gemini-2.0-flash-exp", "Response C"),
	}

	cfg := DebateConfig{Enabled: true, MaxRounds: 3, ConsensusThreshold: 0.8, MinCritiqueLength: 50}
	rebuttals, rounds := runDebate(context.Background(), gateway, cfg, "q", responsesForLabels(), rankings, labels)

	assert.Empty(t, rebuttals)
	require.Len(t, rounds, 1)
	assert.Equal(t, domain.DebateExhausted, rounds[0].Status)
}

func TestRunDebate_CollectsRebuttalsUpToRoundBudget(t *testing.T) {
	labels := threeLabels(t)
	gateway := testutils.NewMockGateway().
		Respond("openai/gpt-4o", "I stand by my answer for the following reasons.")

	verdict := critiqueOfA + "\n\nFINAL RANKING:\n1. Response B\n2. Response C\n3. Response A"
	rankings := []domain.RankingRecord{
		{Evaluator: "anthropic/claude-3-5-sonnet-20241022", Verdict: verdict,
			Parsed: domain.ParseResult{Labels: []string{"Response B", "Response C", "Response A"}, Confidence: 1}},
		{Evaluator: "google/gemini-2.0-flash-exp", Verdict: "no structure here",
			Parsed: domain.ParseResult{Labels: []string{"Response C"}, Confidence: 0.3}},
	}

	cfg := DebateConfig{Enabled: true, MaxRounds: 2, ConsensusThreshold: 0.8, MinCritiqueLength: 50}
	rebuttals, rounds := runDebate(context.Background(), gateway, cfg, "q", responsesForLabels(), rankings, labels)

	// No consensus and critiques exist every round, so the loop runs
	// the full budget.
	require.Len(t, rounds, 2)
	assert.Equal(t, domain.DebateRebutting, rounds[0].Status)
	assert.Equal(t, domain.DebateRebutting, rounds[1].Status)
	require.Len(t, rebuttals, 2)
	assert.Equal(t, "openai/gpt-4o", rebuttals[0].Model)
	assert.Equal(t, 1, rebuttals[0].CritiquesAddressed)
	assert.True(t, strings.Contains(rebuttals[0].Content, "stand by my answer"))
}

func responsesForLabels() []domain.ModelResponse {
	return []domain.ModelResponse{
		{Model: "openai/gpt-4o", Content: "answer one"},
		{Model: "anthropic/claude-3-5-sonnet-20241022", Content: "answer two"},
		{Model: "google/gemini-2.0-flash-exp", Content: "answer three"},
	}
}
