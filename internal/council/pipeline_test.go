package council

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-conclave/internal/cache"
	"github.com/ahrav/go-conclave/internal/domain"
	"github.com/ahrav/go-conclave/internal/router"
	"github.com/ahrav/go-conclave/internal/testutils"
)

const (
	modelOpenAI    = "openai/gpt-4o"
	modelAnthropic = "anthropic/claude-3-5-sonnet-20241022"
	modelGoogle    = "google/gemini-2.0-flash-exp"
	modelChairman  = "chair/synthesizer"
	modelAdvocate  = "judge/devil"
)

const consensusVerdict = `Response A is adequate. Response B is clearly the strongest. Response C is weakest.

FINAL RANKING:
1. Response B
2. Response A
3. Response C`

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Chairman = modelChairman
	cfg.Advocate.Model = modelAdvocate
	return cfg
}

// consensusGateway scripts a run where every evaluator agrees, so the
// debate resolves in one round with no rebuttal calls.
func consensusGateway() *testutils.MockGateway {
	return testutils.NewMockGateway().
		Respond(modelOpenAI, "answer from openai", consensusVerdict).
		Respond(modelAnthropic, "answer from anthropic", consensusVerdict).
		Respond(modelGoogle, "answer from google", consensusVerdict).
		Respond(modelAdvocate, "The top answer assumes too much about the deployment environment.").
		Respond(modelChairman, "The council agrees on a synthesized final answer.")
}

func TestPipeline_FullCouncilRun(t *testing.T) {
	gateway := consensusGateway()
	p, err := NewPipeline(testConfig(), gateway)
	require.NoError(t, err)

	result, err := p.Deliberate(context.Background(), "What are the tradeoffs between REST and gRPC?")
	require.NoError(t, err)

	require.Len(t, result.Stage1, 3)
	assert.Equal(t, modelOpenAI, result.Stage1[0].Model, "stage one preserves council order")
	require.Len(t, result.Rankings, 3)

	require.NotEmpty(t, result.Aggregate)
	assert.Equal(t, modelAnthropic, result.Aggregate[0].Model)
	assert.InDelta(t, 1.0, result.Aggregate[0].MeanRank, 1e-9)

	require.Len(t, result.Debate, 1)
	assert.Equal(t, domain.DebateConsensus, result.Debate[0].Status)
	assert.Equal(t, modelAnthropic, result.Debate[0].TopModel)
	assert.Empty(t, result.Rebuttals)

	require.NotNil(t, result.Advocate)
	assert.Equal(t, modelAnthropic, result.Advocate.TargetModel)

	assert.False(t, result.Final.Failed)
	assert.Equal(t, modelChairman, result.Final.Model)
	assert.Contains(t, result.Final.Content, "synthesized final answer")

	assert.Equal(t, result.LabelToModel["Response B"], modelAnthropic)
	assert.NotEmpty(t, result.Usage)
}

func TestPipeline_EmptyQueryRejected(t *testing.T) {
	p, err := NewPipeline(testConfig(), testutils.NewMockGateway())
	require.NoError(t, err)

	_, err = p.Deliberate(context.Background(), "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyQuery)
}

func TestPipeline_TotalFailureStopsBeforeLaterStages(t *testing.T) {
	boom := errors.New("provider down")
	gateway := testutils.NewMockGateway().
		Fail(modelOpenAI, boom).
		Fail(modelAnthropic, boom).
		Fail(modelGoogle, boom)

	p, err := NewPipeline(testConfig(), gateway)
	require.NoError(t, err)

	_, err = p.Deliberate(context.Background(), "anything at all")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAllModelsFailed)

	var stageErr *domain.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "collect", stageErr.Stage)

	assert.Zero(t, gateway.Calls(modelChairman), "synthesis must not run after total failure")
	assert.Zero(t, gateway.Calls(modelAdvocate))
	assert.Equal(t, 3, gateway.TotalCalls(), "only the first stage may issue calls")
}

func TestPipeline_PartialFailureProceedsWithSurvivors(t *testing.T) {
	gateway := testutils.NewMockGateway().
		Respond(modelOpenAI, "answer from openai", "FINAL RANKING:\n1. Response A\n2. Response B").
		Fail(modelAnthropic, errors.New("rate limited")).
		Respond(modelGoogle, "answer from google", "FINAL RANKING:\n1. Response A\n2. Response B").
		Respond(modelAdvocate, "challenge text").
		Respond(modelChairman, "final answer")

	p, err := NewPipeline(testConfig(), gateway)
	require.NoError(t, err)

	result, err := p.Deliberate(context.Background(), "a moderately interesting question")
	require.NoError(t, err)

	require.Len(t, result.Stage1, 2)
	assert.Equal(t, modelOpenAI, result.Stage1[0].Model)
	assert.Equal(t, modelGoogle, result.Stage1[1].Model)
	assert.Equal(t, result.LabelToModel["Response A"], modelOpenAI)
	assert.Equal(t, modelOpenAI, result.Aggregate[0].Model)
	assert.False(t, result.Final.Failed)
}

func TestPipeline_SynthesisFailureDegradesToSentinel(t *testing.T) {
	gateway := consensusGateway().Fail(modelChairman, errors.New("chairman down"))

	p, err := NewPipeline(testConfig(), gateway)
	require.NoError(t, err)

	result, err := p.Deliberate(context.Background(), "a question the chairman cannot answer")
	require.NoError(t, err, "chairman failure must not fail the run")

	assert.True(t, result.Final.Failed)
	assert.Equal(t, synthesisFallback, result.Final.Content)
	assert.Len(t, result.Stage1, 3, "earlier artifacts survive")
}

func TestPipeline_SingleTierSkipsCouncilStages(t *testing.T) {
	cfg := testConfig()
	cfg.Routing.ForceTier = domain.TierSingle

	rt, err := router.New(cfg.Routing, cfg.Models, nil)
	require.NoError(t, err)

	gateway := testutils.NewMockGateway().Respond(modelOpenAI, "Paris is the capital of France.")
	p, err := NewPipeline(cfg, gateway, WithRouter(rt))
	require.NoError(t, err)

	result, err := p.Deliberate(context.Background(), "What is the capital of France?")
	require.NoError(t, err)

	assert.Equal(t, domain.TierSingle, result.Tier)
	assert.Equal(t, "Paris is the capital of France.", result.Final.Content)
	assert.Empty(t, result.Rankings)
	assert.Nil(t, result.Advocate)
	assert.Equal(t, 1, gateway.TotalCalls())
}

func TestPipeline_CacheHitSkipsAllModelCalls(t *testing.T) {
	store, err := cache.Open(cache.Config{Enabled: true})
	require.NoError(t, err)

	gateway := consensusGateway()
	p, err := NewPipeline(testConfig(), gateway, WithCache(store))
	require.NoError(t, err)

	query := "Explain the CAP theorem with practical examples."
	first, err := p.Deliberate(context.Background(), query)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	callsAfterFirst := gateway.TotalCalls()

	second, err := p.Deliberate(context.Background(), query)
	require.NoError(t, err)

	assert.True(t, second.FromCache)
	assert.Equal(t, 1.0, second.Similarity)
	assert.Equal(t, first.Final.Content, second.Final.Content)
	assert.Equal(t, callsAfterFirst, gateway.TotalCalls(), "cache hit must not touch the gateway")
}

func TestPipeline_FailedSynthesisNotCached(t *testing.T) {
	store, err := cache.Open(cache.Config{Enabled: true})
	require.NoError(t, err)

	gateway := consensusGateway().Fail(modelChairman, errors.New("chairman down"))
	p, err := NewPipeline(testConfig(), gateway, WithCache(store))
	require.NoError(t, err)

	query := "A question whose synthesis fails."
	_, err = p.Deliberate(context.Background(), query)
	require.NoError(t, err)

	_, _, ok := store.Lookup(query)
	assert.False(t, ok, "degraded results must not be served from cache")
}

func TestPipeline_StreamDeliversTokensAndTerminalEvent(t *testing.T) {
	gateway := consensusGateway()
	p, err := NewPipeline(testConfig(), gateway)
	require.NoError(t, err)

	var tokens []string
	var terminal *StreamEvent
	result, err := p.DeliberateStream(context.Background(), "Stream me an answer please.", func(ev StreamEvent) {
		if ev.Done {
			terminal = &ev
			return
		}
		tokens = append(tokens, ev.Token)
	})
	require.NoError(t, err)

	require.NotNil(t, terminal)
	assert.Equal(t, result.Final.Content, terminal.Final.Content)
	assert.Equal(t, result.Final.Content, strings.Join(tokens, ""))

	require.NotEmpty(t, terminal.Usage)
	assert.True(t, terminal.Usage[0].Estimated, "streamed usage is estimated from text length")
}

func TestPipeline_StreamFailureKeepsPartialContent(t *testing.T) {
	gateway := consensusGateway().
		Set(modelChairman, testutils.Script{
			Responses: []string{"The council finds the second answer strongest overall."},
			Err:       errors.New("connection reset"),
			StreamCut: 3,
		})
	p, err := NewPipeline(testConfig(), gateway)
	require.NoError(t, err)

	var tokens []string
	var terminal *StreamEvent
	result, err := p.DeliberateStream(context.Background(), "How should retries be bounded?", func(ev StreamEvent) {
		if ev.Done {
			terminal = &ev
			return
		}
		tokens = append(tokens, ev.Token)
	})
	require.NoError(t, err, "a dropped synthesis stream degrades instead of failing")

	assert.True(t, result.Final.Failed)
	assert.Equal(t, "The council finds ", result.Final.Content, "partial output survives the drop")
	require.NotNil(t, terminal)
	assert.Equal(t, result.Final.Content, terminal.Final.Content)
	assert.Equal(t, result.Final.Content, strings.Join(tokens, ""))
	require.NotEmpty(t, terminal.Usage)
	assert.True(t, terminal.Usage[0].Estimated)
}

func TestPipeline_LabelSeedReproducesShuffle(t *testing.T) {
	cfg := testConfig()
	cfg.ShuffleLabels = true

	run := func(seed int64) map[string]string {
		p, err := NewPipeline(cfg, consensusGateway(), WithLabelSeed(seed))
		require.NoError(t, err)
		result, err := p.Deliberate(context.Background(), "Compare the merits of both approaches in detail.")
		require.NoError(t, err)
		require.Len(t, result.LabelToModel, 3)
		return result.LabelToModel
	}

	first := run(42)
	assert.Equal(t, first, run(42), "same seed yields the same label assignment")
}
