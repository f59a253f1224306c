package router

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-conclave/internal/domain"
)

func TestExtractFeatures_VectorDimensionIsStable(t *testing.T) {
	f := ExtractFeatures("Why does the compiler reject this code, and how do I fix it?")
	assert.Len(t, f.Vector(), FeatureCount)
}

func TestExtractFeatures_DetectsStructure(t *testing.T) {
	query := "What is a monad? How does it relate to `flatMap`? " +
		"- first point\n- second point"

	f := ExtractFeatures(query)

	assert.Equal(t, 2, f.QuestionCount)
	assert.True(t, f.HasMultipleQuestions)
	assert.True(t, f.HasBulletPoints)
	assert.True(t, f.HasCodeBlock)
	assert.True(t, f.MatchesSimplePattern)
}

func TestLearnedModel_UntrainedUsesSeedWeights(t *testing.T) {
	m, err := LoadLearnedModel("")
	require.NoError(t, err)

	assert.False(t, m.Trained())

	pred := m.PredictDetailed("What is the capital of France?")
	assert.Equal(t, domain.TierSingle, pred.Tier)
	assert.GreaterOrEqual(t, pred.Confidence, 0.0)
	assert.LessOrEqual(t, pred.Confidence, 1.0)
}

func TestLearnedModel_UpdateMovesScoreTowardTarget(t *testing.T) {
	m, err := LoadLearnedModel("")
	require.NoError(t, err)

	query := "Evaluate the philosophical implications of algorithmic decision making in healthcare."
	features := ExtractFeatures(query).Vector()

	before := m.PredictDetailed(query).Score
	target := tierTargets[domain.TierFull]

	for range 50 {
		require.NoError(t, m.Update(features, domain.TierFull, DefaultLearningRate))
	}

	after := m.PredictDetailed(query).Score
	assert.Less(t, absFloat(target-after), absFloat(target-before),
		"training should move the score toward the tier target")
	assert.True(t, m.Trained(), "50 samples exceed the training minimum")
}

func TestLearnedModel_RejectsUnknownTier(t *testing.T) {
	m, err := LoadLearnedModel("")
	require.NoError(t, err)

	err = m.Update(make([]float64, FeatureCount), domain.Tier(9), DefaultLearningRate)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestLearnedModel_PersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing", "model.json")

	m, err := LoadLearnedModel(path)
	require.NoError(t, err)

	features := ExtractFeatures("some query that needs a mini council").Vector()
	for range 12 {
		require.NoError(t, m.Update(features, domain.TierMini, DefaultLearningRate))
	}

	reloaded, err := LoadLearnedModel(path)
	require.NoError(t, err)
	assert.True(t, reloaded.Trained())
	assert.Equal(t, m.Predict("another unseen query"), reloaded.Predict("another unseen query"))
}

func TestTrainingStore_StatsTrackAccuracyAndDistribution(t *testing.T) {
	store, err := OpenTrainingStore("")
	require.NoError(t, err)

	require.NoError(t, store.Add(TrainingSample{PredictedTier: domain.TierSingle, ActualTier: domain.TierSingle, FeedbackScore: 5}))
	require.NoError(t, store.Add(TrainingSample{PredictedTier: domain.TierSingle, ActualTier: domain.TierMini, FeedbackScore: 2}))
	require.NoError(t, store.Add(TrainingSample{PredictedTier: domain.TierFull, ActualTier: domain.TierFull, FeedbackScore: 4}))

	stats := store.Stats()

	assert.Equal(t, 3, stats.Count)
	assert.InDelta(t, 2.0/3.0, stats.Accuracy, 1e-9)
	assert.Equal(t, 1, stats.TierDistribution[domain.TierMini])
	assert.InDelta(t, 11.0/3.0, stats.AvgFeedback, 1e-9)
}

func TestCollectFeedback_LowRatingOnSingleCorrectsUpward(t *testing.T) {
	store, err := OpenTrainingStore("")
	require.NoError(t, err)
	model, err := LoadLearnedModel("")
	require.NoError(t, err)

	require.NoError(t, CollectFeedback(store, model, "short query", domain.TierSingle, 1.5))

	samples := store.Samples(0)
	require.Len(t, samples, 1)
	assert.Equal(t, domain.TierSingle, samples[0].PredictedTier)
	assert.Equal(t, domain.TierMini, samples[0].ActualTier)
}

func TestCollectFeedback_GoodRatingKeepsTier(t *testing.T) {
	store, err := OpenTrainingStore("")
	require.NoError(t, err)

	require.NoError(t, CollectFeedback(store, nil, "fine query", domain.TierFull, 4.5))

	samples := store.Samples(0)
	require.Len(t, samples, 1)
	assert.Equal(t, domain.TierFull, samples[0].ActualTier)
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestTrain_ReplayMovesScoreTowardStoredTier(t *testing.T) {
	store, err := OpenTrainingStore("")
	require.NoError(t, err)
	model, err := LoadLearnedModel("")
	require.NoError(t, err)

	query := "what time is it"
	require.NoError(t, store.Add(TrainingSample{
		Query:         query,
		Features:      ExtractFeatures(query).Vector(),
		PredictedTier: domain.TierSingle,
		ActualTier:    domain.TierFull,
		FeedbackScore: 1.0,
	}))

	before := model.PredictDetailed(query).Score

	stats, err := Train(store, model, DefaultLearningRate, 40)
	require.NoError(t, err)

	after := model.PredictDetailed(query).Score
	target := tierTargets[domain.TierFull]
	assert.Less(t, absFloat(after-target), absFloat(before-target),
		"replayed feedback pulls the score toward the corrected tier")

	assert.Equal(t, 1, stats.Count)
	assert.InDelta(t, 0.0, stats.Accuracy, 1e-9)
	assert.True(t, model.Trained(), "replay accumulates enough samples to trust the model")
}

func TestTrain_EmptyStoreIsANoOp(t *testing.T) {
	store, err := OpenTrainingStore("")
	require.NoError(t, err)
	model, err := LoadLearnedModel("")
	require.NoError(t, err)

	stats, err := Train(store, model, DefaultLearningRate, 5)
	require.NoError(t, err)
	assert.Zero(t, stats.Count)
	assert.False(t, model.Trained())
}

func TestLearnedModel_InfoReportsTrainingState(t *testing.T) {
	model, err := LoadLearnedModel("")
	require.NoError(t, err)
	require.NoError(t, model.Update(make([]float64, FeatureCount), domain.TierMini, DefaultLearningRate))

	info := model.Info()
	assert.Equal(t, 1, info["training_samples"])
	assert.Equal(t, FeatureCount, info["weight_count"])
}
