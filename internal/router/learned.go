package router

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ahrav/go-conclave/internal/domain"
)

// DefaultLearningRate is the gradient step size for weight updates.
const DefaultLearningRate = 0.01

// minTrainingSamples is how many feedback samples the model needs
// before its predictions are trusted over the heuristics.
const minTrainingSamples = 10

// tierTargets map each tier to the complexity score the model should
// produce for queries belonging to it.
var tierTargets = map[domain.Tier]float64{
	domain.TierSingle: 0.15,
	domain.TierMini:   0.5,
	domain.TierFull:   0.85,
}

// initialWeights seed the model so it approximates the heuristic
// scorer before any training occurs. One weight per feature, in
// Vector() order. The simple-pattern weight is negative.
var initialWeights = []float64{
	0.3, 0.4, 0.3, 0.1,
	0.4, 0.5, 0.2, 0.3,
	0.3, 0.4, 0.2,
	-0.5, 0.3, 0.4,
	0.3, 0.2,
}

// Prediction is the learned model's routing output.
type Prediction struct {
	Tier       domain.Tier `json:"tier"`
	Score      float64     `json:"score"`
	Confidence float64     `json:"confidence"`
	Reasoning  string      `json:"reasoning"`
}

// LearnedModel is a linear scorer over query features, trained
// incrementally from routing feedback. It persists its weights to a
// JSON file so training survives restarts.
type LearnedModel struct {
	mu sync.Mutex

	path    string
	weights []float64
	samples int
	trained time.Time
}

type modelState struct {
	Weights     []float64 `json:"weights"`
	Samples     int       `json:"training_samples"`
	LastTrained time.Time `json:"last_trained,omitzero"`
	Version     string    `json:"version"`
}

// LoadLearnedModel reads model weights from path, seeding the
// heuristic weights when no saved state exists. path may be empty for
// an in-memory model.
func LoadLearnedModel(path string) (*LearnedModel, error) {
	m := &LearnedModel{
		path:    path,
		weights: append([]float64(nil), initialWeights...),
	}
	if path == "" {
		return m, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read routing model: %w", err)
	}

	var state modelState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode routing model: %w", err)
	}
	if len(state.Weights) == FeatureCount {
		m.weights = state.Weights
		m.samples = state.Samples
		m.trained = state.LastTrained
	}
	return m, nil
}

// Trained reports whether enough feedback has accumulated for the
// model's predictions to be used for routing.
func (m *LearnedModel) Trained() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.samples >= minTrainingSamples
}

// Predict scores a query and maps the score to a tier with a
// confidence in [0,1].
func (m *LearnedModel) Predict(query string) domain.Tier {
	return m.PredictDetailed(query).Tier
}

// PredictDetailed returns the full prediction including confidence
// and a reasoning summary.
func (m *LearnedModel) PredictDetailed(query string) Prediction {
	features := ExtractFeatures(query)
	vec := features.Vector()

	m.mu.Lock()
	score := dot(m.weights, vec)
	m.mu.Unlock()

	var (
		tier       domain.Tier
		confidence float64
	)
	switch {
	case score < DefaultLowThreshold:
		tier = domain.TierSingle
		confidence = 1.0 - score/DefaultLowThreshold
	case score < DefaultHighThreshold:
		tier = domain.TierMini
		confidence = 1.0 - math.Abs(score-0.5)/0.2
	default:
		tier = domain.TierFull
		confidence = math.Min(1.0, (score-DefaultHighThreshold)/0.3+0.5)
	}

	return Prediction{
		Tier:       tier,
		Score:      score,
		Confidence: clamp01(confidence),
		Reasoning:  predictionReasoning(tier, features),
	}
}

// Update adjusts the weights toward the target score for the tier a
// query should have used, then persists the model.
func (m *LearnedModel) Update(features []float64, actualTier domain.Tier, learningRate float64) error {
	target, ok := tierTargets[actualTier]
	if !ok {
		return fmt.Errorf("%w: tier %d", domain.ErrInvalidConfiguration, actualTier)
	}
	if learningRate <= 0 {
		learningRate = DefaultLearningRate
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	err := target - dot(m.weights, features)
	for i := range m.weights {
		if i < len(features) {
			m.weights[i] += learningRate * err * features[i]
		}
	}
	m.samples++
	m.trained = time.Now().UTC()
	return m.saveLocked()
}

// Info returns model statistics for reports.
func (m *LearnedModel) Info() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]any{
		"training_samples": m.samples,
		"last_trained":     m.trained,
		"weight_count":     len(m.weights),
	}
}

func (m *LearnedModel) saveLocked() error {
	if m.path == "" {
		return nil
	}
	state := modelState{
		Weights:     m.weights,
		Samples:     m.samples,
		LastTrained: m.trained,
		Version:     "1.0",
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0o644)
}

func dot(weights, features []float64) float64 {
	n := min(len(weights), len(features))
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += weights[i] * features[i]
	}
	return sum
}

func predictionReasoning(tier domain.Tier, f Features) string {
	var parts []string
	if f.MatchesSimplePattern {
		parts = append(parts, "matches simple query pattern")
	}
	if f.HasMultipleQuestions {
		parts = append(parts, "contains multiple questions")
	}
	if f.TechnicalKeywords > 2 {
		parts = append(parts, "highly technical content")
	}
	if f.ReasoningKeywords > 2 {
		parts = append(parts, "requires analytical reasoning")
	}
	if f.HasComparison {
		parts = append(parts, "involves comparison")
	}
	if len(parts) == 0 {
		parts = append(parts, "based on query complexity")
	}
	return fmt.Sprintf("%s recommended: %s", tier, strings.Join(parts, ", "))
}
