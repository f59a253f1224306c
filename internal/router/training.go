package router

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ahrav/go-conclave/internal/domain"
)

// feedbackWrongThreshold is the rating below which a prediction is
// treated as wrong and a corrective sample is recorded.
const feedbackWrongThreshold = 3.0

// TrainingSample records one routing outcome with user feedback.
type TrainingSample struct {
	Query         string      `json:"query"`
	Features      []float64   `json:"features"`
	PredictedTier domain.Tier `json:"predicted_tier"`
	ActualTier    domain.Tier `json:"actual_tier"`
	FeedbackScore float64     `json:"feedback_score"`
	Timestamp     time.Time   `json:"timestamp"`
}

// TrainingStats summarizes the collected feedback.
type TrainingStats struct {
	Count            int                 `json:"count"`
	TierDistribution map[domain.Tier]int `json:"tier_distribution,omitempty"`
	Accuracy         float64             `json:"accuracy"`
	AvgFeedback      float64             `json:"avg_feedback"`
}

// TrainingStore accumulates routing feedback samples and persists
// them as JSON. It also drives model updates when feedback indicates
// a misroute.
type TrainingStore struct {
	mu sync.Mutex

	path    string
	samples []TrainingSample
}

type trainingFile struct {
	Samples     []TrainingSample `json:"samples"`
	LastUpdated time.Time        `json:"last_updated"`
	Count       int              `json:"count"`
}

// OpenTrainingStore loads existing samples from path. path may be
// empty for an in-memory store.
func OpenTrainingStore(path string) (*TrainingStore, error) {
	s := &TrainingStore{path: path}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read training data: %w", err)
	}

	var file trainingFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode training data: %w", err)
	}
	s.samples = file.Samples
	return s, nil
}

// Add records a sample and persists the store.
func (s *TrainingStore) Add(sample TrainingSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	return s.saveLocked()
}

// Samples returns up to limit of the most recent samples; limit <= 0
// returns all.
func (s *TrainingStore) Samples(limit int) []TrainingSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.samples
	if limit > 0 && limit < len(src) {
		src = src[len(src)-limit:]
	}
	out := make([]TrainingSample, len(src))
	copy(out, src)
	return out
}

// Stats computes aggregate statistics over all samples.
func (s *TrainingStore) Stats() TrainingStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.samples) == 0 {
		return TrainingStats{}
	}

	dist := make(map[domain.Tier]int, 3)
	correct := 0
	feedback := 0.0
	for _, sample := range s.samples {
		dist[sample.ActualTier]++
		if sample.PredictedTier == sample.ActualTier {
			correct++
		}
		feedback += sample.FeedbackScore
	}
	n := float64(len(s.samples))
	return TrainingStats{
		Count:            len(s.samples),
		TierDistribution: dist,
		Accuracy:         float64(correct) / n,
		AvgFeedback:      feedback / n,
	}
}

func (s *TrainingStore) saveLocked() error {
	if s.path == "" {
		return nil
	}
	file := trainingFile{
		Samples:     s.samples,
		LastUpdated: time.Now().UTC(),
		Count:       len(s.samples),
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

// CollectFeedback records a sample for a routed query and, when the
// rating falls below the threshold, infers the tier that should have
// been used and updates the model. A low rating on the single tier
// suggests more models were needed; on the full tier it suggests
// fewer would have sufficed.
func CollectFeedback(store *TrainingStore, model *LearnedModel, query string, predicted domain.Tier, rating float64) error {
	actual := predicted
	if rating < feedbackWrongThreshold {
		switch predicted {
		case domain.TierSingle:
			actual = domain.TierMini
		case domain.TierFull:
			actual = domain.TierMini
		}
	}

	sample := TrainingSample{
		Query:         query,
		Features:      ExtractFeatures(query).Vector(),
		PredictedTier: predicted,
		ActualTier:    actual,
		FeedbackScore: rating,
		Timestamp:     time.Now().UTC(),
	}
	if err := store.Add(sample); err != nil {
		return err
	}
	if actual != predicted && model != nil {
		return model.Update(sample.Features, actual, DefaultLearningRate)
	}
	return nil
}

// Train replays stored samples through the model for the given number
// of epochs and returns the resulting stats.
func Train(store *TrainingStore, model *LearnedModel, learningRate float64, epochs int) (TrainingStats, error) {
	samples := store.Samples(0)
	if len(samples) == 0 {
		return TrainingStats{}, nil
	}
	if epochs <= 0 {
		epochs = 10
	}
	for range epochs {
		for _, sample := range samples {
			if err := model.Update(sample.Features, sample.ActualTier, learningRate); err != nil {
				return TrainingStats{}, err
			}
		}
	}
	return store.Stats(), nil
}
