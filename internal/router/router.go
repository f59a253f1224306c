package router

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ahrav/go-conclave/internal/domain"
)

// Default tier thresholds. Scores below Low route to a single model,
// scores at or above High route to the full council.
const (
	DefaultLowThreshold  = 0.3
	DefaultHighThreshold = 0.7

	DefaultMiniSize = 2

	// analysisCacheSize bounds the memoized analyses. Repeated
	// queries (retries, cache probes) skip re-scoring.
	analysisCacheSize = 512
)

// Config controls routing behavior.
type Config struct {
	// Enabled turns tier routing on. When false every query goes to
	// the full council.
	Enabled bool `yaml:"enabled"`

	// LowThreshold and HighThreshold split the score range into the
	// three tiers. Must satisfy 0 < Low < High < 1.
	LowThreshold  float64 `yaml:"low_threshold" validate:"gt=0,ltfield=HighThreshold"`
	HighThreshold float64 `yaml:"high_threshold" validate:"lt=1"`

	// MiniSize is how many models a mini council uses.
	MiniSize int `yaml:"mini_size" validate:"min=1"`

	// ForceTier pins every query to one tier regardless of score.
	// Zero means no override.
	ForceTier domain.Tier `yaml:"force_tier"`

	// UseLearned consults the trained model when enough feedback
	// samples exist, falling back to heuristics otherwise.
	UseLearned bool `yaml:"use_learned"`
}

// DefaultConfig returns routing defaults matching the standard
// deployment profile.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		LowThreshold:  DefaultLowThreshold,
		HighThreshold: DefaultHighThreshold,
		MiniSize:      DefaultMiniSize,
	}
}

// Decision is the routing outcome for one query.
type Decision struct {
	Tier     domain.Tier `json:"tier"`
	Models   []string    `json:"models"`
	Analysis Analysis    `json:"analysis"`
	Reason   string      `json:"reason"`

	// Learned reports whether the trained model produced the score.
	Learned bool `json:"learned"`
}

// Router maps queries to dispatch tiers and selects which council
// members participate at each tier.
type Router struct {
	cfg     Config
	models  []string
	learned *LearnedModel

	analyses *lru.Cache[string, Analysis]
}

// New builds a Router over the council membership. The model list
// order is the preference order for reduced tiers. learned may be nil.
func New(cfg Config, models []string, learned *LearnedModel) (*Router, error) {
	if len(models) == 0 {
		return nil, domain.ErrNoCouncil
	}
	if cfg.MiniSize <= 0 {
		cfg.MiniSize = DefaultMiniSize
	}
	if cfg.LowThreshold <= 0 || cfg.HighThreshold >= 1 || cfg.LowThreshold >= cfg.HighThreshold {
		return nil, fmt.Errorf("%w: thresholds low=%.2f high=%.2f", domain.ErrInvalidConfiguration, cfg.LowThreshold, cfg.HighThreshold)
	}

	analyses, err := lru.New[string, Analysis](analysisCacheSize)
	if err != nil {
		return nil, err
	}

	return &Router{
		cfg:      cfg,
		models:   models,
		learned:  learned,
		analyses: analyses,
	}, nil
}

// Route decides the tier and participant set for a query.
func (r *Router) Route(query string) Decision {
	if r.cfg.ForceTier.Valid() {
		tier := r.cfg.ForceTier
		return Decision{
			Tier:   tier,
			Models: r.modelsForTier(tier),
			Reason: fmt.Sprintf("tier forced to %s", tier),
		}
	}
	if !r.cfg.Enabled {
		return Decision{
			Tier:   domain.TierFull,
			Models: r.modelsForTier(domain.TierFull),
			Reason: "routing disabled",
		}
	}

	analysis := r.analyze(query)

	if r.cfg.UseLearned && r.learned != nil && r.learned.Trained() {
		tier := r.learned.Predict(query)
		return Decision{
			Tier:     tier,
			Models:   r.modelsForTier(tier),
			Analysis: analysis,
			Reason:   fmt.Sprintf("learned model selected %s", tier),
			Learned:  true,
		}
	}

	tier := r.tierFor(analysis.Score)
	return Decision{
		Tier:     tier,
		Models:   r.modelsForTier(tier),
		Analysis: analysis,
		Reason:   analysis.Reasoning,
	}
}

func (r *Router) analyze(query string) Analysis {
	if a, ok := r.analyses.Get(query); ok {
		return a
	}
	a := Analyze(query)
	r.analyses.Add(query, a)
	return a
}

func (r *Router) tierFor(score float64) domain.Tier {
	switch {
	case score < r.cfg.LowThreshold:
		return domain.TierSingle
	case score < r.cfg.HighThreshold:
		return domain.TierMini
	default:
		return domain.TierFull
	}
}

func (r *Router) modelsForTier(tier domain.Tier) []string {
	switch tier {
	case domain.TierSingle:
		return []string{r.models[0]}
	case domain.TierMini:
		return DiverseSubset(r.models, r.cfg.MiniSize)
	default:
		out := make([]string, len(r.models))
		copy(out, r.models)
		return out
	}
}

// DiverseSubset picks up to n models spreading across providers.
// Model IDs are "provider/model"; the subset takes at most one model
// per provider before taking a second from any provider, preserving
// the original preference order within each pass.
func DiverseSubset(models []string, n int) []string {
	if n >= len(models) {
		out := make([]string, len(models))
		copy(out, models)
		return out
	}

	byProvider := make(map[string][]string)
	var providers []string
	for _, m := range models {
		p := providerOf(m)
		if _, seen := byProvider[p]; !seen {
			providers = append(providers, p)
		}
		byProvider[p] = append(byProvider[p], m)
	}

	out := make([]string, 0, n)
	for round := 0; len(out) < n; round++ {
		took := false
		for _, p := range providers {
			if len(out) == n {
				break
			}
			if round < len(byProvider[p]) {
				out = append(out, byProvider[p][round])
				took = true
			}
		}
		if !took {
			break
		}
	}
	return out
}

func providerOf(model string) string {
	if i := strings.IndexByte(model, '/'); i > 0 {
		return model[:i]
	}
	return model
}

// Explain renders a decision's factor breakdown for reports and CLI
// output.
func Explain(d Decision) string {
	var b strings.Builder
	fmt.Fprintf(&b, "tier=%s score=%.2f reason=%s\n", d.Tier, d.Analysis.Score, d.Reason)
	for _, name := range sortedFactorNames(d.Analysis.Factors) {
		fmt.Fprintf(&b, "  %-12s %+.2f\n", name, d.Analysis.Factors[name])
	}
	return b.String()
}
