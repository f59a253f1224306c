// Package council implements the multi-stage deliberation pipeline:
// parallel response collection, anonymized peer ranking, bounded
// debate, devil's advocate challenge, and chairman synthesis.
package council

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-conclave/internal/cache"
	"github.com/ahrav/go-conclave/internal/domain"
	"github.com/ahrav/go-conclave/internal/router"
)

// DebateConfig controls the bounded rebuttal loop between the ranking
// and synthesis stages.
type DebateConfig struct {
	Enabled bool `yaml:"enabled"`

	// MaxRounds caps how many rebuttal rounds run before the debate
	// is declared exhausted.
	MaxRounds int `yaml:"max_rounds" validate:"min=1,max=10"`

	// ConsensusThreshold is the fraction of evaluators that must rank
	// the same model first for the debate to stop early.
	ConsensusThreshold float64 `yaml:"consensus_threshold" validate:"gt=0,lte=1"`

	// MinCritiqueLength filters out critique fragments too short to
	// warrant a rebuttal.
	MinCritiqueLength int `yaml:"min_critique_length" validate:"min=0"`
}

// AdvocateConfig controls the devil's advocate challenge against the
// top-ranked response.
type AdvocateConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
}

// Config is the full deliberation configuration.
type Config struct {
	// Models are the council members, as "provider/model" IDs. Order
	// is the preference order for reduced tiers.
	Models []string `yaml:"models" validate:"min=1,dive,required"`

	// Chairman is the model that synthesizes the final answer.
	Chairman string `yaml:"chairman" validate:"required"`

	// ShuffleLabels randomizes which anonymous label each response
	// receives, guarding against positional bias in evaluators.
	ShuffleLabels bool `yaml:"shuffle_labels"`

	// Timeout bounds each individual model call.
	Timeout time.Duration `yaml:"timeout" validate:"min=0"`

	Debate   DebateConfig  `yaml:"debate"`
	Advocate AdvocateConfig `yaml:"advocate"`
	Routing  router.Config `yaml:"routing"`
	Cache    cache.Config  `yaml:"cache"`
}

// DefaultConfig returns the standard council profile.
func DefaultConfig() Config {
	return Config{
		Models: []string{
			"openai/gpt-4o",
			"anthropic/claude-3-5-sonnet-20241022",
			"google/gemini-2.0-flash-exp",
		},
		Chairman: "anthropic/claude-3-5-sonnet-20241022",
		Timeout:  2 * time.Minute,
		Debate: DebateConfig{
			Enabled:            true,
			MaxRounds:          3,
			ConsensusThreshold: 0.8,
			MinCritiqueLength:  50,
		},
		Advocate: AdvocateConfig{
			Enabled: true,
			Model:   "anthropic/claude-3-5-sonnet-20241022",
		},
		Routing: router.DefaultConfig(),
		Cache:   cache.DefaultConfig(),
	}
}

// LoadConfig reads and validates a YAML config file, applying
// defaults for any section left unset.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks structural constraints on the configuration.
func (c Config) Validate() error {
	if len(c.Models) == 0 {
		return fmt.Errorf("%w: no council models configured", domain.ErrInvalidConfiguration)
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfiguration, err)
	}
	if c.Debate.Enabled && c.Debate.ConsensusThreshold <= 0 {
		return fmt.Errorf("%w: consensus threshold must be positive", domain.ErrInvalidConfiguration)
	}
	return nil
}
