package llm

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/ahrav/go-conclave/internal/ports"
)

// Token estimation strategies for cost accounting and streamed
// synthesis, where exact counts are unavailable before (or sometimes
// after) a request. All estimators implement ports.TokenEstimator.

// WordBasedTokenEstimator estimates tokens from word count using a
// configurable tokens-per-word ratio. Fast and good enough for
// general-purpose estimation.
type WordBasedTokenEstimator struct{ TokensPerWord float64 }

// NewWordBasedTokenEstimator creates a word-based token estimator.
// Typical ratios: 0.75 for English prose, higher for code.
func NewWordBasedTokenEstimator(tokensPerWord float64) *WordBasedTokenEstimator {
	if tokensPerWord <= 0 {
		tokensPerWord = 0.75
	}
	return &WordBasedTokenEstimator{TokensPerWord: tokensPerWord}
}

// EstimateTokens calculates token count from whitespace-separated words.
func (e *WordBasedTokenEstimator) EstimateTokens(text string) int {
	return int(float64(len(strings.Fields(text))) * e.TokensPerWord)
}

// CharacterBasedTokenEstimator estimates tokens from character count.
// Less accurate for code or heavily punctuated text.
type CharacterBasedTokenEstimator struct{ charsPerToken float64 }

// NewCharacterBasedTokenEstimator creates a character-based token
// estimator. Typical values: 4.0 for GPT-family models.
func NewCharacterBasedTokenEstimator(charactersPerToken float64) *CharacterBasedTokenEstimator {
	if charactersPerToken <= 0 {
		charactersPerToken = 4.0
	}
	return &CharacterBasedTokenEstimator{charsPerToken: charactersPerToken}
}

// EstimateTokens calculates token count from character count.
func (e *CharacterBasedTokenEstimator) EstimateTokens(text string) int {
	return int(float64(len(text)) / e.charsPerToken)
}

// TiktokenEstimator counts tokens with a real BPE tokenizer. It is the
// most accurate option for OpenAI-family models and a close
// approximation for others. Encoding initialization is lazy and the
// estimator falls back to character-based estimation if the encoding
// cannot be loaded.
type TiktokenEstimator struct {
	encoding string

	once     sync.Once
	codec    *tiktoken.Tiktoken
	fallback ports.TokenEstimator
}

// NewTiktokenEstimator creates a tokenizer-backed estimator for the
// given encoding name, e.g. "cl100k_base". An empty name selects
// cl100k_base.
func NewTiktokenEstimator(encoding string) *TiktokenEstimator {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	return &TiktokenEstimator{
		encoding: encoding,
		fallback: NewCharacterBasedTokenEstimator(0),
	}
}

// EstimateTokens returns the exact BPE token count, or a character
// estimate when the encoding is unavailable.
func (e *TiktokenEstimator) EstimateTokens(text string) int {
	e.once.Do(func() {
		codec, err := tiktoken.GetEncoding(e.encoding)
		if err == nil {
			e.codec = codec
		}
	})
	if e.codec == nil {
		return e.fallback.EstimateTokens(text)
	}
	return len(e.codec.Encode(text, nil, nil))
}
