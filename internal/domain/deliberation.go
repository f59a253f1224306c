// Package domain defines the core types for the deliberation pipeline.
// These types are pure data: they carry no behavior that touches the
// network, the filesystem, or any other infrastructure concern.
package domain

import (
	"time"
)

// Message represents a single chat message sent to a model endpoint.
type Message struct {
	// Role identifies the author of the message ("user", "assistant",
	// or "system").
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// UserMessage builds a single-element message set carrying a user prompt.
// Most pipeline stages send exactly one user message per call.
func UserMessage(content string) []Message {
	return []Message{{Role: RoleUser, Content: content}}
}

// Message roles understood by the gateway.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ModelResponse is one model's answer to a message set, together with
// the token usage reported (or estimated) by the provider.
// A ModelResponse is immutable once produced; a failed call produces no
// ModelResponse at all rather than a zero-value placeholder.
type ModelResponse struct {
	// Model is the provider-qualified model identifier,
	// e.g. "openai/gpt-4o" or "anthropic/claude-sonnet-4.5".
	Model string `json:"model"`

	// Content is the response text.
	Content string `json:"content"`

	// InputTokens counts tokens consumed by the request.
	InputTokens int `json:"input_tokens"`

	// OutputTokens counts tokens in the generated response.
	OutputTokens int `json:"output_tokens"`
}

// Usage extracts the token accounting from a response.
func (r ModelResponse) Usage() TokenUsage {
	return TokenUsage{
		Model:        r.Model,
		InputTokens:  r.InputTokens,
		OutputTokens: r.OutputTokens,
	}
}

// TokenUsage records token consumption for a single model call.
type TokenUsage struct {
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`

	// Estimated is true when the counts were derived from text length
	// rather than reported by the provider, e.g. during streaming.
	Estimated bool `json:"estimated,omitempty"`
}

// RankingRecord captures one evaluator's peer-review verdict: the raw
// prose it returned and the ordered label list recovered from it.
type RankingRecord struct {
	// Evaluator is the model that produced this verdict.
	Evaluator string `json:"evaluator"`

	// Verdict is the full free-text evaluation, including commentary.
	Verdict string `json:"verdict"`

	// Parsed is the ordered preference list extracted from the verdict.
	// An empty parse excludes this evaluator from aggregation but is
	// never an error.
	Parsed ParseResult `json:"parsed"`
}

// ParseResult is the typed outcome of parsing a free-text ranking
// verdict. Aggregation logic depends only on this struct, never on the
// shape of the verdict text itself.
type ParseResult struct {
	// Labels holds anonymized labels ("Response A", ...) best to worst.
	Labels []string `json:"labels"`

	// Confidence reflects how the labels were recovered: 1.0 for a
	// strict numbered list under the ranking header, lower values for
	// each successive fallback, 0 for an empty parse.
	Confidence float64 `json:"confidence"`
}

// Empty reports whether the parse recovered no labels.
func (p ParseResult) Empty() bool { return len(p.Labels) == 0 }

// AggregateRanking is one model's standing across all evaluators:
// the mean of its 1-based positions and how many evaluators ranked it.
type AggregateRanking struct {
	Model       string  `json:"model"`
	MeanRank    float64 `json:"mean_rank"`
	Evaluations int     `json:"evaluations"`
}

// Rebuttal is a model's defense against critiques collected during a
// debate round.
type Rebuttal struct {
	Model              string `json:"model"`
	CritiquesAddressed int    `json:"critiques_addressed"`
	Content            string `json:"content"`
}

// Critique is a segment of one evaluator's verdict directed at a
// specific anonymized response.
type Critique struct {
	From    string `json:"from"`
	Content string `json:"content"`
}

// DebateStatus describes the controller's state after a debate round.
type DebateStatus string

const (
	// DebateRebutting means rebuttals were collected this round.
	DebateRebutting DebateStatus = "rebuttals_collected"
	// DebateConsensus means evaluators agreed on a first-ranked model.
	DebateConsensus DebateStatus = "consensus_reached"
	// DebateExhausted means no rebuttals were produced or the round
	// budget ran out without consensus.
	DebateExhausted DebateStatus = "exhausted"
)

// DebateRound summarizes a single round of the debate loop.
type DebateRound struct {
	Round         int          `json:"round"`
	Status        DebateStatus `json:"status"`
	TopModel      string       `json:"top_model,omitempty"`
	RebuttalCount int          `json:"rebuttal_count,omitempty"`
}

// AdvocateReport is the devil's-advocate challenge against the
// top-ranked response. Its absence simply omits the artifact from
// synthesis; it is never a pipeline error.
type AdvocateReport struct {
	Model       string `json:"model"`
	TargetModel string `json:"target_model"`
	Challenge   string `json:"challenge"`
}

// Synthesis is the chairman's final answer.
type Synthesis struct {
	Model   string `json:"model"`
	Content string `json:"content"`

	// Failed is set when the chairman call failed and Content carries
	// the sentinel (or partial streaming) text instead of a real answer.
	Failed bool `json:"failed,omitempty"`
}

// Deliberation is the complete artifact of one pipeline run. It is
// immutable once returned and is what the semantic cache stores.
type Deliberation struct {
	Query     string    `json:"query"`
	Tier      Tier      `json:"tier"`
	CreatedAt time.Time `json:"created_at"`

	Stage1    []ModelResponse    `json:"stage1"`
	Rankings  []RankingRecord    `json:"rankings"`
	Aggregate []AggregateRanking `json:"aggregate"`
	Rebuttals []Rebuttal         `json:"rebuttals,omitempty"`
	Debate    []DebateRound      `json:"debate,omitempty"`
	Advocate  *AdvocateReport    `json:"advocate,omitempty"`
	Final     Synthesis          `json:"final"`

	// LabelToModel records the run-scoped anonymization mapping for
	// downstream consumers. It is populated after Stage 2 completes and
	// is never included in any prompt.
	LabelToModel map[string]string `json:"label_to_model,omitempty"`

	// Usage aggregates token accounting across all stages.
	Usage []TokenUsage `json:"usage,omitempty"`

	// FromCache marks results served by the semantic cache, with the
	// similarity score that matched (1.0 for an exact hit).
	FromCache  bool    `json:"from_cache,omitempty"`
	Similarity float64 `json:"similarity,omitempty"`
}
