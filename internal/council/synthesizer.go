package council

import (
	"context"

	"github.com/ahrav/go-conclave/internal/domain"
	"github.com/ahrav/go-conclave/internal/ports"
)

// synthesisFallback is returned as the final answer when the chairman
// call fails outright.
const synthesisFallback = "Error: Unable to generate final synthesis."

// synthesize runs the chairman stage over the full deliberation
// context. A chairman failure degrades to the sentinel text with
// Failed set rather than surfacing an error, so the caller still gets
// a complete artifact.
func synthesize(
	ctx context.Context,
	gateway ports.ModelGateway,
	chairman string,
	query string,
	responses []domain.ModelResponse,
	rankings []domain.RankingRecord,
	rebuttals []domain.Rebuttal,
	advocate *domain.AdvocateReport,
) (domain.Synthesis, []domain.TokenUsage) {
	prompt := chairmanPrompt(query, responses, rankings, rebuttals, advocate)

	resp, err := gateway.Invoke(ctx, chairman, domain.UserMessage(prompt))
	if err != nil {
		return domain.Synthesis{
			Model:   chairman,
			Content: synthesisFallback,
			Failed:  true,
		}, nil
	}
	usage := resp.Usage()
	usage.Model = chairman
	return domain.Synthesis{
		Model:   chairman,
		Content: resp.Content,
	}, []domain.TokenUsage{usage}
}

// StreamEvent is one item in a streaming synthesis. Token events
// carry a text fragment; the final event carries the completed
// synthesis and estimated usage.
type StreamEvent struct {
	Token string

	// Done is set on the terminal event.
	Done bool

	Final domain.Synthesis
	Usage []domain.TokenUsage
}

// synthesizeStream is the streaming variant of the chairman stage.
// Tokens are delivered through onEvent as they arrive; the terminal
// event carries whatever content accumulated, with token counts
// estimated from text length since providers do not report usage
// mid-stream.
func synthesizeStream(
	ctx context.Context,
	gateway ports.ModelGateway,
	estimator ports.TokenEstimator,
	chairman string,
	query string,
	responses []domain.ModelResponse,
	rankings []domain.RankingRecord,
	rebuttals []domain.Rebuttal,
	advocate *domain.AdvocateReport,
	onEvent func(StreamEvent),
) (domain.Synthesis, []domain.TokenUsage) {
	prompt := chairmanPrompt(query, responses, rankings, rebuttals, advocate)

	resp, err := gateway.InvokeStream(ctx, chairman, domain.UserMessage(prompt), func(token string) {
		onEvent(StreamEvent{Token: token})
	})

	final := domain.Synthesis{Model: chairman, Content: resp.Content}
	if err != nil {
		final.Failed = true
		if final.Content == "" {
			final.Content = synthesisFallback
		}
	}

	usage := []domain.TokenUsage{{
		Model:        chairman,
		InputTokens:  estimateTokens(estimator, prompt),
		OutputTokens: estimateTokens(estimator, final.Content),
		Estimated:    true,
	}}

	onEvent(StreamEvent{Done: true, Final: final, Usage: usage})
	return final, usage
}

func estimateTokens(estimator ports.TokenEstimator, text string) int {
	if estimator == nil {
		return len(text) / 4
	}
	return estimator.EstimateTokens(text)
}
