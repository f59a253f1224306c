package council

import (
	"context"

	"github.com/ahrav/go-conclave/internal/domain"
	"github.com/ahrav/go-conclave/internal/ports"
)

// challengeTop runs the devil's-advocate stage: a single model is
// asked to stress-test the top-ranked response. A failed or disabled
// advocate returns nil; the stage never fails the run.
func challengeTop(
	ctx context.Context,
	gateway ports.ModelGateway,
	cfg AdvocateConfig,
	query string,
	responses []domain.ModelResponse,
	aggregate []domain.AggregateRanking,
) *domain.AdvocateReport {
	if !cfg.Enabled || cfg.Model == "" || len(aggregate) == 0 || len(responses) == 0 {
		return nil
	}

	top := responses[0]
	for _, r := range responses {
		if r.Model == aggregate[0].Model {
			top = r
			break
		}
	}

	prompt := advocatePrompt(query, top, aggregate[0].MeanRank)
	resp, ok := collectOne(ctx, gateway, cfg.Model, domain.UserMessage(prompt))
	if !ok {
		return nil
	}
	return &domain.AdvocateReport{
		Model:       cfg.Model,
		TargetModel: top.Model,
		Challenge:   resp.Content,
	}
}
