package council

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-conclave/internal/domain"
	"github.com/ahrav/go-conclave/internal/ports"
)

// collectRankings runs the peer-ranking stage: every evaluator sees
// the anonymized response set and returns a critique ending in a
// ranked list. Evaluator failures are dropped the same way response
// failures are in the first stage.
func collectRankings(
	ctx context.Context,
	gateway ports.ModelGateway,
	evaluators []string,
	query string,
	responses []domain.ModelResponse,
	labels domain.LabelMap,
) ([]domain.RankingRecord, []domain.TokenUsage) {
	prompt := rankingPrompt(query, responses, labels)
	messages := domain.UserMessage(prompt)

	records := make([]*domain.RankingRecord, len(evaluators))
	usages := make([]*domain.TokenUsage, len(evaluators))

	var g errgroup.Group
	for i, evaluator := range evaluators {
		g.Go(func() error {
			resp, err := gateway.Invoke(ctx, evaluator, messages)
			if err != nil {
				return nil
			}
			records[i] = &domain.RankingRecord{
				Evaluator: evaluator,
				Verdict:   resp.Content,
				Parsed:    ParseRanking(resp.Content, labels),
			}
			usage := resp.Usage()
			usage.Model = evaluator
			usages[i] = &usage
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.RankingRecord, 0, len(evaluators))
	outUsage := make([]domain.TokenUsage, 0, len(evaluators))
	for i, r := range records {
		if r != nil {
			out = append(out, *r)
			outUsage = append(outUsage, *usages[i])
		}
	}
	return out, outUsage
}

// Aggregate folds per-evaluator rankings into a mean-rank leaderboard
// sorted best first. Ties break on model name so the ordering is
// deterministic. Records whose parse produced nothing contribute no
// positions.
func Aggregate(rankings []domain.RankingRecord, labels domain.LabelMap) []domain.AggregateRanking {
	positions := make(map[string][]int)
	for _, record := range rankings {
		for pos, label := range record.Parsed.Labels {
			if model, ok := labels.Model(label); ok {
				positions[model] = append(positions[model], pos+1)
			}
		}
	}

	out := make([]domain.AggregateRanking, 0, len(positions))
	for model, ranks := range positions {
		sum := 0
		for _, r := range ranks {
			sum += r
		}
		out = append(out, domain.AggregateRanking{
			Model:       model,
			MeanRank:    float64(sum) / float64(len(ranks)),
			Evaluations: len(ranks),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MeanRank != out[j].MeanRank {
			return out[i].MeanRank < out[j].MeanRank
		}
		return out[i].Model < out[j].Model
	})
	return out
}

// CheckConsensus reports whether enough evaluators agree on the same
// first-place model. Records with an empty parse are excluded from
// the denominator.
func CheckConsensus(rankings []domain.RankingRecord, labels domain.LabelMap, threshold float64) (bool, string) {
	firstPlace := make(map[string]int)
	total := 0
	for _, record := range rankings {
		if record.Parsed.Empty() {
			continue
		}
		if model, ok := labels.Model(record.Parsed.Labels[0]); ok {
			firstPlace[model]++
			total++
		}
	}
	if total == 0 {
		return false, ""
	}
	for model, count := range firstPlace {
		if float64(count)/float64(total) >= threshold {
			return true, model
		}
	}
	return false, ""
}
