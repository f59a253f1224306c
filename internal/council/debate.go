package council

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-conclave/internal/domain"
	"github.com/ahrav/go-conclave/internal/ports"
)

var (
	critiqueBoundary = regexp.MustCompile(`(?i)Response [A-Z]\b|FINAL RANKING:`)
)

// extractCritiques pulls the segments of each evaluator's verdict
// that discuss the target model's anonymized response. A segment runs
// from a mention of the target's label to the next label mention, the
// ranking header, or end of text. Self-evaluations and fragments
// shorter than minLength are skipped.
func extractCritiques(
	target string,
	rankings []domain.RankingRecord,
	labels domain.LabelMap,
	minLength int,
) []domain.Critique {
	targetLabel, ok := labels.Label(target)
	if !ok {
		return nil
	}

	var critiques []domain.Critique
	for _, record := range rankings {
		if record.Evaluator == target {
			continue
		}
		for _, segment := range labelSegments(record.Verdict, targetLabel) {
			if len(segment) >= minLength {
				critiques = append(critiques, domain.Critique{
					From:    record.Evaluator,
					Content: segment,
				})
			}
		}
	}
	return critiques
}

// labelSegments splits verdict text at every label mention and
// ranking header, returning the trimmed segments that start at the
// given label.
func labelSegments(text, label string) []string {
	bounds := critiqueBoundary.FindAllStringIndex(text, -1)
	var segments []string
	for i, b := range bounds {
		mention := text[b[0]:b[1]]
		if !strings.EqualFold(mention, label) {
			continue
		}
		end := len(text)
		if i+1 < len(bounds) {
			end = bounds[i+1][0]
		}
		segment := strings.TrimSpace(strings.TrimLeft(text[b[1]:end], ":\t "))
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return segments
}

// collectRebuttals asks every critiqued model to answer the critiques
// of its response. Models with no substantive critiques are not
// queried. Rebuttal calls run concurrently; failures drop silently.
func collectRebuttals(
	ctx context.Context,
	gateway ports.ModelGateway,
	query string,
	responses []domain.ModelResponse,
	rankings []domain.RankingRecord,
	labels domain.LabelMap,
	minCritiqueLength int,
) []domain.Rebuttal {
	type task struct {
		model     string
		prompt    string
		critiques int
	}
	var tasks []task
	for _, resp := range responses {
		critiques := extractCritiques(resp.Model, rankings, labels, minCritiqueLength)
		if len(critiques) == 0 {
			continue
		}
		tasks = append(tasks, task{
			model:     resp.Model,
			prompt:    rebuttalPrompt(query, resp.Content, critiques),
			critiques: len(critiques),
		})
	}

	results := make([]*domain.Rebuttal, len(tasks))
	var g errgroup.Group
	for i, t := range tasks {
		g.Go(func() error {
			resp, err := gateway.Invoke(ctx, t.model, domain.UserMessage(t.prompt))
			if err != nil {
				return nil
			}
			results[i] = &domain.Rebuttal{
				Model:              t.model,
				CritiquesAddressed: t.critiques,
				Content:            resp.Content,
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.Rebuttal, 0, len(tasks))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// runDebate drives the bounded rebuttal loop. Each round first checks
// for consensus among the rankings; if none, it collects rebuttals.
// The loop stops on consensus, on a round producing no rebuttals, or
// when the round budget runs out.
func runDebate(
	ctx context.Context,
	gateway ports.ModelGateway,
	cfg DebateConfig,
	query string,
	responses []domain.ModelResponse,
	rankings []domain.RankingRecord,
	labels domain.LabelMap,
) ([]domain.Rebuttal, []domain.DebateRound) {
	var (
		allRebuttals []domain.Rebuttal
		rounds       []domain.DebateRound
	)

	for round := 1; round <= cfg.MaxRounds; round++ {
		if ok, top := CheckConsensus(rankings, labels, cfg.ConsensusThreshold); ok {
			rounds = append(rounds, domain.DebateRound{
				Round:    round,
				Status:   domain.DebateConsensus,
				TopModel: top,
			})
			return allRebuttals, rounds
		}

		rebuttals := collectRebuttals(ctx, gateway, query, responses, rankings, labels, cfg.MinCritiqueLength)
		if len(rebuttals) == 0 {
			rounds = append(rounds, domain.DebateRound{
				Round:  round,
				Status: domain.DebateExhausted,
			})
			return allRebuttals, rounds
		}

		allRebuttals = append(allRebuttals, rebuttals...)
		rounds = append(rounds, domain.DebateRound{
			Round:         round,
			Status:        domain.DebateRebutting,
			RebuttalCount: len(rebuttals),
		})
	}
	return allRebuttals, rounds
}
