package council

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-conclave/internal/domain"
	"github.com/ahrav/go-conclave/internal/ports"
)

// collect fans a message set out to every model concurrently and
// gathers the successes in the original model order. Individual
// failures are dropped so one slow or broken provider cannot sink the
// round; callers decide whether an empty result is fatal. Calls are
// not canceled when a sibling fails.
func collect(
	ctx context.Context,
	gateway ports.ModelGateway,
	models []string,
	messages []domain.Message,
) []domain.ModelResponse {
	results := make([]*domain.ModelResponse, len(models))

	var g errgroup.Group
	for i, model := range models {
		g.Go(func() error {
			resp, err := gateway.Invoke(ctx, model, messages)
			if err != nil {
				return nil
			}
			results[i] = &resp
			return nil
		})
	}
	// Worker funcs always return nil; Wait is just the join point.
	_ = g.Wait()

	out := make([]domain.ModelResponse, 0, len(models))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// collectOne queries a single model, returning ok=false on failure.
func collectOne(
	ctx context.Context,
	gateway ports.ModelGateway,
	model string,
	messages []domain.Message,
) (domain.ModelResponse, bool) {
	resp, err := gateway.Invoke(ctx, model, messages)
	if err != nil {
		return domain.ModelResponse{}, false
	}
	return resp, true
}
