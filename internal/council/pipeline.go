package council

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/ahrav/go-conclave/internal/cache"
	"github.com/ahrav/go-conclave/internal/domain"
	"github.com/ahrav/go-conclave/internal/ports"
	"github.com/ahrav/go-conclave/internal/router"
)

// Stage names used for observability.
const (
	stageRoute     = "route"
	stageCollect   = "collect"
	stageRank      = "rank"
	stageDebate    = "debate"
	stageAdvocate  = "advocate"
	stageSynthesis = "synthesize"
)

// Pipeline runs the full deliberation sequence for a query: cache
// probe, tier routing, parallel response collection, anonymized peer
// ranking, bounded debate, devil's advocate, and chairman synthesis.
type Pipeline struct {
	cfg       Config
	gateway   ports.ModelGateway
	router    *router.Router
	cache     *cache.Cache
	metrics   ports.MetricsCollector
	observer  ports.StageObserver
	estimator ports.TokenEstimator

	// rngMu guards rng; concurrent deliberations share the source.
	rngMu sync.Mutex
	rng   *rand.Rand

	now func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithCache attaches a semantic response cache.
func WithCache(c *cache.Cache) Option {
	return func(p *Pipeline) { p.cache = c }
}

// WithRouter attaches a complexity router. Without one, every query
// runs the full council.
func WithRouter(r *router.Router) Option {
	return func(p *Pipeline) { p.router = r }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m ports.MetricsCollector) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithObserver attaches a stage observer for tracing.
func WithObserver(o ports.StageObserver) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithTokenEstimator sets the estimator used for streaming usage.
func WithTokenEstimator(e ports.TokenEstimator) Option {
	return func(p *Pipeline) { p.estimator = e }
}

// WithLabelSeed fixes the label-shuffle source, for reproducible runs.
func WithLabelSeed(seed int64) Option {
	return func(p *Pipeline) { p.rng = rand.New(rand.NewSource(seed)) }
}

// NewPipeline builds a Pipeline from validated configuration.
func NewPipeline(cfg Config, gateway ports.ModelGateway, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		cfg:      cfg,
		gateway:  gateway,
		observer: ports.NopStageObserver{},
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Deliberate runs the pipeline synchronously and returns the complete
// artifact. An error is returned only for invalid input or when every
// council member fails in the first stage; all later stages degrade
// instead of failing.
func (p *Pipeline) Deliberate(ctx context.Context, query string) (*domain.Deliberation, error) {
	return p.run(ctx, query, nil)
}

// DeliberateStream runs the pipeline with a streaming chairman stage.
// Token fragments and the terminal completion flow through onEvent.
func (p *Pipeline) DeliberateStream(ctx context.Context, query string, onEvent func(StreamEvent)) (*domain.Deliberation, error) {
	if onEvent == nil {
		onEvent = func(StreamEvent) {}
	}
	return p.run(ctx, query, onEvent)
}

func (p *Pipeline) run(ctx context.Context, query string, onEvent func(StreamEvent)) (*domain.Deliberation, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}

	if p.cache != nil {
		if entry, similarity, ok := p.cache.Lookup(query); ok {
			p.count("cache_hits", "hit")
			result := *entry.Result
			result.FromCache = true
			result.Similarity = similarity
			if onEvent != nil {
				onEvent(StreamEvent{Token: result.Final.Content})
				onEvent(StreamEvent{Done: true, Final: result.Final, Usage: result.Usage})
			}
			return &result, nil
		}
		p.count("cache_hits", "miss")
	}

	decision := p.route(ctx, query)
	tier := decision.Tier

	result := &domain.Deliberation{
		Query:     query,
		Tier:      tier,
		CreatedAt: p.now().UTC(),
	}

	if tier == domain.TierSingle {
		if err := p.runSingle(ctx, decision, result, onEvent); err != nil {
			return nil, err
		}
	} else {
		if err := p.runCouncil(ctx, decision, result, onEvent); err != nil {
			return nil, err
		}
	}

	if p.cache != nil && !result.Final.Failed {
		// Persistence failures do not invalidate the result.
		_ = p.cache.Store(query, result, tier)
	}
	return result, nil
}

// runSingle handles the lowest tier: one model answers and its
// response is the final answer, with no ranking or synthesis.
func (p *Pipeline) runSingle(ctx context.Context, decision router.Decision, result *domain.Deliberation, onEvent func(StreamEvent)) error {
	ctx, done := p.observer.StageStart(ctx, stageCollect)
	start := p.now()

	model := decision.Models[0]
	messages := domain.UserMessage(result.Query)

	var resp domain.ModelResponse
	var err error
	if onEvent != nil {
		resp, err = p.gateway.InvokeStream(ctx, model, messages, func(token string) {
			onEvent(StreamEvent{Token: token})
		})
	} else {
		resp, err = p.gateway.Invoke(ctx, model, messages)
	}
	p.latency(stageCollect, result.Tier, p.now().Sub(start))
	done(err)

	if err != nil {
		return domain.NewStageError(stageCollect, domain.ErrAllModelsFailed)
	}

	resp.Model = model
	result.Stage1 = []domain.ModelResponse{resp}
	result.Final = domain.Synthesis{Model: model, Content: resp.Content}
	usage := resp.Usage()
	result.Usage = append(result.Usage, usage)

	if onEvent != nil {
		onEvent(StreamEvent{Done: true, Final: result.Final, Usage: result.Usage})
	}
	return nil
}

// runCouncil handles the mini and full tiers: responses, rankings,
// debate, advocate, and synthesis all run in order.
func (p *Pipeline) runCouncil(ctx context.Context, decision router.Decision, result *domain.Deliberation, onEvent func(StreamEvent)) error {
	models := decision.Models
	query := result.Query

	// Stage 1: parallel response collection.
	collectCtx, doneCollect := p.observer.StageStart(ctx, stageCollect)
	start := p.now()
	responses := collect(collectCtx, p.gateway, models, domain.UserMessage(query))
	p.latency(stageCollect, result.Tier, p.now().Sub(start))

	if len(responses) == 0 {
		err := domain.NewStageError(stageCollect, domain.ErrAllModelsFailed)
		doneCollect(err)
		return err
	}
	doneCollect(nil)

	result.Stage1 = responses
	for _, r := range responses {
		result.Usage = append(result.Usage, r.Usage())
	}
	p.gauge("stage1_responses", float64(len(responses)))

	// Stage 2: anonymized peer ranking. Evaluators are the models
	// that answered, so self-review is possible but anonymized.
	p.rngMu.Lock()
	labels := domain.AssignLabels(responses, p.cfg.ShuffleLabels, p.rng)
	p.rngMu.Unlock()

	rankCtx, doneRank := p.observer.StageStart(ctx, stageRank)
	start = p.now()
	rankings, rankUsage := collectRankings(rankCtx, p.gateway, models, query, responses, labels)
	p.latency(stageRank, result.Tier, p.now().Sub(start))
	doneRank(nil)

	result.Rankings = rankings
	result.Usage = append(result.Usage, rankUsage...)
	result.LabelToModel = labels.ToMap()
	result.Aggregate = Aggregate(rankings, labels)

	for _, record := range rankings {
		if record.Parsed.Empty() {
			p.count("ranking_parse", "empty")
		} else if record.Parsed.Confidence < 1 {
			p.count("ranking_parse", "degraded")
		} else {
			p.count("ranking_parse", "strict")
		}
	}

	// Stage 2B: bounded debate.
	if p.cfg.Debate.Enabled && len(rankings) > 0 {
		debateCtx, doneDebate := p.observer.StageStart(ctx, stageDebate)
		start = p.now()
		rebuttals, rounds := runDebate(debateCtx, p.gateway, p.cfg.Debate, query, responses, rankings, labels)
		p.latency(stageDebate, result.Tier, p.now().Sub(start))
		doneDebate(nil)

		result.Rebuttals = rebuttals
		result.Debate = rounds
		p.gauge("debate_rounds", float64(len(rounds)))
	}

	// Devil's advocate.
	if p.cfg.Advocate.Enabled {
		advCtx, doneAdv := p.observer.StageStart(ctx, stageAdvocate)
		start = p.now()
		result.Advocate = challengeTop(advCtx, p.gateway, p.cfg.Advocate, query, responses, result.Aggregate)
		p.latency(stageAdvocate, result.Tier, p.now().Sub(start))
		doneAdv(nil)
	}

	// Stage 3: chairman synthesis.
	synthCtx, doneSynth := p.observer.StageStart(ctx, stageSynthesis)
	start = p.now()

	var (
		final domain.Synthesis
		usage []domain.TokenUsage
	)
	if onEvent != nil {
		final, usage = synthesizeStream(
			synthCtx, p.gateway, p.estimator, p.cfg.Chairman,
			query, responses, rankings, result.Rebuttals, result.Advocate, onEvent,
		)
	} else {
		final, usage = synthesize(
			synthCtx, p.gateway, p.cfg.Chairman,
			query, responses, rankings, result.Rebuttals, result.Advocate,
		)
	}
	p.latency(stageSynthesis, result.Tier, p.now().Sub(start))
	if final.Failed {
		doneSynth(domain.NewStageError(stageSynthesis, domain.ErrAllModelsFailed))
		p.count("synthesis", "failed")
	} else {
		doneSynth(nil)
		p.count("synthesis", "ok")
	}

	result.Final = final
	result.Usage = append(result.Usage, usage...)
	return nil
}

func (p *Pipeline) route(ctx context.Context, query string) router.Decision {
	_, done := p.observer.StageStart(ctx, stageRoute)
	defer done(nil)

	if p.router == nil {
		return router.Decision{
			Tier:   domain.TierFull,
			Models: p.cfg.Models,
			Reason: "no router configured",
		}
	}
	decision := p.router.Route(query)
	p.count("routing_tier", decision.Tier.String())
	return decision
}

func (p *Pipeline) latency(stage string, tier domain.Tier, d time.Duration) {
	if p.metrics != nil {
		p.metrics.RecordLatency(stage, d, map[string]string{"tier": tier.String()})
	}
}

func (p *Pipeline) count(metric, status string) {
	if p.metrics != nil {
		p.metrics.RecordCounter(metric, 1, map[string]string{"status": status})
	}
}

func (p *Pipeline) gauge(metric string, v float64) {
	if p.metrics != nil {
		p.metrics.RecordGauge(metric, v, nil)
	}
}
