package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ahrav/go-conclave/infrastructure/llm"
	"github.com/ahrav/go-conclave/infrastructure/middleware"
	"github.com/ahrav/go-conclave/internal/cache"
	"github.com/ahrav/go-conclave/internal/council"
	"github.com/ahrav/go-conclave/internal/domain"
	"github.com/ahrav/go-conclave/internal/router"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config (defaults apply when empty)")
		query      = flag.String("query", "", "Query to deliberate on")
		stream     = flag.Bool("stream", false, "Stream the chairman synthesis token by token")
		forceTier  = flag.Int("tier", 0, "Force a dispatch tier (1=single, 2=mini, 3=full)")
		modelPath  = flag.String("routing-model", "", "Path to learned routing model JSON")
		dataPath   = flag.String("training-data", "", "Path to routing feedback JSON")
		feedback   = flag.Float64("feedback", 0, "Record a 1-5 rating for how -query was routed, then exit")
		trainMode  = flag.Bool("train", false, "Replay stored feedback through the routing model and exit")
		explain    = flag.Bool("explain", false, "Print the routing decision breakdown to stderr")
		showStats  = flag.Bool("cache-stats", false, "Print cache statistics and exit")
		clearCache = flag.Bool("clear-cache", false, "Clear the semantic cache and exit")
		jsonOut    = flag.Bool("json", false, "Emit the full deliberation artifact as JSON")
	)
	flag.Parse()

	cfg := council.DefaultConfig()
	if *configPath != "" {
		loaded, err := council.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *forceTier != 0 {
		tier := domain.Tier(*forceTier)
		if !tier.Valid() {
			log.Fatalf("Invalid tier %d: must be 1, 2, or 3", *forceTier)
		}
		cfg.Routing.ForceTier = tier
	}

	store, err := cache.Open(cfg.Cache)
	if err != nil {
		log.Fatalf("Failed to open cache: %v", err)
	}

	if *clearCache {
		if err := store.Clear(); err != nil {
			log.Fatalf("Failed to clear cache: %v", err)
		}
		fmt.Println("Cache cleared.")
		return
	}
	if *showStats {
		printJSON(store.Stats())
		return
	}

	var learned *router.LearnedModel
	if *modelPath != "" {
		learned, err = router.LoadLearnedModel(*modelPath)
		if err != nil {
			log.Fatalf("Failed to load routing model: %v", err)
		}
	}
	rt, err := router.New(cfg.Routing, cfg.Models, learned)
	if err != nil {
		log.Fatalf("Failed to build router: %v", err)
	}

	if *trainMode {
		if learned == nil {
			log.Fatalf("Training requires -routing-model")
		}
		tstore, err := router.OpenTrainingStore(*dataPath)
		if err != nil {
			log.Fatalf("Failed to open training data: %v", err)
		}
		stats, err := router.Train(tstore, learned, router.DefaultLearningRate, 0)
		if err != nil {
			log.Fatalf("Training failed: %v", err)
		}
		printJSON(stats)
		return
	}

	if *query == "" {
		flag.Usage()
		os.Exit(2)
	}

	if *feedback != 0 {
		tstore, err := router.OpenTrainingStore(*dataPath)
		if err != nil {
			log.Fatalf("Failed to open training data: %v", err)
		}
		decision := rt.Route(*query)
		if err := router.CollectFeedback(tstore, learned, *query, decision.Tier, *feedback); err != nil {
			log.Fatalf("Failed to record feedback: %v", err)
		}
		fmt.Printf("Recorded %.1f rating for %s routing.\n", *feedback, decision.Tier)
		return
	}

	if *explain {
		fmt.Fprint(os.Stderr, router.Explain(rt.Route(*query)))
		if learned != nil {
			fmt.Fprintf(os.Stderr, "  model info: %v\n", learned.Info())
		}
	}

	metrics := middleware.NewPrometheusMetrics(prometheus.NewRegistry())
	registry := llm.NewRegistryFromEnv(cfg.Timeout,
		llm.TimeoutMiddleware(cfg.Timeout),
		llm.MetricsMiddleware(metrics),
	)
	gateway := llm.NewGateway(registry, nil)

	pipeline, err := council.NewPipeline(cfg, gateway,
		council.WithRouter(rt),
		council.WithCache(store),
		council.WithMetrics(metrics),
		council.WithObserver(middleware.NewOTelStageObserver("conclave", metrics)),
		council.WithTokenEstimator(llm.NewTiktokenEstimator("cl100k_base")),
	)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	var result *domain.Deliberation
	if *stream {
		result, err = pipeline.DeliberateStream(ctx, *query, func(ev council.StreamEvent) {
			if !ev.Done {
				fmt.Print(ev.Token)
			}
		})
		fmt.Println()
	} else {
		result, err = pipeline.Deliberate(ctx, *query)
	}
	if err != nil {
		log.Fatalf("Deliberation failed: %v", err)
	}

	if *jsonOut {
		printJSON(result)
		return
	}

	if !*stream {
		fmt.Println(result.Final.Content)
	}
	fmt.Fprintf(os.Stderr, "\n[tier=%s models=%d cached=%t elapsed=%s]\n",
		result.Tier, len(result.Stage1), result.FromCache, time.Since(start).Round(time.Millisecond))
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
}
