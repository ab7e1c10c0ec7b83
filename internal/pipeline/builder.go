package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ppiankov/claimcheck/internal/cache"
	"github.com/ppiankov/claimcheck/internal/extract"
	"github.com/ppiankov/claimcheck/internal/fetch"
	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/metrics"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/preprocess"
	"github.com/ppiankov/claimcheck/internal/resilience"
	"github.com/ppiankov/claimcheck/internal/score"
	"github.com/ppiankov/claimcheck/internal/search"
	"github.com/ppiankov/claimcheck/internal/validate"
	"github.com/ppiankov/claimcheck/internal/verify"
)

// Dependencies replaces components Build would otherwise construct from the
// configuration. Nil fields are built normally.
type Dependencies struct {
	Provider    llm.Provider
	Searcher    search.Searcher
	Fetcher     PageFetcher
	Transcriber preprocess.Transcriber
}

// Components is everything Build wires together
type Components struct {
	Orchestrator *Orchestrator
	Extractor    *extract.Extractor
	Loop         *verify.Loop
	Loader       *Loader
	Breaker      *resilience.Breaker
	Executor     *resilience.Executor
}

// ApplyEnv fills credentials missing from cfg with the conventional
// environment variables
func ApplyEnv(cfg *model.Config) {
	if cfg.LLM.APIKey == "" {
		if env := llm.APIKeyEnv(cfg.LLM.Provider); env != "" {
			cfg.LLM.APIKey = os.Getenv(env)
		}
	}
	if cfg.LLM.BaseURL == "" && cfg.LLM.Provider == "ollama" {
		cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	if cfg.Search.APIKey == "" {
		cfg.Search.APIKey = os.Getenv("TAVILY_API_KEY")
	}
}

// Build wires the orchestrator from configuration. A single breaker and
// executor are shared by every inference, search and transcription call.
func Build(cfg *model.Config, deps Dependencies, logger *slog.Logger) (*Components, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger = logging.OrDefault(logger)

	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Cooldown:         cfg.Breaker.Cooldown,
	})
	breaker.OnStateChange(func(from, to resilience.State) {
		metrics.BreakerState.Set(float64(to))
		metrics.BreakerTransitions.WithLabelValues(to.String()).Inc()
		logger.Warn("circuit breaker state changed", "from", from.String(), "to", to.String())
	})
	exec := resilience.NewExecutor(breaker, resilience.PolicyFromConfig(cfg.Retry), logger)

	provider := deps.Provider
	if provider == nil {
		p, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP, int(cfg.Retry.Timeout.Seconds())))
		if err != nil {
			return nil, fmt.Errorf("inference provider: %w", err)
		}
		provider = p
	}
	client := llm.NewClient(provider, exec, cfg.LLM.Model, cfg.LLM.Temperature, logger)

	cacheCfg := cfg.Cache
	if cacheCfg.Enabled && cacheCfg.Dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cacheCfg.Dir = filepath.Join(home, ".claimcheck", "cache")
		}
	}
	shared := cache.New(cacheCfg)

	fetcher := deps.Fetcher
	if fetcher == nil {
		fetcher = fetch.NewFetcher(cfg.HTTP, fetch.WithCache(shared, cacheCfg.DiskTTL), fetch.WithLogger(logger))
	}

	searcher := deps.Searcher
	if searcher == nil {
		s, err := search.New(cfg.Search, cfg.HTTP)
		if err != nil {
			return nil, fmt.Errorf("search provider: %w", err)
		}
		searcher = s
		if cacheCfg.Enabled {
			searcher = search.NewCachedSearcher(searcher, shared, cacheCfg.MemoryTTL, logger)
		}
		if cfg.Search.FetchContent {
			searcher = search.NewEnricher(searcher, fetcher, cfg.Search.FetchTopN, logger)
		}
	}

	authority := validate.NewAuthorityClassifier(&cfg.Authority)
	extractor := extract.New(client, extract.OptionsFromConfig(cfg.Extraction), logger)
	loop := verify.NewLoop(client, searcher, exec, authority, verify.OptionsFromConfig(cfg.Verification), logger)

	loaderOpts := []LoaderOption{WithFetcher(fetcher), WithLoaderLogger(logger)}
	transcriber := deps.Transcriber
	if transcriber == nil {
		if op, ok := provider.(*llm.OpenAIProvider); ok {
			transcriber = preprocess.NewWhisperTranscriber(op.Client(), cfg.Preprocess.TranscriptionModel, exec, logger)
		}
	}
	if transcriber != nil {
		loaderOpts = append(loaderOpts, WithTranscriber(transcriber))
	}
	if cfg.Preprocess.Translate {
		loaderOpts = append(loaderOpts, WithTranslator(preprocess.NewLLMTranslator(client), cfg.Preprocess.TargetLanguage))
	}
	loader := NewLoader(loaderOpts...)

	orch := New(extractor, loop,
		WithLoader(loader),
		WithScorer(score.NewScorer(authority)),
		WithConcurrency(cfg.Orchestrator.Concurrency),
		WithLogger(logger),
	)

	return &Components{
		Orchestrator: orch,
		Extractor:    extractor,
		Loop:         loop,
		Loader:       loader,
		Breaker:      breaker,
		Executor:     exec,
	}, nil
}
