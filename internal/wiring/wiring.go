// Package wiring assembles every collaborator named in spec.md's
// component table into one running Orchestrator, the way the teacher's
// cmd/nexus main.go builds its Server from a loaded Config. Kept
// separate from cmd/stockgateway so the composition root is unit
// testable without a process entry point.
package wiring

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/stockgateway/stockgateway/internal/breaker"
	"github.com/stockgateway/stockgateway/internal/cache"
	"github.com/stockgateway/stockgateway/internal/config"
	"github.com/stockgateway/stockgateway/internal/convstore"
	"github.com/stockgateway/stockgateway/internal/embedding"
	"github.com/stockgateway/stockgateway/internal/limiter"
	"github.com/stockgateway/stockgateway/internal/modelclient"
	"github.com/stockgateway/stockgateway/internal/modelclient/providers"
	"github.com/stockgateway/stockgateway/internal/orchestrator"
	"github.com/stockgateway/stockgateway/internal/predict"
	ragindex "github.com/stockgateway/stockgateway/internal/rag/index"
	"github.com/stockgateway/stockgateway/internal/rag/store/pgvector"
	"github.com/stockgateway/stockgateway/internal/ranker"
	"github.com/stockgateway/stockgateway/internal/selector"
	"github.com/stockgateway/stockgateway/internal/toolregistry"
	"github.com/stockgateway/stockgateway/internal/tools/marketdata"
	ragtool "github.com/stockgateway/stockgateway/internal/tools/rag"
	"github.com/stockgateway/stockgateway/internal/tools/websearchtool"
	rawsearch "github.com/stockgateway/stockgateway/internal/tools/websearch"
	fanout "github.com/stockgateway/stockgateway/internal/websearch"
)

// System bundles everything cmd/stockgateway needs to serve chat
// requests and run the background retrain scheduler.
type System struct {
	Orchestrator    *orchestrator.Orchestrator
	Registry        *toolregistry.Registry
	PredictEngine   *predict.Engine
	RetrainSchedule *predict.RetrainScheduler
	Breakers        *breaker.Registry
}

// Build constructs a System from a loaded Config, wiring every
// component spec.md names: caches, breakers, limiters, the tool
// registry (market data, web search + ranking, RAG, prediction), the
// selector, the model client, and the orchestrator itself.
func Build(cfg *config.Config, logger *slog.Logger) (*System, error) {
	if logger == nil {
		logger = slog.Default()
	}
	sg := cfg.StockGateway

	breakers := buildBreakers(sg)
	upstreams := limiter.NewUpstreams()

	embedder := embedding.NewHashEmbedder(0)
	embeddingCache := cache.NewEmbeddingCache()

	registry := toolregistry.NewRegistry()

	mdProvider := marketdata.StubProvider{}
	mdTools := marketdata.New(mdProvider, upstreams.Quotes, breakers)
	if err := registry.Register(mdTools.QuoteDescriptor(), mdTools.Quote); err != nil {
		return nil, fmt.Errorf("register get_stock_quote: %w", err)
	}
	if err := registry.Register(mdTools.HistoryDescriptor(), mdTools.History); err != nil {
		return nil, fmt.Errorf("register get_stock_history: %w", err)
	}
	if err := registry.Register(mdTools.NewsDescriptor(), mdTools.News); err != nil {
		return nil, fmt.Errorf("register get_stock_news: %w", err)
	}

	predictEngine := predict.New(predict.Config{
		AutoTrain:          sg.PredictAutoTrain,
		TrainingWindowDays: 90,
	}, mdProvider)
	if err := registry.Register(predictEngine.Descriptor(), predictEngine.Handle); err != nil {
		return nil, fmt.Errorf("register predict_price: %w", err)
	}

	rankerCfg := ranker.DefaultConfig()
	rank := ranker.New(rankerCfg, embeddingCache, embedder)

	client, err := buildModelClient(cfg, breakers)
	if err != nil {
		return nil, fmt.Errorf("build model client: %w", err)
	}

	var synth *ranker.Synthesizer
	if sg.DefaultModelAlias != "" {
		synth = ranker.NewSynthesizer(client, sg.DefaultModelAlias)
	}

	searchProvider := buildSearchFanout(sg, breakers)
	webSearchTool := websearchtool.New(searchProvider, rank, synth)
	if err := registry.Register(webSearchTool.Descriptor(), webSearchTool.Handle); err != nil {
		return nil, fmt.Errorf("register perplexity_search: %w", err)
	}

	if ragManager := buildRAGManager(cfg, embedder); ragManager != nil {
		rt := ragtool.New(ragManager)
		if err := registry.Register(rt.Descriptor(), rt.Handle); err != nil {
			return nil, fmt.Errorf("register rag_search: %w", err)
		}
	}

	executor := toolregistry.NewExecutor(registry, &toolregistry.ExecutorConfig{
		MaxConcurrency: 8,
		DefaultTimeout: 10 * time.Second,
		DefaultRetries: 1,
	})

	heuristic := selector.NewHeuristic(selector.DefaultHeuristicConfig())
	sel := buildSelector(sg, heuristic, embeddingCache, embedder, registry, logger)

	conversations := convstore.NewStore(convstore.DefaultCapacity, convstore.DefaultTTL)
	responses := cache.NewResponseCache()
	simple := cache.NewSimpleQueryCache()

	settings := orchestrator.Settings{
		MaxTokensPerTurn:  sg.MaxTokensPerTurn,
		MaxToolRounds:     sg.MaxToolRounds,
		ResponseCacheTTL:  sg.ResponseCacheTTL,
		SimpleCacheTTL:    sg.SimpleQueryCacheTTL,
		DedupTTL:          sg.RequestDedupTTL,
		TurnDeadline:      sg.TurnDeadline,
		DefaultModelAlias: sg.DefaultModelAlias,
		CheapModelAlias:   sg.CheapModelAlias,
	}

	orch := orchestrator.New(client, registry, executor, sel, heuristic, conversations, responses, simple, settings)

	var retrain *predict.RetrainScheduler
	if sg.PredictAutoTrain {
		retrain, err = predict.NewRetrainScheduler(predictEngine, config.CronScheduleConfig{Cron: sg.PredictRetrainCron}, logger)
		if err != nil {
			logger.Warn("predict: retrain scheduler disabled", "error", err)
			retrain = nil
		}
	}

	return &System{
		Orchestrator:    orch,
		Registry:        registry,
		PredictEngine:   predictEngine,
		RetrainSchedule: retrain,
		Breakers:        breakers,
	}, nil
}

// buildBreakers converts the configured per-upstream overrides into a
// breaker.Registry, leaving every upstream spec.md doesn't override on
// the package defaults.
func buildBreakers(sg config.StockGatewayConfig) *breaker.Registry {
	overrides := make(map[string]breaker.Tunables, len(sg.Breakers))
	for upstream, t := range sg.Breakers {
		overrides[upstream] = breaker.Tunables{
			FailureThreshold: t.FailureThreshold,
			RecoverySeconds:  t.RecoverySeconds,
		}
	}
	return breaker.NewRegistry(overrides)
}

// buildSearchFanout builds the C6 fan-out provider. A single
// WebSearchTool instance serves as both primary and fallback since
// SearchBackend dispatches on an explicit per-call backend argument
// independent of the tool's own configured default.
func buildSearchFanout(sg config.StockGatewayConfig, breakers *breaker.Registry) *fanout.Provider {
	tool := rawsearch.NewWebSearchTool(&rawsearch.Config{
		BraveAPIKey:        sg.BraveAPIKey,
		DefaultResultCount: 8,
	})

	cfg := fanout.Config{
		ResultCount:     8,
		PrimaryTimeout:  time.Duration(sg.SearchPrimaryTimeoutMS) * time.Millisecond,
		FallbackTimeout: time.Duration(sg.SearchFallbackTimeoutMS) * time.Millisecond,
		Mode:            fanout.Mode(sg.WebSearchMode),
	}
	return fanout.New(cfg, tool, tool, breakers)
}

// buildModelClient constructs the concrete LLM providers named in
// cfg.LLM.Providers and assembles the alias-resolving Client.
func buildModelClient(cfg *config.Config, breakers *breaker.Registry) (*modelclient.Client, error) {
	providerSet := make(map[string]modelclient.LLMProvider, len(cfg.LLM.Providers))

	if pc, ok := cfg.LLM.Providers["anthropic"]; ok && pc.APIKey != "" {
		p, err := providers.NewAnthropicProvider(providers.AnthropicConfig{APIKey: pc.APIKey, BaseURL: pc.BaseURL})
		if err != nil {
			return nil, fmt.Errorf("anthropic provider: %w", err)
		}
		providerSet["anthropic"] = p
	}
	if pc, ok := cfg.LLM.Providers["google"]; ok && pc.APIKey != "" {
		p, err := providers.NewGoogleProvider(providers.GoogleConfig{APIKey: pc.APIKey})
		if err != nil {
			return nil, fmt.Errorf("google provider: %w", err)
		}
		providerSet["google"] = p
	}
	if pc, ok := cfg.LLM.Providers["openai"]; ok && pc.APIKey != "" {
		providerSet["openai"] = providers.NewOpenAIProvider(pc.APIKey)
	}
	if pc, ok := cfg.LLM.Providers["bedrock"]; ok {
		region := pc.BaseURL
		if region == "" {
			region = "us-east-1"
		}
		p, err := providers.NewBedrockProvider(providers.BedrockConfig{Region: region})
		if err != nil {
			return nil, fmt.Errorf("bedrock provider: %w", err)
		}
		providerSet["bedrock"] = p
	}

	aliases := make(map[string]modelclient.Deployment, len(cfg.StockGateway.Aliases))
	for alias, d := range cfg.StockGateway.Aliases {
		aliases[alias] = modelclient.Deployment{Provider: d.Provider, Model: d.Model}
	}
	defaultAlias := cfg.StockGateway.DefaultModelAlias
	if len(aliases) == 0 && defaultAlias != "" && cfg.LLM.DefaultProvider != "" {
		aliases[defaultAlias] = modelclient.Deployment{
			Provider: cfg.LLM.DefaultProvider,
			Model:    cfg.LLM.Providers[cfg.LLM.DefaultProvider].DefaultModel,
		}
	}

	table, err := modelclient.NewAliasTable(aliases, defaultAlias)
	if err != nil {
		return nil, fmt.Errorf("build alias table: %w", err)
	}

	return modelclient.NewClient(providerSet, table, breakers), nil
}

// buildRAGManager wires the pgvector-backed document store into the
// index manager when a database is configured; rag_search is omitted
// entirely otherwise, since the only concrete DocumentStore
// implementation requires a live Postgres connection.
func buildRAGManager(cfg *config.Config, embedder *embedding.HashEmbedder) *ragindex.Manager {
	if cfg.Database.URL == "" {
		return nil
	}
	store, err := pgvector.New(pgvector.Config{DSN: cfg.Database.URL, Dimension: embedder.Dimension()})
	if err != nil {
		return nil
	}
	return ragindex.NewManager(store, embedder, ragindex.DefaultConfig())
}

// buildSelector returns the heuristic selector, or an ML-backed
// selector wrapping it as the fallback path, per spec.md §6's
// ML_TOOL_SELECTION_ENABLED switch.
func buildSelector(sg config.StockGatewayConfig, heuristic *selector.Heuristic, embeddingCache *cache.EmbeddingCache, embedder *embedding.HashEmbedder, registry *toolregistry.Registry, logger *slog.Logger) selector.Selector {
	if !sg.MLToolSelectionEnabled {
		return selector.AsSelector(heuristic)
	}

	labels := make([]string, 0, 8)
	for _, d := range registry.All() {
		labels = append(labels, d.Name)
	}

	mlCfg := selector.MLConfig{
		Enabled:             true,
		ConfidenceThreshold: sg.MLConfidenceThreshold,
		MaxTools:            sg.MLMaxTools,
	}
	classifier := &selector.StubClassifier{Labels: labels}
	onFallback := func(reason string) {
		logger.Warn("selector: ML path fell back to heuristic", "reason", reason)
	}
	return selector.NewMLSelector(mlCfg, embeddingCache, embedder, classifier, heuristic, onFallback)
}
