package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// StockGatewayConfig carries the orchestration-engine tunables named
// explicitly in spec.md §6, on top of the ambient server/database/llm
// sections in config.go.
type StockGatewayConfig struct {
	MaxTokensPerTurn      int           `yaml:"max_tokens_per_turn"`
	MaxToolRounds         int           `yaml:"max_tool_rounds"`
	ResponseCacheTTL      time.Duration `yaml:"response_cache_ttl"`
	SimpleQueryCacheTTL   time.Duration `yaml:"simple_query_cache_ttl"`
	RequestDedupTTL       time.Duration `yaml:"request_dedup_ttl"`
	TurnDeadline          time.Duration `yaml:"turn_deadline"`

	MLToolSelectionEnabled bool    `yaml:"ml_tool_selection_enabled"`
	MLConfidenceThreshold  float64 `yaml:"ml_confidence_threshold"`
	MLMaxTools             int     `yaml:"ml_max_tools"`

	WebSearchMode            string `yaml:"web_search_mode"` // fast | balanced | comprehensive
	BraveAPIKey              string `yaml:"brave_api_key"`
	SearchPrimaryTimeoutMS   int    `yaml:"search_primary_timeout_ms"`
	SearchFallbackTimeoutMS  int    `yaml:"search_fallback_timeout_ms"`

	DefaultModelAlias string                      `yaml:"default_model_alias"`
	CheapModelAlias   string                      `yaml:"cheap_model_alias"`
	Aliases           map[string]DeploymentConfig  `yaml:"aliases"`

	Breakers   map[string]BreakerTunableConfig  `yaml:"breakers"`
	RateLimits map[string]RateLimitTunableConfig `yaml:"rate_limits"`

	PredictAutoTrain     bool   `yaml:"predict_auto_train"`
	PredictRetrainCron   string `yaml:"predict_retrain_cron"`
}

// DeploymentConfig names one provider+model pair an alias resolves to.
type DeploymentConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// BreakerTunableConfig overrides the per-upstream circuit breaker defaults.
type BreakerTunableConfig struct {
	FailureThreshold int `yaml:"failure_threshold"`
	RecoverySeconds  int `yaml:"recovery_s"`
}

// RateLimitTunableConfig overrides the per-upstream token bucket defaults.
type RateLimitTunableConfig struct {
	RequestsPerSecond float64 `yaml:"rps"`
	BurstSize         int     `yaml:"burst"`
}

// DefaultStockGatewayConfig mirrors the defaults spec.md §6 enumerates.
func DefaultStockGatewayConfig() StockGatewayConfig {
	return StockGatewayConfig{
		MaxTokensPerTurn:        6000,
		MaxToolRounds:           3,
		ResponseCacheTTL:        300 * time.Second,
		SimpleQueryCacheTTL:     60 * time.Second,
		RequestDedupTTL:         30 * time.Second,
		TurnDeadline:            60 * time.Second,
		MLToolSelectionEnabled:  false,
		MLConfidenceThreshold:   0.3,
		MLMaxTools:              5,
		WebSearchMode:           "balanced",
		SearchPrimaryTimeoutMS:  1500,
		SearchFallbackTimeoutMS: 2000,
		DefaultModelAlias:       "default",
		PredictAutoTrain:        true,
		PredictRetrainCron:      "0 6 * * *",
	}
}

func applyStockGatewayDefaults(cfg *StockGatewayConfig) {
	d := DefaultStockGatewayConfig()
	if cfg.MaxTokensPerTurn <= 0 {
		cfg.MaxTokensPerTurn = d.MaxTokensPerTurn
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = d.MaxToolRounds
	}
	if cfg.ResponseCacheTTL <= 0 {
		cfg.ResponseCacheTTL = d.ResponseCacheTTL
	}
	if cfg.SimpleQueryCacheTTL <= 0 {
		cfg.SimpleQueryCacheTTL = d.SimpleQueryCacheTTL
	}
	if cfg.RequestDedupTTL <= 0 {
		cfg.RequestDedupTTL = d.RequestDedupTTL
	}
	if cfg.TurnDeadline <= 0 {
		cfg.TurnDeadline = d.TurnDeadline
	}
	if cfg.MLConfidenceThreshold <= 0 {
		cfg.MLConfidenceThreshold = d.MLConfidenceThreshold
	}
	if cfg.MLMaxTools <= 0 {
		cfg.MLMaxTools = d.MLMaxTools
	}
	if strings.TrimSpace(cfg.WebSearchMode) == "" {
		cfg.WebSearchMode = d.WebSearchMode
	}
	if cfg.SearchPrimaryTimeoutMS <= 0 {
		cfg.SearchPrimaryTimeoutMS = d.SearchPrimaryTimeoutMS
	}
	if cfg.SearchFallbackTimeoutMS <= 0 {
		cfg.SearchFallbackTimeoutMS = d.SearchFallbackTimeoutMS
	}
	if strings.TrimSpace(cfg.DefaultModelAlias) == "" {
		cfg.DefaultModelAlias = d.DefaultModelAlias
	}
	if strings.TrimSpace(cfg.PredictRetrainCron) == "" {
		cfg.PredictRetrainCron = d.PredictRetrainCron
	}
}

// applyStockGatewayEnvOverrides applies exactly the environment variable
// names spec.md §6 enumerates.
func applyStockGatewayEnvOverrides(cfg *StockGatewayConfig) {
	if v := strings.TrimSpace(os.Getenv("MAX_TOKENS_PER_TURN")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxTokensPerTurn = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MAX_TOOL_ROUNDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxToolRounds = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("RESPONSE_CACHE_TTL_S")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ResponseCacheTTL = time.Duration(n) * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("SIMPLE_QUERY_CACHE_TTL_S")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SimpleQueryCacheTTL = time.Duration(n) * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("REQUEST_DEDUP_TTL_S")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RequestDedupTTL = time.Duration(n) * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("ML_TOOL_SELECTION_ENABLED")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.MLToolSelectionEnabled = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("ML_CONFIDENCE_THRESHOLD")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.MLConfidenceThreshold = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("ML_MAX_TOOLS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MLMaxTools = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("WEB_SEARCH_MODE")); v != "" {
		cfg.WebSearchMode = v
	}
	if v := strings.TrimSpace(os.Getenv("BRAVE_API_KEY")); v != "" {
		cfg.BraveAPIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("SEARCH_PRIMARY_TIMEOUT_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SearchPrimaryTimeoutMS = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("SEARCH_FALLBACK_TIMEOUT_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SearchFallbackTimeoutMS = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MODEL_DEFAULT_ALIAS")); v != "" {
		cfg.DefaultModelAlias = v
	}
}
