package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. It is read once at
// process start and treated as immutable afterwards.
type Config struct {
	Providers ProvidersConfig `yaml:"providers" mapstructure:"providers"`
	Routing   RoutingConfig   `yaml:"routing" mapstructure:"routing"`
	Scan      ScanConfig      `yaml:"scan" mapstructure:"scan"`
	AI        AIConfig        `yaml:"ai" mapstructure:"ai"`
	Schedule  ScheduleConfig  `yaml:"schedule" mapstructure:"schedule"`
	Export    ExportConfig    `yaml:"export" mapstructure:"export"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ProvidersConfig holds per-provider credentials and budgets.
type ProvidersConfig struct {
	EODHD EODHDConfig `yaml:"eodhd" mapstructure:"eodhd"`
	Yahoo YahooConfig `yaml:"yahoo" mapstructure:"yahoo"`
}

// EODHDConfig configures the EODHD market data provider.
type EODHDConfig struct {
	Key          string `yaml:"key" mapstructure:"key"`
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	CreditsLimit int    `yaml:"credits_limit" mapstructure:"credits_limit"`
}

// YahooConfig configures the Yahoo fallback provider.
type YahooConfig struct {
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	CreditsLimit int    `yaml:"credits_limit" mapstructure:"credits_limit"`
}

// RoutingConfig controls provider selection and health tracking.
type RoutingConfig struct {
	// Primary is the provider tried first when no per-operation
	// preference applies.
	Primary string `yaml:"primary" mapstructure:"primary"`

	// Preferred maps an operation type to a preferred provider,
	// e.g. {"options-chain": "eodhd"}.
	Preferred map[string]string `yaml:"preferred" mapstructure:"preferred"`

	// CostEfficiencyOrder orders remaining candidates by cost per call
	// when true; registration order otherwise.
	CostEfficiencyOrder bool `yaml:"cost_efficiency_order" mapstructure:"cost_efficiency_order"`

	// MaxInflightPerProvider caps concurrent calls per provider.
	MaxInflightPerProvider int `yaml:"max_inflight_per_provider" mapstructure:"max_inflight_per_provider"`

	// FailureThreshold is the consecutive-failure count that marks a
	// provider unavailable until its next successful health probe.
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`

	// HealthIntervalSecs is the period between health probes.
	HealthIntervalSecs int `yaml:"health_interval_secs" mapstructure:"health_interval_secs"`

	// OperationLogCap bounds the in-memory operation record log.
	OperationLogCap int `yaml:"operation_log_cap" mapstructure:"operation_log_cap"`
}

// HealthInterval returns the health probe period as a duration.
func (r RoutingConfig) HealthInterval() time.Duration {
	return time.Duration(r.HealthIntervalSecs) * time.Second
}

// ScanConfig holds screening ranges, leg selection windows, score weights
// and admission thresholds for a pipeline run.
type ScanConfig struct {
	Universe     string   `yaml:"universe" mapstructure:"universe"` // "static", "custom", "screener"
	Symbols      []string `yaml:"symbols" mapstructure:"symbols"`
	UniverseFile string   `yaml:"universe_file" mapstructure:"universe_file"`

	MinPrice     float64 `yaml:"min_price" mapstructure:"min_price"`
	MaxPrice     float64 `yaml:"max_price" mapstructure:"max_price"`
	MinVolume    int64   `yaml:"min_volume" mapstructure:"min_volume"`
	MinMarketCap float64 `yaml:"min_market_cap" mapstructure:"min_market_cap"`
	MaxMarketCap float64 `yaml:"max_market_cap" mapstructure:"max_market_cap"`

	LongMinDTE    int     `yaml:"long_min_dte" mapstructure:"long_min_dte"`
	LongMaxDTE    int     `yaml:"long_max_dte" mapstructure:"long_max_dte"`
	LongMinDelta  float64 `yaml:"long_min_delta" mapstructure:"long_min_delta"`
	LongMaxDelta  float64 `yaml:"long_max_delta" mapstructure:"long_max_delta"`
	ShortMinDTE   int     `yaml:"short_min_dte" mapstructure:"short_min_dte"`
	ShortMaxDTE   int     `yaml:"short_max_dte" mapstructure:"short_max_dte"`
	ShortMinDelta float64 `yaml:"short_min_delta" mapstructure:"short_min_delta"`
	ShortMaxDelta float64 `yaml:"short_max_delta" mapstructure:"short_max_delta"`

	// Score weights are applied as configured. They are not renormalized
	// even when they do not sum to one.
	TraditionalWeight float64 `yaml:"traditional_weight" mapstructure:"traditional_weight"`
	AIWeight          float64 `yaml:"ai_weight" mapstructure:"ai_weight"`

	MinCombinedScore  float64 `yaml:"min_combined_score" mapstructure:"min_combined_score"`
	MinAIConfidence   float64 `yaml:"min_ai_confidence" mapstructure:"min_ai_confidence"`
	BestPerSymbolOnly bool    `yaml:"best_per_symbol_only" mapstructure:"best_per_symbol_only"`
	MaxResults        int     `yaml:"max_results" mapstructure:"max_results"`
	EnrichConcurrency int     `yaml:"enrich_concurrency" mapstructure:"enrich_concurrency"`
}

// AIConfig configures the Claude augmentation stage.
type AIConfig struct {
	Enabled          bool   `yaml:"enabled" mapstructure:"enabled"`
	Key              string `yaml:"key" mapstructure:"key"`
	Model            string `yaml:"model" mapstructure:"model"`
	TopN             int    `yaml:"top_n" mapstructure:"top_n"`
	MinCallGapSecs   int    `yaml:"min_call_gap_secs" mapstructure:"min_call_gap_secs"`
	MaxTokens        int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	BreakerThreshold int    `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
}

// MinCallGap returns the mandated pause between successive AI calls.
func (a AIConfig) MinCallGap() time.Duration {
	return time.Duration(a.MinCallGapSecs) * time.Second
}

// ScheduleConfig configures the recurring scan job.
type ScheduleConfig struct {
	Cron          string  `yaml:"cron" mapstructure:"cron"`
	Timezone      string  `yaml:"timezone" mapstructure:"timezone"`
	MaxRetries    int     `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBaseSecs int     `yaml:"retry_base_secs" mapstructure:"retry_base_secs"`
	BackoffFactor float64 `yaml:"backoff_factor" mapstructure:"backoff_factor"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	LockFile      string  `yaml:"lock_file" mapstructure:"lock_file"`
	HistoryCap    int     `yaml:"history_cap" mapstructure:"history_cap"`
	StuckFactor   float64 `yaml:"stuck_factor" mapstructure:"stuck_factor"`
}

// RetryBase returns the base retry delay as a duration.
func (s ScheduleConfig) RetryBase() time.Duration {
	return time.Duration(s.RetryBaseSecs) * time.Second
}

// Timeout returns the per-execution wall clock budget, or zero when unset.
func (s ScheduleConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSecs) * time.Second
}

// ExportConfig configures where scan results are written.
type ExportConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the status endpoint of the schedule daemon.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PMCC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8090)
	v.SetDefault("export.dir", "results")
	v.SetDefault("providers.eodhd.base_url", "https://eodhd.com/api")
	v.SetDefault("providers.eodhd.credits_limit", 100000)
	v.SetDefault("providers.yahoo.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("providers.yahoo.credits_limit", 0)
	v.SetDefault("routing.primary", "eodhd")
	v.SetDefault("routing.cost_efficiency_order", true)
	v.SetDefault("routing.max_inflight_per_provider", 4)
	v.SetDefault("routing.failure_threshold", 3)
	v.SetDefault("routing.health_interval_secs", 300)
	v.SetDefault("routing.operation_log_cap", 1000)
	v.SetDefault("scan.universe", "static")
	v.SetDefault("scan.min_price", 20)
	v.SetDefault("scan.max_price", 500)
	v.SetDefault("scan.min_volume", 500000)
	v.SetDefault("scan.min_market_cap", 1e9)
	v.SetDefault("scan.max_market_cap", 0)
	v.SetDefault("scan.long_min_dte", 270)
	v.SetDefault("scan.long_max_dte", 730)
	v.SetDefault("scan.long_min_delta", 0.70)
	v.SetDefault("scan.long_max_delta", 0.95)
	v.SetDefault("scan.short_min_dte", 21)
	v.SetDefault("scan.short_max_dte", 45)
	v.SetDefault("scan.short_min_delta", 0.15)
	v.SetDefault("scan.short_max_delta", 0.40)
	v.SetDefault("scan.traditional_weight", 0.6)
	v.SetDefault("scan.ai_weight", 0.4)
	v.SetDefault("scan.min_combined_score", 60)
	v.SetDefault("scan.min_ai_confidence", 50)
	v.SetDefault("scan.best_per_symbol_only", true)
	v.SetDefault("scan.max_results", 25)
	v.SetDefault("scan.enrich_concurrency", 4)
	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("ai.top_n", 10)
	v.SetDefault("ai.min_call_gap_secs", 3)
	v.SetDefault("ai.max_tokens", 1024)
	v.SetDefault("ai.breaker_threshold", 5)
	v.SetDefault("schedule.cron", "30 9 * * 1-5")
	v.SetDefault("schedule.timezone", "America/New_York")
	v.SetDefault("schedule.max_retries", 2)
	v.SetDefault("schedule.retry_base_secs", 300)
	v.SetDefault("schedule.backoff_factor", 2.0)
	v.SetDefault("schedule.timeout_secs", 1800)
	v.SetDefault("schedule.lock_file", "pmcc-scanner.lock")
	v.SetDefault("schedule.history_cap", 100)
	v.SetDefault("schedule.stuck_factor", 2.0)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
