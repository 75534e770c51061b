package config

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	Segment   SegmentConfig   `yaml:"segment" mapstructure:"segment"`
	Analysis  AnalysisConfig  `yaml:"analysis" mapstructure:"analysis"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Session   SessionConfig   `yaml:"session" mapstructure:"session"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// AnthropicConfig holds text-generation credentials and model selection.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`

	// RequestsPerSecond caps message calls process-wide. Zero is unlimited.
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// OpenAIConfig holds embedding API credentials.
type OpenAIConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	EmbeddingModel string `yaml:"embedding_model" mapstructure:"embedding_model"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
}

// EmbeddingConfig selects the embedder.
type EmbeddingConfig struct {
	// Provider is "openai" or "hash". The hash embedder needs no network.
	Provider   string `yaml:"provider" mapstructure:"provider"`
	BatchSize  int    `yaml:"batch_size" mapstructure:"batch_size"`
	Dimensions int    `yaml:"dimensions" mapstructure:"dimensions"`
}

// SegmentConfig sizes retrieval windows in words.
type SegmentConfig struct {
	WindowWords  int `yaml:"window_words" mapstructure:"window_words"`
	OverlapWords int `yaml:"overlap_words" mapstructure:"overlap_words"`
}

// AnalysisConfig tunes retrieval depth, pacing and evidence checks.
type AnalysisConfig struct {
	DiscoveryTopK   int  `yaml:"discovery_top_k" mapstructure:"discovery_top_k"`
	EntityTopK      int  `yaml:"entity_top_k" mapstructure:"entity_top_k"`
	EntityPauseMs   int  `yaml:"entity_pause_ms" mapstructure:"entity_pause_ms"`
	EnforceEvidence bool `yaml:"enforce_evidence" mapstructure:"enforce_evidence"`
}

// RetryConfig configures retries and the circuit breaker around external calls.
type RetryConfig struct {
	MaxAttempts         int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs    int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs        int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	BreakerThreshold    int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	// Driver is "sqlite", "postgres" or "none".
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP adapter.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// SessionConfig configures idle session expiry. Zero keeps sessions until
// they are deleted.
type SessionConfig struct {
	TTLMinutes int `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BERYL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.requests_per_second", 0)
	v.SetDefault("openai.key", "")
	v.SetDefault("openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.batch_size", 100)
	v.SetDefault("embedding.dimensions", 0)
	v.SetDefault("segment.window_words", 400)
	v.SetDefault("segment.overlap_words", 50)
	v.SetDefault("analysis.discovery_top_k", 20)
	v.SetDefault("analysis.entity_top_k", 5)
	v.SetDefault("analysis.entity_pause_ms", 2000)
	v.SetDefault("analysis.enforce_evidence", true)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("retry.breaker_threshold", 5)
	v.SetDefault("retry.breaker_cooldown_secs", 30)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "beryl.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("session.ttl_minutes", 60)

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

// Validate checks the settings a command needs. Mode is "run", "serve" or
// "runs".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "run", "serve":
		problems = append(problems, c.validateAnalysis()...)
		if mode == "serve" && c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "runs":
		if c.Store.Driver == "none" {
			problems = append(problems, "store.driver must be sqlite or postgres to list runs")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
	problems = append(problems, c.validateStore()...)

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateAnalysis() []string {
	var problems []string
	if c.Anthropic.Key == "" {
		problems = append(problems, "anthropic.key is required")
	}
	switch c.Embedding.Provider {
	case "openai":
		if c.OpenAI.Key == "" {
			problems = append(problems, "openai.key is required when embedding.provider is openai")
		}
	case "hash":
	default:
		problems = append(problems, "embedding.provider must be openai or hash")
	}
	if c.Segment.WindowWords < 1 {
		problems = append(problems, "segment.window_words must be >= 1")
	}
	if c.Segment.OverlapWords < 0 || c.Segment.OverlapWords >= c.Segment.WindowWords {
		problems = append(problems, "segment.overlap_words must be >= 0 and < segment.window_words")
	}
	if c.Analysis.EntityPauseMs < 0 {
		problems = append(problems, "analysis.entity_pause_ms must be >= 0")
	}
	if c.Anthropic.RequestsPerSecond < 0 {
		problems = append(problems, "anthropic.requests_per_second must be >= 0")
	}
	return problems
}

func (c *Config) validateStore() []string {
	if !slices.Contains([]string{"sqlite", "postgres", "none"}, c.Store.Driver) {
		return []string{"store.driver must be sqlite, postgres or none"}
	}
	if c.Store.Driver != "none" && c.Store.DatabaseURL == "" {
		return []string{"store.database_url is required for " + c.Store.Driver}
	}
	return nil
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
