// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	SAM       SAMConfig       `yaml:"sam" mapstructure:"sam"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SAMConfig configures the SAM.gov API client.
type SAMConfig struct {
	APIKey         string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec     float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	MaxRetries     int     `yaml:"max_retries" mapstructure:"max_retries"`
	DownloadDir    string  `yaml:"download_dir" mapstructure:"download_dir"`
	MaxAttachments int     `yaml:"max_attachments" mapstructure:"max_attachments"`
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// Timeout returns the configured SAM request timeout as a duration.
func (c SAMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// AnthropicConfig holds Anthropic API settings for the LLM extraction tier.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	MaxTokens   int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Timeout returns the configured LLM request timeout as a duration.
func (c AnthropicConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// ExtractConfig configures document text extraction.
type ExtractConfig struct {
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// PipelineConfig configures extraction and orchestration behavior.
type PipelineConfig struct {
	TemplateVersion      string `yaml:"template_version" mapstructure:"template_version"`
	MaxInputTokens       int    `yaml:"max_input_tokens" mapstructure:"max_input_tokens"`
	KeywordRulesPath     string `yaml:"keyword_rules_path" mapstructure:"keyword_rules_path"`
	FallbackArtifactDir  string `yaml:"fallback_artifact_dir" mapstructure:"fallback_artifact_dir"`
	MaxConcurrentNotices int    `yaml:"max_concurrent_notices" mapstructure:"max_concurrent_notices"`
	BreakerThreshold     int    `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs  int    `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// ServerConfig configures the read-only HTTP API.
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
	v.SetEnvPrefix("SOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("sam.base_url", "https://api.sam.gov/prod/opportunities/v2/search")
	v.SetDefault("sam.timeout_secs", 30)
	v.SetDefault("sam.rate_per_sec", 1.0)
	v.SetDefault("sam.max_retries", 3)
	v.SetDefault("sam.download_dir", "./downloads")
	v.SetDefault("sam.max_attachments", 20)
	v.SetDefault("sam.user_agent", "sow-cli (zgr-ai)")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.timeout_secs", 120)
	v.SetDefault("extract.pdftotext_path", "pdftotext")
	v.SetDefault("pipeline.template_version", "v1.0")
	v.SetDefault("pipeline.max_input_tokens", 24000)
	v.SetDefault("pipeline.fallback_artifact_dir", "./artifacts")
	v.SetDefault("pipeline.max_concurrent_notices", 5)
	v.SetDefault("pipeline.breaker_threshold", 5)
	v.SetDefault("pipeline.breaker_cooldown_secs", 300)

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
