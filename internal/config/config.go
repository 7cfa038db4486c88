package config

import (
	"fmt"
	"time"

	"github.com/aescanero/dago-cel/internal/eval/cel"
	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the evaluation worker
type Config struct {
	// Worker configuration
	WorkerID string `env:"WORKER_ID" envDefault:"cel-1"`

	// Redis configuration
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASS" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Stream configuration
	StreamKey     string        `env:"STREAM_KEY" envDefault:"cel.eval"`
	ConsumerGroup string        `env:"CONSUMER_GROUP" envDefault:"cel-workers"`
	ResultStream  string        `env:"RESULT_STREAM" envDefault:"cel.results"`
	BlockTime     time.Duration `env:"BLOCK_TIME" envDefault:"1s"`

	// Evaluation configuration
	EvalMode         string        `env:"EVAL_MODE" envDefault:"python"`
	ProgramCacheSize int           `env:"PROGRAM_CACHE_SIZE" envDefault:"1024"`
	ContextTTL       time.Duration `env:"CONTEXT_TTL" envDefault:"0s"`

	// Health check configuration
	HealthPort int `env:"HEALTH_PORT" envDefault:"8082"`

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.WorkerID == "" {
		return fmt.Errorf("WORKER_ID is required")
	}

	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}

	if c.StreamKey == "" {
		return fmt.Errorf("STREAM_KEY is required")
	}

	if c.ConsumerGroup == "" {
		return fmt.Errorf("CONSUMER_GROUP is required")
	}

	if c.ResultStream == "" {
		return fmt.Errorf("RESULT_STREAM is required")
	}

	if c.ResultStream == c.StreamKey {
		return fmt.Errorf("RESULT_STREAM must differ from STREAM_KEY")
	}

	if c.BlockTime <= 0 {
		return fmt.Errorf("BLOCK_TIME must be positive")
	}

	if _, err := cel.ParseMode(c.EvalMode); err != nil {
		return fmt.Errorf("EVAL_MODE must be one of: python, strict")
	}

	if c.ProgramCacheSize < 0 {
		return fmt.Errorf("PROGRAM_CACHE_SIZE must be non-negative")
	}

	if c.ContextTTL < 0 {
		return fmt.Errorf("CONTEXT_TTL must be non-negative")
	}

	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("HEALTH_PORT must be between 1 and 65535")
	}

	if !isValidLogLevel(c.LogLevel) {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	return nil
}

// isValidLogLevel checks if the log level is valid
func isValidLogLevel(level string) bool {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	return validLevels[level]
}

// Mode returns the configured evaluation mode
func (c *Config) Mode() cel.EvaluationMode {
	return cel.EvaluationMode(c.EvalMode)
}

// String returns a string representation of the config (without sensitive data)
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{WorkerID=%s, RedisAddr=%s, RedisDB=%d, StreamKey=%s, ConsumerGroup=%s, "+
			"ResultStream=%s, EvalMode=%s, ProgramCacheSize=%d, ContextTTL=%s, HealthPort=%d, LogLevel=%s}",
		c.WorkerID,
		c.RedisAddr,
		c.RedisDB,
		c.StreamKey,
		c.ConsumerGroup,
		c.ResultStream,
		c.EvalMode,
		c.ProgramCacheSize,
		c.ContextTTL,
		c.HealthPort,
		c.LogLevel,
	)
}
