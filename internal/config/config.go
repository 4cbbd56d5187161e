// Package config loads service configuration from an optional YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// HTTP server (serve mode).
	Addr      string `yaml:"addr"`
	AuthToken string `yaml:"auth_token"`

	// Translation endpoint.
	APIBase        string        `yaml:"api_base"`
	Model          string        `yaml:"model"`
	APIKey         string        `yaml:"api_key"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Languages.
	SourceLang string `yaml:"source_lang"`
	TargetLang string `yaml:"target_lang"`

	// Pipeline.
	Workers        int           `yaml:"workers"`
	MaxAttempts    int           `yaml:"max_attempts"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	RetryMaxDelay  time.Duration `yaml:"retry_max_delay"`

	// Files.
	MaxFileBytes int64  `yaml:"max_file_bytes"`
	OutputDir    string `yaml:"output_dir"`
	OutputSuffix string `yaml:"output_suffix"`
	OnCancel     string `yaml:"on_cancel"`

	// Job registry (serve mode).
	JobTTL       time.Duration `yaml:"job_ttl"`
	MaxQueueSize int           `yaml:"max_queue_size"`
}

// Load builds the configuration: defaults, then the YAML file at path
// (or $SUBTRANS_CONFIG) when one exists, then environment overrides.
func Load(path string) (Config, error) {
	cfg := Config{
		Addr:           ":8090",
		APIBase:        "https://api.x.ai/v1",
		Model:          "grok-3",
		RequestTimeout: 30 * time.Second,
		SourceLang:     "auto",
		Workers:        4,
		MaxAttempts:    3,
		RetryBaseDelay: time.Second,
		RetryMaxDelay:  30 * time.Second,
		MaxFileBytes:   5 * 1024 * 1024,
		OnCancel:       "skip",
		JobTTL:         time.Hour,
		MaxQueueSize:   100,
	}

	if path == "" {
		path = os.Getenv("SUBTRANS_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.Addr = envOr("SUBTRANS_ADDR", cfg.Addr)
	cfg.AuthToken = envOr("SUBTRANS_AUTH_TOKEN", cfg.AuthToken)
	cfg.APIBase = envOr("SUBTRANS_API_BASE", cfg.APIBase)
	cfg.Model = envOr("SUBTRANS_MODEL", cfg.Model)
	cfg.APIKey = envOr("SUBTRANS_API_KEY", cfg.APIKey)
	cfg.SourceLang = envOr("SUBTRANS_SOURCE_LANG", cfg.SourceLang)
	cfg.TargetLang = envOr("SUBTRANS_TARGET_LANG", cfg.TargetLang)
	cfg.Workers = envInt("SUBTRANS_WORKERS", cfg.Workers)
	cfg.MaxAttempts = envInt("SUBTRANS_MAX_ATTEMPTS", cfg.MaxAttempts)
	cfg.RequestTimeout = envDuration("SUBTRANS_REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.RetryBaseDelay = envDuration("SUBTRANS_RETRY_BASE_DELAY", cfg.RetryBaseDelay)
	cfg.RetryMaxDelay = envDuration("SUBTRANS_RETRY_MAX_DELAY", cfg.RetryMaxDelay)
	cfg.MaxFileBytes = envInt64("SUBTRANS_MAX_FILE_BYTES", cfg.MaxFileBytes)
	cfg.OutputDir = envOr("SUBTRANS_OUTPUT_DIR", cfg.OutputDir)
	cfg.OutputSuffix = envOr("SUBTRANS_OUTPUT_SUFFIX", cfg.OutputSuffix)
	cfg.OnCancel = envOr("SUBTRANS_ON_CANCEL", cfg.OnCancel)
	cfg.JobTTL = envDuration("SUBTRANS_JOB_TTL", cfg.JobTTL)
	cfg.MaxQueueSize = envInt("SUBTRANS_MAX_QUEUE_SIZE", cfg.MaxQueueSize)

	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = 5 * 1024 * 1024
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = time.Hour
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}

	return cfg, nil
}

// Validate checks the fields a translation run cannot do without.
func (c Config) Validate() error {
	if c.OnCancel != "skip" && c.OnCancel != "copy" {
		return fmt.Errorf("on_cancel must be %q or %q, got %q", "skip", "copy", c.OnCancel)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
