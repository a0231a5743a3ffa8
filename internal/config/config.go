// Package config defines schemaforge's configuration schema and loading.
//
// Configuration is a YAML file, by default at ~/.schemaforge/config.yaml,
// created with defaults on first run. All sections have zero-value-safe
// defaults applied by Load, so a partial or missing file never prevents
// startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration object.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Engine      EngineConfig      `yaml:"engine"`
	RateLimiter RateLimiterConfig `yaml:"rate_limiter"`
	Retry       RetryConfig       `yaml:"retry"`
	Evaluation  EvaluationConfig  `yaml:"evaluation"`
	Logging     LoggingConfig     `yaml:"logging"`
	Cache       CacheConfig       `yaml:"cache"`
}

// ServerConfig configures the HTTP/websocket front door.
type ServerConfig struct {
	// ListenAddr is the address the Gin server binds, e.g. ":8080".
	ListenAddr string `yaml:"listen_addr"`
}

// EngineConfig configures the LLM Engine (§4.7 of the spec).
type EngineConfig struct {
	// Backend selects the Engine implementation: "ollama" or "openai".
	Backend string `yaml:"backend"`

	// ModelID identifies the model, e.g. "org/model-name". Must never
	// contain "://" — see engine.ValidateModelSource.
	ModelID string `yaml:"model_id"`

	// TrustedOrigin is the single model source origin. The Ollama backend
	// uses it as its server URL and refuses to load when it is empty; the
	// OpenAI backend does not read it. engine.ValidateOrigin implements the
	// substring whitelist check, but no backend calls it.
	TrustedOrigin string `yaml:"trusted_origin"`

	// GenerationTimeout bounds a single Engine.Generate call. Must stay
	// strictly greater than RateLimiter.Cooldown so a user whose request
	// timed out can resubmit immediately (§5).
	GenerationTimeout time.Duration `yaml:"generation_timeout"`

	// MinFreeMemoryMB is the memory pre-check floor before loading (§4.7).
	MinFreeMemoryMB int `yaml:"min_free_memory_mb"`

	// MaxNewTokens, Temperature and TopP are loaded and defaulted here,
	// but nothing passes them to the engine: internal/worker sends its own
	// fixed GenerationParams on every Generate call.
	MaxNewTokens int     `yaml:"max_new_tokens"`
	Temperature  float32 `yaml:"temperature"`
	TopP         float32 `yaml:"top_p"`
}

// RateLimiterConfig configures the submission cooldown gate (§4.10).
type RateLimiterConfig struct {
	CooldownMs      int `yaml:"cooldown_ms"`
	UpdateIntervalMs int `yaml:"update_interval_ms"`
}

// RetryConfig configures the Retry Manager (§4.8).
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
}

// EvaluationConfig exposes the single toggle the spec's Open Questions
// leave to implementers: whether the self-evaluation stage runs.
type EvaluationConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoggingConfig configures internal/logging.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogDir  string `yaml:"log_dir"`
	JSON    bool   `yaml:"json"`
}

// CacheConfig configures the optional Badger-backed result cache
// (internal/store). Disabled by default: the pipeline runs the full
// security/validation gauntlet on every request either way, so the
// cache is a pure latency optimization, not a correctness dependency.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`

	// Dir is the on-disk path for the cache database. Empty means an
	// in-memory cache that doesn't survive a restart.
	Dir string `yaml:"dir"`
}

// Default returns a Config with every field set to its production default.
func Default() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
		Engine: EngineConfig{
			Backend:           "ollama",
			ModelID:           "schemaforge/schema-writer",
			TrustedOrigin:     "models.schemaforge.dev",
			GenerationTimeout: 90 * time.Second,
			MinFreeMemoryMB:   2048,
			MaxNewTokens:      1024,
			Temperature:       0.2,
			TopP:              0.9,
		},
		RateLimiter: RateLimiterConfig{
			CooldownMs:       5000,
			UpdateIntervalMs: 100,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
		},
		Evaluation: EvaluationConfig{
			Enabled: false,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the config file at path, filling any zero-valued field with
// its default. If path is empty, it resolves to ~/.schemaforge/config.yaml
// and is created with defaults when absent.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, ".schemaforge", "config.yaml")
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDefault(path); err != nil {
			return cfg, fmt.Errorf("create default config at %s: %w", path, err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	// Unmarshal onto the defaulted struct so absent YAML keys keep their
	// zero-value-safe defaults instead of becoming Go zero values.
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyFallbacks(&cfg)
	return cfg, nil
}

// applyFallbacks restores defaults for fields a partial YAML document left
// at their Go zero value, so hand-edited configs can omit anything.
func applyFallbacks(cfg *Config) {
	def := Default()

	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = def.Server.ListenAddr
	}
	if cfg.Engine.Backend == "" {
		cfg.Engine.Backend = def.Engine.Backend
	}
	if cfg.Engine.ModelID == "" {
		cfg.Engine.ModelID = def.Engine.ModelID
	}
	if cfg.Engine.TrustedOrigin == "" {
		cfg.Engine.TrustedOrigin = def.Engine.TrustedOrigin
	}
	if cfg.Engine.GenerationTimeout == 0 {
		cfg.Engine.GenerationTimeout = def.Engine.GenerationTimeout
	}
	if cfg.Engine.MinFreeMemoryMB == 0 {
		cfg.Engine.MinFreeMemoryMB = def.Engine.MinFreeMemoryMB
	}
	if cfg.Engine.MaxNewTokens == 0 {
		cfg.Engine.MaxNewTokens = def.Engine.MaxNewTokens
	}
	if cfg.RateLimiter.CooldownMs == 0 {
		cfg.RateLimiter.CooldownMs = def.RateLimiter.CooldownMs
	}
	if cfg.RateLimiter.UpdateIntervalMs == 0 {
		cfg.RateLimiter.UpdateIntervalMs = def.RateLimiter.UpdateIntervalMs
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
}

func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
