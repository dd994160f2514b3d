// Package config provides the configuration schema and loader for the
// interview simulation backend.
package config

import "time"

// Config is the root configuration structure for the service. It is
// typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Store     StoreConfig     `yaml:"store"`
	Session   SessionConfig   `yaml:"session"`
	Speech    SpeechConfig    `yaml:"speech"`
}

// LogLevel controls slog verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid reports whether l is one of the known log levels.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError, "":
		return true
	}
	return false
}

// ServerConfig holds network and logging settings for the HTTP server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Valid values: debug, info, warn, error.
	LogLevel LogLevel `yaml:"log_level"`
}

// ProvidersConfig declares which external collaborator implementation to
// use for each pipeline stage.
type ProvidersConfig struct {
	LLM    ProviderEntry `yaml:"llm"`
	STT    ProviderEntry `yaml:"stt"`
	TTS    ProviderEntry `yaml:"tts"`
	Search ProviderEntry `yaml:"search"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. APIKey is typically supplied by an environment variable override
// rather than committed to a YAML file.
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai",
	// "deepgram", "elevenlabs", "serper").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration not covered above.
	Options map[string]any `yaml:"options"`
}

// RateLimitConfig configures the Rate Governor's per-provider capacities
// and acquisition timeout. Zero values fall back to the documented
// free-tier defaults (5/26/10/3, 5s).
type RateLimitConfig struct {
	STTBatchCapacity  int64         `yaml:"stt_batch_capacity"`
	TTSCapacity       int64         `yaml:"tts_capacity"`
	STTStreamCapacity int64         `yaml:"stt_stream_capacity"`
	SearchCapacity    int64         `yaml:"search_capacity"`
	AcquireTimeout    time.Duration `yaml:"acquire_timeout"`
}

// StoreBackend selects the Store Gateway implementation.
type StoreBackend string

const (
	StoreBackendMemory   StoreBackend = "memory"
	StoreBackendPostgres StoreBackend = "postgres"
)

// IsValid reports whether b is a known store backend.
func (b StoreBackend) IsValid() bool {
	switch b {
	case StoreBackendMemory, StoreBackendPostgres, "":
		return true
	}
	return false
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Backend     StoreBackend `yaml:"backend"`
	PostgresDSN string       `yaml:"postgres_dsn"`
}

// SessionConfig holds registry-wide defaults and idle-eviction policy.
type SessionConfig struct {
	// DefaultTargetQuestionCount seeds SessionConfig.TargetQuestionCount
	// when a create-session request omits it.
	DefaultTargetQuestionCount int `yaml:"default_target_question_count"`

	// IdleTimeout is how long a session may sit untouched before the
	// registry's sweeper evicts it.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// SweepInterval is how often the sweeper scans for idle sessions.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// SpeechConfig configures the Speech Task Tracker's housekeeping and
// synthesis defaults.
type SpeechConfig struct {
	// TaskRetention is the age past which Tracker.CleanupExpiredTasks
	// removes a speech task record. The server does not run that cleanup
	// on a schedule, so records stay until it is called.
	TaskRetention time.Duration `yaml:"task_retention"`

	// MaxRetries bounds exponential-backoff retry attempts for throttled
	// or 5xx provider responses.
	MaxRetries int `yaml:"max_retries"`

	// DefaultVoice is the provider voice id used when a synthesis request
	// does not name one.
	DefaultVoice string `yaml:"default_voice"`
}

// Normalize fills in documented defaults for zero-valued fields.
func (c *Config) Normalize() {
	if c.RateLimit.STTBatchCapacity <= 0 {
		c.RateLimit.STTBatchCapacity = 5
	}
	if c.RateLimit.TTSCapacity <= 0 {
		c.RateLimit.TTSCapacity = 26
	}
	if c.RateLimit.STTStreamCapacity <= 0 {
		c.RateLimit.STTStreamCapacity = 10
	}
	if c.RateLimit.SearchCapacity <= 0 {
		c.RateLimit.SearchCapacity = 3
	}
	if c.RateLimit.AcquireTimeout <= 0 {
		c.RateLimit.AcquireTimeout = 5 * time.Second
	}
	if c.Store.Backend == "" {
		c.Store.Backend = StoreBackendMemory
	}
	if c.Session.DefaultTargetQuestionCount <= 0 {
		c.Session.DefaultTargetQuestionCount = 15
	}
	if c.Session.IdleTimeout <= 0 {
		c.Session.IdleTimeout = 15 * time.Minute
	}
	if c.Session.SweepInterval <= 0 {
		c.Session.SweepInterval = 5 * time.Minute
	}
	if c.Speech.TaskRetention <= 0 {
		c.Speech.TaskRetention = 24 * time.Hour
	}
	if c.Speech.MaxRetries <= 0 {
		c.Speech.MaxRetries = 3
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogLevelInfo
	}
}
