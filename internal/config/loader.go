package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind. Used by
// [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":    {"openai", "anthropic", "ollama", "gemini", "mistral", "groq", "any-llm"},
	"stt":    {"deepgram", "assemblyai"},
	"tts":    {"elevenlabs", "polly", "coqui"},
	"search": {"serper", "bing"},
}

// Load reads the YAML configuration file at path, normalizes defaults, and
// returns a validated [Config]. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, normalizes defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found; unknown provider
// names and missing-but-not-required collaborators are logged as warnings
// rather than treated as errors.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if !cfg.Store.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("store.backend %q is invalid; valid values: memory, postgres", cfg.Store.Backend))
	}
	if cfg.Store.Backend == StoreBackendPostgres && cfg.Store.PostgresDSN == "" {
		errs = append(errs, errors.New("store.postgres_dsn is required when store.backend is postgres"))
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("search", cfg.Providers.Search.Name)

	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; the interviewer and coach will run in fallback-only mode")
	}
	if cfg.Providers.Search.Name == "" {
		slog.Warn("no search provider configured; the coach will fall back to static resource recommendations")
	}

	if cfg.RateLimit.AcquireTimeout < 0 {
		errs = append(errs, errors.New("rate_limit.acquire_timeout must not be negative"))
	}
	for _, cap := range []struct {
		name string
		v    int64
	}{
		{"rate_limit.stt_batch_capacity", cfg.RateLimit.STTBatchCapacity},
		{"rate_limit.tts_capacity", cfg.RateLimit.TTSCapacity},
		{"rate_limit.stt_stream_capacity", cfg.RateLimit.STTStreamCapacity},
		{"rate_limit.search_capacity", cfg.RateLimit.SearchCapacity},
	} {
		if cap.v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", cap.name))
		}
	}

	if cfg.Session.DefaultTargetQuestionCount < 0 {
		errs = append(errs, errors.New("session.default_target_question_count must not be negative"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
