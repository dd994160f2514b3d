package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadFromReader_MinimalIsValid(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(`
server:
  listen_addr: ":9090"
providers:
  llm:
    name: openai
`))
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Server.ListenAddr)
	require.Equal(t, "openai", cfg.Providers.LLM.Name)
	require.Equal(t, int64(5), cfg.RateLimit.STTBatchCapacity)
}

func TestLoadFromReader_EmptyIsValid(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(``))
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Server.ListenAddr)
}

func TestLoadFromReader_RejectsUnknownFields(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader(`
server:
  bogus_field: true
`))
	require.Error(t, err)
}

func TestLoadFromReader_RejectsInvalidLogLevel(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader(`
server:
  log_level: verbose
`))
	require.Error(t, err)
}

func TestLoadFromReader_PostgresRequiresDSN(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader(`
store:
  backend: postgres
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "postgres_dsn")
}

func TestLoadFromReader_PostgresWithDSNIsValid(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(`
store:
  backend: postgres
  postgres_dsn: "postgres://localhost/db"
`))
	require.NoError(t, err)
	require.Equal(t, StoreBackendPostgres, cfg.Store.Backend)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	require.Error(t, err)
}
