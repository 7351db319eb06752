package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "TREE_ROOT", "CURSOR_BACKEND", "SEARCH_RPS", "OPENROUTER_API_KEY", "ANTHROPIC_API_KEY", "GENERATION_PROVIDER"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, "8200", cfg.Port)
	assert.Equal(t, ".", cfg.TreeRoot)
	assert.Equal(t, "file", cfg.CursorBackend)
	assert.Equal(t, 2.0, cfg.SearchRPS)
	assert.Equal(t, 120*time.Second, cfg.CompileTimeout)
	assert.Equal(t, 12000, cfg.PayloadTokens)
	assert.True(t, cfg.PathLocks)
	assert.Empty(t, cfg.Generation())
	require.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("SEARCH_RPS", "0.5")
	t.Setenv("COMPILE_TIMEOUT", "30s")
	t.Setenv("PATH_LOCKS", "false")
	t.Setenv("SEARCH_RESULTS", "-3")
	t.Setenv("RUN_TTL", "garbage")

	cfg := Load()
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 0.5, cfg.SearchRPS)
	assert.Equal(t, 30*time.Second, cfg.CompileTimeout)
	assert.False(t, cfg.PathLocks)
	assert.Equal(t, 5, cfg.SearchResults)
	assert.Equal(t, time.Hour, cfg.RunTTL)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		t.Setenv("GENERATION_PROVIDER", "")
		return Load()
	}

	cfg := base()
	cfg.CursorBackend = "redis"
	cfg.RedisURL = ""
	assert.ErrorContains(t, cfg.Validate(), "RedisURL")

	cfg.RedisURL = "redis://localhost:6379/0"
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.CursorBackend = "sqlite"
	assert.ErrorContains(t, cfg.Validate(), "CursorBackend")

	cfg = base()
	cfg.GenerationProvider = ProviderAnthropic
	cfg.AnthropicAPIKey = ""
	assert.ErrorContains(t, cfg.Validate(), "ANTHROPIC_API_KEY")

	cfg = base()
	cfg.PayloadTokens = 10
	assert.Error(t, cfg.Validate())
}

func TestGeneration(t *testing.T) {
	cfg := Config{AnthropicAPIKey: "a"}
	assert.Equal(t, ProviderAnthropic, cfg.Generation())
	cfg.OpenRouterAPIKey = "o"
	assert.Equal(t, ProviderOpenRouter, cfg.Generation())
	cfg.GenerationProvider = ProviderAnthropic
	assert.Equal(t, ProviderAnthropic, cfg.Generation())
}
