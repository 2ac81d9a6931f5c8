package config_test

import (
	"os"
	"testing"

	"hippos/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_EnvOverrides(t *testing.T) {
	os.Setenv("HIPPOS_ENV", "development")
	os.Setenv("HIPPOS_RRF_K", "42")
	os.Setenv("HIPPOS_STORAGE_BACKEND", "bbolt")
	os.Setenv("HIPPOS_BOLT_PATH", "/tmp/test.db")
	defer func() {
		os.Unsetenv("HIPPOS_ENV")
		os.Unsetenv("HIPPOS_RRF_K")
		os.Unsetenv("HIPPOS_STORAGE_BACKEND")
		os.Unsetenv("HIPPOS_BOLT_PATH")
	}()

	cfg := config.LoadConfig()

	assert.Equal(t, config.Development, cfg.Environment)
	assert.Equal(t, 42, cfg.Retrieval.RRFK)
	assert.Equal(t, "bbolt", cfg.Storage.Backend)
	assert.Equal(t, "/tmp/test.db", cfg.Storage.BoltPath)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := config.LoadConfig()

	assert.Equal(t, 60, cfg.Retrieval.RRFK)
	assert.InDelta(t, 0.6, cfg.Retrieval.SemanticWeight, 0.0001)
	assert.InDelta(t, 0.3, cfg.Retrieval.LexicalWeight, 0.0001)
	assert.InDelta(t, 0.1, cfg.Retrieval.TemporalWeight, 0.0001)
	assert.Equal(t, 384, cfg.Embedding.Dimension)
	assert.Equal(t, "hash", cfg.Embedding.Provider)
	assert.Equal(t, 100_000, cfg.Ingestion.MaxContentLength)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() config.Config {
		cfg := config.LoadConfig()
		cfg.Environment = config.Test
		return cfg
	}

	t.Run("valid default config passes", func(t *testing.T) {
		cfg := valid()
		require.NoError(t, cfg.Validate())
	})

	t.Run("rejects unknown environment", func(t *testing.T) {
		cfg := valid()
		cfg.Environment = "nonexistent"
		err := cfg.Validate()
		require.Error(t, err)
	})

	t.Run("rejects archive threshold at 1.0", func(t *testing.T) {
		cfg := valid()
		cfg.Maintenance.ArchiveThreshold = 1.0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "archive_threshold")
	})

	t.Run("rejects zero rrf weights", func(t *testing.T) {
		cfg := valid()
		cfg.Retrieval.SemanticWeight = 0
		cfg.Retrieval.LexicalWeight = 0
		cfg.Retrieval.TemporalWeight = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rrf weights")
	})

	t.Run("rejects default limit above max limit", func(t *testing.T) {
		cfg := valid()
		cfg.Pagination.DefaultLimit = 200
		cfg.Pagination.MaxLimit = 100
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "default_limit")
	})

	t.Run("requires bolt path when backend is bbolt", func(t *testing.T) {
		cfg := valid()
		cfg.Storage.Backend = "bbolt"
		cfg.Storage.BoltPath = ""
		err := cfg.Validate()
		require.Error(t, err)
	})

	t.Run("requires api key when embedding provider is openai", func(t *testing.T) {
		cfg := valid()
		cfg.Embedding.Provider = "openai"
		cfg.Embedding.APIKey = ""
		err := cfg.Validate()
		require.Error(t, err)
	})
}

func TestConfig_ApplyEnvironmentDefaults(t *testing.T) {
	t.Run("test environment forces memory backend and hash embedder", func(t *testing.T) {
		os.Setenv("HIPPOS_ENV", "test")
		os.Setenv("HIPPOS_STORAGE_BACKEND", "bbolt")
		os.Setenv("HIPPOS_EMBEDDING_PROVIDER", "openai")
		defer func() {
			os.Unsetenv("HIPPOS_ENV")
			os.Unsetenv("HIPPOS_STORAGE_BACKEND")
			os.Unsetenv("HIPPOS_EMBEDDING_PROVIDER")
		}()

		loaded := config.LoadConfig()
		assert.Equal(t, "memory", loaded.Storage.Backend)
		assert.Equal(t, "hash", loaded.Embedding.Provider)
		assert.False(t, loaded.Tracing.Enabled)
	})
}
