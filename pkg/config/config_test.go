package config_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmf/pipeline/pkg/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Run("Should load built-in defaults with no sources", func(t *testing.T) {
		svc := config.NewService()
		cfg, err := svc.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "blake2b", cfg.Identity.HashAlgo)
		assert.Equal(t, 4, cfg.Executor.Concurrency)
		assert.True(t, cfg.Retry.Jitter)
	})

	t.Run("Should reject an invalid concurrency value", func(t *testing.T) {
		svc := config.NewService()
		_, err := svc.Load(context.Background(), config.Source{
			Name: "bad",
			Raw: map[string]any{
				"executor": map[string]any{"concurrency": 0},
			},
		})
		assert.Error(t, err)
	})
}

func TestEnvOverrides(t *testing.T) {
	t.Run("Should apply an environment override over defaults", func(t *testing.T) {
		t.Setenv("FMF_EXECUTOR_CONCURRENCY", "9")
		svc := config.NewService()
		cfg, err := svc.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 9, cfg.Executor.Concurrency)
	})

	t.Run("Should redact sensitive values in their string form", func(t *testing.T) {
		key := config.SensitiveString("sk-abc123")
		assert.Equal(t, "********", key.String())
	})
}

func TestRawSourceOverridesDefaults(t *testing.T) {
	t.Run("Should let a later source override an earlier default", func(t *testing.T) {
		svc := config.NewService()
		cfg, err := svc.Load(context.Background(), config.Source{
			Name: "override",
			Raw: map[string]any{
				"identity": map[string]any{"hash_algo": "xxh64"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "xxh64", cfg.Identity.HashAlgo)
	})
}
