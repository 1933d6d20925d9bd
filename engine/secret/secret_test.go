package secret_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmf/pipeline/engine/secret"
)

func TestEnvProvider(t *testing.T) {
	t.Run("Should resolve a set environment variable", func(t *testing.T) {
		t.Setenv("FMF_TEST_SECRET", "shh")
		p := secret.NewEnvProvider()
		value, err := p.Resolve(context.Background(), "FMF_TEST_SECRET")
		require.NoError(t, err)
		assert.Equal(t, "shh", value)
	})

	t.Run("Should error on an unset variable", func(t *testing.T) {
		p := secret.NewEnvProvider()
		_, err := p.Resolve(context.Background(), "FMF_DEFINITELY_UNSET_VAR")
		assert.Error(t, err)
	})
}

func TestStaticProvider(t *testing.T) {
	t.Run("Should resolve from the in-memory map", func(t *testing.T) {
		p := secret.NewStaticProvider(map[string]string{"k": "v"})
		value, err := p.Resolve(context.Background(), "k")
		require.NoError(t, err)
		assert.Equal(t, "v", value)
	})
}
