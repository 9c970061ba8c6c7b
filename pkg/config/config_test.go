package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("Should load the built-in defaults", func(t *testing.T) {
		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "loom.db", cfg.Database.Path)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.False(t, cfg.Log.JSON)
		assert.Equal(t, "loom.yaml", cfg.Import.File)
	})

	t.Run("Should apply environment overrides", func(t *testing.T) {
		t.Setenv("LOOM_DATABASE_PATH", "/var/lib/loom/meta.db")
		t.Setenv("LOOM_LOG_LEVEL", "debug")
		t.Setenv("LOOM_LOG_JSON", "true")

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "/var/lib/loom/meta.db", cfg.Database.Path)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.True(t, cfg.Log.JSON)
	})

	t.Run("Should reject an unknown log level", func(t *testing.T) {
		t.Setenv("LOOM_LOG_LEVEL", "loud")
		_, err := Load(ctx)
		assert.Error(t, err)
	})
}
