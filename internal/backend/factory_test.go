package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gastos/internal/config"
	"gastos/internal/storage"
)

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{StorageBackend: "sheets"})
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{
		StorageBackend:   "redis",
		StorageNamespace: "app-storage",
		RedisAddr:        "localhost:6379",
		RedisDB:          2,
	})
	require.NoError(t, err)
	assert.Equal(t, RedisBackend, cfg.Type)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, "app-storage", cfg.Namespace)
}

func TestConfig_Validate(t *testing.T) {
	assert.Error(t, Config{Type: "nope"}.Validate())
	assert.Error(t, Config{Type: SQLiteBackend}.Validate())
	assert.Error(t, Config{Type: RedisBackend}.Validate())
	assert.NoError(t, Config{Type: MemoryBackend}.Validate())
	assert.Equal(t, []string{"sqlite", "redis", "memory"}, GetBackendTypeStrings())
}

func TestCreateBackend(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name   string
		config Config
	}{
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "g.db")}},
		{"redis", Config{Type: RedisBackend, RedisAddr: mr.Addr()}},
		{"memory", Config{Type: MemoryBackend}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			result, err := NewFactory(nil).CreateBackend(ctx, tt.config)
			require.NoError(t, err)
			require.NotNil(t, result.Store)
			require.NotNil(t, result.Cleanup)

			require.NoError(t, result.Store.Set(ctx, storage.KeyUsername, "ana"))
			v, ok, err := result.Store.Get(ctx, storage.KeyUsername)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "ana", v)

			assert.NoError(t, result.Cleanup())
		})
	}
}
