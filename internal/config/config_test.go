package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.MaxChunkSize)
	assert.Equal(t, 30, cfg.ChunkOverlap)
	assert.Equal(t, "buffer_window", cfg.MemoryType)
	assert.Equal(t, "id", cfg.DedupStrategy)
	assert.Equal(t, 6, cfg.RetrieverK)
	assert.Equal(t, 10*time.Second, cfg.DownloadWait)
}

func TestLoadConfig_LegacyMongoNames(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("CONNECTION_STRING", "mongodb://db:27017")
	t.Setenv("MONGODD_NAME", "legal")
	t.Setenv("COLLECTION_NAME", "histories")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "mongodb://db:27017", cfg.MongoURI)
	assert.Equal(t, "legal", cfg.DBName)
	assert.Equal(t, "histories", cfg.CollectionName)
}

func TestLoadConfig_Validation(t *testing.T) {
	t.Run("missing api key", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("bad memory type", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "k")
		t.Setenv("MEMORY_TYPE", "forever")
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "MEMORY_TYPE")
	})

	t.Run("overlap larger than chunk", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "k")
		t.Setenv("MAX_CHUNK_SIZE", "10")
		t.Setenv("CHUNK_OVERLAP", "10")
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "CHUNK_OVERLAP")
	})
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("X_WAIT", "3")
	assert.Equal(t, 3*time.Second, getEnvDuration("X_WAIT", time.Second))

	t.Setenv("X_WAIT", "250ms")
	assert.Equal(t, 250*time.Millisecond, getEnvDuration("X_WAIT", time.Second))

	t.Setenv("X_WAIT", "soon")
	assert.Equal(t, time.Second, getEnvDuration("X_WAIT", time.Second))
}

func TestLoadTopics(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		topics, err := LoadTopics("")
		require.NoError(t, err)
		assert.Equal(t, 2, topics["PQR"])
	})

	t.Run("yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "topics.yaml")
		require.NoError(t, os.WriteFile(path, []byte("temas_legales:\n  Divorcio: 3\n  Sucesiones: 5\n"), 0o644))

		topics, err := LoadTopics(path)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"Divorcio": 3, "Sucesiones": 5}, topics)
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "topics.yaml")
		require.NoError(t, os.WriteFile(path, []byte("other: 1\n"), 0o644))

		_, err := LoadTopics(path)
		assert.Error(t, err)
	})
}
