package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localkb/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 1000, cfg.Chunking.Window)
	assert.Equal(t, 200, cfg.Chunking.Overlap)
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
	assert.Equal(t, 5, cfg.Retrieve.TopK)
	assert.Equal(t, 2000, cfg.LLM.MaxTokens)
	assert.Equal(t, domain.IndexNotCreated, cfg.Store.IndexStatus)
	assert.Contains(t, cfg.Documents.Extensions, ".pdf")
	assert.Contains(t, cfg.Documents.Extensions, ".docx")
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Chunking, cfg.Chunking)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "localkb.yaml")

	cfg := DefaultConfig()
	cfg.Embedding.Model = "mxbai-embed-large"
	cfg.Retrieve.TopK = 7
	cfg.Documents.Folders = []string{"/data/docs"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mxbai-embed-large", loaded.Embedding.Model)
	assert.Equal(t, 7, loaded.Retrieve.TopK)
	assert.Equal(t, []string{"/data/docs"}, loaded.Documents.Folders)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieve:\n  top_k: 9\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Retrieve.TopK)
	assert.Equal(t, 1000, cfg.Chunking.Window, "unset fields keep defaults")
}

func TestSetIndexStatusPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "localkb.yaml")
	cfg := DefaultConfig()
	require.NoError(t, cfg.Save(path))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, cfg.SetIndexStatus(domain.IndexCreated))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, domain.IndexCreated, reloaded.Store.IndexStatus)
}

func TestSetIndexStatusReportsWriteFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "localkb.yaml")
	cfg := DefaultConfig()
	require.NoError(t, cfg.Save(path))

	cfg, err := Load(path)
	require.NoError(t, err)

	// Replace the file with a directory so the write-back fails.
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Mkdir(path, 0o755))

	assert.Error(t, cfg.SetIndexStatus(domain.IndexCreated))
}

func TestSetIndexStatusWithoutFile(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.SetIndexStatus(domain.IndexCreating))
	assert.Equal(t, domain.IndexCreating, cfg.Store.IndexStatus)
}

func TestLoadFromDirPrecedence(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "localkb.yaml"),
		[]byte("store:\n  collection: primary\n"), 0o644))

	hidden := filepath.Join(dir, ".localkb")
	require.NoError(t, os.MkdirAll(hidden, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(hidden, "config.yaml"),
		[]byte("store:\n  collection: secondary\n"), 0o644))

	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, "primary", cfg.Store.Collection, "localkb.yaml wins over .localkb/config.yaml")
}
