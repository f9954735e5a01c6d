package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, defaultAddr, cfg.Server.Addr)
	assert.Equal(t, defaultDriver, cfg.Database.Driver)
	assert.Equal(t, defaultOllamaURL, cfg.EmbedLLM.BaseURL)
	assert.Equal(t, defaultGenModel, cfg.GenLLM.Model)
	assert.Equal(t, 0.3, cfg.GenLLM.Temperature)
	assert.Equal(t, 0.9, cfg.GenLLM.TopP)
	assert.Equal(t, 300, cfg.GenLLM.MaxTokens)
	assert.Equal(t, 60*time.Second, cfg.GenLLM.Timeout)
	assert.Equal(t, 500, cfg.RAG.ChunkSize)
	assert.Equal(t, 3, cfg.RAG.NResults)
	assert.Equal(t, defaultCollection, cfg.RAG.CollectionName)
}

func TestLoadConfig_ReadsYAML(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
server:
  addr: ":9090"
database:
  dsn: postgres://user@localhost:5432/docs
  driver: pq
embed_llm:
  provider: openai
  base_url: https://openrouter.ai/api/v1
  model: text-embedding-3-small
  key: Bearer sk-test
gen_llm:
  provider: ollama
  base_url: http://ollama:11434
  model: mistral
  temperature: 0.1
  timeout: 30s
rag:
  chunk_size: 800
  n_results: 5
  in_memory: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "pq", cfg.Database.Driver)
	assert.Equal(t, "openai", cfg.EmbedLLM.Provider)
	assert.Equal(t, "Bearer sk-test", cfg.EmbedLLM.Key)
	assert.Equal(t, "http://ollama:11434", cfg.GenLLM.BaseURL)
	assert.Equal(t, "mistral", cfg.GenLLM.Model)
	assert.Equal(t, 0.1, cfg.GenLLM.Temperature)
	assert.Equal(t, 30*time.Second, cfg.GenLLM.Timeout)
	assert.Equal(t, 800, cfg.RAG.ChunkSize)
	assert.Equal(t, 5, cfg.RAG.NResults)
	assert.True(t, cfg.RAG.InMemory)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
gen_llm:
  model: mistral
rag:
  chunk_size: 800
`)
	t.Setenv("DOCQA_GEN_MODEL", "llama3")
	t.Setenv("DOCQA_GEN_BASE_URL", "http://gpu-box:11434")
	t.Setenv("DOCQA_RAG_CHUNK_SIZE", "250")
	t.Setenv("DOCQA_DATABASE_DSN", "postgres://env@db/docs")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "llama3", cfg.GenLLM.Model)
	assert.Equal(t, "http://gpu-box:11434", cfg.GenLLM.BaseURL)
	assert.Equal(t, 250, cfg.RAG.ChunkSize)
	assert.Equal(t, "postgres://env@db/docs", cfg.Database.DSN)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "rag: [unterminated")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}
