package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g. DOCQA_DATABASE_DSN.
const EnvPrefix = "DOCQA"

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	EmbedLLM LLMConfig      `yaml:"embed_llm" envconfig:"EMBED"`
	GenLLM   GenConfig      `yaml:"gen_llm" envconfig:"GEN"`
	RAG      RAGConfig      `yaml:"rag"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type ServerConfig struct {
	Addr           string `yaml:"addr"`
	UploadDir      string `yaml:"upload_dir" split_words:"true"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" split_words:"true"`
}

type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"`
	Debug  bool   `yaml:"debug"`
}

// LLMConfig describes a remote model endpoint.
type LLMConfig struct {
	Provider  string `yaml:"provider"`
	BaseURL   string `yaml:"base_url" split_words:"true"`
	Model     string `yaml:"model"`
	Key       string `yaml:"key"`
	BatchSize int    `yaml:"batch_size" split_words:"true"`
}

// GenConfig configures the answer generation model.
type GenConfig struct {
	LLMConfig   `yaml:",inline"`
	Temperature float64       `yaml:"temperature"`
	TopP        float64       `yaml:"top_p" split_words:"true"`
	MaxTokens   int           `yaml:"max_tokens" split_words:"true"`
	Timeout     time.Duration `yaml:"timeout"`
}

type RAGConfig struct {
	ChunkSize      int    `yaml:"chunk_size" split_words:"true"`
	NResults       int    `yaml:"n_results" split_words:"true"`
	DBPath         string `yaml:"db_path" split_words:"true"`
	CollectionName string `yaml:"collection_name" split_words:"true"`
	InMemory       bool   `yaml:"in_memory" split_words:"true"`
	Compress       bool   `yaml:"compress"`
	EncryptionKey  string `yaml:"encryption_key" split_words:"true"`
	StrictCleanup  bool   `yaml:"strict_cleanup" split_words:"true"`
}

const (
	defaultLogLevel       = "info"
	defaultAddr           = ":8000"
	defaultUploadDir      = "./uploads"
	defaultMaxUploadBytes = 32 << 20
	defaultDriver         = "pgdriver"
	defaultOllamaURL      = "http://localhost:11434"
	defaultEmbedModel     = "all-minilm"
	defaultGenModel       = "llama2"
	defaultTemperature    = 0.3
	defaultTopP           = 0.9
	defaultMaxTokens      = 300
	defaultGenTimeout     = 60 * time.Second
	defaultChunkSize      = 500
	defaultNResults       = 3
	defaultDBPath         = "./chromemdb"
	defaultCollection     = "documents"
)

// LoadConfig reads the YAML file at path, then applies .env and environment
// overrides and fills defaults. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	// .env is optional.
	_ = godotenv.Load()

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultAddr
	}
	if cfg.Server.UploadDir == "" {
		cfg.Server.UploadDir = defaultUploadDir
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		cfg.Server.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = defaultDriver
	}

	if cfg.EmbedLLM.BaseURL == "" {
		cfg.EmbedLLM.BaseURL = defaultOllamaURL
	}
	if cfg.EmbedLLM.Model == "" {
		cfg.EmbedLLM.Model = defaultEmbedModel
	}

	if cfg.GenLLM.BaseURL == "" {
		cfg.GenLLM.BaseURL = defaultOllamaURL
	}
	if cfg.GenLLM.Model == "" {
		cfg.GenLLM.Model = defaultGenModel
	}
	if cfg.GenLLM.Temperature == 0 {
		cfg.GenLLM.Temperature = defaultTemperature
	}
	if cfg.GenLLM.TopP == 0 {
		cfg.GenLLM.TopP = defaultTopP
	}
	if cfg.GenLLM.MaxTokens == 0 {
		cfg.GenLLM.MaxTokens = defaultMaxTokens
	}
	if cfg.GenLLM.Timeout == 0 {
		cfg.GenLLM.Timeout = defaultGenTimeout
	}

	if cfg.RAG.ChunkSize <= 0 {
		cfg.RAG.ChunkSize = defaultChunkSize
	}
	if cfg.RAG.NResults <= 0 {
		cfg.RAG.NResults = defaultNResults
	}
	if cfg.RAG.DBPath == "" {
		cfg.RAG.DBPath = defaultDBPath
	}
	if cfg.RAG.CollectionName == "" {
		cfg.RAG.CollectionName = defaultCollection
	}
}
