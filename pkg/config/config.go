package config

import (
	"encoding/json"
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for studyloop-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL with pgvector)
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration for the permission cache (optional)
	Redis RedisConfig `yaml:"redis"`

	// Default AI provider and model catalogue
	AI AIConfig `yaml:"ai"`

	// Web search collaborator configuration
	WebSearch WebSearchConfig `yaml:"web_search"`

	// MigrationsPath is the directory containing SQL migrations.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`

	// Credential encryption key for tenant model API keys.
	// A 32-byte key, base64 encoded (openssl rand -base64 32), or any
	// passphrase (hashed to 32 bytes). Server fails to start if unset.
	ModelCredentialsKey string `yaml:"-" env:"MODEL_CREDENTIALS_KEY"` // Secret - not in YAML
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"studyloop"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"studyloop_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration for the permission cache.
// An empty host disables the cache and the gate always takes the slow path.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	// PermissionTTLSeconds is how long cached permission hints stay valid.
	PermissionTTLSeconds int `yaml:"permission_ttl_seconds" env:"REDIS_PERMISSION_TTL_SECONDS" env-default:"3600"`
}

// ChatModel describes one entry of the default model catalogue.
type ChatModel struct {
	Name      string `json:"name"`
	Label     string `json:"label"`
	Reasoning bool   `json:"reasoning"`
}

// AIConfig holds the default OpenAI-compatible provider and model catalogue.
type AIConfig struct {
	BaseURL string `yaml:"base_url" env:"AI_BASE_URL" env-default:""`
	APIKey  string `yaml:"-" env:"AI_API_KEY"` // Secret - not in YAML

	// ModelsJSON is a JSON array of catalogue entries, e.g.
	// [{"name":"gpt-4o-mini","label":"Fast","reasoning":false}].
	ModelsJSON string `yaml:"-" env:"LLM_MODELS" env-default:""`

	// Models is parsed from ModelsJSON (not from config file).
	Models []ChatModel `yaml:"-"`

	// TitleModelIndex selects the catalogue model used for chat titles.
	TitleModelIndex int `yaml:"title_model_index" env:"AI_TITLE_MODEL_INDEX" env-default:"0"`
	// DocumentModelIndex selects the catalogue model used for document generation.
	DocumentModelIndex int `yaml:"document_model_index" env:"AI_DOCUMENT_MODEL_INDEX" env-default:"0"`

	// Embedding endpoint. Falls back to BaseURL/APIKey when empty.
	EmbeddingModel   string `yaml:"embedding_model" env:"AI_EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
	EmbeddingBaseURL string `yaml:"embedding_base_url" env:"AI_EMBEDDING_BASE_URL" env-default:""`
	EmbeddingAPIKey  string `yaml:"-" env:"AI_EMBEDDING_API_KEY"` // Secret - not in YAML
}

// WebSearchConfig holds the external web-search collaborator settings.
// An empty base URL disables the search_web and scrape_url tools.
type WebSearchConfig struct {
	BaseURL string `yaml:"base_url" env:"WEB_SEARCH_BASE_URL" env-default:""`
	APIKey  string `yaml:"-" env:"WEB_SEARCH_API_KEY"` // Secret - not in YAML
}

// defaultModels is used when LLM_MODELS is not configured.
var defaultModels = []ChatModel{
	{Name: "gpt-4o-mini", Label: "Fast", Reasoning: false},
	{Name: "gpt-4o", Label: "Smart", Reasoning: true},
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// Secrets (PGPASSWORD, MODEL_CREDENTIALS_KEY, AI_API_KEY, ...) must come from
// environment variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.parseComplexFields(); err != nil {
		return nil, fmt.Errorf("failed to parse config fields: %w", err)
	}

	return cfg, nil
}

// parseComplexFields handles fields that need post-processing after loading.
func (c *Config) parseComplexFields() error {
	models, err := ParseModelCatalogue(c.AI.ModelsJSON)
	if err != nil {
		return err
	}
	c.AI.Models = models

	if c.AI.TitleModelIndex < 0 || c.AI.TitleModelIndex >= len(c.AI.Models) {
		return fmt.Errorf("title_model_index %d out of range for %d models", c.AI.TitleModelIndex, len(c.AI.Models))
	}
	if c.AI.DocumentModelIndex < 0 || c.AI.DocumentModelIndex >= len(c.AI.Models) {
		return fmt.Errorf("document_model_index %d out of range for %d models", c.AI.DocumentModelIndex, len(c.AI.Models))
	}

	return nil
}

// ParseModelCatalogue parses the LLM_MODELS JSON array. An empty value yields
// the built-in default catalogue.
func ParseModelCatalogue(value string) ([]ChatModel, error) {
	if value == "" {
		return defaultModels, nil
	}

	var models []ChatModel
	if err := json.Unmarshal([]byte(value), &models); err != nil {
		return nil, fmt.Errorf("failed to parse LLM_MODELS: %w", err)
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("LLM_MODELS must contain at least one model")
	}

	for i, m := range models {
		if m.Name == "" {
			return nil, fmt.Errorf("LLM_MODELS entry %d has no name", i)
		}
	}

	return models, nil
}
