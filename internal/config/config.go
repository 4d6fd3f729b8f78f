// Package config loads the service configuration from an optional TOML
// file with environment variable overrides. Environment always wins so
// deployments can keep secrets out of the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Defaults.
const (
	DefaultListenAddr     = ":8080"
	DefaultOpenAIBaseURL  = "https://api.openai.com/v1"
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultChatModel      = "gpt-4o-mini"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	OpenAI    OpenAIConfig    `toml:"openai"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Verbose   bool            `toml:"verbose"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `toml:"addr"`
}

// DatabaseConfig configures PostgreSQL storage.
type DatabaseConfig struct {
	// URL is the postgres:// connection URL. Empty selects the
	// in-memory stores (development only; nothing survives a restart).
	URL string `toml:"url"`
}

// OpenAIConfig configures the embedding and LLM adapters.
type OpenAIConfig struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	EmbeddingModel string `toml:"embedding_model"`
	ChatModel      string `toml:"chat_model"`
}

// SchedulerConfig configures the periodic sync cadences.
type SchedulerConfig struct {
	// IncrementalEvery is the incremental sync interval. Zero keeps the
	// built-in default (hourly).
	IncrementalEvery duration `toml:"incremental_every"`

	// FullEvery is the full re-sync interval. Zero keeps the built-in
	// default (daily).
	FullEvery duration `toml:"full_every"`
}

// duration parses TOML strings like "30m" or "24h".
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

// Duration converts to the standard type.
func (d duration) Duration() time.Duration { return time.Duration(d) }

// Load reads the config file at path (skipped when path is empty or the
// file does not exist), then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{Addr: DefaultListenAddr},
		OpenAI: OpenAIConfig{
			BaseURL:        DefaultOpenAIBaseURL,
			EmbeddingModel: DefaultEmbeddingModel,
			ChatModel:      DefaultChatModel,
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Addr, "HIVEMIND_ADDR")
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&c.OpenAI.EmbeddingModel, "OPENAI_EMBEDDING_MODEL")
	setString(&c.OpenAI.ChatModel, "OPENAI_CHAT_MODEL")
	setDuration(&c.Scheduler.IncrementalEvery, "HIVEMIND_SYNC_INCREMENTAL_EVERY")
	setDuration(&c.Scheduler.FullEvery, "HIVEMIND_SYNC_FULL_EVERY")
	setBool(&c.Verbose, "HIVEMIND_VERBOSE")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = duration(parsed)
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}
