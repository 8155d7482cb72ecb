// Package config loads the handoff settings: defaults, then an optional YAML
// file, then HANDOFF_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aretw0/handoff/internal/logging"
	"github.com/aretw0/handoff/pkg/persistence/middleware"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. HANDOFF_STORE_KIND.
const EnvPrefix = "HANDOFF"

// Store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Model providers.
const (
	ProviderGemini   = "gemini"
	ProviderScripted = "scripted"
)

// Config is the full set of settings. Environment keys derive from the field
// names (HANDOFF_KAFKA_GROUP_ID). Leaf fields carry no envconfig tag, since a
// tag is also looked up without the prefix.
type Config struct {
	Log        LogConfig        `yaml:"log"`
	Store      StoreConfig      `yaml:"store"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Model      ModelConfig      `yaml:"model"`
	Engine     EngineConfig     `yaml:"engine"`
	HTTP       HTTPConfig       `yaml:"http"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Travel     TravelConfig     `yaml:"travel"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type StoreConfig struct {
	Kind string `yaml:"kind"`

	// Path is the directory of the file store or the database of the sqlite store.
	Path string `yaml:"path"`

	// Redis connection.
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type EncryptionConfig struct {
	// Key is 32 raw bytes or their base64 encoding. Empty disables encryption.
	Key          string   `yaml:"key"`
	FallbackKeys []string `yaml:"fallback_keys" split_words:"true"`
}

type ModelConfig struct {
	Provider    string   `yaml:"provider"`
	Name        string   `yaml:"name"`
	APIKey      string   `yaml:"api_key" split_words:"true"`
	Temperature *float32 `yaml:"temperature"`

	// EmbeddingModel ranks policy sections. Empty falls back to term overlap.
	EmbeddingModel string `yaml:"embedding_model" split_words:"true"`
}

type EngineConfig struct {
	MaxSteps        int           `yaml:"max_steps" split_words:"true"`
	MaxEmptyRetries int           `yaml:"max_empty_retries" split_words:"true"`
	LockTTL         time.Duration `yaml:"lock_ttl" split_words:"true"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type MetricsConfig struct {
	// Addr serves /metrics. Empty disables the metrics listener.
	Addr string `yaml:"addr"`
}

type KafkaConfig struct {
	// Brokers enables the Kafka approval channel when non-empty.
	Brokers        []string `yaml:"brokers"`
	RequestsTopic  string   `yaml:"requests_topic" split_words:"true"`
	DecisionsTopic string   `yaml:"decisions_topic" split_words:"true"`
	GroupID        string   `yaml:"group_id" split_words:"true"`
}

type TravelConfig struct {
	DBPath string `yaml:"db_path" split_words:"true"`
	// Seed refills the demo data on startup when the database is empty.
	Seed bool `yaml:"seed"`
}

// Default returns the settings used when nothing overrides them.
func Default() *Config {
	return &Config{
		Log:    LogConfig{Level: "info", Format: logging.FormatText},
		Store:  StoreConfig{Kind: StoreMemory, Path: ".handoff/threads", Address: "localhost:6379", TTL: 24 * time.Hour},
		Model:  ModelConfig{Provider: ProviderScripted, Name: "gemini-2.5-flash"},
		Engine: EngineConfig{MaxSteps: 25, MaxEmptyRetries: 3, LockTTL: 30 * time.Second},
		HTTP:   HTTPConfig{Addr: ":8080"},
		Kafka: KafkaConfig{
			RequestsTopic:  "handoff.approvals.requests",
			DecisionsTopic: "handoff.approvals.decisions",
			GroupID:        "handoff",
		},
		Travel: TravelConfig{DBPath: ".handoff/travel.sqlite", Seed: true},
	}
}

// Load applies the YAML file at path (if path is not empty) and the
// environment on top of the defaults, then validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Kind {
	case StoreMemory, StoreFile, StoreSQLite, StoreRedis:
	default:
		errs = append(errs, fmt.Errorf("store.kind: unknown store %q", c.Store.Kind))
	}
	if (c.Store.Kind == StoreFile || c.Store.Kind == StoreSQLite) && c.Store.Path == "" {
		errs = append(errs, fmt.Errorf("store.path: required for the %s store", c.Store.Kind))
	}

	switch c.Model.Provider {
	case ProviderScripted:
	case ProviderGemini:
		if c.Model.APIKey == "" {
			errs = append(errs, errors.New("model.api_key: required for the gemini provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("model.provider: unknown provider %q", c.Model.Provider))
	}

	if _, err := c.EncryptionKeys(); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != logging.FormatText && c.Log.Format != logging.FormatJSON {
		errs = append(errs, fmt.Errorf("log.format: must be %q or %q", logging.FormatText, logging.FormatJSON))
	}

	if c.Engine.MaxSteps <= 0 {
		errs = append(errs, errors.New("engine.max_steps: must be positive"))
	}
	if c.Engine.MaxEmptyRetries < 0 {
		errs = append(errs, errors.New("engine.max_empty_retries: must not be negative"))
	}

	if len(c.Kafka.Brokers) > 0 && (c.Kafka.RequestsTopic == "" || c.Kafka.DecisionsTopic == "") {
		errs = append(errs, errors.New("kafka: requests_topic and decisions_topic are required with brokers"))
	}

	return errors.Join(errs...)
}

// EncryptionKeys decodes the encryption settings. A nil result means
// checkpoints are stored in the clear.
func (c *Config) EncryptionKeys() (*middleware.EncryptionConfig, error) {
	if c.Encryption.Key == "" {
		if len(c.Encryption.FallbackKeys) > 0 {
			return nil, errors.New("encryption.fallback_keys: set without an active key")
		}
		return nil, nil
	}
	active, err := middleware.ParseKey(c.Encryption.Key)
	if err != nil {
		return nil, fmt.Errorf("encryption.key: %w", err)
	}
	out := &middleware.EncryptionConfig{ActiveKey: active}
	for i, k := range c.Encryption.FallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			return nil, fmt.Errorf("encryption.fallback_keys[%d]: %w", i, err)
		}
		out.FallbackKeys = append(out.FallbackKeys, key)
	}
	return out, nil
}
