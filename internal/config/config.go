// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all pipeline configuration knobs loaded via Viper.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	DB         DBConfig         `mapstructure:"db"`
	Refdata    RefdataConfig    `mapstructure:"refdata"`
	Search     SearchConfig     `mapstructure:"search"`
	Dataset    DatasetConfig    `mapstructure:"dataset"`
	Content    ContentConfig    `mapstructure:"content"`
	Reviews    ReviewConfig     `mapstructure:"reviews"`
	Server     ServerConfig     `mapstructure:"server"`
}

// LoggingConfig selects the zap mode and level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// CheckpointConfig sets where progress documents live.
type CheckpointConfig struct {
	Dir string `mapstructure:"dir"`
}

// DBConfig controls access to the record database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// RefdataConfig points at the static country/category tables.
type RefdataConfig struct {
	Dir string `mapstructure:"dir"`
}

// SearchConfig configures the local-search provider.
type SearchConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	ResultLimit int           `mapstructure:"result_limit"`
	Delay       time.Duration `mapstructure:"delay"`
	MaxRetries  int           `mapstructure:"max_retries"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
}

// DatasetConfig configures the async dataset-collection provider.
type DatasetConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	DatasetID    string        `mapstructure:"dataset_id"`
	BatchSize    int           `mapstructure:"batch_size"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	PollBudget   time.Duration `mapstructure:"poll_budget"`
	Delay        time.Duration `mapstructure:"delay"`
	MaxRetries   int           `mapstructure:"max_retries"`
	BaseBackoff  time.Duration `mapstructure:"base_backoff"`
}

// ContentConfig configures the generative text provider.
type ContentConfig struct {
	Endpoint     string        `mapstructure:"endpoint"`
	APIKey       string        `mapstructure:"api_key"`
	Model        string        `mapstructure:"model"`
	BatchSize    int           `mapstructure:"batch_size"`
	MinDescChars int           `mapstructure:"min_desc_chars"`
	Delay        time.Duration `mapstructure:"delay"`
	MaxRetries   int           `mapstructure:"max_retries"`
	BaseBackoff  time.Duration `mapstructure:"base_backoff"`
}

// ReviewConfig bounds third-party review retention.
type ReviewConfig struct {
	Max      int `mapstructure:"max"`
	MaxChars int `mapstructure:"max_chars"`
	MinChars int `mapstructure:"min_chars"`
}

// ServerConfig controls the optional status HTTP server.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PLACEPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("checkpoint.dir", "data/checkpoints")
	v.SetDefault("refdata.dir", "data/refdata")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("search.result_limit", 20)
	v.SetDefault("search.delay", "1500ms")
	v.SetDefault("search.max_retries", 3)
	v.SetDefault("search.base_backoff", "2s")
	v.SetDefault("dataset.batch_size", 25)
	v.SetDefault("dataset.poll_interval", "5s")
	v.SetDefault("dataset.poll_budget", "3m")
	v.SetDefault("dataset.delay", "1s")
	v.SetDefault("dataset.max_retries", 3)
	v.SetDefault("dataset.base_backoff", "2s")
	v.SetDefault("content.endpoint", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("content.model", "gpt-4o-mini")
	v.SetDefault("content.batch_size", 50)
	v.SetDefault("content.min_desc_chars", 80)
	v.SetDefault("content.delay", "1s")
	v.SetDefault("content.max_retries", 2)
	v.SetDefault("content.base_backoff", "3s")
	v.SetDefault("reviews.max", 5)
	v.SetDefault("reviews.max_chars", 600)
	v.SetDefault("reviews.min_chars", 20)
	v.SetDefault("server.listen", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Checkpoint.Dir == "" {
		return fmt.Errorf("checkpoint.dir must be set")
	}
	if c.Search.ResultLimit <= 0 {
		return fmt.Errorf("search.result_limit must be > 0")
	}
	if c.Dataset.BatchSize <= 0 {
		return fmt.Errorf("dataset.batch_size must be > 0")
	}
	if c.Dataset.PollInterval <= 0 || c.Dataset.PollBudget <= 0 {
		return fmt.Errorf("dataset poll interval and budget must be > 0")
	}
	if c.Content.BatchSize <= 0 {
		return fmt.Errorf("content.batch_size must be > 0")
	}
	if c.Reviews.Max <= 0 || c.Reviews.MaxChars <= 0 {
		return fmt.Errorf("reviews.max and reviews.max_chars must be > 0")
	}
	if c.Reviews.MinChars > c.Reviews.MaxChars {
		return fmt.Errorf("reviews.min_chars must not exceed reviews.max_chars")
	}
	return nil
}
