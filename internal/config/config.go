// Package config loads application configuration from YAML, .env and
// environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       App       `mapstructure:"app"`
	AI        AI        `mapstructure:"ai"`
	Database  Database  `mapstructure:"database"`
	Redis     Redis     `mapstructure:"redis"`
	Sources   Sources   `mapstructure:"sources"`
	Signals   Signals   `mapstructure:"signals"`
	Pipeline  Pipeline  `mapstructure:"pipeline"`
	Retrieval Retrieval `mapstructure:"retrieval"`
	Server    Server    `mapstructure:"server"`
	Export    Export    `mapstructure:"export"`
}

// App holds general application configuration.
type App struct {
	LogLevel     string `mapstructure:"log_level"`
	ModelVersion string `mapstructure:"model_version"`
}

// AI holds configuration for the embedding/completion capability.
type AI struct {
	Gemini Gemini `mapstructure:"gemini"`
}

// Gemini holds Google Gemini configuration.
type Gemini struct {
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxTokens      int32         `mapstructure:"max_tokens"`
	Temperature    float32       `mapstructure:"temperature"`
}

// Database holds Postgres connection settings.
type Database struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// Redis holds the snapshot cache connection settings.
type Redis struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Sources holds per-provider configuration for content ingestion.
type Sources struct {
	Enabled         []string      `mapstructure:"enabled"`
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
	Finnhub         ProviderKey   `mapstructure:"finnhub"`
	NewsAPI         ProviderKey   `mapstructure:"news_api"`
	RSS             RSSConfig     `mapstructure:"rss"`
}

// ProviderKey holds credentials for a keyed provider.
type ProviderKey struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// RSSConfig holds the feed list for the RSS provider.
type RSSConfig struct {
	Feeds []string `mapstructure:"feeds"`
}

// Signals holds the optional external quantitative feed. When Endpoint is
// empty the pipeline derives indicators from the ingested corpus instead.
type Signals struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Pipeline holds orchestration settings for snapshot generation.
type Pipeline struct {
	EmbedBatchSize  int           `mapstructure:"embed_batch_size"`
	EmbedBatchDelay time.Duration `mapstructure:"embed_batch_delay"`
	SnapshotTTL     int           `mapstructure:"snapshot_ttl_minutes"`
	RunInterval     time.Duration `mapstructure:"run_interval"`
	IngestWindow    time.Duration `mapstructure:"ingest_window"`
}

// Retrieval holds defaults for the query/answer service.
type Retrieval struct {
	DefaultLimit     int     `mapstructure:"default_limit"`
	MaxLimit         int     `mapstructure:"max_limit"`
	DefaultThreshold float64 `mapstructure:"default_threshold"`
}

// Server holds HTTP server configuration.
type Server struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
}

// Export holds report-generation settings.
type Export struct {
	OutputDir string `mapstructure:"output_dir"`
}

var globalConfig *Config

// Load loads the configuration from file, .env and environment.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".marketintel")
		viper.SetConfigType("yaml")
	}

	setDefaults()

	viper.SetEnvPrefix("MARKETINTEL")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary.
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

func setDefaults() {
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.model_version", "market-intel-v2")

	viper.SetDefault("ai.gemini.model", "gemini-flash-lite-latest")
	viper.SetDefault("ai.gemini.embedding_model", "gemini-embedding-001")
	viper.SetDefault("ai.gemini.timeout", "30s")
	viper.SetDefault("ai.gemini.max_tokens", 2048)
	viper.SetDefault("ai.gemini.temperature", 0.3)

	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")

	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("sources.enabled", []string{"finnhub", "news_api", "rss"})
	viper.SetDefault("sources.provider_timeout", "15s")

	viper.SetDefault("signals.endpoint", "")
	viper.SetDefault("signals.timeout", "15s")

	viper.SetDefault("pipeline.embed_batch_size", 5)
	viper.SetDefault("pipeline.embed_batch_delay", "1s")
	viper.SetDefault("pipeline.snapshot_ttl_minutes", 360)
	viper.SetDefault("pipeline.run_interval", "6h")
	viper.SetDefault("pipeline.ingest_window", "168h")

	viper.SetDefault("retrieval.default_limit", 10)
	viper.SetDefault("retrieval.max_limit", 100)
	viper.SetDefault("retrieval.default_threshold", 0.8)

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "30s")

	viper.SetDefault("export.output_dir", "exports")
}

func validate(config *Config) error {
	if config.Pipeline.EmbedBatchSize <= 0 {
		return fmt.Errorf("pipeline.embed_batch_size must be positive")
	}
	if config.Pipeline.SnapshotTTL <= 0 {
		return fmt.Errorf("pipeline.snapshot_ttl_minutes must be positive")
	}
	if config.Retrieval.DefaultThreshold < 0 || config.Retrieval.DefaultThreshold > 1 {
		return fmt.Errorf("retrieval.default_threshold must be in [0, 1]")
	}
	return nil
}
