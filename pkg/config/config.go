// Package config handles loading and managing credscope configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/credscope/credscope/pkg/scoring"
)

// Config is the top-level configuration for credscope.
type Config struct {
	Scoring   ScoringConfig   `yaml:"scoring"`
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	Indexer   IndexerConfig   `yaml:"indexer"`
	Social    SocialConfig    `yaml:"social"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Events    EventsConfig    `yaml:"events"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

// ScoringConfig is the calculation tree plus engine limits.
type ScoringConfig struct {
	BaseScore float64                    `yaml:"base_score"`
	Timeout   int                        `yaml:"timeout"` // seconds
	Signals   []scoring.SignalDefinition `yaml:"signals"`
}

// DatabaseConfig selects the SQL backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // postgres or sqlite
	URL    string `yaml:"url"`
	// MaxScoreAge is how old a stored score may get before it is rescored, in hours.
	MaxScoreAge int `yaml:"max_score_age"`
}

// ServerConfig controls the daemon.
type ServerConfig struct {
	Port            string `yaml:"port"`
	RescoreSchedule string `yaml:"rescore_schedule"` // cron expression, empty disables
	RescoreBatch    int    `yaml:"rescore_batch"`
	RescoreParallel int    `yaml:"rescore_parallel"`
	APIKey          string `yaml:"api_key"`    // empty disables auth
	RateLimit       int    `yaml:"rate_limit"` // requests per minute per client, 0 disables
}

// IndexerConfig points at an Etherscan-compatible API.
type IndexerConfig struct {
	URL               string  `yaml:"url"`
	APIKey            string  `yaml:"api_key"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// SocialConfig controls the social profile cache.
type SocialConfig struct {
	Service       string `yaml:"service"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	TTL           int    `yaml:"ttl"` // hours
	GitHubToken   string `yaml:"github_token"`
}

// ArchiveConfig selects where explained results are archived.
type ArchiveConfig struct {
	Backend   string `yaml:"backend"` // local, s3, gcs or empty to disable
	Path      string `yaml:"path"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// EventsConfig controls score event publishing.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Scoring: ScoringConfig{
			BaseScore: scoring.DefaultBaseScore,
			Timeout:   5,
		},
		Database: DatabaseConfig{
			Driver:      "sqlite",
			MaxScoreAge: 24,
		},
		Server: ServerConfig{
			Port:            "8080",
			RescoreSchedule: "@every 1h",
			RescoreBatch:    500,
			RescoreParallel: 4,
			RateLimit:       120,
		},
		Indexer: IndexerConfig{
			URL:               "https://api.etherscan.io/api",
			RequestsPerSecond: 5,
		},
		Social: SocialConfig{
			Service: "x.com",
			TTL:     24 * 7,
		},
		Archive: ArchiveConfig{},
		Events: EventsConfig{
			Subject: "credscope.scores",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a config file from the given path.
// If the file does not exist, it returns the default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides settings from well-known environment variables.
func (c *Config) ApplyEnv() {
	setString(&c.Server.Port, "PORT")
	setString(&c.Server.APIKey, "CREDSCOPE_API_KEY")
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
		c.Database.Driver = "postgres"
	}
	setString(&c.Database.Driver, "DATABASE_DRIVER")
	setString(&c.Indexer.URL, "CHAIN_INDEXER_URL")
	setString(&c.Indexer.APIKey, "CHAIN_INDEXER_API_KEY")
	setString(&c.Social.RedisAddr, "REDIS_ADDR")
	setString(&c.Social.RedisPassword, "REDIS_PASSWORD")
	setString(&c.Social.GitHubToken, "GITHUB_TOKEN")
	setString(&c.Archive.Backend, "ARCHIVE_BACKEND")
	setString(&c.Archive.Bucket, "ARCHIVE_BUCKET")
	setString(&c.Archive.Path, "ARCHIVE_PATH")
	setString(&c.Events.NATSURL, "NATS_URL")
	setString(&c.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&c.Log.Level, "CREDSCOPE_LOG_LEVEL")
	if v := os.Getenv("CREDSCOPE_JSON_LOG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Log.JSON = b
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Tree returns the configured calculation tree, or the default tree when no
// signals are configured.
func (c *Config) Tree() scoring.Tree {
	if len(c.Scoring.Signals) == 0 {
		tree := scoring.DefaultTree()
		if c.Scoring.BaseScore != 0 {
			tree.BaseScore = c.Scoring.BaseScore
		}
		return tree
	}
	return scoring.Tree{
		BaseScore: c.Scoring.BaseScore,
		Signals:   c.Scoring.Signals,
	}
}

// Timeout returns the engine request deadline.
func (c *Config) Timeout() time.Duration {
	if c.Scoring.Timeout <= 0 {
		return scoring.DefaultTimeout
	}
	return time.Duration(c.Scoring.Timeout) * time.Second
}

// MaxScoreAge returns how long a stored score stays fresh.
func (c *Config) MaxScoreAge() time.Duration {
	return time.Duration(c.Database.MaxScoreAge) * time.Hour
}

// FindConfigFile looks for .credscope/config.yaml in the given directory
// and its parents, returning the path if found, or "" if not.
func FindConfigFile(dir string) string {
	for {
		candidate := filepath.Join(dir, ".credscope", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// CacheDir returns the directory for local CLI state.
// Uses ~/.cache/credscope to stay out of the working directory.
func CacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to temp dir if HOME isn't available
		home = os.TempDir()
	}
	return filepath.Join(home, ".cache", "credscope")
}

// LocalDatabasePath returns the sqlite database used by the CLI.
func LocalDatabasePath() string {
	return filepath.Join(CacheDir(), "credscope.db")
}
