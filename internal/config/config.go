// Package config loads the pipeline configuration from a YAML file with
// .env / environment overrides for deploy-time values.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Dataset struct {
		Dir      string   `yaml:"dir"`
		TopN     int      `yaml:"top_n"`
		Title    string   `yaml:"title"`
		ID       string   `yaml:"id"`
		License  string   `yaml:"license"`
		Keywords []string `yaml:"keywords"`
	} `yaml:"dataset"`
	Sources struct {
		RankingURL    string `yaml:"ranking_url"`
		PriceURL      string `yaml:"price_url"`
		MinIntervalMs int    `yaml:"min_interval_ms"`
		MaxAttempts   int    `yaml:"max_attempts"`
	} `yaml:"sources"`
	Pipeline struct {
		Concurrency    int `yaml:"concurrency"`
		TimeoutMinutes int `yaml:"timeout_minutes"`
	} `yaml:"pipeline"`
	Registry struct {
		Path string `yaml:"path"`
	} `yaml:"registry"`
	Publish struct {
		Enabled bool   `yaml:"enabled"`
		Bucket  string `yaml:"bucket"`
		Prefix  string `yaml:"prefix"`
	} `yaml:"publish"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Schedule struct {
		Cron string `yaml:"cron"`
	} `yaml:"schedule"`
	Status struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"status"`
}

// Load reads the YAML file at path and applies environment overrides.
// A .env file next to the binary is honored when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Dataset.Dir == "" {
		c.Dataset.Dir = "crypto_data"
	}
	if c.Dataset.TopN == 0 {
		c.Dataset.TopN = 100
	}
	if c.Sources.MinIntervalMs == 0 {
		c.Sources.MinIntervalMs = 1500
	}
	if c.Sources.MaxAttempts == 0 {
		c.Sources.MaxAttempts = 4
	}
	if c.Pipeline.Concurrency == 0 {
		c.Pipeline.Concurrency = 4
	}
	if c.Pipeline.TimeoutMinutes == 0 {
		c.Pipeline.TimeoutMinutes = 60
	}
	if c.Registry.Path == "" {
		c.Registry.Path = "registry.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Schedule.Cron == "" {
		// Weekly, Monday 03:00 UTC.
		c.Schedule.Cron = "0 3 * * 1"
	}
	if c.Status.Port == 0 {
		c.Status.Port = 8090
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DATASET_DIR"); v != "" {
		c.Dataset.Dir = v
	}
	if v := os.Getenv("DATASET_TOP_N"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Dataset.TopN = n
		}
	}
	if v := os.Getenv("PUBLISH_BUCKET"); v != "" {
		c.Publish.Bucket = v
		c.Publish.Enabled = true
	}
	if v := os.Getenv("PUBLISH_PREFIX"); v != "" {
		c.Publish.Prefix = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("STATUS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Status.Port = n
			c.Status.Enabled = true
		}
	}
}
