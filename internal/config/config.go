package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	API     APIConfig     `yaml:"api"`
	AI      AIConfig      `yaml:"ai"`
	Budget  BudgetConfig  `yaml:"budget"`
	Cache   CacheConfig   `yaml:"cache"`
	Watch   WatchConfig   `yaml:"watch"`
	Webhook WebhookConfig `yaml:"webhook"`
	Data    DataConfig    `yaml:"data"`
}

type APIConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Key           string        `yaml:"key"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerMinute int           `yaml:"rate_per_minute"`
}

type AIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Key     string        `yaml:"key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type BudgetConfig struct {
	DailyLimit float64 `yaml:"daily_limit"`
}

type CacheConfig struct {
	TTL     time.Duration `yaml:"ttl"`
	FastTTL time.Duration `yaml:"fast_ttl"`
}

type WatchConfig struct {
	MinInterval time.Duration `yaml:"min_interval"`
	MaxFailures int           `yaml:"max_failures"`
	WindowSize  int           `yaml:"window_size"`
	BackoffBase time.Duration `yaml:"backoff_base"`
	BackoffMax  time.Duration `yaml:"backoff_max"`
}

type WebhookConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	BackoffBase time.Duration `yaml:"backoff_base"`
}

type DataConfig struct {
	Dir string `yaml:"dir"`
}

func Load(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		path = defaultConfigPath()
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:       "https://api.twitterapi.io",
			Timeout:       30 * time.Second,
			RatePerMinute: 60,
		},
		AI: AIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: 60 * time.Second,
		},
		Budget: BudgetConfig{
			DailyLimit: 5.00,
		},
		Cache: CacheConfig{
			TTL:     15 * time.Minute,
			FastTTL: 2 * time.Minute,
		},
		Watch: WatchConfig{
			MinInterval: 5 * time.Second,
			MaxFailures: 5,
			WindowSize:  500,
			BackoffBase: 2 * time.Second,
			BackoffMax:  2 * time.Minute,
		},
		Webhook: WebhookConfig{
			Timeout:     10 * time.Second,
			MaxRetries:  3,
			BackoffBase: time.Second,
		},
		Data: DataConfig{
			Dir: defaultDataDir(),
		},
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "spyglass", "config.yaml")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".spyglass"
	}
	return filepath.Join(home, ".local", "share", "spyglass")
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SPYGLASS_API_KEY"); v != "" {
		cfg.API.Key = v
	}
	if v := os.Getenv("SPYGLASS_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("SPYGLASS_AI_KEY"); v != "" {
		cfg.AI.Key = v
	}
	if v := os.Getenv("SPYGLASS_AI_URL"); v != "" {
		cfg.AI.BaseURL = v
	}
	if v := os.Getenv("SPYGLASS_DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv("SPYGLASS_DAILY_LIMIT"); v != "" {
		var limit float64
		if _, err := fmt.Sscanf(v, "%f", &limit); err == nil && limit > 0 {
			cfg.Budget.DailyLimit = limit
		}
	}
}

// DBPath returns the location of the SQLite database that holds the budget
// ledger and response cache.
func (c *Config) DBPath() string {
	return filepath.Join(c.Data.Dir, "spyglass.db")
}
