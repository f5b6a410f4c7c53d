package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models growline.yml.
type Config struct {
	Growth struct {
		Catalog   string        `yaml:"catalog"`
		Endpoint  string        `yaml:"endpoint"`
		Timeout   time.Duration `yaml:"timeout"`
		CacheSize int           `yaml:"cache_size"`
		CacheTTL  time.Duration `yaml:"cache_ttl"`
	} `yaml:"growth"`
	Dispatch struct {
		Concurrency int `yaml:"concurrency"`
	} `yaml:"dispatch"`
	Tasks struct {
		UpsertOpenSystemTasks bool `yaml:"upsert_open_system_tasks"`
	} `yaml:"tasks"`
	Defaults Defaults `yaml:"defaults"`
	Log      struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Webhooks []Webhook `yaml:"webhooks"`
}

// Defaults are used when a grow instruction leaves a value unspecified.
type Defaults struct {
	DaysToSproutMin                 int `yaml:"days_to_sprout_min"`
	DaysToSproutMax                 int `yaml:"days_to_sprout_max"`
	FertilizeFrequencyWeeks         int `yaml:"fertilize_frequency_weeks"`
	SeedlingFertilizeFrequencyWeeks int `yaml:"seedling_fertilize_frequency_weeks"`
	HardenOffLeadDays               int `yaml:"harden_off_lead_days"`
}

// Webhook forwards lifecycle events to an HTTP endpoint.
type Webhook struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// Active reports whether the webhook should receive events.
func (w Webhook) Active() bool {
	return w.Enabled == nil || *w.Enabled
}

// Load reads and validates config from workspace, falling back to defaults when the file is missing.
func Load(workspace string) (*Config, error) {
	cfg, err := LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return Default(), nil
	}
	return cfg, nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Growth.Catalog != "" && c.Growth.Endpoint != "" {
		return fmt.Errorf("config.growth: set either catalog or endpoint, not both")
	}
	if c.Growth.CacheSize < 0 {
		return fmt.Errorf("config.growth.cache_size must not be negative")
	}
	if c.Dispatch.Concurrency < 1 {
		return fmt.Errorf("config.dispatch.concurrency must be at least 1")
	}
	d := c.Defaults
	if d.DaysToSproutMin < 1 || d.DaysToSproutMax < d.DaysToSproutMin {
		return fmt.Errorf("config.defaults: days_to_sprout_min must be positive and not above days_to_sprout_max")
	}
	if d.FertilizeFrequencyWeeks < 1 || d.SeedlingFertilizeFrequencyWeeks < 1 {
		return fmt.Errorf("config.defaults: fertilize frequencies must be at least one week")
	}
	if d.HardenOffLeadDays < 1 {
		return fmt.Errorf("config.defaults.harden_off_lead_days must be positive")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.log.level must be one of debug, info, warn, error")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("config.log.format must be text or json")
	}
	for i, wh := range c.Webhooks {
		if wh.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		if wh.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must not be negative", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "growline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	cfg, err := FromYAML(data)
	if err != nil {
		return nil, err
	}
	if cfg.Growth.Catalog != "" && !filepath.IsAbs(cfg.Growth.Catalog) {
		cfg.Growth.Catalog = filepath.Join(workspace, cfg.Growth.Catalog)
	}
	return cfg, nil
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(defaultTemplate), &cfg); err != nil {
		panic(fmt.Sprintf("default config template: %v", err))
	}
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys left out keep their defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `growth:
  # catalog: plants.yml
  # endpoint: https://plants.example.com/api
  timeout: 10s
  cache_size: 256
  cache_ttl: 10m

dispatch:
  concurrency: 4

tasks:
  upsert_open_system_tasks: true

defaults:
  days_to_sprout_min: 7
  days_to_sprout_max: 14
  fertilize_frequency_weeks: 3
  seedling_fertilize_frequency_weeks: 5
  harden_off_lead_days: 14

log:
  level: info
  format: text

webhooks: []
`
