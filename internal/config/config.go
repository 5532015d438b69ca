// Package config loads run configuration from a YAML file, a .env file,
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"keyword-crawler/internal/engine"
)

const (
	BackendFirecrawl = "firecrawl"
	BackendDirect    = "direct"
)

// Defaults.
const (
	DefaultBatchSize       = 5
	DefaultConcurrency     = 1
	DefaultEndpoint        = "http://localhost:3002"
	DefaultTimeout         = 30 * time.Second
	DefaultDialTimeout     = 5 * time.Second
	DefaultMaxBodyBytes    = 5 * 1024 * 1024
	DefaultMaxChildSitemap = 20
	DefaultLogLevel        = "info"
	DefaultServerAddress   = ":8080"
)

type Config struct {
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
}

type CrawlConfig struct {
	TargetURL   string `mapstructure:"target_url"`
	Keyword     string `mapstructure:"keyword"`
	BatchSize   int    `mapstructure:"batch_size"`
	Concurrency int    `mapstructure:"concurrency"`
	// URLsFile replaces sitemap discovery with a CSV or NDJSON list of URLs.
	URLsFile string `mapstructure:"urls_file"`
}

type ExtractorConfig struct {
	Backend          string        `mapstructure:"backend"`
	ServiceEndpoint  string        `mapstructure:"service_endpoint"`
	APIKey           string        `mapstructure:"api_key"`
	Timeout          time.Duration `mapstructure:"timeout"`
	DialTimeout      time.Duration `mapstructure:"dial_timeout"`
	MaxBodyBytes     int64         `mapstructure:"max_body_bytes"`
	MaxChildSitemaps int           `mapstructure:"max_child_sitemaps"`
	UserAgent        string        `mapstructure:"user_agent"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// Engine returns the subset of the configuration the crawl engine consumes.
func (c *Config) Engine() engine.Config {
	return engine.Config{
		TargetURL:   c.Crawl.TargetURL,
		Keyword:     c.Crawl.Keyword,
		BatchSize:   c.Crawl.BatchSize,
		Concurrency: c.Crawl.Concurrency,
	}
}

// Validate checks everything a run needs. Errors are *engine.ConfigurationError.
func (c *Config) Validate() error {
	if err := c.ValidateService(); err != nil {
		return err
	}
	return c.Engine().Validate()
}

// ValidateService checks the settings shared by every run, leaving the
// per-run target and keyword unchecked. The HTTP server uses it at startup.
func (c *Config) ValidateService() error {
	switch c.Extractor.Backend {
	case BackendFirecrawl:
		if c.Extractor.ServiceEndpoint == "" {
			return &engine.ConfigurationError{Field: "extractor.service_endpoint", Reason: "is required for the firecrawl backend"}
		}
	case BackendDirect:
	default:
		return &engine.ConfigurationError{Field: "extractor.backend", Reason: fmt.Sprintf("unknown backend %q", c.Extractor.Backend)}
	}
	if c.Extractor.Timeout <= 0 {
		return &engine.ConfigurationError{Field: "extractor.timeout", Reason: "must be positive"}
	}
	if c.Extractor.MaxBodyBytes <= 0 {
		return &engine.ConfigurationError{Field: "extractor.max_body_bytes", Reason: "must be positive"}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawl.target_url", "")
	v.SetDefault("crawl.keyword", "")
	v.SetDefault("crawl.batch_size", DefaultBatchSize)
	v.SetDefault("crawl.concurrency", DefaultConcurrency)
	v.SetDefault("crawl.urls_file", "")
	v.SetDefault("extractor.backend", BackendFirecrawl)
	v.SetDefault("extractor.service_endpoint", DefaultEndpoint)
	v.SetDefault("extractor.api_key", "")
	v.SetDefault("extractor.timeout", DefaultTimeout)
	v.SetDefault("extractor.dial_timeout", DefaultDialTimeout)
	v.SetDefault("extractor.max_body_bytes", DefaultMaxBodyBytes)
	v.SetDefault("extractor.max_child_sitemaps", DefaultMaxChildSitemap)
	v.SetDefault("extractor.user_agent", "")
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.development", false)
	v.SetDefault("server.address", DefaultServerAddress)
}

// legacyEnv maps environment variable names used by earlier deployments to
// config keys.
var legacyEnv = map[string]string{
	"extractor.service_endpoint": "FIRECRAWL_URL",
	"extractor.api_key":          "FIRECRAWL_API_KEY",
	"log.level":                  "LOG_LEVEL",
}

// Load reads the configuration. path may be empty, in which case
// ./config.yaml and ./config/config.yaml are tried and a missing file is not
// an error. flags, when non-nil, are bound by their config key names.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"url":         "crawl.target_url",
	"keyword":     "crawl.keyword",
	"batch-size":  "crawl.batch_size",
	"concurrency": "crawl.concurrency",
	"urls-file":   "crawl.urls_file",
	"backend":     "extractor.backend",
	"endpoint":    "extractor.service_endpoint",
	"timeout":     "extractor.timeout",
	"log-level":   "log.level",
	"addr":        "server.address",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}
