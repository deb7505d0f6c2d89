// Package config loads and validates harvester configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/etym-crawler/internal/crawler"
	"github.com/JakeFAU/etym-crawler/internal/extract"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Site      SiteConfig        `mapstructure:"site"`
	Selectors extract.Selectors `mapstructure:"selectors"`
	Crawler   CrawlerConfig     `mapstructure:"crawler"`
	HTTP      HTTPConfig        `mapstructure:"http"`
	Cache     CacheConfig       `mapstructure:"cache"`
	Logging   LoggingConfig     `mapstructure:"logging"`
	Metrics   MetricsConfig     `mapstructure:"metrics"`
	Progress  ProgressConfig    `mapstructure:"progress"`
	Tracing   TracingConfig     `mapstructure:"tracing"`
}

// SiteConfig locates the site being harvested.
type SiteConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	SearchPath string `mapstructure:"search_path"`
	UserAgent  string `mapstructure:"user_agent"`
}

// CrawlerConfig governs the worker pool.
type CrawlerConfig struct {
	Concurrency    int    `mapstructure:"concurrency"`
	QueueDepth     int    `mapstructure:"queue_depth"`
	FlushThreshold int    `mapstructure:"flush_threshold"`
	OnPageError    string `mapstructure:"on_page_error"`
	// Buckets restricts the run to these letters; empty means all 26.
	Buckets string `mapstructure:"buckets"`
}

// HTTPConfig configures fetch retries and the connection pool.
type HTTPConfig struct {
	MaxAttempts      int `mapstructure:"max_attempts"`
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	PoolSize         int `mapstructure:"pool_size"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// CacheConfig locates the output directory.
type CacheConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// MetricsConfig enables the observability server when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// ProgressConfig controls periodic progress logging. Zero disables it.
type ProgressConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// TracingConfig turns on OpenTelemetry spans, logged at debug level.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// Load builds a Config from an optional file plus CRAWLER_* environment
// variables. Without an explicit path, etym-crawler.yaml is looked up in the
// working directory and the user config directory.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("etym-crawler")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "etym-crawler"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
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

// DefaultCacheDir is etym-crawler under the user cache directory, or under
// the temp directory when the platform has none.
func DefaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "etym-crawler")
}

func setDefaults(v *viper.Viper) {
	sel := extract.DefaultSelectors()
	v.SetDefault("site.base_url", "https://www.etymonline.com")
	v.SetDefault("site.search_path", "/search")
	v.SetDefault("site.user_agent", "etym-crawler/0.1")
	v.SetDefault("selectors.word_link", sel.WordLink)
	v.SetDefault("selectors.word_name", sel.WordName)
	v.SetDefault("selectors.word_definition", sel.WordDefinition)
	v.SetDefault("selectors.pagination_item", sel.PaginationItem)
	v.SetDefault("selectors.page_number_attr", sel.PageNumberAttr)
	v.SetDefault("selectors.total_count", sel.TotalCount)
	v.SetDefault("crawler.concurrency", runtime.NumCPU())
	v.SetDefault("crawler.queue_depth", 1)
	v.SetDefault("crawler.flush_threshold", 100)
	v.SetDefault("crawler.on_page_error", string(crawler.OnErrorAbort))
	v.SetDefault("crawler.buckets", "")
	v.SetDefault("http.max_attempts", crawler.DefaultMaxAttempts)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.pool_size", 4)
	v.SetDefault("http.backoff_initial_ms", 0)
	v.SetDefault("http.backoff_max_ms", 0)
	v.SetDefault("cache.dir", DefaultCacheDir())
	v.SetDefault("logging.development", true)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("progress.interval", "5s")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "etym-crawler")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	u, err := url.Parse(c.Site.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("site.base_url must be an absolute http(s) url")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.QueueDepth <= 0 {
		return fmt.Errorf("crawler.queue_depth must be > 0")
	}
	if c.Crawler.FlushThreshold <= 0 {
		return fmt.Errorf("crawler.flush_threshold must be > 0")
	}
	if _, err := crawler.ParseOnErrorPolicy(c.Crawler.OnPageError); err != nil {
		return fmt.Errorf("crawler.on_page_error: %w", err)
	}
	if _, err := crawler.ParseBuckets(c.Crawler.Buckets); err != nil {
		return fmt.Errorf("crawler.buckets: %w", err)
	}
	if c.HTTP.MaxAttempts <= 0 {
		return fmt.Errorf("http.max_attempts must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.PoolSize <= 0 {
		return fmt.Errorf("http.pool_size must be > 0")
	}
	if c.HTTP.BackoffInitialMs < 0 || c.HTTP.BackoffMaxMs < 0 {
		return fmt.Errorf("http backoff values must be >= 0")
	}
	if c.HTTP.BackoffMaxMs > 0 && c.HTTP.BackoffMaxMs < c.HTTP.BackoffInitialMs {
		return fmt.Errorf("http.backoff_max_ms must be >= http.backoff_initial_ms")
	}
	if strings.TrimSpace(c.Cache.Dir) == "" {
		return fmt.Errorf("cache.dir must be set")
	}
	if c.Progress.Interval < 0 {
		return fmt.Errorf("progress.interval must be >= 0")
	}
	return nil
}

// Buckets returns the configured bucket subset in crawl order.
func (c Config) Buckets() []crawler.Bucket {
	b, err := crawler.ParseBuckets(c.Crawler.Buckets)
	if err != nil {
		return crawler.Alphabet()
	}
	return b
}

// OnErrorPolicy returns the configured page error policy.
func (c Config) OnErrorPolicy() crawler.OnErrorPolicy {
	p, err := crawler.ParseOnErrorPolicy(c.Crawler.OnPageError)
	if err != nil {
		return crawler.OnErrorAbort
	}
	return p
}

// Timeout is the per-request timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Backoff returns the initial and maximum retry delays.
func (c Config) Backoff() (initial, maximum time.Duration) {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond,
		time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond
}
