// Package config loads and validates poll compiler configuration via Viper.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/EvRoHa/CFB-Poll-Compiler/internal/fetcher"
	"github.com/EvRoHa/CFB-Poll-Compiler/internal/policy/ratelimit"
	"github.com/EvRoHa/CFB-Poll-Compiler/internal/source"
)

// HTTP client backends.
const (
	ClientColly = "colly"
	ClientResty = "resty"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Sources SourcesConfig `mapstructure:"sources"`
	Scrape  ScrapeConfig  `mapstructure:"scrape"`
	Output  OutputConfig  `mapstructure:"output"`
	Storage StorageConfig `mapstructure:"storage"`
	DB      DBConfig      `mapstructure:"db"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// HTTPConfig configures the fetch transport and its retry behavior.
type HTTPConfig struct {
	Client         string `mapstructure:"client"`
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxAttempts    int    `mapstructure:"max_attempts"`
	BackoffBaseMs  int    `mapstructure:"backoff_base_ms"`
	BackoffMaxMs   int    `mapstructure:"backoff_max_ms"`

	// RequestsPerSecond paces requests per host; 0 disables pacing.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// SourcesConfig points at the upstream poll sites.
type SourcesConfig struct {
	RankTableBaseURL string `mapstructure:"ranktable_base_url"`
	VoterListBaseURL string `mapstructure:"voterlist_base_url"`
}

// ScrapeConfig tunes detail-page fan-out.
type ScrapeConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// OutputConfig sets where exported files go.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// StorageConfig selects a GCS bucket instead of the local output dir.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig enables persisting flattened ballots to Postgres.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("POLLC")
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("http.client", ClientColly)
	v.SetDefault("http.user_agent", fetcher.DefaultUserAgent)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_attempts", fetcher.DefaultMaxAttempts)
	v.SetDefault("http.backoff_base_ms", int(fetcher.DefaultBaseDelay/time.Millisecond))
	v.SetDefault("http.backoff_max_ms", 0)
	v.SetDefault("http.requests_per_second", 0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("sources.ranktable_base_url", source.DefaultRankTableBaseURL)
	v.SetDefault("sources.voterlist_base_url", source.DefaultVoterListBaseURL)
	v.SetDefault("scrape.concurrency", 1)
	v.SetDefault("output.dir", ".")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "poll_ballots")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.HTTP.Client {
	case ClientColly, ClientResty:
	default:
		return fmt.Errorf("http.client must be %q or %q, got %q", ClientColly, ClientResty, c.HTTP.Client)
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxAttempts <= 0 {
		return fmt.Errorf("http.max_attempts must be > 0")
	}
	if c.HTTP.BackoffBaseMs < 0 || c.HTTP.BackoffMaxMs < 0 {
		return fmt.Errorf("http.backoff_base_ms and http.backoff_max_ms must be >= 0")
	}
	if c.HTTP.RequestsPerSecond < 0 || c.HTTP.Burst <= 0 {
		return fmt.Errorf("http.requests_per_second must be >= 0 and http.burst > 0")
	}
	if c.Scrape.Concurrency <= 0 {
		return fmt.Errorf("scrape.concurrency must be > 0")
	}
	if c.DB.DSN != "" && !validTableName.MatchString(c.DB.Table) {
		return fmt.Errorf("db.table %q is not a valid table name", c.DB.Table)
	}
	return nil
}

// RetryPolicy converts the HTTP settings into a fetcher policy.
func (c Config) RetryPolicy() fetcher.RetryPolicy {
	return fetcher.RetryPolicy{
		MaxAttempts: c.HTTP.MaxAttempts,
		BaseDelay:   time.Duration(c.HTTP.BackoffBaseMs) * time.Millisecond,
		MaxDelay:    time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond,
	}
}

// RateLimit converts the pacing settings for ratelimit.New.
func (c Config) RateLimit() ratelimit.Config {
	return ratelimit.Config{
		RequestsPerSecond: c.HTTP.RequestsPerSecond,
		Burst:             c.HTTP.Burst,
	}
}

// RequestTimeout is the per-attempt HTTP timeout.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// SourceConfig converts the source settings for source.New.
func (c Config) SourceConfig() source.Config {
	return source.Config{
		RankTableBaseURL: c.Sources.RankTableBaseURL,
		VoterListBaseURL: c.Sources.VoterListBaseURL,
		Concurrency:      c.Scrape.Concurrency,
	}
}
