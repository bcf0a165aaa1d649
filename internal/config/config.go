package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/elonfeng/datacollect/pkg/source"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned by Validate for unusable configuration.
var ErrInvalid = errors.New("invalid configuration")

// Config is the root configuration.
type Config struct {
	Social     SocialConfig     `yaml:"social"`
	TimeSeries TimeSeriesConfig `yaml:"timeseries"`
	Remote     RemoteConfig     `yaml:"remote"`
	Output     OutputConfig     `yaml:"output"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Database   DatabaseConfig   `yaml:"database"`
	Log        LogConfig        `yaml:"log"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Server     ServerConfig     `yaml:"server"`
}

// SocialConfig configures the Reddit search.
type SocialConfig struct {
	Mode         string   `yaml:"mode"` // "api" or "feed"
	Communities  []string `yaml:"communities"`
	Keyword      string   `yaml:"keyword"`
	Limit        int      `yaml:"limit"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	UserAgent    string   `yaml:"user_agent"`
	Username     string   `yaml:"username"`
	Password     string   `yaml:"password"`
}

// Credentials returns the Reddit API credentials.
func (s SocialConfig) Credentials() source.RedditCredentials {
	return source.RedditCredentials{
		ClientID:     s.ClientID,
		ClientSecret: s.ClientSecret,
		UserAgent:    s.UserAgent,
		Username:     s.Username,
		Password:     s.Password,
	}
}

// TimeSeriesConfig configures the daily price fetch.
type TimeSeriesConfig struct {
	Provider  string   `yaml:"provider"` // "yahoo" or "finnhub"
	Symbols   []string `yaml:"symbols"`
	Start     string   `yaml:"start"`
	End       string   `yaml:"end"`
	APIKey    string   `yaml:"api_key"`
	ServerURL string   `yaml:"server_url"` // finnhub endpoint override (optional)
}

// ParseRange returns the configured [start, end) date range.
func (t TimeSeriesConfig) ParseRange() (source.DateRange, error) {
	start, err := time.Parse(time.DateOnly, t.Start)
	if err != nil {
		return source.DateRange{}, fmt.Errorf("%w: start date %q: %w", ErrInvalid, t.Start, err)
	}
	end, err := time.Parse(time.DateOnly, t.End)
	if err != nil {
		return source.DateRange{}, fmt.Errorf("%w: end date %q: %w", ErrInvalid, t.End, err)
	}
	if !start.Before(end) {
		return source.DateRange{}, fmt.Errorf("%w: start %s is not before end %s", ErrInvalid, t.Start, t.End)
	}
	return source.DateRange{Start: start, End: end}, nil
}

// RemoteConfig configures the generic JSON endpoint.
type RemoteConfig struct {
	URL string `yaml:"url"`
}

// OutputConfig configures where datasets are written.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// PipelineConfig configures run execution.
type PipelineConfig struct {
	Parallel bool   `yaml:"parallel"`
	Timeout  string `yaml:"timeout"`
}

// ParseTimeout returns the run timeout, or 0 for none.
func (p PipelineConfig) ParseTimeout() time.Duration {
	d, err := time.ParseDuration(p.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// DatabaseConfig configures the SQLite run ledger. An empty path disables it.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level      string `yaml:"level"`
	Console    bool   `yaml:"console"`
	File       bool   `yaml:"file"`
	FilePath   string `yaml:"file_path"`
	MaxSize    int    `yaml:"max_size"` // megabytes
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"` // days
}

// AlertsConfig configures run notifications.
type AlertsConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Social: SocialConfig{
			Mode:        "api",
			Communities: []string{"CryptoCurrency", "Bitcoin"},
			Keyword:     "crypto",
			Limit:       200,
		},
		TimeSeries: TimeSeriesConfig{
			Provider: "yahoo",
			Symbols:  []string{"BTC-USD", "ETH-USD", "AAPL", "TSLA", "GOOGL", "MSFT"},
			Start:    "2023-01-01",
			End:      "2025-01-01",
		},
		Remote: RemoteConfig{
			URL: "https://raw.githubusercontent.com/ugurcan-sevinc/Curr-JSON-Dataset/refs/heads/main/CurrencyJSONDataSet.json",
		},
		Output:   OutputConfig{Dir: "datasets"},
		Database: DatabaseConfig{Path: "./datacollect.db"},
		Log: LogConfig{
			Level:      "info",
			Console:    true,
			FilePath:   "./logs/datacollect.log",
			MaxSize:    100,
			MaxBackups: 7,
			MaxAge:     30,
		},
		Server: ServerConfig{Port: 8080},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Validate checks the options a run depends on. Credentials are not checked here;
// missing ones surface as an authentication error from the fetcher.
func (c *Config) Validate() error {
	var errs []error

	switch c.Social.Mode {
	case "api", "feed":
	default:
		errs = append(errs, fmt.Errorf("%w: social.mode %q (want api or feed)", ErrInvalid, c.Social.Mode))
	}
	if c.Social.Limit <= 0 {
		errs = append(errs, fmt.Errorf("%w: social.limit must be positive", ErrInvalid))
	}

	switch c.TimeSeries.Provider {
	case "yahoo", "finnhub":
	default:
		errs = append(errs, fmt.Errorf("%w: timeseries.provider %q (want yahoo or finnhub)", ErrInvalid, c.TimeSeries.Provider))
	}
	if _, err := c.TimeSeries.ParseRange(); err != nil {
		errs = append(errs, err)
	}

	if strings.TrimSpace(c.Remote.URL) == "" {
		errs = append(errs, fmt.Errorf("%w: remote.url is required", ErrInvalid))
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		errs = append(errs, fmt.Errorf("%w: output.dir is required", ErrInvalid))
	}

	return errors.Join(errs...)
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REDDIT_CLIENT_ID"); v != "" {
		cfg.Social.ClientID = v
	}
	if v := os.Getenv("REDDIT_CLIENT_SECRET"); v != "" {
		cfg.Social.ClientSecret = v
	}
	if v := os.Getenv("REDDIT_USER_AGENT"); v != "" {
		cfg.Social.UserAgent = v
	}
	if v := os.Getenv("REDDIT_USER_NAME"); v != "" {
		cfg.Social.Username = v
	}
	if v := os.Getenv("REDDIT_USER_PASSWORD"); v != "" {
		cfg.Social.Password = v
	}
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		cfg.TimeSeries.APIKey = v
	}
	if v := os.Getenv("DATACOLLECT_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("DATACOLLECT_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("DATACOLLECT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
}
