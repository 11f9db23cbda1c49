package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone   = "Asia/Shanghai"
	configPathEnv     = "REPORT_HARVESTER_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	extractionKeyEnv  = "EXTRACTION_API_KEY"
)

// Config holds high-level settings required across the application.
type Config struct {
	MinPages      int                `yaml:"min_pages"`
	DownloadDir   string             `yaml:"download_dir"`
	YearsAgo      int                `yaml:"years_ago"`
	MaxRetries    int                `yaml:"max_retries"`
	Workers       int                `yaml:"workers"`
	Remote        RemoteConfig       `yaml:"remote"`
	Download      DownloadConfig     `yaml:"download"`
	Politeness    PolitenessConfig   `yaml:"politeness"`
	Cache         CacheConfig        `yaml:"cache"`
	Storage       StorageConfig      `yaml:"storage"`
	Universe      UniverseConfig     `yaml:"universe"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Notifications NotificationConfig `yaml:"notifications"`
	Extraction    ExtractionConfig   `yaml:"extraction"`
	Logging       LoggingConfig      `yaml:"logging"`
}

// RemoteConfig points at the report provider. Empty URLs select the public endpoints.
type RemoteConfig struct {
	ListURL        string        `yaml:"list_url"`
	DetailBaseURL  string        `yaml:"detail_base_url"`
	Referer        string        `yaml:"referer"`
	UserAgents     []string      `yaml:"user_agents"`
	PageSize       int           `yaml:"page_size"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// DownloadConfig bounds a single PDF transfer.
type DownloadConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	TotalTimeout   time.Duration `yaml:"total_timeout"`
	MaxRedirects   int           `yaml:"max_redirects"`
}

// PolitenessConfig spaces requests to the provider.
type PolitenessConfig struct {
	ReportDelay       time.Duration `yaml:"report_delay"`
	TickerDelay       time.Duration `yaml:"ticker_delay"`
	RetryBackoff      time.Duration `yaml:"retry_backoff"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

// CacheConfig names the raw payload directories.
type CacheConfig struct {
	ListingDir string `yaml:"listing_dir"`
	DetailDir  string `yaml:"detail_dir"`
}

// StorageConfig describes the manifest database.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// UniverseConfig lists the tickers to harvest, from a CSV file and/or inline.
type UniverseConfig struct {
	File    string         `yaml:"file"`
	Tickers []TickerConfig `yaml:"tickers"`
}

// TickerConfig is one inline universe entry.
type TickerConfig struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// SchedulerConfig defines when harvests should run. An empty expression means run once.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cron_expression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// Enabled reports whether both token and chat are set.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// ExtractionConfig describes the downstream text extraction service.
type ExtractionConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LoggingConfig controls log level and the optional rotating log file.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Load reads configuration from path (or the REPORT_HARVESTER_CONFIG env var
// when path is empty) on top of Default, then applies environment overrides.
// No path at all yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.bindTimezone(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the harvester cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.MinPages < 0 {
		errs = append(errs, errors.New("min_pages must not be negative"))
	}
	if strings.TrimSpace(c.DownloadDir) == "" {
		errs = append(errs, errors.New("download_dir is required"))
	}
	if c.YearsAgo < 1 {
		errs = append(errs, errors.New("years_ago must be at least 1"))
	}
	if c.MaxRetries < 1 {
		errs = append(errs, errors.New("max_retries must be at least 1"))
	}
	if c.Workers < 1 {
		errs = append(errs, errors.New("workers must be at least 1"))
	}
	if c.Cache.ListingDir == "" || c.Cache.DetailDir == "" {
		errs = append(errs, errors.New("cache.listing_dir and cache.detail_dir are required"))
	}
	if c.Politeness.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("politeness.requests_per_second must not be negative"))
	}
	switch c.Storage.Driver {
	case "", "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver))
	}
	for i, t := range c.Universe.Tickers {
		if strings.TrimSpace(t.Code) == "" {
			errs = append(errs, fmt.Errorf("universe.tickers[%d]: code is required", i))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Storage.DSN = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(extractionKeyEnv); v != "" {
		c.Extraction.APIKey = v
	}
}

func (c *Config) bindTimezone() error {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("config: unknown timezone %s: %w", tz, err)
	}
	c.Scheduler.location = loc
	return nil
}

// Default returns the settings used when no file overrides them.
func Default() Config {
	return Config{
		MinPages:    2,
		DownloadDir: "reports_pdf",
		YearsAgo:    10,
		MaxRetries:  3,
		Workers:     1,
		Remote: RemoteConfig{
			PageSize:       50,
			RequestTimeout: 30 * time.Second,
		},
		Download: DownloadConfig{
			ConnectTimeout: 30 * time.Second,
			TotalTimeout:   300 * time.Second,
			MaxRedirects:   5,
		},
		Politeness: PolitenessConfig{
			ReportDelay:       time.Second,
			TickerDelay:       time.Second,
			RetryBackoff:      time.Second,
			RequestsPerSecond: 2,
			Burst:             1,
		},
		Cache: CacheConfig{
			ListingDir: "rawData",
			DetailDir:  "detailData",
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			DSN:    "harvest.db",
		},
		Scheduler: SchedulerConfig{Timezone: defaultTimezone},
		Extraction: ExtractionConfig{
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}
