package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds every setting of a scrape run. It is loaded once and never
// mutated afterwards.
type Config struct {
	Discord DiscordConfig `yaml:"discord" json:"discord"`

	// Types are the local attachment category toggles.
	Types TypesConfig `yaml:"types" json:"types"`

	// Query shapes the outbound search request.
	Query QueryConfig `yaml:"query" json:"query"`

	// Servers maps a guild ID to the channel IDs to scan in it.
	Servers map[string][]string `yaml:"servers" json:"servers"`

	// Directs maps a folder alias to a direct-message channel ID.
	Directs map[string]string `yaml:"directs" json:"directs"`

	Scan      ScanConfig      `yaml:"scan" json:"scan"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Download  DownloadConfig  `yaml:"download" json:"download"`
	Output    OutputConfig    `yaml:"output" json:"output"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`
	Schedule  ScheduleConfig  `yaml:"schedule" json:"schedule"`
}

// DiscordConfig holds API access settings
type DiscordConfig struct {
	Token      string `yaml:"token" json:"token"`
	Agent      string `yaml:"agent" json:"agent"`
	APIVersion string `yaml:"api_version" json:"api_version"`
	BaseURL    string `yaml:"base_url" json:"base_url"`
	// Account names the stored credential used when Token is empty.
	Account string `yaml:"account" json:"account"`
}

// TypesConfig selects which attachment categories are downloaded
type TypesConfig struct {
	Images bool `yaml:"images" json:"images"`
	Videos bool `yaml:"videos" json:"videos"`
	Files  bool `yaml:"files" json:"files"`
}

// QueryConfig selects the has= filters and NSFW inclusion of search requests
type QueryConfig struct {
	Images bool `yaml:"images" json:"images"`
	Videos bool `yaml:"videos" json:"videos"`
	Files  bool `yaml:"files" json:"files"`
	Embeds bool `yaml:"embeds" json:"embeds"`
	Links  bool `yaml:"links" json:"links"`
	NSFW   bool `yaml:"nsfw" json:"nsfw"`
}

// ScanConfig controls the date range walk
type ScanConfig struct {
	FloorYear       int           `yaml:"floor_year" json:"floor_year"`
	MinMonth        int           `yaml:"min_month" json:"min_month"`
	MinDay          int           `yaml:"min_day" json:"min_day"`
	Timezone        string        `yaml:"timezone" json:"timezone"`
	ParallelTargets int           `yaml:"parallel_targets" json:"parallel_targets"`
	MaxPages        int           `yaml:"max_pages" json:"max_pages"`
	SearchTimeout   time.Duration `yaml:"search_timeout" json:"search_timeout"`
	// Incremental stops each target at the day its last clean run started from
	Incremental bool `yaml:"incremental" json:"incremental"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" json:"backoff_multiplier"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay" json:"retry_delay"`
	MaxDelay          time.Duration `yaml:"max_delay" json:"max_delay"`
}

// DownloadConfig holds attachment download settings
type DownloadConfig struct {
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	Timeout             time.Duration `yaml:"timeout" json:"timeout"`
	BufferSize          int           `yaml:"buffer_size" json:"buffer_size"`
	RequestsPerSecond   int           `yaml:"requests_per_second" json:"requests_per_second"`
	BrowserAgent        string        `yaml:"browser_agent" json:"browser_agent"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// MetricsConfig enables the Prometheus endpoint when ListenAddress is set
type MetricsConfig struct {
	ListenAddress string `yaml:"listen_address" json:"listen_address"`
}

// ScheduleConfig repeats the scrape on a cron expression when Cron is set
type ScheduleConfig struct {
	Cron string `yaml:"cron" json:"cron"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Discord: DiscordConfig{
			Agent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/78.0.3904.108 Safari/537.36",
			APIVersion: "v9",
			BaseURL:    "https://discord.com",
		},
		Types: TypesConfig{Images: true, Videos: true, Files: true},
		Query: QueryConfig{NSFW: true},
		Scan: ScanConfig{
			FloorYear:       2015,
			MinMonth:        2,
			MinDay:          2,
			Timezone:        "Local",
			ParallelTargets: 1,
			MaxPages:        1,
			SearchTimeout:   30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 50,
			BackoffMultiplier: 2.0,
			MaxRetries:        5,
			RetryDelay:        time.Second,
			MaxDelay:          time.Minute,
		},
		Download: DownloadConfig{
			ConcurrentDownloads: 4,
			Timeout:             30 * time.Second,
			BufferSize:          1 << 20,
			RequestsPerSecond:   10,
			BrowserAgent:        "Mozilla/5.0 (X11; Linux x86_64) Chrome/78.0.3904.87 Safari/537.36",
		},
		Output:  OutputConfig{BaseDirectory: "."},
		Logging: LoggingConfig{Level: "info"},
	}
}

// LoadFromFile loads configuration from a YAML or JSON file. Unknown keys
// are rejected. An empty path searches the default locations and is not an
// error when nothing is found.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

func findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"dscraper.yaml",
		"dscraper.yml",
		"config.json",
		filepath.Join(home, ".config", "dscraper", "config.yaml"),
		filepath.Join(home, ".dscraper.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// LoadFromEnv overlays DSCRAPER_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}

	setString("DSCRAPER_TOKEN", &c.Discord.Token)
	setString("DSCRAPER_AGENT", &c.Discord.Agent)
	setString("DSCRAPER_ACCOUNT", &c.Discord.Account)
	setString("DSCRAPER_OUTPUT_DIR", &c.Output.BaseDirectory)
	setString("DSCRAPER_LOG_LEVEL", &c.Logging.Level)
	setString("DSCRAPER_METRICS_ADDR", &c.Metrics.ListenAddress)
	setString("DSCRAPER_SCHEDULE", &c.Schedule.Cron)
	setString("DSCRAPER_TIMEZONE", &c.Scan.Timezone)
	setInt("DSCRAPER_CONCURRENT_DOWNLOADS", &c.Download.ConcurrentDownloads)
	setInt("DSCRAPER_REQUESTS_PER_MINUTE", &c.RateLimit.RequestsPerMinute)
	setInt("DSCRAPER_PARALLEL_TARGETS", &c.Scan.ParallelTargets)

	return errors.Join(errs...)
}

// MergeCommandLineFlags merges command line flags into the configuration.
// "stored-token" only fills an empty token so explicit settings win over
// the credential store.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["token"].(string); ok && v != "" {
		c.Discord.Token = v
	}
	if v, ok := flags["stored-token"].(string); ok && v != "" && c.Discord.Token == "" {
		c.Discord.Token = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.BaseDirectory = v
	}
	if v, ok := flags["concurrent"].(int); ok && v > 0 {
		c.Download.ConcurrentDownloads = v
	}
	if v, ok := flags["parallel-targets"].(int); ok && v > 0 {
		c.Scan.ParallelTargets = v
	}
	if v, ok := flags["rate-limit"].(int); ok && v > 0 {
		c.RateLimit.RequestsPerMinute = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["schedule"].(string); ok && v != "" {
		c.Schedule.Cron = v
	}
	if v, ok := flags["metrics-addr"].(string); ok && v != "" {
		c.Metrics.ListenAddress = v
	}
	if v, ok := flags["incremental"].(bool); ok && v {
		c.Scan.Incremental = true
	}
}

// Validate checks the configuration and reports every problem at once
func (c *Config) Validate() error {
	var errs []error

	if c.Discord.Token == "" {
		errs = append(errs, errors.New("discord token is required"))
	}
	if c.Discord.BaseURL == "" || c.Discord.APIVersion == "" {
		errs = append(errs, errors.New("discord base_url and api_version are required"))
	}

	if len(c.Servers) == 0 && len(c.Directs) == 0 {
		errs = append(errs, errors.New("no servers or direct messages configured"))
	}
	for server, channels := range c.Servers {
		if !isSnowflake(server) {
			errs = append(errs, fmt.Errorf("server id %q is not numeric", server))
		}
		if len(channels) == 0 {
			errs = append(errs, fmt.Errorf("server %s lists no channels", server))
		}
		for _, ch := range channels {
			if !isSnowflake(ch) {
				errs = append(errs, fmt.Errorf("channel id %q in server %s is not numeric", ch, server))
			}
		}
	}
	for alias, ch := range c.Directs {
		if strings.TrimSpace(alias) == "" {
			errs = append(errs, errors.New("direct message alias cannot be empty"))
		}
		if !isSnowflake(ch) {
			errs = append(errs, fmt.Errorf("direct channel id %q for %s is not numeric", ch, alias))
		}
	}

	if c.Scan.FloorYear < 2014 {
		errs = append(errs, errors.New("scan floor_year cannot be before 2014"))
	}
	if c.Scan.MinMonth < 1 || c.Scan.MinMonth > 12 {
		errs = append(errs, errors.New("scan min_month must be between 1 and 12"))
	}
	if c.Scan.MinDay < 1 || c.Scan.MinDay > 31 {
		errs = append(errs, errors.New("scan min_day must be between 1 and 31"))
	}
	if c.Scan.ParallelTargets <= 0 {
		errs = append(errs, errors.New("scan parallel_targets must be positive"))
	}
	if c.Scan.MaxPages <= 0 {
		errs = append(errs, errors.New("scan max_pages must be positive"))
	}
	if c.Scan.SearchTimeout <= 0 {
		errs = append(errs, errors.New("scan search_timeout must be positive"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("invalid scan timezone: %w", err))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.RateLimit.RetryDelay <= 0 {
		errs = append(errs, errors.New("retry delay must be positive"))
	}
	if c.RateLimit.BackoffMultiplier < 1 {
		errs = append(errs, errors.New("backoff multiplier must be at least 1"))
	}

	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > 16 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 16"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("download requests per second must not be negative"))
	}
	if c.Download.BufferSize <= 0 {
		errs = append(errs, errors.New("download buffer size must be positive"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	validLogLevels := []string{"debug", "info", "warn", "warning", "error"}
	if !slices.Contains(validLogLevels, strings.ToLower(c.Logging.Level)) {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	if c.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
			errs = append(errs, fmt.Errorf("invalid schedule: %w", err))
		}
	}

	return errors.Join(errs...)
}

func isSnowflake(s string) bool {
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}

// Location returns the timezone day windows are computed in
func (c *Config) Location() (*time.Location, error) {
	switch c.Scan.Timezone {
	case "", "Local":
		return time.Local, nil
	default:
		return time.LoadLocation(c.Scan.Timezone)
	}
}

// TargetKind distinguishes guild channels from direct-message channels
type TargetKind int

const (
	TargetServer TargetKind = iota
	TargetDirect
)

// Target is one channel to scan
type Target struct {
	Kind      TargetKind
	ServerID  string
	ChannelID string
	Alias     string
}

func (t Target) String() string {
	if t.Kind == TargetDirect {
		return fmt.Sprintf("dm:%s/%s", t.Alias, t.ChannelID)
	}
	return fmt.Sprintf("guild:%s/%s", t.ServerID, t.ChannelID)
}

// Targets expands the configured servers and directs into scan targets.
// Servers come first sorted by ID with channels in configured order, then
// directs sorted by alias.
func (c *Config) Targets() []Target {
	var targets []Target

	servers := make([]string, 0, len(c.Servers))
	for id := range c.Servers {
		servers = append(servers, id)
	}
	sort.Strings(servers)
	for _, server := range servers {
		for _, channel := range c.Servers[server] {
			targets = append(targets, Target{Kind: TargetServer, ServerID: server, ChannelID: channel})
		}
	}

	aliases := make([]string, 0, len(c.Directs))
	for alias := range c.Directs {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		targets = append(targets, Target{Kind: TargetDirect, Alias: alias, ChannelID: c.Directs[alias]})
	}

	return targets
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load loads configuration from all sources with proper precedence and
// validates the result.
// Precedence order: flags > environment (including .env) > config file > defaults.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	cfg, err := Resolve(configPath, flags)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Resolve merges every source like Load but skips validation
func Resolve(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".dscraper.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg.MergeCommandLineFlags(flags)
	return cfg, nil
}

// ConfigPath returns path, or the first default location that exists
func ConfigPath(path string) string {
	if path != "" {
		return path
	}
	return findConfigFile()
}
