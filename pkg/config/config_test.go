package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Discord.Token = "token"
	cfg.Servers = map[string][]string{"100": {"200", "201"}}
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Scan.FloorYear != 2015 {
		t.Errorf("Expected floor year 2015, got %d", cfg.Scan.FloorYear)
	}
	if cfg.Scan.MinMonth != 2 || cfg.Scan.MinDay != 2 {
		t.Errorf("Expected month/day lower bounds of 2, got %d/%d", cfg.Scan.MinMonth, cfg.Scan.MinDay)
	}
	if !cfg.Types.Images || !cfg.Types.Videos || !cfg.Types.Files {
		t.Error("Expected every attachment type to be enabled by default")
	}
	if cfg.Download.BrowserAgent == "" || cfg.Discord.Agent == "" {
		t.Error("Expected default user agents")
	}
	if cfg.Scan.MaxPages != 1 {
		t.Errorf("Expected one search page per day, got %d", cfg.Scan.MaxPages)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dscraper.yaml")
	content := `
discord:
  token: abc
types:
  images: true
  videos: false
  files: false
query:
  images: true
  nsfw: false
servers:
  "81384788765712384": ["81384788765712385"]
directs:
  friend: "81384788765712999"
download:
  timeout: 10s
scan:
  timezone: UTC
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Discord.Token != "abc" {
		t.Errorf("Expected token abc, got %q", cfg.Discord.Token)
	}
	if cfg.Types.Videos {
		t.Error("Expected videos to be disabled")
	}
	if cfg.Download.Timeout != 10*time.Second {
		t.Errorf("Expected 10s timeout, got %v", cfg.Download.Timeout)
	}
	// keys absent from the file keep their defaults
	if cfg.Download.ConcurrentDownloads != 4 {
		t.Errorf("Expected default concurrency to survive, got %d", cfg.Download.ConcurrentDownloads)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

func TestLoadFromFileRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dscraper.yaml")
	if err := os.WriteFile(path, []byte("discord:\n  tokn: abc\n"), 0600); err != nil {
		t.Fatal(err)
	}

	err := DefaultConfig().LoadFromFile(path)
	if err == nil {
		t.Fatal("Expected unknown field to be rejected")
	}
	if !strings.Contains(err.Error(), "tokn") {
		t.Errorf("Expected error to name the field, got %v", err)
	}
}

func TestLoadFromFileAcceptsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"discord": {"token": "abc"}, "servers": {"1": ["2"]}, "directs": {}}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if len(cfg.Targets()) != 1 {
		t.Errorf("Expected one target, got %d", len(cfg.Targets()))
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DSCRAPER_TOKEN", "env-token")
	t.Setenv("DSCRAPER_OUTPUT_DIR", "/tmp/scrapes")
	t.Setenv("DSCRAPER_CONCURRENT_DOWNLOADS", "8")
	t.Setenv("DSCRAPER_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if cfg.Discord.Token != "env-token" {
		t.Errorf("Expected env token, got %q", cfg.Discord.Token)
	}
	if cfg.Output.BaseDirectory != "/tmp/scrapes" {
		t.Errorf("Expected output dir from env, got %q", cfg.Output.BaseDirectory)
	}
	if cfg.Download.ConcurrentDownloads != 8 {
		t.Errorf("Expected 8 concurrent downloads, got %d", cfg.Download.ConcurrentDownloads)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected debug log level, got %q", cfg.Logging.Level)
	}
}

func TestLoadFromEnvRejectsMalformedNumbers(t *testing.T) {
	t.Setenv("DSCRAPER_REQUESTS_PER_MINUTE", "lots")

	if err := DefaultConfig().LoadFromEnv(); err == nil {
		t.Error("Expected malformed integer to fail")
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Discord.Token = "from-file"

	cfg.MergeCommandLineFlags(map[string]interface{}{
		"stored-token":     "from-keyring",
		"output":           "/data",
		"concurrent":       2,
		"parallel-targets": 3,
	})

	if cfg.Discord.Token != "from-file" {
		t.Errorf("Stored token must not override configured token, got %q", cfg.Discord.Token)
	}
	if cfg.Output.BaseDirectory != "/data" || cfg.Download.ConcurrentDownloads != 2 || cfg.Scan.ParallelTargets != 3 {
		t.Errorf("Flags not merged: %+v", cfg)
	}

	empty := DefaultConfig()
	empty.MergeCommandLineFlags(map[string]interface{}{"stored-token": "from-keyring"})
	if empty.Discord.Token != "from-keyring" {
		t.Errorf("Expected stored token to fill empty token, got %q", empty.Discord.Token)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "valid", modify: func(*Config) {}},
		{name: "missing token", modify: func(c *Config) { c.Discord.Token = "" }, wantErr: "token is required"},
		{name: "no targets", modify: func(c *Config) { c.Servers = nil }, wantErr: "no servers or direct messages"},
		{name: "non numeric channel", modify: func(c *Config) { c.Servers["100"] = []string{"general"} }, wantErr: "not numeric"},
		{name: "bad direct", modify: func(c *Config) { c.Directs = map[string]string{"pal": "x"} }, wantErr: "direct channel id"},
		{name: "bad timezone", modify: func(c *Config) { c.Scan.Timezone = "Mars/Olympus" }, wantErr: "timezone"},
		{name: "bad schedule", modify: func(c *Config) { c.Schedule.Cron = "every day" }, wantErr: "invalid schedule"},
		{name: "bad log level", modify: func(c *Config) { c.Logging.Level = "loud" }, wantErr: "invalid log level"},
		{name: "zero concurrency", modify: func(c *Config) { c.Download.ConcurrentDownloads = 0 }, wantErr: "concurrent downloads"},
		{name: "bad month bound", modify: func(c *Config) { c.Scan.MinMonth = 13 }, wantErr: "min_month"},
		{name: "unpaced downloads", modify: func(c *Config) { c.Download.RequestsPerSecond = 0 }},
		{name: "negative download rate", modify: func(c *Config) { c.Download.RequestsPerSecond = -1 }, wantErr: "requests per second"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Download.Timeout = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation errors")
	}
	for _, want := range []string{"token", "no servers", "download timeout"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected %q in %v", want, err)
		}
	}
}

func TestTargetsOrdering(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Servers = map[string][]string{
		"300": {"31"},
		"100": {"12", "11"},
	}
	cfg.Directs = map[string]string{"zed": "91", "amy": "90"}

	got := cfg.Targets()
	want := []string{"guild:100/12", "guild:100/11", "guild:300/31", "dm:amy/90", "dm:zed/91"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d targets, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Errorf("target %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dscraper.yaml")
	cfg := validConfig()
	cfg.Download.Timeout = 45 * time.Second

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded := DefaultConfig()
	if err := loaded.LoadFromFile(path); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if loaded.Download.Timeout != 45*time.Second {
		t.Errorf("Expected 45s timeout after reload, got %v", loaded.Download.Timeout)
	}
	if len(loaded.Targets()) != 2 {
		t.Errorf("Expected 2 targets after reload, got %d", len(loaded.Targets()))
	}
}
