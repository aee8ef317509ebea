package main

import (
	"errors"
	"fmt"
	"os"

	"dscraper/pkg/auth"
	"dscraper/pkg/config"
	"dscraper/pkg/ui"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const exampleConfig = `# dscraper configuration
#
# Environment variables prefixed with DSCRAPER_ override these values,
# e.g. DSCRAPER_TOKEN, DSCRAPER_OUTPUT_DIR or DSCRAPER_SCHEDULE.

discord:
  # user token; leave empty to use 'dscraper auth login'
  token: ""

# attachment categories to download
types:
  images: true
  videos: true
  files: true

# search filters sent to Discord
query:
  images: false
  videos: false
  files: false
  embeds: false
  links: false
  nsfw: true

# server id -> channel ids
servers:
  "000000000000000000":
    - "000000000000000000"

# folder name -> direct message channel id
directs: {}

scan:
  # scanning stops after this year (exclusive)
  floor_year: 2015
  min_month: 2
  min_day: 2
  timezone: Local
  parallel_targets: 1
  max_pages: 1
  search_timeout: 30s
  # stop each channel at the newest day of its last clean run
  incremental: false

rate_limit:
  requests_per_minute: 50
  max_retries: 5
  retry_delay: 1s
  max_delay: 1m
  backoff_multiplier: 2

download:
  concurrent_downloads: 4
  timeout: 30s
  # 0 leaves CDN downloads unpaced
  requests_per_second: 10

output:
  base_directory: "."

logging:
  level: info
  file: ""

metrics:
  listen_address: ""

schedule:
  cron: ""
`

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage dscraper configuration files.

Configuration is read from, highest priority first:
  - Command line flags
  - Environment variables and .env files
  - Configuration file (YAML or JSON)
  - Default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the merged configuration with the token masked",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = "dscraper.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Add your server and channel ids")
	fmt.Println("2. Store a token with 'dscraper auth login' or set discord.token")
	fmt.Println("3. Run 'dscraper config validate'")
	fmt.Println("4. Start with 'dscraper scrape'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Resolve(configFile, nil)
	if err != nil {
		return err
	}

	display := *cfg
	if display.Discord.Token != "" {
		display.Discord.Token = auth.MaskToken(display.Discord.Token)
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	if path := config.ConfigPath(configFile); path != "" {
		fmt.Printf("\nLoaded from: %s\n", path)
	} else {
		fmt.Println("\nNo configuration file found, showing defaults and environment")
	}
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := config.ConfigPath(configFile)
	if path == "" {
		return errors.New("no configuration file found, specify one with --config")
	}
	ui.PrintInfo("Validating configuration", path)

	flags := map[string]interface{}{}
	if manager, err := auth.NewManager(); err == nil {
		if account, err := manager.RetrieveDefault(); err == nil {
			flags["stored-token"] = account.Token
		}
	}

	cfg, err := config.Resolve(path, flags)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		ui.PrintError("Configuration has errors:")
		for _, e := range unwrapAll(err) {
			fmt.Printf("  - %s\n", e)
		}
		return errors.New("configuration is invalid")
	}

	if err := os.MkdirAll(cfg.Output.BaseDirectory, 0755); err != nil {
		return fmt.Errorf("cannot create output directory: %w", err)
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Targets: %d\n", len(cfg.Targets()))
	fmt.Printf("  Output directory: %s\n", cfg.Output.BaseDirectory)
	fmt.Printf("  Concurrent downloads: %d\n", cfg.Download.ConcurrentDownloads)
	fmt.Printf("  Rate limit: %d requests/minute\n", cfg.RateLimit.RequestsPerMinute)
	fmt.Printf("  Scan floor year: %d\n", cfg.Scan.FloorYear)
	if cfg.Schedule.Cron != "" {
		fmt.Printf("  Schedule: %s\n", cfg.Schedule.Cron)
	}
	return nil
}

// unwrapAll flattens an errors.Join tree into its leaves
func unwrapAll(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []error
		for _, e := range joined.Unwrap() {
			out = append(out, unwrapAll(e)...)
		}
		return out
	}
	return []error{err}
}
