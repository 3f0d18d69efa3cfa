package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tokenimages/pkg/auth"
	"tokenimages/pkg/config"
	"tokenimages/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage tokenimages configuration files.

Configuration is loaded from, highest priority first:
  - Command line flags
  - Environment variables (NFT_CONTRACT, MAGIC_EDEN_API_KEY, EVM_CHAIN, TOTAL_TOKENS, TOKENIMAGES_*)
  - .env in the working directory and ~/.tokenimages.env
  - Configuration file
  - Default values`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is written to the user config directory unless a path is given with
--config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging every source. The API key is masked.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# tokenimages configuration
#
# Environment variables override this file:
#   NFT_CONTRACT, MAGIC_EDEN_API_KEY, EVM_CHAIN, TOTAL_TOKENS
#   TOKENIMAGES_BASE_URL, TOKENIMAGES_OUTPUT_DIR, TOKENIMAGES_PAGE_DELAY,
#   TOKENIMAGES_MAX_RETRIES, TOKENIMAGES_LOG_LEVEL

api:
  base_url: "https://api-mainnet.magiceden.dev"
  # Prefer 'tokenimages auth login' or MAGIC_EDEN_API_KEY over storing the key here
  api_key: ""
  # 0 uses the transport default
  timeout: 0s
  user_agent: "tokenimages/1.0"

collection:
  contract: ""
  # One of: %s
  chain: "ethereum"
  total_tokens: 3332
  # Tokens per page, at most 100
  page_size: 20

output:
  directory: "output"
  # {chain} and {contract} are expanded
  file_name_pattern: "{chain}_token_images.csv"

rate_limit:
  # Pause between page requests
  page_delay: 1s
  # Additional cap on requests per minute, 0 disables it
  requests_per_minute: 0

retry:
  # Attempts per page; 1 means a failed page ends the run
  max_attempts: 1
  initial_backoff: 2s
  max_backoff: 30s
  multiplier: 2.0

checkpoint:
  enabled: false
  # Empty uses $XDG_DATA_HOME/tokenimages/checkpoints
  directory: ""

metrics:
  # Prometheus textfile written at the end of each run
  textfile_path: ""

logging:
  # debug, info, warn, error
  level: "info"
  # Also write JSON logs to this file
  file: ""
  # Human readable console output instead of JSON
  pretty: true
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = filepath.Join(config.ConfigDir(), "config.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		return &exitError{code: 1, err: fmt.Errorf("%s already exists", configPath)}
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(exampleConfig, strings.Join(config.SupportedChains, ", "))
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Fprintln(ui.Output, "\nNext steps:")
	fmt.Fprintln(ui.Output, "1. Set collection.contract and collection.chain")
	fmt.Fprintln(ui.Output, "2. Store your API key with 'tokenimages auth login'")
	fmt.Fprintln(ui.Output, "3. Run 'tokenimages config validate', then 'tokenimages fetch'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	display := *cfg
	if display.API.APIKey != "" {
		display.API.APIKey = auth.MaskKey(display.API.APIKey)
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	fmt.Fprint(ui.Output, string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.FindConfigFile()
	}
	if path != "" {
		ui.PrintInfo("Validating configuration", path)
	} else {
		ui.PrintInfo("Validating configuration", "(no file, environment and defaults only)")
	}

	cfg, err := config.Load(path, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err)
		return &exitError{code: 1, err: err}
	}

	var warnings []string
	if cfg.Collection.Contract == "" {
		warnings = append(warnings, "no contract configured, pass --contract or set NFT_CONTRACT")
	}
	if cfg.API.APIKey == "" {
		warnings = append(warnings, "no API key configured, run 'tokenimages auth login' or set MAGIC_EDEN_API_KEY")
	}
	if err := os.MkdirAll(cfg.Output.Directory, 0755); err != nil {
		ui.PrintError("Cannot create output directory", err)
		return &exitError{code: 1, err: err}
	}

	for _, w := range warnings {
		ui.PrintWarning("Warning", w)
	}
	ui.PrintSuccess("Configuration is valid")

	fmt.Fprintln(ui.Output, "\nConfiguration summary:")
	fmt.Fprintf(ui.Output, "  Chain: %s\n", cfg.Collection.Chain)
	fmt.Fprintf(ui.Output, "  Expected tokens: %d\n", cfg.Collection.TotalTokens)
	fmt.Fprintf(ui.Output, "  Output file: %s\n", cfg.OutputPath())
	fmt.Fprintf(ui.Output, "  Page delay: %s\n", cfg.RateLimit.PageDelay)
	fmt.Fprintf(ui.Output, "  Attempts per page: %d\n", cfg.Retry.MaxAttempts)
	fmt.Fprintf(ui.Output, "  Log level: %s\n", cfg.Logging.Level)
	return nil
}
