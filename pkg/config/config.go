package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// AppName names the per-user data and config directories
	AppName = "tokenimages"

	// DefaultChain is used when EVM_CHAIN is not set
	DefaultChain = "ethereum"

	// DefaultTotalTokens is the expected collection size when none is configured
	DefaultTotalTokens = 3332

	// DefaultPageSize is the number of tokens requested per page
	DefaultPageSize = 20

	// MaxPageSize is the largest page the tokens endpoint accepts
	MaxPageSize = 100
)

// SupportedChains lists the chain selectors accepted by the marketplace API
var SupportedChains = []string{
	"ethereum",
	"arbitrum",
	"base",
	"berachain",
	"bsc",
	"monad-testnet",
	"polygon",
	"sei",
}

// IsSupportedChain reports whether chain is in SupportedChains
func IsSupportedChain(chain string) bool {
	for _, c := range SupportedChains {
		if c == chain {
			return true
		}
	}
	return false
}

// Config holds all configuration options for a collection run
type Config struct {
	// Marketplace API access
	API APIConfig `yaml:"api" json:"api"`

	// What to collect
	Collection CollectionConfig `yaml:"collection" json:"collection"`

	// Where the CSV goes
	Output OutputConfig `yaml:"output" json:"output"`

	// Request pacing
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Retry of failed pages
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Resume support
	Checkpoint CheckpointConfig `yaml:"checkpoint" json:"checkpoint"`

	// Prometheus export
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// APIConfig holds marketplace API settings
type APIConfig struct {
	BaseURL   string        `yaml:"base_url" json:"base_url"`
	APIKey    string        `yaml:"api_key" json:"api_key"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
}

// CollectionConfig identifies the collection being enumerated
type CollectionConfig struct {
	Contract    string `yaml:"contract" json:"contract"`
	Chain       string `yaml:"chain" json:"chain"`
	TotalTokens int    `yaml:"total_tokens" json:"total_tokens"`
	PageSize    int    `yaml:"page_size" json:"page_size"`
}

// OutputConfig holds output file configuration
type OutputConfig struct {
	Directory       string `yaml:"directory" json:"directory"`
	FileNamePattern string `yaml:"file_name_pattern" json:"file_name_pattern"`
}

// RateLimitConfig holds request pacing configuration
type RateLimitConfig struct {
	PageDelay         time.Duration `yaml:"page_delay" json:"page_delay"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// RetryConfig controls retrying of transient page failures.
// MaxAttempts of 1 means a failed page is never retried.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" json:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" json:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier" json:"multiplier"`
}

// CheckpointConfig holds resume configuration
type CheckpointConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Directory string `yaml:"directory" json:"directory"`
}

// MetricsConfig holds metrics export configuration
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path" json:"textfile_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	File   string `yaml:"file" json:"file"`
	Pretty bool   `yaml:"pretty" json:"pretty"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   "https://api-mainnet.magiceden.dev",
			Timeout:   0, // transport default
			UserAgent: "tokenimages/1.0",
		},
		Collection: CollectionConfig{
			Chain:       DefaultChain,
			TotalTokens: DefaultTotalTokens,
			PageSize:    DefaultPageSize,
		},
		Output: OutputConfig{
			Directory:       "output",
			FileNamePattern: "{chain}_token_images.csv",
		},
		RateLimit: RateLimitConfig{
			PageDelay:         time.Second,
			RequestsPerMinute: 0,
		},
		Retry: RetryConfig{
			MaxAttempts:    1,
			InitialBackoff: 2 * time.Second,
			MaxBackoff:     30 * time.Second,
			Multiplier:     2.0,
		},
		Checkpoint: CheckpointConfig{
			Enabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	// Collection variables
	if contract := os.Getenv("NFT_CONTRACT"); contract != "" {
		c.Collection.Contract = contract
	}
	if apiKey := os.Getenv("MAGIC_EDEN_API_KEY"); apiKey != "" {
		c.API.APIKey = apiKey
	}
	if chain := os.Getenv("EVM_CHAIN"); chain != "" {
		c.Collection.Chain = chain
	}
	if total := os.Getenv("TOTAL_TOKENS"); total != "" {
		val, err := strconv.Atoi(total)
		if err != nil {
			errs = append(errs, fmt.Errorf("TOTAL_TOKENS: %w", err))
		} else {
			c.Collection.TotalTokens = val
		}
	}

	if baseURL := os.Getenv("TOKENIMAGES_BASE_URL"); baseURL != "" {
		c.API.BaseURL = baseURL
	}
	if outputDir := os.Getenv("TOKENIMAGES_OUTPUT_DIR"); outputDir != "" {
		c.Output.Directory = outputDir
	}
	if delay := os.Getenv("TOKENIMAGES_PAGE_DELAY"); delay != "" {
		val, err := time.ParseDuration(delay)
		if err != nil {
			errs = append(errs, fmt.Errorf("TOKENIMAGES_PAGE_DELAY: %w", err))
		} else {
			c.RateLimit.PageDelay = val
		}
	}
	if retries := os.Getenv("TOKENIMAGES_MAX_RETRIES"); retries != "" {
		val, err := strconv.Atoi(retries)
		if err != nil {
			errs = append(errs, fmt.Errorf("TOKENIMAGES_MAX_RETRIES: %w", err))
		} else {
			c.Retry.MaxAttempts = val
		}
	}
	if logLevel := os.Getenv("TOKENIMAGES_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// DataDir returns the per-user data directory, e.g. ~/.local/share/tokenimages
func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// ConfigDir returns the per-user config directory, e.g. ~/.config/tokenimages
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// CheckpointDir returns where resume checkpoints are kept
func (c *Config) CheckpointDir() string {
	if c.Checkpoint.Directory != "" {
		return c.Checkpoint.Directory
	}
	return filepath.Join(DataDir(), "checkpoints")
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".tokenimages.yaml",
		".tokenimages.yml",
		filepath.Join(ConfigDir(), "config.yaml"),
		filepath.Join(ConfigDir(), "config.yml"),
		filepath.Join(home, ".tokenimages.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Normalize cleans up user supplied values before validation
func (c *Config) Normalize() {
	c.Collection.Chain = strings.ToLower(strings.TrimSpace(c.Collection.Chain))
	c.Collection.Contract = strings.TrimSpace(c.Collection.Contract)
	c.API.APIKey = strings.TrimSpace(c.API.APIKey)
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
}

// Validate checks if the configuration is valid.
// Credentials are checked separately by ValidateRun.
func (c *Config) Validate() error {
	var errs []error

	if !IsSupportedChain(c.Collection.Chain) {
		errs = append(errs, fmt.Errorf("invalid EVM chain: %s (valid options are: %s)",
			c.Collection.Chain, strings.Join(SupportedChains, ", ")))
	}
	if c.Collection.TotalTokens <= 0 {
		errs = append(errs, errors.New("total tokens must be positive"))
	}
	if c.Collection.PageSize <= 0 || c.Collection.PageSize > MaxPageSize {
		errs = append(errs, fmt.Errorf("page size must be between 1 and %d", MaxPageSize))
	}

	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("API base URL is required"))
	}
	if c.API.Timeout < 0 {
		errs = append(errs, errors.New("API timeout cannot be negative"))
	}

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Output.FileNamePattern == "" {
		errs = append(errs, errors.New("file name pattern is required"))
	}

	if c.RateLimit.PageDelay < 0 {
		errs = append(errs, errors.New("page delay cannot be negative"))
	}
	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}

	if c.Retry.MaxAttempts < 1 || c.Retry.MaxAttempts > 10 {
		errs = append(errs, errors.New("retry max attempts must be between 1 and 10"))
	}
	if c.Retry.MaxAttempts > 1 && c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// ValidateRun checks the values that must be present before a collection run
func (c *Config) ValidateRun() error {
	var errs []error
	if c.Collection.Contract == "" {
		errs = append(errs, errors.New("NFT contract address is required (NFT_CONTRACT)"))
	}
	if c.API.APIKey == "" {
		errs = append(errs, errors.New("Magic Eden API key is required (MAGIC_EDEN_API_KEY)"))
	}
	return errors.Join(errs...)
}

// OutputFileName expands the output pattern for the configured collection
func (c *Config) OutputFileName() string {
	name := c.Output.FileNamePattern
	name = strings.ReplaceAll(name, "{chain}", c.Collection.Chain)
	name = strings.ReplaceAll(name, "{contract}", c.Collection.Contract)
	return name
}

// OutputPath returns the CSV path derived from the output pattern
func (c *Config) OutputPath() string {
	return filepath.Join(c.Output.Directory, c.OutputFileName())
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if contract, ok := flags["contract"].(string); ok && contract != "" {
		c.Collection.Contract = contract
	}
	if chain, ok := flags["chain"].(string); ok && chain != "" {
		c.Collection.Chain = chain
	}
	if apiKey, ok := flags["api-key"].(string); ok && apiKey != "" {
		c.API.APIKey = apiKey
	}
	if total, ok := flags["total"].(int); ok && total > 0 {
		c.Collection.TotalTokens = total
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.Directory = outputDir
	}
	if delay, ok := flags["page-delay"].(time.Duration); ok {
		c.RateLimit.PageDelay = delay
	}
	if retries, ok := flags["max-retries"].(int); ok && retries > 0 {
		c.Retry.MaxAttempts = retries
	}
	if resume, ok := flags["resume"].(bool); ok && resume {
		c.Checkpoint.Enabled = true
	}
	if metricsFile, ok := flags["metrics-file"].(string); ok && metricsFile != "" {
		c.Metrics.TextfilePath = metricsFile
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile, ok := flags["log-file"].(string); ok && logFile != "" {
		c.Logging.File = logFile
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Missing .env files are fine
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".tokenimages.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Includes values from .env
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)
	config.Normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
