package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tokenimages/pkg/auth"
	"tokenimages/pkg/collector"
	"tokenimages/pkg/config"
	"tokenimages/pkg/logger"
	"tokenimages/pkg/ui"
)

var (
	// Fetch flags, shared by the root command
	contract     string
	chain        string
	apiKey       string
	totalTokens  int
	outputDir    string
	pageDelay    time.Duration
	maxRetries   int
	resume       bool
	metricsFile  string
	accountName  string
	showProgress bool
)

// apiKeySource looks up a stored API key
type apiKeySource interface {
	APIKey(name string) (string, error)
}

// newKeySource opens the credential store. Tests replace it.
var newKeySource = func() (apiKeySource, error) {
	m, err := auth.NewManager()
	if err != nil {
		return nil, err
	}
	return m, nil
}

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Collect token image URLs into a CSV file",
	Long: `Collect the image URL of every token in a collection.

Pages are requested in ascending tokenId order and followed by continuation
cursor until the cursor runs out or TOTAL_TOKENS unique tokens have been seen.
Duplicates are dropped. The result is written to
output/<chain>_token_images.csv unless --output or the config says otherwise.

A page that fails ends the run early; the tokens collected so far are still
written and the command exits successfully with a warning.`,
	Example: `  # Using environment variables
  NFT_CONTRACT=0xabc... MAGIC_EDEN_API_KEY=... EVM_CHAIN=base tokenimages fetch

  # Using flags and a stored key
  tokenimages fetch --contract 0xabc... --chain polygon --total 5000

  # Resume an interrupted run and export metrics
  tokenimages fetch --resume --metrics-file /var/lib/node_exporter/tokenimages.prom`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	addFetchFlags(fetchCmd)
}

func addFetchFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&contract, "contract", "", "collection contract address (NFT_CONTRACT)")
	flags.StringVar(&chain, "chain", "", fmt.Sprintf("chain selector: %s (EVM_CHAIN)", strings.Join(config.SupportedChains, ", ")))
	flags.StringVar(&apiKey, "api-key", "", "Magic Eden API key (MAGIC_EDEN_API_KEY)")
	flags.IntVar(&totalTokens, "total", 0, "expected number of tokens (TOTAL_TOKENS)")
	flags.StringVarP(&outputDir, "output", "o", "", "output directory")
	flags.DurationVar(&pageDelay, "page-delay", time.Second, "pause between page requests")
	flags.IntVar(&maxRetries, "max-retries", 1, "attempts per page, 1 disables retry")
	flags.BoolVar(&resume, "resume", false, "resume from the last checkpoint")
	flags.StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile when done")
	flags.StringVarP(&accountName, "account", "a", "", "stored credential to use when no key is given")
	flags.BoolVarP(&showProgress, "progress", "p", false, "show a progress bar instead of info logs")
}

// fetchFlagValues collects the flags that were set for config.Load
func fetchFlagValues(cmd *cobra.Command) map[string]interface{} {
	flags := map[string]interface{}{
		"contract":     contract,
		"chain":        chain,
		"api-key":      apiKey,
		"total":        totalTokens,
		"output":       outputDir,
		"metrics-file": metricsFile,
		"log-level":    logLevel,
		"log-file":     logFile,
		"resume":       resume,
	}
	if cmd.Flags().Changed("page-delay") {
		flags["page-delay"] = pageDelay
	}
	if cmd.Flags().Changed("max-retries") {
		flags["max-retries"] = maxRetries
	}
	if showProgress && !quiet && logLevel == "" {
		flags["log-level"] = "warn"
	}
	return flags
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, fetchFlagValues(cmd))
	if err != nil {
		return usageError(err)
	}

	if cfg.API.APIKey == "" {
		if source, err := newKeySource(); err == nil {
			if key, err := source.APIKey(accountName); err == nil {
				cfg.API.APIKey = key
			}
		}
	}
	if err := cfg.ValidateRun(); err != nil {
		return usageError(err)
	}

	logger.Initialize(&cfg.Logging)
	log := logger.GetLogger()
	log.WithFields(map[string]interface{}{
		"version": version,
		"chain":   cfg.Collection.Chain,
		"output":  cfg.OutputPath(),
	}).Info("tokenimages starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := collector.NewFromConfig(cfg, log)

	var display *ui.ProgressDisplay
	if showProgress && !quiet {
		display = ui.NewProgressDisplay(cfg.Collection.Chain, cfg.Collection.TotalTokens, cfg.Logging.Level == "debug")
		c.SetObserver(display)
	}

	result, err := c.Run(ctx)
	if err != nil {
		if result != nil && errors.Is(err, context.Canceled) {
			fmt.Fprintln(ui.Output)
			ui.PrintWarning("Interrupted, partial results saved", result.OutputPath)
			return &exitError{code: 1, err: err}
		}
		log.WithError(err).Error("Collection failed")
		ui.PrintError("Collection failed", err)
		return &exitError{code: 1, err: err}
	}

	if display != nil {
		display.Complete(result.Unique, result.OutputPath)
	}
	return nil
}

// usageError reports an invalid invocation with usage help
func usageError(err error) error {
	ui.PrintError("Error", err)
	fmt.Fprintln(ui.ErrOutput)
	fmt.Fprintln(ui.ErrOutput, "Usage: NFT_CONTRACT=<address> MAGIC_EDEN_API_KEY=<key> [EVM_CHAIN=<chain>] [TOTAL_TOKENS=<n>] tokenimages")
	fmt.Fprintf(ui.ErrOutput, "Supported chains: %s\n", strings.Join(config.SupportedChains, ", "))
	fmt.Fprintln(ui.ErrOutput, "Run 'tokenimages fetch --help' for all flags.")
	return &exitError{code: 1, err: err}
}
