package main

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"tokenimages/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	logFile    string
	noColor    bool
	quiet      bool
)

// rootCmd runs a collection when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "tokenimages",
	Short: "Export the image URL of every token in an NFT collection",
	Long: `tokenimages pages through a collection on the Magic Eden API and writes
one CSV row per unique token: tokenId,imageUrl.

The collection is selected with NFT_CONTRACT and EVM_CHAIN (or --contract and
--chain). The API key comes from --api-key, MAGIC_EDEN_API_KEY, or a key stored
with 'tokenimages auth login'.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.SetColor(false)
		}
		if !quiet && showsLogo(cmd) {
			ui.PrintLogo()
		}
	},
	RunE: runFetch,
}

// exitError carries a process exit code for errors already reported to the user
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// Execute runs the root command and returns the process exit code
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		ui.PrintError("Error", err)
		return 1
	}
	return 0
}

func showsLogo(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "version", "help", "completion", "chains", "show":
		return false
	}
	return true
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $XDG_CONFIG_HOME/tokenimages/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write JSON logs to this file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress the logo and progress output")

	addFetchFlags(rootCmd)

	rootCmd.SetVersionTemplate(`tokenimages {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
