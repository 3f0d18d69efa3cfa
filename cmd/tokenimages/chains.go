package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tokenimages/pkg/config"
	"tokenimages/pkg/ui"
)

// chainsCmd lists the chain selectors the API accepts
var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "List supported chains",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, c := range config.SupportedChains {
			if c == config.DefaultChain {
				fmt.Fprintf(ui.Output, "%s %s\n", c, ui.Dim("(default)"))
				continue
			}
			fmt.Fprintln(ui.Output, c)
		}
	},
}

func init() {
	rootCmd.AddCommand(chainsCmd)
}
