package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for floorscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "floorscan",
		Short: "Extract room measurements from floor-plan images",
		Long: `floorscan extracts room measurements from floor-plan images.

Each image is uploaded to ImgBB, a vision-capable model (gpt-4o by default)
reads the room labels and dimensions from the hosted image, and the answer
is rendered as a table.

Credentials are read from the IMGBB_API_KEY and OPENAI_API_KEY environment
variables or from the .floorscan configuration file (see "floorscan init").`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .floorscan in current, home or XDG config directory)")
	cmd.PersistentFlags().String("log-format", "", "Log format: text or json")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewExtractCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
