package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	dhlog "github.com/nao1215/docharvest/internal/log"
)

// NewRootCmd creates the root command for docharvest.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docharvest",
		Short: "Polite sitemap-driven document harvester",
		Long: `docharvest discovers downloadable documents (PDF by default) on websites.

For every domain it reads sitemap.xml and sitemap_index.xml, then walks the
listed pages in bounded waves while obeying robots.txt. Each linked document
is recorded with the chain of pages that led to it; duplicates keep the most
recently modified discovery. Found documents are downloaded, summarized and
stored in a local SQLite database.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON lines")

	// Add subcommands
	cmd.AddCommand(NewHarvestCmd())
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

// getBoolFlag reads a local or inherited persistent bool flag.
func getBoolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// newLogger creates the structured logger used by a command.
// Sensitive values such as cookies and tokens are redacted.
func newLogger(w io.Writer, verbose, jsonOutput bool) *slog.Logger {
	if jsonOutput {
		return dhlog.NewSecureJSONLogger(w, verbose)
	}
	return dhlog.NewSecureLogger(w, verbose)
}
