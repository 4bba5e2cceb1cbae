// Package cmd defines and implements the CLI commands for the
// lucas-download executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lucas-download",
		Short: "Downloads the Diário da Câmara dos Deputados PDF archive.",
		Long: `lucas-download retrieves the published editions of the Diário da Câmara
dos Deputados from the chamber's public image archive, organizing the PDFs
on local disk by publication date.

Completed downloads are recorded in a progress ledger, so interrupted or
repeated runs resume where they left off instead of re-fetching the whole
range.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML; flags and LUCAS_* env vars override it)")

	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute is the main entry point. It exits non-zero only for setup
// failures; per-edition download failures are reported in the summary.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
