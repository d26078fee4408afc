// Package cli implements the workgov command-line interface: batch
// scoring, trend inspection, audits, lineage queries, and the API server.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI and returns the process exit code. Low quality
// scores are findings, not failures: only I/O and data-unavailability
// errors exit non-zero.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var profile string

	rootCmd := &cobra.Command{
		Use:           "workgov",
		Short:         "Workforce data governance CLI",
		Long:          "Score gold-table data quality, inspect trends, run governance audits, and query lineage.",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return applyProfile(profile)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "Config profile to use")

	rootCmd.AddCommand(
		newScoreCmd(),
		newTrendCmd(),
		newAuditCmd(),
		newLineageCmd(),
		newServeCmd(),
	)
	return rootCmd
}
