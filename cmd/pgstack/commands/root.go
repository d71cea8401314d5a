package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pgstack",
		Short: "pgstack - self-hosted PostgreSQL stack provisioner",
		Long: `pgstack generates a mutually-consistent configuration bundle for a
self-hosted PostgreSQL + pgAdmin stack: environment file, compose
manifest, pg_hba.conf access rules, SQL initialization script, and a
credentials report.

Every artifact is rendered from one validated set of inputs, so shared
values (credentials, addresses, the trusted container subnet) always
agree across artifacts.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newGenerateCommand())
	rootCmd.AddCommand(newRulesCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}
