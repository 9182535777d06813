package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCommand creates the finflow CLI with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "finflow",
		Short: "Team finance backend: bank sync, transactions and background jobs",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newServeCommand(),
		newWorkerCommand(),
		newSeedCommand(),
		newMigrateCommand(),
		newTokenCommand(),
	)

	return rootCmd
}
