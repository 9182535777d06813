package commands

import (
	"github.com/spf13/cobra"
	"github.com/yakoovad/finflow/internal/db"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.logger.Sync()
			ctx := a.context(cmd.Context())

			pool, err := a.pool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err = db.Migrate(ctx, pool); err != nil {
				return err
			}
			a.logger.Info("schema applied")
			return nil
		},
	}
}
