package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/yakoovad/finflow/internal/db"
	"github.com/yakoovad/finflow/internal/seed"
)

func newSeedCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Apply the schema and load fixtures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.logger.Sync()
			ctx := a.context(cmd.Context())

			fixtures, err := seed.Default()
			if file != "" {
				fixtures, err = seed.LoadFile(file)
			}
			if err != nil {
				return err
			}

			pool, err := a.pool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err = db.Migrate(ctx, pool); err != nil {
				return err
			}

			r := newRepos(pool)
			res, err := seed.New(db.NewPgxTransactor(pool)).
				WithTeamRepo(r.teams).
				WithUserRepo(r.users).
				WithCatalogRepo(r.catalog).
				Apply(ctx, fixtures)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d teams, %d users, %d memberships\n", res.Teams, res.Users, res.Memberships)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "fixtures YAML file (defaults to the built-in set)")

	return cmd
}
