package commands

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/yakoovad/finflow/internal/auth"
	"github.com/yakoovad/finflow/internal/config"
)

func newTokenCommand() *cobra.Command {
	var (
		userID string
		teamID string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Auth.TokenSecret != "" {
				auth.TokenSecretKey = cfg.Auth.TokenSecret
			}
			if auth.TokenSecretKey == "" {
				return errors.New("TOKEN_AUTH_SECRET is not set")
			}

			token, err := auth.GenerateToken(userID, teamID, ttl)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().StringVar(&teamID, "team", "", "current team id")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTTL, "token lifetime")

	return cmd
}
