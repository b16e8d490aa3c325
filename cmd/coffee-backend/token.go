package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"coffee-backend/internal/config"
	"coffee-backend/internal/domain"
	"coffee-backend/internal/usecase"
)

// newTokenCmd issues a bearer token for local testing against the API.
func newTokenCmd(cfg *config.Config) *cobra.Command {
	var (
		user string
		role string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed JWT for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Env == "prod" {
				return fmt.Errorf("token issuing is disabled in prod")
			}
			auth := &usecase.AuthService{JWTSecret: withDevSecret(*cfg).JWTSecret}
			tok, err := auth.Issue(domain.Principal{UserID: user, Role: role}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "dev-user", "user id claim")
	cmd.Flags().StringVar(&role, "role", domain.RoleCustomer, "role claim (customer or admin)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
