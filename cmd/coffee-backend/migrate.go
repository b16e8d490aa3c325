package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"coffee-backend/internal/config"
	"coffee-backend/internal/infrastructure/repo"
)

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the Postgres schema and optionally seed the menu",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.DatabaseURL == "" {
				return errors.New("COFFEE_DATABASE_URL or --database-url is required")
			}
			db, err := repo.OpenPostgres(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()
			ctx := cmd.Context()
			if err := repo.Migrate(ctx, db); err != nil {
				return err
			}
			if seed {
				catalog := repo.NewPostgresCatalog(db)
				for _, p := range repo.DefaultMenu() {
					if err := catalog.Put(ctx, p); err != nil {
						return fmt.Errorf("seed %s: %w", p.ID, err)
					}
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "insert the default menu")
	return cmd
}
