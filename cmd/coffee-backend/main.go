package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"coffee-backend/internal/config"
	"coffee-backend/internal/env"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	env.Load(".env", ".env.local")
	cfg := config.EnvDefaults()

	root := &cobra.Command{
		Use:           "coffee-backend",
		Short:         "Coffee shop ordering and payment backend",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	f := root.PersistentFlags()
	f.StringVar(&cfg.Env, "env", cfg.Env, "environment: dev, staging or prod")
	f.IntVar(&cfg.Port, "port", cfg.Port, "HTTP listen port")
	f.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "Postgres DSN; empty keeps orders in memory")
	f.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "HS256 secret shared with the identity service")
	f.BoolVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "log as JSON")

	serve := newServeCmd(&cfg)
	root.RunE = serve.RunE
	root.AddCommand(serve, newMigrateCmd(&cfg), newTokenCmd(&cfg))
	return root
}

const devJWTSecret = "coffee-dev-secret"

// withDevSecret lets dev and staging run without COFFEE_JWT_SECRET. Prod is
// rejected earlier by Config.Validate.
func withDevSecret(cfg config.Config) config.Config {
	if cfg.JWTSecret == "" && cfg.Env != "prod" {
		cfg.JWTSecret = devJWTSecret
	}
	return cfg
}
