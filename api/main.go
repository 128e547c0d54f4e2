package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rogerio-castellano/stock-ledger/internal/config"
	"github.com/rogerio-castellano/stock-ledger/internal/db"
	"github.com/rogerio-castellano/stock-ledger/internal/logger"
)

var configPath string

// @title Stock Ledger API
// @version 1.0
// @description REST API for a product catalog and its append-only stock movement ledger.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	root := &cobra.Command{
		Use:           "stockledger",
		Short:         "Inventory catalog and stock movement ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./stockledger.yaml)")
	root.AddCommand(serveCmd(), migrateCmd(), createUserCmd())

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// bootstrap loads the configuration, builds the logger and opens the
// database with the schema applied.
func bootstrap(ctx context.Context) (*config.Config, zerolog.Logger, *db.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Nop(), nil, err
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if cfg.GeneratedSecret {
		log.Warn().Msg("no jwt.secret configured, using a random secret; tokens will not survive a restart")
	}

	database, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, log, nil, fmt.Errorf("could not connect to database: %w", err)
	}
	if err := db.Migrate(ctx, database); err != nil {
		database.Close()
		return nil, log, nil, fmt.Errorf("could not migrate database: %w", err)
	}
	log.Info().Str("driver", database.Driver).Msg("database ready")
	return cfg, log, database, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _, database, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			return database.Close()
		},
	}
}
