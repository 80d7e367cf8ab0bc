package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/storelink-api/cmd/api"
	"github.com/FACorreiaa/storelink-api/pkg/config"
	"github.com/FACorreiaa/storelink-api/pkg/logger"
)

func serveCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and Connect API server",
		Long: `Start the StoreLink server. Pending migrations are applied on startup.

Examples:
  storelink serve
  storelink serve --config config.yaml --port 9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return api.Serve(ctx, cfg, log)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "override server.port")
	return cmd
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.New(os.Stdout, cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	slog.SetDefault(log)
	return cfg, log, nil
}

// withDatabase opens the pool for one-shot commands.
func withDatabase(ctx context.Context, fn func(ctx context.Context, deps *cliDeps) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	database, err := api.OpenDatabase(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	return fn(ctx, &cliDeps{cfg: cfg, logger: log, db: database})
}
