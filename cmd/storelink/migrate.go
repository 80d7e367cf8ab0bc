package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/storelink-api/pkg/config"
	"github.com/FACorreiaa/storelink-api/pkg/db"
)

type cliDeps struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *db.DB
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), func(_ context.Context, deps *cliDeps) error {
				if err := deps.db.RunMigrations(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), func(_ context.Context, deps *cliDeps) error {
				return deps.db.MigrationStatus()
			})
		},
	})

	return cmd
}
