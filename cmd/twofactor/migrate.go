package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/twofactor/internal/config"
	"github.com/dmitrymomot/twofactor/migrations"
	"github.com/dmitrymomot/twofactor/pkg/pg"
)

var migrateCommands = []string{"up", "down", "status", "version", "reset"}

func newMigrateCmd(envFiles *[]string) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status|version|reset]",
		Short:     "Apply Postgres schema migrations",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: migrateCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}
			if !slices.Contains(migrateCommands, command) {
				return fmt.Errorf("unknown migrate command %q", command)
			}

			var cfg config.Migrate
			if err := config.Load(&cfg, *envFiles...); err != nil {
				return err
			}
			log, err := newLogger(cfg.App)
			if err != nil {
				return err
			}

			pool, err := pg.Connect(cmd.Context(), cfg.PG)
			if err != nil {
				return err
			}
			defer pool.Close()

			return pg.Migrate(cmd.Context(), pool, migrations.FS, cfg.PG.MigrationsTable, command, log)
		},
	}
}
