package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"themeaudit/internal/store"
)

func newMigrateCmd(c *cli) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the consultation schema in a local or sandbox database",
		Long: `Applies db/migrations to the configured database. Use it on SQLite
copies and test databases; the application owns its production schema, and
migrate refuses a database whose consultation tables it did not create.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = c.cfg.MigrationsDir
			}
			ctx := cmd.Context()
			db, err := store.Open(ctx, c.cfg.DatabaseDriver, c.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := store.ApplyMigrations(ctx, db, dir)
			if errors.Is(err, store.ErrUnmanagedSchema) {
				return fmt.Errorf("%w; point DATABASE_URL at a sandbox copy", err)
			}
			if err != nil {
				return err
			}
			c.logger.Info("migrations applied", zap.Strings("versions", applied))
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No migrations to apply")
				return nil
			}
			for _, version := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %s\n", version)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Migrations directory (default: THEMEAUDIT_MIGRATIONS_DIR)")
	return cmd
}
