package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/therealityreport/trr-surveys/internal/db"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.Database.MigrationsDir
			}
			dialect, err := db.ParseDialect(cfg.Database.Driver)
			if err != nil {
				return err
			}
			if lockPath := sqliteLockPath(dialect, cfg.Database.DSN); lockPath != "" {
				lock := flock.New(lockPath)
				ok, err := lock.TryLock()
				if err != nil {
					return fmt.Errorf("acquire migration lock: %w", err)
				}
				if !ok {
					return errors.New("another trrsurvey migrate is running against this database")
				}
				defer func() {
					_ = lock.Unlock()
					_ = os.Remove(lockPath)
				}()
			}

			store, err := db.Connect(cmd.Context(), dialect, cfg.Database.DSN, ctx.log())
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Migrate(cmd.Context(), dir); err != nil {
				return err
			}
			applied, err := store.AppliedMigrations(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s schema is up to date (%d migrations)\n", dialect, len(applied))
			for _, v := range applied {
				fmt.Fprintf(out, "  %s\n", v)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Read migrations from this directory instead of the embedded set")
	return cmd
}

// sqliteLockPath returns the lock file guarding a file-backed SQLite
// database, or "" when no lock applies.
func sqliteLockPath(dialect db.Dialect, dsn string) string {
	if dialect != db.DialectSQLite {
		return ""
	}
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return ""
	}
	return filepath.Clean(path) + ".migrate.lock"
}
