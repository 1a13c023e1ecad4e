package main

import (
	"context"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/therealityreport/trr-surveys/internal/config"
	"github.com/therealityreport/trr-surveys/internal/db"
	"github.com/therealityreport/trr-surveys/internal/logging"
)

const skipConfigAnnotation = "skipConfigLoad"

type commandContext struct {
	configFlag *string

	once   sync.Once
	config *config.Config
	logger *zap.Logger
	err    error
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.once.Do(func() {
		cfg, _, err := config.Load(strings.TrimSpace(*c.configFlag))
		if err != nil {
			c.err = err
			return
		}
		logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
		if err != nil {
			c.err = err
			return
		}
		c.config = cfg
		c.logger = logger
	})
	return c.config, c.err
}

func (c *commandContext) log() *zap.Logger {
	if c.logger == nil {
		return zap.NewNop()
	}
	return c.logger
}

// openStore connects to the configured database and applies migrations.
func (c *commandContext) openStore(ctx context.Context) (*db.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	dialect, err := db.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	store, err := db.Connect(ctx, dialect, cfg.Database.DSN, c.log())
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx, cfg.Database.MigrationsDir); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipConfigAnnotation] == "true" {
			return true
		}
	}
	return false
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := &commandContext{configFlag: &configFlag}

	rootCmd := &cobra.Command{
		Use:           "trrsurvey",
		Short:         "Survey service for The Reality Report",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if ctx.logger != nil {
				_ = ctx.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "trrsurvey.toml", "Configuration file path")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newImportCommand(ctx))
	rootCmd.AddCommand(newTemplatesCommand())
	rootCmd.AddCommand(newScheduleRunsCommand(ctx))
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newHashAdminTokenCommand())
	rootCmd.AddCommand(newSignTokenCommand(ctx))
	return rootCmd
}
