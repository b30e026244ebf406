package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fenwick-labs/stationrt/internal/configstore"
	"github.com/fenwick-labs/stationrt/internal/logging"
)

// runConfigUpdateCmd applies a single on-disk YAML config mirror to
// ConfigStore and exits, without starting the scan loop — the path a
// config push pipeline uses instead of waiting for the filesystem
// watcher's poll interval to notice the file changed.
func runConfigUpdateCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "run-config-update <path>",
		Short: "apply a YAML config mirror to the ConfigStore and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("%w: %v", errMisconfiguration, err)
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Daemon.LogLevel = logLevel
			}
			logging.SetLevelFromString(cfg.Daemon.LogLevel)
			logging.InitStructured(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)

			ctx := cmd.Context()
			store, err := configstore.NewPostgres(ctx, cfg.Postgres.DSN)
			if err != nil {
				return fmt.Errorf("connect configstore: %w", err)
			}
			defer store.Close()

			reloader := configstore.NewYamlReloader(store)
			if err := reloader.Reload(ctx, path); err != nil {
				return fmt.Errorf("apply config mirror %s: %w", path, err)
			}

			logging.Op().Info("config update applied", "path", path)
			fmt.Printf("applied config mirror %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "NOTSET, DEBUG, INFO, WARNING, ERROR, or CRITICAL")
	return cmd
}
