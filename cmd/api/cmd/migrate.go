package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aidar/taskhub/internal/app"
	"github.com/aidar/taskhub/internal/logger"
	"github.com/aidar/taskhub/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
		}

		log, err := logger.New(cfg.Log)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		pool, err := app.NewPool(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()

		applied, err := migrations.Apply(cmd.Context(), pool)
		if err != nil {
			return err
		}

		if len(applied) == 0 {
			log.Info("Schema is up to date")
			return nil
		}
		log.Info("Migrations applied", zap.Strings("versions", applied))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
