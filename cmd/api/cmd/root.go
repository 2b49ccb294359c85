package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aidar/taskhub/internal/config"
)

// envFile путь к .env файлу, общий для всех команд
var envFile string

// rootCmd без подкоманды запускает HTTP сервер
var rootCmd = &cobra.Command{
	Use:          "api",
	Short:        "Task management REST API",
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute запускает корневую команду. Вызывается из main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to .env file (missing file is ignored)")
}

// loadConfig загружает конфигурацию с учетом --env-file
func loadConfig() (*config.Config, error) {
	return config.Load(envFile)
}
