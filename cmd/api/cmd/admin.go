package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aidar/taskhub/internal/app"
	"github.com/aidar/taskhub/internal/logger"
	"github.com/aidar/taskhub/internal/repository/postgres"
	"github.com/aidar/taskhub/internal/service"
)

var (
	adminEmail    string
	adminPassword string
)

// createAdminCmd создает администратора или повышает существующего пользователя
var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin account or promote an existing one",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if adminEmail == "" || adminPassword == "" {
			return errors.New("--email and --password are required")
		}

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
		}
		signingMethod, err := cfg.JWT.SigningMethod()
		if err != nil {
			return err
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

		authService := service.NewAuthService(
			postgres.NewUserRepository(pool),
			cfg.JWT.Secret,
			signingMethod,
			cfg.JWT.GetExpiration(),
		)

		user, err := authService.CreateAdmin(cmd.Context(), adminEmail, adminPassword)
		if err != nil {
			return err
		}

		log.Info("Admin ready",
			zap.String("user_id", user.ID.String()),
			zap.String("email", user.Email),
		)
		return nil
	},
}

func init() {
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "admin email")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "admin password")
	rootCmd.AddCommand(createAdminCmd)
}
