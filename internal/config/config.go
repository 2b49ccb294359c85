package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server    ServerConfig    // Настройки HTTP сервера
	Database  DatabaseConfig  // Настройки подключения к БД
	JWT       JWTConfig       // Настройки JWT авторизации
	Log       LogConfig       // Настройки логирования
	Activity  ActivityConfig  // Настройки ленты активности
	Valkey    ValkeyConfig    // Настройки Valkey (опционально)
	RateLimit RateLimitConfig // Ограничение частоты запросов к /auth
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port string `envconfig:"SERVER_PORT" default:"8080"`
	Host string `envconfig:"SERVER_HOST" default:"0.0.0.0"`
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	URL      string `envconfig:"DATABASE_URL"` // Если задан, имеет приоритет над остальными полями
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"taskhub"`
	Password string `envconfig:"DB_PASSWORD" default:"taskhub_pass"`
	Name     string `envconfig:"DB_NAME" default:"taskhub"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`
}

// JWTConfig содержит настройки JWT авторизации
type JWTConfig struct {
	Secret          string `envconfig:"JWT_SECRET" required:"true"`
	ExpirationWeeks int    `envconfig:"JWT_EXPIRATION_WEEKS" default:"1"`
	Algorithm       string `envconfig:"JWT_ALGORITHM" default:"HS256"`
}

// LogConfig содержит настройки логирования
type LogConfig struct {
	Env   string `envconfig:"APP_ENV" default:"development"`
	Level string `envconfig:"LOG_LEVEL" default:"info"`
}

// ActivityConfig содержит настройки ленты активности
type ActivityConfig struct {
	StreamEnabled bool `envconfig:"ACTIVITY_STREAM_ENABLED" default:"true"`
}

// ValkeyConfig содержит настройки подключения к Valkey. Пустой адрес отключает Valkey
type ValkeyConfig struct {
	Addr     string `envconfig:"VALKEY_ADDR"`
	Username string `envconfig:"VALKEY_USERNAME"`
	Password string `envconfig:"VALKEY_PASSWORD"`
	TLS      bool   `envconfig:"VALKEY_TLS" default:"false"`
}

// RateLimitConfig содержит лимиты для эндпоинтов аутентификации
type RateLimitConfig struct {
	AuthRPS   float64 `envconfig:"RATE_LIMIT_AUTH_RPS" default:"5"`
	AuthBurst int     `envconfig:"RATE_LIMIT_AUTH_BURST" default:"10"`
}

// Enabled возвращает true если адрес Valkey задан
func (v ValkeyConfig) Enabled() bool {
	return v.Addr != ""
}

// GetExpiration возвращает срок действия токена как time.Duration
func (j JWTConfig) GetExpiration() time.Duration {
	return time.Duration(j.ExpirationWeeks) * 7 * 24 * time.Hour
}

// SigningMethod возвращает метод подписи JWT по имени алгоритма
func (j JWTConfig) SigningMethod() (*jwt.SigningMethodHMAC, error) {
	switch j.Algorithm {
	case "HS256":
		return jwt.SigningMethodHS256, nil
	case "HS384":
		return jwt.SigningMethodHS384, nil
	case "HS512":
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported JWT algorithm %q", j.Algorithm)
	}
}

// DSN возвращает строку подключения к PostgreSQL
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// Validate проверяет значения, которые envconfig не может проверить сам
func (c *Config) Validate() error {
	if _, err := c.JWT.SigningMethod(); err != nil {
		return err
	}
	if c.JWT.ExpirationWeeks <= 0 {
		return errors.New("JWT_EXPIRATION_WEEKS must be positive")
	}
	if c.RateLimit.AuthRPS <= 0 || c.RateLimit.AuthBurst <= 0 {
		return errors.New("rate limit values must be positive")
	}
	return nil
}

// Load читает .env файл (если он есть) и конфигурацию из переменных окружения
func Load(envFiles ...string) (*Config, error) {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
