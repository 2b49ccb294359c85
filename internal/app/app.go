package app

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"
	"go.uber.org/zap"

	"github.com/aidar/taskhub/internal/config"
	"github.com/aidar/taskhub/internal/handler"
	"github.com/aidar/taskhub/internal/logger"
	"github.com/aidar/taskhub/internal/middleware"
	"github.com/aidar/taskhub/internal/ratelimit"
	"github.com/aidar/taskhub/internal/realtime"
	"github.com/aidar/taskhub/internal/repository/postgres"
	"github.com/aidar/taskhub/internal/service"
)

// requestTimeout ограничивает обычные запросы. Поток активности живет дольше и в эту группу не входит
const requestTimeout = 60 * time.Second

// App представляет приложение со всеми зависимостями
type App struct {
	config *config.Config
	db     *pgxpool.Pool
	valkey valkey.Client
	hub    *realtime.Hub
	server *http.Server
	logger *zap.Logger

	stopRelay context.CancelFunc
	relayDone chan struct{}
}

// New создает новый экземпляр приложения
func New(cfg *config.Config) (*App, error) {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	// handler.HandleError пишет через глобальный логгер
	zap.ReplaceGlobals(log)

	return &App{
		config: cfg,
		logger: log,
	}, nil
}

// Logger возвращает логгер приложения
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Initialize инициализирует все компоненты приложения
func (a *App) Initialize(ctx context.Context) error {
	// Подключаемся к базе данных
	pool, err := NewPool(ctx, a.config.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = pool
	a.logger.Info("Connected to database")

	// Valkey опционален: без него лента работает в пределах одного инстанса
	if a.config.Valkey.Enabled() {
		client, err := NewValkeyClient(a.config.Valkey)
		if err != nil {
			return fmt.Errorf("failed to connect to valkey: %w", err)
		}
		a.valkey = client
		a.logger.Info("Connected to valkey", zap.String("addr", a.config.Valkey.Addr))
	}

	// Настраиваем HTTP сервер и роутинг
	if err := a.setupServer(); err != nil {
		return err
	}

	a.logger.Info("Application initialized successfully")
	return nil
}

// NewPool создает connection pool PostgreSQL и проверяет подключение
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Настраиваем размеры connection pool
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Проверяем подключение к БД
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// NewValkeyClient создает клиент Valkey по конфигурации
func NewValkeyClient(cfg config.ValkeyConfig) (valkey.Client, error) {
	options := valkey.ClientOption{
		InitAddress: []string{cfg.Addr},
		Username:    cfg.Username,
		Password:    cfg.Password,
	}

	if cfg.TLS {
		host, _, err := net.SplitHostPort(cfg.Addr)
		if err != nil {
			host = cfg.Addr
		}
		options.TLSConfig = &tls.Config{
			ServerName: host,
			MinVersion: tls.VersionTLS12,
		}
	}

	return valkey.NewClient(options)
}

// setupServer инициализирует сервисы, HTTP роутер и обработчики
func (a *App) setupServer() error {
	signingMethod, err := a.config.JWT.SigningMethod()
	if err != nil {
		return err
	}

	// Инициализируем слой репозиториев (работа с БД)
	txManager := postgres.NewTxManager(a.db)
	userRepo := postgres.NewUserRepository(a.db)
	teamRepo := postgres.NewTeamRepository(a.db)
	projectRepo := postgres.NewProjectRepository(a.db)
	taskRepo := postgres.NewTaskRepository(a.db)
	commentRepo := postgres.NewCommentRepository(a.db)
	activityRepo := postgres.NewActivityRepository(a.db)
	statsRepo := postgres.NewStatsRepository(a.db)

	// Лента активности: локальный хаб, а при наличии Valkey рассылка через pub/sub
	var broadcaster service.Broadcaster
	if a.config.Activity.StreamEnabled {
		a.hub = realtime.NewHub(a.logger.Named("hub"))
		broadcaster = a.hub
		if a.valkey != nil {
			broadcaster = realtime.NewValkeyBroadcaster(a.valkey)
			a.startRelay()
		}
	}

	// Инициализируем слой сервисов (бизнес-логика)
	authz := service.NewAuthorizer(teamRepo, projectRepo, taskRepo)
	activityService := service.NewActivityService(activityRepo, authz, broadcaster, a.logger.Named("activity"))
	authService := service.NewAuthService(
		userRepo,
		a.config.JWT.Secret,
		signingMethod,
		a.config.JWT.GetExpiration(),
	)
	userService := service.NewUserService(userRepo, authz)
	teamService := service.NewTeamService(txManager, teamRepo, userRepo, projectRepo, taskRepo, authz, activityService)
	projectService := service.NewProjectService(txManager, projectRepo, authz, activityService)
	taskService := service.NewTaskService(txManager, taskRepo, teamRepo, authz, activityService)
	commentService := service.NewCommentService(txManager, commentRepo, authz, activityService)
	statsService := service.NewStatsService(statsRepo, authz)

	// Инициализируем HTTP обработчики
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	teamHandler := handler.NewTeamHandler(teamService)
	projectHandler := handler.NewProjectHandler(projectService)
	taskHandler := handler.NewTaskHandler(taskService)
	commentHandler := handler.NewCommentHandler(commentService)
	activityHandler := handler.NewActivityHandler(activityService, a.hub, a.logger.Named("stream"))
	statsHandler := handler.NewStatsHandler(statsService)

	// Middleware для JWT авторизации и ограничения частоты запросов
	authMiddleware := middleware.AuthMiddleware(authService)
	rateLimit := middleware.RateLimit(a.newLimiter(), a.logger.Named("ratelimit"))

	// Настраиваем роутер
	r := chi.NewRouter()

	// Глобальные middleware (применяются ко всем запросам)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(a.logger.Named("http")))
	r.Use(chimiddleware.Recoverer)

	// Health check для мониторинга
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	// Публичные эндпоинты (без авторизации, с лимитом частоты)
	r.Route("/auth", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(requestTimeout))
		r.Use(rateLimit)
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	// Защищенные эндпоинты (требуют JWT токен в заголовке Authorization)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)

		// WebSocket живет дольше таймаута запроса
		r.Get("/projects/{projectID}/activity/stream", activityHandler.Stream)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(requestTimeout))

			// Эндпоинты пользователей
			r.Get("/users/me", userHandler.Me)
			r.Get("/users", userHandler.List)
			r.Patch("/users/{userID}/role", userHandler.SetRole)

			// Эндпоинты команд
			r.Post("/teams", teamHandler.Create)
			r.Get("/teams", teamHandler.List)
			r.Get("/teams/{teamID}", teamHandler.Get)
			r.Delete("/teams/{teamID}", teamHandler.Delete)
			r.Get("/teams/{teamID}/members", teamHandler.ListMembers)
			r.Post("/teams/{teamID}/members", teamHandler.AddMember)
			r.Delete("/teams/{teamID}/members/{userID}", teamHandler.RemoveMember)

			// Эндпоинты проектов
			r.Post("/projects", projectHandler.Create)
			r.Get("/projects", projectHandler.List)
			r.Get("/projects/{projectID}", projectHandler.Get)
			r.Patch("/projects/{projectID}", projectHandler.Update)
			r.Delete("/projects/{projectID}", projectHandler.Delete)
			r.Get("/projects/{projectID}/activity", activityHandler.List)
			r.Get("/projects/{projectID}/stats", statsHandler.ProjectStats)

			// Эндпоинты задач
			r.Post("/tasks", taskHandler.Create)
			r.Get("/tasks", taskHandler.List)
			r.Get("/tasks/{taskID}", taskHandler.Get)
			r.Patch("/tasks/{taskID}", taskHandler.Update)
			r.Delete("/tasks/{taskID}", taskHandler.Delete)

			// Эндпоинты комментариев
			r.Post("/tasks/{taskID}/comments", commentHandler.Create)
			r.Get("/tasks/{taskID}/comments", commentHandler.List)
			r.Delete("/tasks/{taskID}/comments/{commentID}", commentHandler.Delete)
		})
	})

	// Создаем HTTP сервер. WriteTimeout не задан: его ограничивает Timeout middleware,
	// а WebSocket соединения должны жить дольше
	addr := net.JoinHostPort(a.config.Server.Host, a.config.Server.Port)
	a.server = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("HTTP server configured", zap.String("addr", addr))
	return nil
}

// newLimiter выбирает общий лимитер в Valkey или локальный в памяти процесса
func (a *App) newLimiter() ratelimit.Limiter {
	cfg := a.config.RateLimit
	if a.valkey != nil {
		return ratelimit.NewValkeyLimiter(a.valkey, cfg.AuthRPS, cfg.AuthBurst)
	}
	return ratelimit.NewLocalLimiter(cfg.AuthRPS, cfg.AuthBurst)
}

// startRelay запускает пересылку событий из Valkey в локальный хаб
func (a *App) startRelay() {
	ctx, cancel := context.WithCancel(context.Background())
	a.stopRelay = cancel
	a.relayDone = make(chan struct{})

	relay := realtime.NewRelay(a.valkey, a.hub, a.logger.Named("relay"))
	go func() {
		defer close(a.relayDone)
		if err := relay.Run(ctx); err != nil {
			a.logger.Error("Activity relay stopped", zap.Error(err))
		}
	}()
}

// Run запускает HTTP сервер
func (a *App) Run() error {
	a.logger.Info("Starting HTTP server", zap.String("addr", a.server.Addr))
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown корректно останавливает приложение
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application")

	// Останавливаем HTTP сервер (ждем завершения текущих запросов).
	// Hijacked WebSocket соединения Shutdown не ждет, их закрывает хаб
	var shutdownErr error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("failed to shutdown server: %w", err)
		}
	}

	if a.stopRelay != nil {
		a.stopRelay()
		select {
		case <-a.relayDone:
		case <-ctx.Done():
		}
	}

	if a.hub != nil {
		a.hub.Close()
	}

	if a.valkey != nil {
		a.valkey.Close()
	}

	// Закрываем подключения к базе данных
	if a.db != nil {
		a.db.Close()
	}

	a.logger.Info("Application stopped gracefully")
	_ = a.logger.Sync()
	return shutdownErr
}
