package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/servemehq/chat-api/internal/config"
	"github.com/servemehq/chat-api/internal/domain/message"
	"github.com/servemehq/chat-api/internal/domain/notification"
	"github.com/servemehq/chat-api/internal/domain/push"
	"github.com/servemehq/chat-api/internal/domain/sync"
	"github.com/servemehq/chat-api/internal/infrastructure/auth"
	"github.com/servemehq/chat-api/internal/infrastructure/changefeed"
	"github.com/servemehq/chat-api/internal/infrastructure/database"
	"github.com/servemehq/chat-api/internal/infrastructure/logger"
	"github.com/servemehq/chat-api/internal/infrastructure/observability"
	messagerepo "github.com/servemehq/chat-api/internal/infrastructure/repository/message"
	notificationrepo "github.com/servemehq/chat-api/internal/infrastructure/repository/notification"
	pushrepo "github.com/servemehq/chat-api/internal/infrastructure/repository/push"
	"github.com/servemehq/chat-api/internal/infrastructure/storage"
	"github.com/servemehq/chat-api/internal/interfaces/httpserver"
	"github.com/servemehq/chat-api/internal/interfaces/httpserver/handlers"
	"github.com/servemehq/chat-api/internal/worker"
)

// @title Chat API
// @version 1.0
// @description Real-time messaging and notification delivery service
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
type Application struct {
	httpServer *httpserver.HttpServer
	retention  *worker.RetentionWorker
	engine     *sync.Engine
	log        zerolog.Logger
}

func NewApplication(httpServer *httpserver.HttpServer, retention *worker.RetentionWorker, engine *sync.Engine, log zerolog.Logger) *Application {
	return &Application{
		httpServer: httpServer,
		retention:  retention,
		engine:     engine,
		log:        log,
	}
}

func (a *Application) Start(ctx context.Context) error {
	go a.retention.Start(ctx)
	defer a.engine.Close()
	return a.httpServer.Run(ctx)
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	db, err := database.Connect(database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        database.LogLevelFromString(cfg.LogLevel),
		AutoCreate:      cfg.DBAutoCreate,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}

	if err := database.AutoMigrate(ctx, db, log); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	storageClient, err := provideStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize storage")
	}

	bus, closeBus, err := provideBus(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect change feed")
	}
	defer closeBus()

	authValidator, err := auth.NewValidator(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize auth validator")
	}

	messageRepository := messagerepo.NewRepository(db)
	notificationRepository := notificationrepo.NewRepository(db)
	pushRepository := pushrepo.NewRepository(db)

	broadcaster := sync.NewBroadcaster(bus, log)
	counter := notification.NewCounter(notificationRepository, cfg.UnreadPollInterval, log)

	notificationService := notification.NewService(notificationRepository, broadcaster, counter, cfg.NotificationRetention, log)
	messageService := message.NewService(cfg, messageRepository, storageClient, broadcaster, notificationService, log)
	pushService := push.NewService(pushRepository, cfg.PushPersistRetryDelay, cfg.PushFailureRetryDelay, log)

	snapshots := sync.NewStoreSnapshots(messageRepository, notificationRepository)
	engine := sync.NewEngine(bus, snapshots, counter, log)

	retentionWorker := worker.NewRetentionWorker(notificationService, cfg.RetentionSweepEvery, log)

	provider := handlers.NewProvider(cfg, messageService, notificationService, pushService, engine, counter, log)
	httpServer := httpserver.New(cfg, log, provider, authValidator)
	app := NewApplication(httpServer, retentionWorker, engine, log)

	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

// provideStorage creates the appropriate storage backend based on configuration.
func provideStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (message.Storage, error) {
	if cfg.IsLocalStorage() {
		return storage.NewLocalStorage(cfg, log)
	}
	return storage.NewS3Storage(ctx, cfg, log)
}

// provideBus connects the NATS change feed, or falls back to the in-process
// bus when no URL is configured (single-node deployments).
func provideBus(cfg *config.Config, log zerolog.Logger) (sync.Bus, func(), error) {
	if cfg.NATSURL == "" {
		log.Info().Msg("no NATS URL configured, using in-process change feed")
		return changefeed.NewMemoryBus(), func() {}, nil
	}
	bus, err := changefeed.NewNATSBus(cfg.NATSURL, log)
	if err != nil {
		return nil, nil, err
	}
	return bus, bus.Close, nil
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
