//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/servemehq/chat-api/internal/config"
	"github.com/servemehq/chat-api/internal/domain/message"
	"github.com/servemehq/chat-api/internal/domain/notification"
	"github.com/servemehq/chat-api/internal/domain/push"
	"github.com/servemehq/chat-api/internal/domain/sync"
	"github.com/servemehq/chat-api/internal/infrastructure/auth"
	"github.com/servemehq/chat-api/internal/infrastructure/database"
	"github.com/servemehq/chat-api/internal/infrastructure/logger"
	messagerepo "github.com/servemehq/chat-api/internal/infrastructure/repository/message"
	notificationrepo "github.com/servemehq/chat-api/internal/infrastructure/repository/notification"
	pushrepo "github.com/servemehq/chat-api/internal/infrastructure/repository/push"
	"github.com/servemehq/chat-api/internal/interfaces/httpserver"
	"github.com/servemehq/chat-api/internal/interfaces/httpserver/handlers"
	"github.com/servemehq/chat-api/internal/worker"
)

var chatSet = wire.NewSet(
	messagerepo.NewRepository,
	wire.Bind(new(message.Repository), new(*messagerepo.Repository)),
	notificationrepo.NewRepository,
	wire.Bind(new(notification.Repository), new(*notificationrepo.Repository)),
	wire.Bind(new(notification.UnreadStore), new(*notificationrepo.Repository)),
	pushrepo.NewRepository,
	wire.Bind(new(push.Repository), new(*pushrepo.Repository)),
	provideStorage,
	provideCounter,
	provideBroadcaster,
	wire.Bind(new(message.Events), new(*sync.Broadcaster)),
	wire.Bind(new(notification.Events), new(*sync.Broadcaster)),
	provideNotificationService,
	wire.Bind(new(message.Notifier), new(*notification.Service)),
	provideMessageService,
	providePushService,
	sync.NewStoreSnapshots,
	wire.Bind(new(sync.Snapshots), new(*sync.StoreSnapshots)),
	sync.NewEngine,
	provideRetentionWorker,
)

// BuildApplication assembles the chat API with Wire.
func BuildApplication(ctx context.Context) (*Application, error) {
	wire.Build(
		config.Load,
		logger.New,
		auth.NewValidator,
		newDatabaseConfig,
		newGormDB,
		provideWireBus,
		chatSet,
		handlers.NewProvider,
		httpserver.New,
		NewApplication,
	)
	return nil, nil
}

func newDatabaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        database.LogLevelFromString(cfg.LogLevel),
		AutoCreate:      cfg.DBAutoCreate,
	}
}

func newGormDB(ctx context.Context, cfg database.Config, log zerolog.Logger) (*gorm.DB, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(ctx, db, log); err != nil {
		return nil, err
	}
	return db, nil
}

func provideWireBus(cfg *config.Config, log zerolog.Logger) (sync.Bus, error) {
	bus, _, err := provideBus(cfg, log)
	return bus, err
}

func provideCounter(repo *notificationrepo.Repository, cfg *config.Config, log zerolog.Logger) *notification.Counter {
	return notification.NewCounter(repo, cfg.UnreadPollInterval, log)
}

func provideBroadcaster(bus sync.Bus, log zerolog.Logger) *sync.Broadcaster {
	return sync.NewBroadcaster(bus, log)
}

func provideNotificationService(repo *notificationrepo.Repository, events *sync.Broadcaster, counter *notification.Counter, cfg *config.Config, log zerolog.Logger) *notification.Service {
	return notification.NewService(repo, events, counter, cfg.NotificationRetention, log)
}

func provideMessageService(cfg *config.Config, repo *messagerepo.Repository, store message.Storage, events *sync.Broadcaster, notifier *notification.Service, log zerolog.Logger) *message.Service {
	return message.NewService(cfg, repo, store, events, notifier, log)
}

func providePushService(repo *pushrepo.Repository, cfg *config.Config, log zerolog.Logger) *push.Service {
	return push.NewService(repo, cfg.PushPersistRetryDelay, cfg.PushFailureRetryDelay, log)
}

func provideRetentionWorker(service *notification.Service, cfg *config.Config, log zerolog.Logger) *worker.RetentionWorker {
	return worker.NewRetentionWorker(service, cfg.RetentionSweepEvery, log)
}
