package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"tokenchat/internal/ai"
	"tokenchat/internal/app"
	"tokenchat/internal/cache"
	"tokenchat/internal/config"
	"tokenchat/internal/pkg/tokencount"
	"tokenchat/internal/platform/database"
	rabbitmqClient "tokenchat/internal/platform/rabbitmq"
	redisClient "tokenchat/internal/platform/redis"
	"tokenchat/internal/repository"
	"tokenchat/internal/worker"
)

type Services struct {
	Ledger        *app.LedgerService
	Conversations *app.ConversationService
	Chat          *app.ChatService
	Support       *app.SupportService
}

type App struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection

	Publisher     *rabbitmqClient.MessagePublisher
	MessageWorker *worker.MessagePersistWorker
	Gateway       ai.Gateway
	Services      Services

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	return Build(ctx, cfg, NewLogger(cfg))
}

// Build wires every component from cfg. Redis and RabbitMQ are only dialed
// when enabled; without them listings are read straight from the database
// and assistant replies are stored synchronously.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	a := &App{
		Config:    cfg,
		Logger:    logger,
		StartedAt: time.Now(),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.DB, err = database.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(a.DB); err != nil {
		return nil, err
	}
	store := repository.NewStore(a.DB)

	var historyCache app.HistoryCache
	if cfg.Redis.Enabled {
		a.Redis, err = redisClient.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		historyCache = cache.NewMessageCache(
			a.Redis,
			time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
			time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
		)
	}

	counter := tokencount.New(tokencount.DefaultEncoding, logger)
	ledger := app.NewLedgerService(store, counter, app.LedgerConfig{
		DefaultQuota:         cfg.Ledger.DefaultQuota,
		ResponseMultiplier:   cfg.Ledger.ResponseMultiplier,
		AllowNegativeBalance: cfg.Ledger.AllowNegativeBalance,
	}, logger)
	conversations := app.NewConversationService(store, historyCache, logger)

	var publisher app.AsyncMessagePublisher = conversations
	if cfg.RabbitMQ.Enabled {
		a.MQConn, err = rabbitmqClient.New(cfg.RabbitMQ.URL)
		if err != nil {
			return nil, err
		}
		a.Publisher = rabbitmqClient.NewMessagePublisher(a.MQConn, cfg.RabbitMQ.MessagePersistQueue)
		publisher = a.Publisher

		a.MessageWorker = worker.NewMessagePersistWorker(a.MQConn, conversations, cfg.RabbitMQ.MessagePersistQueue, logger)
		if err = a.MessageWorker.Start(context.Background()); err != nil {
			return nil, fmt.Errorf("start message worker failed: %w", err)
		}
	}

	a.Gateway, err = newGateway(cfg)
	if err != nil {
		return nil, err
	}

	support := app.NewSupportService(store, logger)
	if err = support.Seed(ctx, supportBots(cfg.Support.Bots)); err != nil {
		return nil, err
	}

	a.Services = Services{
		Ledger:        ledger,
		Conversations: conversations,
		Chat:          app.NewChatService(store, ledger, conversations, a.Gateway, publisher, logger),
		Support:       support,
	}

	logger.Info("application wired",
		"db_driver", cfg.Database.Driver,
		"gateway", cfg.Gateway.Provider,
		"redis", cfg.Redis.Enabled,
		"rabbitmq", cfg.RabbitMQ.Enabled,
		"exact_token_count", counter.Exact(),
	)
	return a, nil
}

func newGateway(cfg *config.Config) (ai.Gateway, error) {
	switch cfg.Gateway.Provider {
	case "dify":
		return ai.NewDifyGateway(ai.DifyConfig{
			BaseURL: cfg.Gateway.BaseURL,
			APIKey:  cfg.Gateway.APIKey,
			Timeout: cfg.GatewayTimeout(),
		}), nil
	case "openai":
		return ai.NewOpenAIGateway(ai.OpenAIConfig{
			BaseURL: cfg.Gateway.BaseURL,
			APIKey:  cfg.Gateway.APIKey,
			Model:   cfg.Gateway.Model,
			Timeout: cfg.GatewayTimeout(),
		}), nil
	}
	return nil, fmt.Errorf("unsupported gateway provider %q", cfg.Gateway.Provider)
}

func supportBots(bots []config.SupportBot) []app.SupportBotSpec {
	specs := make([]app.SupportBotSpec, 0, len(bots))
	for _, bot := range bots {
		specs = append(specs, app.SupportBotSpec{
			Title:       bot.Title,
			Description: bot.Description,
			DifyModel:   bot.DifyModel,
		})
	}
	return specs
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	if a.MessageWorker != nil {
		a.MessageWorker.Close()
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.MQConn != nil && !a.MQConn.IsClosed() {
		if err := a.MQConn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
