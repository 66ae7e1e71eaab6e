package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"expenses/internal/amqp"
	"expenses/internal/backend"
	"expenses/internal/cache"
	"expenses/internal/categories"
	"expenses/internal/config"
	"expenses/internal/forecast"
	applog "expenses/internal/log"
	"expenses/internal/services"
)

const amqpConnectTimeout = 10 * time.Second

// App holds everything a command needs. Build it with newApp and release it
// with Close.
type App struct {
	Config   *config.Config
	Logger   *applog.Logger
	Backend  backend.BackendType
	Service  *services.ExpenseService
	Forecast *forecast.Engine
}

// loadMatcher reads the category rules and memoizes lookups when the cache
// is enabled.
func loadMatcher(cfg *config.Config, logger *applog.Logger) (*categories.Matcher, error) {
	rules, err := categories.Load(cfg.CategoriesFile)
	if err != nil {
		return nil, err
	}

	var opts []categories.Option
	if cfg.CategoryCacheSize > 0 {
		opts = append(opts, categories.WithCache(cache.NewLRUCache[string](cfg.CategoryCacheSize, cfg.CategoryCacheTTL)))
	}

	logger.WithComponent(applog.ComponentCategory).Debug("Loaded category rules",
		applog.FieldPath, cfg.CategoriesFile,
		applog.FieldCount, rules.Len())

	return categories.NewMatcher(rules, opts...), nil
}

// newApp builds the store selected by bt, or by the configuration when bt is
// empty, and the services on top of it.
func newApp(ctx context.Context, cfg *config.Config, logger *applog.Logger, bt backend.BackendType) (*App, error) {
	matcher, err := loadMatcher(cfg, logger)
	if err != nil {
		return nil, err
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	if bt != "" {
		bcfg = bcfg.WithType(bt)
	}

	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("%s backend: %w", bcfg.Type, err)
	}

	opts := []services.Option{services.WithLogger(logger)}
	if client := connectEvents(ctx, cfg, logger); client != nil {
		opts = append(opts, services.WithPublisher(client))
	}

	svc := services.NewExpenseService(res.Store, matcher, opts...)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Backend:  bcfg.Type,
		Service:  svc,
		Forecast: forecast.NewEngine(res.Store, logger),
	}, nil
}

// connectEvents returns nil when events are disabled or the broker cannot be
// reached; expenses are still recorded either way.
func connectEvents(ctx context.Context, cfg *config.Config, logger *applog.Logger) *amqp.Client {
	if !cfg.EventsEnabled() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, amqpConnectTimeout)
	defer cancel()

	client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
	if err != nil {
		logger.WithComponent(applog.ComponentAMQP).Warn("Failed to initialize AMQP client, continuing without events",
			applog.FieldError, err)
		return nil
	}

	logger.WithComponent(applog.ComponentAMQP).Debug("Initialized AMQP client",
		"exchange", cfg.AMQPExchange,
		"routing_key", cfg.AMQPRoutingKey)
	return client
}

func (a *App) Close() error {
	if a == nil || a.Service == nil {
		return nil
	}
	if err := a.Service.Close(); err != nil {
		slog.Warn("Failed to close app", applog.FieldComponent, applog.ComponentCLI, applog.FieldError, err)
		return err
	}
	return nil
}
