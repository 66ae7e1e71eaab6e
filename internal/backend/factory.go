package backend

import (
	"context"
	"fmt"
	"log/slog"

	applog "expenses/internal/log"
	"expenses/internal/storage/jsonfile"
	"expenses/internal/storage/memory"
	"expenses/internal/storage/relational"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger.With(applog.FieldComponent, applog.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case MemoryBackend:
		return f.createMemoryBackend()
	case JSONBackend:
		return f.createJSONBackend(config)
	case RelationalBackend:
		return f.createRelationalBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	f.logger.Info("Initialized memory backend")

	return &BackendResult{
		Store:   memory.New(),
		Cleanup: nil, // contents go away with the process
	}, nil
}

func (f *DefaultFactory) createJSONBackend(config Config) (*BackendResult, error) {
	var opts []jsonfile.Option
	if config.Location != nil {
		opts = append(opts, jsonfile.WithLocation(config.Location))
	}

	store, err := jsonfile.New(config.JSONFilePath, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JSON file store: %w", err)
	}

	f.logger.Info("Initialized JSON file backend", applog.FieldPath, config.JSONFilePath)

	return &BackendResult{
		Store:   store,
		Cleanup: nil, // every write is flushed
	}, nil
}

func (f *DefaultFactory) createRelationalBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := relational.New(ctx, relational.Config{
		URL:      config.DBURL,
		User:     config.DBUser,
		Password: config.DBPassword,
		Location: config.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize relational store: %w", err)
	}

	f.logger.Info("Initialized relational backend", "dialect", store.Dialect().String())

	return &BackendResult{
		Store:   store,
		Cleanup: store.Close,
	}, nil
}
