package backend

import (
	"context"
	"fmt"
	"log/slog"

	"envelopes/internal/amqp"
	"envelopes/internal/storage"
	"envelopes/internal/storage/memory"
)

// Factory creates stores based on configuration
type Factory interface {
	// CreateBackend creates a store instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

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
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case PostgresBackend:
		return f.createPostgresBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*Result, error) {
	store, err := storage.NewSQLiteStore(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}

	events := f.dialAMQP(config)

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", events != nil)

	return &Result{
		Store:   store,
		Events:  events,
		Cleanup: closeAll(store, events),
	}, nil
}

func (f *DefaultFactory) createPostgresBackend(config Config) (*Result, error) {
	store, err := storage.NewPostgresStore(config.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
	}

	events := f.dialAMQP(config)

	f.logger.Info("Initialized Postgres backend",
		"amqp_enabled", events != nil)

	return &Result{
		Store:   store,
		Events:  events,
		Cleanup: closeAll(store, events),
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*Result, error) {
	store := memory.New()
	events := f.dialAMQP(config)

	f.logger.Info("Initialized memory backend",
		"amqp_enabled", events != nil)

	return &Result{
		Store:   store,
		Events:  events,
		Cleanup: closeAll(store, events),
	}, nil
}

// dialAMQP connects the optional activity event client. Failures degrade to
// a nil client: the engine still works, it just publishes nothing.
func (f *DefaultFactory) dialAMQP(config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	events, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without activity events", "error", err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return events
}

func closeAll(store storage.Store, events *amqp.Client) CleanupFunc {
	return func() error {
		var firstErr error
		if events != nil {
			if err := events.Close(); err != nil {
				firstErr = err
			}
		}
		if store != nil {
			if err := store.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
}
