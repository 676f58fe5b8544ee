package backend

import (
	"context"
	"fmt"
	"log/slog"

	"expensetracker/internal/mongo"
	"expensetracker/internal/storage"
	"expensetracker/internal/store/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case MemoryBackend:
		s := memory.New()
		f.logger.Info("Initialized memory backend")
		return &BackendResult{Store: s, Cleanup: s.Close}, nil

	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return &BackendResult{Store: repo, Cleanup: repo.Close}, nil

	case MongoBackend:
		s, err := mongo.Open(config.MongoURI, config.MongoDatabase, config.MongoDialTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		if err := s.Ping(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("ping MongoDB: %w", err)
		}
		f.logger.Info("Initialized MongoDB backend", "database", config.MongoDatabase)
		return &BackendResult{Store: s, Cleanup: s.Close}, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
