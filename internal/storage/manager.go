package storage

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/wraith/internal/common"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/storage/badger"
	"github.com/ternarybob/wraith/internal/storage/gcp"
	"github.com/ternarybob/wraith/internal/storage/memory"
)

// Manager selects and owns the storage backends. Selection happens once at
// startup: managed GCP services in cloud mode, badger locally, in-memory
// when badger cannot open. The chosen backend never changes at runtime.
type Manager struct {
	JobStore  interfaces.JobStore
	TaskQueue interfaces.TaskQueue

	db     *badger.BadgerDB
	logger arbor.ILogger
}

// NewManager builds the storage backends for the given configuration
func NewManager(ctx context.Context, config *common.Config, logger arbor.ILogger) (*Manager, error) {
	m := &Manager{logger: logger}

	if config.IsCloud() {
		jobStore, err := gcp.NewJobStore(ctx, &config.Cloud, logger)
		if err != nil {
			return nil, err
		}
		taskQueue, err := gcp.NewTaskQueue(ctx, &config.Cloud, logger)
		if err != nil {
			jobStore.Close()
			return nil, err
		}

		m.JobStore = jobStore
		m.TaskQueue = taskQueue
		logger.Info().Msg("Storage backend: Firestore + Cloud Tasks")
		return m, nil
	}

	db, err := badger.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		logger.Warn().Err(err).Str("path", config.Storage.Badger.Path).Msg("Badger unavailable, falling back to in-memory storage")
		m.JobStore = memory.NewJobStore(logger)
		m.TaskQueue = memory.NewTaskQueue(logger)
		logger.Info().Msg("Storage backend: in-memory (non-durable)")
		return m, nil
	}

	m.db = db
	m.JobStore = badger.NewJobStore(db, logger)
	m.TaskQueue = badger.NewTaskQueue(db, logger)
	logger.Info().Str("path", config.Storage.Badger.Path).Msg("Storage backend: Badger")
	return m, nil
}

// Close shuts down the backends in reverse dependency order
func (m *Manager) Close() error {
	if m.TaskQueue != nil {
		if err := m.TaskQueue.Close(); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to close task queue")
		}
	}
	if m.JobStore != nil {
		if err := m.JobStore.Close(); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to close job store")
		}
	}
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
