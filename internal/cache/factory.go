package cache

import (
	"time"

	"print-relay/internal/config"

	"go.uber.org/zap"
)

const memoryCleanupInterval = 5 * time.Minute

// NewStore returns a Redis-backed store when Redis is enabled and
// reachable, and an in-memory store otherwise.
func NewStore(cfg config.RedisConfig, logger *zap.Logger) SourceStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Info("using in-memory source store")
		return NewMemoryStore(memoryCleanupInterval)
	}

	store, err := NewRedisStore(RedisConfig{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}, WithLogger(logger))
	if err != nil {
		logger.Warn("Redis unavailable, falling back to in-memory source store. "+
			"Sessions will not survive a restart.",
			zap.Error(err))
		return NewMemoryStore(memoryCleanupInterval)
	}

	logger.Info("using Redis source store", zap.String("addr", cfg.Addr()))
	return store
}
