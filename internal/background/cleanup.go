package background

import (
	"context"
	"log/slog"
	"time"
)

// Cleaner removes expired records and reports how many were purged.
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int, error)
}

// CleanupManager periodically purges expired OTP codes and email
// verification tokens so the memory stores do not grow unboundedly.
type CleanupManager struct {
	cleaners []Cleaner
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(logger *slog.Logger, interval time.Duration, cleaners ...Cleaner) *CleanupManager {
	return &CleanupManager{
		cleaners: cleaners,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// runCleanup sweeps every registered store
func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	total := 0
	for _, cleaner := range cm.cleaners {
		removed, err := cleaner.CleanupExpired(cleanupCtx)
		if err != nil {
			cm.logger.Error("failed to cleanup expired records", slog.Any("error", err))
			continue
		}
		total += removed
	}

	if total > 0 {
		cm.logger.Info("expired record cleanup completed", slog.Int("records_removed", total))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
