// Package reaper is the expiry collaborator: the download manager flags
// expired items but never deletes them itself, so this service sweeps
// Completed items whose expiry has elapsed.
package reaper

import (
	"context"
	"log/slog"
	"time"

	"tunecache/internal/manager"
	"tunecache/pkg/models"
)

// Service periodically deletes expired offline content
type Service struct {
	manager  *manager.Manager
	interval time.Duration
	logger   *slog.Logger
}

// New creates a reaper sweeping at the given interval
func New(mgr *manager.Manager, interval time.Duration) *Service {
	return &Service{
		manager:  mgr,
		interval: interval,
		logger:   slog.Default(),
	}
}

// Run sweeps immediately and then on every tick until ctx is cancelled
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.ReapOnce()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Expiry reaper shutting down")
			return
		case <-ticker.C:
			s.ReapOnce()
		}
	}
}

// ReapOnce deletes every Completed item whose expiry has elapsed and
// returns how many were removed.
func (s *Service) ReapOnce() int {
	now := time.Now()
	reaped := 0

	for _, item := range s.manager.CurrentState().Items {
		if item.Status != models.StatusCompleted || !item.IsExpired(now) {
			continue
		}

		if err := s.manager.Delete(item.ID); err != nil {
			s.logger.Warn("Failed to reap expired item", "id", item.ID, "error", err)
			continue
		}
		reaped++
		s.logger.Info("Expired item reaped", "id", item.ID, "expired_at", item.ExpiresAt)
	}

	if reaped > 0 {
		s.logger.Info("Expiry sweep completed", "reaped", reaped)
	}
	return reaped
}
