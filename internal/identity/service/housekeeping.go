package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/skylensaero/identity/internal/identity/store"
)

// HousekeepingService periodically flips pending invitations past their
// expiry to expired. The sweep is an optimization: every read path already
// treats overdue pending rows as expired, so it only has to be idempotent,
// not timely. Concurrent or repeated runs are harmless because the flip is a
// conditional update.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a sweep with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call Stop() to shut it
// down gracefully.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop shuts the worker down and blocks until any in-progress sweep ends.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run a sweep immediately on startup
	s.Sweep(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Sweep performs one pass. Exported so tests and operators can run it on
// demand.
func (s *HousekeepingService) Sweep(ctx context.Context) {
	n, err := s.Store.Invitations().ExpireOverdueInvitations(ctx, time.Now().UTC())
	if err != nil {
		s.Logger.Error("failed to expire overdue invitations", "error", err)
		return
	}
	if n > 0 {
		s.Logger.Info("expired overdue invitations", "count", n)
	}
}
