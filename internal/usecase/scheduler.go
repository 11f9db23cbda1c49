package usecase

import (
	"context"
	"log/slog"
	"time"

	"ReportHarvester/internal/domain"
	"ReportHarvester/internal/ports"
)

// Scheduler wires the cron-like driver with the multi-ticker harvest.
type Scheduler struct {
	driver   ports.Scheduler
	harvest  *Driver
	universe []domain.Ticker
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring harvests.
func NewScheduler(driver ports.Scheduler, harvest *Driver, universe []domain.Ticker, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{driver: driver, harvest: harvest, universe: universe, logger: logger}
}

// Start registers the harvest with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.harvest == nil {
		return nil
	}

	job := func(trigger time.Time) {
		s.logger.Info("scheduled harvest triggered", "at", trigger)
		if _, err := s.harvest.Run(ctx, s.universe); err != nil {
			s.logger.Warn("scheduled harvest interrupted", "error", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
