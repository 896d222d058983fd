// Package recon runs the scheduled conservation sweep: a periodic check
// that, per medicine, deposits minus retirements equal the sum of every
// stored balance. A drift means a bug or manual database surgery; the
// sweep alerts, it never mutates.
package recon

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/warp/stock-ledger/report"
)

// Sweeper schedules the conservation check.
type Sweeper struct {
	cron    *cron.Cron
	reports *report.Service
	logger  *zap.Logger
}

// NewSweeper creates a sweeper. The schedule is registered by Start.
func NewSweeper(reports *report.Service, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		cron:    cron.New(),
		reports: reports,
		logger:  logger,
	}
}

// Start registers the sweep under a standard 5-field cron expression and
// starts the scheduler. An empty schedule disables it.
func (s *Sweeper) Start(schedule string) error {
	if schedule == "" {
		s.logger.Info("conservation sweep disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return err
	}
	s.logger.Info("conservation sweep scheduled", zap.String("schedule", schedule))
	s.cron.Start()
	return nil
}

// Stop stops the scheduler. Running sweeps finish.
func (s *Sweeper) Stop() {
	s.cron.Stop()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("conservation sweep failed", zap.Error(err))
	}
}

// RunOnce executes one conservation check and logs per-item drift. Returns
// the reports so callers (tests, an admin endpoint) can inspect them.
func (s *Sweeper) RunOnce(ctx context.Context) ([]report.ConservationReport, error) {
	reports, err := s.reports.VerifyConservation(ctx)
	if err != nil {
		return nil, err
	}

	drifted := 0
	for _, r := range reports {
		if r.Balanced() {
			continue
		}
		drifted++
		s.logger.Error("conservation drift detected",
			zap.String("item_id", string(r.ItemID)),
			zap.Int64("deposited", r.Deposited),
			zap.Int64("retired", r.Retired),
			zap.Int64("held", r.Held),
			zap.Int64("drift", r.Drift()),
		)
	}
	s.logger.Info("conservation sweep complete",
		zap.Int("items", len(reports)),
		zap.Int("drifted", drifted),
	)
	return reports, nil
}
