package service

import (
	"context"
	"log/slog"
	"time"

	"bmr/config"
	"bmr/internal/domain"
	"bmr/internal/repository"

	"github.com/robfig/cron/v3"
)

// PaymentSweeper polls online payments the webhook never settled.
type PaymentSweeper struct {
	store repository.Store
	recon *ReconciliationService
	cfg   config.SweeperConfig
	cron  *cron.Cron
}

func NewPaymentSweeper(store repository.Store, recon *ReconciliationService, cfg config.SweeperConfig) *PaymentSweeper {
	return &PaymentSweeper{store: store, recon: recon, cfg: cfg}
}

// Start schedules the sweep; a run still in progress skips the next tick.
func (s *PaymentSweeper) Start() error {
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
		defer cancel()
		s.Sweep(ctx)
	})
	if err != nil {
		return err
	}
	slog.Info("payment sweeper started", "schedule", s.cfg.Schedule, "min_age", s.cfg.MinAge)
	s.cron.Start()
	return nil
}

func (s *PaymentSweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep refreshes the least recently checked batch and returns how many
// payments changed. Every polled row is stamped so the next run moves on.
func (s *PaymentSweeper) Sweep(ctx context.Context) int {
	now := time.Now()
	var after time.Time
	if s.cfg.MaxAge > 0 {
		after = now.Add(-s.cfg.MaxAge)
	}
	stale, err := s.store.Payments().StaleOnline(ctx, after, now.Add(-s.cfg.MinAge), s.cfg.Batch)
	if err != nil {
		slog.Error("payment sweep query failed", "err", err)
		return 0
	}
	changed := 0
	for i := range stale {
		if ctx.Err() != nil {
			break
		}
		res, err := s.recon.Refresh(ctx, &stale[i], domain.SourceSweeper)
		if markErr := s.store.Payments().MarkChecked(ctx, stale[i].ID, time.Now()); markErr != nil {
			slog.Warn("payment sweep mark failed", "payment", stale[i].UUID, "err", markErr)
		}
		if err != nil {
			slog.Warn("payment sweep refresh failed", "payment", stale[i].UUID, "err", err)
			continue
		}
		if res.Changed {
			changed++
		}
	}
	if len(stale) > 0 {
		slog.Info("payment sweep done", "checked", len(stale), "changed", changed)
	}
	return changed
}
