package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"trainer-billing/internal/infra/metrics"
	"trainer-billing/internal/infra/redis"
	"trainer-billing/internal/usecase"
)

const reminderLockKey = "sched:reminder"

// ReminderWorker periodically emits renewal reminders for subscriptions
// approaching their end date.
type ReminderWorker struct {
	interval time.Duration
	horizons []int
	notifUC  usecase.NotificationUseCase
	locker   Locker
	log      *zerolog.Logger
}

func NewReminderWorker(interval time.Duration, horizons []int, notifUC usecase.NotificationUseCase, locker Locker, logger *zerolog.Logger) *ReminderWorker {
	compLog := logger.With().Str("component", "ReminderWorker").Logger()
	if len(horizons) == 0 {
		horizons = []int{7, 3, 1}
	}
	return &ReminderWorker{
		interval: interval,
		horizons: horizons,
		notifUC:  notifUC,
		locker:   locker,
		log:      &compLog,
	}
}

func (w *ReminderWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting reminder worker")
	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping reminder worker")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ReminderWorker) sweep(ctx context.Context) {
	token, err := w.locker.TryLock(ctx, reminderLockKey, w.interval)
	if err != nil {
		if errors.Is(err, redis.ErrLockHeld) {
			return
		}
		w.log.Warn().Err(err).Msg("reminder lock unavailable, running unguarded")
	} else {
		defer func() {
			if err := w.locker.Unlock(ctx, reminderLockKey, token); err != nil {
				w.log.Debug().Err(err).Msg("reminder lock release failed")
			}
		}()
	}

	sent, err := w.notifUC.SendReminders(ctx, w.horizons)
	if err != nil {
		metrics.IncJobRun("reminder", "error")
		w.log.Error().Err(err).Msg("reminder sweep failed")
		return
	}
	metrics.IncJobRun("reminder", "ok")
	if sent > 0 {
		w.log.Info().Int("count", sent).Msg("renewal reminders sent")
	}
}
