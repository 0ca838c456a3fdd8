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

const retryLockKey = "sched:webhook_retry"

// RetryWorker periodically re-drives unprocessed webhook events through
// reconciliation and surfaces the ones that burned their retry budget.
type RetryWorker struct {
	interval  time.Duration
	batchSize int
	webhookUC usecase.WebhookUseCase
	locker    Locker
	log       *zerolog.Logger
}

func NewRetryWorker(interval time.Duration, batchSize int, webhookUC usecase.WebhookUseCase, locker Locker, logger *zerolog.Logger) *RetryWorker {
	compLog := logger.With().Str("component", "RetryWorker").Logger()
	if batchSize <= 0 {
		batchSize = 10
	}
	return &RetryWorker{
		interval:  interval,
		batchSize: batchSize,
		webhookUC: webhookUC,
		locker:    locker,
		log:       &compLog,
	}
}

func (w *RetryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting webhook retry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping webhook retry worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *RetryWorker) tick(ctx context.Context) {
	token, err := w.locker.TryLock(ctx, retryLockKey, w.interval)
	if err != nil {
		if errors.Is(err, redis.ErrLockHeld) {
			return
		}
		w.log.Warn().Err(err).Msg("retry lock unavailable, running unguarded")
	} else {
		defer func() {
			if err := w.locker.Unlock(ctx, retryLockKey, token); err != nil {
				w.log.Debug().Err(err).Msg("retry lock release failed")
			}
		}()
	}

	processed, failed, err := w.webhookUC.RetryBatch(ctx, w.batchSize)
	if err != nil {
		metrics.IncJobRun("webhook_retry", "error")
		w.log.Error().Err(err).Msg("webhook retry batch failed")
		return
	}
	metrics.IncJobRun("webhook_retry", "ok")
	if processed > 0 || failed > 0 {
		w.log.Info().Int("processed", processed).Int("failed", failed).Msg("webhook retry batch done")
	}

	exhausted, err := w.webhookUC.ListExhausted(ctx, w.batchSize)
	if err != nil {
		w.log.Error().Err(err).Msg("failed to list exhausted webhook events")
		return
	}
	for _, ev := range exhausted {
		lastErr := ""
		if ev.LastError != nil {
			lastErr = *ev.LastError
		}
		w.log.Warn().
			Str("event_id", ev.ID).
			Str("webhook_id", ev.WebhookID).
			Str("last_error", lastErr).
			Msg("webhook event exhausted retry budget, needs operator review")
	}
}
