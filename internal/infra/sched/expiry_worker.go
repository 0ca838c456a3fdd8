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

const expiryLockKey = "sched:expiry"

// ExpiryWorker periodically expires subscriptions whose end date passed and
// lapses open charges past their due date.
type ExpiryWorker struct {
	interval  time.Duration
	batchSize int
	subUC     usecase.SubscriptionUseCase
	chargeUC  usecase.ChargeUseCase
	locker    Locker
	log       *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, batchSize int, subUC usecase.SubscriptionUseCase, chargeUC usecase.ChargeUseCase, locker Locker, logger *zerolog.Logger) *ExpiryWorker {
	compLog := logger.With().Str("component", "ExpiryWorker").Logger()
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ExpiryWorker{
		interval:  interval,
		batchSize: batchSize,
		subUC:     subUC,
		chargeUC:  chargeUC,
		locker:    locker,
		log:       &compLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting expiry worker")
	// Run once on startup, then on every tick
	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context) {
	token, err := w.locker.TryLock(ctx, expiryLockKey, w.interval)
	if err != nil {
		if errors.Is(err, redis.ErrLockHeld) {
			return
		}
		w.log.Warn().Err(err).Msg("expiry lock unavailable, running unguarded")
	} else {
		defer func() {
			if err := w.locker.Unlock(ctx, expiryLockKey, token); err != nil {
				w.log.Debug().Err(err).Msg("expiry lock release failed")
			}
		}()
	}

	expired, err := w.subUC.ExpireDue(ctx, w.batchSize)
	if err != nil {
		metrics.IncJobRun("expiry", "error")
		w.log.Error().Err(err).Msg("subscription expiry sweep failed")
		return
	}
	if expired > 0 {
		w.log.Info().Int("count", expired).Msg("subscriptions expired")
	}

	lapsed, err := w.chargeUC.ExpireDue(ctx)
	if err != nil {
		metrics.IncJobRun("expiry", "error")
		w.log.Error().Err(err).Msg("charge expiry sweep failed")
		return
	}
	if lapsed > 0 {
		w.log.Info().Int("count", lapsed).Msg("stale charges expired")
	}
	metrics.IncJobRun("expiry", "ok")
}
