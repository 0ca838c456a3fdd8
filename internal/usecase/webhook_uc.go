// File: internal/usecase/webhook_uc.go
package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"trainer-billing/internal/domain"
	"trainer-billing/internal/domain/model"
	"trainer-billing/internal/domain/ports/repository"
	"trainer-billing/internal/infra/metrics"
)

// Compile-time check
var _ WebhookUseCase = (*webhookUC)(nil)

type WebhookUseCase interface {
	// Ingest records an inbound callback and attempts reconciliation once.
	// The event row is persisted BEFORE any side effect: a crash after the
	// insert leaves a durable record for the retry sweep; a crash before it
	// means the gateway redelivers. Returns ErrDuplicateEvent for an
	// already-recorded webhook id (callers answer 200) and
	// ErrInvalidArgument for undecodable bodies (callers answer 400).
	Ingest(ctx context.Context, body []byte) (*model.WebhookEvent, error)

	// RetryBatch re-drives unprocessed events through reconciliation with
	// per-row isolation. Returns how many were processed and how many
	// failed again.
	RetryBatch(ctx context.Context, batchSize int) (processed, failed int, err error)

	// ListExhausted surfaces events that burned the retry budget for
	// operator review.
	ListExhausted(ctx context.Context, limit int) ([]*model.WebhookEvent, error)
}

// TaskSubmitter hands deferred work to the worker pool. Submission is best
// effort: anything dropped is picked up by the retry sweep.
type TaskSubmitter interface {
	Submit(task func(ctx context.Context) error) error
}

type webhookUC struct {
	events    repository.WebhookEventRepository
	reconcile ReconcileUseCase
	pool      TaskSubmitter
	log       *zerolog.Logger
}

func NewWebhookUseCase(events repository.WebhookEventRepository, reconcile ReconcileUseCase, pool TaskSubmitter, logger *zerolog.Logger) *webhookUC {
	compLog := logger.With().Str("component", "WebhookUC").Logger()
	return &webhookUC{events: events, reconcile: reconcile, pool: pool, log: &compLog}
}

func (u *webhookUC) Ingest(ctx context.Context, body []byte) (*model.WebhookEvent, error) {
	n, err := model.DecodeNotification(body)
	if err != nil {
		metrics.IncWebhookEvent("malformed")
		return nil, domain.ErrInvalidArgument
	}

	ev, err := model.NewWebhookEvent(ulid.MustNew(ulid.Now(), rand.Reader).String(), n.EventID, n.Topic, body)
	if err != nil {
		return nil, err
	}

	// Durable record first; the unique webhook_id short-circuits replays.
	if err := u.events.Save(ctx, repository.NoTX, ev); err != nil {
		if errors.Is(err, domain.ErrDuplicateEvent) {
			metrics.IncWebhookEvent("duplicate")
			u.log.Debug().Str("webhook_id", n.EventID).Msg("duplicate webhook delivery")
			return nil, domain.ErrDuplicateEvent
		}
		return nil, err
	}
	metrics.IncWebhookEvent("received")

	// First reconciliation attempt, off the request path so the gateway
	// gets its 200 fast. Failures are not counted against the retry budget
	// and never surface to the gateway; a dropped submission is covered by
	// the retry sweep.
	submitErr := u.pool.Submit(func(taskCtx context.Context) error {
		u.attempt(taskCtx, ev, false)
		return nil
	})
	if submitErr != nil {
		u.log.Warn().Err(submitErr).Str("event_id", ev.ID).Msg("pool saturated, deferring to retry sweep")
	}
	return ev, nil
}

// attempt runs one reconciliation pass over ev. counted controls whether a
// failure consumes retry budget.
func (u *webhookUC) attempt(ctx context.Context, ev *model.WebhookEvent, counted bool) bool {
	err := u.reconcile.Apply(ctx, ev)
	switch {
	case err == nil:
		if markErr := u.events.MarkProcessed(ctx, repository.NoTX, ev.ID, time.Now()); markErr != nil {
			u.log.Error().Err(markErr).Str("event_id", ev.ID).Msg("failed to mark event processed")
			return false
		}
		metrics.IncWebhookEvent("processed")
		return true

	case errors.Is(err, domain.ErrUnresolvedReference):
		// Will never resolve; processed so the sweep stops retrying it.
		u.log.Warn().Err(err).Str("event_id", ev.ID).Msg("unresolved webhook reference")
		if markErr := u.events.MarkProcessed(ctx, repository.NoTX, ev.ID, time.Now()); markErr != nil {
			u.log.Error().Err(markErr).Str("event_id", ev.ID).Msg("failed to mark event processed")
			return false
		}
		metrics.IncWebhookEvent("unresolved")
		return true

	default:
		u.log.Warn().Err(err).Str("event_id", ev.ID).Int("retry_count", ev.RetryCount).Msg("reconciliation failed")
		metrics.IncWebhookEvent("failed")
		if counted {
			if recErr := u.events.RecordFailure(ctx, repository.NoTX, ev.ID, err.Error()); recErr != nil {
				u.log.Error().Err(recErr).Str("event_id", ev.ID).Msg("failed to record retry failure")
			}
		}
		return false
	}
}

func (u *webhookUC) RetryBatch(ctx context.Context, batchSize int) (int, int, error) {
	events, err := u.events.ListUnprocessed(ctx, repository.NoTX, model.MaxWebhookRetries, batchSize)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, 0, nil
		}
		return 0, 0, err
	}

	var processed, failed int
	for _, ev := range events {
		// One row failing must not abort the rest of the batch.
		metrics.IncWebhookRetry()
		if u.attempt(ctx, ev, true) {
			processed++
		} else {
			failed++
		}
	}
	return processed, failed, nil
}

func (u *webhookUC) ListExhausted(ctx context.Context, limit int) ([]*model.WebhookEvent, error) {
	events, err := u.events.ListExhausted(ctx, repository.NoTX, model.MaxWebhookRetries, limit)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	metrics.SetWebhookExhausted(len(events))
	return events, nil
}
