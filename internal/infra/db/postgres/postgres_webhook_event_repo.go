package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"trainer-billing/internal/domain"
	"trainer-billing/internal/domain/model"
	"trainer-billing/internal/domain/ports/repository"
)

var _ repository.WebhookEventRepository = (*webhookEventRepo)(nil)

type webhookEventRepo struct{ pool *pgxpool.Pool }

func NewWebhookEventRepo(pool *pgxpool.Pool) *webhookEventRepo {
	return &webhookEventRepo{pool: pool}
}

const eventCols = `id, webhook_id, topic, payload, processed, retry_count, last_error, created_at, processed_at`

func (r *webhookEventRepo) Save(ctx context.Context, tx repository.Tx, e *model.WebhookEvent) error {
	// Plain INSERT: the UNIQUE constraint on webhook_id is the dedup
	// guard, mapped to ErrDuplicateEvent so ingestion can short-circuit.
	const q = `
INSERT INTO webhook_events (id, webhook_id, topic, payload, processed, retry_count, last_error, created_at, processed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);`

	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.WebhookID, e.Topic, []byte(e.Payload), e.Processed, e.RetryCount, e.LastError, e.CreatedAt, e.ProcessedAt)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrDuplicateEvent
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *webhookEventRepo) FindByWebhookID(ctx context.Context, tx repository.Tx, webhookID string) (*model.WebhookEvent, error) {
	const q = `SELECT ` + eventCols + ` FROM webhook_events WHERE webhook_id=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, webhookID)
	if err != nil {
		return nil, err
	}
	return scanEvent(row)
}

func (r *webhookEventRepo) ListUnprocessed(ctx context.Context, tx repository.Tx, maxRetries, limit int) ([]*model.WebhookEvent, error) {
	if limit <= 0 {
		limit = 10
	}
	// Event ids are ULIDs; ordering by id is ordering by ingest time.
	const q = `SELECT ` + eventCols + ` FROM webhook_events WHERE processed=false AND retry_count < $1 ORDER BY id ASC LIMIT $2;`
	return r.list(ctx, tx, q, maxRetries, limit)
}

func (r *webhookEventRepo) ListExhausted(ctx context.Context, tx repository.Tx, minRetries, limit int) ([]*model.WebhookEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + eventCols + ` FROM webhook_events WHERE processed=false AND retry_count >= $1 ORDER BY id ASC LIMIT $2;`
	return r.list(ctx, tx, q, minRetries, limit)
}

func (r *webhookEventRepo) MarkProcessed(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	const q = `UPDATE webhook_events SET processed=true, processed_at=$2 WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, at)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *webhookEventRepo) RecordFailure(ctx context.Context, tx repository.Tx, id string, lastError string) error {
	const q = `UPDATE webhook_events SET retry_count=retry_count+1, last_error=$2 WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, lastError)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *webhookEventRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.WebhookEvent, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		switch err {
		case pgx.ErrNoRows:
			return nil, domain.ErrNotFound
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.WebhookEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanEvent(row pgx.Row) (*model.WebhookEvent, error) {
	e := &model.WebhookEvent{}
	var payload []byte
	if err := row.Scan(&e.ID, &e.WebhookID, &e.Topic, &payload, &e.Processed, &e.RetryCount, &e.LastError, &e.CreatedAt, &e.ProcessedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	e.Payload = payload
	return e, nil
}
