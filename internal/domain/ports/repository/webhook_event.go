package repository

import (
	"context"
	"time"

	"trainer-billing/internal/domain/model"
)

// -----------------------------
// Webhook events
// -----------------------------

type WebhookEventRepository interface {
	// Save inserts a new event row. Returns domain.ErrDuplicateEvent when a
	// row with the same gateway webhook id already exists.
	Save(ctx context.Context, tx Tx, e *model.WebhookEvent) error
	FindByWebhookID(ctx context.Context, tx Tx, webhookID string) (*model.WebhookEvent, error)
	// ListUnprocessed returns processed=false rows still inside the retry
	// budget, oldest first. Exclusive input of the retry sweep.
	ListUnprocessed(ctx context.Context, tx Tx, maxRetries, limit int) ([]*model.WebhookEvent, error)
	// ListExhausted returns rows that burned the whole budget, for operator
	// review. Never silently dropped.
	ListExhausted(ctx context.Context, tx Tx, minRetries, limit int) ([]*model.WebhookEvent, error)
	MarkProcessed(ctx context.Context, tx Tx, id string, at time.Time) error
	// RecordFailure increments retry_count and stores the last error.
	RecordFailure(ctx context.Context, tx Tx, id string, lastError string) error
}
