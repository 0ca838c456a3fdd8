package repository

import (
	"context"
	"time"

	"trainer-billing/internal/domain/model"
)

// SubscriptionRepository is the port for student subscriptions.
type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	FindActiveByUserAndPlan(ctx context.Context, tx Tx, userID, planID string) (*model.Subscription, error)
	// FindActiveEndedBefore returns active rows whose end date passed;
	// input to the expiry sweep.
	FindActiveEndedBefore(ctx context.Context, tx Tx, cutoff time.Time, limit int) ([]*model.Subscription, error)
	// FindEndingOn returns active rows whose end date falls on the given
	// calendar day; input to the reminder sweep.
	FindEndingOn(ctx context.Context, tx Tx, day time.Time) ([]*model.Subscription, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.SubscriptionStatus) error
	// SetMetadataKey stamps one key into the metadata blob, last-write-wins.
	SetMetadataKey(ctx context.Context, tx Tx, id, key string, value interface{}) error
}
