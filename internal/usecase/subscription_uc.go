// File: internal/usecase/subscription_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"trainer-billing/internal/domain"
	"trainer-billing/internal/domain/model"
	"trainer-billing/internal/domain/ports/adapter"
	"trainer-billing/internal/domain/ports/repository"
	"trainer-billing/internal/infra/metrics"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

type SubscriptionUseCase interface {
	// ExpireDue sweeps active subscriptions whose end date has passed and
	// marks them expired. Each row is processed in its own transaction so a
	// failure revoking one student never blocks the rest of the batch.
	// Returns the number of subscriptions expired in this pass.
	ExpireDue(ctx context.Context, batchSize int) (int, error)

	Get(ctx context.Context, id string) (*model.Subscription, error)
	// GetWithStatus resolves the display status (due_soon/overdue) from the
	// end date. The stored status never carries these; end_date alone
	// decides.
	GetWithStatus(ctx context.Context, id string, dueSoonWindow time.Duration) (*model.Subscription, string, error)
}

type subscriptionUC struct {
	subs       repository.SubscriptionRepository
	membership adapter.MembershipStore
	notifier   adapter.Notifier
	tm         repository.TransactionManager
	log        *zerolog.Logger
	now        func() time.Time
}

func NewSubscriptionUseCase(
	subs repository.SubscriptionRepository,
	membership adapter.MembershipStore,
	notifier adapter.Notifier,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *subscriptionUC {
	compLog := logger.With().Str("component", "SubscriptionUC").Logger()
	return &subscriptionUC{
		subs:       subs,
		membership: membership,
		notifier:   notifier,
		tm:         tm,
		log:        &compLog,
		now:        time.Now,
	}
}

func (u *subscriptionUC) ExpireDue(ctx context.Context, batchSize int) (int, error) {
	now := u.now()
	due, err := u.subs.FindActiveEndedBefore(ctx, repository.NoTX, now, batchSize)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	var expired int
	for _, sub := range due {
		flipped, err := u.expireOne(ctx, sub.ID, now)
		if err != nil {
			u.log.Error().Err(err).Str("subscription_id", sub.ID).Msg("failed to expire subscription")
			continue
		}
		if !flipped {
			continue
		}
		expired++
		metrics.IncSubscriptionsExpired(1)
		u.afterExpired(ctx, sub)
	}
	return expired, nil
}

// expireOne flips a single subscription to expired inside its own
// transaction. Returns false when another sweep already got there.
func (u *subscriptionUC) expireOne(ctx context.Context, id string, now time.Time) (bool, error) {
	var flipped bool
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := u.subs.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		// Re-check under the row lock: a payment landing between the list
		// query and here extends the end date and the row must stay active.
		if sub.Status != model.SubscriptionStatusActive || sub.EndDate.After(now) {
			return nil
		}
		if err := u.subs.UpdateStatus(ctx, tx, sub.ID, model.SubscriptionStatusExpired); err != nil {
			return err
		}
		flipped = true
		return nil
	})
	return flipped, err
}

// afterExpired revokes access and notifies once the flip has committed.
// Both collaborators tolerate repeats; a failure here is logged and the
// next sweep does not re-fire because the status check sees expired.
func (u *subscriptionUC) afterExpired(ctx context.Context, sub *model.Subscription) {
	if err := u.membership.SetActive(ctx, sub.UserID, false); err != nil {
		u.log.Warn().Err(err).Str("user_id", sub.UserID).Msg("failed to revoke membership access")
	}
	err := u.notifier.Send(ctx, adapter.Notification{
		UserID:  sub.UserID,
		Title:   "Subscription expired",
		Message: "Your subscription has ended. Renew to keep access to your training plan.",
		Type:    "subscription_expired",
		Metadata: map[string]interface{}{
			"subscription_id": sub.ID,
			"end_date":        sub.EndDate.Format(time.RFC3339),
		},
	})
	if err != nil {
		u.log.Warn().Err(err).Str("subscription_id", sub.ID).Msg("failed to send expiry notification")
	}
}

func (u *subscriptionUC) Get(ctx context.Context, id string) (*model.Subscription, error) {
	if id == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.subs.FindByID(ctx, repository.NoTX, id)
}

func (u *subscriptionUC) GetWithStatus(ctx context.Context, id string, dueSoonWindow time.Duration) (*model.Subscription, string, error) {
	sub, err := u.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return sub, sub.DerivedStatus(u.now(), dueSoonWindow), nil
}
