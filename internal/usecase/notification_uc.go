// File: internal/usecase/notification_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"trainer-billing/internal/domain"
	"trainer-billing/internal/domain/model"
	"trainer-billing/internal/domain/ports/adapter"
	"trainer-billing/internal/domain/ports/repository"
	"trainer-billing/internal/infra/metrics"
)

const kindPaymentReminder = "payment_reminder"

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

type NotificationUseCase interface {
	// SendReminders emits a renewal reminder for every active subscription
	// ending exactly N days from today, for each configured horizon. Each
	// (subscription, horizon) pair fires at most once; the notification log's
	// unique constraint is the hard guard and the metadata marker is a
	// fast-path skip. Returns the number of reminders sent.
	SendReminders(ctx context.Context, horizons []int) (int, error)
}

type notificationUC struct {
	subs     repository.SubscriptionRepository
	logRepo  repository.NotificationLogRepository
	notifier adapter.Notifier
	log      *zerolog.Logger
	now      func() time.Time
}

func NewNotificationUseCase(
	subs repository.SubscriptionRepository,
	logRepo repository.NotificationLogRepository,
	notifier adapter.Notifier,
	logger *zerolog.Logger,
) *notificationUC {
	compLog := logger.With().Str("component", "NotificationUC").Logger()
	return &notificationUC{
		subs:     subs,
		logRepo:  logRepo,
		notifier: notifier,
		log:      &compLog,
		now:      time.Now,
	}
}

func (u *notificationUC) SendReminders(ctx context.Context, horizons []int) (int, error) {
	today := u.now()
	var sent int
	for _, days := range horizons {
		subs, err := u.subs.FindEndingOn(ctx, repository.NoTX, today.AddDate(0, 0, days))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return sent, err
		}
		for _, sub := range subs {
			fired, err := u.remindOne(ctx, sub, days)
			if err != nil {
				u.log.Error().Err(err).Str("subscription_id", sub.ID).Int("days", days).Msg("failed to send reminder")
				continue
			}
			if fired {
				sent++
			}
		}
	}
	return sent, nil
}

func (u *notificationUC) remindOne(ctx context.Context, sub *model.Subscription, days int) (bool, error) {
	marker := model.ReminderMarker(days)
	if _, ok := sub.Metadata[marker]; ok {
		return false, nil
	}
	already, err := u.logRepo.Exists(ctx, repository.NoTX, sub.ID, kindPaymentReminder, days)
	if err != nil {
		return false, err
	}
	if already {
		return false, nil
	}

	// Log row first: if two sweeps race, the unique constraint lets only
	// one of them past this point.
	if err := u.logRepo.Save(ctx, repository.NoTX, sub.ID, sub.UserID, kindPaymentReminder, days); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return false, nil
		}
		return false, err
	}

	err = u.notifier.Send(ctx, adapter.Notification{
		UserID:  sub.UserID,
		Title:   "Subscription renewal",
		Message: reminderMessage(days),
		Type:    kindPaymentReminder,
		Metadata: map[string]interface{}{
			"subscription_id": sub.ID,
			"end_date":        sub.EndDate.Format(time.RFC3339),
			"days_remaining":  days,
		},
	})
	if err != nil {
		return false, err
	}
	metrics.IncReminderSent(strconv.Itoa(days))

	// Marker is a read-path convenience only; last write wins and a failure
	// here does not matter because the log row already holds the dedup.
	if err := u.subs.SetMetadataKey(ctx, repository.NoTX, sub.ID, marker, u.now().Format(time.RFC3339)); err != nil {
		u.log.Warn().Err(err).Str("subscription_id", sub.ID).Msg("failed to stamp reminder marker")
	}
	return true, nil
}

func reminderMessage(days int) string {
	if days == 1 {
		return "Your subscription ends tomorrow. Renew now to keep your access."
	}
	return fmt.Sprintf("Your subscription ends in %d days. Renew now to keep your access.", days)
}
