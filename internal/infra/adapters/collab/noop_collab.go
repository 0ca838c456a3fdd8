package collab

import (
	"context"

	"trainer-billing/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

// LogNotifier writes notifications to the log instead of delivering them.
// Used in dev mode and when no notifier URL is configured.
type LogNotifier struct {
	log *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: logger}
}

func (n *LogNotifier) Send(ctx context.Context, msg adapter.Notification) error {
	n.log.Info().
		Str("user_id", msg.UserID).
		Str("type", msg.Type).
		Str("title", msg.Title).
		Msg("notification (log only)")
	return nil
}

// LogMembershipStore records access flips without calling anything.
type LogMembershipStore struct {
	log *zerolog.Logger
}

func NewLogMembershipStore(logger *zerolog.Logger) *LogMembershipStore {
	return &LogMembershipStore{log: logger}
}

func (m *LogMembershipStore) SetActive(ctx context.Context, userID string, active bool) error {
	m.log.Info().
		Str("user_id", userID).
		Bool("active", active).
		Msg("membership flag (log only)")
	return nil
}
