package model

import (
	"strconv"
	"time"

	"trainer-billing/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusPaused    SubscriptionStatus = "paused"
)

// Derived display statuses. Never persisted; end_date is the sole authority.
const (
	DerivedStatusDueSoon = "due_soon"
	DerivedStatusOverdue = "overdue"
)

// Subscription is a student's recurring membership window.
type Subscription struct {
	ID        string // UUID
	UserID    string // UUID of the student
	PlanID    string // UUID of the plan
	Status    SubscriptionStatus
	AutoRenew bool
	StartDate time.Time
	EndDate   time.Time
	// Metadata carries idempotency markers such as "reminder_7days".
	// Last-write-wins; the notification log is the hard dedup guard.
	Metadata  map[string]interface{}
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSubscription starts an active subscription running one plan interval
// from the given start.
func NewSubscription(id, userID string, plan *Plan, start time.Time) (*Subscription, error) {
	if id == "" || userID == "" || plan == nil {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Subscription{
		ID:        id,
		UserID:    userID,
		PlanID:    plan.ID,
		Status:    SubscriptionStatusActive,
		StartDate: start,
		EndDate:   start.Add(plan.Interval()),
		Metadata:  map[string]interface{}{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Extend pushes the end date one plan interval past max(now, current end).
// Extending from the current end, never from now alone, preserves paid time
// when a payment event is processed late.
func (s *Subscription) Extend(plan *Plan, now time.Time) error {
	if plan == nil {
		return domain.ErrInvalidArgument
	}
	base := s.EndDate
	if now.After(base) {
		base = now
	}
	s.EndDate = base.Add(plan.Interval())
	s.Status = SubscriptionStatusActive
	s.UpdatedAt = now
	return nil
}

// DerivedStatus computes the display status for an active subscription.
func (s *Subscription) DerivedStatus(now time.Time, dueSoonWindow time.Duration) string {
	if s.Status != SubscriptionStatusActive {
		return string(s.Status)
	}
	switch {
	case now.After(s.EndDate):
		return DerivedStatusOverdue
	case now.Add(dueSoonWindow).After(s.EndDate):
		return DerivedStatusDueSoon
	default:
		return string(SubscriptionStatusActive)
	}
}

// ReminderMarker is the metadata key stamped when a reminder for the given
// horizon has been emitted, e.g. "reminder_7days".
func ReminderMarker(days int) string {
	if days == 1 {
		return "reminder_1day"
	}
	return "reminder_" + strconv.Itoa(days) + "days"
}
