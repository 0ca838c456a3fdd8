package adapter

import "context"

// Notification is the message contract of the platform's notification
// subsystem, which is owned by the CRUD side of the product.
type Notification struct {
	UserID   string
	Title    string
	Message  string
	Type     string // e.g. "subscription_expired", "payment_reminder"
	Metadata map[string]interface{}
}

// Notifier delivers notifications to students/teachers.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// MembershipStore flips the access flag the content side of the platform
// checks before serving workouts and courses.
type MembershipStore interface {
	SetActive(ctx context.Context, userID string, active bool) error
}
