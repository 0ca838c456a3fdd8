package repository

import (
	"context"
	"time"

	"trainer-billing/internal/domain/model"
)

// -----------------------------
// Charges
// -----------------------------

type ChargeRepository interface {
	Save(ctx context.Context, tx Tx, c *model.Charge) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Charge, error)
	// FindByPreferenceID resolves a gateway external reference back to a
	// charge. Reconciliation is the only caller that passes a live tx here.
	FindByPreferenceID(ctx context.Context, tx Tx, preferenceID string) (*model.Charge, error)
	ListByTeacher(ctx context.Context, tx Tx, teacherID string, offset, limit int) ([]*model.Charge, error)
	ListByStudent(ctx context.Context, tx Tx, studentID string) ([]*model.Charge, error)
	// ExpireDue transitions pending/created charges whose due date passed.
	ExpireDue(ctx context.Context, tx Tx, now time.Time) (int, error)
	Delete(ctx context.Context, tx Tx, id string) error
}
