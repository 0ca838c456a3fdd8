package model

import (
	"time"

	"trainer-billing/internal/domain"
)

type ChargeStatus string

const (
	ChargeStatusCreated   ChargeStatus = "created"   // recorded locally, no payment link yet
	ChargeStatusPending   ChargeStatus = "pending"   // link generated; awaiting gateway notification
	ChargeStatusPaid      ChargeStatus = "paid"      // gateway reported an approved payment
	ChargeStatusCancelled ChargeStatus = "cancelled" // teacher cancelled or gateway rejected
	ChargeStatusExpired   ChargeStatus = "expired"   // due date passed without payment
)

// Charge is a one-off billing request from a teacher to a student.
type Charge struct {
	ID           string // UUID
	TeacherID    string // UUID
	StudentID    string // UUID
	PlanID       *string // set when the charge buys/extends a catalog subscription
	Amount       int64  // minor units (cents), integer to avoid float errors
	Currency     string
	Description  string
	DueDate      time.Time
	Status       ChargeStatus
	PaymentLink  *string // gateway init_point; nil until link generation succeeds
	PreferenceID *string // gateway-side preference id
	CancelReason *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	PaidAt       *time.Time
}

// NewCharge validates and constructs a charge in the created state.
func NewCharge(id, teacherID, studentID string, amount int64, currency string, dueDate time.Time) (*Charge, error) {
	if id == "" || teacherID == "" || studentID == "" || amount <= 0 || dueDate.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	if currency == "" {
		currency = "BRL"
	}
	now := time.Now()
	return &Charge{
		ID:        id,
		TeacherID: teacherID,
		StudentID: studentID,
		Amount:    amount,
		Currency:  currency,
		DueDate:   dueDate,
		Status:    ChargeStatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsTerminal reports whether no further transition is allowed.
func (c *Charge) IsTerminal() bool {
	return c.Status == ChargeStatusPaid || c.Status == ChargeStatusCancelled
}

// AttachLink moves created -> pending. A charge must hold a persisted link
// before it can ever become paid.
func (c *Charge) AttachLink(link, preferenceID string) error {
	if c.IsTerminal() {
		return domain.ErrChargeTerminal
	}
	if link == "" || preferenceID == "" {
		return domain.ErrInvalidArgument
	}
	c.PaymentLink = &link
	c.PreferenceID = &preferenceID
	c.Status = ChargeStatusPending
	c.UpdatedAt = time.Now()
	return nil
}

// MarkPaid moves pending -> paid. Replays against an already-paid charge
// succeed without mutation; a charge that never got a link cannot be paid.
func (c *Charge) MarkPaid(at time.Time) error {
	if c.Status == ChargeStatusPaid {
		return nil
	}
	if c.IsTerminal() {
		return domain.ErrChargeTerminal
	}
	if c.PaymentLink == nil {
		return domain.ErrChargeNotLinked
	}
	c.Status = ChargeStatusPaid
	c.PaidAt = &at
	c.UpdatedAt = time.Now()
	return nil
}

// Cancel is idempotent on already-cancelled charges and refuses paid ones.
func (c *Charge) Cancel(reason string) error {
	if c.Status == ChargeStatusCancelled {
		return nil
	}
	if c.Status == ChargeStatusPaid {
		return domain.ErrChargeTerminal
	}
	c.Status = ChargeStatusCancelled
	if reason != "" {
		c.CancelReason = &reason
	}
	c.UpdatedAt = time.Now()
	return nil
}
