package model

import (
	"time"

	"trainer-billing/internal/domain"
)

// Plan is a purchasable catalog subscription with a fixed billing interval
// and price in minor units.
type Plan struct {
	ID           string
	Name         string
	IntervalDays int
	Price        int64
	Currency     string
	CreatedAt    time.Time
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

// Interval returns the billing interval as a duration.
func (p *Plan) Interval() time.Duration {
	return time.Duration(p.IntervalDays) * 24 * time.Hour
}

// NewPlan validates and constructs a plan.
func NewPlan(id, name string, intervalDays int, price int64, currency string) (*Plan, error) {
	if id == "" || name == "" || intervalDays <= 0 || price <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if currency == "" {
		currency = "BRL"
	}
	return &Plan{
		ID:           id,
		Name:         name,
		IntervalDays: intervalDays,
		Price:        price,
		Currency:     currency,
		CreatedAt:    time.Now(),
	}, nil
}
