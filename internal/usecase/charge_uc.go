// File: internal/usecase/charge_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trainer-billing/internal/domain"
	"trainer-billing/internal/domain/model"
	"trainer-billing/internal/domain/ports/adapter"
	"trainer-billing/internal/domain/ports/repository"
	"trainer-billing/internal/infra/logging"
	"trainer-billing/internal/infra/metrics"
)

// Compile-time check
var _ ChargeUseCase = (*chargeUC)(nil)

// CreateChargeInput carries everything a teacher submits for a manual charge.
type CreateChargeInput struct {
	TeacherID   string
	StudentID   string
	PlanID      string // optional: ties the charge to a catalog subscription
	Amount      int64  // minor units; ignored when PlanID is set (plan price wins)
	Currency    string
	Description string
	DueDate     time.Time
	PayerName   string
	PayerEmail  string
}

type ChargeUseCase interface {
	// Create records the charge locally in the created state. No gateway call.
	Create(ctx context.Context, in CreateChargeInput) (*model.Charge, error)
	// GenerateLink requests a payment link from the gateway and moves the
	// charge to pending. A failed or timed-out gateway call leaves the
	// charge in created so the caller can retry.
	GenerateLink(ctx context.Context, chargeID string, payer adapter.Payer) (*model.Charge, error)
	Cancel(ctx context.Context, chargeID, reason string) (*model.Charge, error)
	Get(ctx context.Context, chargeID string) (*model.Charge, error)
	// Delete removes a non-paid charge from the ledger.
	Delete(ctx context.Context, chargeID string) error
	ListByTeacher(ctx context.Context, teacherID string, offset, limit int) ([]*model.Charge, error)
	ListByStudent(ctx context.Context, studentID string) ([]*model.Charge, error)
	// ExpireDue sweeps created/pending charges past their due date.
	ExpireDue(ctx context.Context) (int, error)
}

type chargeUC struct {
	charges repository.ChargeRepository
	plans   repository.PlanRepository
	gateway adapter.PaymentGateway
	log     *zerolog.Logger
}

func NewChargeUseCase(charges repository.ChargeRepository, plans repository.PlanRepository, gateway adapter.PaymentGateway, logger *zerolog.Logger) *chargeUC {
	compLog := logger.With().Str("component", "ChargeUC").Logger()
	return &chargeUC{charges: charges, plans: plans, gateway: gateway, log: &compLog}
}

func (u *chargeUC) Create(ctx context.Context, in CreateChargeInput) (*model.Charge, error) {
	defer logging.TraceDuration(u.log, "ChargeUC.Create")()
	amount := in.Amount
	currency := in.Currency
	if in.PlanID != "" {
		plan, err := u.plans.FindByID(ctx, repository.NoTX, in.PlanID)
		if err != nil {
			return nil, err
		}
		amount = plan.Price
		currency = plan.Currency
	}

	c, err := model.NewCharge(uuid.NewString(), in.TeacherID, in.StudentID, amount, currency, in.DueDate)
	if err != nil {
		return nil, err
	}
	c.Description = in.Description
	if in.PlanID != "" {
		planID := in.PlanID
		c.PlanID = &planID
	}

	if err := u.charges.Save(ctx, repository.NoTX, c); err != nil {
		return nil, err
	}
	metrics.IncCharge(string(c.Status))
	u.log.Info().Str("charge_id", c.ID).Int64("amount", c.Amount).Msg("charge created")
	return c, nil
}

func (u *chargeUC) GenerateLink(ctx context.Context, chargeID string, payer adapter.Payer) (*model.Charge, error) {
	defer logging.TraceDuration(u.log, "ChargeUC.GenerateLink")()
	c, err := u.charges.FindByID(ctx, repository.NoTX, chargeID)
	if err != nil {
		return nil, err
	}
	if c.IsTerminal() {
		return nil, domain.ErrChargeTerminal
	}
	// Idempotent: a pending charge already holds its link.
	if c.PaymentLink != nil {
		return c, nil
	}

	spec := adapter.PreferenceSpec{
		ExternalReference: c.ID,
		Amount:            c.Amount,
		Currency:          c.Currency,
		Title:             c.Description,
		Payer:             payer,
		ExpiresAt:         c.DueDate,
	}
	link, err := u.gateway.CreatePaymentLink(ctx, spec)
	metrics.IncGatewayCall("create_preference", err)
	if err != nil {
		// Charge stays in created; nothing was persisted.
		return nil, err
	}

	if err := c.AttachLink(link.InitPoint, link.PreferenceID); err != nil {
		return nil, err
	}
	if err := u.charges.Save(ctx, repository.NoTX, c); err != nil {
		return nil, err
	}
	metrics.IncCharge(string(c.Status))
	u.log.Info().Str("charge_id", c.ID).Str("preference_id", link.PreferenceID).Msg("payment link generated")
	return c, nil
}

func (u *chargeUC) Cancel(ctx context.Context, chargeID, reason string) (*model.Charge, error) {
	c, err := u.charges.FindByID(ctx, repository.NoTX, chargeID)
	if err != nil {
		return nil, err
	}
	if err := c.Cancel(reason); err != nil {
		return nil, err
	}
	if err := u.charges.Save(ctx, repository.NoTX, c); err != nil {
		return nil, err
	}
	metrics.IncCharge(string(c.Status))
	return c, nil
}

func (u *chargeUC) Get(ctx context.Context, chargeID string) (*model.Charge, error) {
	if chargeID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.charges.FindByID(ctx, repository.NoTX, chargeID)
}

func (u *chargeUC) Delete(ctx context.Context, chargeID string) error {
	return u.charges.Delete(ctx, repository.NoTX, chargeID)
}

func (u *chargeUC) ListByTeacher(ctx context.Context, teacherID string, offset, limit int) ([]*model.Charge, error) {
	return u.charges.ListByTeacher(ctx, repository.NoTX, teacherID, offset, limit)
}

func (u *chargeUC) ListByStudent(ctx context.Context, studentID string) ([]*model.Charge, error) {
	return u.charges.ListByStudent(ctx, repository.NoTX, studentID)
}

func (u *chargeUC) ExpireDue(ctx context.Context) (int, error) {
	defer logging.TraceDuration(u.log, "ChargeUC.ExpireDue")()
	n, err := u.charges.ExpireDue(ctx, repository.NoTX, time.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		u.log.Info().Int("count", n).Msg("charges expired past due date")
	}
	return n, nil
}
