// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"trainer-billing/internal/domain"
	"trainer-billing/internal/domain/model"
	"trainer-billing/internal/domain/ports/adapter"
	"trainer-billing/internal/domain/ports/repository"
	"trainer-billing/internal/infra/metrics"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// ReconcileUseCase applies a verified webhook event to the charge ledger
// and subscription state. Apply is idempotent and replay-safe: duplicate or
// out-of-order deliveries land on terminal states as successful no-ops.
type ReconcileUseCase interface {
	// Apply classifies failures through the domain error kinds:
	// ErrUnresolvedReference means the event will never resolve (callers
	// mark it processed); ErrTransientFailure and wrapped store errors are
	// retryable within the event's budget.
	Apply(ctx context.Context, ev *model.WebhookEvent) error
}

type reconcileUC struct {
	charges    repository.ChargeRepository
	subs       repository.SubscriptionRepository
	plans      repository.PlanRepository
	gateway    adapter.PaymentGateway
	membership adapter.MembershipStore
	notifier   adapter.Notifier
	tm         repository.TransactionManager
	log        *zerolog.Logger
	now        func() time.Time
}

func NewReconcileUseCase(
	charges repository.ChargeRepository,
	subs repository.SubscriptionRepository,
	plans repository.PlanRepository,
	gateway adapter.PaymentGateway,
	membership adapter.MembershipStore,
	notifier adapter.Notifier,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *reconcileUC {
	compLog := logger.With().Str("component", "ReconcileUC").Logger()
	return &reconcileUC{
		charges:    charges,
		subs:       subs,
		plans:      plans,
		gateway:    gateway,
		membership: membership,
		notifier:   notifier,
		tm:         tm,
		log:        &compLog,
		now:        time.Now,
	}
}

func (u *reconcileUC) Apply(ctx context.Context, ev *model.WebhookEvent) error {
	n, err := model.DecodeNotification(ev.Payload)
	if err != nil {
		// A payload that failed to decode will never decode on retry.
		return fmt.Errorf("%w: undecodable payload", domain.ErrUnresolvedReference)
	}

	switch n.Topic {
	case model.TopicPayment:
		return u.applyPayment(ctx, ev, n.DataID)
	case model.TopicMerchantOrder:
		// Orders group payments we also get payment-topic events for;
		// nothing to apply from the order itself.
		u.log.Debug().Str("event_id", ev.ID).Str("order_id", n.DataID).Msg("merchant_order event acknowledged")
		return nil
	default:
		return fmt.Errorf("%w: topic %q", domain.ErrUnresolvedReference, n.Topic)
	}
}

func (u *reconcileUC) applyPayment(ctx context.Context, ev *model.WebhookEvent, paymentID string) error {
	info, err := u.gateway.GetPayment(ctx, paymentID)
	metrics.IncGatewayCall("get_payment", err)
	if err != nil {
		if errors.Is(err, domain.ErrGatewayRejected) {
			// The gateway does not know this payment; it never will.
			return fmt.Errorf("%w: payment %s: %v", domain.ErrUnresolvedReference, paymentID, err)
		}
		return err
	}
	if info.ExternalReference == "" {
		return fmt.Errorf("%w: payment %s carries no external reference", domain.ErrUnresolvedReference, paymentID)
	}

	outcome := model.MapPaymentStatus(info.Status)
	if outcome == model.OutcomePending || outcome == model.OutcomeUnknown {
		// Not a final state; the gateway notifies again on settlement.
		return nil
	}

	// Serialize per charge: the row is locked for the whole transition so
	// two concurrent deliveries cannot both observe pending.
	var paid *model.Charge
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		charge, err := u.resolveCharge(ctx, tx, info.ExternalReference)
		if err != nil {
			return err
		}

		switch outcome {
		case model.OutcomeApproved:
			done, err := u.applyApproved(ctx, tx, charge, info)
			if done {
				paid = charge
			}
			return err
		case model.OutcomeRejected:
			if charge.IsTerminal() {
				return nil // idempotent no-op
			}
			if err := charge.Cancel("gateway: " + info.Status); err != nil {
				return nil
			}
			if err := u.charges.Save(ctx, tx, charge); err != nil {
				return err
			}
			metrics.IncCharge(string(charge.Status))
			return nil
		}
		return nil
	})
	if err != nil {
		return err
	}
	if paid != nil {
		u.afterPaid(ctx, paid)
	}
	return nil
}

// afterPaid runs the collaborator side effects once the transition has
// committed. Delivery is at-least-once; both collaborators tolerate repeats
// and a failure here never rolls the payment back.
func (u *reconcileUC) afterPaid(ctx context.Context, charge *model.Charge) {
	if err := u.membership.SetActive(ctx, charge.StudentID, true); err != nil {
		u.log.Warn().Err(err).Str("student_id", charge.StudentID).Msg("membership grant failed")
	}
	if err := u.notifier.Send(ctx, adapter.Notification{
		UserID:  charge.StudentID,
		Title:   "Payment received",
		Message: "Your payment was confirmed.",
		Type:    "payment_approved",
		Metadata: map[string]interface{}{
			"charge_id": charge.ID,
			"amount":    charge.Amount,
		},
	}); err != nil {
		u.log.Warn().Err(err).Str("student_id", charge.StudentID).Msg("payment notification failed")
	}
}

func (u *reconcileUC) resolveCharge(ctx context.Context, tx repository.Tx, ref string) (*model.Charge, error) {
	// external_reference is our charge id by construction; preference id
	// is accepted as a fallback for manually created gateway objects.
	charge, err := u.charges.FindByID(ctx, tx, ref)
	if err == nil {
		return charge, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	charge, err = u.charges.FindByPreferenceID(ctx, tx, ref)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: reference %q", domain.ErrUnresolvedReference, ref)
		}
		return nil, err
	}
	return charge, nil
}

// applyApproved returns done=true only when this call performed the
// pending -> paid transition; replays and terminal states return
// (false, nil) so side effects fire exactly once per transition.
func (u *reconcileUC) applyApproved(ctx context.Context, tx repository.Tx, charge *model.Charge, info adapter.PaymentInfo) (bool, error) {
	if charge.Status == model.ChargeStatusPaid {
		return false, nil // duplicate delivery
	}

	paidAt := u.now()
	if info.PaidAt != nil {
		paidAt = *info.PaidAt
	}
	if err := charge.MarkPaid(paidAt); err != nil {
		if errors.Is(err, domain.ErrChargeTerminal) {
			return false, nil
		}
		if errors.Is(err, domain.ErrChargeNotLinked) {
			// A linkless charge can never legitimately be paid; retrying
			// will not change that.
			return false, fmt.Errorf("%w: charge %s has no payment link", domain.ErrUnresolvedReference, charge.ID)
		}
		return false, err
	}
	if err := u.charges.Save(ctx, tx, charge); err != nil {
		return false, err
	}
	metrics.IncCharge(string(charge.Status))
	metrics.AddChargeRevenue(charge.Currency, charge.Amount)

	if charge.PlanID != nil {
		if err := u.extendSubscription(ctx, tx, charge); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (u *reconcileUC) extendSubscription(ctx context.Context, tx repository.Tx, charge *model.Charge) error {
	plan, err := u.plans.FindByID(ctx, tx, *charge.PlanID)
	if err != nil {
		return err
	}

	now := u.now()
	sub, err := u.subs.FindActiveByUserAndPlan(ctx, tx, charge.StudentID, plan.ID)
	switch {
	case err == nil:
		// Extending from max(now, end) keeps paid time when the event is
		// processed after the window already lapsed.
		if err := sub.Extend(plan, now); err != nil {
			return err
		}
	case errors.Is(err, domain.ErrNotFound):
		sub, err = model.NewSubscription(uuid.NewString(), charge.StudentID, plan, now)
		if err != nil {
			return err
		}
	default:
		return err
	}

	if err := u.subs.Save(ctx, tx, sub); err != nil {
		return err
	}
	metrics.IncSubscriptionExtended()
	u.log.Info().
		Str("subscription_id", sub.ID).
		Time("end_date", sub.EndDate).
		Msg("subscription extended")
	return nil
}
