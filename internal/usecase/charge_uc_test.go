//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"trainer-billing/internal/domain"
	"trainer-billing/internal/domain/model"
	"trainer-billing/internal/domain/ports/adapter"
	"trainer-billing/internal/usecase"
)

func newChargeInput() usecase.CreateChargeInput {
	return usecase.CreateChargeInput{
		TeacherID:   "teacher-1",
		StudentID:   "student-1",
		Amount:      25_000,
		Currency:    "BRL",
		Description: "Personal training, September",
		DueDate:     time.Now().Add(7 * 24 * time.Hour),
	}
}

func TestChargeUseCase_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a charge without calling the gateway", func(t *testing.T) {
		// --- Arrange ---
		charges := NewMockChargeRepo()
		gateway := &MockPaymentGateway{}
		gateway.CreatePaymentLinkFunc = func(ctx context.Context, spec adapter.PreferenceSpec) (adapter.PaymentLink, error) {
			t.Error("Create must not touch the gateway")
			return adapter.PaymentLink{}, nil
		}
		uc := usecase.NewChargeUseCase(charges, NewMockPlanRepo(), gateway, newTestLogger())

		// --- Act ---
		c, err := uc.Create(ctx, newChargeInput())

		// --- Assert ---
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if c.Status != model.ChargeStatusCreated {
			t.Errorf("expected status 'created', got '%s'", c.Status)
		}
		if c.PaymentLink != nil {
			t.Error("no link expected before GenerateLink")
		}
	})

	t.Run("plan price overrides the submitted amount", func(t *testing.T) {
		charges := NewMockChargeRepo()
		plans := NewMockPlanRepo()
		plans.Save(ctx, nil, &model.Plan{ID: "plan-1", Name: "Monthly", IntervalDays: 30, Price: 49_900, Currency: "BRL"})
		uc := usecase.NewChargeUseCase(charges, plans, &MockPaymentGateway{}, newTestLogger())

		in := newChargeInput()
		in.PlanID = "plan-1"
		in.Amount = 1 // ignored

		c, err := uc.Create(ctx, in)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if c.Amount != 49_900 {
			t.Errorf("expected plan price 49900, got %d", c.Amount)
		}
		if c.PlanID == nil || *c.PlanID != "plan-1" {
			t.Error("expected the plan to be recorded on the charge")
		}
	})

	t.Run("unknown plan fails the creation", func(t *testing.T) {
		uc := usecase.NewChargeUseCase(NewMockChargeRepo(), NewMockPlanRepo(), &MockPaymentGateway{}, newTestLogger())
		in := newChargeInput()
		in.PlanID = "missing"

		_, err := uc.Create(ctx, in)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestChargeUseCase_GenerateLink(t *testing.T) {
	ctx := context.Background()

	create := func(t *testing.T, uc usecase.ChargeUseCase) *model.Charge {
		t.Helper()
		c, err := uc.Create(ctx, newChargeInput())
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		return c
	}

	t.Run("attaches the gateway link and moves to pending", func(t *testing.T) {
		charges := NewMockChargeRepo()
		uc := usecase.NewChargeUseCase(charges, NewMockPlanRepo(), &MockPaymentGateway{}, newTestLogger())
		c := create(t, uc)

		got, err := uc.GenerateLink(ctx, c.ID, adapter.Payer{Name: "Ana", Email: "ana@example.com"})
		if err != nil {
			t.Fatalf("generate link: %v", err)
		}
		if got.Status != model.ChargeStatusPending {
			t.Errorf("expected 'pending', got '%s'", got.Status)
		}
		if got.PaymentLink == nil {
			t.Fatal("expected a payment link")
		}
	})

	t.Run("is idempotent for a charge that already holds a link", func(t *testing.T) {
		charges := NewMockChargeRepo()
		gateway := &MockPaymentGateway{}
		calls := 0
		gateway.CreatePaymentLinkFunc = func(ctx context.Context, spec adapter.PreferenceSpec) (adapter.PaymentLink, error) {
			calls++
			return adapter.PaymentLink{InitPoint: "https://pay.example/1", PreferenceID: "pref-1"}, nil
		}
		uc := usecase.NewChargeUseCase(charges, NewMockPlanRepo(), gateway, newTestLogger())
		c := create(t, uc)

		if _, err := uc.GenerateLink(ctx, c.ID, adapter.Payer{}); err != nil {
			t.Fatalf("first link: %v", err)
		}
		if _, err := uc.GenerateLink(ctx, c.ID, adapter.Payer{}); err != nil {
			t.Fatalf("second link: %v", err)
		}
		if calls != 1 {
			t.Errorf("a second GenerateLink must not mint a second preference, calls=%d", calls)
		}
	})

	t.Run("missing credential surfaces and leaves the charge created", func(t *testing.T) {
		charges := NewMockChargeRepo()
		gateway := &MockPaymentGateway{}
		gateway.CreatePaymentLinkFunc = func(ctx context.Context, spec adapter.PreferenceSpec) (adapter.PaymentLink, error) {
			return adapter.PaymentLink{}, domain.ErrCredentialMissing
		}
		uc := usecase.NewChargeUseCase(charges, NewMockPlanRepo(), gateway, newTestLogger())
		c := create(t, uc)

		_, err := uc.GenerateLink(ctx, c.ID, adapter.Payer{})
		if !errors.Is(err, domain.ErrCredentialMissing) {
			t.Fatalf("expected ErrCredentialMissing, got %v", err)
		}
		got, _ := charges.FindByID(ctx, nil, c.ID)
		if got.Status != model.ChargeStatusCreated {
			t.Errorf("failed link generation must leave the charge created, got '%s'", got.Status)
		}
	})

	t.Run("refuses terminal charges", func(t *testing.T) {
		charges := NewMockChargeRepo()
		uc := usecase.NewChargeUseCase(charges, NewMockPlanRepo(), &MockPaymentGateway{}, newTestLogger())
		c := create(t, uc)
		if _, err := uc.Cancel(ctx, c.ID, "test"); err != nil {
			t.Fatalf("cancel: %v", err)
		}

		_, err := uc.GenerateLink(ctx, c.ID, adapter.Payer{})
		if !errors.Is(err, domain.ErrChargeTerminal) {
			t.Errorf("expected ErrChargeTerminal, got %v", err)
		}
	})
}

func TestChargeUseCase_ExpireDue(t *testing.T) {
	ctx := context.Background()
	charges := NewMockChargeRepo()
	uc := usecase.NewChargeUseCase(charges, NewMockPlanRepo(), &MockPaymentGateway{}, newTestLogger())

	overdue, _ := model.NewCharge("c-old", "t-1", "s-1", 100, "BRL", time.Now().Add(-time.Hour))
	fresh, _ := model.NewCharge("c-new", "t-1", "s-1", 100, "BRL", time.Now().Add(time.Hour))
	charges.Save(ctx, nil, overdue)
	charges.Save(ctx, nil, fresh)

	n, err := uc.ExpireDue(ctx)
	if err != nil {
		t.Fatalf("expire due: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 lapsed charge, got %d", n)
	}
	got, _ := charges.FindByID(ctx, nil, "c-old")
	if got.Status != model.ChargeStatusExpired {
		t.Errorf("expected 'expired', got '%s'", got.Status)
	}
}
