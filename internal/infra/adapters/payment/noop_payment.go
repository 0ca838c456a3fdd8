package payment

import (
	"context"
	"fmt"
	"sync"

	"trainer-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is a simple in-memory gateway to use in tests.
type NoopPaymentGateway struct {
	mu       sync.Mutex
	seq      int64
	payments map[string]adapter.PaymentInfo // payment id -> info
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{
		payments: make(map[string]adapter.PaymentInfo),
	}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) next() string {
	g.seq++
	return fmt.Sprintf("noop-%d", g.seq)
}

func (g *NoopPaymentGateway) CreatePaymentLink(ctx context.Context, spec adapter.PreferenceSpec) (adapter.PaymentLink, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	pref := g.next()
	return adapter.PaymentLink{
		InitPoint:    "https://example.test/pay/" + pref,
		PreferenceID: pref,
	}, nil
}

// SettlePayment registers a gateway-side payment so a later GetPayment can
// observe it, simulating the student paying externally.
func (g *NoopPaymentGateway) SettlePayment(paymentID, status, externalReference string, amount int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[paymentID] = adapter.PaymentInfo{
		PaymentID:         paymentID,
		Status:            status,
		ExternalReference: externalReference,
		Amount:            amount,
	}
}

func (g *NoopPaymentGateway) GetPayment(ctx context.Context, paymentID string) (adapter.PaymentInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	info, ok := g.payments[paymentID]
	if !ok {
		return adapter.PaymentInfo{}, fmt.Errorf("noop: payment not found")
	}
	return info, nil
}

func (g *NoopPaymentGateway) VerifyCredential(ctx context.Context, accessToken string) (adapter.AccountInfo, error) {
	if accessToken == "" {
		return adapter.AccountInfo{}, fmt.Errorf("noop: empty token")
	}
	return adapter.AccountInfo{AccountID: "noop-account", Email: "noop@example.test"}, nil
}
