package adapter

import (
	"context"
	"time"
)

// PaymentLink is the provider-side artifact of a created checkout
// preference: the redirect URL the student pays at and the provider id we
// key reconciliation on.
type PaymentLink struct {
	InitPoint    string // redirect URL
	PreferenceID string
}

// Payer is the contact info forwarded to the gateway checkout.
type Payer struct {
	Name  string
	Email string
}

// PreferenceSpec describes the checkout preference to create.
type PreferenceSpec struct {
	ExternalReference string // our charge id; comes back in webhook payloads
	Amount            int64  // minor units
	Currency          string
	Title             string
	Payer             Payer
	ExpiresAt         time.Time // charge due date
}

// AccountInfo is the gateway's identity answer during credential checks.
type AccountInfo struct {
	AccountID string
	Email     string
	SiteID    string
}

// PaymentInfo is the gateway-side payment object fetched during
// reconciliation (payment webhooks carry only the payment id).
type PaymentInfo struct {
	PaymentID         string
	Status            string
	ExternalReference string
	Amount            int64
	PaidAt            *time.Time
}

// PaymentGateway is the hex port for payment providers.
//
// The gateway never retries internally: a retried create could mint two
// live payment links for one charge. Retry policy belongs to callers.
type PaymentGateway interface {
	Name() string

	// CreatePaymentLink creates a checkout preference and returns the
	// redirect URL plus provider preference id. Fails with
	// domain.ErrCredentialMissing when no active credential exists and
	// domain.ErrGatewayRejected on provider non-2xx.
	CreatePaymentLink(ctx context.Context, spec PreferenceSpec) (PaymentLink, error)

	// GetPayment fetches a payment object by provider id.
	GetPayment(ctx context.Context, paymentID string) (PaymentInfo, error)

	// VerifyCredential calls the provider identity endpoint with the given
	// token. Used only during configuration, never in the hot path.
	VerifyCredential(ctx context.Context, accessToken string) (AccountInfo, error)
}
