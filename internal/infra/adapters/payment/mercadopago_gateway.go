// File: internal/infra/adapters/payment/mercadopago_gateway.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"trainer-billing/internal/domain"
	"trainer-billing/internal/domain/model"
	"trainer-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*MercadoPagoGateway)(nil)

// CredentialSource supplies the currently active gateway credential.
// Wired to the credential use case so every call sees configuration
// changes once the cache TTL or an explicit invalidation lands.
type CredentialSource interface {
	ActiveCredential(ctx context.Context) (*model.GatewayCredential, error)
}

// MercadoPagoGateway implements adapter.PaymentGateway against the
// Checkout Pro preference API.
//
// It never retries: a retried preference create could mint two live
// payment links for one charge. The caller owns retry policy.
type MercadoPagoGateway struct {
	baseURL         string
	notificationURL string
	backURL         string
	creds           CredentialSource
	client          *http.Client
}

func NewMercadoPagoGateway(baseURL, notificationURL, backURL string, creds CredentialSource, timeout time.Duration) (*MercadoPagoGateway, error) {
	if baseURL == "" {
		baseURL = "https://api.mercadopago.com"
	}
	if _, err := url.Parse(notificationURL); err != nil || notificationURL == "" {
		return nil, fmt.Errorf("invalid notification url: %w", domain.ErrInvalidArgument)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MercadoPagoGateway{
		baseURL:         baseURL,
		notificationURL: notificationURL,
		backURL:         backURL,
		creds:           creds,
		client:          &http.Client{Timeout: timeout},
	}, nil
}

func (g *MercadoPagoGateway) Name() string { return "mercadopago" }

// CreatePaymentLink creates a checkout preference carrying the charge id as
// external_reference so webhook payloads can be resolved back to it.
func (g *MercadoPagoGateway) CreatePaymentLink(ctx context.Context, spec adapter.PreferenceSpec) (adapter.PaymentLink, error) {
	cred, err := g.creds.ActiveCredential(ctx)
	if err != nil {
		return adapter.PaymentLink{}, err
	}

	payload := map[string]any{
		"items": []map[string]any{{
			"title":       spec.Title,
			"quantity":    1,
			"unit_price":  minorToDecimal(spec.Amount),
			"currency_id": spec.Currency,
		}},
		"payer": map[string]any{
			"name":  spec.Payer.Name,
			"email": spec.Payer.Email,
		},
		"external_reference": spec.ExternalReference,
		"notification_url":   g.notificationURL,
	}
	if g.backURL != "" {
		payload["back_urls"] = map[string]any{
			"success": g.backURL,
			"failure": g.backURL,
			"pending": g.backURL,
		}
	}
	if !spec.ExpiresAt.IsZero() {
		payload["expires"] = true
		payload["expiration_date_to"] = spec.ExpiresAt.Format(time.RFC3339)
	}

	var out struct {
		ID               string `json:"id"`
		InitPoint        string `json:"init_point"`
		SandboxInitPoint string `json:"sandbox_init_point"`
	}
	if err := g.call(ctx, http.MethodPost, "/checkout/preferences", cred.AccessToken, payload, &out); err != nil {
		return adapter.PaymentLink{}, err
	}
	if out.ID == "" {
		return adapter.PaymentLink{}, fmt.Errorf("%w: empty preference id", domain.ErrGatewayRejected)
	}

	link := out.InitPoint
	if cred.IsSandbox && out.SandboxInitPoint != "" {
		link = out.SandboxInitPoint
	}
	return adapter.PaymentLink{InitPoint: link, PreferenceID: out.ID}, nil
}

// GetPayment fetches a payment object; webhooks of topic payment carry only
// the payment id.
func (g *MercadoPagoGateway) GetPayment(ctx context.Context, paymentID string) (adapter.PaymentInfo, error) {
	cred, err := g.creds.ActiveCredential(ctx)
	if err != nil {
		return adapter.PaymentInfo{}, err
	}

	var out struct {
		ID                json.Number `json:"id"`
		Status            string      `json:"status"`
		ExternalReference string      `json:"external_reference"`
		TransactionAmount float64     `json:"transaction_amount"`
		DateApproved      string      `json:"date_approved"`
	}
	if err := g.call(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), cred.AccessToken, nil, &out); err != nil {
		return adapter.PaymentInfo{}, err
	}

	info := adapter.PaymentInfo{
		PaymentID:         out.ID.String(),
		Status:            out.Status,
		ExternalReference: out.ExternalReference,
		Amount:            decimalToMinor(out.TransactionAmount),
	}
	if out.DateApproved != "" {
		if t, err := time.Parse(time.RFC3339, out.DateApproved); err == nil {
			info.PaidAt = &t
		}
	}
	return info, nil
}

// VerifyCredential hits the identity endpoint with the candidate token.
// Configuration-time only, never the hot path.
func (g *MercadoPagoGateway) VerifyCredential(ctx context.Context, accessToken string) (adapter.AccountInfo, error) {
	var out struct {
		ID     json.Number `json:"id"`
		Email  string      `json:"email"`
		SiteID string      `json:"site_id"`
	}
	if err := g.call(ctx, http.MethodGet, "/users/me", accessToken, nil, &out); err != nil {
		return adapter.AccountInfo{}, err
	}
	return adapter.AccountInfo{AccountID: out.ID.String(), Email: out.Email, SiteID: out.SiteID}, nil
}

func (g *MercadoPagoGateway) call(ctx context.Context, method, path, token string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransientFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Propagate the provider error body for operator visibility.
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: http %d: %s", domain.ErrGatewayRejected, resp.StatusCode, bytes.TrimSpace(b))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %v", domain.ErrTransientFailure, err)
		}
	}
	return nil
}

func minorToDecimal(amount int64) float64 { return float64(amount) / 100 }

func decimalToMinor(amount float64) int64 { return int64(amount*100 + 0.5) }
