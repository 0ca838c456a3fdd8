package model

import (
	"time"

	"trainer-billing/internal/domain"
)

// GatewayCredential is the platform-wide credential set for one gateway
// type. At most one active row per gateway type; all outbound calls read
// the currently active one. It is deliberately not tenant-scoped.
type GatewayCredential struct {
	GatewayType string // e.g. "mercadopago"
	AccessToken string
	PublicKey   string
	IsActive    bool
	IsSandbox   bool
	UpdatedAt   time.Time
}

func NewGatewayCredential(gatewayType, accessToken, publicKey string, sandbox bool) (*GatewayCredential, error) {
	if gatewayType == "" || accessToken == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &GatewayCredential{
		GatewayType: gatewayType,
		AccessToken: accessToken,
		PublicKey:   publicKey,
		IsActive:    true,
		IsSandbox:   sandbox,
		UpdatedAt:   time.Now(),
	}, nil
}

// ConfigStatus mirrors the health states the UI layer renders.
type ConfigStatus string

const (
	ConfigStatusNotConfigured      ConfigStatus = "not_configured"
	ConfigStatusInvalidCredentials ConfigStatus = "invalid_credentials"
	ConfigStatusInactive           ConfigStatus = "inactive"
	ConfigStatusConfigured         ConfigStatus = "configured"
)
