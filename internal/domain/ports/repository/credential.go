package repository

import (
	"context"

	"trainer-billing/internal/domain/model"
)

// CredentialRepository holds the platform-wide gateway credentials.
type CredentialRepository interface {
	// Save upserts the credential row for its gateway type and deactivates
	// any other row of the same type, preserving the at-most-one-active
	// invariant.
	Save(ctx context.Context, tx Tx, c *model.GatewayCredential) error
	// FindActive returns the active credential for the gateway type or
	// domain.ErrNotFound.
	FindActive(ctx context.Context, tx Tx, gatewayType string) (*model.GatewayCredential, error)
	// FindAny returns the row regardless of the active flag, for config
	// status reads.
	FindAny(ctx context.Context, tx Tx, gatewayType string) (*model.GatewayCredential, error)
}
