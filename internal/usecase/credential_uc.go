// File: internal/usecase/credential_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"trainer-billing/internal/domain"
	"trainer-billing/internal/domain/model"
	"trainer-billing/internal/domain/ports/adapter"
	"trainer-billing/internal/domain/ports/repository"
	"trainer-billing/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ CredentialUseCase = (*credentialUC)(nil)

// CredentialVerifier is the slice of the gateway the configuration flow
// needs. Kept separate from adapter.PaymentGateway to break the
// construction cycle: the gateway reads credentials through this use case.
type CredentialVerifier interface {
	VerifyCredential(ctx context.Context, accessToken string) (adapter.AccountInfo, error)
}

// CredentialCache is the TTL cache in front of the credential store.
// Writes must invalidate it; there is no implicit singleton reset.
type CredentialCache interface {
	Get(ctx context.Context, gatewayType string) (*model.GatewayCredential, error)
	Store(ctx context.Context, cred *model.GatewayCredential) error
	Invalidate(ctx context.Context, gatewayType string) error
}

type CredentialUseCase interface {
	// Configure validates the token against the gateway BEFORE persisting,
	// then invalidates the cache.
	Configure(ctx context.Context, accessToken, publicKey string, sandbox bool) (*model.GatewayCredential, adapter.AccountInfo, error)
	// ActiveCredential returns the active credential, cache-through.
	ActiveCredential(ctx context.Context) (*model.GatewayCredential, error)
	// Status reports configuration health for the UI layer.
	Status(ctx context.Context) (model.ConfigStatus, error)
	// Deactivate flips the active flag off without dropping the row.
	Deactivate(ctx context.Context) error
}

type credentialUC struct {
	gatewayType string
	creds       repository.CredentialRepository
	cache       CredentialCache
	verifier    CredentialVerifier
	log         *zerolog.Logger
}

func NewCredentialUseCase(gatewayType string, creds repository.CredentialRepository, cache CredentialCache, logger *zerolog.Logger) *credentialUC {
	compLog := logger.With().Str("component", "CredentialUC").Logger()
	return &credentialUC{
		gatewayType: gatewayType,
		creds:       creds,
		cache:       cache,
		log:         &compLog,
	}
}

// SetVerifier wires the gateway after construction; the gateway itself
// reads credentials through ActiveCredential, so neither side can be
// built first with plain constructor injection.
func (u *credentialUC) SetVerifier(v CredentialVerifier) { u.verifier = v }

func (u *credentialUC) Configure(ctx context.Context, accessToken, publicKey string, sandbox bool) (*model.GatewayCredential, adapter.AccountInfo, error) {
	if accessToken == "" {
		return nil, adapter.AccountInfo{}, domain.ErrInvalidArgument
	}
	if u.verifier == nil {
		return nil, adapter.AccountInfo{}, domain.ErrInvalidArgument
	}

	account, err := u.verifier.VerifyCredential(ctx, accessToken)
	if err != nil {
		u.log.Warn().Err(err).Msg("credential verification failed")
		return nil, adapter.AccountInfo{}, err
	}

	cred, err := model.NewGatewayCredential(u.gatewayType, accessToken, publicKey, sandbox)
	if err != nil {
		return nil, adapter.AccountInfo{}, err
	}
	if err := u.creds.Save(ctx, repository.NoTX, cred); err != nil {
		return nil, adapter.AccountInfo{}, err
	}
	if err := u.cache.Invalidate(ctx, u.gatewayType); err != nil {
		// Stale reads end at the TTL; configuration still succeeded.
		u.log.Warn().Err(err).Msg("credential cache invalidation failed")
	}

	u.log.Info().
		Str("account_id", account.AccountID).
		Str("token", logging.Redact(accessToken, false)).
		Bool("sandbox", sandbox).
		Msg("gateway credential configured")
	return cred, account, nil
}

func (u *credentialUC) ActiveCredential(ctx context.Context) (*model.GatewayCredential, error) {
	if cached, err := u.cache.Get(ctx, u.gatewayType); err == nil && cached != nil {
		return cached, nil
	}

	cred, err := u.creds.FindActive(ctx, repository.NoTX, u.gatewayType)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrCredentialMissing
		}
		return nil, err
	}
	if err := u.cache.Store(ctx, cred); err != nil {
		u.log.Debug().Err(err).Msg("credential cache store failed")
	}
	return cred, nil
}

func (u *credentialUC) Status(ctx context.Context) (model.ConfigStatus, error) {
	cred, err := u.creds.FindAny(ctx, repository.NoTX, u.gatewayType)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return model.ConfigStatusNotConfigured, nil
		}
		return "", err
	}
	if !cred.IsActive {
		return model.ConfigStatusInactive, nil
	}
	if u.verifier != nil {
		if _, err := u.verifier.VerifyCredential(ctx, cred.AccessToken); err != nil {
			if errors.Is(err, domain.ErrGatewayRejected) {
				return model.ConfigStatusInvalidCredentials, nil
			}
			return "", err
		}
	}
	return model.ConfigStatusConfigured, nil
}

func (u *credentialUC) Deactivate(ctx context.Context) error {
	cred, err := u.creds.FindAny(ctx, repository.NoTX, u.gatewayType)
	if err != nil {
		return err
	}
	cred.IsActive = false
	cred.UpdatedAt = time.Now()
	if err := u.creds.Save(ctx, repository.NoTX, cred); err != nil {
		return err
	}
	return u.cache.Invalidate(ctx, u.gatewayType)
}
