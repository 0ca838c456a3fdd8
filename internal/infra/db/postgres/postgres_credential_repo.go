package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"trainer-billing/internal/domain"
	"trainer-billing/internal/domain/model"
	"trainer-billing/internal/domain/ports/repository"
)

var _ repository.CredentialRepository = (*credentialRepo)(nil)

type credentialRepo struct{ pool *pgxpool.Pool }

func NewCredentialRepo(pool *pgxpool.Pool) *credentialRepo {
	return &credentialRepo{pool: pool}
}

const credCols = `gateway_type, access_token, public_key, is_active, is_sandbox, updated_at`

func (r *credentialRepo) Save(ctx context.Context, tx repository.Tx, c *model.GatewayCredential) error {
	// Upsert on gateway_type keeps the at-most-one-active invariant: the
	// table holds exactly one row per gateway type.
	const q = `
INSERT INTO gateway_credentials (gateway_type, access_token, public_key, is_active, is_sandbox, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (gateway_type) DO UPDATE SET
  access_token=$2, public_key=$3, is_active=$4, is_sandbox=$5, updated_at=$6;`

	_, err := execSQL(ctx, r.pool, tx, q, c.GatewayType, c.AccessToken, c.PublicKey, c.IsActive, c.IsSandbox, c.UpdatedAt)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *credentialRepo) FindActive(ctx context.Context, tx repository.Tx, gatewayType string) (*model.GatewayCredential, error) {
	const q = `SELECT ` + credCols + ` FROM gateway_credentials WHERE gateway_type=$1 AND is_active=true LIMIT 1;`
	return r.queryOne(ctx, tx, q, gatewayType)
}

func (r *credentialRepo) FindAny(ctx context.Context, tx repository.Tx, gatewayType string) (*model.GatewayCredential, error) {
	const q = `SELECT ` + credCols + ` FROM gateway_credentials WHERE gateway_type=$1 LIMIT 1;`
	return r.queryOne(ctx, tx, q, gatewayType)
}

func (r *credentialRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.GatewayCredential, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	c := &model.GatewayCredential{}
	if err := row.Scan(&c.GatewayType, &c.AccessToken, &c.PublicKey, &c.IsActive, &c.IsSandbox, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return c, nil
}
