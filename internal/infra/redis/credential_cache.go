package redis

import (
	"context"
	"encoding/json"
	"time"

	"trainer-billing/internal/domain/model"
)

// CredentialCache is the read-mostly cache in front of the credential
// store. Configuration writes must call Invalidate; there is no implicit
// process-wide singleton to reset.
type CredentialCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewCredentialCache(client RedisClient, ttl time.Duration) *CredentialCache {
	return &CredentialCache{
		client: client,
		ttl:    ttl,
	}
}

func key(gatewayType string) string { return "gateway_credential:" + gatewayType }

func (c *CredentialCache) Store(ctx context.Context, cred *model.GatewayCredential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(cred.GatewayType), data, c.ttl)
}

// Get returns (nil, nil) on a cache miss.
func (c *CredentialCache) Get(ctx context.Context, gatewayType string) (*model.GatewayCredential, error) {
	data, err := c.client.Get(ctx, key(gatewayType))
	if err != nil {
		if IsNil(err) {
			return nil, nil
		}
		return nil, err
	}
	var cred model.GatewayCredential
	if err := json.Unmarshal([]byte(data), &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

func (c *CredentialCache) Invalidate(ctx context.Context, gatewayType string) error {
	return c.client.Del(ctx, key(gatewayType))
}
