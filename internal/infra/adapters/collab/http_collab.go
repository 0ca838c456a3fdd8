// Package collab holds thin HTTP clients for the platform subsystems the
// billing engine collaborates with: the notification sender and the
// membership/access store. Both are owned by the CRUD side of the product;
// the engine only calls their internal REST endpoints.
package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"trainer-billing/internal/domain"
	"trainer-billing/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*HTTPNotifier)(nil)

type HTTPNotifier struct {
	url    string
	apiKey string
	client *http.Client
}

func NewHTTPNotifier(url, apiKey string, timeout time.Duration) *HTTPNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPNotifier{url: url, apiKey: apiKey, client: &http.Client{Timeout: timeout}}
}

func (n *HTTPNotifier) Send(ctx context.Context, msg adapter.Notification) error {
	body := map[string]any{
		"user_id":  msg.UserID,
		"title":    msg.Title,
		"message":  msg.Message,
		"type":     msg.Type,
		"metadata": msg.Metadata,
	}
	return post(ctx, n.client, n.url, n.apiKey, body)
}

var _ adapter.MembershipStore = (*HTTPMembershipStore)(nil)

type HTTPMembershipStore struct {
	url    string
	apiKey string
	client *http.Client
}

func NewHTTPMembershipStore(url, apiKey string, timeout time.Duration) *HTTPMembershipStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPMembershipStore{url: url, apiKey: apiKey, client: &http.Client{Timeout: timeout}}
}

func (m *HTTPMembershipStore) SetActive(ctx context.Context, userID string, active bool) error {
	body := map[string]any{
		"user_id": userID,
		"active":  active,
	}
	return post(ctx, m.client, m.url, m.apiKey, body)
}

func post(ctx context.Context, client *http.Client, url, apiKey string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransientFailure, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: http %d: %s", domain.ErrTransientFailure, resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}
