package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"trainer-billing/internal/domain"
)

// MaxWebhookRetries bounds scheduler-driven retries per event. The
// synchronous attempt at ingestion time does not count against it.
const MaxWebhookRetries = 5

// WebhookEvent is the durable record of one inbound gateway callback. It is
// persisted before any side effect is applied, so a crash mid-processing
// still leaves a row for the retry sweep to pick up. WebhookID uniqueness
// enforces at-most-once application of a given gateway notification.
type WebhookEvent struct {
	ID          string // ULID, sortable by ingest time
	WebhookID   string // gateway-assigned id, unique
	Topic       EventTopic
	Payload     json.RawMessage // original body, kept verbatim for audit
	Processed   bool
	RetryCount  int
	LastError   *string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

func NewWebhookEvent(id, webhookID string, topic EventTopic, payload []byte) (*WebhookEvent, error) {
	if id == "" || webhookID == "" || len(payload) == 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &WebhookEvent{
		ID:        id,
		WebhookID: webhookID,
		Topic:     topic,
		Payload:   json.RawMessage(payload),
		CreatedAt: time.Now(),
	}, nil
}

// Exhausted reports whether the event burned its whole retry budget.
func (e *WebhookEvent) Exhausted() bool {
	return !e.Processed && e.RetryCount >= MaxWebhookRetries
}

// EventTopic keys the tagged union of gateway payload shapes. Anything the
// decoder does not recognize lands in TopicUnknown and the processor's
// unresolved arm.
type EventTopic string

const (
	TopicPayment       EventTopic = "payment"
	TopicMerchantOrder EventTopic = "merchant_order"
	TopicUnknown       EventTopic = "unknown"
)

// GatewayNotification is the decoded, minimal view of a webhook body: which
// kind of resource changed and its gateway id. Payment status is NOT in the
// body; the reconciler fetches the resource from the gateway.
type GatewayNotification struct {
	EventID string
	Topic   EventTopic
	DataID  string
}

// DecodeNotification parses the two body shapes the gateway sends: the
// current form with "type" + "data.id", and the legacy form with "topic" +
// a "resource" URL or id.
func DecodeNotification(payload []byte) (GatewayNotification, error) {
	var body struct {
		ID       json.Number `json:"id"`
		Type     string      `json:"type"`
		Action   string      `json:"action"`
		Data     struct {
			ID json.Number `json:"id"`
		} `json:"data"`
		Topic    string `json:"topic"`
		Resource string `json:"resource"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return GatewayNotification{}, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}

	n := GatewayNotification{Topic: TopicUnknown}
	switch {
	case body.Type != "":
		n.Topic = topicOf(body.Type)
		n.DataID = body.Data.ID.String()
	case body.Topic != "":
		n.Topic = topicOf(body.Topic)
		n.DataID = lastPathSegment(body.Resource)
	}

	n.EventID = body.ID.String()
	if n.EventID == "" || n.EventID == "0" {
		// Legacy notifications have no top-level id; the resource id
		// scoped by topic is the next-best dedup key.
		n.EventID = string(n.Topic) + "-" + n.DataID
	}
	if n.DataID == "" {
		return GatewayNotification{}, domain.ErrInvalidArgument
	}
	return n, nil
}

func topicOf(s string) EventTopic {
	switch strings.ToLower(s) {
	case "payment":
		return TopicPayment
	case "merchant_order":
		return TopicMerchantOrder
	default:
		return TopicUnknown
	}
}

func lastPathSegment(s string) string {
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// PaymentOutcome is the reconciler's view of a fetched payment status.
type PaymentOutcome string

const (
	OutcomeApproved PaymentOutcome = "approved"
	OutcomePending  PaymentOutcome = "pending"
	OutcomeRejected PaymentOutcome = "rejected"
	OutcomeUnknown  PaymentOutcome = "unknown"
)

// MapPaymentStatus folds the gateway's status vocabulary into the three
// outcomes the state machine acts on.
func MapPaymentStatus(status string) PaymentOutcome {
	switch strings.ToLower(status) {
	case "approved", "paid", "accredited":
		return OutcomeApproved
	case "pending", "in_process", "in_mediation", "authorized":
		return OutcomePending
	case "rejected", "cancelled", "refunded", "charged_back":
		return OutcomeRejected
	default:
		return OutcomeUnknown
	}
}
