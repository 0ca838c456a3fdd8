//go:build !integration

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"trainer-billing/internal/domain"
	"trainer-billing/internal/domain/model"
	"trainer-billing/internal/domain/ports/adapter"
	"trainer-billing/internal/usecase"
)

// --- Mock use cases (Ports) ---

type mockWebhookUC struct {
	IngestFunc func(ctx context.Context, body []byte) (*model.WebhookEvent, error)
	Exhausted  []*model.WebhookEvent
}

func (m *mockWebhookUC) Ingest(ctx context.Context, body []byte) (*model.WebhookEvent, error) {
	if m.IngestFunc != nil {
		return m.IngestFunc(ctx, body)
	}
	return &model.WebhookEvent{ID: "evt-1", WebhookID: "wh-1"}, nil
}

func (m *mockWebhookUC) RetryBatch(ctx context.Context, batchSize int) (int, int, error) {
	return 0, 0, nil
}

func (m *mockWebhookUC) ListExhausted(ctx context.Context, limit int) ([]*model.WebhookEvent, error) {
	return m.Exhausted, nil
}

type mockChargeUC struct {
	CreateFunc       func(ctx context.Context, in usecase.CreateChargeInput) (*model.Charge, error)
	GenerateLinkFunc func(ctx context.Context, chargeID string, payer adapter.Payer) (*model.Charge, error)
	CancelFunc       func(ctx context.Context, chargeID, reason string) (*model.Charge, error)
	GetFunc          func(ctx context.Context, chargeID string) (*model.Charge, error)
}

func (m *mockChargeUC) Create(ctx context.Context, in usecase.CreateChargeInput) (*model.Charge, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, in)
	}
	return model.NewCharge("charge-1", in.TeacherID, in.StudentID, in.Amount, in.Currency, in.DueDate)
}

func (m *mockChargeUC) GenerateLink(ctx context.Context, chargeID string, payer adapter.Payer) (*model.Charge, error) {
	if m.GenerateLinkFunc != nil {
		return m.GenerateLinkFunc(ctx, chargeID, payer)
	}
	return nil, domain.ErrNotFound
}

func (m *mockChargeUC) Cancel(ctx context.Context, chargeID, reason string) (*model.Charge, error) {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, chargeID, reason)
	}
	return nil, domain.ErrNotFound
}

func (m *mockChargeUC) Get(ctx context.Context, chargeID string) (*model.Charge, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, chargeID)
	}
	return nil, domain.ErrNotFound
}

func (m *mockChargeUC) Delete(ctx context.Context, chargeID string) error { return nil }

func (m *mockChargeUC) ListByTeacher(ctx context.Context, teacherID string, offset, limit int) ([]*model.Charge, error) {
	return []*model.Charge{}, nil
}

func (m *mockChargeUC) ListByStudent(ctx context.Context, studentID string) ([]*model.Charge, error) {
	return []*model.Charge{}, nil
}

func (m *mockChargeUC) ExpireDue(ctx context.Context) (int, error) { return 0, nil }

type mockCredentialUC struct {
	ConfigureFunc func(ctx context.Context, accessToken, publicKey string, sandbox bool) (*model.GatewayCredential, adapter.AccountInfo, error)
	StatusValue   model.ConfigStatus
	DeactivateErr error
}

func (m *mockCredentialUC) Configure(ctx context.Context, accessToken, publicKey string, sandbox bool) (*model.GatewayCredential, adapter.AccountInfo, error) {
	if m.ConfigureFunc != nil {
		return m.ConfigureFunc(ctx, accessToken, publicKey, sandbox)
	}
	cred, _ := model.NewGatewayCredential("mercadopago", accessToken, publicKey, sandbox)
	return cred, adapter.AccountInfo{AccountID: "acc-1"}, nil
}

func (m *mockCredentialUC) ActiveCredential(ctx context.Context) (*model.GatewayCredential, error) {
	return nil, domain.ErrCredentialMissing
}

func (m *mockCredentialUC) Status(ctx context.Context) (model.ConfigStatus, error) {
	if m.StatusValue != "" {
		return m.StatusValue, nil
	}
	return model.ConfigStatusNotConfigured, nil
}

func (m *mockCredentialUC) Deactivate(ctx context.Context) error { return m.DeactivateErr }

type mockSubUC struct {
	GetWithStatusFunc func(ctx context.Context, id string, window time.Duration) (*model.Subscription, string, error)
}

func (m *mockSubUC) ExpireDue(ctx context.Context, batchSize int) (int, error) { return 0, nil }

func (m *mockSubUC) Get(ctx context.Context, id string) (*model.Subscription, error) {
	return nil, domain.ErrNotFound
}

func (m *mockSubUC) GetWithStatus(ctx context.Context, id string, window time.Duration) (*model.Subscription, string, error) {
	if m.GetWithStatusFunc != nil {
		return m.GetWithStatusFunc(ctx, id, window)
	}
	return nil, "", domain.ErrNotFound
}

// newTestServer wires a Server with mock use cases. Routes are served
// through the real router so chi URL params resolve.
func newTestServer(t *testing.T, charge usecase.ChargeUseCase, webhk usecase.WebhookUseCase, cred usecase.CredentialUseCase, sub usecase.SubscriptionUseCase) (*Server, http.Handler, *http.Cookie) {
	t.Helper()
	auth := NewAuthManager("test-operator-jwt-secret-please-change", false, "", time.Minute)
	s := NewServer(charge, webhk, cred, sub, auth, "test-operator-key", newTestLogger())
	router := s.Router()

	rr := httptest.NewRecorder()
	if _, err := auth.Mint(rr); err != nil {
		t.Fatalf("mint session: %v", err)
	}
	var session *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == "trainer_session" {
			session = c
			break
		}
	}
	if session == nil {
		t.Fatal("expected trainer_session cookie")
	}
	return s, router, session
}

// --- Handler Tests ---

func TestWebhookHandler(t *testing.T) {
	webhk := &mockWebhookUC{}
	_, router, _ := newTestServer(t, &mockChargeUC{}, webhk, &mockCredentialUC{}, &mockSubUC{})

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewBufferString(body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	t.Run("accepted notification -> 200", func(t *testing.T) {
		rr := post(`{"id":"100","type":"payment","data":{"id":"pay-1"}}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
	})

	t.Run("duplicate delivery -> 200", func(t *testing.T) {
		webhk.IngestFunc = func(ctx context.Context, body []byte) (*model.WebhookEvent, error) {
			return nil, domain.ErrDuplicateEvent
		}
		defer func() { webhk.IngestFunc = nil }()
		rr := post(`{"id":"100","type":"payment","data":{"id":"pay-1"}}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200 for a duplicate, got %d", rr.Code)
		}
	})

	t.Run("undecodable body -> 400", func(t *testing.T) {
		webhk.IngestFunc = func(ctx context.Context, body []byte) (*model.WebhookEvent, error) {
			return nil, domain.ErrInvalidArgument
		}
		defer func() { webhk.IngestFunc = nil }()
		rr := post(`not json at all`)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("empty body without query params -> 400", func(t *testing.T) {
		rr := post("")
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("query-string delivery form -> 200", func(t *testing.T) {
		var ingested []byte
		webhk.IngestFunc = func(ctx context.Context, body []byte) (*model.WebhookEvent, error) {
			ingested = body
			return &model.WebhookEvent{ID: "evt-q", WebhookID: "wh-q"}, nil
		}
		defer func() { webhk.IngestFunc = nil }()

		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment?type=payment&data.id=pay-9", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		n, err := model.DecodeNotification(ingested)
		if err != nil {
			t.Fatalf("rebuilt body must decode: %v", err)
		}
		if n.Topic != model.TopicPayment || n.DataID != "pay-9" {
			t.Errorf("unexpected notification: %+v", n)
		}
	})

	t.Run("post-persist failure still -> 200", func(t *testing.T) {
		webhk.IngestFunc = func(ctx context.Context, body []byte) (*model.WebhookEvent, error) {
			return nil, errors.New("reconcile blew up")
		}
		defer func() { webhk.IngestFunc = nil }()
		rr := post(`{"id":"100","type":"payment","data":{"id":"pay-1"}}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("a failure after persist must not trigger redelivery, got %d", rr.Code)
		}
	})
}

func TestChargeHandlers(t *testing.T) {
	charge := &mockChargeUC{}
	_, router, session := newTestServer(t, charge, &mockWebhookUC{}, &mockCredentialUC{}, &mockSubUC{})

	do := func(method, path, body string) *httptest.ResponseRecorder {
		var req *http.Request
		if body != "" {
			req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		} else {
			req = httptest.NewRequest(method, path, nil)
		}
		req.AddCookie(session)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	due := time.Now().Add(72 * time.Hour).Format(time.RFC3339)

	t.Run("create -> 201", func(t *testing.T) {
		rr := do(http.MethodPost, "/api/v1/charges",
			`{"teacher_id":"t-1","student_id":"s-1","amount":25000,"currency":"BRL","due_date":"`+due+`"}`)
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
		}
		var resp chargeResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Status != string(model.ChargeStatusCreated) {
			t.Errorf("expected created status, got %s", resp.Status)
		}
	})

	t.Run("create with bad due_date -> 400", func(t *testing.T) {
		rr := do(http.MethodPost, "/api/v1/charges",
			`{"teacher_id":"t-1","student_id":"s-1","amount":25000,"due_date":"tomorrow"}`)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("create with failing link keeps the charge -> 201 + link_error", func(t *testing.T) {
		charge.GenerateLinkFunc = func(ctx context.Context, chargeID string, payer adapter.Payer) (*model.Charge, error) {
			return nil, domain.ErrCredentialMissing
		}
		defer func() { charge.GenerateLinkFunc = nil }()

		rr := do(http.MethodPost, "/api/v1/charges",
			`{"teacher_id":"t-1","student_id":"s-1","amount":25000,"due_date":"`+due+`","generate_link":true}`)
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rr.Code)
		}
		var resp struct {
			Charge    chargeResponse `json:"charge"`
			LinkError string         `json:"link_error"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.LinkError != "credential_missing" {
			t.Errorf("expected link_error credential_missing, got %q", resp.LinkError)
		}
		if resp.Charge.ID == "" {
			t.Error("the created charge must still be in the response")
		}
	})

	t.Run("get unknown charge -> 404", func(t *testing.T) {
		rr := do(http.MethodGet, "/api/v1/charges/missing", "")
		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rr.Code)
		}
	})

	t.Run("link without configured gateway -> 412", func(t *testing.T) {
		charge.GenerateLinkFunc = func(ctx context.Context, chargeID string, payer adapter.Payer) (*model.Charge, error) {
			return nil, domain.ErrCredentialMissing
		}
		defer func() { charge.GenerateLinkFunc = nil }()
		rr := do(http.MethodPost, "/api/v1/charges/charge-1/link", "")
		if rr.Code != http.StatusPreconditionFailed {
			t.Fatalf("expected 412, got %d", rr.Code)
		}
	})

	t.Run("link on terminal charge -> 409", func(t *testing.T) {
		charge.GenerateLinkFunc = func(ctx context.Context, chargeID string, payer adapter.Payer) (*model.Charge, error) {
			return nil, domain.ErrChargeTerminal
		}
		defer func() { charge.GenerateLinkFunc = nil }()
		rr := do(http.MethodPost, "/api/v1/charges/charge-1/link", "")
		if rr.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rr.Code)
		}
	})

	t.Run("cancel a paid charge -> 409", func(t *testing.T) {
		charge.CancelFunc = func(ctx context.Context, chargeID, reason string) (*model.Charge, error) {
			return nil, domain.ErrChargeTerminal
		}
		defer func() { charge.CancelFunc = nil }()
		rr := do(http.MethodPost, "/api/v1/charges/charge-1/cancel", `{"reason":"typo"}`)
		if rr.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rr.Code)
		}
	})

	t.Run("list without teacher_id -> 400", func(t *testing.T) {
		rr := do(http.MethodGet, "/api/v1/charges", "")
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}
	})
}

func TestPaymentConfigHandlers(t *testing.T) {
	cred := &mockCredentialUC{}
	_, router, session := newTestServer(t, &mockChargeUC{}, &mockWebhookUC{}, cred, &mockSubUC{})

	do := func(method, body string) *httptest.ResponseRecorder {
		var req *http.Request
		if body != "" {
			req = httptest.NewRequest(method, "/api/v1/payment-config", bytes.NewBufferString(body))
		} else {
			req = httptest.NewRequest(method, "/api/v1/payment-config", nil)
		}
		req.AddCookie(session)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	t.Run("configure -> 200 with account info", func(t *testing.T) {
		rr := do(http.MethodPut, `{"access_token":"APP_USR-token","sandbox":true}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var resp map[string]any
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp["account_id"] != "acc-1" {
			t.Errorf("expected the verified account id, got %v", resp["account_id"])
		}
	})

	t.Run("rejected credential -> 422", func(t *testing.T) {
		cred.ConfigureFunc = func(ctx context.Context, accessToken, publicKey string, sandbox bool) (*model.GatewayCredential, adapter.AccountInfo, error) {
			return nil, adapter.AccountInfo{}, domain.ErrGatewayRejected
		}
		defer func() { cred.ConfigureFunc = nil }()
		rr := do(http.MethodPut, `{"access_token":"bad"}`)
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rr.Code)
		}
	})

	t.Run("status -> 200", func(t *testing.T) {
		cred.StatusValue = model.ConfigStatusConfigured
		rr := do(http.MethodGet, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		var resp map[string]string
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp["status"] != "configured" {
			t.Errorf("expected configured, got %s", resp["status"])
		}
	})

	t.Run("deactivate with no credential -> 404", func(t *testing.T) {
		cred.DeactivateErr = domain.ErrNotFound
		defer func() { cred.DeactivateErr = nil }()
		rr := do(http.MethodDelete, "")
		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rr.Code)
		}
	})
}

func TestFailedEventsHandler(t *testing.T) {
	lastErr := "gateway timeout"
	webhk := &mockWebhookUC{
		Exhausted: []*model.WebhookEvent{
			{ID: "evt-1", WebhookID: "wh-1", Topic: model.TopicPayment, RetryCount: 5, LastError: &lastErr, CreatedAt: time.Now()},
		},
	}
	_, router, session := newTestServer(t, &mockChargeUC{}, webhk, &mockCredentialUC{}, &mockSubUC{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/webhook-events/failed", nil)
	req.AddCookie(session)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		Items []webhookEventResponse `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(resp.Items))
	}
	if resp.Items[0].LastError != "gateway timeout" || resp.Items[0].RetryCount != 5 {
		t.Errorf("unexpected item: %+v", resp.Items[0])
	}
}

func TestSubscriptionHandler(t *testing.T) {
	sub := &mockSubUC{}
	_, router, session := newTestServer(t, &mockChargeUC{}, &mockWebhookUC{}, &mockCredentialUC{}, sub)

	t.Run("resolves the derived status", func(t *testing.T) {
		sub.GetWithStatusFunc = func(ctx context.Context, id string, window time.Duration) (*model.Subscription, string, error) {
			return &model.Subscription{
				ID:        id,
				UserID:    "student-1",
				PlanID:    "plan-1",
				Status:    model.SubscriptionStatusActive,
				StartDate: time.Now().Add(-28 * 24 * time.Hour),
				EndDate:   time.Now().Add(2 * 24 * time.Hour),
			}, "due_soon", nil
		}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions/sub-1", nil)
		req.AddCookie(session)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		var resp map[string]any
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp["derived_status"] != "due_soon" {
			t.Errorf("expected due_soon, got %v", resp["derived_status"])
		}
		if resp["status"] != "active" {
			t.Errorf("stored status must stay active, got %v", resp["status"])
		}
	})

	t.Run("unknown subscription -> 404", func(t *testing.T) {
		sub.GetWithStatusFunc = nil
		req := httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions/missing", nil)
		req.AddCookie(session)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rr.Code)
		}
	})
}
