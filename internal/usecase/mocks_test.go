//go:build !integration

// File: internal/usecase/mocks_test.go
package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"trainer-billing/internal/domain"
	"trainer-billing/internal/domain/model"
	"trainer-billing/internal/domain/ports/adapter"
	"trainer-billing/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

// -----------------------------
// Transaction manager
// -----------------------------

type noTx struct{}

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, opt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
	Calls      int
}

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

func (m *MockTxManager) WithTx(ctx context.Context, opt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.Calls++
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, opt, fn)
	}
	return fn(ctx, noTx{})
}

// -----------------------------
// Charge repository
// -----------------------------

type MockChargeRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Charge

	SaveFunc     func(ctx context.Context, tx repository.Tx, c *model.Charge) error
	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Charge, error)
}

func NewMockChargeRepo() *MockChargeRepo {
	return &MockChargeRepo{store: make(map[string]*model.Charge)}
}

func (m *MockChargeRepo) Save(ctx context.Context, tx repository.Tx, c *model.Charge) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.store[c.ID] = &cp
	return nil
}

func (m *MockChargeRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Charge, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockChargeRepo) FindByPreferenceID(ctx context.Context, tx repository.Tx, preferenceID string) (*model.Charge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.store {
		if c.PreferenceID != nil && *c.PreferenceID == preferenceID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockChargeRepo) ListByTeacher(ctx context.Context, tx repository.Tx, teacherID string, offset, limit int) ([]*model.Charge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Charge
	for _, c := range m.store {
		if c.TeacherID == teacherID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockChargeRepo) ListByStudent(ctx context.Context, tx repository.Tx, studentID string) ([]*model.Charge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Charge
	for _, c := range m.store {
		if c.StudentID == studentID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockChargeRepo) ExpireDue(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.store {
		if (c.Status == model.ChargeStatusCreated || c.Status == model.ChargeStatusPending) && c.DueDate.Before(now) {
			c.Status = model.ChargeStatusExpired
			n++
		}
	}
	return n, nil
}

func (m *MockChargeRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if c.Status == model.ChargeStatusPaid {
		return domain.ErrChargeTerminal
	}
	delete(m.store, id)
	return nil
}

// -----------------------------
// Subscription repository
// -----------------------------

type MockSubscriptionRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Subscription

	SaveFunc           func(ctx context.Context, tx repository.Tx, s *model.Subscription) error
	UpdateStatusFunc   func(ctx context.Context, tx repository.Tx, id string, status model.SubscriptionStatus) error
	SetMetadataKeyFunc func(ctx context.Context, tx repository.Tx, id, key string, value interface{}) error
}

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{store: make(map[string]*model.Subscription)}
}

func (m *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *MockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSubscriptionRepo) FindActiveByUserAndPlan(ctx context.Context, tx repository.Tx, userID, planID string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.store {
		if s.UserID == userID && s.PlanID == planID && s.Status == model.SubscriptionStatusActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubscriptionRepo) FindActiveEndedBefore(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Subscription
	for _, s := range m.store {
		if s.Status == model.SubscriptionStatusActive && s.EndDate.Before(cutoff) {
			cp := *s
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MockSubscriptionRepo) FindEndingOn(ctx context.Context, tx repository.Tx, day time.Time) ([]*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	y, mo, d := day.Date()
	var out []*model.Subscription
	for _, s := range m.store {
		sy, smo, sd := s.EndDate.Date()
		if s.Status == model.SubscriptionStatusActive && sy == y && smo == mo && sd == d {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockSubscriptionRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.SubscriptionStatus) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, tx, id, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Status = status
	return nil
}

func (m *MockSubscriptionRepo) SetMetadataKey(ctx context.Context, tx repository.Tx, id, key string, value interface{}) error {
	if m.SetMetadataKeyFunc != nil {
		return m.SetMetadataKeyFunc(ctx, tx, id, key, value)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if s.Metadata == nil {
		s.Metadata = map[string]interface{}{}
	}
	s.Metadata[key] = value
	return nil
}

// -----------------------------
// Plan repository
// -----------------------------

type MockPlanRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Plan
}

func NewMockPlanRepo() *MockPlanRepo { return &MockPlanRepo{store: make(map[string]*model.Plan)} }

func (m *MockPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *MockPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPlanRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Plan, 0, len(m.store))
	for _, p := range m.store {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

// -----------------------------
// Webhook event repository
// -----------------------------

type MockWebhookEventRepo struct {
	mu    sync.RWMutex
	store map[string]*model.WebhookEvent // by event ID
	byWID map[string]string              // webhook_id -> event ID

	SaveFunc          func(ctx context.Context, tx repository.Tx, e *model.WebhookEvent) error
	MarkProcessedFunc func(ctx context.Context, tx repository.Tx, id string, at time.Time) error
	RecordFailureFunc func(ctx context.Context, tx repository.Tx, id string, lastError string) error
}

func NewMockWebhookEventRepo() *MockWebhookEventRepo {
	return &MockWebhookEventRepo{store: make(map[string]*model.WebhookEvent), byWID: make(map[string]string)}
}

func (m *MockWebhookEventRepo) Save(ctx context.Context, tx repository.Tx, e *model.WebhookEvent) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, e)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.byWID[e.WebhookID]; dup {
		return domain.ErrDuplicateEvent
	}
	cp := *e
	m.store[e.ID] = &cp
	m.byWID[e.WebhookID] = e.ID
	return nil
}

func (m *MockWebhookEventRepo) FindByWebhookID(ctx context.Context, tx repository.Tx, webhookID string) (*model.WebhookEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byWID[webhookID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *m.store[id]
	return &cp, nil
}

func (m *MockWebhookEventRepo) ListUnprocessed(ctx context.Context, tx repository.Tx, maxRetries, limit int) ([]*model.WebhookEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.WebhookEvent
	for _, e := range m.store {
		if !e.Processed && e.RetryCount < maxRetries {
			cp := *e
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MockWebhookEventRepo) ListExhausted(ctx context.Context, tx repository.Tx, minRetries, limit int) ([]*model.WebhookEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.WebhookEvent
	for _, e := range m.store {
		if !e.Processed && e.RetryCount >= minRetries {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockWebhookEventRepo) MarkProcessed(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	if m.MarkProcessedFunc != nil {
		return m.MarkProcessedFunc(ctx, tx, id, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.Processed = true
	e.ProcessedAt = &at
	return nil
}

func (m *MockWebhookEventRepo) RecordFailure(ctx context.Context, tx repository.Tx, id string, lastError string) error {
	if m.RecordFailureFunc != nil {
		return m.RecordFailureFunc(ctx, tx, id, lastError)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.RetryCount++
	e.LastError = &lastError
	return nil
}

// Get returns the stored copy for assertions.
func (m *MockWebhookEventRepo) Get(id string) *model.WebhookEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.store[id]
	if !ok {
		return nil
	}
	cp := *e
	return &cp
}

// -----------------------------
// Credential repository
// -----------------------------

type MockCredentialRepo struct {
	mu    sync.RWMutex
	store map[string]*model.GatewayCredential

	SaveFunc func(ctx context.Context, tx repository.Tx, c *model.GatewayCredential) error
}

func NewMockCredentialRepo() *MockCredentialRepo {
	return &MockCredentialRepo{store: make(map[string]*model.GatewayCredential)}
}

func (m *MockCredentialRepo) Save(ctx context.Context, tx repository.Tx, c *model.GatewayCredential) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.store[c.GatewayType] = &cp
	return nil
}

func (m *MockCredentialRepo) FindActive(ctx context.Context, tx repository.Tx, gatewayType string) (*model.GatewayCredential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.store[gatewayType]
	if !ok || !c.IsActive {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockCredentialRepo) FindAny(ctx context.Context, tx repository.Tx, gatewayType string) (*model.GatewayCredential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.store[gatewayType]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// -----------------------------
// Notification log repository
// -----------------------------

type notifLogKey struct {
	subID string
	kind  string
	days  int
}

type MockNotificationLogRepo struct {
	mu   sync.RWMutex
	sent map[notifLogKey]bool

	SaveFunc func(ctx context.Context, tx repository.Tx, subscriptionID, userID, kind string, thresholdDays int) error
}

func NewMockNotificationLogRepo() *MockNotificationLogRepo {
	return &MockNotificationLogRepo{sent: make(map[notifLogKey]bool)}
}

func (m *MockNotificationLogRepo) Save(ctx context.Context, tx repository.Tx, subscriptionID, userID, kind string, thresholdDays int) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, subscriptionID, userID, kind, thresholdDays)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := notifLogKey{subscriptionID, kind, thresholdDays}
	if m.sent[k] {
		return domain.ErrAlreadyExists
	}
	m.sent[k] = true
	return nil
}

func (m *MockNotificationLogRepo) Exists(ctx context.Context, tx repository.Tx, subscriptionID, kind string, thresholdDays int) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sent[notifLogKey{subscriptionID, kind, thresholdDays}], nil
}

// -----------------------------
// Payment gateway
// -----------------------------

type MockPaymentGateway struct {
	CreatePaymentLinkFunc func(ctx context.Context, spec adapter.PreferenceSpec) (adapter.PaymentLink, error)
	GetPaymentFunc        func(ctx context.Context, paymentID string) (adapter.PaymentInfo, error)
	VerifyCredentialFunc  func(ctx context.Context, accessToken string) (adapter.AccountInfo, error)
}

func (m *MockPaymentGateway) Name() string { return "mock" }

func (m *MockPaymentGateway) CreatePaymentLink(ctx context.Context, spec adapter.PreferenceSpec) (adapter.PaymentLink, error) {
	if m.CreatePaymentLinkFunc != nil {
		return m.CreatePaymentLinkFunc(ctx, spec)
	}
	return adapter.PaymentLink{InitPoint: "https://pay.example/" + spec.ExternalReference, PreferenceID: "pref-" + spec.ExternalReference}, nil
}

func (m *MockPaymentGateway) GetPayment(ctx context.Context, paymentID string) (adapter.PaymentInfo, error) {
	if m.GetPaymentFunc != nil {
		return m.GetPaymentFunc(ctx, paymentID)
	}
	return adapter.PaymentInfo{PaymentID: paymentID, Status: "approved"}, nil
}

func (m *MockPaymentGateway) VerifyCredential(ctx context.Context, accessToken string) (adapter.AccountInfo, error) {
	if m.VerifyCredentialFunc != nil {
		return m.VerifyCredentialFunc(ctx, accessToken)
	}
	return adapter.AccountInfo{AccountID: "acc-1", Email: "gym@example.com"}, nil
}

// -----------------------------
// Collaborators
// -----------------------------

type MockNotifier struct {
	mu       sync.Mutex
	Sent     []adapter.Notification
	SendFunc func(ctx context.Context, n adapter.Notification) error
}

func (m *MockNotifier) Send(ctx context.Context, n adapter.Notification) error {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, n)
	return nil
}

func (m *MockNotifier) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

type MockMembershipStore struct {
	mu     sync.Mutex
	Active map[string]bool
	Calls  int

	SetActiveFunc func(ctx context.Context, userID string, active bool) error
}

func NewMockMembershipStore() *MockMembershipStore {
	return &MockMembershipStore{Active: make(map[string]bool)}
}

func (m *MockMembershipStore) SetActive(ctx context.Context, userID string, active bool) error {
	if m.SetActiveFunc != nil {
		return m.SetActiveFunc(ctx, userID, active)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.Active[userID] = active
	return nil
}

// -----------------------------
// Credential cache
// -----------------------------

type MockCredentialCache struct {
	mu          sync.Mutex
	store       map[string]*model.GatewayCredential
	Invalidated int
}

func NewMockCredentialCache() *MockCredentialCache {
	return &MockCredentialCache{store: make(map[string]*model.GatewayCredential)}
}

func (m *MockCredentialCache) Get(ctx context.Context, gatewayType string) (*model.GatewayCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[gatewayType]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *MockCredentialCache) Store(ctx context.Context, cred *model.GatewayCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *cred
	m.store[cred.GatewayType] = &cp
	return nil
}

func (m *MockCredentialCache) Invalidate(ctx context.Context, gatewayType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Invalidated++
	delete(m.store, gatewayType)
	return nil
}

// -----------------------------
// Task submitter
// -----------------------------

// syncSubmitter runs submitted tasks inline so tests observe their effects
// without goroutine coordination.
type syncSubmitter struct{ SubmitErr error }

func (s *syncSubmitter) Submit(task func(ctx context.Context) error) error {
	if s.SubmitErr != nil {
		return s.SubmitErr
	}
	return task(context.Background())
}
