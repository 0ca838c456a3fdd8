package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"trainer-billing/internal/domain"
	"trainer-billing/internal/domain/model"
	"trainer-billing/internal/domain/ports/adapter"
	"trainer-billing/internal/usecase"
)

// Gateway webhook bodies are tiny; anything bigger is garbage.
const maxWebhookBody = 64 << 10

// handleWebhook ingests a gateway callback. The contract with the gateway
// is narrow: 400 only for bodies that cannot be decoded at all, 200 for
// everything else, duplicates and processing failures included. Any other
// answer makes the gateway hammer us with redeliveries.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}
	if len(body) == 0 {
		// The gateway also delivers body-less notifications with the
		// resource reference in the query string.
		body = notificationFromQuery(r.URL.Query())
		if body == nil {
			http.Error(w, "empty body", http.StatusBadRequest)
			return
		}
	}

	_, err = s.webhkUC.Ingest(r.Context(), body)
	switch {
	case err == nil, errors.Is(err, domain.ErrDuplicateEvent):
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, "malformed notification", http.StatusBadRequest)
	default:
		// The event row is already durable; the retry sweep owns it now.
		s.log.Error().Err(err).Msg("webhook ingest failed after persist")
		w.WriteHeader(http.StatusOK)
	}
}

// notificationFromQuery rebuilds a notification body from the query-string
// delivery form so the rest of the pipeline sees one payload shape.
func notificationFromQuery(q url.Values) []byte {
	if dataID := q.Get("data.id"); dataID != "" && q.Get("type") != "" {
		b, _ := json.Marshal(map[string]any{
			"type": q.Get("type"),
			"data": map[string]string{"id": dataID},
		})
		return b
	}
	if id := q.Get("id"); id != "" && q.Get("topic") != "" {
		b, _ := json.Marshal(map[string]string{
			"topic":    q.Get("topic"),
			"resource": id,
		})
		return b
	}
	return nil
}

// ===== Payment config =====

type configureRequest struct {
	AccessToken string `json:"access_token"`
	PublicKey   string `json:"public_key"`
	Sandbox     bool   `json:"sandbox"`
}

func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	var req configureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	cred, info, err := s.credUC.Configure(r.Context(), req.AccessToken, req.PublicKey, req.Sandbox)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, domain.ErrGatewayRejected):
			// Verification failed; nothing was stored.
			http.Error(w, "gateway rejected the credential", http.StatusUnprocessableEntity)
		default:
			http.Error(w, "Failed to configure gateway", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"gateway_type": cred.GatewayType,
		"sandbox":      cred.IsSandbox,
		"account_id":   info.AccountID,
		"account_email": info.Email,
		"site_id":      info.SiteID,
	})
}

func (s *Server) handleConfigStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.credUC.Status(r.Context())
	if err != nil {
		http.Error(w, "Failed to get gateway status", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

func (s *Server) handleDeactivateConfig(w http.ResponseWriter, r *http.Request) {
	if err := s.credUC.Deactivate(r.Context()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "no credential configured", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to deactivate gateway", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ===== Webhook events =====

type webhookEventResponse struct {
	ID         string  `json:"id"`
	WebhookID  string  `json:"webhook_id"`
	Topic      string  `json:"topic"`
	RetryCount int     `json:"retry_count"`
	LastError  string  `json:"last_error,omitempty"`
	CreatedAt  string  `json:"created_at"`
	ProcessedAt *string `json:"processed_at,omitempty"`
}

func (s *Server) handleFailedEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	events, err := s.webhkUC.ListExhausted(r.Context(), limit)
	if err != nil {
		http.Error(w, "Failed to list events", http.StatusInternalServerError)
		return
	}

	items := make([]webhookEventResponse, 0, len(events))
	for _, ev := range events {
		items = append(items, toWebhookEventResponse(ev))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func toWebhookEventResponse(ev *model.WebhookEvent) webhookEventResponse {
	resp := webhookEventResponse{
		ID:         ev.ID,
		WebhookID:  ev.WebhookID,
		Topic:      string(ev.Topic),
		RetryCount: ev.RetryCount,
		CreatedAt:  ev.CreatedAt.Format(time.RFC3339),
	}
	if ev.LastError != nil {
		resp.LastError = *ev.LastError
	}
	if ev.ProcessedAt != nil {
		v := ev.ProcessedAt.Format(time.RFC3339)
		resp.ProcessedAt = &v
	}
	return resp
}

// ===== Charges =====

type chargeCreateRequest struct {
	TeacherID   string `json:"teacher_id"`
	StudentID   string `json:"student_id"`
	PlanID      string `json:"plan_id,omitempty"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	DueDate     string `json:"due_date"` // RFC 3339
	PayerName   string `json:"payer_name,omitempty"`
	PayerEmail  string `json:"payer_email,omitempty"`
	// GenerateLink requests the payment link in the same call.
	GenerateLink bool `json:"generate_link,omitempty"`
}

type chargeResponse struct {
	ID           string  `json:"id"`
	TeacherID    string  `json:"teacher_id"`
	StudentID    string  `json:"student_id"`
	PlanID       *string `json:"plan_id,omitempty"`
	Amount       int64   `json:"amount"`
	Currency     string  `json:"currency"`
	Description  string  `json:"description,omitempty"`
	DueDate      string  `json:"due_date"`
	Status       string  `json:"status"`
	PaymentLink  *string `json:"payment_link,omitempty"`
	CancelReason *string `json:"cancel_reason,omitempty"`
	CreatedAt    string  `json:"created_at"`
	PaidAt       *string `json:"paid_at,omitempty"`
}

func toChargeResponse(c *model.Charge) chargeResponse {
	resp := chargeResponse{
		ID:           c.ID,
		TeacherID:    c.TeacherID,
		StudentID:    c.StudentID,
		PlanID:       c.PlanID,
		Amount:       c.Amount,
		Currency:     c.Currency,
		Description:  c.Description,
		DueDate:      c.DueDate.Format(time.RFC3339),
		Status:       string(c.Status),
		PaymentLink:  c.PaymentLink,
		CancelReason: c.CancelReason,
		CreatedAt:    c.CreatedAt.Format(time.RFC3339),
	}
	if c.PaidAt != nil {
		v := c.PaidAt.Format(time.RFC3339)
		resp.PaidAt = &v
	}
	return resp
}

func (s *Server) handleChargeCreate(w http.ResponseWriter, r *http.Request) {
	var req chargeCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	due, err := time.Parse(time.RFC3339, req.DueDate)
	if err != nil {
		http.Error(w, "due_date must be RFC 3339", http.StatusBadRequest)
		return
	}

	charge, err := s.chargeUC.Create(r.Context(), usecase.CreateChargeInput{
		TeacherID:   req.TeacherID,
		StudentID:   req.StudentID,
		PlanID:      req.PlanID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
		DueDate:     due,
		PayerName:   req.PayerName,
		PayerEmail:  req.PayerEmail,
	})
	if err != nil {
		writeDomainError(w, err, "Failed to create charge")
		return
	}

	if req.GenerateLink {
		linked, err := s.chargeUC.GenerateLink(r.Context(), charge.ID, adapter.Payer{Name: req.PayerName, Email: req.PayerEmail})
		if err != nil {
			// The charge exists; report it with the link error so the
			// operator can retry link generation separately.
			writeJSON(w, http.StatusCreated, map[string]any{
				"charge":     toChargeResponse(charge),
				"link_error": linkErrorCode(err),
			})
			return
		}
		charge = linked
	}
	writeJSON(w, http.StatusCreated, toChargeResponse(charge))
}

func (s *Server) handleChargeGet(w http.ResponseWriter, r *http.Request) {
	charge, err := s.chargeUC.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "Failed to get charge")
		return
	}
	writeJSON(w, http.StatusOK, toChargeResponse(charge))
}

func (s *Server) handleChargeList(w http.ResponseWriter, r *http.Request) {
	teacherID := r.URL.Query().Get("teacher_id")
	if teacherID == "" {
		http.Error(w, "teacher_id is required", http.StatusBadRequest)
		return
	}
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 50)

	charges, err := s.chargeUC.ListByTeacher(r.Context(), teacherID, offset, limit)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "Failed to list charges", http.StatusInternalServerError)
		return
	}
	items := make([]chargeResponse, 0, len(charges))
	for _, c := range charges {
		items = append(items, toChargeResponse(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type chargeLinkRequest struct {
	PayerName  string `json:"payer_name,omitempty"`
	PayerEmail string `json:"payer_email,omitempty"`
}

func (s *Server) handleChargeLink(w http.ResponseWriter, r *http.Request) {
	var req chargeLinkRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	charge, err := s.chargeUC.GenerateLink(r.Context(), chi.URLParam(r, "id"), adapter.Payer{Name: req.PayerName, Email: req.PayerEmail})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			http.Error(w, "charge not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrChargeTerminal):
			http.Error(w, "charge is in a terminal state", http.StatusConflict)
		case errors.Is(err, domain.ErrCredentialMissing):
			http.Error(w, "payment gateway is not configured", http.StatusPreconditionFailed)
		case errors.Is(err, domain.ErrGatewayRejected):
			http.Error(w, "gateway rejected the request", http.StatusBadGateway)
		case errors.Is(err, domain.ErrTransientFailure):
			http.Error(w, "gateway unavailable, try again", http.StatusBadGateway)
		default:
			http.Error(w, "Failed to generate link", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, toChargeResponse(charge))
}

type chargeCancelRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleChargeCancel(w http.ResponseWriter, r *http.Request) {
	var req chargeCancelRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	charge, err := s.chargeUC.Cancel(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			http.Error(w, "charge not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrChargeTerminal):
			http.Error(w, "paid charges cannot be cancelled", http.StatusConflict)
		default:
			http.Error(w, "Failed to cancel charge", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, toChargeResponse(charge))
}

func (s *Server) handleChargeDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.chargeUC.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			http.Error(w, "charge not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrChargeTerminal):
			http.Error(w, "paid charges cannot be deleted", http.StatusConflict)
		default:
			http.Error(w, "Failed to delete charge", http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStudentCharges(w http.ResponseWriter, r *http.Request) {
	charges, err := s.chargeUC.ListByStudent(r.Context(), chi.URLParam(r, "id"))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "Failed to list charges", http.StatusInternalServerError)
		return
	}
	items := make([]chargeResponse, 0, len(charges))
	for _, c := range charges {
		items = append(items, toChargeResponse(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// ===== Subscriptions =====

func (s *Server) handleSubscriptionGet(w http.ResponseWriter, r *http.Request) {
	sub, derived, err := s.subUC.GetWithStatus(r.Context(), chi.URLParam(r, "id"), 7*24*time.Hour)
	if err != nil {
		writeDomainError(w, err, "Failed to get subscription")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":             sub.ID,
		"user_id":        sub.UserID,
		"plan_id":        sub.PlanID,
		"status":         string(sub.Status),
		"derived_status": derived,
		"auto_renew":     sub.AutoRenew,
		"start_date":     sub.StartDate.Format(time.RFC3339),
		"end_date":       sub.EndDate.Format(time.RFC3339),
	})
}

// ===== helpers =====

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDomainError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}

func linkErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrCredentialMissing):
		return "credential_missing"
	case errors.Is(err, domain.ErrGatewayRejected):
		return "gateway_rejected"
	case errors.Is(err, domain.ErrTransientFailure):
		return "gateway_unavailable"
	default:
		return "internal"
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
