// Package provider is a local stand-in for the hosted payment provider,
// used in development and integration tests. It creates fake checkout
// sessions and can emit signed completion webhooks back at the API.
package provider

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ecommkit/storefront/internal/payment"
)

type Handler struct {
	webhookURL    string
	webhookSecret []byte
	httpClient    *http.Client
	logger        *slog.Logger
}

func NewHandler(webhookURL string, webhookSecret []byte, client *http.Client, logger *slog.Logger) *Handler {
	return &Handler{
		webhookURL:    webhookURL,
		webhookSecret: webhookSecret,
		httpClient:    client,
		logger:        logger,
	}
}

type createSessionRequest struct {
	Mode     string            `json:"mode"`
	Currency string            `json:"currency"`
	Amount   int64             `json:"amount"`
	Metadata map[string]string `json:"metadata"`
}

func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Metadata["order_id"] == "" {
		h.writeError(w, http.StatusBadRequest, "order_id metadata is required")
		return
	}

	delay := time.Duration(50+rand.Intn(151)) * time.Millisecond
	time.Sleep(delay)

	session := payment.Session{
		ID:          "cs_" + uuid.New().String(),
		RedirectURL: "https://pay.example/checkout/" + req.Metadata["order_id"],
	}

	h.logger.Info("session created", "session_id", session.ID, "order_id", req.Metadata["order_id"], "amount", req.Amount)
	h.writeJSON(w, http.StatusCreated, session)
}

type completeRequest struct {
	OrderID string `json:"order_id"`
}

// HandleComplete simulates the shopper finishing payment: it sends a
// signed checkout.session.completed webhook to the configured URL.
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		h.writeError(w, http.StatusBadRequest, "order_id is required")
		return
	}

	event := map[string]any{
		"id":   "evt_" + uuid.New().String(),
		"type": payment.EventCheckoutCompleted,
		"data": map[string]string{"order_id": req.OrderID},
	}

	body, err := json.Marshal(event)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to marshal event")
		return
	}

	webhookReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost, h.webhookURL, bytes.NewReader(body))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to build webhook request")
		return
	}
	webhookReq.Header.Set("Content-Type", "application/json")
	webhookReq.Header.Set("X-Webhook-Signature", payment.Sign(h.webhookSecret, body))

	resp, err := h.httpClient.Do(webhookReq)
	if err != nil {
		h.logger.Error("failed to deliver webhook", "error", err, "order_id", req.OrderID)
		h.writeError(w, http.StatusBadGateway, "webhook delivery failed")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	h.logger.Info("completion webhook delivered", "order_id", req.OrderID, "status", resp.StatusCode)
	h.writeJSON(w, http.StatusOK, map[string]any{"delivered": true, "webhook_status": resp.StatusCode})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
