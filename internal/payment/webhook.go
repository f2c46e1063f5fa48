package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ecommkit/storefront/internal/domain"
)

const EventCheckoutCompleted = "checkout.session.completed"

// Publisher hands a completion event to the async transport.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// CompletionSink processes a completion event synchronously. Used when
// no broker is configured.
type CompletionSink interface {
	Handle(ctx context.Context, event domain.PaymentCompletedEvent) error
}

// WebhookHandler is the ingress for the provider's asynchronous
// notifications. Events are authenticated with an HMAC-SHA256
// shared-secret signature over the raw body; anything unsigned or
// mis-signed is rejected before reconciliation sees it.
type WebhookHandler struct {
	secret    []byte
	publisher Publisher
	sink      CompletionSink
	logger    *slog.Logger
}

func NewWebhookHandler(secret []byte, publisher Publisher, sink CompletionSink, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		secret:    secret,
		publisher: publisher,
		sink:      sink,
		logger:    logger,
	}
}

type webhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		OrderID string `json:"order_id"`
	} `json:"data"`
}

func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if !h.verifySignature(body, r.Header.Get("X-Webhook-Signature")) {
		h.logger.Warn("webhook signature verification failed")
		h.writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid event payload")
		return
	}

	if event.Type != EventCheckoutCompleted {
		// Unknown event types are acknowledged so the provider stops
		// redelivering them.
		h.logger.Info("ignoring webhook event", "type", event.Type, "event_id", event.ID)
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if event.ID == "" || event.Data.OrderID == "" {
		h.writeError(w, http.StatusBadRequest, "event id and order id are required")
		return
	}

	completed := domain.PaymentCompletedEvent{
		EventID:   event.ID,
		OrderID:   event.Data.OrderID,
		Timestamp: time.Now().UTC(),
	}

	if h.publisher != nil {
		// Keyed by order id so replays and retries of the same order
		// land on the same partition, in order.
		if err := h.publisher.Publish(r.Context(), completed.OrderID, completed); err != nil {
			h.logger.Error("failed to publish payment event", "error", err, "order_id", completed.OrderID, "event_id", completed.EventID)
			h.writeError(w, http.StatusInternalServerError, "failed to enqueue event")
			return
		}
	} else if err := h.sink.Handle(r.Context(), completed); err != nil {
		h.logger.Error("failed to reconcile payment event", "error", err, "order_id", completed.OrderID, "event_id", completed.EventID)
		h.writeError(w, http.StatusInternalServerError, "reconciliation failed")
		return
	}

	h.logger.Info("payment completion accepted", "order_id", completed.OrderID, "event_id", completed.EventID)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (h *WebhookHandler) verifySignature(body []byte, header string) bool {
	signature, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(provided, mac.Sum(nil))
}

// Sign computes the signature header value for a payload. Exported for
// tests and the local provider stub.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func (h *WebhookHandler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *WebhookHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
