package payment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ecommkit/storefront/internal/domain"
)

type fakePublisher struct {
	published []domain.PaymentCompletedEvent
	keys      []string
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, key string, event any) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, event.(domain.PaymentCompletedEvent))
	f.keys = append(f.keys, key)
	return nil
}

type fakeSink struct {
	handled []domain.PaymentCompletedEvent
	err     error
}

func (f *fakeSink) Handle(_ context.Context, event domain.PaymentCompletedEvent) error {
	if f.err != nil {
		return f.err
	}
	f.handled = append(f.handled, event)
	return nil
}

var testSecret = []byte("whsec_test")

func signedRequest(t *testing.T, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(body))
	req.Header.Set("X-Webhook-Signature", Sign(testSecret, []byte(body)))
	return req
}

func completedBody(eventID, orderID string) string {
	return `{"id":"` + eventID + `","type":"checkout.session.completed","data":{"order_id":"` + orderID + `"}}`
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWebhookHandler(t *testing.T) {
	t.Run("rejects missing signature", func(t *testing.T) {
		handler := NewWebhookHandler(testSecret, &fakePublisher{}, nil, testLogger())

		req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(completedBody("evt-1", "order-1")))
		rec := httptest.NewRecorder()
		handler.HandleWebhook(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("rejects a tampered body", func(t *testing.T) {
		handler := NewWebhookHandler(testSecret, &fakePublisher{}, nil, testLogger())

		body := completedBody("evt-1", "order-1")
		req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(strings.Replace(body, "order-1", "order-2", 1)))
		req.Header.Set("X-Webhook-Signature", Sign(testSecret, []byte(body)))
		rec := httptest.NewRecorder()
		handler.HandleWebhook(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("publishes completion events keyed by order id", func(t *testing.T) {
		publisher := &fakePublisher{}
		handler := NewWebhookHandler(testSecret, publisher, nil, testLogger())

		rec := httptest.NewRecorder()
		handler.HandleWebhook(rec, signedRequest(t, completedBody("evt-1", "order-1")))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(publisher.published) != 1 {
			t.Fatalf("expected 1 published event, got %d", len(publisher.published))
		}
		if publisher.published[0].EventID != "evt-1" || publisher.published[0].OrderID != "order-1" {
			t.Errorf("unexpected event: %+v", publisher.published[0])
		}
		if publisher.keys[0] != "order-1" {
			t.Errorf("expected key order-1, got %s", publisher.keys[0])
		}
	})

	t.Run("falls back to inline reconciliation without a broker", func(t *testing.T) {
		sink := &fakeSink{}
		handler := NewWebhookHandler(testSecret, nil, sink, testLogger())

		rec := httptest.NewRecorder()
		handler.HandleWebhook(rec, signedRequest(t, completedBody("evt-2", "order-2")))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(sink.handled) != 1 || sink.handled[0].OrderID != "order-2" {
			t.Errorf("expected inline handling of order-2, got %+v", sink.handled)
		}
	})

	t.Run("acknowledges and ignores other event types", func(t *testing.T) {
		publisher := &fakePublisher{}
		handler := NewWebhookHandler(testSecret, publisher, nil, testLogger())

		body := `{"id":"evt-3","type":"checkout.session.expired","data":{"order_id":"order-3"}}`
		rec := httptest.NewRecorder()
		handler.HandleWebhook(rec, signedRequest(t, body))

		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
		if len(publisher.published) != 0 {
			t.Errorf("expected no published events, got %d", len(publisher.published))
		}

		var resp map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp["status"] != "ignored" {
			t.Errorf("expected status ignored, got %s", resp["status"])
		}
	})

	t.Run("rejects events missing ids", func(t *testing.T) {
		handler := NewWebhookHandler(testSecret, &fakePublisher{}, nil, testLogger())

		rec := httptest.NewRecorder()
		handler.HandleWebhook(rec, signedRequest(t, `{"id":"","type":"checkout.session.completed","data":{"order_id":""}}`))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 500 when the broker is down", func(t *testing.T) {
		publisher := &fakePublisher{err: errors.New("broker unreachable")}
		handler := NewWebhookHandler(testSecret, publisher, nil, testLogger())

		rec := httptest.NewRecorder()
		handler.HandleWebhook(rec, signedRequest(t, completedBody("evt-4", "order-4")))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})
}
