package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ecommkit/storefront/internal/domain"
)

// Session is the provider's hosted-checkout handle. The client is
// redirected to RedirectURL to pay; completion arrives later through
// the webhook.
type Session struct {
	ID          string `json:"id"`
	RedirectURL string `json:"url"`
}

// SessionGateway creates hosted checkout sessions for card payments.
type SessionGateway interface {
	CreateSession(ctx context.Context, order *domain.Order) (*Session, error)
}

// ProviderClient talks to the payment provider over HTTP. The caller's
// http.Client timeout bounds session creation; a timeout means the
// session is not confirmed and the order stays pending.
type ProviderClient struct {
	baseURL    string
	currency   string
	httpClient *http.Client
}

func NewProviderClient(baseURL, currency string, client *http.Client) *ProviderClient {
	return &ProviderClient{
		baseURL:    baseURL,
		currency:   currency,
		httpClient: client,
	}
}

type sessionLineItem struct {
	Name       string `json:"name"`
	UnitAmount int64  `json:"unit_amount"`
	Quantity   int    `json:"quantity"`
}

type createSessionRequest struct {
	Mode      string            `json:"mode"`
	Currency  string            `json:"currency"`
	Amount    int64             `json:"amount"`
	LineItems []sessionLineItem `json:"line_items"`
	Metadata  map[string]string `json:"metadata"`
}

// CreateSession sends the frozen order snapshot to the provider. The
// order id travels as opaque metadata so the completion webhook can be
// correlated without any in-memory state.
func (c *ProviderClient) CreateSession(ctx context.Context, order *domain.Order) (*Session, error) {
	body := createSessionRequest{
		Mode:     "payment",
		Currency: c.currency,
		Amount:   order.FinalPrice,
		Metadata: map[string]string{"order_id": order.ID},
	}
	for _, item := range order.Items {
		body.LineItems = append(body.LineItems, sessionLineItem{
			Name:       item.Name,
			UnitAmount: item.FinalUnitPrice,
			Quantity:   item.Quantity,
		})
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout/sessions", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call payment provider: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("payment provider returned status %d", resp.StatusCode)
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("decode session response: %w", err)
	}

	return &session, nil
}
