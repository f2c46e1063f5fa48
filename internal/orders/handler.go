package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ecommkit/storefront/internal/coupon"
	"github.com/ecommkit/storefront/internal/domain"
	"github.com/ecommkit/storefront/internal/payment"
	"github.com/ecommkit/storefront/internal/pricing"
)

// CartStore is the checkout's read view of the user's cart. Clearing
// happens in reconciliation, never here: an abandoned card checkout
// must leave the cart intact for retry.
type CartStore interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
}

type ProductCatalog interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

type CouponCatalog interface {
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
}

type OrderStore interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetStatus(ctx context.Context, id string) (domain.OrderStatus, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	Cancel(ctx context.Context, orderID, eventID string) error
}

// Placer finalizes an order the same way a payment completion does.
// Used for cash orders when the auto-place policy is on.
type Placer interface {
	Handle(ctx context.Context, event domain.PaymentCompletedEvent) error
}

type Handler struct {
	store         OrderStore
	carts         CartStore
	catalog       ProductCatalog
	coupons       CouponCatalog
	gateway       payment.SessionGateway
	placer        Placer
	cashAutoPlace bool
	logger        *slog.Logger
}

func NewHandler(store OrderStore, carts CartStore, catalog ProductCatalog, coupons CouponCatalog,
	gateway payment.SessionGateway, placer Placer, cashAutoPlace bool, logger *slog.Logger) *Handler {
	return &Handler{
		store:         store,
		carts:         carts,
		catalog:       catalog,
		coupons:       coupons,
		gateway:       gateway,
		placer:        placer,
		cashAutoPlace: cashAutoPlace,
		logger:        logger,
	}
}

type createOrderRequest struct {
	PaymentMethod string `json:"payment_method"`
	CouponCode    string `json:"coupon_code"`
	Phone         string `json:"phone"`
	Street        string `json:"street"`
}

type createOrderResponse struct {
	Order       *domain.Order `json:"order"`
	SessionID   string        `json:"session_id,omitempty"`
	RedirectURL string        `json:"redirect_url,omitempty"`
}

// HandleCreate converts the user's cart into an immutable priced order.
// Every validation runs before anything is written; a card order then
// gets a hosted checkout session, and a gateway failure leaves the
// order pending for the client to retry payment.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	method := domain.PaymentMethod(req.PaymentMethod)
	if method != domain.PaymentCash && method != domain.PaymentCard {
		h.writeError(w, http.StatusBadRequest, "payment_method must be cash or card")
		return
	}

	ctx := r.Context()

	var appliedCoupon *domain.Coupon
	if req.CouponCode != "" {
		c, err := h.coupons.GetByCode(ctx, req.CouponCode)
		if err != nil {
			h.logger.Error("failed to get coupon", "error", err, "code", req.CouponCode)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if c == nil {
			h.writeError(w, http.StatusNotFound, "coupon not found")
			return
		}
		if err := coupon.ValidateForUse(c, userID, time.Now().UTC()); err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		appliedCoupon = c
	}

	cart, err := h.carts.Get(ctx, userID)
	if err != nil {
		h.logger.Error("failed to get cart", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if cart == nil || len(cart.Items) == 0 {
		h.writeError(w, http.StatusBadRequest, "cart is empty")
		return
	}

	// Resolve every line and run the advisory stock pre-check before
	// anything is written. Any violation aborts with nothing created.
	lines := make([]pricing.Line, 0, len(cart.Items))
	for _, item := range cart.Items {
		product, err := h.catalog.GetByID(ctx, item.ProductID)
		if err != nil {
			h.logger.Error("failed to get product", "error", err, "product_id", item.ProductID)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if product == nil {
			h.writeError(w, http.StatusNotFound, "product not found: "+item.ProductID)
			return
		}
		if !product.InStock(item.Quantity) {
			h.writeError(w, http.StatusConflict, "out of stock: "+product.Name)
			return
		}
		lines = append(lines, pricing.Line{Product: *product, Quantity: item.Quantity})
	}

	quote, err := pricing.Price(lines, appliedCoupon)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	order := &domain.Order{
		UserID:        userID,
		Items:         quote.Items,
		Coupon:        quote.Coupon,
		OrderPrice:    quote.Subtotal,
		FinalPrice:    quote.Total,
		PaymentMethod: method,
		Address:       domain.Address{Phone: req.Phone, Street: req.Street},
		CreatedAt:     time.Now().UTC(),
	}

	if err := h.store.Create(ctx, order); err != nil {
		h.logger.Error("failed to create order", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("order created", "order_id", order.ID, "user_id", userID,
		"payment_method", method, "final_price", order.FinalPrice)

	if method == domain.PaymentCard {
		session, err := h.gateway.CreateSession(ctx, order)
		if err != nil {
			// The order stays pending; the client may retry payment or
			// re-create the order.
			h.logger.Error("failed to create payment session", "error", err, "order_id", order.ID)
			h.writeError(w, http.StatusBadGateway, "payment session creation failed")
			return
		}

		h.logger.Info("payment session created", "order_id", order.ID, "session_id", session.ID)
		h.writeJSON(w, http.StatusCreated, createOrderResponse{
			Order:       order,
			SessionID:   session.ID,
			RedirectURL: session.RedirectURL,
		})
		return
	}

	if h.cashAutoPlace {
		event := domain.PaymentCompletedEvent{
			EventID:   "cash:" + order.ID,
			OrderID:   order.ID,
			Timestamp: time.Now().UTC(),
		}
		if err := h.placer.Handle(ctx, event); err != nil {
			h.logger.Error("failed to place cash order", "error", err, "order_id", order.ID)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if placed, err := h.store.GetByID(ctx, order.ID); err == nil && placed != nil {
			order = placed
		}
	}

	h.writeJSON(w, http.StatusCreated, createOrderResponse{Order: order})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "order_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	status, err := h.store.GetStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			h.writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.Error("failed to get order status", "error", err, "order_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"order_id": id, "status": string(status)})
}

// HandleCancel abandons a pending order before payment completes. A
// placed order is terminal and cannot be cancelled; cancelling an
// already-cancelled order is a no-op so client retries are safe. A
// completion webhook arriving after the cancel is recorded as an
// anomaly by reconciliation, never applied.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	err := h.store.Cancel(r.Context(), id, "cancel:"+id)
	switch {
	case errors.Is(err, ErrOrderNotFound):
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	case errors.Is(err, ErrAlreadyPlaced):
		h.writeError(w, http.StatusConflict, "order already placed")
		return
	case errors.Is(err, ErrOrderCancelled):
		// Already cancelled, nothing to do.
	case err != nil:
		h.logger.Error("failed to cancel order", "error", err, "order_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	default:
		h.logger.Info("order cancelled", "order_id", id)
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"order_id": id, "status": string(domain.OrderStatusCancelled)})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	orders, err := h.store.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
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
