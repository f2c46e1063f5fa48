package cart

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ecommkit/storefront/internal/domain"
)

// ProductCatalog is the read-only catalog view the cart needs for
// validating additions.
type ProductCatalog interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

type Handler struct {
	repo    *CartRepository
	catalog ProductCatalog
	logger  *slog.Logger
}

func NewHandler(repo *CartRepository, catalog ProductCatalog, logger *slog.Logger) *Handler {
	return &Handler{
		repo:    repo,
		catalog: catalog,
		logger:  logger,
	}
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	cart, err := h.repo.Get(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to get cart", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, cart)
}

type upsertLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// HandleUpsertLine adds a product to the cart or replaces its quantity.
func (h *Handler) HandleUpsertLine(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	var req upsertLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ProductID == "" || req.Quantity <= 0 {
		h.writeError(w, http.StatusBadRequest, "product_id and a positive quantity are required")
		return
	}

	product, err := h.catalog.GetByID(r.Context(), req.ProductID)
	if err != nil {
		h.logger.Error("failed to get product", "error", err, "product_id", req.ProductID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if product == nil {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	if !product.InStock(req.Quantity) {
		h.writeError(w, http.StatusConflict, "out of stock: "+product.Name)
		return
	}

	cart, err := h.repo.UpsertLine(r.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		h.logger.Error("failed to upsert cart line", "error", err, "user_id", userID, "product_id", req.ProductID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("cart line upserted", "user_id", userID, "product_id", req.ProductID, "quantity", req.Quantity)
	h.writeJSON(w, http.StatusOK, cart)
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
