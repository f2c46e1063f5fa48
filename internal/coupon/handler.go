package coupon

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ecommkit/storefront/internal/domain"
)

type Handler struct {
	repo   *CouponRepository
	logger *slog.Logger
}

func NewHandler(repo *CouponRepository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

type createCouponRequest struct {
	Code       string    `json:"code"`
	Kind       string    `json:"kind"`
	Value      int64     `json:"value"`
	ValidFrom  time.Time `json:"valid_from"`
	ValidTo    time.Time `json:"valid_to"`
	AssignedTo string    `json:"assigned_to"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	coupon := &domain.Coupon{
		Code:       req.Code,
		Kind:       domain.DiscountKind(req.Kind),
		Value:      req.Value,
		ValidFrom:  req.ValidFrom,
		ValidTo:    req.ValidTo,
		AssignedTo: req.AssignedTo,
	}

	if coupon.Code == "" {
		h.writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	if err := ValidateNew(coupon); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.repo.Create(r.Context(), coupon); err != nil {
		if errors.Is(err, ErrCodeExists) {
			h.writeError(w, http.StatusConflict, "coupon code already exists")
			return
		}
		h.logger.Error("failed to create coupon", "error", err, "code", coupon.Code)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("coupon created", "coupon_id", coupon.ID, "code", coupon.Code, "kind", coupon.Kind)
	h.writeJSON(w, http.StatusCreated, coupon)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		h.writeError(w, http.StatusBadRequest, "missing coupon code")
		return
	}

	coupon, err := h.repo.GetByCode(r.Context(), code)
	if err != nil {
		h.logger.Error("failed to get coupon", "error", err, "code", code)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if coupon == nil {
		h.writeError(w, http.StatusNotFound, "coupon not found")
		return
	}

	h.writeJSON(w, http.StatusOK, coupon)
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
