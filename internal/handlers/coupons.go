package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/aurelle-jewelry/api/internal/domain"
	"github.com/aurelle-jewelry/api/internal/platform/httpx"
	"github.com/aurelle-jewelry/api/internal/services"
)

const (
	maxCouponBodySize     = 8 * 1024
	defaultCouponPageSize = 20
	maxCouponPageSize     = 100
)

// CouponHandlers exposes coupon validation for shoppers and CRUD for administrators.
type CouponHandlers struct {
	coupons services.CouponService
}

// NewCouponHandlers constructs a new CouponHandlers instance.
func NewCouponHandlers(coupons services.CouponService) *CouponHandlers {
	return &CouponHandlers{coupons: coupons}
}

// Routes registers the public /coupons endpoints.
func (h *CouponHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/validate", h.validateCoupon)
}

// AdminRoutes registers the administrative coupon endpoints.
func (h *CouponHandlers) AdminRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listCoupons)
	r.Put("/{code}", h.upsertCoupon)
	r.Delete("/{code}", h.deleteCoupon)
}

type validateCouponRequest struct {
	Code       string `json:"code"`
	Email      string `json:"email"`
	OrderTotal int64  `json:"order_total"`
}

type couponValidationResponse struct {
	Code         string `json:"code"`
	DiscountType string `json:"discount_type"`
	Value        int64  `json:"value"`
	Discount     int64  `json:"discount"`
	Message      string `json:"message"`
}

func (h *CouponHandlers) validateCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_service_unavailable", "coupon service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxCouponBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req validateCouponRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	validation, err := h.coupons.Validate(ctx, services.CouponValidateCommand{
		Code:     req.Code,
		Email:    req.Email,
		Subtotal: req.OrderTotal,
	})
	if err != nil {
		writeCouponError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, couponValidationResponse{
		Code:         validation.Code,
		DiscountType: string(validation.DiscountType),
		Value:        validation.Value,
		Discount:     validation.Discount,
		Message:      validation.Message,
	})
}

type upsertCouponRequest struct {
	DiscountType string `json:"discount_type"`
	Value        int64  `json:"value"`
	MinSpend     int64  `json:"min_spend"`
	ExpiresAt    string `json:"expires_at"`
	IsActive     bool   `json:"is_active"`
}

type couponPayload struct {
	Code         string `json:"code"`
	DiscountType string `json:"discount_type"`
	Value        int64  `json:"value"`
	MinSpend     int64  `json:"min_spend"`
	ExpiresAt    string `json:"expires_at,omitempty"`
	IsActive     bool   `json:"is_active"`
	Redemptions  int    `json:"redemptions"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at,omitempty"`
}

type couponListResponse struct {
	Items         []couponPayload `json:"items"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}

func (h *CouponHandlers) listCoupons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_service_unavailable", "coupon service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	pageSize := defaultCouponPageSize
	if sizeRaw := strings.TrimSpace(query.Get("page_size")); sizeRaw != "" {
		size, err := strconv.Atoi(sizeRaw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be an integer", http.StatusBadRequest))
			return
		}
		switch {
		case size <= 0:
			pageSize = defaultCouponPageSize
		case size > maxCouponPageSize:
			pageSize = maxCouponPageSize
		default:
			pageSize = size
		}
	}

	page, err := h.coupons.ListCoupons(ctx, domain.Pagination{
		PageSize:  pageSize,
		PageToken: strings.TrimSpace(query.Get("page_token")),
	})
	if err != nil {
		writeCouponError(ctx, w, err)
		return
	}

	items := make([]couponPayload, 0, len(page.Items))
	for _, coupon := range page.Items {
		items = append(items, buildCouponPayload(coupon))
	}

	writeJSONResponse(w, http.StatusOK, couponListResponse{
		Items:         items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *CouponHandlers) upsertCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_service_unavailable", "coupon service unavailable", http.StatusServiceUnavailable))
		return
	}

	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "coupon code is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxCouponBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req upsertCouponRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	cmd := services.UpsertCouponCommand{
		Code:         code,
		DiscountType: domain.DiscountType(req.DiscountType),
		Value:        req.Value,
		MinSpend:     req.MinSpend,
		IsActive:     req.IsActive,
	}
	if raw := strings.TrimSpace(req.ExpiresAt); raw != "" {
		expires, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "expires_at must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		cmd.ExpiresAt = &expires
	}

	coupon, err := h.coupons.UpsertCoupon(ctx, cmd)
	if err != nil {
		writeCouponError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildCouponPayload(coupon))
}

func (h *CouponHandlers) deleteCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_service_unavailable", "coupon service unavailable", http.StatusServiceUnavailable))
		return
	}

	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "coupon code is required", http.StatusBadRequest))
		return
	}

	if err := h.coupons.DeleteCoupon(ctx, code); err != nil {
		writeCouponError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func buildCouponPayload(coupon domain.Coupon) couponPayload {
	payload := couponPayload{
		Code:         coupon.Code,
		DiscountType: string(coupon.DiscountType),
		Value:        coupon.Value,
		MinSpend:     coupon.MinSpend,
		IsActive:     coupon.IsActive,
		Redemptions:  len(coupon.UsedBy),
		CreatedAt:    formatTime(coupon.CreatedAt),
		UpdatedAt:    formatTime(coupon.UpdatedAt),
	}
	if coupon.ExpiresAt != nil {
		payload.ExpiresAt = formatTime(*coupon.ExpiresAt)
	}
	return payload
}

// writeCouponError maps coupon failures onto the API error envelope. A missing
// code is a 404; a code that exists but fails an eligibility check is a 422
// with a message safe to surface to the shopper.
func writeCouponError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCouponInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCouponNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_not_found", "coupon not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCouponInactive):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_inactive", "this coupon is no longer active", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCouponExpired):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_expired", "this coupon has expired", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCouponBelowMinSpend):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_below_min_spend", "order subtotal does not meet the coupon minimum", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCouponAlreadyUsed):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_already_used", "this coupon has already been used", http.StatusUnprocessableEntity))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("coupon_error", "failed to process coupon request", http.StatusInternalServerError))
	}
}
