package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/aurelle-jewelry/api/internal/domain"
	"github.com/aurelle-jewelry/api/internal/platform/auth"
	"github.com/aurelle-jewelry/api/internal/platform/httpx"
	"github.com/aurelle-jewelry/api/internal/services"
)

const maxOrderStatusBodySize = 4 * 1024

// OrderHandlers exposes order tracking for shoppers and status transitions for staff.
type OrderHandlers struct {
	orders services.OrderStatusService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderStatusService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes registers the public /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/track", h.trackOrder)
}

// AdminRoutes registers the administrative order endpoints.
func (h *OrderHandlers) AdminRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/{orderID}/status", h.transitionOrder)
}

func (h *OrderHandlers) trackOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	orderNumber := strings.TrimSpace(query.Get("order_number"))
	email := strings.TrimSpace(query.Get("email"))
	if orderNumber == "" || email == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order_number and email are required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.Track(ctx, orderNumber, email)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type transitionOrderRequest struct {
	Status string `json:"status"`
}

type transitionOrderResponse struct {
	OrderID        string `json:"order_id"`
	OrderNumber    string `json:"order_number"`
	PreviousStatus string `json:"previous_status"`
	Status         string `json:"status"`
	Changed        bool   `json:"changed"`
}

func (h *OrderHandlers) transitionOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxOrderStatusBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req transitionOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	var actorID string
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil {
		actorID = strings.TrimSpace(identity.UID)
	}

	result, err := h.orders.Transition(ctx, services.TransitionCommand{
		OrderID: orderID,
		Status:  domainStatus(req.Status),
		ActorID: actorID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, transitionOrderResponse{
		OrderID:        result.OrderID,
		OrderNumber:    result.OrderNumber,
		PreviousStatus: string(result.Previous),
		Status:         string(result.Current),
		Changed:        !result.NoOp,
	})
}

func domainStatus(raw string) domain.OrderStatus {
	return domain.OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}
