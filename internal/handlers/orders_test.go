package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/aurelle-jewelry/api/internal/domain"
	"github.com/aurelle-jewelry/api/internal/services"
)

type stubOrderStatusService struct {
	transitionFn func(context.Context, services.TransitionCommand) (services.OrderTransition, error)
	trackFn      func(context.Context, string, string) (domain.Order, error)
}

func (s *stubOrderStatusService) Transition(ctx context.Context, cmd services.TransitionCommand) (services.OrderTransition, error) {
	if s.transitionFn != nil {
		return s.transitionFn(ctx, cmd)
	}
	return services.OrderTransition{}, errors.New("not implemented")
}

func (s *stubOrderStatusService) Track(ctx context.Context, orderNumber string, email string) (domain.Order, error) {
	if s.trackFn != nil {
		return s.trackFn(ctx, orderNumber, email)
	}
	return domain.Order{}, errors.New("not implemented")
}

func trackedOrder() domain.Order {
	return domain.Order{
		ID:            "ord_1",
		OrderNumber:   "AJ-2025-000042",
		CustomerName:  "Mika Tan",
		CustomerEmail: "mika@example.com",
		Items: []domain.OrderLineItem{
			{ProductID: "prod-ring", ProductName: "Halo Ring", Quantity: 2, UnitPrice: 30000, Total: 60000},
		},
		Subtotal:  60000,
		Shipping:  900,
		Total:     60900,
		Status:    domain.OrderStatusShipped,
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newOrderRouter(svc services.OrderStatusService) chi.Router {
	h := NewOrderHandlers(svc)
	r := chi.NewRouter()
	r.Route("/orders", h.Routes)
	r.Route("/admin/orders", h.AdminRoutes)
	return r
}

func TestTrackOrderSuccess(t *testing.T) {
	svc := &stubOrderStatusService{
		trackFn: func(_ context.Context, orderNumber string, email string) (domain.Order, error) {
			if orderNumber != "AJ-2025-000042" || email != "mika@example.com" {
				t.Fatalf("unexpected lookup %q %q", orderNumber, email)
			}
			return trackedOrder(), nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/orders/track?order_number=AJ-2025-000042&email=mika@example.com", nil)
	rr := httptest.NewRecorder()
	newOrderRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var body orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Order.OrderNumber != "AJ-2025-000042" {
		t.Fatalf("unexpected order number %q", body.Order.OrderNumber)
	}
	if body.Order.Status != "shipped" {
		t.Fatalf("unexpected status %q", body.Order.Status)
	}
	if body.Order.Total != 60900 {
		t.Fatalf("unexpected total %d", body.Order.Total)
	}
}

func TestTrackOrderMissingParams(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/orders/track?order_number=AJ-2025-000042", nil)
	rr := httptest.NewRecorder()
	newOrderRouter(&stubOrderStatusService{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestTrackOrderNotFound(t *testing.T) {
	svc := &stubOrderStatusService{
		trackFn: func(context.Context, string, string) (domain.Order, error) {
			return domain.Order{}, services.ErrOrderNotFound
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/orders/track?order_number=AJ-2025-000001&email=nobody@example.com", nil)
	rr := httptest.NewRecorder()
	newOrderRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["error"] != "order_not_found" {
		t.Fatalf("unexpected error code %v", body["error"])
	}
}

func TestTransitionOrderSuccess(t *testing.T) {
	var captured services.TransitionCommand
	svc := &stubOrderStatusService{
		transitionFn: func(_ context.Context, cmd services.TransitionCommand) (services.OrderTransition, error) {
			captured = cmd
			return services.OrderTransition{
				OrderID:     cmd.OrderID,
				OrderNumber: "AJ-2025-000042",
				Previous:    domain.OrderStatusProcessing,
				Current:     domain.OrderStatusShipped,
			}, nil
		},
	}

	payload := bytes.NewBufferString(`{"status":"Shipped"}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/orders/ord_1/status", payload)
	rr := httptest.NewRecorder()
	newOrderRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderID != "ord_1" || captured.Status != domain.OrderStatusShipped {
		t.Fatalf("unexpected command %#v", captured)
	}

	var body transitionOrderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.PreviousStatus != "processing" || body.Status != "shipped" || !body.Changed {
		t.Fatalf("unexpected response %#v", body)
	}
}

func TestTransitionOrderNoOp(t *testing.T) {
	svc := &stubOrderStatusService{
		transitionFn: func(_ context.Context, cmd services.TransitionCommand) (services.OrderTransition, error) {
			return services.OrderTransition{
				OrderID:  cmd.OrderID,
				Previous: domain.OrderStatusShipped,
				Current:  domain.OrderStatusShipped,
				NoOp:     true,
			}, nil
		},
	}

	payload := bytes.NewBufferString(`{"status":"shipped"}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/orders/ord_1/status", payload)
	rr := httptest.NewRecorder()
	newOrderRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var body transitionOrderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Changed {
		t.Fatalf("expected changed=false for no-op")
	}
}

func TestTransitionOrderInvalidStatus(t *testing.T) {
	svc := &stubOrderStatusService{
		transitionFn: func(context.Context, services.TransitionCommand) (services.OrderTransition, error) {
			return services.OrderTransition{}, services.ErrOrderInvalidInput
		},
	}

	payload := bytes.NewBufferString(`{"status":"refunded"}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/orders/ord_1/status", payload)
	rr := httptest.NewRecorder()
	newOrderRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestTransitionOrderEmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/admin/orders/ord_1/status", nil)
	rr := httptest.NewRecorder()
	newOrderRouter(&stubOrderStatusService{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}
