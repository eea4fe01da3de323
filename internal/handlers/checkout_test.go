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

type stubCheckoutService struct {
	placeFn func(context.Context, services.PlaceOrderCommand) (domain.Order, error)
}

func (s *stubCheckoutService) PlaceOrder(ctx context.Context, cmd services.PlaceOrderCommand) (domain.Order, error) {
	if s.placeFn != nil {
		return s.placeFn(ctx, cmd)
	}
	return domain.Order{}, errors.New("not implemented")
}

func newCheckoutRouter(svc services.CheckoutService) chi.Router {
	h := NewCheckoutHandlers(svc)
	r := chi.NewRouter()
	r.Route("/checkout", h.Routes)
	return r
}

const placeOrderBody = `{
	"customer_name": "Mika Tan",
	"customer_email": "mika@example.com",
	"shipping_address": {
		"line1": "1 Harbour View",
		"city": "Wellington",
		"postal_code": "6011",
		"country": "nz"
	},
	"items": [
		{"product_id": "prod-ring", "quantity": 2}
	],
	"coupon_code": "save10"
}`

func TestPlaceOrderHandlerSuccess(t *testing.T) {
	var captured services.PlaceOrderCommand
	svc := &stubCheckoutService{
		placeFn: func(_ context.Context, cmd services.PlaceOrderCommand) (domain.Order, error) {
			captured = cmd
			return domain.Order{
				ID:            "ord_1",
				OrderNumber:   "AJ-2025-000042",
				CustomerName:  cmd.CustomerName,
				CustomerEmail: "mika@example.com",
				Items: []domain.OrderLineItem{
					{ProductID: "prod-ring", ProductName: "Halo Ring", Quantity: 2, UnitPrice: 30000, Total: 60000},
				},
				Subtotal:   60000,
				Discount:   6000,
				CouponCode: "SAVE10",
				Shipping:   900,
				Total:      54900,
				Status:     domain.OrderStatusPending,
				CreatedAt:  time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC),
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/checkout/", bytes.NewBufferString(placeOrderBody))
	rr := httptest.NewRecorder()
	newCheckoutRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.CouponCode != "save10" || len(captured.Items) != 1 {
		t.Fatalf("unexpected command %#v", captured)
	}
	if captured.ShippingAddress.Country != "NZ" {
		t.Fatalf("expected uppercased country, got %q", captured.ShippingAddress.Country)
	}

	var body orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Order.Total != 54900 || body.Order.Status != "pending" {
		t.Fatalf("unexpected response %#v", body.Order)
	}
	if body.Order.Items[0].UnitPrice != 30000 {
		t.Fatalf("unexpected line item %#v", body.Order.Items[0])
	}
}

func TestPlaceOrderHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid input", services.ErrCheckoutInvalidInput, http.StatusBadRequest, "invalid_request"},
		{"unknown product", services.ErrCheckoutProductNotFound, http.StatusUnprocessableEntity, "product_not_found"},
		{"invalid coupon", services.ErrCheckoutCouponInvalid, http.StatusUnprocessableEntity, "coupon_invalid"},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "checkout_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubCheckoutService{
				placeFn: func(context.Context, services.PlaceOrderCommand) (domain.Order, error) {
					return domain.Order{}, tc.err
				},
			}

			req := httptest.NewRequest(http.MethodPost, "/checkout/", bytes.NewBufferString(placeOrderBody))
			rr := httptest.NewRecorder()
			newCheckoutRouter(svc).ServeHTTP(rr, req)

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rr.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to parse response: %v", err)
			}
			if body["error"] != tc.wantCode {
				t.Fatalf("expected error code %q, got %v", tc.wantCode, body["error"])
			}
		})
	}
}

func TestPlaceOrderHandlerEmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/checkout/", nil)
	rr := httptest.NewRecorder()
	newCheckoutRouter(&stubCheckoutService{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestPlaceOrderHandlerOversizedBody(t *testing.T) {
	huge := bytes.Repeat([]byte("a"), maxCheckoutBodySize+1)
	req := httptest.NewRequest(http.MethodPost, "/checkout/", bytes.NewReader(huge))
	rr := httptest.NewRecorder()
	newCheckoutRouter(&stubCheckoutService{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d", rr.Code)
	}
}
