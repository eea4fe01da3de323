package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/aurelle-jewelry/api/internal/domain"
)

type stubCounterRepo struct {
	next int64
}

func (s *stubCounterRepo) Next(context.Context, string) (int64, error) {
	s.next++
	return s.next, nil
}

func checkoutProducts() *memProductRepo {
	return &memProductRepo{products: map[string]domain.Product{
		"prod-ring":  {ID: "prod-ring", Name: "Halo Ring", UnitPrice: 30000, StockLevel: 5},
		"prod-chain": {ID: "prod-chain", Name: "Curb Chain", UnitPrice: 40000, StockLevel: 7},
	}}
}

func checkoutCommand(coupon string) PlaceOrderCommand {
	return PlaceOrderCommand{
		CustomerName:  "Mika Tan",
		CustomerEmail: "Mika@Example.com",
		ShippingAddress: domain.Address{
			Line1:      "1 Harbour View",
			City:       "Wellington",
			PostalCode: "6011",
			Country:    "NZ",
		},
		Items: []PlaceOrderItem{
			{ProductID: "prod-ring", Quantity: 2},
			{ProductID: "prod-chain", Quantity: 1},
		},
		CouponCode: coupon,
	}
}

func newCheckoutService(t *testing.T, deps CheckoutServiceDeps) CheckoutService {
	t.Helper()
	if deps.Clock == nil {
		deps.Clock = fixedClock(time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC))
	}
	if deps.UnitOfWork == nil {
		deps.UnitOfWork = &stubUnitOfWork{}
	}
	if deps.Counters == nil {
		deps.Counters = &stubCounterRepo{next: 41}
	}
	if deps.Pricing == (CheckoutPricing{}) {
		deps.Pricing = CheckoutPricing{ShippingFlatRate: 900, FreeShippingOver: 150000}
	}
	svc, err := NewCheckoutService(deps)
	if err != nil {
		t.Fatalf("new checkout service: %v", err)
	}
	return svc
}

func TestPlaceOrderComputesTotalsServerSide(t *testing.T) {
	var inserted domain.Order
	orders := &stubOrderRepo{
		insertFn: func(_ context.Context, order domain.Order) error {
			inserted = order
			return nil
		},
	}
	products := checkoutProducts()
	couponRepo := &stubCouponRepo{
		findFn: func(context.Context, string) (domain.Coupon, error) {
			return domain.Coupon{
				Code:         "SAVE10",
				DiscountType: domain.DiscountTypePercentage,
				Value:        10,
				IsActive:     true,
			}, nil
		},
	}
	notifications := &captureNotifications{}

	svc := newCheckoutService(t, CheckoutServiceDeps{
		Orders:        orders,
		Products:      products,
		Coupons:       newCouponService(t, couponRepo),
		Notifications: notifications,
	})

	order, err := svc.PlaceOrder(context.Background(), checkoutCommand("save10"))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	if order.Subtotal != 100000 {
		t.Fatalf("expected subtotal 100000, got %d", order.Subtotal)
	}
	if order.Discount != 10000 {
		t.Fatalf("expected discount 10000, got %d", order.Discount)
	}
	if order.Shipping != 900 {
		t.Fatalf("expected shipping 900, got %d", order.Shipping)
	}
	if order.Total != 90900 {
		t.Fatalf("expected total 90900, got %d", order.Total)
	}
	if order.OrderNumber != "AJ-2025-000042" {
		t.Fatalf("unexpected order number %q", order.OrderNumber)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending status, got %s", order.Status)
	}
	if order.CustomerEmail != "mika@example.com" {
		t.Fatalf("expected normalized email, got %q", order.CustomerEmail)
	}
	if order.CouponCode != "SAVE10" {
		t.Fatalf("expected normalized coupon code, got %q", order.CouponCode)
	}
	if inserted.ID != order.ID {
		t.Fatalf("inserted order does not match returned order")
	}
	if len(order.Items) != 2 || order.Items[0].UnitPrice != 30000 || order.Items[0].Total != 60000 {
		t.Fatalf("unexpected line items %#v", order.Items)
	}

	if got := products.products["prod-ring"].StockLevel; got != 3 {
		t.Fatalf("expected ring stock 3, got %d", got)
	}
	if got := products.products["prod-chain"].StockLevel; got != 6 {
		t.Fatalf("expected chain stock 6, got %d", got)
	}

	if len(notifications.sent) != 1 {
		t.Fatalf("expected 1 confirmation, got %d", len(notifications.sent))
	}
	if notifications.sent[0].Recipient != "mika@example.com" {
		t.Fatalf("unexpected recipient %q", notifications.sent[0].Recipient)
	}
}

func TestPlaceOrderInvalidCouponAbortsOrder(t *testing.T) {
	var inserts int
	orders := &stubOrderRepo{
		insertFn: func(context.Context, domain.Order) error {
			inserts++
			return nil
		},
	}
	products := checkoutProducts()
	couponRepo := &stubCouponRepo{
		findFn: func(context.Context, string) (domain.Coupon, error) {
			return domain.Coupon{}, &repoError{notFound: true}
		},
	}

	svc := newCheckoutService(t, CheckoutServiceDeps{
		Orders:   orders,
		Products: products,
		Coupons:  newCouponService(t, couponRepo),
	})

	_, err := svc.PlaceOrder(context.Background(), checkoutCommand("NOPE"))
	if !errors.Is(err, ErrCheckoutCouponInvalid) {
		t.Fatalf("expected ErrCheckoutCouponInvalid, got %v", err)
	}
	if inserts != 0 {
		t.Fatalf("expected no order insert, got %d", inserts)
	}
	if products.adjustCalls != 0 {
		t.Fatalf("expected no stock adjustments, got %d", products.adjustCalls)
	}
	if got := products.products["prod-ring"].StockLevel; got != 5 {
		t.Fatalf("ring stock changed to %d", got)
	}
}

func TestPlaceOrderUnknownProduct(t *testing.T) {
	svc := newCheckoutService(t, CheckoutServiceDeps{
		Orders:   &stubOrderRepo{},
		Products: checkoutProducts(),
	})

	cmd := checkoutCommand("")
	cmd.Items = append(cmd.Items, PlaceOrderItem{ProductID: "prod-ghost", Quantity: 1})

	_, err := svc.PlaceOrder(context.Background(), cmd)
	if !errors.Is(err, ErrCheckoutProductNotFound) {
		t.Fatalf("expected ErrCheckoutProductNotFound, got %v", err)
	}
}

func TestPlaceOrderFreeShippingThreshold(t *testing.T) {
	products := checkoutProducts()
	svc := newCheckoutService(t, CheckoutServiceDeps{
		Orders:   &stubOrderRepo{},
		Products: products,
	})

	cmd := checkoutCommand("")
	cmd.Items = []PlaceOrderItem{{ProductID: "prod-ring", Quantity: 5}}

	order, err := svc.PlaceOrder(context.Background(), cmd)
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if order.Subtotal != 150000 {
		t.Fatalf("expected subtotal 150000, got %d", order.Subtotal)
	}
	if order.Shipping != 0 {
		t.Fatalf("expected free shipping at threshold, got %d", order.Shipping)
	}
	if order.Total != 150000 {
		t.Fatalf("expected total 150000, got %d", order.Total)
	}
}

func TestPlaceOrderValidatesInput(t *testing.T) {
	svc := newCheckoutService(t, CheckoutServiceDeps{
		Orders:   &stubOrderRepo{},
		Products: checkoutProducts(),
	})

	cases := []func(*PlaceOrderCommand){
		func(cmd *PlaceOrderCommand) { cmd.CustomerName = " " },
		func(cmd *PlaceOrderCommand) { cmd.CustomerEmail = "" },
		func(cmd *PlaceOrderCommand) { cmd.ShippingAddress.Line1 = "" },
		func(cmd *PlaceOrderCommand) { cmd.Items = nil },
		func(cmd *PlaceOrderCommand) { cmd.Items[0].ProductID = "" },
		func(cmd *PlaceOrderCommand) { cmd.Items[0].Quantity = 0 },
	}
	for i, mutate := range cases {
		cmd := checkoutCommand("")
		mutate(&cmd)
		if _, err := svc.PlaceOrder(context.Background(), cmd); !errors.Is(err, ErrCheckoutInvalidInput) {
			t.Fatalf("case %d: expected ErrCheckoutInvalidInput, got %v", i, err)
		}
	}
}

// Checkout followed by cancellation must restore stock to its pre-order
// levels exactly once.
func TestCheckoutThenCancelRestoresStock(t *testing.T) {
	ctx := context.Background()
	products := checkoutProducts()

	var placed domain.Order
	orders := &stubOrderRepo{
		insertFn: func(_ context.Context, order domain.Order) error {
			placed = order
			return nil
		},
		findFn: func(_ context.Context, orderID string) (domain.Order, error) {
			if orderID != placed.ID {
				return domain.Order{}, &repoError{notFound: true}
			}
			return placed, nil
		},
		updateStatusFn: func(_ context.Context, _ string, status domain.OrderStatus, _ time.Time) error {
			placed.Status = status
			return nil
		},
	}

	checkout := newCheckoutService(t, CheckoutServiceDeps{
		Orders:   orders,
		Products: products,
	})
	statuses := newStatusService(t, orders, products, &captureNotifications{})

	order, err := checkout.PlaceOrder(ctx, checkoutCommand(""))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if got := products.products["prod-ring"].StockLevel; got != 3 {
		t.Fatalf("expected ring stock 3 after checkout, got %d", got)
	}

	result, err := statuses.Transition(ctx, TransitionCommand{OrderID: order.ID, Status: domain.OrderStatusCancelled})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if result.Current != domain.OrderStatusCancelled {
		t.Fatalf("unexpected transition result %#v", result)
	}
	if got := products.products["prod-ring"].StockLevel; got != 5 {
		t.Fatalf("expected ring stock restored to 5, got %d", got)
	}
	if got := products.products["prod-chain"].StockLevel; got != 7 {
		t.Fatalf("expected chain stock restored to 7, got %d", got)
	}

	// Repeating the cancel is a no-op and must not double-return stock.
	again, err := statuses.Transition(ctx, TransitionCommand{OrderID: order.ID, Status: domain.OrderStatusCancelled})
	if err != nil {
		t.Fatalf("repeat cancel: %v", err)
	}
	if !again.NoOp {
		t.Fatalf("expected repeat cancel to be a no-op")
	}
	if got := products.products["prod-ring"].StockLevel; got != 5 {
		t.Fatalf("ring stock drifted to %d", got)
	}
}
