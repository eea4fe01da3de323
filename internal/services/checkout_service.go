package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/aurelle-jewelry/api/internal/domain"
	"github.com/aurelle-jewelry/api/internal/repositories"
)

const (
	orderIDPrefix      = "ord_"
	orderNumberCounter = "orders"
)

var (
	// ErrCheckoutInvalidInput signals the caller provided invalid checkout data.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutProductNotFound indicates a referenced product does not exist.
	ErrCheckoutProductNotFound = errors.New("checkout: product not found")
	// ErrCheckoutCouponInvalid indicates the supplied coupon no longer validates
	// against the server-computed subtotal.
	ErrCheckoutCouponInvalid = errors.New("checkout: coupon is no longer valid")
)

// CheckoutPricing holds the storefront pricing knobs applied at order creation.
type CheckoutPricing struct {
	ShippingFlatRate int64
	FreeShippingOver int64
}

// CheckoutServiceDeps bundles collaborators required to construct the checkout service.
type CheckoutServiceDeps struct {
	Orders        repositories.OrderRepository
	Products      repositories.ProductRepository
	Counters      repositories.CounterRepository
	Coupons       CouponService
	UnitOfWork    repositories.UnitOfWork
	Notifications NotificationSender
	Pricing       CheckoutPricing
	Clock         func() time.Time
	IDGenerator   func() string
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	orders        repositories.OrderRepository
	products      repositories.ProductRepository
	counters      repositories.CounterRepository
	coupons       CouponService
	unitOfWork    repositories.UnitOfWork
	notifications NotificationSender
	pricing       CheckoutPricing
	clock         func() time.Time
	newID         func() string
	logger        func(context.Context, string, map[string]any)
}

// NewCheckoutService wires dependencies into a concrete CheckoutService implementation.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Orders == nil {
		return nil, errors.New("checkout service: order repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("checkout service: product repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("checkout service: counter repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &checkoutService{
		orders:        deps.Orders,
		products:      deps.Products,
		counters:      deps.Counters,
		coupons:       deps.Coupons,
		unitOfWork:    unit,
		notifications: deps.Notifications,
		pricing:       deps.Pricing,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// PlaceOrder creates an order with server-computed totals. Product resolution,
// coupon redemption, the order insert, and the stock decrements all commit as
// one transaction; any client-asserted discount is ignored.
func (s *checkoutService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (domain.Order, error) {
	if err := validatePlaceOrder(cmd); err != nil {
		return domain.Order{}, err
	}

	now := s.clock()
	email := strings.ToLower(strings.TrimSpace(cmd.CustomerEmail))
	couponCode := strings.ToUpper(strings.TrimSpace(cmd.CouponCode))

	// Order numbers are drawn from a dedicated counter transaction ahead of
	// the main unit of work; an abandoned checkout leaves a gap, never a
	// duplicate.
	seq, err := s.counters.Next(ctx, orderNumberCounter)
	if err != nil {
		return domain.Order{}, fmt.Errorf("checkout: allocate order number: %w", err)
	}
	orderNumber := fmt.Sprintf("AJ-%04d-%06d", now.Year(), seq)

	order := domain.Order{
		ID:              orderIDPrefix + s.newID(),
		OrderNumber:     orderNumber,
		CustomerName:    strings.TrimSpace(cmd.CustomerName),
		CustomerEmail:   email,
		ShippingAddress: cmd.ShippingAddress,
		CouponCode:      couponCode,
		Status:          domain.OrderStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		items, subtotal, err := s.resolveLineItems(txCtx, cmd.Items)
		if err != nil {
			return err
		}
		order.Items = items
		order.Subtotal = subtotal

		if couponCode != "" {
			if s.coupons == nil {
				return fmt.Errorf("%w: coupon support is disabled", ErrCheckoutCouponInvalid)
			}
			validation, err := s.coupons.Redeem(txCtx, CouponRedeemCommand{
				Code:     couponCode,
				Email:    email,
				Subtotal: subtotal,
			})
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCheckoutCouponInvalid, err)
			}
			order.Discount = validation.Discount
		}

		order.Shipping = s.shippingFor(order.Subtotal - order.Discount)
		order.Total = order.Subtotal - order.Discount + order.Shipping

		if err := s.orders.Insert(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}

		adjustments := make([]domain.StockAdjustment, 0, len(order.Items))
		for _, item := range order.Items {
			adjustments = append(adjustments, domain.StockAdjustment{
				ProductID: item.ProductID,
				Delta:     -item.Quantity,
			})
		}
		return s.mapRepositoryError(s.products.AdjustStock(txCtx, adjustments, now))
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.logger(ctx, "order.created", map[string]any{
		"order":    order.ID,
		"number":   order.OrderNumber,
		"subtotal": order.Subtotal,
		"discount": order.Discount,
		"total":    order.Total,
	})

	s.notifyConfirmation(ctx, order, now)
	return order, nil
}

func (s *checkoutService) resolveLineItems(ctx context.Context, items []PlaceOrderItem) ([]domain.OrderLineItem, int64, error) {
	resolved := make([]domain.OrderLineItem, 0, len(items))
	var subtotal int64

	for _, item := range items {
		product, err := s.products.FindByID(ctx, strings.TrimSpace(item.ProductID))
		if err != nil {
			var repoErr repositories.RepositoryError
			if errors.As(err, &repoErr) && repoErr.IsNotFound() {
				return nil, 0, fmt.Errorf("%w: %s", ErrCheckoutProductNotFound, item.ProductID)
			}
			return nil, 0, s.mapRepositoryError(err)
		}

		lineTotal := product.UnitPrice * int64(item.Quantity)
		resolved = append(resolved, domain.OrderLineItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   product.UnitPrice,
			Total:       lineTotal,
		})
		subtotal += lineTotal
	}
	return resolved, subtotal, nil
}

func (s *checkoutService) shippingFor(discountedSubtotal int64) int64 {
	if s.pricing.FreeShippingOver > 0 && discountedSubtotal >= s.pricing.FreeShippingOver {
		return 0
	}
	return s.pricing.ShippingFlatRate
}

func (s *checkoutService) notifyConfirmation(ctx context.Context, order domain.Order, now time.Time) {
	if s.notifications == nil {
		return
	}
	if _, err := s.notifications.SendOrderNotification(ctx, OrderNotification{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Recipient:   order.CustomerEmail,
		Status:      string(order.Status),
		Subject:     fmt.Sprintf("Order %s confirmed", order.OrderNumber),
		Body:        fmt.Sprintf("Thank you %s, we have received order %s.", order.CustomerName, order.OrderNumber),
		QueuedAt:    now,
	}); err != nil {
		s.logger(ctx, "order.notification.failed", map[string]any{
			"order": order.ID,
			"error": err.Error(),
		})
	}
}

func validatePlaceOrder(cmd PlaceOrderCommand) error {
	if strings.TrimSpace(cmd.CustomerName) == "" {
		return fmt.Errorf("%w: customer name is required", ErrCheckoutInvalidInput)
	}
	if strings.TrimSpace(cmd.CustomerEmail) == "" {
		return fmt.Errorf("%w: customer email is required", ErrCheckoutInvalidInput)
	}
	if strings.TrimSpace(cmd.ShippingAddress.Line1) == "" {
		return fmt.Errorf("%w: shipping address is required", ErrCheckoutInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrCheckoutInvalidInput)
	}
	for _, item := range cmd.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return fmt.Errorf("%w: item product id is required", ErrCheckoutInvalidInput)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item quantity must be positive", ErrCheckoutInvalidInput)
		}
	}
	return nil
}

func (s *checkoutService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCheckoutProductNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("checkout: conflicting write: %w", err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("checkout: repository unavailable: %w", err)
		}
	}

	return err
}
