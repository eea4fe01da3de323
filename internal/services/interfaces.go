package services

import (
	"context"
	"time"

	domain "github.com/aurelle-jewelry/api/internal/domain"
)

// OrderStatusService owns the order lifecycle and the compensating stock
// adjustments around the cancellation boundary.
type OrderStatusService interface {
	Transition(ctx context.Context, cmd TransitionCommand) (OrderTransition, error)
	Track(ctx context.Context, orderNumber string, email string) (domain.Order, error)
}

// TransitionCommand requests a status change for an order.
type TransitionCommand struct {
	OrderID string
	Status  domain.OrderStatus
	ActorID string
}

// OrderTransition reports the outcome of a status change request.
type OrderTransition struct {
	OrderID     string
	OrderNumber string
	Previous    domain.OrderStatus
	Current     domain.OrderStatus
	NoOp        bool
}

// CouponService validates, redeems, and administers discount coupons.
type CouponService interface {
	Validate(ctx context.Context, cmd CouponValidateCommand) (CouponValidation, error)
	Redeem(ctx context.Context, cmd CouponRedeemCommand) (CouponValidation, error)
	UpsertCoupon(ctx context.Context, cmd UpsertCouponCommand) (domain.Coupon, error)
	DeleteCoupon(ctx context.Context, code string) error
	ListCoupons(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Coupon], error)
}

// CouponValidateCommand carries the inputs of a read-only eligibility check.
type CouponValidateCommand struct {
	Code     string
	Email    string
	Subtotal int64
}

// CouponRedeemCommand consumes a coupon for a customer as part of order creation.
type CouponRedeemCommand struct {
	Code     string
	Email    string
	Subtotal int64
}

// CouponValidation reports the discount parameters of an eligible coupon.
// Discount is the server-computed amount, clamped to the subtotal.
type CouponValidation struct {
	Code         string
	DiscountType domain.DiscountType
	Value        int64
	Discount     int64
	Message      string
}

// UpsertCouponCommand creates or replaces a coupon definition.
type UpsertCouponCommand struct {
	Code         string
	DiscountType domain.DiscountType
	Value        int64
	MinSpend     int64
	ExpiresAt    *time.Time
	IsActive     bool
}

// CheckoutService creates orders with server-authoritative totals.
type CheckoutService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (domain.Order, error)
}

// PlaceOrderCommand carries checkout input. Line prices are never taken from
// the client; only product references and quantities are.
type PlaceOrderCommand struct {
	CustomerName    string
	CustomerEmail   string
	ShippingAddress domain.Address
	Items           []PlaceOrderItem
	CouponCode      string
}

// PlaceOrderItem references a product and the ordered quantity.
type PlaceOrderItem struct {
	ProductID string
	Quantity  int
}

// CategoryService flattens the category hierarchy for admin screens.
type CategoryService interface {
	Tree(ctx context.Context) ([]domain.FlattenedCategory, error)
}

// NotificationSender delivers customer-facing order messages. Implementations
// publish to a queue; delivery is asynchronous and best-effort.
type NotificationSender interface {
	SendOrderNotification(ctx context.Context, notification OrderNotification) (string, error)
}

// OrderNotification describes a customer message queued for delivery.
type OrderNotification struct {
	OrderID     string    `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	Recipient   string    `json:"recipient"`
	Status      string    `json:"status,omitempty"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	QueuedAt    time.Time `json:"queuedAt"`
}
