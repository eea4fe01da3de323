package domain

import (
	"strings"
	"time"
)

// OrderStatus enumerates the lifecycle states an order can be in.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var orderStatuses = map[OrderStatus]struct{}{
	OrderStatusPending:    {},
	OrderStatusProcessing: {},
	OrderStatusShipped:    {},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// ParseOrderStatus normalises and validates a raw status string.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := orderStatuses[status]
	return status, ok
}

// OrderStatuses returns the closed set of valid statuses.
func OrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPending,
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCancelled,
	}
}

// Order is the persisted record of a completed checkout. The status field is
// the only attribute mutated after creation; orders are never deleted.
type Order struct {
	ID              string
	OrderNumber     string
	CustomerName    string
	CustomerEmail   string
	ShippingAddress Address
	Items           []OrderLineItem
	Subtotal        int64
	Discount        int64
	CouponCode      string
	Shipping        int64
	Total           int64
	Status          OrderStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderLineItem is one entry in an order's item list, capturing a price and
// name snapshot at time of purchase.
type OrderLineItem struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   int64
	Total       int64
}

// Address is the shipping destination captured at checkout.
type Address struct {
	Line1      string
	Line2      string
	City       string
	Region     string
	PostalCode string
	Country    string
}

// DiscountType distinguishes percentage coupons from fixed-amount coupons.
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

// ParseDiscountType normalises and validates a raw discount type string.
func ParseDiscountType(raw string) (DiscountType, bool) {
	dt := DiscountType(strings.ToLower(strings.TrimSpace(raw)))
	switch dt {
	case DiscountTypePercentage, DiscountTypeFixed:
		return dt, true
	}
	return "", false
}

// Coupon is an administrator-managed discount code. UsedBy records each
// customer email that has redeemed the code; an email appears at most once.
type Coupon struct {
	ID           string
	Code         string
	DiscountType DiscountType
	Value        int64
	MinSpend     int64
	ExpiresAt    *time.Time
	IsActive     bool
	UsedBy       []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Product carries the stock-relevant slice of a catalog product. StockLevel is
// an authoritative counter mutated only through relative adjustments.
type Product struct {
	ID         string
	Name       string
	UnitPrice  int64
	StockLevel int
	UpdatedAt  time.Time
}

// StockAdjustment is a relative delta applied to a product's stock counter.
type StockAdjustment struct {
	ProductID string
	Delta     int
}

// Category is one node of the storefront's category hierarchy. ParentID is nil
// for roots; a non-nil ParentID that resolves to no category marks an orphan.
type Category struct {
	ID       string
	Name     string
	Slug     string
	ParentID *string
	Position int
}

// FlattenedCategory is a category annotated with its depth in the flattened
// pre-order listing used by admin screens.
type FlattenedCategory struct {
	Category
	Level    int
	Orphaned bool
}

// Pagination carries cursor paging parameters for list queries.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage is a generic page of results with an opaque continuation token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}
