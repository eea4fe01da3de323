package repositories

import (
	"context"
	"time"

	domain "github.com/aurelle-jewelry/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists orders. Orders are append-only apart from status changes.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, updatedAt time.Time) error
}

// ProductRepository reads catalog products and applies relative stock adjustments.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	AdjustStock(ctx context.Context, adjustments []domain.StockAdjustment, now time.Time) error
}

// CouponRepository persists coupons keyed by their normalized code.
type CouponRepository interface {
	FindByCode(ctx context.Context, code string) (domain.Coupon, error)
	Upsert(ctx context.Context, coupon domain.Coupon) error
	Delete(ctx context.Context, code string) error
	List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Coupon], error)
	AppendUsedBy(ctx context.Context, code string, email string, now time.Time) error
}

// CategoryRepository reads the flat category set in admin-defined position order.
type CategoryRepository interface {
	List(ctx context.Context) ([]domain.Category, error)
}

// CounterRepository issues monotonically increasing sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string) (int64, error)
}
