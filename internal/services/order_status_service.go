package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/aurelle-jewelry/api/internal/domain"
	"github.com/aurelle-jewelry/api/internal/repositories"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderConflict indicates a concurrent update collided with this one.
	ErrOrderConflict = errors.New("order: conflict")
)

// stockEffect captures what a status transition does to the stock counters of
// the order's line items.
type stockEffect int

const (
	stockUntouched stockEffect = iota
	stockReturned              // quantities go back to the pool
	stockReserved              // quantities are taken from the pool again
)

// transitionStockEffect is the complete stock rule for the status lifecycle:
// only crossing the cancellation boundary moves inventory. Every other pair,
// including a repeated status, leaves stock untouched.
func transitionStockEffect(previous, next domain.OrderStatus) stockEffect {
	switch {
	case previous == next:
		return stockUntouched
	case next == domain.OrderStatusCancelled:
		return stockReturned
	case previous == domain.OrderStatusCancelled:
		return stockReserved
	default:
		return stockUntouched
	}
}

// OrderStatusServiceDeps bundles collaborators required to construct the order status service.
type OrderStatusServiceDeps struct {
	Orders        repositories.OrderRepository
	Products      repositories.ProductRepository
	UnitOfWork    repositories.UnitOfWork
	Notifications NotificationSender
	Clock         func() time.Time
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type orderStatusService struct {
	orders        repositories.OrderRepository
	products      repositories.ProductRepository
	unitOfWork    repositories.UnitOfWork
	notifications NotificationSender
	clock         func() time.Time
	logger        func(context.Context, string, map[string]any)
}

// NewOrderStatusService wires dependencies into a concrete OrderStatusService implementation.
func NewOrderStatusService(deps OrderStatusServiceDeps) (OrderStatusService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order status service: order repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order status service: product repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderStatusService{
		orders:        deps.Orders,
		products:      deps.Products,
		unitOfWork:    unit,
		notifications: deps.Notifications,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *orderStatusService) Transition(ctx context.Context, cmd TransitionCommand) (OrderTransition, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return OrderTransition{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target, ok := domain.ParseOrderStatus(string(cmd.Status))
	if !ok {
		return OrderTransition{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.Status)
	}

	now := s.clock()
	var (
		result    OrderTransition
		recipient string
	)

	// The current status is read inside the transaction so that concurrent
	// transitions on the same order serialize and cannot double-apply a
	// cancellation-boundary stock delta.
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}

		result = OrderTransition{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Previous:    order.Status,
			Current:     target,
		}
		recipient = order.CustomerEmail

		if order.Status == target {
			result.NoOp = true
			return nil
		}

		if err := s.orders.UpdateStatus(txCtx, order.ID, target, now); err != nil {
			return s.mapRepositoryError(err)
		}

		adjustments := stockAdjustmentsFor(order.Items, transitionStockEffect(order.Status, target))
		if len(adjustments) > 0 {
			if err := s.products.AdjustStock(txCtx, adjustments, now); err != nil {
				return s.mapRepositoryError(err)
			}
		}
		return nil
	})
	if err != nil {
		return OrderTransition{}, err
	}

	if result.NoOp {
		s.logger(ctx, "order.status.noop", map[string]any{
			"order":  result.OrderID,
			"status": string(result.Current),
		})
		return result, nil
	}

	s.logger(ctx, "order.status.changed", map[string]any{
		"order":    result.OrderID,
		"previous": string(result.Previous),
		"current":  string(result.Current),
		"actor":    strings.TrimSpace(cmd.ActorID),
	})

	s.notify(ctx, result, recipient, now)
	return result, nil
}

func (s *orderStatusService) Track(ctx context.Context, orderNumber string, email string) (domain.Order, error) {
	number := strings.TrimSpace(orderNumber)
	if number == "" {
		return domain.Order{}, fmt.Errorf("%w: order number is required", ErrOrderInvalidInput)
	}
	addr := strings.TrimSpace(email)
	if addr == "" {
		return domain.Order{}, fmt.Errorf("%w: email is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByNumber(ctx, number)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	// Email is the ownership key; a mismatch is indistinguishable from a
	// missing order so tracking cannot be used to enumerate order numbers.
	if !strings.EqualFold(strings.TrimSpace(order.CustomerEmail), addr) {
		return domain.Order{}, fmt.Errorf("%w: order %s", ErrOrderNotFound, number)
	}
	return order, nil
}

func (s *orderStatusService) notify(ctx context.Context, transition OrderTransition, recipient string, now time.Time) {
	if s.notifications == nil {
		return
	}

	subject, body := statusNotificationCopy(transition.Current, transition.OrderNumber)
	if _, err := s.notifications.SendOrderNotification(ctx, OrderNotification{
		OrderID:     transition.OrderID,
		OrderNumber: transition.OrderNumber,
		Recipient:   recipient,
		Status:      string(transition.Current),
		Subject:     subject,
		Body:        body,
		QueuedAt:    now,
	}); err != nil {
		s.logger(ctx, "order.notification.failed", map[string]any{
			"order":  transition.OrderID,
			"status": string(transition.Current),
			"error":  err.Error(),
		})
	}
}

// statusNotificationCopy returns the customer-facing subject and body for a
// status change. Shipped, delivered, and cancelled get bespoke copy; everything
// else a generic update.
func statusNotificationCopy(status domain.OrderStatus, orderNumber string) (string, string) {
	switch status {
	case domain.OrderStatusShipped:
		return fmt.Sprintf("Your order %s has shipped", orderNumber),
			fmt.Sprintf("Good news: order %s is on its way to you.", orderNumber)
	case domain.OrderStatusDelivered:
		return fmt.Sprintf("Your order %s has been delivered", orderNumber),
			fmt.Sprintf("Order %s has been delivered. We hope you love it.", orderNumber)
	case domain.OrderStatusCancelled:
		return fmt.Sprintf("Your order %s has been cancelled", orderNumber),
			fmt.Sprintf("Order %s has been cancelled. Any reserved items have been returned to stock.", orderNumber)
	default:
		return fmt.Sprintf("Update on your order %s", orderNumber),
			fmt.Sprintf("The status of order %s is now %s.", orderNumber, status)
	}
}

func stockAdjustmentsFor(items []domain.OrderLineItem, effect stockEffect) []domain.StockAdjustment {
	if effect == stockUntouched {
		return nil
	}

	adjustments := make([]domain.StockAdjustment, 0, len(items))
	for _, item := range items {
		if item.Quantity == 0 {
			continue
		}
		delta := item.Quantity
		if effect == stockReserved {
			delta = -delta
		}
		adjustments = append(adjustments, domain.StockAdjustment{
			ProductID: item.ProductID,
			Delta:     delta,
		})
	}
	return adjustments
}

func (s *orderStatusService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
