package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/aurelle-jewelry/api/internal/domain"
	pfirestore "github.com/aurelle-jewelry/api/internal/platform/firestore"
)

const ordersCollection = "orders"

type orderItemDocument struct {
	ProductID   string `firestore:"productId"`
	ProductName string `firestore:"productName"`
	Quantity    int    `firestore:"quantity"`
	UnitPrice   int64  `firestore:"unitPrice"`
	Total       int64  `firestore:"total"`
}

type orderAddressDocument struct {
	Line1      string `firestore:"line1"`
	Line2      string `firestore:"line2,omitempty"`
	City       string `firestore:"city"`
	Region     string `firestore:"region,omitempty"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
}

type orderDocument struct {
	OrderNumber     string               `firestore:"orderNumber"`
	CustomerName    string               `firestore:"customerName"`
	CustomerEmail   string               `firestore:"customerEmail"`
	ShippingAddress orderAddressDocument `firestore:"shippingAddress"`
	Items           []orderItemDocument  `firestore:"items"`
	Subtotal        int64                `firestore:"subtotal"`
	Discount        int64                `firestore:"discount"`
	CouponCode      string               `firestore:"couponCode,omitempty"`
	Shipping        int64                `firestore:"shipping"`
	Total           int64                `firestore:"total"`
	Status          string               `firestore:"status"`
	CreatedAt       time.Time            `firestore:"createdAt"`
	UpdatedAt       time.Time            `firestore:"updatedAt"`
}

// OrderRepository implements repositories.OrderRepository backed by Firestore.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil)
	return &OrderRepository{provider: provider, orders: base}, nil
}

// Insert persists a new order. It joins an active transaction when present.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order insert: order id is required")
	}

	ref, err := r.orders.DocumentRef(ctx, order.ID)
	if err != nil {
		return err
	}
	doc := newOrderDocument(order)

	if tx, ok := pfirestore.TransactionFrom(ctx); ok {
		return pfirestore.WrapError("orders.insert", tx.Create(ref, doc))
	}
	if _, err := ref.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// FindByID loads an order by its internal id, reading through the active transaction when present.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order find: order id is required")
	}

	ref, err := r.orders.DocumentRef(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}

	if tx, ok := pfirestore.TransactionFrom(ctx); ok {
		snap, err := tx.Get(ref)
		if err != nil {
			return domain.Order{}, pfirestore.WrapError("orders.find", err)
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.Order{}, fmt.Errorf("decode order %s: %w", id, err)
		}
		return doc.toDomain(id), nil
	}

	found, err := r.orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return found.Data.toDomain(found.ID), nil
}

// FindByNumber resolves an order through its human-readable order number.
func (r *OrderRepository) FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	number := strings.TrimSpace(orderNumber)
	if number == "" {
		return domain.Order{}, errors.New("order find: order number is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Order{}, err
	}

	iter := client.Collection(ordersCollection).
		Where("orderNumber", "==", number).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return domain.Order{}, pfirestore.NotFoundError("orders.findByNumber", fmt.Errorf("order %s not found", number))
	}
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.findByNumber", err)
	}

	var doc orderDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Order{}, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

// UpdateStatus writes the status field only. Joins an active transaction when present.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, updatedAt time.Time) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return errors.New("order update: order id is required")
	}

	ref, err := r.orders.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	updates := []firestore.Update{
		{Path: "status", Value: string(status)},
		{Path: "updatedAt", Value: updatedAt.UTC()},
	}

	if tx, ok := pfirestore.TransactionFrom(ctx); ok {
		return pfirestore.WrapError("orders.updateStatus", tx.Update(ref, updates))
	}
	if _, err := ref.Update(ctx, updates); err != nil {
		return pfirestore.WrapError("orders.updateStatus", err)
	}
	return nil
}

func newOrderDocument(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Total:       item.Total,
		})
	}
	return orderDocument{
		OrderNumber:   order.OrderNumber,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		ShippingAddress: orderAddressDocument{
			Line1:      order.ShippingAddress.Line1,
			Line2:      order.ShippingAddress.Line2,
			City:       order.ShippingAddress.City,
			Region:     order.ShippingAddress.Region,
			PostalCode: order.ShippingAddress.PostalCode,
			Country:    order.ShippingAddress.Country,
		},
		Items:      items,
		Subtotal:   order.Subtotal,
		Discount:   order.Discount,
		CouponCode: order.CouponCode,
		Shipping:   order.Shipping,
		Total:      order.Total,
		Status:     string(order.Status),
		CreatedAt:  order.CreatedAt.UTC(),
		UpdatedAt:  order.UpdatedAt.UTC(),
	}
}

func (d orderDocument) toDomain(id string) domain.Order {
	items := make([]domain.OrderLineItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, domain.OrderLineItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Total:       item.Total,
		})
	}
	return domain.Order{
		ID:            id,
		OrderNumber:   d.OrderNumber,
		CustomerName:  d.CustomerName,
		CustomerEmail: d.CustomerEmail,
		ShippingAddress: domain.Address{
			Line1:      d.ShippingAddress.Line1,
			Line2:      d.ShippingAddress.Line2,
			City:       d.ShippingAddress.City,
			Region:     d.ShippingAddress.Region,
			PostalCode: d.ShippingAddress.PostalCode,
			Country:    d.ShippingAddress.Country,
		},
		Items:      items,
		Subtotal:   d.Subtotal,
		Discount:   d.Discount,
		CouponCode: d.CouponCode,
		Shipping:   d.Shipping,
		Total:      d.Total,
		Status:     domain.OrderStatus(d.Status),
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}
