package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/aurelle-jewelry/api/internal/domain"
	pfirestore "github.com/aurelle-jewelry/api/internal/platform/firestore"
)

const productsCollection = "products"

type productDocument struct {
	Name       string    `firestore:"name"`
	UnitPrice  int64     `firestore:"unitPrice"`
	StockLevel int       `firestore:"stockLevel"`
	UpdatedAt  time.Time `firestore:"updatedAt"`
}

// ProductRepository implements repositories.ProductRepository backed by Firestore.
type ProductRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.BaseRepository[productDocument]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil)
	return &ProductRepository{provider: provider, products: base}, nil
}

// FindByID loads a product, reading through the active transaction when present.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.provider == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return domain.Product{}, errors.New("product find: product id is required")
	}

	ref, err := r.products.DocumentRef(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	if tx, ok := pfirestore.TransactionFrom(ctx); ok {
		snap, err := tx.Get(ref)
		if err != nil {
			return domain.Product{}, pfirestore.WrapError("products.find", err)
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.Product{}, fmt.Errorf("decode product %s: %w", id, err)
		}
		return doc.toDomain(id), nil
	}

	found, err := r.products.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return found.Data.toDomain(found.ID), nil
}

// AdjustStock applies relative stock deltas using Firestore increments so that
// concurrent adjustments to the same product compose without read-modify-write
// races. Joins an active transaction when present.
func (r *ProductRepository) AdjustStock(ctx context.Context, adjustments []domain.StockAdjustment, now time.Time) error {
	if r == nil || r.provider == nil {
		return errors.New("product repository not initialised")
	}
	if len(adjustments) == 0 {
		return nil
	}

	tx, inTx := pfirestore.TransactionFrom(ctx)
	updatedAt := now.UTC()

	for _, adj := range adjustments {
		id := strings.TrimSpace(adj.ProductID)
		if id == "" {
			return errors.New("stock adjust: product id is required")
		}
		if adj.Delta == 0 {
			continue
		}

		ref, err := r.products.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		updates := []firestore.Update{
			{Path: "stockLevel", Value: firestore.Increment(adj.Delta)},
			{Path: "updatedAt", Value: updatedAt},
		}

		if inTx {
			if err := tx.Update(ref, updates); err != nil {
				return pfirestore.WrapError("products.adjustStock", err)
			}
			continue
		}
		if _, err := ref.Update(ctx, updates); err != nil {
			return pfirestore.WrapError("products.adjustStock", err)
		}
	}
	return nil
}

func (d productDocument) toDomain(id string) domain.Product {
	return domain.Product{
		ID:         id,
		Name:       d.Name,
		UnitPrice:  d.UnitPrice,
		StockLevel: d.StockLevel,
		UpdatedAt:  d.UpdatedAt,
	}
}
