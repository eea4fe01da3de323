package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/aurelle-jewelry/api/internal/domain"
	pfirestore "github.com/aurelle-jewelry/api/internal/platform/firestore"
)

const categoriesCollection = "categories"

type categoryDocument struct {
	Name      string    `firestore:"name"`
	Slug      string    `firestore:"slug"`
	ParentID  *string   `firestore:"parentId,omitempty"`
	Position  int       `firestore:"position"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// CategoryRepository implements repositories.CategoryRepository backed by Firestore.
type CategoryRepository struct {
	provider   *pfirestore.Provider
	categories *pfirestore.BaseRepository[categoryDocument]
}

// NewCategoryRepository constructs a Firestore-backed category repository.
func NewCategoryRepository(provider *pfirestore.Provider) (*CategoryRepository, error) {
	if provider == nil {
		return nil, errors.New("category repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[categoryDocument](provider, categoriesCollection, nil)
	return &CategoryRepository{provider: provider, categories: base}, nil
}

// List returns every category ordered by the admin-defined position.
func (r *CategoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("category repository not initialised")
	}

	docs, err := r.categories.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.OrderBy("position", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	categories := make([]domain.Category, 0, len(docs))
	for _, doc := range docs {
		category := domain.Category{
			ID:       doc.ID,
			Name:     doc.Data.Name,
			Slug:     doc.Data.Slug,
			Position: doc.Data.Position,
		}
		if doc.Data.ParentID != nil {
			parent := *doc.Data.ParentID
			category.ParentID = &parent
		}
		categories = append(categories, category)
	}
	return categories, nil
}
