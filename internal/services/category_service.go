package services

import (
	"context"
	"errors"

	domain "github.com/aurelle-jewelry/api/internal/domain"
	"github.com/aurelle-jewelry/api/internal/repositories"
)

// CategoryServiceDeps bundles collaborators required to construct the category service.
type CategoryServiceDeps struct {
	Categories repositories.CategoryRepository
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type categoryService struct {
	categories repositories.CategoryRepository
	logger     func(context.Context, string, map[string]any)
}

// NewCategoryService wires dependencies into a concrete CategoryService implementation.
func NewCategoryService(deps CategoryServiceDeps) (CategoryService, error) {
	if deps.Categories == nil {
		return nil, errors.New("category service: category repository is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &categoryService{
		categories: deps.Categories,
		logger:     logger,
	}, nil
}

func (s *categoryService) Tree(ctx context.Context) ([]domain.FlattenedCategory, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, err
	}
	return FlattenCategories(categories), nil
}

// FlattenCategories turns a flat category set into a depth-ordered listing:
// every node immediately precedes its children (pre-order), annotated with its
// depth. Nodes whose declared parent is missing become orphaned roots. A
// visited set breaks self-referential and cyclic parent chains; the entry
// point of a cycle is emitted as an orphaned root instead of recursed into.
// Sibling input order is preserved throughout.
func FlattenCategories(categories []domain.Category) []domain.FlattenedCategory {
	known := make(map[string]struct{}, len(categories))
	for _, category := range categories {
		known[category.ID] = struct{}{}
	}

	childrenOf := make(map[string][]domain.Category)
	var roots, orphans []domain.Category
	for _, category := range categories {
		switch {
		case category.ParentID == nil || *category.ParentID == "":
			roots = append(roots, category)
		default:
			if _, exists := known[*category.ParentID]; !exists {
				orphans = append(orphans, category)
				continue
			}
			parentID := *category.ParentID
			childrenOf[parentID] = append(childrenOf[parentID], category)
		}
	}

	flattened := make([]domain.FlattenedCategory, 0, len(categories))
	visited := make(map[string]struct{}, len(categories))

	var walk func(category domain.Category, level int, orphaned bool)
	walk = func(category domain.Category, level int, orphaned bool) {
		if _, seen := visited[category.ID]; seen {
			return
		}
		visited[category.ID] = struct{}{}
		flattened = append(flattened, domain.FlattenedCategory{
			Category: category,
			Level:    level,
			Orphaned: orphaned,
		})
		for _, child := range childrenOf[category.ID] {
			walk(child, level+1, false)
		}
	}

	for _, root := range roots {
		walk(root, 0, false)
	}
	for _, orphan := range orphans {
		walk(orphan, 0, true)
	}

	// Anything still unvisited sits on a cyclic parent chain. Each such node
	// is surfaced as an orphaned root, and its subtree follows from there.
	for _, category := range categories {
		if _, seen := visited[category.ID]; seen {
			continue
		}
		visited[category.ID] = struct{}{}
		flattened = append(flattened, domain.FlattenedCategory{
			Category: category,
			Level:    0,
			Orphaned: true,
		})
		for _, child := range childrenOf[category.ID] {
			walk(child, 1, false)
		}
	}

	return flattened
}
