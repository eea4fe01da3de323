package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/aurelle-jewelry/api/internal/domain"
	"github.com/aurelle-jewelry/api/internal/platform/httpx"
	"github.com/aurelle-jewelry/api/internal/services"
)

// CategoryHandlers exposes the flattened category listing for admin screens.
type CategoryHandlers struct {
	categories services.CategoryService
}

// NewCategoryHandlers constructs a new CategoryHandlers instance.
func NewCategoryHandlers(categories services.CategoryService) *CategoryHandlers {
	return &CategoryHandlers{categories: categories}
}

// AdminRoutes registers the administrative category endpoints.
func (h *CategoryHandlers) AdminRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/tree", h.categoryTree)
}

type categoryTreeResponse struct {
	Items []categoryNodePayload `json:"items"`
}

type categoryNodePayload struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
	Level    int    `json:"level"`
	Orphaned bool   `json:"orphaned,omitempty"`
}

func (h *CategoryHandlers) categoryTree(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.categories == nil {
		httpx.WriteError(ctx, w, httpx.NewError("category_service_unavailable", "category service unavailable", http.StatusServiceUnavailable))
		return
	}

	tree, err := h.categories.Tree(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("category_error", "failed to load categories", http.StatusInternalServerError))
		return
	}

	items := make([]categoryNodePayload, 0, len(tree))
	for _, node := range tree {
		items = append(items, buildCategoryNode(node))
	}

	writeJSONResponse(w, http.StatusOK, categoryTreeResponse{Items: items})
}

func buildCategoryNode(node domain.FlattenedCategory) categoryNodePayload {
	payload := categoryNodePayload{
		ID:       node.ID,
		Name:     node.Name,
		Slug:     node.Slug,
		Level:    node.Level,
		Orphaned: node.Orphaned,
	}
	if node.ParentID != nil {
		payload.ParentID = *node.ParentID
	}
	return payload
}
