package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/warung-pos/api/internal/catalog"
)

// CatalogStore defines the catalog reads needed by list endpoints.
// Satisfied by *store.Store.
type CatalogStore interface {
	ListMenuItems(ctx context.Context) ([]catalog.MenuItem, error)
	ListDeals(ctx context.Context) ([]catalog.Deal, error)
}

// CatalogResolver resolves selection-ready variant configurations.
// Satisfied by *catalog.Resolver.
type CatalogResolver interface {
	ResolveMenuItem(ctx context.Context, id uuid.UUID) (catalog.MenuItem, []catalog.ResolvedBinding, error)
	ResolveDeal(ctx context.Context, id uuid.UUID) (catalog.Deal, []catalog.ResolvedBinding, []catalog.ResolvedMember, error)
}

// CatalogHandler serves the read-only catalog endpoints terminals use to
// build their selection UIs.
type CatalogHandler struct {
	store    CatalogStore
	resolver CatalogResolver
}

func NewCatalogHandler(store CatalogStore, resolver CatalogResolver) *CatalogHandler {
	return &CatalogHandler{store: store, resolver: resolver}
}

// RegisterRoutes registers catalog endpoints on the given Chi router.
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Get("/menu-items", h.ListMenuItems)
	r.Get("/menu-items/{id}/config", h.GetMenuItemConfig)
	r.Get("/deals", h.ListDeals)
	r.Get("/deals/{id}/config", h.GetDealConfig)
}

type menuItemConfigResponse struct {
	Item     catalog.MenuItem          `json:"item"`
	Bindings []catalog.ResolvedBinding `json:"bindings"`
}

type dealConfigResponse struct {
	Deal     catalog.Deal              `json:"deal"`
	Bindings []catalog.ResolvedBinding `json:"bindings"`
	Members  []catalog.ResolvedMember  `json:"members"`
}

// ListMenuItems handles GET /catalog/menu-items.
func (h *CatalogHandler) ListMenuItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListMenuItems(r.Context())
	if err != nil {
		log.Printf("ERROR: list menu items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"menu_items": items})
}

// GetMenuItemConfig handles GET /catalog/menu-items/{id}/config.
func (h *CatalogHandler) GetMenuItemConfig(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	item, bindings, err := h.resolver.ResolveMenuItem(r.Context(), id)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, menuItemConfigResponse{Item: item, Bindings: bindings})
}

// ListDeals handles GET /catalog/deals.
func (h *CatalogHandler) ListDeals(w http.ResponseWriter, r *http.Request) {
	deals, err := h.store.ListDeals(r.Context())
	if err != nil {
		log.Printf("ERROR: list deals: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deals": deals})
}

// GetDealConfig handles GET /catalog/deals/{id}/config.
func (h *CatalogHandler) GetDealConfig(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid deal ID"})
		return
	}

	deal, bindings, members, err := h.resolver.ResolveDeal(r.Context(), id)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dealConfigResponse{Deal: deal, Bindings: bindings, Members: members})
}

func writeCatalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrMenuItemNotFound), errors.Is(err, catalog.ErrDealNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, catalog.ErrMenuItemInactive), errors.Is(err, catalog.ErrDealInactive):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: resolve catalog: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
