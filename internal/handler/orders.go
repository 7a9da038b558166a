package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warung-pos/api/internal/enum"
	"github.com/warung-pos/api/internal/middleware"
	"github.com/warung-pos/api/internal/order"
	"github.com/warung-pos/api/internal/store"
	"github.com/warung-pos/api/internal/ws"
)

// OrderStore defines the database methods needed by order handlers.
// Satisfied by *store.Store; narrow interface for testability.
type OrderStore interface {
	CreateOrder(ctx context.Context, o order.Order) (order.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (order.Order, error)
	ListOpenOrders(ctx context.Context) ([]order.Order, error)
	ListLines(ctx context.Context, orderID uuid.UUID) ([]order.Line, error)
	GetLine(ctx context.Context, id uuid.UUID) (order.Line, error)
	InsertLine(ctx context.Context, ln order.Line) (order.Line, error)
	UpdateLineQuantity(ctx context.Context, id uuid.UUID, quantity int32, total decimal.Decimal) (order.Line, error)
	DeleteLine(ctx context.Context, id uuid.UUID) error
	SaveTotals(ctx context.Context, o order.Order) error
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, current, next string) (order.Order, error)
}

// Broadcaster notifies subscribed terminals that a resource changed.
// Satisfied by *ws.Hub.
type Broadcaster interface {
	Broadcast(resource string)
}

// OrderHandler is the authoritative mutation surface for orders. Every
// write recomputes the order totals before persisting them and broadcasts a
// change notification; concurrent terminals converge by refetching.
type OrderHandler struct {
	store OrderStore
	hub   Broadcaster
}

func NewOrderHandler(store OrderStore, hub Broadcaster) *OrderHandler {
	return &OrderHandler{store: store, hub: hub}
}

// RegisterRoutes registers order endpoints on the given Chi router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Post("/{id}/lines", h.AddLine)
	r.Patch("/{id}/lines/{lid}", h.UpdateLineQuantity)
	r.Delete("/{id}/lines/{lid}", h.RemoveLine)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.StaffRoleManager))
		r.Post("/{id}/discount", h.ApplyDiscount)
		r.Delete("/{id}/discount", h.RemoveDiscount)
	})
}

// --- Request / Response types ---

type createOrderRequest struct {
	Type           string          `json:"type"`
	DeliveryCharge decimal.Decimal `json:"delivery_charge"`
}

type addLineRequest struct {
	ID         uuid.UUID              `json:"id"`
	Kind       string                 `json:"kind"`
	MenuItemID uuid.UUID              `json:"menu_item_id"`
	DealID     uuid.UUID              `json:"deal_id"`
	Name       string                 `json:"name"`
	Quantity   int32                  `json:"quantity"`
	Selections json.RawMessage        `json:"selections"`
	UnitPrice  decimal.Decimal        `json:"unit_price"`
	TotalPrice decimal.Decimal        `json:"total_price"`
	Notes      string                 `json:"notes"`
	Breakdown  []order.BreakdownEntry `json:"breakdown"`
}

type updateQuantityRequest struct {
	Quantity int32 `json:"quantity"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type discountRequest struct {
	Type      string          `json:"type"`
	Value     decimal.Decimal `json:"value"`
	Reference string          `json:"reference"`
}

// orderDetail is the order header plus its lines, the shape every mutation
// endpoint returns so terminals can reconcile from the response alone.
type orderDetail struct {
	order.Order
	Lines []order.Line `json:"lines"`
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	switch req.Type {
	case enum.OrderTypeDineIn, enum.OrderTypeTakeaway, enum.OrderTypeDelivery:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order type"})
		return
	}

	o := order.Order{
		Type:           req.Type,
		Status:         enum.OrderStatusOpen,
		DeliveryCharge: req.DeliveryCharge,
		CreatedBy:      claims.StaffID,
	}
	order.Recompute(&o, nil)

	created, err := h.store.CreateOrder(r.Context(), o)
	if err != nil {
		log.Printf("ERROR: create order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.hub.Broadcast(enum.ResourceOrders)
	writeJSON(w, http.StatusCreated, orderDetail{Order: created})
}

// List handles GET /orders. Only open orders; closed ones belong to reports.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ListOpenOrders(r.Context())
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"orders": orders})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	o, lines, ok := h.loadOrder(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, orderDetail{Order: o, Lines: lines})
}

// AddLine handles POST /orders/{id}/lines.
func (h *OrderHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	o, _, ok := h.loadOpenOrder(w, r)
	if !ok {
		return
	}

	var req addLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if msg := validateLine(req); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	ln := order.Line{
		ID:         req.ID,
		OrderID:    o.ID,
		Kind:       req.Kind,
		MenuItemID: req.MenuItemID,
		DealID:     req.DealID,
		Name:       req.Name,
		Quantity:   req.Quantity,
		UnitPrice:  req.UnitPrice,
		TotalPrice: req.TotalPrice,
		Notes:      req.Notes,
		Breakdown:  req.Breakdown,
	}
	if len(req.Selections) > 0 {
		if err := json.Unmarshal(req.Selections, &ln.Selections); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid selections"})
			return
		}
	}

	if _, err := h.store.InsertLine(r.Context(), ln); err != nil {
		log.Printf("ERROR: add line: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.saveAndRespond(w, r, o, http.StatusCreated)
}

// UpdateLineQuantity handles PATCH /orders/{id}/lines/{lid}.
func (h *OrderHandler) UpdateLineQuantity(w http.ResponseWriter, r *http.Request) {
	o, _, ok := h.loadOpenOrder(w, r)
	if !ok {
		return
	}

	lineID, err := uuid.Parse(chi.URLParam(r, "lid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid line ID"})
		return
	}

	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Quantity <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity must be > 0"})
		return
	}

	ln, err := h.store.GetLine(r.Context(), lineID)
	if err != nil || ln.OrderID != o.ID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order line not found"})
		return
	}

	if _, err := h.store.UpdateLineQuantity(r.Context(), lineID, req.Quantity, order.Reprice(ln, req.Quantity)); err != nil {
		log.Printf("ERROR: update line quantity: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.saveAndRespond(w, r, o, http.StatusOK)
}

// RemoveLine handles DELETE /orders/{id}/lines/{lid}.
func (h *OrderHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	o, _, ok := h.loadOpenOrder(w, r)
	if !ok {
		return
	}

	lineID, err := uuid.Parse(chi.URLParam(r, "lid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid line ID"})
		return
	}

	ln, err := h.store.GetLine(r.Context(), lineID)
	if err != nil || ln.OrderID != o.ID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order line not found"})
		return
	}

	if err := h.store.DeleteLine(r.Context(), lineID); err != nil {
		log.Printf("ERROR: remove line: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.saveAndRespond(w, r, o, http.StatusOK)
}

// ApplyDiscount handles POST /orders/{id}/discount.
func (h *OrderHandler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	o, lines, ok := h.loadOpenOrder(w, r)
	if !ok {
		return
	}

	var req discountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := order.ApplyDiscount(&o, lines, req.Type, req.Value, req.Reference); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if err := h.store.SaveTotals(r.Context(), o); err != nil {
		log.Printf("ERROR: apply discount: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.hub.Broadcast(enum.ResourceOrders)
	writeJSON(w, http.StatusOK, orderDetail{Order: o, Lines: lines})
}

// RemoveDiscount handles DELETE /orders/{id}/discount.
func (h *OrderHandler) RemoveDiscount(w http.ResponseWriter, r *http.Request) {
	o, lines, ok := h.loadOpenOrder(w, r)
	if !ok {
		return
	}

	order.RemoveDiscount(&o, lines)

	if err := h.store.SaveTotals(r.Context(), o); err != nil {
		log.Printf("ERROR: remove discount: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.hub.Broadcast(enum.ResourceOrders)
	writeJSON(w, http.StatusOK, orderDetail{Order: o, Lines: lines})
}

// UpdateStatus handles PATCH /orders/{id}/status. The store update is a
// compare-and-set so two terminals racing to close the same order cannot
// both win.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	o, _, ok := h.loadOrder(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := order.ValidateStatusTransition(o.Status, req.Status); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}

	updated, err := h.store.UpdateOrderStatus(r.Context(), o.ID, o.Status, req.Status)
	if err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order status changed concurrently"})
			return
		}
		log.Printf("ERROR: update order status: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.hub.Broadcast(enum.ResourceOrders)
	lines, err := h.store.ListLines(r.Context(), o.ID)
	if err != nil {
		log.Printf("ERROR: list lines: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, orderDetail{Order: updated, Lines: lines})
}

// --- Helpers ---

// loadOrder fetches the order and its lines, writing the error response
// itself when the fetch fails.
func (h *OrderHandler) loadOrder(w http.ResponseWriter, r *http.Request) (order.Order, []order.Line, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return order.Order{}, nil, false
	}

	o, err := h.store.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return order.Order{}, nil, false
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return order.Order{}, nil, false
	}

	lines, err := h.store.ListLines(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: list lines: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return order.Order{}, nil, false
	}
	return o, lines, true
}

// loadOpenOrder is loadOrder plus the terminal-status gate: mutations
// against a completed or cancelled order are rejected with 409.
func (h *OrderHandler) loadOpenOrder(w http.ResponseWriter, r *http.Request) (order.Order, []order.Line, bool) {
	o, lines, ok := h.loadOrder(w, r)
	if !ok {
		return order.Order{}, nil, false
	}
	if order.IsTerminal(o.Status) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "order is " + o.Status})
		return order.Order{}, nil, false
	}
	return o, lines, true
}

// saveAndRespond recomputes the order totals from the post-mutation line
// set, persists them, broadcasts, and writes the canonical detail response.
func (h *OrderHandler) saveAndRespond(w http.ResponseWriter, r *http.Request, o order.Order, status int) {
	lines, err := h.store.ListLines(r.Context(), o.ID)
	if err != nil {
		log.Printf("ERROR: list lines: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	order.Recompute(&o, lines)
	if err := h.store.SaveTotals(r.Context(), o); err != nil {
		log.Printf("ERROR: save totals: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.hub.Broadcast(enum.ResourceOrderItems)
	h.hub.Broadcast(enum.ResourceOrders)
	writeJSON(w, status, orderDetail{Order: o, Lines: lines})
}

func validateLine(req addLineRequest) string {
	switch req.Kind {
	case enum.LineKindMenuItem:
		if req.MenuItemID == uuid.Nil {
			return "menu_item_id is required"
		}
	case enum.LineKindDeal:
		if req.DealID == uuid.Nil {
			return "deal_id is required"
		}
	default:
		return "invalid line kind"
	}
	if req.Name == "" {
		return "name is required"
	}
	if req.Quantity <= 0 {
		return "quantity must be > 0"
	}
	if req.TotalPrice.IsNegative() {
		return "total_price must not be negative"
	}
	return ""
}

var _ Broadcaster = (*ws.Hub)(nil)
