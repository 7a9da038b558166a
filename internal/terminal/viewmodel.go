// Package terminal keeps a locally-held order view consistent with the
// shared, remotely-persisted order that other terminals mutate
// concurrently. The pattern is optimistic local mutation with a synchronous
// total recompute, then the authoritative server call, then a reconciling
// refetch on rejection or on an external change notification. The server is
// last-write-wins; nothing here does distributed locking.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warung-pos/api/internal/catalog"
	"github.com/warung-pos/api/internal/enum"
	"github.com/warung-pos/api/internal/order"
	"github.com/warung-pos/api/internal/pricing"
	"github.com/warung-pos/api/internal/selection"
)

// Lines above maxLineQuantity are treated as corrupt input and aborted
// before any total is committed.
const maxLineQuantity = 999

var (
	// ErrMutationRejected wraps a server-side rejection of an add/update/
	// remove. The local optimistic state has already been rolled back via a
	// full refetch by the time the caller sees it.
	ErrMutationRejected = errors.New("mutation rejected by server")
	ErrOrderClosed      = errors.New("order is closed")
	ErrNoOrder          = errors.New("no order loaded")
	ErrLineNotFound     = errors.New("order line not found")
	ErrInvalidQuantity  = errors.New("quantity must be between 1 and 999")
)

// CreateOrderParams starts a new empty order.
type CreateOrderParams struct {
	Type           string
	DeliveryCharge decimal.Decimal // only honored for delivery orders
	CreatedBy      uuid.UUID
}

// DiscountParams is a discount application request.
type DiscountParams struct {
	Type      string
	Value     decimal.Decimal
	Reference string
}

// OrderAPI is the order persistence service. Every call returns the
// server's canonical record.
type OrderAPI interface {
	CreateOrder(ctx context.Context, params CreateOrderParams) (order.Order, error)
	GetOrderWithLines(ctx context.Context, orderID uuid.UUID) (order.Order, []order.Line, error)
	AddLine(ctx context.Context, orderID uuid.UUID, line order.Line) (order.Line, error)
	UpdateLineQuantity(ctx context.Context, orderID, lineID uuid.UUID, quantity int32) (order.Line, error)
	RemoveLine(ctx context.Context, orderID, lineID uuid.UUID) error
	ApplyDiscount(ctx context.Context, orderID uuid.UUID, params DiscountParams) (order.Order, error)
	RemoveDiscount(ctx context.Context, orderID uuid.UUID) (order.Order, error)
	SetStatus(ctx context.Context, orderID uuid.UUID, status string) (order.Order, error)
}

// CatalogResolver is satisfied by *catalog.Resolver.
type CatalogResolver interface {
	ResolveMenuItem(ctx context.Context, id uuid.UUID) (catalog.MenuItem, []catalog.ResolvedBinding, error)
	ResolveDeal(ctx context.Context, id uuid.UUID) (catalog.Deal, []catalog.ResolvedBinding, []catalog.ResolvedMember, error)
}

// Snapshot is the current order plus lines and computed totals, handed to
// the presentation layer for rendering.
type Snapshot struct {
	Order order.Order
	Lines []order.Line
}

// ViewModel is the single mutation entry point for one terminal's view of
// one order. Callers must not overlap mutation calls on a single line; the
// mutex serializes state access, not business-level intent.
type ViewModel struct {
	api     OrderAPI
	catalog CatalogResolver

	mu    sync.Mutex
	ord   order.Order
	lines []order.Line
}

func New(api OrderAPI, resolver CatalogResolver) *ViewModel {
	return &ViewModel{api: api, catalog: resolver}
}

// Start creates a new empty order on the server and adopts it.
func (vm *ViewModel) Start(ctx context.Context, params CreateOrderParams) error {
	o, err := vm.api.CreateOrder(ctx, params)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	vm.mu.Lock()
	vm.ord = o
	vm.lines = nil
	order.Recompute(&vm.ord, vm.lines)
	vm.mu.Unlock()
	return nil
}

// Load adopts an existing order, e.g. when a second terminal joins it.
func (vm *ViewModel) Load(ctx context.Context, orderID uuid.UUID) error {
	return vm.refetch(ctx, orderID)
}

// Snapshot returns a copy of the current order and lines.
func (vm *ViewModel) Snapshot() Snapshot {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	lines := make([]order.Line, len(vm.lines))
	copy(lines, vm.lines)
	return Snapshot{Order: vm.ord, Lines: lines}
}

// AddMenuItem resolves the item's variant configuration, gates the
// selection, prices the line, applies it optimistically, and confirms with
// the server. Passing a nil selection state means the buyer was not
// prompted: bindings are auto-resolved so configured price modifiers are
// never dropped. Catalog failures abort before any state is touched;
// incomplete required selections never reach the server.
func (vm *ViewModel) AddMenuItem(ctx context.Context, itemID uuid.UUID, quantity int32, notes string, sel *selection.State) error {
	if quantity < 1 || quantity > maxLineQuantity {
		return ErrInvalidQuantity
	}

	item, bindings, err := vm.catalog.ResolveMenuItem(ctx, itemID)
	if err != nil {
		return err
	}
	if sel == nil {
		sel = selection.New(bindings)
		sel.AutoResolve()
	}
	selections, err := sel.Selections()
	if err != nil {
		return err
	}

	unit, total := pricing.PriceMenuItem(item, selections, quantity)
	line := order.Line{
		ID:         uuid.New(),
		Kind:       enum.LineKindMenuItem,
		MenuItemID: item.ID,
		Name:       item.Name,
		Quantity:   quantity,
		Selections: selections,
		UnitPrice:  unit,
		TotalPrice: total,
		Notes:      notes,
	}
	return vm.commitAdd(ctx, line)
}

// AddDeal is the deal counterpart. memberSelections maps a member menu item
// ID to per-unit selection states; absent units are auto-resolved. The
// required-variant gate covers the deal level and every member unit.
func (vm *ViewModel) AddDeal(ctx context.Context, dealID uuid.UUID, quantity int32, notes string, dealSel *selection.State, memberSelections map[uuid.UUID][]*selection.State) error {
	if quantity < 1 || quantity > maxLineQuantity {
		return ErrInvalidQuantity
	}

	deal, bindings, members, err := vm.catalog.ResolveDeal(ctx, dealID)
	if err != nil {
		return err
	}
	if dealSel == nil {
		dealSel = selection.New(bindings)
		dealSel.AutoResolve()
	}
	dealSels, err := dealSel.Selections()
	if err != nil {
		return err
	}

	memberUnits := make([]pricing.MemberUnits, 0, len(members))
	for _, m := range members {
		units := pricing.MemberUnits{Member: m}
		if len(m.Bindings) > 0 {
			states := memberSelections[m.Item.ID]
			units.Units = make([][]catalog.VariantSelection, m.Quantity)
			for i := int32(0); i < m.Quantity; i++ {
				var st *selection.State
				if int(i) < len(states) && states[i] != nil {
					st = states[i]
				} else {
					st = selection.New(m.Bindings)
					st.AutoResolve()
				}
				unitSels, err := st.Selections()
				if err != nil {
					return err
				}
				units.Units[i] = unitSels
			}
		}
		memberUnits = append(memberUnits, units)
	}

	unit, total, breakdown := pricing.PriceDeal(deal, dealSels, memberUnits, quantity)
	line := order.Line{
		ID:         uuid.New(),
		Kind:       enum.LineKindDeal,
		DealID:     deal.ID,
		Name:       deal.Name,
		Quantity:   quantity,
		Selections: dealSels,
		UnitPrice:  unit,
		TotalPrice: total,
		Notes:      notes,
		Breakdown:  breakdown,
	}
	return vm.commitAdd(ctx, line)
}

// commitAdd applies the optimistic append, recomputes, then confirms with
// the server, swapping the placeholder line for the canonical one.
func (vm *ViewModel) commitAdd(ctx context.Context, line order.Line) error {
	vm.mu.Lock()
	if vm.ord.ID == uuid.Nil {
		vm.mu.Unlock()
		return ErrNoOrder
	}
	if order.IsTerminal(vm.ord.Status) {
		vm.mu.Unlock()
		return ErrOrderClosed
	}
	orderID := vm.ord.ID
	line.OrderID = orderID
	optimisticID := line.ID
	vm.lines = append(vm.lines, line)
	order.Recompute(&vm.ord, vm.lines)
	vm.mu.Unlock()

	canonical, err := vm.api.AddLine(ctx, orderID, line)
	if err != nil {
		return vm.reject(ctx, orderID, "add line", err)
	}

	vm.mu.Lock()
	for i := range vm.lines {
		if vm.lines[i].ID == optimisticID {
			vm.lines[i] = canonical
			break
		}
	}
	order.Recompute(&vm.ord, vm.lines)
	vm.mu.Unlock()
	return nil
}

// UpdateQuantity changes a line's quantity, repricing from the stored unit
// price (guarding the transient zero-quantity case).
func (vm *ViewModel) UpdateQuantity(ctx context.Context, lineID uuid.UUID, quantity int32) error {
	if quantity < 1 || quantity > maxLineQuantity {
		return ErrInvalidQuantity
	}

	vm.mu.Lock()
	if vm.ord.ID == uuid.Nil {
		vm.mu.Unlock()
		return ErrNoOrder
	}
	if order.IsTerminal(vm.ord.Status) {
		vm.mu.Unlock()
		return ErrOrderClosed
	}
	orderID := vm.ord.ID
	idx := -1
	for i := range vm.lines {
		if vm.lines[i].ID == lineID {
			idx = i
			break
		}
	}
	if idx < 0 {
		vm.mu.Unlock()
		return ErrLineNotFound
	}
	vm.lines[idx].TotalPrice = order.Reprice(vm.lines[idx], quantity)
	vm.lines[idx].Quantity = quantity
	order.Recompute(&vm.ord, vm.lines)
	vm.mu.Unlock()

	canonical, err := vm.api.UpdateLineQuantity(ctx, orderID, lineID, quantity)
	if err != nil {
		return vm.reject(ctx, orderID, "update quantity", err)
	}

	vm.mu.Lock()
	for i := range vm.lines {
		if vm.lines[i].ID == lineID {
			vm.lines[i] = canonical
			break
		}
	}
	order.Recompute(&vm.ord, vm.lines)
	vm.mu.Unlock()
	return nil
}

// RemoveLine drops a line optimistically and confirms with the server.
func (vm *ViewModel) RemoveLine(ctx context.Context, lineID uuid.UUID) error {
	vm.mu.Lock()
	if vm.ord.ID == uuid.Nil {
		vm.mu.Unlock()
		return ErrNoOrder
	}
	if order.IsTerminal(vm.ord.Status) {
		vm.mu.Unlock()
		return ErrOrderClosed
	}
	orderID := vm.ord.ID
	found := false
	kept := vm.lines[:0]
	for _, ln := range vm.lines {
		if ln.ID == lineID {
			found = true
			continue
		}
		kept = append(kept, ln)
	}
	vm.lines = kept
	if !found {
		vm.mu.Unlock()
		return ErrLineNotFound
	}
	order.Recompute(&vm.ord, vm.lines)
	vm.mu.Unlock()

	if err := vm.api.RemoveLine(ctx, orderID, lineID); err != nil {
		return vm.reject(ctx, orderID, "remove line", err)
	}
	return nil
}

// ApplyDiscount validates and applies locally (invalid input never reaches
// the server), then confirms.
func (vm *ViewModel) ApplyDiscount(ctx context.Context, params DiscountParams) error {
	vm.mu.Lock()
	if vm.ord.ID == uuid.Nil {
		vm.mu.Unlock()
		return ErrNoOrder
	}
	if order.IsTerminal(vm.ord.Status) {
		vm.mu.Unlock()
		return ErrOrderClosed
	}
	orderID := vm.ord.ID
	if err := order.ApplyDiscount(&vm.ord, vm.lines, params.Type, params.Value, params.Reference); err != nil {
		vm.mu.Unlock()
		return err
	}
	vm.mu.Unlock()

	canonical, err := vm.api.ApplyDiscount(ctx, orderID, params)
	if err != nil {
		return vm.reject(ctx, orderID, "apply discount", err)
	}
	vm.adoptOrder(canonical)
	return nil
}

// RemoveDiscount clears the discount locally and confirms.
func (vm *ViewModel) RemoveDiscount(ctx context.Context) error {
	vm.mu.Lock()
	if vm.ord.ID == uuid.Nil {
		vm.mu.Unlock()
		return ErrNoOrder
	}
	if order.IsTerminal(vm.ord.Status) {
		vm.mu.Unlock()
		return ErrOrderClosed
	}
	orderID := vm.ord.ID
	order.RemoveDiscount(&vm.ord, vm.lines)
	vm.mu.Unlock()

	canonical, err := vm.api.RemoveDiscount(ctx, orderID)
	if err != nil {
		return vm.reject(ctx, orderID, "remove discount", err)
	}
	vm.adoptOrder(canonical)
	return nil
}

// CompleteOrder moves the order to its COMPLETED terminal state.
func (vm *ViewModel) CompleteOrder(ctx context.Context) error {
	return vm.setStatus(ctx, enum.OrderStatusCompleted)
}

// CancelOrder moves the order to its CANCELLED terminal state.
func (vm *ViewModel) CancelOrder(ctx context.Context) error {
	return vm.setStatus(ctx, enum.OrderStatusCancelled)
}

func (vm *ViewModel) setStatus(ctx context.Context, status string) error {
	vm.mu.Lock()
	if vm.ord.ID == uuid.Nil {
		vm.mu.Unlock()
		return ErrNoOrder
	}
	orderID := vm.ord.ID
	if err := order.ValidateStatusTransition(vm.ord.Status, status); err != nil {
		vm.mu.Unlock()
		return err
	}
	vm.mu.Unlock()

	canonical, err := vm.api.SetStatus(ctx, orderID, status)
	if err != nil {
		return vm.reject(ctx, orderID, "set status", err)
	}
	vm.adoptOrder(canonical)
	return nil
}

// reject rolls back optimistic state by refetching the canonical record,
// then surfaces the rejection. The client never diverges silently.
func (vm *ViewModel) reject(ctx context.Context, orderID uuid.UUID, op string, cause error) error {
	if err := vm.refetch(ctx, orderID); err != nil {
		log.Printf("ERROR: refetch after rejected %s: %v", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrMutationRejected, cause)
}

// refetch overwrites local state with server truth and re-runs the
// aggregator.
func (vm *ViewModel) refetch(ctx context.Context, orderID uuid.UUID) error {
	o, lines, err := vm.api.GetOrderWithLines(ctx, orderID)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	vm.mu.Lock()
	vm.ord = o
	vm.lines = lines
	order.Recompute(&vm.ord, vm.lines)
	vm.mu.Unlock()
	return nil
}

// adoptOrder replaces the order header with the canonical record, keeping
// the current lines, and recomputes.
func (vm *ViewModel) adoptOrder(o order.Order) {
	vm.mu.Lock()
	vm.ord = o
	order.Recompute(&vm.ord, vm.lines)
	vm.mu.Unlock()
}
