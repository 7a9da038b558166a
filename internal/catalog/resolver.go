package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/warung-pos/api/internal/enum"
)

// Errors returned by the resolver.
var (
	// ErrNotFound is returned by Store implementations for missing records.
	ErrNotFound = errors.New("catalog record not found")
	// ErrCatalogUnavailable wraps transport/read failures. Callers must not
	// let an item add proceed with silently-empty variants when they see it.
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	ErrMenuItemNotFound = errors.New("menu item not found")
	ErrMenuItemInactive = errors.New("menu item is not available")
	ErrDealNotFound     = errors.New("deal not found")
	ErrDealInactive     = errors.New("deal is not available")
)

// Store defines the catalog reads the resolver needs. Satisfied by
// *store.Store and by the REST client on the terminal side.
type Store interface {
	GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error)
	GetDeal(ctx context.Context, id uuid.UUID) (Deal, error)
	ListVariantBindings(ctx context.Context, ownerID uuid.UUID) ([]VariantBinding, error)
	GetVariant(ctx context.Context, id uuid.UUID) (Variant, error)
	ListVariantOptions(ctx context.Context, variantID uuid.UUID) ([]VariantOption, error)
	ListDealMembers(ctx context.Context, dealID uuid.UUID) ([]DealMember, error)
}

// ResolvedBinding is a variant binding ready for selection: the variant
// record plus its usable option set (active, and intersected with the
// binding's allowed-option restriction when one exists).
type ResolvedBinding struct {
	Variant    Variant            `json:"variant"`
	IsRequired bool               `json:"is_required"`
	Mode       enum.SelectionMode `json:"mode"`
	Restricted bool               `json:"restricted"` // binding carried a non-empty allowed-option set
	Options    []VariantOption    `json:"options"`
}

// ResolvedMember is one bundle member with its own resolved bindings.
type ResolvedMember struct {
	Item     MenuItem          `json:"item"`
	Quantity int32             `json:"quantity"`
	Bindings []ResolvedBinding `json:"bindings"`
}

// Resolver produces selection-ready variant configurations for menu items
// and deals. Purely read/transform; no side effects.
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// ResolveMenuItem loads a menu item and its selection-ready bindings.
func (r *Resolver) ResolveMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, []ResolvedBinding, error) {
	item, err := r.store.GetMenuItem(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return MenuItem{}, nil, ErrMenuItemNotFound
		}
		return MenuItem{}, nil, fmt.Errorf("%w: get menu item: %v", ErrCatalogUnavailable, err)
	}
	if !item.IsActive {
		return MenuItem{}, nil, ErrMenuItemInactive
	}

	bindings, err := r.resolveBindings(ctx, item.ID)
	if err != nil {
		return MenuItem{}, nil, err
	}
	return item, bindings, nil
}

// ResolveDeal loads a deal, its deal-level bindings, and its bundle members
// with their own per-member bindings.
func (r *Resolver) ResolveDeal(ctx context.Context, id uuid.UUID) (Deal, []ResolvedBinding, []ResolvedMember, error) {
	deal, err := r.store.GetDeal(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Deal{}, nil, nil, ErrDealNotFound
		}
		return Deal{}, nil, nil, fmt.Errorf("%w: get deal: %v", ErrCatalogUnavailable, err)
	}
	if !deal.IsActive {
		return Deal{}, nil, nil, ErrDealInactive
	}

	bindings, err := r.resolveBindings(ctx, deal.ID)
	if err != nil {
		return Deal{}, nil, nil, err
	}

	links, err := r.store.ListDealMembers(ctx, deal.ID)
	if err != nil {
		return Deal{}, nil, nil, fmt.Errorf("%w: list deal members: %v", ErrCatalogUnavailable, err)
	}

	members := make([]ResolvedMember, 0, len(links))
	for _, link := range links {
		item, err := r.store.GetMenuItem(ctx, link.MenuItemID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// Dangling member link; skip rather than block the whole deal.
				log.Printf("WARN: deal %s references missing menu item %s, skipping member", deal.ID, link.MenuItemID)
				continue
			}
			return Deal{}, nil, nil, fmt.Errorf("%w: get deal member: %v", ErrCatalogUnavailable, err)
		}
		memberBindings, err := r.resolveBindings(ctx, item.ID)
		if err != nil {
			return Deal{}, nil, nil, err
		}
		members = append(members, ResolvedMember{
			Item:     item,
			Quantity: link.Quantity,
			Bindings: memberBindings,
		})
	}

	return deal, bindings, members, nil
}

// resolveBindings fetches the owner's bindings and turns each into a
// ResolvedBinding: inactive options are discarded, the allowed-option
// restriction is intersected when present, and bindings whose variant
// record cannot be resolved are skipped as a data inconsistency.
func (r *Resolver) resolveBindings(ctx context.Context, ownerID uuid.UUID) ([]ResolvedBinding, error) {
	bindings, err := r.store.ListVariantBindings(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: list variant bindings: %v", ErrCatalogUnavailable, err)
	}

	resolved := make([]ResolvedBinding, 0, len(bindings))
	for _, b := range bindings {
		variant, err := r.store.GetVariant(ctx, b.VariantID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				log.Printf("WARN: binding %s references missing variant %s, skipping", b.ID, b.VariantID)
				continue
			}
			return nil, fmt.Errorf("%w: get variant: %v", ErrCatalogUnavailable, err)
		}

		options, err := r.store.ListVariantOptions(ctx, b.VariantID)
		if err != nil {
			return nil, fmt.Errorf("%w: list variant options: %v", ErrCatalogUnavailable, err)
		}

		var allowed map[uuid.UUID]bool
		if len(b.AllowedOptionIDs) > 0 {
			allowed = make(map[uuid.UUID]bool, len(b.AllowedOptionIDs))
			for _, id := range b.AllowedOptionIDs {
				allowed[id] = true
			}
		}

		usable := make([]VariantOption, 0, len(options))
		for _, opt := range options {
			if !opt.IsActive {
				continue
			}
			if allowed != nil && !allowed[opt.ID] {
				continue
			}
			usable = append(usable, opt)
		}

		resolved = append(resolved, ResolvedBinding{
			Variant:    variant,
			IsRequired: b.IsRequired,
			Mode:       b.Mode,
			Restricted: allowed != nil,
			Options:    usable,
		})
	}
	return resolved, nil
}
