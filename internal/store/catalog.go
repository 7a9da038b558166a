package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/warung-pos/api/internal/catalog"
	"github.com/warung-pos/api/internal/enum"
)

// The catalog reads below satisfy catalog.Store. Missing rows surface as
// catalog.ErrNotFound so the resolver can map them to its own sentinels.
var _ catalog.Store = (*Store)(nil)

func (s *Store) GetMenuItem(ctx context.Context, id uuid.UUID) (catalog.MenuItem, error) {
	var (
		item  catalog.MenuItem
		pgID  pgtype.UUID
		price pgtype.Numeric
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, name, base_price, has_variants, is_active
		FROM menu_items WHERE id = $1`, pgUUID(id),
	).Scan(&pgID, &item.Name, &price, &item.HasVariants, &item.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.MenuItem{}, catalog.ErrNotFound
		}
		return catalog.MenuItem{}, fmt.Errorf("get menu item: %w", err)
	}
	item.ID = uuidFromPG(pgID)
	item.BasePrice = numericToDecimal(price)
	return item, nil
}

func (s *Store) ListMenuItems(ctx context.Context) ([]catalog.MenuItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, base_price, has_variants, is_active
		FROM menu_items WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list menu items: %w", err)
	}
	defer rows.Close()

	var items []catalog.MenuItem
	for rows.Next() {
		var (
			item  catalog.MenuItem
			pgID  pgtype.UUID
			price pgtype.Numeric
		)
		if err := rows.Scan(&pgID, &item.Name, &price, &item.HasVariants, &item.IsActive); err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		item.ID = uuidFromPG(pgID)
		item.BasePrice = numericToDecimal(price)
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) GetDeal(ctx context.Context, id uuid.UUID) (catalog.Deal, error) {
	var (
		deal  catalog.Deal
		pgID  pgtype.UUID
		price pgtype.Numeric
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, name, base_price, is_active
		FROM deals WHERE id = $1`, pgUUID(id),
	).Scan(&pgID, &deal.Name, &price, &deal.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.Deal{}, catalog.ErrNotFound
		}
		return catalog.Deal{}, fmt.Errorf("get deal: %w", err)
	}
	deal.ID = uuidFromPG(pgID)
	deal.BasePrice = numericToDecimal(price)
	return deal, nil
}

func (s *Store) ListDeals(ctx context.Context) ([]catalog.Deal, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, base_price, is_active
		FROM deals WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list deals: %w", err)
	}
	defer rows.Close()

	var deals []catalog.Deal
	for rows.Next() {
		var (
			deal  catalog.Deal
			pgID  pgtype.UUID
			price pgtype.Numeric
		)
		if err := rows.Scan(&pgID, &deal.Name, &price, &deal.IsActive); err != nil {
			return nil, fmt.Errorf("scan deal: %w", err)
		}
		deal.ID = uuidFromPG(pgID)
		deal.BasePrice = numericToDecimal(price)
		deals = append(deals, deal)
	}
	return deals, rows.Err()
}

func (s *Store) ListDealMembers(ctx context.Context, dealID uuid.UUID) ([]catalog.DealMember, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, deal_id, menu_item_id, quantity, sort_order
		FROM deal_members WHERE deal_id = $1 ORDER BY sort_order`, pgUUID(dealID))
	if err != nil {
		return nil, fmt.Errorf("list deal members: %w", err)
	}
	defer rows.Close()

	var members []catalog.DealMember
	for rows.Next() {
		var (
			m              catalog.DealMember
			id, did, itmID pgtype.UUID
		)
		if err := rows.Scan(&id, &did, &itmID, &m.Quantity, &m.SortOrder); err != nil {
			return nil, fmt.Errorf("scan deal member: %w", err)
		}
		m.ID = uuidFromPG(id)
		m.DealID = uuidFromPG(did)
		m.MenuItemID = uuidFromPG(itmID)
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *Store) GetVariant(ctx context.Context, id uuid.UUID) (catalog.Variant, error) {
	var (
		v    catalog.Variant
		pgID pgtype.UUID
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, name FROM variants WHERE id = $1`, pgUUID(id),
	).Scan(&pgID, &v.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.Variant{}, catalog.ErrNotFound
		}
		return catalog.Variant{}, fmt.Errorf("get variant: %w", err)
	}
	v.ID = uuidFromPG(pgID)
	return v, nil
}

func (s *Store) ListVariantBindings(ctx context.Context, ownerID uuid.UUID) ([]catalog.VariantBinding, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, owner_id, variant_id, is_required, mode, allowed_option_ids, sort_order
		FROM variant_bindings WHERE owner_id = $1 ORDER BY sort_order`, pgUUID(ownerID))
	if err != nil {
		return nil, fmt.Errorf("list variant bindings: %w", err)
	}
	defer rows.Close()

	var bindings []catalog.VariantBinding
	for rows.Next() {
		var (
			b            catalog.VariantBinding
			id, oid, vid pgtype.UUID
			mode         string
			allowed      []pgtype.UUID
		)
		if err := rows.Scan(&id, &oid, &vid, &b.IsRequired, &mode, &allowed, &b.SortOrder); err != nil {
			return nil, fmt.Errorf("scan variant binding: %w", err)
		}
		b.ID = uuidFromPG(id)
		b.OwnerID = uuidFromPG(oid)
		b.VariantID = uuidFromPG(vid)
		b.Mode = enum.SelectionMode(mode)
		for _, a := range allowed {
			b.AllowedOptionIDs = append(b.AllowedOptionIDs, uuidFromPG(a))
		}
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}

func (s *Store) ListVariantOptions(ctx context.Context, variantID uuid.UUID) ([]catalog.VariantOption, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, variant_id, name, price_modifier, is_active
		FROM variant_options WHERE variant_id = $1 ORDER BY name`, pgUUID(variantID))
	if err != nil {
		return nil, fmt.Errorf("list variant options: %w", err)
	}
	defer rows.Close()

	var options []catalog.VariantOption
	for rows.Next() {
		var (
			opt      catalog.VariantOption
			id, vid  pgtype.UUID
			modifier pgtype.Numeric
		)
		if err := rows.Scan(&id, &vid, &opt.Name, &modifier, &opt.IsActive); err != nil {
			return nil, fmt.Errorf("scan variant option: %w", err)
		}
		opt.ID = uuidFromPG(id)
		opt.VariantID = uuidFromPG(vid)
		opt.PriceModifier = numericToDecimal(modifier)
		options = append(options, opt)
	}
	return options, rows.Err()
}
