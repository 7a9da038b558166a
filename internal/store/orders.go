package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/warung-pos/api/internal/order"
)

// Order numbers are sequential per prefix; concurrent creates can collide on
// the unique index, so creation retries a bounded number of times.
const maxOrderNumberRetries = 3

const orderColumns = `
	id, number, type, status, subtotal,
	discount_type, discount_value, discount_amount, discount_reference,
	delivery_charge, total, created_by, created_at, updated_at`

func (s *Store) nextOrderNumber(ctx context.Context) (string, error) {
	var next int
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(MAX(CAST(SUBSTRING(number FROM 5) AS INTEGER)), 0) + 1
		FROM orders`,
	).Scan(&next)
	if err != nil {
		return "", fmt.Errorf("next order number: %w", err)
	}
	return fmt.Sprintf("WRG-%03d", next), nil
}

// CreateOrder inserts a new order, assigning the next sequential number.
// A duplicate-number race with another terminal retries with a fresh number.
func (s *Store) CreateOrder(ctx context.Context, o order.Order) (order.Order, error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}

	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		number, err := s.nextOrderNumber(ctx)
		if err != nil {
			return order.Order{}, err
		}
		o.Number = number

		err = s.db.QueryRow(ctx, `
			INSERT INTO orders (
				id, number, type, status, subtotal,
				discount_type, discount_value, discount_amount, discount_reference,
				delivery_charge, total, created_by
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING created_at, updated_at`,
			pgUUID(o.ID), o.Number, o.Type, o.Status, decimalToNumeric(o.Subtotal),
			pgText(o.DiscountType), decimalToNumeric(o.DiscountValue),
			decimalToNumeric(o.DiscountAmount), pgText(o.DiscountReference),
			decimalToNumeric(o.DeliveryCharge), decimalToNumeric(o.Total), pgUUID(o.CreatedBy),
		).Scan(&o.CreatedAt, &o.UpdatedAt)
		if err == nil {
			return o, nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			continue
		}
		return order.Order{}, fmt.Errorf("insert order: %w", err)
	}
	return order.Order{}, fmt.Errorf("insert order: exhausted %d number attempts", maxOrderNumberRetries)
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (order.Order, error) {
	row := s.db.QueryRow(ctx, `SELECT`+orderColumns+` FROM orders WHERE id = $1`, pgUUID(id))
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.Order{}, ErrOrderNotFound
		}
		return order.Order{}, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (s *Store) ListOpenOrders(ctx context.Context) ([]order.Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT`+orderColumns+` FROM orders WHERE status = 'OPEN' ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list open orders: %w", err)
	}
	defer rows.Close()

	var orders []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// SaveTotals writes the recomputed order-level amounts.
func (s *Store) SaveTotals(ctx context.Context, o order.Order) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders SET
			subtotal = $2, discount_type = $3, discount_value = $4,
			discount_amount = $5, discount_reference = $6,
			delivery_charge = $7, total = $8, updated_at = now()
		WHERE id = $1`,
		pgUUID(o.ID), decimalToNumeric(o.Subtotal),
		pgText(o.DiscountType), decimalToNumeric(o.DiscountValue),
		decimalToNumeric(o.DiscountAmount), pgText(o.DiscountReference),
		decimalToNumeric(o.DeliveryCharge), decimalToNumeric(o.Total))
	if err != nil {
		return fmt.Errorf("save totals: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// UpdateOrderStatus is a compare-and-set: the update only applies if the
// order is still in the expected current status. A lost race surfaces as
// ErrStatusConflict so the handler can reject with the canonical state.
func (s *Store) UpdateOrderStatus(ctx context.Context, id uuid.UUID, current, next string) (order.Order, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING`+orderColumns,
		pgUUID(id), current, next)
	o, err := scanOrder(row)
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return order.Order{}, fmt.Errorf("update order status: %w", err)
	}

	// No row matched: either the order is gone or the status moved.
	if _, err := s.GetOrder(ctx, id); err != nil {
		return order.Order{}, err
	}
	return order.Order{}, ErrStatusConflict
}

const lineColumns = `
	id, order_id, kind, menu_item_id, deal_id, name, quantity,
	selections, unit_price, total_price, notes, breakdown, created_at`

// InsertLine persists a priced line. Selections and breakdown are stored as
// JSONB snapshots; they are replaced wholesale, never patched.
func (s *Store) InsertLine(ctx context.Context, ln order.Line) (order.Line, error) {
	if ln.ID == uuid.Nil {
		ln.ID = uuid.New()
	}
	selections, breakdown, err := marshalLineJSON(ln)
	if err != nil {
		return order.Line{}, err
	}

	err = s.db.QueryRow(ctx, `
		INSERT INTO order_lines (
			id, order_id, kind, menu_item_id, deal_id, name, quantity,
			selections, unit_price, total_price, notes, breakdown
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at`,
		pgUUID(ln.ID), pgUUID(ln.OrderID), ln.Kind,
		pgUUID(ln.MenuItemID), pgUUID(ln.DealID), ln.Name, ln.Quantity,
		selections, decimalToNumeric(ln.UnitPrice), decimalToNumeric(ln.TotalPrice),
		pgText(ln.Notes), breakdown,
	).Scan(&ln.CreatedAt)
	if err != nil {
		return order.Line{}, fmt.Errorf("insert order line: %w", err)
	}
	return ln, nil
}

func (s *Store) GetLine(ctx context.Context, id uuid.UUID) (order.Line, error) {
	row := s.db.QueryRow(ctx, `SELECT`+lineColumns+` FROM order_lines WHERE id = $1`, pgUUID(id))
	ln, err := scanLine(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.Line{}, ErrLineNotFound
		}
		return order.Line{}, fmt.Errorf("get order line: %w", err)
	}
	return ln, nil
}

func (s *Store) ListLines(ctx context.Context, orderID uuid.UUID) ([]order.Line, error) {
	rows, err := s.db.Query(ctx, `
		SELECT`+lineColumns+` FROM order_lines WHERE order_id = $1 ORDER BY created_at`, pgUUID(orderID))
	if err != nil {
		return nil, fmt.Errorf("list order lines: %w", err)
	}
	defer rows.Close()

	var lines []order.Line
	for rows.Next() {
		ln, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, ln)
	}
	return lines, rows.Err()
}

func (s *Store) UpdateLineQuantity(ctx context.Context, id uuid.UUID, quantity int32, total decimal.Decimal) (order.Line, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE order_lines SET quantity = $2, total_price = $3
		WHERE id = $1
		RETURNING`+lineColumns,
		pgUUID(id), quantity, decimalToNumeric(total))
	ln, err := scanLine(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.Line{}, ErrLineNotFound
		}
		return order.Line{}, fmt.Errorf("update line quantity: %w", err)
	}
	return ln, nil
}

func (s *Store) DeleteLine(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM order_lines WHERE id = $1`, pgUUID(id))
	if err != nil {
		return fmt.Errorf("delete order line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	return nil
}

func marshalLineJSON(ln order.Line) (selections, breakdown []byte, err error) {
	if len(ln.Selections) > 0 {
		selections, err = json.Marshal(ln.Selections)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal selections: %w", err)
		}
	}
	if len(ln.Breakdown) > 0 {
		breakdown, err = json.Marshal(ln.Breakdown)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal breakdown: %w", err)
		}
	}
	return selections, breakdown, nil
}

func scanOrder(row pgx.Row) (order.Order, error) {
	var (
		o                         order.Order
		id, createdBy             pgtype.UUID
		subtotal, value, amount   pgtype.Numeric
		delivery, total           pgtype.Numeric
		discountType, discountRef pgtype.Text
	)
	err := row.Scan(
		&id, &o.Number, &o.Type, &o.Status, &subtotal,
		&discountType, &value, &amount, &discountRef,
		&delivery, &total, &createdBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return order.Order{}, err
	}
	o.ID = uuidFromPG(id)
	o.CreatedBy = uuidFromPG(createdBy)
	o.Subtotal = numericToDecimal(subtotal)
	o.DiscountType = discountType.String
	o.DiscountValue = numericToDecimal(value)
	o.DiscountAmount = numericToDecimal(amount)
	o.DiscountReference = discountRef.String
	o.DeliveryCharge = numericToDecimal(delivery)
	o.Total = numericToDecimal(total)
	return o, nil
}

func scanLine(row pgx.Row) (order.Line, error) {
	var (
		ln                    order.Line
		id, orderID           pgtype.UUID
		menuItemID, dealID    pgtype.UUID
		unit, total           pgtype.Numeric
		notes                 pgtype.Text
		selections, breakdown []byte
	)
	err := row.Scan(
		&id, &orderID, &ln.Kind, &menuItemID, &dealID, &ln.Name, &ln.Quantity,
		&selections, &unit, &total, &notes, &breakdown, &ln.CreatedAt)
	if err != nil {
		return order.Line{}, err
	}
	ln.ID = uuidFromPG(id)
	ln.OrderID = uuidFromPG(orderID)
	ln.MenuItemID = uuidFromPG(menuItemID)
	ln.DealID = uuidFromPG(dealID)
	ln.UnitPrice = numericToDecimal(unit)
	ln.TotalPrice = numericToDecimal(total)
	ln.Notes = notes.String
	if len(selections) > 0 {
		if err := json.Unmarshal(selections, &ln.Selections); err != nil {
			return order.Line{}, fmt.Errorf("unmarshal selections: %w", err)
		}
	}
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &ln.Breakdown); err != nil {
			return order.Line{}, fmt.Errorf("unmarshal breakdown: %w", err)
		}
	}
	return ln, nil
}
