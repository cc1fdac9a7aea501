package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/carekitchen/mealorder/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (
		order_number, user_id, items,
		subtotal, delivery_fee, tax, total,
		status, ward, bed, delivery_time, instructions,
		payment, payment_status, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	getOrderSQL = `SELECT order_number, user_id, items,
		subtotal, delivery_fee, tax, total,
		status, ward, bed, delivery_time, instructions,
		payment, payment_status, created_at, updated_at
	FROM orders WHERE order_number = $1`

	listOrdersByUserSQL = `SELECT order_number, user_id, items,
		subtotal, delivery_fee, tax, total,
		status, ward, bed, delivery_time, instructions,
		payment, payment_status, created_at, updated_at
	FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	listOrdersSQL = `SELECT order_number, user_id, items,
		subtotal, delivery_fee, tax, total,
		status, ward, bed, delivery_time, instructions,
		payment, payment_status, created_at, updated_at
	FROM orders ORDER BY created_at DESC`

	listOrdersByStatusSQL = `SELECT order_number, user_id, items,
		subtotal, delivery_fee, tax, total,
		status, ward, bed, delivery_time, instructions,
		payment, payment_status, created_at, updated_at
	FROM orders WHERE status = $1 ORDER BY created_at DESC`

	// The WHERE clause on the expected status makes the write a
	// compare-and-swap: a concurrent transition that lands first leaves
	// zero rows for this one to update.
	updateOrderStatusSQL = `UPDATE orders SET status = $3, updated_at = $4
		WHERE order_number = $1 AND status = $2`

	orderExistsSQL = `SELECT EXISTS(SELECT 1 FROM orders WHERE order_number = $1)`
)

// lineRecord is the JSONB shape of one order line.
type lineRecord struct {
	MenuItemID string          `json:"menuItemId"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Quantity   int             `json:"quantity"`
	Category   string          `json:"category"`
	Allergens  []string        `json:"allergens,omitempty"`
}

// paymentRecord is the JSONB shape of the payment union: a method tag plus
// the union of method-specific fields, only one group of which is set.
type paymentRecord struct {
	Method        string `json:"method"`
	AccountNumber string `json:"accountNumber,omitempty"`
	CardNumber    string `json:"cardNumber,omitempty"`
	HolderName    string `json:"holderName,omitempty"`
	Expiry        string `json:"expiry,omitempty"`
}

func encodePayment(p order.Payment) paymentRecord {
	rec := paymentRecord{Method: string(p.Method())}
	switch v := p.(type) {
	case order.HospitalAccount:
		rec.AccountNumber = v.AccountNumber
	case order.Card:
		rec.CardNumber = v.Number
		rec.HolderName = v.HolderName
		rec.Expiry = v.Expiry
	}
	return rec
}

func decodePayment(rec paymentRecord) (order.Payment, error) {
	switch order.PaymentMethod(rec.Method) {
	case order.MethodHospitalAccount:
		return order.HospitalAccount{AccountNumber: rec.AccountNumber}, nil
	case order.MethodCash:
		return order.Cash{}, nil
	case order.MethodCard:
		return order.Card{Number: rec.CardNumber, HolderName: rec.HolderName, Expiry: rec.Expiry}, nil
	}
	return nil, errors.Errorf("unknown payment method %q", rec.Method)
}

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. Lines and payment details are serialized to
// JSON for storage in JSONB columns.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	lines := make([]lineRecord, len(o.Items))
	for i, l := range o.Items {
		lines[i] = lineRecord{
			MenuItemID: l.MenuItemID,
			Name:       l.Name,
			UnitPrice:  l.UnitPrice,
			Quantity:   l.Quantity,
			Category:   l.Category,
			Allergens:  l.Allergens,
		}
	}
	itemsJSON, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	paymentJSON, err := json.Marshal(encodePayment(o.Payment))
	if err != nil {
		return fmt.Errorf("marshaling payment details: %w", err)
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.OrderNumber, o.UserID, itemsJSON,
		o.Subtotal, o.DeliveryFee, o.Tax, o.Total,
		string(o.Status), o.Delivery.Ward, o.Delivery.Bed, o.Delivery.DeliveryTime, o.Delivery.Instructions,
		paymentJSON, string(o.PaymentStatus), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.OrderNumber, err)
	}
	return nil
}

// Get returns the current order snapshot.
func (r *OrderRepository) Get(ctx context.Context, orderNumber string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, orderNumber)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", orderNumber, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", orderNumber, err)
	}
	return &o, nil
}

// ListByUser returns all orders placed by userID, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// List enumerates orders, optionally filtered by status.
func (r *OrderRepository) List(ctx context.Context, filter order.ListFilter) ([]order.Order, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if filter.Status != "" {
		rows, err = r.pool.Query(ctx, listOrdersByStatusSQL, string(filter.Status))
	} else {
		rows, err = r.pool.Query(ctx, listOrdersSQL)
	}
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// UpdateStatus performs the conditional status write. Zero rows affected
// means either the order is gone (ErrNotFound) or another transition landed
// first (ErrStaleOrderState); a follow-up existence check distinguishes them.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderNumber string, expected, next order.Status, updatedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL,
		orderNumber, string(expected), string(next), updatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating status of order %q: %w", orderNumber, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, orderExistsSQL, orderNumber).Scan(&exists); err != nil {
		return fmt.Errorf("checking order %q: %w", orderNumber, err)
	}
	if !exists {
		return order.ErrNotFound
	}
	return order.ErrStaleOrderState
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o             order.Order
		itemsJSON     []byte
		paymentJSON   []byte
		status        string
		paymentStatus string
	)
	err := row.Scan(
		&o.OrderNumber, &o.UserID, &itemsJSON,
		&o.Subtotal, &o.DeliveryFee, &o.Tax, &o.Total,
		&status, &o.Delivery.Ward, &o.Delivery.Bed, &o.Delivery.DeliveryTime, &o.Delivery.Instructions,
		&paymentJSON, &paymentStatus, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return order.Order{}, err
	}

	var lines []lineRecord
	if err := json.Unmarshal(itemsJSON, &lines); err != nil {
		return order.Order{}, fmt.Errorf("unmarshaling order items: %w", err)
	}
	o.Items = make([]order.Line, len(lines))
	for i, l := range lines {
		o.Items[i] = order.Line{
			MenuItemID: l.MenuItemID,
			Name:       l.Name,
			UnitPrice:  l.UnitPrice,
			Quantity:   l.Quantity,
			Category:   l.Category,
			Allergens:  l.Allergens,
		}
	}

	var rec paymentRecord
	if err := json.Unmarshal(paymentJSON, &rec); err != nil {
		return order.Order{}, fmt.Errorf("unmarshaling payment details: %w", err)
	}
	o.Payment, err = decodePayment(rec)
	if err != nil {
		return order.Order{}, err
	}

	o.Status = order.Status(status)
	o.PaymentStatus = order.PaymentStatus(paymentStatus)
	return o, nil
}
