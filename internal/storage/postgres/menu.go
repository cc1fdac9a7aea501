package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carekitchen/mealorder/internal/domain/menu"
)

const (
	listMenuItemsSQL = `SELECT id, name, price, category, allergens, available
		FROM menu_items ORDER BY category, id`

	listAvailableMenuItemsSQL = `SELECT id, name, price, category, allergens, available
		FROM menu_items WHERE available ORDER BY category, id`

	getMenuItemByIDSQL = `SELECT id, name, price, category, allergens, available
		FROM menu_items WHERE id = $1`

	getMenuItemsByIDsSQL = `SELECT id, name, price, category, allergens, available
		FROM menu_items WHERE id = ANY($1)`
)

var _ menu.Repository = (*MenuRepository)(nil)

// MenuRepository implements menu.Repository backed by PostgreSQL.
type MenuRepository struct {
	pool *pgxpool.Pool
}

// NewMenuRepository returns a MenuRepository that uses the given pool.
func NewMenuRepository(pool *pgxpool.Pool) *MenuRepository {
	return &MenuRepository{pool: pool}
}

// List returns menu items ordered by category, optionally restricted to
// available items.
func (r *MenuRepository) List(ctx context.Context, availableOnly bool) ([]menu.Item, error) {
	query := listMenuItemsSQL
	if availableOnly {
		query = listAvailableMenuItemsSQL
	}
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing menu items: %w", err)
	}
	return pgx.CollectRows(rows, scanMenuItem)
}

// GetByID returns a single menu item by its identifier.
func (r *MenuRepository) GetByID(ctx context.Context, id string) (*menu.Item, error) {
	rows, err := r.pool.Query(ctx, getMenuItemByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting menu item %q: %w", id, err)
	}

	item, err := pgx.CollectExactlyOneRow(rows, scanMenuItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, menu.ErrNotFound
		}
		return nil, fmt.Errorf("getting menu item %q: %w", id, err)
	}
	return &item, nil
}

// GetByIDs returns menu items matching any of the given IDs.
func (r *MenuRepository) GetByIDs(ctx context.Context, ids []string) ([]menu.Item, error) {
	rows, err := r.pool.Query(ctx, getMenuItemsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting menu items by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanMenuItem)
}

func scanMenuItem(row pgx.CollectableRow) (menu.Item, error) {
	var item menu.Item
	err := row.Scan(&item.ID, &item.Name, &item.Price, &item.Category, &item.Allergens, &item.Available)
	return item, err
}
