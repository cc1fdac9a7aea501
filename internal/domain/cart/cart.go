// Package cart implements the session-scoped shopping cart: an ordered set of
// menu item lines with price snapshots taken at add time. Carts are transient
// and live only for the duration of one browsing session.
package cart

import (
	"github.com/shopspring/decimal"

	"github.com/carekitchen/mealorder/internal/domain/menu"
)

// Line is a single cart entry. Name, UnitPrice, Category and Allergens are
// snapshots of the menu item at the moment it was added; later catalog price
// changes do not touch existing lines.
type Line struct {
	MenuItemID string
	Name       string
	UnitPrice  decimal.Decimal
	Quantity   int
	Category   string
	Allergens  []string
}

// Total returns UnitPrice × Quantity for this line.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart holds the line items for one patient session. It is not safe for
// concurrent use; a cart has exactly one writer, the session that owns it.
type Cart struct {
	lines []Line
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// Add merges a menu item into the cart. If a line for the item already exists
// its quantity is incremented by qty, otherwise a new line is appended with
// the item's current price as the snapshot. Negative qty decrements; a line
// whose quantity drops to zero or below is removed entirely.
func (c *Cart) Add(item menu.Item, qty int) {
	for i := range c.lines {
		if c.lines[i].MenuItemID != item.ID {
			continue
		}
		c.lines[i].Quantity += qty
		if c.lines[i].Quantity <= 0 {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
		}
		return
	}
	if qty <= 0 {
		return
	}
	c.lines = append(c.lines, Line{
		MenuItemID: item.ID,
		Name:       item.Name,
		UnitPrice:  item.Price,
		Quantity:   qty,
		Category:   item.Category,
		Allergens:  append([]string(nil), item.Allergens...),
	})
}

// UpdateQuantity sets the quantity of an existing line. Quantities below 1
// are ignored; callers must use Remove to delete a line.
func (c *Cart) UpdateQuantity(menuItemID string, qty int) {
	if qty < 1 {
		return
	}
	for i := range c.lines {
		if c.lines[i].MenuItemID == menuItemID {
			c.lines[i].Quantity = qty
			return
		}
	}
}

// Remove deletes the line for menuItemID. Removing an absent item is a no-op.
func (c *Cart) Remove(menuItemID string) {
	for i := range c.lines {
		if c.lines[i].MenuItemID == menuItemID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return
		}
	}
}

// Clear empties the cart. Called after a successful checkout.
func (c *Cart) Clear() {
	c.lines = nil
}

// Lines returns a copy of the cart's lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	for i := range out {
		out[i].Allergens = append([]string(nil), c.lines[i].Allergens...)
	}
	return out
}

// Len returns the number of distinct lines in the cart.
func (c *Cart) Len() int {
	return len(c.lines)
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Subtotal returns sum(unitPrice × quantity) over all lines. It is derived on
// every call and never cached.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.lines {
		sum = sum.Add(l.Total())
	}
	return sum
}
