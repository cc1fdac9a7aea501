// Package pricing derives delivery fee, tax, and total from a cart subtotal
// using fixed policy constants. The computation is pure so it can be tested
// without network or storage.
package pricing

import "github.com/shopspring/decimal"

// Policy holds the pricing constants applied at checkout.
type Policy struct {
	// DeliveryFee is a flat fee added to every order. The hospital currently
	// runs a free-delivery policy, so the default is zero.
	DeliveryFee decimal.Decimal
	// TaxRate is the tax fraction applied to the subtotal (0.05 = 5%).
	TaxRate decimal.Decimal
}

// DefaultPolicy returns the observed production policy: free delivery, 5% tax.
func DefaultPolicy() Policy {
	return Policy{
		DeliveryFee: decimal.Zero,
		TaxRate:     decimal.NewFromFloat(0.05),
	}
}

// Totals is the checkout pricing breakdown. All values are frozen onto the
// order at creation and never recomputed.
type Totals struct {
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Tax         decimal.Decimal
	Total       decimal.Decimal
}

// Compute derives the totals for a subtotal. Tax is rounded half-up to two
// decimal places at this boundary only; intermediate arithmetic stays exact
// so rounding errors cannot compound across subtotal, tax, and total.
func (p Policy) Compute(subtotal decimal.Decimal) Totals {
	tax := subtotal.Mul(p.TaxRate).Round(2)
	total := subtotal.Add(p.DeliveryFee).Add(tax).Round(2)
	return Totals{
		Subtotal:    subtotal,
		DeliveryFee: p.DeliveryFee,
		Tax:         tax,
		Total:       total,
	}
}
