// Package order holds the durable order record, the status state machine
// that governs its lifecycle, and the checkout service that creates orders
// from finalized carts.
package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/carekitchen/mealorder/internal/domain/cart"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// ErrEmptyCart is returned when checkout is attempted with zero line items.
// It is resolved at the caller boundary; no persistence call is made.
var ErrEmptyCart = errors.New("cannot check out an empty cart")

// ValidationError indicates malformed delivery or payment details, detected
// before any persistence call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Line is an immutable snapshot of one cart line, frozen at checkout time.
type Line struct {
	MenuItemID string
	Name       string
	UnitPrice  decimal.Decimal
	Quantity   int
	Category   string
	Allergens  []string
}

// DeliveryDetails says where and when the meal should arrive.
type DeliveryDetails struct {
	Ward         string
	Bed          string
	DeliveryTime time.Time
	// Instructions carries optional special instructions for the kitchen
	// or delivery staff.
	Instructions string
}

// Validate checks the required delivery fields.
func (d DeliveryDetails) Validate() error {
	if strings.TrimSpace(d.Ward) == "" {
		return &ValidationError{Field: "delivery.ward", Reason: "ward is required"}
	}
	if strings.TrimSpace(d.Bed) == "" {
		return &ValidationError{Field: "delivery.bed", Reason: "bed is required"}
	}
	if d.DeliveryTime.IsZero() {
		return &ValidationError{Field: "delivery.deliveryTime", Reason: "requested delivery time is required"}
	}
	return nil
}

// PaymentMethod enumerates the supported payment methods.
type PaymentMethod string

const (
	MethodHospitalAccount PaymentMethod = "hospital-account"
	MethodCash            PaymentMethod = "cash"
	MethodCard            PaymentMethod = "card"
)

// PaymentStatus tracks the (simulated) settlement state of an order.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// Payment is the tagged union of payment methods. Each variant carries only
// the fields its method requires, so "which fields are required for which
// method" is checked by the type system rather than a runtime if-chain.
// The interface is sealed: only the variants in this package implement it.
type Payment interface {
	Method() PaymentMethod
	// Validate checks the method-specific required fields.
	Validate() error
}

// HospitalAccount charges the meal to the patient's hospital account.
type HospitalAccount struct {
	AccountNumber string
}

func (HospitalAccount) Method() PaymentMethod { return MethodHospitalAccount }

func (p HospitalAccount) Validate() error {
	if strings.TrimSpace(p.AccountNumber) == "" {
		return &ValidationError{Field: "payment.accountNumber", Reason: "hospital account number is required"}
	}
	return nil
}

// Cash is settled on delivery and needs no extra fields.
type Cash struct{}

func (Cash) Method() PaymentMethod { return MethodCash }

func (Cash) Validate() error { return nil }

// Card holds the card fields collected at checkout. Settlement is simulated;
// no gateway is contacted.
type Card struct {
	Number     string
	HolderName string
	Expiry     string
}

func (Card) Method() PaymentMethod { return MethodCard }

func (p Card) Validate() error {
	switch {
	case strings.TrimSpace(p.Number) == "":
		return &ValidationError{Field: "payment.cardNumber", Reason: "card number is required"}
	case strings.TrimSpace(p.HolderName) == "":
		return &ValidationError{Field: "payment.holderName", Reason: "card holder name is required"}
	case strings.TrimSpace(p.Expiry) == "":
		return &ValidationError{Field: "payment.expiry", Reason: "card expiry is required"}
	}
	return nil
}

// Order is the persisted entity created from a finalized cart. Items and the
// pricing breakdown are frozen at creation; only Status (through the state
// machine) and UpdatedAt change afterwards.
type Order struct {
	OrderNumber string
	UserID      string
	Items       []Line

	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Tax         decimal.Decimal
	Total       decimal.Decimal

	Status        Status
	Delivery      DeliveryDetails
	Payment       Payment
	PaymentStatus PaymentStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ListFilter narrows staff order listings.
type ListFilter struct {
	// Status limits results to one status when non-empty.
	Status Status
}

// Repository is the persistence boundary for orders. UpdateStatus is the sole
// status mutation: there is deliberately no raw status setter, so the state
// machine stays the only writer of Status.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, orderNumber string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, error)
	// UpdateStatus transitions orderNumber from expected to next atomically
	// with respect to the order's current status. It returns
	// ErrStaleOrderState when the stored status no longer equals expected,
	// and ErrNotFound when the order does not exist.
	UpdateStatus(ctx context.Context, orderNumber string, expected, next Status, updatedAt time.Time) error
}

// snapshotLines deep-copies cart lines into order lines, decoupling the order
// from later cart or menu mutations.
func snapshotLines(lines []cart.Line) []Line {
	out := make([]Line, len(lines))
	for i, l := range lines {
		out[i] = Line{
			MenuItemID: l.MenuItemID,
			Name:       l.Name,
			UnitPrice:  l.UnitPrice,
			Quantity:   l.Quantity,
			Category:   l.Category,
			Allergens:  append([]string(nil), l.Allergens...),
		}
	}
	return out
}
