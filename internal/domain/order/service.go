package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/carekitchen/mealorder/internal/domain/cart"
	"github.com/carekitchen/mealorder/internal/domain/pricing"
)

// Service encapsulates checkout and the status lifecycle. It is the only
// component that writes order status, and it always routes writes through the
// state machine.
type Service struct {
	orders  Repository
	pricing pricing.Policy

	now            func() time.Time
	newOrderNumber func() string
}

// NewService creates an order Service with the given repository and pricing
// policy.
func NewService(orders Repository, policy pricing.Policy) *Service {
	return &Service{
		orders:         orders,
		pricing:        policy,
		now:            time.Now,
		newOrderNumber: newOrderNumber,
	}
}

// newOrderNumber generates a short, human-quotable order number. Uniqueness
// is enforced by the primary key on persist.
func newOrderNumber() string {
	id := uuid.New().String()
	return "ORD-" + strings.ToUpper(id[:8])
}

// CheckoutRequest holds the input for converting a cart into an order.
type CheckoutRequest struct {
	UserID   string
	Cart     *cart.Cart
	Delivery DeliveryDetails
	Payment  Payment
}

// Checkout freezes the cart into a new pending order: it validates delivery
// and payment details, prices the subtotal, snapshots the lines, and persists
// the order. The cart is cleared only after the create succeeds, so a failed
// checkout leaves it intact.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*Order, error) {
	if req.Cart == nil || req.Cart.IsEmpty() {
		return nil, ErrEmptyCart
	}
	if err := req.Delivery.Validate(); err != nil {
		return nil, err
	}
	if req.Payment == nil {
		return nil, &ValidationError{Field: "payment", Reason: "payment details are required"}
	}
	if err := req.Payment.Validate(); err != nil {
		return nil, err
	}

	totals := s.pricing.Compute(req.Cart.Subtotal())
	now := s.now()

	o := &Order{
		OrderNumber:   s.newOrderNumber(),
		UserID:        req.UserID,
		Items:         snapshotLines(req.Cart.Lines()),
		Subtotal:      totals.Subtotal,
		DeliveryFee:   totals.DeliveryFee,
		Tax:           totals.Tax,
		Total:         totals.Total,
		Status:        StatusPending,
		Delivery:      req.Delivery,
		Payment:       req.Payment,
		PaymentStatus: PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	req.Cart.Clear()
	return o, nil
}

// Get returns the current order snapshot.
func (s *Service) Get(ctx context.Context, orderNumber string) (*Order, error) {
	return s.orders.Get(ctx, orderNumber)
}

// ListByUser returns a patient's order history, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// List enumerates orders for staff, optionally filtered by status.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	return s.orders.List(ctx, filter)
}

// UpdateStatus applies a status transition on behalf of actor. The current
// status is fetched, the state machine validates the (current, requested)
// pair, and the write is a compare-and-swap against the fetched status: if a
// concurrent transition landed first, ErrStaleOrderState is returned and
// nothing is overwritten.
func (s *Service) UpdateStatus(ctx context.Context, orderNumber string, requested Status, actor Actor) (*Order, error) {
	current, err := s.orders.Get(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	if err := CanTransition(current.Status, requested, actor); err != nil {
		return nil, err
	}

	updatedAt := s.now()
	if err := s.orders.UpdateStatus(ctx, orderNumber, current.Status, requested, updatedAt); err != nil {
		return nil, err
	}

	current.Status = requested
	current.UpdatedAt = updatedAt
	return current, nil
}
