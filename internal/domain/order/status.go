package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Status is the lifecycle state of an order.
type Status string

const (
	// StatusPending is the initial status, set at order creation.
	StatusPending Status = "pending"
	// StatusAccepted means the kitchen has accepted the order.
	StatusAccepted Status = "accepted"
	// StatusProcessing means the meal is being prepared.
	StatusProcessing Status = "processing"
	// StatusReady means the meal is ready for delivery.
	StatusReady Status = "ready"
	// StatusDelivered is the terminal success status.
	StatusDelivered Status = "delivered"
	// StatusCancelled is the terminal abort status.
	StatusCancelled Status = "cancelled"
)

// ParseStatus validates a raw status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusAccepted, StatusProcessing, StatusReady, StatusDelivered, StatusCancelled:
		return Status(s), nil
	}
	return "", errors.Errorf("unknown order status %q", s)
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Actor identifies who is requesting a status transition.
type Actor string

const (
	ActorPatient Actor = "patient"
	ActorStaff   Actor = "staff"
)

// TransitionReason classifies why a transition was rejected, so callers can
// render the right message.
type TransitionReason string

const (
	// ReasonWrongState means the requested edge does not exist from the
	// current status, regardless of actor.
	ReasonWrongState TransitionReason = "wrong-state"
	// ReasonWrongActor means the edge exists but not for this actor.
	ReasonWrongActor TransitionReason = "wrong-actor"
)

// InvalidTransitionError rejects a status change that violates the state
// machine. It carries the attempted pair and the actor, never coercing the
// request to a neighboring valid state.
type InvalidTransitionError struct {
	From   Status
	To     Status
	Actor  Actor
	Reason TransitionReason
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason == ReasonWrongActor {
		if e.To == StatusCancelled {
			return fmt.Sprintf("%s may not cancel a %s order: patients may only cancel pending orders", e.Actor, e.From)
		}
		return fmt.Sprintf("%s may not move an order from %s to %s", e.Actor, e.From, e.To)
	}
	return fmt.Sprintf("cannot move an order from %s to %s", e.From, e.To)
}

// ErrStaleOrderState is returned when a concurrent transition changed the
// order's status before this request's write landed. The caller must refetch
// and decide whether to retry.
var ErrStaleOrderState = errors.New("order status changed concurrently")

// staffFlow is the strictly sequential fulfilment path. Staff may only
// advance one step at a time; there is no skipping.
var staffFlow = map[Status]Status{
	StatusPending:    StatusAccepted,
	StatusAccepted:   StatusProcessing,
	StatusProcessing: StatusReady,
	StatusReady:      StatusDelivered,
}

// actionLabels maps each valid staff edge to the human-readable action shown
// in the fulfilment UI. Pure lookup, not state.
var actionLabels = map[Status]string{
	StatusPending:    "Accept Order",
	StatusAccepted:   "Start Preparing",
	StatusProcessing: "Mark Ready",
	StatusReady:      "Mark Delivered",
}

// CanTransition validates the (from, to) pair for the given actor. It returns
// nil for the four sequential staff edges and for the patient's
// pending→cancelled edge, and an *InvalidTransitionError for everything else.
func CanTransition(from, to Status, actor Actor) error {
	reject := func(reason TransitionReason) error {
		return &InvalidTransitionError{From: from, To: to, Actor: actor, Reason: reason}
	}

	if to == StatusCancelled {
		// Cancellation exists only as the patient's pending-only edge.
		if from != StatusPending {
			return reject(ReasonWrongState)
		}
		if actor != ActorPatient {
			return reject(ReasonWrongActor)
		}
		return nil
	}

	next, ok := staffFlow[from]
	if !ok || next != to {
		return reject(ReasonWrongState)
	}
	if actor != ActorStaff {
		return reject(ReasonWrongActor)
	}
	return nil
}

// NextAction returns the staff action label for advancing an order from its
// current status, and the status that action leads to. ok is false for
// terminal statuses.
func NextAction(from Status) (label string, next Status, ok bool) {
	next, ok = staffFlow[from]
	if !ok {
		return "", "", false
	}
	return actionLabels[from], next, true
}
