// Package identity defines the authenticated caller boundary: who is making
// a request, which role they act in, and the ward/bed used to default
// delivery details at checkout.
package identity

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/carekitchen/mealorder/internal/domain/order"
)

// ErrNotFound is returned when no identity matches the presented credentials.
var ErrNotFound = errors.New("identity not found")

// Role distinguishes patients from fulfilment staff.
type Role string

const (
	RolePatient Role = "patient"
	RoleStaff   Role = "staff"
)

// Identity is an authenticated caller.
type Identity struct {
	ID      string
	Name    string
	KeyHash string
	Role    Role
	// Ward and Bed are set for patients and default the delivery details
	// at checkout.
	Ward string
	Bed  string
}

// Actor maps the identity's role onto the state-machine actor.
func (i *Identity) Actor() order.Actor {
	if i.Role == RoleStaff {
		return order.ActorStaff
	}
	return order.ActorPatient
}

// Repository provides identity lookup by HMAC-SHA256 API key hash.
type Repository interface {
	FindByKeyHash(ctx context.Context, hash string) (*Identity, error)
}
