// Package handler exposes the ordering API over HTTP. Handlers are thin:
// they decode requests, delegate to the domain, and map domain errors onto
// structured responses.
package handler

import (
	"net/http"

	"github.com/carekitchen/mealorder/internal/domain/identity"
	"github.com/carekitchen/mealorder/internal/domain/menu"
	"github.com/carekitchen/mealorder/internal/domain/order"
	"github.com/carekitchen/mealorder/internal/session"
)

// Handler serves the meal-ordering API.
type Handler struct {
	menu       menu.Repository
	sessions   *session.Manager
	orders     *order.Service
	identities identity.Repository
	pepper     []byte
}

// NewHandler constructs a Handler with the required domain dependencies.
// pepper is the HMAC secret used to hash presented API keys.
func NewHandler(
	menuRepo menu.Repository,
	sessions *session.Manager,
	orders *order.Service,
	identities identity.Repository,
	pepper []byte,
) *Handler {
	return &Handler{
		menu:       menuRepo,
		sessions:   sessions,
		orders:     orders,
		identities: identities,
		pepper:     pepper,
	}
}

// Routes returns the API route table. All routes require an authenticated
// identity; cart and checkout routes additionally require the patient role.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/menu", h.listMenu)
	mux.HandleFunc("GET /api/menu/{itemID}", h.getMenuItem)

	mux.HandleFunc("GET /api/cart", h.patientOnly(h.getCart))
	mux.HandleFunc("POST /api/cart/items", h.patientOnly(h.addCartItem))
	mux.HandleFunc("PATCH /api/cart/items/{itemID}", h.patientOnly(h.updateCartItem))
	mux.HandleFunc("DELETE /api/cart/items/{itemID}", h.patientOnly(h.removeCartItem))
	mux.HandleFunc("DELETE /api/cart", h.patientOnly(h.clearCart))
	mux.HandleFunc("POST /api/checkout", h.patientOnly(h.checkout))

	mux.HandleFunc("GET /api/orders", h.listOrders)
	mux.HandleFunc("GET /api/orders/{orderNumber}", h.getOrder)
	mux.HandleFunc("POST /api/orders/{orderNumber}/status", h.updateOrderStatus)
	mux.HandleFunc("GET /api/orders/{orderNumber}/actions", h.staffOnly(h.orderActions))

	return h.authenticate(mux)
}
