package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/carekitchen/mealorder/internal/domain/order"
)

type addCartItemRequest struct {
	MenuItemID string `json:"menuItemId"`
	// Quantity defaults to 1 when omitted.
	Quantity int `json:"quantity"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

type checkoutRequest struct {
	Delivery struct {
		Ward         string    `json:"ward"`
		Bed          string    `json:"bed"`
		DeliveryTime time.Time `json:"deliveryTime"`
		Instructions string    `json:"instructions"`
	} `json:"delivery"`
	Payment struct {
		Method        string `json:"method"`
		AccountNumber string `json:"accountNumber"`
		CardNumber    string `json:"cardNumber"`
		HolderName    string `json:"holderName"`
		Expiry        string `json:"expiry"`
	} `json:"payment"`
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	c := h.sessions.Cart(identityFrom(r.Context()).ID)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
}

// addCartItem merges a menu item into the session cart, snapshotting the
// item's current price. Availability is checked at add time.
func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	item, err := h.menu.GetByID(r.Context(), req.MenuItemID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if !item.Available {
		writeError(w, http.StatusUnprocessableEntity, "menu item is not available")
		return
	}

	c := h.sessions.Cart(identityFrom(r.Context()).ID)
	c.Add(*item, req.Quantity)

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity < 1 {
		writeError(w, http.StatusBadRequest, "quantity must be at least 1, use DELETE to remove the item")
		return
	}

	c := h.sessions.Cart(identityFrom(r.Context()).ID)
	c.UpdateQuantity(r.PathValue("itemID"), req.Quantity)

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	c := h.sessions.Cart(identityFrom(r.Context()).ID)
	c.Remove(r.PathValue("itemID"))
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	c := h.sessions.Cart(identityFrom(r.Context()).ID)
	c.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// checkout freezes the session cart into a pending order. Ward and bed
// default from the patient's identity when the request omits them.
func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := identityFrom(r.Context())

	delivery := order.DeliveryDetails{
		Ward:         req.Delivery.Ward,
		Bed:          req.Delivery.Bed,
		DeliveryTime: req.Delivery.DeliveryTime,
		Instructions: req.Delivery.Instructions,
	}
	if delivery.Ward == "" {
		delivery.Ward = id.Ward
	}
	if delivery.Bed == "" {
		delivery.Bed = id.Bed
	}

	payment, err := paymentFromRequest(req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	o, err := h.orders.Checkout(r.Context(), order.CheckoutRequest{
		UserID:   id.ID,
		Cart:     h.sessions.Cart(id.ID),
		Delivery: delivery,
		Payment:  payment,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func paymentFromRequest(req checkoutRequest) (order.Payment, error) {
	switch order.PaymentMethod(req.Payment.Method) {
	case order.MethodHospitalAccount:
		return order.HospitalAccount{AccountNumber: req.Payment.AccountNumber}, nil
	case order.MethodCash:
		return order.Cash{}, nil
	case order.MethodCard:
		return order.Card{
			Number:     req.Payment.CardNumber,
			HolderName: req.Payment.HolderName,
			Expiry:     req.Payment.Expiry,
		}, nil
	}
	return nil, &order.ValidationError{Field: "payment.method", Reason: "must be hospital-account, cash, or card"}
}
