package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/jx"

	"github.com/carekitchen/mealorder/internal/domain/identity"
	"github.com/carekitchen/mealorder/internal/domain/order"
)

type updateStatusRequest struct {
	Status string `json:"status"`
}

// listOrders returns the caller's order history for patients, and the full
// order book (optionally filtered by ?status=) for staff.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())

	var (
		orders []order.Order
		err    error
	)
	if id.Role == identity.RoleStaff {
		filter := order.ListFilter{}
		if raw := r.URL.Query().Get("status"); raw != "" {
			status, parseErr := order.ParseStatus(raw)
			if parseErr != nil {
				writeError(w, http.StatusBadRequest, parseErr.Error())
				return
			}
			filter.Status = status
		}
		orders, err = h.orders.List(r.Context(), filter)
	} else {
		orders, err = h.orders.ListByUser(r.Context(), id.ID)
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range orders {
				encodeOrder(e, &orders[i])
			}
		})
	})
}

// getOrder returns an order snapshot. Patients may only read their own
// orders; this is the endpoint the tracking client polls.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())

	o, err := h.orders.Get(r.Context(), r.PathValue("orderNumber"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if id.Role != identity.RoleStaff && o.UserID != id.ID {
		// Not-found rather than forbidden: order numbers of other patients
		// should not be probeable.
		writeError(w, http.StatusNotFound, order.ErrNotFound.Error())
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// updateOrderStatus is the sole status mutation entrypoint. The actor role
// comes from the authenticated identity, so a patient cannot impersonate
// staff by crafting a request body.
func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	requested, err := order.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := identityFrom(r.Context())

	if id.Role != identity.RoleStaff {
		// Patients may only touch their own orders.
		o, err := h.orders.Get(r.Context(), r.PathValue("orderNumber"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		if o.UserID != id.ID {
			writeError(w, http.StatusNotFound, order.ErrNotFound.Error())
			return
		}
	}

	o, err := h.orders.UpdateStatus(r.Context(), r.PathValue("orderNumber"), requested, id.Actor())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// orderActions tells the fulfilment UI which action advances the order next,
// e.g. "Accept Order" for a pending order. Terminal orders have none.
func (h *Handler) orderActions(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), r.PathValue("orderNumber"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
			e.Field("actions", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					if label, next, ok := order.NextAction(o.Status); ok {
						e.Obj(func(e *jx.Encoder) {
							e.Field("label", func(e *jx.Encoder) { e.Str(label) })
							e.Field("nextStatus", func(e *jx.Encoder) { e.Str(string(next)) })
						})
					}
				})
			})
		})
	})
}
