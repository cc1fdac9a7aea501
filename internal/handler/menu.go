package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/carekitchen/mealorder/internal/domain/identity"
)

// listMenu returns the menu. Patients see only available items; staff see
// the full catalog, including items currently off the menu.
func (h *Handler) listMenu(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	availableOnly := id == nil || id.Role != identity.RoleStaff

	items, err := h.menu.List(r.Context(), availableOnly)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, item := range items {
				encodeMenuItem(e, item)
			}
		})
	})
}

func (h *Handler) getMenuItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.menu.GetByID(r.Context(), r.PathValue("itemID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeMenuItem(e, *item)
	})
}
