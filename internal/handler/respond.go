package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/carekitchen/mealorder/internal/domain/cart"
	"github.com/carekitchen/mealorder/internal/domain/menu"
	"github.com/carekitchen/mealorder/internal/domain/order"
)

// writeJSON encodes a response body with jx and writes it with the given
// status code.
func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes the standard {code, message} error body.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		})
	})
}

// writeDomainError maps domain errors onto HTTP responses. State-machine
// rejections keep their structured detail: the caller sees the attempted
// pair and the actor verbatim, not a generic "update failed".
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		vErr  *order.ValidationError
		itErr *order.InvalidTransitionError
	)
	switch {
	case errors.Is(err, order.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Error())
	case errors.As(err, &itErr):
		writeJSON(w, http.StatusConflict, func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("code", func(e *jx.Encoder) { e.Int(http.StatusConflict) })
				e.Field("message", func(e *jx.Encoder) { e.Str(itErr.Error()) })
				e.Field("from", func(e *jx.Encoder) { e.Str(string(itErr.From)) })
				e.Field("to", func(e *jx.Encoder) { e.Str(string(itErr.To)) })
				e.Field("actor", func(e *jx.Encoder) { e.Str(string(itErr.Actor)) })
				e.Field("reason", func(e *jx.Encoder) { e.Str(string(itErr.Reason)) })
			})
		})
	case errors.Is(err, order.ErrStaleOrderState):
		writeError(w, http.StatusConflict, "order status changed concurrently, refetch and retry")
	case errors.Is(err, order.ErrNotFound), errors.Is(err, menu.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func encodeDecimal(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

func encodeStrings(e *jx.Encoder, values []string) {
	e.Arr(func(e *jx.Encoder) {
		for _, v := range values {
			e.Str(v)
		}
	})
}

func encodeMenuItem(e *jx.Encoder, item menu.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(item.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(item.Name) })
		e.Field("price", func(e *jx.Encoder) { encodeDecimal(e, item.Price) })
		e.Field("category", func(e *jx.Encoder) { e.Str(item.Category) })
		e.Field("allergens", func(e *jx.Encoder) { encodeStrings(e, item.Allergens) })
		e.Field("available", func(e *jx.Encoder) { e.Bool(item.Available) })
	})
}

func encodeCart(e *jx.Encoder, c *cart.Cart) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range c.Lines() {
					encodeCartLine(e, l)
				}
			})
		})
		e.Field("subtotal", func(e *jx.Encoder) { encodeDecimal(e, c.Subtotal()) })
	})
}

func encodeCartLine(e *jx.Encoder, l cart.Line) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("menuItemId", func(e *jx.Encoder) { e.Str(l.MenuItemID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(l.Name) })
		e.Field("unitPrice", func(e *jx.Encoder) { encodeDecimal(e, l.UnitPrice) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
		e.Field("category", func(e *jx.Encoder) { e.Str(l.Category) })
		e.Field("allergens", func(e *jx.Encoder) { encodeStrings(e, l.Allergens) })
	})
}

// encodeOrder writes the full order resource. Payment echoes only the method
// and status; card and account fields never leave the server.
func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("orderNumber", func(e *jx.Encoder) { e.Str(o.OrderNumber) })
		e.Field("userId", func(e *jx.Encoder) { e.Str(o.UserID) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range o.Items {
					encodeOrderLine(e, l)
				}
			})
		})
		e.Field("subtotal", func(e *jx.Encoder) { encodeDecimal(e, o.Subtotal) })
		e.Field("deliveryFee", func(e *jx.Encoder) { encodeDecimal(e, o.DeliveryFee) })
		e.Field("tax", func(e *jx.Encoder) { encodeDecimal(e, o.Tax) })
		e.Field("totalAmount", func(e *jx.Encoder) { encodeDecimal(e, o.Total) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("delivery", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("ward", func(e *jx.Encoder) { e.Str(o.Delivery.Ward) })
				e.Field("bed", func(e *jx.Encoder) { e.Str(o.Delivery.Bed) })
				e.Field("deliveryTime", func(e *jx.Encoder) { e.Str(o.Delivery.DeliveryTime.Format(time.RFC3339)) })
				e.Field("instructions", func(e *jx.Encoder) { e.Str(o.Delivery.Instructions) })
			})
		})
		e.Field("payment", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("method", func(e *jx.Encoder) { e.Str(string(o.Payment.Method())) })
				e.Field("status", func(e *jx.Encoder) { e.Str(string(o.PaymentStatus)) })
			})
		})
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(o.CreatedAt.Format(time.RFC3339)) })
		e.Field("updatedAt", func(e *jx.Encoder) { e.Str(o.UpdatedAt.Format(time.RFC3339)) })
	})
}

func encodeOrderLine(e *jx.Encoder, l order.Line) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("menuItemId", func(e *jx.Encoder) { e.Str(l.MenuItemID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(l.Name) })
		e.Field("unitPrice", func(e *jx.Encoder) { encodeDecimal(e, l.UnitPrice) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
		e.Field("category", func(e *jx.Encoder) { e.Str(l.Category) })
		e.Field("allergens", func(e *jx.Encoder) { encodeStrings(e, l.Allergens) })
	})
}
