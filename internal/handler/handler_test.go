package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carekitchen/mealorder/internal/domain/identity"
	"github.com/carekitchen/mealorder/internal/domain/menu"
	"github.com/carekitchen/mealorder/internal/domain/order"
	"github.com/carekitchen/mealorder/internal/domain/pricing"
	"github.com/carekitchen/mealorder/internal/session"
)

const (
	testPepper     = "test-pepper"
	patientKey     = "patient-key"
	otherPatKey    = "other-patient-key"
	staffKey       = "staff-key"
	deliveryTimeTS = "2024-06-01T12:30:00Z"
)

// --- In-memory repositories ---

type memMenuRepo struct {
	items []menu.Item
}

func (m *memMenuRepo) List(_ context.Context, availableOnly bool) ([]menu.Item, error) {
	var out []menu.Item
	for _, item := range m.items {
		if availableOnly && !item.Available {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (m *memMenuRepo) GetByID(_ context.Context, id string) (*menu.Item, error) {
	for _, item := range m.items {
		if item.ID == id {
			found := item
			return &found, nil
		}
	}
	return nil, menu.ErrNotFound
}

func (m *memMenuRepo) GetByIDs(_ context.Context, ids []string) ([]menu.Item, error) {
	var out []menu.Item
	for _, id := range ids {
		item, err := m.GetByID(context.Background(), id)
		if err != nil {
			continue
		}
		out = append(out, *item)
	}
	return out, nil
}

type memOrderRepo struct {
	orders map[string]*order.Order
}

func (m *memOrderRepo) Create(_ context.Context, o *order.Order) error {
	stored := *o
	m.orders[o.OrderNumber] = &stored
	return nil
}

func (m *memOrderRepo) Get(_ context.Context, orderNumber string) (*order.Order, error) {
	o, ok := m.orders[orderNumber]
	if !ok {
		return nil, order.ErrNotFound
	}
	snapshot := *o
	return &snapshot, nil
}

func (m *memOrderRepo) ListByUser(_ context.Context, userID string) ([]order.Order, error) {
	var out []order.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memOrderRepo) List(_ context.Context, filter order.ListFilter) ([]order.Order, error) {
	var out []order.Order
	for _, o := range m.orders {
		if filter.Status == "" || o.Status == filter.Status {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memOrderRepo) UpdateStatus(_ context.Context, orderNumber string, expected, next order.Status, updatedAt time.Time) error {
	o, ok := m.orders[orderNumber]
	if !ok {
		return order.ErrNotFound
	}
	if o.Status != expected {
		return order.ErrStaleOrderState
	}
	o.Status = next
	o.UpdatedAt = updatedAt
	return nil
}

type memIdentityRepo struct {
	byHash map[string]*identity.Identity
}

func (m *memIdentityRepo) FindByKeyHash(_ context.Context, hash string) (*identity.Identity, error) {
	id, ok := m.byHash[hash]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return id, nil
}

// --- Fixture ---

func hashKey(key string) string {
	mac := hmac.New(sha256.New, []byte(testPepper))
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

func testMenu() []menu.Item {
	return []menu.Item{
		{
			ID:        "soup",
			Name:      "Chicken Soup",
			Price:     decimal.RequireFromString("5.99"),
			Category:  "soups",
			Allergens: []string{"celery"},
			Available: true,
		},
		{
			ID:        "fish",
			Name:      "Baked Cod",
			Price:     decimal.RequireFromString("8.99"),
			Category:  "mains",
			Available: true,
		},
		{
			ID:        "tea",
			Name:      "Herbal Tea",
			Price:     decimal.RequireFromString("1.49"),
			Category:  "drinks",
			Available: false,
		},
	}
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	identities := &memIdentityRepo{byHash: map[string]*identity.Identity{
		hashKey(patientKey): {
			ID: "patient-1", Name: "A. Patient", KeyHash: hashKey(patientKey),
			Role: identity.RolePatient, Ward: "W3", Bed: "12",
		},
		hashKey(otherPatKey): {
			ID: "patient-2", Name: "B. Patient", KeyHash: hashKey(otherPatKey),
			Role: identity.RolePatient, Ward: "W1", Bed: "4",
		},
		hashKey(staffKey): {
			ID: "staff-1", Name: "Kitchen Staff", KeyHash: hashKey(staffKey),
			Role: identity.RoleStaff,
		},
	}}

	orders := order.NewService(&memOrderRepo{orders: make(map[string]*order.Order)}, pricing.DefaultPolicy())
	h := NewHandler(&memMenuRepo{items: testMenu()}, session.NewManager(), orders, identities, []byte(testPepper))
	return h.Routes()
}

func doRequest(t *testing.T, h http.Handler, method, path, apiKey string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if apiKey != "" {
		req.Header.Set(APIKeyHeader, apiKey)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []any {
	t.Helper()
	var out []any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func checkoutBody(method string) map[string]any {
	payment := map[string]any{"method": method}
	if method == "hospital-account" {
		payment["accountNumber"] = "HA-1001"
	}
	return map[string]any{
		"delivery": map[string]any{"deliveryTime": deliveryTimeTS},
		"payment":  payment,
	}
}

// placeOrder adds a soup to the patient cart and checks out, returning the
// created order number.
func placeOrder(t *testing.T, h http.Handler) string {
	t.Helper()

	rec := doRequest(t, h, http.MethodPost, "/api/cart/items", patientKey,
		map[string]any{"menuItemId": "soup", "quantity": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, h, http.MethodPost, "/api/checkout", patientKey, checkoutBody("cash"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody(t, rec)["orderNumber"].(string)
}

// --- Authentication ---

func TestAuthentication(t *testing.T) {
	h := newTestServer(t)

	rec := doRequest(t, h, http.MethodGet, "/api/menu", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing API key", decodeBody(t, rec)["message"])

	rec = doRequest(t, h, http.MethodGet, "/api/menu", "not-a-real-key", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/menu", patientKey, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoleGates(t *testing.T) {
	h := newTestServer(t)

	// Cart routes are patient-only.
	rec := doRequest(t, h, http.MethodGet, "/api/cart", staffKey, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/checkout", staffKey, checkoutBody("cash"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Actions are staff-only.
	rec = doRequest(t, h, http.MethodGet, "/api/orders/ORD-X/actions", patientKey, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// --- Menu ---

func TestListMenu_PatientSeesAvailableOnly(t *testing.T) {
	h := newTestServer(t)

	items := decodeList(t, doRequest(t, h, http.MethodGet, "/api/menu", patientKey, nil))
	assert.Len(t, items, 2)

	items = decodeList(t, doRequest(t, h, http.MethodGet, "/api/menu", staffKey, nil))
	assert.Len(t, items, 3, "staff see the full catalog")
}

func TestGetMenuItem(t *testing.T) {
	h := newTestServer(t)

	rec := doRequest(t, h, http.MethodGet, "/api/menu/soup", patientKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Chicken Soup", body["name"])
	assert.Equal(t, 5.99, body["price"])

	rec = doRequest(t, h, http.MethodGet, "/api/menu/unknown", patientKey, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// --- Cart ---

func TestCartFlow(t *testing.T) {
	h := newTestServer(t)

	// Add twice: the lines merge.
	doRequest(t, h, http.MethodPost, "/api/cart/items", patientKey,
		map[string]any{"menuItemId": "soup", "quantity": 1})
	rec := doRequest(t, h, http.MethodPost, "/api/cart/items", patientKey,
		map[string]any{"menuItemId": "soup", "quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, float64(3), items[0].(map[string]any)["quantity"])
	assert.Equal(t, 17.97, body["subtotal"])

	// Update the quantity.
	rec = doRequest(t, h, http.MethodPatch, "/api/cart/items/soup", patientKey,
		map[string]any{"quantity": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5.99, decodeBody(t, rec)["subtotal"])

	// Remove, then the cart is empty.
	rec = doRequest(t, h, http.MethodDelete, "/api/cart/items/soup", patientKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody(t, rec)["items"])
}

func TestAddCartItem_DefaultsQuantityToOne(t *testing.T) {
	h := newTestServer(t)

	rec := doRequest(t, h, http.MethodPost, "/api/cart/items", patientKey,
		map[string]any{"menuItemId": "soup"})
	require.Equal(t, http.StatusOK, rec.Code)
	items := decodeBody(t, rec)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, float64(1), items[0].(map[string]any)["quantity"])
}

func TestAddCartItem_Rejections(t *testing.T) {
	h := newTestServer(t)

	rec := doRequest(t, h, http.MethodPost, "/api/cart/items", patientKey,
		map[string]any{"menuItemId": "unknown"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/cart/items", patientKey,
		map[string]any{"menuItemId": "tea"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUpdateCartItem_RejectsQuantityBelowOne(t *testing.T) {
	h := newTestServer(t)
	doRequest(t, h, http.MethodPost, "/api/cart/items", patientKey,
		map[string]any{"menuItemId": "soup"})

	rec := doRequest(t, h, http.MethodPatch, "/api/cart/items/soup", patientKey,
		map[string]any{"quantity": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearCart(t *testing.T) {
	h := newTestServer(t)
	doRequest(t, h, http.MethodPost, "/api/cart/items", patientKey,
		map[string]any{"menuItemId": "soup"})

	rec := doRequest(t, h, http.MethodDelete, "/api/cart", patientKey, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/cart", patientKey, nil)
	assert.Empty(t, decodeBody(t, rec)["items"])
}

func TestCart_IsolatedPerPatient(t *testing.T) {
	h := newTestServer(t)
	doRequest(t, h, http.MethodPost, "/api/cart/items", patientKey,
		map[string]any{"menuItemId": "soup"})

	rec := doRequest(t, h, http.MethodGet, "/api/cart", otherPatKey, nil)
	assert.Empty(t, decodeBody(t, rec)["items"])
}

// --- Checkout ---

func TestCheckout(t *testing.T) {
	h := newTestServer(t)
	doRequest(t, h, http.MethodPost, "/api/cart/items", patientKey,
		map[string]any{"menuItemId": "soup"})

	rec := doRequest(t, h, http.MethodPost, "/api/checkout", patientKey, checkoutBody("hospital-account"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, 5.99, body["subtotal"])
	assert.Equal(t, float64(0), body["deliveryFee"])
	assert.Equal(t, 0.30, body["tax"])
	assert.Equal(t, 6.29, body["totalAmount"])

	// Ward and bed defaulted from the patient's identity.
	delivery := body["delivery"].(map[string]any)
	assert.Equal(t, "W3", delivery["ward"])
	assert.Equal(t, "12", delivery["bed"])

	// Payment echoes only method and status.
	payment := body["payment"].(map[string]any)
	assert.Equal(t, "hospital-account", payment["method"])
	assert.Equal(t, "pending", payment["status"])
	assert.NotContains(t, rec.Body.String(), "HA-1001")

	// Checkout drains the cart.
	rec = doRequest(t, h, http.MethodGet, "/api/cart", patientKey, nil)
	assert.Empty(t, decodeBody(t, rec)["items"])
}

func TestCheckout_EmptyCart(t *testing.T) {
	h := newTestServer(t)

	rec := doRequest(t, h, http.MethodPost, "/api/checkout", patientKey, checkoutBody("cash"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckout_UnknownPaymentMethod(t *testing.T) {
	h := newTestServer(t)
	doRequest(t, h, http.MethodPost, "/api/cart/items", patientKey,
		map[string]any{"menuItemId": "soup"})

	rec := doRequest(t, h, http.MethodPost, "/api/checkout", patientKey, checkoutBody("bitcoin"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// The failed checkout leaves the cart intact.
	rec = doRequest(t, h, http.MethodGet, "/api/cart", patientKey, nil)
	assert.Len(t, decodeBody(t, rec)["items"], 1)
}

// --- Orders ---

func TestListOrders(t *testing.T) {
	h := newTestServer(t)
	orderNumber := placeOrder(t, h)

	// The owner sees it.
	orders := decodeList(t, doRequest(t, h, http.MethodGet, "/api/orders", patientKey, nil))
	require.Len(t, orders, 1)
	assert.Equal(t, orderNumber, orders[0].(map[string]any)["orderNumber"])

	// Another patient does not.
	orders = decodeList(t, doRequest(t, h, http.MethodGet, "/api/orders", otherPatKey, nil))
	assert.Empty(t, orders)

	// Staff see the full book and can filter by status.
	orders = decodeList(t, doRequest(t, h, http.MethodGet, "/api/orders", staffKey, nil))
	assert.Len(t, orders, 1)

	orders = decodeList(t, doRequest(t, h, http.MethodGet, "/api/orders?status=delivered", staffKey, nil))
	assert.Empty(t, orders)

	rec := doRequest(t, h, http.MethodGet, "/api/orders?status=shipped", staffKey, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrder_OwnershipBoundary(t *testing.T) {
	h := newTestServer(t)
	orderNumber := placeOrder(t, h)
	path := fmt.Sprintf("/api/orders/%s", orderNumber)

	rec := doRequest(t, h, http.MethodGet, path, patientKey, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodGet, path, staffKey, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Another patient gets a 404, not a 403, so order numbers cannot be probed.
	rec = doRequest(t, h, http.MethodGet, path, otherPatKey, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateOrderStatus_StaffSequence(t *testing.T) {
	h := newTestServer(t)
	orderNumber := placeOrder(t, h)
	path := fmt.Sprintf("/api/orders/%s/status", orderNumber)

	for _, status := range []string{"accepted", "processing", "ready", "delivered"} {
		rec := doRequest(t, h, http.MethodPost, path, staffKey, map[string]any{"status": status})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, status, decodeBody(t, rec)["status"])
	}
}

func TestUpdateOrderStatus_PatientCancelAfterAccept(t *testing.T) {
	h := newTestServer(t)
	orderNumber := placeOrder(t, h)
	path := fmt.Sprintf("/api/orders/%s/status", orderNumber)

	rec := doRequest(t, h, http.MethodPost, path, staffKey, map[string]any{"status": "accepted"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodPost, path, patientKey, map[string]any{"status": "cancelled"})
	require.Equal(t, http.StatusConflict, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "accepted", body["from"])
	assert.Equal(t, "cancelled", body["to"])
	assert.Equal(t, "patient", body["actor"])
	assert.Equal(t, "wrong-state", body["reason"])
}

func TestUpdateOrderStatus_PatientCancelsPending(t *testing.T) {
	h := newTestServer(t)
	orderNumber := placeOrder(t, h)
	path := fmt.Sprintf("/api/orders/%s/status", orderNumber)

	rec := doRequest(t, h, http.MethodPost, path, patientKey, map[string]any{"status": "cancelled"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "cancelled", decodeBody(t, rec)["status"])
}

func TestUpdateOrderStatus_PatientCannotAdvance(t *testing.T) {
	h := newTestServer(t)
	orderNumber := placeOrder(t, h)
	path := fmt.Sprintf("/api/orders/%s/status", orderNumber)

	rec := doRequest(t, h, http.MethodPost, path, patientKey, map[string]any{"status": "accepted"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "wrong-actor", decodeBody(t, rec)["reason"])
}

func TestUpdateOrderStatus_ForeignOrderIsNotFound(t *testing.T) {
	h := newTestServer(t)
	orderNumber := placeOrder(t, h)
	path := fmt.Sprintf("/api/orders/%s/status", orderNumber)

	rec := doRequest(t, h, http.MethodPost, path, otherPatKey, map[string]any{"status": "cancelled"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateOrderStatus_UnknownStatus(t *testing.T) {
	h := newTestServer(t)
	orderNumber := placeOrder(t, h)
	path := fmt.Sprintf("/api/orders/%s/status", orderNumber)

	rec := doRequest(t, h, http.MethodPost, path, staffKey, map[string]any{"status": "shipped"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Actions ---

func TestOrderActions(t *testing.T) {
	h := newTestServer(t)
	orderNumber := placeOrder(t, h)
	path := fmt.Sprintf("/api/orders/%s/actions", orderNumber)

	rec := doRequest(t, h, http.MethodGet, path, staffKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "pending", body["status"])
	actions := body["actions"].([]any)
	require.Len(t, actions, 1)
	action := actions[0].(map[string]any)
	assert.Equal(t, "Accept Order", action["label"])
	assert.Equal(t, "accepted", action["nextStatus"])

	// Terminal orders have no next action.
	statusPath := fmt.Sprintf("/api/orders/%s/status", orderNumber)
	for _, status := range []string{"accepted", "processing", "ready", "delivered"} {
		doRequest(t, h, http.MethodPost, statusPath, staffKey, map[string]any{"status": status})
	}
	rec = doRequest(t, h, http.MethodGet, path, staffKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody(t, rec)["actions"])
}
