package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/rx_cart/storefront/internal/checkout"
	"github.com/fjod/rx_cart/storefront/internal/payment"
	"github.com/fjod/rx_cart/storefront/internal/session"
	"github.com/fjod/rx_cart/storefront/internal/statuslog"
	"github.com/fjod/rx_cart/storefront/internal/storage/storagetest"
	"github.com/fjod/rx_cart/storefront/internal/tracking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sandboxSecret = "router-secret"

type downLog struct{}

func (downLog) Append(context.Context, statuslog.Record) error {
	return errors.New("unreachable")
}

type testServer struct {
	handler  http.Handler
	sessions *session.Registry
	log      *statuslog.Memory
	mr       *miniredis.Miniredis
}

func newTestServer(t *testing.T, gateway payment.Gateway, appender statuslog.Appender) *testServer {
	t.Helper()
	store, mr := storagetest.NewRedisStore(t)
	mem := statuslog.NewMemory()
	if appender == nil {
		appender = mem
	}
	if gateway == nil {
		gateway = payment.Sandbox{Secret: sandboxSecret}
	}
	sessions := session.NewRegistry(store, nil, nil)
	orch := checkout.NewOrchestrator(gateway, appender, nil, checkout.DefaultConfig(), nil)

	return &testServer{
		handler: NewRouter(Deps{
			Sessions:       sessions,
			Checkout:       orch,
			Projector:      tracking.NewProjector(mem, tracking.ModeStatus, 0, nil),
			RequestTimeout: 5 * time.Second,
		}),
		sessions: sessions,
		log:      mem,
		mr:       mr,
	}
}

func (s *testServer) do(t *testing.T, method, path, sessionID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func addItem(id, price string) map[string]string {
	return map[string]string{"id": id, "name": "Item " + id, "price": price, "brand": "Cipla"}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil, nil)
	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessionHeaderRequired(t *testing.T) {
	s := newTestServer(t, nil, nil)

	w := s.do(t, http.MethodGet, "/api/v1/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/cart", "bad:id", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_session", decode[ErrorResponse](t, w).Code)
}

func TestCartEndpoints(t *testing.T) {
	s := newTestServer(t, nil, nil)

	w := s.do(t, http.MethodPost, "/api/v1/cart/items", "s1", addItem("A", "100.00"))
	require.Equal(t, http.StatusCreated, w.Code)
	w = s.do(t, http.MethodPost, "/api/v1/cart/items", "s1", addItem("A", "100.00"))
	require.Equal(t, http.StatusCreated, w.Code)

	cart := decode[CartResponseDTO](t, w)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, "200.00", cart.Subtotal)
	assert.Equal(t, "10.00", cart.Tax)
	assert.Equal(t, "210.00", cart.Total)

	w = s.do(t, http.MethodPut, "/api/v1/cart/items/A", "s1", map[string]int{"quantity": 5})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, decode[CartResponseDTO](t, w).ItemCount)

	w = s.do(t, http.MethodPut, "/api/v1/cart/items/A", "s1", map[string]int{"quantity": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_quantity", decode[ErrorResponse](t, w).Code)

	// other sessions see their own cart
	w = s.do(t, http.MethodGet, "/api/v1/cart", "s2", nil)
	assert.Empty(t, decode[CartResponseDTO](t, w).Items)

	w = s.do(t, http.MethodDelete, "/api/v1/cart/items/A", "s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[CartResponseDTO](t, w).Items)

	s.do(t, http.MethodPost, "/api/v1/cart/items", "s1", addItem("B", "3"))
	w = s.do(t, http.MethodDelete, "/api/v1/cart", "s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[CartResponseDTO](t, w).Items)
}

func TestCart_StorageDownDoesNotLoseCart(t *testing.T) {
	s := newTestServer(t, nil, nil)

	s.do(t, http.MethodPost, "/api/v1/cart/items", "s1", addItem("A", "100.00"))
	s.do(t, http.MethodPost, "/api/v1/cart/items", "s1", addItem("B", "5.00"))
	require.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, "/api/v1/session", "s1", nil).Code)

	s.mr.SetError("ERR backend unavailable")
	w := s.do(t, http.MethodGet, "/api/v1/cart", "s1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "storage_unavailable", decode[ErrorResponse](t, w).Code)
	s.mr.SetError("")

	w = s.do(t, http.MethodGet, "/api/v1/cart", "s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[CartResponseDTO](t, w).Items, 2)
}

func TestAddItem_Validation(t *testing.T) {
	s := newTestServer(t, nil, nil)

	w := s.do(t, http.MethodPost, "/api/v1/cart/items", "s1", addItem("", "1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/cart/items", "s1", addItem("A", "-1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_price", decode[ErrorResponse](t, w).Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", bytes.NewBufferString("{"))
	req.Header.Set(SessionHeader, "s1")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func checkoutAndPay(t *testing.T, s *testServer, sessionID string) (CheckoutAttemptDTO, *httptest.ResponseRecorder) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/checkout", sessionID, map[string]string{"total": "210.00"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	attempt := decode[CheckoutAttemptDTO](t, w)

	resp := payment.Response{
		PaymentID:      "pay_123",
		GatewayOrderID: attempt.OrderID,
		Signature:      payment.Sign(sandboxSecret, attempt.OrderID, "pay_123"),
	}
	return attempt, s.do(t, http.MethodPost, attempt.CallbackURL, sessionID, resp)
}

func TestCheckoutFlow(t *testing.T) {
	s := newTestServer(t, nil, nil)
	s.do(t, http.MethodPost, "/api/v1/cart/items", "s1", addItem("A", "100.00"))
	s.do(t, http.MethodPost, "/api/v1/cart/items", "s1", addItem("A", "100.00"))

	attempt, w := checkoutAndPay(t, s, "s1")
	assert.Equal(t, int64(21000), attempt.Amount)
	assert.Equal(t, "INR", attempt.Currency)
	assert.Equal(t, "Online Pharmacy", attempt.Name)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	done := decode[CheckoutCompletedDTO](t, w)
	assert.Equal(t, "pay_123", done.Order.TransactionID)
	assert.Equal(t, "210.00", done.Order.Amount.StringFixed(2))

	w = s.do(t, http.MethodGet, "/api/v1/cart", "s1", nil)
	assert.Empty(t, decode[CartResponseDTO](t, w).Items)

	w = s.do(t, http.MethodGet, "/api/v1/orders", "s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	orders := decode[OrdersResponseDTO](t, w)
	require.Len(t, orders.Orders, 1)

	w = s.do(t, http.MethodGet, "/api/v1/orders/latest", "s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[tracking.View](t, w)
	assert.Equal(t, done.Order.TrackingID, view.TrackingID)
	assert.Equal(t, 25, view.Progress)

	w = s.do(t, http.MethodGet, "/api/v1/orders/"+done.Order.TrackingID, "s1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/orders/"+done.Order.TrackingID+"/status", "s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Processing", string(decode[tracking.View](t, w).Status))

	// the same callback again is rejected
	resp := payment.Response{PaymentID: "pay_123", GatewayOrderID: attempt.OrderID, Signature: payment.Sign(sandboxSecret, attempt.OrderID, "pay_123")}
	w = s.do(t, http.MethodPost, attempt.CallbackURL, "s1", resp)
	assert.Equal(t, http.StatusConflict, w.Code)

	// another session cannot see the order or the attempt
	w = s.do(t, http.MethodGet, "/api/v1/orders/"+done.Order.TrackingID, "s2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(t, http.MethodPost, attempt.CallbackURL, "s2", resp)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckout_StatusLogDownKeepsCart(t *testing.T) {
	s := newTestServer(t, nil, downLog{})
	s.do(t, http.MethodPost, "/api/v1/cart/items", "s1", addItem("A", "100.00"))
	s.do(t, http.MethodPost, "/api/v1/cart/items", "s1", addItem("A", "100.00"))

	_, w := checkoutAndPay(t, s, "s1")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "status_log_failed", decode[ErrorResponse](t, w).Code)

	w = s.do(t, http.MethodGet, "/api/v1/cart", "s1", nil)
	cart := decode[CartResponseDTO](t, w)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)

	w = s.do(t, http.MethodGet, "/api/v1/orders", "s1", nil)
	assert.Empty(t, decode[OrdersResponseDTO](t, w).Orders)
	w = s.do(t, http.MethodGet, "/api/v1/orders/latest", "s1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// a new checkout cannot displace the paid one
	w = s.do(t, http.MethodPost, "/api/v1/checkout", "s1", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "payment_in_progress", decode[ErrorResponse](t, w).Code)

	// the paid attempt keeps the session alive until it is retried
	w = s.do(t, http.MethodDelete, "/api/v1/session", "s1", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "payment_in_progress", decode[ErrorResponse](t, w).Code)
	assert.Equal(t, 1, s.sessions.Len())
}

func TestCheckout_Errors(t *testing.T) {
	s := newTestServer(t, payment.Disabled{}, nil)

	w := s.do(t, http.MethodPost, "/api/v1/checkout", "s1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "empty_cart", decode[ErrorResponse](t, w).Code)

	s.do(t, http.MethodPost, "/api/v1/cart/items", "s1", addItem("A", "10"))
	w = s.do(t, http.MethodPost, "/api/v1/checkout", "s1", map[string]string{"total": "abc"})
	assert.Equal(t, "invalid_amount", decode[ErrorResponse](t, w).Code)

	w = s.do(t, http.MethodPost, "/api/v1/checkout", "s1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "payment_unavailable", decode[ErrorResponse](t, w).Code)

	w = s.do(t, http.MethodPost, "/api/v1/checkout/nope/callback", "s1", payment.Response{PaymentID: "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckout_CancelAndSessionEnd(t *testing.T) {
	s := newTestServer(t, nil, nil)
	s.do(t, http.MethodPost, "/api/v1/cart/items", "s1", addItem("A", "10"))

	w := s.do(t, http.MethodPost, "/api/v1/checkout", "s1", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	attempt := decode[CheckoutAttemptDTO](t, w)

	w = s.do(t, http.MethodDelete, "/api/v1/checkout/"+attempt.AttemptID, "s2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodDelete, "/api/v1/checkout/"+attempt.AttemptID, "s1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, attempt.CallbackURL, "s1", payment.Response{
		PaymentID:      "pay_9",
		GatewayOrderID: attempt.OrderID,
		Signature:      payment.Sign(sandboxSecret, attempt.OrderID, "pay_9"),
	})
	assert.Equal(t, http.StatusGone, w.Code)

	w = s.do(t, http.MethodDelete, "/api/v1/session", "s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	// cart survives the session, like browser storage does
	w = s.do(t, http.MethodGet, "/api/v1/cart", "s1", nil)
	assert.Len(t, decode[CartResponseDTO](t, w).Items, 1)
}
