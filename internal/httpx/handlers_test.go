package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-shop-orders/internal/apperr"
	"github.com/ariefcatur/go-shop-orders/internal/cart"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeOrders struct {
	checkouts []error
	calls     int
}

func (f *fakeOrders) Materialize(_ context.Context, _ string, ship orders.Shipping) (orders.CheckoutResult, error) {
	f.calls++
	if len(f.checkouts) > 0 {
		err := f.checkouts[0]
		f.checkouts = f.checkouts[1:]
		if err != nil {
			return orders.CheckoutResult{}, err
		}
	}
	return orders.CheckoutResult{OrderID: fmt.Sprintf("o-%d", f.calls), TotalCents: 500}, nil
}

func (f *fakeOrders) SetStatus(_ context.Context, orderID, status string, tn *string) (orders.StatusChange, error) {
	st, err := orders.ParseStatus(status)
	if err != nil {
		return orders.StatusChange{}, err
	}
	return orders.StatusChange{OrderID: orderID, From: orders.StatusPaid, To: st, TrackingNo: tn}, nil
}

func (f *fakeOrders) SetPaymentStatus(context.Context, string, string) (orders.PaymentChange, error) {
	return orders.PaymentChange{}, errors.New("db gone")
}

func (f *fakeOrders) UploadPayment(context.Context, string, string, string) (orders.Payment, error) {
	return orders.Payment{}, fmt.Errorf("tx: %w", apperr.ErrTransient)
}

type fakeReader struct {
	statusCalls int
}

func (f *fakeReader) Get(_ context.Context, orderID, userID string) (orders.Detail, error) {
	if userID != "" && userID != "u1" {
		return orders.Detail{}, apperr.ErrNotFound
	}
	return orders.Detail{Order: orders.Order{ID: orderID, UserID: "u1"}}, nil
}

func (f *fakeReader) ListByUser(context.Context, string) ([]orders.Summary, error) {
	return []orders.Summary{}, nil
}

func (f *fakeReader) List(_ context.Context, status string) ([]orders.Summary, error) {
	if _, err := orders.ParseStatus(status); status != "" && err != nil {
		return nil, err
	}
	return []orders.Summary{}, nil
}

func (f *fakeReader) GetStatus(_ context.Context, orderID string) (orders.StatusView, error) {
	f.statusCalls++
	return orders.StatusView{OrderID: orderID, UserID: "u1", Status: orders.StatusPaid,
		UpdatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}, nil
}

type fakeCart struct{}

func (fakeCart) AddLine(_ context.Context, _ string, productID int64, qty int) (cart.LineState, error) {
	if qty <= 0 {
		return cart.LineState{}, apperr.ErrInvalidQuantity
	}
	return cart.LineState{CartID: 1, ProductID: productID, Qty: qty, ItemsCount: qty}, nil
}

func (fakeCart) SetLineQty(context.Context, string, int64, int) (cart.LineState, error) {
	return cart.LineState{}, apperr.OutOfStock(apperr.StockDetail{ProductID: 7, Required: 9, Available: 2})
}

func (fakeCart) RemoveLine(context.Context, string, int64) error { return nil }

func (fakeCart) View(context.Context, string) (cart.View, error) {
	return cart.View{Items: []cart.Item{}}, nil
}

type fixture struct {
	srv    http.Handler
	orders *fakeOrders
	reader *fakeReader
	cache  *redisx.StatusCache
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := fixture{orders: &fakeOrders{}, reader: &fakeReader{}, cache: &redisx.StatusCache{RDB: rdb}}
	r := NewRouter(zap.NewNop(), nil)
	Handlers{
		Catalog: &CatalogHandler{},
		Cart:    &CartHandler{Cart: fakeCart{}},
		Orders: &OrdersHandler{
			Orders: f.orders,
			Reader: f.reader,
			Idem:   &redisx.Idempotency{RDB: rdb},
			Cache:  f.cache,
		},
		Reports: &ReportsHandler{},
	}.Mount(r)
	f.srv = r
	return f
}

func (f fixture) do(method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func asUser(extra ...string) map[string]string {
	h := map[string]string{headerUserID: "u1"}
	for i := 0; i+1 < len(extra); i += 2 {
		h[extra[i]] = extra[i+1]
	}
	return h
}

func body(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

const shipBody = `{"recipient_name":"Budi","ship_address":"Jl. Mawar 1"}`

func TestConfirmReplaysIdempotencyKey(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/checkout/confirm", shipBody, asUser(headerIdempotencyKey, "k1"))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "o-1", body(t, rec)["order_id"])

	rec = f.do(http.MethodPost, "/checkout/confirm", shipBody, asUser(headerIdempotencyKey, "k1"))
	require.Equal(t, http.StatusOK, rec.Code)
	b := body(t, rec)
	assert.Equal(t, "o-1", b["order_id"])
	assert.Equal(t, true, b["idempotent"])
	assert.Equal(t, 1, f.orders.calls)
}

func TestConfirmReleasesKeyOnFailure(t *testing.T) {
	f := newFixture(t)
	f.orders.checkouts = []error{apperr.ErrEmptyCart}

	rec := f.do(http.MethodPost, "/checkout/confirm", shipBody, asUser(headerIdempotencyKey, "k1"))
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "EMPTY_CART", body(t, rec)["code"])

	rec = f.do(http.MethodPost, "/checkout/confirm", shipBody, asUser(headerIdempotencyKey, "k1"))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 2, f.orders.calls)
}

func TestConfirmWithoutKeyAlwaysRuns(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodPost, "/checkout/confirm", shipBody, asUser())
	f.do(http.MethodPost, "/checkout/confirm", shipBody, asUser())
	assert.Equal(t, 2, f.orders.calls)
}

func TestConfirmRejectsUnknownFields(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/checkout/confirm", `{"recipient":"x"}`, asUser())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, f.orders.calls)
}

func TestIdentityHeaders(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/cart", "", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/cart", "", asUser()).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/admin/orders", "", asUser()).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/admin/orders", "", asUser(headerRole, "admin")).Code)
}

func TestOutOfStockCarriesDetails(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPut, "/cart/items/7", `{"qty":9}`, asUser())
	require.Equal(t, http.StatusConflict, rec.Code)
	b := body(t, rec)
	assert.Equal(t, "OUT_OF_STOCK", b["code"])
	details := b["details"].([]any)
	require.Len(t, details, 1)
	assert.Equal(t, float64(2), details[0].(map[string]any)["available"])
}

func TestBadPathID(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodDelete, "/cart/items/abc", "", asUser())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", body(t, rec)["code"])
}

func TestOtherUsersOrderIsNotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/orders/o-9", "", map[string]string{headerUserID: "u2"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// admin reads without the owner scope
	rec = f.do(http.MethodGet, "/admin/orders/o-9", "", map[string]string{headerUserID: "u2", headerRole: "admin"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusReadsThroughCache(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/orders/o-1/status", "", asUser())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "paid", body(t, rec)["status"])

	rec = f.do(http.MethodGet, "/orders/o-1/status", "", asUser())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, "paid", body(t, rec)["status"])
	assert.Equal(t, 1, f.reader.statusCalls)
}

func TestStatusIsScopedToOwner(t *testing.T) {
	f := newFixture(t)
	other := map[string]string{headerUserID: "u2"}

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/orders/o-1/status", "", nil).Code)

	// miss: Postgres says the order belongs to u1
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/orders/o-1/status", "", other).Code)
	// hit: the cached owner is checked without a database read
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/orders/o-1/status", "", other).Code)
	assert.Equal(t, 1, f.reader.statusCalls)
}

func TestStatusWithUnknownOwnerFallsBackToDatabase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// written from a status-change event, which carries no owner
	_, err := f.cache.Put(ctx, "o-1", redisx.StatusEntry{Status: "shipped", UpdatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)})
	require.NoError(t, err)

	rec := f.do(http.MethodGet, "/orders/o-1/status", "", map[string]string{headerUserID: "u2"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 1, f.reader.statusCalls)

	// the fallback filled in the owner
	e, ok, err := f.cache.Get(ctx, "o-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "u1", e.UserID)

	rec = f.do(http.MethodGet, "/orders/o-1/status", "", asUser())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, 1, f.reader.statusCalls)
}

func TestAdminStatusErrors(t *testing.T) {
	f := newFixture(t)
	admin := map[string]string{headerUserID: "a1", headerRole: "admin"}

	rec := f.do(http.MethodPut, "/admin/orders/o-1/status", `{"status":"shipped","tracking_no":"JNE1"}`, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "JNE1", body(t, rec)["tracking_no"])

	rec = f.do(http.MethodPut, "/admin/orders/o-1/status", `{"status":"lost"}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// unexpected errors never leak their text
	rec = f.do(http.MethodPut, "/admin/payments/p-1/status", `{"status":"verified"}`, admin)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", body(t, rec)["error"])
}

func TestTransientIsRetryable(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/payments", `{"order_id":"o-1","proof_ref":"s3://x"}`, asUser())
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("x: %w", apperr.ErrInvalidStatus), http.StatusBadRequest},
		{apperr.ErrInvalidQuantity, http.StatusBadRequest},
		{apperr.Insufficient(), http.StatusConflict},
		{apperr.ErrCartInactivePruned, http.StatusConflict},
		{apperr.ErrIllegalTransition, http.StatusConflict},
		{redisx.ErrInFlight, http.StatusConflict},
		{apperr.ErrTransient, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, statusFor(c.err), c.err.Error())
	}
}
