package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestAPI(t *testing.T, handler http.HandlerFunc, opts Options) *API {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts.BaseURL = server.URL
	api := NewAPI(opts, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = api.Close() })
	return api
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestProductByBarcode_DecodesStringPrices(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/barcode/SH-001", r.URL.Path)
		writeJSON(w, http.StatusOK, `{
			"id": 3, "name": "Linen shirt", "barcode": "SH-001", "price": "50000.00", "stock_quantity": 0,
			"variants": [
				{"id": 7, "barcode": "SH-001-M", "size": "M", "color": "White", "price": null, "stock_quantity": 4},
				{"id": 8, "barcode": "SH-001-L", "size": "L", "price": 52000, "stock_quantity": 0}
			]
		}`)
	}, Options{})

	product, err := api.ProductByBarcode(context.Background(), "SH-001")
	require.NoError(t, err)
	assert.Equal(t, int64(3), product.ID)
	assert.True(t, decimal.NewFromInt(50000).Equal(product.Price))
	require.Len(t, product.Variants, 2)

	assert.Equal(t, "M / White", product.Variants[0].Label())
	assert.True(t, decimal.NewFromInt(50000).Equal(product.Variants[0].PriceFor(product)))
	assert.True(t, decimal.NewFromInt(52000).Equal(product.Variants[1].PriceFor(product)))
}

func TestProductByBarcode_NotFound(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"error": "product not found"}`)
	}, Options{})

	product, err := api.ProductByBarcode(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, product)
}

func TestClient_DecodesDebt(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/clients/12", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"id": 12, "name": "Ana", "debt": 25000}`)
	}, Options{})

	client, err := api.Client(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, "Ana", client.Name)
	assert.True(t, decimal.NewFromInt(25000).Equal(client.Debt))
}

func TestCreateSale_SendsTwoDecimalNumbers(t *testing.T) {
	var body map[string]any
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sales", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusCreated, `{"id": 91, "receipt_number": "R-000091", "final_amount": "100000.00",
			"paid_amount": 100000, "remaining_amount": 0, "payment_method": "cash", "created_at": "2026-10-18T10:00:00Z"}`)
	}, Options{})

	clientID := int64(12)
	req := &SaleRequest{
		ClientID:        &clientID,
		TotalAmount:     NewMoney(decimal.RequireFromString("100000.004")),
		FinalAmount:     NewMoney(decimal.NewFromInt(100000)),
		PaymentMethod:   "cash",
		PaidAmount:      NewMoney(decimal.NewFromInt(100000)),
		RemainingAmount: NewMoney(decimal.Zero),
		Items: []SaleItem{
			{ProductVariantID: 7, Quantity: 2, UnitPrice: NewMoney(decimal.NewFromInt(50000))},
		},
	}

	sale, err := api.CreateSale(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "R-000091", sale.ReceiptNumber)
	assert.True(t, decimal.NewFromInt(100000).Equal(sale.PaidAmount))

	assert.Equal(t, float64(12), body["client_id"])
	assert.Equal(t, 100000.0, body["total_amount"])
	assert.Equal(t, 0.0, body["discount_amount"])
	assert.Equal(t, 100000.0, body["paid_amount"])
	assert.Equal(t, 0.0, body["remaining_amount"])
	assert.Equal(t, "cash", body["payment_method"])
	items := body["items"].([]any)
	require.Len(t, items, 1)
	line := items[0].(map[string]any)
	assert.Equal(t, 7.0, line["product_variant_id"])
	assert.Equal(t, 50000.0, line["unit_price"])
	assert.Equal(t, 0.0, line["discount_amount"])
}

func TestMoney_MarshalJSON(t *testing.T) {
	raw, err := json.Marshal(NewMoney(decimal.RequireFromString("40000.5")))
	require.NoError(t, err)
	assert.Equal(t, "40000.50", string(raw))

	raw, err = json.Marshal(Money{})
	require.NoError(t, err)
	assert.Equal(t, "0.00", string(raw))
}

func TestCreateSale_BackendRejection(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, `{"error": "insufficient stock for variant 7"}`)
	}, Options{})

	_, err := api.CreateSale(context.Background(), &SaleRequest{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Contains(t, apiErr.Error(), "insufficient stock")
	assert.False(t, errors.Is(err, ErrConnectivity))
}

func TestTimeoutIsConnectivityError(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, Options{Timeout: 50 * time.Millisecond})

	_, err := api.Client(context.Background(), 1)
	assert.ErrorIs(t, err, ErrConnectivity)
}

func TestCanceledContextIsNotConnectivityError(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"id": 1}`)
	}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := api.Client(ctx, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrConnectivity))
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, Options{Timeout: 30 * time.Millisecond, MaxFailures: 2, OpenTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		_, err := api.ProductByBarcode(context.Background(), "X")
		require.ErrorIs(t, err, ErrConnectivity)
	}

	_, err := api.ProductByBarcode(context.Background(), "X")
	assert.ErrorIs(t, err, ErrConnectivity)
	assert.Equal(t, int32(2), hits.Load(), "open breaker must not reach the backend")
}
