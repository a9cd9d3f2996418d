package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/order-placement/internal/adapter/storage"
	"github.com/rl1809/order-placement/internal/clock"
	"github.com/rl1809/order-placement/internal/core/domain"
	"github.com/rl1809/order-placement/internal/core/service"
)

var catalogue = []domain.Product{
	{ID: 1, Name: "Laptop", Stock: 10},
	{ID: 2, Name: "Phone", Stock: 25},
	{ID: 3, Name: "Galaxy", Stock: 15},
	{ID: 4, Name: "Earbuds", Stock: 50},
	{ID: 5, Name: "Tablet", Stock: 8},
	{ID: 7, Name: "Headphones", Stock: 30},
}

func newTestStore() *storage.MemoryAdapter {
	return storage.NewMemoryAdapter(clock.NewFixed(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)), catalogue...)
}

func newTestRouter(store *storage.MemoryAdapter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(NewHTTPHandler(service.NewOrderService(store)), "order-placement-test")
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHTTP_CreateOrder_Success(t *testing.T) {
	store := newTestStore()
	r := newTestRouter(store)

	w := doJSON(t, r, http.MethodPost, "/api/orders", CreateOrderHTTPRequest{
		Items: []OrderItemRequest{{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 5}, {ProductID: 4, Quantity: 10}},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp CreateOrderHTTPResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.OrderID)
	assert.Len(t, store.OrderItems(resp.OrderID), 3)

	w = doJSON(t, r, http.MethodGet, "/api/products/4", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var product ProductResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &product))
	assert.Equal(t, 40, product.Stock)
}

func TestHTTP_CreateOrder_InsufficientStock(t *testing.T) {
	store := newTestStore()
	r := newTestRouter(store)

	w := doJSON(t, r, http.MethodPost, "/api/orders", CreateOrderHTTPRequest{
		Items: []OrderItemRequest{{ProductID: 3, Quantity: 5}, {ProductID: 5, Quantity: 20}, {ProductID: 7, Quantity: 10}},
	})
	require.Equal(t, http.StatusConflict, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(5), resp.ProductID)
	require.NotNil(t, resp.Available)
	require.NotNil(t, resp.Requested)
	assert.Equal(t, 8, *resp.Available)
	assert.Equal(t, 20, *resp.Requested)
	assert.Equal(t, 0, store.OrderCount())
}

func TestHTTP_CreateOrder_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"malformed body", "not an order", http.StatusBadRequest},
		{"missing items", map[string]any{}, http.StatusBadRequest},
		{"empty items", CreateOrderHTTPRequest{Items: []OrderItemRequest{}}, http.StatusBadRequest},
		{"zero quantity", CreateOrderHTTPRequest{Items: []OrderItemRequest{{ProductID: 1, Quantity: 0}}}, http.StatusBadRequest},
		{"unknown product", CreateOrderHTTPRequest{Items: []OrderItemRequest{{ProductID: 404, Quantity: 1}}}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore()
			w := doJSON(t, newTestRouter(store), http.MethodPost, "/api/orders", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, 0, store.OrderCount())
		})
	}
}

func TestHTTP_ListProducts(t *testing.T) {
	r := newTestRouter(newTestStore())

	w := doJSON(t, r, http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var products []ProductResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &products))
	require.Len(t, products, len(catalogue))
	assert.Equal(t, ProductResponse{ID: 1, Name: "Laptop", Stock: 10}, products[0])
}

func TestHTTP_GetProduct_Errors(t *testing.T) {
	r := newTestRouter(newTestStore())

	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodGet, "/api/products/abc", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, r, http.MethodGet, "/api/products/404", nil).Code)
}

func TestHTTP_HealthCheck(t *testing.T) {
	w := doJSON(t, newTestRouter(newTestStore()), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

type unreachableStore struct {
	*storage.MemoryAdapter
}

func (unreachableStore) Ping(context.Context) error {
	return errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")
}

func TestHTTP_HealthCheck_StoreDown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := service.NewOrderService(unreachableStore{newTestStore()})
	r := NewRouter(NewHTTPHandler(svc), "order-placement-test")

	w := doJSON(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unavailable"}`, w.Body.String())
}

func TestHTTPError_Mapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{domain.ErrDuplicateRequest, http.StatusConflict},
		{domain.ErrConnectionFailure, http.StatusServiceUnavailable},
		{&domain.DeductionError{ProductID: 1}, http.StatusInternalServerError},
		{&domain.InsertError{Expected: 3, Inserted: 2}, http.StatusInternalServerError},
		{domain.ErrAllocationFailure, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := httpError(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}
