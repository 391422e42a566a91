package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/cart"
	"storefront/internal/models"
	"storefront/internal/tracking"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) (*gin.Engine, *cart.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	carts := cart.NewManager(cart.NewMemorySlot())
	handler := NewHandler(carts, nil, nil, nil, tracking.NewHub())

	router := gin.New()
	handler.SetupRoutes(router)
	return router, carts
}

func doJSON(t *testing.T, router *gin.Engine, method, path, session string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set("X-Session-ID", session)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) cartResponse {
	t.Helper()
	var resp cartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCartRequiresSessionHeader(t *testing.T) {
	router, _ := setupRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/cart", "", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetEmptyCart(t *testing.T) {
	router, _ := setupRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/cart", "s1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeCart(t, rec)
	assert.True(t, resp.IsEmpty)
	assert.Equal(t, int64(0), resp.TotalAmount)
}

func TestAddCartItem(t *testing.T) {
	router, _ := setupRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/cart/items", "s1", addItemRequest{
		Product:  models.Product{ID: 1, VendorID: "V1", Name: "Chicken Rice", Price: 5},
		Quantity: 2,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeCart(t, rec)
	require.Len(t, resp.Cart.Items, 1)
	assert.Equal(t, 2, resp.Cart.Items[0].Quantity)
	assert.Equal(t, int64(10), resp.TotalAmount)
	assert.Equal(t, "V1", resp.Cart.VendorID)
}

func TestAddCartItemDefaultsQuantityToOne(t *testing.T) {
	router, _ := setupRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/cart/items", "s1", addItemRequest{
		Product: models.Product{ID: 1, VendorID: "V1", Name: "Chicken Rice", Price: 5},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeCart(t, rec)
	assert.Equal(t, 1, resp.TotalQuantity)
}

func TestVendorConflictReturns409(t *testing.T) {
	router, _ := setupRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/cart/items", "s1", addItemRequest{
		Product:  models.Product{ID: 1, VendorID: "V1", Name: "Chicken Rice", Price: 5},
		Quantity: 1,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/cart/items", "s1", addItemRequest{
		Product:  models.Product{ID: 9, VendorID: "V2", Name: "Laksa", Price: 7},
		Quantity: 1,
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	var conflict struct {
		CurrentVendor  string `json:"current_vendor"`
		IncomingVendor string `json:"incoming_vendor"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conflict))
	assert.Equal(t, "V1", conflict.CurrentVendor)
	assert.Equal(t, "V2", conflict.IncomingVendor)

	// Confirming the switch replaces the cart contents.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/cart/items", "s1", addItemRequest{
		Product:       models.Product{ID: 9, VendorID: "V2", Name: "Laksa", Price: 7},
		Quantity:      1,
		ReplaceVendor: true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeCart(t, rec)
	require.Len(t, resp.Cart.Items, 1)
	assert.Equal(t, int64(9), resp.Cart.Items[0].ProductID)
	assert.Equal(t, "V2", resp.Cart.VendorID)
}

func TestUpdateQuantityZeroRemovesLine(t *testing.T) {
	router, _ := setupRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/cart/items", "s1", addItemRequest{
		Product:  models.Product{ID: 1, VendorID: "V1", Name: "Chicken Rice", Price: 5},
		Quantity: 2,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPatch, "/api/v1/cart/items/1", "s1", updateQuantityRequest{Quantity: 0})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeCart(t, rec)
	assert.True(t, resp.IsEmpty)
	assert.Equal(t, "", resp.Cart.VendorID)
}

func TestUpdateQuantityInvalidProductID(t *testing.T) {
	router, _ := setupRouter(t)

	rec := doJSON(t, router, http.MethodPatch, "/api/v1/cart/items/abc", "s1", updateQuantityRequest{Quantity: 2})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveCartItem(t *testing.T) {
	router, _ := setupRouter(t)

	doJSON(t, router, http.MethodPost, "/api/v1/cart/items", "s1", addItemRequest{
		Product:  models.Product{ID: 1, VendorID: "V1", Name: "Chicken Rice", Price: 5},
		Quantity: 1,
	})
	doJSON(t, router, http.MethodPost, "/api/v1/cart/items", "s1", addItemRequest{
		Product:  models.Product{ID: 2, VendorID: "V1", Name: "Iced Tea", Price: 3},
		Quantity: 1,
	})

	rec := doJSON(t, router, http.MethodDelete, "/api/v1/cart/items/1", "s1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeCart(t, rec)
	require.Len(t, resp.Cart.Items, 1)
	assert.Equal(t, int64(2), resp.Cart.Items[0].ProductID)
}

func TestClearCart(t *testing.T) {
	router, _ := setupRouter(t)

	doJSON(t, router, http.MethodPost, "/api/v1/cart/items", "s1", addItemRequest{
		Product:  models.Product{ID: 1, VendorID: "V1", Name: "Chicken Rice", Price: 5},
		Quantity: 3,
	})

	rec := doJSON(t, router, http.MethodDelete, "/api/v1/cart", "s1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeCart(t, rec).IsEmpty)
}

func TestCartsAreIsolatedPerSession(t *testing.T) {
	router, _ := setupRouter(t)

	doJSON(t, router, http.MethodPost, "/api/v1/cart/items", "s1", addItemRequest{
		Product:  models.Product{ID: 1, VendorID: "V1", Name: "Chicken Rice", Price: 5},
		Quantity: 1,
	})

	rec := doJSON(t, router, http.MethodGet, "/api/v1/cart", "s2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeCart(t, rec).IsEmpty)
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := setupRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}
