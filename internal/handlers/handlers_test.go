// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/mwiecke/storefront/internal/apperr"
	"github.com/mwiecke/storefront/internal/cache"
	"github.com/mwiecke/storefront/internal/handlers"
	"github.com/mwiecke/storefront/internal/identity"
	"github.com/mwiecke/storefront/internal/models"
	"github.com/mwiecke/storefront/internal/repository"
	"github.com/mwiecke/storefront/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	h     *handlers.Handlers
	repo  *repository.Repository
	cache *cache.Cache
	e     *echo.Echo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	c, _ := testutil.NewTestCache(t)
	return &fixture{
		h:     handlers.New(repo, c, nil),
		repo:  repo,
		cache: c,
		e:     echo.New(),
	}
}

// request builds an echo context. Path params go in pairs: name, value.
func (f *fixture) request(method, path, body string, user *models.User, params ...string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if user != nil {
		req = req.WithContext(identity.WithUser(req.Context(), user))
	}
	rec := httptest.NewRecorder()
	c := f.e.NewContext(req, rec)
	for i := 0; i+1 < len(params); i += 2 {
		c.SetParamNames(params[i])
		c.SetParamValues(params[i+1])
	}
	return c, rec
}

func (f *fixture) seedProduct(t *testing.T, name string, price, stock int64) *models.Product {
	t.Helper()
	p := &models.Product{Name: name, Price: price, Stock: stock, Category: "misc"}
	require.NoError(t, f.repo.CreateProduct(context.Background(), p))
	return p
}

func (f *fixture) seedUser(t *testing.T, username, email string) *models.User {
	t.Helper()
	return testutil.NewTestUser(t, f.repo, username, email, "Password1!")
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	c, rec := f.request(http.MethodGet, "/health", "", nil)

	require.NoError(t, f.h.Health(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListProductsServesAndCachesPage(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "widget", 1000, 5)

	c, rec := f.request(http.MethodGet, "/products", "", nil)
	require.NoError(t, f.h.ListProducts(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var products []models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	require.Len(t, products, 1)

	// A product added behind the cache's back is not visible until the
	// page cache is dropped by a mutation through the handlers.
	f.seedProduct(t, "gadget", 2000, 5)
	c, rec = f.request(http.MethodGet, "/products", "", nil)
	require.NoError(t, f.h.ListProducts(c))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	assert.Len(t, products, 1)
}

func TestCreateProductInvalidatesPageCache(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "widget", 1000, 5)

	// Warm the page cache.
	c, _ := f.request(http.MethodGet, "/products", "", nil)
	require.NoError(t, f.h.ListProducts(c))

	body, _ := json.Marshal(map[string]any{"name": "gadget", "price": 2000, "stock": 5})
	c, rec := f.request(http.MethodPost, "/products", string(body), nil)
	require.NoError(t, f.h.CreateProduct(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	c, rec = f.request(http.MethodGet, "/products", "", nil)
	require.NoError(t, f.h.ListProducts(c))
	var products []models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	assert.Len(t, products, 2)
}

func TestGetProductHidesHidden(t *testing.T) {
	f := newFixture(t)
	p := f.seedProduct(t, "widget", 1000, 5)
	require.NoError(t, f.repo.SetProductHidden(context.Background(), p.ID, true))

	c, _ := f.request(http.MethodGet, "/products/"+p.ID, "", nil, "id", p.ID)
	err := f.h.GetProduct(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, apperr.StatusOf(err))
}

func TestAddCartItemRejectsUnknownProduct(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t, "jane", "jane@example.com")

	body := `{"productId":"nope","quantity":1}`
	c, _ := f.request(http.MethodPost, "/cart/items", body, user)
	err := f.h.AddCartItem(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, apperr.StatusOf(err))
}

func TestCreateOrderFromCartClearsCart(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t, "jane", "jane@example.com")
	p := f.seedProduct(t, "widget", 1000, 5)
	require.NoError(t, f.repo.UpsertCartItem(context.Background(), user.ID, p.ID, 2))

	c, rec := f.request(http.MethodPost, "/orders", "{}", user)
	require.NoError(t, f.h.CreateOrder(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var order models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, int64(2000), order.Total)

	items, err := f.repo.ListCartItems(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCreateOrderEmptyCart(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t, "jane", "jane@example.com")

	c, _ := f.request(http.MethodPost, "/orders", "{}", user)
	err := f.h.CreateOrder(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperr.StatusOf(err))
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t, "jane", "jane@example.com")
	p := f.seedProduct(t, "widget", 1000, 1)

	body, _ := json.Marshal(map[string]any{
		"items": []map[string]any{{"productId": p.ID, "quantity": 5}},
	})
	c, _ := f.request(http.MethodPost, "/orders", string(body), user)
	err := f.h.CreateOrder(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, apperr.StatusOf(err))
}

func TestGetOrderHiddenFromOtherUsers(t *testing.T) {
	f := newFixture(t)
	owner := f.seedUser(t, "jane", "jane@example.com")
	other := f.seedUser(t, "john", "john@example.com")
	p := f.seedProduct(t, "widget", 1000, 5)

	order, err := f.repo.CreateOrder(context.Background(), owner.ID, []repository.OrderLine{
		{ProductID: p.ID, Quantity: 1},
	})
	require.NoError(t, err)

	c, _ := f.request(http.MethodGet, "/orders/"+order.ID, "", other, "id", order.ID)
	err = f.h.GetOrder(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, apperr.StatusOf(err))

	c, rec := f.request(http.MethodGet, "/orders/"+order.ID, "", owner, "id", order.ID)
	require.NoError(t, f.h.GetOrder(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCancelOrderOnlyPending(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t, "jane", "jane@example.com")
	p := f.seedProduct(t, "widget", 1000, 5)

	order, err := f.repo.CreateOrder(context.Background(), user.ID, []repository.OrderLine{
		{ProductID: p.ID, Quantity: 1},
	})
	require.NoError(t, err)
	require.NoError(t, f.repo.UpdateOrderStatus(context.Background(), order.ID, models.OrderStatusPaid))

	c, _ := f.request(http.MethodPost, "/orders/"+order.ID+"/cancel", "", user, "id", order.ID)
	err = f.h.CancelOrder(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, apperr.StatusOf(err))
}

func TestReviewOwnership(t *testing.T) {
	f := newFixture(t)
	owner := f.seedUser(t, "jane", "jane@example.com")
	other := f.seedUser(t, "john", "john@example.com")
	p := f.seedProduct(t, "widget", 1000, 5)

	c, rec := f.request(http.MethodPost, "/products/"+p.ID+"/reviews",
		`{"rating":4,"comment":"solid"}`, owner, "productId", p.ID)
	require.NoError(t, f.h.CreateReview(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var review models.Review
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &review))

	// Another user cannot edit it.
	c, _ = f.request(http.MethodPut, "/reviews/"+review.ID, `{"rating":1,"comment":"bad"}`, other, "id", review.ID)
	err := f.h.UpdateReview(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, apperr.StatusOf(err))

	// The owner can.
	c, _ = f.request(http.MethodPut, "/reviews/"+review.ID, `{"rating":5,"comment":"great"}`, owner, "id", review.ID)
	require.NoError(t, f.h.UpdateReview(c))
}

func TestReviewOnePerUserAndProduct(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t, "jane", "jane@example.com")
	p := f.seedProduct(t, "widget", 1000, 5)

	c, _ := f.request(http.MethodPost, "/products/"+p.ID+"/reviews",
		`{"rating":4,"comment":"solid"}`, user, "productId", p.ID)
	require.NoError(t, f.h.CreateReview(c))

	c, _ = f.request(http.MethodPost, "/products/"+p.ID+"/reviews",
		`{"rating":2,"comment":"changed my mind"}`, user, "productId", p.ID)
	err := f.h.CreateReview(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, apperr.StatusOf(err))
}

type fakeCheckout struct {
	url string
	err error
}

func (f *fakeCheckout) CreateCheckoutSession(_ echo.Context, orderID string, _ int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.url + "/" + orderID, nil
}

func TestCheckoutReturnsGatewayURL(t *testing.T) {
	f := newFixture(t)
	f.h = handlers.New(f.repo, f.cache, &fakeCheckout{url: "https://pay.example.com"})
	user := f.seedUser(t, "jane", "jane@example.com")
	p := f.seedProduct(t, "widget", 1000, 5)

	order, err := f.repo.CreateOrder(context.Background(), user.ID, []repository.OrderLine{
		{ProductID: p.ID, Quantity: 1},
	})
	require.NoError(t, err)

	c, rec := f.request(http.MethodPost, "/payments/checkout/"+order.ID, "", user, "id", order.ID)
	require.NoError(t, f.h.Checkout(c))

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "https://pay.example.com/"+order.ID, resp["url"])
}

func TestConfirmPaymentMarksOrderPaid(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t, "jane", "jane@example.com")
	p := f.seedProduct(t, "widget", 1000, 5)

	order, err := f.repo.CreateOrder(context.Background(), user.ID, []repository.OrderLine{
		{ProductID: p.ID, Quantity: 1},
	})
	require.NoError(t, err)

	c, _ := f.request(http.MethodPost, "/payments/confirm/"+order.ID, "", user, "id", order.ID)
	require.NoError(t, f.h.ConfirmPayment(c))

	paid, err := f.repo.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, paid.Status)
}
