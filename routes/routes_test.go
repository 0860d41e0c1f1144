package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"flipzone/cart"
	"flipzone/catalog"
	"flipzone/controllers"
	"flipzone/envelope"
	"flipzone/events"
	"flipzone/health"
	"flipzone/metrics"
	"flipzone/middleware"
	"flipzone/models"
	"flipzone/store"
	"flipzone/utils"
)

type harness struct {
	router *mux.Router
	users  *store.MemoryUserRepository
	tokens *utils.Tokens
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newLimitedHarness(t, nil)
}

func newLimitedHarness(t *testing.T, limiter *middleware.RateLimiter) *harness {
	t.Helper()
	registry := prometheus.NewRegistry()
	m := metrics.NewWithRegisterer(registry)
	users := store.NewMemoryUserRepository()
	tokens := utils.NewTokens("access-secret", "refresh-secret")
	productCatalog := catalog.NewService(store.NewMemoryProductRepository(), time.Second, nil)
	cartStore := cart.NewStore(store.NewMemoryCartRepository(), productCatalog, time.Second, nil)

	router := mux.NewRouter()
	router.Use(middleware.Metrics(m))
	RegisterRoutes(router, Handlers{
		Users:    controllers.NewUserController(users, tokens, nil, time.Second, false),
		Products: controllers.NewProductController(productCatalog),
		Cart:     controllers.NewCartController(cartStore, events.NopPublisher{}, m),
		Auth:     middleware.NewAuthenticator(tokens, users, time.Second),
		Health:   health.NewHandler("test", time.Second),
		Metrics:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Limiter:  limiter,
	})
	return &harness{router: router, users: users, tokens: tokens}
}

func (h *harness) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope.Body) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	if rec.Header().Get("Content-Type") != "application/json" {
		return rec, envelope.Body{}
	}
	decoded, err := envelope.Decode(rec.Body.Bytes())
	require.NoError(t, err, rec.Body.String())
	return rec, decoded
}

func (h *harness) register(t *testing.T, email string) string {
	t.Helper()
	rec, body := h.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "shopper",
		"email":    email,
		"password": "secret-password",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var auth controllers.AuthResponse
	require.NoError(t, json.Unmarshal(body.Data, &auth))
	return auth.AccessToken
}

func (h *harness) admin(t *testing.T) string {
	t.Helper()
	u, err := h.users.Insert(context.Background(), models.User{Email: "admin@example.com", Role: models.RoleAdmin})
	require.NoError(t, err)
	token, _, err := h.tokens.IssueAccess(u)
	require.NoError(t, err)
	return token
}

// shopper stores a user directly so no request is spent on registration.
func (h *harness) shopper(t *testing.T, email string) string {
	t.Helper()
	u, err := h.users.Insert(context.Background(), models.User{Username: "shopper", Email: email, Role: models.RoleUser})
	require.NoError(t, err)
	token, _, err := h.tokens.IssueAccess(u)
	require.NoError(t, err)
	return token
}

func (h *harness) product(t *testing.T, adminToken, title string, price float64) string {
	t.Helper()
	rec, body := h.do(t, http.MethodPost, "/api/products", adminToken, models.Product{
		Title:    title,
		Price:    price,
		Category: "electronics",
		Quantity: 50,
		Images:   []models.ProductImage{{PublicID: title, URL: "https://img/" + title + ".png"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var p models.Product
	require.NoError(t, json.Unmarshal(body.Data, &p))
	return p.ID.Hex()
}

func message(t *testing.T, body envelope.Body) envelope.Message {
	t.Helper()
	var m envelope.Message
	require.NoError(t, json.Unmarshal(body.Data, &m))
	return m
}

func totalOf(t *testing.T, h *harness, token string) float64 {
	t.Helper()
	rec, body := h.do(t, http.MethodGet, "/cart/total", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Total float64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &out))
	return out.Total
}

func TestCartScenario(t *testing.T) {
	h := newHarness(t)
	token := h.register(t, "jane@example.com")
	productID := h.product(t, h.admin(t), "phone", 100)

	wantMessages := []string{"Product added to cart", "Quantity updated in the cart", "Quantity updated in the cart"}
	for _, want := range wantMessages {
		rec, body := h.do(t, http.MethodPost, "/cart/add-to-cart", token, map[string]string{"product_id": productID})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, want, message(t, body).Message)
	}
	assert.Equal(t, 300.0, totalOf(t, h, token))

	rec, body := h.do(t, http.MethodDelete, "/cart/"+productID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Quantity decreased in the cart", message(t, body).Message)
	assert.Equal(t, 200.0, totalOf(t, h, token))

	h.do(t, http.MethodDelete, "/cart/"+productID, token, nil)
	_, body = h.do(t, http.MethodDelete, "/cart/"+productID, token, nil)
	assert.Equal(t, "Product removed from cart", message(t, body).Message)

	rec, _ = h.do(t, http.MethodGet, "/cart", token, nil)
	assert.JSONEq(t, `{"data":[]}`, rec.Body.String())
	assert.Zero(t, totalOf(t, h, token))

	rec, body = h.do(t, http.MethodDelete, "/cart/"+productID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Product not found in cart", body.Error)
	assert.Equal(t, "NOT_FOUND", body.Code)
}

func TestAddToCartLimit(t *testing.T) {
	h := newHarness(t)
	token := h.register(t, "jane@example.com")
	productID := h.product(t, h.admin(t), "phone", 100)

	var last envelope.Message
	for i := 0; i < models.MaxCartQuantity+1; i++ {
		rec, body := h.do(t, http.MethodPost, "/cart/add-to-cart", token, map[string]string{"product_id": productID})
		require.Equal(t, http.StatusOK, rec.Code)
		last = message(t, body)
	}
	assert.Equal(t, "limit_exceeded", last.Status)
	assert.Equal(t, "Quantity Limit exceeded", last.Message)

	rec, body := h.do(t, http.MethodGet, "/cart/count/"+productID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"quantity":10}`, string(body.Data))
}

func TestAddToCartAcceptsLegacyBody(t *testing.T) {
	h := newHarness(t)
	token := h.register(t, "jane@example.com")
	productID := h.product(t, h.admin(t), "phone", 100)

	rec, body := h.do(t, http.MethodPost, "/cart/add-to-cart", token, map[string]interface{}{
		"_id": map[string]string{"$oid": productID},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Product added to cart", message(t, body).Message)

	rec, _ = h.do(t, http.MethodPost, "/cart/add-to-cart", token, map[string]string{"_id": productID})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAddToCartErrors(t *testing.T) {
	h := newHarness(t)
	token := h.register(t, "jane@example.com")

	rec, body := h.do(t, http.MethodPost, "/cart/add-to-cart", "", map[string]string{"product_id": "64b7f0c2a1b2c3d4e5f60718"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "User not logged in", body.Error)
	assert.Equal(t, "UNAUTHENTICATED", body.Code)

	rec, body = h.do(t, http.MethodPost, "/cart/add-to-cart", token, map[string]string{"product_id": "not-an-id"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)

	rec, body = h.do(t, http.MethodPost, "/cart/add-to-cart", token, map[string]string{"product_id": "64b7f0c2a1b2c3d4e5f60718"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Product not found", body.Error)
}

func TestCartsAreIsolated(t *testing.T) {
	h := newHarness(t)
	alice := h.register(t, "alice@example.com")
	bob := h.register(t, "bob@example.com")
	productID := h.product(t, h.admin(t), "phone", 100)

	h.do(t, http.MethodPost, "/cart/add-to-cart", alice, map[string]string{"product_id": productID})

	rec, _ := h.do(t, http.MethodDelete, "/cart/"+productID, bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, body := h.do(t, http.MethodGet, "/cart/count/"+productID, alice, nil)
	assert.JSONEq(t, `{"quantity":1}`, string(body.Data))
}

func TestAnonymousCount(t *testing.T) {
	h := newHarness(t)

	rec, body := h.do(t, http.MethodGet, "/cart/count/64b7f0c2a1b2c3d4e5f60718", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"quantity":0}`, string(body.Data))

	rec, body = h.do(t, http.MethodGet, "/cart/count/not-an-id", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"quantity":0}`, string(body.Data))

	token := h.register(t, "jane@example.com")
	rec, body = h.do(t, http.MethodGet, "/cart/count/not-an-id", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)

	rec, _ = h.do(t, http.MethodGet, "/cart/total", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPriceCapturedAtFirstAdd(t *testing.T) {
	h := newHarness(t)
	token := h.register(t, "jane@example.com")
	adminToken := h.admin(t)
	productID := h.product(t, adminToken, "phone", 100)

	h.do(t, http.MethodPost, "/cart/add-to-cart", token, map[string]string{"product_id": productID})

	rec, _ := h.do(t, http.MethodPut, "/api/products/"+productID, adminToken, models.Product{Title: "phone", Price: 999, Category: "electronics"})
	require.Equal(t, http.StatusOK, rec.Code)

	h.do(t, http.MethodPost, "/cart/add-to-cart", token, map[string]string{"product_id": productID})
	assert.Equal(t, 200.0, totalOf(t, h, token))

	_, body := h.do(t, http.MethodGet, "/cart", token, nil)
	var lines []models.CartLine
	require.NoError(t, json.Unmarshal(body.Data, &lines))
	require.Len(t, lines, 1)
	assert.Equal(t, "phone", lines[0].Title)
	assert.Equal(t, 100.0, lines[0].Price)
}

func TestSummaryAndClear(t *testing.T) {
	h := newHarness(t)
	token := h.register(t, "jane@example.com")
	adminToken := h.admin(t)
	phone := h.product(t, adminToken, "phone", 100)
	mug := h.product(t, adminToken, "mug", 10)

	for _, id := range []string{phone, mug, mug} {
		h.do(t, http.MethodPost, "/cart/add-to-cart", token, map[string]string{"product_id": id})
	}

	_, body := h.do(t, http.MethodGet, "/cart/summary", token, nil)
	assert.JSONEq(t, `{"distinct_products":2,"total_quantity":3,"total_price":120}`, string(body.Data))

	rec, _ := h.do(t, http.MethodDelete, "/cart", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, body = h.do(t, http.MethodGet, "/cart/summary", token, nil)
	assert.JSONEq(t, `{"distinct_products":0,"total_quantity":0,"total_price":0}`, string(body.Data))
}

func TestProductRoutes(t *testing.T) {
	h := newHarness(t)
	userToken := h.register(t, "jane@example.com")
	adminToken := h.admin(t)
	productID := h.product(t, adminToken, "phone", 100)

	rec, _ := h.do(t, http.MethodPost, "/api/products", userToken, models.Product{Title: "mug", Price: 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = h.do(t, http.MethodPost, "/api/products", "", models.Product{Title: "mug", Price: 1})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body := h.do(t, http.MethodGet, "/api/products/"+productID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var p models.Product
	require.NoError(t, json.Unmarshal(body.Data, &p))
	assert.Equal(t, "phone", p.Title)

	_, body = h.do(t, http.MethodGet, "/api/products/categories", "", nil)
	var categories []models.Category
	require.NoError(t, json.Unmarshal(body.Data, &categories))
	require.Len(t, categories, 1)
	assert.Equal(t, "electronics", categories[0].Name)

	rec, _ = h.do(t, http.MethodDelete, "/api/products/"+productID, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = h.do(t, http.MethodGet, "/api/products/"+productID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthRoutes(t *testing.T) {
	h := newHarness(t)
	h.register(t, "jane@example.com")

	rec, body := h.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "again", "email": "JANE@example.com", "password": "x",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "User already exists", body.Error)

	rec, body = h.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "x@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "All fields are required", body.Error)

	rec, body = h.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "jane@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid password", body.Error)

	rec, body = h.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "nobody@example.com", "password": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid email", body.Error)

	rec, body = h.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "jane@example.com", "password": "secret-password"})
	require.Equal(t, http.StatusOK, rec.Code)
	var auth controllers.AuthResponse
	require.NoError(t, json.Unmarshal(body.Data, &auth))
	assert.Len(t, rec.Result().Cookies(), 2)

	rec, body = h.do(t, http.MethodGet, "/api/auth/profile", auth.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, string(body.Data), "password")

	rec, body = h.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": auth.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)
	var refreshed controllers.AuthResponse
	require.NoError(t, json.Unmarshal(body.Data, &refreshed))
	assert.NotEmpty(t, refreshed.AccessToken)

	rec, _ = h.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": auth.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = h.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, c := range rec.Result().Cookies() {
		assert.Empty(t, c.Value)
		assert.Negative(t, c.MaxAge)
	}
}

func TestRegisteredPasswordIsHashed(t *testing.T) {
	h := newHarness(t)
	h.register(t, "jane@example.com")

	u, err := h.users.FindByEmail(context.Background(), "jane@example.com")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("secret-password")))
}

func TestOpsRoutes(t *testing.T) {
	h := newHarness(t)

	for _, path := range []string{"/livez", "/readyz", "/healthz", "/metrics"} {
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRateLimitIsPerShopper(t *testing.T) {
	h := newLimitedHarness(t, middleware.NewRateLimiter(0.0001, 1))
	alice := h.shopper(t, "alice@example.com")
	bob := h.shopper(t, "bob@example.com")

	// every request below comes from the same remote address
	rec, _ := h.do(t, http.MethodGet, "/cart", bob, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = h.do(t, http.MethodGet, "/cart", alice, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body := h.do(t, http.MethodGet, "/cart", alice, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", body.Code)

	rec, _ = h.do(t, http.MethodGet, "/api/products", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = h.do(t, http.MethodGet, "/api/products", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec, _ = h.do(t, http.MethodGet, "/cart/count/64b7f0c2a1b2c3d4e5f60718", bob, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
