package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"flipzone/controllers"
	"flipzone/health"
	"flipzone/middleware"
)

// Handlers bundles everything RegisterRoutes mounts
type Handlers struct {
	Users    *controllers.UserController
	Products *controllers.ProductController
	Cart     *controllers.CartController
	Auth     *middleware.Authenticator
	Health   *health.Handler
	Metrics  http.Handler
	// Limiter, when set, runs on every route after the caller's identity is resolved
	// so signed-in shoppers get their own bucket.
	Limiter *middleware.RateLimiter
}

// RegisterRoutes sets up all the routes for the application
func RegisterRoutes(router *mux.Router, h Handlers) {
	if h.Limiter != nil {
		router.Use(h.Auth.Optional, h.Limiter.Handler)
	}

	// Auth routes
	auth := router.PathPrefix("/api/auth").Subrouter()
	auth.HandleFunc("/register", h.Users.Register).Methods(http.MethodPost)
	auth.HandleFunc("/login", h.Users.Login).Methods(http.MethodPost)
	auth.HandleFunc("/refresh", h.Users.Refresh).Methods(http.MethodPost)
	auth.HandleFunc("/logout", h.Users.Logout).Methods(http.MethodPost)
	auth.Handle("/profile", h.Auth.Require(http.HandlerFunc(h.Users.GetProfile))).Methods(http.MethodGet)

	// Product routes
	router.HandleFunc("/api/products", h.Products.GetProducts).Methods(http.MethodGet)
	router.HandleFunc("/api/products/categories", h.Products.GetCategories).Methods(http.MethodGet)
	router.HandleFunc("/api/products/{id}", h.Products.GetProductByID).Methods(http.MethodGet)

	// Admin routes
	admin := router.PathPrefix("/api/products").Subrouter()
	admin.Use(h.Auth.Require)
	admin.Use(h.Auth.Admin)
	admin.HandleFunc("", h.Products.CreateProduct).Methods(http.MethodPost)
	admin.HandleFunc("/{id}", h.Products.UpdateProduct).Methods(http.MethodPut)
	admin.HandleFunc("/{id}", h.Products.DeleteProduct).Methods(http.MethodDelete)

	// Cart routes. The count is readable anonymously and must be registered before the
	// authenticated subrouter claims the /cart prefix.
	router.Handle("/cart/count/{product_id}", h.Auth.Optional(http.HandlerFunc(h.Cart.GetProductCount))).Methods(http.MethodGet)

	cart := router.PathPrefix("/cart").Subrouter()
	cart.Use(h.Auth.Require)
	cart.HandleFunc("", h.Cart.GetCart).Methods(http.MethodGet)
	cart.HandleFunc("", h.Cart.ClearCart).Methods(http.MethodDelete)
	cart.HandleFunc("/add-to-cart", h.Cart.AddToCart).Methods(http.MethodPost)
	cart.HandleFunc("/total", h.Cart.GetTotal).Methods(http.MethodGet)
	cart.HandleFunc("/summary", h.Cart.GetSummary).Methods(http.MethodGet)
	cart.HandleFunc("/{product_id}", h.Cart.RemoveFromCart).Methods(http.MethodDelete)

	// Ops
	if h.Health != nil {
		router.Handle("/healthz", h.Health).Methods(http.MethodGet)
		router.HandleFunc("/readyz", h.Health.ReadinessHandler).Methods(http.MethodGet)
	}
	router.HandleFunc("/livez", health.LivenessHandler).Methods(http.MethodGet)
	if h.Metrics != nil {
		router.Handle("/metrics", h.Metrics).Methods(http.MethodGet)
	}
}
