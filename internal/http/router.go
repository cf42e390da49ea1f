package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Deps carries the services exposed over HTTP.
type Deps struct {
	Logger   zerolog.Logger
	Tokens   TokenVerifier
	Accounts AccountService
	Catalog  CatalogService
	Carts    CartOpener
	Checkout CheckoutService
	Webhooks WebhookService
	Orders   OrdersService
	Gate     DownloadGate

	BaseURL            string
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	// AccessLog enables chi's request logger; tests turn it off.
	AccessLog bool
}

func NewRouter(d Deps) http.Handler {
	products := NewProductHandler(d.Catalog, d.RequestTimeout)
	categories := NewCategoryHandler(d.Catalog, d.RequestTimeout)
	carts := NewCartHandler(d.Carts, d.Catalog, d.RequestTimeout)
	checkout := NewCheckoutHandler(d.Checkout, d.Carts, d.RequestTimeout)
	webhooks := NewWebhookHandler(d.Webhooks, d.RequestTimeout)
	orders := NewOrdersHandler(d.Orders, d.RequestTimeout)
	downloads := NewDownloadHandler(d.Gate, d.BaseURL, d.RequestTimeout)
	accounts := NewAuthHandler(d.Accounts, d.RequestTimeout)

	r := chi.NewRouter()

	// Global middleware
	if d.AccessLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(d.Logger))
	r.Use(middleware.Timeout(d.RequestTimeout))
	r.Use(MaxBodySize(d.MaxRequestBodySize))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// signed by the processor, never carries a bearer token
		r.Post("/webhooks/stripe", webhooks.Stripe)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(d.Tokens))

			// file bodies keep their Content-Length, so downloads skip compression
			r.Get("/downloads/{id}", downloads.Redeem)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Compress(5))

				r.Route("/auth", func(r chi.Router) {
					r.Post("/register", accounts.Register)
					r.Post("/token", accounts.Token)
					r.Get("/me", accounts.Me)
				})

				r.Route("/products", func(r chi.Router) {
					r.Get("/", products.List)
					r.Post("/", products.Create)
					r.Get("/{id}", products.Get)
					r.Put("/{id}", products.Update)
					r.Delete("/{id}", products.Delete)
				})

				r.Route("/categories", func(r chi.Router) {
					r.Get("/", categories.List)
					r.Post("/", categories.Create)
					r.Put("/{id}", categories.Update)
					r.Delete("/{id}", categories.Delete)
				})

				r.Route("/cart", func(r chi.Router) {
					r.Get("/", carts.GetCart)
					r.Delete("/", carts.ClearCart)
					r.Post("/items", carts.AddItem)
					r.Put("/items/{product_id}", carts.UpdateQuantity)
					r.Delete("/items/{product_id}", carts.RemoveItem)
				})

				r.Post("/checkout", checkout.InitiateCheckout)

				r.Route("/orders", func(r chi.Router) {
					r.Get("/", orders.ListOrders)
					r.Get("/{order_id}", orders.GetOrder)
					r.Post("/{order_id}/downloads", downloads.Issue)
				})

				r.Route("/admin", func(r chi.Router) {
					r.Get("/orders", orders.RecentOrders)
					r.Get("/stats", orders.Stats)
				})
			})
		})
	})

	return r
}
